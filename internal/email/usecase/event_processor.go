package usecase

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"

	authdomain "mail-event-processor/internal/auth/domain"
	authrepo "mail-event-processor/internal/auth/repository"
	emaildomain "mail-event-processor/internal/email/domain"
	"mail-event-processor/internal/email/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SummaryLabel is passed to the summarizer for every event.
const SummaryLabel = "Context-Aware Summary"

// DefaultContextDepth applies when neither the user nor the config sets one.
const DefaultContextDepth = 10

const aiErrorPrefix = "[AI ERROR]: Could not generate summary. Details: "

// AIErrorSummary is stored in place of a summary when summarization fails.
func AIErrorSummary(err error) string {
	return aiErrorPrefix + err.Error()
}

func IsAIErrorSummary(summary string) bool {
	return strings.HasPrefix(summary, aiErrorPrefix)
}

// Outcome is the terminal state of one event.
type Outcome string

const (
	OutcomeCompleted Outcome = "COMPLETED"
	OutcomeSkipped   Outcome = "SKIPPED"
	OutcomeFailed    Outcome = "FAILED"
)

// Reasons attached to SKIPPED and FAILED results
const (
	ReasonUserNotFound    = "user_not_found"
	ReasonUserInactive    = "user_inactive"
	ReasonNoMessages      = "no_messages"
	ReasonAlreadySeen     = "already_seen"
	ReasonAlreadyLogged   = "already_logged"
	ReasonInFlight        = "in_flight"
	ReasonDraft           = "draft"
	ReasonBeforeWatermark = "before_watermark"

	ReasonUserLookup   = "user_lookup"
	ReasonCredentials  = "credentials"
	ReasonListMessages = "list_messages"
	ReasonDurableCheck = "durable_check"
	ReasonFetchMessage = "fetch_message"
	ReasonContext      = "context"
	ReasonPersist      = "persist"
	ReasonPanic        = "panic"
)

// Result describes how an event ended.
type Result struct {
	Outcome   Outcome
	Reason    string
	MessageID string
	Err       error
}

func completed(messageID string) Result {
	return Result{Outcome: OutcomeCompleted, MessageID: messageID}
}

func skipped(reason, messageID string) Result {
	return Result{Outcome: OutcomeSkipped, Reason: reason, MessageID: messageID}
}

func failed(reason, messageID string, err error) Result {
	return Result{Outcome: OutcomeFailed, Reason: reason, MessageID: messageID, Err: err}
}

// ProcessorStats is a snapshot of outcome counters.
type ProcessorStats struct {
	Completed int64 `json:"completed"`
	Skipped   int64 `json:"skipped"`
	Failed    int64 `json:"failed"`
	RecentIDs int   `json:"recent_ids"`
}

// EventProcessorDeps groups the collaborators of an EventProcessor.
type EventProcessorDeps struct {
	Users       authrepo.UserRepository
	Logs        repository.EmailLogRepository
	Mail        emaildomain.MailProvider
	Contexts    ContextBuilder
	Prompts     *PromptBuilder
	Summarizers SummarizerRegistry
	Recent      *RecentIDCache

	// Optional
	Notifier            SummaryNotifier
	DefaultContextDepth int
}

// EventProcessor turns a mailbox notification into at most one log entry for
// the newest message of that mailbox.
type EventProcessor struct {
	users        authrepo.UserRepository
	logs         repository.EmailLogRepository
	mail         emaildomain.MailProvider
	contexts     ContextBuilder
	prompts      *PromptBuilder
	summarizers  SummarizerRegistry
	recent       *RecentIDCache
	notifier     SummaryNotifier
	contextDepth int
	log          zerolog.Logger

	inFlightMu sync.Mutex
	inFlight   map[string]struct{}

	completed atomic.Int64
	skipped   atomic.Int64
	failed    atomic.Int64
}

func NewEventProcessor(deps EventProcessorDeps, log zerolog.Logger) *EventProcessor {
	depth := deps.DefaultContextDepth
	if depth <= 0 {
		depth = DefaultContextDepth
	}
	recent := deps.Recent
	if recent == nil {
		recent = NewRecentIDCache(DefaultRecentIDCapacity)
	}

	return &EventProcessor{
		users:        deps.Users,
		logs:         deps.Logs,
		mail:         deps.Mail,
		contexts:     deps.Contexts,
		prompts:      deps.Prompts,
		summarizers:  deps.Summarizers,
		recent:       recent,
		notifier:     deps.Notifier,
		contextDepth: depth,
		log:          log.With().Str("component", "event_processor").Logger(),
		inFlight:     make(map[string]struct{}),
	}
}

// Stats returns the outcome counters and the recent-id cache size.
func (p *EventProcessor) Stats() ProcessorStats {
	return ProcessorStats{
		Completed: p.completed.Load(),
		Skipped:   p.skipped.Load(),
		Failed:    p.failed.Load(),
		RecentIDs: p.recent.Len(),
	}
}

// ProcessEvent never returns an error or panics; every failure ends in a
// FAILED result. historyMarker is only logged: the newest message is always
// read regardless of it.
func (p *EventProcessor) ProcessEvent(ctx context.Context, accountEmail, historyMarker string) (result Result) {
	log := p.log.With().Str("email", accountEmail).Str("history_id", historyMarker).Logger()

	defer func() {
		p.record(result)
		ev := log.Info()
		if result.Outcome == OutcomeFailed {
			ev = log.Error().Err(result.Err)
		}
		ev.Str("outcome", string(result.Outcome)).
			Str("reason", result.Reason).
			Str("message_id", result.MessageID).
			Msg("event finished")
	}()
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("panic while processing event")
			result = failed(ReasonPanic, "", fmt.Errorf("panic: %v", r))
		}
	}()

	return p.process(ctx, log, accountEmail)
}

func (p *EventProcessor) process(ctx context.Context, log zerolog.Logger, accountEmail string) Result {
	// One form for the user lookup, the cache key, the durable check and the log
	accountEmail = NormalizeEmail(accountEmail)

	user, err := p.users.FindByEmail(ctx, accountEmail)
	if err != nil {
		return failed(ReasonUserLookup, "", fmt.Errorf("failed to load user: %w", err))
	}
	if user == nil {
		return skipped(ReasonUserNotFound, "")
	}
	if !user.IsActive {
		return skipped(ReasonUserInactive, "")
	}

	session, err := p.mail.Open(ctx, user.RefreshToken)
	if err != nil {
		return failed(ReasonCredentials, "", err)
	}

	ref, err := session.ListLatestMessage(ctx)
	if err != nil {
		return failed(ReasonListMessages, "", err)
	}
	if ref == nil {
		return skipped(ReasonNoMessages, "")
	}
	log = log.With().Str("message_id", ref.ID).Logger()

	key := recentKey(accountEmail, ref.ID)
	if p.recent.IsSeen(key) {
		p.recent.Add(key)
		return skipped(ReasonAlreadySeen, ref.ID)
	}

	if !p.claim(key) {
		return skipped(ReasonInFlight, ref.ID)
	}
	defer p.release(key)

	existing, err := p.logs.GetLogByMessageID(ctx, accountEmail, ref.ID)
	if err != nil {
		return failed(ReasonDurableCheck, ref.ID, fmt.Errorf("failed to check log: %w", err))
	}
	if existing != nil {
		p.recent.Add(key)
		return skipped(ReasonAlreadyLogged, ref.ID)
	}

	msg, err := session.GetMessage(ctx, ref.ID)
	if err != nil {
		return failed(ReasonFetchMessage, ref.ID, err)
	}
	if msg.IsDraft() {
		return skipped(ReasonDraft, ref.ID)
	}
	if user.LastStartedAt != nil && msg.InternalDate.Before(*user.LastStartedAt) {
		return skipped(ReasonBeforeWatermark, ref.ID)
	}

	threadID := msg.ThreadID
	if threadID == "" {
		threadID = ref.ThreadID
	}

	contextText, err := p.contexts.GetThreadContext(ctx, threadID, session, accountEmail, msg.ID, user.ContextDepth(p.contextDepth))
	if err != nil {
		return failed(ReasonContext, ref.ID, err)
	}

	prompt := p.prompts.Build(contextText, msg.Snippet, user.Settings.CustomPrompt)
	provider, summary := p.summarize(ctx, log, user, prompt)

	entry := &emaildomain.EmailLog{
		ID:         uuid.New().String(),
		UserEmail:  accountEmail,
		MessageID:  msg.ID,
		ThreadID:   threadID,
		Sender:     msg.Sender,
		Subject:    msg.Subject,
		Summary:    summary,
		AIProvider: provider,
		Timestamp:  msg.InternalDate,
		Direction:  msg.Direction(),
	}
	if err := p.logs.InsertLogs(ctx, []*emaildomain.EmailLog{entry}); err != nil {
		return failed(ReasonPersist, ref.ID, fmt.Errorf("failed to save log: %w", err))
	}
	p.recent.Add(key)

	if p.notifier != nil {
		if err := p.notifier.NotifySummary(ctx, entry); err != nil {
			log.Warn().Err(err).Msg("failed to send summary notification")
		}
	}

	return completed(ref.ID)
}

// summarize never fails: provider errors become the stored summary. The
// returned provider name is in the form the registry resolves.
func (p *EventProcessor) summarize(ctx context.Context, log zerolog.Logger, user *authdomain.User, prompt string) (string, string) {
	provider := strings.ToLower(strings.TrimSpace(user.Settings.AIProvider))
	if provider == "" {
		provider = strings.ToLower(string(p.summarizers.DefaultProvider()))
	}

	summarizer, err := p.summarizers.Get(provider)
	if err == nil {
		var summary string
		summary, err = summarizer.Summarize(ctx, prompt, SummaryLabel)
		if err == nil {
			return provider, summary
		}
	}

	log.Error().Err(err).Str("provider", provider).Msg("summarization failed")
	return provider, AIErrorSummary(err)
}

func (p *EventProcessor) claim(key string) bool {
	p.inFlightMu.Lock()
	defer p.inFlightMu.Unlock()
	if _, busy := p.inFlight[key]; busy {
		return false
	}
	p.inFlight[key] = struct{}{}
	return true
}

func (p *EventProcessor) release(key string) {
	p.inFlightMu.Lock()
	delete(p.inFlight, key)
	p.inFlightMu.Unlock()
}

func (p *EventProcessor) record(r Result) {
	switch r.Outcome {
	case OutcomeCompleted:
		p.completed.Add(1)
	case OutcomeSkipped:
		p.skipped.Add(1)
	default:
		p.failed.Add(1)
	}
}

// NormalizeEmail is the stored form of a mailbox address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// recentKey scopes message ids by mailbox; Gmail ids are only unique per user.
// accountEmail is already normalized.
func recentKey(accountEmail, messageID string) string {
	return accountEmail + "|" + messageID
}
