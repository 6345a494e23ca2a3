package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	emaildomain "mail-event-processor/internal/email/domain"
	"mail-event-processor/internal/email/repository"
)

// ContextEngine renders the earlier messages of a thread as plain text for
// the prompt. Stored summaries are preferred over raw snippets.
type ContextEngine struct {
	logRepo repository.EmailLogRepository
}

func NewContextEngine(logRepo repository.EmailLogRepository) *ContextEngine {
	return &ContextEngine{logRepo: logRepo}
}

// GetThreadContext returns up to limit messages preceding currentMessageID,
// oldest first. An empty string means the thread has no history.
func (e *ContextEngine) GetThreadContext(
	ctx context.Context,
	threadID string,
	session emaildomain.MailSession,
	accountEmail string,
	currentMessageID string,
	limit int,
) (string, error) {
	if threadID == "" || limit <= 0 {
		return "", nil
	}

	messages, err := session.ListThreadMessages(ctx, threadID)
	if err != nil {
		return "", fmt.Errorf("failed to load thread %s: %w", threadID, err)
	}

	history := make([]*emaildomain.Message, 0, len(messages))
	for _, m := range messages {
		if m.ID == currentMessageID || m.IsDraft() {
			continue
		}
		history = append(history, m)
	}
	if len(history) == 0 {
		return "", nil
	}

	sort.SliceStable(history, func(i, j int) bool {
		return history[i].InternalDate.Before(history[j].InternalDate)
	})
	if len(history) > limit {
		history = history[len(history)-limit:]
	}

	ids := make([]string, len(history))
	for i, m := range history {
		ids[i] = m.ID
	}
	logs, err := e.logRepo.GetLogsByMessageIDs(ctx, accountEmail, ids)
	if err != nil {
		return "", fmt.Errorf("failed to load stored summaries: %w", err)
	}

	var sb strings.Builder
	for _, m := range history {
		author := m.Sender
		if isFromAccount(m, accountEmail) {
			author = "You"
		}

		text := m.Snippet
		if entry, ok := logs[m.ID]; ok && entry.Summary != "" && !IsAIErrorSummary(entry.Summary) {
			text = entry.Summary
		}

		fmt.Fprintf(&sb, "[%s] %s (Subject: %s): %s\n",
			m.InternalDate.UTC().Format("2006-01-02 15:04"), author, m.Subject, strings.TrimSpace(text))
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func isFromAccount(m *emaildomain.Message, accountEmail string) bool {
	if m.HasLabel(emaildomain.LabelSent) {
		return true
	}
	return accountEmail != "" && strings.Contains(strings.ToLower(m.Sender), strings.ToLower(accountEmail))
}
