package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	authdomain "mail-event-processor/internal/auth/domain"
	emaildomain "mail-event-processor/internal/email/domain"
	"mail-event-processor/pkg/ai"
)

type fakeUserRepo struct {
	users map[string]*authdomain.User
	err   error
}

func (r *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*authdomain.User, error) {
	if r.err != nil {
		return nil, r.err
	}
	for k, u := range r.users {
		if strings.EqualFold(k, email) {
			return u, nil
		}
	}
	return nil, nil
}

// fakeLogRepo enforces the (user, message) uniqueness of the real stores.
type fakeLogRepo struct {
	mu        sync.Mutex
	logs      map[string]*emaildomain.EmailLog
	inserts   int
	insertErr error
	getErr    error
}

func newFakeLogRepo() *fakeLogRepo {
	return &fakeLogRepo{logs: make(map[string]*emaildomain.EmailLog)}
}

func (r *fakeLogRepo) GetLogByMessageID(ctx context.Context, userEmail, messageID string) (*emaildomain.EmailLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	return r.logs[userEmail+"/"+messageID], nil
}

func (r *fakeLogRepo) GetLogsByMessageIDs(ctx context.Context, userEmail string, messageIDs []string) (map[string]*emaildomain.EmailLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*emaildomain.EmailLog)
	for _, id := range messageIDs {
		if l, ok := r.logs[userEmail+"/"+id]; ok {
			out[id] = l
		}
	}
	return out, nil
}

func (r *fakeLogRepo) InsertLogs(ctx context.Context, entries []*emaildomain.EmailLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	for _, e := range entries {
		k := e.UserEmail + "/" + e.MessageID
		if _, exists := r.logs[k]; exists {
			continue
		}
		r.logs[k] = e
		r.inserts++
	}
	return nil
}

func (r *fakeLogRepo) all() []*emaildomain.EmailLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*emaildomain.EmailLog, 0, len(r.logs))
	for _, l := range r.logs {
		out = append(out, l)
	}
	return out
}

func (r *fakeLogRepo) insertCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inserts
}

type fakeMailbox struct {
	mu       sync.Mutex
	latest   *emaildomain.MessageRef
	messages map[string]*emaildomain.Message
	threads  map[string][]*emaildomain.Message

	openErr   error
	listErr   error
	threadErr error
	opens     int

	// getHook runs inside GetMessage, before it returns
	getHook func()
	// panicOnGet makes GetMessage panic
	panicOnGet bool
}

func newFakeMailbox() *fakeMailbox {
	return &fakeMailbox{
		messages: make(map[string]*emaildomain.Message),
		threads:  make(map[string][]*emaildomain.Message),
	}
}

// deliver makes msg the newest message of the mailbox.
func (m *fakeMailbox) deliver(msg *emaildomain.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latest = &emaildomain.MessageRef{ID: msg.ID, ThreadID: msg.ThreadID}
	m.messages[msg.ID] = msg
	m.threads[msg.ThreadID] = append(m.threads[msg.ThreadID], msg)
}

func (m *fakeMailbox) Open(ctx context.Context, refreshToken string) (emaildomain.MailSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opens++
	if m.openErr != nil {
		return nil, m.openErr
	}
	if refreshToken == "" {
		return nil, errors.New("user has no stored refresh token")
	}
	return m, nil
}

func (m *fakeMailbox) ListLatestMessage(ctx context.Context) (*emaildomain.MessageRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.latest, nil
}

func (m *fakeMailbox) GetMessage(ctx context.Context, id string) (*emaildomain.Message, error) {
	if m.panicOnGet {
		panic("mail backend exploded")
	}
	if m.getHook != nil {
		m.getHook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return msg, nil
}

func (m *fakeMailbox) ListThreadMessages(ctx context.Context, threadID string) ([]*emaildomain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.threadErr != nil {
		return nil, m.threadErr
	}
	return append([]*emaildomain.Message(nil), m.threads[threadID]...), nil
}

type fakeSummarizer struct {
	mu      sync.Mutex
	out     string
	err     error
	prompts []string
}

func (s *fakeSummarizer) Summarize(ctx context.Context, prompt, label string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	return s.out, s.err
}

type fakeRegistry struct {
	providers map[string]ai.Summarizer
	def       ai.ProviderType
}

func (r *fakeRegistry) Get(name string) (ai.Summarizer, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = string(r.def)
	}
	s, ok := r.providers[name]
	if !ok {
		return nil, ai.ErrUnknownProvider
	}
	return s, nil
}

func (r *fakeRegistry) DefaultProvider() ai.ProviderType {
	return r.def
}

type fakeNotifier struct {
	mu      sync.Mutex
	entries []*emaildomain.EmailLog
	err     error
}

func (n *fakeNotifier) NotifySummary(ctx context.Context, entry *emaildomain.EmailLog) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.entries = append(n.entries, entry)
	return n.err
}

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}
