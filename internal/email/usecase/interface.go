package usecase

import (
	"context"

	emaildomain "mail-event-processor/internal/email/domain"
	"mail-event-processor/pkg/ai"
)

// ContextBuilder renders earlier thread messages for the prompt.
type ContextBuilder interface {
	GetThreadContext(ctx context.Context, threadID string, session emaildomain.MailSession, accountEmail, currentMessageID string, limit int) (string, error)
}

// SummarizerRegistry resolves a user's provider name to a summarizer.
// An empty name selects the default provider.
type SummarizerRegistry interface {
	Get(name string) (ai.Summarizer, error)
	DefaultProvider() ai.ProviderType
}

// SummaryNotifier is told about every log entry the processor persists.
type SummaryNotifier interface {
	NotifySummary(ctx context.Context, entry *emaildomain.EmailLog) error
}

// EventHandler runs one mailbox notification to completion.
type EventHandler interface {
	ProcessEvent(ctx context.Context, accountEmail, historyMarker string) Result
}
