package domain

import "context"

// MailProvider opens authenticated sessions against a user's mailbox.
// Open performs the credential refresh; an error means the stored refresh
// token could not be exchanged for a valid access token.
type MailProvider interface {
	Open(ctx context.Context, refreshToken string) (MailSession, error)
}

// MailSession reads messages with credentials that are already valid.
type MailSession interface {
	// ListLatestMessage returns the newest message, or nil when the mailbox is empty.
	ListLatestMessage(ctx context.Context) (*MessageRef, error)
	GetMessage(ctx context.Context, id string) (*Message, error)
	// ListThreadMessages returns the thread's messages oldest first.
	ListThreadMessages(ctx context.Context, threadID string) ([]*Message, error)
}
