package gmail

import (
	"context"
	"errors"
	"fmt"
	"time"

	emaildomain "mail-event-processor/internal/email/domain"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const user = "me"

// Headers requested with format=metadata
var metadataHeaders = []string{"Subject", "From"}

// Service opens Gmail sessions from stored OAuth refresh tokens.
type Service struct {
	config *oauth2.Config
}

func NewService(clientID, clientSecret string) *Service {
	return &Service{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{gmail.GmailReadonlyScope},
		},
	}
}

// Open builds credentials from the refresh token and refreshes them before
// returning, so an expired or revoked grant fails here rather than on the
// first mailbox read.
func (s *Service) Open(ctx context.Context, refreshToken string) (emaildomain.MailSession, error) {
	if refreshToken == "" {
		return nil, errors.New("user has no stored refresh token")
	}

	// No access token: the source is invalid until refreshed
	token := &oauth2.Token{
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		Expiry:       time.Now(),
	}
	tokenSource := s.config.TokenSource(ctx, token)

	if _, err := tokenSource.Token(); err != nil {
		return nil, fmt.Errorf("unable to refresh credentials: %w", err)
	}

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, tokenSource)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}

	return newSession(srv), nil
}

type session struct {
	srv *gmail.Service
}

func newSession(srv *gmail.Service) *session {
	return &session{srv: srv}
}

func (s *session) ListLatestMessage(ctx context.Context) (*emaildomain.MessageRef, error) {
	resp, err := s.srv.Users.Messages.List(user).MaxResults(1).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to list messages: %w", err)
	}
	if len(resp.Messages) == 0 {
		return nil, nil
	}

	latest := resp.Messages[0]
	return &emaildomain.MessageRef{ID: latest.Id, ThreadID: latest.ThreadId}, nil
}

func (s *session) GetMessage(ctx context.Context, id string) (*emaildomain.Message, error) {
	msg, err := s.srv.Users.Messages.Get(user, id).
		Format("metadata").
		MetadataHeaders(metadataHeaders...).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve message %s: %w", id, err)
	}
	return convertGmailMessage(msg), nil
}

func (s *session) ListThreadMessages(ctx context.Context, threadID string) ([]*emaildomain.Message, error) {
	thread, err := s.srv.Users.Threads.Get(user, threadID).
		Format("metadata").
		MetadataHeaders(metadataHeaders...).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve thread %s: %w", threadID, err)
	}

	messages := make([]*emaildomain.Message, 0, len(thread.Messages))
	for _, m := range thread.Messages {
		messages = append(messages, convertGmailMessage(m))
	}
	return messages, nil
}

// Helper functions

func convertGmailMessage(msg *gmail.Message) *emaildomain.Message {
	var headers []*gmail.MessagePartHeader
	if msg.Payload != nil {
		headers = msg.Payload.Headers
	}

	subject := getHeader(headers, "Subject")
	if subject == "" {
		subject = "No Subject"
	}
	sender := getHeader(headers, "From")
	if sender == "" {
		sender = "Unknown"
	}

	return &emaildomain.Message{
		ID:           msg.Id,
		ThreadID:     msg.ThreadId,
		Labels:       msg.LabelIds,
		InternalDate: time.UnixMilli(msg.InternalDate),
		Subject:      subject,
		Sender:       sender,
		Snippet:      msg.Snippet,
	}
}

func getHeader(headers []*gmail.MessagePartHeader, name string) string {
	for _, header := range headers {
		if header.Name == name {
			return header.Value
		}
	}
	return ""
}
