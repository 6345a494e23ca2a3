package gmail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	emaildomain "mail-event-processor/internal/email/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

func TestConvertGmailMessage(t *testing.T) {
	msg := &gmail.Message{
		Id:           "m1",
		ThreadId:     "t1",
		LabelIds:     []string{"SENT"},
		InternalDate: 1714564800000,
		Snippet:      "see you tomorrow",
		Payload: &gmail.MessagePart{
			Headers: []*gmail.MessagePartHeader{
				{Name: "Subject", Value: "Lunch"},
				{Name: "From", Value: "Alice <alice@example.com>"},
			},
		},
	}

	got := convertGmailMessage(msg)

	assert.Equal(t, "m1", got.ID)
	assert.Equal(t, "t1", got.ThreadID)
	assert.Equal(t, "Lunch", got.Subject)
	assert.Equal(t, "Alice <alice@example.com>", got.Sender)
	assert.Equal(t, "see you tomorrow", got.Snippet)
	assert.Equal(t, emaildomain.DirectionOutbound, got.Direction())
	assert.True(t, time.UnixMilli(1714564800000).Equal(got.InternalDate))
}

func TestConvertGmailMessage_MissingHeaders(t *testing.T) {
	got := convertGmailMessage(&gmail.Message{Id: "m2", LabelIds: []string{"INBOX"}})

	assert.Equal(t, "No Subject", got.Subject)
	assert.Equal(t, "Unknown", got.Sender)
	assert.Equal(t, emaildomain.DirectionInbound, got.Direction())
}

func TestOpen_RequiresRefreshToken(t *testing.T) {
	_, err := NewService("id", "secret").Open(context.Background(), "")
	assert.Error(t, err)
}

func newTestSession(t *testing.T, handler http.HandlerFunc) *session {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	srv, err := gmail.NewService(context.Background(),
		option.WithHTTPClient(server.Client()),
		option.WithEndpoint(server.URL+"/"),
	)
	require.NoError(t, err)
	return newSession(srv)
}

func TestSession_ListLatestMessage(t *testing.T) {
	s := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gmail/v1/users/me/messages", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("maxResults"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"messages": []map[string]string{{"id": "m9", "threadId": "t9"}},
		})
	})

	ref, err := s.ListLatestMessage(context.Background())
	require.NoError(t, err)
	require.NotNil(t, ref)
	assert.Equal(t, "m9", ref.ID)
	assert.Equal(t, "t9", ref.ThreadID)
}

func TestSession_ListLatestMessage_Empty(t *testing.T) {
	s := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"resultSizeEstimate": 0})
	})

	ref, err := s.ListLatestMessage(context.Background())
	require.NoError(t, err)
	assert.Nil(t, ref)
}

func TestSession_ListThreadMessages(t *testing.T) {
	s := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gmail/v1/users/me/threads/t1", r.URL.Path)
		assert.Equal(t, "metadata", r.URL.Query().Get("format"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "t1",
			"messages": []map[string]any{
				{"id": "m1", "threadId": "t1", "snippet": "first", "internalDate": "1000"},
				{"id": "m2", "threadId": "t1", "snippet": "second", "internalDate": "2000"},
			},
		})
	})

	msgs, err := s.ListThreadMessages(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Snippet)
	assert.Equal(t, "m2", msgs[1].ID)
}
