package fcm

import (
	"errors"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
)

func TestBuildMulticast(t *testing.T) {
	msg := BuildMulticast([]string{"t1", "t2"}, NotificationData{
		Title: "Lunch",
		Body:  "Alice confirms lunch.",
		Data:  map[string]string{"message_id": "m1"},
	})

	assert.Equal(t, []string{"t1", "t2"}, msg.Tokens)
	assert.Equal(t, "Lunch", msg.Notification.Title)
	assert.Equal(t, "Alice confirms lunch.", msg.Webpush.Notification.Body)
	assert.Equal(t, "m1", msg.Data["message_id"])
}

func TestFailedTokens(t *testing.T) {
	resp := &messaging.BatchResponse{
		Responses: []*messaging.SendResponse{
			{Success: true, MessageID: "ok"},
			{Success: false, Error: errors.New("unregistered")},
			{Success: false, Error: errors.New("invalid")},
		},
	}

	assert.Equal(t, []string{"t2", "t3"}, FailedTokens([]string{"t1", "t2", "t3"}, resp))
	assert.Empty(t, FailedTokens([]string{"t1"}, &messaging.BatchResponse{}))
}
