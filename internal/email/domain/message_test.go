package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageDirection(t *testing.T) {
	tests := []struct {
		name   string
		labels []string
		want   Direction
	}{
		{"inbox", []string{"INBOX", "UNREAD"}, DirectionInbound},
		{"sent", []string{"SENT"}, DirectionOutbound},
		{"sent and inbox", []string{"INBOX", "SENT"}, DirectionOutbound},
		{"no labels", nil, DirectionInbound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Message{Labels: tt.labels}
			assert.Equal(t, tt.want, m.Direction())
		})
	}
}

func TestMessageIsDraft(t *testing.T) {
	assert.True(t, (&Message{Labels: []string{"DRAFT"}}).IsDraft())
	assert.False(t, (&Message{Labels: []string{"INBOX"}}).IsDraft())
}
