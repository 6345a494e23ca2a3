package domain

import "time"

// Gmail system labels the processor cares about
const (
	LabelSent  = "SENT"
	LabelDraft = "DRAFT"
	LabelInbox = "INBOX"
)

// MessageRef identifies a message without its content.
type MessageRef struct {
	ID       string
	ThreadID string
}

// Message is a fetched mail message. It is never persisted as-is.
type Message struct {
	ID           string
	ThreadID     string
	Labels       []string
	InternalDate time.Time
	Subject      string
	Sender       string
	Snippet      string
}

func (m *Message) HasLabel(label string) bool {
	for _, l := range m.Labels {
		if l == label {
			return true
		}
	}
	return false
}

func (m *Message) IsDraft() bool {
	return m.HasLabel(LabelDraft)
}

// Direction is outbound iff the message carries the SENT label.
func (m *Message) Direction() Direction {
	if m.HasLabel(LabelSent) {
		return DirectionOutbound
	}
	return DirectionInbound
}
