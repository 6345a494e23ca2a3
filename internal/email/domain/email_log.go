package domain

import "time"

// Direction of a message relative to the mailbox owner
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// EmailLog is the durable record written once per processed message.
type EmailLog struct {
	ID         string    `json:"id" gorm:"primaryKey" bson:"-"`
	UserEmail  string    `json:"user_email" gorm:"uniqueIndex:idx_email_logs_user_message;not null" bson:"user_email"`
	MessageID  string    `json:"message_id" gorm:"uniqueIndex:idx_email_logs_user_message;not null" bson:"message_id"`
	ThreadID   string    `json:"thread_id" gorm:"index" bson:"thread_id"`
	Sender     string    `json:"sender" bson:"sender"`
	Subject    string    `json:"subject" bson:"subject"`
	Summary    string    `json:"summary" gorm:"type:text" bson:"summary"`
	AIProvider string    `json:"ai_provider" bson:"ai_provider"`
	Timestamp  time.Time `json:"timestamp" bson:"timestamp"`
	Direction  Direction `json:"direction" bson:"direction"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
}

// TableName specifies the table name for GORM
func (EmailLog) TableName() string {
	return "email_logs"
}
