package domain

import "time"

// User is the account a Gmail watch was registered for. The event processor
// only ever reads it.
type User struct {
	ID           string `json:"id" gorm:"primaryKey" bson:"-"`
	Email        string `json:"email" gorm:"uniqueIndex;not null" bson:"email"`
	Name         string `json:"name" bson:"name,omitempty"`
	IsActive     bool   `json:"is_active" gorm:"not null" bson:"is_active"`
	RefreshToken string `json:"-" bson:"refresh_token"`
	// LastStartedAt is the processing watermark: mail older than this is history.
	LastStartedAt *time.Time   `json:"last_started_at,omitempty" bson:"last_started_at,omitempty"`
	Settings      UserSettings `json:"settings" gorm:"serializer:json;type:text" bson:"settings"`
	CreatedAt     time.Time    `json:"created_at" bson:"created_at,omitempty"`
	UpdatedAt     time.Time    `json:"updated_at" bson:"updated_at,omitempty"`
}

// UserSettings holds per-user summarization preferences.
type UserSettings struct {
	ContextDepth int    `json:"context_depth" bson:"context_depth"`
	AIProvider   string `json:"ai_provider" bson:"ai_provider"`
	CustomPrompt string `json:"custom_prompt,omitempty" bson:"custom_prompt,omitempty"`
}

// ContextDepth returns how many prior thread messages to include, or fallback
// when the user never chose one.
func (u *User) ContextDepth(fallback int) int {
	if u.Settings.ContextDepth > 0 {
		return u.Settings.ContextDepth
	}
	return fallback
}
