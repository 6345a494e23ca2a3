package repository

import (
	"context"
	"errors"
	"time"

	emaildomain "mail-event-processor/internal/email/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EmailLogRepository defines the durable store of processed-message logs
type EmailLogRepository interface {
	// GetLogByMessageID returns nil, nil when the message was never logged for this user
	GetLogByMessageID(ctx context.Context, userEmail, messageID string) (*emaildomain.EmailLog, error)
	// GetLogsByMessageIDs returns the logs that exist, keyed by message ID
	GetLogsByMessageIDs(ctx context.Context, userEmail string, messageIDs []string) (map[string]*emaildomain.EmailLog, error)
	// InsertLogs inserts entries; an entry whose (user, message) already exists is ignored
	InsertLogs(ctx context.Context, entries []*emaildomain.EmailLog) error
}

// emailLogRepository implements EmailLogRepository interface
type emailLogRepository struct {
	db *gorm.DB
}

// NewEmailLogRepository creates a new instance of emailLogRepository
func NewEmailLogRepository(db *gorm.DB) EmailLogRepository {
	return &emailLogRepository{
		db: db,
	}
}

func (r *emailLogRepository) GetLogByMessageID(ctx context.Context, userEmail, messageID string) (*emaildomain.EmailLog, error) {
	var entry emaildomain.EmailLog
	err := r.db.WithContext(ctx).
		Where("user_email = ? AND message_id = ?", userEmail, messageID).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *emailLogRepository) GetLogsByMessageIDs(ctx context.Context, userEmail string, messageIDs []string) (map[string]*emaildomain.EmailLog, error) {
	if len(messageIDs) == 0 {
		return map[string]*emaildomain.EmailLog{}, nil
	}

	var entries []*emaildomain.EmailLog
	err := r.db.WithContext(ctx).
		Where("user_email = ? AND message_id IN ?", userEmail, messageIDs).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}

	result := make(map[string]*emaildomain.EmailLog, len(entries))
	for _, e := range entries {
		result[e.MessageID] = e
	}
	return result, nil
}

func (r *emailLogRepository) InsertLogs(ctx context.Context, entries []*emaildomain.EmailLog) error {
	if len(entries) == 0 {
		return nil
	}

	now := time.Now()
	for _, e := range entries {
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
	}

	// INSERT ... ON CONFLICT DO NOTHING: the unique (user_email, message_id) index is the last guard
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&entries).Error
}
