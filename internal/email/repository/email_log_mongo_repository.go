package repository

import (
	"context"
	"errors"
	"time"

	emaildomain "mail-event-processor/internal/email/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collectionEmailLogs = "email_logs"

	mongoDuplicateKeyCode = 11000
)

// MongoEmailLogRepository implements EmailLogRepository on a MongoDB collection
type MongoEmailLogRepository struct {
	collection *mongo.Collection
}

// NewMongoEmailLogRepository creates an EmailLogRepository backed by MongoDB
func NewMongoEmailLogRepository(db *mongo.Database) *MongoEmailLogRepository {
	return &MongoEmailLogRepository{
		collection: db.Collection(collectionEmailLogs),
	}
}

// EnsureIndexes creates the unique (user_email, message_id) index.
func (r *MongoEmailLogRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_email", Value: 1}, {Key: "message_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "thread_id", Value: 1}},
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

func (r *MongoEmailLogRepository) GetLogByMessageID(ctx context.Context, userEmail, messageID string) (*emaildomain.EmailLog, error) {
	var entry emaildomain.EmailLog
	filter := bson.M{"user_email": userEmail, "message_id": messageID}
	if err := r.collection.FindOne(ctx, filter).Decode(&entry); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *MongoEmailLogRepository) GetLogsByMessageIDs(ctx context.Context, userEmail string, messageIDs []string) (map[string]*emaildomain.EmailLog, error) {
	if len(messageIDs) == 0 {
		return map[string]*emaildomain.EmailLog{}, nil
	}

	filter := bson.M{"user_email": userEmail, "message_id": bson.M{"$in": messageIDs}}
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}

	var entries []*emaildomain.EmailLog
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}

	result := make(map[string]*emaildomain.EmailLog, len(entries))
	for _, e := range entries {
		result[e.MessageID] = e
	}
	return result, nil
}

func (r *MongoEmailLogRepository) InsertLogs(ctx context.Context, entries []*emaildomain.EmailLog) error {
	if len(entries) == 0 {
		return nil
	}

	now := time.Now()
	docs := make([]interface{}, 0, len(entries))
	for _, e := range entries {
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		docs = append(docs, e)
	}

	_, err := r.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err == nil {
		return nil
	}
	if onlyDuplicateKeys(err) {
		return nil
	}
	return err
}

// onlyDuplicateKeys reports whether every write error is a unique index violation.
func onlyDuplicateKeys(err error) bool {
	var bwe mongo.BulkWriteException
	if !errors.As(err, &bwe) || bwe.WriteConcernError != nil || len(bwe.WriteErrors) == 0 {
		return false
	}
	for _, we := range bwe.WriteErrors {
		if we.Code != mongoDuplicateKeyCode {
			return false
		}
	}
	return true
}
