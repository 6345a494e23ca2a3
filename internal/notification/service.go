// Package notification receives Gmail watch notifications from Pub/Sub and
// hands them to the event loop.
package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"mail-event-processor/internal/email/usecase"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// GmailNotification is the payload Gmail publishes for a watched mailbox.
type GmailNotification struct {
	EmailAddress string    `json:"emailAddress"`
	HistoryID    HistoryID `json:"historyId"`
}

// HistoryID accepts both the numeric and the string form of historyId.
type HistoryID string

func (h *HistoryID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*h = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*h = HistoryID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("historyId must be a number or string: %w", err)
	}
	if _, err := strconv.ParseUint(n.String(), 10, 64); err != nil {
		return fmt.Errorf("historyId must be a non-negative integer: %w", err)
	}
	*h = HistoryID(n.String())
	return nil
}

// Scheduler queues events, waiting while the queue is full.
type Scheduler interface {
	Schedule(ctx context.Context, ev usecase.Event) error
}

// Service bridges the Pub/Sub subscription to the event loop. It only decodes
// and schedules; processing happens on the loop's workers.
type Service struct {
	pubsubClient *pubsub.Client
	scheduler    Scheduler
	topicName    string
	subName      string
	// Caps unacked messages held by Receive, zero keeps the client default
	maxOutstanding int
	log            zerolog.Logger
}

func NewService(ctx context.Context, projectID, topicName, subName, credentials string, scheduler Scheduler, log zerolog.Logger) (*Service, error) {
	client, err := pubsub.NewClient(ctx, projectID, CredentialsOptions(credentials)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}
	return NewServiceWithClient(client, topicName, subName, scheduler, log), nil
}

func NewServiceWithClient(client *pubsub.Client, topicName, subName string, scheduler Scheduler, log zerolog.Logger) *Service {
	return &Service{
		pubsubClient: client,
		scheduler:    scheduler,
		topicName:    topicName,
		subName:      subName,
		log:          log.With().Str("component", "delivery_bridge").Logger(),
	}
}

// SetMaxOutstandingMessages limits how many notifications Receive hands out
// before earlier ones are acked. Sized to the event queue, it keeps callbacks
// from piling up behind a full queue.
func (s *Service) SetMaxOutstandingMessages(n int) {
	s.maxOutstanding = n
}

// CredentialsOptions accepts either a service account file path or the JSON
// document itself. Empty means application default credentials.
func CredentialsOptions(credentials string) []option.ClientOption {
	credentials = strings.TrimSpace(credentials)
	switch {
	case credentials == "":
		return nil
	case strings.HasPrefix(credentials, "{"):
		return []option.ClientOption{option.WithCredentialsJSON([]byte(credentials))}
	default:
		return []option.ClientOption{option.WithCredentialsFile(credentials)}
	}
}

// Start receives until ctx is cancelled. A message is acked once it has been
// queued or discarded, and nacked for redelivery when receiving stops while
// it waits for room in the queue.
func (s *Service) Start(ctx context.Context) error {
	sub, err := s.ensureSubscription(ctx)
	if err != nil {
		return err
	}
	if s.maxOutstanding > 0 {
		sub.ReceiveSettings.MaxOutstandingMessages = s.maxOutstanding
	}

	s.log.Info().Str("subscription", s.subName).Int("max_outstanding", sub.ReceiveSettings.MaxOutstandingMessages).Msg("listening for mailbox notifications")
	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if err := s.OnNotification(ctx, msg.Data); err != nil {
			msg.Nack()
			return
		}
		msg.Ack()
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("pubsub receive stopped: %w", err)
	}
	s.log.Info().Msg("stopped receiving notifications")
	return nil
}

// ensureSubscription returns the configured subscription, creating it on the
// topic when it does not exist yet.
func (s *Service) ensureSubscription(ctx context.Context) (*pubsub.Subscription, error) {
	sub := s.pubsubClient.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check subscription %s: %w", s.subName, err)
	}
	if exists {
		return sub, nil
	}

	if s.topicName == "" {
		return nil, fmt.Errorf("subscription %s does not exist and no topic is configured", s.subName)
	}
	topic := s.pubsubClient.Topic(s.topicName)
	topicExists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check topic %s: %w", s.topicName, err)
	}
	if !topicExists {
		return nil, fmt.Errorf("topic %s does not exist, cannot create subscription", s.topicName)
	}

	sub, err = s.pubsubClient.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
		Topic:       topic,
		AckDeadline: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription %s: %w", s.subName, err)
	}
	s.log.Info().Str("subscription", s.subName).Str("topic", s.topicName).Msg("created subscription")
	return sub, nil
}

// OnNotification decodes one payload and schedules it, waiting while the
// event queue is full but never for processing. Bad payloads and a closed
// loop are logged and reported as handled. A non-nil error means the event
// was not queued and the message should be redelivered.
func (s *Service) OnNotification(ctx context.Context, data []byte) error {
	var n GmailNotification
	if err := json.Unmarshal(data, &n); err != nil {
		s.log.Warn().Err(err).Str("payload", truncate(string(data), 200)).Msg("discarding malformed notification")
		return nil
	}
	n.EmailAddress = strings.TrimSpace(n.EmailAddress)
	if n.EmailAddress == "" {
		s.log.Warn().Str("payload", truncate(string(data), 200)).Msg("discarding notification without emailAddress")
		return nil
	}

	log := s.log.With().Str("email", n.EmailAddress).Str("history_id", string(n.HistoryID)).Logger()
	err := s.scheduler.Schedule(ctx, usecase.Event{
		AccountEmail:  n.EmailAddress,
		HistoryMarker: string(n.HistoryID),
		ReceivedAt:    time.Now(),
	})
	switch {
	case err == nil:
		log.Debug().Msg("event scheduled")
		return nil
	case errors.Is(err, usecase.ErrLoopClosed):
		log.Error().Err(err).Msg("failed to schedule event")
		return nil
	default:
		log.Warn().Err(err).Msg("event not scheduled, leaving it for redelivery")
		return fmt.Errorf("schedule event for %s: %w", n.EmailAddress, err)
	}
}

// Close releases the Pub/Sub client.
func (s *Service) Close() error {
	return s.pubsubClient.Close()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
