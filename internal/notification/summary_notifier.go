package notification

import (
	"context"
	"fmt"

	authrepo "mail-event-processor/internal/auth/repository"
	emaildomain "mail-event-processor/internal/email/domain"
	"mail-event-processor/pkg/fcm"

	"github.com/rs/zerolog"
)

const summaryPreviewLength = 200

// PushSender delivers one notification to many devices and reports the
// tokens that were rejected.
type PushSender interface {
	SendToDevices(ctx context.Context, tokens []string, notification fcm.NotificationData) ([]string, error)
}

// SummaryNotifier pushes each stored summary to the user's registered devices.
type SummaryNotifier struct {
	sender PushSender
	tokens authrepo.FCMTokenRepository
	log    zerolog.Logger
}

func NewSummaryNotifier(sender PushSender, tokens authrepo.FCMTokenRepository, log zerolog.Logger) *SummaryNotifier {
	return &SummaryNotifier{
		sender: sender,
		tokens: tokens,
		log:    log.With().Str("component", "summary_notifier").Logger(),
	}
}

func (n *SummaryNotifier) NotifySummary(ctx context.Context, entry *emaildomain.EmailLog) error {
	tokens, err := n.tokens.GetTokensByEmail(ctx, entry.UserEmail)
	if err != nil {
		return fmt.Errorf("failed to load device tokens: %w", err)
	}
	if len(tokens) == 0 {
		return nil
	}

	tokenStrings := make([]string, 0, len(tokens))
	for _, t := range tokens {
		tokenStrings = append(tokenStrings, t.Token)
	}

	failedTokens, err := n.sender.SendToDevices(ctx, tokenStrings, fcm.NotificationData{
		Title: entry.Subject,
		Body:  preview(entry.Summary, summaryPreviewLength),
		Data: map[string]string{
			"type":       "email_summary",
			"message_id": entry.MessageID,
			"thread_id":  entry.ThreadID,
			"direction":  string(entry.Direction),
		},
	})
	if err != nil {
		return err
	}

	n.log.Debug().
		Str("email", entry.UserEmail).
		Str("message_id", entry.MessageID).
		Int("devices", len(tokenStrings)-len(failedTokens)).
		Msg("summary pushed")

	for _, token := range failedTokens {
		if err := n.tokens.DeleteToken(ctx, token); err != nil {
			n.log.Warn().Err(err).Msg("failed to delete rejected device token")
		}
	}
	return nil
}

// preview cuts s to at most n runes.
func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
