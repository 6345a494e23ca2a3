package ai

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

const (
	breakerConsecutiveFailures = 5
	breakerOpenTimeout         = 30 * time.Second
)

// breakerSummarizer guards a provider with a circuit breaker.
type breakerSummarizer struct {
	next Summarizer
	cb   *gobreaker.CircuitBreaker
}

func withBreaker(name ProviderType, next Summarizer, log zerolog.Logger) *breakerSummarizer {
	settings := gobreaker.Settings{
		Name:        "ai-" + string(name),
		MaxRequests: 1,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
		// Caller cancellation says nothing about provider health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}

	return &breakerSummarizer{
		next: next,
		cb:   gobreaker.NewCircuitBreaker(settings),
	}
}

func (b *breakerSummarizer) Summarize(ctx context.Context, prompt, label string) (string, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Summarize(ctx, prompt, label)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

func (b *breakerSummarizer) State() gobreaker.State {
	return b.cb.State()
}
