package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/rs/zerolog"
)

// FallbackService backs the "auto" provider: Ollama first (local, free),
// Gemini when Ollama is unavailable.
type FallbackService struct {
	gemini Summarizer
	ollama Summarizer
	log    zerolog.Logger
}

// NewFallbackService creates a new fallback service. Either provider may be nil.
func NewFallbackService(gemini, ollama Summarizer, log zerolog.Logger) *FallbackService {
	return &FallbackService{
		gemini: gemini,
		ollama: ollama,
		log:    log.With().Str("component", "ai_fallback").Logger(),
	}
}

// isConnectionError checks if the error is a network/connection error
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return containsAny(err.Error(),
		"connection refused",
		"no such host",
		"network is unreachable",
		"connection reset",
		"timeout",
		"dial tcp",
		"EOF",
	)
}

// isQuotaError checks if the error indicates API quota exhaustion (429)
func isQuotaError(err error) bool {
	if err == nil {
		return false
	}

	return containsAny(err.Error(),
		"429",
		"quota",
		"rate limit",
		"too many requests",
		"resource exhausted",
		"RESOURCE_EXHAUSTED",
	)
}

func containsAny(s string, indicators ...string) bool {
	s = strings.ToLower(s)
	for _, indicator := range indicators {
		if strings.Contains(s, strings.ToLower(indicator)) {
			return true
		}
	}
	return false
}

// Summarize tries Ollama first, falls back to Gemini, and gives Ollama one more
// chance when Gemini is out of quota. The returned error wraps the last
// provider failure.
func (f *FallbackService) Summarize(ctx context.Context, prompt, label string) (string, error) {
	var ollamaErr error
	if f.ollama != nil {
		result, err := f.ollama.Summarize(ctx, prompt, label)
		if err == nil {
			return result, nil
		}
		ollamaErr = err

		if isConnectionError(err) {
			f.log.Warn().Err(err).Msg("ollama unreachable, falling back to gemini")
		} else {
			f.log.Warn().Err(err).Msg("ollama error, falling back to gemini")
		}
	}

	if f.gemini == nil {
		if ollamaErr != nil {
			return "", fmt.Errorf("ollama summarization failed, gemini not configured: %w", ollamaErr)
		}
		return "", errors.New("no AI provider available for summarization")
	}

	result, err := f.gemini.Summarize(ctx, prompt, label)
	if err == nil {
		return result, nil
	}

	if isQuotaError(err) && f.ollama != nil {
		f.log.Warn().Err(err).Msg("gemini quota exhausted, retrying ollama")
		result, retryErr := f.ollama.Summarize(ctx, prompt, label)
		if retryErr != nil {
			return "", fmt.Errorf("ollama retry after gemini quota error failed: %w", retryErr)
		}
		return result, nil
	}

	return "", fmt.Errorf("gemini summarization failed: %w", err)
}
