package ai

import (
	"context"
	"errors"
)

// Summarizer turns a fully assembled prompt into a summary.
// Implement this interface to add new AI providers.
type Summarizer interface {
	// Summarize sends prompt to the backend. label names the kind of summary
	// being produced and is only used for diagnostics.
	Summarize(ctx context.Context, prompt, label string) (string, error)
}

// ProviderType represents the AI provider type
type ProviderType string

const (
	ProviderGemini ProviderType = "gemini"
	ProviderOllama ProviderType = "ollama"
	ProviderOpenAI ProviderType = "openai"
	ProviderAuto   ProviderType = "auto"
)

// ErrUnknownProvider is returned for provider names that are not registered.
var ErrUnknownProvider = errors.New("unknown AI provider")
