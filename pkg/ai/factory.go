package ai

import (
	"fmt"
	"sort"
	"strings"

	"mail-event-processor/pkg/gemini"

	"github.com/rs/zerolog"
)

// Config holds AI provider configuration
type Config struct {
	DefaultProvider ProviderType

	// Gemini config
	GeminiAPIKey string
	GeminiModel  string

	// Ollama config. The getters, when set, take precedence over the static
	// values so the settings API can retarget Ollama at runtime.
	OllamaBaseURL    string // e.g., "http://localhost:11434"
	OllamaModel      string // e.g., "llama3", "mistral"
	GetOllamaBaseURL func() string
	GetOllamaModel   func() string

	// OpenAI config
	OpenAIAPIKey string
	OpenAIModel  string
}

// Registry resolves provider names to breaker-wrapped summarizers.
type Registry struct {
	providers       map[ProviderType]Summarizer
	defaultProvider ProviderType
	log             zerolog.Logger
}

// NewRegistry registers every provider whose credentials are present.
// Ollama needs none and is always registered; "auto" is registered whenever
// Ollama or Gemini is.
func NewRegistry(cfg Config, log zerolog.Logger) *Registry {
	r := &Registry{
		providers:       make(map[ProviderType]Summarizer),
		defaultProvider: cfg.DefaultProvider,
		log:             log.With().Str("component", "ai_registry").Logger(),
	}
	if r.defaultProvider == "" {
		r.defaultProvider = ProviderGemini
	}

	var geminiSvc Summarizer
	if cfg.GeminiAPIKey != "" {
		geminiSvc = r.Register(ProviderGemini, gemini.NewGeminiService(cfg.GeminiAPIKey, cfg.GeminiModel))
	}

	var ollamaSvc *OllamaService
	if cfg.GetOllamaBaseURL != nil && cfg.GetOllamaModel != nil {
		ollamaSvc = NewOllamaServiceWithGetters(cfg.GetOllamaBaseURL, cfg.GetOllamaModel)
	} else {
		ollamaSvc = NewOllamaService(cfg.OllamaBaseURL, cfg.OllamaModel)
	}
	ollamaGuarded := r.Register(ProviderOllama, ollamaSvc)

	if cfg.OpenAIAPIKey != "" {
		r.Register(ProviderOpenAI, NewOpenAIService(cfg.OpenAIAPIKey, cfg.OpenAIModel))
	}

	// auto reuses the guarded providers so their breakers are shared
	r.providers[ProviderAuto] = NewFallbackService(geminiSvc, ollamaGuarded, log)

	if _, ok := r.providers[r.defaultProvider]; !ok {
		r.log.Warn().Str("provider", string(r.defaultProvider)).Msg("default AI provider is not configured")
	}
	return r
}

// Register wraps s in a circuit breaker and makes it resolvable by name.
// Registering an existing name replaces it.
func (r *Registry) Register(name ProviderType, s Summarizer) Summarizer {
	guarded := withBreaker(name, s, r.log)
	r.providers[name] = guarded
	return guarded
}

// Get resolves a provider name. An empty name selects the default provider.
func (r *Registry) Get(name string) (Summarizer, error) {
	provider := ProviderType(strings.ToLower(strings.TrimSpace(name)))
	if provider == "" {
		provider = r.defaultProvider
	}
	s, ok := r.providers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	return s, nil
}

// DefaultProvider is the name used when a user has no provider configured.
func (r *Registry) DefaultProvider() ProviderType {
	return r.defaultProvider
}

// Names lists registered providers, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, string(name))
	}
	sort.Strings(names)
	return names
}
