package ai

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSummarizer struct {
	out   string
	err   error
	calls atomic.Int32
}

func (s *stubSummarizer) Summarize(ctx context.Context, prompt, label string) (string, error) {
	s.calls.Add(1)
	return s.out, s.err
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry(Config{GeminiAPIKey: "k"}, zerolog.Nop())

	assert.Equal(t, ProviderGemini, r.DefaultProvider())
	assert.Equal(t, []string{"auto", "gemini", "ollama"}, r.Names())

	_, err := r.Get("")
	require.NoError(t, err)
	_, err = r.Get(" Ollama ")
	require.NoError(t, err)

	_, err = r.Get("openai")
	assert.True(t, errors.Is(err, ErrUnknownProvider))
	_, err = r.Get("claude")
	assert.True(t, errors.Is(err, ErrUnknownProvider))
}

func TestRegistry_MissingDefault(t *testing.T) {
	r := NewRegistry(Config{}, zerolog.Nop())

	_, err := r.Get("")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry(Config{}, zerolog.Nop())
	stub := &stubSummarizer{out: "ok"}
	r.Register(ProviderType("stub"), stub)

	s, err := r.Get("stub")
	require.NoError(t, err)
	out, err := s.Summarize(context.Background(), "p", "l")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.EqualValues(t, 1, stub.calls.Load())
}

func TestBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	stub := &stubSummarizer{err: errors.New("boom")}
	b := withBreaker("test", stub, zerolog.Nop())

	for i := 0; i < breakerConsecutiveFailures; i++ {
		_, err := b.Summarize(context.Background(), "p", "l")
		assert.EqualError(t, err, "boom")
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	_, err := b.Summarize(context.Background(), "p", "l")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.EqualValues(t, breakerConsecutiveFailures, stub.calls.Load())
}

func TestBreaker_IgnoresCancellation(t *testing.T) {
	stub := &stubSummarizer{err: context.Canceled}
	b := withBreaker("test", stub, zerolog.Nop())

	for i := 0; i < breakerConsecutiveFailures+1; i++ {
		_, _ = b.Summarize(context.Background(), "p", "l")
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestFallback(t *testing.T) {
	ctx := context.Background()

	t.Run("ollama first", func(t *testing.T) {
		ollama := &stubSummarizer{out: "from ollama"}
		gemini := &stubSummarizer{out: "from gemini"}
		out, err := NewFallbackService(gemini, ollama, zerolog.Nop()).Summarize(ctx, "p", "l")
		require.NoError(t, err)
		assert.Equal(t, "from ollama", out)
		assert.EqualValues(t, 0, gemini.calls.Load())
	})

	t.Run("gemini on ollama failure", func(t *testing.T) {
		ollama := &stubSummarizer{err: errors.New("dial tcp: connection refused")}
		gemini := &stubSummarizer{out: "from gemini"}
		out, err := NewFallbackService(gemini, ollama, zerolog.Nop()).Summarize(ctx, "p", "l")
		require.NoError(t, err)
		assert.Equal(t, "from gemini", out)
	})

	t.Run("retry ollama on gemini quota", func(t *testing.T) {
		ollama := &stubSummarizer{err: errors.New("timeout")}
		gemini := &stubSummarizer{err: errors.New("gemini API error (429): RESOURCE_EXHAUSTED")}
		_, err := NewFallbackService(gemini, ollama, zerolog.Nop()).Summarize(ctx, "p", "l")
		require.Error(t, err)
		assert.EqualValues(t, 2, ollama.calls.Load())
		assert.Contains(t, err.Error(), "timeout")
	})

	t.Run("ollama error kept without gemini", func(t *testing.T) {
		ollamaErr := errors.New("ollama API error (500): model \"llama3\" not found")
		ollama := &stubSummarizer{err: ollamaErr}
		_, err := NewFallbackService(nil, ollama, zerolog.Nop()).Summarize(ctx, "p", "l")
		require.Error(t, err)
		assert.ErrorIs(t, err, ollamaErr)
		assert.Contains(t, err.Error(), "model \"llama3\" not found")
	})

	t.Run("gemini error kept", func(t *testing.T) {
		geminiErr := errors.New("gemini API error (400): API key not valid")
		ollama := &stubSummarizer{err: errors.New("dial tcp: connection refused")}
		gemini := &stubSummarizer{err: geminiErr}
		_, err := NewFallbackService(gemini, ollama, zerolog.Nop()).Summarize(ctx, "p", "l")
		assert.ErrorIs(t, err, geminiErr)
	})

	t.Run("nothing configured", func(t *testing.T) {
		_, err := NewFallbackService(nil, nil, zerolog.Nop()).Summarize(ctx, "p", "l")
		assert.Error(t, err)
	})
}

func TestErrorClassifiers(t *testing.T) {
	assert.True(t, isConnectionError(errors.New("Post http://x: dial tcp 127.0.0.1:11434: connection refused")))
	assert.False(t, isConnectionError(errors.New("bad request")))
	assert.False(t, isConnectionError(nil))

	assert.True(t, isQuotaError(errors.New("Too Many Requests")))
	assert.False(t, isQuotaError(errors.New("internal")))
}

func TestOllamaService_Summarize(t *testing.T) {
	var model atomic.Value
	model.Store("llama3")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		_, _ = w.Write([]byte(`{"response":"summary text","done":true}`))
	}))
	defer server.Close()

	svc := NewOllamaServiceWithGetters(
		func() string { return server.URL },
		func() string { return model.Load().(string) },
	)

	out, err := svc.Summarize(context.Background(), "prompt", "Context-Aware Summary")
	require.NoError(t, err)
	assert.Equal(t, "summary text", out)
}

func TestOllamaService_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := NewOllamaService(server.URL, "missing").Summarize(context.Background(), "p", "l")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestOpenAIService_Summarize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"openai summary"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = server.URL + "/v1"

	out, err := NewOpenAIServiceWithConfig(cfg, "").Summarize(context.Background(), "p", "l")
	require.NoError(t, err)
	assert.Equal(t, "openai summary", out)
}
