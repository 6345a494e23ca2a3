package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "key-1", r.URL.Query().Get("key"))

		var body struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "the prompt", body.Contents[0].Parts[0].Text)

		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"short summary"}]}}]}`))
	}))
	defer server.Close()

	svc := NewGeminiService("key-1", "gemini-test")
	svc.BaseURL = server.URL

	got, err := svc.Summarize(context.Background(), "the prompt", "Context-Aware Summary")
	require.NoError(t, err)
	assert.Equal(t, "short summary", got)
}

func TestSummarize_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"RESOURCE_EXHAUSTED"}`))
	}))
	defer server.Close()

	svc := NewGeminiService("k", "")
	svc.BaseURL = server.URL

	_, err := svc.Summarize(context.Background(), "p", "l")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestSummarize_NoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	svc := NewGeminiService("k", "")
	svc.BaseURL = server.URL

	_, err := svc.Summarize(context.Background(), "p", "l")
	assert.Error(t, err)
}
