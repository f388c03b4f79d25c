package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parla-labs/parla/internal/config"
)

func chatServer(t *testing.T, handler http.HandlerFunc) *ChatClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewChatClient(config.LLMConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Model:   "test-model",
		Timeout: 5 * time.Second,
	})
}

func TestChatClient_Complete(t *testing.T) {
	client := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Model    string    `json:"model"`
			Messages []Message `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 3)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[2].Role)
		assert.Equal(t, "hola", req.Messages[2].Content)

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "¡Hola! ¿Cómo estás?"}},
			},
		})
	})

	history := []Message{{Role: "user", Content: "hi"}}
	reply, err := client.Complete(context.Background(), "You are a tutor.", history, "hola")
	require.NoError(t, err)
	assert.Equal(t, "¡Hola! ¿Cómo estás?", reply)
}

func TestChatClient_Non2xxIsProviderError(t *testing.T) {
	client := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	_, err := client.Complete(context.Background(), "", nil, "hello")
	require.Error(t, err)

	var provErr *ProviderError
	require.True(t, errors.As(err, &provErr))
	assert.Equal(t, http.StatusTooManyRequests, provErr.Status)
	assert.Equal(t, "chat", provErr.Provider)
}

func TestChatClient_EmptyChoices(t *testing.T) {
	client := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	})

	_, err := client.Complete(context.Background(), "", nil, "hello")
	assert.Error(t, err)
}

func TestTTSClient_Synthesize(t *testing.T) {
	audio := []byte{0x49, 0x44, 0x33, 0x04} // mp3-ish header bytes
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/speech", r.URL.Path)

		var req struct {
			Input string `json:"input"`
			Voice string `json:"voice"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "buenos días", req.Input)
		assert.Equal(t, "alloy", req.Voice)

		w.Write(audio)
	}))
	t.Cleanup(srv.Close)

	client := NewTTSClient(config.TTSConfig{
		BaseURL: srv.URL, APIKey: "k", Voice: "alloy", Timeout: 5 * time.Second,
	})

	got, err := client.Synthesize(context.Background(), "buenos días", "")
	require.NoError(t, err)
	assert.Equal(t, audio, got)
}

func TestTTSClient_Non2xxIsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	client := NewTTSClient(config.TTSConfig{
		BaseURL: srv.URL, APIKey: "k", Voice: "alloy", Timeout: 5 * time.Second,
	})

	_, err := client.Synthesize(context.Background(), "text", "")
	require.Error(t, err)

	var provErr *ProviderError
	require.True(t, errors.As(err, &provErr))
	assert.Equal(t, http.StatusBadGateway, provErr.Status)
	assert.Equal(t, "tts", provErr.Provider)
}
