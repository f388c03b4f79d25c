package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/parla-labs/parla/internal/config"
)

// TTSClient talks to the premium speech-synthesis endpoint.
type TTSClient struct {
	baseURL string
	apiKey  string
	voice   string
	http    *http.Client
}

func NewTTSClient(cfg config.TTSConfig) *TTSClient {
	return &TTSClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		voice:   cfg.Voice,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

type synthesizeRequest struct {
	Input string `json:"input"`
	Voice string `json:"voice"`
}

// Synthesize returns audio bytes for the given text. Voice falls back
// to the configured default when empty.
func (c *TTSClient) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if voice == "" {
		voice = c.voice
	}

	payload, err := json.Marshal(synthesizeRequest{Input: text, Voice: voice})
	if err != nil {
		return nil, fmt.Errorf("marshaling synthesis request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/audio/speech", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building synthesis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling tts provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, &ProviderError{Provider: "tts", Status: resp.StatusCode, Body: truncateBody(body)}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading audio response: %w", err)
	}
	return audio, nil
}
