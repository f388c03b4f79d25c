package gateway

import "github.com/parla-labs/parla/internal/providers"

type ChatRequest struct {
	Message      string              `json:"message" validate:"required,min=1"`
	History      []providers.Message `json:"history" validate:"omitempty,dive"`
	SystemPrompt string              `json:"system_prompt" validate:"omitempty,max=4000"`
}

// ChatResponse is returned on a successful metered conversation turn.
type ChatResponse struct {
	Reply       string  `json:"reply"`
	CostApplied float64 `json:"cost_applied"`
}

type TTSRequest struct {
	Text  string `json:"text" validate:"required,min=1"`
	Voice string `json:"voice" validate:"omitempty,max=64"`
}

// TTSResponse carries the synthesized audio base64-encoded. Fallback is
// always false on success; denial and provider-failure paths signal it
// through their own response shapes.
type TTSResponse struct {
	AudioBase64 string `json:"audio_base64"`
	CostApplied int    `json:"cost_applied"`
}
