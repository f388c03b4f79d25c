package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/parla-labs/parla/internal/metrics"
	"github.com/parla-labs/parla/internal/providers"
	"github.com/parla-labs/parla/internal/quota"
	"github.com/parla-labs/parla/internal/users"
)

// ChatProvider is the opaque metered conversation backend.
type ChatProvider interface {
	Complete(ctx context.Context, systemPrompt string, history []providers.Message, message string) (string, error)
}

// QuotaDeniedError is the admission-denied outcome. It is expected
// behavior, reported with the data a caller needs to render a message,
// and never logged as an error.
type QuotaDeniedError struct {
	Resource        string
	Used            float64
	Limit           float64
	FallbackToLocal bool
}

func (e *QuotaDeniedError) Error() string {
	return fmt.Sprintf("%s quota exhausted: %.2f/%.2f used", e.Resource, e.Used, e.Limit)
}

// TTSProvider is the opaque metered synthesis backend.
type TTSProvider interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// Service wraps each downstream call in the metered-operation sequence:
// admission check, downstream call, cost computation, usage recording.
// Transitions are one-directional and the wrapper never retries.
type Service struct {
	quotaSvc         *quota.Service
	chat             ChatProvider
	tts              TTSProvider
	ttsMaxInputChars int
}

func NewService(quotaSvc *quota.Service, chat ChatProvider, tts TTSProvider, ttsMaxInputChars int) *Service {
	return &Service{
		quotaSvc:         quotaSvc,
		chat:             chat,
		tts:              tts,
		ttsMaxInputChars: ttsMaxInputChars,
	}
}

// Converse runs one metered conversation turn. Once admission passes,
// the downstream call and the ledger write run on a detached context:
// a caller disconnect does not cancel them.
func (s *Service) Converse(ctx context.Context, user *users.User, req ChatRequest) (*ChatResponse, error) {
	adm, err := s.quotaSvc.AdmitConversation(ctx, user)
	if err != nil {
		return nil, err
	}
	if !adm.Admitted {
		s.quotaSvc.NoteDenial(ctx, user.ID, "minutes", adm.Used, adm.Limit)
		return nil, &QuotaDeniedError{
			Resource: "minutes",
			Used:     quota.RoundMinutes(adm.Used),
			Limit:    adm.Limit,
		}
	}

	opCtx := context.WithoutCancel(ctx)

	reply, err := s.chat.Complete(opCtx, req.SystemPrompt, req.History, req.Message)
	if err != nil {
		metrics.ProviderFailuresTotal.WithLabelValues("chat").Inc()
		slog.Error("chat provider call failed", "error", err, "user_id", user.ID)
		return nil, err
	}

	cost := conversationCost(reply)
	if cost > 0 {
		if err := s.quotaSvc.RecordMinutes(opCtx, user.ID, cost); err != nil {
			// The reply is already owed to the caller.
			metrics.RecordingFailuresTotal.Inc()
			slog.Error("recording conversation minutes failed", "error", err, "user_id", user.ID, "cost", cost)
		}
	}

	return &ChatResponse{Reply: reply, CostApplied: cost}, nil
}

// Synthesize runs one metered premium TTS call. Input is truncated to
// the configured maximum before it reaches the provider. Every TTS call
// has a fixed unit cost of one, regardless of text length.
func (s *Service) Synthesize(ctx context.Context, user *users.User, req TTSRequest) ([]byte, error) {
	adm, err := s.quotaSvc.AdmitTTS(ctx, user)
	if err != nil {
		return nil, err
	}
	if !adm.Admitted {
		s.quotaSvc.NoteDenial(ctx, user.ID, "tts", float64(adm.Used), float64(adm.Limit))
		return nil, &QuotaDeniedError{
			Resource:        "tts",
			Used:            float64(adm.Used),
			Limit:           float64(adm.Limit),
			FallbackToLocal: true,
		}
	}

	opCtx := context.WithoutCancel(ctx)

	text := truncateInput(req.Text, s.ttsMaxInputChars)
	audio, err := s.tts.Synthesize(opCtx, text, req.Voice)
	if err != nil {
		metrics.ProviderFailuresTotal.WithLabelValues("tts").Inc()
		slog.Error("tts provider call failed", "error", err, "user_id", user.ID)
		return nil, err
	}

	if err := s.quotaSvc.RecordTTSCall(opCtx, user.ID); err != nil {
		metrics.RecordingFailuresTotal.Inc()
		slog.Error("recording tts call failed", "error", err, "user_id", user.ID)
	}

	return audio, nil
}
