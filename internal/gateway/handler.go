package gateway

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/parla-labs/parla/internal/api"
	"github.com/parla-labs/parla/internal/auth"
	"github.com/parla-labs/parla/internal/providers"
	"github.com/parla-labs/parla/internal/quota"
	"github.com/parla-labs/parla/internal/users"
)

type Handler struct {
	svc      *Service
	quotaSvc *quota.Service
	userSvc  *users.Service
	validate *validator.Validate
}

func NewHandler(svc *Service, quotaSvc *quota.Service, userSvc *users.Service) *Handler {
	return &Handler{
		svc:      svc,
		quotaSvc: quotaSvc,
		userSvc:  userSvc,
		validate: validator.New(),
	}
}

// currentUser loads the full user row for the authenticated caller.
// Admission needs the allowance and exemption, not just the claims.
func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) *users.User {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return nil
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		api.HandleError(w, api.ErrUnauthorized)
		return nil
	}
	user, err := h.userSvc.GetByID(r.Context(), userID)
	if err != nil {
		slog.Error("loading user for metered request", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return nil
	}
	if user == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return nil
	}
	return user
}

// Chat handles a metered conversation turn.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	resp, err := h.svc.Converse(r.Context(), user, req)
	if err != nil {
		var denied *QuotaDeniedError
		if errors.As(err, &denied) {
			api.JSONQuotaDenied(w, denied.Used, denied.Limit, denied.FallbackToLocal)
			return
		}
		var provErr *providers.ProviderError
		if errors.As(err, &provErr) {
			api.JSONProviderFailure(w, "conversation provider unavailable", false)
			return
		}
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, resp)
}

// TTS handles a metered premium synthesis call. Quota denial and
// provider failure both tell the client to fall back to on-device
// synthesis instead of failing hard.
func (h *Handler) TTS(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}

	var req TTSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	audio, err := h.svc.Synthesize(r.Context(), user, req)
	if err != nil {
		var denied *QuotaDeniedError
		if errors.As(err, &denied) {
			api.JSONQuotaDenied(w, denied.Used, denied.Limit, denied.FallbackToLocal)
			return
		}
		var provErr *providers.ProviderError
		if errors.As(err, &provErr) {
			api.JSONProviderFailure(w, "tts provider unavailable", true)
			return
		}
		api.JSONProviderFailure(w, "tts request failed", true)
		return
	}

	api.JSON(w, http.StatusOK, TTSResponse{
		AudioBase64: base64.StdEncoding.EncodeToString(audio),
		CostApplied: 1,
	})
}

// Usage returns the caller's consumption against both metered resources.
func (h *Handler) Usage(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}

	status, err := h.quotaSvc.Status(r.Context(), user)
	if err != nil {
		slog.Error("getting usage status", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, status)
}
