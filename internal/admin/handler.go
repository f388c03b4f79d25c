package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/parla-labs/parla/internal/api"
	"github.com/parla-labs/parla/internal/quota"
	"github.com/parla-labs/parla/internal/users"
)

// Handler provides the admin endpoints that intersect quota state:
// per-user allowances, the global TTS cap, the month-boundary ledger
// reset, and read-only usage inspection.
type Handler struct {
	userSvc  *users.Service
	quotaSvc *quota.Service
	validate *validator.Validate
}

func NewHandler(userSvc *users.Service, quotaSvc *quota.Service) *Handler {
	return &Handler{
		userSvc:  userSvc,
		quotaSvc: quotaSvc,
		validate: validator.New(),
	}
}

type SetAllowanceRequest struct {
	MinutesLimit float64 `json:"minutes_limit" validate:"min=0"`
}

type SetTTSLimitRequest struct {
	DailyLimit int `json:"daily_limit" validate:"min=0"`
}

// SetAllowance updates a user's monthly minute allowance.
func (h *Handler) SetAllowance(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid user id"))
		return
	}

	var req SetAllowanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	if err := h.userSvc.SetMinutesLimit(r.Context(), userID, req.MinutesLimit); err != nil {
		if err == users.ErrNotFound {
			api.HandleError(w, api.ErrNotFound)
			return
		}
		slog.Error("setting minutes allowance", "error", err, "user_id", userID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONMessage(w, http.StatusOK, "allowance updated")
}

// SetTTSLimit updates the global daily TTS call cap. Last write wins.
func (h *Handler) SetTTSLimit(w http.ResponseWriter, r *http.Request) {
	var req SetTTSLimitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	if err := h.quotaSvc.SetDailyTTSLimit(r.Context(), req.DailyLimit); err != nil {
		slog.Error("setting tts daily limit", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONMessage(w, http.StatusOK, "tts daily limit updated")
}

// ResetLedger removes minutes rows from months before the current one.
func (h *Handler) ResetLedger(w http.ResponseWriter, r *http.Request) {
	purged, err := h.quotaSvc.ResetPriorMonths(r.Context())
	if err != nil {
		slog.Error("resetting minutes ledger", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	slog.Info("minutes ledger reset", "rows_purged", purged)
	api.JSON(w, http.StatusOK, map[string]int64{"rows_purged": purged})
}

// GetUserUsage returns a user's consumption against both resources.
func (h *Handler) GetUserUsage(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid user id"))
		return
	}

	user, err := h.userSvc.GetByID(r.Context(), userID)
	if err != nil {
		slog.Error("loading user for usage", "error", err, "user_id", userID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if user == nil {
		api.HandleError(w, api.ErrNotFound)
		return
	}

	status, err := h.quotaSvc.Status(r.Context(), user)
	if err != nil {
		slog.Error("getting user usage", "error", err, "user_id", userID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, status)
}

// ListUsers returns every user with role and allowance.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.userSvc.List(r.Context())
	if err != nil {
		slog.Error("listing users", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, list)
}
