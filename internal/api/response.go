package api

import (
	"encoding/json"
	"net/http"
)

type Response struct {
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

type PaginatedResponse struct {
	Data       any   `json:"data"`
	TotalCount int64 `json:"total_count"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
}

// DeniedResponse is the quota-denial body. It is deliberately distinct
// from the generic error shape so clients can tell "out of allowance"
// apart from a server fault.
type DeniedResponse struct {
	Denied          bool    `json:"denied"`
	Used            float64 `json:"used"`
	Limit           float64 `json:"limit"`
	FallbackToLocal bool    `json:"fallback_to_local,omitempty"`
}

// FallbackResponse is the provider-failure body for endpoints whose
// clients hold an on-device fallback.
type FallbackResponse struct {
	Error           string `json:"error"`
	FallbackToLocal bool   `json:"fallback_to_local"`
}

// JSONQuotaDenied writes a 429 with the structured denial payload.
func JSONQuotaDenied(w http.ResponseWriter, used, limit float64, fallbackToLocal bool) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	json.NewEncoder(w).Encode(DeniedResponse{
		Denied:          true,
		Used:            used,
		Limit:           limit,
		FallbackToLocal: fallbackToLocal,
	})
}

// JSONProviderFailure writes a 502, optionally signalling local fallback.
func JSONProviderFailure(w http.ResponseWriter, message string, fallbackToLocal bool) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadGateway)
	json.NewEncoder(w).Encode(FallbackResponse{
		Error:           message,
		FallbackToLocal: fallbackToLocal,
	})
}

func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Response{Data: data})
}

func JSONMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Response{Message: message})
}

func JSONPaginated(w http.ResponseWriter, status int, data any, totalCount int64, page, pageSize int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(PaginatedResponse{
		Data:       data,
		TotalCount: totalCount,
		Page:       page,
		PageSize:   pageSize,
	})
}

func JSONError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Response{Error: err.Error()})
}

func JSONErrorMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Response{Error: message})
}
