// Package transport provides HTTP handlers for the verify domain.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bytevault/bytevault/internal/auth"
	"github.com/bytevault/bytevault/internal/observability/metrics"
	"github.com/bytevault/bytevault/internal/verifier"
	"github.com/bytevault/bytevault/internal/verify/domain"
)

// Service defines the verify service interface for HTTP transport.
type Service interface {
	VerifyMultiPart(ctx context.Context, actor string, req domain.MultiPartRequest) (*domain.VerifyResult, error)
	VerifyStandardJSON(ctx context.Context, actor string, req domain.StandardJSONRequest) (*domain.VerifyResult, error)
}

// Handler handles HTTP requests for verification.
type Handler struct {
	svc Service
}

// NewHandler creates a new verify HTTP handler.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers the verify routes on a chi router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/verify/multi-part", h.handleVerifyMultiPart)
	r.Post("/verify/standard-json", h.handleVerifyStandardJSON)
}

func (h *Handler) handleVerifyMultiPart(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to read request body")
		return
	}

	var req domain.MultiPartRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON")
		return
	}

	result, err := h.svc.VerifyMultiPart(r.Context(), auth.ActorFromContext(r.Context()), req)
	h.writeVerifyResult(w, "multi-part", result, err)
}

func (h *Handler) handleVerifyStandardJSON(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to read request body")
		return
	}

	var req domain.StandardJSONRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON")
		return
	}

	result, err := h.svc.VerifyStandardJSON(r.Context(), auth.ActorFromContext(r.Context()), req)
	h.writeVerifyResult(w, "standard-json", result, err)
}

// writeVerifyResult maps service outcomes onto the wire. Compilation and
// match failures are verification verdicts, not transport errors, so they
// come back with status 200 and a failure discriminator.
func (h *Handler) writeVerifyResult(w http.ResponseWriter, kind string, result *domain.VerifyResult, err error) {
	if err != nil {
		var compErr *verifier.CompilationError
		switch {
		case errors.As(err, &compErr):
			metrics.VerificationRequest(kind, StatusFailure)
			writeJSON(w, http.StatusOK, VerifyResponse{Status: StatusFailure, Message: compErr.Error()})
		case errors.Is(err, domain.ErrNoMatch):
			metrics.VerificationRequest(kind, StatusFailure)
			writeJSON(w, http.StatusOK, VerifyResponse{Status: StatusFailure, Message: err.Error()})
		case errors.Is(err, domain.ErrInvalidRequest):
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to verify contract")
		}
		return
	}

	metrics.VerificationRequest(kind, StatusSuccess)
	writeJSON(w, http.StatusOK, VerifyResponse{Status: StatusSuccess, Source: result.Source})
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
