// Package transport provides HTTP handlers for the batch import domain.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bytevault/bytevault/internal/auth"
	"github.com/bytevault/bytevault/internal/importer/domain"
	"github.com/bytevault/bytevault/internal/observability/metrics"
)

// Service defines the importer service interface for HTTP transport.
type Service interface {
	BatchImport(ctx context.Context, actor string, req domain.BatchImportRequest) (*domain.BatchImportResult, error)
}

// Handler handles HTTP requests for batch imports.
type Handler struct {
	svc Service
}

// NewHandler creates a new importer HTTP handler.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers the importer routes on a chi router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/import/batch", h.handleBatchImport)
}

func (h *Handler) handleBatchImport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to read request body")
		return
	}

	var req domain.BatchImportRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON")
		return
	}

	result, err := h.svc.BatchImport(r.Context(), auth.ActorFromContext(r.Context()), req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidRequest):
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to import contracts")
		}
		return
	}

	for _, item := range result.Items {
		metrics.ImportItem(item.Status)
	}
	writeJSON(w, http.StatusOK, toResponse(result))
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
