// Package transport provides HTTP handlers for the lookup domain.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bytevault/bytevault/internal/lookup/domain"
	"github.com/bytevault/bytevault/internal/observability/metrics"
	verifydomain "github.com/bytevault/bytevault/internal/verify/domain"
)

// Service defines the lookup service interface for HTTP transport.
type Service interface {
	LookupByBytecode(ctx context.Context, req domain.BytecodeLookupRequest) ([]verifydomain.Source, error)
	LookupByAddress(ctx context.Context, chainID int64, address string) ([]domain.ContractLookup, error)
	LookupByEventSelector(ctx context.Context, selector string) ([]verifydomain.Source, error)
	LookupCodeByKeccak(ctx context.Context, digest string) ([]domain.CodeLookup, error)
}

// Handler handles HTTP requests for lookups.
type Handler struct {
	svc Service
}

// NewHandler creates a new lookup HTTP handler.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers the lookup routes on a chi router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/lookup/bytecode", h.handleLookupByBytecode)
	r.Get("/lookup/chains/{chainID}/contracts/{address}", h.handleLookupByAddress)
	r.Get("/lookup/events/{selector}", h.handleLookupByEventSelector)
	r.Get("/lookup/code/{keccakDigest}", h.handleLookupCodeByKeccak)
}

func (h *Handler) handleLookupByBytecode(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to read request body")
		return
	}

	var req domain.BytecodeLookupRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON")
		return
	}

	sources, err := h.svc.LookupByBytecode(r.Context(), req)
	if err != nil {
		writeLookupError(w, "bytecode", err)
		return
	}
	metrics.Lookup("bytecode", "success")
	writeJSON(w, http.StatusOK, SourcesResponse{Sources: sources})
}

func (h *Handler) handleLookupByAddress(w http.ResponseWriter, r *http.Request) {
	chainID, err := strconv.ParseInt(chi.URLParam(r, "chainID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid chain ID")
		return
	}

	lookups, err := h.svc.LookupByAddress(r.Context(), chainID, chi.URLParam(r, "address"))
	if err != nil {
		writeLookupError(w, "address", err)
		return
	}
	metrics.Lookup("address", "success")
	writeJSON(w, http.StatusOK, ContractsResponse{Contracts: lookups})
}

func (h *Handler) handleLookupByEventSelector(w http.ResponseWriter, r *http.Request) {
	sources, err := h.svc.LookupByEventSelector(r.Context(), chi.URLParam(r, "selector"))
	if err != nil {
		writeLookupError(w, "event", err)
		return
	}
	metrics.Lookup("event", "success")
	writeJSON(w, http.StatusOK, SourcesResponse{Sources: sources})
}

func (h *Handler) handleLookupCodeByKeccak(w http.ResponseWriter, r *http.Request) {
	lookups, err := h.svc.LookupCodeByKeccak(r.Context(), chi.URLParam(r, "keccakDigest"))
	if err != nil {
		writeLookupError(w, "code", err)
		return
	}
	metrics.Lookup("code", "success")
	writeJSON(w, http.StatusOK, CodeResponse{Code: lookups})
}

func writeLookupError(w http.ResponseWriter, kind string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		metrics.Lookup(kind, "not_found")
		writeError(w, http.StatusNotFound, "NOT_FOUND", "No matching contract found")
	case errors.Is(err, domain.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	default:
		metrics.Lookup(kind, "error")
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Lookup failed")
	}
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
