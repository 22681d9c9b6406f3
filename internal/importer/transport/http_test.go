package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bytevault/bytevault/internal/importer/domain"
)

// mockService implements Service for testing
type mockService struct {
	result *domain.BatchImportResult
	err    error

	lastActor string
}

func (m *mockService) BatchImport(ctx context.Context, actor string, req domain.BatchImportRequest) (*domain.BatchImportResult, error) {
	m.lastActor = actor
	return m.result, m.err
}

func setupRouter(svc Service) *chi.Mux {
	r := chi.NewRouter()
	h := NewHandler(svc)
	h.RegisterRoutes(r)
	return r
}

func postBatch(t *testing.T, router *chi.Mux, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/import/batch", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

const batchBody = `{
	"contracts": [{
		"chainId": 1,
		"address": "0x7d53f102f4d4aa014db4e10d6deec2009b3cda6b",
		"runtimeCode": "0x6001600155"
	}],
	"compilerVersion": "0.8.18+commit.87f61d96",
	"sourceFiles": {"a.sol": "contract A {}"}
}`

func TestHandler_BatchImport(t *testing.T) {
	svc := &mockService{
		result: &domain.BatchImportResult{
			Items: []domain.ItemOutcome{
				{Status: "success", CreationMatchType: "full", RuntimeMatchType: "partial"},
				{Status: "verification_failure", Message: "no match"},
			},
		},
	}
	router := setupRouter(svc)

	rec := postBatch(t, router, batchBody)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp BatchImportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp.CompilationFailure)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "success", resp.Results[0].Status)
	assert.Equal(t, "partial", resp.Results[0].RuntimeMatchType)
	assert.Equal(t, "verification_failure", resp.Results[1].Status)
	assert.Equal(t, "anonymous", svc.lastActor)
}

func TestHandler_BatchImport_CompilationFailure(t *testing.T) {
	svc := &mockService{
		result: &domain.BatchImportResult{CompilationFailure: "ParserError: expected ';'"},
	}
	router := setupRouter(svc)

	rec := postBatch(t, router, batchBody)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp BatchImportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.CompilationFailure)
	assert.Equal(t, "ParserError: expected ';'", resp.CompilationFailure.Message)
	assert.Empty(t, resp.Results)
}

func TestHandler_BatchImport_Errors(t *testing.T) {
	t.Run("invalid request", func(t *testing.T) {
		svc := &mockService{err: domain.ErrInvalidRequest}
		rec := postBatch(t, setupRouter(svc), batchBody)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		svc := &mockService{}
		rec := postBatch(t, setupRouter(svc), "{")
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Contains(t, resp, "error")
	})
}
