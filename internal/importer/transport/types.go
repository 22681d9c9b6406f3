// Package transport provides HTTP request/response types for the batch
// import domain.
package transport

import "github.com/bytevault/bytevault/internal/importer/domain"

// BatchImportResponse is the response for a batch import request.
type BatchImportResponse struct {
	CompilationFailure *CompilationFailure  `json:"compilationFailure,omitempty"`
	Results            []domain.ItemOutcome `json:"results,omitempty"`
}

// CompilationFailure reports that the shared sources did not compile; no
// per-item results exist in that case.
type CompilationFailure struct {
	Message string `json:"message"`
}

func toResponse(result *domain.BatchImportResult) BatchImportResponse {
	if result.CompilationFailure != "" {
		return BatchImportResponse{
			CompilationFailure: &CompilationFailure{Message: result.CompilationFailure},
		}
	}
	return BatchImportResponse{Results: result.Items}
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
