// Package transport provides HTTP request/response types for the verify
// domain.
package transport

import "github.com/bytevault/bytevault/internal/verify/domain"

// Verification status discriminators.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// VerifyResponse is the response for a verification request. Status is the
// success/failure discriminator; Message explains a failure; Source is
// present on success.
type VerifyResponse struct {
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Source  *domain.Source `json:"source,omitempty"`
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
