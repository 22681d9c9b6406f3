// Package transport provides HTTP response types for the lookup domain.
package transport

import (
	"github.com/bytevault/bytevault/internal/lookup/domain"
	verifydomain "github.com/bytevault/bytevault/internal/verify/domain"
)

// SourcesResponse lists the verified sources matching a lookup.
type SourcesResponse struct {
	Sources []verifydomain.Source `json:"sources"`
}

// ContractsResponse lists the deployments found at an address.
type ContractsResponse struct {
	Contracts []domain.ContractLookup `json:"contracts"`
}

// CodeResponse lists the code rows found through the keccak index.
type CodeResponse struct {
	Code []domain.CodeLookup `json:"code"`
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
