package verifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

// statusResponse is the compiler service's wire envelope. A failure status
// carries the compiler diagnostics in Message.
type statusResponse struct {
	Status      string       `json:"status"`
	Message     string       `json:"message,omitempty"`
	Compilation *Compilation `json:"compilation,omitempty"`
}

// HTTPClient implements Client against the compiler service's REST API.
type HTTPClient struct {
	http   *resty.Client
	logger *slog.Logger
}

// NewHTTPClient creates a client for the compiler service at baseURL.
func NewHTTPClient(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)

	return &HTTPClient{http: client, logger: logger}
}

// VerifyMultiPart compiles loose source files.
func (c *HTTPClient) VerifyMultiPart(ctx context.Context, req *MultiPartRequest) (*Compilation, error) {
	return c.post(ctx, "/api/v1/verifier/multi-part", req)
}

// VerifyStandardJSON compiles a standard-json input document.
func (c *HTTPClient) VerifyStandardJSON(ctx context.Context, req *StandardJSONRequest) (*Compilation, error) {
	return c.post(ctx, "/api/v1/verifier/standard-json", req)
}

func (c *HTTPClient) post(ctx context.Context, path string, body any) (*Compilation, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&statusResponse{}).
		ForceContentType("application/json").
		Post(path)
	if err != nil {
		return nil, fmt.Errorf("calling compiler service: %w", err)
	}
	if !resp.IsSuccess() {
		c.logger.Warn("compiler service request failed",
			"path", path,
			"status_code", resp.StatusCode())
		return nil, fmt.Errorf("compiler service returned status %d", resp.StatusCode())
	}

	result, ok := resp.Result().(*statusResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected compiler service response")
	}
	if result.Status != "success" {
		return nil, &CompilationError{Message: result.Message}
	}
	if result.Compilation == nil {
		return nil, fmt.Errorf("compiler service returned success without a compilation")
	}
	return result.Compilation, nil
}
