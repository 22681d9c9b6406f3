// Package client provides a Go client for the Bytevault API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Client is a Bytevault API client
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// New creates a new Bytevault client
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Source is a verified source entry returned by verification and lookups
type Source struct {
	FileName         string            `json:"fileName"`
	ContractName     string            `json:"contractName"`
	CompilerVersion  string            `json:"compilerVersion"`
	CompilerSettings json.RawMessage   `json:"compilerSettings"`
	SourceType       string            `json:"sourceType"`
	SourceFiles      map[string]string `json:"sourceFiles"`

	ABI                  json.RawMessage `json:"abi,omitempty"`
	ConstructorArguments string          `json:"constructorArguments,omitempty"`
	MatchType            string          `json:"matchType"`

	CompilationArtifacts      json.RawMessage   `json:"compilationArtifacts,omitempty"`
	CreationInputArtifacts    json.RawMessage   `json:"creationInputArtifacts,omitempty"`
	DeployedBytecodeArtifacts json.RawMessage   `json:"deployedBytecodeArtifacts,omitempty"`
	Libraries                 map[string]string `json:"libraries,omitempty"`
}

// DeploymentMetadata ties a verification request to an on-chain deployment
type DeploymentMetadata struct {
	ChainID          int64  `json:"chainId"`
	ContractAddress  string `json:"contractAddress"`
	TransactionHash  string `json:"transactionHash,omitempty"`
	BlockNumber      *int64 `json:"blockNumber,omitempty"`
	TransactionIndex *int64 `json:"transactionIndex,omitempty"`
	Deployer         string `json:"deployer,omitempty"`
	RuntimeCode      string `json:"runtimeCode,omitempty"`
	CreationCode     string `json:"creationCode,omitempty"`
}

// VerifyMultiPartRequest is the request for multi-part source verification
type VerifyMultiPartRequest struct {
	Bytecode         string            `json:"bytecode"`
	BytecodeType     string            `json:"bytecodeType"`
	CompilerVersion  string            `json:"compilerVersion"`
	EvmVersion       string            `json:"evmVersion,omitempty"`
	OptimizationRuns *int              `json:"optimizationRuns,omitempty"`
	SourceFiles      map[string]string `json:"sourceFiles"`
	Libraries        map[string]string `json:"libraries,omitempty"`

	Metadata *DeploymentMetadata `json:"metadata,omitempty"`
}

// VerifyStandardJSONRequest is the request for standard-json verification
type VerifyStandardJSONRequest struct {
	Bytecode        string          `json:"bytecode"`
	BytecodeType    string          `json:"bytecodeType"`
	CompilerVersion string          `json:"compilerVersion"`
	Input           json.RawMessage `json:"input"`

	Metadata *DeploymentMetadata `json:"metadata,omitempty"`
}

// VerifyResult is the outcome of a verification request. Status is "success"
// or "failure"; Message explains a failure; Source is present on success.
type VerifyResult struct {
	Status  string  `json:"status"`
	Message string  `json:"message,omitempty"`
	Source  *Source `json:"source,omitempty"`
}

// ContractImport identifies one on-chain deployment in a batch import
type ContractImport struct {
	ChainID          int64  `json:"chainId"`
	Address          string `json:"address"`
	TransactionHash  string `json:"transactionHash,omitempty"`
	BlockNumber      *int64 `json:"blockNumber,omitempty"`
	TransactionIndex *int64 `json:"transactionIndex,omitempty"`
	Deployer         string `json:"deployer,omitempty"`
	CreationCode     string `json:"creationCode,omitempty"`
	RuntimeCode      string `json:"runtimeCode,omitempty"`
}

// BatchImportRequest imports many deployments of one compiled contract
type BatchImportRequest struct {
	Contracts       []ContractImport `json:"contracts"`
	CompilerVersion string           `json:"compilerVersion"`

	SourceFiles map[string]string `json:"sourceFiles,omitempty"`
	Input       json.RawMessage   `json:"input,omitempty"`

	EvmVersion       string            `json:"evmVersion,omitempty"`
	OptimizationRuns *int              `json:"optimizationRuns,omitempty"`
	Libraries        map[string]string `json:"libraries,omitempty"`
}

// ItemOutcome is the per-deployment outcome of a batch import
type ItemOutcome struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`

	CreationMatchType string `json:"creationMatchType,omitempty"`
	RuntimeMatchType  string `json:"runtimeMatchType,omitempty"`
}

// CompilationFailure reports that the shared sources did not compile
type CompilationFailure struct {
	Message string `json:"message"`
}

// BatchImportResult is the response for a batch import
type BatchImportResult struct {
	CompilationFailure *CompilationFailure `json:"compilationFailure,omitempty"`
	Results            []ItemOutcome       `json:"results,omitempty"`
}

// Contract is a verified deployment found at an address
type Contract struct {
	ChainID          int64  `json:"chainId"`
	Address          string `json:"address"`
	TransactionHash  string `json:"transactionHash"`
	BlockNumber      int64  `json:"blockNumber"`
	TransactionIndex int64  `json:"transactionIndex"`
	Deployer         string `json:"deployer,omitempty"`

	Sources []Source `json:"sources"`
}

// CodeEntry is a stored code blob addressed by its keccak digest
type CodeEntry struct {
	Digest       string `json:"digest"`
	KeccakDigest string `json:"keccakDigest"`
	Code         string `json:"code"`
}

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// VerifyMultiPart verifies bytecode against multi-part sources
func (c *Client) VerifyMultiPart(ctx context.Context, req VerifyMultiPartRequest) (*VerifyResult, error) {
	var resp VerifyResult
	if err := c.post(ctx, "/api/v1/verify/multi-part", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerifyStandardJSON verifies bytecode against a standard-json input
func (c *Client) VerifyStandardJSON(ctx context.Context, req VerifyStandardJSONRequest) (*VerifyResult, error) {
	var resp VerifyResult
	if err := c.post(ctx, "/api/v1/verify/standard-json", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// BatchImport imports many deployments sharing one set of sources
func (c *Client) BatchImport(ctx context.Context, req BatchImportRequest) (*BatchImportResult, error) {
	var resp BatchImportResult
	if err := c.post(ctx, "/api/v1/import/batch", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LookupBytecode finds verified sources matching raw bytecode
func (c *Client) LookupBytecode(ctx context.Context, bytecode, bytecodeType string) ([]Source, error) {
	body := map[string]string{
		"bytecode":     bytecode,
		"bytecodeType": bytecodeType,
	}
	var resp struct {
		Sources []Source `json:"sources"`
	}
	if err := c.post(ctx, "/api/v1/lookup/bytecode", body, &resp); err != nil {
		return nil, err
	}
	return resp.Sources, nil
}

// LookupContract finds verified deployments at a chain address
func (c *Client) LookupContract(ctx context.Context, chainID int64, address string) ([]Contract, error) {
	var resp struct {
		Contracts []Contract `json:"contracts"`
	}
	path := fmt.Sprintf("/api/v1/lookup/chains/%d/contracts/%s", chainID, url.PathEscape(address))
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Contracts, nil
}

// LookupEvent finds verified sources whose ABI declares an event selector
func (c *Client) LookupEvent(ctx context.Context, selector string) ([]Source, error) {
	var resp struct {
		Sources []Source `json:"sources"`
	}
	if err := c.get(ctx, "/api/v1/lookup/events/"+url.PathEscape(selector), &resp); err != nil {
		return nil, err
	}
	return resp.Sources, nil
}

// LookupCode finds stored code blobs by keccak digest
func (c *Client) LookupCode(ctx context.Context, keccakDigest string) ([]CodeEntry, error) {
	var resp struct {
		Code []CodeEntry `json:"code"`
	}
	if err := c.get(ctx, "/api/v1/lookup/code/"+url.PathEscape(keccakDigest), &resp); err != nil {
		return nil, err
	}
	return resp.Code, nil
}

// Health checks server liveness
func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, "/health", nil)
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	return c.do(req, result)
}

func (c *Client) post(ctx context.Context, path string, body, result any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, result)
}

func (c *Client) do(req *http.Request, result any) error {
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.parseError(resp)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
}

func (c *Client) parseError(resp *http.Response) error {
	var errResp struct {
		Error APIError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	return &errResp.Error
}
