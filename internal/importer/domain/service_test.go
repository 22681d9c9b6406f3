package domain

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bytevault/bytevault/internal/config"
	"github.com/bytevault/bytevault/internal/ingest"
	"github.com/bytevault/bytevault/internal/verifier"
)

// mockClient implements verifier.Client for testing
type mockClient struct {
	compilation *verifier.Compilation
	err         error

	lastMultiPart    *verifier.MultiPartRequest
	lastStandardJSON *verifier.StandardJSONRequest
}

func (m *mockClient) VerifyMultiPart(ctx context.Context, req *verifier.MultiPartRequest) (*verifier.Compilation, error) {
	m.lastMultiPart = req
	return m.compilation, m.err
}

func (m *mockClient) VerifyStandardJSON(ctx context.Context, req *verifier.StandardJSONRequest) (*verifier.Compilation, error) {
	m.lastStandardJSON = req
	return m.compilation, m.err
}

// mockIngester implements Ingester for testing
type mockIngester struct {
	results []ingest.ItemResult

	lastActor       string
	lastDeployments []*ingest.Deployment
	lastConcurrency int
}

func (m *mockIngester) RunBatch(ctx context.Context, actor string, compilation *verifier.Compilation, deployments []*ingest.Deployment, concurrency int) []ingest.ItemResult {
	m.lastActor = actor
	m.lastDeployments = deployments
	m.lastConcurrency = concurrency
	if m.results != nil {
		return m.results
	}
	results := make([]ingest.ItemResult, len(deployments))
	for i := range results {
		results[i] = ingest.ItemResult{
			Status:           ingest.ItemStatusSuccess,
			RuntimeMatchType: ingest.MatchTypeFull,
		}
	}
	return results
}

func newTestService(client verifier.Client, ingester Ingester) *service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(client, ingester, config.ImportConfig{Concurrency: 2, MaxBatchSize: 10}, logger)
}

func validRequest() BatchImportRequest {
	return BatchImportRequest{
		Contracts: []ContractImport{
			{
				ChainID:      1,
				Address:      "0x7d53f102f4d4aa014db4e10d6deec2009b3cda6b",
				CreationCode: "0x60016001556002",
				RuntimeCode:  "0x6001600155",
			},
		},
		CompilerVersion: "0.8.18+commit.87f61d96",
		SourceFiles:     map[string]string{"a.sol": "contract A {}"},
	}
}

func TestBatchImport(t *testing.T) {
	t.Run("successful batch", func(t *testing.T) {
		client := &mockClient{compilation: &verifier.Compilation{FullyQualifiedName: "a.sol:A"}}
		ingester := &mockIngester{}
		svc := newTestService(client, ingester)

		req := validRequest()
		req.Contracts = append(req.Contracts, ContractImport{
			ChainID:     10,
			Address:     "0x7d53f102f4d4aa014db4e10d6deec2009b3cda6b",
			RuntimeCode: "0x6001600155",
		})

		result, err := svc.BatchImport(context.Background(), "importer", req)
		require.NoError(t, err)

		assert.Empty(t, result.CompilationFailure)
		require.Len(t, result.Items, 2)
		assert.Equal(t, ingest.ItemStatusSuccess, result.Items[0].Status)
		assert.Equal(t, ingest.MatchTypeFull, result.Items[0].RuntimeMatchType)

		assert.Equal(t, "importer", ingester.lastActor)
		assert.Equal(t, 2, ingester.lastConcurrency)

		// The first contract's creation code picks the compile target.
		require.NotNil(t, client.lastMultiPart)
		assert.Equal(t, verifier.BytecodeTypeCreation, client.lastMultiPart.BytecodeType)
		assert.Equal(t, hexutil.Bytes{0x60, 0x01, 0x60, 0x01, 0x55, 0x60, 0x02}, client.lastMultiPart.Bytecode)
	})

	t.Run("runtime-only first contract compiles against runtime", func(t *testing.T) {
		client := &mockClient{compilation: &verifier.Compilation{}}
		svc := newTestService(client, &mockIngester{})

		req := validRequest()
		req.Contracts[0].CreationCode = ""

		_, err := svc.BatchImport(context.Background(), "importer", req)
		require.NoError(t, err)
		assert.Equal(t, verifier.BytecodeTypeRuntime, client.lastMultiPart.BytecodeType)
	})

	t.Run("standard json input", func(t *testing.T) {
		client := &mockClient{compilation: &verifier.Compilation{}}
		svc := newTestService(client, &mockIngester{})

		req := validRequest()
		req.SourceFiles = nil
		req.Input = json.RawMessage(`{"language":"Solidity","sources":{}}`)

		_, err := svc.BatchImport(context.Background(), "importer", req)
		require.NoError(t, err)
		require.NotNil(t, client.lastStandardJSON)
		assert.Nil(t, client.lastMultiPart)
	})

	t.Run("compilation failure is a top-level result, not an error", func(t *testing.T) {
		client := &mockClient{err: &verifier.CompilationError{Message: "DeclarationError: undeclared identifier"}}
		svc := newTestService(client, &mockIngester{})

		result, err := svc.BatchImport(context.Background(), "importer", validRequest())
		require.NoError(t, err)
		assert.Equal(t, "DeclarationError: undeclared identifier", result.CompilationFailure)
		assert.Empty(t, result.Items)
	})

	t.Run("mixed item outcomes pass through", func(t *testing.T) {
		client := &mockClient{compilation: &verifier.Compilation{}}
		ingester := &mockIngester{results: []ingest.ItemResult{
			{Status: ingest.ItemStatusSuccess, CreationMatchType: ingest.MatchTypePartial},
			{Status: ingest.ItemStatusVerificationFailure, Message: "no match"},
		}}
		svc := newTestService(client, ingester)

		req := validRequest()
		req.Contracts = append(req.Contracts, req.Contracts[0])

		result, err := svc.BatchImport(context.Background(), "importer", req)
		require.NoError(t, err)
		require.Len(t, result.Items, 2)
		assert.Equal(t, ingest.ItemStatusVerificationFailure, result.Items[1].Status)
	})
}

func TestBatchImport_Validation(t *testing.T) {
	svc := newTestService(&mockClient{compilation: &verifier.Compilation{}}, &mockIngester{})

	tests := []struct {
		name   string
		mutate func(*BatchImportRequest)
	}{
		{"no contracts", func(r *BatchImportRequest) { r.Contracts = nil }},
		{"bad compiler version", func(r *BatchImportRequest) { r.CompilerVersion = "nightly" }},
		{"neither sources nor input", func(r *BatchImportRequest) { r.SourceFiles = nil }},
		{"both sources and input", func(r *BatchImportRequest) { r.Input = json.RawMessage(`{}`) }},
		{"bad chain id", func(r *BatchImportRequest) { r.Contracts[0].ChainID = -5 }},
		{"bad address", func(r *BatchImportRequest) { r.Contracts[0].Address = "0xzz" }},
		{"no code at all", func(r *BatchImportRequest) {
			r.Contracts[0].CreationCode = ""
			r.Contracts[0].RuntimeCode = ""
		}},
		{"bad transaction hash", func(r *BatchImportRequest) { r.Contracts[0].TransactionHash = "0x1234" }},
		{"bad deployer", func(r *BatchImportRequest) { r.Contracts[0].Deployer = "not-an-address" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			_, err := svc.BatchImport(context.Background(), "importer", req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}

	t.Run("batch size limit", func(t *testing.T) {
		req := validRequest()
		for i := 0; i < 10; i++ {
			req.Contracts = append(req.Contracts, req.Contracts[0])
		}
		_, err := svc.BatchImport(context.Background(), "importer", req)
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})
}
