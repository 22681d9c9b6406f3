//go:build e2e

package e2e

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bytevault/bytevault/pkg/client"
)

// TestVerify_WithoutMetadata verifies bytecode without recording anything
func TestVerify_WithoutMetadata(t *testing.T) {
	apiKey := createTestAPIKey(t, testCtx.Store, "verify-stateless")
	c := newClient(testCtx.TestServer, apiKey)

	result, err := c.VerifyMultiPart(context.Background(), client.VerifyMultiPartRequest{
		Bytecode:        fixtureRuntimeCode,
		BytecodeType:    "runtime",
		CompilerVersion: "v0.8.18+commit.87f61d96",
		SourceFiles:     testSources(),
	})
	require.NoError(t, err)

	assert.Equal(t, "success", result.Status)
	require.NotNil(t, result.Source)
	assert.Equal(t, "Journal", result.Source.ContractName)
	assert.Equal(t, "contracts/Journal.sol", result.Source.FileName)
	assert.Equal(t, "solidity", result.Source.SourceType)
	assert.Equal(t, "partial", result.Source.MatchType)
}

// TestVerify_WithMetadata records the deployment and is idempotent on re-submit
func TestVerify_WithMetadata(t *testing.T) {
	apiKey := createTestAPIKey(t, testCtx.Store, "verify-persist")
	c := newClient(testCtx.TestServer, apiKey)

	const address = "0x1111111111111111111111111111111111111111"
	req := client.VerifyMultiPartRequest{
		Bytecode:        fixtureRuntimeCode,
		BytecodeType:    "runtime",
		CompilerVersion: "v0.8.18+commit.87f61d96",
		SourceFiles:     testSources(),
		Metadata: &client.DeploymentMetadata{
			ChainID:         31337,
			ContractAddress: address,
		},
	}

	result, err := c.VerifyMultiPart(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "success", result.Status)

	contracts, err := c.LookupContract(context.Background(), 31337, address)
	require.NoError(t, err)
	require.Len(t, contracts, 1)
	assert.Equal(t, int64(31337), contracts[0].ChainID)
	require.Len(t, contracts[0].Sources, 1)
	assert.Equal(t, "Journal", contracts[0].Sources[0].ContractName)

	// Submitting the identical verification again must not duplicate anything
	result, err = c.VerifyMultiPart(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "success", result.Status)

	contracts, err = c.LookupContract(context.Background(), 31337, address)
	require.NoError(t, err)
	require.Len(t, contracts, 1)
	require.Len(t, contracts[0].Sources, 1)
}

// TestVerify_CompilationFailure reports failure without an HTTP error
func TestVerify_CompilationFailure(t *testing.T) {
	apiKey := createTestAPIKey(t, testCtx.Store, "verify-broken")
	c := newClient(testCtx.TestServer, apiKey)

	result, err := c.VerifyMultiPart(context.Background(), client.VerifyMultiPartRequest{
		Bytecode:        fixtureRuntimeCode,
		BytecodeType:    "runtime",
		CompilerVersion: "v0.8.18+commit.87f61d96",
		SourceFiles: map[string]string{
			"contracts/Journal.sol": "contract Journal { BROKEN }",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "failure", result.Status)
	assert.Contains(t, result.Message, "ParserError")
	assert.Nil(t, result.Source)
}

// TestVerify_NoMatch reports failure when the compiled output differs
func TestVerify_NoMatch(t *testing.T) {
	apiKey := createTestAPIKey(t, testCtx.Store, "verify-nomatch")
	c := newClient(testCtx.TestServer, apiKey)

	result, err := c.VerifyMultiPart(context.Background(), client.VerifyMultiPartRequest{
		Bytecode:        "0xdeadbeefdeadbeefdeadbeef",
		BytecodeType:    "runtime",
		CompilerVersion: "v0.8.18+commit.87f61d96",
		SourceFiles:     testSources(),
	})
	require.NoError(t, err)

	assert.Equal(t, "failure", result.Status)
	assert.Nil(t, result.Source)
}

// TestVerify_StandardJSON verifies via a standard-json input document
func TestVerify_StandardJSON(t *testing.T) {
	apiKey := createTestAPIKey(t, testCtx.Store, "verify-stdjson")
	c := newClient(testCtx.TestServer, apiKey)

	result, err := c.VerifyStandardJSON(context.Background(), client.VerifyStandardJSONRequest{
		Bytecode:        fixtureCreationCode,
		BytecodeType:    "creation",
		CompilerVersion: "v0.8.18+commit.87f61d96",
		Input:           []byte(`{"language":"Solidity","sources":{"contracts/Journal.sol":{"content":"contract Journal {}"}},"settings":{}}`),
	})
	require.NoError(t, err)

	assert.Equal(t, "success", result.Status)
	require.NotNil(t, result.Source)
	assert.Equal(t, "Journal", result.Source.ContractName)
}
