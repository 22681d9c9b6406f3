//go:build e2e

package e2e

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bytevault/bytevault/pkg/client"
)

// TestBatchImport_TwoChains verifies the same contract on two chains in one
// batch; both deployments resolve to the same verified sources.
func TestBatchImport_TwoChains(t *testing.T) {
	apiKey := createTestAPIKey(t, testCtx.Store, "import-two-chains")
	c := newClient(testCtx.TestServer, apiKey)

	const address = "0x2222222222222222222222222222222222222222"

	result, err := c.BatchImport(context.Background(), client.BatchImportRequest{
		CompilerVersion: "v0.8.18+commit.87f61d96",
		SourceFiles:     testSources(),
		Contracts: []client.ContractImport{
			{ChainID: 31337, Address: address, CreationCode: fixtureCreationCode, RuntimeCode: fixtureRuntimeCode},
			{ChainID: 31338, Address: address, CreationCode: fixtureCreationCode, RuntimeCode: fixtureRuntimeCode},
		},
	})
	require.NoError(t, err)

	require.Nil(t, result.CompilationFailure)
	require.Len(t, result.Results, 2)
	for i, item := range result.Results {
		assert.Equalf(t, "verified", item.Status, "item %d: %s", i, item.Message)
	}

	for _, chainID := range []int64{31337, 31338} {
		contracts, err := c.LookupContract(context.Background(), chainID, address)
		require.NoError(t, err)
		require.Len(t, contracts, 1, "chain %d", chainID)
		require.Len(t, contracts[0].Sources, 1)
		assert.Equal(t, "Journal", contracts[0].Sources[0].ContractName)
	}
}

// TestBatchImport_MixedOutcomes keeps verifying good deployments when one
// does not match
func TestBatchImport_MixedOutcomes(t *testing.T) {
	apiKey := createTestAPIKey(t, testCtx.Store, "import-mixed")
	c := newClient(testCtx.TestServer, apiKey)

	result, err := c.BatchImport(context.Background(), client.BatchImportRequest{
		CompilerVersion: "v0.8.18+commit.87f61d96",
		SourceFiles:     testSources(),
		Contracts: []client.ContractImport{
			{ChainID: 31337, Address: "0x3333333333333333333333333333333333333333", RuntimeCode: fixtureRuntimeCode},
			{ChainID: 31337, Address: "0x4444444444444444444444444444444444444444", RuntimeCode: "0xdeadbeef"},
		},
	})
	require.NoError(t, err)

	require.Nil(t, result.CompilationFailure)
	require.Len(t, result.Results, 2)
	assert.Equal(t, "verified", result.Results[0].Status)
	assert.Equal(t, "partial", result.Results[0].RuntimeMatchType)
	assert.NotEqual(t, "verified", result.Results[1].Status)
}

// TestBatchImport_CompilationFailure reports one top-level failure and no
// per-item results
func TestBatchImport_CompilationFailure(t *testing.T) {
	apiKey := createTestAPIKey(t, testCtx.Store, "import-broken")
	c := newClient(testCtx.TestServer, apiKey)

	result, err := c.BatchImport(context.Background(), client.BatchImportRequest{
		CompilerVersion: "v0.8.18+commit.87f61d96",
		SourceFiles: map[string]string{
			"contracts/Journal.sol": "contract Journal { BROKEN }",
		},
		Contracts: []client.ContractImport{
			{ChainID: 31337, Address: "0x5555555555555555555555555555555555555555", RuntimeCode: fixtureRuntimeCode},
		},
	})
	require.NoError(t, err)

	require.NotNil(t, result.CompilationFailure)
	assert.Contains(t, result.CompilationFailure.Message, "ParserError")
	assert.Empty(t, result.Results)
}
