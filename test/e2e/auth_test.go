//go:build e2e

package e2e

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bytevault/bytevault/pkg/client"
)

// TestAuth_WriteRequiresKey rejects verification without an API key
func TestAuth_WriteRequiresKey(t *testing.T) {
	c := newClient(testCtx.TestServer, "")

	_, err := c.VerifyMultiPart(context.Background(), client.VerifyMultiPartRequest{
		Bytecode:        fixtureRuntimeCode,
		BytecodeType:    "runtime",
		CompilerVersion: "v0.8.18+commit.87f61d96",
		SourceFiles:     testSources(),
	})
	assertHTTPError(t, err, "UNAUTHORIZED")
}

// TestAuth_InvalidKey rejects a key the server never issued
func TestAuth_InvalidKey(t *testing.T) {
	c := newClient(testCtx.TestServer, "bv_key_notarealkeynotarealkey")

	_, err := c.BatchImport(context.Background(), client.BatchImportRequest{
		CompilerVersion: "v0.8.18+commit.87f61d96",
		SourceFiles:     testSources(),
		Contracts: []client.ContractImport{
			{ChainID: 31337, Address: "0x7777777777777777777777777777777777777777", RuntimeCode: fixtureRuntimeCode},
		},
	})
	assertHTTPError(t, err, "UNAUTHORIZED")
}

// TestAuth_RevokedKey stops working after revocation
func TestAuth_RevokedKey(t *testing.T) {
	ctx := context.Background()
	apiKey := createTestAPIKey(t, testCtx.Store, "auth-revoked")
	c := newClient(testCtx.TestServer, apiKey)

	// Works before revocation
	result, err := c.VerifyMultiPart(ctx, client.VerifyMultiPartRequest{
		Bytecode:        fixtureRuntimeCode,
		BytecodeType:    "runtime",
		CompilerVersion: "v0.8.18+commit.87f61d96",
		SourceFiles:     testSources(),
	})
	require.NoError(t, err)
	require.Equal(t, "success", result.Status)

	// Find and revoke the key
	keys, err := testCtx.Store.ListAPIKeys(ctx)
	require.NoError(t, err)
	for _, k := range keys {
		if k.Name == "auth-revoked" {
			require.NoError(t, testCtx.Store.RevokeAPIKey(ctx, k.ID))
		}
	}

	_, err = c.VerifyMultiPart(ctx, client.VerifyMultiPartRequest{
		Bytecode:        fixtureRuntimeCode,
		BytecodeType:    "runtime",
		CompilerVersion: "v0.8.18+commit.87f61d96",
		SourceFiles:     testSources(),
	})
	assertHTTPError(t, err, "UNAUTHORIZED")
}

// TestAuth_ReadsAreOpen allows lookups without any key
func TestAuth_ReadsAreOpen(t *testing.T) {
	c := newClient(testCtx.TestServer, "")

	sources, err := c.LookupBytecode(context.Background(), "0xabcdefabcdef", "runtime")
	require.NoError(t, err)
	require.Empty(t, sources)
}
