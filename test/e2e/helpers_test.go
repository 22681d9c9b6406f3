//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bytevault/bytevault/internal/config"
	"github.com/bytevault/bytevault/internal/server"
	"github.com/bytevault/bytevault/internal/storage"
	"github.com/bytevault/bytevault/pkg/client"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Fixtures the fake compiler service hands back for every successful
// compilation. Deployments carrying exactly these codes verify cleanly.
const (
	fixtureCreationCode = "0x608060405260016001556002600255"
	fixtureRuntimeCode  = "0x60016001556002600255fe"

	// keccak256 topic of Transfer(address,address,uint256)
	transferTopic = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"
)

const fixtureABI = `[{"type":"event","name":"Transfer","anonymous":false,"inputs":[` +
	`{"indexed":true,"name":"from","type":"address"},` +
	`{"indexed":true,"name":"to","type":"address"},` +
	`{"indexed":false,"name":"value","type":"uint256"}]}]`

// TestContext holds shared test infrastructure
type TestContext struct {
	PostgresContainer *postgres.PostgresContainer
	ConnString        string
	CompilerServer    *httptest.Server
	TestServer        *httptest.Server
	Store             storage.Store
}

// setupPostgresE starts a Postgres container and returns the connection string
func setupPostgresE(ctx context.Context) (*postgres.PostgresContainer, string, error) {
	postgresContainer, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("bytevault"),
		postgres.WithUsername("bytevault"),
		postgres.WithPassword("bytevault"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start postgres container: %w", err)
	}

	connString, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = postgresContainer.Terminate(ctx)
		return nil, "", fmt.Errorf("failed to get postgres connection string: %w", err)
	}

	return postgresContainer, connString, nil
}

// startCompilerServerE starts a fake compiler service. It compiles anything
// to the fixture bytecodes, and reports a compilation failure when any
// submitted source contains the string "BROKEN".
func startCompilerServerE() *httptest.Server {
	handler := func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			CompilerVersion string            `json:"compilerVersion"`
			SourceFiles     map[string]string `json:"sourceFiles"`
			Input           json.RawMessage   `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		for _, content := range req.SourceFiles {
			if strings.Contains(content, "BROKEN") {
				json.NewEncoder(w).Encode(map[string]any{
					"status":  "failure",
					"message": "ParserError: expected ';' but got '}'",
				})
				return
			}
		}

		sources := req.SourceFiles
		if sources == nil {
			sources = map[string]string{"contracts/Journal.sol": "contract Journal {}"}
		}

		json.NewEncoder(w).Encode(map[string]any{
			"status": "success",
			"compilation": map[string]any{
				"compiler":              "solc",
				"language":              "Solidity",
				"version":               req.CompilerVersion,
				"name":                  "Journal",
				"fullyQualifiedName":    "contracts/Journal.sol:Journal",
				"sources":               sources,
				"compilerSettings":      map[string]any{"optimizer": map[string]any{"enabled": false}},
				"compilationArtifacts":  map[string]any{"abi": json.RawMessage(fixtureABI)},
				"creationCode":          fixtureCreationCode,
				"creationCodeArtifacts": map[string]any{},
				"runtimeCode":           fixtureRuntimeCode,
				"runtimeCodeArtifacts":  map[string]any{},
			},
		})
	}

	return httptest.NewServer(http.HandlerFunc(handler))
}

// startServerE starts the bytevault server in-process
func startServerE(connString, compilerURL string) (*httptest.Server, storage.Store, error) {
	cfg := &config.Config{
		Server: config.ServerConfig{
			Port: 8080,
			Host: "0.0.0.0",
		},
		Storage: config.StorageConfig{
			Type: "postgres",
			Postgres: config.PostgresConfig{
				URL: connString,
			},
		},
		Verifier: config.VerifierConfig{
			URL:            compilerURL,
			TimeoutSeconds: 30,
		},
		Import: config.ImportConfig{
			Concurrency:  2,
			MaxBatchSize: 50,
		},
		Auth:      config.AuthConfig{Type: "api-key"},
		Logging:   config.LoggingConfig{Level: "debug", Format: "text"},
		RateLimit: config.RateLimitConfig{Enabled: false},
		Security:  config.SecurityConfig{FilterEnabled: false, MaxBodySizeMB: 50},
		Proxy:     config.ProxyConfig{TrustProxy: false},
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	store, err := storage.New(cfg.Storage, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create store: %w", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	srv := server.New(cfg, store, logger)
	testServer := httptest.NewServer(srv.Handler())

	return testServer, store, nil
}

// newClient creates a new API client for the test server
func newClient(testServer *httptest.Server, apiKey string) *client.Client {
	return client.New(testServer.URL, apiKey)
}

// createTestAPIKey creates a test API key using the store directly
func createTestAPIKey(t *testing.T, store storage.Store, name string) string {
	key, err := store.CreateAPIKey(context.Background(), name)
	require.NoError(t, err, "Failed to create API key")
	return key
}

// testSources is a minimal source set the fake compiler accepts
func testSources() map[string]string {
	return map[string]string{
		"contracts/Journal.sol": "pragma solidity ^0.8.18; contract Journal { uint256 a; uint256 b; }",
	}
}

// assertHTTPError asserts that an error is an APIError with the expected code
func assertHTTPError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	require.Error(t, err, "Expected an error")
	apiErr, ok := err.(*client.APIError)
	require.True(t, ok, "Error should be an APIError")
	require.Equal(t, expectedCode, apiErr.Code, "Error code mismatch")
}
