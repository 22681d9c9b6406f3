package verifier

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestHTTPClientVerifyMultiPart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/verifier/multi-part" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req MultiPartRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if req.CompilerVersion != "0.8.19+commit.7dd6d404" {
			t.Errorf("CompilerVersion = %v", req.CompilerVersion)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(statusResponse{
			Status: "success",
			Compilation: &Compilation{
				Compiler:              "solc",
				Language:              "solidity",
				Version:               req.CompilerVersion,
				Name:                  "Storage",
				FullyQualifiedName:    "contracts/Storage.sol:Storage",
				Sources:               req.SourceFiles,
				CompilerSettings:      json.RawMessage(`{}`),
				CompilationArtifacts:  json.RawMessage(`{"abi":[]}`),
				CreationCode:          []byte{0x60, 0x80},
				CreationCodeArtifacts: json.RawMessage(`{}`),
				RuntimeCode:           []byte{0x60, 0x40},
				RuntimeCodeArtifacts:  json.RawMessage(`{}`),
			},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, 5*time.Second, testLogger())
	compilation, err := client.VerifyMultiPart(context.Background(), &MultiPartRequest{
		Bytecode:        []byte{0x60, 0x80},
		BytecodeType:    BytecodeTypeCreation,
		CompilerVersion: "0.8.19+commit.7dd6d404",
		SourceFiles:     map[string]string{"contracts/Storage.sol": "contract Storage {}"},
	})
	if err != nil {
		t.Fatalf("VerifyMultiPart() error = %v", err)
	}
	if compilation.Compiler != "solc" || compilation.Name != "Storage" {
		t.Errorf("unexpected compilation %+v", compilation)
	}
}

func TestHTTPClientCompilationFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(statusResponse{
			Status:  "failure",
			Message: "ParserError: expected ';' but got '}'",
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, 5*time.Second, testLogger())
	_, err := client.VerifyStandardJSON(context.Background(), &StandardJSONRequest{
		Bytecode:        []byte{0x60},
		BytecodeType:    BytecodeTypeRuntime,
		CompilerVersion: "0.8.19+commit.7dd6d404",
		Input:           json.RawMessage(`{}`),
	})

	var compErr *CompilationError
	if !errors.As(err, &compErr) {
		t.Fatalf("error = %v, want CompilationError", err)
	}
	if compErr.Message == "" {
		t.Error("CompilationError.Message is empty")
	}
}

func TestHTTPClientServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, 5*time.Second, testLogger())
	_, err := client.VerifyMultiPart(context.Background(), &MultiPartRequest{})
	if err == nil {
		t.Fatal("VerifyMultiPart() error = nil, want error")
	}
	var compErr *CompilationError
	if errors.As(err, &compErr) {
		t.Error("transport error misreported as compilation failure")
	}
}
