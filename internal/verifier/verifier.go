// Package verifier talks to the external compiler service that turns source
// code plus settings into bytecode and compiler artifacts. Compilation
// happens entirely outside the ingestion boundary; ingestion only ever sees
// the finished Compilation.
package verifier

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Bytecode types accepted by verification requests.
const (
	BytecodeTypeCreation = "creation"
	BytecodeTypeRuntime  = "runtime"
)

// MultiPartRequest asks the compiler service to compile loose source files.
type MultiPartRequest struct {
	Bytecode         hexutil.Bytes     `json:"bytecode"`
	BytecodeType     string            `json:"bytecodeType"`
	CompilerVersion  string            `json:"compilerVersion"`
	EvmVersion       string            `json:"evmVersion,omitempty"`
	OptimizationRuns *int              `json:"optimizationRuns,omitempty"`
	SourceFiles      map[string]string `json:"sourceFiles"`
	Libraries        map[string]string `json:"libraries,omitempty"`
	Metadata         json.RawMessage   `json:"metadata,omitempty"`
}

// StandardJSONRequest asks the compiler service to compile a solc
// standard-json input document.
type StandardJSONRequest struct {
	Bytecode        hexutil.Bytes   `json:"bytecode"`
	BytecodeType    string          `json:"bytecodeType"`
	CompilerVersion string          `json:"compilerVersion"`
	Input           json.RawMessage `json:"input"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
}

// Compilation is one compiler invocation's complete outcome: everything
// needed to build a CompiledContract row and run the matcher.
type Compilation struct {
	Compiler           string `json:"compiler"`
	Language           string `json:"language"`
	Version            string `json:"version"`
	Name               string `json:"name"`
	FullyQualifiedName string `json:"fullyQualifiedName"`

	Sources          map[string]string `json:"sources"`
	CompilerSettings json.RawMessage   `json:"compilerSettings"`

	CompilationArtifacts  json.RawMessage `json:"compilationArtifacts"`
	CreationCode          hexutil.Bytes   `json:"creationCode"`
	CreationCodeArtifacts json.RawMessage `json:"creationCodeArtifacts"`
	RuntimeCode           hexutil.Bytes   `json:"runtimeCode"`
	RuntimeCodeArtifacts  json.RawMessage `json:"runtimeCodeArtifacts"`
}

// CompilationError reports that the compiler could not produce bytecode from
// the submitted sources. It is a per-item outcome, never fatal to a batch.
type CompilationError struct {
	Message string
}

func (e *CompilationError) Error() string {
	return "compilation failed: " + e.Message
}

// Client resolves verification requests into compilations.
type Client interface {
	VerifyMultiPart(ctx context.Context, req *MultiPartRequest) (*Compilation, error)
	VerifyStandardJSON(ctx context.Context, req *StandardJSONRequest) (*Compilation, error)
}
