// Package match decides whether a compiled contract explains a deployment's
// on-chain bytecode. It applies the legitimate byte-level differences the
// compiler artifacts declare (metadata hashes, linked library addresses,
// immutable values, appended constructor arguments) to the compiled code and
// reports a match iff the result equals the deployed code, together with an
// auditable record of every applied transformation.
package match

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ByteOffset is a single replaceable region inside code, as emitted by solc
// in linkReferences and immutableReferences.
type ByteOffset struct {
	Start  uint64 `json:"start"`
	Length uint64 `json:"length"`
}

// CborAuxdataValue is one self-describing metadata section: its position in
// the code and the bytes the compiler put there.
type CborAuxdataValue struct {
	Offset uint64        `json:"offset"`
	Value  hexutil.Bytes `json:"value"`
}

// CborAuxdata maps auxdata ids ("1", "2", ...) to their sections.
type CborAuxdata map[string]CborAuxdataValue

// LinkReferences maps file path to contract name to the offsets where that
// library's address is embedded.
type LinkReferences map[string]map[string][]ByteOffset

// ImmutableReferences maps an immutable's AST id to the offsets where its
// value is embedded in runtime code.
type ImmutableReferences map[string][]ByteOffset

// CompilationArtifacts is the per-compilation output shared by both code
// sides.
type CompilationArtifacts struct {
	ABI           json.RawMessage `json:"abi,omitempty"`
	Sources       json.RawMessage `json:"sources,omitempty"`
	StorageLayout json.RawMessage `json:"storageLayout,omitempty"`
	UserDoc       json.RawMessage `json:"userdoc,omitempty"`
	DevDoc        json.RawMessage `json:"devdoc,omitempty"`
}

// CreationCodeArtifacts describes the mutable regions of creation code.
type CreationCodeArtifacts struct {
	SourceMap      string         `json:"sourceMap,omitempty"`
	LinkReferences LinkReferences `json:"linkReferences,omitempty"`
	CborAuxdata    CborAuxdata    `json:"cborAuxdata,omitempty"`
}

// RuntimeCodeArtifacts describes the mutable regions of runtime code.
type RuntimeCodeArtifacts struct {
	SourceMap           string              `json:"sourceMap,omitempty"`
	LinkReferences      LinkReferences      `json:"linkReferences,omitempty"`
	ImmutableReferences ImmutableReferences `json:"immutableReferences,omitempty"`
	CborAuxdata         CborAuxdata         `json:"cborAuxdata,omitempty"`
}

// ParseCompilationArtifacts decodes a stored compilation_artifacts document.
func ParseCompilationArtifacts(doc json.RawMessage) (*CompilationArtifacts, error) {
	var a CompilationArtifacts
	if err := json.Unmarshal(doc, &a); err != nil {
		return nil, fmt.Errorf("parsing compilation artifacts: %w", err)
	}
	return &a, nil
}

// ParseCreationCodeArtifacts decodes a stored creation_code_artifacts
// document.
func ParseCreationCodeArtifacts(doc json.RawMessage) (*CreationCodeArtifacts, error) {
	var a CreationCodeArtifacts
	if err := json.Unmarshal(doc, &a); err != nil {
		return nil, fmt.Errorf("parsing creation code artifacts: %w", err)
	}
	return &a, nil
}

// ParseRuntimeCodeArtifacts decodes a stored runtime_code_artifacts document.
func ParseRuntimeCodeArtifacts(doc json.RawMessage) (*RuntimeCodeArtifacts, error) {
	var a RuntimeCodeArtifacts
	if err := json.Unmarshal(doc, &a); err != nil {
		return nil, fmt.Errorf("parsing runtime code artifacts: %w", err)
	}
	return &a, nil
}
