// Package domain contains the business logic for single-contract
// verification requests.
package domain

import (
	"encoding/json"
	"strings"

	"github.com/bytevault/bytevault/internal/ingest"
	"github.com/bytevault/bytevault/internal/match"
	"github.com/bytevault/bytevault/internal/verifier"
)

// MultiPartRequest verifies on-chain bytecode against loose source files.
type MultiPartRequest struct {
	Bytecode         string            `json:"bytecode"`
	BytecodeType     string            `json:"bytecodeType"`
	CompilerVersion  string            `json:"compilerVersion"`
	EvmVersion       string            `json:"evmVersion,omitempty"`
	OptimizationRuns *int              `json:"optimizationRuns,omitempty"`
	SourceFiles      map[string]string `json:"sourceFiles"`
	Libraries        map[string]string `json:"libraries,omitempty"`

	Metadata *DeploymentMetadata `json:"metadata,omitempty"`
}

// StandardJSONRequest verifies on-chain bytecode against a solc standard-json
// input document.
type StandardJSONRequest struct {
	Bytecode        string          `json:"bytecode"`
	BytecodeType    string          `json:"bytecodeType"`
	CompilerVersion string          `json:"compilerVersion"`
	Input           json.RawMessage `json:"input"`

	Metadata *DeploymentMetadata `json:"metadata,omitempty"`
}

// DeploymentMetadata locates the deployment the submitted bytecode was
// observed at. When present, a successful verification is persisted; without
// it the verdict is computed but nothing is written.
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

// Source is the verified-source representation shared by verification and
// lookup responses. Its field set is a compatibility surface; independent
// services interoperate on this exact shape.
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

// Source types on responses.
const (
	SourceTypeSolidity = "solidity"
	SourceTypeVyper    = "vyper"
	SourceTypeYul      = "yul"
)

// VerifyResult is the outcome of one verification request.
type VerifyResult struct {
	Source *Source
	// Persisted is true when deployment metadata was supplied and the
	// verdict was written to the store.
	Persisted bool
}

// sourceTypeFor derives the response source type from the compiler language.
func sourceTypeFor(language string) string {
	switch strings.ToLower(language) {
	case "vyper":
		return SourceTypeVyper
	case "yul":
		return SourceTypeYul
	default:
		return SourceTypeSolidity
	}
}

// splitFullyQualifiedName splits "contracts/Token.sol:Token" into its file
// and contract parts. Vyper compilations have no contract suffix; the file
// stem names the contract.
func splitFullyQualifiedName(fqn, fallbackName string) (fileName, contractName string) {
	if idx := strings.LastIndex(fqn, ":"); idx >= 0 {
		return fqn[:idx], fqn[idx+1:]
	}
	return fqn, fallbackName
}

// buildSource assembles the Source response from a compilation and the
// per-side verdicts.
func buildSource(compilation *verifier.Compilation, creationMatch, runtimeMatch *match.Match) *Source {
	fileName, contractName := splitFullyQualifiedName(compilation.FullyQualifiedName, compilation.Name)
	src := &Source{
		FileName:         fileName,
		ContractName:     contractName,
		CompilerVersion:  compilation.Version,
		CompilerSettings: compilation.CompilerSettings,
		SourceType:       sourceTypeFor(compilation.Language),
		SourceFiles:      compilation.Sources,
		MatchType:        bestMatchType(creationMatch, runtimeMatch),

		CompilationArtifacts:      compilation.CompilationArtifacts,
		CreationInputArtifacts:    compilation.CreationCodeArtifacts,
		DeployedBytecodeArtifacts: compilation.RuntimeCodeArtifacts,
	}
	src.ABI = extractABI(compilation.CompilationArtifacts)

	if creationMatch != nil && creationMatch.Values.ConstructorArguments != nil {
		src.ConstructorArguments = creationMatch.Values.ConstructorArguments.String()
	}
	src.Libraries = mergeLibraries(creationMatch, runtimeMatch)
	return src
}

// bestMatchType reports the strongest match type across the two sides.
func bestMatchType(creationMatch, runtimeMatch *match.Match) string {
	best := ""
	for _, m := range []*match.Match{creationMatch, runtimeMatch} {
		if m == nil {
			continue
		}
		t := ingest.MatchType(m)
		if best == "" || t == ingest.MatchTypeFull {
			best = t
		}
	}
	return best
}

// mergeLibraries collects resolved library addresses from both sides.
func mergeLibraries(matches ...*match.Match) map[string]string {
	merged := make(map[string]string)
	for _, m := range matches {
		if m == nil {
			continue
		}
		for name, addr := range m.Values.Libraries {
			merged[name] = addr.String()
		}
	}
	if len(merged) == 0 {
		return nil
	}
	return merged
}

// extractABI pulls the abi document out of the compilation artifacts.
func extractABI(artifacts json.RawMessage) json.RawMessage {
	if artifacts == nil {
		return nil
	}
	var doc struct {
		ABI json.RawMessage `json:"abi"`
	}
	if err := json.Unmarshal(artifacts, &doc); err != nil {
		return nil
	}
	return doc.ABI
}
