// Package domain contains the business logic for batch contract imports.
package domain

import "encoding/json"

// BatchImportRequest imports a set of deployments of one contract compiled
// from shared sources. Exactly one of SourceFiles and Input must be given.
type BatchImportRequest struct {
	Contracts       []ContractImport `json:"contracts"`
	CompilerVersion string           `json:"compilerVersion"`

	SourceFiles map[string]string `json:"sourceFiles,omitempty"`
	Input       json.RawMessage   `json:"input,omitempty"`

	EvmVersion       string            `json:"evmVersion,omitempty"`
	OptimizationRuns *int              `json:"optimizationRuns,omitempty"`
	Libraries        map[string]string `json:"libraries,omitempty"`
}

// ContractImport is one observed deployment in a batch.
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

// BatchImportResult carries one discriminated result per contract, or a
// top-level compilation failure when the shared sources never compiled.
type BatchImportResult struct {
	CompilationFailure string
	Items              []ItemOutcome
}

// ItemOutcome is the per-contract result of a batch import.
type ItemOutcome struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`

	CreationMatchType string `json:"creationMatchType,omitempty"`
	RuntimeMatchType  string `json:"runtimeMatchType,omitempty"`
}
