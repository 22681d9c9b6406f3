// Package domain contains the business logic for the read-only lookup APIs.
package domain

import (
	"encoding/json"

	verifydomain "github.com/bytevault/bytevault/internal/verify/domain"
)

// BytecodeLookupRequest searches stored compilations by raw bytecode.
type BytecodeLookupRequest struct {
	Bytecode     string `json:"bytecode"`
	BytecodeType string `json:"bytecodeType"`
}

// ContractLookup is the per-deployment view returned by address lookups.
type ContractLookup struct {
	ChainID          int64  `json:"chainId"`
	Address          string `json:"address"`
	TransactionHash  string `json:"transactionHash"`
	BlockNumber      int64  `json:"blockNumber"`
	TransactionIndex int64  `json:"transactionIndex"`
	Deployer         string `json:"deployer,omitempty"`

	Sources []verifydomain.Source `json:"sources"`
}

// CodeLookup is one code row found through the keccak secondary index. The
// bytes themselves are returned so callers can verify the digest.
type CodeLookup struct {
	Digest       string `json:"digest"`
	KeccakDigest string `json:"keccakDigest"`
	Code         string `json:"code"`
}

// sideValues mirrors the persisted values document for response building.
type sideValues struct {
	ConstructorArguments string            `json:"constructorArguments"`
	Libraries            map[string]string `json:"libraries"`
}

func parseSideValues(doc json.RawMessage) sideValues {
	var v sideValues
	if doc != nil {
		_ = json.Unmarshal(doc, &v)
	}
	return v
}
