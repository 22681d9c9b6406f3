// Package validation provides input validation for bytevault.
package validation

import (
	"errors"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/mod/semver"
)

// Compiler versions come in the long solc form, e.g.
// "0.8.19+commit.7dd6d404", with the commit part optional.
var compilerVersionRegex = regexp.MustCompile(`^v?(\d+\.\d+\.\d+)(\+commit\.[0-9a-f]{8})?$`)

// ValidateAddress validates an Ethereum address string
func ValidateAddress(addr string) error {
	if len(addr) != 42 {
		return errors.New("invalid address length: must be 42 characters (0x + 40 hex)")
	}
	if !strings.HasPrefix(addr, "0x") {
		return errors.New("invalid address: must start with 0x")
	}
	if !isHex(addr[2:]) {
		return errors.New("invalid address: contains non-hex characters")
	}
	return nil
}

// ValidateTransactionHash validates a transaction hash string
func ValidateTransactionHash(hash string) error {
	if len(hash) != 66 {
		return errors.New("invalid transaction hash length: must be 66 characters (0x + 64 hex)")
	}
	if !strings.HasPrefix(hash, "0x") {
		return errors.New("invalid transaction hash: must start with 0x")
	}
	if !isHex(hash[2:]) {
		return errors.New("invalid transaction hash: contains non-hex characters")
	}
	return nil
}

// ValidateBytecode validates a 0x-prefixed bytecode string. Empty code
// ("0x") is allowed; it is distinct from absent code.
func ValidateBytecode(code string) error {
	if !strings.HasPrefix(code, "0x") {
		return errors.New("invalid bytecode: must start with 0x")
	}
	if len(code)%2 != 0 {
		return errors.New("invalid bytecode: odd number of hex digits")
	}
	if !isHex(code[2:]) {
		return errors.New("invalid bytecode: contains non-hex characters")
	}
	return nil
}

// DecodeHex decodes a validated 0x-prefixed hex string
func DecodeHex(s string) ([]byte, error) {
	return hexutil.Decode(s)
}

// ValidateChainID validates a chain ID
func ValidateChainID(chainID int64) error {
	if chainID <= 0 {
		return errors.New("chain ID must be positive")
	}
	return nil
}

// ValidateCompilerVersion validates a compiler version in the long form
// ("0.8.19+commit.7dd6d404") or its bare semver core ("0.8.19").
func ValidateCompilerVersion(version string) error {
	if version == "" {
		return errors.New("compiler version cannot be empty")
	}
	matches := compilerVersionRegex.FindStringSubmatch(version)
	if matches == nil {
		return errors.New("invalid compiler version: must be X.Y.Z or X.Y.Z+commit.<hash>")
	}
	if !semver.IsValid("v" + matches[1]) {
		return errors.New("invalid compiler version: not a semantic version")
	}
	return nil
}

// CompilerVersionCore strips the commit suffix and leading v, leaving the
// semver core.
func CompilerVersionCore(version string) string {
	version = strings.TrimPrefix(version, "v")
	if i := strings.IndexByte(version, '+'); i >= 0 {
		return version[:i]
	}
	return version
}

// CompareCompilerVersions compares two compiler versions by semver core.
// Returns -1 if v1 < v2, 0 if v1 == v2, 1 if v1 > v2
func CompareCompilerVersions(v1, v2 string) int {
	return semver.Compare("v"+CompilerVersionCore(v1), "v"+CompilerVersionCore(v2))
}

func isHex(s string) bool {
	for _, c := range s {
		isDigit := c >= '0' && c <= '9'
		isLowerHex := c >= 'a' && c <= 'f'
		isUpperHex := c >= 'A' && c <= 'F'
		if !isDigit && !isLowerHex && !isUpperHex {
			return false
		}
	}
	return true
}
