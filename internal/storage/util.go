package storage

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// NoCodeDigest is the reserved digest of the "no code" sentinel row. It is
// the only digest that is not the sha256 of anything.
var NoCodeDigest = []byte{}

// IsNoCodeDigest reports whether digest refers to the sentinel row.
func IsNoCodeDigest(digest []byte) bool {
	return len(digest) == 0
}

// ContentDigest computes the sha256 content digest used as primary key for
// code and source rows.
func ContentDigest(content []byte) []byte {
	h := sha256.Sum256(content)
	return h[:]
}

// KeccakDigest computes the keccak256 digest stored in the secondary index.
func KeccakDigest(content []byte) []byte {
	return crypto.Keccak256(content)
}

// GenesisTransactionHash derives the deterministic transaction hash for a
// deployment with no creation transaction. It has to embed the code digests
// so that two versions of the same genesis contract stay distinguishable.
func GenesisTransactionHash(creationCodeDigest, runtimeCodeDigest []byte) []byte {
	return crypto.Keccak256(bytes.Join([][]byte{creationCodeDigest, runtimeCodeDigest}, nil))
}

// generateID generates a new UUID
func generateID() string {
	return uuid.New().String()
}

// generateAPIKey generates a new API key
func generateAPIKey() string {
	b := make([]byte, 24)
	_, _ = rand.Read(b)
	return fmt.Sprintf("bv_key_%s", hex.EncodeToString(b))
}

// hashAPIKey hashes an API key for storage
func hashAPIKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}
