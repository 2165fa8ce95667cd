package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// SumString is Sum for strings.
func SumString(s string) string {
	return Sum([]byte(s))
}

// New returns a streaming SHA-256 hash; finish it with Hex.
func New() hash.Hash { return sha256.New() }

// Hex returns the hex-encoded digest of h.
func Hex(h hash.Hash) string { return hex.EncodeToString(h.Sum(nil)) }
