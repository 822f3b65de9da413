package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint computes a stable cache/single-flight key from an ordered set
// of string parts (normalized prompt text, persona tag, context flags, ...).
// Grounded on llm/cache/hash_key.go's HashKeyStrategy: sha256 over the
// joined input, hex-encoded, truncated to 16 bytes for a compact key.
func Fingerprint(parts ...string) string {
	joined := strings.Join(parts, "\x1f") // unit separator avoids part collisions
	sum := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(sum[:16])
}
