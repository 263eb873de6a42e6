package database

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// DirectPairKey is the order-independent key of the direct conversation
// between a and b. Backends keep a unique index on it.
func DirectPairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	buf := make([]byte, 0, len(a)+len(b)+1)
	buf = append(buf, a...)
	buf = append(buf, 0)
	buf = append(buf, b...)
	sum := blake2b.Sum256(buf)
	return hex.EncodeToString(sum[:])
}
