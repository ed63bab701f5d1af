package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"sync"
)

// hasherPool keeps SHA-256 instances for ETag computation.
var hasherPool = sync.Pool{
	New: func() any {
		return sha256.New()
	},
}

// Hash returns the SHA-256 digest of data.
func Hash(data []byte) []byte {
	h := hasherPool.Get().(hash.Hash)
	h.Reset()

	h.Write(data)
	sum := h.Sum(nil)

	h.Reset()
	hasherPool.Put(h)

	return sum
}

// ETag returns the entity tag of a serialized value: the hex-encoded
// SHA-256 of its bytes, quoted as RFC 9110 requires.
//
//	w.Header().Set("ETag", utils.ETag(body))
func ETag(data []byte) string {
	return `"` + hex.EncodeToString(Hash(data)) + `"`
}
