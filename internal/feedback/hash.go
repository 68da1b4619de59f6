package feedback

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
)

// SelfieHash derives a pseudonymous searcher identity from a query embedding:
// a SHA-256 over the little-endian float32 bytes. Repeated searches with a
// bit-identical embedding map to the same hash, linking their feedback
// history without persisting the biometric vector itself.
func SelfieHash(embedding []float32) string {
	buf := make([]byte, 4*len(embedding))
	for i, v := range embedding {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:])
}
