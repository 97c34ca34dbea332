// Package checksum fingerprints draft files and stored script content.
package checksum

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Content returns the digest of a JSON document with insignificant
// whitespace removed, so re-indented script content keeps its checksum.
// Invalid JSON is hashed as is.
func Content(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return Sum(raw)
	}
	return Sum(buf.Bytes())
}
