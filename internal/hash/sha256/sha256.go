// Package sha256 names diagnostic dumps by the SHA-256 of their content.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"strings"
)

// Hasher implements crawler.Hasher using SHA-256.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the hex digest of data.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// DumpPath builds "<prefix>/<taskID>/<digest>.json". Identical payloads
// within a task collapse onto one object.
func DumpPath(prefix, taskID, digest string) string {
	return path.Join(strings.Trim(prefix, "/"), taskID, digest+".json")
}
