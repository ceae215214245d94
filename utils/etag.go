package utils

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"
)

// GenerateETag builds a weak validator from a document id and its last
// modification time.
func GenerateETag(id string, updatedAt time.Time) string {
	h := sha1.New()
	fmt.Fprintf(h, "%s-%d", id, updatedAt.UnixNano())
	return `"` + hex.EncodeToString(h.Sum(nil)) + `"`
}
