// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package progress

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// identifierLen is the truncated digest length. Sixteen hex characters keep
// collision risk negligible for deduplication; this is not a security key.
const identifierLen = 16

// NoteIdentifier derives a stable deduplication key from a note's title and
// creation time. Identical inputs always yield the identical key, which is
// the basis for idempotent re-import detection. A zero creation time keys on
// the title alone.
func NoteIdentifier(title string, created time.Time) string {
	key := title
	if !created.IsZero() {
		key = title + "_" + created.Format("2006-01-02T15:04:05")
	}
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:identifierLen]
}
