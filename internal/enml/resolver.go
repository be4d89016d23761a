// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enml

import (
	"fmt"
	"strings"

	"github.com/pdiddy/enwiki/pkg/types"
)

// maxSuffixAttempts bounds the numeric-suffix search before falling back to
// content-hash naming.
const maxSuffixAttempts = 1000

// AttachmentIndex resolves content-hash references from note markup to
// attachments and hands out collision-free filenames for images materialized
// during conversion.
type AttachmentIndex struct {
	byHash map[string]*types.Attachment
	used   map[string]struct{}
}

// normalizeHash lowercases a hash reference and strips separator characters.
// Markup in the wild carries hashes as "ABCDEF", "abcdef", and "ab-cd-ef".
func normalizeHash(h string) string {
	return strings.ReplaceAll(strings.ToLower(h), "-", "")
}

// NewAttachmentIndex builds the hash lookup and used-filename set from a
// note's bundled attachments.
func NewAttachmentIndex(attachments []types.Attachment) *AttachmentIndex {
	ix := &AttachmentIndex{
		byHash: make(map[string]*types.Attachment, len(attachments)),
		used:   make(map[string]struct{}, len(attachments)),
	}
	for i := range attachments {
		att := &attachments[i]
		ix.byHash[normalizeHash(att.Hash)] = att
		ix.used[strings.ToLower(att.Filename)] = struct{}{}
	}
	return ix
}

// Resolve returns the attachment referenced by hash, or nil when no bundled
// attachment matches. Lookup is case- and separator-insensitive.
func (ix *AttachmentIndex) Resolve(hash string) *types.Attachment {
	if hash == "" {
		return nil
	}
	return ix.byHash[normalizeHash(hash)]
}

// UniqueFilename returns candidate if unused, otherwise appends an
// incrementing numeric suffix before the extension. After maxSuffixAttempts
// it falls back to a name derived from the content hash, which is unique per
// distinct content. The returned name is registered as used.
func (ix *AttachmentIndex) UniqueFilename(candidate, hash string) string {
	if _, taken := ix.used[strings.ToLower(candidate)]; !taken {
		ix.used[strings.ToLower(candidate)] = struct{}{}
		return candidate
	}

	base, ext := candidate, ""
	if i := strings.LastIndex(candidate, "."); i >= 0 {
		base, ext = candidate[:i], candidate[i:]
	}

	for n := 1; n <= maxSuffixAttempts; n++ {
		name := fmt.Sprintf("%s_%d%s", base, n, ext)
		if _, taken := ix.used[strings.ToLower(name)]; !taken {
			ix.used[strings.ToLower(name)] = struct{}{}
			return name
		}
	}

	short := normalizeHash(hash)
	if len(short) > 12 {
		short = short[:12]
	}
	name := short + ext
	ix.used[strings.ToLower(name)] = struct{}{}
	return name
}
