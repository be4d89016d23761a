// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enml

import (
	"strings"

	"github.com/pdiddy/enwiki/pkg/types"
)

// notebookToSpace sanitizes a notebook path for use as an XWiki subspace:
// spaces removed, path separators mapped to space-path dots.
func notebookToSpace(notebook string) string {
	r := strings.NewReplacer(" ", "", "/", ".", "\\", ".")
	return r.Replace(notebook)
}

// ConvertNote transforms a note into a page ready for upload: the converted
// body plus a trailing metadata block, the target space path derived from
// space and the note's notebook, and the union of bundled and
// newly-materialized attachments.
func ConvertNote(t *Transformer, note *types.Note, space string) types.ConvertedPage {
	result := t.Transform(note)
	content := result.Content

	var meta []string
	if !note.Created.IsZero() {
		meta = append(meta, "**Originally created:** "+note.Created.Format("2006-01-02 15:04"))
	}
	if note.SourceURL != "" {
		meta = append(meta, "**Source:** [["+note.SourceURL+"]]")
	}
	if len(meta) > 0 {
		content += "\n\n----\n" + strings.Join(meta, "\n")
	}

	pageSpace := space
	if note.Notebook != "" {
		pageSpace = space + "." + notebookToSpace(note.Notebook)
	}

	attachments := make([]types.Attachment, 0, len(note.Attachments)+len(result.DownloadedImages))
	attachments = append(attachments, note.Attachments...)
	attachments = append(attachments, result.DownloadedImages...)

	return types.ConvertedPage{
		Title:       note.Title,
		Content:     content,
		Space:       pageSpace,
		Tags:        append([]string(nil), note.Tags...),
		Attachments: attachments,
		Created:     note.Created,
		Updated:     note.Updated,
	}
}
