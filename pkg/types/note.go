// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the enwiki import pipeline.
// See docs/ARCHITECTURE § Data Structures.
package types

import (
	"strings"
	"time"
)

// Attachment is a binary resource bundled with a note. Evernote references
// attachments from note markup by the MD5 hex digest of their content, so
// Hash is the cross-reference key between <en-media> tags and payloads.
type Attachment struct {
	// Filename is the attachment's display name. Not guaranteed unique
	// within a note.
	Filename string `json:"filename" yaml:"filename"`

	// MIMEType is the declared content type (e.g. "image/png").
	MIMEType string `json:"mime_type" yaml:"mime_type"`

	// Data is the raw decoded content.
	Data []byte `json:"-" yaml:"-"`

	// Hash is the lowercase MD5 hex digest of Data.
	Hash string `json:"hash" yaml:"hash"`
}

// IsImage reports whether the attachment carries an image MIME type.
func (a Attachment) IsImage() bool {
	return strings.HasPrefix(a.MIMEType, "image/")
}

// mimeExtensions maps common MIME types to filename extensions.
var mimeExtensions = map[string]string{
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"image/jpg":       ".jpg",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"image/svg+xml":   ".svg",
	"image/bmp":       ".bmp",
	"application/pdf": ".pdf",
	"audio/mpeg":      ".mp3",
	"audio/wav":       ".wav",
	"video/mp4":       ".mp4",
	"text/plain":      ".txt",
	"application/msword": ".doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
	"application/vnd.ms-excel": ".xls",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": ".xlsx",
}

// Extension returns the filename extension for the attachment's MIME type,
// or "" when the type is unknown.
func (a Attachment) Extension() string {
	return mimeExtensions[a.MIMEType]
}

// ExtensionForMIME returns the conventional filename extension for a MIME
// type, or "" when unknown.
func ExtensionForMIME(mimeType string) string {
	return mimeExtensions[mimeType]
}

// Note is one note parsed from an Evernote export. Notes are created by the
// parser and immutable afterwards; the transformer consumes each exactly once.
type Note struct {
	// Title is the note title ("Untitled" when the export omits it).
	Title string `json:"title" yaml:"title"`

	// Content is the raw ENML markup body.
	Content string `json:"content" yaml:"content"`

	// Created and Updated are the export timestamps. Zero when absent.
	Created time.Time `json:"created,omitempty" yaml:"created,omitempty"`
	Updated time.Time `json:"updated,omitempty" yaml:"updated,omitempty"`

	// Tags lists the note's tags in document order.
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`

	// Attachments lists bundled resources in document order.
	Attachments []Attachment `json:"attachments,omitempty" yaml:"attachments,omitempty"`

	// SourceURL is the clipped-from URL, when present.
	SourceURL string `json:"source_url,omitempty" yaml:"source_url,omitempty"`

	// Notebook is the dot-delimited source path of the note
	// (e.g. "Projects.Archive.old" for Projects/Archive/old.enex).
	Notebook string `json:"notebook,omitempty" yaml:"notebook,omitempty"`
}

// AttachmentByHash returns the first attachment whose hash matches exactly.
// Transformers should prefer the normalized lookup in the enml package; this
// is the raw-key variant used by the parser tests.
func (n *Note) AttachmentByHash(hash string) *Attachment {
	for i := range n.Attachments {
		if n.Attachments[i].Hash == hash {
			return &n.Attachments[i]
		}
	}
	return nil
}

// Notebook groups notes under a source name, optionally within a stack.
type Notebook struct {
	Name  string `json:"name" yaml:"name"`
	Stack string `json:"stack,omitempty" yaml:"stack,omitempty"`
	Notes []Note `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// SpacePath converts the notebook name (and stack) into an XWiki space path.
func (nb Notebook) SpacePath() string {
	name := sanitizeSpaceSegment(nb.Name)
	if nb.Stack != "" {
		return sanitizeSpaceSegment(nb.Stack) + "." + name
	}
	return name
}

func sanitizeSpaceSegment(s string) string {
	r := strings.NewReplacer(" ", "", "/", "", "\\", "")
	return r.Replace(s)
}

// ConvertedPage is a note transformed into XWiki markup, ready for upload.
type ConvertedPage struct {
	// Title is the page title (unsanitized note title).
	Title string `json:"title" yaml:"title"`

	// Content is the XWiki 2.1 syntax body.
	Content string `json:"content" yaml:"content"`

	// Space is the dot-delimited target space path
	// (e.g. "ImportedNotes.Projects.Archive").
	Space string `json:"space" yaml:"space"`

	// Tags are copied from the source note.
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`

	// Attachments is the union of the note's bundled attachments and any
	// images materialized during transformation.
	Attachments []Attachment `json:"attachments,omitempty" yaml:"attachments,omitempty"`

	Created time.Time `json:"created,omitempty" yaml:"created,omitempty"`
	Updated time.Time `json:"updated,omitempty" yaml:"updated,omitempty"`
}

// pageNameMax bounds the derived page name length.
const pageNameMax = 100

// PageName derives a valid XWiki page name from the title: path-unsafe
// characters and spaces removed, truncated, with a placeholder fallback.
func (p ConvertedPage) PageName() string {
	r := strings.NewReplacer(
		"/", "-", "\\", "-", ":", "-", "|", "-",
		"?", "", "*", "", `"`, "", "<", "", ">", "", " ", "",
	)
	name := r.Replace(p.Title)
	if runes := []rune(name); len(runes) > pageNameMax {
		name = string(runes[:pageNameMax])
	}
	if name == "" {
		return "UntitledNote"
	}
	return name
}
