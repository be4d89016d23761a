// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enml

import (
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/enwiki/pkg/types"
)

func TestConvertNote(t *testing.T) {
	tr := &Transformer{}
	note := noteWith(`<div>Hi <b>there</b></div>`)
	note.Created = time.Date(2023, 12, 15, 14, 30, 0, 0, time.UTC)
	note.SourceURL = "https://example.com/origin"
	note.Tags = []string{"work"}
	note.Notebook = "Projects/Old Stuff"

	page := ConvertNote(tr, note, "Evernote")

	if page.Title != "Test Note" {
		t.Errorf("title = %q", page.Title)
	}
	if page.Space != "Evernote.Projects.OldStuff" {
		t.Errorf("space = %q, want Evernote.Projects.OldStuff", page.Space)
	}
	if !strings.HasPrefix(page.Content, "Hi **there**") {
		t.Errorf("content = %q", page.Content)
	}
	if !strings.Contains(page.Content, "**Originally created:** 2023-12-15 14:30") {
		t.Errorf("metadata block missing creation date: %q", page.Content)
	}
	if !strings.Contains(page.Content, "**Source:** [[https://example.com/origin]]") {
		t.Errorf("metadata block missing source: %q", page.Content)
	}
	if len(page.Tags) != 1 || page.Tags[0] != "work" {
		t.Errorf("tags = %v", page.Tags)
	}
}

func TestConvertNoteWithoutMetadata(t *testing.T) {
	tr := &Transformer{}
	note := noteWith(`<div>plain</div>`)

	page := ConvertNote(tr, note, "Evernote")

	if strings.Contains(page.Content, "----") {
		t.Errorf("unexpected metadata separator: %q", page.Content)
	}
	if page.Space != "Evernote" {
		t.Errorf("space = %q, want Evernote", page.Space)
	}
}

func TestConvertNoteMergesDownloadedImages(t *testing.T) {
	bundled := types.Attachment{Filename: "doc.pdf", MIMEType: "application/pdf", Hash: "aabbccddeeff00112233445566778899"}
	tr := &Transformer{}
	note := noteWith(`<div><img src="data:image/png;base64,aGVsbG8="/></div>`, bundled)

	page := ConvertNote(tr, note, "Evernote")

	if len(page.Attachments) != 2 {
		t.Fatalf("got %d attachments, want 2", len(page.Attachments))
	}
	if page.Attachments[0].Filename != "doc.pdf" {
		t.Errorf("bundled attachment lost: %v", page.Attachments[0])
	}
	if !strings.HasPrefix(page.Attachments[1].Filename, "embedded_") {
		t.Errorf("downloaded image missing: %v", page.Attachments[1])
	}
}
