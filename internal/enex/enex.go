// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package enex parses Evernote ENEX export files into Note values.
// See docs/ARCHITECTURE § Source Parsing.
package enex

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/pdiddy/enwiki/pkg/types"
)

// timeLayout is the fixed ENEX timestamp pattern (e.g. "20231215T143022Z").
const timeLayout = "20060102T150405Z"

// parseTime parses an ENEX timestamp. Malformed or empty values yield the
// zero time; the export format carries no partial timestamps worth keeping.
func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t
}

// XML shapes for the ENEX document. Resources carry base64 payloads that can
// run to many megabytes, so notes are decoded one element at a time rather
// than by materializing the whole export.
type enexNote struct {
	Title      string         `xml:"title"`
	Content    string         `xml:"content"`
	Created    string         `xml:"created"`
	Updated    string         `xml:"updated"`
	Tags       []string       `xml:"tag"`
	Attributes *noteAttrs     `xml:"note-attributes"`
	Resources  []enexResource `xml:"resource"`
}

type noteAttrs struct {
	SourceURL string `xml:"source-url"`
}

type enexResource struct {
	Data       string         `xml:"data"`
	Mime       string         `xml:"mime"`
	Attributes *resourceAttrs `xml:"resource-attributes"`
}

type resourceAttrs struct {
	FileName string `xml:"file-name"`
}

// parseResource decodes one <resource> element into an Attachment. Resources
// with missing or undecodable data are dropped (nil return) -- the markup
// reference to them will surface as a visible missing-attachment placeholder
// during conversion.
func parseResource(r enexResource) *types.Attachment {
	raw := strings.Map(func(c rune) rune {
		if unicode.IsSpace(c) {
			return -1
		}
		return c
	}, r.Data)
	if raw == "" {
		return nil
	}

	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil
	}

	mimeType := strings.TrimSpace(r.Mime)
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	// Evernote references resources from ENML by the MD5 of their bytes.
	sum := md5.Sum(data)
	hash := hex.EncodeToString(sum[:])

	filename := ""
	if r.Attributes != nil {
		filename = strings.TrimSpace(r.Attributes.FileName)
	}
	if filename == "" {
		filename = hash + types.ExtensionForMIME(mimeType)
	}

	return &types.Attachment{
		Filename: filename,
		MIMEType: mimeType,
		Data:     data,
		Hash:     hash,
	}
}

// toNote converts a decoded note element into the shared Note shape.
func toNote(n enexNote) types.Note {
	title := strings.TrimSpace(n.Title)
	if title == "" {
		title = "Untitled"
	}

	note := types.Note{
		Title:   title,
		Content: n.Content,
		Created: parseTime(n.Created),
		Updated: parseTime(n.Updated),
	}

	for _, tag := range n.Tags {
		if tag != "" {
			note.Tags = append(note.Tags, tag)
		}
	}

	if n.Attributes != nil {
		note.SourceURL = strings.TrimSpace(n.Attributes.SourceURL)
	}

	for _, res := range n.Resources {
		if att := parseResource(res); att != nil {
			note.Attachments = append(note.Attachments, *att)
		}
	}

	return note
}

// forEachNote streams <note> elements from r, invoking fn for each.
func forEachNote(r io.Reader, fn func(types.Note) error) error {
	dec := xml.NewDecoder(r)
	// Exports in the wild occasionally declare legacy encodings.
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		return input, nil
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading export: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "note" {
			continue
		}

		var n enexNote
		if err := dec.DecodeElement(&n, &start); err != nil {
			return fmt.Errorf("decoding note element: %w", err)
		}
		if err := fn(toNote(n)); err != nil {
			return err
		}
	}
}

// ParseFile parses a single ENEX file and returns its notes in order.
func ParseFile(path string) ([]types.Note, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening export %s: %w", path, err)
	}
	defer f.Close()

	var notes []types.Note
	if err := forEachNote(f, func(n types.Note) error {
		notes = append(notes, n)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return notes, nil
}

// CountNotes counts the notes in an ENEX file without decoding resources.
func CountNotes(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening export %s: %w", path, err)
	}
	defer f.Close()

	count := 0
	dec := xml.NewDecoder(f)
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	depth := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return count, nil
		}
		if err != nil {
			return 0, fmt.Errorf("reading %s: %w", path, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			// Count only top-level note elements (children of en-export).
			if depth == 2 && t.Name.Local == "note" {
				count++
			}
		case xml.EndElement:
			depth--
		}
	}
}

// NoteSummary is a lightweight view of a note used for pre-scan inventories.
type NoteSummary struct {
	Title   string
	Created time.Time
}

// Summaries extracts title and creation date for every note in the file.
// Resource payloads are decoded and discarded by the XML decoder, so this
// stays cheaper than ParseFile only by skipping base64 and hash work.
func Summaries(path string) ([]NoteSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening export %s: %w", path, err)
	}
	defer f.Close()

	type slimNote struct {
		Title   string `xml:"title"`
		Created string `xml:"created"`
	}

	var summaries []NoteSummary
	dec := xml.NewDecoder(f)
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return summaries, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "note" {
			continue
		}
		var n slimNote
		if err := dec.DecodeElement(&n, &start); err != nil {
			return nil, fmt.Errorf("decoding note element: %w", err)
		}
		title := strings.TrimSpace(n.Title)
		if title == "" {
			title = "Untitled"
		}
		summaries = append(summaries, NoteSummary{Title: title, Created: parseTime(n.Created)})
	}
}

// findExports returns all .enex files under dir, sorted case-insensitively.
func findExports(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".enex") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	sort.Slice(files, func(i, j int) bool {
		return strings.ToLower(files[i]) < strings.ToLower(files[j])
	})
	return files, nil
}

// notebookPath maps an export file's location relative to the scan root onto
// a dot-delimited notebook path: "Projects/Archive/old.enex" becomes
// "Projects.Archive.old".
func notebookPath(root, file string) string {
	rel, err := filepath.Rel(root, file)
	if err != nil {
		rel = filepath.Base(file)
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	parts := strings.Split(filepath.ToSlash(rel), "/")
	return strings.Join(parts, ".")
}

// Walk parses every ENEX file under source, invoking fn with the source file
// path and each note. Source may be a single ENEX file or a directory of
// them. Notes carry their notebook path derived from the file location.
// Processing is sequential and stops at the first fn error.
func Walk(source string, fn func(file string, note types.Note) error) error {
	info, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("reading source %s: %w", source, err)
	}

	var files []string
	root := source
	if info.IsDir() {
		if files, err = findExports(source); err != nil {
			return err
		}
	} else {
		if !strings.EqualFold(filepath.Ext(source), ".enex") {
			return fmt.Errorf("source is not an ENEX file or directory: %s", source)
		}
		files = []string{source}
		root = filepath.Dir(source)
	}

	for _, file := range files {
		nb := notebookPath(root, file)
		f, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("opening export %s: %w", file, err)
		}
		walkErr := forEachNote(f, func(n types.Note) error {
			n.Notebook = nb
			return fn(file, n)
		})
		f.Close()
		if walkErr != nil {
			return fmt.Errorf("parsing %s: %w", file, walkErr)
		}
	}
	return nil
}

// Inventory builds a per-file note summary map for source, which may be a
// single ENEX file or a directory of them, and the grand total note count.
func Inventory(source string) (map[string][]NoteSummary, int, error) {
	info, err := os.Stat(source)
	if err != nil {
		return nil, 0, fmt.Errorf("reading source %s: %w", source, err)
	}

	inventory := make(map[string][]NoteSummary)
	total := 0

	if !info.IsDir() {
		if !strings.EqualFold(filepath.Ext(source), ".enex") {
			return nil, 0, fmt.Errorf("source is not an ENEX file or directory: %s", source)
		}
		summaries, err := Summaries(source)
		if err != nil {
			return nil, 0, err
		}
		inventory[source] = summaries
		return inventory, len(summaries), nil
	}

	files, err := findExports(source)
	if err != nil {
		return nil, 0, err
	}
	for _, file := range files {
		summaries, err := Summaries(file)
		if err != nil {
			return nil, 0, err
		}
		inventory[file] = summaries
		total += len(summaries)
	}
	return inventory, total, nil
}
