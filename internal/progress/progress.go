// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package progress tracks per-note import status across process restarts.
// The tracker writes its full state through to disk after every mutation, so
// an interrupted run loses at most the note that was in flight.
// See docs/ARCHITECTURE § Resumability.
package progress

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// DefaultStateFile is the tracker's state file name when none is configured.
const DefaultStateFile = ".evernote_import_progress.json"

// Status is a note's position in the import state machine:
// pending -> uploaded | failed | skipped.
type Status string

const (
	StatusPending  Status = "pending"
	StatusUploaded Status = "uploaded"
	StatusFailed   Status = "failed"
	StatusSkipped  Status = "skipped"
)

// NoteProgress records one note's import outcome.
type NoteProgress struct {
	Identifier string `json:"identifier"`
	Title      string `json:"title"`
	Status     Status `json:"status"`
	Error      string `json:"error,omitempty"`
	PageURL    string `json:"page_url,omitempty"`
	UploadedAt string `json:"uploaded_at,omitempty"`
	SourceFile string `json:"source_file,omitempty"`
}

// State is the full persisted progress of an import session.
type State struct {
	StartedAt   string                   `json:"started_at"`
	LastUpdated string                   `json:"last_updated"`
	WikiURL     string                   `json:"wiki_url"`
	Space       string                   `json:"space"`
	TotalNotes  int                      `json:"total_notes"`
	Notes       map[string]*NoteProgress `json:"notes"`
}

func newState() State {
	now := time.Now().Format(time.RFC3339)
	return State{
		StartedAt:   now,
		LastUpdated: now,
		Notes:       make(map[string]*NoteProgress),
	}
}

// CountByStatus returns the number of tracked notes in the given status.
func (s *State) CountByStatus(status Status) int {
	n := 0
	for _, note := range s.Notes {
		if note.Status == status {
			n++
		}
	}
	return n
}

// Summary formats a one-line progress overview.
func (s *State) Summary() string {
	return fmt.Sprintf("Progress: %d uploaded, %d failed, %d skipped, %d pending (total: %d)",
		s.CountByStatus(StatusUploaded), s.CountByStatus(StatusFailed),
		s.CountByStatus(StatusSkipped), s.CountByStatus(StatusPending), len(s.Notes))
}

// Tracker persists per-note status so interrupted runs resume without
// reprocessing. All mutating operations write through to the state file.
type Tracker struct {
	path  string
	state State
}

// NewTracker creates a tracker persisting to path. An empty path uses
// DefaultStateFile in the working directory.
func NewTracker(path string) *Tracker {
	if path == "" {
		path = DefaultStateFile
	}
	return &Tracker{path: path, state: newState()}
}

// State exposes the current in-memory state for reporting.
func (t *Tracker) State() *State {
	return &t.state
}

// Load restores state from the state file. It reports whether previous state
// was found; a missing or corrupt file leaves a fresh empty state, since a
// damaged progress file must never block a re-import.
func (t *Tracker) Load() bool {
	data, err := os.ReadFile(t.path)
	if err != nil {
		return false
	}

	var loaded State
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.state = newState()
		return false
	}
	if loaded.Notes == nil {
		loaded.Notes = make(map[string]*NoteProgress)
	}
	t.state = loaded
	return true
}

// Save writes the full state to the state file.
func (t *Tracker) Save() error {
	t.state.LastUpdated = time.Now().Format(time.RFC3339)

	data, err := json.MarshalIndent(&t.state, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding progress state: %w", err)
	}
	if err := os.WriteFile(t.path, data, 0o644); err != nil {
		return fmt.Errorf("writing progress state: %w", err)
	}
	return nil
}

// Reset clears in-memory state and deletes the state file.
func (t *Tracker) Reset() error {
	t.state = newState()
	if err := os.Remove(t.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing progress state: %w", err)
	}
	return nil
}

// StartSession records the destination and expected note count.
func (t *Tracker) StartSession(wikiURL, space string, totalNotes int) error {
	t.state.WikiURL = wikiURL
	t.state.Space = space
	t.state.TotalNotes = totalNotes
	return t.Save()
}

// Register creates a pending entry for an unseen identifier. Re-registering
// an existing identifier is a no-op, preserving its recorded status.
func (t *Tracker) Register(identifier, title, sourceFile string) {
	if _, seen := t.state.Notes[identifier]; seen {
		return
	}
	t.state.Notes[identifier] = &NoteProgress{
		Identifier: identifier,
		Title:      title,
		Status:     StatusPending,
		SourceFile: sourceFile,
	}
}

// MarkUploaded transitions a note to uploaded and persists.
func (t *Tracker) MarkUploaded(identifier, pageURL string) error {
	note, ok := t.state.Notes[identifier]
	if !ok {
		return nil
	}
	note.Status = StatusUploaded
	note.PageURL = pageURL
	note.UploadedAt = time.Now().Format(time.RFC3339)
	return t.Save()
}

// MarkFailed transitions a note to failed with an error detail and persists.
func (t *Tracker) MarkFailed(identifier, errMsg string) error {
	note, ok := t.state.Notes[identifier]
	if !ok {
		return nil
	}
	note.Status = StatusFailed
	note.Error = errMsg
	return t.Save()
}

// MarkSkipped transitions a note to skipped with a reason and persists.
func (t *Tracker) MarkSkipped(identifier, reason string) error {
	note, ok := t.state.Notes[identifier]
	if !ok {
		return nil
	}
	note.Status = StatusSkipped
	note.Error = reason
	return t.Save()
}

// IsProcessed reports whether a note reached uploaded or skipped.
func (t *Tracker) IsProcessed(identifier string) bool {
	note, ok := t.state.Notes[identifier]
	if !ok {
		return false
	}
	return note.Status == StatusUploaded || note.Status == StatusSkipped
}

// ShouldRetry reports whether a note should be (re)processed: it previously
// failed, or it has never been seen.
func (t *Tracker) ShouldRetry(identifier string) bool {
	note, ok := t.state.Notes[identifier]
	if !ok {
		return true
	}
	return note.Status == StatusFailed
}

// FailedNotes returns the notes currently in failed status.
func (t *Tracker) FailedNotes() []*NoteProgress {
	var failed []*NoteProgress
	for _, note := range t.state.Notes {
		if note.Status == StatusFailed {
			failed = append(failed, note)
		}
	}
	return failed
}
