// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package importer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdiddy/enwiki/internal/enml"
	"github.com/pdiddy/enwiki/internal/progress"
	"github.com/pdiddy/enwiki/internal/store"
	"github.com/pdiddy/enwiki/pkg/types"
)

// fakeUploader records pages and fails titles listed in failTitles.
// onUpload, when set, runs before each upload returns.
type fakeUploader struct {
	pages      []*types.ConvertedPage
	failTitles map[string]bool
	connErr    error
	onUpload   func()
}

func (f *fakeUploader) TestConnection(ctx context.Context) error {
	return f.connErr
}

func (f *fakeUploader) CreateOrUpdatePage(ctx context.Context, page *types.ConvertedPage, dryRun bool) types.UploadResult {
	if f.onUpload != nil {
		f.onUpload()
	}
	if f.failTitles[page.Title] {
		return types.UploadResult{Error: "HTTP 500: server error"}
	}
	if !dryRun {
		f.pages = append(f.pages, page)
	}
	return types.UploadResult{
		Success: true,
		PageURL: "https://wiki.example.com/wiki/xwiki/Evernote/" + page.PageName(),
	}
}

func exportWithNotes(t *testing.T, dir string, titles ...string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n<en-export>\n")
	for i, title := range titles {
		fmt.Fprintf(&b, `<note><title>%s</title><content><![CDATA[<en-note><div>Body of %s</div></en-note>]]></content><created>2023121%dT120000Z</created></note>`+"\n",
			title, title, i)
	}
	b.WriteString("</en-export>\n")

	path := filepath.Join(dir, "notes.enex")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

type testEnv struct {
	imp       *Importer
	uploader  *fakeUploader
	stateFile string
	history   *store.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	history, err := store.Open(filepath.Join(dir, "imports.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { history.Close() })

	uploader := &fakeUploader{failTitles: map[string]bool{}}
	stateFile := filepath.Join(dir, "progress.json")
	return &testEnv{
		imp: &Importer{
			Uploader:    uploader,
			Transformer: &enml.Transformer{},
			Tracker:     progress.NewTracker(stateFile),
			Store:       history,
		},
		uploader:  uploader,
		stateFile: stateFile,
		history:   history,
	}
}

func TestRunUploadsBatch(t *testing.T) {
	env := newTestEnv(t)
	source := exportWithNotes(t, t.TempDir(), "Alpha", "Beta", "Gamma")

	var out bytes.Buffer
	summary, err := env.imp.Run(context.Background(), Options{
		Source:  source,
		Space:   "Evernote",
		WikiURL: "https://wiki.example.com",
	}, &out)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Total != 3 || summary.Uploaded != 3 || summary.Failed != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if len(env.uploader.pages) != 3 {
		t.Fatalf("uploaded %d pages, want 3", len(env.uploader.pages))
	}
	if env.uploader.pages[0].Title != "Alpha" {
		t.Errorf("first page title = %q", env.uploader.pages[0].Title)
	}
	if !strings.Contains(env.uploader.pages[0].Content, "Body of Alpha") {
		t.Errorf("page content = %q", env.uploader.pages[0].Content)
	}
	if !strings.Contains(out.String(), "uploaded Alpha") {
		t.Errorf("status output = %q", out.String())
	}

	// The history database recorded one completed session.
	sessions, err := env.history.RecentSessions(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
	if sessions[0].Status != store.StatusCompleted || sessions[0].CompletedNotes != 3 {
		t.Errorf("session = %+v", sessions[0])
	}
}

func TestRunOneFailureDoesNotAbortBatch(t *testing.T) {
	env := newTestEnv(t)
	env.uploader.failTitles["Beta"] = true
	source := exportWithNotes(t, t.TempDir(), "Alpha", "Beta", "Gamma")

	var out bytes.Buffer
	summary, err := env.imp.Run(context.Background(), Options{
		Source:  source,
		Space:   "Evernote",
		WikiURL: "https://wiki.example.com",
	}, &out)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Uploaded != 2 || summary.Failed != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if !summary.HasFailures() {
		t.Error("HasFailures should be true")
	}
	if !strings.Contains(out.String(), "failed  Beta: HTTP 500") {
		t.Errorf("status output = %q", out.String())
	}

	// The failure is in the tracker for --retry-failed.
	failed := env.imp.Tracker.FailedNotes()
	if len(failed) != 1 || failed[0].Title != "Beta" {
		t.Errorf("failed notes = %+v", failed)
	}

	sessions, _ := env.history.RecentSessions(context.Background(), 10)
	if sessions[0].Status != store.StatusFailed {
		t.Errorf("session status = %q, want failed", sessions[0].Status)
	}
}

func TestRunRetryFailedProcessesOnlyFailures(t *testing.T) {
	env := newTestEnv(t)
	env.uploader.failTitles["Beta"] = true
	source := exportWithNotes(t, t.TempDir(), "Alpha", "Beta", "Gamma")

	opts := Options{Source: source, Space: "Evernote", WikiURL: "https://wiki.example.com"}
	if _, err := env.imp.Run(context.Background(), opts, &bytes.Buffer{}); err != nil {
		t.Fatal(err)
	}

	// Second run: Beta now succeeds; Alpha and Gamma must be skipped.
	env.uploader.failTitles = map[string]bool{}
	env.uploader.pages = nil
	opts.RetryFailed = true

	var out bytes.Buffer
	summary, err := env.imp.Run(context.Background(), opts, &out)
	if err != nil {
		t.Fatalf("retry run: %v", err)
	}
	if summary.Uploaded != 1 || summary.Skipped != 2 {
		t.Errorf("summary = %+v", summary)
	}
	if len(env.uploader.pages) != 1 || env.uploader.pages[0].Title != "Beta" {
		t.Errorf("retried pages = %+v", env.uploader.pages)
	}
}

func TestRunResumeSkipsProcessedNotes(t *testing.T) {
	env := newTestEnv(t)
	source := exportWithNotes(t, t.TempDir(), "Alpha", "Beta")

	opts := Options{Source: source, Space: "Evernote", WikiURL: "https://wiki.example.com"}
	if _, err := env.imp.Run(context.Background(), opts, &bytes.Buffer{}); err != nil {
		t.Fatal(err)
	}

	env.uploader.pages = nil
	opts.Resume = true
	summary, err := env.imp.Run(context.Background(), opts, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Skipped != 2 || summary.Uploaded != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if len(env.uploader.pages) != 0 {
		t.Errorf("resume re-uploaded pages: %+v", env.uploader.pages)
	}
}

func TestRunDryRun(t *testing.T) {
	env := newTestEnv(t)
	env.uploader.connErr = fmt.Errorf("unreachable")
	source := exportWithNotes(t, t.TempDir(), "Alpha")

	// Dry runs skip the connectivity check and never upload.
	var out bytes.Buffer
	summary, err := env.imp.Run(context.Background(), Options{
		Source:  source,
		Space:   "Evernote",
		WikiURL: "https://wiki.example.com",
		DryRun:  true,
		Verbose: true,
	}, &out)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Uploaded != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if len(env.uploader.pages) != 0 {
		t.Errorf("dry run uploaded pages: %+v", env.uploader.pages)
	}
	if !strings.Contains(out.String(), "would upload Alpha") {
		t.Errorf("status output = %q", out.String())
	}
	if !strings.Contains(out.String(), "converting Alpha (id ") {
		t.Errorf("missing verbose detail line: %q", out.String())
	}
}

func TestRunFatalConditions(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()

	// Empty source is fatal.
	empty := filepath.Join(dir, "empty.enex")
	os.WriteFile(empty, []byte(`<?xml version="1.0"?><en-export></en-export>`), 0o644)
	if _, err := env.imp.Run(context.Background(), Options{Source: empty}, &bytes.Buffer{}); err == nil {
		t.Error("expected error for empty source")
	}

	// Unreachable wiki is fatal before any note is touched.
	env.uploader.connErr = fmt.Errorf("connection refused")
	source := exportWithNotes(t, dir, "Alpha")
	_, err := env.imp.Run(context.Background(), Options{Source: source, Space: "S", WikiURL: "u"}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "connection") {
		t.Errorf("err = %v, want connection failure", err)
	}
}

func TestRunWarnsWhenProgressSaveFails(t *testing.T) {
	dir := t.TempDir()
	history, err := store.Open(filepath.Join(dir, "imports.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { history.Close() })

	// The state file lives in a directory that vanishes mid-run, so the
	// write-through save after the upload fails.
	stateDir := filepath.Join(dir, "state")
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		t.Fatal(err)
	}
	uploader := &fakeUploader{
		failTitles: map[string]bool{},
		onUpload:   func() { os.RemoveAll(stateDir) },
	}
	imp := &Importer{
		Uploader:    uploader,
		Transformer: &enml.Transformer{},
		Tracker:     progress.NewTracker(filepath.Join(stateDir, "progress.json")),
		Store:       history,
	}
	source := exportWithNotes(t, dir, "Alpha")

	var out bytes.Buffer
	summary, err := imp.Run(context.Background(), Options{
		Source:  source,
		Space:   "Evernote",
		WikiURL: "https://wiki.example.com",
	}, &out)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// The upload itself succeeded; only the resume checkpoint was lost.
	if summary.Uploaded != 1 || summary.Failed != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if !strings.Contains(out.String(), "warning: progress save failed") {
		t.Errorf("missing save warning in output: %q", out.String())
	}
}

func TestRunSkipExisting(t *testing.T) {
	env := newTestEnv(t)
	source := exportWithNotes(t, t.TempDir(), "Alpha", "Beta")

	opts := Options{Source: source, Space: "Evernote", WikiURL: "https://wiki.example.com"}
	if _, err := env.imp.Run(context.Background(), opts, &bytes.Buffer{}); err != nil {
		t.Fatal(err)
	}

	// Fresh tracker, same history database: the cross-run dedup must skip
	// both notes.
	env.imp.Tracker = progress.NewTracker(filepath.Join(t.TempDir(), "fresh.json"))
	env.uploader.pages = nil
	opts.SkipExisting = true

	summary, err := env.imp.Run(context.Background(), opts, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Skipped != 2 || summary.Uploaded != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if len(env.uploader.pages) != 0 {
		t.Errorf("skip-existing re-uploaded: %+v", env.uploader.pages)
	}
}
