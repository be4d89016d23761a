// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package importer drives the batch import: walk ENEX sources, convert each
// note, upload it, and record the outcome in the progress tracker and the
// history database. One note failing never aborts the batch.
// See docs/ARCHITECTURE § Import Pipeline.
package importer

import (
	"context"
	"fmt"
	"io"

	"github.com/pdiddy/enwiki/internal/enex"
	"github.com/pdiddy/enwiki/internal/enml"
	"github.com/pdiddy/enwiki/internal/progress"
	"github.com/pdiddy/enwiki/internal/store"
	"github.com/pdiddy/enwiki/pkg/types"
)

// Uploader abstracts the wiki client so tests can supply a fake.
type Uploader interface {
	TestConnection(ctx context.Context) error
	CreateOrUpdatePage(ctx context.Context, page *types.ConvertedPage, dryRun bool) types.UploadResult
}

// Options configures one batch run.
type Options struct {
	Source       string // ENEX file or directory of them
	Space        string // target wiki space
	WikiURL      string // recorded in progress state and history
	DryRun       bool   // convert and report without uploading
	Resume       bool   // keep prior progress, skip processed notes
	RetryFailed  bool   // process only notes that previously failed
	SkipExisting bool   // skip notes already imported to this wiki
	Verbose      bool   // print a per-note detail line
}

// Summary holds counts from a batch run.
type Summary struct {
	Total    int
	Uploaded int
	Failed   int
	Skipped  int
}

// HasFailures reports whether any note failed.
func (s Summary) HasFailures() bool {
	return s.Failed > 0
}

// Importer wires the pipeline stages together.
type Importer struct {
	Uploader    Uploader
	Transformer *enml.Transformer
	Tracker     *progress.Tracker
	Store       *store.Store
}

// trackerMark surfaces a failed progress save. The note's outcome is still
// in the history database, but a run interrupted after this point would
// reprocess it, so the operator should know resume is compromised.
func (imp *Importer) trackerMark(w io.Writer, err error) {
	if err != nil {
		fmt.Fprintf(w, "  warning: progress save failed: %v\n", err)
	}
}

// Run executes a batch import and writes one status line per note to w.
// It returns an error only for fatal conditions: an unreadable source, an
// empty source, or an unreachable wiki. Per-note failures are counted in
// the summary and recorded, then the batch moves on.
func (imp *Importer) Run(ctx context.Context, opts Options, w io.Writer) (Summary, error) {
	_, total, err := enex.Inventory(opts.Source)
	if err != nil {
		return Summary{}, err
	}
	if total == 0 {
		return Summary{}, fmt.Errorf("no notes found in %s", opts.Source)
	}

	if !opts.DryRun {
		if err := imp.Uploader.TestConnection(ctx); err != nil {
			return Summary{}, fmt.Errorf("wiki connection check failed: %w", err)
		}
	}

	resuming := opts.Resume || opts.RetryFailed
	if resuming {
		if imp.Tracker.Load() {
			fmt.Fprintf(w, "resuming: %s\n", imp.Tracker.State().Summary())
		}
	} else {
		if err := imp.Tracker.Reset(); err != nil {
			return Summary{}, err
		}
	}
	if err := imp.Tracker.StartSession(opts.WikiURL, opts.Space, total); err != nil {
		return Summary{}, err
	}

	sessionID, err := imp.Store.CreateSession(ctx, opts.Source, opts.WikiURL, opts.Space, total)
	if err != nil {
		return Summary{}, err
	}

	var summary Summary

	walkErr := enex.Walk(opts.Source, func(file string, note types.Note) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		summary.Total++

		id := progress.NoteIdentifier(note.Title, note.Created)
		imp.Tracker.Register(id, note.Title, file)

		if resuming && imp.Tracker.IsProcessed(id) {
			fmt.Fprintf(w, "skipped %s (already processed)\n", note.Title)
			summary.Skipped++
			return nil
		}
		if opts.RetryFailed && !imp.Tracker.ShouldRetry(id) {
			fmt.Fprintf(w, "skipped %s (not in failed set)\n", note.Title)
			summary.Skipped++
			return nil
		}

		recordID, err := imp.Store.CreateRecord(ctx, sessionID, file, note.Title, id,
			opts.WikiURL, opts.Space, len(note.Attachments))
		if err != nil {
			return err
		}

		if opts.SkipExisting && !opts.DryRun {
			imported, err := imp.Store.IsNoteImported(ctx, id, opts.WikiURL)
			if err != nil {
				return err
			}
			if imported {
				fmt.Fprintf(w, "skipped %s (already on wiki)\n", note.Title)
				summary.Skipped++
				imp.trackerMark(w, imp.Tracker.MarkSkipped(id, "already imported to this wiki"))
				return imp.Store.UpdateRecordStatus(ctx, recordID, store.StatusSkipped, "", "", 0)
			}
		}

		page := enml.ConvertNote(imp.Transformer, &note, opts.Space)
		if opts.Verbose {
			fmt.Fprintf(w, "converting %s (id %s, space %s, %d attachments, %d tags)\n",
				note.Title, id, page.Space, len(page.Attachments), len(page.Tags))
		}
		result := imp.Uploader.CreateOrUpdatePage(ctx, &page, opts.DryRun)

		if !result.Success {
			fmt.Fprintf(w, "failed  %s: %s\n", note.Title, result.Error)
			summary.Failed++
			imp.trackerMark(w, imp.Tracker.MarkFailed(id, result.Error))
			return imp.Store.UpdateRecordStatus(ctx, recordID, store.StatusFailed, "", result.Error, 0)
		}

		if opts.DryRun {
			fmt.Fprintf(w, "would upload %s -> %s (%d attachments)\n",
				note.Title, page.Space, len(page.Attachments))
		} else {
			fmt.Fprintf(w, "uploaded %s -> %s\n", note.Title, result.PageURL)
			if result.AttachmentsFailed > 0 {
				fmt.Fprintf(w, "  warning: %d of %d attachments failed\n",
					result.AttachmentsFailed, result.AttachmentsFailed+result.AttachmentsUploaded)
			}
		}
		summary.Uploaded++
		imp.trackerMark(w, imp.Tracker.MarkUploaded(id, result.PageURL))
		return imp.Store.UpdateRecordStatus(ctx, recordID, store.StatusCompleted,
			result.PageURL, "", result.AttachmentsUploaded)
	})

	if err := imp.Store.UpdateSessionCounts(ctx, sessionID, summary.Uploaded, summary.Failed, summary.Skipped); err != nil {
		return summary, err
	}

	if walkErr != nil {
		imp.Store.FinishSession(ctx, sessionID, store.StatusFailed)
		return summary, walkErr
	}

	finalStatus := store.StatusCompleted
	if summary.HasFailures() {
		finalStatus = store.StatusFailed
	}
	if err := imp.Store.FinishSession(ctx, sessionID, finalStatus); err != nil {
		return summary, err
	}

	fmt.Fprintf(w, "\n%d uploaded, %d failed, %d skipped (total: %d)\n",
		summary.Uploaded, summary.Failed, summary.Skipped, summary.Total)
	return summary, nil
}
