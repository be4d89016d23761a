// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists import history in SQLite: one row per import
// session and one per attempted note. It serves cross-run audit queries and
// "already imported to this wiki" deduplication; single-run crash-resume is
// the progress tracker's job.
// See docs/ARCHITECTURE § Import History.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultPath is the history database file when none is configured.
const DefaultPath = "evernote_imports.db"

// RecordStatus is an import record's lifecycle state.
type RecordStatus string

const (
	StatusPending    RecordStatus = "pending"
	StatusInProgress RecordStatus = "in_progress"
	StatusCompleted  RecordStatus = "completed"
	StatusFailed     RecordStatus = "failed"
	StatusSkipped    RecordStatus = "skipped"
)

// Record is one note's import attempt.
type Record struct {
	ID                  int64
	SessionID           int64
	SourceFile          string
	NoteTitle           string
	NoteIdentifier      string
	Status              RecordStatus
	WikiURL             string
	TargetSpace         string
	PageURL             string
	ErrorMessage        string
	AttachmentsCount    int
	AttachmentsUploaded int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Session is one batch import run.
type Session struct {
	ID             int64
	SourcePath     string
	WikiURL        string
	TargetSpace    string
	TotalNotes     int
	CompletedNotes int
	FailedNotes    int
	SkippedNotes   int
	Status         RecordStatus
	StartedAt      time.Time
	FinishedAt     time.Time
}

// Stats aggregates the full import history.
type Stats struct {
	TotalNotes    int
	Completed     int
	Failed        int
	Skipped       int
	TotalSessions int
}

// Store is the import history database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the history database at path, enabling WAL for
// crash recovery, and creates the schema if missing.
func Open(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS import_sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source_path TEXT NOT NULL,
			wiki_url TEXT NOT NULL,
			target_space TEXT NOT NULL,
			total_notes INTEGER DEFAULT 0,
			completed_notes INTEGER DEFAULT 0,
			failed_notes INTEGER DEFAULT 0,
			skipped_notes INTEGER DEFAULT 0,
			status TEXT DEFAULT 'pending',
			started_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			finished_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS import_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id INTEGER REFERENCES import_sessions(id),
			source_file TEXT NOT NULL,
			note_title TEXT NOT NULL,
			note_identifier TEXT NOT NULL,
			status TEXT DEFAULT 'pending',
			wiki_url TEXT,
			target_space TEXT,
			page_url TEXT,
			error_message TEXT,
			attachments_count INTEGER DEFAULT 0,
			attachments_uploaded INTEGER DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_identifier ON import_records(note_identifier)`,
		`CREATE INDEX IF NOT EXISTS idx_records_session ON import_records(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_records_status ON import_records(status)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_status ON import_sessions(status)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// CreateSession records the start of a batch run and returns its id.
func (s *Store) CreateSession(ctx context.Context, sourcePath, wikiURL, targetSpace string, totalNotes int) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO import_sessions (source_path, wiki_url, target_space, total_notes, status)
		 VALUES (?, ?, ?, ?, ?)`,
		sourcePath, wikiURL, targetSpace, totalNotes, string(StatusInProgress),
	)
	if err != nil {
		return 0, fmt.Errorf("creating session: %w", err)
	}
	return res.LastInsertId()
}

// UpdateSessionCounts updates a session's running totals.
func (s *Store) UpdateSessionCounts(ctx context.Context, sessionID int64, completed, failed, skipped int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE import_sessions
		 SET completed_notes = ?, failed_notes = ?, skipped_notes = ?
		 WHERE id = ?`,
		completed, failed, skipped, sessionID,
	)
	if err != nil {
		return fmt.Errorf("updating session counts: %w", err)
	}
	return nil
}

// FinishSession stamps a session's terminal status and finish time.
func (s *Store) FinishSession(ctx context.Context, sessionID int64, status RecordStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE import_sessions SET status = ?, finished_at = CURRENT_TIMESTAMP WHERE id = ?`,
		string(status), sessionID,
	)
	if err != nil {
		return fmt.Errorf("finishing session: %w", err)
	}
	return nil
}

// Session returns a session by id, or nil when absent.
func (s *Store) Session(ctx context.Context, sessionID int64) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source_path, wiki_url, target_space, total_notes,
		        completed_notes, failed_notes, skipped_notes, status,
		        started_at, finished_at
		 FROM import_sessions WHERE id = ?`, sessionID)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sess, err
}

// RecentSessions lists sessions newest-first.
func (s *Store) RecentSessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_path, wiki_url, target_space, total_notes,
		        completed_notes, failed_notes, skipped_notes, status,
		        started_at, finished_at
		 FROM import_sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var sess Session
	var status string
	var startedAt, finishedAt sql.NullTime
	err := row.Scan(&sess.ID, &sess.SourcePath, &sess.WikiURL, &sess.TargetSpace,
		&sess.TotalNotes, &sess.CompletedNotes, &sess.FailedNotes, &sess.SkippedNotes,
		&status, &startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}
	sess.Status = RecordStatus(status)
	sess.StartedAt = startedAt.Time
	sess.FinishedAt = finishedAt.Time
	return &sess, nil
}

// CreateRecord registers a note's import attempt and returns the record id.
func (s *Store) CreateRecord(ctx context.Context, sessionID int64, sourceFile, noteTitle, noteIdentifier, wikiURL, targetSpace string, attachmentsCount int) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO import_records
		 (session_id, source_file, note_title, note_identifier, wiki_url, target_space, attachments_count, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, sourceFile, noteTitle, noteIdentifier, wikiURL, targetSpace,
		attachmentsCount, string(StatusPending),
	)
	if err != nil {
		return 0, fmt.Errorf("creating record: %w", err)
	}
	return res.LastInsertId()
}

// UpdateRecordStatus sets a record's terminal outcome.
func (s *Store) UpdateRecordStatus(ctx context.Context, recordID int64, status RecordStatus, pageURL, errorMessage string, attachmentsUploaded int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE import_records
		 SET status = ?, page_url = ?, error_message = ?, attachments_uploaded = ?,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		string(status), pageURL, errorMessage, attachmentsUploaded, recordID,
	)
	if err != nil {
		return fmt.Errorf("updating record status: %w", err)
	}
	return nil
}

// RecordByIdentifier returns the most recent record for a note identifier,
// or nil when the note was never attempted.
func (s *Store) RecordByIdentifier(ctx context.Context, noteIdentifier string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, IFNULL(session_id, 0), source_file, note_title, note_identifier,
		        status, IFNULL(wiki_url, ''), IFNULL(target_space, ''),
		        IFNULL(page_url, ''), IFNULL(error_message, ''),
		        attachments_count, attachments_uploaded, created_at, updated_at
		 FROM import_records
		 WHERE note_identifier = ?
		 ORDER BY created_at DESC LIMIT 1`, noteIdentifier)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

// SessionRecords lists a session's records, optionally filtered by status.
func (s *Store) SessionRecords(ctx context.Context, sessionID int64, status RecordStatus, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, IFNULL(session_id, 0), source_file, note_title, note_identifier,
	                 status, IFNULL(wiki_url, ''), IFNULL(target_space, ''),
	                 IFNULL(page_url, ''), IFNULL(error_message, ''),
	                 attachments_count, attachments_uploaded, created_at, updated_at
	          FROM import_records WHERE session_id = ?`
	args := []any{sessionID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	var status string
	var createdAt, updatedAt sql.NullTime
	err := row.Scan(&rec.ID, &rec.SessionID, &rec.SourceFile, &rec.NoteTitle,
		&rec.NoteIdentifier, &status, &rec.WikiURL, &rec.TargetSpace,
		&rec.PageURL, &rec.ErrorMessage, &rec.AttachmentsCount,
		&rec.AttachmentsUploaded, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	rec.Status = RecordStatus(status)
	rec.CreatedAt = createdAt.Time
	rec.UpdatedAt = updatedAt.Time
	return &rec, nil
}

// IsNoteImported reports whether a note identifier already completed an
// import to the given wiki. This is the cross-run dedup query.
func (s *Store) IsNoteImported(ctx context.Context, noteIdentifier, wikiURL string) (bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM import_records
		 WHERE note_identifier = ? AND wiki_url = ? AND status = ?
		 LIMIT 1`,
		noteIdentifier, wikiURL, string(StatusCompleted),
	).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying import status: %w", err)
	}
	return true, nil
}

// Stats returns aggregate counts over the whole history.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END),
		        SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END),
		        SUM(CASE WHEN status = 'skipped' THEN 1 ELSE 0 END)
		 FROM import_records`,
	).Scan(&st.TotalNotes, &nullInt{&st.Completed}, &nullInt{&st.Failed}, &nullInt{&st.Skipped})
	if err != nil {
		return Stats{}, fmt.Errorf("querying record stats: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM import_sessions`,
	).Scan(&st.TotalSessions); err != nil {
		return Stats{}, fmt.Errorf("querying session stats: %w", err)
	}
	return st, nil
}

// DeleteSession removes a session and all its records.
func (s *Store) DeleteSession(ctx context.Context, sessionID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM import_records WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("deleting records: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM import_sessions WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return tx.Commit()
}

// nullInt scans a nullable aggregate into an int, defaulting to zero.
type nullInt struct{ dest *int }

func (n *nullInt) Scan(value any) error {
	if value == nil {
		*n.dest = 0
		return nil
	}
	switch v := value.(type) {
	case int64:
		*n.dest = int(v)
	case float64:
		*n.dest = int(v)
	default:
		return fmt.Errorf("unexpected aggregate type %T", value)
	}
	return nil
}
