// Package storage keeps an optional SQLite history of comparison runs.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/spherical/pdf-diff/internal/domain"
	"github.com/spherical/pdf-diff/internal/report"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("record not found")

// DB represents a database connection interface.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	reference    TEXT NOT NULL,
	comparison   TEXT NOT NULL,
	output_path  TEXT NOT NULL,
	generated_at TIMESTAMP NOT NULL,
	totals       TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS page_summaries (
	run_id            TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	page_index        INTEGER NOT NULL,
	changed_pixels    INTEGER NOT NULL,
	overlay_generated BOOLEAN NOT NULL,
	text_change_spans INTEGER NOT NULL,
	inserts           INTEGER NOT NULL,
	deletes           INTEGER NOT NULL,
	mapped_boxes      INTEGER NOT NULL,
	alignment         TEXT NOT NULL,
	degradations      INTEGER NOT NULL,
	PRIMARY KEY (run_id, page_index)
);
CREATE INDEX IF NOT EXISTS idx_runs_generated_at ON runs(generated_at);
`

// Run is a stored comparison run.
type Run struct {
	ID          uuid.UUID
	Reference   string
	Comparison  string
	OutputPath  string
	GeneratedAt time.Time
	Totals      report.Totals
	Pages       []domain.PageSummary
}

// Store persists runs in SQLite.
type Store struct {
	db   *sql.DB
	runs *RunRepository
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, domain.IOError(fmt.Sprintf("open %s", path), err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, domain.IOError("apply schema", err)
	}
	return &Store{db: db, runs: NewRunRepository(db)}, nil
}

// Runs returns the run repository.
func (s *Store) Runs() *RunRepository { return s.runs }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// RunRepository handles run persistence.
type RunRepository struct {
	db DB
}

// NewRunRepository creates a new run repository.
func NewRunRepository(db DB) *RunRepository {
	return &RunRepository{db: db}
}

// Save stores a summary and its page records. A summary without a parseable
// run id gets a fresh one.
func (r *RunRepository) Save(ctx context.Context, s report.Summary) (uuid.UUID, error) {
	id, err := uuid.Parse(s.RunID)
	if err != nil {
		id = uuid.New()
	}

	totals, err := json.Marshal(s.Totals)
	if err != nil {
		return uuid.Nil, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, reference, comparison, output_path, generated_at, totals)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id.String(), s.Reference, s.Comparison, s.OutputPath, s.GeneratedAt.UTC(), string(totals))
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert run: %w", err)
	}

	for _, p := range s.Pages {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO page_summaries (run_id, page_index, changed_pixels, overlay_generated,
				text_change_spans, inserts, deletes, mapped_boxes, alignment, degradations)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, id.String(), p.PageIndex, p.ChangedPixels, p.OverlayGenerated,
			p.TextChangeSpans, p.Inserts, p.Deletes, p.MappedBoxes, string(p.Alignment), len(p.Degradations))
		if err != nil {
			return uuid.Nil, fmt.Errorf("insert page %d: %w", p.PageIndex, err)
		}
	}

	return id, tx.Commit()
}

// GetByID retrieves a run and its pages.
func (r *RunRepository) GetByID(ctx context.Context, id uuid.UUID) (*Run, error) {
	run := &Run{}
	var rawID, totals string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, reference, comparison, output_path, generated_at, totals
		FROM runs WHERE id = ?
	`, id.String()).Scan(&rawID, &run.Reference, &run.Comparison, &run.OutputPath, &run.GeneratedAt, &totals)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if run.ID, err = uuid.Parse(rawID); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(totals), &run.Totals); err != nil {
		return nil, fmt.Errorf("decode totals: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT page_index, changed_pixels, overlay_generated, text_change_spans,
			inserts, deletes, mapped_boxes, alignment
		FROM page_summaries WHERE run_id = ? ORDER BY page_index
	`, id.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.PageSummary
		var alignment string
		if err := rows.Scan(&p.PageIndex, &p.ChangedPixels, &p.OverlayGenerated, &p.TextChangeSpans,
			&p.Inserts, &p.Deletes, &p.MappedBoxes, &alignment); err != nil {
			return nil, err
		}
		p.Alignment = domain.AlignmentStrategy(alignment)
		run.Pages = append(run.Pages, p)
	}
	return run, rows.Err()
}

// List returns the most recent runs without page records, newest first.
func (r *RunRepository) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, reference, comparison, output_path, generated_at, totals
		FROM runs ORDER BY generated_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var rawID, totals string
		if err := rows.Scan(&rawID, &run.Reference, &run.Comparison, &run.OutputPath, &run.GeneratedAt, &totals); err != nil {
			return nil, err
		}
		if run.ID, err = uuid.Parse(rawID); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(totals), &run.Totals); err != nil {
			return nil, fmt.Errorf("decode totals: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
