// Package history keeps a persistent record of submitted jobs in a
// local sqlite database, so finished runs stay auditable across
// restarts. The live job state machine never depends on it.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/docsmith-io/docsmith/internal/model"

	_ "modernc.org/sqlite"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyFinished = errors.New("already finished")
)

// Entry is one recorded job.
type Entry struct {
	ID         uuid.UUID    `json:"id"`
	Section    string       `json:"section"`
	Collection string       `json:"collection,omitempty"`
	Status     model.Status `json:"status"`
	Diagnostic string       `json:"diagnostic,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
}

type Store struct {
	db *sql.DB
}

func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	// sqlite allows one writer at a time, funnel every connection
	// through a single one so concurrent jobs queue instead of failing
	// with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	_, err = db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS jobs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			uuid TEXT NOT NULL UNIQUE,
			section TEXT NOT NULL,
			collection TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			diagnostic TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP DEFAULT NULL
		)`,
	)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating jobs table failed: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record persists a freshly submitted job.
func (s *Store) Record(ctx context.Context, job model.Job) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (uuid, section, collection, status, created_at) VALUES (?,?,?,?,?);`,
		job.ID.String(), job.Section, job.Collection, string(job.Status), job.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("executing sql insert failed: %w", err)
	}
	return nil
}

// Finish marks a recorded job terminal. Finishing a job twice returns
// ErrAlreadyFinished, the first outcome wins.
func (s *Store) Finish(ctx context.Context, id uuid.UUID, status model.Status, diagnostic string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			slog.ErrorContext(ctx, "Calling `tx.Rollback()` failed.", slog.String("uuid", id.String()))
		}
	}()

	var finished sql.NullTime
	row := tx.QueryRowContext(ctx,
		`SELECT finished_at FROM jobs WHERE uuid=?`, id.String(),
	)
	err = row.Scan(&finished)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case err != nil:
		return fmt.Errorf("executing sql query failed: %w", err)
	case finished.Valid:
		return ErrAlreadyFinished
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE jobs
		 SET
			status = ?,
			diagnostic = ?,
			finished_at = ?
		WHERE uuid = ?;
		`, string(status), diagnostic, time.Now().UTC(), id.String(),
	)
	if err != nil {
		return fmt.Errorf("executing sql update failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction failed: %w", err)
	}
	return nil
}

// Get returns one recorded job, ErrNotFound when it was never recorded.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT uuid, section, collection, status, diagnostic, created_at, finished_at
		 FROM jobs WHERE uuid=?`, id.String(),
	)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return entry, err
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT uuid, section, collection, status, diagnostic, created_at, finished_at
		 FROM jobs ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("executing sql query failed: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Prune deletes records finished before the cutoff and returns how
// many rows went away.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM jobs WHERE finished_at IS NOT NULL AND finished_at < ?`, cutoff.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("executing sql delete failed: %w", err)
	}
	ra, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("fetching affected rows failed: %w", err)
	}
	return ra, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanEntry(row scannable) (Entry, error) {
	var (
		entry    Entry
		rawID    string
		status   string
		finished sql.NullTime
	)
	err := row.Scan(
		&rawID,
		&entry.Section,
		&entry.Collection,
		&status,
		&entry.Diagnostic,
		&entry.CreatedAt,
		&finished,
	)
	if err != nil {
		return Entry{}, err
	}
	entry.ID, err = uuid.Parse(rawID)
	if err != nil {
		return Entry{}, fmt.Errorf("parsing stored uuid failed: %w", err)
	}
	entry.Status = model.Status(status)
	if finished.Valid {
		t := finished.Time
		entry.FinishedAt = &t
	}
	return entry, nil
}
