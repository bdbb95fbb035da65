// Package history keeps a ledger of build attempts in SQLite.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/pxbuild/internal/build"
	pxerrors "git.home.luguber.info/inful/pxbuild/internal/errors"
)

// Entry is one recorded build attempt.
type Entry struct {
	ID            int64         `json:"id"`
	BuildID       string        `json:"build_id"`
	Mode          string        `json:"mode"`
	Status        string        `json:"status"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
	Stage         string        `json:"stage,omitempty"`
	ErrorCategory string        `json:"error_category,omitempty"`
	Error         string        `json:"error,omitempty"`
	CodeBytes     int           `json:"code_bytes"`
	MapBytes      int           `json:"map_bytes"`
	Revision      string        `json:"revision,omitempty"`
}

// Store implements build.Ledger using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens or creates the ledger at path. Use ":memory:" for an in-memory
// database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, pxerrors.StorageFailed("open", fmt.Errorf("open sqlite database: %w", err))
	}
	// One connection: an in-memory database is private to its connection.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, pxerrors.StorageFailed("initialize", fmt.Errorf("initialize schema: %w", err))
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		build_id TEXT NOT NULL UNIQUE,
		mode TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		duration_ns INTEGER NOT NULL,
		stage TEXT,
		error_category TEXT,
		error TEXT,
		code_bytes INTEGER NOT NULL DEFAULT 0,
		map_bytes INTEGER NOT NULL DEFAULT 0,
		revision TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_builds_started_at ON builds(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record stores res.
func (s *Store) Record(ctx context.Context, res *build.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO builds (build_id, mode, status, started_at, duration_ns, stage, error_category, error, code_bytes, map_bytes, revision)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.BuildID, string(res.Mode), string(res.Status), res.StartTime.UnixNano(), int64(res.Duration),
		res.Stage, res.ErrorCategory, res.ErrorMessage, res.CodeBytes, res.MapBytes, res.Revision,
	)
	if err != nil {
		return pxerrors.StorageFailed("record", fmt.Errorf("insert build: %w", err))
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, build_id, mode, status, started_at, duration_ns, stage, error_category, error, code_bytes, map_bytes, revision
		 FROM builds ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, pxerrors.StorageFailed("query", fmt.Errorf("query builds: %w", err))
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                         Entry
			startedAt, durationNS     int64
			stage, category, msg, rev sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.BuildID, &e.Mode, &e.Status, &startedAt, &durationNS,
			&stage, &category, &msg, &e.CodeBytes, &e.MapBytes, &rev); err != nil {
			return nil, pxerrors.StorageFailed("query", fmt.Errorf("scan build: %w", err))
		}
		e.StartedAt = time.Unix(0, startedAt)
		e.Duration = time.Duration(durationNS)
		e.Stage = stage.String
		e.ErrorCategory = category.String
		e.Error = msg.String
		e.Revision = rev.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, pxerrors.StorageFailed("query", fmt.Errorf("iterate rows: %w", err))
	}
	return entries, nil
}

// Prune deletes entries that started before cutoff and returns how many were
// removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM builds WHERE started_at < ?", cutoff.UnixNano())
	if err != nil {
		return 0, pxerrors.StorageFailed("prune", fmt.Errorf("delete builds: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, pxerrors.StorageFailed("prune", err)
	}
	return n, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
