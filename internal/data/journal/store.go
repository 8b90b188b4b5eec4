// Package journal keeps a sqlite log of poll cycles. It never stores the changes themselves.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"revwatch/internal/core/ports"
)

const (
	driverName   = "sqlite"
	maxAttempts  = 5
	defaultLimit = 50
)

type Store struct {
	path   string
	target string
	db     *sql.DB
	mu     sync.Mutex
}

var _ ports.CycleJournal = (*Store)(nil)

// Open creates or upgrades the journal at path. Rows are scoped to target so one
// file can serve several watched repositories.
func Open(path, target string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("journal path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("journal path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal directory %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite journal %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite journal %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	target = strings.TrimSpace(target)
	if target == "" {
		target = "default"
	}
	return &Store{path: cleanPath, target: target, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Record(ctx context.Context, rec ports.CycleRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(rec.ID) == "" {
		return fmt.Errorf("cycle id must not be empty")
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}

	query := `
INSERT INTO poll_cycles (
  id, target, started_at_utc, duration_ms, mode, fetched, stored,
  changes_updated, types_updated, archives_updated, status, error
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  duration_ms=excluded.duration_ms,
  fetched=excluded.fetched,
  stored=excluded.stored,
  changes_updated=excluded.changes_updated,
  types_updated=excluded.types_updated,
  archives_updated=excluded.archives_updated,
  status=excluded.status,
  error=excluded.error
`
	return s.withRetry("record cycle", func() error {
		_, err := s.db.ExecContext(ctx, query,
			rec.ID,
			s.target,
			rec.StartedAt.UTC().Format(time.RFC3339Nano),
			rec.Duration.Milliseconds(),
			rec.Mode,
			rec.Fetched,
			rec.Stored,
			boolInt(rec.ChangesUpdated),
			boolInt(rec.TypesUpdated),
			boolInt(rec.ArchivesUpdated),
			rec.Status,
			rec.Error,
		)
		return err
	})
}

// Recent lists the newest cycles first.
func (s *Store) Recent(ctx context.Context, limit int) ([]ports.CycleRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = defaultLimit
	}

	query := `
SELECT
  id, started_at_utc, duration_ms, mode, fetched, stored,
  changes_updated, types_updated, archives_updated, status, error
FROM poll_cycles
WHERE target = ?
ORDER BY started_at_utc DESC, id DESC
LIMIT ?
`
	var rows *sql.Rows
	err := s.withRetry("load cycles", func() error {
		var qErr error
		rows, qErr = s.db.QueryContext(ctx, query, s.target, limit)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]ports.CycleRecord, 0)
	for rows.Next() {
		var (
			rec        ports.CycleRecord
			startedRaw string
			durationMS int64
			changed    int
			typed      int
			archived   int
		)
		if err := rows.Scan(
			&rec.ID,
			&startedRaw,
			&durationMS,
			&rec.Mode,
			&rec.Fetched,
			&rec.Stored,
			&changed,
			&typed,
			&archived,
			&rec.Status,
			&rec.Error,
		); err != nil {
			return nil, fmt.Errorf("scan cycle row: %w", err)
		}

		started, err := time.Parse(time.RFC3339Nano, startedRaw)
		if err != nil {
			return nil, fmt.Errorf("parse cycle timestamp %q: %w", startedRaw, err)
		}
		rec.StartedAt = started.UTC()
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		rec.ChangesUpdated = changed != 0
		rec.TypesUpdated = typed != 0
		rec.ArchivesUpdated = archived != 0
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cycle rows: %w", err)
	}
	return records, nil
}

// Prune deletes all but the newest keep cycles for this target.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if keep < 0 {
		keep = 0
	}
	var removed int64
	err := s.withRetry("prune cycles", func() error {
		res, err := s.db.ExecContext(ctx, `
DELETE FROM poll_cycles
WHERE target = ? AND id NOT IN (
  SELECT id FROM poll_cycles WHERE target = ? ORDER BY started_at_utc DESC, id DESC LIMIT ?
)`, s.target, s.target, keep)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	return removed, err
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
