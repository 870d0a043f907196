// Package history persists mode activation executions in SQLite.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rbright/modus/internal/engine"
)

//go:embed schema.sql
var schema string

// Store is a SQLite-backed execution log. It satisfies engine.Recorder.
type Store struct {
	sqlDB *sql.DB
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("history path is required")
	}
	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o700); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply history schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Record persists one finished execution.
func (s *Store) Record(ctx context.Context, exec engine.Execution) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("history is not configured")
	}
	if strings.TrimSpace(exec.ID) == "" {
		return fmt.Errorf("execution id is required")
	}

	failures := exec.Failures
	if failures == nil {
		failures = []string{}
	}
	encoded, err := json.Marshal(failures)
	if err != nil {
		return fmt.Errorf("encode failures: %w", err)
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO executions (
	id,
	mode,
	trigger,
	status,
	reason,
	total,
	completed,
	failed,
	skipped,
	failures,
	started_at,
	finished_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		exec.ID,
		exec.Mode,
		exec.Trigger,
		string(exec.Status),
		exec.Reason,
		exec.Total,
		exec.Completed,
		exec.Failed,
		exec.Skipped,
		string(encoded),
		exec.StartedAt.UTC().UnixMilli(),
		exec.FinishedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record execution: %w", err)
	}
	return nil
}

// List returns up to limit executions, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]engine.Execution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("history is not configured")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT
	id,
	mode,
	trigger,
	status,
	reason,
	total,
	completed,
	failed,
	skipped,
	failures,
	started_at,
	finished_at
FROM executions
ORDER BY started_at DESC, rowid DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	records := make([]engine.Execution, 0, limit)
	for rows.Next() {
		var (
			exec       engine.Execution
			status     string
			failures   string
			startedAt  int64
			finishedAt int64
		)
		if err := rows.Scan(
			&exec.ID,
			&exec.Mode,
			&exec.Trigger,
			&status,
			&exec.Reason,
			&exec.Total,
			&exec.Completed,
			&exec.Failed,
			&exec.Skipped,
			&failures,
			&startedAt,
			&finishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		exec.Status = engine.Status(status)
		exec.StartedAt = time.UnixMilli(startedAt).UTC()
		exec.FinishedAt = time.UnixMilli(finishedAt).UTC()
		if err := json.Unmarshal([]byte(failures), &exec.Failures); err != nil {
			return nil, fmt.Errorf("decode failures for %s: %w", exec.ID, err)
		}
		if len(exec.Failures) == 0 {
			exec.Failures = nil
		}
		records = append(records, exec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate executions: %w", err)
	}
	return records, nil
}
