package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/autoreply/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

var _ Store = (*SQLiteStore)(nil)

// Open returns the history store at path.
func Open(path string) (Store, error) {
	s, err := NewSQLiteStore(path)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// A single connection keeps :memory: databases coherent and
	// serializes writers.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys.
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// CreateRun inserts a new run. A run without an ID gets a fresh UUID.
func (s *SQLiteStore) CreateRun(ctx context.Context, run model.Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, fetched, replied, skipped, failed)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC(),
		run.Fetched, run.Replied, run.Skipped, run.Failed,
	)
	if err != nil {
		return fmt.Errorf("creating run %s: %w", run.ID, err)
	}

	return nil
}

// FinishRun stores the final counters of a run and stamps finished_at.
func (s *SQLiteStore) FinishRun(ctx context.Context, run model.Run) error {
	finished := time.Now()
	if run.FinishedAt != nil {
		finished = *run.FinishedAt
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET finished_at = ?, fetched = ?, replied = ?, skipped = ?, failed = ?
		WHERE id = ?`,
		finished.UTC(), run.Fetched, run.Replied, run.Skipped, run.Failed, run.ID,
	)
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", run.ID, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finishing run %s: %w", run.ID, sql.ErrNoRows)
	}

	return nil
}

// GetRun retrieves a single run by its ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	var run model.Run
	err := s.db.GetContext(ctx, &run, `
		SELECT id, started_at, finished_at, fetched, replied, skipped, failed
		FROM runs WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("getting run %s: %w", id, err)
	}

	return &run, nil
}

// RecordReply inserts the outcome of handling one message.
func (s *SQLiteStore) RecordReply(ctx context.Context, rec model.ReplyRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO replies (
			id, run_id, message_id, uid,
			sender, subject, summary, summary_error,
			status, error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.RunID, rec.MessageID, rec.UID,
		rec.Sender, rec.Subject, rec.Summary, rec.SummaryError,
		rec.Status, rec.Error, rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording reply %s: %w", rec.ID, err)
	}

	return nil
}

// HasReplied reports whether a reply to messageID was already sent.
// An empty messageID never matches.
func (s *SQLiteStore) HasReplied(ctx context.Context, messageID string) (bool, error) {
	if messageID == "" {
		return false, nil
	}

	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM replies WHERE message_id = ? AND status = ?",
		messageID, model.ReplyStatusSent,
	)
	if err != nil {
		return false, fmt.Errorf("checking reply history for %s: %w", messageID, err)
	}

	return count > 0, nil
}

// ListReplies retrieves replies newest first.
func (s *SQLiteStore) ListReplies(
	ctx context.Context,
	filter ReplyFilter,
) ([]model.ReplyRecord, error) {
	var conditions []string
	var args []interface{}

	if filter.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, *filter.Status)
	}
	if filter.RunID != nil {
		conditions = append(conditions, "run_id = ?")
		args = append(args, *filter.RunID)
	}

	query := "SELECT * FROM replies"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		if filter.Limit <= 0 {
			query += " LIMIT -1"
		}
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	var replies []model.ReplyRecord
	if err := s.db.SelectContext(ctx, &replies, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying replies: %w", err)
	}

	return replies, nil
}
