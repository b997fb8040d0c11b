package stores

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/plusconf/plusconf/pkg/engine"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const memoryPath = ":memory:"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	// Every connection to :memory: opens a distinct database.
	if cfg.Path == memoryPath {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	}

	return &SQLiteStore{cfg: cfg}, nil
}

// Init opens the database connection. File databases use WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate&_time_format=sqlite", s.cfg.Path)
	if s.cfg.Path != memoryPath {
		dsn += "&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// BeginTx starts a new transaction
func (s *SQLiteStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
}

// Record stores the outcome of a pass, its warnings and, for a successful
// pass, its snapshot. result may be nil for a failed pass.
func (s *SQLiteStore) Record(ctx context.Context, passID string, result *engine.Result, passErr error) error {
	now := time.Now().UTC()
	pass := &Pass{
		ID:        passID,
		Status:    PassStatusSuccess,
		StartedAt: now,
		CreatedAt: now,
	}
	if passErr != nil {
		pass.Status = PassStatusFailed
		msg := passErr.Error()
		pass.Error = &msg
		if code := engine.CodeOf(passErr); code != "" {
			pass.ErrorCode = &code
		}
	}

	var warnings []engine.Warning
	if result != nil {
		if !result.StartedAt.IsZero() {
			pass.StartedAt = result.StartedAt.UTC()
		}
		pass.DurationMS = result.Duration.Milliseconds()
		pass.PageCount = len(result.Pages)
		pass.WarningCount = len(result.Warnings)
		warnings = result.Warnings
	}

	var data []byte
	if passErr == nil && result != nil {
		var err error
		if data, err = json.Marshal(result); err != nil {
			return fmt.Errorf("failed to encode snapshot: %w", err)
		}
	}

	tx, err := s.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertPass(ctx, tx, pass); err != nil {
		return err
	}

	for i, w := range warnings {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO warnings (pass_id, seq, message, key) VALUES (?, ?, ?, ?)`,
			passID, i, w.Message, w.Key)
		if err != nil {
			return fmt.Errorf("failed to record warning: %w", err)
		}
	}

	if data != nil {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO snapshots (pass_id, data, created_at) VALUES (?, ?, ?)`,
			passID, string(data), now)
		if err != nil {
			return fmt.Errorf("failed to record snapshot: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit pass %s: %w", passID, err)
	}
	return nil
}

func insertPass(ctx context.Context, tx *sql.Tx, pass *Pass) error {
	query := `
		INSERT INTO passes (id, status, error, error_code, started_at, duration_ms, page_count, warning_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := tx.ExecContext(ctx, query,
		pass.ID,
		pass.Status,
		pass.Error,
		pass.ErrorCode,
		pass.StartedAt,
		pass.DurationMS,
		pass.PageCount,
		pass.WarningCount,
		pass.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record pass: %w", err)
	}
	return nil
}

const passColumns = `id, status, error, error_code, started_at, duration_ms, page_count, warning_count, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPass(row rowScanner) (*Pass, error) {
	pass := &Pass{}
	err := row.Scan(
		&pass.ID,
		&pass.Status,
		&pass.Error,
		&pass.ErrorCode,
		&pass.StartedAt,
		&pass.DurationMS,
		&pass.PageCount,
		&pass.WarningCount,
		&pass.CreatedAt,
	)
	return pass, err
}

// GetPass retrieves a pass by ID
func (s *SQLiteStore) GetPass(ctx context.Context, id string) (*Pass, error) {
	query := `SELECT ` + passColumns + ` FROM passes WHERE id = ?`

	pass, err := scanPass(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("pass %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pass: %w", err)
	}

	return pass, nil
}

// ListPasses lists passes, most recent first. A nil status lists every pass.
func (s *SQLiteStore) ListPasses(ctx context.Context, status *PassStatus, limit, offset int) ([]*Pass, error) {
	query := `SELECT ` + passColumns + ` FROM passes WHERE 1=1`
	args := []interface{}{}

	if status != nil {
		query += " AND status = ?"
		args = append(args, *status)
	}

	query += " ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list passes: %w", err)
	}
	defer rows.Close()

	passes := []*Pass{}
	for rows.Next() {
		pass, err := scanPass(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pass: %w", err)
		}
		passes = append(passes, pass)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating passes: %w", err)
	}

	return passes, nil
}

// DeletePassesBefore removes passes recorded before the given time, with
// their warnings and snapshots.
func (s *SQLiteStore) DeletePassesBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM passes WHERE created_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete passes: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}

// GetSnapshot retrieves the snapshot of a successful pass
func (s *SQLiteStore) GetSnapshot(ctx context.Context, passID string) (*Snapshot, error) {
	query := `SELECT pass_id, data, created_at FROM snapshots WHERE pass_id = ?`

	snap, err := scanSnapshot(s.db.QueryRowContext(ctx, query, passID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot of pass %s: %w", passID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	return snap, nil
}

// LastValid returns the snapshot of the most recent successful pass.
func (s *SQLiteStore) LastValid(ctx context.Context) (*Snapshot, error) {
	query := `
		SELECT s.pass_id, s.data, s.created_at
		FROM snapshots s
		JOIN passes p ON p.id = s.pass_id
		WHERE p.status = ?
		ORDER BY p.created_at DESC, p.rowid DESC
		LIMIT 1
	`

	snap, err := scanSnapshot(s.db.QueryRowContext(ctx, query, PassStatusSuccess))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no valid snapshot: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last valid snapshot: %w", err)
	}

	return snap, nil
}

func scanSnapshot(row rowScanner) (*Snapshot, error) {
	snap := &Snapshot{}
	var data string
	if err := row.Scan(&snap.PassID, &data, &snap.CreatedAt); err != nil {
		return nil, err
	}
	snap.Data = json.RawMessage(data)
	return snap, nil
}

// ListWarnings lists the warnings of a pass in emission order
func (s *SQLiteStore) ListWarnings(ctx context.Context, passID string) ([]*StoredWarning, error) {
	query := `
		SELECT pass_id, seq, message, COALESCE(key, '')
		FROM warnings
		WHERE pass_id = ?
		ORDER BY seq ASC
	`

	rows, err := s.db.QueryContext(ctx, query, passID)
	if err != nil {
		return nil, fmt.Errorf("failed to list warnings: %w", err)
	}
	defer rows.Close()

	warnings := []*StoredWarning{}
	for rows.Next() {
		w := &StoredWarning{}
		if err := rows.Scan(&w.PassID, &w.Seq, &w.Message, &w.Key); err != nil {
			return nil, fmt.Errorf("failed to scan warning: %w", err)
		}
		warnings = append(warnings, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating warnings: %w", err)
	}

	return warnings, nil
}

// HealthCheck verifies the database connection
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}
