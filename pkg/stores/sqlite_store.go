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

	// SQLite driver
	_ "modernc.org/sqlite"

	"github.com/adtrack/adtrack/pkg/tracker"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteArchive implements the Archive interface using SQLite.
type SQLiteArchive struct {
	db   *sql.DB
	path string
}

// Config holds SQLite archive configuration.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteArchive creates a new SQLite archive instance.
func NewSQLiteArchive(cfg Config) (*SQLiteArchive, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	return &SQLiteArchive{
		path: cfg.Path,
	}, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteArchive) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Foreign keys are a connection-level setting.
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *SQLiteArchive) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations from the embedded migration files.
func (s *SQLiteArchive) Migrate(_ context.Context) error {
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

// SaveOperation upserts the operation row and appends the unarchived tail
// of logs and restore points. Safe to call with every published snapshot:
// already-archived entries are skipped by count (logs) or by id (restore
// points).
func (s *SQLiteArchive) SaveOperation(ctx context.Context, op *tracker.Operation) error {
	metadata, err := encodeJSON(op.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	var errJSON sql.NullString
	if op.Error != nil {
		encoded, err := json.Marshal(op.Error)
		if err != nil {
			return fmt.Errorf("failed to encode error: %w", err)
		}
		errJSON = sql.NullString{String: string(encoded), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO operations (id, type, status, progress, started_at, completed_at, error, metadata, created_at, ins)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(ins), 0) + 1 FROM operations))
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			progress = excluded.progress,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at,
			error = excluded.error,
			metadata = excluded.metadata
	`
	_, err = tx.ExecContext(ctx, query,
		op.ID,
		op.Type,
		string(op.Status),
		op.Progress,
		nullTime(op.StartedAt),
		nullTime(op.CompletedAt),
		errJSON,
		metadata,
		op.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert operation: %w", err)
	}

	var archived int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM operation_logs WHERE operation_id = ?`, op.ID,
	).Scan(&archived)
	if err != nil {
		return fmt.Errorf("failed to count archived logs: %w", err)
	}

	for i := archived; i < len(op.Logs); i++ {
		entry := op.Logs[i]
		details, err := encodeJSONOrNull(entry.Details)
		if err != nil {
			return fmt.Errorf("failed to encode log details: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO operation_logs (operation_id, timestamp, level, message, details)
			VALUES (?, ?, ?, ?, ?)
		`, op.ID, entry.Timestamp, string(entry.Level), entry.Message, details)
		if err != nil {
			return fmt.Errorf("failed to append log: %w", err)
		}
	}

	for _, rp := range op.RestorePoints {
		data, err := encodeJSONOrNull(rp.Data)
		if err != nil {
			return fmt.Errorf("failed to encode restore point data: %w", err)
		}
		var name, description, resourceID, resourceType sql.NullString
		if rp.Metadata != nil {
			name = nullString(rp.Metadata.Name)
			description = nullString(rp.Metadata.Description)
			resourceID = nullString(rp.Metadata.ResourceID)
			resourceType = nullString(rp.Metadata.ResourceType)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO restore_points (id, operation_id, timestamp, type, data, name, description, resource_id, resource_type)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, rp.ID, op.ID, rp.Timestamp, string(rp.Type), data, name, description, resourceID, resourceType)
		if err != nil {
			return fmt.Errorf("failed to append restore point: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// GetOperation returns an archived operation with logs and restore points.
func (s *SQLiteArchive) GetOperation(ctx context.Context, id string) (*tracker.Operation, error) {
	query := `
		SELECT id, type, status, progress, started_at, completed_at, error, metadata, created_at
		FROM operations
		WHERE id = ?
	`
	op, err := scanOperation(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, tracker.NewNotFoundError(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get operation: %w", err)
	}

	if op.Logs, err = s.GetLogs(ctx, id); err != nil {
		return nil, err
	}
	if op.RestorePoints, err = s.GetRestorePoints(ctx, id); err != nil {
		return nil, err
	}
	return op, nil
}

// ListOperations returns filtered, sorted, paginated archived operations.
// Logs and restore points are not loaded; fetch them per operation.
func (s *SQLiteArchive) ListOperations(ctx context.Context, filter tracker.ListFilter) ([]*tracker.Operation, error) {
	query := `
		SELECT id, type, status, progress, started_at, completed_at, error, metadata, created_at
		FROM operations
	`
	var args []any
	var where string
	if filter.Type != "" {
		where = " WHERE type = ?"
		args = append(args, filter.Type)
	}
	if filter.Status != "" {
		if where == "" {
			where = " WHERE status = ?"
		} else {
			where += " AND status = ?"
		}
		args = append(args, string(filter.Status))
	}
	query += where + orderClause(filter)

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	} else if filter.Offset > 0 {
		// SQLite requires LIMIT before OFFSET; -1 means unbounded.
		query += " LIMIT -1 OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}
	defer rows.Close()

	ops := []*tracker.Operation{}
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating operations: %w", err)
	}
	return ops, nil
}

// GetLogs returns the archived log sequence for an operation.
func (s *SQLiteArchive) GetLogs(ctx context.Context, id string) ([]tracker.LogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, level, message, details
		FROM operation_logs
		WHERE operation_id = ?
		ORDER BY id ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get logs: %w", err)
	}
	defer rows.Close()

	logs := []tracker.LogEntry{}
	for rows.Next() {
		var entry tracker.LogEntry
		var level string
		var details sql.NullString
		if err := rows.Scan(&entry.Timestamp, &level, &entry.Message, &details); err != nil {
			return nil, fmt.Errorf("failed to scan log: %w", err)
		}
		entry.Level = tracker.Level(level)
		if details.Valid {
			if err := json.Unmarshal([]byte(details.String), &entry.Details); err != nil {
				return nil, fmt.Errorf("failed to decode log details: %w", err)
			}
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating logs: %w", err)
	}
	return logs, nil
}

// GetRestorePoints returns the archived restore points for an operation.
func (s *SQLiteArchive) GetRestorePoints(ctx context.Context, id string) ([]tracker.RestorePoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, type, data, name, description, resource_id, resource_type
		FROM restore_points
		WHERE operation_id = ?
		ORDER BY timestamp ASC, id ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get restore points: %w", err)
	}
	defer rows.Close()

	points := []tracker.RestorePoint{}
	for rows.Next() {
		var rp tracker.RestorePoint
		var rpType string
		var data, name, description, resourceID, resourceType sql.NullString
		if err := rows.Scan(&rp.ID, &rp.Timestamp, &rpType, &data, &name, &description, &resourceID, &resourceType); err != nil {
			return nil, fmt.Errorf("failed to scan restore point: %w", err)
		}
		rp.Type = tracker.RestorePointType(rpType)
		if data.Valid {
			if err := json.Unmarshal([]byte(data.String), &rp.Data); err != nil {
				return nil, fmt.Errorf("failed to decode restore point data: %w", err)
			}
		}
		if name.Valid || description.Valid || resourceID.Valid || resourceType.Valid {
			rp.Metadata = &tracker.RestorePointMeta{
				Name:         name.String,
				Description:  description.String,
				ResourceID:   resourceID.String,
				ResourceType: resourceType.String,
			}
		}
		points = append(points, rp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating restore points: %w", err)
	}
	return points, nil
}

// HealthCheck verifies the database connection is alive.
func (s *SQLiteArchive) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return s.db.PingContext(ctx)
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanOperation reads one operation row without logs or restore points.
func scanOperation(row scanner) (*tracker.Operation, error) {
	op := &tracker.Operation{}
	var status, metadata string
	var started, completed sql.NullTime
	var errJSON sql.NullString

	err := row.Scan(
		&op.ID,
		&op.Type,
		&status,
		&op.Progress,
		&started,
		&completed,
		&errJSON,
		&metadata,
		&op.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	op.Status = tracker.Status(status)
	if started.Valid {
		t := started.Time
		op.StartedAt = &t
	}
	if completed.Valid {
		t := completed.Time
		op.CompletedAt = &t
	}
	if errJSON.Valid {
		var opErr tracker.OperationError
		if err := json.Unmarshal([]byte(errJSON.String), &opErr); err != nil {
			return nil, fmt.Errorf("failed to decode error: %w", err)
		}
		op.Error = &opErr
	}
	if metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &op.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}
	op.Logs = []tracker.LogEntry{}
	op.RestorePoints = []tracker.RestorePoint{}
	return op, nil
}

// orderClause maps a list filter to ORDER BY, defaulting to start time
// descending with insertion order as tie break, matching the in-memory
// store's ordering contract.
func orderClause(filter tracker.ListFilter) string {
	dir := "DESC"
	if filter.SortDirection == tracker.SortAsc {
		dir = "ASC"
	}
	switch filter.SortBy {
	case "", tracker.SortByStartedAt:
		return fmt.Sprintf(" ORDER BY started_at %s, ins ASC", dir)
	case tracker.SortByCreatedAt:
		return fmt.Sprintf(" ORDER BY created_at %s, ins ASC", dir)
	case tracker.SortByProgress:
		return fmt.Sprintf(" ORDER BY progress %s, ins ASC", dir)
	default:
		return fmt.Sprintf(" ORDER BY ins %s", dir)
	}
}

func encodeJSON(m map[string]any) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func encodeJSONOrNull(m map[string]any) (sql.NullString, error) {
	if m == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
