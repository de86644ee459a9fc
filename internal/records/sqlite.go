package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mcs-go/internal/mcs"
	"mcs-go/internal/records/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteSource is the record store used when mcs runs without a host
// application. Records are registered by `mcs records scan`.
type SQLiteSource struct {
	db    *sql.DB
	clock mcs.Clock
}

// NewSQLiteSource opens (or creates) the record store at path.
// path can be a file path or ":memory:". The schema is not migrated here;
// call MigrateUp or CheckMigrations.
func NewSQLiteSource(path string, clock mcs.Clock) (*SQLiteSource, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = mcs.RealClock{}
	}
	return &SQLiteSource{db: db, clock: clock}, nil
}

// OpenConnection opens and configures a SQLite connection.
// A single connection is used so ":memory:" databases stay coherent and
// concurrent engine workers serialize their updates instead of failing with SQLITE_BUSY.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	if path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	return db, nil
}

// MigrateUp brings the schema to the latest version.
func (s *SQLiteSource) MigrateUp() error {
	return migrations.MigrateUp(s.db)
}

// CheckMigrations verifies the schema is at the latest version.
func (s *SQLiteSource) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

func (s *SQLiteSource) Close() error {
	return s.db.Close()
}

const fileRecordColumns = `id, file_name, file_url, is_private, attached_to_doctype, attached_to_name, content_hash, folder`

func (s *SQLiteSource) ListRecords(ctx context.Context, afterID string, limit int) ([]*mcs.FileRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+fileRecordColumns+` FROM file_records
		 WHERE is_folder = 0 AND id > ?
		 ORDER BY id
		 LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing file records: %w", err)
	}
	defer rows.Close()

	var recs []*mcs.FileRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing file records: %w", err)
	}
	return recs, nil
}

func (s *SQLiteSource) UpdateRecord(ctx context.Context, id string, u mcs.RecordUpdate) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE file_records
		 SET file_url = ?, content_hash = ?, folder = ?, old_parent = ?, updated_at = ?
		 WHERE id = ?`,
		u.URL, u.ContentHash, u.Folder, u.Folder, s.clock.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating file record %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating file record %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("file record %s: %w", id, mcs.ErrNotFound)
	}
	return nil
}

func (s *SQLiteSource) InsertRecord(ctx context.Context, rec *mcs.FileRecord) error {
	now := s.clock.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO file_records (`+fileRecordColumns+`, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.FileName, rec.URL, rec.IsPrivate, rec.AttachedToType, rec.AttachedToName,
		rec.ContentHash, rec.Folder, now, now)
	if err != nil {
		return fmt.Errorf("inserting file record %s: %w", rec.ID, err)
	}
	return nil
}

func (s *SQLiteSource) FindRecordByURL(ctx context.Context, url string) (*mcs.FileRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+fileRecordColumns+` FROM file_records WHERE file_url = ? ORDER BY id LIMIT 1`, url)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

// GetRecord returns the file record with id, or an error wrapping
// mcs.ErrNotFound.
func (s *SQLiteSource) GetRecord(ctx context.Context, id string) (*mcs.FileRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+fileRecordColumns+` FROM file_records WHERE id = ? AND is_folder = 0`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("file record %s: %w", id, mcs.ErrNotFound)
	}
	return rec, err
}

// Run is one persisted migration run.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     string // "running", "success" or "error"
	Total      int
	Migrated   int
	Skipped    int
	Errors     int
	Error      string
}

// StartRun records the beginning of a migration run.
func (s *SQLiteSource) StartRun(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO migration_runs (id, started_at, status) VALUES (?, ?, 'running')`,
		id, s.clock.Now().UTC())
	if err != nil {
		return fmt.Errorf("starting migration run: %w", err)
	}
	return nil
}

// FinishRun stores the outcome of a run. report is nil when the run failed.
func (s *SQLiteSource) FinishRun(ctx context.Context, id string, report *mcs.Report, runErr error) error {
	status, msg := "success", ""
	var r mcs.Report
	if report != nil {
		r = *report
	}
	if runErr != nil {
		status, msg = "error", runErr.Error()
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE migration_runs
		 SET finished_at = ?, status = ?, total = ?, migrated = ?, skipped = ?, errors = ?, error_message = ?
		 WHERE id = ?`,
		s.clock.Now().UTC(), status, r.Total, r.Migrated, r.Skipped, len(r.Errors), msg, id)
	if err != nil {
		return fmt.Errorf("finishing migration run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteSource) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, status, total, migrated, skipped, errors, error_message
		 FROM migration_runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing migration runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var (
			run      Run
			finished sql.NullTime
		)
		if err := rows.Scan(&run.ID, &run.StartedAt, &finished, &run.Status,
			&run.Total, &run.Migrated, &run.Skipped, &run.Errors, &run.Error); err != nil {
			return nil, fmt.Errorf("scanning migration run: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			run.FinishedAt = &t
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*mcs.FileRecord, error) {
	var rec mcs.FileRecord
	if err := row.Scan(&rec.ID, &rec.FileName, &rec.URL, &rec.IsPrivate, &rec.AttachedToType,
		&rec.AttachedToName, &rec.ContentHash, &rec.Folder); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning file record: %w", err)
	}
	return &rec, nil
}

// Compile-time check
var _ mcs.RecordStore = (*SQLiteSource)(nil)
