package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"mcs-go/internal/mcs"
)

// DefaultHostTable is the host application's file table.
const DefaultHostTable = "tabFile"

// PostgresSource reads and rewrites file records directly in the host
// application's database. Folder rows are never returned.
type PostgresSource struct {
	db    *sql.DB
	table string // quoted identifier
	clock mcs.Clock
}

// NewPostgresSource connects to dsn. table defaults to DefaultHostTable.
func NewPostgresSource(ctx context.Context, dsn, table string) (*PostgresSource, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return NewPostgresSourceFromDB(db, table, nil), nil
}

// NewPostgresSourceFromDB wraps an existing connection pool.
func NewPostgresSourceFromDB(db *sql.DB, table string, clock mcs.Clock) *PostgresSource {
	if table == "" {
		table = DefaultHostTable
	}
	if clock == nil {
		clock = mcs.RealClock{}
	}
	return &PostgresSource{
		db:    db,
		table: pgx.Identifier{table}.Sanitize(),
		clock: clock,
	}
}

func (s *PostgresSource) Close() error {
	return s.db.Close()
}

const hostColumns = `name, COALESCE(file_name, ''), COALESCE(file_url, ''), COALESCE(is_private, 0),
		COALESCE(attached_to_doctype, ''), COALESCE(attached_to_name, ''), COALESCE(content_hash, ''), COALESCE(folder, '')`

func scanHostRecord(row scanner) (*mcs.FileRecord, error) {
	var (
		rec     mcs.FileRecord
		private int
	)
	if err := row.Scan(&rec.ID, &rec.FileName, &rec.URL, &private, &rec.AttachedToType,
		&rec.AttachedToName, &rec.ContentHash, &rec.Folder); err != nil {
		return nil, err
	}
	rec.IsPrivate = private != 0
	return &rec, nil
}

func (s *PostgresSource) ListRecords(ctx context.Context, afterID string, limit int) ([]*mcs.FileRecord, error) {
	query := fmt.Sprintf(`SELECT `+hostColumns+`
		FROM %s
		WHERE COALESCE(is_folder, 0) = 0 AND name > $1
		ORDER BY name
		LIMIT $2`, s.table)

	rows, err := s.db.QueryContext(ctx, query, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing file records: %w", err)
	}
	defer rows.Close()

	var recs []*mcs.FileRecord
	for rows.Next() {
		rec, err := scanHostRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning file record: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing file records: %w", err)
	}
	return recs, nil
}

// GetRecord returns the host file row named id. Folders are reported as
// not found.
func (s *PostgresSource) GetRecord(ctx context.Context, id string) (*mcs.FileRecord, error) {
	query := fmt.Sprintf(`SELECT `+hostColumns+`
		FROM %s
		WHERE COALESCE(is_folder, 0) = 0 AND name = $1`, s.table)

	rec, err := scanHostRecord(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("file record %s: %w", id, mcs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading file record %s: %w", id, err)
	}
	return rec, nil
}

// UpdateRecord rewrites the record's URL, content hash and folder. old_parent
// is set to the new folder, as the host does for files moved into it.
func (s *PostgresSource) UpdateRecord(ctx context.Context, id string, u mcs.RecordUpdate) error {
	query := fmt.Sprintf(`UPDATE %s
		SET file_url = $1, content_hash = $2, folder = $3, old_parent = $3, modified = $4
		WHERE name = $5`, s.table)

	res, err := s.db.ExecContext(ctx, query, u.URL, u.ContentHash, u.Folder, s.clock.Now().UTC().Truncate(time.Microsecond), id)
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

// Compile-time check
var _ mcs.RecordSource = (*PostgresSource)(nil)
