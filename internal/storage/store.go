// Package storage owns the connection to the relational store and its
// introspection surface. Exactly one statement executes at a time: the pool is
// capped to a single lazily-created connection, so callers that need
// concurrent queries must serialize themselves.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb" // DuckDB driver
	_ "github.com/mattn/go-sqlite3"     // SQLite driver
)

// Driver identifies the backing database engine.
type Driver string

const (
	DriverSQLite Driver = "sqlite"
	DriverDuckDB Driver = "duckdb"
)

// ColumnInfo describes one column of a table.
type ColumnInfo struct {
	Name       string
	Type       string
	NotNull    bool
	PrimaryKey bool
	Default    sql.NullString
}

// ForeignKeyInfo describes one foreign-key edge.
type ForeignKeyInfo struct {
	Table            string
	Column           string
	ReferencesTable  string
	ReferencesColumn string
}

// Store wraps a single database connection.
type Store struct {
	db     *sql.DB
	driver Driver
	path   string
}

// Open opens a store for the given driver and path. The connection itself is
// created lazily on first use.
func Open(driver Driver, path string) (*Store, error) {
	driverName, err := sqlDriverName(driver)
	if err != nil {
		return nil, err
	}

	// Ensure the directory exists for file-backed databases
	if path != "" && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One statement at a time; the connection is not shared across queries
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &Store{db: db, driver: driver, path: path}, nil
}

// NewStoreFromDB wraps an existing database handle. Used in tests.
func NewStoreFromDB(db *sql.DB, driver Driver) *Store {
	return &Store{db: db, driver: driver}
}

func sqlDriverName(driver Driver) (string, error) {
	switch driver {
	case DriverSQLite:
		return "sqlite3", nil
	case DriverDuckDB:
		return "duckdb", nil
	default:
		return "", fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// Driver returns the backing engine identifier.
func (s *Store) Driver() Driver {
	return s.driver
}

// Path returns the database path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SetBusyTimeout configures the per-session lock wait budget. DuckDB has no
// equivalent setting, so it is a no-op there.
func (s *Store) SetBusyTimeout(ctx context.Context, timeout time.Duration) error {
	if s.driver != DriverSQLite {
		return nil
	}

	_, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", timeout.Milliseconds()))

	return err
}

// Query executes a single SQL statement and fetches all rows. Byte slices are
// materialized as strings so results survive the row iterator.
func (s *Store) Query(ctx context.Context, sqlText string) ([]string, [][]any, error) {
	rows, err := s.db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var results [][]any

	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))

		for i := range values {
			pointers[i] = &values[i]
		}

		if err := rows.Scan(pointers...); err != nil {
			return nil, nil, err
		}

		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}

		results = append(results, values)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	return columns, results, nil
}

// TableNames lists user tables, excluding engine-internal ones.
func (s *Store) TableNames(ctx context.Context) ([]string, error) {
	var query string

	switch s.driver {
	case DriverDuckDB:
		query = `SELECT table_name FROM information_schema.tables
			WHERE table_schema = 'main' AND table_type = 'BASE TABLE' ORDER BY table_name`
	default:
		query = `SELECT name FROM sqlite_master
			WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}

		names = append(names, name)
	}

	return names, rows.Err()
}

// TableColumns describes the columns of one table. Both engines implement the
// SQLite table_info pragma with the same row shape.
func (s *Store) TableColumns(ctx context.Context, table string) ([]ColumnInfo, error) {
	query := fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table))

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []ColumnInfo

	for rows.Next() {
		var (
			cid     int
			name    string
			colType string
			notNull any
			dflt    sql.NullString
			pk      any
		)

		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}

		columns = append(columns, ColumnInfo{
			Name:       name,
			Type:       colType,
			NotNull:    asBool(notNull),
			PrimaryKey: asBool(pk),
			Default:    dflt,
		})
	}

	return columns, rows.Err()
}

// TableForeignKeys lists the foreign keys declared on one table.
func (s *Store) TableForeignKeys(ctx context.Context, table string) ([]ForeignKeyInfo, error) {
	if s.driver == DriverDuckDB {
		return s.duckdbForeignKeys(ctx, table)
	}

	return s.sqliteForeignKeys(ctx, table)
}

func (s *Store) sqliteForeignKeys(ctx context.Context, table string) ([]ForeignKeyInfo, error) {
	query := fmt.Sprintf("PRAGMA foreign_key_list(%s)", quoteIdent(table))

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fks []ForeignKeyInfo

	for rows.Next() {
		var (
			id, seq                   int
			refTable, from            string
			to                        sql.NullString
			onUpdate, onDelete, match string
		)

		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, err
		}

		fks = append(fks, ForeignKeyInfo{
			Table:            table,
			Column:           from,
			ReferencesTable:  refTable,
			ReferencesColumn: to.String,
		})
	}

	return fks, rows.Err()
}

func (s *Store) duckdbForeignKeys(ctx context.Context, table string) ([]ForeignKeyInfo, error) {
	query := `SELECT constraint_column_names[1], referenced_table, referenced_column_names[1]
		FROM duckdb_constraints()
		WHERE constraint_type = 'FOREIGN KEY' AND table_name = ?`

	rows, err := s.db.QueryContext(ctx, query, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fks []ForeignKeyInfo

	for rows.Next() {
		var column, refTable, refColumn string
		if err := rows.Scan(&column, &refTable, &refColumn); err != nil {
			return nil, err
		}

		fks = append(fks, ForeignKeyInfo{
			Table:            table,
			Column:           column,
			ReferencesTable:  refTable,
			ReferencesColumn: refColumn,
		})
	}

	return fks, rows.Err()
}

// SampleRows fetches up to limit rows from a table for prompt examples.
func (s *Store) SampleRows(ctx context.Context, table string, limit int) ([]string, [][]any, error) {
	query := fmt.Sprintf("SELECT * FROM %s LIMIT %d", quoteIdent(table), limit)

	return s.Query(ctx, query)
}

// quoteIdent quotes an identifier for interpolation into introspection
// statements that cannot take placeholders.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// asBool normalizes the int/bool flag columns the two engines return from
// table_info.
func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int64:
		return t != 0
	case int:
		return t != 0
	case float64:
		return t != 0
	case []byte:
		return string(t) == "1" || strings.EqualFold(string(t), "true")
	case string:
		return t == "1" || strings.EqualFold(t, "true")
	default:
		return false
	}
}
