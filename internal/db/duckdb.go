// Package db opens the DuckDB database used to inspect viewer data.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Config holds database configuration. An empty DataDir opens an in-memory
// database.
type Config struct {
	DataDir    string
	DBName     string
	Extensions []string
}

// DefaultExtensions are installed and loaded when Config.Extensions is nil.
var DefaultExtensions = []string{"spatial", "parquet"}

// Open opens the database and loads its extensions. Extension failures are
// logged and ignored so the database stays usable offline.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	dsn := ""
	if cfg.DataDir != "" {
		dir := filepath.Join(cfg.DataDir, "duckdb")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating duckdb directory: %w", err)
		}
		name := cfg.DBName
		if name == "" {
			name = "kochizu"
		}
		dsn = filepath.Join(dir, name+".duckdb")
	}

	conn, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening duckdb: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening duckdb: %w", err)
	}

	exts := cfg.Extensions
	if exts == nil {
		exts = DefaultExtensions
	}
	for _, ext := range exts {
		if _, err := conn.ExecContext(ctx, fmt.Sprintf("INSTALL %s; LOAD %s;", ext, ext)); err != nil {
			slog.Warn("duckdb_extension_unavailable", "extension", ext, "err", err)
		}
	}
	// Queries arrive over HTTP: no file or network access, no settings changes.
	if _, err := conn.ExecContext(ctx, "SET enable_external_access = false; SET lock_configuration = true;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("locking duckdb configuration: %w", err)
	}
	return conn, nil
}

// Tables lists the tables of the main schema.
func Tables(ctx context.Context, conn *sql.DB) ([]string, error) {
	rows, err := conn.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// Result is a generic query result.
type Result struct {
	Columns []string         `json:"columns" doc:"Column names"`
	Rows    []map[string]any `json:"rows" doc:"Query results"`
	Count   int              `json:"count" doc:"Number of rows returned"`
}

// Query runs a statement in a transaction that is always rolled back and
// collects at most limit rows.
func Query(ctx context.Context, conn *sql.DB, query string, limit int) (*Result, error) {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	res := &Result{Columns: columns, Rows: []map[string]any{}}
	for rows.Next() {
		if limit > 0 && res.Count >= limit {
			break
		}
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		res.Rows = append(res.Rows, row)
		res.Count++
	}
	return res, rows.Err()
}
