package training

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver
)

// Table is the result of a selection query. Every value is rendered as
// text; NULL becomes the empty string.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Column returns the index of name, or -1.
func (t *Table) Column(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Source runs a selection query against a named input.
type Source interface {
	Query(ctx context.Context, input, query string) (*Table, error)
}

// SQLiteSource reads training rows from a SQLite database file, opened
// read-only.
type SQLiteSource struct{}

// Query implements Source.
func (SQLiteSource) Query(ctx context.Context, input, query string) (*Table, error) {
	if _, err := os.Stat(input); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", "file:"+input+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	return scanTable(rows)
}

func scanTable(rows *sql.Rows) (*Table, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	t := &Table{Columns: cols}
	vals := make([]sql.NullString, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make([]string, len(cols))
		for i, v := range vals {
			row[i] = v.String
		}
		t.Rows = append(t.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

// MemorySource serves a fixed table regardless of input and query.
type MemorySource struct {
	Table *Table
}

// Query implements Source.
func (m MemorySource) Query(context.Context, string, string) (*Table, error) {
	if m.Table == nil {
		return nil, errors.New("training: memory source has no table")
	}
	cp := &Table{Columns: append([]string(nil), m.Table.Columns...)}
	for _, r := range m.Table.Rows {
		cp.Rows = append(cp.Rows, append([]string(nil), r...))
	}
	return cp, nil
}
