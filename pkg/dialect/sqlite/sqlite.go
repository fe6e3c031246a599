// Package sqlite registers the SQLite dialect, backed by the CGO-free
// modernc.org driver. A SQLite file is a single catalog named "main".
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/edgeflare/autorest/pkg/dialect"
)

func init() {
	dialect.Register(&sqlite{})
}

type sqlite struct{}

func (sqlite) Name() string       { return "sqlite" }
func (sqlite) DriverName() string { return "sqlite" }

// ConnString strips the URI scheme; the driver takes a bare file path.
// sqlite://db.sqlite and sqlite:///abs/path/db.sqlite are both accepted.
func (sqlite) ConnString(uri, _ string) (string, error) {
	path := strings.TrimPrefix(uri, "sqlite://")
	if path == "" {
		return "", fmt.Errorf("sqlite uri %q has no path", uri)
	}
	return path, nil
}

func (sqlite) Catalogs(context.Context, *sql.DB) ([]string, error) {
	return []string{"main"}, nil
}

func (sqlite) Tables(ctx context.Context, db *sql.DB) ([]dialect.Table, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []dialect.Table
	for rows.Next() {
		var t dialect.Table
		if err := rows.Scan(&t.Name); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range tables {
		cols, pks, err := columns(ctx, db, tables[i].Name)
		if err != nil {
			return nil, fmt.Errorf("reflect %s: %w", tables[i].Name, err)
		}
		tables[i].Columns = cols
		tables[i].PrimaryKeys = pks
	}
	return tables, nil
}

func columns(ctx context.Context, db *sql.DB, table string) ([]dialect.Column, []string, error) {
	// table_info's pk column is the 1-based position of the column within the
	// primary key, or 0 if it is not part of it.
	rows, err := db.QueryContext(ctx, `SELECT name, type, "notnull", pk FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var cols []dialect.Column
	type pkCol struct {
		name string
		pos  int
	}
	var pkCols []pkCol
	for rows.Next() {
		var col dialect.Column
		var notNull, pk int
		if err := rows.Scan(&col.Name, &col.NativeType, &notNull, &pk); err != nil {
			return nil, nil, err
		}
		col.Nullable = notNull == 0
		cols = append(cols, col)
		if pk > 0 {
			pkCols = append(pkCols, pkCol{col.Name, pk})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	sort.Slice(pkCols, func(i, j int) bool { return pkCols[i].pos < pkCols[j].pos })
	pks := make([]string, 0, len(pkCols))
	for _, c := range pkCols {
		pks = append(pks, c.name)
	}
	return cols, pks, nil
}

func (sqlite) Placeholder(int) string { return "?" }

func (sqlite) QuoteIdentifier(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (sqlite) SupportsReturning() bool { return true }
