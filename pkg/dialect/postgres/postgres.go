// Package postgres registers the PostgreSQL dialect, connecting through the
// pgx database/sql adapter.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/edgeflare/autorest/pkg/dialect"
)

func init() {
	dialect.Register(&postgres{})
}

type postgres struct{}

func (postgres) Name() string       { return "postgresql" }
func (postgres) DriverName() string { return "pgx" }

func (postgres) ConnString(uri, catalog string) (string, error) {
	if catalog == "" {
		return uri, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parse postgres uri: %w", err)
	}
	u.Path = "/" + catalog
	return u.String(), nil
}

// Catalogs returns only the database the connection is scoped to. PostgreSQL
// cannot query across databases on one connection, so each configured URI
// contributes exactly its own database.
func (postgres) Catalogs(ctx context.Context, db *sql.DB) ([]string, error) {
	var name string
	if err := db.QueryRowContext(ctx, "SELECT current_database()").Scan(&name); err != nil {
		return nil, err
	}
	return []string{name}, nil
}

func (postgres) Tables(ctx context.Context, db *sql.DB) ([]dialect.Table, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT table_schema, table_name
		FROM information_schema.tables
		WHERE table_type = 'BASE TABLE'
			AND table_schema NOT IN ('pg_catalog', 'information_schema')
			AND table_schema NOT LIKE 'pg_toast%'
			AND table_schema NOT LIKE 'pg_temp%'
		ORDER BY table_schema, table_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []dialect.Table
	for rows.Next() {
		var t dialect.Table
		if err := rows.Scan(&t.Schema, &t.Name); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range tables {
		cols, pks, err := columns(ctx, db, tables[i].Schema, tables[i].Name)
		if err != nil {
			return nil, fmt.Errorf("reflect %s.%s: %w", tables[i].Schema, tables[i].Name, err)
		}
		tables[i].Columns = cols
		tables[i].PrimaryKeys = pks
	}
	return tables, nil
}

func columns(ctx context.Context, db *sql.DB, schema, table string) ([]dialect.Column, []string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT c.column_name, c.data_type, c.is_nullable = 'YES'
		FROM information_schema.columns c
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position`, schema, table)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var cols []dialect.Column
	for rows.Next() {
		var col dialect.Column
		if err := rows.Scan(&col.Name, &col.NativeType, &col.Nullable); err != nil {
			return nil, nil, err
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	pkRows, err := db.QueryContext(ctx, `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY'
			AND tc.table_schema = $1 AND tc.table_name = $2
		ORDER BY kcu.ordinal_position`, schema, table)
	if err != nil {
		return nil, nil, err
	}
	defer pkRows.Close()

	var pks []string
	for pkRows.Next() {
		var name string
		if err := pkRows.Scan(&name); err != nil {
			return nil, nil, err
		}
		pks = append(pks, name)
	}
	return cols, pks, pkRows.Err()
}

func (postgres) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (postgres) QuoteIdentifier(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (postgres) SupportsReturning() bool { return true }
