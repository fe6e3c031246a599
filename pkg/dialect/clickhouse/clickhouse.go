// Package clickhouse registers the ClickHouse dialect.
package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/ClickHouse/clickhouse-go/v2"

	"github.com/edgeflare/autorest/pkg/dialect"
)

func init() {
	dialect.Register(&clickhouse{})
}

var systemDatabases = map[string]bool{
	"system":             true,
	"information_schema": true,
	"INFORMATION_SCHEMA": true,
}

type clickhouse struct{}

func (clickhouse) Name() string       { return "clickhouse" }
func (clickhouse) DriverName() string { return "clickhouse" }

func (clickhouse) ConnString(uri, catalog string) (string, error) {
	if catalog == "" {
		return uri, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parse clickhouse uri: %w", err)
	}
	u.Path = "/" + catalog
	return u.String(), nil
}

func (clickhouse) Catalogs(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT name FROM system.databases ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var catalogs []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		if !systemDatabases[name] {
			catalogs = append(catalogs, name)
		}
	}
	return catalogs, rows.Err()
}

// Tables reflects the database the connection is scoped to via
// system.columns. ClickHouse wraps nullable types as Nullable(T); the
// wrapper is unwrapped here so the type mapper sees the inner type.
//
// ClickHouse primary keys order data without enforcing uniqueness, so they
// cannot address a single row. Tables reflect as keyless and are list-only.
func (clickhouse) Tables(ctx context.Context, db *sql.DB) ([]dialect.Table, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT table, name, type
		FROM system.columns
		WHERE database = currentDatabase()
		ORDER BY table, position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []dialect.Table
	var cur *dialect.Table
	for rows.Next() {
		var table string
		var col dialect.Column
		if err := rows.Scan(&table, &col.Name, &col.NativeType); err != nil {
			return nil, err
		}
		if inner, ok := strings.CutPrefix(col.NativeType, "Nullable("); ok {
			col.NativeType = strings.TrimSuffix(inner, ")")
			col.Nullable = true
		}
		if cur == nil || cur.Name != table {
			tables = append(tables, dialect.Table{Name: table})
			cur = &tables[len(tables)-1]
		}
		cur.Columns = append(cur.Columns, col)
	}
	return tables, rows.Err()
}

func (clickhouse) Placeholder(int) string { return "?" }

func (clickhouse) QuoteIdentifier(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func (clickhouse) SupportsReturning() bool { return false }
