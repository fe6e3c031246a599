// Package trino registers the Trino dialect. A single Trino coordinator
// fronts many catalogs; each non-system catalog becomes its own entry.
//
// Trino tables have no primary keys, so entities reflected through this
// dialect are list-only.
package trino

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/trinodb/trino-go-client/trino"

	"github.com/edgeflare/autorest/pkg/dialect"
)

func init() {
	dialect.Register(&trino{})
}

// Built-in catalogs that only exist for diagnostics and benchmarks.
var systemCatalogs = map[string]bool{
	"jmx":    true,
	"memory": true,
	"system": true,
	"tpcds":  true,
	"tpch":   true,
}

type trino struct{}

func (trino) Name() string       { return "trino" }
func (trino) DriverName() string { return "trino" }

// ConnString converts a trino:// URI into the trino-go-client DSN, which is
// an http(s) URL carrying the catalog as a query parameter.
func (trino) ConnString(uri, catalog string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parse trino uri: %w", err)
	}
	scheme := "http"
	if _, hasPassword := u.User.Password(); hasPassword {
		scheme = "https"
	}
	dsn := url.URL{
		Scheme: scheme,
		User:   u.User,
		Host:   u.Host,
	}
	q := dsn.Query()
	q.Set("source", "autorest")
	if catalog != "" {
		q.Set("catalog", catalog)
	}
	dsn.RawQuery = q.Encode()
	return dsn.String(), nil
}

func (trino) Catalogs(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SHOW CATALOGS")
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
		if !systemCatalogs[name] {
			catalogs = append(catalogs, name)
		}
	}
	return catalogs, rows.Err()
}

func (trino) Tables(ctx context.Context, db *sql.DB) ([]dialect.Table, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT table_schema, table_name, column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema NOT IN ('information_schema')
		ORDER BY table_schema, table_name, ordinal_position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []dialect.Table
	var cur *dialect.Table
	for rows.Next() {
		var schema, table string
		var col dialect.Column
		var nullable string
		if err := rows.Scan(&schema, &table, &col.Name, &col.NativeType, &nullable); err != nil {
			return nil, err
		}
		col.Nullable = nullable == "YES"
		if cur == nil || cur.Schema != schema || cur.Name != table {
			tables = append(tables, dialect.Table{Schema: schema, Name: table})
			cur = &tables[len(tables)-1]
		}
		cur.Columns = append(cur.Columns, col)
	}
	return tables, rows.Err()
}

func (trino) Placeholder(int) string { return "?" }

func (trino) QuoteIdentifier(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (trino) SupportsReturning() bool { return false }
