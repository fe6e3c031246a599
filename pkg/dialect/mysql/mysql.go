// Package mysql registers the MySQL dialect.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	driver "github.com/go-sql-driver/mysql"

	"github.com/edgeflare/autorest/pkg/dialect"
)

func init() {
	dialect.Register(&mysql{})
}

// Databases managed by the server itself, never exposed.
var systemDatabases = map[string]bool{
	"information_schema": true,
	"mysql":              true,
	"performance_schema": true,
	"sys":                true,
}

type mysql struct{}

func (mysql) Name() string       { return "mysql" }
func (mysql) DriverName() string { return "mysql" }

// ConnString converts a mysql:// URI into the go-sql-driver DSN form
// (user:pass@tcp(host:port)/db).
func (mysql) ConnString(uri, catalog string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parse mysql uri: %w", err)
	}
	cfg := driver.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	if catalog != "" {
		cfg.DBName = catalog
	}
	cfg.ParseTime = true
	// RowsAffected must count matched rows, not changed rows; otherwise an
	// update that leaves values unchanged looks like a missing row.
	cfg.ClientFoundRows = true
	return cfg.FormatDSN(), nil
}

func (mysql) Catalogs(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SHOW DATABASES")
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

// Tables reflects the database the connection is scoped to. MySQL has no
// schema level below the database, so Schema stays empty.
func (mysql) Tables(ctx context.Context, db *sql.DB) ([]dialect.Table, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
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
	rows, err := db.QueryContext(ctx, `
		SELECT column_name, data_type, is_nullable = 'YES', column_key = 'PRI'
		FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = ?
		ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var cols []dialect.Column
	var pks []string
	for rows.Next() {
		var col dialect.Column
		var isPK bool
		if err := rows.Scan(&col.Name, &col.NativeType, &col.Nullable, &isPK); err != nil {
			return nil, nil, err
		}
		cols = append(cols, col)
		if isPK {
			pks = append(pks, col.Name)
		}
	}
	return cols, pks, rows.Err()
}

func (mysql) Placeholder(int) string { return "?" }

func (mysql) QuoteIdentifier(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func (mysql) SupportsReturning() bool { return false }
