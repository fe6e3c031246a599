// Package testutil provides fixtures shared by package tests: a configurable
// in-memory dialect and sqlmock-backed catalogs.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/edgeflare/autorest/pkg/dialect"
	"github.com/edgeflare/autorest/pkg/schema"
)

// FakeDialect is a fully scriptable dialect implementation. The zero value is
// not useful; populate the fields the test exercises.
type FakeDialect struct {
	DialectName string
	Driver      string
	CatalogList []string
	TableList   []dialect.Table
	Returning   bool

	// ConnStringFn overrides ConnString when set.
	ConnStringFn func(uri, catalog string) (string, error)
	// CatalogsErr makes Catalogs fail.
	CatalogsErr error
	// TablesErr makes Tables fail.
	TablesErr error
}

func (f *FakeDialect) Name() string       { return f.DialectName }
func (f *FakeDialect) DriverName() string { return f.Driver }

func (f *FakeDialect) ConnString(uri, catalog string) (string, error) {
	if f.ConnStringFn != nil {
		return f.ConnStringFn(uri, catalog)
	}
	if catalog == "" {
		return uri, nil
	}
	return uri + "/" + catalog, nil
}

func (f *FakeDialect) Catalogs(_ context.Context, _ *sql.DB) ([]string, error) {
	if f.CatalogsErr != nil {
		return nil, f.CatalogsErr
	}
	return f.CatalogList, nil
}

func (f *FakeDialect) Tables(_ context.Context, _ *sql.DB) ([]dialect.Table, error) {
	if f.TablesErr != nil {
		return nil, f.TablesErr
	}
	return f.TableList, nil
}

func (f *FakeDialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (f *FakeDialect) QuoteIdentifier(ident string) string { return `"` + ident + `"` }

func (f *FakeDialect) SupportsReturning() bool { return f.Returning }

// MockCatalog builds a catalog backed by a sqlmock connection. The pool is
// closed automatically when the test finishes.
func MockCatalog(t *testing.T, name string, d dialect.Dialect, tables []schema.Table) (*schema.Catalog, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return schema.NewCatalog(name, d, db, tables), mock
}
