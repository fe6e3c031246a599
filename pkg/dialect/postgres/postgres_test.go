package postgres

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnString(t *testing.T) {
	var d postgres

	dsn, err := d.ConnString("postgresql://u:p@db:5432/app?sslmode=disable", "")
	require.NoError(t, err)
	assert.Equal(t, "postgresql://u:p@db:5432/app?sslmode=disable", dsn)

	dsn, err = d.ConnString("postgresql://u:p@db:5432/app?sslmode=disable", "other")
	require.NoError(t, err)
	assert.Equal(t, "postgresql://u:p@db:5432/other?sslmode=disable", dsn)
}

func TestCatalogs(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT current_database").
		WillReturnRows(sqlmock.NewRows([]string{"current_database"}).AddRow("app"))

	catalogs, err := postgres{}.Catalogs(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, []string{"app"}, catalogs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTables(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM information_schema.tables").
		WillReturnRows(sqlmock.NewRows([]string{"table_schema", "table_name"}).
			AddRow("public", "users"))
	mock.ExpectQuery("FROM information_schema.columns").
		WithArgs("public", "users").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable"}).
			AddRow("id", "integer", false).
			AddRow("name", "text", true))
	mock.ExpectQuery("PRIMARY KEY").
		WithArgs("public", "users").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}).AddRow("id"))

	tables, err := postgres{}.Tables(context.Background(), db)
	require.NoError(t, err)
	require.Len(t, tables, 1)

	assert.Equal(t, "public", tables[0].Schema)
	assert.Equal(t, "users", tables[0].Name)
	assert.Equal(t, []string{"id"}, tables[0].PrimaryKeys)
	require.Len(t, tables[0].Columns, 2)
	assert.Equal(t, "integer", tables[0].Columns[0].NativeType)
	assert.True(t, tables[0].Columns[1].Nullable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLConventions(t *testing.T) {
	var d postgres
	assert.Equal(t, "$1", d.Placeholder(1))
	assert.Equal(t, "$12", d.Placeholder(12))
	assert.Equal(t, `"users"`, d.QuoteIdentifier("users"))
	assert.Equal(t, `"we""ird"`, d.QuoteIdentifier(`we"ird`))
	assert.True(t, d.SupportsReturning())
}
