package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDialect struct{ name string }

func (s stubDialect) Name() string                           { return s.name }
func (stubDialect) DriverName() string                       { return "stub" }
func (stubDialect) ConnString(uri, _ string) (string, error) { return uri, nil }
func (stubDialect) Catalogs(context.Context, *sql.DB) ([]string, error) {
	return nil, nil
}
func (stubDialect) Tables(context.Context, *sql.DB) ([]Table, error) {
	return nil, nil
}
func (stubDialect) Placeholder(n int) string           { return fmt.Sprintf("$%d", n) }
func (stubDialect) QuoteIdentifier(ident string) string { return `"` + ident + `"` }
func (stubDialect) SupportsReturning() bool             { return false }

func TestRegisterAndLookup(t *testing.T) {
	Register(stubDialect{name: "stub-a"})
	Register(stubDialect{name: "stub-b"})

	d, err := Lookup("stub-a")
	require.NoError(t, err)
	assert.Equal(t, "stub-a", d.Name())

	assert.Panics(t, func() { Register(stubDialect{name: "stub-a"}) })
}

func TestLookupUnsupported(t *testing.T) {
	_, err := Lookup("oracle")
	require.Error(t, err)

	var uerr *UnsupportedDialectError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "oracle", uerr.Name)
	assert.Contains(t, err.Error(), `unsupported dialect "oracle"`)
}

func TestListSorted(t *testing.T) {
	names := List()
	assert.True(t, sort.StringsAreSorted(names))
	assert.Contains(t, names, "stub-a")
	assert.Contains(t, names, "stub-b")
}
