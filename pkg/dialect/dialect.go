// Package dialect defines the capability set a database engine must provide
// for autorest to reflect and query it: enumerating catalogs, reflecting
// tables, and the engine's SQL conventions (placeholders, identifier quoting).
//
// Concrete dialects live in subpackages (postgres, mysql, sqlite, trino,
// clickhouse) and register themselves in their init() functions. Importing a
// dialect package is what makes the dialect available:
//
//	import _ "github.com/edgeflare/autorest/pkg/dialect/postgres"
package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
)

// Column is one reflected column: its name, the engine's native type string,
// and whether NULL is permitted.
type Column struct {
	Name       string `json:"name"`
	NativeType string `json:"native_type"`
	Nullable   bool   `json:"nullable"`
}

// Table is one reflected table. Schema may be empty for engines without a
// schema level between catalog and table (SQLite). PrimaryKeys preserves the
// key column order; it is empty for tables without a primary key and for
// engines that have no primary key concept at all (Trino).
type Table struct {
	Schema      string   `json:"schema,omitempty"`
	Name        string   `json:"name"`
	Columns     []Column `json:"columns"`
	PrimaryKeys []string `json:"primary_keys,omitempty"`
}

// Dialect is the per-engine capability set. Implementations must be safe for
// concurrent use; they hold no connection state of their own.
type Dialect interface {
	// Name is the registry key, e.g. "postgresql".
	Name() string

	// DriverName is the database/sql driver this dialect connects through.
	DriverName() string

	// ConnString converts a connection URI into a driver DSN scoped to the
	// given catalog. An empty catalog means the URI's own database.
	ConnString(uri, catalog string) (string, error)

	// Catalogs enumerates the logical databases reachable through db,
	// excluding engine-internal ones.
	Catalogs(ctx context.Context, db *sql.DB) ([]string, error)

	// Tables reflects every table visible in the catalog db is scoped to.
	Tables(ctx context.Context, db *sql.DB) ([]Table, error)

	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder(n int) string

	// QuoteIdentifier quotes a single identifier for this engine.
	QuoteIdentifier(ident string) string

	// SupportsReturning reports whether INSERT ... RETURNING works.
	SupportsReturning() bool
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Dialect)
)

// Register adds a dialect to the registry. Called from dialect init()
// functions; registering the same name twice panics.
func Register(d Dialect) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[d.Name()]; dup {
		panic(fmt.Sprintf("dialect: Register called twice for %q", d.Name()))
	}
	registry[d.Name()] = d
}

// Lookup returns the dialect registered under name, or an
// *UnsupportedDialectError naming the available dialects.
func Lookup(name string) (Dialect, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	d, ok := registry[name]
	if !ok {
		return nil, &UnsupportedDialectError{Name: name, Available: listLocked()}
	}
	return d, nil
}

// List returns all registered dialect names, sorted.
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return listLocked()
}

func listLocked() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnsupportedDialectError is returned when a connection names a dialect with
// no registered implementation. It is a startup-fatal configuration error.
type UnsupportedDialectError struct {
	Name      string
	Available []string
}

func (e *UnsupportedDialectError) Error() string {
	return fmt.Sprintf("unsupported dialect %q (registered: %v)", e.Name, e.Available)
}
