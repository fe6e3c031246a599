// Package schema reflects the structure of every configured database at
// startup: catalogs, tables, columns, native types, nullability, and
// primary-key sets.
//
// Reflection runs exactly once per process start. The resulting catalog set
// is immutable; a schema change on the database side is only picked up by a
// restart. A catalog or table that fails to reflect is logged and skipped so
// the remaining catalogs still come up.
package schema

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/edgeflare/autorest/pkg/dialect"
	"github.com/edgeflare/autorest/pkg/source"
)

// Column is a reflected column with its API-facing scalar type.
type Column struct {
	Name       string `json:"name"`
	Type       Type   `json:"type"`
	NativeType string `json:"native_type"`
	Nullable   bool   `json:"nullable"`
}

// Table is one reflected table, owned by its Catalog.
type Table struct {
	Schema      string   `json:"schema,omitempty"`
	Name        string   `json:"name"`
	Columns     []Column `json:"columns"`
	PrimaryKeys []string `json:"primary_keys,omitempty"`
}

// Catalog is one logical database: its reflected tables plus the connection
// pool requests against those tables run on. The pool is the only part of a
// Catalog that carries mutable state, and database/sql owns that.
type Catalog struct {
	Name    string  `json:"name"`
	Dialect string  `json:"dialect"`
	Tables  []Table `json:"tables"`

	db *sql.DB
	d  dialect.Dialect
}

// NewCatalog wraps an existing connection pool in a Catalog. Reflect builds
// catalogs itself; this constructor exists for callers that already hold a
// pool, such as tests running against mock drivers.
func NewCatalog(name string, d dialect.Dialect, db *sql.DB, tables []Table) *Catalog {
	return &Catalog{
		Name:    name,
		Dialect: d.Name(),
		Tables:  tables,
		db:      db,
		d:       d,
	}
}

// DB returns the catalog's connection pool.
func (c *Catalog) DB() *sql.DB { return c.db }

// SQL returns the catalog's dialect capability set.
func (c *Catalog) SQL() dialect.Dialect { return c.d }

// Close releases the catalog's connection pool.
func (c *Catalog) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// ReflectionError wraps a single catalog's reflection failure. It is
// recovered locally: the catalog is skipped, reflection continues.
type ReflectionError struct {
	Catalog string
	Err     error
}

func (e *ReflectionError) Error() string {
	return fmt.Sprintf("reflect catalog %q: %v", e.Catalog, e.Err)
}

func (e *ReflectionError) Unwrap() error { return e.Err }

// Reflect profiles every target: enumerates its catalogs through the dialect
// adapter, then reflects each catalog's tables on its own connection pool.
// Catalog reflection fans out concurrently; the returned slice is sorted by
// dialect then catalog name so the result is independent of goroutine
// scheduling and of target order.
//
// Reflection failures degrade, never abort: a target whose catalogs cannot
// be enumerated, or a catalog whose tables cannot be reflected, is logged
// and dropped while the rest proceed.
func Reflect(ctx context.Context, targets []source.Target, logger *zap.Logger) []*Catalog {
	type catalogRef struct {
		target  source.Target
		catalog string
	}

	var refs []catalogRef
	for _, target := range targets {
		names, err := enumerateCatalogs(ctx, target)
		if err != nil {
			logger.Error("catalog enumeration failed; skipping target",
				zap.String("dialect", target.Dialect.Name()),
				zap.Error(err))
			continue
		}
		for _, name := range names {
			refs = append(refs, catalogRef{target: target, catalog: name})
		}
	}

	var (
		mu       sync.Mutex
		catalogs []*Catalog
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, ref := range refs {
		g.Go(func() error {
			cat, err := reflectCatalog(gctx, ref.target, ref.catalog)
			if err != nil {
				logger.Error("catalog reflection failed; skipping",
					zap.String("catalog", ref.catalog),
					zap.String("dialect", ref.target.Dialect.Name()),
					zap.Error(&ReflectionError{Catalog: ref.catalog, Err: err}))
				return nil
			}
			warnUnknownTypes(cat, logger)
			mu.Lock()
			catalogs = append(catalogs, cat)
			mu.Unlock()
			return nil
		})
	}
	g.Wait() //nolint:errcheck // goroutines only ever return nil; failures are logged and skipped

	sort.Slice(catalogs, func(i, j int) bool {
		if catalogs[i].Dialect != catalogs[j].Dialect {
			return catalogs[i].Dialect < catalogs[j].Dialect
		}
		return catalogs[i].Name < catalogs[j].Name
	})
	dedupeNames(catalogs, logger)
	return catalogs
}

// dedupeNames renames same-named catalogs from different targets
// (app, app_2, ...). The slice is already sorted, so the renaming is stable
// across runs.
func dedupeNames(catalogs []*Catalog, logger *zap.Logger) {
	seen := make(map[string]int, len(catalogs))
	for _, cat := range catalogs {
		seen[cat.Name]++
		if n := seen[cat.Name]; n > 1 {
			renamed := fmt.Sprintf("%s_%d", cat.Name, n)
			logger.Warn("duplicate catalog name across targets; renaming",
				zap.String("catalog", cat.Name),
				zap.String("renamed", renamed))
			cat.Name = renamed
		}
	}
}

func enumerateCatalogs(ctx context.Context, target source.Target) ([]string, error) {
	dsn, err := target.Dialect.ConnString(target.URI, "")
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(target.Dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}
	return target.Dialect.Catalogs(ctx, db)
}

func reflectCatalog(ctx context.Context, target source.Target, catalog string) (*Catalog, error) {
	dsn, err := target.Dialect.ConnString(target.URI, catalog)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(target.Dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	raw, err := target.Dialect.Tables(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}

	cat := &Catalog{
		Name:    catalog,
		Dialect: target.Dialect.Name(),
		db:      db,
		d:       target.Dialect,
	}
	for _, rt := range raw {
		cat.Tables = append(cat.Tables, convertTable(rt))
	}
	return cat, nil
}

func convertTable(rt dialect.Table) Table {
	t := Table{
		Schema:      rt.Schema,
		Name:        rt.Name,
		PrimaryKeys: rt.PrimaryKeys,
	}
	for _, rc := range rt.Columns {
		mapped, _ := MapNativeType(rc.NativeType)
		t.Columns = append(t.Columns, Column{
			Name:       rc.Name,
			Type:       mapped,
			NativeType: rc.NativeType,
			Nullable:   rc.Nullable,
		})
	}
	return t
}

func warnUnknownTypes(cat *Catalog, logger *zap.Logger) {
	for _, t := range cat.Tables {
		for _, c := range t.Columns {
			if _, known := MapNativeType(c.NativeType); !known {
				logger.Warn("unrecognized column type mapped to string",
					zap.String("catalog", cat.Name),
					zap.String("table", t.Name),
					zap.String("column", c.Name),
					zap.String("native_type", c.NativeType))
			}
		}
	}
}
