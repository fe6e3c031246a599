// Package entity projects reflected tables into the API-facing entity
// registry.
//
// An entity's qualified name is globally unique across every catalog. Bare
// table names are preferred; a name is qualified with its schema and catalog
// only as far as needed to break collisions. Qualification is computed from
// the complete reflected table set after sorting, so the same schema always
// yields the same names no matter which order catalogs reflected in.
package entity

import (
	"sort"
	"strings"

	"github.com/edgeflare/autorest/pkg/schema"
)

// Field is one API-facing entity attribute.
type Field struct {
	Name     string      `json:"name"`
	Type     schema.Type `json:"type"`
	Nullable bool        `json:"nullable"`
}

// Descriptor is the immutable API-facing projection of one reflected table.
type Descriptor struct {
	// QualifiedName joins the path components with dots: "users",
	// "sales.users", "warehouse.sales.users".
	QualifiedName string `json:"qualified_name"`

	// Path holds the qualifying components in URL order, one path segment
	// each; the last component is always the bare table name.
	Path []string `json:"path"`

	Fields      []Field  `json:"fields"`
	PrimaryKeys []string `json:"primary_keys,omitempty"`

	catalog *schema.Catalog
	table   schema.Table
}

// Catalog returns the catalog this entity's queries execute against.
func (d *Descriptor) Catalog() *schema.Catalog { return d.catalog }

// Table returns the underlying reflected table.
func (d *Descriptor) Table() schema.Table { return d.table }

// HasKey reports whether the entity can address single rows.
func (d *Descriptor) HasKey() bool { return len(d.PrimaryKeys) > 0 }

// Field looks up a field by name.
func (d *Descriptor) Field(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Registry is the frozen set of entity descriptors. It is built once at
// startup and never mutated afterward, which is what lets request handlers
// read it without locks.
type Registry struct {
	entities []*Descriptor
	byName   map[string]*Descriptor
}

// Build constructs the registry from the reflected catalogs. Tables with no
// columns are dropped: there is nothing to expose.
func Build(catalogs []*schema.Catalog) *Registry {
	type candidate struct {
		catalog *schema.Catalog
		table   schema.Table
	}

	var all []candidate
	for _, cat := range catalogs {
		for _, t := range cat.Tables {
			if len(t.Columns) == 0 {
				continue
			}
			all = append(all, candidate{catalog: cat, table: t})
		}
	}

	// Sort by full identity so every later step is order-independent.
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.catalog.Name != b.catalog.Name {
			return a.catalog.Name < b.catalog.Name
		}
		if a.table.Schema != b.table.Schema {
			return a.table.Schema < b.table.Schema
		}
		return a.table.Name < b.table.Name
	})

	// Count how many tables share each bare and schema-qualified name; a
	// table qualifies only as far as needed to become unique.
	bare := make(map[string]int)
	mid := make(map[string]int)
	for _, c := range all {
		bare[c.table.Name]++
		mid[join(midComponents(c.catalog, c.table))]++
	}

	reg := &Registry{byName: make(map[string]*Descriptor, len(all))}
	for _, c := range all {
		path := []string{c.table.Name}
		if bare[c.table.Name] > 1 {
			path = midComponents(c.catalog, c.table)
			if mid[join(path)] > 1 {
				path = fullComponents(c.catalog, c.table)
			}
		}
		// Identifiers containing dots can still alias a qualified name;
		// escalate to full qualification in that case.
		if _, taken := reg.byName[join(path)]; taken {
			path = fullComponents(c.catalog, c.table)
		}

		d := &Descriptor{
			QualifiedName: join(path),
			Path:          path,
			PrimaryKeys:   c.table.PrimaryKeys,
			catalog:       c.catalog,
			table:         c.table,
		}
		for _, col := range c.table.Columns {
			d.Fields = append(d.Fields, Field{Name: col.Name, Type: col.Type, Nullable: col.Nullable})
		}
		reg.entities = append(reg.entities, d)
		reg.byName[d.QualifiedName] = d
	}
	return reg
}

// midComponents is the schema-qualified form, falling back to the catalog
// for engines without a schema level.
func midComponents(cat *schema.Catalog, t schema.Table) []string {
	if t.Schema != "" {
		return []string{t.Schema, t.Name}
	}
	return []string{cat.Name, t.Name}
}

func fullComponents(cat *schema.Catalog, t schema.Table) []string {
	if t.Schema != "" {
		return []string{cat.Name, t.Schema, t.Name}
	}
	return []string{cat.Name, t.Name}
}

func join(components []string) string {
	return strings.Join(components, ".")
}

// All returns every descriptor, sorted by qualified name.
func (r *Registry) All() []*Descriptor {
	out := make([]*Descriptor, len(r.entities))
	copy(out, r.entities)
	sort.Slice(out, func(i, j int) bool { return out[i].QualifiedName < out[j].QualifiedName })
	return out
}

// Get looks up a descriptor by qualified name.
func (r *Registry) Get(name string) (*Descriptor, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// Len returns the number of registered entities.
func (r *Registry) Len() int { return len(r.entities) }
