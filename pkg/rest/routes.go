package rest

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/edgeflare/autorest/pkg/entity"
)

// HandlerKind identifies which generic handler serves a route.
type HandlerKind string

const (
	KindList     HandlerKind = "list"
	KindGetByKey HandlerKind = "get_by_key"
	KindCreate   HandlerKind = "create"
	KindUpdate   HandlerKind = "update"
	KindDelete   HandlerKind = "delete"
)

// Route is one synthesized endpoint: method, ServeMux pattern, the entity it
// serves and the handler kind. Routes are derived purely from the entity
// registry, never mutated after synthesis.
type Route struct {
	Method  string
	Pattern string
	Entity  *entity.Descriptor
	Kind    HandlerKind
}

// SynthesizeRoutes derives the route table from the registry. Entities come
// out of the registry sorted by qualified name and each entity's routes are
// emitted in a fixed kind order, so two runs against the same schema produce
// identical tables.
func SynthesizeRoutes(reg *entity.Registry) []Route {
	var routes []Route
	for _, d := range reg.All() {
		base := entityPath(d)
		routes = append(routes, Route{Method: http.MethodGet, Pattern: base, Entity: d, Kind: KindList})

		if !d.HasKey() {
			// Without a primary key no single row can be addressed, so
			// neither reads-by-key nor writes are generated.
			continue
		}

		keyed := base + keySegments(d)
		routes = append(routes,
			Route{Method: http.MethodGet, Pattern: keyed, Entity: d, Kind: KindGetByKey},
			Route{Method: http.MethodPost, Pattern: base, Entity: d, Kind: KindCreate},
			Route{Method: http.MethodPut, Pattern: keyed, Entity: d, Kind: KindUpdate},
			Route{Method: http.MethodDelete, Pattern: keyed, Entity: d, Kind: KindDelete},
		)
	}
	return routes
}

// entityPath renders an entity's URL path, one segment per qualifying
// component.
func entityPath(d *entity.Descriptor) string {
	return "/" + strings.Join(d.Path, "/")
}

// keySegments renders one positional path parameter per primary-key column,
// in key-column order. Parameters are positional ({k0}, {k1}, ...) because
// column names are not guaranteed to be valid ServeMux wildcard names.
func keySegments(d *entity.Descriptor) string {
	var b strings.Builder
	for i := range d.PrimaryKeys {
		fmt.Fprintf(&b, "/{k%d}", i)
	}
	return b.String()
}

// keyValues pulls the positional key parameters out of the request path, in
// primary-key-column order.
func keyValues(r *http.Request, d *entity.Descriptor) []string {
	keys := make([]string, len(d.PrimaryKeys))
	for i := range d.PrimaryKeys {
		keys[i] = r.PathValue(fmt.Sprintf("k%d", i))
	}
	return keys
}
