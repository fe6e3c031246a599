package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/edgeflare/autorest/pkg/entity"
	"github.com/edgeflare/autorest/pkg/schema"
)

// OpenAPIInfo contains API metadata for the OpenAPI specification
type OpenAPIInfo struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Version     string `json:"version"`
}

// OpenAPIGenerator generates an OpenAPI document from the synthesized route
// table. Because the route table is deterministic, so is the document: two
// runs against an unchanged schema describe identical APIs.
type OpenAPIGenerator struct {
	routes []Route
	info   OpenAPIInfo
}

// NewOpenAPIGenerator creates a new OpenAPI generator
func NewOpenAPIGenerator(routes []Route, info OpenAPIInfo) *OpenAPIGenerator {
	return &OpenAPIGenerator{routes: routes, info: info}
}

// ServeHTTP implements http.Handler to serve the OpenAPI specification
func (g *OpenAPIGenerator) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(g.GenerateSpecification()) //nolint:errcheck
}

// GenerateSpecification creates a complete OpenAPI specification covering
// every synthesized route.
func (g *OpenAPIGenerator) GenerateSpecification() map[string]any {
	paths := make(map[string]any)
	schemas := make(map[string]any)

	for _, route := range g.routes {
		d := route.Entity
		schemas[d.QualifiedName] = buildEntitySchema(d)

		path := openAPIPath(route)
		ops, ok := paths[path].(map[string]any)
		if !ok {
			ops = make(map[string]any)
			paths[path] = ops
		}
		ops[strings.ToLower(route.Method)] = buildOperation(route)
	}

	return map[string]any{
		"openapi": "3.1.0",
		"info": map[string]any{
			"title":       g.info.Title,
			"description": g.info.Description,
			"version":     g.info.Version,
		},
		"paths": paths,
		"components": map[string]any{
			"schemas": schemas,
		},
	}
}

// openAPIPath rewrites the positional ServeMux key wildcards into the
// primary-key column names so the documentation reads naturally.
func openAPIPath(route Route) string {
	path := route.Pattern
	for i, col := range route.Entity.PrimaryKeys {
		path = strings.Replace(path, fmt.Sprintf("{k%d}", i), "{"+col+"}", 1)
	}
	return path
}

func buildOperation(route Route) map[string]any {
	d := route.Entity
	ref := map[string]string{"$ref": "#/components/schemas/" + d.QualifiedName}
	tag := d.Path[0]

	switch route.Kind {
	case KindList:
		return map[string]any{
			"summary": fmt.Sprintf("List %s rows", d.QualifiedName),
			"parameters": []map[string]any{{
				"name":        "limit",
				"in":          "query",
				"description": "Limit the number of returned rows; unbounded when absent",
				"schema":      map[string]string{"type": "integer"},
			}},
			"responses": map[string]any{
				"200": jsonResponse("Success", map[string]any{"type": "array", "items": ref}),
				"400": map[string]string{"description": "Bad Request"},
			},
			"tags": []string{tag},
		}
	case KindGetByKey:
		return map[string]any{
			"summary":    fmt.Sprintf("Get one %s row by primary key", d.QualifiedName),
			"parameters": keyParameters(d),
			"responses": map[string]any{
				"200": jsonResponse("Success", ref),
				"400": map[string]string{"description": "Bad Request"},
				"404": map[string]string{"description": "Not Found"},
			},
			"tags": []string{tag},
		}
	case KindCreate:
		return map[string]any{
			"summary":     fmt.Sprintf("Insert a %s row", d.QualifiedName),
			"requestBody": jsonBody(ref),
			"responses": map[string]any{
				"201": jsonResponse("Created", ref),
				"400": map[string]string{"description": "Bad Request"},
			},
			"tags": []string{tag},
		}
	case KindUpdate:
		return map[string]any{
			"summary":     fmt.Sprintf("Update one %s row by primary key", d.QualifiedName),
			"parameters":  keyParameters(d),
			"requestBody": jsonBody(ref),
			"responses": map[string]any{
				"200": jsonResponse("Success", ref),
				"400": map[string]string{"description": "Bad Request"},
				"404": map[string]string{"description": "Not Found"},
			},
			"tags": []string{tag},
		}
	case KindDelete:
		return map[string]any{
			"summary":    fmt.Sprintf("Delete one %s row by primary key", d.QualifiedName),
			"parameters": keyParameters(d),
			"responses": map[string]any{
				"204": map[string]string{"description": "No Content"},
				"400": map[string]string{"description": "Bad Request"},
				"404": map[string]string{"description": "Not Found"},
			},
			"tags": []string{tag},
		}
	}
	return nil
}

func keyParameters(d *entity.Descriptor) []map[string]any {
	params := make([]map[string]any, 0, len(d.PrimaryKeys))
	for _, col := range d.PrimaryKeys {
		f, _ := d.Field(col)
		params = append(params, map[string]any{
			"name":     col,
			"in":       "path",
			"required": true,
			"schema":   map[string]string{"type": openAPIType(f.Type)},
		})
	}
	return params
}

func buildEntitySchema(d *entity.Descriptor) map[string]any {
	props := make(map[string]any, len(d.Fields))
	var required []string
	for _, f := range d.Fields {
		prop := map[string]any{"type": openAPIType(f.Type)}
		if f.Nullable {
			prop["nullable"] = true
		} else {
			required = append(required, f.Name)
		}
		props[f.Name] = prop
	}

	out := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

func openAPIType(t schema.Type) string {
	switch t {
	case schema.TypeInteger:
		return "integer"
	case schema.TypeFloat:
		return "number"
	case schema.TypeBoolean:
		return "boolean"
	default:
		return "string"
	}
}

func jsonResponse(description string, s any) map[string]any {
	return map[string]any{
		"description": description,
		"content": map[string]any{
			"application/json": map[string]any{"schema": s},
		},
	}
}

func jsonBody(s any) map[string]any {
	return map[string]any{
		"required": true,
		"content": map[string]any{
			"application/json": map[string]any{"schema": s},
		},
	}
}

// swaggerUIPage is the interactive documentation shell served at /docs; it
// renders /openapi.json.
const swaggerUIPage = `<!DOCTYPE html>
<html>
<head>
  <title>autorest API</title>
  <meta charset="utf-8"/>
  <meta name="viewport" content="width=device-width, initial-scale=1"/>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css"/>
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
<script>
  window.onload = () => {
    SwaggerUIBundle({url: "/openapi.json", dom_id: "#swagger-ui"});
  };
</script>
</body>
</html>
`
