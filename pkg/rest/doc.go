// Package rest synthesizes and serves the REST surface for every reflected
// entity.
//
// Route synthesis is deterministic: the same schema always yields the same
// route table, in the same order. For an entity with path p:
//
//	GET    /p          list all rows (optional ?limit=N)
//	GET    /p/{k...}   fetch one row by primary key
//	POST   /p          insert a row            (primary key required)
//	PUT    /p/{k...}   update one row by key   (primary key required)
//	DELETE /p/{k...}   delete one row by key   (primary key required)
//
// One {k} segment per primary-key column, in primary-key-column order. A
// table without a primary key exposes only the list route: it cannot be
// addressed for single-row reads or writes.
//
// LIST carries no implicit limit. Large tables produce large responses; pass
// ?limit=N to bound them.
//
// The server also serves /health, /schema (the reflected catalog as JSON),
// /openapi.json, /docs and /metrics.
package rest
