package rest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/edgeflare/autorest/pkg/entity"
	"github.com/edgeflare/autorest/pkg/schema"
)

// Row is one result row in API shape: field name to API-typed value.
type Row map[string]any

// ErrNotFound means no row matched the given key.
var ErrNotFound = errors.New("row not found")

// ValidationError means the request parameters or body do not match the
// entity's shape; surfaced as 400.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// InternalError means a programming invariant was violated or the database
// failed mid-query; surfaced as 500 with enough context to diagnose.
type InternalError struct {
	Catalog string
	Table   string
	Op      HandlerKind
	Err     error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("%s %s.%s: %v", e.Op, e.Catalog, e.Table, e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }

// Executor translates operations on an entity into parameterized SQL against
// the entity's originating catalog. User-supplied values travel exclusively
// as bind parameters, never interpolated into SQL text.
type Executor struct{}

// List returns all rows of the entity's table. limit <= 0 means unbounded.
func (Executor) List(ctx context.Context, d *entity.Descriptor, limit int) ([]Row, error) {
	cat := d.Catalog()
	q := "SELECT * FROM " + tableRef(d)
	if limit > 0 {
		// limit is server-parsed, never raw client text; some engines reject
		// bind parameters in LIMIT, so it is rendered as a literal.
		q += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := cat.DB().QueryContext(ctx, q)
	if err != nil {
		return nil, internal(d, KindList, err)
	}
	defer rows.Close()

	out := []Row{}
	for rows.Next() {
		row, err := scanRow(rows, d)
		if err != nil {
			return nil, internal(d, KindList, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, internal(d, KindList, err)
	}
	return out, nil
}

// GetByKey returns the single row addressed by keys, or ErrNotFound.
func (Executor) GetByKey(ctx context.Context, d *entity.Descriptor, keys []string) (Row, error) {
	where, args, err := keyPredicate(d, KindGetByKey, keys, 1)
	if err != nil {
		return nil, err
	}

	q := "SELECT * FROM " + tableRef(d) + " WHERE " + where
	rows, err := d.Catalog().DB().QueryContext(ctx, q, args...)
	if err != nil {
		return nil, internal(d, KindGetByKey, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, internal(d, KindGetByKey, err)
		}
		return nil, ErrNotFound
	}
	row, err := scanRow(rows, d)
	if err != nil {
		return nil, internal(d, KindGetByKey, err)
	}
	return row, nil
}

// Create inserts a row from the request body and returns the stored row.
// Engines without INSERT ... RETURNING fall back to re-reading by primary
// key when the body carried every key column, otherwise the response echoes
// the request fields.
func (e Executor) Create(ctx context.Context, d *entity.Descriptor, data map[string]any) (Row, error) {
	cols, vals, err := bodyColumns(d, data)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, validationErrorf("request body has no fields")
	}

	dlct := d.Catalog().SQL()
	var b strings.Builder
	b.WriteString("INSERT INTO " + tableRef(d) + " (")
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(dlct.QuoteIdentifier(c))
	}
	b.WriteString(") VALUES (")
	for i := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(dlct.Placeholder(i + 1))
	}
	b.WriteString(")")

	if dlct.SupportsReturning() {
		b.WriteString(" RETURNING *")
		rows, err := d.Catalog().DB().QueryContext(ctx, b.String(), vals...)
		if err != nil {
			return nil, internal(d, KindCreate, err)
		}
		defer rows.Close()
		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return nil, internal(d, KindCreate, err)
			}
			return nil, internal(d, KindCreate, errors.New("insert returned no row"))
		}
		row, err := scanRow(rows, d)
		if err != nil {
			return nil, internal(d, KindCreate, err)
		}
		return row, nil
	}

	if _, err := d.Catalog().DB().ExecContext(ctx, b.String(), vals...); err != nil {
		return nil, internal(d, KindCreate, err)
	}

	if keys, ok := keysFromBody(d, data); ok {
		return e.GetByKey(ctx, d, keys)
	}
	echo := Row{}
	for i, c := range cols {
		echo[c] = vals[i]
	}
	return echo, nil
}

// Update rewrites the row addressed by keys with the body fields and returns
// the stored row, or ErrNotFound.
func (e Executor) Update(ctx context.Context, d *entity.Descriptor, keys []string, data map[string]any) (Row, error) {
	cols, vals, err := bodyColumns(d, data)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, validationErrorf("request body has no fields")
	}

	dlct := d.Catalog().SQL()
	var b strings.Builder
	b.WriteString("UPDATE " + tableRef(d) + " SET ")
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(dlct.QuoteIdentifier(c) + " = " + dlct.Placeholder(i+1))
	}

	where, keyArgs, err := keyPredicate(d, KindUpdate, keys, len(cols)+1)
	if err != nil {
		return nil, err
	}
	b.WriteString(" WHERE " + where)
	args := append(vals, keyArgs...)

	res, err := d.Catalog().DB().ExecContext(ctx, b.String(), args...)
	if err != nil {
		return nil, internal(d, KindUpdate, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return nil, ErrNotFound
	}
	return e.GetByKey(ctx, d, keys)
}

// Delete removes the row addressed by keys, or returns ErrNotFound.
func (Executor) Delete(ctx context.Context, d *entity.Descriptor, keys []string) error {
	where, args, err := keyPredicate(d, KindDelete, keys, 1)
	if err != nil {
		return err
	}

	q := "DELETE FROM " + tableRef(d) + " WHERE " + where
	res, err := d.Catalog().DB().ExecContext(ctx, q, args...)
	if err != nil {
		return internal(d, KindDelete, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return internal(d, KindDelete, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func internal(d *entity.Descriptor, op HandlerKind, err error) error {
	return &InternalError{Catalog: d.Catalog().Name, Table: d.Table().Name, Op: op, Err: err}
}

// tableRef renders the quoted, schema-qualified table reference.
func tableRef(d *entity.Descriptor) string {
	dlct := d.Catalog().SQL()
	t := d.Table()
	if t.Schema != "" {
		return dlct.QuoteIdentifier(t.Schema) + "." + dlct.QuoteIdentifier(t.Name)
	}
	return dlct.QuoteIdentifier(t.Name)
}

// keyPredicate builds the WHERE clause binding each primary-key column to
// its path parameter, coerced to the column's API type. op names the calling
// operation so invariant violations carry it.
func keyPredicate(d *entity.Descriptor, op HandlerKind, keys []string, firstArg int) (string, []any, error) {
	if len(keys) != len(d.PrimaryKeys) {
		return "", nil, validationErrorf("expected %d key value(s), got %d", len(d.PrimaryKeys), len(keys))
	}

	dlct := d.Catalog().SQL()
	var clauses []string
	var args []any
	for i, col := range d.PrimaryKeys {
		f, ok := d.Field(col)
		if !ok {
			return "", nil, internal(d, op, fmt.Errorf("primary key column %q missing from field list", col))
		}
		v, err := coerceKey(keys[i], f)
		if err != nil {
			return "", nil, err
		}
		clauses = append(clauses, dlct.QuoteIdentifier(col)+" = "+dlct.Placeholder(firstArg+i))
		args = append(args, v)
	}
	return strings.Join(clauses, " AND "), args, nil
}

// coerceKey converts a path parameter into the key column's API type.
func coerceKey(raw string, f entity.Field) (any, error) {
	switch f.Type {
	case schema.TypeInteger:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, validationErrorf("key %q: %q is not an integer", f.Name, raw)
		}
		return v, nil
	case schema.TypeFloat:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, validationErrorf("key %q: %q is not a number", f.Name, raw)
		}
		return v, nil
	case schema.TypeBoolean:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, validationErrorf("key %q: %q is not a boolean", f.Name, raw)
		}
		return v, nil
	default:
		return raw, nil
	}
}

// bodyColumns validates the request body against the entity's field list and
// returns columns and values in descriptor field order, so statement text is
// stable regardless of JSON key order.
func bodyColumns(d *entity.Descriptor, data map[string]any) ([]string, []any, error) {
	for name := range data {
		if _, ok := d.Field(name); !ok {
			return nil, nil, validationErrorf("unknown field %q", name)
		}
	}

	var cols []string
	var vals []any
	for _, f := range d.Fields {
		v, present := data[f.Name]
		if !present {
			continue
		}
		cols = append(cols, f.Name)
		vals = append(vals, v)
	}
	return cols, vals, nil
}

// keysFromBody extracts primary-key values from a request body, reporting
// whether every key column was present.
func keysFromBody(d *entity.Descriptor, data map[string]any) ([]string, bool) {
	keys := make([]string, len(d.PrimaryKeys))
	for i, col := range d.PrimaryKeys {
		v, ok := data[col]
		if !ok || v == nil {
			return nil, false
		}
		keys[i] = fmt.Sprint(v)
	}
	return keys, true
}

// scanRow scans the current result row and converts every field into its
// declared API type. A value that cannot be represented as its reflected
// type is an invariant violation, not something to silently coerce.
func scanRow(rows *sql.Rows, d *entity.Descriptor) (Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	row := make(Row, len(cols))
	for i, name := range cols {
		f, ok := d.Field(name)
		if !ok {
			// column unknown to the descriptor; pass through untyped
			row[name] = values[i]
			continue
		}
		v, err := convertValue(values[i], f.Type)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		row[name] = v
	}
	return row, nil
}

// convertValue normalizes a driver value into the API-facing representation
// of the given scalar type.
func convertValue(v any, t schema.Type) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch t {
	case schema.TypeInteger:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int32:
			return int64(n), nil
		case int:
			return int64(n), nil
		case uint64:
			if n > math.MaxInt64 {
				return nil, fmt.Errorf("unsigned value %d overflows the integer type", n)
			}
			return int64(n), nil
		case uint32:
			return int64(n), nil
		case int16:
			return int64(n), nil
		case int8:
			return int64(n), nil
		case uint8:
			return int64(n), nil
		case uint16:
			return int64(n), nil
		case []byte:
			return strconv.ParseInt(string(n), 10, 64)
		case string:
			return strconv.ParseInt(n, 10, 64)
		}
	case schema.TypeFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case []byte:
			return strconv.ParseFloat(string(n), 64)
		case string:
			return strconv.ParseFloat(n, 64)
		}
	case schema.TypeBoolean:
		switch b := v.(type) {
		case bool:
			return b, nil
		case int64:
			return b != 0, nil
		case []byte:
			return strconv.ParseBool(string(b))
		case string:
			return strconv.ParseBool(b)
		}
	case schema.TypeString:
		switch s := v.(type) {
		case string:
			return s, nil
		case []byte:
			return string(s), nil
		case time.Time:
			return s.Format(time.RFC3339Nano), nil
		default:
			// unrecognized native types map to string by design; their
			// driver values serialize via their string form
			return fmt.Sprint(v), nil
		}
	}
	return nil, fmt.Errorf("driver value %T does not fit declared type %s", v, t)
}
