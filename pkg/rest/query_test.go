package rest

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgeflare/autorest/internal/testutil"
	"github.com/edgeflare/autorest/pkg/entity"
	"github.com/edgeflare/autorest/pkg/schema"
)

var usersTable = schema.Table{
	Schema: "public",
	Name:   "users",
	Columns: []schema.Column{
		{Name: "id", Type: schema.TypeInteger, NativeType: "bigint"},
		{Name: "name", Type: schema.TypeString, NativeType: "text", Nullable: true},
		{Name: "active", Type: schema.TypeBoolean, NativeType: "boolean"},
	},
	PrimaryKeys: []string{"id"},
}

// usersFixture builds a sqlmock-backed catalog holding the users table and
// returns its descriptor alongside the mock.
func usersFixture(t *testing.T, returning bool) (*entity.Descriptor, sqlmock.Sqlmock) {
	t.Helper()
	d := &testutil.FakeDialect{DialectName: "fake", Driver: "sqlmock", Returning: returning}
	cat, mock := testutil.MockCatalog(t, "app", d, []schema.Table{usersTable})

	reg := entity.Build([]*schema.Catalog{cat})
	desc, ok := reg.Get("users")
	require.True(t, ok)
	return desc, mock
}

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "active"})
}

func TestExecutorList(t *testing.T) {
	desc, mock := usersFixture(t, true)
	mock.ExpectQuery(`SELECT * FROM "public"."users"`).
		WillReturnRows(userRows().
			AddRow(int64(1), "alice", true).
			AddRow(int64(2), nil, false))

	rows, err := Executor{}.List(context.Background(), desc, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, Row{"id": int64(1), "name": "alice", "active": true}, rows[0])
	assert.Equal(t, Row{"id": int64(2), "name": nil, "active": false}, rows[1])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutorListEmpty(t *testing.T) {
	desc, mock := usersFixture(t, true)
	mock.ExpectQuery(`SELECT * FROM "public"."users"`).WillReturnRows(userRows())

	rows, err := Executor{}.List(context.Background(), desc, 0)
	require.NoError(t, err)
	// an empty table serializes as [], not null
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestExecutorListLimit(t *testing.T) {
	desc, mock := usersFixture(t, true)
	mock.ExpectQuery(`SELECT * FROM "public"."users" LIMIT 2`).
		WillReturnRows(userRows().
			AddRow(int64(1), "alice", true).
			AddRow(int64(2), "bob", false))

	rows, err := Executor{}.List(context.Background(), desc, 2)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutorListQueryFailure(t *testing.T) {
	desc, mock := usersFixture(t, true)
	mock.ExpectQuery(`SELECT * FROM "public"."users"`).
		WillReturnError(errors.New("relation dropped"))

	_, err := Executor{}.List(context.Background(), desc, 0)
	var ierr *InternalError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, "app", ierr.Catalog)
	assert.Equal(t, "users", ierr.Table)
	assert.Equal(t, KindList, ierr.Op)
}

func TestExecutorGetByKey(t *testing.T) {
	desc, mock := usersFixture(t, true)
	mock.ExpectQuery(`SELECT * FROM "public"."users" WHERE "id" = $1`).
		WithArgs(int64(7)).
		WillReturnRows(userRows().AddRow(int64(7), "alice", true))

	row, err := Executor{}.GetByKey(context.Background(), desc, []string{"7"})
	require.NoError(t, err)
	assert.Equal(t, Row{"id": int64(7), "name": "alice", "active": true}, row)
}

func TestExecutorGetByKeyNotFound(t *testing.T) {
	desc, mock := usersFixture(t, true)
	mock.ExpectQuery(`SELECT * FROM "public"."users" WHERE "id" = $1`).
		WithArgs(int64(404)).
		WillReturnRows(userRows())

	_, err := Executor{}.GetByKey(context.Background(), desc, []string{"404"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExecutorGetByKeyBadKeyType(t *testing.T) {
	desc, _ := usersFixture(t, true)

	_, err := Executor{}.GetByKey(context.Background(), desc, []string{"abc"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Msg, "not an integer")
}

func TestExecutorCreateReturning(t *testing.T) {
	desc, mock := usersFixture(t, true)
	mock.ExpectQuery(`INSERT INTO "public"."users" ("id", "name") VALUES ($1, $2) RETURNING *`).
		WithArgs(int64(1), "alice").
		WillReturnRows(userRows().AddRow(int64(1), "alice", true))

	row, err := Executor{}.Create(context.Background(), desc,
		map[string]any{"name": "alice", "id": int64(1)})
	require.NoError(t, err)
	assert.Equal(t, Row{"id": int64(1), "name": "alice", "active": true}, row)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutorCreateWithoutReturningReselects(t *testing.T) {
	desc, mock := usersFixture(t, false)
	mock.ExpectExec(`INSERT INTO "public"."users" ("id", "name") VALUES ($1, $2)`).
		WithArgs(int64(1), "alice").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`SELECT * FROM "public"."users" WHERE "id" = $1`).
		WithArgs(int64(1)).
		WillReturnRows(userRows().AddRow(int64(1), "alice", true))

	row, err := Executor{}.Create(context.Background(), desc,
		map[string]any{"id": int64(1), "name": "alice"})
	require.NoError(t, err)
	assert.Equal(t, Row{"id": int64(1), "name": "alice", "active": true}, row)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutorCreateWithoutReturningEchoes(t *testing.T) {
	// no key column in the body, nothing to re-select by
	desc, mock := usersFixture(t, false)
	mock.ExpectExec(`INSERT INTO "public"."users" ("name") VALUES ($1)`).
		WithArgs("alice").
		WillReturnResult(sqlmock.NewResult(1, 1))

	row, err := Executor{}.Create(context.Background(), desc, map[string]any{"name": "alice"})
	require.NoError(t, err)
	assert.Equal(t, Row{"name": "alice"}, row)
}

func TestExecutorCreateRejectsUnknownField(t *testing.T) {
	desc, _ := usersFixture(t, true)

	_, err := Executor{}.Create(context.Background(), desc,
		map[string]any{"name": "alice", "shoe_size": 42})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Msg, "shoe_size")
}

func TestExecutorCreateRejectsEmptyBody(t *testing.T) {
	desc, _ := usersFixture(t, true)

	_, err := Executor{}.Create(context.Background(), desc, map[string]any{})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestExecutorUpdate(t *testing.T) {
	desc, mock := usersFixture(t, true)
	mock.ExpectExec(`UPDATE "public"."users" SET "name" = $1 WHERE "id" = $2`).
		WithArgs("bob", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT * FROM "public"."users" WHERE "id" = $1`).
		WithArgs(int64(7)).
		WillReturnRows(userRows().AddRow(int64(7), "bob", true))

	row, err := Executor{}.Update(context.Background(), desc,
		[]string{"7"}, map[string]any{"name": "bob"})
	require.NoError(t, err)
	assert.Equal(t, "bob", row["name"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutorUpdateNotFound(t *testing.T) {
	desc, mock := usersFixture(t, true)
	mock.ExpectExec(`UPDATE "public"."users" SET "name" = $1 WHERE "id" = $2`).
		WithArgs("bob", int64(404)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := Executor{}.Update(context.Background(), desc,
		[]string{"404"}, map[string]any{"name": "bob"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExecutorDelete(t *testing.T) {
	desc, mock := usersFixture(t, true)
	mock.ExpectExec(`DELETE FROM "public"."users" WHERE "id" = $1`).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := Executor{}.Delete(context.Background(), desc, []string{"7"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutorDeleteNotFound(t *testing.T) {
	desc, mock := usersFixture(t, true)
	mock.ExpectExec(`DELETE FROM "public"."users" WHERE "id" = $1`).
		WithArgs(int64(404)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := Executor{}.Delete(context.Background(), desc, []string{"404"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestKeyPredicateReportsCallingOperation(t *testing.T) {
	// a primary key naming a column absent from the field list is an
	// invariant violation; the resulting error must name the operation
	// that hit it, not always the read path
	broken := schema.Table{
		Schema: "public",
		Name:   "ledger",
		Columns: []schema.Column{
			{Name: "amount", Type: schema.TypeInteger, NativeType: "bigint"},
		},
		PrimaryKeys: []string{"entry_id"},
	}
	fd := &testutil.FakeDialect{DialectName: "fake", Driver: "sqlmock", Returning: true}
	cat, _ := testutil.MockCatalog(t, "app", fd, []schema.Table{broken})
	desc, ok := entity.Build([]*schema.Catalog{cat}).Get("ledger")
	require.True(t, ok)

	var ierr *InternalError

	err := Executor{}.Delete(context.Background(), desc, []string{"1"})
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, KindDelete, ierr.Op)

	_, err = Executor{}.Update(context.Background(), desc,
		[]string{"1"}, map[string]any{"amount": int64(2)})
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, KindUpdate, ierr.Op)

	_, err = Executor{}.GetByKey(context.Background(), desc, []string{"1"})
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, KindGetByKey, ierr.Op)
}

func TestCoerceKey(t *testing.T) {
	tests := []struct {
		name    string
		field   entity.Field
		raw     string
		want    any
		wantErr bool
	}{
		{"integer", entity.Field{Name: "id", Type: schema.TypeInteger}, "42", int64(42), false},
		{"bad integer", entity.Field{Name: "id", Type: schema.TypeInteger}, "x", nil, true},
		{"float", entity.Field{Name: "score", Type: schema.TypeFloat}, "2.5", 2.5, false},
		{"boolean", entity.Field{Name: "ok", Type: schema.TypeBoolean}, "true", true, false},
		{"string passthrough", entity.Field{Name: "slug", Type: schema.TypeString}, "a-b", "a-b", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := coerceKey(tt.raw, tt.field)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConvertValue(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		typ     schema.Type
		want    any
		wantErr bool
	}{
		{"nil stays nil", nil, schema.TypeInteger, nil, false},
		{"int64", int64(5), schema.TypeInteger, int64(5), false},
		{"int32 widens", int32(5), schema.TypeInteger, int64(5), false},
		{"uint64 in range", uint64(5), schema.TypeInteger, int64(5), false},
		{"uint64 beyond int64 fails", uint64(math.MaxInt64) + 1, schema.TypeInteger, nil, true},
		{"numeric bytes", []byte("7"), schema.TypeInteger, int64(7), false},
		{"float", 2.5, schema.TypeFloat, 2.5, false},
		{"int as float", int64(2), schema.TypeFloat, 2.0, false},
		{"bool", true, schema.TypeBoolean, true, false},
		{"int bool", int64(1), schema.TypeBoolean, true, false},
		{"string", "a", schema.TypeString, "a", false},
		{"bytes as string", []byte("a"), schema.TypeString, "a", false},
		{"time as string", time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), schema.TypeString, "2024-03-01T12:00:00Z", false},
		{"struct stringified", struct{ X int }{1}, schema.TypeString, "{1}", false},
		{"string into integer fails", "abc", schema.TypeInteger, nil, true},
		{"bool into integer fails", true, schema.TypeInteger, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := convertValue(tt.in, tt.typ)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
