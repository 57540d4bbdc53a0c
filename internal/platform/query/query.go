// Package query wraps pgx with schema-qualified table handles and row
// helpers that map results onto db-tagged structs and normalise driver
// errors into apperr codes.
package query

import (
	"context"
	"errors"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/intake/internal/platform/apperr"
	"github.com/ehr/intake/internal/platform/db"
)

// Querier is satisfied by *pgxpool.Pool, *pgxpool.Conn and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Client hands out the right connection for a request and qualifies
// relation names with the application schema.
type Client struct {
	pool   *pgxpool.Pool
	schema string
}

func New(pool *pgxpool.Pool, schema string) *Client {
	return &Client{pool: pool, schema: schema}
}

// Conn prefers the transaction in ctx, then the organization-scoped request
// connection, then the pool.
func (c *Client) Conn(ctx context.Context) Querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if conn := db.ConnFromContext(ctx); conn != nil {
		return conn
	}
	return c.pool
}

// InTx runs fn in one transaction; see db.RunInTx.
func (c *Client) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.RunInTx(ctx, c.pool, fn)
}

// Table returns the quoted, schema-qualified name of a table.
func (c *Client) Table(name string) string {
	return c.qualify(name)
}

// View returns the quoted, schema-qualified name of a view.
func (c *Client) View(name string) string {
	return c.qualify(name)
}

// Func returns the quoted, schema-qualified name of a function.
func (c *Client) Func(name string) string {
	return c.qualify(name)
}

func (c *Client) qualify(name string) string {
	if c.schema == "" {
		return pgx.Identifier{name}.Sanitize()
	}
	return pgx.Identifier{c.schema, name}.Sanitize()
}

// Single returns exactly one row mapped onto T. Zero rows is NOT_FOUND.
func Single[T any](ctx context.Context, q Querier, op, sql string, args ...any) (*T, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, apperr.FromDB(op, err)
	}
	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[T])
	if err != nil {
		return nil, apperr.FromDB(op, err)
	}
	return row, nil
}

// MaybeSingle returns one row mapped onto T, or nil without error when the
// query matched nothing.
func MaybeSingle[T any](ctx context.Context, q Querier, op, sql string, args ...any) (*T, error) {
	row, err := Single[T](ctx, q, op, sql, args...)
	if apperr.Is(err, apperr.CodeNotFound) && errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return row, err
}

// Many returns every row mapped onto T. The slice is empty, not nil, when
// nothing matched.
func Many[T any](ctx context.Context, q Querier, op, sql string, args ...any) ([]T, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, apperr.FromDB(op, err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByName[T])
	if err != nil {
		return nil, apperr.FromDB(op, err)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// Scalar scans a single value, typically a RETURNING column.
func Scalar[T any](ctx context.Context, q Querier, op, sql string, args ...any) (T, error) {
	var v T
	if err := q.QueryRow(ctx, sql, args...).Scan(&v); err != nil {
		return v, apperr.FromDB(op, err)
	}
	return v, nil
}

// Exec runs a statement and returns the number of affected rows.
func Exec(ctx context.Context, q Querier, op, sql string, args ...any) (int64, error) {
	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return 0, apperr.FromDB(op, err)
	}
	return tag.RowsAffected(), nil
}

var columnCache sync.Map

// Columns returns the comma-separated db tags of T's fields, in field
// order, for use in SELECT lists and INSERT column lists. Fields tagged
// `db:"-"` or without a tag are skipped.
func Columns[T any]() string {
	return strings.Join(ColumnList[T](), ", ")
}

// ColumnList is Columns as a slice.
func ColumnList[T any]() []string {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if cached, ok := columnCache.Load(typ); ok {
		return cached.([]string)
	}

	var cols []string
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := f.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		cols = append(cols, tag)
	}
	columnCache.Store(typ, cols)
	return cols
}

// Placeholders renders "$1, $2, ..., $n".
func Placeholders(n int) string {
	return PlaceholdersFrom(1, n)
}

// PlaceholdersFrom renders n placeholders starting at $start.
func PlaceholdersFrom(start, n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = "$" + strconv.Itoa(start+i)
	}
	return strings.Join(ph, ", ")
}

// ExcludedSet renders the SET list of an upsert, "col = EXCLUDED.col" for
// every column except the conflict keys.
func ExcludedSet(cols []string, keys ...string) string {
	skip := make(map[string]bool, len(keys))
	for _, k := range keys {
		skip[k] = true
	}
	parts := make([]string, 0, len(cols))
	for _, c := range cols {
		if !skip[c] {
			parts = append(parts, c+" = EXCLUDED."+c)
		}
	}
	return strings.Join(parts, ", ")
}
