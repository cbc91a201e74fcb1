// Package catalog is component A, the Introspector (SPEC_FULL.md §5). It opens
// the single Postgres connection mrvxdef uses for an entire run (lib/pq, the
// driver sqldef's adapter/postgres.go and database/postgres/database.go
// both use) and answers the three questions component A needs answered:
// describe_columns, primary_key_columns, index_definitions.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/mrvx-tools/mrvxdef/mrverrors"
)

// Config holds the DBMS connection parameters from the model file
// (SPEC_FULL.md §7).
type Config struct {
	DbName   string
	Host     string
	Port     int
	User     string
	Password string
	Socket   string
	Schema   string
}

// Querier is satisfied by both *sql.DB and *sql.Tx, so introspection and DDL
// execution can share the same code whether or not a transaction is open yet
// (grounded on adapter/database.go's Database interface shape).
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Catalog is the Introspector bound to one connection/transaction and target
// schema.
type Catalog struct {
	q      Querier
	Schema string
}

// New wraps an already-open Querier (a *sql.DB before the run's transaction
// starts, or the *sql.Tx once it has).
func New(q Querier, schema string) *Catalog {
	return &Catalog{q: q, Schema: schema}
}

// Open connects to Postgres with cfg.Schema baked into the connection's
// startup options, so search_path is set on every pooled connection rather
// than just the one Open happens to issue the SET on (the run's actual work
// executes on a *sql.Tx, which the pool may bind to a different connection
// than the one Open touched).
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", buildDSN(cfg))
	if err != nil {
		return nil, errors.Wrap(mrverrors.ConnectionError, err.Error())
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(mrverrors.ConnectionError, err.Error())
	}
	return db, nil
}

func buildDSN(cfg Config) string {
	host := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	if cfg.Socket != "" {
		host = cfg.Socket
	}
	password := cfg.Password
	if pgpass, ok := os.LookupEnv("PGPASS"); ok {
		password = pgpass
	}
	// options=-c search_path=... is lib/pq's documented way to pass a startup
	// parameter, applied per-connection rather than per-session, so it still
	// holds however the pool distributes work across connections.
	options := url.QueryEscape(fmt.Sprintf("-c search_path=%s", cfg.Schema))
	// TODO: URI-escape user/password/host, same caveat adapter/postgres.go leaves open.
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable&options=%s", cfg.User, password, host, cfg.DbName, options)
}

// Column is a catalog-described column: name, normalised type, nullability.
// Type normalisation follows spec.md §3: character -> varchar, smallint -> integer.
type Column struct {
	Name     string
	Type     string // normalised portable type name
	RawType  string // underlying/unwrapped type (udt_name), needed for array columns
	Nullable bool
}

var typeTranslation = map[string]string{
	"character": "varchar",
	"smallint":  "integer",
}

func normalizeType(t string) string {
	if translated, ok := typeTranslation[t]; ok {
		return translated
	}
	return t
}

// DescribeColumns implements describe_columns(schema, table). Column.RawType
// (udt_name) carries the unwrapped type name Postgres reports for array
// columns (e.g. "_int4"); it matters when re-introspecting an already
// MRV-converted shard table, not when first reading a plain scalar source
// column, so ordinary conversion runs use Column.Type throughout.
func (c *Catalog) DescribeColumns(ctx context.Context, table string) ([]Column, error) {
	const query = `
		SELECT column_name, data_type, udt_name, is_nullable
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position;`

	rows, err := c.q.QueryContext(ctx, query, c.Schema, table)
	if err != nil {
		return nil, mrverrors.Table(errors.Wrap(mrverrors.DDLError, err.Error()), table)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var name, dataType, udtName, isNullable string
		if err := rows.Scan(&name, &dataType, &udtName, &isNullable); err != nil {
			return nil, mrverrors.Table(err, table)
		}
		cols = append(cols, Column{
			Name:     name,
			Type:     normalizeType(dataType),
			RawType:  udtName,
			Nullable: isNullable == "YES",
		})
	}
	if err := rows.Err(); err != nil {
		return nil, mrverrors.Table(err, table)
	}
	if len(cols) == 0 {
		return nil, mrverrors.Table(mrverrors.NoSuchTable, table)
	}
	return cols, nil
}

// PrimaryKeyColumns implements primary_key_columns(table): the set of attribute
// names in the table's primary-key index.
func (c *Catalog) PrimaryKeyColumns(ctx context.Context, table string) (map[string]bool, error) {
	const query = `
		SELECT a.attname
		FROM pg_index i
		JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
		JOIN pg_class c ON c.oid = i.indrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1 AND c.relname = $2 AND i.indisprimary;`

	rows, err := c.q.QueryContext(ctx, query, c.Schema, table)
	if err != nil {
		return nil, mrverrors.Table(errors.Wrap(mrverrors.DDLError, err.Error()), table)
	}
	defer rows.Close()

	pk := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, mrverrors.Table(err, table)
		}
		pk[name] = true
	}
	return pk, rows.Err()
}

// IndexDefinitions implements index_definitions(schema, table): textual CREATE
// INDEX statements for every index that does not back a primary-key, unique or
// exclusion constraint. Constraint-backed indexes are filtered out through
// pg_constraint, the way sqldef's getIndexDefs excludes them.
func (c *Catalog) IndexDefinitions(ctx context.Context, table string) ([]string, error) {
	const query = `
		WITH exclude_constraints AS (
			SELECT con.conname AS name
			FROM pg_constraint con
			JOIN pg_namespace nsp ON nsp.oid = con.connamespace
			JOIN pg_class cls ON cls.oid = con.conrelid
			WHERE con.contype IN ('p', 'u', 'x') AND nsp.nspname = $1 AND cls.relname = $2
		)
		SELECT indexname, indexdef
		FROM pg_indexes
		WHERE schemaname = $1 AND tablename = $2
		AND indexname NOT IN (SELECT name FROM exclude_constraints)
		ORDER BY indexdef;`

	rows, err := c.q.QueryContext(ctx, query, c.Schema, table)
	if err != nil {
		return nil, mrverrors.Table(errors.Wrap(mrverrors.DDLError, err.Error()), table)
	}
	defer rows.Close()

	var defs []string
	for rows.Next() {
		var name, def string
		if err := rows.Scan(&name, &def); err != nil {
			return nil, mrverrors.Table(err, table)
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

// Exec runs a DDL/DML statement, wrapping any failure per spec.md §7 with the
// table and statement text.
func (c *Catalog) Exec(ctx context.Context, table, stmt string) error {
	if _, err := c.q.ExecContext(ctx, stmt); err != nil {
		return mrverrors.Statement(errors.Wrap(mrverrors.DDLError, err.Error()), table, stmt)
	}
	return nil
}

// ExecArgs runs a parameterised statement, used by the Shard-Table Builder to
// bulk-insert row values read back from the source table without ever
// interpolating user data into SQL text.
func (c *Catalog) ExecArgs(ctx context.Context, table, stmt string, args ...any) error {
	if _, err := c.q.ExecContext(ctx, stmt, args...); err != nil {
		return mrverrors.Statement(errors.Wrap(mrverrors.DMLError, err.Error()), table, stmt)
	}
	return nil
}

// Query runs a read statement against the catalog's Querier.
func (c *Catalog) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.q.QueryContext(ctx, query, args...)
}

// Query1 runs a read statement expected to return at most one row.
func (c *Catalog) Query1(ctx context.Context, query string, args ...any) *sql.Row {
	return c.q.QueryRowContext(ctx, query, args...)
}
