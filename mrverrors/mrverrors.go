// Package mrverrors holds the error taxonomy mrvxdef reports to callers: sentinel
// causes, wrapped with table/statement context via github.com/pkg/errors so the
// CLI can print "the offending table name and, where applicable, the failing SQL
// statement" without every package re-inventing that formatting.
package mrverrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel causes. Use errors.Is / Cause to recover one of these from a wrapped
// error returned by any mrvxdef package.
var (
	ConfigurationError             = errors.New("configuration error")
	ConnectionError                = errors.New("connection error")
	NoSuchTable                    = errors.New("no such table")
	NoSuchColumn                   = errors.New("no such column")
	AmbiguousColumnClassification  = errors.New("ambiguous column classification")
	DDLError                       = errors.New("ddl error")
	DMLError                       = errors.New("dml error")
	PoolExhausted                  = errors.New("slot pool exhausted")
)

// Table wraps cause with the table it occurred on.
func Table(cause error, table string) error {
	return errors.Wrapf(cause, "table %q", table)
}

// Statement wraps cause with the table and the failing SQL statement.
func Statement(cause error, table, stmt string) error {
	return errors.Wrapf(cause, "table %q, statement: %s", table, stmt)
}

// Column wraps cause with the table and column it occurred on.
func Column(cause error, table, column string) error {
	return errors.Wrapf(cause, "table %q, column %q", table, column)
}

// Is reports whether err was ultimately wrapped around target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Format renders err the way the CLI prints it to stderr before exiting.
func Format(err error) string {
	return fmt.Sprintf("mrvxdef: %v", err)
}
