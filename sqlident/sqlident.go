// Package sqlident is the small typed SQL-expression helper described in
// SPEC_FULL.md §5a: a place where identifier quoting, cast syntax, and
// pk-predicate expansion are derived once and reused, instead of the repeated
// string interpolation the original Python converters (and sqldef's own
// adapter/postgres.go pg_dump post-processing) rely on. It does not attempt a
// full SQL parser/deparser, see SPEC_FULL.md's DOMAIN STACK note on why
// pg_query_go was left unwired.
package sqlident

import "strings"

// maxIdentifierLength is Postgres's NAMEDATALEN - 1.
const maxIdentifierLength = 63

// Quote double-quotes a Postgres identifier, escaping embedded double quotes,
// grounded on schema/identifier.go's NormalizeIdentifierName quoting rules.
func Quote(name string) string {
	escaped := strings.ReplaceAll(name, `"`, `""`)
	return `"` + escaped + `"`
}

// Col is a single column reference: a name and its normalised SQL type.
type Col struct {
	Name     string
	Type     string
	Nullable bool
}

// List renders column names joined by ", ", each with an optional prefix/suffix
// (e.g. Prefix "NEW." for rewrite-rule bodies, Suffix "_new"/"_old" for
// procedure parameter lists).
func List(cols []Col, prefix, suffix string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = prefix + c.Name + suffix
	}
	return strings.Join(parts, ", ")
}

// TypedList renders "name suffix type" pairs for procedure parameter lists, e.g.
// "temp_new integer".
func TypedList(cols []Col, suffix string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = c.Name + suffix + " " + c.Type
	}
	return strings.Join(parts, ", ")
}

// CastList renders "prefix.name::type" pairs, used by the INSTEAD OF rule
// bodies to cast NEW./OLD. row values to the procedure's declared parameter
// types (spec.md §4.F).
func CastList(cols []Col, prefix string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = prefix + c.Name + "::" + c.Type
	}
	return strings.Join(parts, ", ")
}

// Names returns just the bare column names.
func Names(cols []Col) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}

// PKPredicate renders "col1 = col1_suffix AND col2 = col2_suffix", the
// recurring pk-equality predicate every write helper and procedure body in
// spec.md §4.E needs.
func PKPredicate(pk []Col, suffix string) string {
	parts := make([]string, len(pk))
	for i, c := range pk {
		parts[i] = c.Name + " = " + c.Name + suffix
	}
	return strings.Join(parts, " AND ")
}

// PKPredicateQualified is PKPredicate with each side qualified by a table
// alias, e.g. for joins: "og.id = shard.id".
func PKPredicateQualified(pk []Col, leftAlias, rightAlias string) string {
	parts := make([]string, len(pk))
	for i, c := range pk {
		parts[i] = leftAlias + "." + c.Name + " = " + rightAlias + "." + c.Name
	}
	return strings.Join(parts, " AND ")
}

// TruncateIdentifier applies Postgres's own truncation algorithm for
// automatically derived names (constraints, shard tables, procedures) that
// would otherwise exceed NAMEDATALEN - 1, grounded on
// util/postgres_util.go's BuildPostgresConstraintName.
func TruncateIdentifier(parts ...string) string {
	full := strings.Join(parts, "_")
	if len(full) <= maxIdentifierLength {
		return full
	}

	// Truncate the longest part first, preserving the suffix (usually the
	// most semantically important piece, e.g. "_rule" or a column name).
	overflow := len(full) - maxIdentifierLength
	longest := 0
	for i, p := range parts {
		if len(p) > len(parts[longest]) {
			longest = i
		}
		_ = p
	}
	if overflow >= len(parts[longest]) {
		overflow = len(parts[longest]) - 1
	}
	parts[longest] = parts[longest][:len(parts[longest])-overflow]
	return strings.Join(parts, "_")
}

// ShardTableName is "table_column", the shard-table naming rule in spec.md §3.
func ShardTableName(table, column string) string {
	return TruncateIdentifier(table, column)
}
