// Package structure is component E, Structure Codegen (spec.md §4.E): the
// per-structure write helper, insert/update/delete procedures, and (SERIAL
// only) refresh helper. Four variants live in max.go, topk.go, ntopk.go and
// serial.go; this file holds what they share.
package structure

import (
	"fmt"
	"strings"

	"github.com/mrvx-tools/mrvxdef/catalog"
	"github.com/mrvx-tools/mrvxdef/sqlident"
)

// minInt32 is the MAX structure's padding sentinel (spec.md §4.D).
const minInt32 = -2147483648

// Spec describes one MRV column's write protocol: the table/column it belongs
// to, its pk/payload columns, and the pool sizing the write helpers close over.
type Spec struct {
	Table        string
	Column       catalog.Column
	PK           []sqlident.Col
	Payload      []sqlident.Col
	Regular      []sqlident.Col
	MaxNodes     int
	InitialNodes int
	K            int
}

// ShardTable is the shard table name for this column.
func (s Spec) ShardTable() string {
	return sqlident.ShardTableName(s.Table, s.Column.Name)
}

// FuncName builds "prefix_table_column", truncated to NAMEDATALEN.
func (s Spec) FuncName(prefix string) string {
	return sqlident.TruncateIdentifier(prefix, s.Table, s.Column.Name)
}

func (s Spec) pkParams(suffix string) string {
	return sqlident.TypedList(s.PK, suffix)
}

func (s Spec) pkPredicate(suffix string) string {
	return sqlident.PKPredicate(s.PK, suffix)
}

func (s Spec) pkArgsCSV(suffix string) string {
	return sqlident.List(s.PK, "", suffix)
}

// dollarQuoted wraps a plpgsql function body in a $$ ... $$ dollar-quoted
// string, the convention the original converters and Postgres procedural SQL
// both use to avoid escaping embedded quotes.
func dollarQuoted(body string) string {
	var b strings.Builder
	b.WriteString("$$\n")
	b.WriteString(body)
	b.WriteString("\n$$")
	return b.String()
}

// assignmentList renders "col1 = col1_suffix, col2 = col2_suffix" for UPDATE
// SET clauses.
func assignmentList(cols []sqlident.Col, suffix string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = c.Name + " = " + c.Name + suffix
	}
	return strings.Join(parts, ", ")
}

func quoteCol(c catalog.Column) string {
	return sqlident.Quote(c.Name)
}

// pkOutAssignments renders "id := id_; region := region_;" lines assigning
// each RETURNS TABLE out-parameter from its corresponding pk_-suffixed input.
func (s Spec) pkOutAssignments() string {
	var b strings.Builder
	for _, c := range s.PK {
		b.WriteString(fmt.Sprintf("  %s := %s_;\n", c.Name, c.Name))
	}
	return b.String()
}

// pkTableColumns renders "id integer, region varchar" for a RETURNS TABLE
// column list.
func (s Spec) pkTableColumns() string {
	return sqlident.TypedList(s.PK, "")
}

func shardTableRef(s Spec) string {
	return sqlident.Quote(s.ShardTable())
}

func createFunction(name, params, returns, body, lang string) string {
	return fmt.Sprintf("CREATE OR REPLACE FUNCTION %s(%s) RETURNS %s AS %s LANGUAGE %s;",
		sqlident.Quote(name), params, returns, dollarQuoted(body), lang)
}
