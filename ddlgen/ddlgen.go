// Package ddlgen is component C, the DDL Emitter (spec.md §4.C): rename the
// source table aside, create and populate T_orig, and lift its indexes. Index
// text rewriting follows sqldef's own regexp-based post-processing style
// (adapter/postgres.go's pg_dump DDL cleanup) rather than a SQL AST library,
// see DESIGN.md for why pg_query_go was left unwired.
package ddlgen

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mrvx-tools/mrvxdef/sqlident"
)

// AuxTableName is "table__aux", the rename target before T_orig is built
// (spec.md §4.C step 1; not used for SERIAL).
func AuxTableName(table string) string {
	return table + "__aux"
}

// OrigTableName is "table_orig".
func OrigTableName(table string) string {
	return table + "_orig"
}

// RenameToAuxDDL renames the source table aside.
func RenameToAuxDDL(table string) string {
	return fmt.Sprintf("ALTER TABLE %s RENAME TO %s;", sqlident.Quote(table), sqlident.Quote(AuxTableName(table)))
}

// RenameToOrigDDL renames the source table directly to T_orig, the SERIAL
// path that skips the aux/copy step (spec.md §4.C step 3 caveat).
func RenameToOrigDDL(table string) string {
	return fmt.Sprintf("ALTER TABLE %s RENAME TO %s;", sqlident.Quote(table), sqlident.Quote(OrigTableName(table)))
}

// CreateOrigTableDDL creates T_orig with columns = not_mrv, primary key = pk.
func CreateOrigTableDDL(table string, notMRV []sqlident.Col, pk []sqlident.Col) string {
	var body []string
	for _, c := range notMRV {
		nullability := ""
		if !c.Nullable {
			nullability = " NOT NULL"
		}
		body = append(body, fmt.Sprintf("%s %s%s", sqlident.Quote(c.Name), c.Type, nullability))
	}
	pkNames := make([]string, len(pk))
	for i, c := range pk {
		pkNames[i] = sqlident.Quote(c.Name)
	}
	body = append(body, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pkNames, ", ")))
	return fmt.Sprintf("CREATE TABLE %s (\n\t%s\n);", sqlident.Quote(OrigTableName(table)), strings.Join(body, ",\n\t"))
}

// PopulateOrigDDL implements step 3: SELECT DISTINCT not_mrv FROM T__aux,
// deduplicating any rows that only differed by an MRV column.
func PopulateOrigDDL(table string, notMRV []sqlident.Col) string {
	names := make([]string, len(notMRV))
	for i, c := range notMRV {
		names[i] = sqlident.Quote(c.Name)
	}
	cols := strings.Join(names, ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) SELECT DISTINCT %s FROM %s;",
		sqlident.Quote(OrigTableName(table)), cols, cols, sqlident.Quote(AuxTableName(table)))
}

// DropAuxTableDDL drops T__aux (not issued for SERIAL, which never created one).
func DropAuxTableDDL(table string) string {
	return fmt.Sprintf("DROP TABLE %s;", sqlident.Quote(AuxTableName(table)))
}

// DropMRVColumnDDL drops an MRV column from T_orig after shard population,
// the SERIAL-only cleanup step (spec.md §4.C step 3 caveat).
func DropMRVColumnDDL(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;", sqlident.Quote(OrigTableName(table)), sqlident.Quote(column))
}

var (
	createIndexRe = regexp.MustCompile(`(?i)^CREATE\s+(UNIQUE\s+)?INDEX\s+`)
	indexNameRe   = regexp.MustCompile(`(?i)^CREATE\s+(?:UNIQUE\s+)?INDEX\s+(?:IF\s+NOT\s+EXISTS\s+)?"?([A-Za-z0-9_]+)"?\s+ON\s+`)
	onClauseRe    = regexp.MustCompile(`(?i)\bON\s+(?:\S+\.)?"?([A-Za-z0-9_]+)"?\s+USING`)
)

// RewriteIndexDDL lifts one index definition from the source table to T_orig:
// renames the index itself and rewrites the ON clause's table reference,
// strips order-column references (NTOPK only), and makes the CREATE
// idempotent with IF NOT EXISTS (spec.md §4.C step 4).
func RewriteIndexDDL(indexDef, table string, orderColumns []string) string {
	rewritten := renameIndexName(indexDef, table)

	rewritten = createIndexRe.ReplaceAllStringFunc(rewritten, func(m string) string {
		return strings.TrimRight(m, " ") + " IF NOT EXISTS "
	})

	rewritten = onClauseRe.ReplaceAllString(rewritten, fmt.Sprintf(`ON %s USING`, sqlident.Quote(OrigTableName(table))))

	for _, col := range orderColumns {
		rewritten = stripOrderColumn(rewritten, col)
	}
	return rewritten
}

// renameIndexName retargets the index's own name the same way its ON clause
// is retargeted, the original converters' own
// re.sub(f"{table}", f"{table}_orig", index) rule: "votes_s_idx" becomes
// "votes_orig_s_idx". Without this the index keeps pointing at a name derived
// from the source table, and on a schema that already has an index by that
// name (the source table's own, still alive until it's dropped) the lifted
// CREATE INDEX IF NOT EXISTS silently no-ops instead of creating the index on
// T_orig.
func renameIndexName(indexDef, table string) string {
	m := indexNameRe.FindStringSubmatchIndex(indexDef)
	if m == nil {
		return indexDef
	}
	nameStart, nameEnd := m[2], m[3]
	name := indexDef[nameStart:nameEnd]

	boundaryRe := regexp.MustCompile(`(^|_)` + regexp.QuoteMeta(table) + `(_|$)`)
	renamed := boundaryRe.ReplaceAllString(name, `${1}`+table+`_orig${2}`)
	if renamed == name {
		return indexDef
	}
	return indexDef[:nameStart] + sqlident.Quote(renamed) + indexDef[nameEnd:]
}

// stripOrderColumn removes every ", "col"" and ""col", " reference from an
// index's column-expression list.
func stripOrderColumn(indexDef, column string) string {
	quoted := sqlident.Quote(column)
	indexDef = strings.ReplaceAll(indexDef, ", "+quoted, "")
	indexDef = strings.ReplaceAll(indexDef, quoted+", ", "")
	return indexDef
}
