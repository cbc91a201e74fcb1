// Package viewgen is component F, the View & Rule Emitter (spec.md §4.F): the
// reconstructing view per structure, the three generic INSTEAD OF rewrite
// rules, and the mrv_size/mrv_total dynamic-SQL helpers.
package viewgen

import (
	"fmt"
	"strings"

	"github.com/mrvx-tools/mrvxdef/model"
	"github.com/mrvx-tools/mrvxdef/sqlident"
)

// ColumnSpec is one MRV column, enough to join its shard table into a view.
type ColumnSpec struct {
	Name     string
	Type     string
	Payload  []sqlident.Col
	K        int
	MaxNodes int
}

func (c ColumnSpec) shardTable(table string) string {
	return sqlident.ShardTableName(table, c.Name)
}

// TableSpec is everything the view/rule emitter needs about one converted table.
type TableSpec struct {
	Table     string
	Structure model.Structure
	PK        []sqlident.Col
	Regular   []sqlident.Col
	Columns   []ColumnSpec
	// Order holds the NTOPK order columns (model §8 `order`, dropped from
	// T_orig and reconstructed by the view's ROW_NUMBER() ranking). Unused
	// by the other three structures.
	Order []sqlident.Col
}

func (t TableSpec) origTable() string { return sqlident.Quote(t.Table + "_orig") }
func (t TableSpec) view() string      { return sqlident.Quote(t.Table) }

func (t TableSpec) pkJoin(leftAlias, rightAlias string) string {
	return sqlident.PKPredicateQualified(t.PK, leftAlias, rightAlias)
}

// ViewDDL emits the reconstructing view for t's structure (spec.md §4.F).
func (t TableSpec) ViewDDL() string {
	switch t.Structure {
	case model.Max:
		return t.maxViewDDL()
	case model.TopK:
		return t.topKViewDDL()
	case model.NTopK:
		return t.ntopkViewDDL()
	case model.Serial:
		return t.serialViewDDL()
	default:
		return ""
	}
}

func (t TableSpec) maxViewDDL() string {
	var cols []string
	for _, c := range t.Columns {
		cols = append(cols, fmt.Sprintf(
			"(SELECT MAX(%s) FROM %s shard WHERE %s) AS %s",
			sqlident.Quote(c.Name), sqlident.Quote(c.shardTable(t.Table)), t.pkJoin("shard", "o"), sqlident.Quote(c.Name)))
	}
	return fmt.Sprintf("CREATE VIEW %s AS\nSELECT o.*, %s\nFROM %s o;",
		t.view(), strings.Join(cols, ", "), t.origTable())
}

func (t TableSpec) topKViewDDL() string {
	var joins []string
	var cols []string
	for i, c := range t.Columns {
		alias := fmt.Sprintf("agg%d", i)
		shard := sqlident.Quote(c.shardTable(t.Table))
		sub := fmt.Sprintf(`(
    SELECT u.pk_tuple AS pk_tuple, (ARRAY_AGG(u.val ORDER BY u.val ASC))[GREATEST(1, COUNT(*) - %d + 1):COUNT(*)] AS %s
    FROM (SELECT (%s) AS pk_tuple, UNNEST(%s) AS val FROM %s) u
    GROUP BY u.pk_tuple
  ) %s`, c.K, sqlident.Quote(c.Name), pkTupleExpr(t.PK), sqlident.Quote(c.Name), shard, alias)
		joins = append(joins, fmt.Sprintf("LEFT JOIN %s ON (%s) = %s.pk_tuple", sub, pkTupleExprQualified(t.PK, "o"), alias))
		cols = append(cols, fmt.Sprintf("%s.%s", alias, sqlident.Quote(c.Name)))
	}
	return fmt.Sprintf("CREATE VIEW %s AS\nSELECT o.*, %s\nFROM %s o\n%s;",
		t.view(), strings.Join(cols, ", "), t.origTable(), strings.Join(joins, "\n"))
}

func (t TableSpec) ntopkViewDDL() string {
	// all NTOPK columns in one table share k (SPEC_FULL.md §5c); use the first.
	k := 1
	if len(t.Columns) > 0 {
		k = t.Columns[0].K
	}

	var joins []string
	var cols []string
	for i, c := range t.Columns {
		alias := fmt.Sprintf("s%d", i)
		shard := sqlident.Quote(c.shardTable(t.Table))
		payloadCols := ""
		for _, p := range c.Payload {
			payloadCols += ", " + sqlident.Quote(p.Name)
		}
		if k == 1 {
			sub := fmt.Sprintf(`(
    SELECT DISTINCT ON (%s) %s%s, %s
    FROM %s
    ORDER BY %s, %s DESC
  ) %s`, pkListBare(t.PK), pkListBare(t.PK), payloadCols, sqlident.Quote(c.Name),
				shard, pkListBare(t.PK), sqlident.Quote(c.Name), alias)
			joins = append(joins, fmt.Sprintf("JOIN %s ON (%s) = (%s)", sub, pkTupleExprQualified(t.PK, "o"), aliasPKTuple(t.PK, alias)))
		} else {
			// spec.md §4.F / ntopk_converter.py: the ROW_NUMBER() ranking IS the
			// reconstructed order column, aliased to its name directly rather
			// than to a throwaway "rn", then projected and used in the final
			// ORDER BY like any other output column.
			rankCol := sqlident.Quote(rankColumnName(t.Order))
			sub := fmt.Sprintf(`(
    SELECT %s%s, %s, ROW_NUMBER() OVER (PARTITION BY %s ORDER BY %s DESC) AS %s
    FROM %s
  ) %s`, pkListBare(t.PK), payloadCols, sqlident.Quote(c.Name), pkListBare(t.PK), sqlident.Quote(c.Name), rankCol, shard, alias)
			joins = append(joins, fmt.Sprintf("JOIN %s ON (%s) = (%s) AND %s.%s <= %d", sub, pkTupleExprQualified(t.PK, "o"), aliasPKTuple(t.PK, alias), alias, rankCol, k))
		}
		cols = append(cols, fmt.Sprintf("%s.%s", alias, sqlident.Quote(c.Name)))
		for _, p := range c.Payload {
			cols = append(cols, fmt.Sprintf("%s.%s", alias, sqlident.Quote(p.Name)))
		}
		if k > 1 {
			// every order column the model declares surfaces the same rank value
			// (spec.md §5b: one structure, and by extension one ranking, per model).
			for j, o := range t.Order {
				if j == 0 {
					cols = append(cols, fmt.Sprintf("%s.%s", alias, sqlident.Quote(o.Name)))
				} else {
					cols = append(cols, fmt.Sprintf("%s.%s AS %s", alias, sqlident.Quote(t.Order[0].Name), sqlident.Quote(o.Name)))
				}
			}
		}
	}

	orderBy := pkListQualified(t.PK, "o")
	if k > 1 {
		for _, o := range t.Order {
			orderBy += ", " + sqlident.Quote(o.Name) + " ASC"
		}
	}
	return fmt.Sprintf("CREATE VIEW %s AS\nSELECT o.*, %s\nFROM %s o\n%s\nORDER BY %s;",
		t.view(), strings.Join(cols, ", "), t.origTable(), strings.Join(joins, "\n"), orderBy)
}

// rankColumnName is the alias the ROW_NUMBER() window function is projected
// under: the model's declared order column when there is one, else a plain
// "rn" fallback for a table converted without an order column named.
func rankColumnName(order []sqlident.Col) string {
	if len(order) > 0 {
		return order[0].Name
	}
	return "rn"
}

// SerialPKViewDDLs emits T_M_pk for every SERIAL MRV column: a thin view over
// T_orig's primary key that refresh_T_M workers scan instead of depending on
// T_orig's full column shape (spec.md supplement A, grounded on
// serial_converter.py's CREATE VIEW T_M_pk AS SELECT pk FROM T_orig).
func (t TableSpec) SerialPKViewDDLs() []string {
	if t.Structure != model.Serial {
		return nil
	}
	var out []string
	for _, c := range t.Columns {
		name := sqlident.Quote(c.shardTable(t.Table) + "_pk")
		out = append(out, fmt.Sprintf("CREATE VIEW %s AS\nSELECT %s\nFROM %s;",
			name, pkListBare(t.PK), t.origTable()))
	}
	return out
}

func (t TableSpec) serialViewDDL() string {
	var joins []string
	var cols []string
	for i, c := range t.Columns {
		alias := fmt.Sprintf("m%d", i)
		shard := sqlident.Quote(c.shardTable(t.Table))
		sub := fmt.Sprintf(`(
    SELECT %s, MIN(%s) AS %s
    FROM %s
    WHERE "valid" = true
    GROUP BY %s
  ) %s`, pkListBare(t.PK), sqlident.Quote(c.Name), sqlident.Quote(c.Name), shard, pkListBare(t.PK), alias)
		joins = append(joins, fmt.Sprintf("JOIN %s ON (%s) = (%s)", sub, pkTupleExprQualified(t.PK, "o"), aliasPKTuple(t.PK, alias)))
		cols = append(cols, fmt.Sprintf("%s.%s", alias, sqlident.Quote(c.Name)))
	}
	return fmt.Sprintf("CREATE VIEW %s AS\nSELECT o.*, %s\nFROM %s o\n%s;",
		t.view(), strings.Join(cols, ", "), t.origTable(), strings.Join(joins, "\n"))
}

// RuleDDLs emits the three INSTEAD OF rewrite rules forwarding DML on the view
// to the insert_T/update_T/delete_T procedures, casting each column to its
// normalised type.
func (t TableSpec) RuleDDLs() []string {
	notMRV := append(append([]sqlident.Col{}, t.PK...), t.Regular...)

	// Per-column MRV+payload casts, interleaved in the same order
	// structure.TableSpec.InsertProcDDL/UpdateProcDDL build their parameter
	// lists in: col1_new[, payload1...], col2_new[, payload2...], ... This must
	// stay in lockstep with table.go or the rule's argument list silently
	// shifts past the procedure's parameter list for tables with more than one
	// MRV column.
	var mrvArgs []string
	for _, c := range t.Columns {
		mrvArgs = append(mrvArgs, splitCasts(sqlident.CastList([]sqlident.Col{{Name: c.Name, Type: c.Type}}, "NEW."))...)
		if len(c.Payload) > 0 {
			mrvArgs = append(mrvArgs, splitCasts(sqlident.CastList(c.Payload, "NEW."))...)
		}
	}

	insertArgs := strings.Join(append(splitCasts(sqlident.CastList(notMRV, "NEW.")), mrvArgs...), ", ")
	insertRule := fmt.Sprintf("CREATE RULE %s AS ON INSERT TO %s DO INSTEAD SELECT %s(%s);",
		sqlident.Quote(t.Table+"_insert_rule"), t.view(), sqlident.Quote(t.Table+"_insert"), insertArgs)

	updateArgs := strings.Join(append(
		append(splitCasts(sqlident.CastList(notMRV, "NEW.")), splitCasts(sqlident.CastList(notMRV, "OLD."))...),
		mrvArgs...,
	), ", ")
	updateRule := fmt.Sprintf("CREATE RULE %s AS ON UPDATE TO %s DO INSTEAD SELECT %s(%s);",
		sqlident.Quote(t.Table+"_update_rule"), t.view(), sqlident.Quote(t.Table+"_update"), updateArgs)

	deleteArgs := strings.Join(splitCasts(sqlident.CastList(t.PK, "OLD.")), ", ")
	deleteRule := fmt.Sprintf("CREATE RULE %s AS ON DELETE TO %s DO INSTEAD SELECT %s(%s);",
		sqlident.Quote(t.Table+"_delete_rule"), t.view(), sqlident.Quote(t.Table+"_delete"), deleteArgs)

	return []string{insertRule, updateRule, deleteRule}
}

func splitCasts(castList string) []string {
	if castList == "" {
		return nil
	}
	return strings.Split(castList, ", ")
}

func pkTupleExpr(pk []sqlident.Col) string    { return pkListBare(pk) }
func pkTupleExprQualified(pk []sqlident.Col, alias string) string {
	return pkListQualified(pk, alias)
}
func pkListBare(pk []sqlident.Col) string {
	parts := make([]string, len(pk))
	for i, c := range pk {
		parts[i] = sqlident.Quote(c.Name)
	}
	return strings.Join(parts, ", ")
}
func pkListQualified(pk []sqlident.Col, alias string) string {
	parts := make([]string, len(pk))
	for i, c := range pk {
		parts[i] = alias + "." + sqlident.Quote(c.Name)
	}
	return strings.Join(parts, ", ")
}
func aliasPKTuple(pk []sqlident.Col, alias string) string {
	parts := make([]string, len(pk))
	for i, c := range pk {
		parts[i] = alias + "." + sqlident.Quote(c.Name)
	}
	return strings.Join(parts, ", ")
}

// HelperFunctionDDLs emits the two dynamic-SQL introspection helpers
// mrv_size and mrv_total (spec.md §4.F), each executed once per database
// install rather than per table.
func HelperFunctionDDLs() []string {
	size := `CREATE OR REPLACE FUNCTION mrv_size(tbl text, col text, pk_predicate text) RETURNS integer AS $$
DECLARE
  result integer;
BEGIN
  EXECUTE format('SELECT COUNT(*) FROM %I WHERE %s', tbl || '_' || col, pk_predicate) INTO result;
  RETURN result;
END;
$$ LANGUAGE plpgsql;`

	total := `CREATE OR REPLACE FUNCTION mrv_total(tbl text, col text, pk_predicate text) RETURNS numeric AS $$
DECLARE
  result numeric;
BEGIN
  EXECUTE format('SELECT SUM(%I) FROM %I WHERE %s', col, tbl || '_' || col, pk_predicate) INTO result;
  RETURN result;
END;
$$ LANGUAGE plpgsql;`

	return []string{size, total}
}
