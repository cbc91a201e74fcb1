package structure

import (
	"fmt"
	"strings"

	"github.com/mrvx-tools/mrvxdef/model"
	"github.com/mrvx-tools/mrvxdef/sqlident"
)

// TableSpec aggregates everything needed to emit the table-level insert_T,
// update_T and delete_T procedures: the classified pk/regular columns and one
// Spec per MRV column (spec.md §4.E, "Insert / Update / Delete (all variants)").
type TableSpec struct {
	Table        string
	Structure    model.Structure
	PK           []sqlident.Col
	Regular      []sqlident.Col
	Columns      []Spec
	MaxNodes     int
	InitialNodes int
}

// origTable is "T_orig".
func (t TableSpec) origTable() string {
	return sqlident.Quote(t.Table + "_orig")
}

// WriteFunctionDDLs emits the per-column write helper (max_T_M / topK_T_M /
// topk_insert_T_M / T_M) dispatched by structure variant.
func (t TableSpec) WriteFunctionDDLs() []string {
	var out []string
	for _, c := range t.Columns {
		switch t.Structure {
		case model.Max:
			out = append(out, MaxWriteFunctionDDL(c))
		case model.TopK:
			out = append(out, TopKWriteFunctionDDL(c))
		case model.NTopK:
			out = append(out, NTopKWriteFunctionDDL(c))
		case model.Serial:
			out = append(out, SerialPopFunctionDDL(c))
		}
	}
	return out
}

// RefreshFunctionDDLs emits refresh_T_M for every MRV column; only SERIAL has one.
func (t TableSpec) RefreshFunctionDDLs() []string {
	if t.Structure != model.Serial {
		return nil
	}
	var out []string
	for _, c := range t.Columns {
		out = append(out, SerialRefreshFunctionDDL(c))
	}
	return out
}

func (t TableSpec) notMRVCols() []sqlident.Col {
	cols := make([]sqlident.Col, 0, len(t.PK)+len(t.Regular))
	cols = append(cols, t.PK...)
	cols = append(cols, t.Regular...)
	return cols
}

// paddingCount is max(initialNodes, k) per spec.md §4.E's insert_T rule.
func paddingCount(initialNodes, k int) int {
	if k > initialNodes {
		return k
	}
	return initialNodes
}

// shardInsertForNewValue builds the "one real row" INSERT for a given MRV
// column, and shardInsertPadding builds the remaining max(initialNodes,k)-1
// padding-row INSERT, per structure.
func shardInsertForNewValue(c Spec, structure model.Structure) string {
	pkArgs := c.pkArgsCSV("_new")
	switch structure {
	case model.NTopK:
		if len(c.Payload) > 0 {
			payloadArgs := sqlident.List(c.Payload, "", "_new")
			return fmt.Sprintf(`INSERT INTO %s VALUES (%s, floor(random() * %d)::int, %s, %s_new);`,
				shardTableRef(c), pkArgs, c.MaxNodes, payloadArgs, c.Column.Name)
		}
		return fmt.Sprintf(`INSERT INTO %s VALUES (%s, floor(random() * %d)::int, %s_new);`,
			shardTableRef(c), pkArgs, c.MaxNodes, c.Column.Name)
	case model.TopK:
		return fmt.Sprintf(`INSERT INTO %s VALUES (%s, floor(random() * %d)::int, ARRAY[%s_new]);`,
			shardTableRef(c), pkArgs, c.MaxNodes, c.Column.Name)
	case model.Serial:
		return fmt.Sprintf(`INSERT INTO %s VALUES (%s, floor(random() * %d)::int, %s_new, true);`,
			shardTableRef(c), pkArgs, c.MaxNodes, c.Column.Name)
	default: // MAX
		return fmt.Sprintf(`INSERT INTO %s VALUES (%s, floor(random() * %d)::int, %s_new);`,
			shardTableRef(c), pkArgs, c.MaxNodes, c.Column.Name)
	}
}

func shardInsertPadding(c Spec, structure model.Structure, count int) string {
	pkArgs := c.pkArgsCSV("_new")
	if count <= 0 {
		return ""
	}
	switch structure {
	case model.TopK:
		return fmt.Sprintf(`INSERT INTO %s SELECT %s, floor(random() * %d)::int, '{}' FROM generate_series(1, %d);`,
			shardTableRef(c), pkArgs, c.MaxNodes, count)
	case model.Serial:
		return fmt.Sprintf(`INSERT INTO %s SELECT %s, floor(random() * %d)::int, 0, true FROM generate_series(1, %d);`,
			shardTableRef(c), pkArgs, c.MaxNodes, count)
	case model.NTopK:
		nullPayloads := strings.Repeat("NULL, ", len(c.Payload))
		return fmt.Sprintf(`INSERT INTO %s SELECT %s, floor(random() * %d)::int, %s0 FROM generate_series(1, %d);`,
			shardTableRef(c), pkArgs, c.MaxNodes, nullPayloads, count)
	default: // MAX
		return fmt.Sprintf(`INSERT INTO %s SELECT %s, floor(random() * %d)::int, %d FROM generate_series(1, %d);`,
			shardTableRef(c), pkArgs, c.MaxNodes, minInt32, count)
	}
}

// InsertProcDDL emits insert_T(all columns new…), the function the INSTEAD OF
// INSERT rule forwards to.
func (t TableSpec) InsertProcDDL() string {
	notMRV := t.notMRVCols()
	params := sqlident.TypedList(notMRV, "_new")
	for _, c := range t.Columns {
		if params != "" {
			params += ", "
		}
		params += c.Column.Name + "_new " + c.Column.Type
		if len(c.Payload) > 0 {
			params += ", " + sqlident.TypedList(c.Payload, "_new")
		}
	}

	pkPred := sqlident.PKPredicate(t.PK, "_new")
	insertOrig := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s);`,
		t.origTable(), strings.Join(sqlident.Names(notMRV), ", "), sqlident.List(notMRV, "", "_new"))

	// spec.md's MAX section: insert_T returns the number of real-value shard
	// rows it inserted (padding rows are not counted), update_T the number of
	// shard rows its write helpers updated.
	isMax := t.Structure == model.Max

	var shardInserts []string
	for _, c := range t.Columns {
		count := paddingCount(t.InitialNodes, c.K) - 1
		stmt := shardInsertForNewValue(c, t.Structure)
		if isMax {
			stmt += "\n  GET DIAGNOSTICS d = ROW_COUNT;\n  total := total + d;"
		}
		shardInserts = append(shardInserts, stmt)
		if pad := shardInsertPadding(c, t.Structure, count); pad != "" {
			shardInserts = append(shardInserts, pad)
		}
	}

	// spec.md §4.E: "if the pk does not already exist in T_orig (or when k = 1
	// for NTOPK)", for k=1 NTOPK the shard table holds exactly one row per pk:
	// so every insert_T call is logically a fresh pk and always writes T_orig.
	kIsOne := t.Structure == model.NTopK && len(t.Columns) > 0 && t.Columns[0].K == 1

	var body strings.Builder
	body.WriteString("DECLARE\n  exists_already boolean;\n")
	if isMax {
		body.WriteString("  d integer;\n  total integer := 0;\n")
	}
	body.WriteString("BEGIN\n")
	if kIsOne {
		body.WriteString("  exists_already := false;\n\n")
	} else {
		body.WriteString(fmt.Sprintf("  SELECT EXISTS(SELECT 1 FROM %s WHERE %s) INTO exists_already;\n\n", t.origTable(), pkPred))
	}
	body.WriteString("  IF NOT exists_already THEN\n")
	body.WriteString("    " + insertOrig + "\n  END IF;\n\n")
	for _, ins := range shardInserts {
		body.WriteString("  " + ins + "\n")
	}
	if isMax {
		body.WriteString("  RETURN total;\n")
	}
	body.WriteString("END;")

	returns := "void"
	if isMax {
		returns = "integer"
	}
	return createFunction(t.Table+"_insert", params, returns, body.String(), "plpgsql")
}

// UpdateProcDDL emits update_T(all new, all old): invokes the write helper
// per MRV column and column-targeted updates regular columns that changed.
func (t TableSpec) UpdateProcDDL() string {
	notMRV := t.notMRVCols()
	var paramParts []string
	paramParts = append(paramParts, sqlident.TypedList(notMRV, "_new"), sqlident.TypedList(notMRV, "_old"))
	for _, c := range t.Columns {
		paramParts = append(paramParts, c.Column.Name+"_new "+c.Column.Type)
		if len(c.Payload) > 0 {
			paramParts = append(paramParts, sqlident.TypedList(c.Payload, "_new"))
		}
	}
	params := strings.Join(paramParts, ", ")

	pkPred := sqlident.PKPredicate(t.PK, "_old")
	isMax := t.Structure == model.Max

	var body strings.Builder
	if isMax {
		body.WriteString("DECLARE\n  total integer := 0;\nBEGIN\n")
	} else {
		body.WriteString("BEGIN\n")
	}
	for _, c := range t.Regular {
		body.WriteString(fmt.Sprintf("  IF %s_new IS DISTINCT FROM %s_old THEN\n", c.Name, c.Name))
		body.WriteString(fmt.Sprintf("    UPDATE %s SET %s = %s_new WHERE %s;\n", t.origTable(), c.Name, c.Name, pkPred))
		body.WriteString("  END IF;\n")
	}
	for _, c := range t.Columns {
		writeCall := ""
		switch t.Structure {
		case model.Max:
			writeCall = fmt.Sprintf("total := total + %s(%s, floor(random() * %d)::int, %s_new);",
				sqlident.Quote(c.FuncName("max")), c.pkArgsCSV("_new"), c.MaxNodes, c.Column.Name)
		case model.TopK:
			writeCall = fmt.Sprintf("PERFORM %s(%s, floor(random() * %d)::int, %s_new);",
				sqlident.Quote(c.FuncName("topK")), c.pkArgsCSV("_new"), c.MaxNodes, c.Column.Name)
		case model.NTopK:
			payloadArgs := ""
			if len(c.Payload) > 0 {
				payloadArgs = ", " + sqlident.List(c.Payload, "", "_new")
			}
			writeCall = fmt.Sprintf("PERFORM %s(%s, floor(random() * %d)::int, %s_new%s);",
				sqlident.Quote(c.FuncName("topk_insert")), c.pkArgsCSV("_new"), c.MaxNodes, c.Column.Name, payloadArgs)
		case model.Serial:
			writeCall = fmt.Sprintf("-- %s is consumed via %s(pk), not via update_T", c.Column.Name, c.ShardTable())
		}
		body.WriteString("  " + writeCall + "\n")
	}
	if isMax {
		body.WriteString("  RETURN total;\n")
	}
	body.WriteString("END;")

	returns := "void"
	if isMax {
		returns = "integer"
	}
	return createFunction(t.Table+"_update", params, returns, body.String(), "plpgsql")
}

// DeleteProcDDL emits delete_T(pk old…): removes the T_orig row and every
// shard row for that pk.
func (t TableSpec) DeleteProcDDL() string {
	params := sqlident.TypedList(t.PK, "_old")
	pkPred := sqlident.PKPredicate(t.PK, "_old")

	var body strings.Builder
	body.WriteString("BEGIN\n")
	body.WriteString(fmt.Sprintf("  DELETE FROM %s WHERE %s;\n", t.origTable(), pkPred))
	for _, c := range t.Columns {
		body.WriteString(fmt.Sprintf("  DELETE FROM %s WHERE %s;\n", shardTableRef(c), pkPred))
	}
	body.WriteString("END;")

	return createFunction(t.Table+"_delete", params, "void", body.String(), "plpgsql")
}
