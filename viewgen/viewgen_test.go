package viewgen

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mrvx-tools/mrvxdef/model"
	"github.com/mrvx-tools/mrvxdef/sqlident"
)

func baseTable(structure model.Structure) TableSpec {
	return TableSpec{
		Table:     "sensors",
		Structure: structure,
		PK:        []sqlident.Col{{Name: "id", Type: "integer"}},
		Regular:   []sqlident.Col{{Name: "label", Type: "varchar"}},
		Columns: []ColumnSpec{
			{Name: "temp", Type: "integer", K: 3, MaxNodes: 8},
		},
	}
}

func TestMaxViewDDL(t *testing.T) {
	ddl := baseTable(model.Max).ViewDDL()
	assert.Contains(t, ddl, `CREATE VIEW "sensors"`)
	assert.Contains(t, ddl, "MAX(\"temp\")")
	assert.Contains(t, ddl, `"sensors_temp"`)
}

func TestTopKViewDDL(t *testing.T) {
	ddl := baseTable(model.TopK).ViewDDL()
	assert.Contains(t, ddl, "UNNEST(\"temp\")")
	assert.Contains(t, ddl, "ARRAY_AGG")
}

func TestNTopKViewDDLWindowed(t *testing.T) {
	ddl := baseTable(model.NTopK).ViewDDL()
	assert.Contains(t, ddl, "ROW_NUMBER() OVER")
	assert.Contains(t, ddl, `"rn" <= 3`)
}

func TestNTopKViewDDLSurfacesOrderColumn(t *testing.T) {
	tbl := baseTable(model.NTopK)
	tbl.Order = []sqlident.Col{{Name: "r", Type: "integer"}}
	ddl := tbl.ViewDDL()
	assert.Contains(t, ddl, `PARTITION BY "id" ORDER BY "temp" DESC) AS "r"`)
	assert.Contains(t, ddl, `AND s0."r" <= 3`)
	// the order column must be projected by the view, not just used in the join predicate.
	assert.Contains(t, ddl, `s0."r"`)
	assert.Contains(t, ddl, `ORDER BY o."id", "r" ASC`)
}

func TestNTopKViewDDLKOne(t *testing.T) {
	tbl := baseTable(model.NTopK)
	tbl.Columns[0].K = 1
	ddl := tbl.ViewDDL()
	assert.Contains(t, ddl, "DISTINCT ON")
	assert.NotContains(t, ddl, "ROW_NUMBER")
}

func TestSerialViewDDL(t *testing.T) {
	ddl := baseTable(model.Serial).ViewDDL()
	assert.Contains(t, ddl, `"valid" = true`)
	assert.Contains(t, ddl, "MIN(\"temp\")")
}

func TestRuleDDLs(t *testing.T) {
	rules := baseTable(model.Max).RuleDDLs()
	assert.Len(t, rules, 3)
	assert.Contains(t, rules[0], "ON INSERT TO")
	assert.Contains(t, rules[0], `"sensors_insert"`)
	assert.Contains(t, rules[1], "ON UPDATE TO")
	assert.Contains(t, rules[2], "ON DELETE TO")
	assert.Contains(t, rules[2], "OLD.id::integer")
}

func TestHelperFunctionDDLs(t *testing.T) {
	helpers := HelperFunctionDDLs()
	assert.Len(t, helpers, 2)
	assert.Contains(t, helpers[0], "mrv_size")
	assert.Contains(t, helpers[1], "mrv_total")
}
