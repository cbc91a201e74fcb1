package ddlgen

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mrvx-tools/mrvxdef/sqlident"
)

func TestRenameToAuxDDL(t *testing.T) {
	assert.Equal(t, `ALTER TABLE "sensors" RENAME TO "sensors__aux";`, RenameToAuxDDL("sensors"))
}

func TestRenameToOrigDDL(t *testing.T) {
	assert.Equal(t, `ALTER TABLE "seq" RENAME TO "seq_orig";`, RenameToOrigDDL("seq"))
}

func TestCreateOrigTableDDL(t *testing.T) {
	notMRV := []sqlident.Col{{Name: "id", Type: "integer", Nullable: false}, {Name: "label", Type: "varchar", Nullable: true}}
	pk := []sqlident.Col{{Name: "id", Type: "integer"}}
	ddl := CreateOrigTableDDL("sensors", notMRV, pk)
	assert.Contains(t, ddl, `"sensors_orig"`)
	assert.Contains(t, ddl, `"id" integer NOT NULL`)
	assert.Contains(t, ddl, `"label" varchar`)
	assert.NotContains(t, ddl, `"label" varchar NOT NULL`)
	assert.Contains(t, ddl, `PRIMARY KEY ("id")`)
}

func TestPopulateOrigDDL(t *testing.T) {
	notMRV := []sqlident.Col{{Name: "id", Type: "integer"}, {Name: "label", Type: "varchar"}}
	ddl := PopulateOrigDDL("sensors", notMRV)
	assert.Contains(t, ddl, "SELECT DISTINCT")
	assert.Contains(t, ddl, `FROM "sensors__aux"`)
}

func TestDropAuxTableDDL(t *testing.T) {
	assert.Equal(t, `DROP TABLE "sensors__aux";`, DropAuxTableDDL("sensors"))
}

func TestDropMRVColumnDDL(t *testing.T) {
	assert.Equal(t, `ALTER TABLE "seq_orig" DROP COLUMN "n";`, DropMRVColumnDDL("seq", "n"))
}

func TestRewriteIndexDDLMakesIdempotentAndRetargets(t *testing.T) {
	// index_definitions runs before the source table is renamed aside, so the
	// definition text still names the live table, not its __aux alias.
	in := `CREATE INDEX sensors_label_idx ON sensors USING btree (label)`
	out := RewriteIndexDDL(in, "sensors", nil)
	assert.Contains(t, out, "CREATE INDEX IF NOT EXISTS")
	assert.Contains(t, out, `"sensors_orig_label_idx"`)
	assert.Contains(t, out, `ON "sensors_orig" USING`)
}

func TestRewriteIndexDDLRenamesIndexItself(t *testing.T) {
	in := `CREATE INDEX votes_s_idx ON votes USING btree (s)`
	out := RewriteIndexDDL(in, "votes", nil)
	assert.Contains(t, out, `CREATE INDEX IF NOT EXISTS "votes_orig_s_idx"`)
}

func TestRewriteIndexDDLStripsOrderColumn(t *testing.T) {
	in := `CREATE UNIQUE INDEX votes_idx ON votes USING btree ("r", "id")`
	out := RewriteIndexDDL(in, "votes", []string{"r"})
	assert.NotContains(t, out, `"r"`)
	assert.Contains(t, out, `"id"`)
	assert.Contains(t, out, "CREATE UNIQUE INDEX IF NOT EXISTS")
	assert.Contains(t, out, `"votes_orig_idx"`)
}
