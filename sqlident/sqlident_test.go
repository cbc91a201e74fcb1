package sqlident

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuote(t *testing.T) {
	assert.Equal(t, `"id"`, Quote("id"))
	assert.Equal(t, `"weird""name"`, Quote(`weird"name`))
}

func TestQuoteReQuotingEscapesOuterQuotes(t *testing.T) {
	once := Quote("id")
	twice := Quote(once)
	assert.NotEqual(t, once, twice, "quoting an already-quoted string escapes the outer quotes")
	assert.True(t, strings.HasPrefix(twice, `"`) && strings.HasSuffix(twice, `"`))
}

func TestList(t *testing.T) {
	cols := []Col{{Name: "id"}, {Name: "ts"}}
	assert.Equal(t, "id, ts", List(cols, "", ""))
	assert.Equal(t, "NEW.id, NEW.ts", List(cols, "NEW.", ""))
	assert.Equal(t, "id_new, ts_new", List(cols, "", "_new"))
}

func TestTypedList(t *testing.T) {
	cols := []Col{{Name: "id", Type: "integer"}, {Name: "temp", Type: "integer"}}
	assert.Equal(t, "id_new integer, temp_new integer", TypedList(cols, "_new"))
}

func TestCastList(t *testing.T) {
	cols := []Col{{Name: "id", Type: "integer"}}
	assert.Equal(t, "NEW.id::integer", CastList(cols, "NEW."))
}

func TestPKPredicate(t *testing.T) {
	pk := []Col{{Name: "id"}, {Name: "region"}}
	assert.Equal(t, "id = id_new AND region = region_new", PKPredicate(pk, "_new"))
}

func TestPKPredicateQualified(t *testing.T) {
	pk := []Col{{Name: "id"}}
	assert.Equal(t, "og.id = shard.id", PKPredicateQualified(pk, "og", "shard"))
}

func TestTruncateIdentifierNoop(t *testing.T) {
	assert.Equal(t, "sensors_temp", TruncateIdentifier("sensors", "temp"))
}

func TestTruncateIdentifierOverLimit(t *testing.T) {
	table := strings.Repeat("a", 40)
	column := strings.Repeat("b", 40)
	got := TruncateIdentifier(table, column)
	assert.LessOrEqual(t, len(got), 63)
	assert.True(t, strings.HasSuffix(got, strings.Repeat("b", 40)) || len(got) == 63)
}

func TestShardTableName(t *testing.T) {
	assert.Equal(t, "sensors_temp", ShardTableName("sensors", "temp"))
}
