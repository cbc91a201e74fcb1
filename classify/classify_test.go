package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrvx-tools/mrvxdef/catalog"
	"github.com/mrvx-tools/mrvxdef/mrverrors"
)

func col(name string) catalog.Column { return catalog.Column{Name: name, Type: "integer"} }

func TestClassifyMax(t *testing.T) {
	cols := []catalog.Column{col("id"), col("temp")}
	pk := map[string]bool{"id": true}

	c, err := Classify(cols, pk, []string{"temp"}, nil, nil)
	require.NoError(t, err)
	assert.Len(t, c.PK, 1)
	assert.Equal(t, "id", c.PK[0].Name)
	assert.Len(t, c.MRV, 1)
	assert.Equal(t, "temp", c.MRV[0].Name)
	assert.Empty(t, c.Payload)
	assert.Empty(t, c.Order)
}

func TestClassifyNTopKOrderExcludedFromPK(t *testing.T) {
	cols := []catalog.Column{col("id"), col("v"), col("w"), col("r")}
	pk := map[string]bool{"id": true}

	c, err := Classify(cols, pk, []string{"v"}, []string{"w"}, []string{"r"})
	require.NoError(t, err)
	assert.Len(t, c.Order, 1)
	assert.Equal(t, "r", c.Order[0].Name)
	assert.Len(t, c.PK, 1)
}

func TestClassifyNotMRV(t *testing.T) {
	cols := []catalog.Column{col("id"), col("v"), col("label")}
	pk := map[string]bool{"id": true}

	c, err := Classify(cols, pk, []string{"v"}, nil, nil)
	require.NoError(t, err)
	notMRV := c.NotMRV()
	require.Len(t, notMRV, 2)
	assert.ElementsMatch(t, []string{"id", "label"}, []string{notMRV[0].Name, notMRV[1].Name})
}

func TestClassifyRejectsPayloadOverlappingPK(t *testing.T) {
	cols := []catalog.Column{col("id"), col("v")}
	pk := map[string]bool{"id": true}

	_, err := Classify(cols, pk, []string{"v"}, []string{"id"}, nil)
	require.Error(t, err)
	assert.True(t, mrverrors.Is(err, mrverrors.AmbiguousColumnClassification))
}

func TestClassifyRejectsMissingMRVColumn(t *testing.T) {
	cols := []catalog.Column{col("id")}
	pk := map[string]bool{"id": true}

	_, err := Classify(cols, pk, []string{"ghost"}, nil, nil)
	require.Error(t, err)
	assert.True(t, mrverrors.Is(err, mrverrors.NoSuchColumn))
}
