package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempModel(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "model.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadValidMax(t *testing.T) {
	path := writeTempModel(t, `
database: mydb
host: localhost
port: 5432
user: postgres
password: secret
schema: public
maxNodes: 8
initialNodes: 3
structure: max
tables:
  - name: sensors
    mrv: [temp]
`)
	m, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "mydb", m.Database)
	assert.Equal(t, Max, m.Structure)
	assert.Equal(t, 5, m.K, "K defaults to 5 when unset")
	assert.Equal(t, 8, m.MaxNodes)
	assert.Equal(t, 3, m.InitialNodes)
}

func TestLoadClampsInitialNodesToMaxNodes(t *testing.T) {
	path := writeTempModel(t, `
database: mydb
schema: public
maxNodes: 4
initialNodes: 10
structure: serial
tables:
  - name: seq
    mrv: [n]
`)
	m, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, m.InitialNodes)
}

func TestLoadOverrideInitialNodesClamped(t *testing.T) {
	path := writeTempModel(t, `
database: mydb
schema: public
maxNodes: 8
initialNodes: 3
structure: max
tables:
  - name: sensors
    mrv: [temp]
`)
	override := 100
	m, err := Load(path, &override)
	require.NoError(t, err)
	assert.Equal(t, 8, m.InitialNodes, "override clamps to maxNodes")
}

func TestLoadRejectsMissingStructure(t *testing.T) {
	path := writeTempModel(t, `
database: mydb
schema: public
maxNodes: 8
tables:
  - name: sensors
    mrv: [temp]
`)
	_, err := Load(path, nil)
	require.Error(t, err)
}

func TestLoadRejectsEmptyTables(t *testing.T) {
	path := writeTempModel(t, `
database: mydb
schema: public
maxNodes: 8
structure: max
tables: []
`)
	_, err := Load(path, nil)
	require.Error(t, err)
}

func TestLoadRejectsTableWithoutMRV(t *testing.T) {
	path := writeTempModel(t, `
database: mydb
schema: public
maxNodes: 8
structure: max
tables:
  - name: sensors
    mrv: []
`)
	_, err := Load(path, nil)
	require.Error(t, err)
}

func TestKForOverride(t *testing.T) {
	m := &Model{K: 5}
	assert.Equal(t, 5, m.KFor(TableSpec{Name: "a"}))
	assert.Equal(t, 3, m.KFor(TableSpec{Name: "b", K: 3}))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"), nil)
	require.Error(t, err)
}
