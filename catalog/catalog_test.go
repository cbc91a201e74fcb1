package catalog

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrvx-tools/mrvxdef/mrverrors"
)

func newMockCatalog(t *testing.T) (*Catalog, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return New(db, "public"), mock, func() { db.Close() }
}

func TestDescribeColumns(t *testing.T) {
	cat, mock, cleanup := newMockCatalog(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"column_name", "data_type", "udt_name", "is_nullable"}).
		AddRow("id", "integer", "int4", "NO").
		AddRow("temp", "smallint", "int2", "YES")
	mock.ExpectQuery("SELECT column_name, data_type, udt_name, is_nullable").
		WithArgs("public", "sensors").
		WillReturnRows(rows)

	cols, err := cat.DescribeColumns(context.Background(), "sensors")
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, Column{Name: "id", Type: "integer", RawType: "int4", Nullable: false}, cols[0])
	assert.Equal(t, Column{Name: "temp", Type: "integer", RawType: "int2", Nullable: true}, cols[1])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDescribeColumnsNoSuchTable(t *testing.T) {
	cat, mock, cleanup := newMockCatalog(t)
	defer cleanup()

	mock.ExpectQuery("SELECT column_name, data_type, udt_name, is_nullable").
		WithArgs("public", "ghost").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "udt_name", "is_nullable"}))

	_, err := cat.DescribeColumns(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, mrverrors.Is(err, mrverrors.NoSuchTable))
}

func TestPrimaryKeyColumns(t *testing.T) {
	cat, mock, cleanup := newMockCatalog(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"attname"}).AddRow("id")
	mock.ExpectQuery("SELECT a.attname").
		WithArgs("public", "sensors").
		WillReturnRows(rows)

	pk, err := cat.PrimaryKeyColumns(context.Background(), "sensors")
	require.NoError(t, err)
	assert.True(t, pk["id"])
	assert.False(t, pk["temp"])
}

func TestIndexDefinitions(t *testing.T) {
	cat, mock, cleanup := newMockCatalog(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"indexname", "indexdef"}).
		AddRow("sensors_temp_idx", `CREATE INDEX sensors_temp_idx ON public.sensors USING btree (temp)`)
	mock.ExpectQuery("WITH exclude_constraints").
		WithArgs("public", "sensors").
		WillReturnRows(rows)

	defs, err := cat.IndexDefinitions(context.Background(), "sensors")
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Contains(t, defs[0], "sensors_temp_idx")
}

func TestExecWrapsFailureWithStatement(t *testing.T) {
	cat, mock, cleanup := newMockCatalog(t)
	defer cleanup()

	mock.ExpectExec("ALTER TABLE sensors").WillReturnError(assert.AnError)

	err := cat.Exec(context.Background(), "sensors", "ALTER TABLE sensors RENAME TO sensors_orig")
	require.Error(t, err)
	assert.True(t, mrverrors.Is(err, mrverrors.DDLError))
	assert.Contains(t, err.Error(), "sensors")
}
