package driver

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrvx-tools/mrvxdef/catalog"
	"github.com/mrvx-tools/mrvxdef/model"
)

type recordingLogger struct {
	lines []string
}

func (r *recordingLogger) Print(v ...any)   { r.Println(v...) }
func (r *recordingLogger) Println(v ...any) { r.lines = append(r.lines, "") }
func (r *recordingLogger) Printf(format string, v ...any) {
	r.lines = append(r.lines, format)
}

func TestDryRunDoesNotExecuteDDL(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`SAVEPOINT`).WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectQuery(`SELECT column_name, data_type, udt_name, is_nullable`).
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "udt_name", "is_nullable"}).
			AddRow("id", "integer", "int4", "NO").
			AddRow("temp", "integer", "int4", "YES"))
	mock.ExpectQuery(`SELECT a.attname`).
		WillReturnRows(sqlmock.NewRows([]string{"attname"}).AddRow("id"))
	mock.ExpectQuery(`WITH exclude_constraints`).
		WillReturnRows(sqlmock.NewRows([]string{"indexname", "indexdef"}))

	mock.ExpectExec(`RELEASE SAVEPOINT`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	m := &model.Model{
		Database: "testdb", Schema: "public",
		MaxNodes: 8, InitialNodes: 3, Structure: model.Max, K: 5,
		Tables: []model.TableSpec{{Name: "sensors", MRV: []string{"temp"}}},
	}

	// Run() opens its own connection via catalog.Open (sql.Open + Ping), which
	// sqlmock cannot intercept directly, so this test drives convertTable
	// against an already-open mock transaction instead. catalog.Open itself is
	// not exercised by this test.
	tx, err := db.Begin()
	require.NoError(t, err)
	catWithTx := catalog.New(tx, "public")

	log := &recordingLogger{}
	err = convertTable(context.Background(), catWithTx, m, m.Tables[0], Options{DryRun: true}, log)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}
