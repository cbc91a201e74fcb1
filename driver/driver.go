// Package driver is component G (spec.md §2, §5): composes the Introspector,
// Schema Classifier, DDL Emitter, Shard-Table Builder, Structure Codegen and
// View & Rule Emitter per table inside a single transaction, committed
// atomically at the end of the run. Orchestration shape (open, iterate,
// dry-run vs execute, commit) is grounded on sqldef.go's Run function.
package driver

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/mrvx-tools/mrvxdef/catalog"
	"github.com/mrvx-tools/mrvxdef/classify"
	"github.com/mrvx-tools/mrvxdef/ddlgen"
	"github.com/mrvx-tools/mrvxdef/logging"
	"github.com/mrvx-tools/mrvxdef/model"
	"github.com/mrvx-tools/mrvxdef/mrverrors"
	"github.com/mrvx-tools/mrvxdef/shard"
	"github.com/mrvx-tools/mrvxdef/sqlident"
	"github.com/mrvx-tools/mrvxdef/structure"
	"github.com/mrvx-tools/mrvxdef/util"
	"github.com/mrvx-tools/mrvxdef/viewgen"
)

// Options controls a single run.
type Options struct {
	DryRun  bool
	Verbose bool
}

// Run converts every table in m, inside one transaction per spec.md §5.
// On dry run it prints every statement instead of executing it.
func Run(ctx context.Context, m *model.Model, opts Options, log logging.Logger) error {
	db, err := catalog.Open(ctx, catalog.Config{
		DbName:   m.Database,
		Host:     m.Host,
		Port:     m.Port,
		User:     m.User,
		Password: m.Password,
		Schema:   m.Schema,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(mrverrors.ConnectionError, err.Error())
	}

	cat := catalog.New(tx, m.Schema)

	for _, ddl := range viewgen.HelperFunctionDDLs() {
		if opts.DryRun {
			log.Println(ddl)
			continue
		}
		if err := cat.Exec(ctx, "mrv_helpers", ddl); err != nil {
			_ = tx.Rollback()
			return errors.Wrap(err, "installing mrv_size/mrv_total helpers")
		}
	}

	for _, table := range m.Tables {
		log.Printf("Processing table '%s'\n", table.Name)

		if err := convertTable(ctx, cat, m, table, opts, log); err != nil {
			_ = tx.Rollback()
			return errors.Wrapf(err, "table %q", table.Name)
		}
	}

	if opts.DryRun {
		_ = tx.Rollback()
		log.Println("Done (dry run, no changes committed)")
		return nil
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(mrverrors.DDLError, err.Error())
	}
	log.Println("Done")
	return nil
}

func convertTable(ctx context.Context, cat *catalog.Catalog, m *model.Model, table model.TableSpec, opts Options, log logging.Logger) error {
	savepoint := "sp_" + table.Name
	if err := cat.Exec(ctx, table.Name, fmt.Sprintf("SAVEPOINT %s;", sqlident.Quote(savepoint))); err != nil {
		return err
	}

	if err := doConvertTable(ctx, cat, m, table, opts, log); err != nil {
		_ = cat.Exec(ctx, table.Name, fmt.Sprintf("ROLLBACK TO SAVEPOINT %s;", sqlident.Quote(savepoint)))
		return err
	}

	return cat.Exec(ctx, table.Name, fmt.Sprintf("RELEASE SAVEPOINT %s;", sqlident.Quote(savepoint)))
}

func doConvertTable(ctx context.Context, cat *catalog.Catalog, m *model.Model, table model.TableSpec, opts Options, log logging.Logger) error {
	allColumns, err := cat.DescribeColumns(ctx, table.Name)
	if err != nil {
		return err
	}
	pkNames, err := cat.PrimaryKeyColumns(ctx, table.Name)
	if err != nil {
		return err
	}
	indexDefs, err := cat.IndexDefinitions(ctx, table.Name)
	if err != nil {
		return err
	}

	cls, err := classify.Classify(allColumns, pkNames, table.MRV, table.Payload, table.Order)
	if err != nil {
		return err
	}
	if opts.Verbose {
		log.Println(classify.Dump(cls))
	}

	k := m.KFor(table)
	run := func(stmt string) error {
		if opts.DryRun {
			log.Println(stmt)
			return nil
		}
		return cat.Exec(ctx, table.Name, stmt)
	}

	notMRV := toSqlidentCols(cls.NotMRV())
	pk := toSqlidentCols(cls.PK)
	regular := toSqlidentCols(cls.Regular)
	payload := toSqlidentCols(cls.Payload)
	order := toSqlidentCols(cls.Order)

	// --- C: DDL Emitter ---
	sourceForShards := table.Name
	if m.Structure == model.Serial {
		if err := run(ddlgen.RenameToOrigDDL(table.Name)); err != nil {
			return err
		}
	} else {
		if err := run(ddlgen.RenameToAuxDDL(table.Name)); err != nil {
			return err
		}
		sourceForShards = ddlgen.AuxTableName(table.Name)

		if err := run(ddlgen.CreateOrigTableDDL(table.Name, notMRV, pk)); err != nil {
			return err
		}
		if err := run(ddlgen.PopulateOrigDDL(table.Name, notMRV)); err != nil {
			return err
		}
		for _, idx := range indexDefs {
			if err := run(ddlgen.RewriteIndexDDL(idx, table.Name, table.Order)); err != nil {
				return err
			}
		}
		if err := run(ddlgen.DropAuxTableDDL(table.Name)); err != nil {
			return err
		}
	}

	// --- D: Shard-Table Builder ---
	var columnSpecs []structure.Spec
	var viewColumns []viewgen.ColumnSpec
	for _, mrvCol := range cls.MRV {
		sh := shard.Spec{
			Table:        table.Name,
			Column:       mrvCol,
			PK:           pk,
			Payload:      payload,
			MaxNodes:     m.MaxNodes,
			InitialNodes: m.InitialNodes,
			K:            k,
		}
		if err := run(sh.CreateTableDDL(m.Structure)); err != nil {
			return err
		}

		switch m.Structure {
		case model.Max:
			if !opts.DryRun {
				if err := sh.PopulateMax(ctx, cat, sourceForShards); err != nil {
					return err
				}
			}
		case model.TopK:
			if !opts.DryRun {
				if err := sh.PopulateTopK(ctx, cat, sourceForShards); err != nil {
					return err
				}
			}
		case model.NTopK:
			if !opts.DryRun {
				if err := sh.PopulateNTopK(ctx, cat, sourceForShards); err != nil {
					return err
				}
			}
		case model.Serial:
			if !opts.DryRun {
				if err := sh.PopulateSerial(ctx, cat, sourceForShards); err != nil {
					return err
				}
			}
		}

		columnSpecs = append(columnSpecs, structure.Spec{
			Table:        table.Name,
			Column:       mrvCol,
			PK:           pk,
			Payload:      payload,
			Regular:      regular,
			MaxNodes:     m.MaxNodes,
			InitialNodes: m.InitialNodes,
			K:            k,
		})
		viewColumns = append(viewColumns, viewgen.ColumnSpec{
			Name: mrvCol.Name, Type: mrvCol.Type, Payload: payload, K: k, MaxNodes: m.MaxNodes,
		})
	}

	if m.Structure == model.Serial {
		for _, mrvCol := range cls.MRV {
			if err := run(ddlgen.DropMRVColumnDDL(table.Name, mrvCol.Name)); err != nil {
				return err
			}
		}
	}

	// --- E: Structure Codegen ---
	ts := structure.TableSpec{
		Table:        table.Name,
		Structure:    m.Structure,
		PK:           pk,
		Regular:      regular,
		Columns:      columnSpecs,
		MaxNodes:     m.MaxNodes,
		InitialNodes: m.InitialNodes,
	}
	for _, ddl := range ts.WriteFunctionDDLs() {
		if err := run(ddl); err != nil {
			return err
		}
	}
	for _, ddl := range ts.RefreshFunctionDDLs() {
		if err := run(ddl); err != nil {
			return err
		}
	}
	if err := run(ts.InsertProcDDL()); err != nil {
		return err
	}
	if err := run(ts.UpdateProcDDL()); err != nil {
		return err
	}
	if err := run(ts.DeleteProcDDL()); err != nil {
		return err
	}

	// --- F: View & Rule Emitter ---
	vs := viewgen.TableSpec{
		Table:     table.Name,
		Structure: m.Structure,
		PK:        pk,
		Regular:   regular,
		Columns:   viewColumns,
		Order:     order,
	}
	if err := run(vs.ViewDDL()); err != nil {
		return err
	}
	for _, ddl := range vs.RuleDDLs() {
		if err := run(ddl); err != nil {
			return err
		}
	}
	for _, ddl := range vs.SerialPKViewDDLs() {
		if err := run(ddl); err != nil {
			return err
		}
	}

	if !opts.DryRun {
		var rowCount int64
		row := cat.Query1(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", sqlident.Quote(ddlgen.OrigTableName(table.Name))))
		if err := row.Scan(&rowCount); err == nil {
			log.Printf("table %q: %s rows in %s\n", table.Name, humanize.Comma(rowCount), ddlgen.OrigTableName(table.Name))
		}
	}
	return nil
}

func toSqlidentCols(cols []catalog.Column) []sqlident.Col {
	return util.TransformSlice(cols, func(c catalog.Column) sqlident.Col {
		return sqlident.Col{Name: c.Name, Type: c.Type, Nullable: c.Nullable}
	})
}
