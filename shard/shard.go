package shard

import (
	"context"
	"fmt"
	"strings"

	"github.com/mrvx-tools/mrvxdef/catalog"
	"github.com/mrvx-tools/mrvxdef/model"
	"github.com/mrvx-tools/mrvxdef/sqlident"
)

// minInt32 is the MAX structure's padding sentinel (spec.md §4.D).
const minInt32 = -2147483648

// Spec describes one MRV column's shard table: which table/column it belongs
// to, its pk and (NTOPK only) payload columns, and the pool sizing.
type Spec struct {
	Table        string
	Column       catalog.Column
	PK           []sqlident.Col
	Payload      []sqlident.Col
	MaxNodes     int
	InitialNodes int
	K            int
}

// Name is the shard table's name, "table_column" truncated to fit
// NAMEDATALEN (spec.md §3).
func (s Spec) Name() string {
	return sqlident.ShardTableName(s.Table, s.Column.Name)
}

// CreateTableDDL emits the shard table's CREATE TABLE, with the layout
// prescribed in spec.md §3 for the given structure.
func (s Spec) CreateTableDDL(structure model.Structure) string {
	pkCols := append([]sqlident.Col{}, s.PK...)
	var body []string
	for _, c := range pkCols {
		body = append(body, sqlident.Quote(c.Name)+" "+c.Type)
	}
	body = append(body, `"rk" integer`)

	switch structure {
	case model.Max:
		body = append(body, sqlident.Quote(s.Column.Name)+" "+s.Column.Type)
	case model.TopK:
		body = append(body, sqlident.Quote(s.Column.Name)+" "+s.Column.Type+"[]")
	case model.NTopK:
		for _, c := range s.Payload {
			body = append(body, sqlident.Quote(c.Name)+" "+c.Type)
		}
		body = append(body, sqlident.Quote(s.Column.Name)+" "+s.Column.Type)
	case model.Serial:
		body = append(body, sqlident.Quote(s.Column.Name)+" "+s.Column.Type)
		body = append(body, `"valid" boolean NOT NULL DEFAULT true`)
	}

	pkNames := make([]string, 0, len(pkCols)+1)
	for _, c := range pkCols {
		pkNames = append(pkNames, sqlident.Quote(c.Name))
	}
	pkNames = append(pkNames, `"rk"`)

	return fmt.Sprintf("CREATE TABLE %s (\n\t%s,\n\tPRIMARY KEY (%s)\n);",
		sqlident.Quote(s.Name()), strings.Join(body, ",\n\t"), strings.Join(pkNames, ", "))
}

// sourceRow is one row read back from the source/aux table: pk values,
// payload values (NTOPK), and the MRV value, each as a driver-scanned any.
type sourceRow struct {
	pk      []any
	payload []any
	value   any
}

func (s Spec) readSourceRows(ctx context.Context, cat *catalog.Catalog, sourceTable string) ([]sourceRow, error) {
	cols := make([]string, 0, len(s.PK)+len(s.Payload)+1)
	for _, c := range s.PK {
		cols = append(cols, sqlident.Quote(c.Name))
	}
	for _, c := range s.Payload {
		cols = append(cols, sqlident.Quote(c.Name))
	}
	cols = append(cols, sqlident.Quote(s.Column.Name))

	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), sqlident.Quote(sourceTable))
	rows, err := cat.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sourceRow
	for rows.Next() {
		dest := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range dest {
			ptrs[i] = &dest[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		out = append(out, sourceRow{
			pk:      dest[:len(s.PK)],
			payload: dest[len(s.PK) : len(s.PK)+len(s.Payload)],
			value:   dest[len(s.PK)+len(s.Payload)],
		})
	}
	return out, rows.Err()
}

func (s Spec) insertColumns() []string {
	cols := make([]string, 0, len(s.PK)+len(s.Payload)+2)
	for _, c := range s.PK {
		cols = append(cols, sqlident.Quote(c.Name))
	}
	cols = append(cols, `"rk"`)
	for _, c := range s.Payload {
		cols = append(cols, sqlident.Quote(c.Name))
	}
	cols = append(cols, sqlident.Quote(s.Column.Name))
	return cols
}

func placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(parts, ", ")
}

func (s Spec) insertStmt(extraCols ...string) string {
	cols := s.insertColumns()
	cols = append(cols, extraCols...)
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		sqlident.Quote(s.Name()), strings.Join(cols, ", "), placeholders(len(cols)))
}

// PopulateMax implements the MAX slot-assignment rule: initialNodes-1 padding
// rows at minInt32, then one slot holding the real value.
func (s Spec) PopulateMax(ctx context.Context, cat *catalog.Catalog, sourceTable string) error {
	rows, err := s.readSourceRows(ctx, cat, sourceTable)
	if err != nil {
		return err
	}
	stmt := s.insertStmt()
	for _, row := range rows {
		pool := NewPool(s.MaxNodes)
		for i := 0; i < s.InitialNodes-1; i++ {
			rk, err := pool.Draw()
			if err != nil {
				return err
			}
			args := append(append([]any{}, row.pk...), rk, minInt32)
			if err := cat.ExecArgs(ctx, s.Table, stmt, args...); err != nil {
				return err
			}
		}
		rk, err := pool.Draw()
		if err != nil {
			return err
		}
		args := append(append([]any{}, row.pk...), rk, row.value)
		if err := cat.ExecArgs(ctx, s.Table, stmt, args...); err != nil {
			return err
		}
	}
	return nil
}

// PopulateTopK implements the TOPK-specialised rule: initialNodes-1 padding
// rows holding an empty array, then one slot holding a singleton array.
func (s Spec) PopulateTopK(ctx context.Context, cat *catalog.Catalog, sourceTable string) error {
	rows, err := s.readSourceRows(ctx, cat, sourceTable)
	if err != nil {
		return err
	}
	stmt := s.insertStmt()
	for _, row := range rows {
		pool := NewPool(s.MaxNodes)
		for i := 0; i < s.InitialNodes-1; i++ {
			rk, err := pool.Draw()
			if err != nil {
				return err
			}
			args := append(append([]any{}, row.pk...), rk, emptyArrayLiteral())
			if err := cat.ExecArgs(ctx, s.Table, stmt, args...); err != nil {
				return err
			}
		}
		rk, err := pool.Draw()
		if err != nil {
			return err
		}
		args := append(append([]any{}, row.pk...), rk, singletonArrayLiteral(row.value))
		if err := cat.ExecArgs(ctx, s.Table, stmt, args...); err != nil {
			return err
		}
	}
	return nil
}

func emptyArrayLiteral() string          { return "{}" }
func singletonArrayLiteral(v any) string { return fmt.Sprintf("{%v}", v) }

// PopulateNTopK implements the NTOPK rule: one real row per source row, topped
// up with padding rows of (NULL payloads, 0) until each pk has max(initialNodes, k).
func (s Spec) PopulateNTopK(ctx context.Context, cat *catalog.Catalog, sourceTable string) error {
	rows, err := s.readSourceRows(ctx, cat, sourceTable)
	if err != nil {
		return err
	}

	target := s.InitialNodes
	if s.K > target {
		target = s.K
	}

	byPK := map[string][]sourceRow{}
	order := []string{}
	for _, row := range rows {
		key := fmt.Sprint(row.pk...)
		if _, ok := byPK[key]; !ok {
			order = append(order, key)
		}
		byPK[key] = append(byPK[key], row)
	}

	stmt := s.insertStmt()
	for _, key := range order {
		group := byPK[key]
		pool := NewPool(s.MaxNodes)
		for _, row := range group {
			rk, err := pool.Draw()
			if err != nil {
				return err
			}
			args := append(append([]any{}, row.pk...), rk)
			args = append(args, row.payload...)
			args = append(args, row.value)
			if err := cat.ExecArgs(ctx, s.Table, stmt, args...); err != nil {
				return err
			}
		}
		for i := len(group); i < target; i++ {
			rk, err := pool.Draw()
			if err != nil {
				return err
			}
			args := append(append([]any{}, group[0].pk...), rk)
			for range s.Payload {
				args = append(args, nil)
			}
			args = append(args, 0)
			if err := cat.ExecArgs(ctx, s.Table, stmt, args...); err != nil {
				return err
			}
		}
	}
	return nil
}

// PopulateSerial implements the SERIAL rule: draw initialNodes-1 slots and
// insert consecutive counter values starting at the source value.
func (s Spec) PopulateSerial(ctx context.Context, cat *catalog.Catalog, sourceTable string) error {
	rows, err := s.readSourceRows(ctx, cat, sourceTable)
	if err != nil {
		return err
	}
	stmt := s.insertStmt(`"valid"`)
	for _, row := range rows {
		pool := NewPool(s.MaxNodes)
		base, ok := row.value.(int64)
		if !ok {
			base = 0
		}
		for i := 0; i < s.InitialNodes-1; i++ {
			rk, err := pool.Draw()
			if err != nil {
				return err
			}
			args := append(append([]any{}, row.pk...), rk, base+int64(i), true)
			if err := cat.ExecArgs(ctx, s.Table, stmt, args...); err != nil {
				return err
			}
		}
	}
	return nil
}
