package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tablechat-io/tablechat/internal/dataset"
	"github.com/tablechat-io/tablechat/internal/query"
)

// Evaluate runs a compiled query against the dataset exactly once. Column
// references are validated before any computation so a bad expression fails
// with a precise message instead of a partial result.
func Evaluate(q *query.Query, ds *dataset.Dataset) (*Result, error) {
	if q.IsLiteral {
		return &Result{Kind: ResultScalar, Scalar: &Scalar{Text: q.Literal}}, nil
	}

	if err := validateColumns(q, ds); err != nil {
		return nil, err
	}

	// The working set is a view of row indices; column data is never copied
	// or modified.
	rows := make([]int, ds.NumRows())
	for i := range rows {
		rows[i] = i
	}
	projected := ds.ColumnNames()

	for _, step := range q.Steps {
		switch step.Op {
		case query.OpFilter:
			filtered, err := applyFilter(ds, rows, step.Pred)
			if err != nil {
				return nil, err
			}
			rows = filtered

		case query.OpProject:
			projected = step.Columns

		case query.OpLimit:
			if step.N < len(rows) {
				rows = rows[:step.N]
			}

		case query.OpCount:
			return &Result{Kind: ResultScalar, Scalar: &Scalar{Number: float64(len(rows)), IsNumber: true}}, nil

		case query.OpGroupCount:
			return groupCount(ds, rows, step.Columns[0])

		case query.OpSum, query.OpMean, query.OpMin, query.OpMax:
			return aggregate(ds, rows, step)
		}
	}

	return buildTable(ds, rows, projected), nil
}

// validateColumns checks every referenced column against the dataset.
func validateColumns(q *query.Query, ds *dataset.Dataset) error {
	for _, name := range q.ReferencedColumns() {
		if !ds.HasColumn(name) {
			return fmt.Errorf("unknown column %q; dataset has: %s",
				name, strings.Join(ds.ColumnNames(), ", "))
		}
	}
	return nil
}

func applyFilter(ds *dataset.Dataset, rows []int, pred query.Pred) ([]int, error) {
	out := make([]int, 0, len(rows))
	for _, r := range rows {
		ok, err := evalPred(ds, r, pred)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func evalPred(ds *dataset.Dataset, row int, pred query.Pred) (bool, error) {
	switch p := pred.(type) {
	case query.And:
		for _, t := range p.Terms {
			ok, err := evalPred(ds, row, t)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case query.Or:
		for _, t := range p.Terms {
			ok, err := evalPred(ds, row, t)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case query.Cmp:
		return evalCmp(ds, row, p)
	}
	return false, fmt.Errorf("unsupported predicate %T", pred)
}

func evalCmp(ds *dataset.Dataset, row int, c query.Cmp) (bool, error) {
	col, _ := ds.Column(c.Column)

	if col.Kind == dataset.KindNumber {
		if !c.IsNum {
			return false, fmt.Errorf("column %q is numeric but was compared to the string %q", c.Column, c.Str)
		}
		if !col.Valid[row] {
			return false, nil
		}
		v := col.Floats[row]
		switch c.Op {
		case "==":
			return v == c.Num, nil
		case "!=":
			return v != c.Num, nil
		case "<":
			return v < c.Num, nil
		case "<=":
			return v <= c.Num, nil
		case ">":
			return v > c.Num, nil
		case ">=":
			return v >= c.Num, nil
		}
		return false, fmt.Errorf("unsupported numeric operator %q", c.Op)
	}

	// String column.
	if c.IsNum {
		return false, fmt.Errorf("column %q holds text but was compared to the number %v", c.Column, c.Num)
	}
	v := col.Strings[row]
	switch c.Op {
	case "==":
		return v == c.Str, nil
	case "!=":
		return v != c.Str, nil
	case "contains":
		return strings.Contains(strings.ToLower(v), strings.ToLower(c.Str)), nil
	}
	return false, fmt.Errorf("operator %q is not defined for text column %q", c.Op, c.Column)
}

func groupCount(ds *dataset.Dataset, rows []int, colName string) (*Result, error) {
	col, _ := ds.Column(colName)
	counts := make(map[string]int)
	for _, r := range rows {
		counts[col.Cell(r)]++
	}

	out := make([]GroupRow, 0, len(counts))
	for v, n := range counts {
		out = append(out, GroupRow{Value: v, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})

	return &Result{Kind: ResultGroups, Groups: &Groups{Key: colName, Rows: out}}, nil
}

func aggregate(ds *dataset.Dataset, rows []int, step query.Step) (*Result, error) {
	colName := step.Columns[0]
	col, _ := ds.Column(colName)
	if col.Kind != dataset.KindNumber {
		return nil, fmt.Errorf("cannot compute %s over text column %q", step.Op, colName)
	}

	var sum float64
	n := 0
	var lo, hi float64
	for _, r := range rows {
		if !col.Valid[r] {
			continue
		}
		v := col.Floats[r]
		if n == 0 {
			lo, hi = v, v
		} else {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		sum += v
		n++
	}
	if n == 0 {
		return nil, fmt.Errorf("column %q has no numeric values in the selected rows", colName)
	}

	var v float64
	switch step.Op {
	case query.OpSum:
		v = sum
	case query.OpMean:
		v = sum / float64(n)
	case query.OpMin:
		v = lo
	case query.OpMax:
		v = hi
	}
	return &Result{Kind: ResultScalar, Scalar: &Scalar{Number: v, IsNumber: true}}, nil
}

func buildTable(ds *dataset.Dataset, rows []int, colNames []string) *Result {
	cols := make([]*dataset.Column, len(colNames))
	for i, name := range colNames {
		cols[i], _ = ds.Column(name)
	}

	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		row := make([]string, len(cols))
		for i, c := range cols {
			row[i] = c.Cell(r)
		}
		out = append(out, row)
	}
	return &Result{Kind: ResultTable, Table: &Table{Columns: colNames, Rows: out}}
}

// MaxOf returns the dataset-wide maximum of a numeric column, used by the
// renderer as a fallback fact for zero-row monetary queries.
func MaxOf(ds *dataset.Dataset, colName string) (float64, bool) {
	col, ok := ds.Column(colName)
	if !ok || col.Kind != dataset.KindNumber {
		return 0, false
	}
	var hi float64
	found := false
	for i, v := range col.Floats {
		if !col.Valid[i] {
			continue
		}
		if !found || v > hi {
			hi = v
			found = true
		}
	}
	return hi, found
}
