// Package dataset holds the in-memory tabular structure loaded from an
// uploaded file. A Dataset is immutable after load: queries only ever read
// from it, and a re-upload replaces the whole thing.
package dataset

import (
	"fmt"
	"strconv"
)

// Kind is the inferred type of a column.
type Kind int

const (
	KindString Kind = iota
	KindNumber
)

func (k Kind) String() string {
	if k == KindNumber {
		return "number"
	}
	return "string"
}

// Column is a single named, typed column. Exactly one of Strings/Floats is
// populated depending on Kind. For numeric columns, Valid marks cells that
// held a parseable value; unparseable cells are excluded from comparisons
// and aggregates rather than treated as zero.
type Column struct {
	Name    string
	Kind    Kind
	Strings []string
	Floats  []float64
	Valid   []bool
}

// Dataset is an ordered set of columns sharing one row count.
type Dataset struct {
	name  string
	cols  []Column
	index map[string]int
	rows  int
}

// Name returns the source file name the dataset was loaded from.
func (d *Dataset) Name() string { return d.name }

// NumRows returns the row count.
func (d *Dataset) NumRows() int { return d.rows }

// NumCols returns the column count, including derived columns.
func (d *Dataset) NumCols() int { return len(d.cols) }

// ColumnNames returns column names in load order.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.cols))
	for i, c := range d.cols {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by its normalized name.
func (d *Dataset) Column(name string) (*Column, bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return &d.cols[i], true
}

// HasColumn reports whether a column exists.
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.index[name]
	return ok
}

// Cell returns the display value of one cell. Numeric cells that failed
// coercion render as empty strings, matching how they behave in queries.
func (c *Column) Cell(row int) string {
	if c.Kind == KindNumber {
		if !c.Valid[row] {
			return ""
		}
		return FormatNumber(c.Floats[row])
	}
	return c.Strings[row]
}

// FormatNumber renders a float without trailing decimal noise: whole numbers
// print bare, everything else with two decimal places.
func FormatNumber(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return fmt.Sprintf("%.2f", f)
}

func (d *Dataset) addColumn(c Column) {
	d.index[c.Name] = len(d.cols)
	d.cols = append(d.cols, c)
}
