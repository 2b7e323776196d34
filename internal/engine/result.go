// Package engine evaluates compiled query expressions against a dataset.
// Evaluation is strictly read-only: the engine works over row-index views
// and never touches column storage. Every fault (unknown column, type
// mismatch, empty aggregate) is reported as an error whose text is relayed
// verbatim to the translator in corrective mode.
package engine

// ResultKind tags the Result union.
type ResultKind int

const (
	ResultTable ResultKind = iota
	ResultGroups
	ResultScalar
)

// Result is the evaluator's output: exactly one of Table, Groups, or Scalar
// is populated according to Kind.
type Result struct {
	Kind   ResultKind
	Table  *Table
	Groups *Groups
	Scalar *Scalar
}

// Table is a projected slice of the dataset with row order preserved.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Groups is a grouped-count result, ordered by count descending with
// alphabetical tie-break.
type Groups struct {
	Key  string
	Rows []GroupRow
}

// GroupRow is one (value, count) pair.
type GroupRow struct {
	Value string
	Count int
}

// Scalar is a single text or numeric answer.
type Scalar struct {
	Text     string
	Number   float64
	IsNumber bool
}
