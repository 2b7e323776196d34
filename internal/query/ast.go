// Package query defines the closed expression grammar the translator is
// asked to emit, a parser that compiles one line of it into a validated AST,
// and the extractor that isolates that line from raw model output.
//
// The grammar is deliberately small: a pipeline of read-only steps over the
// dataset handle `t`, a bare length computation, or a quoted literal. There
// is no assignment or mutation surface, so an expression that parses cannot
// modify the dataset.
//
//	t.filter(department == "sales" and salary > 50000).project(name, salary)
//	t.filter(clean_name contains "smith")
//	t.groupcount(department)
//	t.mean(salary)
//	count(t)
//	"This dataset contains 25 records and 4 columns."
package query

import (
	"fmt"
	"strings"
)

// StepOp enumerates pipeline steps.
type StepOp int

const (
	OpFilter StepOp = iota
	OpProject
	OpGroupCount
	OpCount
	OpLimit
	OpSum
	OpMean
	OpMin
	OpMax
)

var stepNames = map[StepOp]string{
	OpFilter:     "filter",
	OpProject:    "project",
	OpGroupCount: "groupcount",
	OpCount:      "count",
	OpLimit:      "limit",
	OpSum:        "sum",
	OpMean:       "mean",
	OpMin:        "min",
	OpMax:        "max",
}

func (op StepOp) String() string { return stepNames[op] }

// IsTerminal reports whether the step ends a pipeline (produces a scalar or
// grouped result rather than another table).
func (op StepOp) IsTerminal() bool {
	switch op {
	case OpGroupCount, OpCount, OpSum, OpMean, OpMin, OpMax:
		return true
	}
	return false
}

// Step is one stage of a pipeline.
type Step struct {
	Op      StepOp
	Pred    Pred     // OpFilter only
	Columns []string // OpProject (one or more), OpGroupCount/aggregates (exactly one)
	N       int      // OpLimit only
}

// Query is a validated expression.
type Query struct {
	IsLiteral bool
	Literal   string // quoted literal answer, unquoted
	Steps     []Step // pipeline over t; empty means the whole table
}

// Pred is a filter predicate node.
type Pred interface {
	isPred()
	String() string
}

// Or is a disjunction of predicates.
type Or struct{ Terms []Pred }

// And is a conjunction of predicates.
type And struct{ Terms []Pred }

// Cmp compares a column against a literal. Op is one of
// ==, !=, <, <=, >, >= or "contains".
type Cmp struct {
	Column string
	Op     string
	Str    string
	Num    float64
	IsNum  bool
}

func (Or) isPred()  {}
func (And) isPred() {}
func (Cmp) isPred() {}

func (p Or) String() string {
	parts := make([]string, len(p.Terms))
	for i, t := range p.Terms {
		parts[i] = t.String()
	}
	return "(" + strings.Join(parts, " or ") + ")"
}

func (p And) String() string {
	parts := make([]string, len(p.Terms))
	for i, t := range p.Terms {
		parts[i] = t.String()
	}
	return "(" + strings.Join(parts, " and ") + ")"
}

func (p Cmp) String() string {
	if p.IsNum {
		return fmt.Sprintf("%s %s %v", p.Column, p.Op, p.Num)
	}
	return fmt.Sprintf("%s %s %q", p.Column, p.Op, p.Str)
}

// String renders the canonical form of the query.
func (q *Query) String() string {
	if q.IsLiteral {
		return fmt.Sprintf("%q", q.Literal)
	}
	var sb strings.Builder
	sb.WriteString("t")
	for _, s := range q.Steps {
		switch s.Op {
		case OpFilter:
			fmt.Fprintf(&sb, ".filter(%s)", s.Pred.String())
		case OpProject:
			fmt.Fprintf(&sb, ".project(%s)", strings.Join(s.Columns, ", "))
		case OpGroupCount, OpSum, OpMean, OpMin, OpMax:
			fmt.Fprintf(&sb, ".%s(%s)", s.Op, s.Columns[0])
		case OpCount:
			sb.WriteString(".count()")
		case OpLimit:
			fmt.Fprintf(&sb, ".limit(%d)", s.N)
		}
	}
	return sb.String()
}

// ReferencedColumns returns every column name the query mentions, in first
// appearance order. The renderer uses this for the zero-row fallback fact.
func (q *Query) ReferencedColumns() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	var walk func(Pred)
	walk = func(p Pred) {
		switch v := p.(type) {
		case Cmp:
			add(v.Column)
		case And:
			for _, t := range v.Terms {
				walk(t)
			}
		case Or:
			for _, t := range v.Terms {
				walk(t)
			}
		}
	}
	for _, s := range q.Steps {
		if s.Pred != nil {
			walk(s.Pred)
		}
		for _, c := range s.Columns {
			add(c)
		}
	}
	return out
}
