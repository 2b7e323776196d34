// Package schema derives a column profile and a short natural-language
// summary from a loaded dataset. The profile is built once per upload and is
// read-only afterwards; the summary is quoted verbatim into the translator
// instructions so "describe the data" questions can be answered without a
// fresh computation.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tablechat-io/tablechat/internal/dataset"
)

// ColumnInfo is one column's name and inferred type.
type ColumnInfo struct {
	Name string
	Kind dataset.Kind
}

// Profile is the schema snapshot for one upload.
type Profile struct {
	Columns []ColumnInfo
	Summary string
}

// Build profiles a dataset. Deterministic: the same dataset always produces
// an identical profile.
func Build(ds *dataset.Dataset) *Profile {
	p := &Profile{}
	for _, name := range ds.ColumnNames() {
		col, _ := ds.Column(name)
		p.Columns = append(p.Columns, ColumnInfo{Name: name, Kind: col.Kind})
	}
	p.Summary = buildSummary(ds)
	return p
}

// SchemaText renders the column list for the translator instructions.
func (p *Profile) SchemaText() string {
	var sb strings.Builder
	for _, c := range p.Columns {
		fmt.Fprintf(&sb, "- %q (type: %s)\n", c.Name, c.Kind)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// buildSummary assembles the dataset summary. The department and salary
// lines are best-effort heuristics; absence of a matching column simply
// omits the line.
func buildSummary(ds *dataset.Dataset) string {
	parts := []string{
		fmt.Sprintf("This dataset contains %d records and %d columns.", ds.NumRows(), ds.NumCols()),
	}

	if col, name := findColumn(ds, "dept"); col != nil && col.Kind == dataset.KindString {
		if top := dominantValue(col); top != "" {
			parts = append(parts, fmt.Sprintf("Top %s: %q.", name, top))
		}
	}

	if col, name := findColumn(ds, "sal"); col != nil && col.Kind == dataset.KindNumber {
		if lo, hi, ok := numericRange(col); ok {
			parts = append(parts, fmt.Sprintf("%s range: %s to %s.",
				capitalize(name), formatThousands(lo), formatThousands(hi)))
		}
	}

	return strings.Join(parts, "\n")
}

// findColumn returns the first column whose name contains the token.
func findColumn(ds *dataset.Dataset, token string) (*dataset.Column, string) {
	for _, name := range ds.ColumnNames() {
		if strings.Contains(name, token) {
			col, _ := ds.Column(name)
			return col, name
		}
	}
	return nil, ""
}

// dominantValue returns the most frequent non-empty value; ties break toward
// the lexicographically smallest value so the summary is stable.
func dominantValue(col *dataset.Column) string {
	counts := make(map[string]int)
	for _, v := range col.Strings {
		if v != "" {
			counts[v]++
		}
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	best := ""
	bestN := 0
	for _, k := range keys {
		if counts[k] > bestN {
			best, bestN = k, counts[k]
		}
	}
	return best
}

func numericRange(col *dataset.Column) (lo, hi float64, ok bool) {
	for i, v := range col.Floats {
		if !col.Valid[i] {
			continue
		}
		if !ok {
			lo, hi, ok = v, v, true
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi, ok
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// formatThousands renders a float with two decimals and comma separators,
// e.g. 1234567.5 → "1,234,567.50".
func formatThousands(f float64) string {
	s := fmt.Sprintf("%.2f", f)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	dot := strings.Index(s, ".")
	intPart, frac := s[:dot], s[dot:]

	var sb strings.Builder
	if neg {
		sb.WriteByte('-')
	}
	for i, d := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(d)
	}
	sb.WriteString(frac)
	return sb.String()
}
