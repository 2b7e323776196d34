// Package render turns evaluator results into presentation-ready text.
// Every result variant has a defined rendering, including the empty ones.
package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/tablechat-io/tablechat/internal/dataset"
	"github.com/tablechat-io/tablechat/internal/engine"
	"github.com/tablechat-io/tablechat/internal/query"
)

// NoMatchMessage is the fixed rendering for zero-row results.
const NoMatchMessage = "I couldn't find any records that match your query."

// Answer renders a result as plain text with newlines. Tables and grouped
// counts become bordered grids; scalars become a single line. The dataset
// and query are consulted only for the zero-row fallback fact.
func Answer(res *engine.Result, q *query.Query, ds *dataset.Dataset) string {
	switch res.Kind {
	case engine.ResultTable:
		return renderTable(res.Table, q, ds)
	case engine.ResultGroups:
		return renderGroups(res.Groups)
	case engine.ResultScalar:
		return renderScalar(res.Scalar)
	}
	return ""
}

func renderTable(t *engine.Table, q *query.Query, ds *dataset.Dataset) string {
	if len(t.Rows) == 0 {
		msg := NoMatchMessage
		if fact := zeroRowFact(q, ds); fact != "" {
			msg += "\n" + fact
		}
		return msg
	}

	var sb strings.Builder
	w := tablewriter.NewWriter(&sb)
	w.SetAutoWrapText(false)
	w.SetAutoFormatHeaders(false)
	w.SetHeader(t.Columns)
	for _, row := range t.Rows {
		w.Append(row)
	}
	w.Render()
	return strings.TrimRight(sb.String(), "\n")
}

func renderGroups(g *engine.Groups) string {
	var sb strings.Builder
	w := tablewriter.NewWriter(&sb)
	w.SetAutoWrapText(false)
	w.SetAutoFormatHeaders(false)
	w.SetHeader([]string{g.Key, "count"})
	for _, row := range g.Rows {
		w.Append([]string{row.Value, strconv.Itoa(row.Count)})
	}
	w.Render()
	return strings.TrimRight(sb.String(), "\n")
}

func renderScalar(s *engine.Scalar) string {
	if s.IsNumber {
		return dataset.FormatNumber(s.Number)
	}
	return s.Text
}

// zeroRowFact enriches a "no matching records" answer with the dataset-wide
// maximum of the first monetary column the query referenced, when there is
// one. Best-effort only.
func zeroRowFact(q *query.Query, ds *dataset.Dataset) string {
	if q == nil || ds == nil {
		return ""
	}
	for _, name := range q.ReferencedColumns() {
		if !dataset.IsMonetaryName(name) {
			continue
		}
		if hi, ok := engine.MaxOf(ds, name); ok {
			return fmt.Sprintf("For reference, the highest %s in the dataset is %s.",
				name, dataset.FormatNumber(hi))
		}
	}
	return ""
}

// HTML renders a result for the chat UI: grids come back preformatted,
// scalar text gets its newlines normalized to line breaks. Dataset content
// is untrusted, so everything from Answer is escaped before any markup is
// added around it.
func HTML(res *engine.Result, q *query.Query, ds *dataset.Dataset) string {
	text := Escape(Answer(res, q, ds))
	switch res.Kind {
	case engine.ResultTable:
		if len(res.Table.Rows) == 0 {
			return strings.ReplaceAll(text, "\n", "<br>")
		}
		return "<pre>" + text + "</pre>"
	case engine.ResultGroups:
		return "<pre>" + text + "</pre>"
	default:
		return strings.ReplaceAll(text, "\n", "<br>")
	}
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// Escape neutralizes HTML metacharacters in untrusted text.
func Escape(s string) string {
	return htmlEscaper.Replace(s)
}
