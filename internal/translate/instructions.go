package translate

import (
	"fmt"
	"strings"

	"github.com/tablechat-io/tablechat/internal/dataset"
	"github.com/tablechat-io/tablechat/internal/schema"
)

// Instructions builds the normal-mode instruction block: grammar, schema,
// conventions, and the precomputed summary as a required literal answer for
// "describe the dataset" questions. Output is deterministic for a given
// profile.
func Instructions(p *schema.Profile) string {
	var sb strings.Builder

	sb.WriteString(`You are a data analyst. Answer questions about a table named t by replying with a SINGLE line in the query language below.

RULES:
- Reply with exactly one line of query code. No backticks, no language names, no explanations.
- Column names are lower-case and trimmed.

QUERY LANGUAGE:
- Whole table: t
- Filter rows: t.filter(department == "sales" and salary > 50000)
  Operators: == != < <= > >= on numbers; == != contains on text. Combine with and/or; parentheses allowed.
- Pick columns: t.filter(...).project(name, salary)
- First rows only: .limit(n)
- Row count: count(t) or t.filter(...).count()
- Grouped counts: t.groupcount(department)
- Aggregates: t.sum(col), t.mean(col), t.min(col), t.max(col) — also after a filter.
- A quoted string literal is returned verbatim as the answer.

`)

	fmt.Fprintf(&sb, "TABLE SCHEMA:\n%s\n\n", p.SchemaText())

	if hasColumn(p, dataset.CleanNameColumn) {
		fmt.Fprintf(&sb, "TEXT SEARCH RULE: search people by name on the %q column with a lowercase search string.\nExample: t.filter(%s contains \"keyword\")\n\n",
			dataset.CleanNameColumn, dataset.CleanNameColumn)
	}

	fmt.Fprintf(&sb, "SUMMARY RULE: if asked to describe or summarize the dataset, reply with exactly this literal:\n%q\n", p.Summary)

	return sb.String()
}

// Corrective builds the reduced retry-mode instructions plus the message
// carrying the failed expression and the error text. The model has no other
// source of feedback, so both are always present.
func Corrective(p *schema.Profile, question, failedExpr, errText string) (instructions, message string) {
	instructions = fmt.Sprintf(
		"RETRY MODE: your previous query failed. Fix it.\nReply with ONLY the corrected single line of query code.\n\nTABLE SCHEMA:\n%s\n",
		p.SchemaText())

	message = fmt.Sprintf(
		"User question: %s\n\nFailing expression:\n%s\n\nError:\n%s\n\nProvide the corrected one-line query.",
		question, failedExpr, errText)
	return instructions, message
}

func hasColumn(p *schema.Profile, name string) bool {
	for _, c := range p.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}
