package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValid(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string // canonical String() rendering
	}{
		{
			name:  "bare handle",
			input: "t",
			want:  "t",
		},
		{
			name:  "count sugar",
			input: "count(t)",
			want:  "t.count()",
		},
		{
			name:  "count step",
			input: "t.count()",
			want:  "t.count()",
		},
		{
			name:  "filter equality",
			input: `t.filter(department == "Sales")`,
			want:  `t.filter(department == "Sales")`,
		},
		{
			name:  "filter numeric comparison",
			input: "t.filter(salary > 50000)",
			want:  "t.filter(salary > 50000)",
		},
		{
			name:  "negative number",
			input: "t.filter(balance < -3)",
			want:  "t.filter(balance < -3)",
		},
		{
			name:  "contains",
			input: `t.filter(clean_name contains "smith")`,
			want:  `t.filter(clean_name contains "smith")`,
		},
		{
			name:  "and chain",
			input: `t.filter(department == "Sales" and salary > 50000)`,
			want:  `t.filter((department == "Sales" and salary > 50000))`,
		},
		{
			name:  "or with parens",
			input: `t.filter((department == "Sales" or department == "HR") and salary >= 100)`,
			want:  `t.filter(((department == "Sales" or department == "HR") and salary >= 100))`,
		},
		{
			name:  "single quotes accepted",
			input: "t.filter(department == 'Sales')",
			want:  `t.filter(department == "Sales")`,
		},
		{
			name:  "pipeline with project and limit",
			input: `t.filter(salary > 0).project(name, salary).limit(5)`,
			want:  `t.filter(salary > 0).project(name, salary).limit(5)`,
		},
		{
			name:  "groupcount",
			input: "t.groupcount(department)",
			want:  "t.groupcount(department)",
		},
		{
			name:  "aggregate",
			input: "t.mean(salary)",
			want:  "t.mean(salary)",
		},
		{
			name:  "column names lowercased",
			input: "t.max(Salary)",
			want:  "t.max(salary)",
		},
		{
			name:  "literal answer",
			input: `"This dataset contains 3 records and 4 columns."`,
			want:  `"This dataset contains 3 records and 4 columns."`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, q.String())
		})
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"unknown handle", "df.count()"},
		{"unknown step", "t.drop(name)"},
		{"filter without predicate", "t.filter()"},
		{"string with ordering operator", `t.filter(name > "bob")`},
		{"assignment lookalike", "t = 5"},
		{"trailing garbage", "t.count() please"},
		{"limit zero", "t.limit(0)"},
		{"limit negative", "t.limit(-1)"},
		{"unterminated string", `t.filter(name == "bob`},
		{"missing close paren", "t.count("},
		{"steps after terminal", "t.count().count()"},
		{"count sugar wrong handle", "count(df)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			assert.Error(t, err)
		})
	}
}

func TestParseLiteral(t *testing.T) {
	q, err := Parse(`"hello world"`)
	require.NoError(t, err)
	assert.True(t, q.IsLiteral)
	assert.Equal(t, "hello world", q.Literal)
	assert.Empty(t, q.Steps)
}

func TestParseLiteralEscapes(t *testing.T) {
	// The summary literal carries escaped quotes and newlines when the model
	// echoes it back.
	q, err := Parse(`"line one\nTop department: \"Sales\"."`)
	require.NoError(t, err)
	require.True(t, q.IsLiteral)
	assert.Equal(t, "line one\nTop department: \"Sales\".", q.Literal)
}

func TestParseEscapedStringInFilter(t *testing.T) {
	q, err := Parse(`t.filter(title == "\"quoted\"").count()`)
	require.NoError(t, err)
	assert.Len(t, q.Steps, 2)
}

func TestReferencedColumns(t *testing.T) {
	q, err := Parse(`t.filter(department == "Sales" or salary > 100).project(name, salary)`)
	require.NoError(t, err)
	assert.Equal(t, []string{"department", "salary", "name"}, q.ReferencedColumns())
}
