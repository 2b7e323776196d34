package translate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablechat-io/tablechat/internal/dataset"
	"github.com/tablechat-io/tablechat/internal/schema"
)

func profileFor(t *testing.T, csv string) *schema.Profile {
	t.Helper()
	ds, err := dataset.Load(strings.NewReader(csv), "test.csv")
	require.NoError(t, err)
	return schema.Build(ds)
}

func TestInstructions(t *testing.T) {
	p := profileFor(t, "name,department,salary\nJohn,Sales,100\n")
	got := Instructions(p)

	assert.Contains(t, got, "SINGLE line")
	assert.Contains(t, got, "TABLE SCHEMA:")
	assert.Contains(t, got, `- "department" (type: string)`)
	assert.Contains(t, got, `- "salary" (type: number)`)

	// A name column exists, so the text-search rule appears.
	assert.Contains(t, got, "TEXT SEARCH RULE")
	assert.Contains(t, got, dataset.CleanNameColumn)

	// The precomputed summary is quoted as the required literal.
	assert.Contains(t, got, "SUMMARY RULE")
	assert.Contains(t, got, "This dataset contains 1 records and 4 columns.")
}

func TestInstructionsWithoutNameColumn(t *testing.T) {
	p := profileFor(t, "city,population\nParis,100\n")
	got := Instructions(p)

	assert.NotContains(t, got, "TEXT SEARCH RULE")
	assert.Contains(t, got, `- "city" (type: string)`)
}

func TestInstructionsDeterministic(t *testing.T) {
	p := profileFor(t, "name,salary\nA,1\n")
	assert.Equal(t, Instructions(p), Instructions(p))
}

func TestCorrective(t *testing.T) {
	p := profileFor(t, "name,salary\nA,1\n")

	instructions, message := Corrective(p, "total salary?", "t.sum(wage)", `unknown column "wage"; dataset has: name, salary, clean_name`)

	assert.Contains(t, instructions, "RETRY MODE")
	assert.Contains(t, instructions, "TABLE SCHEMA:")
	assert.Contains(t, instructions, `- "salary" (type: number)`)

	assert.Contains(t, message, "total salary?")
	assert.Contains(t, message, "t.sum(wage)")
	assert.Contains(t, message, `unknown column "wage"`)
}
