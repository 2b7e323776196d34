package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// CleanNameColumn is the derived column added when a name-like column exists:
// honorifics stripped, lowercased, trimmed. Query instructions tell the
// translator to run text searches against this column.
const CleanNameColumn = "clean_name"

var (
	honorificRe = regexp.MustCompile(`(?i)^(mr\.?|ms\.?|mrs\.?|dr\.?|miss|m/s)\s*`)
	nonNumericRe = regexp.MustCompile(`[^0-9.]`)

	// Tokens that mark a column as monetary, triggering numeric coercion.
	currencyTokens = []string{"sal", "amount", "price", "cost", "value"}
)

// Load parses CSV bytes into a Dataset. Header names are lower-cased and
// trimmed. After ingestion two derivations run once: a clean_name column when
// a name-like column is present, and numeric coercion of monetary-looking
// string columns (stripping currency symbols and separators per cell).
func Load(r io.Reader, name string) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	headers, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, h := range headers {
		headers[i] = strings.ToLower(strings.TrimSpace(h))
	}

	cells := make([][]string, len(headers))
	rows := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", rows+1, err)
		}
		for i := range headers {
			v := ""
			if i < len(rec) {
				v = strings.TrimSpace(rec[i])
			}
			cells[i] = append(cells[i], v)
		}
		rows++
	}

	ds := &Dataset{
		name:  name,
		index: make(map[string]int, len(headers)+1),
		rows:  rows,
	}
	for i, h := range headers {
		ds.addColumn(buildColumn(h, cells[i]))
	}

	deriveCleanName(ds)
	coerceCurrencyColumns(ds)

	return ds, nil
}

// buildColumn infers the column kind: numeric when every non-empty cell
// parses as a float and at least one cell is non-empty.
func buildColumn(name string, vals []string) Column {
	numeric := false
	nonEmpty := 0
	for _, v := range vals {
		if v == "" {
			continue
		}
		nonEmpty++
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			nonEmpty = -1
			break
		}
	}
	numeric = nonEmpty > 0

	if !numeric {
		return Column{Name: name, Kind: KindString, Strings: vals}
	}

	floats := make([]float64, len(vals))
	valid := make([]bool, len(vals))
	for i, v := range vals {
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			continue
		}
		floats[i] = f
		valid[i] = true
	}
	return Column{Name: name, Kind: KindNumber, Floats: floats, Valid: valid}
}

// deriveCleanName adds the clean_name column from the first column whose
// name contains "name".
func deriveCleanName(ds *Dataset) {
	for _, c := range ds.cols {
		if !strings.Contains(c.Name, "name") || c.Kind != KindString {
			continue
		}
		cleaned := make([]string, len(c.Strings))
		for i, v := range c.Strings {
			v = honorificRe.ReplaceAllString(v, "")
			cleaned[i] = strings.ToLower(strings.TrimSpace(v))
		}
		ds.addColumn(Column{Name: CleanNameColumn, Kind: KindString, Strings: cleaned})
		return
	}
}

// coerceCurrencyColumns converts monetary-looking string columns to numeric
// in place. Cells that still fail to parse after stripping become invalid,
// the same way pandas' errors="coerce" produces NaN.
func coerceCurrencyColumns(ds *Dataset) {
	for i := range ds.cols {
		c := &ds.cols[i]
		if c.Kind != KindString || !IsMonetaryName(c.Name) {
			continue
		}
		floats := make([]float64, len(c.Strings))
		valid := make([]bool, len(c.Strings))
		for j, v := range c.Strings {
			stripped := nonNumericRe.ReplaceAllString(v, "")
			if stripped == "" {
				continue
			}
			f, err := strconv.ParseFloat(stripped, 64)
			if err != nil {
				continue
			}
			floats[j] = f
			valid[j] = true
		}
		c.Kind = KindNumber
		c.Strings = nil
		c.Floats = floats
		c.Valid = valid
	}
}

// IsMonetaryName reports whether a column name carries a currency-like token.
func IsMonetaryName(name string) bool {
	for _, tok := range currencyTokens {
		if strings.Contains(name, tok) {
			return true
		}
	}
	return false
}
