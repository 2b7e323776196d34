package query

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	fenceRe = regexp.MustCompile("```[a-zA-Z]*")

	// Lone language-name tokens models like to prepend to their output.
	langTokenRe = regexp.MustCompile(`(?i)^\s*(python|sql|go|text|query|expression)\s*:?\s*`)
)

// Extracted is the result of isolating an expression from raw model output.
type Extracted struct {
	Text  string // the expression substring as the model wrote it
	Query *Query // its compiled form
}

// Extract strips formatting artifacts from raw translator output and
// isolates the single valid expression it contains.
//
// If the cleaned text is already a well-formed expression it is accepted
// verbatim, literals included. Otherwise the text is scanned for the first
// substring matching an accepted shape: a step pipeline on t or a count(t)
// call. Bare handles and quoted literals are not matched during the scan, as
// both occur naturally in prose.
func Extract(raw string) (*Extracted, error) {
	cleaned := clean(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("translator output was empty after cleanup")
	}

	if q, err := Parse(cleaned); err == nil {
		return &Extracted{Text: cleaned, Query: q}, nil
	}

	if e := scan(cleaned); e != nil {
		return e, nil
	}
	return nil, fmt.Errorf("no recognizable expression in translator output: %.120q", cleaned)
}

func clean(raw string) string {
	s := fenceRe.ReplaceAllString(raw, "")
	s = strings.ReplaceAll(s, "`", "")
	s = strings.TrimSpace(s)
	s = langTokenRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// scan walks the token stream and tries to parse an expression starting at
// each plausible start token, returning the first success.
func scan(cleaned string) *Extracted {
	toks := lex(cleaned)
	for i, t := range toks {
		if t.kind != tokIdent {
			continue
		}
		starts := t.text == "count" || (t.text == "t" && toks[i+1].kind == tokDot)
		if !starts {
			continue
		}
		q, consumed, err := parsePrefix(toks[i:])
		if err != nil || len(q.Steps) == 0 {
			continue
		}
		last := toks[i+consumed-1]
		return &Extracted{
			Text:  cleaned[t.start:last.end],
			Query: q,
		}
	}
	return nil
}
