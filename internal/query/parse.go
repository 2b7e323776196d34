package query

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokDot
	tokComma
	tokLParen
	tokRParen
	tokOp    // == != < <= > >=
	tokMinus
	tokIllegal
)

type token struct {
	kind tokenKind
	text string // literal text; for tokString, the unquoted value
	// byte offsets into the lexed input, used by the extractor to slice the
	// original substring back out
	start, end int
}

// lex tokenizes the input. It never fails: runes that fit no token become
// tokIllegal so the extractor can scan past prose surrounding an expression.
func lex(s string) []token {
	var toks []token
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '.':
			toks = append(toks, token{tokDot, ".", i, i + 1})
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ",", i, i + 1})
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "(", i, i + 1})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")", i, i + 1})
			i++
		case c == '-':
			toks = append(toks, token{tokMinus, "-", i, i + 1})
			i++
		case c == '=' || c == '!' || c == '<' || c == '>':
			start := i
			i++
			if i < len(s) && s[i] == '=' {
				i++
			}
			op := s[start:i]
			if op == "=" || op == "!" {
				toks = append(toks, token{tokIllegal, op, start, i})
			} else {
				toks = append(toks, token{tokOp, op, start, i})
			}
		case c == '"' || c == '\'':
			quote := c
			start := i
			i++
			var val []byte
			closed := false
			for i < len(s) {
				if s[i] == '\\' && i+1 < len(s) {
					switch s[i+1] {
					case 'n':
						val = append(val, '\n')
					case 't':
						val = append(val, '\t')
					default:
						val = append(val, s[i+1])
					}
					i += 2
					continue
				}
				if s[i] == quote {
					closed = true
					i++
					break
				}
				val = append(val, s[i])
				i++
			}
			if !closed {
				toks = append(toks, token{tokIllegal, s[start:], start, len(s)})
				break
			}
			toks = append(toks, token{tokString, string(val), start, i})
		case c >= '0' && c <= '9':
			start := i
			for i < len(s) && (s[i] >= '0' && s[i] <= '9' || s[i] == '.') {
				i++
			}
			// A trailing dot belongs to a step call, not the number.
			if s[i-1] == '.' {
				i--
			}
			toks = append(toks, token{tokNumber, s[start:i], start, i})
		case isIdentStart(rune(c)):
			start := i
			for i < len(s) && isIdentRune(rune(s[i])) {
				i++
			}
			toks = append(toks, token{tokIdent, s[start:i], start, i})
		default:
			toks = append(toks, token{tokIllegal, string(c), i, i + 1})
			i++
		}
	}
	toks = append(toks, token{tokEOF, "", len(s), len(s)})
	return toks
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

type parser struct {
	toks []token
	pos  int
}

// Parse compiles a complete expression. Trailing input after a valid
// expression is an error; the extractor uses parsePrefix instead.
func Parse(s string) (*Query, error) {
	toks := lex(s)
	p := &parser{toks: toks}
	q, err := p.parseQuery()
	if err != nil {
		return nil, err
	}
	if p.cur().kind != tokEOF {
		return nil, fmt.Errorf("unexpected input after expression: %q", p.cur().text)
	}
	return q, nil
}

// parsePrefix parses the longest valid expression starting at toks[0] and
// returns how many tokens it consumed.
func parsePrefix(toks []token) (*Query, int, error) {
	p := &parser{toks: toks}
	q, err := p.parseQuery()
	if err != nil {
		return nil, 0, err
	}
	return q, p.pos, nil
}

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) next() token { t := p.toks[p.pos]; p.pos++; return t }

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	t := p.cur()
	if t.kind != kind {
		return t, fmt.Errorf("expected %s, found %q", what, t.text)
	}
	return p.next(), nil
}

func (p *parser) parseQuery() (*Query, error) {
	t := p.cur()
	switch {
	case t.kind == tokString:
		p.next()
		return &Query{IsLiteral: true, Literal: t.text}, nil

	case t.kind == tokIdent && t.text == "count":
		// count(t) sugar for t.count()
		p.next()
		if _, err := p.expect(tokLParen, "'('"); err != nil {
			return nil, err
		}
		h, err := p.expect(tokIdent, "dataset handle")
		if err != nil {
			return nil, err
		}
		if h.text != "t" {
			return nil, fmt.Errorf("unknown handle %q, expected t", h.text)
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return &Query{Steps: []Step{{Op: OpCount}}}, nil

	case t.kind == tokIdent && t.text == "t":
		p.next()
		return p.parsePipeline()
	}
	return nil, fmt.Errorf("expected expression over t, found %q", t.text)
}

func (p *parser) parsePipeline() (*Query, error) {
	q := &Query{}
	for p.cur().kind == tokDot {
		p.next()
		name, err := p.expect(tokIdent, "step name")
		if err != nil {
			return nil, err
		}
		step, err := p.parseStep(name.text)
		if err != nil {
			return nil, err
		}
		q.Steps = append(q.Steps, step)
		if step.Op.IsTerminal() {
			break
		}
	}
	return q, nil
}

func (p *parser) parseStep(name string) (Step, error) {
	if _, err := p.expect(tokLParen, "'('"); err != nil {
		return Step{}, err
	}

	var step Step
	switch name {
	case "filter":
		pred, err := p.parseOr()
		if err != nil {
			return Step{}, err
		}
		step = Step{Op: OpFilter, Pred: pred}

	case "project":
		cols, err := p.parseColumnList()
		if err != nil {
			return Step{}, err
		}
		step = Step{Op: OpProject, Columns: cols}

	case "groupcount", "sum", "mean", "min", "max":
		col, err := p.expect(tokIdent, "column name")
		if err != nil {
			return Step{}, err
		}
		ops := map[string]StepOp{
			"groupcount": OpGroupCount, "sum": OpSum, "mean": OpMean, "min": OpMin, "max": OpMax,
		}
		step = Step{Op: ops[name], Columns: []string{strings.ToLower(col.text)}}

	case "count":
		step = Step{Op: OpCount}

	case "limit":
		n, err := p.expect(tokNumber, "row count")
		if err != nil {
			return Step{}, err
		}
		v, err := strconv.Atoi(n.text)
		if err != nil || v <= 0 {
			return Step{}, fmt.Errorf("limit wants a positive integer, found %q", n.text)
		}
		step = Step{Op: OpLimit, N: v}

	default:
		return Step{}, fmt.Errorf("unknown step %q", name)
	}

	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return Step{}, err
	}
	return step, nil
}

func (p *parser) parseColumnList() ([]string, error) {
	var cols []string
	for {
		c, err := p.expect(tokIdent, "column name")
		if err != nil {
			return nil, err
		}
		cols = append(cols, strings.ToLower(c.text))
		if p.cur().kind != tokComma {
			return cols, nil
		}
		p.next()
	}
}

func (p *parser) parseOr() (Pred, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	terms := []Pred{left}
	for p.cur().kind == tokIdent && p.cur().text == "or" {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		terms = append(terms, right)
	}
	if len(terms) == 1 {
		return left, nil
	}
	return Or{Terms: terms}, nil
}

func (p *parser) parseAnd() (Pred, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	terms := []Pred{left}
	for p.cur().kind == tokIdent && p.cur().text == "and" {
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		terms = append(terms, right)
	}
	if len(terms) == 1 {
		return left, nil
	}
	return And{Terms: terms}, nil
}

func (p *parser) parseTerm() (Pred, error) {
	if p.cur().kind == tokLParen {
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return inner, nil
	}
	return p.parseCmp()
}

func (p *parser) parseCmp() (Pred, error) {
	col, err := p.expect(tokIdent, "column name")
	if err != nil {
		return nil, err
	}

	t := p.cur()
	switch {
	case t.kind == tokIdent && t.text == "contains":
		p.next()
		s, err := p.expect(tokString, "quoted string")
		if err != nil {
			return nil, err
		}
		return Cmp{Column: strings.ToLower(col.text), Op: "contains", Str: s.text}, nil

	case t.kind == tokOp:
		p.next()
		return p.parseCmpValue(strings.ToLower(col.text), t.text)
	}
	return nil, fmt.Errorf("expected comparison operator after %q, found %q", col.text, t.text)
}

func (p *parser) parseCmpValue(col, op string) (Pred, error) {
	neg := false
	if p.cur().kind == tokMinus {
		neg = true
		p.next()
	}
	t := p.cur()
	switch t.kind {
	case tokNumber:
		p.next()
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", t.text)
		}
		if neg {
			f = -f
		}
		return Cmp{Column: col, Op: op, Num: f, IsNum: true}, nil
	case tokString:
		if neg {
			return nil, fmt.Errorf("expected number after '-', found %q", t.text)
		}
		if op != "==" && op != "!=" {
			return nil, fmt.Errorf("operator %s needs a numeric value, found %q", op, t.text)
		}
		p.next()
		return Cmp{Column: col, Op: op, Str: t.text}, nil
	}
	return nil, fmt.Errorf("expected literal after %s, found %q", op, t.text)
}
