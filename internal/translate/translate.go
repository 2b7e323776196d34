// Package translate is the AI boundary: it compiles the instruction block
// for the language model and calls it to turn a natural-language question
// into one line of query-language code. Nothing in here parses or runs the
// expression; that belongs to query and engine.
package translate

import (
	"context"

	"github.com/tablechat-io/tablechat/internal/session"
)

// Request is one translation call.
type Request struct {
	Instructions string
	Question     string
	History      []session.Turn
}

// Translator turns a question into raw candidate expression text. The
// output may contain markup noise; extraction happens downstream.
type Translator interface {
	Translate(ctx context.Context, req Request) (string, error)
}
