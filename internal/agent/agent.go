// Package agent drives the self-correcting question loop: compile
// instructions, translate, extract, evaluate, and on any failure retry once
// in corrective mode with the failing expression and error fed back. Exactly
// one of a result or an aggregated failure comes out per question.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/tablechat-io/tablechat/internal/dataset"
	"github.com/tablechat-io/tablechat/internal/engine"
	"github.com/tablechat-io/tablechat/internal/metrics"
	"github.com/tablechat-io/tablechat/internal/query"
	"github.com/tablechat-io/tablechat/internal/schema"
	"github.com/tablechat-io/tablechat/internal/session"
	"github.com/tablechat-io/tablechat/internal/translate"
)

// Config holds the agent's collaborators and limits.
type Config struct {
	Logger      *slog.Logger
	Translator  translate.Translator
	MaxAttempts int           // total attempts per question; default 2 (one normal, one corrective)
	RetryDelay  time.Duration // pause between attempts; default 250ms
}

// Agent is the retry controller. Safe for concurrent use across sessions;
// each Ask call is self-contained.
type Agent struct {
	cfg Config
	log *slog.Logger
}

// Outcome is a successful answer: the accepted expression and its result.
type Outcome struct {
	Expression string
	Result     *engine.Result
	Query      *query.Query
	Attempts   int
}

// New creates an agent.
func New(cfg Config) (*Agent, error) {
	if cfg.Translator == nil {
		return nil, fmt.Errorf("translator is required")
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 2
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 250 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Agent{cfg: cfg, log: cfg.Logger}, nil
}

// attempt is the ephemeral record of one translate/extract/evaluate cycle.
type attempt struct {
	index      int
	raw        string
	expression string
	err        error
}

// Ask answers one question against the session's dataset. On failure it
// re-enters translation in corrective mode until the attempt budget is
// spent, then returns an ExhaustedError carrying the last failing
// expression and error text.
func (a *Agent) Ask(ctx context.Context, question string, ds *dataset.Dataset, prof *schema.Profile, history []session.Turn) (*Outcome, error) {
	var last attempt
	attempts := 0

	wait := backoff.WithContext(backoff.NewConstantBackOff(a.cfg.RetryDelay), ctx)

	for i := 1; i <= a.cfg.MaxAttempts; i++ {
		if i > 1 {
			d := wait.NextBackOff()
			if d == backoff.Stop {
				break
			}
			select {
			case <-ctx.Done():
			case <-time.After(d):
			}
			if ctx.Err() != nil {
				last.err = &TranslationError{Err: ctx.Err()}
				break
			}
		}

		attempts = i
		out, err := a.runAttempt(ctx, i, question, ds, prof, history, last)
		if err == nil {
			metrics.QuestionsTotal.WithLabelValues("success").Inc()
			return out, nil
		}

		last = asAttempt(i, err)
		a.log.Info("attempt failed",
			"attempt", i,
			"question", question,
			"expression", last.expression,
			"error", last.err)
	}

	metrics.QuestionsTotal.WithLabelValues("exhausted").Inc()
	return nil, &ExhaustedError{
		Attempts:   attempts,
		Expression: last.expression,
		Err:        last.err,
	}
}

// runAttempt performs one full cycle. The returned error is always one of
// the classified kinds.
func (a *Agent) runAttempt(ctx context.Context, index int, question string, ds *dataset.Dataset, prof *schema.Profile, history []session.Turn, prev attempt) (*Outcome, error) {
	var req translate.Request
	if index == 1 {
		req = translate.Request{
			Instructions: translate.Instructions(prof),
			Question:     question,
			History:      history,
		}
	} else {
		failing := prev.expression
		if failing == "" {
			failing = prev.raw
		}
		instructions, message := translate.Corrective(prof, question, failing, errText(prev.err))
		req = translate.Request{Instructions: instructions, Question: message}
	}

	metrics.AttemptsTotal.Inc()
	start := time.Now()
	raw, err := a.cfg.Translator.Translate(ctx, req)
	metrics.TranslateDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, &TranslationError{Err: err}
	}

	extracted, err := query.Extract(raw)
	if err != nil {
		return nil, &ExtractionError{Raw: raw, Err: err}
	}

	result, err := engine.Evaluate(extracted.Query, ds)
	if err != nil {
		return nil, &EvaluationError{Expression: extracted.Text, Err: err}
	}

	a.log.Info("attempt succeeded", "attempt", index, "expression", extracted.Text)
	return &Outcome{
		Expression: extracted.Text,
		Result:     result,
		Query:      extracted.Query,
		Attempts:   index,
	}, nil
}

// asAttempt classifies a failed cycle for corrective feedback.
func asAttempt(index int, err error) attempt {
	at := attempt{index: index, err: err}

	var te *TranslationError
	var xe *ExtractionError
	var ee *EvaluationError
	switch {
	case errors.As(err, &xe):
		at.raw = xe.Raw
	case errors.As(err, &ee):
		at.expression = ee.Expression
	case errors.As(err, &te):
		// no expression to feed back; corrective mode repeats the question
	}
	return at
}

// errText extracts the message relayed to corrective mode. Evaluation errors
// pass through verbatim.
func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	var ee *EvaluationError
	if errors.As(err, &ee) {
		return ee.Err.Error()
	}
	return err.Error()
}
