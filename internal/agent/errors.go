package agent

import "fmt"

// The attempt loop classifies every failure into one of three kinds, all of
// which feed the corrective retry. Nothing below escapes the attempt
// boundary unclassified.

// TranslationError means the external model was unavailable or errored.
type TranslationError struct {
	Err error
}

func (e *TranslationError) Error() string { return fmt.Sprintf("translation failed: %v", e.Err) }
func (e *TranslationError) Unwrap() error { return e.Err }

// ExtractionError means the model's output contained no recognizable
// expression shape. Raw holds the cleaned-up output, which stands in for
// the failing expression in corrective feedback.
type ExtractionError struct {
	Raw string
	Err error
}

func (e *ExtractionError) Error() string { return fmt.Sprintf("extraction failed: %v", e.Err) }
func (e *ExtractionError) Unwrap() error { return e.Err }

// EvaluationError means the expression failed when run against the dataset.
// Err's text is relayed verbatim to corrective-mode translation.
type EvaluationError struct {
	Expression string
	Err        error
}

func (e *EvaluationError) Error() string { return e.Err.Error() }
func (e *EvaluationError) Unwrap() error { return e.Err }

// ExhaustedError is the aggregated failure returned when the attempt budget
// runs out. It always carries the last failing expression and error so the
// user sees what was attempted.
type ExhaustedError struct {
	Attempts   int
	Expression string
	Err        error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts; last expression %q failed: %v",
		e.Attempts, e.Expression, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }
