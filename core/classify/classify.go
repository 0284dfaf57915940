// Package classify decides whether a cleaned terminal delta deserves
// narration, and whether it is a question the operator should answer.
// The decision itself is delegated to a text-generation service; this
// package owns the instruction protocol and the fail-safe parsing of
// the service's replies.
package classify

import (
	"context"
	_ "embed"
	"strings"

	"github.com/muesli/reflow/truncate"
)

//go:embed filterInstr.tmpl
var SystemPrompt string

//go:embed filterStructInstr.tmpl
var StructuredSystemPrompt string

type Kind string

const (
	KindSkip     Kind = "skip"
	KindQuestion Kind = "question"
	KindSummary  Kind = "summary"
)

// Result is the narration decision for one delta. Text is empty for
// skips.
type Result struct {
	Kind Kind
	Text string
}

func (r Result) IsSkip() bool {
	return r.Kind == KindSkip
}

func (r Result) IsQuestion() bool {
	return r.Kind == KindQuestion
}

func Skip() Result {
	return Result{Kind: KindSkip}
}

// NewResult builds a narration decision, collapsing blank narrations
// to a skip and bounding the spoken text.
func NewResult(kind Kind, text string) Result {
	if kind == KindSkip {
		return Skip()
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Skip()
	}
	return Result{Kind: kind, Text: truncate.StringWithTail(text, maxNarrationWidth, "...")}
}

// maxNarrationWidth bounds how much of a narration is worth hearing;
// anything longer is cut with an ellipsis.
const maxNarrationWidth = 500

// Classifier turns a cleaned delta into a narration decision. A
// returned error means the service call failed; callers treat that as
// a skip and keep the pipeline running.
type Classifier interface {
	Classify(ctx context.Context, text string) (Result, error)
}
