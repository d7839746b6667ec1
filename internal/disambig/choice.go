package disambig

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cleared-dev/reconcile/internal/model"
)

// ErrAmbiguousInput marks an answer that names no single candidate. The
// resolver recovers from it by asking again; callers never see it.
var ErrAmbiguousInput = errors.New("ambiguous input at prompt")

// Request is what the human is shown when a record has several candidates.
type Request struct {
	Source     *model.Transaction
	Candidates []*model.Transaction
	Problem    string // why the previous answer was rejected, empty on first ask
}

// Decider is the human decision interface. Both calls block until answered.
type Decider interface {
	// Choose returns the raw answer: a candidate key, or a "none" answer.
	Choose(ctx context.Context, req Request) (string, error)
	// Text asks a free-text question.
	Text(ctx context.Context, label string) (string, error)
}

// ChoiceKind is the parsed shape of an answer.
type ChoiceKind int

const (
	ChoiceInvalid ChoiceKind = iota
	ChoiceConfirmed
	ChoiceNone
)

// Choice is a parsed answer.
type Choice struct {
	Kind   ChoiceKind
	Record *model.Transaction // set for ChoiceConfirmed
	Err    error              // set for ChoiceInvalid, wraps ErrAmbiguousInput
}

var noneAnswers = map[string]bool{"n": true, "no": true, "none": true}

// ParseChoice interprets an answer against the displayed candidates. A key
// matches a candidate's id or positional index; "n", "no" and "none" mean
// none of them.
func ParseChoice(input string, candidates []*model.Transaction) Choice {
	answer := strings.TrimSpace(input)
	if answer == "" {
		return Choice{Kind: ChoiceInvalid, Err: fmt.Errorf("%w: no answer given", ErrAmbiguousInput)}
	}
	if noneAnswers[strings.ToLower(answer)] {
		return Choice{Kind: ChoiceNone}
	}

	var hit *model.Transaction
	for _, c := range candidates {
		key, err := c.Key()
		if err != nil {
			continue
		}
		if strings.EqualFold(key, answer) {
			if hit != nil && hit != c {
				return Choice{Kind: ChoiceInvalid, Err: fmt.Errorf("%w: %q names more than one record", ErrAmbiguousInput, answer)}
			}
			hit = c
		}
	}
	if hit == nil {
		return Choice{Kind: ChoiceInvalid, Err: fmt.Errorf("%w: %q is not one of %s", ErrAmbiguousInput, answer, keyList(candidates))}
	}
	return Choice{Kind: ChoiceConfirmed, Record: hit}
}

func keyList(candidates []*model.Transaction) string {
	keys := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if k, err := c.Key(); err == nil {
			keys = append(keys, k)
		}
	}
	return strings.Join(keys, ", ")
}
