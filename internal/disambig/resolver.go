// Package disambig reduces a candidate set to a single decision.
//
//   - zero candidates: the source is classified Investigate
//   - one candidate: the pair is linked without asking anyone
//   - several candidates: the human picks one, or none
//
// Answers are parsed into a Choice; an invalid answer is asked again without
// touching any record.
package disambig

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cleared-dev/reconcile/internal/model"
)

// Outcome is the terminal state of one source record.
type Outcome int

const (
	OutcomeInvestigate Outcome = iota
	OutcomeMatched
)

func (o Outcome) String() string {
	if o == OutcomeMatched {
		return "matched"
	}
	return "investigate"
}

// Decision is the result of resolving one source record.
type Decision struct {
	Outcome Outcome
	Match   *model.Transaction // set when Outcome is OutcomeMatched
	Asked   bool               // the human was consulted
}

// Resolver owns the human decision point.
type Resolver struct {
	decider Decider
	log     zerolog.Logger
}

// NewResolver creates a Resolver. decider may be nil when no record can ever
// have more than one candidate; asking a nil decider is an error.
func NewResolver(decider Decider, log zerolog.Logger) *Resolver {
	return &Resolver{decider: decider, log: log}
}

// Resolve decides source against its account-filtered candidates and applies
// the classification: Investigate on no match, Duplicate/Match plus a
// bidirectional link on a match.
func (r *Resolver) Resolve(ctx context.Context, source *model.Transaction, candidates []*model.Transaction) (Decision, error) {
	var d Decision
	switch len(candidates) {
	case 0:
		d = Decision{Outcome: OutcomeInvestigate}
	case 1:
		d = Decision{Outcome: OutcomeMatched, Match: candidates[0]}
	default:
		var err error
		d, err = r.Ask(ctx, source, candidates)
		if err != nil {
			return Decision{}, err
		}
	}

	if d.Outcome == OutcomeMatched {
		Link(source, d.Match)
	} else {
		source.Classification = model.Investigate
		source.RelatedKey = ""
	}
	return d, nil
}

// Ask puts the candidates in front of the human until a valid answer comes
// back. It does not classify anything.
func (r *Resolver) Ask(ctx context.Context, source *model.Transaction, candidates []*model.Transaction) (Decision, error) {
	if r.decider == nil {
		return Decision{}, fmt.Errorf("record %s has %d candidates and no decider is configured", source, len(candidates))
	}

	req := Request{Source: source, Candidates: candidates}
	for {
		if err := ctx.Err(); err != nil {
			return Decision{}, err
		}
		answer, err := r.decider.Choose(ctx, req)
		if err != nil {
			return Decision{}, fmt.Errorf("asking about record %s: %w", source, err)
		}

		choice := ParseChoice(answer, candidates)
		switch choice.Kind {
		case ChoiceConfirmed:
			return Decision{Outcome: OutcomeMatched, Match: choice.Record, Asked: true}, nil
		case ChoiceNone:
			return Decision{Outcome: OutcomeInvestigate, Asked: true}, nil
		default:
			r.log.Debug().Err(choice.Err).Str("answer", answer).Msg("re-asking")
			req.Problem = choice.Err.Error()
		}
	}
}

// Link classifies source as Duplicate and match as its Match, pointing each at
// the other's key.
func Link(source, match *model.Transaction) model.Link {
	sk := source.MustKey()
	mk := match.MustKey()
	source.Classification = model.Duplicate
	source.RelatedKey = mk
	match.Classification = model.Match
	match.RelatedKey = sk
	return model.Link{SourceKey: sk, ComparisonKey: mk}
}
