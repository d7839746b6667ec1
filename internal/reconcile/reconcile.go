// Package reconcile matches the records of one dataset against another.
//
// Every source record is compared with the reference records whose amount
// agrees (after sign normalization) and whose date falls in the window. When
// that pass finds anything, candidates are narrowed to the equivalent
// account and handed to the disambiguation resolver. Unmatched source
// records end Investigate; unmatched reference records keep whatever
// classification they had, so a caller may run the reverse pass.
package reconcile

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/cleared-dev/reconcile/internal/accounts"
	"github.com/cleared-dev/reconcile/internal/disambig"
	"github.com/cleared-dev/reconcile/internal/matcher"
	"github.com/cleared-dev/reconcile/internal/model"
)

// Sink persists classifications for one dataset.
type Sink interface {
	PersistClassification(ctx context.Context, key string, class model.Classification, related string) error
}

// MatchFunc is called after each confirmed pair has been classified. An
// error aborts the run.
type MatchFunc func(ctx context.Context, source, match *model.Transaction) error

// Side is one dataset taking part in a run. Sink may be nil.
type Side struct {
	Name    string
	Records []*model.Transaction
	Sink    Sink
}

// Config holds reconciler configuration.
type Config struct {
	Window     matcher.Window
	Source     matcher.Convention
	Reference  matcher.Convention
	ExcludeTag string    // reference records carrying it are never offered
	OnMatch    MatchFunc // optional
}

// Result summarises one run.
type Result struct {
	Links       []model.Link
	Matched     int
	Investigate int
	Asked       int // decisions that needed the human
	Skipped     int // source records already resolved
	WriteErrors []*model.WriteError
	Rejected    []model.Rejected
}

// Reconciler runs cross-set reconciliation.
type Reconciler struct {
	config   Config
	aliases  *accounts.Table
	finder   *matcher.Finder
	resolver *disambig.Resolver
	log      zerolog.Logger
}

// New creates a Reconciler. aliases may be nil.
func New(config Config, aliases *accounts.Table, decider disambig.Decider, log zerolog.Logger) (*Reconciler, error) {
	exclude := matcher.ResolvedExcluded
	if config.ExcludeTag != "" {
		exclude = matcher.SkipTagged(config.ExcludeTag)
	}
	finder, err := matcher.NewFinder(matcher.Config{
		Window:     config.Window,
		Source:     config.Source,
		Comparison: config.Reference,
		Exclude:    exclude,
	})
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}
	return &Reconciler{
		config:   config,
		aliases:  aliases,
		finder:   finder,
		resolver: disambig.NewResolver(decider, log),
		log:      log,
	}, nil
}

// Run classifies source against reference. Records in both sides are updated
// in place.
func (r *Reconciler) Run(ctx context.Context, source, reference Side) (*Result, error) {
	res := &Result{}

	pool := res.identified(r.log, reference)
	for _, src := range r.order(res.identified(r.log, source)) {
		if matcher.ResolvedExcluded(src) || (r.config.ExcludeTag != "" && src.Tags.Has(r.config.ExcludeTag)) {
			res.Skipped++
			continue
		}

		candidates := r.finder.Find(src, pool)
		if len(candidates) > 0 {
			candidates = r.aliases.Filter(src.AccountName, candidates)
		}
		r.log.Debug().Str("record", src.String()).Int("candidates", len(candidates)).Msg("evaluated")

		dec, err := r.resolver.Resolve(ctx, src, candidates)
		if err != nil {
			return res, err
		}
		if dec.Asked {
			res.Asked++
		}

		srcKey := src.MustKey()
		if dec.Outcome != disambig.OutcomeMatched {
			res.Investigate++
			res.persist(ctx, source.Sink, srcKey, model.Investigate, "")
			continue
		}

		match := dec.Match
		matchKey := match.MustKey()
		res.Matched++
		res.Links = append(res.Links, model.Link{SourceKey: srcKey, ComparisonKey: matchKey})
		r.log.Info().Str("source", src.String()).Str("match", match.String()).Msg("matched")

		res.persist(ctx, source.Sink, srcKey, model.Duplicate, matchKey)
		res.persist(ctx, reference.Sink, matchKey, model.Match, srcKey)

		if r.config.OnMatch != nil {
			if err := r.config.OnMatch(ctx, src, match); err != nil {
				return res, fmt.Errorf("reconciling %s with %s: %w", srcKey, matchKey, err)
			}
		}
	}

	for _, we := range res.WriteErrors {
		r.log.Warn().Err(we.Err).Str("record", we.Key).Str("field", we.Field).Msg("write failed")
	}
	return res, nil
}

// order returns the records sorted by account then newest first, leaving the
// caller's slice untouched.
func (r *Reconciler) order(records []*model.Transaction) []*model.Transaction {
	out := make([]*model.Transaction, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		ai, aj := accounts.Normalize(out[i].AccountName), accounts.Normalize(out[j].AccountName)
		if ai != aj {
			return ai < aj
		}
		return out[i].Day().After(out[j].Day())
	})
	return out
}

func (res *Result) persist(ctx context.Context, sink Sink, key string, class model.Classification, related string) {
	if sink == nil {
		return
	}
	if err := sink.PersistClassification(ctx, key, class, related); err != nil {
		res.WriteErrors = append(res.WriteErrors, &model.WriteError{Key: key, Field: "classification", Err: err})
	}
}

// identified returns the records of side that have a key no earlier record
// of side already used. The rest are rejected.
func (res *Result) identified(log zerolog.Logger, side Side) []*model.Transaction {
	out := make([]*model.Transaction, 0, len(side.Records))
	seen := make(map[string]bool, len(side.Records))
	for _, rec := range side.Records {
		key, err := rec.Key()
		if err != nil {
			res.reject(log, side.Name, rec, err)
			continue
		}
		if seen[key] {
			res.reject(log, side.Name, rec, fmt.Errorf("duplicate record key %q", key))
			continue
		}
		seen[key] = true
		out = append(out, rec)
	}
	return out
}

func (res *Result) reject(log zerolog.Logger, dataset string, rec *model.Transaction, err error) {
	log.Warn().Err(err).Str("dataset", dataset).Str("record", rec.String()).Msg("excluding record")
	res.Rejected = append(res.Rejected, model.Rejected{Record: rec, Err: err})
}
