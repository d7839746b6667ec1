// Package dedupe finds duplicate transactions inside a single dataset.
//
// Records are split by account (never compared across accounts) and walked
// newest first. Each record is compared with the not-yet-visited, not-deleted
// records of its account that have the same amount and a date no more than
// Lookback days earlier. Every group found is shown to the human, who either
// names a member to delete or says none are duplicates.
//
// The store behind Sink has no delete, so deleting a record means adding the
// duplicate tag; a user removes those records by filtering on the tag. Saying
// none tags the whole group with the not-duplicate marker so later runs do
// not ask again.
package dedupe

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cleared-dev/reconcile/internal/accounts"
	"github.com/cleared-dev/reconcile/internal/disambig"
	"github.com/cleared-dev/reconcile/internal/matcher"
	"github.com/cleared-dev/reconcile/internal/model"
)

// Sink persists tag and text mutations. Each call is committed on its own.
type Sink interface {
	PersistTags(ctx context.Context, key string, tags model.Tags) error
	PersistField(ctx context.Context, key, field, value string) error
}

// Config holds detector configuration.
type Config struct {
	Lookback        int      // days
	NotDuplicateTag string   // written when a group is confirmed unique
	SkipTags        []string // tags meaning a human already confirmed uniqueness
	DuplicateTag    string   // written instead of deleting
	AskEdits        bool     // offer payee/notes edits on non-duplicates
	Convention      matcher.Convention
}

// DefaultConfig mirrors the tags used by earlier runs.
func DefaultConfig() Config {
	return Config{
		Lookback:        7,
		NotDuplicateTag: "Not-Duplicate",
		SkipTags:        []string{"Not-Duplicate", "SkipDupCheck"},
		DuplicateTag:    "Duplicate",
	}
}

// Result summarises one run.
type Result struct {
	Deleted      []string // keys marked for deletion, in decision order
	NotDuplicate []string // keys tagged as confirmed unique
	Groups       int      // groups shown to the human
	WriteErrors  []*model.WriteError
	Rejected     []model.Rejected
}

// Detector runs self-set duplicate detection.
type Detector struct {
	config   Config
	finder   *matcher.Finder
	resolver *disambig.Resolver
	decider  disambig.Decider
	sink     Sink
	log      zerolog.Logger
}

// NewDetector creates a Detector.
func NewDetector(config Config, decider disambig.Decider, sink Sink, log zerolog.Logger) (*Detector, error) {
	if config.NotDuplicateTag == "" || config.DuplicateTag == "" {
		return nil, errors.New("dedupe: not-duplicate and duplicate tags must be set")
	}
	finder, err := matcher.NewFinder(matcher.Config{
		Window:     matcher.Window{Lookback: config.Lookback, Lookahead: 0},
		Source:     config.Convention,
		Comparison: config.Convention,
		// Deletion is tracked per run; a record paired with another dataset
		// can still repeat inside its own.
		Exclude: func(*model.Transaction) bool { return false },
	})
	if err != nil {
		return nil, fmt.Errorf("dedupe: %w", err)
	}
	return &Detector{
		config:   config,
		finder:   finder,
		resolver: disambig.NewResolver(decider, log),
		decider:  decider,
		sink:     sink,
		log:      log,
	}, nil
}

// run is the working state of one Run call.
type run struct {
	*Detector
	result  *Result
	deleted map[*model.Transaction]bool
}

// Run walks records and returns the keys marked for deletion. records are
// updated in place: deleted ones become Duplicate, confirmed unique ones
// NotDuplicate.
func (d *Detector) Run(ctx context.Context, records []*model.Transaction) (*Result, error) {
	r := &run{
		Detector: d,
		result:   &Result{},
		deleted:  make(map[*model.Transaction]bool),
	}

	for _, part := range r.partition(records) {
		if err := r.scan(ctx, part); err != nil {
			return r.result, err
		}
	}
	return r.result, nil
}

// partition groups identifiable records by normalized account, accounts in
// name order, each partition newest first.
func (r *run) partition(records []*model.Transaction) [][]*model.Transaction {
	byAccount := make(map[string][]*model.Transaction)
	seen := make(map[string]bool)
	for _, rec := range records {
		key, err := rec.Key()
		if err != nil {
			r.reject(rec, err)
			continue
		}
		if seen[key] {
			r.reject(rec, fmt.Errorf("duplicate record key %q", key))
			continue
		}
		seen[key] = true
		if rec.Tags.Has(r.config.DuplicateTag) {
			// Marked by an earlier run; treat as already gone.
			rec.Classification = model.Duplicate
			r.deleted[rec] = true
			continue
		}
		acct := accounts.Normalize(rec.AccountName)
		byAccount[acct] = append(byAccount[acct], rec)
	}

	names := make([]string, 0, len(byAccount))
	for name := range byAccount {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([][]*model.Transaction, 0, len(names))
	for _, name := range names {
		part := byAccount[name]
		sort.SliceStable(part, func(i, j int) bool {
			return part[i].Day().After(part[j].Day())
		})
		parts = append(parts, part)
	}
	return parts
}

func (r *run) reject(rec *model.Transaction, err error) {
	r.log.Warn().Err(err).Str("record", rec.String()).Msg("excluding record")
	r.result.Rejected = append(r.result.Rejected, model.Rejected{Record: rec, Err: err})
}

func (r *run) scan(ctx context.Context, part []*model.Transaction) error {
	for i, src := range part {
		if r.deleted[src] {
			continue
		}

		// Only records not yet visited as a source are compared.
		var pool []*model.Transaction
		for _, other := range part[i+1:] {
			if !r.deleted[other] {
				pool = append(pool, other)
			}
		}
		candidates := r.finder.Find(src, pool)
		if len(candidates) == 0 {
			continue
		}

		if src.Tags.HasAny(r.config.SkipTags...) {
			candidates = without(candidates, func(c *model.Transaction) bool {
				return c.Tags.HasAny(r.config.SkipTags...)
			})
			if len(candidates) == 0 {
				r.log.Debug().Str("record", src.String()).Msg("group already confirmed unique")
				continue
			}
		}

		group := append([]*model.Transaction{src}, candidates...)
		if err := r.resolveGroup(ctx, src, group); err != nil {
			return err
		}
	}
	return nil
}

// resolveGroup keeps showing the remaining group until one record is left or
// the human says none are duplicates.
func (r *run) resolveGroup(ctx context.Context, src *model.Transaction, group []*model.Transaction) error {
	r.result.Groups++
	for len(group) > 1 {
		dec, err := r.resolver.Ask(ctx, src, group)
		if err != nil {
			return err
		}
		if dec.Outcome != disambig.OutcomeMatched {
			return r.markUnique(ctx, group)
		}

		chosen := dec.Match
		group = without(group, func(t *model.Transaction) bool { return t == chosen })
		r.markDeleted(ctx, chosen, group[0])
	}
	return nil
}

func (r *run) markDeleted(ctx context.Context, rec, kept *model.Transaction) {
	key := rec.MustKey()
	r.deleted[rec] = true
	rec.Classification = model.Duplicate
	rec.RelatedKey = kept.MustKey()
	r.result.Deleted = append(r.result.Deleted, key)
	r.log.Info().Str("record", rec.String()).Str("kept", rec.RelatedKey).Msg("marked duplicate")

	tags := rec.Tags.Add(r.config.DuplicateTag)
	rec.Tags = tags
	if err := r.sink.PersistTags(ctx, key, tags); err != nil {
		r.writeFailed(key, "tags", err)
	}
}

func (r *run) markUnique(ctx context.Context, group []*model.Transaction) error {
	legacy := make([]string, 0, len(r.config.SkipTags))
	for _, t := range r.config.SkipTags {
		if !strings.EqualFold(t, r.config.NotDuplicateTag) {
			legacy = append(legacy, t)
		}
	}

	for _, rec := range group {
		key := rec.MustKey()
		rec.Classification = model.NotDuplicate
		r.result.NotDuplicate = append(r.result.NotDuplicate, key)

		if r.config.AskEdits {
			if err := r.askEdit(ctx, rec); err != nil {
				return err
			}
		}

		tags := rec.Tags.Remove(legacy...).Add(r.config.NotDuplicateTag)
		if tags.Equal(rec.Tags) {
			continue
		}
		rec.Tags = tags
		if err := r.sink.PersistTags(ctx, key, tags); err != nil {
			r.writeFailed(key, "tags", err)
		}
	}
	return nil
}

func (r *run) askEdit(ctx context.Context, rec *model.Transaction) error {
	key := rec.MustKey()
	answer, err := r.decider.Text(ctx, fmt.Sprintf("Tagging %s as non duplicate. Update Payee or Notes? (p/n/enter for no)", key))
	if err != nil {
		return fmt.Errorf("asking about edits for %s: %w", key, err)
	}

	var field, label string
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "p":
		field, label = model.FieldPayee, "Enter new Payee text"
	case "n":
		field, label = model.FieldNotes, "Enter new Notes text"
	default:
		return nil
	}

	value, err := r.decider.Text(ctx, label)
	if err != nil {
		return fmt.Errorf("asking for %s of %s: %w", field, key, err)
	}
	value = model.CleanText(value)
	if err := rec.SetField(field, value); err != nil {
		return err
	}
	if err := r.sink.PersistField(ctx, key, field, value); err != nil {
		r.writeFailed(key, field, err)
	}
	return nil
}

func (r *run) writeFailed(key, field string, err error) {
	we := &model.WriteError{Key: key, Field: field, Err: err}
	r.log.Warn().Err(err).Str("record", key).Str("field", field).Msg("write failed")
	r.result.WriteErrors = append(r.result.WriteErrors, we)
}

func without(in []*model.Transaction, drop func(*model.Transaction) bool) []*model.Transaction {
	var out []*model.Transaction
	for _, t := range in {
		if !drop(t) {
			out = append(out, t)
		}
	}
	return out
}
