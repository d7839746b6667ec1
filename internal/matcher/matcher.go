// Package matcher finds plausible counterparts for a transaction.
//
// A comparison record is a candidate when:
//   - its amount equals the record's amount once both are reduced to
//     magnitude plus direction under their dataset's sign convention
//   - its date lies inside the inclusive window around the record's date
//   - it has not already been resolved (see Config.Exclude)
//
// Account names are not compared here. Callers filter the returned candidates
// with accounts.Table afterwards, skipping that pass when nothing was found.
//
// Example usage:
//
//	f, err := matcher.NewFinder(matcher.Config{
//		Window:     matcher.DefaultWindow(),
//		Source:     matcher.DebitPositive,
//		Comparison: matcher.Typed,
//	})
//	candidates := f.Find(record, comparison)
package matcher

import (
	"github.com/cleared-dev/reconcile/internal/model"
)

// Config holds finder configuration.
type Config struct {
	Window     Window
	Source     Convention // convention of the record being matched
	Comparison Convention // convention of the comparison set

	// Exclude reports records that must never be offered as candidates.
	// Defaults to ResolvedExcluded.
	Exclude func(*model.Transaction) bool
}

// ResolvedExcluded excludes records already paired or marked for deletion.
func ResolvedExcluded(t *model.Transaction) bool {
	return t.Classification == model.Duplicate || t.Classification == model.Match
}

// SkipTagged returns an exclusion that also drops records carrying any of tags.
func SkipTagged(tags ...string) func(*model.Transaction) bool {
	return func(t *model.Transaction) bool {
		return ResolvedExcluded(t) || t.Tags.HasAny(tags...)
	}
}

// Finder finds window candidates for a record.
type Finder struct {
	config Config
}

// NewFinder creates a Finder, rejecting negative windows.
func NewFinder(config Config) (*Finder, error) {
	if err := config.Window.Validate(); err != nil {
		return nil, err
	}
	if config.Exclude == nil {
		config.Exclude = ResolvedExcluded
	}
	return &Finder{config: config}, nil
}

// Window returns the configured window.
func (f *Finder) Window() Window { return f.config.Window }

// Find returns, in comparison-set order, every comparison record matching
// record on amount and date. The record itself is never returned.
func (f *Finder) Find(record *model.Transaction, comparison []*model.Transaction) []*model.Transaction {
	want := Normalize(record, f.config.Source)

	var out []*model.Transaction
	for _, c := range comparison {
		if c == record || f.config.Exclude(c) {
			continue
		}
		if !f.config.Window.Contains(record.Date, c.Date) {
			continue
		}
		if !want.Equal(Normalize(c, f.config.Comparison)) {
			continue
		}
		out = append(out, c)
	}
	return out
}
