package reconcile

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cleared-dev/reconcile/internal/disambig"
	"github.com/cleared-dev/reconcile/internal/model"
)

// FieldSink persists descriptive fields for one dataset.
type FieldSink interface {
	PersistField(ctx context.Context, key, field, value string) error
	PersistTags(ctx context.Context, key string, tags model.Tags) error
}

// Diff is one descriptive field that differs between a matched pair.
type Diff struct {
	Field     string
	Source    string
	Reference string
}

// Diffs compares payee, category, notes and tags of a matched pair.
func Diffs(source, reference *model.Transaction) []Diff {
	var out []Diff
	for _, field := range model.TextFields {
		s, _ := source.Field(field)
		r, _ := reference.Field(field)
		if model.CleanText(s) != model.CleanText(r) {
			out = append(out, Diff{Field: field, Source: s, Reference: r})
		}
	}
	if !source.Tags.Equal(reference.Tags) {
		out = append(out, Diff{Field: "tags", Source: source.Tags.Join(", "), Reference: reference.Tags.Join(", ")})
	}
	return out
}

// FieldSync asks which side of a matched pair has the right descriptive
// fields and copies them to the other side. "n" keeps the source (the newer
// data), "o" keeps the reference, "s" leaves both alone.
type FieldSync struct {
	decider   disambig.Decider
	source    FieldSink
	reference FieldSink
	log       zerolog.Logger

	Updated  int
	Failures []*model.WriteError
}

// NewFieldSync creates a FieldSync. Either sink may be nil.
func NewFieldSync(decider disambig.Decider, source, reference FieldSink, log zerolog.Logger) *FieldSync {
	return &FieldSync{decider: decider, source: source, reference: reference, log: log}
}

// OnMatch is a MatchFunc.
func (f *FieldSync) OnMatch(ctx context.Context, source, match *model.Transaction) error {
	diffs := Diffs(source, match)
	if len(diffs) == 0 {
		return nil
	}
	if f.decider == nil {
		return fmt.Errorf("fields of %s differ and no decider is configured", source.MustKey())
	}

	label := describe(source, match, diffs)
	for {
		answer, err := f.decider.Text(ctx, label)
		if err != nil {
			return fmt.Errorf("asking which side is right: %w", err)
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "n":
			f.copyFields(ctx, diffs, source, match, f.reference)
			return nil
		case "o":
			f.copyFields(ctx, diffs, match, source, f.source)
			return nil
		case "s":
			return nil
		}
		label = fmt.Sprintf("%q is not one of n, o, s\n%s", answer, describe(source, match, diffs))
	}
}

func (f *FieldSync) copyFields(ctx context.Context, diffs []Diff, from, to *model.Transaction, sink FieldSink) {
	key := to.MustKey()
	for _, d := range diffs {
		if d.Field == "tags" {
			to.Tags = slices.Clone(from.Tags)
			if sink != nil {
				if err := sink.PersistTags(ctx, key, to.Tags); err != nil {
					f.fail(key, d.Field, err)
				}
			}
			continue
		}
		value, _ := from.Field(d.Field)
		_ = to.SetField(d.Field, value)
		if sink != nil {
			if err := sink.PersistField(ctx, key, d.Field, value); err != nil {
				f.fail(key, d.Field, err)
			}
		}
	}
	f.Updated++
	f.log.Info().Str("record", key).Int("fields", len(diffs)).Msg("fields updated")
}

func (f *FieldSync) fail(key, field string, err error) {
	f.log.Warn().Err(err).Str("record", key).Str("field", field).Msg("write failed")
	f.Failures = append(f.Failures, &model.WriteError{Key: key, Field: field, Err: err})
}

func describe(source, match *model.Transaction, diffs []Diff) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Matched %s\n   with %s\n", source, match)
	for _, d := range diffs {
		fmt.Fprintf(&b, "  %-8s new: %q  old: %q\n", d.Field, d.Source, d.Reference)
	}
	b.WriteString("Which is right? (n = new / o = old / s = skip)")
	return b.String()
}
