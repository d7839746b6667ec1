package reconcile

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/reconcile/internal/accounts"
	"github.com/cleared-dev/reconcile/internal/disambig"
	"github.com/cleared-dev/reconcile/internal/matcher"
	"github.com/cleared-dev/reconcile/internal/model"
)

type scripted struct {
	answers  []string
	texts    []string
	requests []disambig.Request
	labels   []string
}

func (s *scripted) Choose(_ context.Context, req disambig.Request) (string, error) {
	s.requests = append(s.requests, req)
	if len(s.answers) == 0 {
		return "", io.EOF
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	return a, nil
}

func (s *scripted) Text(_ context.Context, label string) (string, error) {
	s.labels = append(s.labels, label)
	if len(s.texts) == 0 {
		return "", io.EOF
	}
	a := s.texts[0]
	s.texts = s.texts[1:]
	return a, nil
}

type classification struct {
	class   model.Classification
	related string
}

type memSink struct {
	classes map[string]classification
	fields  map[string]string
	tags    map[string]model.Tags
	fail    bool
}

func newSink() *memSink {
	return &memSink{
		classes: map[string]classification{},
		fields:  map[string]string{},
		tags:    map[string]model.Tags{},
	}
}

func (m *memSink) PersistClassification(_ context.Context, key string, class model.Classification, related string) error {
	if m.fail {
		return errors.New("read-only")
	}
	m.classes[key] = classification{class, related}
	return nil
}

func (m *memSink) PersistField(_ context.Context, key, field, value string) error {
	if m.fail {
		return errors.New("read-only")
	}
	m.fields[key+"."+field] = value
	return nil
}

func (m *memSink) PersistTags(_ context.Context, key string, tags model.Tags) error {
	if m.fail {
		return errors.New("read-only")
	}
	m.tags[key] = tags
	return nil
}

func rec(id, account, amount string, month time.Month, d int) *model.Transaction {
	return &model.Transaction{
		ID:          id,
		AccountName: account,
		Amount:      decimal.RequireFromString(amount),
		Date:        time.Date(2024, month, d, 0, 0, 0, 0, time.UTC),
	}
}

func positional(i int, account, amount string, d int) *model.Transaction {
	t := rec("", account, amount, time.March, d)
	t.Index = i
	t.HasIndex = true
	return t
}

func chaseAliases() *accounts.Table {
	return accounts.NewTable(map[string][]string{
		"Chase Checking": {"CHK...1234", "Chase Chk"},
	})
}

func mustNew(t *testing.T, cfg Config, aliases *accounts.Table, d disambig.Decider) *Reconciler {
	t.Helper()
	r, err := New(cfg, aliases, d, zerolog.Nop())
	require.NoError(t, err)
	return r
}

func TestNew_InvalidWindow(t *testing.T) {
	_, err := New(Config{Window: matcher.Window{Lookback: -1}}, nil, nil, zerolog.Nop())
	assert.True(t, errors.Is(err, matcher.ErrInvalidWindow))
}

func TestRun_EndToEndAliasScenario(t *testing.T) {
	d := &scripted{}
	srcSink, refSink := newSink(), newSink()
	source := rec("lm-1", "Chase Checking", "100.00", time.March, 10)
	inWindow := positional(0, "CHK...1234", "100.00", 12)
	otherAcct := positional(1, "Savings", "100.00", 9)

	r := mustNew(t, Config{Window: matcher.Window{Lookback: 1, Lookahead: 7}}, chaseAliases(), d)

	res, err := r.Run(context.Background(),
		Side{Name: "lunchmoney", Records: []*model.Transaction{source}, Sink: srcSink},
		Side{Name: "mint", Records: []*model.Transaction{inWindow, otherAcct}, Sink: refSink},
	)
	require.NoError(t, err)
	assert.Empty(t, d.requests, "single candidate needs no human")
	assert.Equal(t, []model.Link{{SourceKey: "lm-1", ComparisonKey: "0"}}, res.Links)
	assert.Equal(t, model.Duplicate, source.Classification)
	assert.Equal(t, "0", source.RelatedKey)
	assert.Equal(t, model.Match, inWindow.Classification)
	assert.Equal(t, "lm-1", inWindow.RelatedKey)
	assert.Equal(t, model.Unclassified, otherAcct.Classification)
	assert.Equal(t, classification{model.Duplicate, "0"}, srcSink.classes["lm-1"])
	assert.Equal(t, classification{model.Match, "lm-1"}, refSink.classes["0"])
	assert.Equal(t, 1, res.Matched)
}

func TestRun_ZeroCandidatesInvestigate(t *testing.T) {
	srcSink := newSink()
	a := rec("a", "Checking", "5", time.March, 10)
	b := rec("b", "Checking", "6", time.March, 10)
	ref := rec("r", "Checking", "5", time.March, 20) // outside lookahead

	res, err := mustNew(t, Config{Window: matcher.DefaultWindow()}, nil, nil).Run(context.Background(),
		Side{Records: []*model.Transaction{a, b}, Sink: srcSink},
		Side{Records: []*model.Transaction{ref}},
	)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Investigate)
	assert.Equal(t, model.Investigate, a.Classification)
	assert.Equal(t, model.Investigate, b.Classification)
	assert.Equal(t, model.Unclassified, ref.Classification, "unmatched reference keeps its state")
	assert.Equal(t, classification{model.Investigate, ""}, srcSink.classes["a"])
}

func TestRun_NoAliasTableIsExactAccountMatch(t *testing.T) {
	a := rec("a", "Chase Checking", "5", time.March, 10)
	ref := rec("r", "CHK...1234", "5", time.March, 10)
	same := rec("s", "  chase checking", "5", time.March, 11)

	_, err := mustNew(t, Config{Window: matcher.DefaultWindow()}, nil, nil).Run(context.Background(),
		Side{Records: []*model.Transaction{a}},
		Side{Records: []*model.Transaction{ref, same}},
	)
	require.NoError(t, err)
	assert.Equal(t, "s", a.RelatedKey)
}

func TestRun_SignConventions(t *testing.T) {
	credit := rec("lm", "Card", "-42.50", time.March, 10)
	debit := rec("bank-debit", "Card", "42.50", time.March, 10)
	debit.Type = "debit"
	creditRef := rec("bank-credit", "Card", "42.50", time.March, 10)
	creditRef.Type = "credit"

	r := mustNew(t, Config{Window: matcher.DefaultWindow(), Source: matcher.DebitPositive, Reference: matcher.Typed}, nil, nil)
	_, err := r.Run(context.Background(),
		Side{Records: []*model.Transaction{credit}},
		Side{Records: []*model.Transaction{debit, creditRef}},
	)
	require.NoError(t, err)
	assert.Equal(t, "bank-credit", credit.RelatedKey)
}

func TestRun_AmbiguousAsksAndLeavesOthersEligible(t *testing.T) {
	d := &scripted{answers: []string{"x", "r2"}}
	first := rec("s1", "Checking", "20", time.March, 10)
	second := rec("s2", "Checking", "20", time.March, 9)
	r1 := rec("r1", "Checking", "20", time.March, 10)
	r2 := rec("r2", "Checking", "20", time.March, 11)

	res, err := mustNew(t, Config{Window: matcher.DefaultWindow()}, nil, d).Run(context.Background(),
		Side{Records: []*model.Transaction{second, first}},
		Side{Records: []*model.Transaction{r1, r2}},
	)
	require.NoError(t, err)

	// s1 is newest so it goes first and is asked; r1 stays free for s2.
	require.Len(t, d.requests, 2)
	assert.Same(t, first, d.requests[0].Source)
	assert.NotEmpty(t, d.requests[1].Problem)
	assert.Equal(t, "r2", first.RelatedKey)
	assert.Equal(t, "r1", second.RelatedKey)
	assert.Equal(t, 1, res.Asked)
	assert.Equal(t, 2, res.Matched)
}

func TestRun_NoneIsInvestigate(t *testing.T) {
	d := &scripted{answers: []string{"none"}}
	src := rec("s", "Checking", "20", time.March, 10)
	r1 := rec("r1", "Checking", "20", time.March, 10)
	r2 := rec("r2", "Checking", "20", time.March, 11)

	res, err := mustNew(t, Config{Window: matcher.DefaultWindow()}, nil, d).Run(context.Background(),
		Side{Records: []*model.Transaction{src}},
		Side{Records: []*model.Transaction{r1, r2}},
	)
	require.NoError(t, err)
	assert.Equal(t, model.Investigate, src.Classification)
	assert.Equal(t, model.Unclassified, r1.Classification)
	assert.Equal(t, 1, res.Investigate)
}

func TestRun_SkipsResolvedAndExcludesMarked(t *testing.T) {
	done := rec("done", "Checking", "1", time.March, 10)
	done.Classification = model.Duplicate
	deleted := rec("del", "Checking", "2", time.March, 10)
	deleted.Tags = model.Tags{"Duplicate"}
	src := rec("s", "Checking", "3", time.March, 10)
	gone := rec("gone", "Checking", "3", time.March, 10)
	gone.Tags = model.Tags{"duplicate"}

	res, err := mustNew(t, Config{Window: matcher.DefaultWindow(), ExcludeTag: "Duplicate"}, nil, nil).Run(context.Background(),
		Side{Records: []*model.Transaction{done, deleted, src}},
		Side{Records: []*model.Transaction{gone}},
	)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, model.Investigate, src.Classification)
}

func TestRun_RejectsRecordsWithoutIdentity(t *testing.T) {
	anon := rec("", "Checking", "3", time.March, 10)
	refAnon := rec("", "Checking", "3", time.March, 10)
	src := rec("s", "Checking", "3", time.March, 10)

	res, err := mustNew(t, Config{Window: matcher.DefaultWindow()}, nil, nil).Run(context.Background(),
		Side{Records: []*model.Transaction{anon, src}},
		Side{Records: []*model.Transaction{refAnon}},
	)
	require.NoError(t, err)
	require.Len(t, res.Rejected, 2)
	for _, rj := range res.Rejected {
		assert.True(t, errors.Is(rj.Err, model.ErrNoStableIdentifier))
	}
	assert.Equal(t, model.Investigate, src.Classification, "unidentifiable record is never matched")
	assert.Equal(t, model.Unclassified, anon.Classification)
}

func TestRun_WriteFailuresDoNotAbort(t *testing.T) {
	sink := newSink()
	sink.fail = true
	a := rec("a", "Checking", "3", time.March, 10)
	b := rec("b", "Checking", "4", time.March, 10)

	res, err := mustNew(t, Config{Window: matcher.DefaultWindow()}, nil, nil).Run(context.Background(),
		Side{Records: []*model.Transaction{a, b}, Sink: sink},
		Side{},
	)
	require.NoError(t, err)
	require.Len(t, res.WriteErrors, 2)
	assert.Equal(t, "classification", res.WriteErrors[0].Field)
	assert.Equal(t, model.Investigate, b.Classification)
}

func TestRun_DeciderErrorAborts(t *testing.T) {
	d := &scripted{}
	src := rec("s", "Checking", "20", time.March, 10)
	r1 := rec("r1", "Checking", "20", time.March, 10)
	r2 := rec("r2", "Checking", "20", time.March, 11)

	_, err := mustNew(t, Config{Window: matcher.DefaultWindow()}, nil, d).Run(context.Background(),
		Side{Records: []*model.Transaction{src}},
		Side{Records: []*model.Transaction{r1, r2}},
	)
	assert.True(t, errors.Is(err, io.EOF))
}

func TestRun_OnMatchCallback(t *testing.T) {
	var pairs [][2]string
	cfg := Config{
		Window: matcher.DefaultWindow(),
		OnMatch: func(_ context.Context, source, match *model.Transaction) error {
			pairs = append(pairs, [2]string{source.MustKey(), match.MustKey()})
			return nil
		},
	}
	src := rec("s", "Checking", "20", time.March, 10)
	ref := rec("r", "Checking", "20", time.March, 12)

	_, err := mustNew(t, cfg, nil, nil).Run(context.Background(),
		Side{Records: []*model.Transaction{src}},
		Side{Records: []*model.Transaction{ref}},
	)
	require.NoError(t, err)
	assert.Equal(t, [][2]string{{"s", "r"}}, pairs)
}

func TestRun_OrderIsAccountThenNewestFirst(t *testing.T) {
	var seen []string
	cfg := Config{
		Window: matcher.DefaultWindow(),
		OnMatch: func(_ context.Context, source, _ *model.Transaction) error {
			seen = append(seen, source.MustKey())
			return nil
		},
	}
	source := []*model.Transaction{
		rec("b-old", "B", "1", time.March, 1),
		rec("a-old", "a", "2", time.March, 1),
		rec("b-new", "B", "3", time.March, 5),
		rec("a-new", "A", "4", time.March, 5),
	}
	var reference []*model.Transaction
	for _, s := range source {
		c := *s
		c.ID = "ref-" + s.ID
		reference = append(reference, &c)
	}

	_, err := mustNew(t, cfg, nil, nil).Run(context.Background(), Side{Records: source}, Side{Records: reference})
	require.NoError(t, err)
	assert.Equal(t, []string{"a-new", "a-old", "b-new", "b-old"}, seen)
	assert.Equal(t, "b-old", source[0].ID, "caller slice untouched")
}

func TestRun_RejectsRepeatedKeys(t *testing.T) {
	d := &scripted{answers: []string{"7"}}
	first := rec("7", "Checking", "25.00", time.March, 11)
	repeat := rec("7", "Checking", "25.00", time.March, 12)
	other := rec("8", "Checking", "25.00", time.March, 13)
	src := rec("s", "Checking", "25.00", time.March, 10)
	srcRepeat := rec("s", "Checking", "9.00", time.March, 10)

	res, err := mustNew(t, Config{Window: matcher.DefaultWindow()}, nil, d).Run(context.Background(),
		Side{Name: "lm", Records: []*model.Transaction{src, srcRepeat}},
		Side{Name: "bank", Records: []*model.Transaction{first, repeat, other}},
	)
	require.NoError(t, err)

	require.Len(t, res.Rejected, 2)
	assert.Same(t, repeat, res.Rejected[0].Record)
	assert.Same(t, srcRepeat, res.Rejected[1].Record)
	assert.Contains(t, res.Rejected[0].Err.Error(), `duplicate record key "7"`)

	require.Len(t, d.requests, 1)
	assert.Len(t, d.requests[0].Candidates, 2)
	assert.Equal(t, model.Match, first.Classification)
	assert.Equal(t, model.Unclassified, repeat.Classification)
	assert.Equal(t, []model.Link{{SourceKey: "s", ComparisonKey: "7"}}, res.Links)
}
