package prompt

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/reconcile/internal/disambig"
	"github.com/cleared-dev/reconcile/internal/model"
)

func txn(id, payee string) *model.Transaction {
	return &model.Transaction{
		ID:          id,
		Date:        time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.RequireFromString("18.5"),
		Payee:       payee,
		AccountName: "Checking",
		Tags:        model.Tags{"b", "a"},
	}
}

func TestTerminal_Choose(t *testing.T) {
	var out bytes.Buffer
	term := NewTerminal(strings.NewReader("c2\r\n"), &out)
	src := txn("s1", "Cafe")

	answer, err := term.Choose(context.Background(), disambig.Request{
		Source:     src,
		Candidates: []*model.Transaction{src, txn("c2", "Cafe Two")},
	})
	require.NoError(t, err)
	assert.Equal(t, "c2", answer)

	text := out.String()
	assert.Contains(t, text, "Several records match [s1]")
	assert.Contains(t, text, "KEY")
	assert.Contains(t, text, "Cafe Two")
	assert.Contains(t, text, "18.50")
	assert.Contains(t, text, "a,b")
	assert.Contains(t, text, "* ")
	assert.Contains(t, text, "or n for none")
}

func TestTerminal_ChooseShowsProblem(t *testing.T) {
	var out bytes.Buffer
	term := NewTerminal(strings.NewReader("n\n"), &out)

	_, err := term.Choose(context.Background(), disambig.Request{
		Source:     txn("s", ""),
		Candidates: []*model.Transaction{txn("a", ""), txn("b", "")},
		Problem:    `"zz" is not one of a, b`,
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), `"zz" is not one of a, b`)
	assert.NotContains(t, out.String(), "Several records match")
}

func TestTerminal_LastLineWithoutNewline(t *testing.T) {
	term := NewTerminal(strings.NewReader("first\nlast"), io.Discard)
	a, err := term.Text(context.Background(), "one")
	require.NoError(t, err)
	assert.Equal(t, "first", a)

	b, err := term.Text(context.Background(), "two")
	require.NoError(t, err)
	assert.Equal(t, "last", b)

	_, err = term.Text(context.Background(), "three")
	assert.True(t, errors.Is(err, io.EOF))
}

func TestTerminal_TextPrintsLabel(t *testing.T) {
	var out bytes.Buffer
	term := NewTerminal(strings.NewReader("p\n"), &out)
	a, err := term.Text(context.Background(), "Update Payee or Notes?")
	require.NoError(t, err)
	assert.Equal(t, "p", a)
	assert.Equal(t, "Update Payee or Notes?: ", out.String())
}

func TestTerminal_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	term := NewTerminal(strings.NewReader("x\n"), io.Discard)
	_, err := term.Text(ctx, "label")
	assert.True(t, errors.Is(err, context.Canceled))
}
