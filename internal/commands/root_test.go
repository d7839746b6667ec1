package commands

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/reconcile/internal/store"
)

func TestParseRange(t *testing.T) {
	r, err := parseRange("2024-03-01", "2024-03-31")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), r.From)
	assert.Equal(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), r.To)

	r, err = parseRange("", "")
	require.NoError(t, err)
	assert.True(t, r.From.IsZero())
	assert.True(t, r.To.IsZero())

	_, err = parseRange("2024-03-31", "2024-03-01")
	assert.Error(t, err)

	_, err = parseRange("", "31/03/2024")
	assert.Error(t, err)
}

func TestWiden(t *testing.T) {
	from := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)

	got := widen(store.DateRange{From: from, To: to}, 1, 7)
	assert.Equal(t, time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), got.From)
	assert.Equal(t, time.Date(2024, 3, 27, 0, 0, 0, 0, time.UTC), got.To)

	open := widen(store.DateRange{}, 1, 7)
	assert.True(t, open.From.IsZero())
	assert.True(t, open.To.IsZero())
}
