package accounts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/reconcile/internal/model"
)

func chaseTable() *Table {
	return NewTable(map[string][]string{
		"Chase Checking": {"CHK...1234", "Chase Chk"},
	})
}

func accts(names ...string) []*model.Transaction {
	out := make([]*model.Transaction, len(names))
	for i, n := range names {
		out[i] = &model.Transaction{ID: n, AccountName: n}
	}
	return out
}

func TestFilter_NoTableExactNormalized(t *testing.T) {
	var table *Table
	got := table.Filter("  Chase Checking ", accts("chase checking", "CHASE CHECKING ", "Chase Chk"))
	require.Len(t, got, 2)
	assert.Equal(t, "chase checking", got[0].ID)
	assert.Equal(t, "CHASE CHECKING ", got[1].ID)
}

func TestFilter_NameNotInTable(t *testing.T) {
	got := chaseTable().Filter("Savings", accts("savings", "CHK...1234"))
	require.Len(t, got, 1)
	assert.Equal(t, "savings", got[0].ID)
}

func TestFilter_CanonicalName(t *testing.T) {
	got := chaseTable().Filter("Chase Checking", accts("CHK...1234", "Savings", "chase checking"))
	require.Len(t, got, 2)
	assert.Equal(t, "CHK...1234", got[0].ID)
	assert.Equal(t, "chase checking", got[1].ID)
}

func TestFilter_AliasSpellingResolvesToCanonical(t *testing.T) {
	// A record spelled like one alias matches a record spelled like another.
	got := chaseTable().Filter("chase chk", accts("CHK...1234"))
	require.Len(t, got, 1)
	assert.Equal(t, "CHK...1234", got[0].ID)
}

func TestFilter_Deterministic(t *testing.T) {
	table := chaseTable()
	candidates := accts("CHK...1234", "Chase Chk", "Savings")
	first := table.Filter("Chase Checking", candidates)
	second := table.Filter("Chase Checking", candidates)
	assert.Equal(t, first, second)
	assert.Len(t, candidates, 3, "Filter must not modify its input")
}

func TestFilter_EmptyCandidates(t *testing.T) {
	assert.Empty(t, chaseTable().Filter("Chase Checking", nil))
}

func TestLoad_Missing(t *testing.T) {
	table, err := Load(filepath.Join(t.TempDir(), "nope.csv"))
	require.NoError(t, err)
	assert.Nil(t, table)
	assert.Equal(t, 0, table.Len())
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	src, err := os.ReadFile("../../testdata/account_name_map.csv")
	require.NoError(t, err)
	path := filepath.Join(dir, "account_name_map.csv")
	require.NoError(t, os.WriteFile(path, src, 0o644))

	table, err := Load(path)
	require.NoError(t, err)
	assert.True(t, table.Equivalent("Savings", "online savings ...9876"))
}
