package accounts

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/cleared-dev/reconcile/internal/model"
)

// Table maps canonical account names to the spellings they take in another
// dataset. A nil *Table is valid and means no aliases are known.
type Table struct {
	names     []string            // canonical names as written
	spellings map[string][]string // normalized canonical -> aliases as written
	classes   map[string]map[string]bool
}

// NewTable builds a Table from canonical name -> aliases.
func NewTable(aliases map[string][]string) *Table {
	names := make([]string, 0, len(aliases))
	for name := range aliases {
		names = append(names, name)
	}
	sort.Strings(names)
	return newTable(names, aliases)
}

func newTable(names []string, aliases map[string][]string) *Table {
	t := &Table{
		spellings: make(map[string][]string),
		classes:   make(map[string]map[string]bool),
	}
	for _, name := range names {
		key := Normalize(name)
		if _, seen := t.classes[key]; seen {
			continue
		}
		t.names = append(t.names, strings.TrimSpace(name))
		class := map[string]bool{key: true}
		for _, a := range aliases[name] {
			class[Normalize(a)] = true
			t.spellings[key] = append(t.spellings[key], strings.TrimSpace(a))
		}
		t.classes[key] = class
	}
	return t
}

// Load reads an account name map from path. A missing file yields a nil Table.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening account name map: %w", err)
	}
	defer f.Close()

	t, err := ReadAliases(f)
	if err != nil {
		return nil, fmt.Errorf("reading account name map %s: %w", path, err)
	}
	return t, nil
}

// Normalize trims whitespace and lower-cases an account name.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Len returns the number of canonical accounts.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.names)
}

// Canonical returns the normalized canonical names that name resolves to: the
// name itself when it is a canonical key, otherwise every canonical account that
// lists it as an alias. Empty when the table has no entry for name.
func (t *Table) Canonical(name string) []string {
	if t == nil {
		return nil
	}
	n := Normalize(name)
	if _, ok := t.classes[n]; ok {
		return []string{n}
	}
	var out []string
	for _, canon := range t.names {
		key := Normalize(canon)
		if t.classes[key][n] {
			out = append(out, key)
		}
	}
	return out
}

// Equivalent reports whether other names the same account as name.
func (t *Table) Equivalent(name, other string) bool {
	canon := t.Canonical(name)
	o := Normalize(other)
	if len(canon) == 0 {
		return Normalize(name) == o
	}
	for _, key := range canon {
		if t.classes[key][o] {
			return true
		}
	}
	return false
}

// Filter returns the candidates whose account is equivalent to name.
func (t *Table) Filter(name string, candidates []*model.Transaction) []*model.Transaction {
	var out []*model.Transaction
	for _, c := range candidates {
		if t.Equivalent(name, c.AccountName) {
			out = append(out, c)
		}
	}
	return out
}
