package model

import (
	"slices"
	"strings"
)

// Tags is an unordered set of free-text labels. Comparisons ignore case and
// surrounding whitespace.
type Tags []string

// ParseTags splits a delimited tag list, dropping empties and duplicates.
func ParseTags(s string, sep string) Tags {
	var out Tags
	for _, part := range strings.Split(s, sep) {
		out = out.Add(part)
	}
	return out
}

// Has reports whether name is in the set.
func (t Tags) Has(name string) bool {
	n := normTag(name)
	for _, tag := range t {
		if normTag(tag) == n {
			return true
		}
	}
	return false
}

// HasAny reports whether any of names is in the set.
func (t Tags) HasAny(names ...string) bool {
	for _, n := range names {
		if t.Has(n) {
			return true
		}
	}
	return false
}

// Add returns a copy of the set with name added.
func (t Tags) Add(name string) Tags {
	name = strings.TrimSpace(name)
	out := slices.Clone(t)
	if name == "" || t.Has(name) {
		return out
	}
	return append(out, name)
}

// Remove returns a copy of the set without names.
func (t Tags) Remove(names ...string) Tags {
	var out Tags
	for _, tag := range t {
		drop := false
		for _, n := range names {
			if normTag(tag) == normTag(n) {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, tag)
		}
	}
	return out
}

// Equal reports set equality.
func (t Tags) Equal(other Tags) bool {
	for _, tag := range t {
		if !other.Has(tag) {
			return false
		}
	}
	for _, tag := range other {
		if !t.Has(tag) {
			return false
		}
	}
	return true
}

// Join renders the set sorted and joined with sep.
func (t Tags) Join(sep string) string {
	s := slices.Clone([]string(t))
	slices.Sort(s)
	return strings.Join(s, sep)
}

func normTag(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
