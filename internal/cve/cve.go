package cve

import (
	"regexp"
	"slices"
	"strings"
)

// Pattern matches CVE identifiers. It is case-sensitive.
var Pattern = regexp.MustCompile(`CVE-\d+-\d+`)

// LinkTemplate is the external reference used for every CVE in a filed issue.
const LinkTemplate = "https://access.redhat.com/security/cve/%s"

// Set is a set of CVE identifiers.
type Set map[string]struct{}

// NewSet returns a set holding ids.
func NewSet(ids ...string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Extract returns every CVE identifier found in text. Empty text yields an empty set.
func Extract(text string) Set {
	if text == "" {
		return NewSet()
	}
	return NewSet(Pattern.FindAllString(text, -1)...)
}

func (s Set) Len() int { return len(s) }

func (s Set) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// Add inserts ids into s.
func (s Set) Add(ids ...string) {
	for _, id := range ids {
		s[id] = struct{}{}
	}
}

// Union adds every member of other to s.
func (s Set) Union(other Set) {
	for id := range other {
		s[id] = struct{}{}
	}
}

// Difference returns the members of s that are in none of others.
func (s Set) Difference(others ...Set) Set {
	out := NewSet()
	for id := range s {
		found := false
		for _, o := range others {
			if o.Contains(id) {
				found = true
				break
			}
		}
		if !found {
			out[id] = struct{}{}
		}
	}
	return out
}

// Sorted returns the members in lexicographic order.
func (s Set) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// String joins the sorted members with ", ".
func (s Set) String() string {
	return strings.Join(s.Sorted(), ", ")
}
