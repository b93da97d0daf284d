// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package governance

import (
	"slices"
	"strings"
)

// ID is an opaque governance identifier, compared case-sensitively.
type ID string

func (id ID) String() string { return string(id) }

// Set is an unordered collection of distinct ids. The zero value is an
// empty set ready for use.
type Set struct {
	members map[ID]struct{}
}

// NewSet builds a set from ids, dropping duplicates and empty ids.
func NewSet(ids ...ID) Set {
	set := Set{members: make(map[ID]struct{}, len(ids))}
	for _, id := range ids {
		set.Add(id)
	}
	return set
}

// ParseIDs converts raw identifiers, trimming surrounding whitespace.
func ParseIDs(raw []string) []ID {
	ids := make([]ID, 0, len(raw))
	for _, value := range raw {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			ids = append(ids, ID(trimmed))
		}
	}
	return ids
}

// Add inserts id. Empty ids are ignored.
func (s *Set) Add(id ID) {
	if id == "" {
		return
	}
	if s.members == nil {
		s.members = make(map[ID]struct{})
	}
	s.members[id] = struct{}{}
}

// Contains reports membership.
func (s Set) Contains(id ID) bool {
	_, ok := s.members[id]
	return ok
}

// Len returns the number of distinct ids.
func (s Set) Len() int { return len(s.members) }

// Empty reports whether the set has no members.
func (s Set) Empty() bool { return len(s.members) == 0 }

// Sorted returns the members in ascending order. The result is never
// nil.
func (s Set) Sorted() []ID {
	ids := make([]ID, 0, len(s.members))
	for id := range s.members {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Diff partitions the desired set against the actual set.
type Diff struct {
	// Missing holds desired ids the bridge does not recognize.
	Missing []ID `json:"missing"`

	// Present holds desired ids the bridge recognizes.
	Present []ID `json:"present"`
}

// Compare returns desired − actual and desired ∩ actual. Ids that are
// only in actual are ignored.
func Compare(desired, actual Set) Diff {
	diff := Diff{Missing: []ID{}, Present: []ID{}}
	for _, id := range desired.Sorted() {
		if actual.Contains(id) {
			diff.Present = append(diff.Present, id)
		} else {
			diff.Missing = append(diff.Missing, id)
		}
	}
	return diff
}

// Covered reports whether a non-empty desired set is entirely present.
// An empty desired set is never covered.
func (d Diff) Covered() bool {
	return len(d.Missing) == 0 && len(d.Present) > 0
}
