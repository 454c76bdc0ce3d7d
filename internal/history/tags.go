package history

import (
	"sort"
	"time"
)

// TagMatch selects how tags are placed on a file history.
type TagMatch int

const (
	// MatchRevision attaches a tag to the entry with the same revision.
	// Used when tags and file history share revision identifiers (git commits).
	MatchRevision TagMatch = iota
	// MatchDate attaches a tag to the newest entry not newer than the tag.
	// Used when tags name changesets while file history lists file deltas (BitKeeper).
	MatchDate
)

// String returns the match mode name.
func (m TagMatch) String() string {
	if m == MatchDate {
		return "date"
	}
	return "revision"
}

// TagEntry is one tagged revision. A revision may carry several names.
type TagEntry struct {
	Revision string    `json:"revision"`
	Names    []string  `json:"names"`
	Date     time.Time `json:"date"`
}

// TagList is the repository-wide set of tags, in the order the backend listed them.
// A TagList is not modified after construction.
type TagList struct {
	entries []TagEntry
}

// NewTagList builds a tag list from entries.
func NewTagList(entries []TagEntry) *TagList {
	cp := make([]TagEntry, len(entries))
	copy(cp, entries)
	return &TagList{entries: cp}
}

// Len returns the number of tagged revisions.
func (l *TagList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.entries)
}

// Entries returns a copy of the tag entries.
func (l *TagList) Entries() []TagEntry {
	if l == nil {
		return []TagEntry{}
	}
	cp := make([]TagEntry, len(l.entries))
	copy(cp, l.entries)
	return cp
}

// Lookup returns the entry tagging revision.
func (l *TagList) Lookup(revision string) (TagEntry, bool) {
	if l == nil {
		return TagEntry{}, false
	}
	for _, e := range l.entries {
		if e.Revision == revision {
			return e, true
		}
	}
	return TagEntry{}, false
}

// Equal reports whether both lists hold the same entries in the same order.
func (l *TagList) Equal(other *TagList) bool {
	if l.Len() != other.Len() {
		return false
	}
	for i := 0; i < l.Len(); i++ {
		a, b := l.entries[i], other.entries[i]
		if a.Revision != b.Revision || !a.Date.Equal(b.Date) || len(a.Names) != len(b.Names) {
			return false
		}
		for j := range a.Names {
			if a.Names[j] != b.Names[j] {
				return false
			}
		}
	}
	return true
}

// AssignTags records tag names on the entries of h according to match.
// It runs before a history is handed to callers.
func (h *History) AssignTags(tags *TagList, match TagMatch) {
	if h.Len() == 0 || tags.Len() == 0 {
		return
	}

	switch match {
	case MatchDate:
		h.assignByDate(tags)
	default:
		byRev := make(map[string]int, h.Len())
		for i, e := range h.Entries {
			byRev[e.Revision] = i
		}
		for _, t := range tags.entries {
			if i, ok := byRev[t.Revision]; ok {
				h.Entries[i].Tags = appendNames(h.Entries[i].Tags, t.Names)
			}
		}
	}
}

// assignByDate places each tag on the newest entry dated at or before the tag.
// Tags older than the whole history are dropped.
func (h *History) assignByDate(tags *TagList) {
	ordered := tags.Entries()
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Date.Before(ordered[j].Date)
	})

	for _, t := range ordered {
		for i := range h.Entries {
			if !h.Entries[i].Date.After(t.Date) {
				h.Entries[i].Tags = appendNames(h.Entries[i].Tags, t.Names)
				break
			}
		}
	}
}

func appendNames(dst, names []string) []string {
	for _, n := range names {
		dup := false
		for _, d := range dst {
			if d == n {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, n)
		}
	}
	return dst
}
