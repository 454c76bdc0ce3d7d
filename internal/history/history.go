// Package history holds the backend-neutral model of version-control history:
// revision entries, per-line annotations and repository tag lists.
package history

import (
	"strings"
	"time"
)

// Entry is one revision of a file as reported by a backend.
// Revision identifiers are opaque strings; no ordering is assumed from them.
type Entry struct {
	Revision    string    `json:"revision"`
	Author      string    `json:"author"`
	Date        time.Time `json:"date"`
	Comments    []string  `json:"comments,omitempty"`
	RenamedFrom string    `json:"renamedFrom,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
}

// Message returns the comment lines joined with newlines.
func (e Entry) Message() string {
	return strings.Join(e.Comments, "\n")
}

// History is a sequence of entries for one file, newest first.
type History struct {
	Entries []Entry `json:"entries"`
}

// New returns a history holding entries.
func New(entries ...Entry) *History {
	if entries == nil {
		entries = []Entry{}
	}
	return &History{Entries: entries}
}

// Len returns the number of entries.
func (h *History) Len() int {
	if h == nil {
		return 0
	}
	return len(h.Entries)
}

// Latest returns the newest entry.
func (h *History) Latest() (Entry, bool) {
	if h.Len() == 0 {
		return Entry{}, false
	}
	return h.Entries[0], true
}

// Revisions returns the revision identifiers in history order.
func (h *History) Revisions() []string {
	revs := make([]string, 0, h.Len())
	if h == nil {
		return revs
	}
	for _, e := range h.Entries {
		revs = append(revs, e.Revision)
	}
	return revs
}

// ExcludeRevision drops entries whose revision equals rev.
// Backends whose range syntax is inclusive use it to make a since-bound exclusive.
func (h *History) ExcludeRevision(rev string) {
	if h == nil || rev == "" {
		return
	}
	kept := h.Entries[:0]
	for _, e := range h.Entries {
		if e.Revision != rev {
			kept = append(kept, e)
		}
	}
	h.Entries = kept
}

// Merge returns newer followed by the entries of h not already present in newer.
// It is used to extend a cached history with an incremental fetch.
func (h *History) Merge(newer *History) *History {
	seen := make(map[string]struct{}, newer.Len())
	merged := make([]Entry, 0, newer.Len()+h.Len())
	if newer != nil {
		for _, e := range newer.Entries {
			if _, dup := seen[e.Revision]; dup {
				continue
			}
			seen[e.Revision] = struct{}{}
			merged = append(merged, e)
		}
	}
	if h != nil {
		for _, e := range h.Entries {
			if _, dup := seen[e.Revision]; dup {
				continue
			}
			seen[e.Revision] = struct{}{}
			merged = append(merged, e)
		}
	}
	return &History{Entries: merged}
}

// AnnotationLine attributes one line of a file to the revision that last changed it.
type AnnotationLine struct {
	Number   int    `json:"number"`
	Revision string `json:"revision"`
	Author   string `json:"author"`
	Text     string `json:"text"`
}

// Annotation is the per-line attribution of one file at one revision.
type Annotation struct {
	File     string           `json:"file"`
	Revision string           `json:"revision,omitempty"`
	Lines    []AnnotationLine `json:"lines"`
}

// Len returns the number of annotated lines.
func (a *Annotation) Len() int {
	if a == nil {
		return 0
	}
	return len(a.Lines)
}

// Authors returns the distinct authors in order of first appearance.
func (a *Annotation) Authors() []string {
	seen := make(map[string]struct{})
	var authors []string
	if a == nil {
		return authors
	}
	for _, l := range a.Lines {
		if _, ok := seen[l.Author]; ok {
			continue
		}
		seen[l.Author] = struct{}{}
		authors = append(authors, l.Author)
	}
	return authors
}

// ParseWarning describes an output record a parser skipped.
type ParseWarning struct {
	Line   int    `json:"line"`
	Record string `json:"record"`
	Reason string `json:"reason"`
}
