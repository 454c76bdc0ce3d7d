package git

import (
	"context"
	"fmt"
	"strings"
	"time"

	"vcshist/internal/history"
)

const (
	tagFormatISO     = "--format=%(objectname)%09%(*objectname)%09%(creatordate:iso-strict)%09%(refname:short)"
	tagFormatRFC2822 = "--format=%(objectname)%09%(*objectname)%09%(creatordate:rfc2822)%09%(refname:short)"
)

// listTags enumerates refs/tags. Annotated tags are peeled to their commit
// so they match file history revisions.
func (g *GitAdapter) listTags(ctx context.Context, dir string) (*history.TagList, error) {
	format := g.gate.Choose(ctx, isoStrictVersion, tagFormatISO, tagFormatRFC2822)

	parser := newTagParser(dateLayouts)
	if err := g.client.Stream(ctx, dir, parser.Consume, "for-each-ref", "--sort=-creatordate", format, "refs/tags"); err != nil {
		return nil, err
	}

	tags, warnings := parser.Finish()
	for _, w := range warnings {
		g.client.Logger.Warn("Skipping malformed tag record", "line", w.Line, "reason", w.Reason)
	}
	return tags, nil
}

// tagParser merges one-line tag records that point at the same commit.
type tagParser struct {
	layouts  []string
	line     int
	index    map[string]int
	entries  []history.TagEntry
	warnings []history.ParseWarning
}

func newTagParser(layouts []string) *tagParser {
	return &tagParser{layouts: layouts, index: make(map[string]int)}
}

func (p *tagParser) parseDate(s string) (time.Time, error) {
	var err error
	for _, layout := range p.layouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}

func (p *tagParser) Consume(line string) error {
	p.line++
	if strings.TrimSpace(line) == "" {
		return nil
	}

	fields := strings.Split(line, "\t")
	if len(fields) != 4 || fields[0] == "" || fields[3] == "" {
		p.warnings = append(p.warnings, history.ParseWarning{Line: p.line, Record: line, Reason: "wrong number of fields"})
		return nil
	}

	date, err := p.parseDate(fields[2])
	if err != nil {
		p.warnings = append(p.warnings, history.ParseWarning{Line: p.line, Record: line, Reason: fmt.Sprintf("bad date %q", fields[2])})
		return nil
	}

	rev := fields[0]
	if fields[1] != "" {
		rev = fields[1]
	}

	if i, ok := p.index[rev]; ok {
		p.entries[i].Names = append(p.entries[i].Names, fields[3])
		if date.After(p.entries[i].Date) {
			p.entries[i].Date = date
		}
		return nil
	}
	p.index[rev] = len(p.entries)
	p.entries = append(p.entries, history.TagEntry{Revision: rev, Names: []string{fields[3]}, Date: date})
	return nil
}

func (p *tagParser) Finish() (*history.TagList, []history.ParseWarning) {
	return history.NewTagList(p.entries), p.warnings
}
