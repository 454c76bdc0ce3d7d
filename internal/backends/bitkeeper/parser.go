package bitkeeper

import (
	"fmt"
	"strings"
	"time"

	"vcshist/internal/errors"
	"vcshist/internal/history"
)

type parserState int

const (
	awaitingHeader parserState = iota
	accumulatingBody
)

const (
	headerPrefix  = "D "
	commentPrefix = "C"
	tagPrefix     = "T "
)

// historyParser reads `bk log` output produced with logDspec:
//
//	D <path>\t<rev>\t<date>\t<user>[\t<renamed-from>]
//	C <comment line>
//
// A record whose date cannot be parsed is dropped with a warning.
type historyParser struct {
	layout string

	state    parserState
	line     int
	current  history.Entry
	skipping bool
	seen     map[string]struct{}

	entries  []history.Entry
	warnings []history.ParseWarning
}

func newHistoryParser(layout string) *historyParser {
	return &historyParser{layout: layout, seen: make(map[string]struct{})}
}

func (p *historyParser) warn(record, reason string) {
	p.warnings = append(p.warnings, history.ParseWarning{Line: p.line, Record: record, Reason: reason})
}

// Consume handles one output line. It never fails.
func (p *historyParser) Consume(line string) error {
	p.line++

	switch {
	case strings.HasPrefix(line, headerPrefix):
		p.flush()
		p.header(line)
	case line == commentPrefix || strings.HasPrefix(line, commentPrefix+" "):
		if p.skipping {
			return nil
		}
		if p.state != accumulatingBody {
			p.warn(line, "comment outside of a record")
			return nil
		}
		p.current.Comments = append(p.current.Comments, strings.TrimPrefix(strings.TrimPrefix(line, commentPrefix), " "))
	case strings.TrimSpace(line) == "":
	default:
		p.warn(line, "unrecognised line")
	}
	return nil
}

func (p *historyParser) header(line string) {
	fields := strings.Split(line[len(headerPrefix):], "\t")
	if len(fields) < 4 {
		p.warn(line, "header has too few fields")
		p.skipping = true
		return
	}

	date, err := time.Parse(p.layout, fields[2])
	if err != nil {
		p.warn(line, fmt.Sprintf("bad date %q", fields[2]))
		p.skipping = true
		return
	}
	if _, dup := p.seen[fields[1]]; dup {
		p.warn(line, "duplicate revision")
		p.skipping = true
		return
	}

	p.current = history.Entry{
		Revision: fields[1],
		Date:     date.UTC(),
		Author:   fields[3],
	}
	if len(fields) > 4 && fields[4] != "" && fields[4] != fields[0] {
		p.current.RenamedFrom = fields[4]
	}
	p.seen[fields[1]] = struct{}{}
	p.state = accumulatingBody
	p.skipping = false
}

func (p *historyParser) flush() {
	if p.state == accumulatingBody {
		p.entries = append(p.entries, p.current)
	}
	p.current = history.Entry{}
	p.state = awaitingHeader
	p.skipping = false
}

// Finish flushes the last record and returns the history.
func (p *historyParser) Finish() (*history.History, []history.ParseWarning) {
	p.flush()
	return history.New(p.entries...), p.warnings
}

// annotationParser reads `bk annotate -aur` output, one line per file line:
//
//	<user>\t<rev>\t<text>
//
// Any other shape fails the whole annotation.
type annotationParser struct {
	annotation *history.Annotation
}

func newAnnotationParser(file, revision string) *annotationParser {
	return &annotationParser{annotation: &history.Annotation{
		File:     file,
		Revision: revision,
		Lines:    []history.AnnotationLine{},
	}}
}

func (p *annotationParser) Consume(line string) error {
	n := len(p.annotation.Lines) + 1
	fields := strings.SplitN(line, "\t", 3)
	if len(fields) != 3 || fields[0] == "" || fields[1] == "" {
		return errors.New(errors.MalformedOutput, "Unexpected annotation line", nil).WithDetails(map[string]interface{}{
			"file": p.annotation.File,
			"line": n,
			"text": line,
		})
	}

	p.annotation.Lines = append(p.annotation.Lines, history.AnnotationLine{
		Number:   n,
		Author:   fields[0],
		Revision: fields[1],
		Text:     fields[2],
	})
	return nil
}

func (p *annotationParser) Finish() *history.Annotation {
	return p.annotation
}

// tagParser reads `bk tags` output produced with tagDspec or tagDspecOld:
//
//	D <rev>\t<date>
//	T <name>
//
// Names attach to the most recent header. Records without names are dropped.
type tagParser struct {
	layout string

	state    parserState
	line     int
	current  history.TagEntry
	entries  []history.TagEntry
	warnings []history.ParseWarning
}

func newTagParser(layout string) *tagParser {
	return &tagParser{layout: layout}
}

func (p *tagParser) warn(record, reason string) {
	p.warnings = append(p.warnings, history.ParseWarning{Line: p.line, Record: record, Reason: reason})
}

func (p *tagParser) Consume(line string) error {
	p.line++

	switch {
	case strings.HasPrefix(line, headerPrefix):
		p.flush()
		fields := strings.Split(line[len(headerPrefix):], "\t")
		if len(fields) < 2 {
			p.warn(line, "header has too few fields")
			return nil
		}
		date, err := time.Parse(p.layout, fields[1])
		if err != nil {
			p.warn(line, fmt.Sprintf("bad date %q", fields[1]))
			return nil
		}
		p.current = history.TagEntry{Revision: fields[0], Date: date.UTC()}
		p.state = accumulatingBody
	case strings.HasPrefix(line, tagPrefix):
		if p.state != accumulatingBody {
			p.warn(line, "tag outside of a record")
			return nil
		}
		p.current.Names = append(p.current.Names, line[len(tagPrefix):])
	case strings.TrimSpace(line) == "":
	default:
		p.warn(line, "unrecognised line")
	}
	return nil
}

func (p *tagParser) flush() {
	if p.state == accumulatingBody && len(p.current.Names) > 0 {
		p.entries = append(p.entries, p.current)
	}
	p.current = history.TagEntry{}
	p.state = awaitingHeader
}

func (p *tagParser) Finish() (*history.TagList, []history.ParseWarning) {
	p.flush()
	return history.NewTagList(p.entries), p.warnings
}
