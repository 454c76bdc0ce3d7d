package git

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"vcshist/internal/backends"
	"vcshist/internal/errors"
	"vcshist/internal/history"
)

// Record markers in the log format. Commit messages cannot contain them in practice.
const (
	recordStart  = "\x1e"
	fieldSep     = "\x1f"
	messageEnd   = "\x1d"
	logFormat    = "--format=%x1e%H%x1f%aI%x1f%an%n%B%x1d"
	renameStatus = "R"
)

func trim(b []byte) string {
	return strings.TrimSpace(string(b))
}

// History returns the commits touching file newer than since, following renames
func (g *GitAdapter) History(ctx context.Context, file, since string) (*history.History, error) {
	dir, base, err := backends.ResolveFile(g.repoRoot, file)
	if err != nil {
		return nil, err
	}

	g.client.Logger.Debug("Getting file history",
		"file", file,
		"since", since,
	)

	args := []string{"-c", "core.quotePath=false", "log", "--follow", "--name-status", logFormat}
	if since != "" {
		args = append(args, since+"..HEAD")
	}
	args = append(args, "--", base)

	parser := newLogParser()
	if err := g.client.Stream(ctx, dir, parser.Consume, args...); err != nil {
		return nil, err
	}

	h, warnings := parser.Finish()
	for _, w := range warnings {
		g.client.Logger.Warn("Skipping malformed git log record",
			"file", file,
			"line", w.Line,
			"reason", w.Reason,
		)
	}
	h.ExcludeRevision(since)

	if g.tagsEnabled {
		h.AssignTags(g.Tags(ctx), history.MatchRevision)
	}
	return h, nil
}

type logState int

const (
	logAwaitingHeader logState = iota
	logMessage
	logStatus
)

// logParser reads `git log --name-status` output in logFormat:
//
//	\x1e<hash>\x1f<iso date>\x1f<author>
//	<message lines>
//	\x1d
//	R100\t<old path>\t<new path>
type logParser struct {
	state    logState
	line     int
	current  history.Entry
	keep     bool
	entries  []history.Entry
	warnings []history.ParseWarning
}

func newLogParser() *logParser {
	return &logParser{}
}

func (p *logParser) warn(record, reason string) {
	p.warnings = append(p.warnings, history.ParseWarning{Line: p.line, Record: record, Reason: reason})
}

func (p *logParser) Consume(line string) error {
	p.line++

	if strings.HasPrefix(line, recordStart) {
		p.flush()
		p.header(line[len(recordStart):])
		return nil
	}

	switch p.state {
	case logMessage:
		// %B omits the final newline when the raw message has none
		if strings.HasSuffix(line, messageEnd) {
			if body := strings.TrimSuffix(line, messageEnd); body != "" {
				p.current.Comments = append(p.current.Comments, body)
			}
			p.state = logStatus
			return nil
		}
		p.current.Comments = append(p.current.Comments, line)
	case logStatus:
		fields := strings.Split(line, "\t")
		if len(fields) == 3 && strings.HasPrefix(fields[0], renameStatus) {
			p.current.RenamedFrom = unquotePath(fields[1])
		}
	default:
		if strings.TrimSpace(line) != "" {
			p.warn(line, "line outside of a record")
		}
	}
	return nil
}

// unquotePath undoes git's C-style quoting. Names with control characters,
// quotes or backslashes stay quoted even with core.quotePath=false.
func unquotePath(path string) string {
	if len(path) < 2 || path[0] != '"' || path[len(path)-1] != '"' {
		return path
	}
	if s, err := strconv.Unquote(path); err == nil {
		return s
	}
	return path
}

func (p *logParser) header(line string) {
	fields := strings.Split(line, fieldSep)
	if len(fields) != 3 {
		p.warn(line, "header has wrong number of fields")
		p.state = logMessage
		p.keep = false
		return
	}

	date, err := time.Parse(time.RFC3339, fields[1])
	if err != nil {
		p.warn(line, fmt.Sprintf("bad date %q", fields[1]))
		p.state = logMessage
		p.keep = false
		return
	}

	p.current = history.Entry{
		Revision: fields[0],
		Date:     date.UTC(),
		Author:   fields[2],
	}
	p.state = logMessage
	p.keep = true
}

func (p *logParser) flush() {
	if p.keep {
		c := p.current.Comments
		for len(c) > 0 && strings.TrimSpace(c[len(c)-1]) == "" {
			c = c[:len(c)-1]
		}
		p.current.Comments = c
		p.entries = append(p.entries, p.current)
	}
	p.current = history.Entry{}
	p.keep = false
	p.state = logAwaitingHeader
}

func (p *logParser) Finish() (*history.History, []history.ParseWarning) {
	p.flush()
	return history.New(p.entries...), p.warnings
}

// Annotate runs `git blame --line-porcelain`
func (g *GitAdapter) Annotate(ctx context.Context, file, rev string) (*history.Annotation, error) {
	dir, base, err := backends.ResolveFile(g.repoRoot, file)
	if err != nil {
		return nil, err
	}

	args := []string{"blame", "--line-porcelain"}
	if rev != "" {
		args = append(args, rev)
	}
	args = append(args, "--", base)

	parser := newBlameParser(base, rev)
	if err := g.client.Stream(ctx, dir, parser.Consume, args...); err != nil {
		return nil, err
	}
	return parser.Finish()
}

var blameHeader = regexp.MustCompile(`^([0-9a-f]{40}|[0-9a-f]{64}) \d+ \d+( \d+)?$`)

// blameParser reads --line-porcelain output: a header per line, key/value
// metadata, then the content prefixed by a tab.
type blameParser struct {
	annotation *history.Annotation
	revision   string
	author     string
	inRecord   bool
}

func newBlameParser(file, rev string) *blameParser {
	return &blameParser{annotation: &history.Annotation{
		File:     file,
		Revision: rev,
		Lines:    []history.AnnotationLine{},
	}}
}

func (p *blameParser) malformed(line, reason string) error {
	return errors.New(errors.MalformedOutput, "Unexpected blame output: "+reason, nil).WithDetails(map[string]interface{}{
		"file": p.annotation.File,
		"line": len(p.annotation.Lines) + 1,
		"text": line,
	})
}

func (p *blameParser) Consume(line string) error {
	switch {
	case strings.HasPrefix(line, "\t"):
		if !p.inRecord {
			return p.malformed(line, "content without header")
		}
		p.annotation.Lines = append(p.annotation.Lines, history.AnnotationLine{
			Number:   len(p.annotation.Lines) + 1,
			Revision: p.revision,
			Author:   p.author,
			Text:     line[1:],
		})
		p.inRecord = false
	case blameHeader.MatchString(line):
		if p.inRecord {
			return p.malformed(line, "header without content")
		}
		p.revision = line[:strings.IndexByte(line, ' ')]
		p.author = ""
		p.inRecord = true
	case strings.HasPrefix(line, "author "):
		if !p.inRecord {
			return p.malformed(line, "metadata without header")
		}
		p.author = strings.TrimPrefix(line, "author ")
	default:
		if !p.inRecord {
			return p.malformed(line, "metadata without header")
		}
	}
	return nil
}

func (p *blameParser) Finish() (*history.Annotation, error) {
	if p.inRecord {
		return nil, p.malformed("", "truncated record")
	}
	return p.annotation, nil
}
