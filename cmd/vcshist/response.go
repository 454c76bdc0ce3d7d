package main

import (
	"time"

	"vcshist/internal/discovery"
	"vcshist/internal/history"
	"vcshist/internal/indexer"
	"vcshist/internal/storage"
)

// HistoryResponseCLI is the output of `vcshist history`
type HistoryResponseCLI struct {
	File    string          `json:"file"`
	Root    string          `json:"root"`
	Backend string          `json:"backend"`
	Since   string          `json:"since,omitempty"`
	Cached  bool            `json:"cached,omitempty"`
	Entries []history.Entry `json:"entries"`
}

// AnnotateResponseCLI is the output of `vcshist annotate`
type AnnotateResponseCLI struct {
	File     string                   `json:"file"`
	Backend  string                   `json:"backend"`
	Revision string                   `json:"revision,omitempty"`
	Authors  []string                 `json:"authors"`
	Lines    []history.AnnotationLine `json:"lines"`
}

// TagsResponseCLI is the output of `vcshist tags`
type TagsResponseCLI struct {
	Root    string             `json:"root"`
	Backend string             `json:"backend"`
	Cached  bool               `json:"cached,omitempty"`
	Tags    []history.TagEntry `json:"tags"`
}

// RepositoryInfoCLI answers `vcshist parent` and `vcshist branch`
type RepositoryInfoCLI struct {
	Root    string `json:"root"`
	Backend string `json:"backend"`
	Field   string `json:"field"`
	Value   string `json:"value,omitempty"`
	Present bool   `json:"present"`
}

// UpdateResponseCLI is the output of `vcshist update`
type UpdateResponseCLI struct {
	Root    string `json:"root"`
	Backend string `json:"backend"`
	Updated bool   `json:"updated"`
}

// DiscoverResponseCLI is the output of `vcshist discover`
type DiscoverResponseCLI struct {
	Root         string            `json:"root"`
	Repositories []discovery.Found `json:"repositories"`
	Errors       []string          `json:"errors,omitempty"`
}

// IndexResponseCLI is the output of `vcshist index`
type IndexResponseCLI struct {
	Root         string            `json:"root"`
	Repositories []discovery.Found `json:"repositories"`
	Summary      *indexer.Summary  `json:"summary"`
	Failures     []storage.Failure `json:"failures,omitempty"`
}

// RunsResponseCLI is the output of `vcshist index runs`
type RunsResponseCLI struct {
	Runs  []*storage.Run `json:"runs"`
	Stats *storage.Stats `json:"stats,omitempty"`
}

// VersionResponseCLI is the output of `vcshist version`
type VersionResponseCLI struct {
	Version   string            `json:"version"`
	Commit    string            `json:"commit"`
	BuildDate string            `json:"buildDate"`
	Clients   map[string]string `json:"clients,omitempty"`
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}
