package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatHuman OutputFormat = "human"
	FormatYAML  OutputFormat = "yaml"
)

// FormatResponse formats a response according to the specified format
func FormatResponse(resp interface{}, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(resp)
	case FormatHuman:
		return formatHuman(resp)
	case FormatYAML:
		return formatYAML(resp)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// formatJSON formats the response as JSON
func formatJSON(resp interface{}) (string, error) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

// formatYAML formats the response as YAML using the JSON field names
func formatYAML(resp interface{}) (string, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return "", err
	}
	out, err := yaml.Marshal(generic)
	if err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return strings.TrimRight(string(out), "\n"), nil
}

// formatHuman formats the response in human-readable format
func formatHuman(resp interface{}) (string, error) {
	switch v := resp.(type) {
	case *HistoryResponseCLI:
		return formatHistoryHuman(v), nil
	case *AnnotateResponseCLI:
		return formatAnnotateHuman(v), nil
	case *TagsResponseCLI:
		return formatTagsHuman(v), nil
	case *RepositoryInfoCLI:
		return formatInfoHuman(v), nil
	case *DiscoverResponseCLI:
		return formatDiscoverHuman(v), nil
	case *IndexResponseCLI:
		return formatIndexHuman(v), nil
	case *RunsResponseCLI:
		return formatRunsHuman(v), nil
	default:
		// For unknown types, fall back to JSON
		return formatJSON(resp)
	}
}

func cells(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func renderTable(b *strings.Builder, header []string, rows [][]string) {
	table := tablewriter.NewWriter(b)
	table.Header(cells(header)...)
	for _, row := range rows {
		_ = table.Append(cells(row)...)
	}
	_ = table.Render()
}

func formatHistoryHuman(resp *HistoryResponseCLI) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s (%s, %d entries)\n", resp.File, resp.Backend, len(resp.Entries)))
	if resp.Since != "" {
		b.WriteString(fmt.Sprintf("Newer than %s\n", resp.Since))
	}

	rows := make([][]string, 0, len(resp.Entries))
	for _, e := range resp.Entries {
		message := strings.SplitN(e.Message(), "\n", 2)[0]
		if len(message) > 60 {
			message = message[:57] + "..."
		}
		if e.RenamedFrom != "" {
			message += " (from " + e.RenamedFrom + ")"
		}
		rows = append(rows, []string{
			shortRevision(e.Revision),
			e.Author,
			formatDate(e.Date),
			strings.Join(e.Tags, ","),
			message,
		})
	}
	renderTable(&b, []string{"Revision", "Author", "Date", "Tags", "Message"}, rows)
	return b.String()
}

func formatAnnotateHuman(resp *AnnotateResponseCLI) string {
	var b strings.Builder
	width := 0
	for _, l := range resp.Lines {
		if len(l.Author) > width {
			width = len(l.Author)
		}
	}
	for _, l := range resp.Lines {
		b.WriteString(fmt.Sprintf("%5d %-12s %-*s  %s\n", l.Number, shortRevision(l.Revision), width, l.Author, l.Text))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatTagsHuman(resp *TagsResponseCLI) string {
	var b strings.Builder
	source := resp.Backend
	if resp.Cached {
		source += ", cached"
	}
	b.WriteString(fmt.Sprintf("%s (%s, %d tagged revisions)\n", resp.Root, source, len(resp.Tags)))
	rows := make([][]string, 0, len(resp.Tags))
	for _, t := range resp.Tags {
		rows = append(rows, []string{shortRevision(t.Revision), formatDate(t.Date), strings.Join(t.Names, ", ")})
	}
	renderTable(&b, []string{"Revision", "Date", "Names"}, rows)
	return b.String()
}

func formatInfoHuman(resp *RepositoryInfoCLI) string {
	if !resp.Present {
		return fmt.Sprintf("%s: no %s", resp.Root, resp.Field)
	}
	return fmt.Sprintf("%s: %s %s", resp.Root, resp.Field, resp.Value)
}

func formatDiscoverHuman(resp *DiscoverResponseCLI) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%d repositories under %s\n", len(resp.Repositories), resp.Root))
	rows := make([][]string, 0, len(resp.Repositories))
	for _, f := range resp.Repositories {
		rows = append(rows, []string{string(f.Kind), f.Root})
	}
	renderTable(&b, []string{"Backend", "Root"}, rows)
	for _, e := range resp.Errors {
		b.WriteString("  warning: " + e + "\n")
	}
	return b.String()
}

func formatIndexHuman(resp *IndexResponseCLI) string {
	var b strings.Builder
	s := resp.Summary
	b.WriteString(fmt.Sprintf("Run %s %s in %s\n", s.RunID, s.Status, s.Duration.Round(time.Millisecond)))
	renderTable(&b, []string{"Repositories", "Skipped", "Files", "Unchanged", "Pruned", "New entries", "Failures"}, [][]string{{
		strconv.Itoa(s.Repositories),
		strconv.Itoa(s.Skipped),
		strconv.Itoa(s.Files),
		strconv.Itoa(s.Unchanged),
		strconv.Itoa(s.Pruned),
		strconv.Itoa(s.NewEntries),
		strconv.Itoa(s.Failures),
	}})
	for _, f := range resp.Failures {
		b.WriteString(fmt.Sprintf("  %s: [%s] %s\n", f.File, f.Code, f.Message))
	}
	return b.String()
}

func formatRunsHuman(resp *RunsResponseCLI) string {
	var b strings.Builder
	rows := make([][]string, 0, len(resp.Runs))
	for _, r := range resp.Runs {
		rows = append(rows, []string{
			shortID(r.ID),
			string(r.Status),
			formatDate(r.StartedAt),
			strconv.Itoa(r.Files),
			strconv.Itoa(r.Entries),
			strconv.Itoa(r.Failures),
		})
	}
	renderTable(&b, []string{"Run", "Status", "Started", "Files", "Entries", "Failures"}, rows)
	if resp.Stats != nil {
		b.WriteString(fmt.Sprintf("Cache: %d files in %d repositories, %d entries, %d tag lists\n",
			resp.Stats.Files, resp.Stats.Repositories, resp.Stats.Entries, resp.Stats.TagLists))
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
