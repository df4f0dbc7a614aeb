// Package sessionlog discovers and parses dated session-log files into a
// uniform entry type. Two on-disk schemas coexist: a structured variant with
// an explicit Metadata block, and an older flat variant with bold inline
// fields. A single parser detects the variant per file; files matching
// neither shape are skipped with a warning, never aborting discovery.
package sessionlog

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/teamlens-dev/teamlens/pkg/markdown"
)

// Entry is one parsed session log. One entry per source file; the file name
// encodes date and topic and should match the content's declared values, but
// mismatches are tolerated (the declared value wins).
type Entry struct {
	Date          string   `json:"date"`  // YYYY-MM-DD
	Topic         string   `json:"topic"` // slug from the file name
	Timestamp     string   `json:"timestamp,omitempty"`
	Participants  []string `json:"participants"`
	Summary       string   `json:"summary,omitempty"`
	Decisions     []string `json:"decisions,omitempty"`
	Outcomes      []string `json:"outcomes,omitempty"`
	RelatedIssues []string `json:"relatedIssues,omitempty"`
	FilePath      string   `json:"filePath,omitempty"`
}

var (
	fileNameRe  = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})-(.+)\.md$`)
	inlineRe    = regexp.MustCompile(`^([A-Za-z][A-Za-z ]*?)\s*:\s*(.*)$`)
	issueRefRe  = regexp.MustCompile(`#\d+|\b[A-Z][A-Z0-9]+-\d+\b`)
	listMarkers = regexp.MustCompile(`^[-*+]\s+`)
)

// Discover walks the given log roots (both recognized directory names may
// exist simultaneously) and parses every {date}-{topic}.md file. Per-file
// parse failures are collected into the returned multierror; the entry slice
// is always the best-effort result. Missing roots are not an error.
func Discover(roots ...string) ([]Entry, error) {
	var entries []Entry
	var warns *multierror.Error

	for _, root := range roots {
		files, err := os.ReadDir(root)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			warns = multierror.Append(warns, errors.Wrapf(err, "failed to read log directory %s", root))
			continue
		}
		for _, f := range files {
			if f.IsDir() || !fileNameRe.MatchString(f.Name()) {
				continue
			}
			path := filepath.Join(root, f.Name())
			entry, err := ParseFile(path)
			if err != nil {
				warns = multierror.Append(warns, errors.Wrapf(err, "skipping %s", path))
				continue
			}
			entries = append(entries, entry)
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Date != entries[j].Date {
			return entries[i].Date < entries[j].Date
		}
		return entries[i].Topic < entries[j].Topic
	})

	return entries, warns.ErrorOrNil()
}

// ParseFile reads and parses a single session-log file.
func ParseFile(path string) (Entry, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Entry{}, errors.Wrap(err, "failed to read session log")
	}
	entry, err := Parse(filepath.Base(path), string(content))
	if err != nil {
		return Entry{}, err
	}
	entry.FilePath = path
	return entry, nil
}

// Parse parses one session log in either schema variant. fileName supplies
// the fallback date and topic. An entry missing a date, topic, or any
// participant is an error so the caller can skip the file.
func Parse(fileName, doc string) (Entry, error) {
	doc = markdown.NormalizeLineEndings(doc)

	var entry Entry
	if m := fileNameRe.FindStringSubmatch(fileName); m != nil {
		entry.Date = m[1]
		entry.Topic = m[2]
	}

	// Presence of a Metadata heading distinguishes the two variants.
	if meta, ok := markdown.ExtractSection(doc, "Metadata", 2); ok {
		parseStructured(&entry, doc, meta)
	} else {
		parseFlat(&entry, doc)
	}

	if entry.Date == "" {
		return Entry{}, errors.New("session log has no date")
	}
	if entry.Topic == "" {
		return Entry{}, errors.New("session log has no topic")
	}
	if len(entry.Participants) == 0 {
		return Entry{}, errors.New("session log has no participants")
	}
	return entry, nil
}

// parseStructured handles the Metadata-block schema: Date/Topic/Timestamp
// fields, a "Who Worked" list, a "What Was Done" paragraph, and optional
// "Decisions Made" / "Key Outcomes" / "Related Issues" sections.
func parseStructured(entry *Entry, doc, meta string) {
	for key, value := range inlineFields(meta) {
		applyField(entry, key, value)
	}

	if who, ok := markdown.ExtractSection(doc, "Who Worked", 2); ok {
		for _, item := range listItems(who) {
			entry.Participants = append(entry.Participants, participantName(item))
		}
	}
	if done, ok := markdown.ExtractSection(doc, "What Was Done", 2); ok {
		entry.Summary = strings.TrimSpace(done)
	}
	if decisions, ok := markdown.ExtractSection(doc, "Decisions Made", 2); ok {
		entry.Decisions = listItems(decisions)
	}
	if outcomes, ok := markdown.ExtractSection(doc, "Key Outcomes", 2); ok {
		entry.Outcomes = listItems(outcomes)
	}
	if issues, ok := markdown.ExtractSection(doc, "Related Issues", 2); ok {
		entry.RelatedIssues = issueRefs(issues)
	}
}

// parseFlat handles the older schema: bold inline fields followed by
// Summary/Decisions/Outcomes headings.
func parseFlat(entry *Entry, doc string) {
	for key, value := range inlineFields(doc) {
		applyField(entry, key, value)
	}

	if summary, ok := markdown.ExtractSection(doc, "Summary", 2); ok {
		entry.Summary = strings.TrimSpace(summary)
	}
	if decisions, ok := markdown.ExtractSection(doc, "Decisions", 2); ok {
		entry.Decisions = listItems(decisions)
	}
	if outcomes, ok := markdown.ExtractSection(doc, "Outcomes", 2); ok {
		entry.Outcomes = listItems(outcomes)
	}
	if issues, ok := markdown.ExtractSection(doc, "Related Issues", 2); ok {
		entry.RelatedIssues = issueRefs(issues)
	}
}

func applyField(entry *Entry, key, value string) {
	if value == "" {
		return
	}
	switch key {
	case "date":
		entry.Date = value
	case "topic":
		entry.Topic = value
	case "timestamp":
		entry.Timestamp = value
	case "participants":
		for _, p := range strings.Split(value, ",") {
			if name := participantName(p); name != "" {
				entry.Participants = append(entry.Participants, name)
			}
		}
	}
}

// inlineFields extracts "Key: value" and "**Key:** value" lines, optionally
// behind a list marker, keyed by the lower-cased field name. Bold emphasis is
// stripped before matching so both spellings parse the same way.
func inlineFields(text string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		trimmed := listMarkers.ReplaceAllString(strings.TrimSpace(line), "")
		trimmed = strings.ReplaceAll(trimmed, "**", "")
		m := inlineRe.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(m[1]))
		if _, seen := fields[key]; !seen {
			fields[key] = strings.TrimSpace(m[2])
		}
	}
	return fields
}

// listItems returns the text of every bullet item in the section, with list
// markers and bold emphasis stripped.
func listItems(section string) []string {
	var items []string
	for _, line := range strings.Split(section, "\n") {
		trimmed := strings.TrimSpace(line)
		if !listMarkers.MatchString(trimmed) {
			continue
		}
		item := listMarkers.ReplaceAllString(trimmed, "")
		item = strings.TrimSpace(strings.ReplaceAll(item, "**", ""))
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

// participantName normalizes a participant reference: bold stripped, any
// trailing annotation after ':' or an em dash dropped.
func participantName(item string) string {
	name := strings.ReplaceAll(item, "**", "")
	if idx := strings.IndexAny(name, ":—"); idx != -1 {
		name = name[:idx]
	}
	return strings.TrimSpace(name)
}

// issueRefs extracts ordered issue references: bullet items verbatim when the
// section is a list, otherwise any #123 / ABC-123 style tokens in the text.
func issueRefs(section string) []string {
	if items := listItems(section); len(items) > 0 {
		return items
	}
	return issueRefRe.FindAllString(section, -1)
}
