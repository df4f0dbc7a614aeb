// Package decisions extracts discrete decision records from the running
// decisions document and from standalone decision files. The canonical
// document mixes real decisions with structural subsections at several
// heading depths, so extraction is heuristic: heading-level rules decide
// what opens a decision section, and a closed set of generic subsection
// names is filtered out as noise.
package decisions

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/teamlens-dev/teamlens/pkg/markdown"
)

// Entry is one extracted decision record. Content is the full section text,
// heading inclusive. LineNumber is the 1-based position of the heading in the
// source document where known.
type Entry struct {
	Title      string `json:"title"`
	Date       string `json:"date,omitempty"` // YYYY-MM-DD, empty when undatable
	Author     string `json:"author,omitempty"`
	FilePath   string `json:"filePath"`
	Content    string `json:"content"`
	LineNumber int    `json:"lineNumber,omitempty"`
}

const metadataWindow = 20

var (
	datePrefixRe = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})(?:/\d+)?\s*[-:–—]?\s*`)
	metaFieldRe  = regexp.MustCompile(`^(Date|Author|By)\s*:\s*(.+)$`)
)

// noisePrefixes are stripped from heading text before the title is judged.
var noisePrefixes = []string{
	"User directive — ",
	"User directive - ",
	"Decision: ",
}

// genericSections are structural subsection names that are never decisions
// themselves. Compared case-insensitively after prefix stripping.
var genericSections = map[string]struct{}{
	"context":        {},
	"decision":       {},
	"rationale":      {},
	"members":        {},
	"open questions": {},
	"status":         {},
	"notes":          {},
	"alternatives":   {},
	"consequences":   {},
	"summary":        {},
	"background":     {},
	"follow-ups":     {},
}

// Discover parses the canonical decisions document (if present) and every
// .md file under the decisions directory (recursively), returning the merged
// list sorted by date descending with undated entries last. Per-file failures
// are collected as warnings; discovery always continues.
func Discover(docPath, dirPath string) ([]Entry, error) {
	var entries []Entry
	var warns *multierror.Error

	if content, err := os.ReadFile(docPath); err == nil {
		entries = append(entries, ParseDocument(string(content), docPath)...)
	} else if !os.IsNotExist(err) {
		warns = multierror.Append(warns, errors.Wrapf(err, "failed to read %s", docPath))
	}

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			warns = multierror.Append(warns, err)
			return nil
		}
		if info.IsDir() || !strings.HasSuffix(info.Name(), ".md") {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			warns = multierror.Append(warns, errors.Wrapf(err, "failed to read %s", path))
			return nil
		}
		entry, ok := ParseStandalone(string(content), path, info.ModTime())
		if !ok {
			warns = multierror.Append(warns, errors.Errorf("skipping %s: no usable heading", path))
			return nil
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		warns = multierror.Append(warns, err)
	}

	Sort(entries)
	return entries, warns.ErrorOrNil()
}

// ParseDocument extracts every decision section from the canonical decisions
// document. The heading rules: a depth-1 "Decision: ..." heading opens a
// section to the next depth-1 heading; a depth-2 heading opens one
// unconditionally; a depth-3 heading opens one only if its text begins with a
// date. Sections whose stripped title is a known generic subsection name are
// structural noise and skipped.
func ParseDocument(doc, path string) []Entry {
	doc = markdown.NormalizeLineEndings(doc)
	lines := strings.Split(doc, "\n")
	headings := markdown.Headings(doc)

	var entries []Entry
	for i, h := range headings {
		var opens bool
		switch h.Level {
		case 1:
			opens = strings.HasPrefix(h.Text, "Decision:")
		case 2:
			opens = true
		case 3:
			opens = datePrefixRe.MatchString(h.Text)
		}
		if !opens {
			continue
		}

		end := len(lines)
		for _, next := range headings[i+1:] {
			if next.Level <= h.Level {
				end = next.Line - 1
				break
			}
		}

		title, date := splitHeading(h.Text)
		if isGenericTitle(title) {
			continue
		}

		entry := Entry{
			Title:      title,
			Date:       date,
			FilePath:   path,
			Content:    strings.Join(lines[h.Line-1:end], "\n"),
			LineNumber: h.Line,
		}
		applyMetadata(&entry, lines[h.Line:min(end, h.Line+metadataWindow)])
		entries = append(entries, entry)
	}
	return entries
}

// ParseStandalone parses one standalone decision file. The first depth-1
// heading is preferred as the title, falling back to the first depth-2/3
// heading. Metadata is extracted anywhere in the document, and a file with no
// date anywhere falls back to the file timestamp so every decision sorts.
func ParseStandalone(doc, path string, fileTime time.Time) (Entry, bool) {
	doc = markdown.NormalizeLineEndings(doc)
	lines := strings.Split(doc, "\n")

	var heading *markdown.Heading
	for _, h := range markdown.Headings(doc) {
		if h.Level == 1 {
			h := h
			heading = &h
			break
		}
		if heading == nil && (h.Level == 2 || h.Level == 3) {
			h := h
			heading = &h
		}
	}
	if heading == nil {
		return Entry{}, false
	}

	title, date := splitHeading(heading.Text)
	entry := Entry{
		Title:      title,
		Date:       date,
		FilePath:   path,
		Content:    doc,
		LineNumber: heading.Line,
	}
	applyMetadata(&entry, lines)
	if entry.Date == "" {
		entry.Date = fileTime.Format("2006-01-02")
	}
	return entry, true
}

// Sort orders entries by date descending; entries without a date sort as the
// empty string, i.e. last. Ties preserve discovery order.
func Sort(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Date > entries[j].Date
	})
}

// splitHeading strips a leading date prefix and known noise prefixes from the
// heading text, returning the cleaned title and the date (if any).
func splitHeading(text string) (title, date string) {
	title = text
	if m := datePrefixRe.FindStringSubmatch(title); m != nil {
		date = m[1]
		title = title[len(m[0]):]
	}
	for changed := true; changed; {
		changed = false
		for _, prefix := range noisePrefixes {
			if strings.HasPrefix(title, prefix) {
				title = strings.TrimSpace(strings.TrimPrefix(title, prefix))
				changed = true
			}
		}
	}
	return strings.TrimSpace(title), date
}

func isGenericTitle(title string) bool {
	lower := strings.ToLower(title)
	if strings.HasPrefix(lower, "items deferred") {
		return true
	}
	_, generic := genericSections[lower]
	return generic
}

// applyMetadata extracts **Date:** / **Author:** / **By:** lines from the
// given body lines. A date already derived from the heading is not
// overwritten.
func applyMetadata(entry *Entry, body []string) {
	for _, line := range body {
		trimmed := strings.ReplaceAll(strings.TrimSpace(line), "**", "")
		trimmed = strings.TrimPrefix(trimmed, "- ")
		m := metaFieldRe.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		value := strings.TrimSpace(m[2])
		switch strings.ToLower(m[1]) {
		case "date":
			if entry.Date == "" {
				entry.Date = value
			}
		case "author", "by":
			if entry.Author == "" {
				entry.Author = value
			}
		}
	}
}
