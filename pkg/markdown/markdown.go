// Package markdown provides the low-level primitives shared by the roster,
// session-log, and decision parsers: heading-bounded section extraction and
// table-row extraction over hand-edited markdown documents. The documents are
// loosely specified, so matching is deliberately tolerant; all the brittle
// pattern-matching lives here so the parsers above stay declarative.
package markdown

import (
	"regexp"
	"strings"
)

var headingRe = regexp.MustCompile(`^(#+)\s+(.*?)\s*$`)

// NormalizeLineEndings collapses CRLF and bare CR line endings to LF. It must
// run once, at the point text is first read, before any other primitive.
func NormalizeLineEndings(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// Heading represents a markdown heading line within a document.
type Heading struct {
	Level int    // count of leading '#'
	Text  string // heading text with the marker stripped
	Line  int    // 1-based line number
}

// ParseHeading parses a single line as a markdown heading. The second return
// value is false if the line is not a heading.
func ParseHeading(line string) (Heading, bool) {
	m := headingRe.FindStringSubmatch(line)
	if m == nil {
		return Heading{}, false
	}
	return Heading{Level: len(m[1]), Text: m[2]}, true
}

// Headings returns every heading in the document in order.
func Headings(doc string) []Heading {
	var out []Heading
	for i, line := range strings.Split(doc, "\n") {
		if h, ok := ParseHeading(line); ok {
			h.Line = i + 1
			out = append(out, h)
		}
	}
	return out
}

// ExtractSection returns the text between a heading matching name at the given
// nesting level and the next heading at the same or shallower level (or end of
// document). The heading-name match is case-insensitive. The second return
// value is false if no such heading exists.
func ExtractSection(doc, name string, level int) (string, bool) {
	lines := strings.Split(doc, "\n")
	start := -1
	for i, line := range lines {
		h, ok := ParseHeading(line)
		if !ok {
			continue
		}
		if start == -1 {
			if h.Level == level && strings.EqualFold(h.Text, name) {
				start = i + 1
			}
			continue
		}
		if h.Level <= level {
			return strings.Join(lines[start:i], "\n"), true
		}
	}
	if start == -1 {
		return "", false
	}
	return strings.Join(lines[start:], "\n"), true
}

// Row is one markdown table row zipped against the table header. Keys are the
// lower-cased header cells, so lookups are case-insensitive by construction.
type Row map[string]string

// ExtractTableRows extracts the rows of the first markdown table in the
// section. The first line beginning with '|' is the header row; separator rows
// (cells made only of '-' and ':') are skipped. Rows shorter than the header
// are zero-padded, longer rows are truncated to the header length.
func ExtractTableRows(section string) []Row {
	var header []string
	var rows []Row
	for _, line := range strings.Split(section, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "|") {
			continue
		}
		cells := splitCells(trimmed)
		if header == nil {
			header = make([]string, len(cells))
			for i, c := range cells {
				header[i] = strings.ToLower(c)
			}
			continue
		}
		if isSeparatorRow(cells) {
			continue
		}
		row := make(Row, len(header))
		for i, key := range header {
			if i < len(cells) {
				row[key] = cells[i]
			} else {
				row[key] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// Get returns the value for the given column name, matched case-insensitively.
func (r Row) Get(column string) string {
	return r[strings.ToLower(column)]
}

func splitCells(line string) []string {
	line = strings.TrimPrefix(line, "|")
	line = strings.TrimSuffix(line, "|")
	parts := strings.Split(line, "|")
	cells := make([]string, len(parts))
	for i, p := range parts {
		cells[i] = strings.TrimSpace(p)
	}
	return cells
}

func isSeparatorRow(cells []string) bool {
	for _, c := range cells {
		if c == "" {
			return false
		}
		if strings.Trim(c, "-:") != "" {
			return false
		}
	}
	return len(cells) > 0
}
