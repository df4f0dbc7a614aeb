package decisions

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const decisionsDoc = `# Decision Log

## 2026-02-10: Adopt markdown source of truth

**Author:** Danny

All team state lives in markdown files.

### Context

Some context, not a decision.

### 2026-02-15: Dashboard Fixes

**By:** Rusty

Fix the dashboard refresh behaviour.

### Implementation notes

Depth-3 heading without a date prefix, not a decision.

## Open Questions

Structural subsection, filtered.

## Items deferred to next cycle

Also filtered.

# Decision: Freeze the API surface

**Date:** 2026-02-20

No new endpoints until the parser settles.

# Appendix

Not a decision heading.
`

func TestParseDocument(t *testing.T) {
	entries := ParseDocument(decisionsDoc, "decisions.md")
	require.Len(t, entries, 3)

	byTitle := map[string]Entry{}
	for _, e := range entries {
		byTitle[e.Title] = e
	}

	adopt, ok := byTitle["Adopt markdown source of truth"]
	require.True(t, ok)
	assert.Equal(t, "2026-02-10", adopt.Date)
	assert.Equal(t, "Danny", adopt.Author)
	assert.Contains(t, adopt.Content, "## 2026-02-10: Adopt markdown source of truth")
	// the depth-2 section runs past its depth-3 subsections
	assert.Contains(t, adopt.Content, "### Context")

	dashboard, ok := byTitle["Dashboard Fixes"]
	require.True(t, ok)
	assert.Equal(t, "2026-02-15", dashboard.Date)
	assert.Equal(t, "Rusty", dashboard.Author)

	freeze, ok := byTitle["Freeze the API surface"]
	require.True(t, ok)
	assert.Equal(t, "2026-02-20", freeze.Date)
	assert.NotZero(t, freeze.LineNumber)
}

func TestParseDocumentFiltersNoise(t *testing.T) {
	entries := ParseDocument(decisionsDoc, "decisions.md")
	for _, e := range entries {
		assert.NotEqual(t, "Context", e.Title)
		assert.NotEqual(t, "Open Questions", e.Title)
		assert.NotContains(t, e.Title, "Items deferred")
		assert.NotEqual(t, "Implementation notes", e.Title)
		assert.NotEqual(t, "Appendix", e.Title)
	}
}

func TestSplitHeading(t *testing.T) {
	cases := []struct {
		text  string
		title string
		date  string
	}{
		{"2026-02-15: Dashboard Fixes", "Dashboard Fixes", "2026-02-15"},
		{"2026-02-15/2 — Second of the day", "Second of the day", "2026-02-15"},
		{"Decision: Freeze the API surface", "Freeze the API surface", ""},
		{"User directive — Decision: Ship it", "Ship it", ""},
		{"Plain title", "Plain title", ""},
	}
	for _, tc := range cases {
		title, date := splitHeading(tc.text)
		assert.Equal(t, tc.title, title, tc.text)
		assert.Equal(t, tc.date, date, tc.text)
	}
}

func TestParseStandalone(t *testing.T) {
	t.Run("depth-1 title preferred", func(t *testing.T) {
		doc := "## Early subsection\n\n# 2026-03-01: Real title\n\nAuthor: Linus\n\nbody\n"
		entry, ok := ParseStandalone(doc, "d.md", time.Now())
		require.True(t, ok)
		assert.Equal(t, "Real title", entry.Title)
		assert.Equal(t, "2026-03-01", entry.Date)
		assert.Equal(t, "Linus", entry.Author)
	})

	t.Run("falls back to depth-2 heading", func(t *testing.T) {
		doc := "## Only heading\n\nbody\n"
		entry, ok := ParseStandalone(doc, "d.md", time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC))
		require.True(t, ok)
		assert.Equal(t, "Only heading", entry.Title)
		assert.Equal(t, "2026-01-05", entry.Date)
	})

	t.Run("metadata anywhere in the file", func(t *testing.T) {
		lines := "# Title\n\n" + "filler\n\n filler\n\n filler\n\n filler\n\n filler\n\n filler\n\n filler\n\n filler\n\n filler\n\n filler\n\n filler\n\n" + "**Date:** 2026-04-01\n**By:** Basher\n"
		entry, ok := ParseStandalone(lines, "d.md", time.Now())
		require.True(t, ok)
		assert.Equal(t, "2026-04-01", entry.Date)
		assert.Equal(t, "Basher", entry.Author)
	})

	t.Run("no heading at all", func(t *testing.T) {
		_, ok := ParseStandalone("just prose\n", "d.md", time.Now())
		assert.False(t, ok)
	})
}

func TestMetadataWindowInDocument(t *testing.T) {
	doc := "## Windowed decision\n\n" +
		"a\nb\nc\nd\ne\nf\ng\nh\ni\nj\nk\nl\nm\nn\no\np\nq\nr\ns\nt\n\n" +
		"**Date:** 2026-05-01\n"
	entries := ParseDocument(doc, "decisions.md")
	require.Len(t, entries, 1)
	// the Date line sits past the 20-line window, so it is not picked up
	assert.Empty(t, entries[0].Date)
}

func TestSortDateDescendingUndatedLast(t *testing.T) {
	base := []Entry{
		{Title: "a", Date: "2026-01-01"},
		{Title: "b", Date: "2026-03-01"},
		{Title: "undated-1"},
		{Title: "c", Date: "2026-02-01"},
		{Title: "undated-2"},
	}

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 10; i++ {
		entries := make([]Entry, len(base))
		copy(entries, base)
		rng.Shuffle(len(entries), func(a, b int) { entries[a], entries[b] = entries[b], entries[a] })

		Sort(entries)

		var dates []string
		for _, e := range entries {
			dates = append(dates, e.Date)
		}
		assert.Equal(t, []string{"2026-03-01", "2026-02-01", "2026-01-01", "", ""}, dates)
	}
}

func TestSortStableForTies(t *testing.T) {
	entries := []Entry{
		{Title: "first", Date: "2026-01-01"},
		{Title: "second", Date: "2026-01-01"},
	}
	Sort(entries)
	assert.Equal(t, "first", entries[0].Title)
	assert.Equal(t, "second", entries[1].Title)
}

func TestDiscover(t *testing.T) {
	tmp := t.TempDir()
	docPath := filepath.Join(tmp, "decisions.md")
	dirPath := filepath.Join(tmp, "decisions")
	require.NoError(t, os.WriteFile(docPath, []byte(decisionsDoc), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dirPath, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dirPath, "nested", "standalone.md"),
		[]byte("# 2026-02-18: Nested standalone\n\nbody\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dirPath, "ignore.txt"), []byte("not markdown"), 0o644))

	entries, err := Discover(docPath, dirPath)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	// merged list sorted by date descending
	assert.Equal(t, "Freeze the API surface", entries[0].Title)
	assert.Equal(t, "Nested standalone", entries[1].Title)
	assert.Equal(t, "Dashboard Fixes", entries[2].Title)
	assert.Equal(t, "Adopt markdown source of truth", entries[3].Title)
}

func TestDiscoverMissingInputs(t *testing.T) {
	tmp := t.TempDir()
	entries, err := Discover(filepath.Join(tmp, "decisions.md"), filepath.Join(tmp, "decisions"))
	assert.NoError(t, err)
	assert.Empty(t, entries)
}
