package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLineEndings(t *testing.T) {
	assert.Equal(t, "a\nb\nc\n", NormalizeLineEndings("a\r\nb\rc\n"))
	assert.Equal(t, "plain\n", NormalizeLineEndings("plain\n"))
}

func TestExtractSection(t *testing.T) {
	doc := `# Team

## Members

| Name | Role |
|------|------|
| Linus | Backend |

## Coding Agent

| Name | Role |
|------|------|
| Basher | Agent |

# Appendix

trailing
`

	t.Run("bounded by next same-level heading", func(t *testing.T) {
		section, ok := ExtractSection(doc, "Members", 2)
		require.True(t, ok)
		assert.Contains(t, section, "| Linus | Backend |")
		assert.NotContains(t, section, "Basher")
	})

	t.Run("bounded by shallower heading", func(t *testing.T) {
		section, ok := ExtractSection(doc, "Coding Agent", 2)
		require.True(t, ok)
		assert.Contains(t, section, "Basher")
		assert.NotContains(t, section, "Appendix")
		assert.NotContains(t, section, "trailing")
	})

	t.Run("case-insensitive name match", func(t *testing.T) {
		_, ok := ExtractSection(doc, "members", 2)
		assert.True(t, ok)
	})

	t.Run("runs to end of document", func(t *testing.T) {
		section, ok := ExtractSection(doc, "Appendix", 1)
		require.True(t, ok)
		assert.Contains(t, section, "trailing")
	})

	t.Run("missing heading", func(t *testing.T) {
		_, ok := ExtractSection(doc, "Roster", 2)
		assert.False(t, ok)
	})

	t.Run("wrong level does not match", func(t *testing.T) {
		_, ok := ExtractSection(doc, "Members", 3)
		assert.False(t, ok)
	})

	t.Run("deeper headings stay inside the section", func(t *testing.T) {
		nested := "## Outer\n\n### Inner\n\nbody\n\n## Next\n"
		section, ok := ExtractSection(nested, "Outer", 2)
		require.True(t, ok)
		assert.Contains(t, section, "### Inner")
		assert.Contains(t, section, "body")
		assert.NotContains(t, section, "Next")
	})
}

func TestExtractTableRows(t *testing.T) {
	t.Run("header lookup is case-insensitive", func(t *testing.T) {
		rows := ExtractTableRows("| Name | ROLE |\n|---|---|\n| Linus | Backend |\n")
		require.Len(t, rows, 1)
		assert.Equal(t, "Linus", rows[0].Get("name"))
		assert.Equal(t, "Backend", rows[0].Get("Role"))
	})

	t.Run("separator rows are skipped", func(t *testing.T) {
		rows := ExtractTableRows("| a | b |\n| :--- | ---: |\n| 1 | 2 |\n")
		require.Len(t, rows, 1)
		assert.Equal(t, "1", rows[0].Get("a"))
	})

	t.Run("short rows are zero-padded", func(t *testing.T) {
		rows := ExtractTableRows("| a | b | c |\n|---|---|---|\n| 1 | 2 |\n")
		require.Len(t, rows, 1)
		assert.Equal(t, "2", rows[0].Get("b"))
		assert.Equal(t, "", rows[0].Get("c"))
	})

	t.Run("long rows are truncated to the header", func(t *testing.T) {
		rows := ExtractTableRows("| a |\n|---|\n| 1 | extra |\n")
		require.Len(t, rows, 1)
		assert.Equal(t, "1", rows[0].Get("a"))
		assert.Len(t, rows[0], 1)
	})

	t.Run("non-table lines are ignored", func(t *testing.T) {
		rows := ExtractTableRows("prose\n\n| a |\n|---|\n| 1 |\nmore prose\n")
		require.Len(t, rows, 1)
	})

	t.Run("no table yields no rows", func(t *testing.T) {
		assert.Empty(t, ExtractTableRows("just prose\n"))
	})
}

func TestHeadings(t *testing.T) {
	hs := Headings("# One\n\ntext\n\n### 2026-01-01 Three\n")
	require.Len(t, hs, 2)
	assert.Equal(t, Heading{Level: 1, Text: "One", Line: 1}, hs[0])
	assert.Equal(t, Heading{Level: 3, Text: "2026-01-01 Three", Line: 5}, hs[1])
}
