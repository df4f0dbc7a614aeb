// Package skills manages reusable skill documents: discovery of locally
// installed skills, a TTL-cached catalog of remote skill listings, content
// resolution from source URLs, and slug-keyed installs with duplicate
// protection. Skills are directories containing a SKILL.md file with YAML
// frontmatter describing the skill.
package skills

import (
	"regexp"
	"strings"
)

// Skill is one catalog entry or installed skill. Slug is derived from the
// name, filesystem-safe, and is the installed directory name; two catalog
// entries may share a display name but never a slug. Content is absent until
// explicitly resolved.
type Skill struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	SourceURL   string `json:"sourceUrl,omitempty"`
	Content     string `json:"content,omitempty"`
	Directory   string `json:"-"`
}

// Metadata is the YAML frontmatter in SKILL.md files.
type Metadata struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Source      string `yaml:"source,omitempty"`
}

var slugSeparators = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives the filesystem-safe slug for a skill name.
func Slugify(name string) string {
	slug := slugSeparators.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}
