package skills

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
)

const skillFileName = "SKILL.md"

// Discovery reads installed skills from the skills root. Each skill lives at
// {slug}/SKILL.md; the directory name is the slug and is authoritative for
// identity, the frontmatter supplies the display name and description.
type Discovery struct {
	skillsDir string
}

// NewDiscovery creates a discovery over the given skills root.
func NewDiscovery(skillsDir string) *Discovery {
	return &Discovery{skillsDir: skillsDir}
}

// Installed returns every installed skill keyed by slug. A missing skills
// root yields an empty map: no skills are installed yet.
func (d *Discovery) Installed() (map[string]*Skill, error) {
	skills := make(map[string]*Skill)

	entries, err := os.ReadDir(d.skillsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return skills, nil
		}
		return nil, errors.Wrapf(err, "failed to read skills directory %s", d.skillsDir)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(d.skillsDir, entry.Name())
		skill, err := loadSkill(filepath.Join(dir, skillFileName))
		if err != nil {
			continue
		}
		skill.Slug = entry.Name()
		skill.Directory = dir
		skills[skill.Slug] = skill
	}

	return skills, nil
}

// Get returns a single installed skill by slug.
func (d *Discovery) Get(slug string) (*Skill, error) {
	skills, err := d.Installed()
	if err != nil {
		return nil, err
	}
	skill, exists := skills[slug]
	if !exists {
		return nil, errors.Errorf("skill %q is not installed", slug)
	}
	return skill, nil
}

// loadSkill parses one SKILL.md file: YAML frontmatter for metadata, the rest
// of the document as content.
func loadSkill(path string) (*Skill, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read skill file")
	}

	md := goldmark.New(goldmark.WithExtensions(meta.Meta))

	var buf bytes.Buffer
	pctx := parser.NewContext()
	if err := md.Convert(content, &buf, parser.WithContext(pctx)); err != nil {
		return nil, errors.Wrap(err, "failed to parse skill markdown")
	}

	metaData := meta.Get(pctx)
	if metaData == nil {
		return nil, errors.New("missing frontmatter")
	}

	name, _ := metaData["name"].(string)
	description, _ := metaData["description"].(string)
	source, _ := metaData["source"].(string)
	if name == "" {
		return nil, errors.New("skill name is required in frontmatter")
	}

	return &Skill{
		Name:        name,
		Description: description,
		SourceURL:   source,
		Content:     stripFrontmatter(string(content)),
	}, nil
}

// stripFrontmatter removes the leading key: value frontmatter delimited by
// --- lines and returns the body.
func stripFrontmatter(content string) string {
	if !strings.HasPrefix(content, "---") {
		return content
	}

	lines := strings.Split(content, "\n")
	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			end = i
			break
		}
	}
	if end == -1 {
		return content
	}
	return strings.TrimLeft(strings.Join(lines[end+1:], "\n"), "\n")
}
