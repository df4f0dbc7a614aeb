package skills

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ErrAlreadyInstalled is returned when the target slug directory exists and
// force is not set. Callers detect it with errors.Is and may retry with
// force to overwrite.
var ErrAlreadyInstalled = errors.New("skill already installed")

// Installer writes skills under the skills root, one directory per slug.
type Installer struct {
	skillsDir string
}

// NewInstaller creates an installer over the given skills root.
func NewInstaller(skillsDir string) *Installer {
	return &Installer{skillsDir: skillsDir}
}

// Install writes the skill as {slug}/SKILL.md and returns the installed
// directory. An existing install with the same slug fails with
// ErrAlreadyInstalled unless force is set, in which case it is overwritten
// wholesale.
func (i *Installer) Install(skill Skill, force bool) (string, error) {
	slug := skill.Slug
	if slug == "" {
		slug = Slugify(skill.Name)
	}
	if slug == "" {
		return "", errors.Errorf("skill %q has no usable slug", skill.Name)
	}

	dir := filepath.Join(i.skillsDir, slug)
	if _, err := os.Stat(dir); err == nil {
		if !force {
			return "", errors.Wrapf(ErrAlreadyInstalled, "skill %q", slug)
		}
		if err := os.RemoveAll(dir); err != nil {
			return "", errors.Wrapf(err, "failed to replace skill %q", slug)
		}
	} else if !os.IsNotExist(err) {
		return "", errors.Wrapf(err, "failed to check skill directory %s", dir)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "failed to create skill directory")
	}

	doc, err := renderSkillFile(skill)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, skillFileName), []byte(doc), 0o644); err != nil {
		return "", errors.Wrap(err, "failed to write skill file")
	}
	return dir, nil
}

// Remove deletes the installed skill directory recursively.
func (i *Installer) Remove(slug string) error {
	dir := filepath.Join(i.skillsDir, slug)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return errors.Errorf("skill %q is not installed", slug)
		}
		return errors.Wrapf(err, "failed to check skill directory %s", dir)
	}
	return errors.Wrapf(os.RemoveAll(dir), "failed to remove skill %q", slug)
}

// renderSkillFile serializes the skill as YAML frontmatter plus the resolved
// content body.
func renderSkillFile(skill Skill) (string, error) {
	frontmatter, err := yaml.Marshal(Metadata{
		Name:        skill.Name,
		Description: skill.Description,
		Source:      skill.SourceURL,
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to serialize skill metadata")
	}

	body := skill.Content
	if body == "" {
		body = fmt.Sprintf("# %s\n\n%s\n", skill.Name, skill.Description)
	}
	return fmt.Sprintf("---\n%s---\n\n%s", frontmatter, body), nil
}
