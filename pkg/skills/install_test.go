package skills

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstall(t *testing.T) {
	tmp := t.TempDir()
	installer := NewInstaller(tmp)

	skill := Skill{
		Name:        "Code Review",
		Description: "Review pull requests",
		SourceURL:   "https://example.com/skills/code-review",
		Content:     "# Code Review\n\nSteps here.\n",
	}

	dir, err := installer.Install(skill, false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmp, "code-review"), dir)

	written, err := os.ReadFile(filepath.Join(dir, "SKILL.md"))
	require.NoError(t, err)
	assert.Contains(t, string(written), "name: Code Review")
	assert.Contains(t, string(written), "source: https://example.com/skills/code-review")
	assert.Contains(t, string(written), "Steps here.")
}

func TestInstallDuplicateProtection(t *testing.T) {
	tmp := t.TempDir()
	installer := NewInstaller(tmp)
	skill := Skill{Name: "Code Review", Content: "first install\n"}

	_, err := installer.Install(skill, false)
	require.NoError(t, err)

	_, err = installer.Install(skill, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAlreadyInstalled))

	skill.Content = "second install\n"
	dir, err := installer.Install(skill, true)
	require.NoError(t, err)

	written, err := os.ReadFile(filepath.Join(dir, "SKILL.md"))
	require.NoError(t, err)
	assert.Contains(t, string(written), "second install")
	assert.NotContains(t, string(written), "first install")
}

func TestInstallRoundTripsThroughDiscovery(t *testing.T) {
	tmp := t.TempDir()
	installer := NewInstaller(tmp)

	_, err := installer.Install(Skill{
		Name:        "Release Notes",
		Description: "Draft release notes",
		SourceURL:   "https://example.com/skills/release-notes",
		Content:     "# Release Notes\n\nHow to draft them.\n",
	}, false)
	require.NoError(t, err)

	installed, err := NewDiscovery(tmp).Installed()
	require.NoError(t, err)
	require.Len(t, installed, 1)

	skill := installed["release-notes"]
	require.NotNil(t, skill)
	assert.Equal(t, "Release Notes", skill.Name)
	assert.Equal(t, "Draft release notes", skill.Description)
	assert.Equal(t, "https://example.com/skills/release-notes", skill.SourceURL)
	assert.Contains(t, skill.Content, "How to draft them.")
	assert.NotContains(t, skill.Content, "---", "frontmatter must be stripped from content")
}

func TestInstallEmptySlug(t *testing.T) {
	installer := NewInstaller(t.TempDir())
	_, err := installer.Install(Skill{Name: "!!!"}, false)
	assert.Error(t, err)
}

func TestRemove(t *testing.T) {
	tmp := t.TempDir()
	installer := NewInstaller(tmp)

	_, err := installer.Install(Skill{Name: "Deploys"}, false)
	require.NoError(t, err)

	require.NoError(t, installer.Remove("deploys"))
	_, err = os.Stat(filepath.Join(tmp, "deploys"))
	assert.True(t, os.IsNotExist(err))

	err = installer.Remove("deploys")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not installed")
}

func TestDiscoveryIgnoresMalformedSkills(t *testing.T) {
	tmp := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(tmp, "no-frontmatter"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "no-frontmatter", "SKILL.md"),
		[]byte("# Just a body\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(tmp, "empty-dir"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "stray-file.md"), []byte("stray"), 0o644))

	installed, err := NewDiscovery(tmp).Installed()
	require.NoError(t, err)
	assert.Empty(t, installed)
}

func TestDiscoveryMissingRoot(t *testing.T) {
	installed, err := NewDiscovery(filepath.Join(t.TempDir(), "nope")).Installed()
	require.NoError(t, err)
	assert.Empty(t, installed)
}
