package github

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIssueRefParsing(t *testing.T) {
	tests := []struct {
		ref    string
		owner  string
		repo   string
		number string
	}{
		{"#42", "", "", "42"},
		{"octo/site#7", "octo", "site", "7"},
		{"my-org/my.repo#123", "my-org", "my.repo", "123"},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			m := issueRefRe.FindStringSubmatch(tt.ref)
			assert.NotNil(t, m)
			assert.Equal(t, tt.owner, m[1])
			assert.Equal(t, tt.repo, m[2])
			assert.Equal(t, tt.number, m[3])
		})
	}
}

func TestIssueTitleRejectsUnknownFormats(t *testing.T) {
	tracker := NewTracker(NewClient(context.Background(), ""), "octo", "site")

	for _, ref := range []string{"PROJ-123", "issue 42", "#", "42"} {
		_, err := tracker.IssueTitle(context.Background(), ref)
		assert.Error(t, err, ref)
	}
}

func TestIssueTitleRequiresRepository(t *testing.T) {
	tracker := NewTracker(NewClient(context.Background(), ""), "", "")

	_, err := tracker.IssueTitle(context.Background(), "#42")
	assert.ErrorContains(t, err, "no repository configured")
}
