// Package github resolves issue references found in session logs against the
// GitHub API. It implements the aggregator's issue-tracking collaborator for
// references of the form #123 or owner/repo#123.
package github

import (
	"context"
	"regexp"
	"strconv"
	"sync"

	"github.com/google/go-github/v57/github"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/teamlens-dev/teamlens/pkg/logger"
)

// Client wraps the GitHub API client with authentication handling
type Client struct {
	client *github.Client
}

// NewClient creates a new GitHub client. An empty token falls back to
// unauthenticated access with restricted rate limits.
func NewClient(ctx context.Context, token string) *Client {
	log := logger.G(ctx)

	if token == "" {
		log.Warn("No GitHub token provided - API rate limits will be restricted")
		return &Client{
			client: github.NewClient(nil),
		}
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(ctx, ts)

	log.Debug("GitHub client initialized with authentication")
	return &Client{
		client: github.NewClient(tc),
	}
}

// GetClient returns the underlying GitHub client
func (c *Client) GetClient() *github.Client {
	return c.client
}

var issueRefRe = regexp.MustCompile(`^(?:([\w.-]+)/([\w.-]+))?#(\d+)$`)

// Tracker resolves issue references to titles. Bare #N references resolve
// against the default owner/repo; owner/repo#N references name their target
// explicitly. Resolved titles are cached for the tracker's lifetime.
type Tracker struct {
	client *Client
	owner  string
	repo   string

	mu    sync.Mutex
	cache map[string]string
}

// NewTracker creates a tracker resolving bare references against the given
// default repository.
func NewTracker(client *Client, owner, repo string) *Tracker {
	return &Tracker{
		client: client,
		owner:  owner,
		repo:   repo,
		cache:  make(map[string]string),
	}
}

// IssueTitle resolves one reference to its issue title. Unrecognized
// reference formats return an error so callers can keep the raw reference.
func (t *Tracker) IssueTitle(ctx context.Context, ref string) (string, error) {
	m := issueRefRe.FindStringSubmatch(ref)
	if m == nil {
		return "", errors.Errorf("unrecognized issue reference %q", ref)
	}

	owner, repo := m[1], m[2]
	if owner == "" {
		owner, repo = t.owner, t.repo
	}
	if owner == "" || repo == "" {
		return "", errors.Errorf("no repository configured for reference %q", ref)
	}

	number, err := strconv.Atoi(m[3])
	if err != nil {
		return "", errors.Wrapf(err, "invalid issue number in %q", ref)
	}

	t.mu.Lock()
	if title, ok := t.cache[ref]; ok {
		t.mu.Unlock()
		return title, nil
	}
	t.mu.Unlock()

	issue, _, err := t.client.GetClient().Issues.Get(ctx, owner, repo, number)
	if err != nil {
		return "", errors.Wrapf(err, "failed to fetch issue %s/%s#%d", owner, repo, number)
	}

	title := issue.GetTitle()
	t.mu.Lock()
	t.cache[ref] = title
	t.mu.Unlock()

	logger.G(ctx).WithField("ref", ref).WithField("title", title).Debug("resolved issue reference")
	return title, nil
}
