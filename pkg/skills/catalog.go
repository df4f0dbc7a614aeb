package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"

	"github.com/teamlens-dev/teamlens/pkg/logger"
)

// Source is one remote skill catalog.
type Source struct {
	Name string
	URL  string
}

// DefaultSources returns the two fixed catalog sources.
func DefaultSources() []Source {
	return []Source{
		{Name: "official", URL: "https://raw.githubusercontent.com/teamlens-dev/skill-catalog/main/catalog.json"},
		{Name: "community", URL: "https://raw.githubusercontent.com/teamlens-dev/community-skills/main/catalog.json"},
	}
}

// contentCandidates are tried in order when resolving a skill's instructional
// content at its source location.
var contentCandidates = []string{"instructions.md", skillFileName, "README.md"}

// FetchError is a network-level catalog failure. It always propagates to the
// caller; a failed fetch is never silently substituted with an empty listing.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// listing is the cache value object for one source: the decoded skills plus
// the fetch timestamp the TTL check runs against.
type listing struct {
	skills    []Skill
	fetchedAt time.Time
}

// Catalog fetches and caches remote skill listings. Each source is cached
// independently with a TTL; the cache is owned by the instance, so parallel
// catalogs (and parallel tests) never interfere.
type Catalog struct {
	sources []Source
	ttl     time.Duration
	client  *http.Client

	mu    sync.Mutex
	cache map[string]listing
}

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

// WithSources overrides the catalog sources.
func WithSources(sources ...Source) CatalogOption {
	return func(c *Catalog) { c.sources = sources }
}

// WithTTL overrides the listing cache TTL.
func WithTTL(ttl time.Duration) CatalogOption {
	return func(c *Catalog) { c.ttl = ttl }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) CatalogOption {
	return func(c *Catalog) { c.client = client }
}

// NewCatalog creates a catalog over the default sources with a 15 minute TTL.
func NewCatalog(opts ...CatalogOption) *Catalog {
	c := &Catalog{
		sources: DefaultSources(),
		ttl:     15 * time.Minute,
		client:  &http.Client{Timeout: 30 * time.Second},
		cache:   make(map[string]listing),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// catalogEntry is the wire format of one catalog listing entry.
type catalogEntry struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	SourceURL   string `json:"source_url"`
}

// List returns the merged listing of all sources. A source fetched within the
// TTL window is served from cache unless forceRefresh is set. A fetch failure
// propagates; the caller decides how to surface it.
func (c *Catalog) List(ctx context.Context, forceRefresh bool) ([]Skill, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var merged []Skill
	seen := make(map[string]string) // slug -> source name
	for _, source := range c.sources {
		cached, ok := c.cache[source.URL]
		if !ok || forceRefresh || time.Since(cached.fetchedAt) >= c.ttl {
			skills, err := c.fetchListing(ctx, source)
			if err != nil {
				return nil, err
			}
			cached = listing{skills: skills, fetchedAt: time.Now()}
			c.cache[source.URL] = cached
		}
		for _, skill := range cached.skills {
			if prev, dup := seen[skill.Slug]; dup {
				logger.G(ctx).WithField("slug", skill.Slug).WithField("source", source.Name).
					WithField("shadowed_by", prev).Warn("duplicate skill slug in catalog, keeping first")
				continue
			}
			seen[skill.Slug] = source.Name
			merged = append(merged, skill)
		}
	}
	return merged, nil
}

// Search filters the (possibly cached) full listing by a case-insensitive
// substring match on name and description.
func (c *Catalog) Search(ctx context.Context, query string) ([]Skill, error) {
	all, err := c.List(ctx, false)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return all, nil
	}

	var matched []Skill
	for _, skill := range all {
		haystack := strings.ToLower(skill.Name + " " + skill.Description)
		if strings.Contains(haystack, needle) {
			matched = append(matched, skill)
		}
	}
	return matched, nil
}

// Invalidate clears the listing cache outright. Used when local skill files
// change underneath the catalog.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]listing)
}

// ResolveContent resolves the skill's instructional content by trying the
// candidate resource names at its source location in order. If every
// candidate fails the skill falls back to a metadata-only stub; a stub is
// always a valid installable result, so this never returns an error.
func (c *Catalog) ResolveContent(ctx context.Context, skill Skill) Skill {
	base := strings.TrimSuffix(skill.SourceURL, "/")
	if base != "" {
		for _, candidate := range contentCandidates {
			body, contentType, err := c.fetch(ctx, base+"/"+candidate)
			if err != nil {
				logger.G(ctx).WithError(err).WithField("candidate", candidate).Debug("skill content candidate failed")
				continue
			}
			content := string(body)
			if strings.Contains(contentType, "text/html") {
				content = htmlToMarkdown(ctx, content)
			}
			skill.Content = content
			return skill
		}
	}

	skill.Content = fmt.Sprintf("# %s\n\n%s\n\n> Skill content could not be fetched from %s; this is a metadata-only stub.\n",
		skill.Name, skill.Description, skill.SourceURL)
	return skill
}

func (c *Catalog) fetchListing(ctx context.Context, source Source) ([]Skill, error) {
	body, _, err := c.fetch(ctx, source.URL)
	if err != nil {
		return nil, err
	}

	var entries []catalogEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, errors.Wrapf(err, "malformed catalog listing from %s", source.Name)
	}

	skills := make([]Skill, 0, len(entries))
	for _, e := range entries {
		if e.Name == "" {
			continue
		}
		skills = append(skills, Skill{
			Name:        e.Name,
			Slug:        Slugify(e.Name),
			Description: e.Description,
			SourceURL:   e.SourceURL,
		})
	}
	return skills, nil
}

// fetch performs a GET with retries. Server errors and transport failures are
// retried with backoff; client errors are not.
func (c *Catalog) fetch(ctx context.Context, url string) ([]byte, string, error) {
	var body []byte
	var contentType string

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := c.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				ferr := &FetchError{URL: url, StatusCode: resp.StatusCode}
				if resp.StatusCode >= 500 {
					return ferr
				}
				return retry.Unrecoverable(ferr)
			}

			body, err = io.ReadAll(resp.Body)
			contentType = resp.Header.Get("Content-Type")
			return err
		},
		retry.Attempts(3),
		retry.Delay(200*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.G(ctx).WithError(err).WithField("attempt", n+1).WithField("url", url).Warn("retrying catalog fetch")
		}),
	)
	if err != nil {
		var ferr *FetchError
		if !errors.As(err, &ferr) {
			err = &FetchError{URL: url, Err: err}
		}
		return nil, "", err
	}
	return body, contentType, nil
}

func htmlToMarkdown(ctx context.Context, html string) string {
	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(html)
	if err != nil {
		logger.G(ctx).WithError(err).Warn("failed to convert HTML skill content, keeping raw HTML")
		return html
	}
	return markdown
}
