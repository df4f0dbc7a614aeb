// Package team composes the roster, session logs, decisions, and installed
// skills into the unified view consumed by the presentation layer. Parsing
// and merging are synchronous, pure functions over file contents; the
// aggregator memoizes one immutable snapshot at a time and replaces it
// wholesale, so overlapping invalidate/recompute cycles are safe to trigger
// in quick succession.
package team

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/teamlens-dev/teamlens/pkg/decisions"
	"github.com/teamlens-dev/teamlens/pkg/logger"
	"github.com/teamlens-dev/teamlens/pkg/roster"
	"github.com/teamlens-dev/teamlens/pkg/sessionlog"
	"github.com/teamlens-dev/teamlens/pkg/skills"
	"github.com/teamlens-dev/teamlens/pkg/telemetry"
	"github.com/teamlens-dev/teamlens/pkg/watcher"
)

// Paths locates the source files under one team directory.
type Paths struct {
	Dir           string
	RosterFile    string
	LogDirs       []string
	DecisionsFile string
	DecisionsDir  string
	SkillsDir     string
}

// DefaultPaths returns the conventional layout under the given team
// directory. Both recognized log-root names are listed; entries from
// whichever exist are merged.
func DefaultPaths(dir string) Paths {
	return Paths{
		Dir:           dir,
		RosterFile:    filepath.Join(dir, "team.md"),
		LogDirs:       []string{filepath.Join(dir, "sessions"), filepath.Join(dir, "session-logs")},
		DecisionsFile: filepath.Join(dir, "decisions.md"),
		DecisionsDir:  filepath.Join(dir, "decisions"),
		SkillsDir:     filepath.Join(dir, "skills"),
	}
}

// IssueTracker resolves external issue references to display titles. It is an
// optional, late-bound collaborator: when unset, log entries keep their raw
// references instead of failing.
type IssueTracker interface {
	IssueTitle(ctx context.Context, ref string) (string, error)
}

// Snapshot is one immutable merged view. Degraded is set when the roster
// document was absent and membership was derived from log participants.
type Snapshot struct {
	Roster     *roster.Roster     `json:"roster"`
	LogEntries []sessionlog.Entry `json:"logEntries"`
	Decisions  []decisions.Entry  `json:"decisions"`
	Installed  []skills.Skill     `json:"installedSkills"`
	Degraded   bool               `json:"degraded"`
	BuiltAt    time.Time          `json:"builtAt"`
	Warnings   []string           `json:"warnings,omitempty"`
}

// Aggregator owns the merged snapshot. All reads go through Snapshot; writes
// (skill installs/removals) and watcher batches invalidate it.
type Aggregator struct {
	paths     Paths
	catalog   *skills.Catalog
	installer *skills.Installer
	discovery *skills.Discovery
	issues    IssueTracker

	mu       sync.Mutex
	snapshot *Snapshot
	gen      uint64
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithCatalog overrides the skill catalog.
func WithCatalog(c *skills.Catalog) Option {
	return func(a *Aggregator) { a.catalog = c }
}

// WithIssueTracker sets the optional issue-tracking collaborator.
func WithIssueTracker(t IssueTracker) Option {
	return func(a *Aggregator) { a.issues = t }
}

// New creates an aggregator over the given team directory layout.
func New(paths Paths, opts ...Option) *Aggregator {
	a := &Aggregator{
		paths:     paths,
		catalog:   skills.NewCatalog(),
		installer: skills.NewInstaller(paths.SkillsDir),
		discovery: skills.NewDiscovery(paths.SkillsDir),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Snapshot returns the memoized merged view, recomputing it from the current
// files when invalidated. A recompute that is superseded by a newer
// invalidation mid-build is abandoned rather than published.
func (a *Aggregator) Snapshot(ctx context.Context) *Snapshot {
	a.mu.Lock()
	if a.snapshot != nil {
		snap := a.snapshot
		a.mu.Unlock()
		return snap
	}
	gen := a.gen
	a.mu.Unlock()

	snap := a.build(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.gen != gen {
		if a.snapshot != nil {
			return a.snapshot
		}
		return snap
	}
	a.snapshot = snap
	return snap
}

// Invalidate discards the memoized snapshot so the next read recomputes from
// current files.
func (a *Aggregator) Invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snapshot = nil
	a.gen++
}

// WatchInvalidate consumes watcher batches until the context is done,
// invalidating the snapshot and the catalog's listing cache on every batch.
func (a *Aggregator) WatchInvalidate(ctx context.Context, batches <-chan watcher.Batch) {
	go func() {
		for {
			select {
			case batch, ok := <-batches:
				if !ok {
					return
				}
				logger.G(ctx).WithField("batch_id", batch.ID).WithField("events", len(batch.Events)).Debug("invalidating on change batch")
				a.Invalidate()
				a.catalog.Invalidate()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// GetRoster returns the merged roster.
func (a *Aggregator) GetRoster(ctx context.Context) *roster.Roster {
	return a.Snapshot(ctx).Roster
}

// GetLogEntries returns all parsed session-log entries, oldest first.
func (a *Aggregator) GetLogEntries(ctx context.Context) []sessionlog.Entry {
	return a.Snapshot(ctx).LogEntries
}

// GetDecisions returns all decisions, newest first with undated entries last.
func (a *Aggregator) GetDecisions(ctx context.Context) []decisions.Entry {
	return a.Snapshot(ctx).Decisions
}

// ListSkills lists the remote catalog. Network failures propagate.
func (a *Aggregator) ListSkills(ctx context.Context, forceRefresh bool) ([]skills.Skill, error) {
	return a.catalog.List(ctx, forceRefresh)
}

// SearchSkills filters the catalog listing by substring match.
func (a *Aggregator) SearchSkills(ctx context.Context, query string) ([]skills.Skill, error) {
	return a.catalog.Search(ctx, query)
}

// InstallSkill resolves the skill's content and installs it under its slug,
// then invalidates the snapshot so the installed list refreshes.
func (a *Aggregator) InstallSkill(ctx context.Context, skill skills.Skill, force bool) (string, error) {
	resolved := a.catalog.ResolveContent(ctx, skill)
	dir, err := a.installer.Install(resolved, force)
	if err != nil {
		return "", err
	}
	a.Invalidate()
	return dir, nil
}

// InstallSkillBySlug looks the slug up in the catalog and installs the match.
func (a *Aggregator) InstallSkillBySlug(ctx context.Context, slug string, force bool) (string, error) {
	listing, err := a.catalog.List(ctx, false)
	if err != nil {
		return "", errors.Wrap(err, "failed to list skill catalog")
	}
	for _, skill := range listing {
		if skill.Slug == slug {
			return a.InstallSkill(ctx, skill, force)
		}
	}
	return "", errors.Errorf("skill %q not found in catalog", slug)
}

// RemoveSkill deletes an installed skill by slug and invalidates the
// snapshot.
func (a *Aggregator) RemoveSkill(slug string) error {
	if err := a.installer.Remove(slug); err != nil {
		return err
	}
	a.Invalidate()
	return nil
}

// build recomputes the merged view from the files on disk. It never fails:
// unparsable inputs degrade to warnings and the rest of the view is still
// produced.
func (a *Aggregator) build(ctx context.Context) *Snapshot {
	ctx, span := telemetry.Tracer("teamlens.team").Start(ctx, "aggregator.build")
	defer span.End()

	snap := &Snapshot{BuiltAt: time.Now()}

	entries, warn := sessionlog.Discover(a.paths.LogDirs...)
	if warn != nil {
		snap.Warnings = append(snap.Warnings, warn.Error())
	}
	a.enrichIssues(ctx, entries)
	snap.LogEntries = entries

	if content, err := os.ReadFile(a.paths.RosterFile); err == nil {
		snap.Roster = roster.Parse(string(content))
		overlayRuntime(snap.Roster, entries)
	} else {
		if !os.IsNotExist(err) {
			snap.Warnings = append(snap.Warnings, err.Error())
		}
		snap.Degraded = true
		snap.Roster = deriveFromLogs(entries)
		logger.G(ctx).WithField("roster", a.paths.RosterFile).Debug("roster document absent, deriving membership from session logs")
	}

	decs, warn := decisions.Discover(a.paths.DecisionsFile, a.paths.DecisionsDir)
	if warn != nil {
		snap.Warnings = append(snap.Warnings, warn.Error())
	}
	snap.Decisions = decs

	installed, err := a.discovery.Installed()
	if err != nil {
		snap.Warnings = append(snap.Warnings, err.Error())
	}
	snap.Installed = sortedSkills(installed)

	telemetry.AddEvent(ctx, "snapshot_built",
		attribute.Int("log_entries", len(snap.LogEntries)),
		attribute.Int("decisions", len(snap.Decisions)),
		attribute.Bool("degraded", snap.Degraded),
	)

	return snap
}

// overlayRuntime overlays a current-task signal from the most recent session
// log onto existing members. The roster document stays authoritative for
// membership, role, and declared status; log participants never invent new
// members.
func overlayRuntime(r *roster.Roster, entries []sessionlog.Entry) {
	latest, ok := latestEntry(entries)
	if !ok {
		return
	}
	active := participantSet(latest)
	for i := range r.Members {
		if _, ok := active[r.Members[i].Name]; ok {
			r.Members[i].CurrentTask = taskFromEntry(latest, r.Members[i].Name)
		}
	}
}

// deriveFromLogs derives a degraded-mode roster as the union of all session
// participants, ordered by first appearance. A member is working only when
// referenced as an active participant in the most recent log.
func deriveFromLogs(entries []sessionlog.Entry) *roster.Roster {
	var active map[string]struct{}
	if latest, ok := latestEntry(entries); ok {
		active = participantSet(latest)
	}

	r := &roster.Roster{}
	seen := make(map[string]struct{})
	for _, entry := range entries {
		for _, name := range entry.Participants {
			if _, dup := seen[name]; dup || name == "" {
				continue
			}
			seen[name] = struct{}{}
			member := roster.Member{Name: name, Role: "Member", Status: roster.StatusIdle}
			if _, ok := active[name]; ok {
				member.Status = roster.StatusWorking
				if latest, ok := latestEntry(entries); ok {
					member.CurrentTask = taskFromEntry(latest, name)
				}
			}
			r.Members = append(r.Members, member)
		}
	}
	return r
}

// latestEntry returns the most recent entry; Discover sorts ascending, so it
// is the last one.
func latestEntry(entries []sessionlog.Entry) (sessionlog.Entry, bool) {
	if len(entries) == 0 {
		return sessionlog.Entry{}, false
	}
	return entries[len(entries)-1], true
}

func participantSet(entry sessionlog.Entry) map[string]struct{} {
	set := make(map[string]struct{}, len(entry.Participants))
	for _, name := range entry.Participants {
		set[name] = struct{}{}
	}
	return set
}

func taskFromEntry(entry sessionlog.Entry, assignee string) *roster.Task {
	task := &roster.Task{
		ID:       entry.Date + "-" + entry.Topic,
		Title:    entry.Topic,
		Status:   roster.TaskInProgress,
		Assignee: assignee,
	}
	if started, err := time.Parse("2006-01-02", entry.Date); err == nil {
		task.StartedAt = &started
	}
	return task
}

// enrichIssues decorates related-issue references with tracker titles. The
// tracker is optional: when unset, or when a lookup fails, references pass
// through unchanged.
func (a *Aggregator) enrichIssues(ctx context.Context, entries []sessionlog.Entry) {
	if a.issues == nil {
		return
	}
	for i := range entries {
		for j, ref := range entries[i].RelatedIssues {
			title, err := a.issues.IssueTitle(ctx, ref)
			if err != nil || title == "" {
				continue
			}
			entries[i].RelatedIssues[j] = ref + ": " + title
		}
	}
}

func sortedSkills(installed map[string]*skills.Skill) []skills.Skill {
	out := make([]skills.Skill, 0, len(installed))
	for _, s := range installed {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}
