// Package roster parses the canonical roster document (team.md) into the
// team membership model. The document is human-edited markdown with a
// "Members" (or legacy "Roster") table and a "Coding Agent" table. Rows with
// a Coordinator role route work but are not tracked as active members, so
// they are excluded here.
package roster

import (
	"regexp"
	"strings"
	"time"

	"github.com/teamlens-dev/teamlens/pkg/markdown"
)

// Status is the derived runtime status of a member. The human-authored badge
// vocabulary is richer than this; it is intentionally collapsed onto a binary
// signal (anything carrying a working-type marker maps to working, everything
// else to idle).
type Status string

const (
	StatusWorking Status = "working"
	StatusIdle    Status = "idle"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
)

// Task is a unit of work assigned to a member. Assignee is a weak reference:
// it is not validated against the roster at parse time.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
	Assignee    string     `json:"assignee"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Member is one tracked team member. Members are value snapshots: every
// roster read produces fresh ones, nothing mutates them in place.
type Member struct {
	Name        string `json:"name"`
	Role        string `json:"role"`
	Status      Status `json:"status"`
	CurrentTask *Task  `json:"currentTask,omitempty"`
}

// Roster is the top-level aggregate of team membership.
type Roster struct {
	Members    []Member `json:"members"`
	Repository string   `json:"repository,omitempty"`
	Owner      string   `json:"owner,omitempty"`
}

// coordinatorRole is excluded from the active roster.
const coordinatorRole = "coordinator"

var metaLineRe = regexp.MustCompile(`(?mi)^\*{0,2}(repository|owner)\*{0,2}\s*:\s*(.+?)\s*$`)

// Parse extracts the roster from the document text. Malformed rows are
// skipped, never an error: the document is hand-edited and the aggregation
// must stay best-effort.
func Parse(doc string) *Roster {
	doc = markdown.NormalizeLineEndings(doc)

	r := &Roster{}
	for _, m := range metaLineRe.FindAllStringSubmatch(doc, -1) {
		switch strings.ToLower(m[1]) {
		case "repository":
			r.Repository = m[2]
		case "owner":
			r.Owner = m[2]
		}
	}

	section, ok := markdown.ExtractSection(doc, "Members", 2)
	if !ok {
		section, ok = markdown.ExtractSection(doc, "Roster", 2)
	}
	if ok {
		r.Members = append(r.Members, parseMemberTable(section)...)
	}

	if agents, ok := markdown.ExtractSection(doc, "Coding Agent", 2); ok {
		r.Members = append(r.Members, parseMemberTable(agents)...)
	}

	return r
}

func parseMemberTable(section string) []Member {
	var members []Member
	for _, row := range markdown.ExtractTableRows(section) {
		name := row.Get("name")
		role := row.Get("role")
		if name == "" || role == "" {
			continue
		}
		if strings.EqualFold(role, coordinatorRole) {
			continue
		}
		members = append(members, Member{
			Name:   name,
			Role:   role,
			Status: NormalizeBadge(row.Get("status")),
		})
	}
	return members
}

// NormalizeBadge collapses free-form status badge text onto the binary
// runtime status. Unrecognized and absent badges map to idle.
func NormalizeBadge(badge string) Status {
	lower := strings.ToLower(badge)
	if strings.Contains(lower, "working") || strings.Contains(lower, "🔨") {
		return StatusWorking
	}
	return StatusIdle
}
