// Package tracker defines the issue-tracker collaborator used by the sync
// pipeline. Implementations live elsewhere ([jira.Client] in production,
// [trackertest.Fake] in tests).
package tracker

import "context"

// Epic is a grouping issue. The zero Epic means "no epic".
type Epic struct {
	Key  string
	Name string
}

// IsZero reports whether no epic was chosen.
func (e Epic) IsZero() bool {
	return e.Key == ""
}

// IssueRef identifies an existing issue by key and title.
type IssueRef struct {
	Key   string
	Title string
}

// Version is a release version that can be attached to an epic.
type Version struct {
	ID   string
	Name string
}

// Transition is a workflow step available on an issue.
type Transition struct {
	ID   string
	Name string
}

// EpicRequest describes an epic to create.
type EpicRequest struct {
	Project     string
	Name        string
	Description string   // optional
	Versions    []string // fix version names, optional
	Components  []string // optional
	Reporter    string
	Assignee    string
}

// IssueRequest describes an issue to create.
type IssueRequest struct {
	Project     string
	Title       string
	Description string
	Type        string // tracker issue type name, e.g. "Story"
	EpicKey     string // optional
	Reporter    string
	Assignee    string
}

// Client is the issue-tracker surface the pipeline depends on. Every call may
// fail with a transport or validation error.
type Client interface {
	ListEpics(ctx context.Context, project, component string) ([]Epic, error)
	ListIssuesUnderEpic(ctx context.Context, project, epicKey string) ([]IssueRef, error)
	ListUnreleasedVersions(ctx context.Context, project string) ([]Version, error)
	CreateEpic(ctx context.Context, req EpicRequest) (string, error)
	CreateIssue(ctx context.Context, req IssueRequest) (string, error)
	ListTransitions(ctx context.Context, issueKey string) ([]Transition, error)
	ExecuteTransition(ctx context.Context, issueKey, transitionID string) error
}
