package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/calvinalkan/clsync/internal/changelog"
	"github.com/calvinalkan/clsync/internal/tracker"
)

// IssueCreator creates issues for entries and moves them through the
// workflow.
type IssueCreator struct {
	tracker  tracker.Client
	settings Settings
}

// NewIssueCreator returns an IssueCreator.
func NewIssueCreator(client tracker.Client, s Settings) *IssueCreator {
	return &IssueCreator{tracker: client, settings: s}
}

// Create creates the issue for entry, linked to epic unless it is zero.
// Failures wrap ErrCreation.
func (c *IssueCreator) Create(ctx context.Context, entry changelog.Entry, epic tracker.Epic) (string, error) {
	key, err := c.tracker.CreateIssue(ctx, tracker.IssueRequest{
		Project:     c.settings.Project,
		Title:       entry.Title,
		Description: entry.Description(),
		Type:        c.settings.IssueType(entry.Category),
		EpicKey:     epic.Key,
		Reporter:    c.settings.Identity,
		Assignee:    c.settings.Identity,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCreation, err)
	}

	return key, nil
}

// Advance applies the first transition whose name contains target, ignoring
// case. It reports false with a nil error when no such transition exists.
func (c *IssueCreator) Advance(ctx context.Context, issueKey, target string) (bool, error) {
	transitions, err := c.tracker.ListTransitions(ctx, issueKey)
	if err != nil {
		return false, err
	}

	want := strings.ToLower(target)

	for _, t := range transitions {
		if !strings.Contains(strings.ToLower(t.Name), want) {
			continue
		}

		if err := c.tracker.ExecuteTransition(ctx, issueKey, t.ID); err != nil {
			return false, err
		}

		return true, nil
	}

	return false, nil
}
