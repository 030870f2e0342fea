package pipeline

import (
	"context"
	"strings"

	"github.com/calvinalkan/clsync/internal/tracker"
)

// DuplicateDetector finds existing issues under an epic with the same title.
type DuplicateDetector struct {
	tracker tracker.Client
	project string
}

// NewDuplicateDetector returns a DuplicateDetector for project.
func NewDuplicateDetector(client tracker.Client, project string) *DuplicateDetector {
	return &DuplicateDetector{tracker: client, project: project}
}

// Find returns issues under epic whose title equals title, ignoring case and
// surrounding whitespace. Lookup failures are returned as *ResolutionError.
func (d *DuplicateDetector) Find(ctx context.Context, epic tracker.Epic, title string) ([]tracker.IssueRef, error) {
	issues, err := d.tracker.ListIssuesUnderEpic(ctx, d.project, epic.Key)
	if err != nil {
		return nil, &ResolutionError{Op: "listing issues under " + epic.Key, Err: err}
	}

	want := strings.TrimSpace(title)

	var matches []tracker.IssueRef

	for _, issue := range issues {
		if strings.EqualFold(strings.TrimSpace(issue.Title), want) {
			matches = append(matches, issue)
		}
	}

	return matches, nil
}
