// Package trackertest provides an in-memory tracker.Client for tests.
package trackertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/calvinalkan/clsync/internal/tracker"
)

// firstKeyNumber is the number of the first key handed out by a Fake.
const firstKeyNumber = 100

// ExecutedTransition records one ExecuteTransition call.
type ExecutedTransition struct {
	IssueKey     string
	TransitionID string
}

// Fake is a scriptable tracker.Client. Set the *Err fields to make the
// corresponding call fail. Created epics and issues are recorded and epics
// become visible to later ListEpics calls.
type Fake struct {
	mu sync.Mutex

	Epics       []tracker.Epic
	EpicIssues  map[string][]tracker.IssueRef
	Versions    []tracker.Version
	Transitions []tracker.Transition

	ListEpicsErr         error
	ListIssuesErr        error
	ListVersionsErr      error
	CreateEpicErr        error
	CreateIssueErr       error
	ListTransitionsErr   error
	ExecuteTransitionErr error

	// CreateIssueErrs fails CreateIssue only for the listed titles.
	CreateIssueErrs map[string]error

	CreatedEpics  []tracker.EpicRequest
	CreatedIssues []tracker.IssueRequest
	Executed      []ExecutedTransition
	Calls         []string

	next int
}

var _ tracker.Client = (*Fake)(nil)

// NewFake returns an empty Fake.
func NewFake() *Fake {
	return &Fake{EpicIssues: map[string][]tracker.IssueRef{}}
}

func (f *Fake) record(call string) {
	f.Calls = append(f.Calls, call)
}

func (f *Fake) key(project string) string {
	key := fmt.Sprintf("%s-%d", project, firstKeyNumber+f.next)
	f.next++

	return key
}

// CallCount returns how many times the named method was called.
func (f *Fake) CallCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0

	for _, c := range f.Calls {
		if c == method {
			n++
		}
	}

	return n
}

func (f *Fake) ListEpics(_ context.Context, _, _ string) ([]tracker.Epic, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("ListEpics")

	if f.ListEpicsErr != nil {
		return nil, f.ListEpicsErr
	}

	return append([]tracker.Epic(nil), f.Epics...), nil
}

func (f *Fake) ListIssuesUnderEpic(_ context.Context, _, epicKey string) ([]tracker.IssueRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("ListIssuesUnderEpic")

	if f.ListIssuesErr != nil {
		return nil, f.ListIssuesErr
	}

	return append([]tracker.IssueRef(nil), f.EpicIssues[epicKey]...), nil
}

func (f *Fake) ListUnreleasedVersions(_ context.Context, _ string) ([]tracker.Version, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("ListUnreleasedVersions")

	if f.ListVersionsErr != nil {
		return nil, f.ListVersionsErr
	}

	return append([]tracker.Version(nil), f.Versions...), nil
}

func (f *Fake) CreateEpic(_ context.Context, req tracker.EpicRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("CreateEpic")

	if f.CreateEpicErr != nil {
		return "", f.CreateEpicErr
	}

	key := f.key(req.Project)
	f.CreatedEpics = append(f.CreatedEpics, req)
	f.Epics = append(f.Epics, tracker.Epic{Key: key, Name: req.Name})

	return key, nil
}

func (f *Fake) CreateIssue(_ context.Context, req tracker.IssueRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("CreateIssue")

	if f.CreateIssueErr != nil {
		return "", f.CreateIssueErr
	}

	if err := f.CreateIssueErrs[req.Title]; err != nil {
		return "", err
	}

	key := f.key(req.Project)
	f.CreatedIssues = append(f.CreatedIssues, req)

	if req.EpicKey != "" {
		if f.EpicIssues == nil {
			f.EpicIssues = map[string][]tracker.IssueRef{}
		}

		f.EpicIssues[req.EpicKey] = append(f.EpicIssues[req.EpicKey], tracker.IssueRef{Key: key, Title: req.Title})
	}

	return key, nil
}

func (f *Fake) ListTransitions(_ context.Context, _ string) ([]tracker.Transition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("ListTransitions")

	if f.ListTransitionsErr != nil {
		return nil, f.ListTransitionsErr
	}

	return append([]tracker.Transition(nil), f.Transitions...), nil
}

func (f *Fake) ExecuteTransition(_ context.Context, issueKey, transitionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("ExecuteTransition")

	if f.ExecuteTransitionErr != nil {
		return f.ExecuteTransitionErr
	}

	f.Executed = append(f.Executed, ExecutedTransition{IssueKey: issueKey, TransitionID: transitionID})

	return nil
}
