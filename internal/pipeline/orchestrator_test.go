package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/clsync/internal/changelog"
	"github.com/calvinalkan/clsync/internal/pipeline"
	"github.com/calvinalkan/clsync/internal/prompt"
	"github.com/calvinalkan/clsync/internal/tracker"
	"github.com/calvinalkan/clsync/internal/tracker/trackertest"
)

var errTracker = errors.New("tracker unavailable")

func TestProcess_CommitsWithoutEpic(t *testing.T) {
	t.Parallel()

	h := newHarness("", "no") // proceed, do not create an epic
	outcome := h.process(t, entryCSV)

	require.True(t, outcome.Committed())
	require.Equal(t, &changelog.Record{
		IssueType:  "Story",
		IssueKey:   "ROIA-100",
		Title:      "Add CSV export",
		Status:     "Done",
		Narrative:  "As an analyst I want CSV.",
		Acceptance: "- exports rows",
	}, outcome.Record)

	require.Equal(t, []tracker.IssueRequest{{
		Project:     "ROIA",
		Title:       "Add CSV export",
		Description: "As an analyst I want CSV.\n\n## Acceptance Criteria\n- exports rows",
		Type:        "Story",
		Reporter:    "amy",
		Assignee:    "amy",
	}}, h.fake.CreatedIssues)

	require.Equal(t, []trackertest.ExecutedTransition{{IssueKey: "ROIA-100", TransitionID: "31"}}, h.fake.Executed)
	require.Zero(t, h.fake.CallCount("ListIssuesUnderEpic"), "no duplicate check without an epic")
	require.Equal(t, 1, h.logged("entry committed"))
}

func TestProcess_DefectUsesDefectIssueType(t *testing.T) {
	t.Parallel()

	h := newHarness("", "no")
	outcome := h.process(t, entryLogin)

	require.True(t, outcome.Committed())
	require.Equal(t, "Bug", outcome.Record.IssueType)
	require.Equal(t, "Bug", h.fake.CreatedIssues[0].Type)
	require.Equal(t, changelog.AcceptancePlaceholder, outcome.Record.Acceptance)
}

func TestProcess_SelectsExistingEpic(t *testing.T) {
	t.Parallel()

	h := newHarness("yes", "2")
	h.fake.Epics = []tracker.Epic{{Key: "ROIA-7", Name: "Billing"}, {Key: "ROIA-8", Name: "Reporting"}}

	outcome := h.process(t, entryCSV)

	require.True(t, outcome.Committed())
	require.Equal(t, "ROIA-8", outcome.Record.EpicKey)
	require.Equal(t, "Reporting", outcome.Record.EpicName)
	require.Equal(t, "ROIA-8", h.fake.CreatedIssues[0].EpicKey)
	require.Equal(t, 1, h.fake.CallCount("ListIssuesUnderEpic"))
	require.Contains(t, h.out.String(), "2. Reporting")
}

func TestProcess_InvalidEpicChoiceReprompts(t *testing.T) {
	t.Parallel()

	h := newHarness("", "5", "0", "abc", "1")
	h.fake.Epics = []tracker.Epic{{Key: "ROIA-7", Name: "Billing"}}

	outcome := h.process(t, entryCSV)

	require.True(t, outcome.Committed())
	require.Equal(t, "ROIA-7", outcome.Record.EpicKey)
	require.Len(t, h.prompt.Asked, 5, "confirm plus four epic prompts")
	require.Contains(t, h.out.String(), "Invalid selection 5")
	require.Contains(t, h.out.String(), "Invalid selection 0")
	require.Contains(t, h.out.String(), `Invalid input "abc"`)
}

func TestProcess_NoneEpicSkipsDuplicateCheck(t *testing.T) {
	t.Parallel()

	h := newHarness("", "none")
	h.fake.Epics = []tracker.Epic{{Key: "ROIA-7", Name: "Billing"}}

	outcome := h.process(t, entryCSV)

	require.True(t, outcome.Committed())
	require.Empty(t, outcome.Record.EpicKey)
	require.Zero(t, h.fake.CallCount("ListIssuesUnderEpic"))
}

func TestProcess_CreatesEpicWithVersions(t *testing.T) {
	t.Parallel()

	// proceed, new epic, name, description, bad selection, good selection
	h := newHarness("", "", "Reporting", "All reports", "1,9", "2, 1")
	h.fake.Epics = []tracker.Epic{{Key: "ROIA-7", Name: "Billing"}}
	h.fake.Versions = []tracker.Version{{ID: "1", Name: "1.1"}, {ID: "2", Name: "1.2"}}

	outcome := h.process(t, entryCSV)

	require.Equal(t, []tracker.EpicRequest{{
		Project:     "ROIA",
		Name:        "Reporting",
		Description: "All reports",
		Versions:    []string{"1.2", "1.1"},
		Components:  []string{"FeatureCentral"},
		Reporter:    "amy",
		Assignee:    "amy",
	}}, h.fake.CreatedEpics)

	require.True(t, outcome.Committed())
	require.Equal(t, "ROIA-100", outcome.Record.EpicKey)
	require.Equal(t, "ROIA-101", outcome.Record.IssueKey)
	require.Equal(t, "ROIA-100", h.fake.CreatedIssues[0].EpicKey)
	require.Contains(t, h.out.String(), "9 is out of range 1-2")
}

func TestProcess_NewEpicWithoutVersions(t *testing.T) {
	t.Parallel()

	for _, answer := range []string{"", "none", "NONE"} {
		h := newHarness("", "N", "Reporting", "", answer)
		h.fake.Epics = []tracker.Epic{{Key: "ROIA-7", Name: "Billing"}}
		h.fake.Versions = []tracker.Version{{ID: "1", Name: "1.1"}}

		outcome := h.process(t, entryCSV)

		require.True(t, outcome.Committed())
		require.Len(t, h.fake.CreatedEpics, 1)
		require.Empty(t, h.fake.CreatedEpics[0].Versions, "answer %q", answer)
	}
}

func TestProcess_NoEpicsOffersCreation(t *testing.T) {
	t.Parallel()

	// proceed, create (default yes), name, no description, no versions listed -> manual entry
	h := newHarness("", "", "Reporting", "", "")
	outcome := h.process(t, entryCSV)

	require.True(t, outcome.Committed())
	require.Len(t, h.fake.CreatedEpics, 1)
	require.Equal(t, "Reporting", outcome.Record.EpicName)
	require.Equal(t, 1, h.logged("no epics found"))
}

func TestProcess_VersionListFailureFallsBackToManualEntry(t *testing.T) {
	t.Parallel()

	h := newHarness("", "N", "Reporting", "", " 2.0 , ,2.1 ")
	h.fake.Epics = []tracker.Epic{{Key: "ROIA-7", Name: "Billing"}}
	h.fake.ListVersionsErr = errTracker

	outcome := h.process(t, entryCSV)

	require.True(t, outcome.Committed())
	require.Equal(t, []string{"2.0", "2.1"}, h.fake.CreatedEpics[0].Versions)
	require.Equal(t, 1, h.logged("listing versions failed, falling back to manual entry"))
}

func TestProcess_EmptyEpicNameFallsBackToNoEpic(t *testing.T) {
	t.Parallel()

	h := newHarness("", "N", "")
	h.fake.Epics = []tracker.Epic{{Key: "ROIA-7", Name: "Billing"}}

	outcome := h.process(t, entryCSV)

	require.True(t, outcome.Committed())
	require.Empty(t, outcome.Record.EpicKey)
	require.Zero(t, h.fake.CallCount("CreateEpic"))
	require.Zero(t, h.fake.CallCount("ListUnreleasedVersions"))
	require.Equal(t, 1, h.logged("epic name cannot be empty, continuing without an epic"))
}

func TestProcess_EpicCreationFailureFallsBackToNoEpic(t *testing.T) {
	t.Parallel()

	h := newHarness("", "N", "Reporting", "", "")
	h.fake.Epics = []tracker.Epic{{Key: "ROIA-7", Name: "Billing"}}
	h.fake.CreateEpicErr = errTracker

	outcome := h.process(t, entryCSV)

	require.True(t, outcome.Committed())
	require.Empty(t, outcome.Record.EpicKey)
	require.Empty(t, h.fake.CreatedIssues[0].EpicKey)
	require.Equal(t, 1, h.logged("creating epic failed, continuing without an epic"))
}

func TestProcess_EpicListFailureAsksOperator(t *testing.T) {
	t.Parallel()

	t.Run("proceed without epic", func(t *testing.T) {
		t.Parallel()

		h := newHarness("", "")
		h.fake.ListEpicsErr = errTracker

		outcome := h.process(t, entryCSV)

		require.True(t, outcome.Committed())
		require.Empty(t, outcome.Record.EpicKey)
		require.Equal(t, 1, h.logged("epic resolution failed"))
	})

	t.Run("decline", func(t *testing.T) {
		t.Parallel()

		h := newHarness("", "no")
		h.fake.ListEpicsErr = errTracker

		outcome := h.process(t, entryCSV)

		require.False(t, outcome.Committed())
		require.Equal(t, pipeline.ReasonNoEpic, outcome.Reason)
		require.ErrorIs(t, outcome.Err, pipeline.ErrResolution)
		require.ErrorIs(t, outcome.Err, errTracker)
		require.Zero(t, h.fake.CallCount("CreateIssue"))
	})
}

func TestProcess_DuplicateGate(t *testing.T) {
	t.Parallel()

	setup := func(answers ...string) *harness {
		h := newHarness(answers...)
		h.fake.Epics = []tracker.Epic{{Key: "ROIA-7", Name: "Reporting"}}
		h.fake.EpicIssues["ROIA-7"] = []tracker.IssueRef{
			{Key: "ROIA-3", Title: "Something else"},
			{Key: "ROIA-5", Title: "  add csv EXPORT "},
		}

		return h
	}

	t.Run("default declines", func(t *testing.T) {
		t.Parallel()

		h := setup("", "1", "")
		outcome := h.process(t, entryCSV)

		require.False(t, outcome.Committed())
		require.Equal(t, pipeline.ReasonDuplicate, outcome.Reason)
		require.Zero(t, h.fake.CallCount("CreateIssue"))
		require.Contains(t, h.out.String(), "ROIA-5")
		require.NotContains(t, h.out.String(), "ROIA-3:")
	})

	t.Run("operator overrides", func(t *testing.T) {
		t.Parallel()

		h := setup("", "1", "y")
		outcome := h.process(t, entryCSV)

		require.True(t, outcome.Committed())
		require.Equal(t, 1, h.fake.CallCount("CreateIssue"))
	})
}

func TestProcess_DuplicateCheckFailure(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		answer     string
		wantCommit bool
	}{
		{answer: "", wantCommit: false},
		{answer: "yes", wantCommit: true},
	} {
		h := newHarness("", "1", tt.answer)
		h.fake.Epics = []tracker.Epic{{Key: "ROIA-7", Name: "Reporting"}}
		h.fake.ListIssuesErr = errTracker

		outcome := h.process(t, entryCSV)

		require.Equal(t, tt.wantCommit, outcome.Committed(), "answer %q", tt.answer)

		if !tt.wantCommit {
			require.Equal(t, pipeline.ReasonDuplicateUnknown, outcome.Reason)
			require.ErrorIs(t, outcome.Err, pipeline.ErrResolution)
		}
	}
}

func TestProcess_OperatorDeclines(t *testing.T) {
	t.Parallel()

	for _, answer := range []string{"no", "n", "skip", "later"} {
		h := newHarness(answer)
		outcome := h.process(t, entryCSV)

		require.False(t, outcome.Committed(), answer)
		require.Equal(t, pipeline.ReasonDeclined, outcome.Reason)
		require.NoError(t, outcome.Err)
		require.Empty(t, h.fake.Calls, "declined entries never reach the tracker")
		require.Equal(t, 1, h.logged("entry retained"))
	}
}

func TestProcess_CreationFailureRetains(t *testing.T) {
	t.Parallel()

	h := newHarness("", "no")
	h.fake.CreateIssueErr = errTracker

	outcome := h.process(t, entryCSV)

	require.False(t, outcome.Committed())
	require.Equal(t, pipeline.ReasonCreationFailed, outcome.Reason)
	require.ErrorIs(t, outcome.Err, pipeline.ErrCreation)
	require.ErrorIs(t, outcome.Err, errTracker)
	require.Zero(t, h.fake.CallCount("ListTransitions"))
}

func TestProcess_TransitionIsBestEffort(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		transitions []tracker.Transition
		listErr     error
		execErr     error
		wantStatus  string
		wantExec    []trackertest.ExecutedTransition
	}{
		{
			name:        "no matching transition",
			transitions: []tracker.Transition{{ID: "11", Name: "Start Progress"}},
			wantStatus:  "Open",
		},
		{
			name:       "listing fails",
			listErr:    errTracker,
			wantStatus: "Open",
		},
		{
			name:        "executing fails",
			transitions: []tracker.Transition{{ID: "31", Name: "Done"}},
			execErr:     errTracker,
			wantStatus:  "Open",
		},
		{
			name:        "substring match ignoring case",
			transitions: []tracker.Transition{{ID: "11", Name: "Start Progress"}, {ID: "41", Name: "Mark as DONE"}},
			wantStatus:  "Done",
			wantExec:    []trackertest.ExecutedTransition{{IssueKey: "ROIA-100", TransitionID: "41"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness("", "no")
			h.fake.Transitions = tt.transitions
			h.fake.ListTransitionsErr = tt.listErr
			h.fake.ExecuteTransitionErr = tt.execErr

			outcome := h.process(t, entryCSV)

			require.True(t, outcome.Committed(), "transition problems never retain an entry")
			require.Equal(t, tt.wantStatus, outcome.Record.Status)

			if diff := cmp.Diff(tt.wantExec, h.fake.Executed); diff != "" {
				t.Errorf("executed transitions mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestProcess_MalformedEntryNeverReachesTracker(t *testing.T) {
	t.Parallel()

	h := newHarness()
	outcome := h.process(t, entryNoTitle)

	require.False(t, outcome.Committed())
	require.Equal(t, pipeline.ReasonMalformed, outcome.Reason)
	require.Equal(t, entryNoTitle, outcome.Block.Raw)
	require.ErrorIs(t, outcome.Err, changelog.ErrTitleMissing)
	require.Empty(t, h.fake.Calls)
	require.Empty(t, h.prompt.Asked)

	entries := h.logs.FilterMessage("entry retained").All()
	require.Len(t, entries, 1)
	require.Equal(t, pipeline.ReasonMalformed, entries[0].ContextMap()["reason"])
}

func TestProcess_UnrecognizedTypeIsLogged(t *testing.T) {
	t.Parallel()

	h := newHarness("", "no")
	outcome := h.process(t, "Draft Summary: Tidy up\nType: Chore\n")

	require.True(t, outcome.Committed())
	require.Equal(t, "Story", outcome.Record.IssueType)

	entries := h.logs.FilterMessage("unrecognized entry type, treating as story").All()
	require.Len(t, entries, 1)
	require.Equal(t, "Chore", entries[0].ContextMap()["type"])
	require.Contains(t, h.out.String(), `type "Chore" not recognized`)
}

func TestProcess_InputClosedAborts(t *testing.T) {
	t.Parallel()

	h := newHarness("") // confirm, then input runs out at the epic prompt
	h.fake.Epics = []tracker.Epic{{Key: "ROIA-7", Name: "Reporting"}}

	_, err := h.orchestrator(testSettings()).Process(t.Context(), changelog.Block{Raw: entryCSV})

	require.ErrorIs(t, err, pipeline.ErrAborted)
	require.ErrorIs(t, err, prompt.ErrInputClosed)
	require.Zero(t, h.fake.CallCount("CreateIssue"))
}

func TestProcess_CancelledContextAborts(t *testing.T) {
	t.Parallel()

	h := newHarness("", "no")

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := h.orchestrator(testSettings()).Process(ctx, changelog.Block{Raw: entryCSV})

	require.ErrorIs(t, err, pipeline.ErrAborted)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, h.fake.Calls)
}

func TestProcessAll_AbortLogsCreatedKeys(t *testing.T) {
	t.Parallel()

	// first entry is created, input closes during the second
	h := newHarness("", "no")
	blocks := []changelog.Block{{Raw: entryCSV}, {Raw: entryLogin}}

	outcomes, err := h.orchestrator(testSettings()).ProcessAll(t.Context(), blocks)

	require.ErrorIs(t, err, pipeline.ErrAborted)
	require.Nil(t, outcomes)

	entries := h.logs.FilterMessage("sync aborted, issues created in this run are not recorded in the changelog").All()
	require.Len(t, entries, 1)
	require.Equal(t, []any{"ROIA-100"}, entries[0].ContextMap()["issue_keys"])
}
