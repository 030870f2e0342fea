package pipeline_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/clsync/internal/changelog"
	"github.com/calvinalkan/clsync/internal/pipeline"
	"github.com/calvinalkan/clsync/internal/tracker"
)

var errNoToken = errors.New("missing tracker credential")

type syncFixture struct {
	*harness
	paths    pipeline.Paths
	template string
	connects int
}

func newSyncFixture(t *testing.T, blocks []string, answers ...string) *syncFixture {
	t.Helper()

	dir := t.TempDir()
	f := &syncFixture{
		harness:  newHarness(answers...),
		template: changelog.NewTemplate("Amy"),
		paths: pipeline.Paths{
			Pending:   filepath.Join(dir, "PENDING_AMY_CHANGELOG.md"),
			Committed: filepath.Join(dir, "COMMITTED_AMY_CHANGELOG.md"),
		},
	}

	content := f.template
	for _, b := range blocks {
		content += b + changelog.Separator + "\n"
	}

	require.NoError(t, os.WriteFile(f.paths.Pending, []byte(content), 0o600))

	return f
}

func (f *syncFixture) input() pipeline.SyncInput {
	return pipeline.SyncInput{
		Paths:    f.paths,
		Settings: testSettings(),
		Prompt:   f.prompt,
		View:     f.view,
		Log:      f.log,
		Connect: func() (tracker.Client, error) {
			f.connects++

			return f.fake, nil
		},
	}
}

func read(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return ""
	}

	require.NoError(t, err)

	return string(data)
}

func TestSync_PartitionsEntriesBetweenLogs(t *testing.T) {
	t.Parallel()

	// CSV: proceed, no epic. Malformed: no prompts. Login: decline.
	f := newSyncFixture(t, []string{entryCSV, entryNoTitle, entryLogin}, "", "no", "no")

	summary, err := pipeline.Sync(t.Context(), f.input())
	require.NoError(t, err)

	require.Equal(t, 3, summary.Total)
	require.Equal(t, 1, summary.Committed)
	require.Equal(t, 2, summary.Retained)
	require.Equal(t, 1, summary.Malformed)
	require.Equal(t, summary.Total, summary.Committed+summary.Retained)
	require.True(t, summary.CommittedAppended)
	require.True(t, summary.PendingRewritten)

	wantPending := f.template + entryNoTitle + "---\n" + entryLogin + "---\n"
	require.Equal(t, wantPending, read(t, f.paths.Pending), "retained entries are byte-identical and the template is kept")

	committed := read(t, f.paths.Committed)
	require.Contains(t, committed, "### Story: ROIA-100 - Add CSV export (Status: Done)")
	require.NotContains(t, committed, "Fix login redirect")
	require.Equal(t, 1, strings.Count(committed, "## Epic: N/A [N/A]"))
}

func TestSync_RerunWithoutCommitsLeavesFilesUntouched(t *testing.T) {
	t.Parallel()

	f := newSyncFixture(t, []string{entryNoTitle, entryLogin}, "no")
	before := read(t, f.paths.Pending)

	summary, err := pipeline.Sync(t.Context(), f.input())
	require.NoError(t, err)

	require.Zero(t, summary.Committed)
	require.Equal(t, 2, summary.Retained)
	require.False(t, summary.CommittedAppended)
	require.False(t, summary.PendingRewritten)
	require.Equal(t, before, read(t, f.paths.Pending))
	require.Empty(t, read(t, f.paths.Committed), "committed log is not created")
}

func TestSync_AllCommittedLeavesPlaceholderAndRerunIsNoop(t *testing.T) {
	t.Parallel()

	f := newSyncFixture(t, []string{entryCSV, entryLogin}, "", "no", "", "no")

	summary, err := pipeline.Sync(t.Context(), f.input())
	require.NoError(t, err)
	require.Equal(t, 2, summary.Committed)

	require.Equal(t, f.template+changelog.EmptyPlaceholder, read(t, f.paths.Pending))

	committedAfterFirst := read(t, f.paths.Committed)
	require.Equal(t, 2, strings.Count(committedAfterFirst, "\n---\n"))

	// Nothing pending: no tracker connection, no prompts, no writes.
	again, err := pipeline.Sync(t.Context(), f.input())
	require.NoError(t, err)
	require.Zero(t, again.Total)
	require.Equal(t, 1, f.connects)
	require.Equal(t, f.template+changelog.EmptyPlaceholder, read(t, f.paths.Pending))
	require.Equal(t, committedAfterFirst, read(t, f.paths.Committed))
}

func TestSync_CreationFailureKeepsEntryPending(t *testing.T) {
	t.Parallel()

	f := newSyncFixture(t, []string{entryCSV, entryLogin}, "", "no", "", "no")
	f.fake.CreateIssueErrs = map[string]error{"Fix login redirect": errTracker}

	summary, err := pipeline.Sync(t.Context(), f.input())
	require.NoError(t, err)

	require.Equal(t, 1, summary.Committed)
	require.Equal(t, 1, summary.Retained)
	require.Equal(t, f.template+entryLogin+"---\n", read(t, f.paths.Pending))
	require.NotContains(t, read(t, f.paths.Committed), "Fix login redirect")
}

func TestSync_AbortWritesNothing(t *testing.T) {
	t.Parallel()

	// first entry is created, input closes at the second confirmation
	f := newSyncFixture(t, []string{entryCSV, entryLogin}, "", "no")
	before := read(t, f.paths.Pending)

	_, err := pipeline.Sync(t.Context(), f.input())
	require.ErrorIs(t, err, pipeline.ErrAborted)

	require.Equal(t, 1, f.fake.CallCount("CreateIssue"))
	require.Equal(t, before, read(t, f.paths.Pending))
	require.Empty(t, read(t, f.paths.Committed))
	require.Equal(t, 1, f.logged("sync aborted, issues created in this run are not recorded in the changelog"))
}

func TestSync_ConnectFailureWritesNothing(t *testing.T) {
	t.Parallel()

	f := newSyncFixture(t, []string{entryCSV})
	before := read(t, f.paths.Pending)

	in := f.input()
	in.Connect = func() (tracker.Client, error) { return nil, errNoToken }

	_, err := pipeline.Sync(t.Context(), in)
	require.ErrorIs(t, err, errNoToken)
	require.Equal(t, before, read(t, f.paths.Pending))
	require.Empty(t, read(t, f.paths.Committed))
	require.Empty(t, f.prompt.Asked)
	require.NoDirExists(t, filepath.Join(filepath.Dir(f.paths.Pending), ".locks"))
}

func TestSync_AsksForIdentityWhenUnset(t *testing.T) {
	t.Parallel()

	f := newSyncFixture(t, []string{entryCSV}, "", "", "no")

	in := f.input()
	in.Settings.Identity = ""
	in.DefaultIdentity = "jdoe"

	_, err := pipeline.Sync(t.Context(), in)
	require.NoError(t, err)

	require.Len(t, f.fake.CreatedIssues, 1)
	require.Equal(t, "jdoe", f.fake.CreatedIssues[0].Reporter)
	require.Equal(t, "jdoe", f.fake.CreatedIssues[0].Assignee)
}

func TestSync_MissingPendingLog(t *testing.T) {
	t.Parallel()

	f := newSyncFixture(t, nil)
	require.NoError(t, os.Remove(f.paths.Pending))

	_, err := pipeline.Sync(t.Context(), f.input())
	require.ErrorIs(t, err, os.ErrNotExist)
	require.Zero(t, f.connects)
}
