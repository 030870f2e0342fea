package changelog_test

import (
	"testing"

	"github.com/calvinalkan/clsync/internal/changelog"
)

func TestRecord_Render(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rec  changelog.Record
		want string
	}{
		{
			name: "with epic",
			rec: changelog.Record{
				EpicName:   "Reporting",
				EpicKey:    "ROIA-7",
				IssueType:  "Story",
				IssueKey:   "ROIA-101",
				Title:      "Add CSV export",
				Status:     "Done",
				Narrative:  "As a user I want CSV.",
				Acceptance: "- exports rows",
			},
			want: "## Epic: Reporting [ROIA-7]\n\n" +
				"### Story: ROIA-101 - Add CSV export (Status: Done)\n\n" +
				"**Description:**\nAs a user I want CSV.\n\n" +
				"## Acceptance Criteria\n- exports rows\n" +
				"---\n",
		},
		{
			name: "without epic",
			rec: changelog.Record{
				IssueType:  "Bug",
				IssueKey:   "ROIA-102",
				Title:      "Fix login",
				Status:     "Open",
				Narrative:  "It breaks.",
				Acceptance: "- works",
			},
			want: "## Epic: N/A [N/A]\n\n" +
				"### Bug: ROIA-102 - Fix login (Status: Open)\n\n" +
				"**Description:**\nIt breaks.\n\n" +
				"## Acceptance Criteria\n- works\n" +
				"---\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got, want := tt.rec.Render(), tt.want; got != want {
				t.Errorf("Render()=\n%s\nwant=\n%s", got, want)
			}
		})
	}
}
