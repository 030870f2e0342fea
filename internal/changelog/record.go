package changelog

import (
	"fmt"
	"strings"
)

// notAvailable stands in for a missing epic in committed records.
const notAvailable = "N/A"

// Record is the durable outcome of one created issue.
type Record struct {
	EpicName   string
	EpicKey    string
	IssueType  string
	IssueKey   string
	Title      string
	Status     string
	Narrative  string
	Acceptance string
}

// Render formats the record as a committed changelog block ending with the
// separator line.
func (r Record) Render() string {
	epicName, epicKey := r.EpicName, r.EpicKey
	if epicKey == "" {
		epicName, epicKey = notAvailable, notAvailable
	}

	var b strings.Builder

	fmt.Fprintf(&b, "## Epic: %s [%s]\n\n", epicName, epicKey)
	fmt.Fprintf(&b, "### %s: %s - %s (Status: %s)\n\n", r.IssueType, r.IssueKey, r.Title, r.Status)
	fmt.Fprintf(&b, "**Description:**\n%s\n\n", r.Narrative)
	fmt.Fprintf(&b, "## Acceptance Criteria\n%s\n", r.Acceptance)
	b.WriteString(separatorLine)

	return b.String()
}
