package pipeline

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/calvinalkan/clsync/internal/changelog"
	"github.com/calvinalkan/clsync/internal/tracker"
)

// glamourStyle is the glamour standard style used for markdown on a terminal.
const glamourStyle = "dark"

// View writes everything the operator reads between prompts: review cards,
// numbered menus and notices. Styles degrade to plain text when out is not a
// terminal.
type View struct {
	out      io.Writer
	markdown bool

	heading lipgloss.Style
	label   lipgloss.Style
	faint   lipgloss.Style
	warn    lipgloss.Style
}

// NewView returns a View writing to out. With markdown set, narratives and
// acceptance criteria are rendered through glamour.
func NewView(out io.Writer, markdown bool) *View {
	r := lipgloss.NewRenderer(out)

	return &View{
		out:      out,
		markdown: markdown,
		heading:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		label:    r.NewStyle().Bold(true),
		faint:    r.NewStyle().Faint(true),
		warn:     r.NewStyle().Foreground(lipgloss.Color("11")),
	}
}

func (v *View) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(v.out, format, args...)
}

// Review prints the card shown before the operator confirms an entry.
func (v *View) Review(e changelog.Entry, issueType, identity string) {
	v.printf("\n%s\n", v.heading.Render("Review "+issueType))
	v.printf("%s %s\n", v.label.Render("Title:"), e.Title)
	v.printf("%s %s\n", v.label.Render("Type:"), issueType)

	if e.CategoryCoerced() {
		v.printf("%s\n", v.warn.Render(fmt.Sprintf("(type %q not recognized, using %s)", e.RawCategory, e.Category)))
	}

	if identity != "" {
		v.printf("%s %s\n", v.label.Render("Reporter/Assignee:"), identity)
	}

	v.printf("%s\n%s\n", v.label.Render("Description:"), v.renderMarkdown(e.Narrative))
	v.printf("%s\n%s\n", v.label.Render("Acceptance Criteria:"), v.renderMarkdown(e.Acceptance))
}

func (v *View) renderMarkdown(md string) string {
	if !v.markdown {
		return md
	}

	out, err := glamour.Render(md, glamourStyle)
	if err != nil {
		return md
	}

	return strings.TrimRight(out, "\n")
}

// Epics prints a numbered epic menu.
func (v *View) Epics(epics []tracker.Epic) {
	v.printf("\n%s\n", v.heading.Render("Existing epics"))

	for i, e := range epics {
		v.printf("  %d. %s %s\n", i+1, e.Name, v.faint.Render("("+e.Key+")"))
	}
}

// Versions prints a numbered version menu.
func (v *View) Versions(versions []tracker.Version) {
	v.printf("\n%s\n", v.heading.Render("Unreleased versions"))

	for i, ver := range versions {
		v.printf("  %d. %s\n", i+1, ver.Name)
	}
}

// Duplicates lists issues whose titles match the entry being created.
func (v *View) Duplicates(epic tracker.Epic, refs []tracker.IssueRef) {
	v.printf("%s\n", v.warn.Render(fmt.Sprintf("Possible duplicates under %s (%s):", epic.Name, epic.Key)))

	for _, ref := range refs {
		v.printf("  - %s: %s\n", ref.Key, ref.Title)
	}
}

// Notice prints a one-line message such as an invalid-input hint.
func (v *View) Notice(format string, args ...any) {
	v.printf("%s\n", v.warn.Render(fmt.Sprintf(format, args...)))
}
