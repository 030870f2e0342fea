package changelog

import "errors"

// Markers and separators of the pending log format.
const (
	// Separator is the line that delimits entries.
	Separator = "---"

	// TemplateEndMarker closes the instructional header of a pending log.
	TemplateEndMarker = "<!-- END TEMPLATE -->"

	// EmptyPlaceholder is written when a rewrite leaves no pending entries.
	EmptyPlaceholder = "# No pending entries remaining.\n"

	separatorLine = Separator + "\n"
)

// Placeholders for optional entry fields.
const (
	NarrativePlaceholder  = "Description to be added."
	AcceptancePlaceholder = "- Acceptance criteria to be added."
)

// Error variables for changelog operations.
var (
	ErrParse          = errors.New("cannot parse entry")
	ErrTitleMissing   = errors.New("entry title is missing")
	ErrPersist        = errors.New("cannot persist changelog")
	ErrLockTimeout    = errors.New("lock timeout")
	ErrLockFileOpen   = errors.New("failed to open lock file")
	ErrTemplateExists = errors.New("pending changelog already exists")
)
