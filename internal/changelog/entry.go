package changelog

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Category is the kind of work an entry describes.
type Category int

// Entry categories.
const (
	CategoryStory Category = iota
	CategoryDefect
)

func (c Category) String() string {
	if c == CategoryDefect {
		return "Defect"
	}

	return "Story"
}

// ParseCategory maps a Type field value to a Category. The second result is
// false when the value is not recognized; the category is then Story.
func ParseCategory(value string) (Category, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "story":
		return CategoryStory, true
	case "defect", "bug":
		return CategoryDefect, true
	default:
		return CategoryStory, false
	}
}

// Entry is one unit of pending work parsed from a pending log block.
type Entry struct {
	Title       string
	Category    Category
	RawCategory string // Type field as written, empty if absent
	Narrative   string
	Acceptance  string
	Raw         string // the block this entry was parsed from
}

// CategoryCoerced reports whether a Type value was present but unrecognized.
func (e Entry) CategoryCoerced() bool {
	if e.RawCategory == "" {
		return false
	}

	_, ok := ParseCategory(e.RawCategory)

	return !ok
}

// ParseError is returned for blocks that cannot become an [Entry].
type ParseError struct {
	Reason  error
	Excerpt string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v: %v", ErrParse, e.Reason)
}

func (e *ParseError) Unwrap() []error {
	return []error{ErrParse, e.Reason}
}

type field int

const (
	fieldTitle field = iota
	fieldCategory
	fieldNarrative
	fieldAcceptance
)

// extractor pulls one labeled field out of a block. Single-line fields take
// the rest of the label's line, or the next non-blank line when the label
// stands alone; multi-line fields run until stop matches or the block ends.
type extractor struct {
	field     field
	label     *regexp.Regexp
	multiline bool
	stop      *regexp.Regexp
}

var (
	titleLabel      = labelPattern("Draft Summary")       //nolint:gochecknoglobals // compiled once
	shortTitleLabel = labelPattern("Title")               //nolint:gochecknoglobals // compiled once
	categoryLabel   = labelPattern("Type")                //nolint:gochecknoglobals // compiled once
	narrativeLabel  = labelPattern("Description")         //nolint:gochecknoglobals // compiled once
	acceptanceLabel = labelPattern("Acceptance Criteria") //nolint:gochecknoglobals // compiled once
)

// extractors run in order over every block. The first non-empty value for
// a field wins.
var extractors = []extractor{ //nolint:gochecknoglobals // package-level table
	{field: fieldTitle, label: titleLabel},
	{field: fieldTitle, label: shortTitleLabel},
	{field: fieldCategory, label: categoryLabel},
	{field: fieldNarrative, label: narrativeLabel, multiline: true, stop: acceptanceLabel},
	{field: fieldAcceptance, label: acceptanceLabel, multiline: true},
}

// labelPattern matches a field label at the start of a line, with optional
// ** or __ emphasis around the label and on either side of the colon.
func labelPattern(name string) *regexp.Regexp {
	const emphasis = `(?:\*\*|__)`

	return regexp.MustCompile(`(?im)^[ \t]*` + emphasis + `?[ \t]*` + regexp.QuoteMeta(name) +
		`[ \t]*(?:` + emphasis + `[ \t]*:|:[ \t]*` + emphasis + `?)[ \t]*`)
}

func (x extractor) extract(block string) (string, bool) {
	loc := x.label.FindStringIndex(block)
	if loc == nil {
		return "", false
	}

	rest := block[loc[1]:]

	if !x.multiline {
		line, next, _ := strings.Cut(rest, "\n")
		if value := stripEmphasis(line); value != "" {
			return value, true
		}

		return firstValueLine(next), true
	}

	if x.stop != nil {
		if stop := x.stop.FindStringIndex(rest); stop != nil {
			rest = rest[:stop[0]]
		}
	}

	return strings.TrimSpace(rest), true
}

// firstValueLine returns the first non-blank line of s, or "" when that line
// is itself a field label.
func firstValueLine(s string) string {
	for line := range strings.Lines(s) {
		if strings.TrimSpace(line) == "" {
			continue
		}

		for _, x := range extractors {
			if x.label.MatchString(line) {
				return ""
			}
		}

		return stripEmphasis(line)
	}

	return ""
}

// stripEmphasis removes ** or __ wrapped around a single-line value.
func stripEmphasis(s string) string {
	s = strings.TrimSpace(s)

	for _, e := range []string{"**", "__"} {
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(s, e), e))
	}

	return s
}

// ParseEntry parses one pending log block. The title comes from Draft
// Summary, or from Title when that is absent. A block without a title
// returns a *ParseError and an Entry carrying only Raw.
func ParseEntry(raw string) (Entry, error) {
	values := make(map[field]string, len(extractors))

	for _, x := range extractors {
		if values[x.field] != "" {
			continue
		}

		if value, ok := x.extract(raw); ok {
			values[x.field] = value
		}
	}

	title := values[fieldTitle]
	if title == "" {
		return Entry{Raw: raw}, &ParseError{Reason: ErrTitleMissing, Excerpt: excerpt(raw)}
	}

	category, _ := ParseCategory(values[fieldCategory])

	entry := Entry{
		Title:       title,
		Category:    category,
		RawCategory: values[fieldCategory],
		Narrative:   values[fieldNarrative],
		Acceptance:  values[fieldAcceptance],
		Raw:         raw,
	}

	if entry.Narrative == "" {
		entry.Narrative = NarrativePlaceholder
	}

	if entry.Acceptance == "" {
		entry.Acceptance = AcceptancePlaceholder
	}

	return entry, nil
}

// Description composes the issue description from narrative and acceptance.
func (e Entry) Description() string {
	return e.Narrative + "\n\n## Acceptance Criteria\n" + e.Acceptance
}

const excerptLen = 100

func excerpt(raw string) string {
	s := strings.TrimSpace(raw)
	if len(s) <= excerptLen {
		return s
	}

	cut := excerptLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}

	return s[:cut] + "..."
}
