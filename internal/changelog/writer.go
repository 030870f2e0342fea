package changelog

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/natefinch/atomic"
)

const filePerms = 0o644

// ReadPending reads and partitions a pending log.
func ReadPending(path string) (Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("reading pending changelog: %w", err)
	}

	return Partition(string(content)), nil
}

// AppendCommitted appends rendered records to the committed log, creating it
// if needed. Existing content is never truncated.
func AppendCommitted(path string, records []Record) (err error) {
	if len(records) == 0 {
		return nil
	}

	file, openErr := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, filePerms)
	if openErr != nil {
		return fmt.Errorf("%w: opening %s: %w", ErrPersist, path, openErr)
	}

	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("%w: closing %s: %w", ErrPersist, path, closeErr))
		}
	}()

	var b strings.Builder
	for _, rec := range records {
		b.WriteString(rec.Render())
		b.WriteByte('\n')
	}

	if _, writeErr := file.WriteString(b.String()); writeErr != nil {
		return fmt.Errorf("%w: appending to %s: %w", ErrPersist, path, writeErr)
	}

	if syncErr := file.Sync(); syncErr != nil {
		return fmt.Errorf("%w: syncing %s: %w", ErrPersist, path, syncErr)
	}

	return nil
}

// RewritePending replaces the pending log with the template and retained
// blocks. The content goes to a temporary file that is renamed over path, so
// the pending log is either fully old or fully new.
func RewritePending(path string, template string, retained []Block) error {
	mode := os.FileMode(filePerms)
	if info, statErr := os.Stat(path); statErr == nil {
		mode = info.Mode().Perm()
	}

	content := Render(template, retained)

	if err := atomic.WriteFile(path, strings.NewReader(content)); err != nil {
		return fmt.Errorf("%w: rewriting %s: %w", ErrPersist, path, err)
	}

	// Keep the original file mode.
	if err := os.Chmod(path, mode); err != nil {
		return fmt.Errorf("%w: chmod %s: %w", ErrPersist, path, err)
	}

	return nil
}

// NewTemplate returns the instructional header written into a fresh pending
// log for the given operator.
func NewTemplate(operator string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Add %s's pending changelog entries below the template, separated by '%s'\n", operator, Separator)
	fmt.Fprintf(&b, "# Template for %s:\n", operator)
	b.WriteString("<!-- TEMPLATE - DO NOT PROCESS -->\n")
	fmt.Fprintf(&b, "# **Draft Summary:** My New Feature for %s\n", operator)
	b.WriteString("# **Type:** Story\n")
	b.WriteString("# **Description:**\n")
	b.WriteString("# As a user, I want this feature so that I can achieve a goal.\n")
	b.WriteString("#\n")
	b.WriteString("# **Acceptance Criteria:**\n")
	b.WriteString("# - Criteria 1\n")
	b.WriteString("# - Criteria 2\n")
	b.WriteString(TemplateEndMarker + "\n")
	b.WriteString(separatorLine)

	return b.String()
}

// WriteTemplate creates a pending log holding only the operator template.
// Returns ErrTemplateExists if path already exists.
func WriteTemplate(path, operator string) (err error) {
	file, openErr := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerms)
	if openErr != nil {
		if errors.Is(openErr, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrTemplateExists, path)
		}

		return fmt.Errorf("%w: creating %s: %w", ErrPersist, path, openErr)
	}

	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("%w: closing %s: %w", ErrPersist, path, closeErr))
		}
	}()

	if _, writeErr := file.WriteString(NewTemplate(operator)); writeErr != nil {
		return fmt.Errorf("%w: writing %s: %w", ErrPersist, path, writeErr)
	}

	return nil
}
