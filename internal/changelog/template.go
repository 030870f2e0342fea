package changelog

import "strings"

// Block is one separator-delimited segment of a pending log. Raw holds the
// exact bytes between two separator lines so a retained entry can be written
// back unchanged.
type Block struct {
	Raw string
}

// Document is a pending log split into its leading template and entry blocks.
type Document struct {
	// Template is the verbatim head of the file, including the separator
	// that follows the end marker. Empty when the file has no template.
	Template string
	Blocks   []Block
}

// Partition splits a pending log into its template and entry blocks.
//
// The template ends at the first separator line after the leftmost
// [TemplateEndMarker]. Without such a separator it ends after the marker and
// any newlines immediately following it. Without a marker the whole content
// is entry content.
func Partition(content string) Document {
	template, body := splitTemplate(content)

	return Document{Template: template, Blocks: SplitBlocks(body)}
}

func splitTemplate(content string) (string, string) {
	idx := strings.Index(content, TemplateEndMarker)
	if idx < 0 {
		return "", content
	}

	markerEnd := idx + len(TemplateEndMarker)

	if end, ok := findSeparatorEnd(content, markerEnd); ok {
		return content[:end], content[end:]
	}

	end := markerEnd
	for end < len(content) && content[end] == '\n' {
		end++
	}

	return content[:end], content[end:]
}

// findSeparatorEnd returns the offset just past the first separator line that
// starts at or after from. A line only counts if it begins at a line start.
func findSeparatorEnd(s string, from int) (int, bool) {
	pos := from
	if pos > 0 && s[pos-1] != '\n' {
		nl := strings.IndexByte(s[pos:], '\n')
		if nl < 0 {
			return 0, false
		}

		pos += nl + 1
	}

	for pos < len(s) {
		line, next := nextLine(s, pos)
		if isSeparator(line) {
			return next, true
		}

		pos = next
	}

	return 0, false
}

// SplitBlocks splits entry content at separator lines. Whitespace-only
// segments and the empty-log placeholder are not blocks.
func SplitBlocks(body string) []Block {
	var blocks []Block

	start, pos := 0, 0
	for pos < len(body) {
		line, next := nextLine(body, pos)
		if isSeparator(line) {
			blocks = appendBlock(blocks, body[start:pos])
			start = next
		}

		pos = next
	}

	return appendBlock(blocks, body[start:])
}

// Render builds pending log content from a template and the retained blocks.
// Each retained block is newline-terminated and followed by a separator line;
// with nothing retained the placeholder comment follows the template.
func Render(template string, retained []Block) string {
	var b strings.Builder

	b.WriteString(template)

	if template != "" && !strings.HasSuffix(template, "\n") {
		b.WriteByte('\n')
	}

	if len(retained) == 0 {
		b.WriteString(EmptyPlaceholder)

		return b.String()
	}

	for _, blk := range retained {
		b.WriteString(blk.Raw)

		if !strings.HasSuffix(blk.Raw, "\n") {
			b.WriteByte('\n')
		}

		b.WriteString(separatorLine)
	}

	return b.String()
}

func appendBlock(blocks []Block, raw string) []Block {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == strings.TrimSpace(EmptyPlaceholder) {
		return blocks
	}

	return append(blocks, Block{Raw: raw})
}

// nextLine returns the line starting at pos (without its newline) and the
// offset of the following line.
func nextLine(s string, pos int) (string, int) {
	nl := strings.IndexByte(s[pos:], '\n')
	if nl < 0 {
		return s[pos:], len(s)
	}

	return s[pos : pos+nl], pos + nl + 1
}

func isSeparator(line string) bool {
	return strings.TrimRight(line, " \t\r") == Separator
}
