//go:build !linux && !darwin

package prompt

// IsTerminal reports whether fd refers to a terminal. Always false here, so
// input falls back to the line reader.
func IsTerminal(uintptr) bool {
	return false
}
