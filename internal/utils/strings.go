package utils

import "fmt"

// DefaultMaxStringLength caps strings bound for log output when the caller
// does not supply a limit of its own.
const DefaultMaxStringLength = 500

// TruncateString shortens s to at most maxLen bytes. Truncated output carries
// a marker with the original length, so log readers can tell the content was
// cut and by how much. A non-positive maxLen falls back to
// [DefaultMaxStringLength].
func TruncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxStringLength
	}

	if len(s) <= maxLen {
		return s
	}

	return fmt.Sprintf("%s... (truncated, total: %d chars)", s[:maxLen], len(s))
}
