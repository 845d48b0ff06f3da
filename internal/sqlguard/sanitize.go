package sqlguard

import "strings"

// SanitizeQuestion strips NUL bytes and control characters from user input
// before any further processing.
func SanitizeQuestion(input string) string {
	var sb strings.Builder

	for _, r := range input {
		if r >= 32 {
			sb.WriteRune(r)
		}
	}

	return strings.TrimSpace(sb.String())
}
