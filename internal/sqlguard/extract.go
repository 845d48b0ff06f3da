package sqlguard

import (
	"regexp"
	"strings"
)

var (
	fencedBlockRe = regexp.MustCompile("(?s)```(?:sql)?\\s*(.*?)\\s*```")
	statementRe   = regexp.MustCompile(`(?is)(?:SELECT|WITH)\s+.*?(?:;|$)`)
)

// Extract pulls a single candidate SQL statement out of unstructured
// completion text. Best-effort, first strategy that matches wins:
//
//  1. interior of the first fenced code block
//  2. first substring from a SELECT/WITH keyword to a semicolon or end of text
//  3. first line containing SELECT
//  4. the trimmed original text (signals an extraction miss; validation
//     rejects it downstream)
func Extract(text string) string {
	if m := fencedBlockRe.FindStringSubmatch(text); m != nil {
		sql := strings.TrimSpace(m[1])
		// Residual fence markers can survive nested fences
		sql = strings.ReplaceAll(sql, "```sql", "")
		sql = strings.ReplaceAll(sql, "```", "")

		return strings.TrimSpace(sql)
	}

	if m := statementRe.FindString(text); m != "" {
		return strings.TrimSpace(m)
	}

	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(strings.ToUpper(line), "SELECT") {
			return strings.TrimSpace(line)
		}
	}

	return strings.TrimSpace(text)
}
