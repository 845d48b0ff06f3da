package sqlguard

import (
	"regexp"
	"strings"
)

// aggregateStarRe matches bare aggregate-star calls such as COUNT(*). These
// are erased before the denylist scan so they cannot trigger false positives.
var aggregateStarRe = regexp.MustCompile(`(?i)\b(COUNT|SUM|AVG|MIN|MAX)\s*\(\s*\*\s*\)`)

type denyPattern struct {
	re   *regexp.Regexp
	name string
}

var denyPatterns = []denyPattern{
	{regexp.MustCompile(`--`), "line comment (--)"},
	{regexp.MustCompile(`/\*.*\*/`), "block comment (/* */)"},
	{regexp.MustCompile(`(?i)UNION\s+ALL\s+SELECT`), "UNION ALL SELECT"},
	{regexp.MustCompile(`(?i)UNION\s+SELECT`), "UNION SELECT"},
	{regexp.MustCompile(`(?i)DROP\s+TABLE`), "DROP TABLE"},
	{regexp.MustCompile(`(?i)DELETE\s+FROM`), "DELETE FROM"},
	{regexp.MustCompile(`(?i)UPDATE\s+.*\s+SET`), "UPDATE ... SET"},
	{regexp.MustCompile(`(?i)INSERT\s+INTO`), "INSERT INTO"},
	{regexp.MustCompile(`(?i)ALTER\s+TABLE`), "ALTER TABLE"},
	{regexp.MustCompile(`(?i)EXECUTE\s+`), "EXECUTE call"},
	{regexp.MustCompile(`(?i)EXEC\s+`), "EXEC call"},
	{regexp.MustCompile(`(?i)xp_cmdshell`), "xp_cmdshell"},
	{regexp.MustCompile(`(?i)sp_`), "stored procedure prefix (sp_)"},
	{regexp.MustCompile(`0x[0-9a-fA-F]+`), "hex literal"},
}

// ScanInjection checks text for injection patterns and reports the first
// offending pattern by name. A single trailing semicolon is tolerated; any
// other semicolon is treated as a multi-statement attempt. This check is also
// run over the raw user question, so hostile questions fail before any
// generation happens.
func ScanInjection(text string) (string, bool) {
	// Strip trailing semicolons before checking statement boundaries
	checked := strings.TrimRight(text, ";")
	checked = aggregateStarRe.ReplaceAllString(checked, "")

	// A semicolon anywhere but the very last character means more than one
	// statement. Known false-positive surface: semicolons inside string
	// literals are flagged too.
	if idx := strings.Index(checked, ";"); idx >= 0 && idx != len(checked)-1 {
		return "multiple statements (semicolon not at end)", true
	}

	for _, p := range denyPatterns {
		if p.re.MatchString(checked) {
			return p.name, true
		}
	}

	return "", false
}
