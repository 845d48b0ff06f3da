// Package sqlguard extracts candidate SQL from completion text and validates
// it through two ordered gates: an injection denylist and a SELECT-list
// allowlist tokenizer. The gates deliberately whitelist the shape of a
// read-only analytic SELECT without building a full SQL grammar.
package sqlguard

import (
	"strings"
	"unicode"
)

// Verdict is the outcome of validating one candidate SQL statement.
type Verdict struct {
	Valid  bool
	Reason string
}

// aggregates are the function names whose argument lists are skipped wholesale
// by the SELECT-list scan.
var aggregates = map[string]bool{
	"COUNT": true, "SUM": true, "AVG": true, "MIN": true, "MAX": true,
}

// operators are the single/double-character operators and punctuation accepted
// anywhere in the SELECT list.
var operators = map[string]bool{
	"=": true, "!=": true, "<>": true, "<": true, ">": true, "<=": true, ">=": true,
	"+": true, "-": true, "*": true, "/": true, "%": true, "(": true, ")": true,
	",": true, "AS": true,
}

// allowedKeywords is the closed set of SQL keywords and functions permitted in
// the SELECT list. Matching is case-sensitive against the uppercased
// statement. Multi-word entries never match a single token; they are kept so
// the set reads as the full allowed grammar.
var allowedKeywords = map[string]bool{
	"SELECT": true, "FROM": true, "WHERE": true, "GROUP BY": true, "ORDER BY": true,
	"HAVING": true, "JOIN": true, "LEFT JOIN": true, "RIGHT JOIN": true,
	"INNER JOIN": true, "ON": true, "AND": true, "OR": true, "NOT": true,
	"IN": true, "LIKE": true, "IS": true, "NULL": true,

	"AS": true, "DISTINCT": true, "COUNT": true, "SUM": true, "AVG": true,
	"MIN": true, "MAX": true, "CASE": true, "WHEN": true, "THEN": true,
	"ELSE": true, "END": true, "ASC": true, "DESC": true, "LIMIT": true,
	"OFFSET": true, "WITH": true, "UNION": true, "ALL": true,

	"COALESCE": true, "IFNULL": true, "NULLIF": true, "CAST": true,
	"UPPER": true, "LOWER": true, "TRIM": true, "LENGTH": true,
	"SUBSTR": true, "REPLACE": true, "CONCAT": true,
	"ROUND": true, "FLOOR": true, "CEIL": true,
	"DATE": true, "DATETIME": true, "STRFTIME": true,

	"=": true, "!=": true, "<>": true, "<": true, ">": true, "<=": true, ">=": true,
	"+": true, "-": true, "*": true, "/": true, "%": true,
	"||": true, "&&": true,
}

// Validate runs the candidate SQL through both gates. The first failure
// short-circuits and the verdict names the offending pattern or token.
func Validate(sqlText string) Verdict {
	if pattern, found := ScanInjection(sqlText); found {
		return Verdict{Reason: "potential SQL injection detected: " + pattern}
	}

	normalized := strings.ToUpper(strings.TrimSpace(sqlText))
	if !strings.HasPrefix(normalized, "SELECT") {
		return Verdict{Reason: "query must start with SELECT"}
	}

	// Only the SELECT list is scanned; Gate A covers the rest of the statement
	selectPart := strings.TrimSpace(strings.Split(normalized, "FROM")[0])

	if offender, found := scanSelectList(tokenizeSelectList(selectPart)); found {
		return Verdict{Reason: "disallowed SQL keyword or pattern: " + offender}
	}

	return Verdict{Valid: true}
}

// tokenizeSelectList splits the SELECT list into tokens. Parentheses are
// standalone tokens; whitespace separates tokens except inside parentheses,
// where everything up to the closing parenthesis accumulates into one coarse
// token. Nested expressions tokenize coarsely on purpose; changing this
// changes acceptance behavior.
func tokenizeSelectList(s string) []string {
	var tokens []string

	var current strings.Builder

	inParens := false

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	for _, ch := range s {
		switch {
		case ch == '(':
			flush()

			tokens = append(tokens, "(")
			inParens = true
		case ch == ')':
			flush()

			tokens = append(tokens, ")")
			inParens = false
		case unicode.IsSpace(ch) && !inParens:
			flush()
		default:
			current.WriteRune(ch)
		}
	}

	flush()

	return tokens
}

// scanSelectList walks the token stream and reports the first token that is
// neither a quoted identifier, an aggregate call, a bare or qualified
// identifier, a numeric literal, an operator, nor an allowed keyword.
func scanSelectList(tokens []string) (string, bool) {
	i := 0
	for i < len(tokens) {
		token := tokens[i]

		// Quoted strings and identifiers pass as-is
		if strings.HasPrefix(token, `"`) || strings.HasPrefix(token, "'") ||
			strings.HasPrefix(token, "`") {
			i++
			continue
		}

		// Aggregate call: skip the name and everything through the closing paren
		if aggregates[token] {
			for i < len(tokens) && tokens[i] != ")" {
				i++
			}

			i++

			continue
		}

		if isIdentifier(token) {
			i++
			continue
		}

		if isNumeric(token) || operators[token] {
			i++
			continue
		}

		if allowedKeywords[token] {
			i++
			continue
		}

		return token, true
	}

	return "", false
}

// isIdentifier reports whether the token is a bare or dot-qualified
// identifier: alphanumeric/underscore segments separated by single dots.
func isIdentifier(token string) bool {
	for _, part := range strings.Split(token, ".") {
		stripped := strings.ReplaceAll(part, "_", "")
		if stripped == "" {
			return false
		}

		for _, r := range stripped {
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
				return false
			}
		}
	}

	return true
}

// isNumeric reports whether the token is a numeric literal after dropping
// decimal points and sign/minus characters.
func isNumeric(token string) bool {
	stripped := strings.ReplaceAll(token, ".", "")
	stripped = strings.ReplaceAll(stripped, "-", "")

	if stripped == "" {
		return false
	}

	for _, r := range stripped {
		if !unicode.IsDigit(r) {
			return false
		}
	}

	return true
}
