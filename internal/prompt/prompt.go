// Package prompt composes the SQL-generation prompt sent to the completion
// backend.
package prompt

import (
	"fmt"
	"strings"
)

// SentinelNoTables is the fixed token the model must emit when no provided
// table can answer the question.
const SentinelNoTables = "TABLES_NOT_IN_CHUNK"

const (
	questionStart = "### USER QUESTION START"
	questionEnd   = "### USER QUESTION END"
)

// Build composes the question, the schema text, and the fixed instructions
// into a single prompt. Deterministic given its inputs.
func Build(question, schemaText string) string {
	var sb strings.Builder

	sb.WriteString(questionStart + "\n")
	sb.WriteString(question + "\n")
	sb.WriteString(questionEnd + "\n\n")
	sb.WriteString(schemaText)
	sb.WriteString("\n### INSTRUCTIONS\n")
	sb.WriteString("Provide only the SQL query inside triple backticks (```). Don't include anything else in your response.\n")
	sb.WriteString("Strictly use the table names provided in the schema.\n")
	sb.WriteString(fmt.Sprintf("If the required tables are not in this schema, respond with %q.\n", SentinelNoTables))
	sb.WriteString("# Example format:\n")
	sb.WriteString("# ```sql\n")
	sb.WriteString("# SELECT column FROM table WHERE condition;\n")
	sb.WriteString("# ```")

	return sb.String()
}
