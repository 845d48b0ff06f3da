package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuild(t *testing.T) {
	question := "How many customers are there per country?"
	schemaText := "### DATABASE SCHEMA\n\ncustomers(id INTEGER PK, country TEXT);"

	built := Build(question, schemaText)

	assert.Contains(t, built, "### USER QUESTION START\n"+question+"\n### USER QUESTION END")
	assert.Contains(t, built, schemaText)
	assert.Contains(t, built, "### INSTRUCTIONS")
	assert.Contains(t, built, "triple backticks")
	assert.Contains(t, built, SentinelNoTables)

	// Question comes before schema, schema before instructions
	qIdx := strings.Index(built, "### USER QUESTION START")
	sIdx := strings.Index(built, "### DATABASE SCHEMA")
	iIdx := strings.Index(built, "### INSTRUCTIONS")
	assert.Less(t, qIdx, sIdx)
	assert.Less(t, sIdx, iIdx)
}

func TestBuild_Deterministic(t *testing.T) {
	first := Build("question", "schema")
	second := Build("question", "schema")

	assert.Equal(t, first, second)
}
