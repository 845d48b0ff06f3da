// Package completion wraps the text-generation backend behind an
// asynchronous-readiness lifecycle and a single generate operation with
// context-window truncation.
package completion

import "context"

// GenerateOptions bound a single completion call.
type GenerateOptions struct {
	MaxTokens   int
	Temperature float64
	Stop        []string
}

// Backend is the opaque text-generation capability. Load is asynchronous
// relative to client construction and may take minutes for large models;
// Tokenize/Detokenize exist for truncation bookkeeping only.
type Backend interface {
	Load(ctx context.Context) error
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
	Tokenize(ctx context.Context, text string) ([]int, error)
	Detokenize(ctx context.Context, tokens []int) (string, error)
}
