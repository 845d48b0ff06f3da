package completion

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/askdb/askdb/internal/logging"
)

// State tracks the loading lifecycle of the completion backend.
type State int32

const (
	StateNotReady State = iota
	StateLoading
	StateReady
	StateFailed
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateNotReady:
		return "not_ready"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Sentinel responses returned instead of errors; callers must check the
// response content, not only an error value.
const (
	SentinelNotReady = "Model not ready."
	SentinelError    = "Error generating SQL."
)

// stopSequences mark the boundary of the expected single-query answer.
var stopSequences = []string{"### Question:", "### SQL Query:", "### USER QUESTION START"}

const instructionHeader = `You are a SQL query generator. Your task is to convert natural language questions into SQL queries.
You must ONLY output the SQL query without any explanations or additional text.
The SQL query should be wrapped in triple backticks with the sql language specifier.`

// Config bounds the client's context window and readiness wait.
type Config struct {
	MaxContextTokens  int
	MaxResponseTokens int
	Temperature       float64
	ReadyWait         time.Duration
}

// Client manages backend readiness and generation. Loading starts on a
// background goroutine at construction and never blocks the constructor.
type Client struct {
	backend Backend
	cfg     Config
	log     *logging.Logger

	state   atomic.Int32
	done    chan struct{}
	loadErr error // written once before done is closed
}

// NewClient creates a client and starts loading the backend immediately.
func NewClient(backend Backend, cfg Config, log *logging.Logger) *Client {
	c := &Client{
		backend: backend,
		cfg:     cfg,
		log:     log,
		done:    make(chan struct{}),
	}

	c.state.Store(int32(StateLoading))

	go c.load()

	return c
}

// load runs on its own goroutine; a load in progress is not cancellable.
func (c *Client) load() {
	defer close(c.done)

	if err := c.backend.Load(context.Background()); err != nil {
		c.loadErr = err
		c.state.Store(int32(StateFailed))
		c.log.ErrorWithErr("Model load error", err)

		return
	}

	c.state.Store(int32(StateReady))
	c.log.Info("Model loaded successfully")
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// IsReady reports whether the backend finished loading successfully.
func (c *Client) IsReady() bool {
	return c.State() == StateReady
}

// LoadError returns the load failure, if any, once loading has finished.
func (c *Client) LoadError() error {
	select {
	case <-c.done:
		return c.loadErr
	default:
		return nil
	}
}

// AwaitReady blocks up to timeout for loading to finish and reports whether
// the backend is ready.
func (c *Client) AwaitReady(timeout time.Duration) bool {
	select {
	case <-c.done:
	case <-time.After(timeout):
		return false
	}

	return c.State() == StateReady
}

// GenerateSQL runs one generation call for the given prompt. If the backend is
// not ready it waits once, bounded by the configured ReadyWait, then gives up
// with the not-ready sentinel. Backend failures yield the error sentinel
// rather than an error.
func (c *Client) GenerateSQL(ctx context.Context, prompt string) string {
	if !c.IsReady() && !c.AwaitReady(c.cfg.ReadyWait) {
		return SentinelNotReady
	}

	prompt = c.truncateToBudget(ctx, prompt)

	response, err := c.backend.Generate(ctx, wrapPrompt(prompt), GenerateOptions{
		MaxTokens:   c.cfg.MaxResponseTokens,
		Temperature: c.cfg.Temperature,
		Stop:        stopSequences,
	})
	if err != nil {
		c.log.ErrorWithErr("Completion backend error", err)
		return SentinelError
	}

	return strings.TrimSpace(response)
}

// truncateToBudget trims the raw prompt to the context window minus the
// response budget. The instruction wrapper is applied after truncation, so
// the effective budget for user content is smaller than the nominal window.
func (c *Client) truncateToBudget(ctx context.Context, prompt string) string {
	budget := c.cfg.MaxContextTokens - c.cfg.MaxResponseTokens

	tokens, err := c.backend.Tokenize(ctx, prompt)
	if err != nil {
		c.log.WithError(err).Warn("Tokenize failed, skipping prompt truncation")
		return prompt
	}

	if len(tokens) <= budget {
		return prompt
	}

	c.log.Warnf("Prompt too long (%d tokens), truncating to %d", len(tokens), budget)

	truncated, err := c.backend.Detokenize(ctx, tokens[:budget])
	if err != nil {
		c.log.WithError(err).Warn("Detokenize failed, skipping prompt truncation")
		return prompt
	}

	return truncated
}

func wrapPrompt(prompt string) string {
	return instructionHeader + "\n\n### Instruction:\n" + prompt + "\n\n### Response:\n"
}
