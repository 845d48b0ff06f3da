// Package agent sequences the query pipeline: input validation, readiness
// wait, generation, extraction, validation, execution, and formatting. Every
// internal failure maps to a response status; nothing escapes ProcessQuery.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/askdb/askdb/internal/completion"
	"github.com/askdb/askdb/internal/errors"
	"github.com/askdb/askdb/internal/logging"
	"github.com/askdb/askdb/internal/metrics"
	"github.com/askdb/askdb/internal/prompt"
	"github.com/askdb/askdb/internal/runner"
	"github.com/askdb/askdb/internal/schema"
	"github.com/askdb/askdb/internal/sqlguard"
	"github.com/askdb/askdb/internal/storage"
)

// Status classifies the terminal state of one query.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPending Status = "pending"
	StatusError   Status = "error"
)

// Result is the envelope returned for every processed question. A success
// result always carries SQL that independently passes sqlguard.Validate.
type Result struct {
	ID       string                   `json:"id"`
	Status   Status                   `json:"status"`
	Message  string                   `json:"message"`
	Question string                   `json:"user_query"`
	SQL      string                   `json:"sql,omitempty"`
	Columns  []string                 `json:"columns,omitempty"`
	Rows     []map[string]any         `json:"results,omitempty"`
	Summary  *runner.Summary          `json:"summary,omitempty"`
	Metrics  map[string]metrics.Stats `json:"metrics,omitempty"`
}

// Config bounds input handling.
type Config struct {
	MaxQueryLength int
	ModelWait      time.Duration
}

// Agent wires the pipeline components together.
type Agent struct {
	catalog   *schema.Catalog
	client    *completion.Client
	runner    *runner.Runner
	store     *storage.Store
	collector *metrics.Collector
	cfg       Config
	log       *logging.Logger
}

// New creates an agent over already-constructed components.
func New(
	catalog *schema.Catalog,
	client *completion.Client,
	run *runner.Runner,
	store *storage.Store,
	collector *metrics.Collector,
	cfg Config,
	log *logging.Logger,
) *Agent {
	return &Agent{
		catalog:   catalog,
		client:    client,
		runner:    run,
		store:     store,
		collector: collector,
		cfg:       cfg,
		log:       log,
	}
}

// ProcessQuery answers one natural-language question. It never returns an
// error: every failure is folded into the result status.
func (a *Agent) ProcessQuery(ctx context.Context, question string) (result *Result) {
	defer a.collector.Track("query_processing_time")()

	defer func() {
		if rec := recover(); rec != nil {
			a.log.Errorf("Unexpected error: %v", rec)
			result = a.errorResult(question, fmt.Sprintf("An unexpected error occurred: %v", rec))
		}
	}()

	a.log.Infof("Processing query: %s", question)

	question = sqlguard.SanitizeQuestion(question)
	if question == "" {
		return a.errorResult(question, "Invalid query input")
	}

	if len(question) > a.cfg.MaxQueryLength {
		return a.errorResult(question,
			fmt.Sprintf("Security error: query exceeds maximum length of %d characters", a.cfg.MaxQueryLength))
	}

	// The denylist also runs over the raw question so hostile input fails
	// before any generation happens
	if pattern, found := sqlguard.ScanInjection(question); found {
		a.log.Errorf("Security error: %s", pattern)
		return a.errorResult(question, "Security error: potential SQL injection detected: "+pattern)
	}

	if !a.client.IsReady() && !a.client.AwaitReady(a.cfg.ModelWait) {
		a.log.Warn("Model loading timeout")

		return &Result{
			ID:       uuid.New().String(),
			Status:   StatusPending,
			Message:  "Model loading timeout. Please try again.",
			Question: question,
		}
	}

	schemaText, err := a.catalog.RenderRelevant(ctx, question)
	if err != nil {
		a.log.ErrorWithErr("Schema introspection failed", err)
		return a.errorResult(question, "Database error: "+errors.GetMessage(err))
	}

	raw := a.client.GenerateSQL(ctx, prompt.Build(question, schemaText))
	a.log.Debugf("Raw generated SQL: %s", raw)

	switch raw {
	case completion.SentinelNotReady:
		return &Result{
			ID:       uuid.New().String(),
			Status:   StatusPending,
			Message:  "Model loading timeout. Please try again.",
			Question: question,
		}
	case completion.SentinelError:
		return a.errorResult(question, "Failed to generate SQL from the question")
	}

	sqlText := sqlguard.Extract(raw)
	a.log.Debugf("Extracted SQL: %s", sqlText)

	if sqlText == prompt.SentinelNoTables {
		return a.errorResult(question, "The available schema cannot answer this question")
	}

	verdict := sqlguard.Validate(sqlText)
	a.collector.Record("sql_validations", 1)

	if !verdict.Valid {
		a.log.Errorf("SQL validation failed: %s", verdict.Reason)

		result := a.errorResult(question, "Invalid SQL: "+verdict.Reason)
		result.SQL = sqlText

		return result
	}

	execution, err := a.runner.Execute(ctx, sqlText)
	if err != nil {
		a.log.ErrorWithErr("Query execution failed", err)

		message := "Database error: " + errors.GetMessage(err)
		if errors.IsType(err, errors.ErrTypeStoreTimeout) {
			message = "Query timeout: " + errors.GetMessage(err)
		}

		result := a.errorResult(question, message)
		result.SQL = sqlText

		return result
	}

	formatted := a.runner.Format(execution)
	if formatted.Degraded {
		result := a.errorResult(question, formatted.Message)
		result.SQL = sqlText
		result.Columns = formatted.Columns
		result.Rows = formatted.Rows

		return result
	}

	a.collector.Record("successful_queries", 1)
	a.log.Info("Query processed successfully")

	return &Result{
		ID:       uuid.New().String(),
		Status:   StatusSuccess,
		Message:  formatted.Message,
		Question: question,
		SQL:      sqlText,
		Columns:  formatted.Columns,
		Rows:     formatted.Rows,
		Summary:  formatted.Summary,
		Metrics: map[string]metrics.Stats{
			"query_processing_time": a.collector.Stats("query_processing_time"),
			"query_execution_time":  a.collector.Stats("query_execution_time"),
		},
	}
}

func (a *Agent) errorResult(question, message string) *Result {
	return &Result{
		ID:       uuid.New().String(),
		Status:   StatusError,
		Message:  message,
		Question: question,
	}
}

// Close releases the store connection.
func (a *Agent) Close() error {
	a.log.Info("Closing agent")
	return a.store.Close()
}
