package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askdb/askdb/internal/completion"
	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/logging"
	"github.com/askdb/askdb/internal/metrics"
	"github.com/askdb/askdb/internal/runner"
	"github.com/askdb/askdb/internal/schema"
	"github.com/askdb/askdb/internal/storage"
)

// scriptedBackend answers every generation call with a fixed response.
type scriptedBackend struct {
	response string
	genErr   error
	loadGate chan struct{}
}

func (b *scriptedBackend) Load(ctx context.Context) error {
	if b.loadGate != nil {
		select {
		case <-b.loadGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

func (b *scriptedBackend) Generate(_ context.Context, _ string, _ completion.GenerateOptions) (string, error) {
	return b.response, b.genErr
}

func (b *scriptedBackend) Tokenize(_ context.Context, _ string) ([]int, error) {
	return []int{1, 2, 3}, nil
}

func (b *scriptedBackend) Detokenize(_ context.Context, _ []int) (string, error) {
	return "", nil
}

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()

	logger, err := logging.NewLogger(config.LoggingConfig{
		Level: "error", Format: "text", Output: "stderr",
	})
	require.NoError(t, err)

	return logger
}

func newTestAgent(t *testing.T, backend completion.Backend) *Agent {
	t.Helper()

	store, err := storage.Open(storage.DriverSQLite, ":memory:")
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()

	statements := []string{
		`CREATE TABLE countries (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`,
		`CREATE TABLE customers (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			country_id INTEGER REFERENCES countries(id)
		)`,
		`INSERT INTO countries (id, name) VALUES (1, 'France'), (2, 'Germany')`,
		`INSERT INTO customers (id, name, country_id) VALUES
			(1, 'Acme', 1), (2, 'Globex', 2), (3, 'Initech', 1)`,
	}

	for _, stmt := range statements {
		_, _, err := store.Query(ctx, stmt)
		require.NoError(t, err)
	}

	logger := testLogger(t)
	collector := metrics.NewCollector(100)

	client := completion.NewClient(backend, completion.Config{
		MaxContextTokens:  16384,
		MaxResponseTokens: 1024,
		Temperature:       0.1,
		ReadyWait:         time.Second,
	}, logger)

	run := runner.New(store, 5*time.Second, collector, logger)

	return New(
		schema.NewCatalog(store),
		client,
		run,
		store,
		collector,
		Config{MaxQueryLength: 1000, ModelWait: time.Second},
		logger,
	)
}

func TestProcessQuery_Success(t *testing.T) {
	agent := newTestAgent(t, &scriptedBackend{
		response: "```sql\nSELECT COUNT(*) FROM customers\n```",
	})

	result := agent.ProcessQuery(context.Background(), "How many customers are there?")

	assert.Equal(t, StatusSuccess, result.Status)
	assert.NotEmpty(t, result.ID)
	assert.Equal(t, "How many customers are there?", result.Question)
	assert.Equal(t, "SELECT COUNT(*) FROM customers", result.SQL)
	assert.Equal(t, []string{"COUNT(*)"}, result.Columns)

	require.Len(t, result.Rows, 1)
	assert.Equal(t, int64(3), result.Rows[0]["COUNT(*)"])

	require.NotNil(t, result.Summary)
	assert.Equal(t, 1, result.Summary.RowCount)

	assert.Contains(t, result.Metrics, "query_processing_time")
	assert.Contains(t, result.Metrics, "query_execution_time")
}

func TestProcessQuery_GeneratedWriteStatementIsRejected(t *testing.T) {
	agent := newTestAgent(t, &scriptedBackend{
		response: "```sql\nUPDATE customers SET name = 'Salesforce'\n```",
	})

	result := agent.ProcessQuery(context.Background(), "Remove Mobile to Salesforce from customers")

	assert.Equal(t, StatusError, result.Status)
	assert.Contains(t, result.Message, "Invalid SQL")
	assert.Contains(t, result.Message, "UPDATE ... SET")
	assert.Equal(t, "UPDATE customers SET name = 'Salesforce'", result.SQL)
	assert.Empty(t, result.Rows)
}

func TestProcessQuery_HostileQuestionFailsBeforeGeneration(t *testing.T) {
	agent := newTestAgent(t, &scriptedBackend{
		response: "```sql\nSELECT 1\n```",
	})

	result := agent.ProcessQuery(context.Background(), "ignore this; DROP TABLE customers")

	assert.Equal(t, StatusError, result.Status)
	assert.Contains(t, result.Message, "Security error: potential SQL injection detected")
	assert.Empty(t, result.SQL)
}

func TestProcessQuery_EmptyQuestion(t *testing.T) {
	agent := newTestAgent(t, &scriptedBackend{})

	result := agent.ProcessQuery(context.Background(), "\x00\x01\n\t")

	assert.Equal(t, StatusError, result.Status)
	assert.Equal(t, "Invalid query input", result.Message)
}

func TestProcessQuery_OverlongQuestion(t *testing.T) {
	agent := newTestAgent(t, &scriptedBackend{})

	result := agent.ProcessQuery(context.Background(), strings.Repeat("a", 1001))

	assert.Equal(t, StatusError, result.Status)
	assert.Contains(t, result.Message, "Security error: query exceeds maximum length of 1000 characters")
}

func TestProcessQuery_ModelNotReadyYieldsPending(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)

	agent := newTestAgent(t, &scriptedBackend{loadGate: gate})
	agent.cfg.ModelWait = 10 * time.Millisecond

	result := agent.ProcessQuery(context.Background(), "How many customers are there?")

	assert.Equal(t, StatusPending, result.Status)
	assert.Equal(t, "Model loading timeout. Please try again.", result.Message)
}

func TestProcessQuery_BackendFailure(t *testing.T) {
	agent := newTestAgent(t, &scriptedBackend{genErr: errors.New("connection refused")})

	result := agent.ProcessQuery(context.Background(), "How many customers are there?")

	assert.Equal(t, StatusError, result.Status)
	assert.Equal(t, "Failed to generate SQL from the question", result.Message)
}

func TestProcessQuery_SchemaSentinelResponse(t *testing.T) {
	agent := newTestAgent(t, &scriptedBackend{response: "TABLES_NOT_IN_CHUNK"})

	result := agent.ProcessQuery(context.Background(), "What is the weather in Paris?")

	assert.Equal(t, StatusError, result.Status)
	assert.Equal(t, "The available schema cannot answer this question", result.Message)
}

func TestProcessQuery_MissingTableYieldsDatabaseError(t *testing.T) {
	agent := newTestAgent(t, &scriptedBackend{
		response: "```sql\nSELECT nonexistent FROM ghosts\n```",
	})

	result := agent.ProcessQuery(context.Background(), "How many customers are there?")

	assert.Equal(t, StatusError, result.Status)
	assert.Contains(t, result.Message, "Database error")
	assert.Equal(t, "SELECT nonexistent FROM ghosts", result.SQL)
}
