// Package runner executes validated SQL against the store and shapes the raw
// rows into a results envelope with summary statistics.
package runner

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/askdb/askdb/internal/errors"
	"github.com/askdb/askdb/internal/logging"
	"github.com/askdb/askdb/internal/metrics"
	"github.com/askdb/askdb/internal/storage"
)

// Execution holds the raw outcome of one query.
type Execution struct {
	Columns []string
	Rows    [][]any
}

// Runner executes SQL with a bounded execution budget.
type Runner struct {
	store     *storage.Store
	timeout   time.Duration
	collector *metrics.Collector
	log       *logging.Logger
}

// New creates a runner over the given store.
func New(store *storage.Store, timeout time.Duration, collector *metrics.Collector, log *logging.Logger) *Runner {
	return &Runner{
		store:     store,
		timeout:   timeout,
		collector: collector,
		log:       log,
	}
}

// Execute runs one validated SQL statement and fetches all rows. Executions
// exceeding the configured budget fail with a store-timeout error; any other
// backend failure is a store error.
func (r *Runner) Execute(ctx context.Context, sqlText string) (*Execution, error) {
	defer r.collector.Track("query_execution_time")()

	r.log.Infof("Executing SQL query: %s", sqlText)

	if err := r.store.SetBusyTimeout(ctx, r.timeout); err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeStore, "failed to set busy timeout")
	}

	execCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	columns, rows, err := r.store.Query(execCtx, sqlText)
	if err != nil {
		if isTimeout(err) {
			return nil, errors.Wrapf(err, errors.ErrTypeStoreTimeout,
				"query execution timed out after %.0f seconds", r.timeout.Seconds())
		}

		return nil, errors.Wrap(err, errors.ErrTypeStore, "failed to execute query")
	}

	r.collector.Record("rows_returned", float64(len(rows)))
	r.log.Infof("Query executed successfully, returned %d rows", len(rows))

	return &Execution{Columns: columns, Rows: rows}, nil
}

func isTimeout(err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}

	msg := strings.ToLower(err.Error())

	return strings.Contains(msg, "timeout") || strings.Contains(msg, "interrupted")
}
