package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/askdb/askdb/internal/agent"
	"github.com/askdb/askdb/internal/completion"
	"github.com/askdb/askdb/internal/errors"
	"github.com/askdb/askdb/internal/logging"
	"github.com/askdb/askdb/internal/metrics"
	"github.com/askdb/askdb/internal/runner"
	"github.com/askdb/askdb/internal/schema"
	"github.com/askdb/askdb/internal/storage"
)

var askShowMetrics bool

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a natural-language question with a generated SQL query",
	Long: `Translate a question into a single read-only SELECT statement, validate it,
run it against the configured database, and print the results.

Examples:
  askdb ask "How many customers are there per country?"
  askdb ask --show-metrics "List the five most recent visits"`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askShowMetrics, "show-metrics", false, "Print timing metrics after the result")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := logging.GetLogger()

	store, err := storage.Open(storage.Driver(cfg.Database.Driver), cfg.Database.Path)
	if err != nil {
		return errors.Wrap(err, errors.ErrTypeStore, "failed to open database")
	}

	collector := metrics.NewCollector(cfg.Metrics.Retention)

	backend := completion.NewLlamaServer(
		cfg.Model.BaseURL,
		time.Duration(cfg.Model.RequestTimeout)*time.Second,
	)

	client := completion.NewClient(backend, completion.Config{
		MaxContextTokens:  cfg.Model.MaxContextTokens,
		MaxResponseTokens: cfg.Model.MaxResponseTokens,
		Temperature:       cfg.Model.Temperature,
		ReadyWait:         time.Duration(cfg.Model.ReadyWaitSeconds) * time.Second,
	}, logger)

	run := runner.New(store, time.Duration(cfg.Query.TimeoutSeconds)*time.Second, collector, logger)

	ag := agent.New(
		schema.NewCatalog(store),
		client,
		run,
		store,
		collector,
		agent.Config{
			MaxQueryLength: cfg.Query.MaxLength,
			ModelWait:      time.Duration(cfg.Model.ReadyWaitSeconds) * time.Second,
		},
		logger,
	)
	defer func() { _ = ag.Close() }()

	// Show progress while the model loads; the agent re-checks readiness itself
	if !client.IsReady() {
		s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Suffix = " waiting for model..."
		s.Start()
		client.AwaitReady(time.Duration(cfg.Model.ReadyWaitSeconds) * time.Second)
		s.Stop()
	}

	result := ag.ProcessQuery(ctx, args[0])
	printResult(result)

	if askShowMetrics {
		printMetrics(result)
	}

	return nil
}

func printResult(result *agent.Result) {
	switch result.Status {
	case agent.StatusSuccess:
		fmt.Println("Generated SQL:")
		fmt.Println("  " + result.SQL)
		fmt.Println()
		printTable(result.Columns, result.Rows)

		if result.Summary != nil {
			fmt.Printf("\n%d row(s), %d column(s)\n", result.Summary.RowCount, result.Summary.ColumnCount)
		}
	case agent.StatusPending:
		fmt.Println(result.Message)
	default:
		fmt.Println("Error: " + result.Message)
	}
}

func printTable(columns []string, rows []map[string]any) {
	if len(columns) == 0 {
		fmt.Println("(no columns)")
		return
	}

	widths := make([]int, len(columns))
	for i, col := range columns {
		widths[i] = len(col)
	}

	cells := make([][]string, 0, len(rows))

	for _, row := range rows {
		line := make([]string, len(columns))

		for i, col := range columns {
			line[i] = formatCell(row[col])
			if len(line[i]) > widths[i] {
				widths[i] = len(line[i])
			}
		}

		cells = append(cells, line)
	}

	var header []string
	for i, col := range columns {
		header = append(header, pad(col, widths[i]))
	}

	fmt.Println(strings.Join(header, "  "))

	for _, line := range cells {
		for i := range line {
			line[i] = pad(line[i], widths[i])
		}

		fmt.Println(strings.Join(line, "  "))
	}
}

func formatCell(v any) string {
	if v == nil {
		return "NULL"
	}

	return fmt.Sprintf("%v", v)
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}

	return s + strings.Repeat(" ", width-len(s))
}

func printMetrics(result *agent.Result) {
	if len(result.Metrics) == 0 {
		return
	}

	fmt.Println("\nPerformance metrics:")

	for name, stats := range result.Metrics {
		fmt.Printf("  %s: count=%d min=%.3fs max=%.3fs avg=%.3fs\n",
			name, stats.Count, stats.Min, stats.Max, stats.Avg)
	}
}
