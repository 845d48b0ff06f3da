package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/logging"
)

var (
	flagDBPath   string
	flagDBDriver string
	flagModelURL string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "askdb",
	Short: "Ask questions about a local database in natural language",
	Long: `askdb translates a natural-language question into a read-only SQL query
against a local SQLite or DuckDB database, validates the generated SQL through a
layered allowlist/denylist gate, executes it, and prints the results with
summary statistics. Generation runs against a local llama.cpp server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	ctx := context.Background()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db-path", "", "Path to the database file")
	rootCmd.PersistentFlags().StringVar(&flagDBDriver, "db-driver", "", "Database driver: sqlite or duckdb")
	rootCmd.PersistentFlags().StringVar(&flagModelURL, "model-url", "", "Base URL of the llama.cpp server")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(schemaCmd)
}

// loadConfig resolves configuration from file, environment, and flags, and
// prepares the logger and directories.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithOverrides(map[string]interface{}{
		"db-path":   flagDBPath,
		"db-driver": flagDBDriver,
		"model-url": flagModelURL,
		"log-level": flagLogLevel,
	})
	if err != nil {
		return nil, err
	}

	cfg.ExpandAllPaths()

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	if err := logging.InitializeLogger(cfg.Logging); err != nil {
		logging.SetupFallbackLogger()
	}

	return cfg, nil
}
