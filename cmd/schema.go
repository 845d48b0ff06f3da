package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/askdb/askdb/internal/errors"
	"github.com/askdb/askdb/internal/schema"
	"github.com/askdb/askdb/internal/storage"
)

var schemaSampleLimit int

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the introspected database schema",
	Long: `Print the schema description exactly as it is rendered into generation
prompts. With --sample, also print example rows from each table.`,
	Args: cobra.NoArgs,
	RunE: runSchema,
}

func init() {
	schemaCmd.Flags().IntVar(&schemaSampleLimit, "sample", 0, "Also print up to N sample rows per table")
}

func runSchema(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := storage.Open(storage.Driver(cfg.Database.Driver), cfg.Database.Path)
	if err != nil {
		return errors.Wrap(err, errors.ErrTypeStore, "failed to open database")
	}
	defer func() { _ = store.Close() }()

	catalog := schema.NewCatalog(store)

	rendered, err := catalog.Render(ctx)
	if err != nil {
		return err
	}

	fmt.Print(rendered)

	if schemaSampleLimit > 0 {
		samples, err := catalog.RenderSamples(ctx, schemaSampleLimit)
		if err != nil {
			return err
		}

		fmt.Println()
		fmt.Print(samples)
	}

	return nil
}
