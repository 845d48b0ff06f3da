// Package schema introspects the store and renders compact textual schema
// descriptions for prompt construction.
package schema

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/askdb/askdb/internal/errors"
	"github.com/askdb/askdb/internal/storage"
)

// Column describes one column of a table.
type Column struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	PrimaryKey bool   `json:"is_primary_key"`
	NotNull    bool   `json:"not_null"`
	Default    string `json:"default,omitempty"`
}

// Table describes one table.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Relationship describes a foreign-key edge between tables.
type Relationship struct {
	Table            string `json:"table"`
	Column           string `json:"column"`
	ReferencesTable  string `json:"references_table"`
	ReferencesColumn string `json:"references_column"`
}

// Schema is the full descriptor of the connected store.
type Schema struct {
	Tables        []Table        `json:"tables"`
	Relationships []Relationship `json:"relationships"`
}

// fallbackTables is consulted when no table name appears in the question.
var fallbackTables = []string{"customer", "countries", "prospect", "visit"}

// Catalog introspects and caches the store schema. The cache is guarded so
// concurrent callers never observe a half-built schema.
type Catalog struct {
	store  *storage.Store
	mu     sync.Mutex
	cached *Schema
}

// NewCatalog creates a catalog over the given store.
func NewCatalog(store *storage.Store) *Catalog {
	return &Catalog{store: store}
}

// Describe returns the cached schema descriptor, building it on first use.
func (c *Catalog) Describe(ctx context.Context) (*Schema, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached != nil {
		return c.cached, nil
	}

	schema, err := c.introspect(ctx)
	if err != nil {
		// No partial schema is cached on failure
		return nil, err
	}

	c.cached = schema

	return schema, nil
}

// Refresh discards the cache and rebuilds the descriptor.
func (c *Catalog) Refresh(ctx context.Context) (*Schema, error) {
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()

	return c.Describe(ctx)
}

func (c *Catalog) introspect(ctx context.Context) (*Schema, error) {
	names, err := c.store.TableNames(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeStore, "failed to list tables")
	}

	schema := &Schema{}

	for _, name := range names {
		infos, err := c.store.TableColumns(ctx, name)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrTypeStore, "failed to describe table %s", name)
		}

		table := Table{Name: name}
		for _, info := range infos {
			table.Columns = append(table.Columns, Column{
				Name:       info.Name,
				Type:       info.Type,
				PrimaryKey: info.PrimaryKey,
				NotNull:    info.NotNull,
				Default:    info.Default.String,
			})
		}

		schema.Tables = append(schema.Tables, table)

		fks, err := c.store.TableForeignKeys(ctx, name)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrTypeStore, "failed to read foreign keys of %s", name)
		}

		for _, fk := range fks {
			schema.Relationships = append(schema.Relationships, Relationship{
				Table:            fk.Table,
				Column:           fk.Column,
				ReferencesTable:  fk.ReferencesTable,
				ReferencesColumn: fk.ReferencesColumn,
			})
		}
	}

	return schema, nil
}

// Render renders the full schema as prompt text.
func (c *Catalog) Render(ctx context.Context) (string, error) {
	schema, err := c.Describe(ctx)
	if err != nil {
		return "", err
	}

	return renderTables(schema.Tables), nil
}

// RenderRelevant renders only the tables relevant to the question. A table is
// relevant when its lowercased name appears in the lowercased question; if
// nothing matches, the fallback set intersected with existing tables is used.
func (c *Catalog) RenderRelevant(ctx context.Context, question string) (string, error) {
	schema, err := c.Describe(ctx)
	if err != nil {
		return "", err
	}

	questionLower := strings.ToLower(question)
	relevant := make(map[string]bool)

	for _, table := range schema.Tables {
		if strings.Contains(questionLower, strings.ToLower(table.Name)) {
			relevant[table.Name] = true
		}
	}

	if len(relevant) == 0 {
		existing := make(map[string]bool, len(schema.Tables))
		for _, table := range schema.Tables {
			existing[table.Name] = true
		}

		for _, name := range fallbackTables {
			if existing[name] {
				relevant[name] = true
			}
		}
	}

	var filtered []Table

	for _, table := range schema.Tables {
		if relevant[table.Name] {
			filtered = append(filtered, table)
		}
	}

	return renderTables(filtered), nil
}

// renderTables renders tables as `name(col TYPE PK NN, ...);` lines under the
// schema header.
func renderTables(tables []Table) string {
	var sb strings.Builder

	sb.WriteString("### DATABASE SCHEMA\n\n")

	for _, table := range tables {
		defs := make([]string, 0, len(table.Columns))

		for _, col := range table.Columns {
			var flags []string
			if col.PrimaryKey {
				flags = append(flags, "PK")
			}

			if col.NotNull {
				flags = append(flags, "NN")
			}

			def := strings.TrimSpace(fmt.Sprintf("%s %s %s", col.Name, col.Type, strings.Join(flags, " ")))
			defs = append(defs, def)
		}

		sb.WriteString(fmt.Sprintf("%s(%s);\n", table.Name, strings.Join(defs, ", ")))
	}

	return sb.String()
}

// RenderSamples renders up to limit rows from each table as prompt text.
// Tables that fail to read render as unavailable rather than failing the call.
func (c *Catalog) RenderSamples(ctx context.Context, limit int) (string, error) {
	schema, err := c.Describe(ctx)
	if err != nil {
		return "", err
	}

	var sb strings.Builder

	sb.WriteString("SAMPLE DATA:\n\n")

	for _, table := range schema.Tables {
		sb.WriteString(fmt.Sprintf("Table: %s\n", table.Name))

		columns, rows, err := c.store.SampleRows(ctx, table.Name, limit)
		if err != nil || len(rows) == 0 {
			sb.WriteString("  (No data available)\n\n")
			continue
		}

		sb.WriteString("  " + strings.Join(columns, " | ") + "\n")

		for _, row := range rows {
			cells := make([]string, len(row))
			for i, v := range row {
				if v == nil {
					cells[i] = "NULL"
				} else {
					cells[i] = fmt.Sprintf("%v", v)
				}
			}

			sb.WriteString("  " + strings.Join(cells, " | ") + "\n")
		}

		sb.WriteString("\n")
	}

	return sb.String(), nil
}
