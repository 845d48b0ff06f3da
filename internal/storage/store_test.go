package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(DriverSQLite, ":memory:")
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	return store
}

func seedTestData(t *testing.T, store *Store) {
	t.Helper()

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
			(1, 'Acme', 1), (2, 'Globex', 2), (3, 'Initech', NULL)`,
	}

	for _, stmt := range statements {
		_, _, err := store.Query(ctx, stmt)
		require.NoError(t, err)
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(Driver("postgres"), ":memory:")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestStore_Query(t *testing.T) {
	store := newTestStore(t)
	seedTestData(t, store)

	columns, rows, err := store.Query(context.Background(),
		"SELECT name, country_id FROM customers ORDER BY id")

	require.NoError(t, err)
	assert.Equal(t, []string{"name", "country_id"}, columns)
	require.Len(t, rows, 3)
	assert.Equal(t, "Acme", rows[0][0])
	assert.Equal(t, int64(1), rows[0][1])
	assert.Nil(t, rows[2][1])
}

func TestStore_QueryMaterializesBytes(t *testing.T) {
	store := newTestStore(t)

	_, rows, err := store.Query(context.Background(), "SELECT X'414243'")

	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ABC", rows[0][0])
}

func TestStore_QueryError(t *testing.T) {
	store := newTestStore(t)

	_, _, err := store.Query(context.Background(), "SELECT * FROM no_such_table")

	assert.Error(t, err)
}

func TestStore_TableNames(t *testing.T) {
	store := newTestStore(t)
	seedTestData(t, store)

	names, err := store.TableNames(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"countries", "customers"}, names)
}

func TestStore_TableColumns(t *testing.T) {
	store := newTestStore(t)
	seedTestData(t, store)

	columns, err := store.TableColumns(context.Background(), "customers")

	require.NoError(t, err)
	require.Len(t, columns, 3)

	assert.Equal(t, "id", columns[0].Name)
	assert.Equal(t, "INTEGER", columns[0].Type)
	assert.True(t, columns[0].PrimaryKey)

	assert.Equal(t, "name", columns[1].Name)
	assert.Equal(t, "TEXT", columns[1].Type)
	assert.True(t, columns[1].NotNull)
	assert.False(t, columns[1].PrimaryKey)

	assert.Equal(t, "country_id", columns[2].Name)
	assert.False(t, columns[2].NotNull)
}

func TestStore_TableForeignKeys(t *testing.T) {
	store := newTestStore(t)
	seedTestData(t, store)

	fks, err := store.TableForeignKeys(context.Background(), "customers")

	require.NoError(t, err)
	require.Len(t, fks, 1)
	assert.Equal(t, ForeignKeyInfo{
		Table:            "customers",
		Column:           "country_id",
		ReferencesTable:  "countries",
		ReferencesColumn: "id",
	}, fks[0])
}

func TestStore_TableForeignKeysNone(t *testing.T) {
	store := newTestStore(t)
	seedTestData(t, store)

	fks, err := store.TableForeignKeys(context.Background(), "countries")

	require.NoError(t, err)
	assert.Empty(t, fks)
}

func TestStore_SampleRows(t *testing.T) {
	store := newTestStore(t)
	seedTestData(t, store)

	columns, rows, err := store.SampleRows(context.Background(), "customers", 2)

	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "country_id"}, columns)
	assert.Len(t, rows, 2)
}

func TestStore_SetBusyTimeout(t *testing.T) {
	store := newTestStore(t)

	err := store.SetBusyTimeout(context.Background(), 5*time.Second)

	require.NoError(t, err)

	_, rows, err := store.Query(context.Background(), "PRAGMA busy_timeout")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(5000), rows[0][0])
}

func TestStore_SetBusyTimeoutDuckDBNoOp(t *testing.T) {
	store := NewStoreFromDB(&sql.DB{}, DriverDuckDB)

	assert.NoError(t, store.SetBusyTimeout(context.Background(), time.Second))
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"customers"`, quoteIdent("customers"))
	assert.Equal(t, `"weird""name"`, quoteIdent(`weird"name`))
}

func TestAsBool(t *testing.T) {
	assert.True(t, asBool(true))
	assert.True(t, asBool(int64(1)))
	assert.True(t, asBool("1"))
	assert.True(t, asBool([]byte("true")))
	assert.False(t, asBool(int64(0)))
	assert.False(t, asBool("0"))
	assert.False(t, asBool(nil))
}
