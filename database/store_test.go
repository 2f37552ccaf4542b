package database

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir(), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// seedDataset creates a small isolated table plus its registry entry and
// returns the dataset id.
func seedDataset(t *testing.T, store *Store, id string, rowCount int) string {
	t.Helper()

	cols := []Column{
		{Name: "region", Type: TypeText, Nullable: true},
		{Name: "amount", Type: TypeInteger, Nullable: true},
	}
	rows := make([][]Value, rowCount)
	for i := range rows {
		rows[i] = []Value{TextValue(fmt.Sprintf("region_%d", i%4)), IntValue(int64((i + 1) * 10))}
	}
	require.NoError(t, store.CreateIsolatedTable(id, cols, rows))

	require.NoError(t, store.CreateDataset(Dataset{
		ID:               id,
		OriginalFilename: id + ".csv",
		ByteSize:         128,
		RowCount:         rowCount,
		ColumnCount:      len(cols),
		Columns:          []string{"Region", "Amount ($)"},
		ColumnMapping:    map[string]string{"Region": "region", "Amount ($)": "amount"},
		TableName:        TableNameFor(id),
	}))
	return id
}

func TestOpenCreatesDataDir(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "nested", "data")
	store, err := Open(dataDir, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer store.Close()

	// The metadata database is a real file inside the data directory.
	_, err = os.Stat(filepath.Join(dataDir, "metadata.db"))
	assert.NoError(t, err)
}

func TestTableNameFor(t *testing.T) {
	assert.Equal(t, "data_1f2e3d4c5b6a", TableNameFor("1f2e3d4c-5b6a-7890-aaaa-bbbbccccdddd"))
	assert.Equal(t, "data_short", TableNameFor("short"))
}

func TestRegistryRoundTrip(t *testing.T) {
	store := newTestStore(t)
	id := seedDataset(t, store, "ds-roundtrip", 3)

	ds, err := store.GetDataset(id)
	require.NoError(t, err)
	assert.Equal(t, "ds-roundtrip.csv", ds.OriginalFilename)
	assert.Equal(t, "ds-roundtrip.csv", ds.Name())
	assert.Equal(t, map[string]string{"Region": "region", "Amount ($)": "amount"}, ds.ColumnMapping)
	assert.NotZero(t, ds.CreatedAt)

	require.NoError(t, store.UpdateDisplayName(id, "Quarterly sales"))
	ds, err = store.GetDataset(id)
	require.NoError(t, err)
	assert.Equal(t, "Quarterly sales", ds.Name())

	list, err := store.ListDatasets()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
}

func TestGetDatasetNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetDataset("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = store.UpdateDisplayName("missing", "x")
	assert.ErrorIs(t, err, ErrNotFound)

	err = store.DeleteDataset("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQueryTableAndSchema(t *testing.T) {
	store := newTestStore(t)
	id := seedDataset(t, store, "ds-query", 5)

	cols, err := store.TableSchema(id)
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, "region", cols[0].Name)
	assert.Equal(t, TypeText, cols[0].Type)
	assert.Equal(t, TypeInteger, cols[1].Type)

	names, rows, err := store.QueryTable(id,
		"SELECT region, SUM(amount) AS total FROM "+TableNameFor(id)+" GROUP BY region ORDER BY total DESC")
	require.NoError(t, err)
	assert.Equal(t, []string{"region", "total"}, names)
	require.NotEmpty(t, rows)

	_, _, err = store.QueryTable(id, "SELECT nope FROM "+TableNameFor(id))
	assert.ErrorIs(t, err, ErrEngine)

	_, _, err = store.QueryTable("missing", "SELECT 1")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.TableSchema("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

// The inferred type set is fixed at ingestion; every member, date
// included, must survive the trip through the engine's table_info.
func TestColumnTypesRoundTripThroughSchema(t *testing.T) {
	store := newTestStore(t)

	cols := []Column{
		{Name: "ordered_on", Type: TypeDate, Nullable: true},
		{Name: "units", Type: TypeInteger, Nullable: true},
		{Name: "price", Type: TypeReal, Nullable: true},
		{Name: "note", Type: TypeText, Nullable: true},
	}
	rows := [][]Value{
		{DateValue(mustDate(t, "2024-01-01")), IntValue(3), RealValue(9.5), TextValue("a")},
		{DateValue(mustDate(t, "2024-02-15")), IntValue(7), RealValue(1.25), TextValue("b")},
	}
	require.NoError(t, store.CreateIsolatedTable("ds-types", cols, rows))

	schema, err := store.TableSchema("ds-types")
	require.NoError(t, err)
	require.Len(t, schema, 4)
	assert.Equal(t, TypeDate, schema[0].Type)
	assert.Equal(t, TypeInteger, schema[1].Type)
	assert.Equal(t, TypeReal, schema[2].Type)
	assert.Equal(t, TypeText, schema[3].Type)

	// Date cells are stored as ISO-8601 text and stay comparable.
	_, got, err := store.QueryTable("ds-types",
		"SELECT ordered_on FROM "+TableNameFor("ds-types")+" WHERE ordered_on >= '2024-02-01'")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2024-02-15", got[0]["ordered_on"])
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}

func TestSampleRows(t *testing.T) {
	store := newTestStore(t)
	id := seedDataset(t, store, "ds-sample", 30)

	_, rows, err := store.SampleRows(id, 7)
	require.NoError(t, err)
	assert.Len(t, rows, 7)

	// Non-positive limits fall back to the default of 10.
	_, rows, err = store.SampleRows(id, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 10)
}

func TestCreateIsolatedTableFailureLeavesNothing(t *testing.T) {
	store := newTestStore(t)

	// Duplicate column names make CREATE TABLE fail; storage must be gone
	// afterwards so a retry starts clean.
	cols := []Column{{Name: "a", Type: TypeText}, {Name: "a", Type: TypeText}}
	err := store.CreateIsolatedTable("ds-broken", cols, nil)
	require.ErrorIs(t, err, ErrEngine)

	_, schemaErr := store.TableSchema("ds-broken")
	assert.ErrorIs(t, schemaErr, ErrNotFound)
}

func TestDeleteDatasetCascades(t *testing.T) {
	store := newTestStore(t)
	id := seedDataset(t, store, "ds-delete", 2)

	_, err := store.AppendTurn(id, "q1", "a1")
	require.NoError(t, err)
	_, err = store.AppendTurn(id, "q2", "a2")
	require.NoError(t, err)

	require.NoError(t, store.DeleteDataset(id))

	_, err = store.GetDataset(id)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.TableSchema(id)
	assert.ErrorIs(t, err, ErrNotFound)

	turns, err := store.AllTurns(id)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestDatasetsAreIsolatedFromEachOther(t *testing.T) {
	store := newTestStore(t)
	a := seedDataset(t, store, "ds-iso-a", 3)
	b := seedDataset(t, store, "ds-iso-b", 3)

	// One dataset's handle cannot see the other's table.
	_, _, err := store.QueryTable(a, "SELECT * FROM "+TableNameFor(b))
	assert.ErrorIs(t, err, ErrEngine)
}
