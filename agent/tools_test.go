package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"datachat/config"
	"datachat/database"
)

// seedStore creates a store with one dataset holding rowCount rows of
// (region TEXT, amount INTEGER) and returns the store plus the dataset id.
func seedStore(t *testing.T, rowCount int) (*database.Store, string) {
	t.Helper()
	store, err := database.Open(t.TempDir(), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	const id = "test-dataset-0001"
	cols := []database.Column{
		{Name: "region", Type: database.TypeText, Nullable: true},
		{Name: "amount", Type: database.TypeInteger, Nullable: true},
	}
	rows := make([][]database.Value, rowCount)
	for i := range rows {
		rows[i] = []database.Value{
			database.TextValue(fmt.Sprintf("region_%d", i%4)),
			database.IntValue(int64(i + 1)),
		}
	}
	require.NoError(t, store.CreateIsolatedTable(id, cols, rows))
	require.NoError(t, store.CreateDataset(database.Dataset{
		ID:               id,
		OriginalFilename: "seed.csv",
		ByteSize:         1,
		RowCount:         rowCount,
		ColumnCount:      2,
		Columns:          []string{"Region", "Amount"},
		ColumnMapping:    map[string]string{"Region": "region", "Amount": "amount"},
		TableName:        database.TableNameFor(id),
	}))
	return store, id
}

func decodeResult(t *testing.T, output string) ToolResult {
	t.Helper()
	var r ToolResult
	require.NoError(t, json.Unmarshal([]byte(output), &r))
	return r
}

func runQuery(t *testing.T, qt *QueryTool, datasetID, query string) ToolResult {
	t.Helper()
	input, _ := json.Marshal(queryInput{Query: query, DatasetID: datasetID, Rationale: "test"})
	out, err := qt.InvokableRun(context.Background(), string(input))
	require.NoError(t, err)
	return decodeResult(t, out)
}

func TestQueryToolRejectsNonSelect(t *testing.T) {
	store, id := seedStore(t, 3)
	qt := NewQueryTool(store, NewTracker(), config.Default(), zaptest.NewLogger(t))
	table := database.TableNameFor(id)

	for _, query := range []string{
		"DELETE FROM " + table,
		"UPDATE " + table + " SET amount = 0",
		"DROP TABLE " + table,
		"INSERT INTO " + table + " VALUES ('x', 1)",
		"-- sneaky\nDELETE FROM " + table,
		"/* SELECT */ DELETE FROM " + table,
	} {
		result := runQuery(t, qt, id, query)
		assert.False(t, result.Success, "query %q was not rejected", query)
		assert.Equal(t, "ValidationError", result.Error)
	}

	// Nothing was deleted: the rejection happened before execution.
	_, rows, err := store.QueryTable(id, "SELECT * FROM "+table)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestQueryToolRejectsUnsupportedConstructs(t *testing.T) {
	store, id := seedStore(t, 3)
	qt := NewQueryTool(store, NewTracker(), config.Default(), zaptest.NewLogger(t))
	table := database.TableNameFor(id)

	cases := []struct {
		query string
		token string
	}{
		{"SELECT region, ROW_NUMBER() OVER (ORDER BY amount) FROM " + table, "OVER"},
		{"SELECT MEDIAN(amount) FROM " + table, "MEDIAN"},
		{"SELECT STDDEV(amount) FROM " + table, "STDDEV"},
		{"SELECT TOP 5 * FROM " + table, "TOP"},
		{"SELECT CORR(amount, amount) FROM " + table, "CORR"},
	}
	for _, tc := range cases {
		result := runQuery(t, qt, id, tc.query)
		assert.False(t, result.Success)
		assert.Equal(t, "UnsupportedSyntax", result.Error)
		assert.Contains(t, result.Observation, tc.token)
	}
}

func TestQueryToolRejectsForeignTables(t *testing.T) {
	store, id := seedStore(t, 3)
	qt := NewQueryTool(store, NewTracker(), config.Default(), zaptest.NewLogger(t))

	result := runQuery(t, qt, id, "SELECT * FROM data_somebodyelse")
	assert.False(t, result.Success)
	assert.Equal(t, "ScopeViolation", result.Error)
}

func TestQueryToolAppendsRowCap(t *testing.T) {
	store, id := seedStore(t, 1500)
	cfg := config.Default() // QueryRowCap 1000
	qt := NewQueryTool(store, NewTracker(), cfg, zaptest.NewLogger(t))

	result := runQuery(t, qt, id, "SELECT * FROM "+database.TableNameFor(id))
	require.True(t, result.Success, result.Observation)
	data := result.Data.(map[string]any)
	assert.Equal(t, float64(cfg.QueryRowCap), data["row_count"])

	// An explicit LIMIT is respected as-is.
	result = runQuery(t, qt, id, "SELECT * FROM "+database.TableNameFor(id)+" LIMIT 5;")
	require.True(t, result.Success)
	data = result.Data.(map[string]any)
	assert.Equal(t, float64(5), data["row_count"])
}

func TestQueryToolTruncatesOversizedResults(t *testing.T) {
	store, err := database.Open(t.TempDir(), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	// 300 rows of ~400 bytes each comfortably exceeds the output budget.
	const id = "oversized-result"
	filler := strings.Repeat("x", 400)
	rows := make([][]database.Value, 300)
	for i := range rows {
		rows[i] = []database.Value{database.TextValue(filler)}
	}
	require.NoError(t, store.CreateIsolatedTable(id,
		[]database.Column{{Name: "payload", Type: database.TypeText, Nullable: true}}, rows))
	require.NoError(t, store.CreateDataset(database.Dataset{
		ID: id, OriginalFilename: "big.csv", ByteSize: 1, RowCount: len(rows), ColumnCount: 1,
		Columns:       []string{"payload"},
		ColumnMapping: map[string]string{"payload": "payload"},
		TableName:     database.TableNameFor(id),
	}))

	qt := NewQueryTool(store, NewTracker(), config.Default(), zaptest.NewLogger(t))
	result := runQuery(t, qt, id, "SELECT * FROM "+database.TableNameFor(id))
	require.True(t, result.Success, result.Observation)

	data := result.Data.(map[string]any)
	assert.Equal(t, true, data["truncated"])
	assert.Equal(t, float64(len(rows)), data["total_row_count"])

	// row_count matches what was actually delivered, not the full set.
	kept := data["rows"].([]any)
	assert.Equal(t, float64(len(kept)), data["row_count"])
	assert.Less(t, len(kept), len(rows))
	assert.Contains(t, result.Observation, "truncated")
}

func TestQueryToolUnknownColumnSuggestsSchema(t *testing.T) {
	store, id := seedStore(t, 3)
	tracker := NewTracker()
	qt := NewQueryTool(store, tracker, config.Default(), zaptest.NewLogger(t))

	result := runQuery(t, qt, id, "SELECT revenue FROM "+database.TableNameFor(id))
	assert.False(t, result.Success)
	assert.Equal(t, "EngineError", result.Error)
	assert.True(t, result.ShouldReplan)
	assert.Contains(t, result.Observation, "region")
	assert.Contains(t, result.Observation, "amount")
	assert.Equal(t, 1, tracker.ErrorCount())
}

func TestQueryToolMissingDataset(t *testing.T) {
	store, _ := seedStore(t, 1)
	qt := NewQueryTool(store, NewTracker(), config.Default(), zaptest.NewLogger(t))

	result := runQuery(t, qt, "no-such-dataset", "SELECT 1")
	assert.False(t, result.Success)
	assert.Equal(t, "NotFound", result.Error)
	assert.True(t, result.ShouldReplan)
}

func TestSchemaToolAfterDelete(t *testing.T) {
	store, id := seedStore(t, 2)
	st := NewSchemaTool(store, zaptest.NewLogger(t))

	input, _ := json.Marshal(schemaInput{DatasetID: id})
	out, err := st.InvokableRun(context.Background(), string(input))
	require.NoError(t, err)
	result := decodeResult(t, out)
	require.True(t, result.Success)

	require.NoError(t, store.DeleteDataset(id))

	out, err = st.InvokableRun(context.Background(), string(input))
	require.NoError(t, err)
	result = decodeResult(t, out)
	assert.False(t, result.Success)
	assert.Equal(t, "NotFound", result.Error)
	assert.True(t, result.ShouldReplan)
}

func TestSampleToolCapsLimit(t *testing.T) {
	store, id := seedStore(t, 200)
	cfg := config.Default() // SampleRowCap 50
	st := NewSampleTool(store, cfg, zaptest.NewLogger(t))

	input, _ := json.Marshal(sampleInput{DatasetID: id, Limit: 500})
	out, err := st.InvokableRun(context.Background(), string(input))
	require.NoError(t, err)
	result := decodeResult(t, out)
	require.True(t, result.Success)
	data := result.Data.(map[string]any)
	assert.Equal(t, float64(cfg.SampleRowCap), data["row_count"])
}

func TestPlanToolDerivesSteps(t *testing.T) {
	tracker := NewTracker()
	pt := NewPlanTool(tracker, zaptest.NewLogger(t))

	input, _ := json.Marshal(planInput{Question: "What is the monthly trend of sales?", Rationale: "start"})
	out, err := pt.InvokableRun(context.Background(), string(input))
	require.NoError(t, err)
	result := decodeResult(t, out)
	require.True(t, result.Success)

	plan := tracker.Plan()
	assert.Contains(t, plan, "build_time_series")
	assert.Contains(t, plan, "analyze_trend_direction")
	// Every plan closes with the synthesis steps.
	assert.Equal(t, "formulate_recommendations", plan[len(plan)-1])
	assert.Equal(t, "start", tracker.Rationale())
}

func TestPlanToolFallbackSteps(t *testing.T) {
	tracker := NewTracker()
	pt := NewPlanTool(tracker, zaptest.NewLogger(t))

	input, _ := json.Marshal(planInput{Question: "Tell me about this data", Rationale: "start"})
	_, err := pt.InvokableRun(context.Background(), string(input))
	require.NoError(t, err)

	plan := tracker.Plan()
	assert.Equal(t, "explore_schema_and_samples", plan[0])
	assert.Equal(t, "run_targeted_queries", plan[1])
}

func TestPlanToolMalformedInput(t *testing.T) {
	pt := NewPlanTool(NewTracker(), zaptest.NewLogger(t))
	out, err := pt.InvokableRun(context.Background(), "{not json")
	require.NoError(t, err) // failures travel in the envelope
	result := decodeResult(t, out)
	assert.False(t, result.Success)
	assert.Equal(t, "ValidationError", result.Error)
}

func TestReflectToolErrorAlwaysRequestsReplan(t *testing.T) {
	tracker := NewTracker()
	rt := NewReflectTool(tracker, zaptest.NewLogger(t))

	// A narrative loaded with every positive signal still replans when an
	// error marker is present.
	narrative := "sales analysis: the trend indicates growth of 25 rows per month, " +
		"overall we recommend expanding north. in conclusion the pattern suggests strong seasonality " +
		"across all 12 months observed in the data. however the last query failed with an error."
	input, _ := json.Marshal(reflectInput{ResultsText: narrative, Question: "what drives sales?", Rationale: "check"})

	out, err := rt.InvokableRun(context.Background(), string(input))
	require.NoError(t, err)
	result := decodeResult(t, out)
	require.True(t, result.Success)
	assert.True(t, result.ShouldReplan)
	assert.True(t, tracker.ShouldReplan())

	data := result.Data.(map[string]any)
	assert.Equal(t, "continue", data["decision"])
	assert.Equal(t, true, data["has_error"])
}

func TestReflectToolSufficientResults(t *testing.T) {
	tracker := NewTracker()
	rt := NewReflectTool(tracker, zaptest.NewLogger(t))

	narrative := "revenue by region: north 1200, south 900. the trend indicates north is driven by " +
		"repeat purchases; we recommend focusing retention there. in conclusion, north outperforms on " +
		"every measured dimension and the gap widened each of the last 4 quarters."
	input, _ := json.Marshal(reflectInput{ResultsText: narrative, Question: "revenue by region?", Rationale: "check"})

	out, err := rt.InvokableRun(context.Background(), string(input))
	require.NoError(t, err)
	result := decodeResult(t, out)
	require.True(t, result.Success)
	assert.False(t, result.ShouldReplan)
	assert.False(t, tracker.ShouldReplan())

	data := result.Data.(map[string]any)
	assert.Equal(t, "sufficient", data["decision"])
}

func TestSummarizeToolBucketsFindings(t *testing.T) {
	st := NewSummarizeTool(zaptest.NewLogger(t))

	findings := []string{
		"the trend indicates rising weekend sales",
		"north region: 1200 units",
		"we recommend shifting inventory to weekends",
		"misc note",
	}
	input, _ := json.Marshal(summarizeInput{Findings: findings, Question: "q", Rationale: "wrap up"})

	out, err := st.InvokableRun(context.Background(), string(input))
	require.NoError(t, err)
	result := decodeResult(t, out)
	require.True(t, result.Success)

	data := result.Data.(map[string]any)
	assert.Len(t, data["key_insights"], 1)
	assert.Len(t, data["conclusions"], 1)
	assert.Len(t, data["data_points"], 2)
	assert.Equal(t, float64(25+20+20), data["quality_score"])
}
