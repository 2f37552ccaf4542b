package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"datachat/config"
	"datachat/database"
)

type queryInput struct {
	Query     string `json:"query"`
	DatasetID string `json:"dataset_id"`
	Rationale string `json:"rationale"`
}

// unsupportedConstructs are query tokens the embedded engine cannot run:
// windowing, vendor pagination, and statistical aggregates it lacks. Each
// pattern names the token reported back to the model.
var unsupportedConstructs = []struct {
	token   string
	pattern *regexp.Regexp
}{
	{"OVER", regexp.MustCompile(`(?i)\bOVER\s*\(`)},
	{"PARTITION BY", regexp.MustCompile(`(?i)\bPARTITION\s+BY\b`)},
	{"ROW_NUMBER", regexp.MustCompile(`(?i)\bROW_NUMBER\s*\(`)},
	{"RANK", regexp.MustCompile(`(?i)\bRANK\s*\(`)},
	{"DENSE_RANK", regexp.MustCompile(`(?i)\bDENSE_RANK\s*\(`)},
	{"LEAD", regexp.MustCompile(`(?i)\bLEAD\s*\(`)},
	{"LAG", regexp.MustCompile(`(?i)\bLAG\s*\(`)},
	{"NTILE", regexp.MustCompile(`(?i)\bNTILE\s*\(`)},
	{"TOP", regexp.MustCompile(`(?i)^SELECT\s+TOP\b`)},
	{"FETCH FIRST", regexp.MustCompile(`(?i)\bFETCH\s+(FIRST|NEXT)\b`)},
	{"MEDIAN", regexp.MustCompile(`(?i)\bMEDIAN\s*\(`)},
	{"STDDEV", regexp.MustCompile(`(?i)\bSTDDEV(_POP|_SAMP)?\s*\(`)},
	{"VARIANCE", regexp.MustCompile(`(?i)\bVAR(IANCE|_POP|_SAMP)\s*\(`)},
	{"PERCENTILE_CONT", regexp.MustCompile(`(?i)\bPERCENTILE_(CONT|DISC)\s*\(`)},
	{"CORR", regexp.MustCompile(`(?i)\bCORR\s*\(`)},
}

const maxToolOutputBytes = 50000

// QueryTool executes validated read-only queries against the dataset's
// isolated table.
type QueryTool struct {
	store   *database.Store
	tracker *Tracker
	cfg     *config.Config
	log     *zap.Logger
}

// NewQueryTool creates the query tool.
func NewQueryTool(store *database.Store, tracker *Tracker, cfg *config.Config, logger *zap.Logger) *QueryTool {
	return &QueryTool{store: store, tracker: tracker, cfg: cfg, log: logger}
}

func (t *QueryTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: "execute_query",
		Desc: fmt.Sprintf("Execute a read-only SELECT against the dataset's table and return rows as JSON. Results are capped at %d rows. Window functions and vendor-specific aggregates are not available.", t.cfg.QueryRowCap),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "The SELECT statement to run. It must reference the dataset's own table.",
				Required: true,
			},
			"dataset_id": {
				Type:     schema.String,
				Desc:     "The id of the dataset to query.",
				Required: true,
			},
			"rationale": {
				Type: schema.String,
				Desc: "Why this query is the next step.",
			},
		}),
	}, nil
}

// stripComments removes -- and /* */ comments before validation so a
// smuggled prefix cannot hide the real statement.
func stripComments(query string) string {
	query = regexp.MustCompile(`--[^\n]*`).ReplaceAllString(query, "")
	query = regexp.MustCompile(`/\*[\s\S]*?\*/`).ReplaceAllString(query, "")
	return strings.TrimSpace(query)
}

// referencesTable reports whether the query mentions tableName bare or
// quoted with backticks or double quotes.
func referencesTable(query, tableName string) bool {
	pattern := fmt.Sprintf("(?i)(^|[^\\w])[`\"]?%s[`\"]?($|[^\\w])", regexp.QuoteMeta(tableName))
	return regexp.MustCompile(pattern).MatchString(query)
}

func (t *QueryTool) InvokableRun(ctx context.Context, input string, opts ...tool.Option) (string, error) {
	var in queryInput
	if err := json.Unmarshal([]byte(input), &in); err != nil {
		return failureResult(ErrValidation, "query input was not understood", "execute_query received malformed input", false).encode(), nil
	}
	t.log.Info("tool call", zap.String("tool", "execute_query"),
		zap.String("dataset_id", in.DatasetID), zap.String("rationale", in.Rationale))

	result := t.run(in)

	t.log.Info("tool done", zap.String("tool", "execute_query"),
		zap.Bool("success", result.Success), zap.String("observation", result.Observation))
	return result.encode(), nil
}

func (t *QueryTool) run(in queryInput) ToolResult {
	ds, err := t.store.GetDataset(in.DatasetID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return failureResult(database.ErrNotFound, "that dataset does not exist",
				fmt.Sprintf("dataset %s not found; it may have been deleted", in.DatasetID), true)
		}
		return failureResult(database.ErrEngine, "the dataset could not be read",
			"dataset lookup failed", true)
	}

	clean := stripComments(in.Query)
	if !strings.HasPrefix(strings.ToUpper(clean), "SELECT") {
		return failureResult(ErrValidation, "only SELECT queries are allowed",
			"query rejected: it does not begin with SELECT", false)
	}

	for _, construct := range unsupportedConstructs {
		if construct.pattern.MatchString(clean) {
			return failureResult(ErrUnsupportedSyntax,
				fmt.Sprintf("the %s construct is not available here", construct.token),
				fmt.Sprintf("query rejected: %s is not supported by the engine; rewrite without it", construct.token), false)
		}
	}

	if !referencesTable(clean, ds.TableName) {
		return failureResult(ErrScopeViolation,
			"queries must target this dataset's own table",
			fmt.Sprintf("query rejected: it does not reference table %s", ds.TableName), false)
	}

	processed := strings.TrimRight(clean, "; \t\n\r")
	if !strings.Contains(strings.ToUpper(processed), "LIMIT") {
		processed = fmt.Sprintf("%s LIMIT %d", processed, t.cfg.QueryRowCap)
	}

	cols, rows, err := t.store.QueryTable(in.DatasetID, processed)
	if err != nil {
		t.tracker.IncrementErrorCount()
		if errors.Is(err, database.ErrNotFound) {
			return failureResult(database.ErrNotFound, "that dataset does not exist",
				fmt.Sprintf("dataset %s not found; it may have been deleted", in.DatasetID), true)
		}

		observation := "query execution failed"
		if strings.Contains(err.Error(), "no such column") {
			if schemaCols, schemaErr := t.store.TableSchema(in.DatasetID); schemaErr == nil {
				names := make([]string, len(schemaCols))
				for i, c := range schemaCols {
					names[i] = c.Name
				}
				observation = fmt.Sprintf("query referenced a column that does not exist; available columns: %s",
					strings.Join(names, ", "))
			}
		}
		t.log.Warn("query failed", zap.String("dataset_id", in.DatasetID), zap.Error(err))
		return failureResult(database.ErrEngine, "the query could not be executed", observation, true)
	}

	data := map[string]any{
		"columns":   cols,
		"rows":      rows,
		"row_count": len(rows),
	}
	observation := fmt.Sprintf("query returned %d rows", len(rows))
	if encoded, err := json.Marshal(rows); err == nil && len(encoded) > maxToolOutputBytes {
		keep := len(rows) * maxToolOutputBytes / len(encoded)
		if keep < 1 {
			keep = 1
		}
		// row_count describes the rows actually delivered; the full size
		// of the result set is reported separately.
		data["rows"] = rows[:keep]
		data["row_count"] = keep
		data["total_row_count"] = len(rows)
		data["truncated"] = true
		observation = fmt.Sprintf("query returned %d rows; result truncated to the first %d", len(rows), keep)
	}
	if len(rows) == 0 {
		observation = "query executed successfully but returned no rows"
	}
	return successResult(data, "query executed", observation)
}
