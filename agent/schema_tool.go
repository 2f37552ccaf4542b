package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"datachat/config"
	"datachat/database"
)

type schemaInput struct {
	DatasetID string `json:"dataset_id"`
	Rationale string `json:"rationale"`
}

// SchemaTool returns the ordered column definitions of a dataset's
// isolated table.
type SchemaTool struct {
	store *database.Store
	log   *zap.Logger
}

// NewSchemaTool creates the schema tool.
func NewSchemaTool(store *database.Store, logger *zap.Logger) *SchemaTool {
	return &SchemaTool{store: store, log: logger}
}

func (t *SchemaTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: "get_schema",
		Desc: "Return the dataset's column names, types, nullability and defaults, in column order.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"dataset_id": {
				Type:     schema.String,
				Desc:     "The id of the dataset.",
				Required: true,
			},
			"rationale": {
				Type: schema.String,
				Desc: "Why the schema is needed now.",
			},
		}),
	}, nil
}

func (t *SchemaTool) InvokableRun(ctx context.Context, input string, opts ...tool.Option) (string, error) {
	var in schemaInput
	if err := json.Unmarshal([]byte(input), &in); err != nil {
		return failureResult(ErrValidation, "schema input was not understood", "get_schema received malformed input", false).encode(), nil
	}
	t.log.Info("tool call", zap.String("tool", "get_schema"),
		zap.String("dataset_id", in.DatasetID), zap.String("rationale", in.Rationale))

	cols, err := t.store.TableSchema(in.DatasetID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return failureResult(database.ErrNotFound, "that dataset does not exist",
				fmt.Sprintf("dataset %s not found; it may have been deleted", in.DatasetID), true).encode(), nil
		}
		t.log.Warn("schema read failed", zap.String("dataset_id", in.DatasetID), zap.Error(err))
		return failureResult(database.ErrEngine, "the schema could not be read", "schema lookup failed", true).encode(), nil
	}

	observation := fmt.Sprintf("schema has %d columns", len(cols))
	t.log.Info("tool done", zap.String("tool", "get_schema"), zap.Int("columns", len(cols)))
	return successResult(cols, "schema retrieved", observation).encode(), nil
}

type sampleInput struct {
	DatasetID string `json:"dataset_id"`
	Limit     int    `json:"limit"`
	Rationale string `json:"rationale"`
}

// SampleTool returns a handful of rows so the model can see real values.
type SampleTool struct {
	store *database.Store
	cfg   *config.Config
	log   *zap.Logger
}

// NewSampleTool creates the sample tool.
func NewSampleTool(store *database.Store, cfg *config.Config, logger *zap.Logger) *SampleTool {
	return &SampleTool{store: store, cfg: cfg, log: logger}
}

func (t *SampleTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: "sample_rows",
		Desc: fmt.Sprintf("Return up to %d example rows from the dataset.", t.cfg.SampleRowCap),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"dataset_id": {
				Type:     schema.String,
				Desc:     "The id of the dataset.",
				Required: true,
			},
			"limit": {
				Type: schema.Integer,
				Desc: "How many rows to return.",
			},
			"rationale": {
				Type: schema.String,
				Desc: "Why samples are needed now.",
			},
		}),
	}, nil
}

func (t *SampleTool) InvokableRun(ctx context.Context, input string, opts ...tool.Option) (string, error) {
	var in sampleInput
	if err := json.Unmarshal([]byte(input), &in); err != nil {
		return failureResult(ErrValidation, "sample input was not understood", "sample_rows received malformed input", false).encode(), nil
	}
	t.log.Info("tool call", zap.String("tool", "sample_rows"),
		zap.String("dataset_id", in.DatasetID), zap.Int("limit", in.Limit),
		zap.String("rationale", in.Rationale))

	limit := in.Limit
	if limit <= 0 {
		limit = 10
	}
	if limit > t.cfg.SampleRowCap {
		limit = t.cfg.SampleRowCap
	}

	cols, rows, err := t.store.SampleRows(in.DatasetID, limit)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return failureResult(database.ErrNotFound, "that dataset does not exist",
				fmt.Sprintf("dataset %s not found; it may have been deleted", in.DatasetID), true).encode(), nil
		}
		t.log.Warn("sampling failed", zap.String("dataset_id", in.DatasetID), zap.Error(err))
		return failureResult(database.ErrEngine, "rows could not be sampled", "sampling failed", true).encode(), nil
	}

	data := map[string]any{"columns": cols, "rows": rows, "row_count": len(rows)}
	observation := fmt.Sprintf("sampled %d rows", len(rows))
	t.log.Info("tool done", zap.String("tool", "sample_rows"), zap.Int("rows", len(rows)))
	return successResult(data, "sample retrieved", observation).encode(), nil
}
