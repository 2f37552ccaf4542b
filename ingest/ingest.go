// Package ingest turns an uploaded tabular file into a typed, queryable
// isolated table plus its registry entry.
package ingest

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"datachat/config"
	"datachat/database"
)

// Result reports what a successful ingestion produced.
type Result struct {
	DatasetID         string   `json:"dataset_id"`
	NormalizedColumns []string `json:"normalized_columns"`
	RowCount          int      `json:"row_count"`
	ColumnCount       int      `json:"column_count"`
}

// Importer runs the ingestion pipeline against a Store.
type Importer struct {
	store *database.Store
	cfg   *config.Config
	log   *zap.Logger
}

// NewImporter creates an Importer.
func NewImporter(store *database.Store, cfg *config.Config, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{store: store, cfg: cfg, log: logger}
}

// Ingest parses buf according to the filename's extension, infers a
// schema, creates the dataset's isolated table, bulk-loads it atomically
// and finally records the dataset in the registry. Any failure leaves no
// trace of the dataset behind.
func (im *Importer) Ingest(buf []byte, filename string) (*Result, error) {
	start := time.Now()
	ext := filepath.Ext(filename)

	grid, err := parseTable(buf, ext)
	if err != nil {
		return nil, fmt.Errorf("ingesting %s: %w", filename, err)
	}
	if len(grid) < 2 {
		// Header alone is not a dataset.
		return nil, fmt.Errorf("ingesting %s: %w", filename, ErrEmptyDataset)
	}

	width := 0
	for _, row := range grid {
		if len(row) > width {
			width = len(row)
		}
	}
	if width == 0 {
		return nil, fmt.Errorf("ingesting %s: %w", filename, ErrEmptyDataset)
	}
	grid = rectangle(grid, width)

	originals := grid[0]
	data := grid[1:]

	normalized, mapping := NormalizeColumns(originals)

	cols := make([]database.Column, width)
	for i := range cols {
		cols[i] = database.Column{
			Name:     normalized[i],
			Type:     inferColumnType(data, i, im.cfg.TypeInferenceSampleCap),
			Nullable: true,
		}
	}

	values := make([][]database.Value, len(data))
	for r, row := range data {
		converted := make([]database.Value, width)
		for c := 0; c < width; c++ {
			converted[c] = convertValue(row[c], cols[c].Type)
		}
		values[r] = converted
	}

	id := uuid.New().String()
	if err := im.store.CreateIsolatedTable(id, cols, values); err != nil {
		return nil, fmt.Errorf("ingesting %s: %w", filename, err)
	}

	ds := database.Dataset{
		ID:               id,
		OriginalFilename: filepath.Base(filename),
		ByteSize:         int64(len(buf)),
		RowCount:         len(data),
		ColumnCount:      width,
		Columns:          originals,
		ColumnMapping:    mapping,
		TableName:        database.TableNameFor(id),
	}
	if err := im.store.CreateDataset(ds); err != nil {
		_ = im.store.DropIsolatedTable(id)
		return nil, fmt.Errorf("ingesting %s: %w", filename, err)
	}

	im.log.Info("dataset ingested",
		zap.String("dataset_id", id),
		zap.String("filename", ds.OriginalFilename),
		zap.Int("rows", ds.RowCount),
		zap.Int("columns", ds.ColumnCount),
		zap.Duration("elapsed", time.Since(start)))

	return &Result{
		DatasetID:         id,
		NormalizedColumns: normalized,
		RowCount:          len(data),
		ColumnCount:       width,
	}, nil
}
