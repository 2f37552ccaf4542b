package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Dataset is the registry entry for one uploaded table.
type Dataset struct {
	ID               string            `json:"id"`
	OriginalFilename string            `json:"original_filename"`
	DisplayName      string            `json:"display_name,omitempty"`
	ByteSize         int64             `json:"byte_size"`
	RowCount         int               `json:"row_count"`
	ColumnCount      int               `json:"column_count"`
	// Columns holds the original header names in upload order.
	Columns []string `json:"columns"`
	// ColumnMapping maps each original header to its normalized name.
	ColumnMapping map[string]string `json:"column_mapping"`
	TableName     string            `json:"table_name"`
	CreatedAt     int64             `json:"created_at"` // Unix milliseconds
}

// Name returns the display name, falling back to the original filename.
func (d Dataset) Name() string {
	if d.DisplayName != "" {
		return d.DisplayName
	}
	return d.OriginalFilename
}

// CreateDataset writes the registry entry. Ingestion calls this only after
// the isolated table has been fully populated.
func (s *Store) CreateDataset(d Dataset) error {
	cols, err := json.Marshal(d.Columns)
	if err != nil {
		return WrapError("Registry", "CreateDataset", err)
	}
	mapping, err := json.Marshal(d.ColumnMapping)
	if err != nil {
		return WrapError("Registry", "CreateDataset", err)
	}
	if d.CreatedAt == 0 {
		d.CreatedAt = time.Now().UnixMilli()
	}

	_, err = s.db.Exec(`INSERT INTO datasets
		(id, original_filename, display_name, byte_size, row_count, column_count, columns_json, mapping_json, table_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.OriginalFilename, d.DisplayName, d.ByteSize, d.RowCount, d.ColumnCount,
		string(cols), string(mapping), d.TableName, d.CreatedAt)
	if err != nil {
		return WrapError("Registry", "CreateDataset", fmt.Errorf("%w: %v", ErrEngine, err))
	}
	return nil
}

func scanDataset(row *sql.Row) (*Dataset, error) {
	var d Dataset
	var colsJSON, mappingJSON string
	err := row.Scan(&d.ID, &d.OriginalFilename, &d.DisplayName, &d.ByteSize,
		&d.RowCount, &d.ColumnCount, &colsJSON, &mappingJSON, &d.TableName, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngine, err)
	}
	if err := json.Unmarshal([]byte(colsJSON), &d.Columns); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(mappingJSON), &d.ColumnMapping); err != nil {
		return nil, err
	}
	return &d, nil
}

// GetDataset returns one dataset by id, or ErrNotFound.
func (s *Store) GetDataset(id string) (*Dataset, error) {
	row := s.db.QueryRow(`SELECT id, original_filename, display_name, byte_size,
		row_count, column_count, columns_json, mapping_json, table_name, created_at
		FROM datasets WHERE id = ?`, id)
	d, err := scanDataset(row)
	if err != nil {
		return nil, WrapError("Registry", "GetDataset", err)
	}
	return d, nil
}

// ListDatasets returns all datasets, newest first.
func (s *Store) ListDatasets() ([]Dataset, error) {
	rows, err := s.db.Query(`SELECT id, original_filename, display_name, byte_size,
		row_count, column_count, columns_json, mapping_json, table_name, created_at
		FROM datasets ORDER BY created_at DESC`)
	if err != nil {
		return nil, WrapError("Registry", "ListDatasets", fmt.Errorf("%w: %v", ErrEngine, err))
	}
	defer rows.Close()

	var out []Dataset
	for rows.Next() {
		var d Dataset
		var colsJSON, mappingJSON string
		if err := rows.Scan(&d.ID, &d.OriginalFilename, &d.DisplayName, &d.ByteSize,
			&d.RowCount, &d.ColumnCount, &colsJSON, &mappingJSON, &d.TableName, &d.CreatedAt); err != nil {
			return nil, WrapError("Registry", "ListDatasets", err)
		}
		if err := json.Unmarshal([]byte(colsJSON), &d.Columns); err != nil {
			return nil, WrapError("Registry", "ListDatasets", err)
		}
		if err := json.Unmarshal([]byte(mappingJSON), &d.ColumnMapping); err != nil {
			return nil, WrapError("Registry", "ListDatasets", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// UpdateDisplayName sets the only mutable dataset field.
func (s *Store) UpdateDisplayName(id, name string) error {
	res, err := s.db.Exec(`UPDATE datasets SET display_name = ? WHERE id = ?`, name, id)
	if err != nil {
		return WrapError("Registry", "UpdateDisplayName", fmt.Errorf("%w: %v", ErrEngine, err))
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return WrapError("Registry", "UpdateDisplayName", ErrNotFound)
	}
	return nil
}

// DeleteDataset removes a dataset: isolated table storage first, then the
// conversation history, then the registry row. A history-clear failure is
// logged and does not abort the delete; storage and metadata failures do.
func (s *Store) DeleteDataset(id string) error {
	mu := s.datasetLock(id)
	mu.Lock()
	defer mu.Unlock()

	if _, err := s.GetDataset(id); err != nil {
		return err
	}

	// Drop the isolated table first; a failure here aborts the delete.
	if err := s.DropIsolatedTable(id); err != nil {
		return err
	}

	if err := s.clearHistoryLocked(id); err != nil {
		s.log.Warn("history clear failed during dataset delete, continuing",
			zap.String("dataset_id", id), zap.Error(err))
	}

	res, err := s.db.Exec(`DELETE FROM datasets WHERE id = ?`, id)
	if err != nil {
		return WrapError("Registry", "DeleteDataset", fmt.Errorf("%w: %v", ErrEngine, err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return WrapError("Registry", "DeleteDataset", ErrNotFound)
	}

	s.log.Info("dataset deleted", zap.String("dataset_id", id))
	return nil
}
