package database

import (
	"fmt"
	"os"
	"strings"
)

// CreateIsolatedTable creates a dataset's isolated table and bulk-loads its
// rows inside one transaction. Any engine-level failure rolls the load back
// and removes the dataset's storage so nothing half-loaded survives.
func (s *Store) CreateIsolatedTable(datasetID string, cols []Column, rows [][]Value) error {
	db, err := s.openDatasetDB(datasetID, true)
	if err != nil {
		return WrapError("Tables", "CreateIsolatedTable", err)
	}
	defer db.Close()

	tableName := TableNameFor(datasetID)

	defs := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	for i, col := range cols {
		defs[i] = fmt.Sprintf("`%s` %s", col.Name, col.Type.StorageType())
		placeholders[i] = "?"
	}

	fail := func(err error) error {
		_ = os.RemoveAll(s.datasetDir(datasetID))
		return WrapError("Tables", "CreateIsolatedTable", fmt.Errorf("%w: %v", ErrEngine, err))
	}

	createSQL := fmt.Sprintf("CREATE TABLE `%s` (%s)", tableName, strings.Join(defs, ", "))
	if _, err := db.Exec(createSQL); err != nil {
		return fail(err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fail(err)
	}

	insertSQL := fmt.Sprintf("INSERT INTO `%s` VALUES (%s)", tableName, strings.Join(placeholders, ","))
	stmt, err := tx.Prepare(insertSQL)
	if err != nil {
		tx.Rollback()
		return fail(err)
	}
	defer stmt.Close()

	for i, row := range rows {
		vals := make([]any, len(cols))
		for j := range cols {
			if j < len(row) {
				vals[j] = row[j].Native()
			}
		}
		if _, err := stmt.Exec(vals...); err != nil {
			tx.Rollback()
			return fail(fmt.Errorf("inserting row %d: %v", i+1, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fail(err)
	}
	return nil
}

// DropIsolatedTable removes a dataset's isolated table storage.
func (s *Store) DropIsolatedTable(datasetID string) error {
	dir := s.datasetDir(datasetID)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return WrapError("Tables", "DropIsolatedTable", fmt.Errorf("%w: %v", ErrEngine, err))
	}
	if err := os.RemoveAll(dir); err != nil {
		return WrapError("Tables", "DropIsolatedTable", fmt.Errorf("%w: %v", ErrEngine, err))
	}
	return nil
}

// QueryTable runs a read-only query against a dataset's isolated table and
// returns the result columns in order plus one map per row. The caller is
// responsible for validating the query; this only executes it.
func (s *Store) QueryTable(datasetID, query string) ([]string, []map[string]any, error) {
	db, err := s.openDatasetDB(datasetID, false)
	if err != nil {
		return nil, nil, WrapError("Tables", "QueryTable", err)
	}
	defer db.Close()

	rows, err := db.Query(query)
	if err != nil {
		return nil, nil, WrapError("Tables", "QueryTable", fmt.Errorf("%w: %v", ErrEngine, err))
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, WrapError("Tables", "QueryTable", err)
	}

	var results []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		pointers := make([]any, len(cols))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, nil, WrapError("Tables", "QueryTable", err)
		}

		rowMap := make(map[string]any, len(cols))
		for i, name := range cols {
			val := values[i]
			if b, ok := val.([]byte); ok {
				rowMap[name] = string(b)
			} else {
				rowMap[name] = val
			}
		}
		results = append(results, rowMap)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, WrapError("Tables", "QueryTable", fmt.Errorf("%w: %v", ErrEngine, err))
	}

	return cols, results, nil
}

// TableSchema returns the ordered column definitions of a dataset's
// isolated table as reported by the engine.
func (s *Store) TableSchema(datasetID string) ([]Column, error) {
	db, err := s.openDatasetDB(datasetID, false)
	if err != nil {
		return nil, WrapError("Tables", "TableSchema", err)
	}
	defer db.Close()

	tableName := TableNameFor(datasetID)
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(`%s`)", tableName))
	if err != nil {
		return nil, WrapError("Tables", "TableSchema", fmt.Errorf("%w: %v", ErrEngine, err))
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var cid, notNull, pk int
		var name, colType string
		var dflt *string
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, WrapError("Tables", "TableSchema", err)
		}
		cols = append(cols, Column{
			Name:     name,
			Type:     columnTypeFromStorage(colType),
			Nullable: notNull == 0,
			Default:  dflt,
		})
	}
	if len(cols) == 0 {
		return nil, WrapError("Tables", "TableSchema", ErrNotFound)
	}
	return cols, rows.Err()
}

// SampleRows returns up to limit rows from the start of the table.
func (s *Store) SampleRows(datasetID string, limit int) ([]string, []map[string]any, error) {
	if limit <= 0 {
		limit = 10
	}
	query := fmt.Sprintf("SELECT * FROM `%s` LIMIT %d", TableNameFor(datasetID), limit)
	return s.QueryTable(datasetID, query)
}

func columnTypeFromStorage(storage string) ColumnType {
	switch strings.ToUpper(storage) {
	case "INTEGER":
		return TypeInteger
	case "REAL":
		return TypeReal
	case "DATE":
		return TypeDate
	default:
		return TypeText
	}
}
