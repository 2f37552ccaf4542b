package ingest

import "errors"

var (
	// ErrUnsupportedFormat is returned for file extensions other than
	// csv, xlsx and xls.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrEmptyDataset is returned when parsing yields no data rows.
	ErrEmptyDataset = errors.New("dataset contains no rows")
)
