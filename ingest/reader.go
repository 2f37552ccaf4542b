package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"unicode/utf8"

	xlsReader "github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

// parseTable turns an uploaded byte buffer into a rectangular grid of
// strings. Extension routing: csv (charset-sniffed), xlsx and xls read
// their first sheet.
func parseTable(buf []byte, ext string) ([][]string, error) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "csv":
		return parseCSV(buf)
	case "xlsx":
		return parseXLSX(buf)
	case "xls":
		return parseXLS(buf)
	default:
		return nil, fmt.Errorf("%w: .%s", ErrUnsupportedFormat, strings.TrimPrefix(ext, "."))
	}
}

func parseCSV(buf []byte) ([][]string, error) {
	text, err := decodeText(buf)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing csv: %w", err)
	}
	return rows, nil
}

func parseXLSX(buf []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("opening xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyDataset
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func parseXLS(buf []byte) ([][]string, error) {
	workbook, err := xlsReader.OpenReader(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("opening xls: %w", err)
	}
	if workbook.GetNumberSheets() == 0 {
		return nil, ErrEmptyDataset
	}

	sheet, err := workbook.GetSheet(0)
	if err != nil {
		return nil, fmt.Errorf("reading first sheet: %w", err)
	}

	var rows [][]string
	for r := 0; r <= sheet.GetNumberRows(); r++ {
		row, err := sheet.GetRow(r)
		if err != nil {
			continue
		}
		cols := row.GetCols()
		cells := make([]string, len(cols))
		for c, cell := range cols {
			cells[c] = toUTF8(cell.GetString())
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// toUTF8 repairs legacy-encoded cell text coming out of old xls files.
func toUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	decoded, err := charmap.Windows1252.NewDecoder().String(s)
	if err != nil {
		return strings.ToValidUTF8(s, "�")
	}
	return decoded
}

// rectangle pads ragged rows so every row has width cells.
func rectangle(rows [][]string, width int) [][]string {
	for i, row := range rows {
		if len(row) < width {
			padded := make([]string, width)
			copy(padded, row)
			rows[i] = padded
		}
	}
	return rows
}
