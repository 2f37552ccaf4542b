package ingest

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"datachat/database"
)

var (
	integerPattern = regexp.MustCompile(`^[+-]?\d+$`)
	numericPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)
)

// dateLayouts are the recognized date shapes. A candidate must both match
// one of these layouts and resolve to a valid calendar date.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"Jan 2, 2006",
	"2 Jan 2006",
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// inferColumnType classifies one column from up to sampleCap non-null
// values. Priority: integer > real > date > text; a column with no values
// defaults to text.
func inferColumnType(rows [][]string, col, sampleCap int) database.ColumnType {
	allInteger, allNumeric, allDate := true, true, true
	sampled := 0

	for _, row := range rows {
		if sampled >= sampleCap {
			break
		}
		if col >= len(row) {
			continue
		}
		val := strings.TrimSpace(row[col])
		if val == "" {
			continue
		}
		sampled++

		if allInteger && !integerPattern.MatchString(val) {
			allInteger = false
		}
		if allNumeric && !numericPattern.MatchString(val) {
			allNumeric = false
		}
		if allDate {
			if _, ok := parseDate(val); !ok {
				allDate = false
			}
		}
		if !allInteger && !allNumeric && !allDate {
			break
		}
	}

	if sampled == 0 {
		return database.TypeText
	}
	switch {
	case allInteger:
		return database.TypeInteger
	case allNumeric:
		return database.TypeReal
	case allDate:
		return database.TypeDate
	default:
		return database.TypeText
	}
}

// convertValue coerces a raw cell to the column's inferred type. Values
// that fail to parse degrade to null rather than failing the row.
func convertValue(raw string, t database.ColumnType) database.Value {
	val := strings.TrimSpace(raw)
	if val == "" {
		return database.NullValue()
	}

	switch t {
	case database.TypeInteger:
		if iv, err := strconv.ParseInt(val, 10, 64); err == nil {
			return database.IntValue(iv)
		}
		return database.NullValue()
	case database.TypeReal:
		if fv, err := strconv.ParseFloat(val, 64); err == nil {
			return database.RealValue(fv)
		}
		return database.NullValue()
	case database.TypeDate:
		if d, ok := parseDate(val); ok {
			return database.DateValue(d)
		}
		return database.NullValue()
	default:
		return database.TextValue(raw)
	}
}
