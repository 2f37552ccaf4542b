package database

import (
	"encoding/json"
	"time"
)

// ColumnType is the inferred storage type of a dataset column.
type ColumnType string

const (
	TypeInteger ColumnType = "integer"
	TypeReal    ColumnType = "real"
	TypeDate    ColumnType = "date"
	TypeText    ColumnType = "text"
)

// StorageType maps a ColumnType to the declared type of its table column.
// Dates declare DATE and hold ISO-8601 text, so they stay comparable and
// strftime-friendly while the declared type round-trips through
// table_info.
func (t ColumnType) StorageType() string {
	switch t {
	case TypeInteger:
		return "INTEGER"
	case TypeReal:
		return "REAL"
	case TypeDate:
		return "DATE"
	default:
		return "TEXT"
	}
}

// Column describes one column of an isolated table.
type Column struct {
	Name     string     `json:"name"`
	Type     ColumnType `json:"type"`
	Nullable bool       `json:"nullable"`
	Default  *string    `json:"default"`
}

// Value is a tagged scalar read from (or written to) an isolated table.
// Exactly one of the typed fields is meaningful, selected by Kind; a null
// cell has Kind TypeText semantics with Null set.
type Value struct {
	Kind ColumnType
	Null bool
	Int  int64
	Real float64
	Text string
	Date time.Time
}

// NullValue returns a null cell.
func NullValue() Value {
	return Value{Null: true}
}

// IntValue returns an integer cell.
func IntValue(v int64) Value { return Value{Kind: TypeInteger, Int: v} }

// RealValue returns a real cell.
func RealValue(v float64) Value { return Value{Kind: TypeReal, Real: v} }

// TextValue returns a text cell.
func TextValue(v string) Value { return Value{Kind: TypeText, Text: v} }

// DateValue returns a date cell.
func DateValue(v time.Time) Value { return Value{Kind: TypeDate, Date: v} }

// Native converts the value to the representation handed to database/sql.
func (v Value) Native() any {
	if v.Null {
		return nil
	}
	switch v.Kind {
	case TypeInteger:
		return v.Int
	case TypeReal:
		return v.Real
	case TypeDate:
		return v.Date.Format("2006-01-02")
	default:
		return v.Text
	}
}

// MarshalJSON renders the tagged value as its plain scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Native())
}

// Record is one row of an isolated table: the ordered column schema plus a
// map from column name to tagged value. The shape is only known after
// ingestion, so rows are schema-described rather than struct-typed.
type Record struct {
	Columns []Column
	Values  map[string]Value
}

// AsMap flattens the record into an insertion-agnostic name->scalar map,
// the shape tool results serialize to.
func (r Record) AsMap() map[string]any {
	out := make(map[string]any, len(r.Columns))
	for _, col := range r.Columns {
		out[col.Name] = r.Values[col.Name].Native()
	}
	return out
}
