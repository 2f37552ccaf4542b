package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"datachat/database"
)

func column(vals ...string) [][]string {
	rows := make([][]string, len(vals))
	for i, v := range vals {
		rows[i] = []string{v}
	}
	return rows
}

func TestInferColumnType(t *testing.T) {
	cases := []struct {
		name string
		vals []string
		want database.ColumnType
	}{
		{"all integers", []string{"1", "2", "3"}, database.TypeInteger},
		{"signed integers", []string{"-4", "+7", "0"}, database.TypeInteger},
		{"mixed integer and decimal is real", []string{"1.5", "2"}, database.TypeReal},
		{"scientific notation is real", []string{"1e3", "2.5E-2"}, database.TypeReal},
		{"iso dates", []string{"2024-01-15", "2024-02-01"}, database.TypeDate},
		{"slash dates", []string{"01/15/2024", "12/31/2023"}, database.TypeDate},
		{"one stray string makes text", []string{"a", "1"}, database.TypeText},
		{"empty column defaults to text", []string{"", "", ""}, database.TypeText},
		{"blanks ignored during inference", []string{"", "10", "", "20"}, database.TypeInteger},
		{"invalid calendar date is text", []string{"2024-13-45"}, database.TypeText},
		{"currency is text", []string{"$1,200", "$900"}, database.TypeText},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := inferColumnType(column(tc.vals...), 0, 50)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestInferColumnTypeHonorsSampleCap(t *testing.T) {
	// The offending value sits past the cap, so it is never seen.
	vals := []string{"1", "2", "3", "not-a-number"}
	assert.Equal(t, database.TypeInteger, inferColumnType(column(vals...), 0, 3))
	assert.Equal(t, database.TypeText, inferColumnType(column(vals...), 0, 50))
}

func TestInferColumnTypeShortRows(t *testing.T) {
	rows := [][]string{{"a", "1"}, {"b"}, {"c", "3"}}
	assert.Equal(t, database.TypeInteger, inferColumnType(rows, 1, 50))
}

func TestConvertValue(t *testing.T) {
	assert.Equal(t, database.IntValue(42), convertValue(" 42 ", database.TypeInteger))
	assert.Equal(t, database.RealValue(3.25), convertValue("3.25", database.TypeReal))
	assert.Equal(t, database.TextValue("hello"), convertValue("hello", database.TypeText))

	d := convertValue("2024-06-01", database.TypeDate)
	assert.Equal(t, "2024-06-01", d.Native())

	// Unparsable values degrade to null instead of failing the row.
	assert.Equal(t, database.NullValue(), convertValue("oops", database.TypeInteger))
	assert.Equal(t, database.NullValue(), convertValue("oops", database.TypeReal))
	assert.Equal(t, database.NullValue(), convertValue("oops", database.TypeDate))
	assert.Equal(t, database.NullValue(), convertValue("", database.TypeText))
}
