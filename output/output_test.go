package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nshrivastav1512/rowset/row"
)

func sampleRelation() row.Relation {
	return row.Relation{
		Schema: row.Schema{
			{Name: "name", Type: row.TypeText},
			{Name: "total", Type: row.TypeInt, Nullable: true},
			{Name: "price", Type: row.TypeDecimal, Nullable: true},
			{Name: "seen", Type: row.TypeTimestamp, Nullable: true},
		},
		Rows: []row.Row{
			{"widget", int64(42), decimal.RequireFromString("19.90"), time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
			{"gadget", nil, nil, nil},
		},
	}
}

func TestCSVFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewCSVFormatter(&buf)
	require.NoError(t, f.Format(sampleRelation()))

	require.Equal(t,
		"name,total,price,seen\n"+
			"widget,42,19.9,2024-03-01T12:00:00Z\n"+
			"gadget,,,\n",
		buf.String())
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewJSONFormatter(&buf)
	require.NoError(t, f.Format(sampleRelation()))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)

	var first map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.Equal(t, "widget", first["name"])
	require.Equal(t, float64(42), first["total"])
	// Decimals are rendered as strings so no precision is lost in transit.
	require.Equal(t, "19.9", first["price"])

	var second map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	require.Nil(t, second["total"])
	require.Nil(t, second["price"])
}

func TestTableFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewTableFormatter(&buf)
	require.NoError(t, f.Format(sampleRelation()))

	out := buf.String()
	require.Contains(t, out, "name")
	require.Contains(t, out, "total")
	require.Contains(t, out, "widget")
	require.Contains(t, out, "42")
	require.Contains(t, out, "NULL")
}

func TestSetOutput(t *testing.T) {
	rel := sampleRelation()
	formatters := []Formatter{
		NewCSVFormatter(nil),
		NewJSONFormatter(nil),
		NewTableFormatter(nil),
	}
	for _, f := range formatters {
		var buf bytes.Buffer
		f.SetOutput(&buf)
		require.NoError(t, f.Format(rel))
		require.NotEmpty(t, buf.String())
	}
}

func TestRenderValue(t *testing.T) {
	tests := []struct {
		name string
		v    interface{}
		want string
	}{
		{"nil uses placeholder", nil, "-"},
		{"int", int64(7), "7"},
		{"float", 2.5, "2.5"},
		{"decimal", decimal.RequireFromString("0.30"), "0.3"},
		{"bool", true, "true"},
		{"text", "x", "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, renderValue(tt.v, "-"))
		})
	}
}
