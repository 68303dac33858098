package output

import (
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/nshrivastav1512/rowset/row"
)

// TableFormatter writes an aligned text table, one header per schema
// field. NULL renders as "NULL" so empty strings stay distinguishable.
type TableFormatter struct {
	writer io.Writer
}

// NewTableFormatter creates a text table formatter.
func NewTableFormatter(w io.Writer) *TableFormatter {
	return &TableFormatter{writer: w}
}

// SetOutput sets the output writer.
func (t *TableFormatter) SetOutput(w io.Writer) {
	t.writer = w
}

// Format writes the relation as an aligned table.
func (t *TableFormatter) Format(rel row.Relation) error {
	table := tablewriter.NewWriter(t.writer)
	table.SetHeader(rel.Schema.Names())
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)

	for _, r := range rel.Rows {
		record := make([]string, len(rel.Schema))
		for i := range rel.Schema {
			record[i] = renderValue(r[i], "NULL")
		}
		table.Append(record)
	}
	table.Render()
	return nil
}
