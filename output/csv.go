package output

import (
	"encoding/csv"
	"io"

	"github.com/cockroachdb/errors"

	"github.com/nshrivastav1512/rowset/row"
)

// CSVFormatter writes a header row followed by one record per row.
type CSVFormatter struct {
	writer io.Writer
}

// NewCSVFormatter creates a CSV formatter.
func NewCSVFormatter(w io.Writer) *CSVFormatter {
	return &CSVFormatter{writer: w}
}

// SetOutput sets the output writer.
func (c *CSVFormatter) SetOutput(w io.Writer) {
	c.writer = w
}

// Format writes the relation as CSV in schema column order. NULL renders
// as an empty cell.
func (c *CSVFormatter) Format(rel row.Relation) error {
	csvWriter := csv.NewWriter(c.writer)

	if err := csvWriter.Write(rel.Schema.Names()); err != nil {
		return err
	}
	record := make([]string, len(rel.Schema))
	for _, r := range rel.Rows {
		for i := range rel.Schema {
			record[i] = renderValue(r[i], "")
		}
		if err := csvWriter.Write(record); err != nil {
			return err
		}
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return errors.Wrap(err, "failed to flush CSV writer")
	}
	return nil
}
