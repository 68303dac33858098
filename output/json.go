package output

import (
	"encoding/json"
	"io"

	"github.com/nshrivastav1512/rowset/row"
)

// JSONFormatter writes one JSON object per row (JSON Lines).
type JSONFormatter struct {
	writer io.Writer
}

// NewJSONFormatter creates a JSON Lines formatter.
func NewJSONFormatter(w io.Writer) *JSONFormatter {
	return &JSONFormatter{writer: w}
}

// SetOutput sets the output writer.
func (j *JSONFormatter) SetOutput(w io.Writer) {
	j.writer = w
}

// Format writes the relation as JSON Lines. NULL values appear as JSON
// null; decimals are rendered as strings to keep them exact.
func (j *JSONFormatter) Format(rel row.Relation) error {
	encoder := json.NewEncoder(j.writer)
	names := rel.Schema.Names()
	for _, r := range rel.Rows {
		obj := make(map[string]interface{}, len(names))
		for i, name := range names {
			v := r[i]
			if rel.Schema[i].Type == row.TypeDecimal && v != nil {
				obj[name] = renderValue(v, "")
				continue
			}
			obj[name] = v
		}
		if err := encoder.Encode(obj); err != nil {
			return err
		}
	}
	return nil
}
