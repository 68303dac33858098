// Package output renders relations for embedding hosts: JSON Lines for
// streaming consumers, CSV for spreadsheets, and an aligned text table
// for terminals. Column order always follows the relation's schema.
package output

import (
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nshrivastav1512/rowset/row"
)

// Formatter renders a relation to a writer.
type Formatter interface {
	// Format writes the relation in the formatter's format.
	Format(rel row.Relation) error

	// SetOutput changes the output writer.
	SetOutput(w io.Writer)
}

// renderValue converts a scalar to its textual form. NULL renders as the
// given placeholder.
func renderValue(v interface{}, null string) string {
	switch val := v.(type) {
	case nil:
		return null
	case string:
		return val
	case int64:
		return fmt.Sprintf("%d", val)
	case float64:
		return fmt.Sprintf("%g", val)
	case decimal.Decimal:
		return val.String()
	case bool:
		return fmt.Sprintf("%t", val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", val)
	}
}
