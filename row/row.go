// Package row defines the typed tuple model shared by every evaluator:
// schemas, rows, relations, NULL-aware ordering and the grouping-equality
// predicate, plus the closure types used to hand opaque expressions to the
// engines.
//
// Values inside a Row are represented as:
//
//	Int       -> int64
//	Float     -> float64
//	Decimal   -> decimal.Decimal
//	Text      -> string
//	Timestamp -> time.Time
//	Bool      -> bool
//	NULL      -> nil
package row

import (
	"time"

	"github.com/shopspring/decimal"
)

// Type is the semantic type of a field.
type Type int

const (
	TypeInvalid Type = iota
	TypeInt
	TypeFloat
	TypeDecimal
	TypeText
	TypeTimestamp
	TypeBool
)

// String returns the SQL-ish name of the type.
func (t Type) String() string {
	switch t {
	case TypeInt:
		return "INT"
	case TypeFloat:
		return "FLOAT"
	case TypeDecimal:
		return "DECIMAL"
	case TypeText:
		return "TEXT"
	case TypeTimestamp:
		return "TIMESTAMP"
	case TypeBool:
		return "BOOL"
	default:
		return "INVALID"
	}
}

// Numeric reports whether values of the type participate in arithmetic
// aggregates (SUM, AVG) and offset RANGE frames.
func (t Type) Numeric() bool {
	return t == TypeInt || t == TypeFloat || t == TypeDecimal
}

// Orderable reports whether values of the type have a total order.
// Every currently supported type is orderable; large-object types added
// later must return false here so grouping and ORDER BY reject them.
func (t Type) Orderable() bool {
	switch t {
	case TypeInt, TypeFloat, TypeDecimal, TypeText, TypeTimestamp, TypeBool:
		return true
	default:
		return false
	}
}

// Field describes one column of a schema.
type Field struct {
	Name     string
	Type     Type
	Nullable bool
}

// Schema is an ordered list of fields.
type Schema []Field

// IndexOf returns the position of the named field, or -1.
func (s Schema) IndexOf(name string) int {
	for i, f := range s {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Names returns the field names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// Validate checks the schema for empty or duplicate field names and
// invalid types.
func (s Schema) Validate() error {
	seen := make(map[string]bool, len(s))
	for i, f := range s {
		if f.Name == "" {
			return Validationf("field %d has an empty name", i)
		}
		if seen[f.Name] {
			return Validationf("duplicate field name %q", f.Name)
		}
		seen[f.Name] = true
		if f.Type == TypeInvalid {
			return Validationf("field %q has an invalid type", f.Name)
		}
	}
	return nil
}

// Check verifies that a row conforms to the schema: correct arity, each
// value matching its declared type, and no NULL in a non-nullable field.
func (s Schema) Check(r Row) error {
	if len(r) != len(s) {
		return TypeMismatchf("row has %d values, schema has %d fields", len(r), len(s))
	}
	for i, f := range s {
		if r[i] == nil {
			if !f.Nullable {
				return TypeMismatchf("NULL in non-nullable field %q", f.Name)
			}
			continue
		}
		if !f.Type.Matches(r[i]) {
			return TypeMismatchf("field %q declared %s, got value of type %T", f.Name, f.Type, r[i])
		}
	}
	return nil
}

// Matches reports whether a non-nil value conforms to the type.
func (t Type) Matches(v interface{}) bool {
	switch t {
	case TypeInt:
		_, ok := v.(int64)
		return ok
	case TypeFloat:
		_, ok := v.(float64)
		return ok
	case TypeDecimal:
		_, ok := v.(decimal.Decimal)
		return ok
	case TypeText:
		_, ok := v.(string)
		return ok
	case TypeTimestamp:
		_, ok := v.(time.Time)
		return ok
	case TypeBool:
		_, ok := v.(bool)
		return ok
	default:
		return false
	}
}

// Row is an ordered, fixed-arity tuple matching a Schema. A nil element is
// a SQL NULL. Rows are never mutated after they are produced; a stage that
// needs a variant copies first.
type Row []interface{}

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	copy(out, r)
	return out
}

// Relation is a schema plus a finite sequence of rows. Row order is
// significant only when a consumer requested one.
type Relation struct {
	Schema Schema
	Rows   []Row
}

// NewRelation validates the schema and every row against it.
func NewRelation(schema Schema, rows []Row) (Relation, error) {
	if err := schema.Validate(); err != nil {
		return Relation{}, err
	}
	for i, r := range rows {
		if err := schema.Check(r); err != nil {
			return Relation{}, Wrapf(err, "row %d", i)
		}
	}
	return Relation{Schema: schema, Rows: rows}, nil
}

// Expr is an opaque value expression over a row, supplied by the caller's
// expression evaluator. The engines never parse expression text.
type Expr func(Row) (interface{}, error)

// Predicate is an opaque boolean expression over a row, used for HAVING
// and recursive-step filtering.
type Predicate func(Row) (bool, error)

// Column returns an Expr reading the named field of the schema.
func Column(schema Schema, name string) (Expr, error) {
	idx := schema.IndexOf(name)
	if idx < 0 {
		return nil, Validationf("column %q not found", name)
	}
	return func(r Row) (interface{}, error) {
		if idx >= len(r) {
			return nil, Internalf("row shorter than schema: %d <= %d", len(r), idx)
		}
		return r[idx], nil
	}, nil
}
