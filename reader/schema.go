package reader

import (
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/shopspring/decimal"

	"github.com/nshrivastav1512/rowset/row"
)

// InferSchema maps a parquet schema's leaf fields to a relation schema.
// Logical types take precedence over physical types: STRING byte arrays
// become TEXT, TIMESTAMP int64s become TIMESTAMP, DECIMAL becomes
// DECIMAL. Optional parquet fields become nullable relation fields.
// Nested groups and repeated fields are rejected; the evaluators operate
// on flat tuples.
func InferSchema(schema *parquet.Schema) (row.Schema, error) {
	var out row.Schema
	for _, field := range schema.Fields() {
		if len(field.Fields()) > 0 {
			return nil, row.Validationf("nested field %q is not supported", field.Name())
		}
		if field.Repeated() {
			return nil, row.Validationf("repeated field %q is not supported", field.Name())
		}
		t, err := fieldType(field)
		if err != nil {
			return nil, err
		}
		out = append(out, row.Field{Name: field.Name(), Type: t, Nullable: field.Optional()})
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

func fieldType(field parquet.Field) (row.Type, error) {
	if logical := field.Type().LogicalType(); logical != nil {
		switch {
		case logical.UTF8 != nil:
			return row.TypeText, nil
		case logical.Timestamp != nil:
			return row.TypeTimestamp, nil
		case logical.Date != nil:
			return row.TypeTimestamp, nil
		case logical.Decimal != nil:
			return row.TypeDecimal, nil
		case logical.Integer != nil:
			return row.TypeInt, nil
		}
	}

	switch field.Type().Kind() {
	case parquet.Boolean:
		return row.TypeBool, nil
	case parquet.Int32, parquet.Int64:
		return row.TypeInt, nil
	case parquet.Float, parquet.Double:
		return row.TypeFloat, nil
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return row.TypeText, nil
	default:
		return row.TypeInvalid, row.Validationf("field %q has unsupported parquet type %s", field.Name(), field.Type())
	}
}

// coerceRow converts one raw parquet row map into a schema-ordered typed
// tuple, widening the narrower physical representations the parquet
// reader hands back.
func coerceRow(schema row.Schema, raw map[string]interface{}) (row.Row, error) {
	out := make(row.Row, len(schema))
	for i, f := range schema {
		v, ok := raw[f.Name]
		if !ok || v == nil {
			if !f.Nullable {
				return nil, row.TypeMismatchf("missing value for non-nullable field %q", f.Name)
			}
			continue
		}
		cv, err := coerceValue(f, v)
		if err != nil {
			return nil, err
		}
		out[i] = cv
	}
	return out, nil
}

func coerceValue(f row.Field, v interface{}) (interface{}, error) {
	switch f.Type {
	case row.TypeInt:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int32:
			return int64(n), nil
		case int:
			return int64(n), nil
		}
	case row.TypeFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		}
	case row.TypeDecimal:
		switch n := v.(type) {
		case decimal.Decimal:
			return n, nil
		case int64:
			return decimal.NewFromInt(n), nil
		case int32:
			return decimal.NewFromInt(int64(n)), nil
		case float64:
			return decimal.NewFromFloat(n), nil
		case string:
			return decimal.NewFromString(n)
		case []byte:
			return decimal.NewFromString(string(n))
		}
	case row.TypeText:
		switch s := v.(type) {
		case string:
			return s, nil
		case []byte:
			return string(s), nil
		}
	case row.TypeTimestamp:
		switch t := v.(type) {
		case time.Time:
			return t, nil
		case int64:
			return time.UnixMilli(t).UTC(), nil
		}
	case row.TypeBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	}
	return nil, row.TypeMismatchf("field %q declared %s, parquet value is %T", f.Name, f.Type, v)
}
