package groupby

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/nshrivastav1512/rowset/row"
)

// accumulator is the per-group, per-aggregate state machine. It is mutable
// only during a single group's fold; final makes it read-only. One instance
// exists per (level, group, aggregate) and is owned by the evaluation call,
// so no locking is needed.
type accumulator struct {
	kind    AggKind
	outType row.Type
	sep     string

	count    int64
	sumInt   int64
	sumFloat float64
	sumDec   decimal.Decimal
	sawValue bool
	extreme  interface{}
	parts    []string
	seen     map[string]struct{}
}

func newAccumulator(agg *resolvedAgg) *accumulator {
	a := &accumulator{kind: agg.kind, outType: agg.outType, sep: agg.sep}
	if agg.kind == AggCountDistinct {
		a.seen = make(map[string]struct{})
	}
	return a
}

// add consumes one input value. COUNT(*) counts every row including NULLs;
// all other kinds skip NULL inputs.
func (a *accumulator) add(v interface{}) error {
	if a.kind == AggCountStar {
		a.count++
		return nil
	}
	if v == nil {
		return nil
	}

	switch a.kind {
	case AggCount:
		a.count++

	case AggCountDistinct:
		a.seen[row.GroupEncode(v)] = struct{}{}

	case AggSum, AggAvg:
		switch a.outType {
		case row.TypeInt:
			n, ok := v.(int64)
			if !ok {
				return row.TypeMismatchf("%s: expected INT input, got %T", a.kind, v)
			}
			a.sumInt += n
		case row.TypeDecimal:
			d, ok := v.(decimal.Decimal)
			if !ok {
				return row.TypeMismatchf("%s: expected DECIMAL input, got %T", a.kind, v)
			}
			a.sumDec = a.sumDec.Add(d)
		default:
			f, ok := row.ToFloat64(v)
			if !ok {
				return row.TypeMismatchf("%s: non-numeric input %T", a.kind, v)
			}
			a.sumFloat += f
		}
		a.count++
		a.sawValue = true

	case AggMin:
		if !a.sawValue || row.Compare(v, a.extreme) < 0 {
			a.extreme = v
		}
		a.sawValue = true

	case AggMax:
		if !a.sawValue || row.Compare(v, a.extreme) > 0 {
			a.extreme = v
		}
		a.sawValue = true

	case AggStringAgg:
		s, ok := row.ToText(v)
		if !ok {
			return row.TypeMismatchf("STRING_AGG: cannot render %T as text", v)
		}
		a.parts = append(a.parts, s)

	default:
		return row.Internalf("unknown aggregate kind %d", a.kind)
	}
	return nil
}

// final yields the aggregate's scalar. Aggregates over an all-NULL (or
// empty) input produce NULL, except the COUNT family which produces 0.
func (a *accumulator) final() interface{} {
	switch a.kind {
	case AggCountStar, AggCount:
		return a.count

	case AggCountDistinct:
		return int64(len(a.seen))

	case AggSum:
		if !a.sawValue {
			return nil
		}
		switch a.outType {
		case row.TypeInt:
			return a.sumInt
		case row.TypeDecimal:
			return a.sumDec
		default:
			return a.sumFloat
		}

	case AggAvg:
		if a.count == 0 {
			return nil
		}
		if a.outType == row.TypeDecimal {
			return a.sumDec.Div(decimal.NewFromInt(a.count))
		}
		return a.sumFloat / float64(a.count)

	case AggMin, AggMax:
		if !a.sawValue {
			return nil
		}
		return a.extreme

	case AggStringAgg:
		if len(a.parts) == 0 {
			return nil
		}
		return strings.Join(a.parts, a.sep)

	default:
		return nil
	}
}
