package window

import "github.com/nshrivastav1512/rowset/row"

// orderIdx is an ORDER BY item resolved to a column index.
type orderIdx struct {
	idx        int
	desc       bool
	nullsFirst bool
	typ        row.Type
}

// resolvedWindow is a Windowed with every column reference resolved and
// every parameter validated, ready for per-partition computation.
type resolvedWindow struct {
	name     string
	kind     FuncKind
	partIdx  []int
	order    []orderIdx
	frame    *Frame
	arg      row.Expr
	n        int64
	def      interface{}
	outField row.Field
}

func (k FuncKind) ranking() bool {
	switch k {
	case FuncRowNumber, FuncRank, FuncDenseRank, FuncPercentRank, FuncCumeDist, FuncNtile:
		return true
	default:
		return false
	}
}

func (k FuncKind) offset() bool {
	return k == FuncLag || k == FuncLead
}

// resolve validates one windowed expression against the schema before any
// row is processed.
func resolve(schema row.Schema, w *Windowed) (*resolvedWindow, error) {
	if w.Name == "" {
		return nil, row.Validationf("window expression has no output name")
	}
	if schema.IndexOf(w.Name) >= 0 {
		return nil, row.Validationf("window output %q collides with an input column", w.Name)
	}

	rw := &resolvedWindow{name: w.Name, kind: w.Kind, n: w.N, def: w.Default}

	for _, c := range w.Spec.PartitionBy {
		idx := schema.IndexOf(c)
		if idx < 0 {
			return nil, row.Validationf("%q: partition column %q not found", w.Name, c)
		}
		if !schema[idx].Type.Orderable() {
			return nil, row.Validationf("%q: partition column %q has unorderable type %s", w.Name, c, schema[idx].Type)
		}
		rw.partIdx = append(rw.partIdx, idx)
	}
	for _, o := range w.Spec.OrderBy {
		idx := schema.IndexOf(o.Column)
		if idx < 0 {
			return nil, row.Validationf("%q: order column %q not found", w.Name, o.Column)
		}
		if !schema[idx].Type.Orderable() {
			return nil, row.Validationf("%q: order column %q has unorderable type %s", w.Name, o.Column, schema[idx].Type)
		}
		rw.order = append(rw.order, orderIdx{idx: idx, desc: o.Desc, nullsFirst: o.NullsFirst, typ: schema[idx].Type})
	}

	var colType row.Type
	if w.Column != "" {
		idx := schema.IndexOf(w.Column)
		if idx < 0 {
			return nil, row.Validationf("%q: argument column %q not found", w.Name, w.Column)
		}
		colType = schema[idx].Type
		expr, err := row.Column(schema, w.Column)
		if err != nil {
			return nil, err
		}
		rw.arg = expr
	} else {
		rw.arg = w.Arg
	}

	switch {
	case w.Kind.ranking():
		if rw.arg != nil {
			return nil, row.Validationf("%q: %s takes no value argument", w.Name, w.Kind)
		}
		if w.Spec.Frame != nil {
			return nil, row.Validationf("%q: %s does not accept a frame", w.Name, w.Kind)
		}
		if w.Kind == FuncNtile && w.N < 1 {
			return nil, row.Validationf("%q: NTILE requires a positive bucket count, got %d", w.Name, w.N)
		}

	case w.Kind.offset():
		if rw.arg == nil {
			return nil, row.Validationf("%q: %s requires a value argument", w.Name, w.Kind)
		}
		if w.Spec.Frame != nil {
			return nil, row.Validationf("%q: %s does not accept a frame", w.Name, w.Kind)
		}
		if w.N < 0 {
			return nil, row.Validationf("%q: %s offset must be non-negative, got %d", w.Name, w.Kind, w.N)
		}
		if w.N == 0 {
			rw.n = 1
		}

	default:
		if rw.arg == nil && w.Kind != FuncCount {
			return nil, row.Validationf("%q: %s requires a value argument", w.Name, w.Kind)
		}
		if w.Kind == FuncNthValue && w.N < 1 {
			return nil, row.Validationf("%q: NTH_VALUE requires a positive position, got %d", w.Name, w.N)
		}
		if w.Spec.Frame != nil {
			if err := validateFrame(w.Name, w.Spec.Frame, rw.order); err != nil {
				return nil, err
			}
			rw.frame = w.Spec.Frame
		}
	}

	if w.Kind == FuncSum || w.Kind == FuncAvg {
		if colType != row.TypeInvalid && !colType.Numeric() {
			return nil, row.Validationf("%q: %s over non-numeric column %q (%s)", w.Name, w.Kind, w.Column, colType)
		}
	}

	outType, notNull := outputType(w.Kind, colType, w.OutType)
	if rw.def != nil && !outType.Matches(rw.def) {
		return nil, row.Validationf("%q: default value %v does not match output type %s", w.Name, rw.def, outType)
	}
	rw.outField = row.Field{Name: w.Name, Type: outType, Nullable: !notNull}
	return rw, nil
}

// outputType infers the appended column's type from the function kind and
// the argument column when one was named.
func outputType(kind FuncKind, colType, override row.Type) (row.Type, bool) {
	switch kind {
	case FuncRowNumber, FuncRank, FuncDenseRank, FuncNtile, FuncCount:
		return row.TypeInt, true
	case FuncPercentRank, FuncCumeDist:
		return row.TypeFloat, true
	case FuncAvg:
		if pick(override, colType) == row.TypeDecimal {
			return row.TypeDecimal, false
		}
		return row.TypeFloat, false
	default:
		t := pick(override, colType)
		if t == row.TypeInvalid {
			t = row.TypeFloat
		}
		return t, false
	}
}

func pick(override, colType row.Type) row.Type {
	if override != row.TypeInvalid {
		return override
	}
	return colType
}

func boundRank(k BoundKind) int {
	switch k {
	case BoundUnboundedPreceding:
		return 0
	case BoundOffsetPreceding:
		return 1
	case BoundCurrentRow:
		return 2
	case BoundOffsetFollowing:
		return 3
	default:
		return 4
	}
}

// validateFrame rejects malformed bounds before any row is processed.
// RANGE frames require an ORDER BY; offset RANGE bounds additionally
// require a single numeric ORDER BY column, since the offset is added to
// and subtracted from the current row's order value.
func validateFrame(name string, f *Frame, order []orderIdx) error {
	if f.Start.Kind == BoundUnboundedFollowing {
		return row.Validationf("%q: frame start cannot be UNBOUNDED FOLLOWING", name)
	}
	if f.End.Kind == BoundUnboundedPreceding {
		return row.Validationf("%q: frame end cannot be UNBOUNDED PRECEDING", name)
	}
	if boundRank(f.Start.Kind) > boundRank(f.End.Kind) {
		return row.Validationf("%q: frame start is after frame end", name)
	}
	for _, b := range []Bound{f.Start, f.End} {
		if (b.Kind == BoundOffsetPreceding || b.Kind == BoundOffsetFollowing) && b.Offset < 0 {
			return row.Validationf("%q: negative frame offset %d", name, b.Offset)
		}
	}

	if f.Unit == FrameRange {
		if len(order) == 0 {
			return row.Validationf("%q: RANGE frame requires an ORDER BY", name)
		}
		hasOffset := f.Start.Kind == BoundOffsetPreceding || f.Start.Kind == BoundOffsetFollowing ||
			f.End.Kind == BoundOffsetPreceding || f.End.Kind == BoundOffsetFollowing
		if hasOffset {
			if len(order) != 1 {
				return row.Validationf("%q: RANGE with an offset requires exactly one ORDER BY column, got %d", name, len(order))
			}
			if !order[0].typ.Numeric() {
				return row.Validationf("%q: RANGE with an offset requires a numeric ORDER BY column, got %s", name, order[0].typ)
			}
		}
	}
	return nil
}
