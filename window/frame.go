package window

import (
	"github.com/shopspring/decimal"

	"github.com/nshrivastav1512/rowset/row"
)

// computeFramed evaluates a frame-based function: the frame is resolved to
// a concrete [start, end] index range per current row, then the function
// reads or aggregates over that range.
func computeFramed(p []ref, rw *resolvedWindow) ([]interface{}, error) {
	starts, ends := peerBounds(p, rw.order)
	results := make([]interface{}, len(p))
	for i := range p {
		s, e, err := frameFor(p, i, rw, starts, ends)
		if err != nil {
			return nil, err
		}
		v, err := applyFramed(p, s, e, rw)
		if err != nil {
			return nil, err
		}
		results[i] = v
	}
	return results, nil
}

// frameFor resolves the frame bounds for the row at sorted position i to a
// concrete index range; e < s means an empty frame.
//
// The default frame with an ORDER BY is RANGE UNBOUNDED PRECEDING to
// CURRENT ROW, so the range runs to the end of the current peer group;
// with no ORDER BY it is the whole partition. LAST_VALUE under that
// default therefore stops at the current peer group — the standard
// truncation — and callers wanting the partition's true last row must say
// ROWS BETWEEN UNBOUNDED PRECEDING AND UNBOUNDED FOLLOWING.
func frameFor(p []ref, i int, rw *resolvedWindow, peerStarts, peerEnds []int) (int, int, error) {
	n := len(p)
	frame := rw.frame
	if frame == nil {
		if len(rw.order) == 0 {
			return 0, n - 1, nil
		}
		// RANGE UNBOUNDED PRECEDING .. CURRENT ROW.
		return 0, peerEnds[i], nil
	}

	if frame.Unit == FrameRows {
		// The start clamps upward only and the end downward only, so a
		// frame entirely outside the partition stays empty (s > e).
		s := rowsBound(frame.Start, i, n)
		e := rowsBound(frame.End, i, n)
		if s < 0 {
			s = 0
		}
		if e > n-1 {
			e = n - 1
		}
		return s, e, nil
	}

	s, err := rangeBound(p, i, rw, frame.Start, true, peerStarts, peerEnds)
	if err != nil {
		return 0, 0, err
	}
	e, err := rangeBound(p, i, rw, frame.End, false, peerStarts, peerEnds)
	if err != nil {
		return 0, 0, err
	}
	return s, e, nil
}

func rowsBound(b Bound, i, n int) int {
	switch b.Kind {
	case BoundUnboundedPreceding:
		return 0
	case BoundOffsetPreceding:
		return i - int(b.Offset)
	case BoundCurrentRow:
		return i
	case BoundOffsetFollowing:
		return i + int(b.Offset)
	default: // BoundUnboundedFollowing
		return n - 1
	}
}

// rangeBound resolves one RANGE bound. CURRENT ROW expands to the current
// peer group; an offset bound scans for the first/last row whose single
// numeric ORDER BY value lies within offset of the current value. Rows
// with a NULL order value are peers only of each other, so an offset
// bound on a NULL current row degenerates to the peer group.
func rangeBound(p []ref, i int, rw *resolvedWindow, b Bound, isStart bool, peerStarts, peerEnds []int) (int, error) {
	n := len(p)
	switch b.Kind {
	case BoundUnboundedPreceding:
		return 0, nil
	case BoundUnboundedFollowing:
		return n - 1, nil
	case BoundCurrentRow:
		if isStart {
			return peerStarts[i], nil
		}
		return peerEnds[i], nil
	}

	o := rw.order[0]
	v := p[i].row[o.idx]
	if v == nil {
		if isStart {
			return peerStarts[i], nil
		}
		return peerEnds[i], nil
	}
	cur, ok := row.ToFloat64(v)
	if !ok {
		return 0, row.TypeMismatchf("RANGE order value is not numeric: %T", v)
	}

	offset := float64(b.Offset)
	if b.Kind == BoundOffsetPreceding {
		offset = -offset
	}
	// Preceding moves against the sort direction, following with it; a
	// descending sort flips the sign.
	if o.desc {
		offset = -offset
	}
	target := cur + offset

	if isStart {
		// First row at or inside the bound.
		for j := 0; j < n; j++ {
			val := p[j].row[o.idx]
			if val == nil {
				continue
			}
			f, ok := row.ToFloat64(val)
			if !ok {
				return 0, row.TypeMismatchf("RANGE order value is not numeric: %T", val)
			}
			if (!o.desc && f >= target) || (o.desc && f <= target) {
				return j, nil
			}
		}
		return n, nil // empty frame
	}
	// Last row at or inside the bound.
	for j := n - 1; j >= 0; j-- {
		val := p[j].row[o.idx]
		if val == nil {
			continue
		}
		f, ok := row.ToFloat64(val)
		if !ok {
			return 0, row.TypeMismatchf("RANGE order value is not numeric: %T", val)
		}
		if (!o.desc && f <= target) || (o.desc && f >= target) {
			return j, nil
		}
	}
	return -1, nil // empty frame
}

// applyFramed computes the function's value over the resolved frame
// [s, e]. An empty frame yields NULL, except COUNT which yields 0.
func applyFramed(p []ref, s, e int, rw *resolvedWindow) (interface{}, error) {
	if s > e {
		if rw.kind == FuncCount {
			return int64(0), nil
		}
		return nil, nil
	}

	switch rw.kind {
	case FuncFirstValue:
		return rw.arg(p[s].row)
	case FuncLastValue:
		return rw.arg(p[e].row)
	case FuncNthValue:
		at := s + int(rw.n) - 1
		if at > e {
			return nil, nil
		}
		return rw.arg(p[at].row)
	}

	var (
		count    int64
		rows     int64
		sumInt   int64
		sumFloat float64
		sumDec   decimal.Decimal
		sawValue bool
		extreme  interface{}
	)
	for j := s; j <= e; j++ {
		rows++
		if rw.arg == nil {
			continue
		}
		v, err := rw.arg(p[j].row)
		if err != nil {
			return nil, row.Wrapf(err, "frame aggregate argument")
		}
		if v == nil {
			continue
		}
		count++
		switch rw.kind {
		case FuncSum, FuncAvg:
			switch rw.outField.Type {
			case row.TypeInt:
				n, ok := v.(int64)
				if !ok {
					return nil, row.TypeMismatchf("%s: expected INT input, got %T", rw.kind, v)
				}
				sumInt += n
			case row.TypeDecimal:
				d, ok := v.(decimal.Decimal)
				if !ok {
					return nil, row.TypeMismatchf("%s: expected DECIMAL input, got %T", rw.kind, v)
				}
				sumDec = sumDec.Add(d)
			default:
				f, ok := row.ToFloat64(v)
				if !ok {
					return nil, row.TypeMismatchf("%s: non-numeric input %T", rw.kind, v)
				}
				sumFloat += f
			}
			sawValue = true
		case FuncMin:
			if !sawValue || row.Compare(v, extreme) < 0 {
				extreme = v
			}
			sawValue = true
		case FuncMax:
			if !sawValue || row.Compare(v, extreme) > 0 {
				extreme = v
			}
			sawValue = true
		}
	}

	switch rw.kind {
	case FuncCount:
		if rw.arg == nil {
			return rows, nil
		}
		return count, nil
	case FuncSum:
		if !sawValue {
			return nil, nil
		}
		switch rw.outField.Type {
		case row.TypeInt:
			return sumInt, nil
		case row.TypeDecimal:
			return sumDec, nil
		default:
			return sumFloat, nil
		}
	case FuncAvg:
		if !sawValue {
			return nil, nil
		}
		if rw.outField.Type == row.TypeDecimal {
			return sumDec.Div(decimal.NewFromInt(count)), nil
		}
		return sumFloat / float64(count), nil
	case FuncMin, FuncMax:
		if !sawValue {
			return nil, nil
		}
		return extreme, nil
	default:
		return nil, row.Internalf("unhandled framed function %s", rw.kind)
	}
}
