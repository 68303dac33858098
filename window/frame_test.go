package window

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nshrivastav1512/rowset/row"
)

func intsRelation(values ...interface{}) row.Relation {
	rel := row.Relation{Schema: row.Schema{{Name: "v", Type: row.TypeInt, Nullable: true}}}
	for _, v := range values {
		rel.Rows = append(rel.Rows, row.Row{v})
	}
	return rel
}

func frameOf(unit FrameUnit, start, end Bound) *Frame {
	return &Frame{Unit: unit, Start: start, End: end}
}

func TestDefaultFrameRunningSum(t *testing.T) {
	// With an ORDER BY and no explicit frame, the frame is RANGE UNBOUNDED
	// PRECEDING to CURRENT ROW: peers of the current row are included, so
	// the tied rows both see the whole tie group.
	rel := intsRelation(int64(10), int64(10), int64(20))
	out, err := Evaluate(context.Background(), rel, []Windowed{
		Sum("running", Spec{OrderBy: []OrderItem{{Column: "v"}}}, "v"),
	}, Options{})
	require.NoError(t, err)
	require.Equal(t, []interface{}{int64(20), int64(20), int64(40)}, column(t, out, "running"))
}

func TestDefaultFrameWithoutOrderIsWholePartition(t *testing.T) {
	rel := intsRelation(int64(1), int64(2), int64(3))
	out, err := Evaluate(context.Background(), rel, []Windowed{
		Sum("total", Spec{}, "v"),
		Count("n", Spec{}, ""),
	}, Options{})
	require.NoError(t, err)
	require.Equal(t, []interface{}{int64(6), int64(6), int64(6)}, column(t, out, "total"))
	require.Equal(t, []interface{}{int64(3), int64(3), int64(3)}, column(t, out, "n"))
}

func TestRowsFrameRunningSumExcludesPeers(t *testing.T) {
	// ROWS counts physical rows, so tied values do not pool.
	rel := intsRelation(int64(10), int64(10), int64(20))
	out, err := Evaluate(context.Background(), rel, []Windowed{
		Sum("running", Spec{
			OrderBy: []OrderItem{{Column: "v"}},
			Frame: frameOf(FrameRows,
				Bound{Kind: BoundUnboundedPreceding},
				Bound{Kind: BoundCurrentRow}),
		}, "v"),
	}, Options{})
	require.NoError(t, err)
	require.Equal(t, []interface{}{int64(10), int64(20), int64(40)}, column(t, out, "running"))
}

func TestRowsMovingWindow(t *testing.T) {
	rel := intsRelation(int64(1), int64(2), int64(3), int64(4))
	moving := frameOf(FrameRows,
		Bound{Kind: BoundOffsetPreceding, Offset: 1},
		Bound{Kind: BoundOffsetFollowing, Offset: 1})

	out, err := Evaluate(context.Background(), rel, []Windowed{
		Sum("s", Spec{OrderBy: []OrderItem{{Column: "v"}}, Frame: moving}, "v"),
		Avg("a", Spec{OrderBy: []OrderItem{{Column: "v"}}, Frame: moving}, "v"),
		Count("c", Spec{OrderBy: []OrderItem{{Column: "v"}}, Frame: moving}, ""),
	}, Options{})
	require.NoError(t, err)
	require.Equal(t, []interface{}{int64(3), int64(6), int64(9), int64(7)}, column(t, out, "s"))
	require.Equal(t, []interface{}{1.5, 2.0, 3.0, 3.5}, column(t, out, "a"))
	require.Equal(t, []interface{}{int64(2), int64(3), int64(3), int64(2)}, column(t, out, "c"))
}

func TestRowsFrameOutsidePartitionIsEmpty(t *testing.T) {
	// A frame lying entirely before the partition must stay empty rather
	// than clamp onto row 0.
	rel := intsRelation(int64(1), int64(2), int64(3), int64(4))
	behind := frameOf(FrameRows,
		Bound{Kind: BoundOffsetPreceding, Offset: 5},
		Bound{Kind: BoundOffsetPreceding, Offset: 2})

	out, err := Evaluate(context.Background(), rel, []Windowed{
		Sum("s", Spec{OrderBy: []OrderItem{{Column: "v"}}, Frame: behind}, "v"),
		Count("c", Spec{OrderBy: []OrderItem{{Column: "v"}}, Frame: behind}, ""),
	}, Options{})
	require.NoError(t, err)
	require.Equal(t, []interface{}{nil, nil, int64(1), int64(3)}, column(t, out, "s"))
	require.Equal(t, []interface{}{int64(0), int64(0), int64(1), int64(2)}, column(t, out, "c"))
}

func TestLastValueDefaultFrameTruncation(t *testing.T) {
	// Under the default ORDER BY frame, LAST_VALUE stops at the current
	// peer group. The full-partition answer needs an explicit frame.
	rel := intsRelation(int64(10), int64(10), int64(20))
	byV := []OrderItem{{Column: "v"}}

	out, err := Evaluate(context.Background(), rel, []Windowed{
		LastValue("truncated", Spec{OrderBy: byV}, "v"),
		LastValue("whole", Spec{
			OrderBy: byV,
			Frame: frameOf(FrameRows,
				Bound{Kind: BoundUnboundedPreceding},
				Bound{Kind: BoundUnboundedFollowing}),
		}, "v"),
		FirstValue("first", Spec{OrderBy: byV}, "v"),
	}, Options{})
	require.NoError(t, err)
	require.Equal(t, []interface{}{int64(10), int64(10), int64(20)}, column(t, out, "truncated"))
	require.Equal(t, []interface{}{int64(20), int64(20), int64(20)}, column(t, out, "whole"))
	require.Equal(t, []interface{}{int64(10), int64(10), int64(10)}, column(t, out, "first"))
}

func TestNthValue(t *testing.T) {
	rel := intsRelation(int64(5), int64(6), int64(7))
	whole := frameOf(FrameRows,
		Bound{Kind: BoundUnboundedPreceding},
		Bound{Kind: BoundUnboundedFollowing})

	out, err := Evaluate(context.Background(), rel, []Windowed{
		NthValue("second", Spec{OrderBy: []OrderItem{{Column: "v"}}, Frame: whole}, "v", 2),
		NthValue("tenth", Spec{OrderBy: []OrderItem{{Column: "v"}}, Frame: whole}, "v", 10),
	}, Options{})
	require.NoError(t, err)
	require.Equal(t, []interface{}{int64(6), int64(6), int64(6)}, column(t, out, "second"))
	require.Equal(t, []interface{}{nil, nil, nil}, column(t, out, "tenth"))
}

func TestRangeCurrentRowIsPeerGroup(t *testing.T) {
	rel := intsRelation(int64(10), int64(10), int64(20))
	peers := frameOf(FrameRange,
		Bound{Kind: BoundCurrentRow},
		Bound{Kind: BoundCurrentRow})

	out, err := Evaluate(context.Background(), rel, []Windowed{
		Sum("s", Spec{OrderBy: []OrderItem{{Column: "v"}}, Frame: peers}, "v"),
	}, Options{})
	require.NoError(t, err)
	require.Equal(t, []interface{}{int64(20), int64(20), int64(20)}, column(t, out, "s"))
}

func TestRangeOffsetFrame(t *testing.T) {
	// Value-based bounds: each row sums the values within distance 1 of its
	// own value, however many physical rows that is.
	rel := intsRelation(int64(1), int64(2), int64(4), int64(7))
	near := frameOf(FrameRange,
		Bound{Kind: BoundOffsetPreceding, Offset: 1},
		Bound{Kind: BoundOffsetFollowing, Offset: 1})

	out, err := Evaluate(context.Background(), rel, []Windowed{
		Sum("s", Spec{OrderBy: []OrderItem{{Column: "v"}}, Frame: near}, "v"),
	}, Options{})
	require.NoError(t, err)
	require.Equal(t, []interface{}{int64(3), int64(3), int64(4), int64(7)}, column(t, out, "s"))
}

func TestFrameSkipsNullArguments(t *testing.T) {
	rel := intsRelation(int64(1), nil, int64(3))
	out, err := Evaluate(context.Background(), rel, []Windowed{
		Sum("s", Spec{}, "v"),
		Count("non_null", Spec{}, "v"),
		Count("all_rows", Spec{}, ""),
		Min("lo", Spec{}, "v"),
		Max("hi", Spec{}, "v"),
	}, Options{})
	require.NoError(t, err)
	require.Equal(t, []interface{}{int64(4), int64(4), int64(4)}, column(t, out, "s"))
	require.Equal(t, []interface{}{int64(2), int64(2), int64(2)}, column(t, out, "non_null"))
	require.Equal(t, []interface{}{int64(3), int64(3), int64(3)}, column(t, out, "all_rows"))
	require.Equal(t, []interface{}{int64(1), int64(1), int64(1)}, column(t, out, "lo"))
	require.Equal(t, []interface{}{int64(3), int64(3), int64(3)}, column(t, out, "hi"))
}

func TestFrameDecimalSum(t *testing.T) {
	rel := row.Relation{
		Schema: row.Schema{{Name: "amount", Type: row.TypeDecimal}},
		Rows: []row.Row{
			{decimal.RequireFromString("0.10")},
			{decimal.RequireFromString("0.20")},
		},
	}
	out, err := Evaluate(context.Background(), rel, []Windowed{
		Sum("total", Spec{}, "amount"),
	}, Options{})
	require.NoError(t, err)

	require.Equal(t, row.TypeDecimal, out.Schema[out.Schema.IndexOf("total")].Type)
	for _, r := range out.Rows {
		total := r[1].(decimal.Decimal)
		require.True(t, total.Equal(decimal.RequireFromString("0.30")), "got %s", total)
	}
}
