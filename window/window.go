// Package window computes ranking, offset and frame-based aggregate
// functions over ordered partitions of a relation without collapsing rows.
//
// Partitioning follows the grouping-equality rules of the row package
// (NULL partitions with NULL). Ordering inside a partition is a stable
// sort: rows tied on every ORDER BY column keep their input order, which
// makes results without a deterministic ORDER BY reproducible rather than
// arbitrary.
package window

import (
	"context"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/nshrivastav1512/rowset/row"
)

// OrderItem is one ORDER BY key inside a window specification.
type OrderItem struct {
	Column     string
	Desc       bool
	NullsFirst bool
}

// FrameUnit selects row-counted or value-ranged frame bounds.
type FrameUnit int

const (
	FrameRows FrameUnit = iota
	FrameRange
)

// BoundKind is the kind of one frame boundary.
type BoundKind int

const (
	BoundUnboundedPreceding BoundKind = iota
	BoundOffsetPreceding
	BoundCurrentRow
	BoundOffsetFollowing
	BoundUnboundedFollowing
)

// Bound is a frame boundary; Offset is used by the offset kinds only.
type Bound struct {
	Kind   BoundKind
	Offset int64
}

// Frame is an explicit window frame.
type Frame struct {
	Unit  FrameUnit
	Start Bound
	End   Bound
}

// Spec describes the window a function is computed over. An empty
// PartitionBy puts every row in one partition. When no Frame is given the
// default depends on ORDER BY: with one, RANGE UNBOUNDED PRECEDING to
// CURRENT ROW (peer rows included); without, the whole partition.
type Spec struct {
	PartitionBy []string
	OrderBy     []OrderItem
	Frame       *Frame
}

// FuncKind identifies a window function. The set is closed; dispatch is by
// switch.
type FuncKind int

const (
	FuncRowNumber FuncKind = iota
	FuncRank
	FuncDenseRank
	FuncPercentRank
	FuncCumeDist
	FuncNtile
	FuncLag
	FuncLead
	FuncFirstValue
	FuncLastValue
	FuncNthValue
	FuncSum
	FuncAvg
	FuncMin
	FuncMax
	FuncCount
)

// String returns the SQL name of the function kind.
func (k FuncKind) String() string {
	switch k {
	case FuncRowNumber:
		return "ROW_NUMBER"
	case FuncRank:
		return "RANK"
	case FuncDenseRank:
		return "DENSE_RANK"
	case FuncPercentRank:
		return "PERCENT_RANK"
	case FuncCumeDist:
		return "CUME_DIST"
	case FuncNtile:
		return "NTILE"
	case FuncLag:
		return "LAG"
	case FuncLead:
		return "LEAD"
	case FuncFirstValue:
		return "FIRST_VALUE"
	case FuncLastValue:
		return "LAST_VALUE"
	case FuncNthValue:
		return "NTH_VALUE"
	case FuncSum:
		return "SUM"
	case FuncAvg:
		return "AVG"
	case FuncMin:
		return "MIN"
	case FuncMax:
		return "MAX"
	case FuncCount:
		return "COUNT"
	default:
		return "UNKNOWN"
	}
}

// Windowed is one window expression to compute: a function, its window,
// and an optional argument given either as a plain column (validated
// against the schema) or as an opaque closure.
type Windowed struct {
	Name   string
	Kind   FuncKind
	Spec   Spec
	Column string
	Arg    row.Expr

	// N is the NTILE bucket count, the NTH_VALUE position, or the
	// LAG/LEAD offset (zero means the default offset of 1).
	N int64

	// Default is returned by LAG/LEAD when the offset row falls outside
	// the partition. The default default is NULL.
	Default interface{}

	// OutType overrides the output type for closure arguments; column
	// arguments infer it from the schema.
	OutType row.Type
}

// RowNumber numbers rows 1..n inside each partition, ignoring ties.
func RowNumber(name string, spec Spec) Windowed {
	return Windowed{Name: name, Kind: FuncRowNumber, Spec: spec}
}

// Rank ranks rows with gaps after tie groups.
func Rank(name string, spec Spec) Windowed {
	return Windowed{Name: name, Kind: FuncRank, Spec: spec}
}

// DenseRank ranks rows without gaps.
func DenseRank(name string, spec Spec) Windowed {
	return Windowed{Name: name, Kind: FuncDenseRank, Spec: spec}
}

// PercentRank reports (rank-1)/(rows-1), 0 for a single-row partition.
func PercentRank(name string, spec Spec) Windowed {
	return Windowed{Name: name, Kind: FuncPercentRank, Spec: spec}
}

// CumeDist reports the cumulative distribution of the row's peer group.
func CumeDist(name string, spec Spec) Windowed {
	return Windowed{Name: name, Kind: FuncCumeDist, Spec: spec}
}

// Ntile distributes each partition's rows over n buckets, larger buckets
// first.
func Ntile(name string, spec Spec, n int64) Windowed {
	return Windowed{Name: name, Kind: FuncNtile, Spec: spec, N: n}
}

// Lag reads the column offset rows before the current row.
func Lag(name string, spec Spec, column string, offset int64, def interface{}) Windowed {
	return Windowed{Name: name, Kind: FuncLag, Spec: spec, Column: column, N: offset, Default: def}
}

// Lead reads the column offset rows after the current row.
func Lead(name string, spec Spec, column string, offset int64, def interface{}) Windowed {
	return Windowed{Name: name, Kind: FuncLead, Spec: spec, Column: column, N: offset, Default: def}
}

// FirstValue reads the column at the start of the frame.
func FirstValue(name string, spec Spec, column string) Windowed {
	return Windowed{Name: name, Kind: FuncFirstValue, Spec: spec, Column: column}
}

// LastValue reads the column at the end of the frame. Under the default
// ORDER BY frame the end is the current row's peer group, the standard
// (and frequently surprising) truncation.
func LastValue(name string, spec Spec, column string) Windowed {
	return Windowed{Name: name, Kind: FuncLastValue, Spec: spec, Column: column}
}

// NthValue reads the column at the n-th row of the frame, NULL when the
// frame is shorter.
func NthValue(name string, spec Spec, column string, n int64) Windowed {
	return Windowed{Name: name, Kind: FuncNthValue, Spec: spec, Column: column, N: n}
}

// Sum aggregates the column over each row's frame.
func Sum(name string, spec Spec, column string) Windowed {
	return Windowed{Name: name, Kind: FuncSum, Spec: spec, Column: column}
}

// Avg averages the column over each row's frame.
func Avg(name string, spec Spec, column string) Windowed {
	return Windowed{Name: name, Kind: FuncAvg, Spec: spec, Column: column}
}

// Min takes the smallest column value in each row's frame.
func Min(name string, spec Spec, column string) Windowed {
	return Windowed{Name: name, Kind: FuncMin, Spec: spec, Column: column}
}

// Max takes the largest column value in each row's frame.
func Max(name string, spec Spec, column string) Windowed {
	return Windowed{Name: name, Kind: FuncMax, Spec: spec, Column: column}
}

// Count counts non-NULL column values in each row's frame; with an empty
// column it counts the frame's rows.
func Count(name string, spec Spec, column string) Windowed {
	return Windowed{Name: name, Kind: FuncCount, Spec: spec, Column: column}
}

// Options tunes evaluation; the zero value is ready to use.
type Options struct {
	// Parallel caps concurrently processed partitions. Zero means
	// GOMAXPROCS. Parallel execution is not observable in the output.
	Parallel int
}

// ref pins a row to its position in the input so partition-parallel
// results can be written back deterministically.
type ref struct {
	row  row.Row
	orig int
}

// Evaluate annotates every input row with one computed value per windowed
// expression. The output has the same row count and row order as the
// input, with the computed columns appended in request order.
func Evaluate(ctx context.Context, rel row.Relation, windowed []Windowed, opts Options) (row.Relation, error) {
	if err := rel.Schema.Validate(); err != nil {
		return row.Relation{}, err
	}
	resolved := make([]*resolvedWindow, len(windowed))
	seen := make(map[string]bool, len(windowed))
	for i := range windowed {
		rw, err := resolve(rel.Schema, &windowed[i])
		if err != nil {
			return row.Relation{}, err
		}
		if seen[rw.name] {
			return row.Relation{}, row.Validationf("duplicate window output %q", rw.name)
		}
		seen[rw.name] = true
		resolved[i] = rw
	}

	outSchema := make(row.Schema, 0, len(rel.Schema)+len(resolved))
	outSchema = append(outSchema, rel.Schema...)
	for _, rw := range resolved {
		outSchema = append(outSchema, rw.outField)
	}

	columns := make([][]interface{}, len(resolved))
	for i, rw := range resolved {
		if err := ctx.Err(); err != nil {
			return row.Relation{}, row.Cancelled(err)
		}
		values, err := computeColumn(ctx, rel, rw, opts)
		if err != nil {
			return row.Relation{}, row.Wrapf(err, "window %q", rw.name)
		}
		columns[i] = values
	}

	outRows := make([]row.Row, len(rel.Rows))
	for i, r := range rel.Rows {
		out := make(row.Row, 0, len(outSchema))
		out = append(out, r...)
		for _, col := range columns {
			out = append(out, col[i])
		}
		outRows[i] = out
	}
	return row.Relation{Schema: outSchema, Rows: outRows}, nil
}

// computeColumn evaluates one windowed expression across all partitions.
// Partitions are independent; they run on a worker pool and write their
// values into slots addressed by each row's original index.
func computeColumn(ctx context.Context, rel row.Relation, rw *resolvedWindow, opts Options) ([]interface{}, error) {
	partitions := partitionRows(rel.Rows, rw.partIdx)
	values := make([]interface{}, len(rel.Rows))

	runOne := func(p []ref) error {
		sortPartition(p, rw.order)
		results, err := computePartition(p, rw)
		if err != nil {
			return err
		}
		for i, r := range p {
			values[r.orig] = results[i]
		}
		return nil
	}

	if len(partitions) == 1 {
		if err := runOne(partitions[0]); err != nil {
			return nil, err
		}
		return values, nil
	}

	parallel := opts.Parallel
	if parallel <= 0 {
		parallel = runtime.GOMAXPROCS(0)
	}
	if parallel > len(partitions) {
		parallel = len(partitions)
	}
	pool, err := ants.NewPool(parallel)
	if err != nil {
		return nil, row.Internalf("worker pool: %v", err)
	}
	defer pool.Release()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for _, p := range partitions {
		p := p
		wg.Add(1)
		task := func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			if err := runOne(p); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}
		if err := pool.Submit(task); err != nil {
			wg.Done()
			mu.Lock()
			if firstErr == nil {
				firstErr = row.Internalf("submit partition: %v", err)
			}
			mu.Unlock()
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, row.Cancelled(err)
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return values, nil
}

// partitionRows splits rows into partitions keyed by the grouping-encoded
// partition columns. Partition order follows first appearance so the pool
// scheduling order is stable.
func partitionRows(rows []row.Row, partIdx []int) [][]ref {
	if len(partIdx) == 0 {
		p := make([]ref, len(rows))
		for i, r := range rows {
			p[i] = ref{row: r, orig: i}
		}
		return [][]ref{p}
	}

	index := make(map[string]int)
	var partitions [][]ref
	var keyBuilder strings.Builder
	for i, r := range rows {
		keyBuilder.Reset()
		for j, idx := range partIdx {
			if j > 0 {
				keyBuilder.WriteByte(0)
			}
			keyBuilder.WriteString(row.GroupEncode(r[idx]))
		}
		key := keyBuilder.String()
		at, ok := index[key]
		if !ok {
			at = len(partitions)
			index[key] = at
			partitions = append(partitions, nil)
		}
		partitions[at] = append(partitions[at], ref{row: r, orig: i})
	}
	return partitions
}

// sortPartition orders a partition by the ORDER BY items. The sort is
// stable: ties keep input order.
func sortPartition(p []ref, order []orderIdx) {
	if len(order) == 0 {
		return
	}
	sort.SliceStable(p, func(i, j int) bool {
		for _, o := range order {
			a, b := p[i].row[o.idx], p[j].row[o.idx]
			if row.Compare(a, b) == 0 {
				continue
			}
			return row.Less(a, b, o.desc, o.nullsFirst)
		}
		return false
	})
}
