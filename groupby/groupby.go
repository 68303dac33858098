// Package groupby partitions a row stream by key tuples and computes
// aggregate expressions per group, with multi-level ROLLUP / CUBE /
// GROUPING SETS expansion and HAVING post-filtering.
//
// Grouping equality is NULL-aware: rows whose grouping value is NULL form
// a real NULL group. Subtotal rows produced by multi-level specs carry
// NULL in the aggregated-away columns too; the two cases are told apart
// only through the grouping marker bitset on the Result, mirroring the
// GROUPING() / GROUPING_ID() functions.
package groupby

import (
	"context"
	"runtime"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/nshrivastav1512/rowset/row"
)

// Result is a grouped-aggregation output: the relation itself plus the
// per-row grouping marker bitset.
type Result struct {
	Relation row.Relation

	groupingCols []string
	bits         []uint64
}

// Grouping returns 1 when the column was aggregated away in the given
// output row (a subtotal level), 0 when it was grouped on.
func (r *Result) Grouping(rowIdx int, column string) (int, error) {
	bit, err := r.columnBit(column)
	if err != nil {
		return 0, err
	}
	if rowIdx < 0 || rowIdx >= len(r.bits) {
		return 0, row.Validationf("row index %d out of range", rowIdx)
	}
	if r.bits[rowIdx]&bit != 0 {
		return 1, nil
	}
	return 0, nil
}

// GroupingID folds the grouping markers of the listed columns into one
// integer, first column most significant.
func (r *Result) GroupingID(rowIdx int, columns ...string) (uint64, error) {
	var id uint64
	for _, col := range columns {
		g, err := r.Grouping(rowIdx, col)
		if err != nil {
			return 0, err
		}
		id = id<<1 | uint64(g)
	}
	return id, nil
}

func (r *Result) columnBit(column string) (uint64, error) {
	for i, c := range r.groupingCols {
		if c == column {
			return 1 << uint(i), nil
		}
	}
	return 0, row.Validationf("column %q is not a grouping column", column)
}

// resolvedAgg is an Aggregate with its argument closure and output type
// pinned down during validation.
type resolvedAgg struct {
	kind    AggKind
	name    string
	arg     row.Expr
	outType row.Type
	notNull bool
	sep     string
}

// levelPlan is one concrete grouping level: which grouping-column slots it
// keeps and the subtotal marker bits for the slots it aggregates away.
type levelPlan struct {
	srcIdx  []int // input column index per kept slot
	slots   []int // position in the grouping-column layout per kept slot
	bits    uint64
	hasCols bool
}

// Evaluate runs one grouped-aggregation request against the relation.
// Levels are independent and may run concurrently; output rows are
// concatenated in level-expansion order with insertion-ordered groups
// inside each level, so repeated runs produce identical output.
func Evaluate(ctx context.Context, rel row.Relation, spec Spec) (*Result, error) {
	if err := rel.Schema.Validate(); err != nil {
		return nil, err
	}

	levels, err := spec.Grouping.Levels()
	if err != nil {
		return nil, err
	}
	groupingCols := spec.Grouping.Columns()
	if len(groupingCols) > 64 {
		return nil, row.Validationf("at most 64 grouping columns supported, got %d", len(groupingCols))
	}

	plans, err := planLevels(rel.Schema, levels, groupingCols)
	if err != nil {
		return nil, err
	}
	aggs, err := resolveAggregates(rel.Schema, spec.Aggregates, groupingCols)
	if err != nil {
		return nil, err
	}
	outSchema := outputSchema(rel.Schema, groupingCols, aggs)

	results := make([][]row.Row, len(plans))
	if err := runLevels(ctx, spec.Parallel, plans, func(i int) error {
		rows, err := evalLevel(ctx, rel, plans[i], groupingCols, aggs)
		if err != nil {
			return err
		}
		results[i] = rows
		return nil
	}); err != nil {
		return nil, err
	}

	var outRows []row.Row
	var bits []uint64
	for i, plan := range plans {
		for _, r := range results[i] {
			outRows = append(outRows, r)
			bits = append(bits, plan.bits)
		}
	}

	if spec.Having != nil {
		outRows, bits, err = applyHaving(outRows, bits, spec.Having)
		if err != nil {
			return nil, err
		}
	}

	return &Result{
		Relation:     row.Relation{Schema: outSchema, Rows: outRows},
		groupingCols: groupingCols,
		bits:         bits,
	}, nil
}

// planLevels validates grouping columns against the schema and precomputes
// per-level column indexes and marker bits.
func planLevels(schema row.Schema, levels [][]string, groupingCols []string) ([]levelPlan, error) {
	slotOf := make(map[string]int, len(groupingCols))
	for i, c := range groupingCols {
		idx := schema.IndexOf(c)
		if idx < 0 {
			return nil, row.Validationf("grouping column %q not found", c)
		}
		if !schema[idx].Type.Orderable() {
			return nil, row.Validationf("grouping column %q has unorderable type %s", c, schema[idx].Type)
		}
		slotOf[c] = i
	}

	plans := make([]levelPlan, len(levels))
	for i, level := range levels {
		plan := levelPlan{hasCols: len(level) > 0}
		kept := uint64(0)
		for _, c := range level {
			slot, ok := slotOf[c]
			if !ok {
				return nil, row.Internalf("level column %q missing from grouping layout", c)
			}
			plan.srcIdx = append(plan.srcIdx, schema.IndexOf(c))
			plan.slots = append(plan.slots, slot)
			kept |= 1 << uint(slot)
		}
		for s := range groupingCols {
			if kept&(1<<uint(s)) == 0 {
				plan.bits |= 1 << uint(s)
			}
		}
		plans[i] = plan
	}
	return plans, nil
}

// resolveAggregates validates each aggregate before any row is processed
// and pins down its argument closure and output type.
func resolveAggregates(schema row.Schema, aggs []Aggregate, groupingCols []string) ([]resolvedAgg, error) {
	taken := make(map[string]bool, len(groupingCols))
	for _, c := range groupingCols {
		taken[c] = true
	}

	resolved := make([]resolvedAgg, len(aggs))
	for i, agg := range aggs {
		if agg.Name == "" {
			return nil, row.Validationf("aggregate %d has no output name", i)
		}
		if taken[agg.Name] {
			return nil, row.Validationf("duplicate output column %q", agg.Name)
		}
		taken[agg.Name] = true

		ra := resolvedAgg{kind: agg.Kind, name: agg.Name, arg: agg.Arg, sep: agg.Separator}
		if ra.sep == "" {
			ra.sep = ","
		}

		if agg.Kind == AggCountStar {
			if agg.Arg != nil || agg.Column != "" {
				return nil, row.Validationf("%q: COUNT(*) takes no argument", agg.Name)
			}
			ra.outType, ra.notNull = row.TypeInt, true
			resolved[i] = ra
			continue
		}

		var colType row.Type
		if agg.Column != "" {
			idx := schema.IndexOf(agg.Column)
			if idx < 0 {
				return nil, row.Validationf("%q: aggregate column %q not found", agg.Name, agg.Column)
			}
			colType = schema[idx].Type
			expr, err := row.Column(schema, agg.Column)
			if err != nil {
				return nil, err
			}
			ra.arg = expr
		} else if agg.Arg == nil {
			return nil, row.Validationf("%q: %s requires an argument", agg.Name, agg.Kind)
		}

		switch agg.Kind {
		case AggCount, AggCountDistinct:
			ra.outType, ra.notNull = row.TypeInt, true

		case AggSum:
			if colType != row.TypeInvalid && !colType.Numeric() {
				return nil, row.Validationf("%q: SUM over non-numeric column %q (%s)", agg.Name, agg.Column, colType)
			}
			ra.outType = pickOutType(agg.OutType, colType, row.TypeFloat)

		case AggAvg:
			if colType != row.TypeInvalid && !colType.Numeric() {
				return nil, row.Validationf("%q: AVG over non-numeric column %q (%s)", agg.Name, agg.Column, colType)
			}
			ra.outType = pickOutType(agg.OutType, colType, row.TypeFloat)
			if ra.outType != row.TypeDecimal {
				ra.outType = row.TypeFloat
			}

		case AggMin, AggMax:
			if colType != row.TypeInvalid && !colType.Orderable() {
				return nil, row.Validationf("%q: %s over unorderable column %q", agg.Name, agg.Kind, agg.Column)
			}
			ra.outType = pickOutType(agg.OutType, colType, row.TypeFloat)

		case AggStringAgg:
			ra.outType = row.TypeText

		default:
			return nil, row.Validationf("%q: unknown aggregate kind %d", agg.Name, agg.Kind)
		}
		resolved[i] = ra
	}
	return resolved, nil
}

func pickOutType(override, colType, fallback row.Type) row.Type {
	if override != row.TypeInvalid {
		return override
	}
	if colType != row.TypeInvalid {
		return colType
	}
	return fallback
}

// outputSchema is the grouping-column layout followed by one field per
// aggregate. Grouping columns are always nullable in the output since
// subtotal rows blank them out.
func outputSchema(in row.Schema, groupingCols []string, aggs []resolvedAgg) row.Schema {
	out := make(row.Schema, 0, len(groupingCols)+len(aggs))
	for _, c := range groupingCols {
		f := in[in.IndexOf(c)]
		out = append(out, row.Field{Name: f.Name, Type: f.Type, Nullable: true})
	}
	for _, agg := range aggs {
		out = append(out, row.Field{Name: agg.name, Type: agg.outType, Nullable: !agg.notNull})
	}
	return out
}

// group holds one group's key values and its accumulator arena entry.
type group struct {
	values []interface{}
	accs   []*accumulator
}

// evalLevel folds every input row into this level's groups and finalizes
// them. Groups are emitted in order of first appearance, which makes the
// output deterministic without a downstream ORDER BY.
func evalLevel(ctx context.Context, rel row.Relation, plan levelPlan, groupingCols []string, aggs []resolvedAgg) ([]row.Row, error) {
	var ordered []*group
	index := make(map[string]*group)

	var keyBuilder strings.Builder
	for ri, r := range rel.Rows {
		if ri%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, row.Cancelled(err)
			}
		}

		keyBuilder.Reset()
		for i, src := range plan.srcIdx {
			if src >= len(r) {
				return nil, row.TypeMismatchf("row %d has %d values, schema expects %d", ri, len(r), len(rel.Schema))
			}
			if i > 0 {
				keyBuilder.WriteByte(0)
			}
			keyBuilder.WriteString(row.GroupEncode(r[src]))
		}
		key := keyBuilder.String()

		g, ok := index[key]
		if !ok {
			g = &group{accs: make([]*accumulator, len(aggs))}
			for i := range aggs {
				g.accs[i] = newAccumulator(&aggs[i])
			}
			g.values = make([]interface{}, len(plan.srcIdx))
			for i, src := range plan.srcIdx {
				g.values[i] = r[src]
			}
			index[key] = g
			ordered = append(ordered, g)
		}

		for i := range aggs {
			var v interface{}
			if aggs[i].arg != nil {
				var err error
				v, err = aggs[i].arg(r)
				if err != nil {
					return nil, row.Wrapf(err, "aggregate %q", aggs[i].name)
				}
			}
			if err := g.accs[i].add(v); err != nil {
				return nil, row.Wrapf(err, "aggregate %q", aggs[i].name)
			}
		}
	}

	// A level with no grouping columns always yields its single global
	// group, even over empty input (COUNT(*) = 0). Levels with columns
	// yield nothing for empty input.
	if len(ordered) == 0 && !plan.hasCols {
		g := &group{accs: make([]*accumulator, len(aggs))}
		for i := range aggs {
			g.accs[i] = newAccumulator(&aggs[i])
		}
		ordered = append(ordered, g)
	}

	out := make([]row.Row, 0, len(ordered))
	for _, g := range ordered {
		r := make(row.Row, len(groupingCols)+len(aggs))
		for i, slot := range plan.slots {
			r[slot] = g.values[i]
		}
		for i, acc := range g.accs {
			r[len(groupingCols)+i] = acc.final()
		}
		out = append(out, r)
	}
	return out, nil
}

// runLevels evaluates levels on a shared worker pool. A single level runs
// inline. Errors keep the first failure; the output order is decided by
// the caller, not by completion order.
func runLevels(ctx context.Context, parallel int, plans []levelPlan, run func(i int) error) error {
	if err := ctx.Err(); err != nil {
		return row.Cancelled(err)
	}
	if len(plans) == 1 {
		return run(0)
	}

	if parallel <= 0 {
		parallel = runtime.GOMAXPROCS(0)
	}
	if parallel > len(plans) {
		parallel = len(plans)
	}
	pool, err := ants.NewPool(parallel)
	if err != nil {
		return row.Internalf("worker pool: %v", err)
	}
	defer pool.Release()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for i := range plans {
		i := i
		wg.Add(1)
		task := func() {
			defer wg.Done()
			if err := run(i); err != nil {
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
				firstErr = row.Internalf("submit level %d: %v", i, err)
			}
			mu.Unlock()
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return row.Cancelled(err)
	}
	return firstErr
}

// applyHaving post-filters finalized rows, keeping the grouping bitset in
// lockstep with the surviving rows.
func applyHaving(rows []row.Row, bits []uint64, having row.Predicate) ([]row.Row, []uint64, error) {
	outRows := make([]row.Row, 0, len(rows))
	outBits := make([]uint64, 0, len(bits))
	for i, r := range rows {
		keep, err := having(r)
		if err != nil {
			return nil, nil, row.Wrapf(err, "HAVING")
		}
		if keep {
			outRows = append(outRows, r)
			outBits = append(outBits, bits[i])
		}
	}
	return outRows, outBits, nil
}
