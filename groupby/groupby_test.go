package groupby

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nshrivastav1512/rowset/row"
)

// salesRelation is the shared fixture: one real NULL product group and one
// NULL amount, so NULL handling differs between COUNT(*) and COUNT(col).
func salesRelation() row.Relation {
	return row.Relation{
		Schema: row.Schema{
			{Name: "region", Type: row.TypeText, Nullable: true},
			{Name: "product", Type: row.TypeText, Nullable: true},
			{Name: "amount", Type: row.TypeInt, Nullable: true},
		},
		Rows: []row.Row{
			{"east", "widget", int64(10)},
			{"east", "gadget", int64(20)},
			{"west", "widget", int64(30)},
			{"west", nil, int64(40)},
			{"east", "widget", nil},
		},
	}
}

func TestEvaluateSimple(t *testing.T) {
	res, err := Evaluate(context.Background(), salesRelation(), Spec{
		Grouping: Simple("region"),
		Aggregates: []Aggregate{
			CountStar("n"),
			Count("n_amount", "amount"),
			Sum("total", "amount"),
			Avg("avg_amount", "amount"),
			Min("lo", "amount"),
			Max("hi", "amount"),
		},
	})
	require.NoError(t, err)

	require.Equal(t, []string{"region", "n", "n_amount", "total", "avg_amount", "lo", "hi"},
		res.Relation.Schema.Names())

	// Groups come out in first-appearance order: east before west.
	require.Equal(t, []row.Row{
		{"east", int64(3), int64(2), int64(30), 15.0, int64(10), int64(20)},
		{"west", int64(2), int64(2), int64(70), 35.0, int64(30), int64(40)},
	}, res.Relation.Rows)
}

func TestEvaluateGlobalGroup(t *testing.T) {
	rel := salesRelation()

	t.Run("whole relation", func(t *testing.T) {
		res, err := Evaluate(context.Background(), rel, Spec{
			Grouping:   Simple(),
			Aggregates: []Aggregate{CountStar("n"), Sum("total", "amount")},
		})
		require.NoError(t, err)
		require.Equal(t, []row.Row{{int64(5), int64(100)}}, res.Relation.Rows)
	})

	t.Run("empty input still yields the global group", func(t *testing.T) {
		empty := row.Relation{Schema: rel.Schema}
		res, err := Evaluate(context.Background(), empty, Spec{
			Grouping:   Simple(),
			Aggregates: []Aggregate{CountStar("n"), Sum("total", "amount")},
		})
		require.NoError(t, err)
		require.Equal(t, []row.Row{{int64(0), nil}}, res.Relation.Rows)
	})

	t.Run("empty input with grouping columns yields no rows", func(t *testing.T) {
		empty := row.Relation{Schema: rel.Schema}
		res, err := Evaluate(context.Background(), empty, Spec{
			Grouping:   Simple("region"),
			Aggregates: []Aggregate{CountStar("n")},
		})
		require.NoError(t, err)
		require.Empty(t, res.Relation.Rows)
	})
}

func TestEvaluateNullGrouping(t *testing.T) {
	// Rows whose grouping value is NULL form one real group, and its NULL
	// key is distinguishable from a subtotal's NULL via the grouping marker.
	res, err := Evaluate(context.Background(), salesRelation(), Spec{
		Grouping:   Rollup("region", "product"),
		Aggregates: []Aggregate{CountStar("n")},
	})
	require.NoError(t, err)

	var realNull, subtotal int
	for i, r := range res.Relation.Rows {
		if r[1] != nil {
			continue
		}
		g, err := res.Grouping(i, "product")
		require.NoError(t, err)
		if g == 0 {
			realNull++
			// The (west, NULL) group counts exactly its one input row.
			require.Equal(t, "west", r[0])
			require.Equal(t, int64(1), r[2])
		} else {
			subtotal++
		}
	}
	require.Equal(t, 1, realNull)
	require.Equal(t, 3, subtotal, "two region subtotals plus the grand total")
}

func TestEvaluateRollup(t *testing.T) {
	res, err := Evaluate(context.Background(), salesRelation(), Spec{
		Grouping:   Rollup("region", "product"),
		Aggregates: []Aggregate{CountStar("n"), Sum("total", "amount")},
	})
	require.NoError(t, err)

	// Finest level has 4 groups, region level 2, grand total 1.
	require.Len(t, res.Relation.Rows, 7)

	// Level blocks appear in expansion order: (region, product) first,
	// grand total last.
	require.Equal(t, []row.Row{
		{"east", "widget", int64(2), int64(10)},
		{"east", "gadget", int64(1), int64(20)},
		{"west", "widget", int64(1), int64(30)},
		{"west", nil, int64(1), int64(40)},
		{"east", nil, int64(3), int64(30)},
		{"west", nil, int64(2), int64(70)},
		{nil, nil, int64(5), int64(100)},
	}, res.Relation.Rows)

	// GROUPING_ID distinguishes the levels even where the key values tie:
	// rows 3 and 5 are both (west, NULL).
	id, err := res.GroupingID(3, "region", "product")
	require.NoError(t, err)
	require.Equal(t, uint64(0), id)
	id, err = res.GroupingID(5, "region", "product")
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)
	id, err = res.GroupingID(6, "region", "product")
	require.NoError(t, err)
	require.Equal(t, uint64(3), id)
}

func TestEvaluateCubeMatchesExplicitSets(t *testing.T) {
	rel := salesRelation()
	aggs := []Aggregate{CountStar("n"), Sum("total", "amount")}

	cube, err := Evaluate(context.Background(), rel, Spec{
		Grouping:   Cube("region", "product"),
		Aggregates: aggs,
	})
	require.NoError(t, err)

	sets, err := Evaluate(context.Background(), rel, Spec{
		Grouping: Sets(
			[]string{"region", "product"},
			[]string{"region"},
			[]string{"product"},
			nil,
		),
		Aggregates: aggs,
	})
	require.NoError(t, err)

	require.Equal(t, sets.Relation, cube.Relation)
}

func TestEvaluateIdempotent(t *testing.T) {
	rel := salesRelation()
	spec := Spec{
		Grouping:   Cube("region", "product"),
		Aggregates: []Aggregate{CountStar("n"), Sum("total", "amount")},
		Parallel:   4,
	}

	first, err := Evaluate(context.Background(), rel, spec)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Evaluate(context.Background(), rel, spec)
		require.NoError(t, err)
		require.Equal(t, first.Relation, again.Relation)
	}
}

func TestEvaluateHaving(t *testing.T) {
	res, err := Evaluate(context.Background(), salesRelation(), Spec{
		Grouping:   Simple("region"),
		Aggregates: []Aggregate{CountStar("n")},
		Having: func(r row.Row) (bool, error) {
			return r[1].(int64) > 2, nil
		},
	})
	require.NoError(t, err)
	require.Equal(t, []row.Row{{"east", int64(3)}}, res.Relation.Rows)

	// Markers stay aligned with the surviving rows.
	g, err := res.Grouping(0, "region")
	require.NoError(t, err)
	require.Equal(t, 0, g)
}

func TestEvaluateCountDistinctAndStringAgg(t *testing.T) {
	res, err := Evaluate(context.Background(), salesRelation(), Spec{
		Grouping: Simple("region"),
		Aggregates: []Aggregate{
			CountDistinct("products", "product"),
			StringAgg("listed", "product", "|"),
		},
	})
	require.NoError(t, err)
	require.Equal(t, []row.Row{
		{"east", int64(2), "widget|gadget|widget"},
		{"west", int64(1), "widget"},
	}, res.Relation.Rows)
}

func TestEvaluateDecimalSum(t *testing.T) {
	rel := row.Relation{
		Schema: row.Schema{
			{Name: "account", Type: row.TypeText},
			{Name: "balance", Type: row.TypeDecimal, Nullable: true},
		},
		Rows: []row.Row{
			{"a", decimal.RequireFromString("0.10")},
			{"a", decimal.RequireFromString("0.20")},
			{"b", nil},
		},
	}
	res, err := Evaluate(context.Background(), rel, Spec{
		Grouping:   Simple("account"),
		Aggregates: []Aggregate{Sum("total", "balance"), Avg("mean", "balance")},
	})
	require.NoError(t, err)

	require.Equal(t, row.TypeDecimal, res.Relation.Schema[1].Type)
	total := res.Relation.Rows[0][1].(decimal.Decimal)
	require.True(t, total.Equal(decimal.RequireFromString("0.30")), "got %s", total)
	mean := res.Relation.Rows[0][2].(decimal.Decimal)
	require.True(t, mean.Equal(decimal.RequireFromString("0.15")), "got %s", mean)

	// The all-NULL group sums and averages to NULL.
	require.Equal(t, row.Row{"b", nil, nil}, res.Relation.Rows[1])
}

func TestEvaluateExprArgument(t *testing.T) {
	rel := salesRelation()
	doubled := func(r row.Row) (interface{}, error) {
		if r[2] == nil {
			return nil, nil
		}
		return float64(r[2].(int64)) * 2, nil
	}

	res, err := Evaluate(context.Background(), rel, Spec{
		Grouping:   Simple("region"),
		Aggregates: []Aggregate{AggExpr(AggSum, "doubled", doubled)},
	})
	require.NoError(t, err)
	require.Equal(t, []row.Row{
		{"east", 60.0},
		{"west", 140.0},
	}, res.Relation.Rows)
}

func TestEvaluateValidation(t *testing.T) {
	rel := salesRelation()
	tests := []struct {
		name string
		spec Spec
	}{
		{"unknown grouping column", Spec{Grouping: Simple("nope")}},
		{"duplicate grouping column", Spec{Grouping: Simple("region", "region")}},
		{"empty rollup", Spec{Grouping: Rollup()}},
		{"empty cube", Spec{Grouping: Cube()}},
		{"no grouping sets", Spec{Grouping: Sets()}},
		{"unknown aggregate column", Spec{
			Grouping:   Simple("region"),
			Aggregates: []Aggregate{Sum("x", "nope")},
		}},
		{"sum over text", Spec{
			Grouping:   Simple("region"),
			Aggregates: []Aggregate{Sum("x", "product")},
		}},
		{"unnamed aggregate", Spec{
			Grouping:   Simple("region"),
			Aggregates: []Aggregate{{Kind: AggCountStar}},
		}},
		{"output name collides with grouping column", Spec{
			Grouping:   Simple("region"),
			Aggregates: []Aggregate{CountStar("region")},
		}},
		{"duplicate output name", Spec{
			Grouping:   Simple("region"),
			Aggregates: []Aggregate{CountStar("n"), Count("n", "amount")},
		}},
		{"count star with argument", Spec{
			Grouping:   Simple("region"),
			Aggregates: []Aggregate{{Kind: AggCountStar, Name: "n", Column: "amount"}},
		}},
		{"count without argument", Spec{
			Grouping:   Simple("region"),
			Aggregates: []Aggregate{{Kind: AggCount, Name: "n"}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Evaluate(context.Background(), rel, tt.spec)
			require.Error(t, err)
			require.True(t, row.IsValidation(err), "want validation error, got %v", err)
		})
	}
}

func TestEvaluateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Evaluate(ctx, salesRelation(), Spec{
		Grouping:   Rollup("region", "product"),
		Aggregates: []Aggregate{CountStar("n")},
	})
	require.Error(t, err)
	require.True(t, row.IsCancelled(err), "got %v", err)
}
