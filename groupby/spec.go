package groupby

import (
	"sort"
	"strings"

	"github.com/nshrivastav1512/rowset/row"
)

type groupingKind int

const (
	kindSimple groupingKind = iota
	kindRollup
	kindCube
	kindSets
)

// GroupingSpec describes which column combinations to group by. Rollup and
// Cube are sugar for GroupingSets: Rollup([c1..cn]) expands to the n+1
// prefixes down to the grand total, Cube([c1..cn]) to all 2^n subsets.
type GroupingSpec struct {
	kind    groupingKind
	columns []string
	sets    [][]string
}

// Simple groups by exactly the given columns. An empty list aggregates the
// whole relation into a single group.
func Simple(columns ...string) GroupingSpec {
	return GroupingSpec{kind: kindSimple, columns: columns}
}

// Rollup produces one grouping level per prefix of the column list, down
// to and including the grand total.
func Rollup(columns ...string) GroupingSpec {
	return GroupingSpec{kind: kindRollup, columns: columns}
}

// Cube produces one grouping level per subset of the column list.
func Cube(columns ...string) GroupingSpec {
	return GroupingSpec{kind: kindCube, columns: columns}
}

// Sets groups by each listed column subset. A nil or empty subset is the
// grand total level.
func Sets(sets ...[]string) GroupingSpec {
	return GroupingSpec{kind: kindSets, sets: sets}
}

// Columns returns the distinct grouping columns in first-appearance order.
// This is the column layout subtotal markers are reported against.
func (g GroupingSpec) Columns() []string {
	var cols []string
	seen := make(map[string]bool)
	add := func(list []string) {
		for _, c := range list {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}
	if g.kind == kindSets {
		for _, set := range g.sets {
			add(set)
		}
	} else {
		add(g.columns)
	}
	return cols
}

// Levels expands the spec into the ordered list of concrete grouping
// levels. Duplicate levels are evaluated once, so the expansion drops any
// repeated subset (compared as a set, not a sequence).
func (g GroupingSpec) Levels() ([][]string, error) {
	switch g.kind {
	case kindSimple:
		if err := checkNoDuplicates(g.columns); err != nil {
			return nil, err
		}
		return [][]string{g.columns}, nil

	case kindRollup:
		if len(g.columns) == 0 {
			return nil, row.Validationf("ROLLUP requires at least one column")
		}
		if err := checkNoDuplicates(g.columns); err != nil {
			return nil, err
		}
		levels := make([][]string, 0, len(g.columns)+1)
		for n := len(g.columns); n >= 0; n-- {
			levels = append(levels, g.columns[:n])
		}
		return levels, nil

	case kindCube:
		if len(g.columns) == 0 {
			return nil, row.Validationf("CUBE requires at least one column")
		}
		if err := checkNoDuplicates(g.columns); err != nil {
			return nil, err
		}
		n := len(g.columns)
		levels := make([][]string, 0, 1<<n)
		for mask := (1 << n) - 1; mask >= 0; mask-- {
			var level []string
			for i, c := range g.columns {
				if mask&(1<<(n-1-i)) != 0 {
					level = append(level, c)
				}
			}
			levels = append(levels, level)
		}
		return levels, nil

	case kindSets:
		if len(g.sets) == 0 {
			return nil, row.Validationf("GROUPING SETS requires at least one set")
		}
		var levels [][]string
		seen := make(map[string]bool)
		for _, set := range g.sets {
			if err := checkNoDuplicates(set); err != nil {
				return nil, err
			}
			sig := levelSignature(set)
			if seen[sig] {
				continue
			}
			seen[sig] = true
			levels = append(levels, set)
		}
		return levels, nil

	default:
		return nil, row.Internalf("unknown grouping spec kind %d", g.kind)
	}
}

// levelSignature canonicalizes a column subset for duplicate detection:
// (a,b) and (b,a) are the same grouping level.
func levelSignature(level []string) string {
	sorted := make([]string, len(level))
	copy(sorted, level)
	sort.Strings(sorted)
	return strings.Join(sorted, "\x00")
}

func checkNoDuplicates(columns []string) error {
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if c == "" {
			return row.Validationf("empty grouping column name")
		}
		if seen[c] {
			return row.Validationf("duplicate grouping column %q", c)
		}
		seen[c] = true
	}
	return nil
}

// AggKind identifies an aggregate function. The set is closed; dispatch is
// by switch, not by open-ended interfaces.
type AggKind int

const (
	AggCountStar AggKind = iota
	AggCount
	AggCountDistinct
	AggSum
	AggAvg
	AggMin
	AggMax
	AggStringAgg
)

// String returns the SQL name of the aggregate kind.
func (k AggKind) String() string {
	switch k {
	case AggCountStar:
		return "COUNT(*)"
	case AggCount:
		return "COUNT"
	case AggCountDistinct:
		return "COUNT(DISTINCT)"
	case AggSum:
		return "SUM"
	case AggAvg:
		return "AVG"
	case AggMin:
		return "MIN"
	case AggMax:
		return "MAX"
	case AggStringAgg:
		return "STRING_AGG"
	default:
		return "UNKNOWN"
	}
}

// Aggregate is one aggregate expression to compute per group.
//
// The argument is either a plain column reference (Column, which enables
// full type validation before any row is processed) or an opaque closure
// (Arg) supplied by the caller's expression evaluator. Closure-based
// SUM/AVG/MIN/MAX default their output type to FLOAT; set OutType when the
// closure produces something else.
type Aggregate struct {
	Kind      AggKind
	Name      string
	Column    string
	Arg       row.Expr
	Separator string   // STRING_AGG only; defaults to ","
	OutType   row.Type // optional override for closure arguments
}

// CountStar counts rows, NULLs included.
func CountStar(name string) Aggregate {
	return Aggregate{Kind: AggCountStar, Name: name}
}

// Count counts non-NULL values of a column.
func Count(name, column string) Aggregate {
	return Aggregate{Kind: AggCount, Name: name, Column: column}
}

// CountDistinct counts distinct non-NULL values of a column.
func CountDistinct(name, column string) Aggregate {
	return Aggregate{Kind: AggCountDistinct, Name: name, Column: column}
}

// Sum sums the non-NULL values of a numeric column.
func Sum(name, column string) Aggregate {
	return Aggregate{Kind: AggSum, Name: name, Column: column}
}

// Avg averages the non-NULL values of a numeric column.
func Avg(name, column string) Aggregate {
	return Aggregate{Kind: AggAvg, Name: name, Column: column}
}

// Min takes the smallest non-NULL value of a column.
func Min(name, column string) Aggregate {
	return Aggregate{Kind: AggMin, Name: name, Column: column}
}

// Max takes the largest non-NULL value of a column.
func Max(name, column string) Aggregate {
	return Aggregate{Kind: AggMax, Name: name, Column: column}
}

// StringAgg concatenates the non-NULL values of a column, separated by sep.
func StringAgg(name, column, sep string) Aggregate {
	return Aggregate{Kind: AggStringAgg, Name: name, Column: column, Separator: sep}
}

// AggExpr builds an aggregate over an opaque expression closure.
func AggExpr(kind AggKind, name string, arg row.Expr) Aggregate {
	return Aggregate{Kind: kind, Name: name, Arg: arg}
}

// Spec is one grouped-aggregation request.
type Spec struct {
	Grouping   GroupingSpec
	Aggregates []Aggregate

	// Having filters finalized rows; it never sees pre-aggregation rows.
	// The predicate receives rows in the output schema.
	Having row.Predicate

	// Parallel caps the number of grouping levels evaluated concurrently.
	// Zero means one worker per level up to GOMAXPROCS.
	Parallel int
}
