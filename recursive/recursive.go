// Package recursive evaluates self-referential row sets by iterating a
// recursive step to a fixed point: the anchor runs once, then the step is
// re-invoked with the rows produced by the previous iteration (the
// frontier) until an iteration adds nothing or the depth ceiling is hit.
//
// The evaluator performs no deduplication (UNION ALL semantics). Cycle
// handling belongs to the caller, via the depth ceiling or a terminating
// step; silently dropping repeated rows would mask non-termination.
package recursive

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/nshrivastav1512/rowset/row"
)

// DefaultMaxDepth is the recursion ceiling applied when the spec does not
// override it.
const DefaultMaxDepth = 100

// DefaultLevelColumn names the appended iteration-depth column when the
// spec does not override it.
const DefaultLevelColumn = "level"

// Spec is one recursive evaluation request. Anchor produces the seed
// rows; Step receives the previous iteration's rows and returns the rows
// to add. Both must produce the same schema.
type Spec struct {
	Anchor func(ctx context.Context) (row.Relation, error)
	Step   func(ctx context.Context, frontier row.Relation) (row.Relation, error)

	// MaxDepth caps the number of recursive iterations; zero means
	// DefaultMaxDepth, negative is rejected.
	MaxDepth int

	// LevelColumn names the appended 0-based depth column; empty means
	// DefaultLevelColumn.
	LevelColumn string
}

// LimitError reports an exceeded depth ceiling. It carries the depth
// reached, the size of the frontier that was still growing, and a sample
// row from it for diagnosis. It is marked with row.ErrRecursionLimit.
type LimitError struct {
	Depth        int
	FrontierSize int
	Sample       row.Row
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("recursion limit of %d exceeded with %d rows still in the frontier (sample row: %v)",
		e.Depth, e.FrontierSize, e.Sample)
}

// Evaluate runs the anchor and iterates the step until convergence. The
// result concatenates the anchor rows and every frontier, each row tagged
// with its 0-based depth in the appended level column.
func Evaluate(ctx context.Context, spec Spec) (row.Relation, error) {
	if spec.Anchor == nil {
		return row.Relation{}, row.Validationf("recursive spec has no anchor")
	}
	if spec.Step == nil {
		return row.Relation{}, row.Validationf("recursive spec has no step")
	}
	maxDepth := spec.MaxDepth
	if maxDepth == 0 {
		maxDepth = DefaultMaxDepth
	}
	if maxDepth < 0 {
		return row.Relation{}, row.Validationf("negative recursion ceiling %d", spec.MaxDepth)
	}
	levelColumn := spec.LevelColumn
	if levelColumn == "" {
		levelColumn = DefaultLevelColumn
	}

	anchor, err := spec.Anchor(ctx)
	if err != nil {
		return row.Relation{}, row.Wrapf(err, "anchor")
	}
	if err := anchor.Schema.Validate(); err != nil {
		return row.Relation{}, row.Wrapf(err, "anchor schema")
	}
	if anchor.Schema.IndexOf(levelColumn) >= 0 {
		return row.Relation{}, row.Validationf("level column %q collides with an anchor column", levelColumn)
	}

	outSchema := make(row.Schema, 0, len(anchor.Schema)+1)
	outSchema = append(outSchema, anchor.Schema...)
	outSchema = append(outSchema, row.Field{Name: levelColumn, Type: row.TypeInt})

	var out []row.Row
	appendTagged := func(rows []row.Row, depth int) {
		for _, r := range rows {
			tagged := make(row.Row, 0, len(r)+1)
			tagged = append(tagged, r...)
			tagged = append(tagged, int64(depth))
			out = append(out, tagged)
		}
	}
	appendTagged(anchor.Rows, 0)

	frontier := anchor
	for depth := 1; len(frontier.Rows) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return row.Relation{}, row.Cancelled(err)
		}
		if depth > maxDepth {
			limitErr := &LimitError{
				Depth:        maxDepth,
				FrontierSize: len(frontier.Rows),
				Sample:       frontier.Rows[0],
			}
			return row.Relation{}, errors.Mark(limitErr, row.ErrRecursionLimit)
		}

		next, err := spec.Step(ctx, frontier)
		if err != nil {
			return row.Relation{}, row.Wrapf(err, "iteration %d", depth)
		}
		if len(next.Rows) == 0 && len(next.Schema) == 0 {
			// A bare empty relation counts as convergence; the step is
			// not required to restate the schema when it adds nothing.
			break
		}
		if !schemaEqual(anchor.Schema, next.Schema) {
			return row.Relation{}, row.TypeMismatchf(
				"iteration %d produced schema %v, anchor declared %v", depth, next.Schema.Names(), anchor.Schema.Names())
		}

		appendTagged(next.Rows, depth)
		frontier = next
	}

	return row.Relation{Schema: outSchema, Rows: out}, nil
}

// schemaEqual compares field names and types; nullability may differ
// between anchor and step outputs.
func schemaEqual(a, b row.Schema) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || a[i].Type != b[i].Type {
			return false
		}
	}
	return true
}
