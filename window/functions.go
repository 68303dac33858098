package window

import "github.com/nshrivastav1512/rowset/row"

// computePartition evaluates one window function over one sorted
// partition, returning a value per sorted position.
func computePartition(p []ref, rw *resolvedWindow) ([]interface{}, error) {
	if len(p) == 0 {
		return nil, nil
	}
	switch rw.kind {
	case FuncRowNumber:
		return computeRowNumber(p), nil
	case FuncRank, FuncDenseRank, FuncPercentRank, FuncCumeDist:
		return computeRankFamily(p, rw), nil
	case FuncNtile:
		return computeNtile(p, rw.n), nil
	case FuncLag, FuncLead:
		return computeOffset(p, rw)
	case FuncFirstValue, FuncLastValue, FuncNthValue,
		FuncSum, FuncAvg, FuncMin, FuncMax, FuncCount:
		return computeFramed(p, rw)
	default:
		return nil, row.Internalf("unknown window function kind %d", rw.kind)
	}
}

// peersEqual reports whether two rows tie on every ORDER BY column. With
// no ORDER BY every row is a peer of every other.
func peersEqual(a, b row.Row, order []orderIdx) bool {
	for _, o := range order {
		if row.Compare(a[o.idx], b[o.idx]) != 0 {
			return false
		}
	}
	return true
}

// peerBounds returns, per sorted position, the first and last index of
// that row's peer group.
func peerBounds(p []ref, order []orderIdx) (starts, ends []int) {
	n := len(p)
	starts = make([]int, n)
	ends = make([]int, n)
	groupStart := 0
	for i := 0; i < n; i++ {
		if i > 0 && !peersEqual(p[i-1].row, p[i].row, order) {
			groupStart = i
		}
		starts[i] = groupStart
	}
	groupEnd := n - 1
	for i := n - 1; i >= 0; i-- {
		if i < n-1 && !peersEqual(p[i].row, p[i+1].row, order) {
			groupEnd = i
		}
		ends[i] = groupEnd
	}
	return starts, ends
}

func computeRowNumber(p []ref) []interface{} {
	results := make([]interface{}, len(p))
	for i := range p {
		results[i] = int64(i + 1)
	}
	return results
}

// computeRankFamily walks the partition once using peer-group bounds.
// RANK jumps by tie-group size, DENSE_RANK by one per distinct value,
// PERCENT_RANK is (rank-1)/(n-1) with 0 for a one-row partition, and
// CUME_DIST counts the rows at or before the peer group's end.
func computeRankFamily(p []ref, rw *resolvedWindow) []interface{} {
	n := len(p)
	starts, ends := peerBounds(p, rw.order)
	results := make([]interface{}, n)

	dense := int64(0)
	for i := 0; i < n; i++ {
		if starts[i] == i {
			dense++
		}
		switch rw.kind {
		case FuncRank:
			results[i] = int64(starts[i] + 1)
		case FuncDenseRank:
			results[i] = dense
		case FuncPercentRank:
			if n == 1 {
				results[i] = 0.0
			} else {
				results[i] = float64(starts[i]) / float64(n-1)
			}
		case FuncCumeDist:
			results[i] = float64(ends[i]+1) / float64(n)
		}
	}
	return results
}

// computeNtile hands ceil(n/buckets) rows to the first n mod buckets
// buckets and floor(n/buckets) to the rest.
func computeNtile(p []ref, buckets int64) []interface{} {
	n := int64(len(p))
	results := make([]interface{}, n)

	if buckets > n {
		for i := int64(0); i < n; i++ {
			results[i] = i + 1
		}
		return results
	}

	size := n / buckets
	remainder := n % buckets
	bucket := int64(1)
	inBucket := int64(0)
	current := size
	if remainder > 0 {
		current++
	}
	for i := int64(0); i < n; i++ {
		if inBucket >= current {
			bucket++
			inBucket = 0
			current = size
			if bucket <= remainder {
				current++
			}
		}
		results[i] = bucket
		inBucket++
	}
	return results
}

// computeOffset reads the argument at position i-offset (LAG) or i+offset
// (LEAD); outside the partition the caller-supplied default applies.
func computeOffset(p []ref, rw *resolvedWindow) ([]interface{}, error) {
	results := make([]interface{}, len(p))
	for i := range p {
		at := i - int(rw.n)
		if rw.kind == FuncLead {
			at = i + int(rw.n)
		}
		if at < 0 || at >= len(p) {
			results[i] = rw.def
			continue
		}
		v, err := rw.arg(p[at].row)
		if err != nil {
			return nil, row.Wrapf(err, "offset argument")
		}
		results[i] = v
	}
	return results, nil
}
