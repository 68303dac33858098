package row

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Compare orders two scalar values, returning -1, 0 or 1. NULL sorts
// before every non-NULL value here; callers that need NULLS LAST flip the
// result themselves (see Less). Values of different semantic families
// compare as equal, matching the lenient behavior of the ordering used for
// ad-hoc data; schema-checked relations never hit that case.
func Compare(a, b interface{}) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}

	// Decimal comparisons stay exact; a mixed decimal/number pair is
	// promoted to decimal rather than squeezed through float64.
	if ad, aOK := a.(decimal.Decimal); aOK {
		if bd, ok := toDecimal(b); ok {
			return ad.Cmp(bd)
		}
	}
	if bd, bOK := b.(decimal.Decimal); bOK {
		if ad, ok := toDecimal(a); ok {
			return ad.Cmp(bd)
		}
	}

	if ai, aOK := a.(int64); aOK {
		if bi, ok := b.(int64); ok {
			switch {
			case ai < bi:
				return -1
			case ai > bi:
				return 1
			default:
				return 0
			}
		}
	}

	aNum, aIsNum := ToFloat64(a)
	bNum, bIsNum := ToFloat64(b)
	if aIsNum && bIsNum {
		switch {
		case aNum < bNum:
			return -1
		case aNum > bNum:
			return 1
		default:
			return 0
		}
	}

	if at, aOK := a.(time.Time); aOK {
		if bt, ok := b.(time.Time); ok {
			switch {
			case at.Before(bt):
				return -1
			case at.After(bt):
				return 1
			default:
				return 0
			}
		}
	}

	if as, aOK := a.(string); aOK {
		if bs, ok := b.(string); ok {
			return strings.Compare(as, bs)
		}
	}

	if ab, aOK := a.(bool); aOK {
		if bb, ok := b.(bool); ok {
			switch {
			case !ab && bb:
				return -1
			case ab && !bb:
				return 1
			default:
				return 0
			}
		}
	}

	return 0
}

// Less orders two values for sorting, honoring descending direction and
// explicit NULL placement. NULLs are never compared through Compare's
// default here; placement is decided first.
func Less(a, b interface{}, desc, nullsFirst bool) bool {
	if a == nil || b == nil {
		if a == nil && b == nil {
			return false
		}
		if a == nil {
			return nullsFirst
		}
		return !nullsFirst
	}
	cmp := Compare(a, b)
	if desc {
		return cmp > 0
	}
	return cmp < 0
}

// GroupEqual is the grouping-equality predicate: NULL groups with NULL.
// This deliberately diverges from scalar NULL semantics and must not be
// replaced by Compare-based equality.
func GroupEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return Compare(a, b) == 0
}

// GroupEncode renders a value into a collision-safe key fragment for
// hash-based grouping. The encoding tags the value's type so values of
// different types never collide, and gives NULL its own tag so NULL rows
// form a real group.
func GroupEncode(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "_"
	case int64:
		return "i:" + strconv.FormatInt(val, 10)
	case float64:
		return "f:" + strconv.FormatFloat(val, 'g', -1, 64)
	case decimal.Decimal:
		return "d:" + val.String()
	case string:
		return "s:" + val
	case time.Time:
		return "t:" + strconv.FormatInt(val.UnixNano(), 10)
	case bool:
		return "b:" + strconv.FormatBool(val)
	default:
		return fmt.Sprintf("x:%#v", val)
	}
}

// ToFloat64 converts a numeric value to float64.
func ToFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case int64:
		return float64(val), true
	case float64:
		return val, true
	case decimal.Decimal:
		f, _ := val.Float64()
		return f, true
	default:
		return 0, false
	}
}

// ToInt64 converts a numeric value to int64, truncating floats.
func ToInt64(v interface{}) (int64, bool) {
	switch val := v.(type) {
	case int64:
		return val, true
	case float64:
		return int64(val), true
	case decimal.Decimal:
		return val.IntPart(), true
	default:
		return 0, false
	}
}

// ToText converts a value to its textual form for STRING_AGG.
func ToText(v interface{}) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case int64:
		return strconv.FormatInt(val, 10), true
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), true
	case decimal.Decimal:
		return val.String(), true
	case bool:
		return strconv.FormatBool(val), true
	case time.Time:
		return val.Format(time.RFC3339), true
	default:
		return "", false
	}
}

func toDecimal(v interface{}) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case decimal.Decimal:
		return val, true
	case int64:
		return decimal.NewFromInt(val), true
	case float64:
		return decimal.NewFromFloat(val), true
	default:
		return decimal.Decimal{}, false
	}
}
