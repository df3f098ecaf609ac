package trade

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultMaxValueDiffPct is the largest value difference, in percent, a swap
// may settle with.
var DefaultMaxValueDiffPct = decimal.NewFromInt(10)

var hundred = decimal.NewFromInt(100)

// ValueDifferencePercentage returns |a-b| as a percentage of the larger value.
// Two zero values differ by 0%.
func ValueDifferencePercentage(a, b decimal.Decimal) decimal.Decimal {
	larger := decimal.Max(a, b)
	if !larger.IsPositive() {
		return decimal.Zero
	}
	return a.Sub(b).Abs().Div(larger).Mul(hundred)
}

// CheckParity returns the value difference of a and b, failing with
// ErrValueDiffTooHigh if it exceeds maxPct. A difference equal to maxPct
// passes.
func CheckParity(a, b, maxPct decimal.Decimal) (decimal.Decimal, error) {
	diff := ValueDifferencePercentage(a, b)
	if diff.GreaterThan(maxPct) {
		return diff, fmt.Errorf("%w: %s%% exceeds %s%%", ErrValueDiffTooHigh, diff.StringFixed(2), maxPct.String())
	}
	return diff, nil
}
