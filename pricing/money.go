package pricing

import (
	"sort"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	cent    = decimal.New(1, -2)
)

// PercentOf returns pct percent of amount, unrounded.
func PercentOf(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Div(hundred)
}

// RoundTotal rounds a user-facing total to cents. Intermediate sums must
// never be rounded.
func RoundTotal(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Sum adds all values without rounding.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// AllocateCents splits a rounded total into cent shares of the exact parts.
// Each part is rounded down, then the cents still missing go one by one to
// the parts with the largest remainders (earlier parts win ties). The shares
// always add up to total, which should be RoundTotal(Sum(parts...)).
func AllocateCents(total decimal.Decimal, parts []decimal.Decimal) []decimal.Decimal {
	shares := make([]decimal.Decimal, len(parts))
	if len(parts) == 0 {
		return shares
	}

	order := make([]int, len(parts))
	for i, p := range parts {
		shares[i] = p.RoundFloor(2)
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ra := parts[order[a]].Sub(shares[order[a]])
		rb := parts[order[b]].Sub(shares[order[b]])
		return ra.GreaterThan(rb)
	})

	left := total.Sub(Sum(shares...)).Div(cent).IntPart()
	for i := 0; left > 0; i, left = (i+1)%len(order), left-1 {
		shares[order[i]] = shares[order[i]].Add(cent)
	}
	// A total below the rounded-down parts takes cents back from the
	// smallest remainders.
	for i := len(order) - 1; left < 0; i, left = (i-1+len(order))%len(order), left+1 {
		shares[order[i]] = shares[order[i]].Sub(cent)
	}
	return shares
}

// ValidateAmount rejects negative money amounts.
func ValidateAmount(field string, d decimal.Decimal) error {
	if d.IsNegative() {
		return &InputError{Field: field, Value: d.String(), Reason: "must not be negative"}
	}
	return nil
}
