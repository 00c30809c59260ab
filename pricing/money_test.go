package pricing_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/warp/event-pricing/pricing"
)

func decs(values ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = dec(v)
	}
	return out
}

func strs(values []decimal.Decimal) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v.StringFixed(2)
	}
	return out
}

func TestAllocateCents(t *testing.T) {
	tests := []struct {
		name  string
		parts []string
		want  []string
	}{
		{"already cents", []string{"10", "2.50"}, []string{"10.00", "2.50"}},
		{"half cents tie goes to first", []string{"3.735", "3.735"}, []string{"3.74", "3.73"}},
		{"largest remainder wins", []string{"1.001", "1.006", "1.004"}, []string{"1.00", "1.01", "1.00"}},
		{"thirds", []string{"33.333", "33.333", "33.334"}, []string{"33.33", "33.33", "33.34"}},
		{"no parts", nil, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts := decs(tt.parts...)
			total := pricing.RoundTotal(pricing.Sum(parts...))

			shares := pricing.AllocateCents(total, parts)

			assert.Equal(t, tt.want, strs(shares))
			assert.True(t, pricing.Sum(shares...).Equal(total), "shares %v do not add up to %s", strs(shares), total)
		})
	}
}

func TestAllocateCents_TotalBelowFloors(t *testing.T) {
	// GIVEN: A total one cent below the rounded-down parts
	parts := decs("1.009", "2.001")

	// WHEN: Allocating
	shares := pricing.AllocateCents(dec("2.99"), parts)

	// THEN: The smallest remainder gives the cent back
	assert.Equal(t, []string{"1.00", "1.99"}, strs(shares))
}
