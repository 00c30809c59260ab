package pricing_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/warp/event-pricing/pricing"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// =============================================================================
// AGE
// =============================================================================

func TestAge_BirthdayBoundary(t *testing.T) {
	// GIVEN: Born 2010-06-15
	// WHEN: Age is computed the day before, on, and after the 14th birthday
	// THEN: 13, 14, 14

	birth := pricing.NewDate(2010, time.June, 15)

	assert.Equal(t, 13, pricing.Age(birth, pricing.NewDate(2024, time.June, 14)))
	assert.Equal(t, 14, pricing.Age(birth, pricing.NewDate(2024, time.June, 15)))
	assert.Equal(t, 14, pricing.Age(birth, pricing.NewDate(2024, time.June, 16)))
}

func TestAge_EarlierMonthNotReached(t *testing.T) {
	birth := pricing.NewDate(2012, time.December, 1)
	assert.Equal(t, 11, pricing.Age(birth, pricing.NewDate(2024, time.July, 20)))
}

func TestParseDate(t *testing.T) {
	d, err := pricing.ParseDate("2024-07-01")
	assert.NoError(t, err)
	assert.Equal(t, "2024-07-01", d.String())

	_, err = pricing.ParseDate("01.07.2024")
	assert.Error(t, err)
}

// =============================================================================
// BASE PRICE
// =============================================================================

func TestBasePrice_AgeGroups(t *testing.T) {
	// GIVEN: Age groups (0-5: 0), (6-17: 50), (18-99: 100)
	groups := []pricing.AgeGroup{
		{MinAge: 0, MaxAge: 5, BasePrice: dec("0")},
		{MinAge: 6, MaxAge: 17, BasePrice: dec("50")},
		{MinAge: 18, MaxAge: 99, BasePrice: dec("100")},
	}

	// THEN: Bounds are inclusive
	assert.True(t, pricing.BasePrice(6, groups).Equal(dec("50")))
	assert.True(t, pricing.BasePrice(17, groups).Equal(dec("50")))
	assert.True(t, pricing.BasePrice(18, groups).Equal(dec("100")))
	assert.True(t, pricing.BasePrice(3, groups).IsZero())
}

func TestBasePrice_NoMatchIsZero(t *testing.T) {
	groups := []pricing.AgeGroup{{MinAge: 6, MaxAge: 17, BasePrice: dec("50")}}

	assert.True(t, pricing.BasePrice(120, groups).IsZero())
	assert.True(t, pricing.BasePrice(10, nil).IsZero())
}

// =============================================================================
// ROLE DISCOUNT
// =============================================================================

func TestRoleDiscountRule_CaseInsensitive(t *testing.T) {
	rs := pricing.Ruleset{RoleDiscounts: map[string]pricing.RoleDiscountRule{
		"betreuer": {DiscountPercent: dec("50"), SubsidyEligible: true},
		"Kitchen":  {DiscountPercent: dec("100"), SubsidyEligible: false},
	}}

	rule, ok := rs.RoleDiscountRule("BETREUER")
	assert.True(t, ok)
	assert.True(t, rule.DiscountPercent.Equal(dec("50")))

	rule, ok = rs.RoleDiscountRule("kitchen")
	assert.True(t, ok)
	assert.False(t, rule.SubsidyEligible)

	_, ok = rs.RoleDiscountRule("guest")
	assert.False(t, ok)
}

// =============================================================================
// FAMILY DISCOUNT
// =============================================================================

func siblingTiers() pricing.FamilyDiscountRule {
	return pricing.FamilyDiscountRule{
		Enabled: true,
		Tiers: []pricing.FamilyDiscountTier{
			{MinAge: 0, MaxAge: 17, MinPosition: 1, MaxPosition: 1, Percent: dec("0")},
			{MinAge: 0, MaxAge: 17, MinPosition: 2, MaxPosition: 2, Percent: dec("10")},
			{MinAge: 0, MaxAge: 17, MinPosition: 3, MaxPosition: 0, Percent: dec("20")},
		},
	}
}

func TestChildPositions_OrderIndependent(t *testing.T) {
	// GIVEN: Siblings born 2008, 2012 and 2015
	a := pricing.Participant{ID: "a", BirthDate: pricing.NewDate(2008, time.March, 1)}
	b := pricing.Participant{ID: "b", BirthDate: pricing.NewDate(2012, time.March, 1)}
	c := pricing.Participant{ID: "c", BirthDate: pricing.NewDate(2015, time.March, 1)}

	// WHEN: They are supplied in any order
	orders := [][]pricing.Participant{
		{a, b, c}, {c, b, a}, {b, c, a}, {c, a, b},
	}

	// THEN: Eldest first, 1-based
	for _, members := range orders {
		positions := pricing.ChildPositions(members)
		assert.Equal(t, 1, positions["a"])
		assert.Equal(t, 2, positions["b"])
		assert.Equal(t, 3, positions["c"])
	}
}

func TestChildPositions_TwinsKeepInputOrder(t *testing.T) {
	born := pricing.NewDate(2014, time.May, 5)
	x := pricing.Participant{ID: "x", BirthDate: born}
	y := pricing.Participant{ID: "y", BirthDate: born}

	positions := pricing.ChildPositions([]pricing.Participant{y, x})
	assert.Equal(t, 1, positions["y"])
	assert.Equal(t, 2, positions["x"])
}

func TestFamilyDiscount_PercentFor(t *testing.T) {
	rule := siblingTiers()

	assert.True(t, rule.PercentFor(10, 1).IsZero())
	assert.True(t, rule.PercentFor(10, 2).Equal(dec("10")))
	assert.True(t, rule.PercentFor(10, 3).Equal(dec("20")))
	assert.True(t, rule.PercentFor(10, 7).Equal(dec("20")))

	// 18 and older never get a family discount
	assert.True(t, rule.PercentFor(18, 3).IsZero())

	rule.Enabled = false
	assert.True(t, rule.PercentFor(10, 3).IsZero())
}
