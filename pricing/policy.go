/*
policy.go - Base price, role discount and family discount policies

PURPOSE:
  The three rule lookups the pricing service composes. Each is a pure
  function of its inputs; none of them fail. Rule tables are authored by
  people and may be incomplete, so a missing bracket, an unknown role or a
  tier gap simply yields zero.

BASE PRICE:
  First age group (ascending) whose [MinAge, MaxAge] contains the age.
  No match: 0 ("unpriced").

ROLE DISCOUNT:
  Role names match ruleset keys case-insensitively. The SubsidyEligible
  flag decides which money bucket the discount lands in:
    eligible     -> expected subsidies (the funder pays it back)
    not eligible -> subtracted from expected income (the group absorbs it)

FAMILY DISCOUNT:
  Children under 18 only. Siblings are ranked by birth date, eldest first;
  the rank (child position) and the age select a tier.

SEE ALSO:
  - participant.go: Composes these policies
  - factory/ruleset.go: Builds the rule tables from JSON
*/
package pricing

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// FamilyDiscountMaxAge is the first age that no longer receives a family
// discount.
const FamilyDiscountMaxAge = 18

// =============================================================================
// BASE PRICE
// =============================================================================

// BasePrice returns the base price for the age, or zero when no group
// matches.
func BasePrice(age int, groups []AgeGroup) decimal.Decimal {
	for _, g := range groups {
		if g.MinAge <= age && age <= g.MaxAge {
			return g.BasePrice
		}
	}
	return decimal.Zero
}

// =============================================================================
// ROLE DISCOUNT
// =============================================================================

// RoleDiscountRule looks up the rule for a role name, ignoring case.
func (rs Ruleset) RoleDiscountRule(roleName string) (RoleDiscountRule, bool) {
	if roleName == "" || len(rs.RoleDiscounts) == 0 {
		return RoleDiscountRule{}, false
	}
	if rule, ok := rs.RoleDiscounts[strings.ToLower(roleName)]; ok {
		return rule, true
	}

	// Hand-built rulesets may carry mixed-case keys.
	keys := make([]string, 0, len(rs.RoleDiscounts))
	for k := range rs.RoleDiscounts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.EqualFold(k, roleName) {
			return rs.RoleDiscounts[k], true
		}
	}
	return RoleDiscountRule{}, false
}

// =============================================================================
// FAMILY DISCOUNT
// =============================================================================

// PercentFor returns the discount percent for a child of the given age and
// position. Zero when the rule is disabled or no tier matches.
func (f FamilyDiscountRule) PercentFor(age, position int) decimal.Decimal {
	if !f.Enabled || age >= FamilyDiscountMaxAge || position < 1 {
		return decimal.Zero
	}
	for _, t := range f.Tiers {
		if age < t.MinAge || age > t.MaxAge {
			continue
		}
		if position < t.MinPosition {
			continue
		}
		if t.MaxPosition != 0 && position > t.MaxPosition {
			continue
		}
		return t.Percent
	}
	return decimal.Zero
}

// ChildPositions ranks family members by birth date, eldest first, starting
// at 1. Members born on the same day keep their input order.
func ChildPositions(members []Participant) map[ParticipantID]int {
	ordered := make([]Participant, len(members))
	copy(ordered, members)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].BirthDate.Before(ordered[j].BirthDate)
	})

	positions := make(map[ParticipantID]int, len(ordered))
	for i, m := range ordered {
		positions[m.ID] = i + 1
	}
	return positions
}
