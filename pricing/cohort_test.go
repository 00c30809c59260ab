package pricing_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/event-pricing/pricing"
	"github.com/warp/event-pricing/pricing/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const campID = pricing.EventID("camp-2024")

var campStart = pricing.NewDate(2024, time.July, 20)

func campEvent() pricing.Event {
	return pricing.Event{ID: campID, Name: "Summer Camp", StartDate: campStart, EndDate: pricing.NewDate(2024, time.July, 27)}
}

func campRuleset(leaderEligible bool) pricing.Ruleset {
	return pricing.Ruleset{
		ID:         "rs-2024",
		EventID:    campID,
		Name:       "Prices 2024",
		ValidFrom:  pricing.NewDate(2024, time.January, 1),
		ValidUntil: pricing.NewDate(2024, time.December, 31),
		IsActive:   true,
		AgeGroups: []pricing.AgeGroup{
			{MinAge: 0, MaxAge: 5, BasePrice: dec("0")},
			{MinAge: 6, MaxAge: 17, BasePrice: dec("50")},
			{MinAge: 18, MaxAge: 99, BasePrice: dec("100")},
		},
		RoleDiscounts: map[string]pricing.RoleDiscountRule{
			"leader": {DiscountPercent: dec("20"), SubsidyEligible: leaderEligible},
		},
		FamilyDiscount: siblingTiers(),
	}
}

func newCampStore(t *testing.T, rs *pricing.Ruleset) *store.Memory {
	t.Helper()
	s := store.NewMemory()
	s.AddEvent(campEvent())
	if rs != nil {
		s.AddRuleset(*rs)
	}
	s.AddRole(pricing.Role{ID: "role-leader", EventID: campID, Name: "Leader", DisplayName: "Group leader", IsActive: true})
	return s
}

func adult(id string, roleID pricing.RoleID) pricing.Participant {
	return pricing.Participant{
		ID:        pricing.ParticipantID(id),
		EventID:   campID,
		FirstName: id,
		LastName:  "Adult",
		BirthDate: pricing.NewDate(1990, time.March, 3),
		IsActive:  true,
		RoleID:    roleID,
	}
}

func child(id string, family pricing.FamilyID, born pricing.Date) pricing.Participant {
	return pricing.Participant{
		ID:        pricing.ParticipantID(id),
		EventID:   campID,
		FirstName: id,
		LastName:  "Child",
		BirthDate: born,
		IsActive:  true,
		FamilyID:  family,
	}
}

func override(v string) *decimal.Decimal {
	d := dec(v)
	return &d
}

// =============================================================================
// ROLE DISCOUNT ROUTING
// =============================================================================

func TestCohort_RoleDiscount_NotSubsidyEligible(t *testing.T) {
	// GIVEN: A leader with base price 100 and a 20% role discount the group absorbs
	rs := campRuleset(false)
	s := newCampStore(t, &rs)
	s.AddParticipant(adult("anna", "role-leader"))

	// WHEN: The cohort is priced
	cohort, err := pricing.LoadCohort(context.Background(), s, campID, pricing.ParticipantFilter{})
	require.NoError(t, err)

	// THEN: The discount reduces expected income, not subsidies
	totals := cohort.Totals
	assert.Equal(t, "100", totals.BasePrice.String())
	assert.Equal(t, "20", totals.NonSubsidyDiscount.String())
	assert.Equal(t, "0", totals.ExpectedSubsidies.String())
	assert.Equal(t, "80", totals.ExpectedIncome.String())
	assert.Equal(t, "80", totals.ExpectedParticipantIncome.String())
}

func TestCohort_RoleDiscount_SubsidyEligible(t *testing.T) {
	// GIVEN: The same leader, but the discount is reimbursed by a funder
	rs := campRuleset(true)
	s := newCampStore(t, &rs)
	s.AddParticipant(adult("anna", "role-leader"))

	cohort, err := pricing.LoadCohort(context.Background(), s, campID, pricing.ParticipantFilter{})
	require.NoError(t, err)

	// THEN: The allocation is reversed and expected income rises by 20
	totals := cohort.Totals
	assert.Equal(t, "0", totals.NonSubsidyDiscount.String())
	assert.Equal(t, "20", totals.ExpectedSubsidies.String())
	assert.Equal(t, "100", totals.ExpectedIncome.String())
	assert.Equal(t, "80", totals.ExpectedParticipantIncome.String())
}

func TestCohort_InactiveRoleGetsNoDiscount(t *testing.T) {
	rs := campRuleset(true)
	s := store.NewMemory()
	s.AddEvent(campEvent())
	s.AddRuleset(rs)
	s.AddRole(pricing.Role{ID: "role-leader", EventID: campID, Name: "leader", IsActive: false})
	s.AddParticipant(adult("anna", "role-leader"))

	cohort, err := pricing.LoadCohort(context.Background(), s, campID, pricing.ParticipantFilter{})
	require.NoError(t, err)

	require.Len(t, cohort.Results, 1)
	assert.Nil(t, cohort.Results[0].Role)
	assert.Equal(t, "100", cohort.Results[0].FinalPrice.String())
}

// =============================================================================
// FAMILY DISCOUNT
// =============================================================================

func TestCohort_FamilyDiscountBySiblingPosition(t *testing.T) {
	// GIVEN: Three siblings aged 16, 12 and 9 at camp start, added youngest first
	rs := campRuleset(true)
	s := newCampStore(t, &rs)
	s.AddFamily(pricing.Family{ID: "fam-berg", EventID: campID, Name: "Berg"})
	s.AddParticipant(child("ida", "fam-berg", pricing.NewDate(2015, time.January, 10)))
	s.AddParticipant(child("ole", "fam-berg", pricing.NewDate(2012, time.January, 10)))
	s.AddParticipant(child("liv", "fam-berg", pricing.NewDate(2008, time.January, 10)))

	// WHEN: The cohort is priced
	cohort, err := pricing.LoadCohort(context.Background(), s, campID, pricing.ParticipantFilter{})
	require.NoError(t, err)

	// THEN: Second child 10% of 50, third child 20% of 50
	byID := map[pricing.ParticipantID]pricing.PricingResult{}
	for _, r := range cohort.Results {
		byID[r.ParticipantID] = r
	}
	assert.Nil(t, byID["liv"].Family, "eldest child has a 0% tier")
	require.NotNil(t, byID["ole"].Family)
	assert.Equal(t, 2, byID["ole"].Family.ChildPosition)
	assert.Equal(t, "5", byID["ole"].Family.Amount.String())
	require.NotNil(t, byID["ida"].Family)
	assert.Equal(t, 3, byID["ida"].Family.ChildPosition)
	assert.Equal(t, "10", byID["ida"].Family.Amount.String())

	assert.Equal(t, "150", cohort.Totals.BasePrice.String())
	assert.Equal(t, "15", cohort.Totals.ExpectedSubsidies.String())
	assert.Equal(t, "150", cohort.Totals.ExpectedIncome.String())
	assert.Equal(t, "135", cohort.Totals.ExpectedParticipantIncome.String())
}

func TestCohort_InactiveSiblingDoesNotCount(t *testing.T) {
	rs := campRuleset(true)
	s := newCampStore(t, &rs)
	gone := child("liv", "fam-berg", pricing.NewDate(2008, time.January, 10))
	gone.IsActive = false
	s.AddParticipant(gone)
	s.AddParticipant(child("ole", "fam-berg", pricing.NewDate(2012, time.January, 10)))

	cohort, err := pricing.LoadCohort(context.Background(), s, campID, pricing.ParticipantFilter{})
	require.NoError(t, err)

	require.Len(t, cohort.Results, 1)
	assert.Nil(t, cohort.Results[0].Family, "ole is now the first child")
}

// =============================================================================
// OVERRIDE SUPPRESSION
// =============================================================================

func TestCohort_OverrideSuppressesDiscounts(t *testing.T) {
	// GIVEN: A subsidized leader and a third child, both with an override of 75
	rs := campRuleset(true)
	s := newCampStore(t, &rs)
	leader := adult("anna", "role-leader")
	leader.ManualPriceOverride = override("75")
	s.AddParticipant(leader)
	s.AddParticipant(child("liv", "fam-berg", pricing.NewDate(2008, time.January, 10)))
	s.AddParticipant(child("ole", "fam-berg", pricing.NewDate(2012, time.January, 10)))
	third := child("ida", "fam-berg", pricing.NewDate(2015, time.January, 10))
	third.ManualPriceOverride = override("75")
	s.AddParticipant(third)

	cohort, err := pricing.LoadCohort(context.Background(), s, campID, pricing.ParticipantFilter{})
	require.NoError(t, err)

	// THEN: Overrides count at 75 and contribute nothing to discounts
	for _, r := range cohort.Results {
		if r.HasOverride() {
			assert.Nil(t, r.Role)
			assert.Nil(t, r.Family)
			assert.Equal(t, "75", r.FinalPrice.String())
		}
	}
	totals := cohort.Totals
	assert.Equal(t, "250", totals.BasePrice.String(), "overrides still count at base price")
	assert.Equal(t, "5", totals.ExpectedSubsidies.String(), "only ole's sibling discount")
	assert.Equal(t, "0", totals.NonSubsidyDiscount.String())
	assert.Equal(t, "245", totals.ExpectedParticipantIncome.String())
}

func TestPrice_NegativeOverrideRejected(t *testing.T) {
	rs := campRuleset(true)
	pricer := pricing.NewPricer(campEvent(), &rs, nil)
	p := adult("anna", "")
	p.ManualPriceOverride = override("-1")

	_, err := pricer.Price(p, nil)
	assert.ErrorIs(t, err, pricing.ErrInvalidInput)
	assert.True(t, pricing.IsClientError(err))
}

func TestPrice_MissingBirthDateRejected(t *testing.T) {
	pricer := pricing.NewPricer(campEvent(), nil, nil)
	p := adult("anna", "")
	p.BirthDate = pricing.Date{}

	_, err := pricer.Price(p, nil)
	var inputErr *pricing.InputError
	require.ErrorAs(t, err, &inputErr)
	assert.Equal(t, "birth_date", inputErr.Field)
}

// =============================================================================
// CONFIGURATION ABSENT
// =============================================================================

func TestCohort_MissingEventYieldsZeroTotals(t *testing.T) {
	s := store.NewMemory()

	cohort, err := pricing.LoadCohort(context.Background(), s, "nope", pricing.ParticipantFilter{})
	require.NoError(t, err)

	assert.Nil(t, cohort.Event)
	assert.Equal(t, 0, cohort.Totals.ParticipantCount)
	assert.True(t, cohort.Totals.ExpectedIncome.IsZero())
}

func TestCohort_NoRulesetYieldsZeroPrices(t *testing.T) {
	// GIVEN: An event with participants but no applicable ruleset
	s := newCampStore(t, nil)
	s.AddParticipant(adult("anna", "role-leader"))
	fixed := adult("ben", "")
	fixed.ManualPriceOverride = override("40")
	s.AddParticipant(fixed)

	cohort, err := pricing.LoadCohort(context.Background(), s, campID, pricing.ParticipantFilter{})
	require.NoError(t, err)

	// THEN: Everything is zero except the human-set price
	assert.Nil(t, cohort.Ruleset)
	assert.Equal(t, 2, cohort.Totals.ParticipantCount)
	assert.True(t, cohort.Totals.BasePrice.IsZero())
	assert.True(t, cohort.Totals.ExpectedSubsidies.IsZero())
	assert.Equal(t, "40", cohort.Totals.ExpectedParticipantIncome.String())
}

// =============================================================================
// FILTERS AND SINGLE PARTICIPANT
// =============================================================================

func TestCohort_Filter(t *testing.T) {
	rs := campRuleset(true)
	s := newCampStore(t, &rs)
	s.AddParticipant(adult("anna", "role-leader"))
	s.AddParticipant(adult("ben", ""))
	fixed := adult("carl", "role-leader")
	fixed.ManualPriceOverride = override("10")
	s.AddParticipant(fixed)

	cohort, err := pricing.LoadCohort(context.Background(), s, campID, pricing.ParticipantFilter{
		RoleID:          "role-leader",
		WithoutOverride: true,
	})
	require.NoError(t, err)

	require.Len(t, cohort.Results, 1)
	assert.Equal(t, pricing.ParticipantID("anna"), cohort.Results[0].ParticipantID)
}

func TestPriceParticipant(t *testing.T) {
	rs := campRuleset(true)
	s := newCampStore(t, &rs)
	s.AddParticipant(child("liv", "fam-berg", pricing.NewDate(2008, time.January, 10)))
	s.AddParticipant(child("ole", "fam-berg", pricing.NewDate(2012, time.January, 10)))
	ctx := context.Background()

	result, err := pricing.PriceParticipant(ctx, s, campID, "ole")
	require.NoError(t, err)
	assert.Equal(t, 12, result.Age)
	assert.Equal(t, "45", result.FinalPrice.String())
	assert.True(t, result.SubsidyEligible())

	_, err = pricing.PriceParticipant(ctx, s, campID, "ghost")
	assert.ErrorIs(t, err, pricing.ErrParticipantNotFound)

	_, err = pricing.PriceParticipant(ctx, s, "other-event", "ole")
	assert.ErrorIs(t, err, pricing.ErrParticipantNotFound)
}

// =============================================================================
// CONSISTENCY
// =============================================================================

func TestSubsidies_GrandTotalMatchesCohortTotals(t *testing.T) {
	// GIVEN: A mix of subsidized roles, siblings, overrides and odd percentages
	rs := campRuleset(true)
	rs.RoleDiscounts["kitchen"] = pricing.RoleDiscountRule{DiscountPercent: dec("33.333"), SubsidyEligible: true}
	s := newCampStore(t, &rs)
	s.AddRole(pricing.Role{ID: "role-kitchen", EventID: campID, Name: "Kitchen", IsActive: true})
	s.AddFamily(pricing.Family{ID: "fam-berg", EventID: campID, Name: "Berg"})
	s.AddParticipant(adult("anna", "role-leader"))
	s.AddParticipant(adult("kim", "role-kitchen"))
	s.AddParticipant(adult("kai", "role-kitchen"))
	s.AddParticipant(child("liv", "fam-berg", pricing.NewDate(2008, time.January, 10)))
	s.AddParticipant(child("ole", "fam-berg", pricing.NewDate(2012, time.January, 10)))
	s.AddParticipant(child("ida", "fam-berg", pricing.NewDate(2015, time.January, 10)))
	fixed := adult("carl", "role-leader")
	fixed.ManualPriceOverride = override("0")
	s.AddParticipant(fixed)

	// WHEN: The summary and the detail view are computed independently
	ctx := context.Background()
	cohort, err := pricing.LoadCohort(ctx, s, campID, pricing.ParticipantFilter{})
	require.NoError(t, err)
	_, overview, err := pricing.LoadSubsidies(ctx, s, campID)
	require.NoError(t, err)

	// THEN: They agree to the cent
	assert.True(t, overview.GrandTotal.Equal(cohort.Totals.ExpectedSubsidies),
		"grand total %s != expected subsidies %s", overview.GrandTotal, cohort.Totals.ExpectedSubsidies)
	assertGroupsAddUp(t, overview)

	require.Len(t, overview.Roles, 2)
	assert.Equal(t, "Kitchen", overview.Roles[0].RoleName)
	assert.Equal(t, "Leader", overview.Roles[1].RoleName)
	assert.Len(t, overview.Roles[1].Lines, 1, "override participant is not listed")
	require.NotNil(t, overview.Family)
	assert.Len(t, overview.Family.Lines, 2, "zero-discount eldest child is not listed")
	assert.Equal(t, "Berg", overview.Family.Lines[0].FamilyName)

	group, err := overview.RoleGroup("role-kitchen")
	require.NoError(t, err)
	assert.Equal(t, "66.67", group.TotalSubsidy.String())

	_, err = overview.RoleGroup("role-unknown")
	assert.ErrorIs(t, err, pricing.ErrRoleNotFound)
}

// assertGroupsAddUp checks that the listed group totals sum to the grand
// total exactly.
func assertGroupsAddUp(t *testing.T, o pricing.SubsidyOverview) {
	t.Helper()
	listed := decimal.Zero
	for _, g := range o.Roles {
		listed = listed.Add(g.TotalSubsidy)
	}
	if o.Family != nil {
		listed = listed.Add(o.Family.TotalSubsidy)
	}
	assert.True(t, listed.Equal(o.GrandTotal), "listed groups sum to %s, grand total is %s", listed, o.GrandTotal)
}

func TestSubsidies_HalfCentGroupsAddUpToGrandTotal(t *testing.T) {
	// GIVEN: Two subsidized roles at 30% of 12.45, each worth 3.735
	rs := campRuleset(true)
	rs.AgeGroups = []pricing.AgeGroup{{MinAge: 0, MaxAge: 120, BasePrice: dec("12.45")}}
	rs.RoleDiscounts = map[string]pricing.RoleDiscountRule{
		"leader":  {DiscountPercent: dec("30"), SubsidyEligible: true},
		"kitchen": {DiscountPercent: dec("30"), SubsidyEligible: true},
	}
	s := newCampStore(t, &rs)
	s.AddRole(pricing.Role{ID: "role-kitchen", EventID: campID, Name: "Kitchen", IsActive: true})
	s.AddParticipant(adult("anna", "role-leader"))
	s.AddParticipant(adult("kim", "role-kitchen"))

	// WHEN: The detail view is built
	cohort, overview, err := pricing.LoadSubsidies(context.Background(), s, campID)
	require.NoError(t, err)

	// THEN: The grand total is the rounded exact sum
	assert.Equal(t, "7.47", overview.GrandTotal.StringFixed(2))
	assert.True(t, overview.GrandTotal.Equal(cohort.Totals.ExpectedSubsidies))

	// AND: The groups share it without an extra cent
	require.Len(t, overview.Roles, 2)
	assert.Equal(t, "3.74", overview.Roles[0].TotalSubsidy.StringFixed(2), "Kitchen sorts first and wins the tie")
	assert.Equal(t, "3.73", overview.Roles[1].TotalSubsidy.StringFixed(2))
	assertGroupsAddUp(t, overview)
}
