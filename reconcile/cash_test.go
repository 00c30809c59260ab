package reconcile_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/event-pricing/pricing"
	"github.com/warp/event-pricing/pricing/store"
	"github.com/warp/event-pricing/reconcile"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

const eventID = pricing.EventID("camp-2024")

func day(d int) pricing.Date { return pricing.NewDate(2024, time.July, d) }

// newLedgerStore seeds a camp with two adults at 100 (one leader with a
// subsidized 20% discount) and a small ledger.
func newLedgerStore(t *testing.T) *store.Memory {
	t.Helper()
	s := store.NewMemory()
	s.AddEvent(pricing.Event{ID: eventID, Name: "Camp", StartDate: day(20), EndDate: day(27)})
	s.AddRuleset(pricing.Ruleset{
		ID:         "rs",
		EventID:    eventID,
		ValidFrom:  pricing.NewDate(2024, time.January, 1),
		ValidUntil: pricing.NewDate(2024, time.December, 31),
		IsActive:   true,
		AgeGroups:  []pricing.AgeGroup{{MinAge: 0, MaxAge: 99, BasePrice: dec("100")}},
		RoleDiscounts: map[string]pricing.RoleDiscountRule{
			"leader": {DiscountPercent: dec("20"), SubsidyEligible: true},
		},
	})
	s.AddRole(pricing.Role{ID: "leader", EventID: eventID, Name: "Leader", IsActive: true})
	s.AddFamily(pricing.Family{ID: "fam", EventID: eventID, Name: "Berg"})
	s.AddParticipant(pricing.Participant{ID: "p1", EventID: eventID, FirstName: "Anna", LastName: "Berg", BirthDate: pricing.NewDate(1990, 1, 1), IsActive: true, RoleID: "leader", FamilyID: "fam"})
	s.AddParticipant(pricing.Participant{ID: "p2", EventID: eventID, FirstName: "Ben", LastName: "Lund", BirthDate: pricing.NewDate(1985, 1, 1), IsActive: true})

	s.AddPayment(pricing.Payment{ID: "pay1", EventID: eventID, ParticipantID: "p1", FamilyID: "fam", Amount: dec("80"), Date: day(1), Method: "transfer", Reference: "INV-1"})
	s.AddPayment(pricing.Payment{ID: "pay2", EventID: eventID, ParticipantID: "p2", Amount: dec("50"), Date: day(3), Method: "cash"})
	s.AddIncome(pricing.Income{ID: "inc1", EventID: eventID, Name: "Youth fund", Amount: dec("20"), Date: day(5)})
	s.AddExpense(pricing.Expense{ID: "exp1", EventID: eventID, Title: "Groceries", Category: "food", Amount: dec("60"), Date: day(2), IsSettled: true})
	s.AddExpense(pricing.Expense{ID: "exp2", EventID: eventID, Title: "Bus", Category: "travel", Amount: dec("90"), Date: day(4)})
	s.AddExpense(pricing.Expense{ID: "exp3", EventID: eventID, Title: "Tape", Amount: dec("5"), Date: day(4), IsSettled: true})
	return s
}

// =============================================================================
// STATUS
// =============================================================================

func TestClassify_Thresholds(t *testing.T) {
	tests := []struct {
		balance string
		code    reconcile.StatusCode
		color   string
	}{
		{"-1", reconcile.StatusCritical, "red"},
		{"-0.01", reconcile.StatusCritical, "red"},
		{"0", reconcile.StatusTight, "yellow"},
		{"499.99", reconcile.StatusTight, "yellow"},
		{"500", reconcile.StatusHealthy, "green"},
		{"12000", reconcile.StatusHealthy, "green"},
	}
	for _, tt := range tests {
		t.Run(tt.balance, func(t *testing.T) {
			status := reconcile.Classify(dec(tt.balance))
			assert.Equal(t, tt.code, status.Code)
			assert.Equal(t, tt.color, status.Color)
		})
	}
}

// =============================================================================
// RECONCILIATION
// =============================================================================

func TestReconcile_Formulas(t *testing.T) {
	// GIVEN: Expected totals and recorded sums
	totals := pricing.Totals{
		ParticipantCount:          3,
		BasePrice:                 dec("300"),
		NonSubsidyDiscount:        dec("30"),
		ExpectedSubsidies:         dec("45"),
		ExpectedIncome:            dec("270"),
		ExpectedParticipantIncome: dec("225"),
	}
	actuals := reconcile.Actuals{
		ParticipantPayments: dec("200"),
		OtherIncome:         dec("40"),
		SettledExpenses:     dec("100"),
		TotalExpenses:       dec("150"),
	}

	// WHEN: They are reconciled
	s, err := reconcile.Reconcile(eventID, totals, actuals)
	require.NoError(t, err)

	// THEN: Balances and deltas follow the sign conventions
	assert.Equal(t, "120", s.ExpectedBalance.String())
	assert.Equal(t, "140", s.ActualBalance.String())
	assert.Equal(t, "-20", s.BalanceDifference.String())
	assert.Equal(t, "25", s.OutstandingParticipantIncome.String())
	assert.Equal(t, "5", s.OutstandingOtherIncome.String())
	assert.Equal(t, "50", s.OutstandingExpenses.String())
	assert.Equal(t, reconcile.StatusTight, s.Status.Code)
}

func TestReconcile_Idempotent(t *testing.T) {
	totals := pricing.Totals{ExpectedIncome: dec("1000.005"), ExpectedSubsidies: dec("10"), ExpectedParticipantIncome: dec("990")}
	actuals := reconcile.Actuals{ParticipantPayments: dec("333.333"), TotalExpenses: dec("0.1")}

	first, err := reconcile.Reconcile(eventID, totals, actuals)
	require.NoError(t, err)
	second, err := reconcile.Reconcile(eventID, totals, actuals)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "333.33", first.ParticipantPayments.String())
}

func TestReconcile_RejectsInvalidActuals(t *testing.T) {
	tests := []struct {
		name    string
		actuals reconcile.Actuals
		field   string
	}{
		{"negative payments", reconcile.Actuals{ParticipantPayments: dec("-1")}, "participant_payments"},
		{"negative income", reconcile.Actuals{OtherIncome: dec("-0.01")}, "other_income"},
		{"settled above total", reconcile.Actuals{SettledExpenses: dec("10"), TotalExpenses: dec("5")}, "settled_expenses"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reconcile.Reconcile(eventID, pricing.Totals{}, tt.actuals)
			require.ErrorIs(t, err, pricing.ErrInvalidInput)
			var inputErr *pricing.InputError
			require.ErrorAs(t, err, &inputErr)
			assert.Equal(t, tt.field, inputErr.Field)
		})
	}
}

func TestCashStatus_FromStore(t *testing.T) {
	// GIVEN: Expected income 200, subsidies 20, participant income 180
	s := newLedgerStore(t)

	// WHEN: The cash status is computed
	summary, err := reconcile.CashStatus(context.Background(), s, eventID)
	require.NoError(t, err)

	// THEN: Soll and Ist come from the same snapshot
	assert.Equal(t, 2, summary.ParticipantCount)
	assert.Equal(t, "200", summary.ExpectedIncome.String())
	assert.Equal(t, "20", summary.ExpectedSubsidies.String())
	assert.Equal(t, "180", summary.ExpectedParticipantIncome.String())

	assert.Equal(t, "130", summary.ParticipantPayments.String())
	assert.Equal(t, "20", summary.OtherIncome.String())
	assert.Equal(t, "65", summary.SettledExpenses.String())
	assert.Equal(t, "155", summary.TotalExpenses.String())

	assert.Equal(t, "45", summary.ExpectedBalance.String())
	assert.Equal(t, "85", summary.ActualBalance.String())
	assert.Equal(t, "50", summary.OutstandingParticipantIncome.String())
	assert.Equal(t, "0", summary.OutstandingOtherIncome.String())
	assert.Equal(t, "90", summary.OutstandingExpenses.String())
	assert.Equal(t, reconcile.StatusTight, summary.Status.Code)

	require.Len(t, summary.ExpenseCategories, 3)
	assert.Equal(t, "travel", summary.ExpenseCategories[0].Name)
	assert.Equal(t, "food", summary.ExpenseCategories[1].Name)
	assert.Equal(t, reconcile.UncategorizedExpense, summary.ExpenseCategories[2].Name)
}

func TestCashStatus_UnknownEventIsEmpty(t *testing.T) {
	s := store.NewMemory()

	summary, err := reconcile.CashStatus(context.Background(), s, "missing")
	require.NoError(t, err)

	assert.True(t, summary.ExpectedIncome.IsZero())
	assert.True(t, summary.ActualBalance.IsZero())
	assert.Equal(t, reconcile.StatusTight, summary.Status.Code)
	assert.Empty(t, summary.ExpenseCategories)
}
