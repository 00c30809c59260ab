/*
Package reconcile compares expected (Soll) and recorded (Ist) cash flows
of an event.

PURPOSE:
  The pricing engine says what the event should earn and what funders
  should reimburse. The ledger says what has actually been paid, received
  and spent. This package puts the two side by side and classifies the
  resulting cash position.

SIGN CONVENTIONS:
  expected_balance   = expected_income - total_expenses
  actual_balance     = participant_payments + other_income - settled_expenses
  balance_difference = expected_balance - actual_balance
  outstanding_*      = expected - actual (positive = still to come)

STATUS (on actual_balance):
  < 0    critical (red)
  < 500  tight    (yellow)
  else   healthy  (green)

SEE ALSO:
  - pricing/cohort.go: Source of every expected value
  - history.go: Transaction history over the same ledger
*/
package reconcile

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/event-pricing/pricing"
)

// =============================================================================
// STATUS
// =============================================================================

type StatusCode string

const (
	StatusCritical StatusCode = "critical"
	StatusTight    StatusCode = "tight"
	StatusHealthy  StatusCode = "healthy"
)

// TightThreshold is the actual balance below which the position is tight.
var TightThreshold = decimal.NewFromInt(500)

// Status is the qualitative cash position.
type Status struct {
	Code  StatusCode
	Color string
}

// Classify maps an actual balance to a status.
func Classify(actualBalance decimal.Decimal) Status {
	switch {
	case actualBalance.IsNegative():
		return Status{Code: StatusCritical, Color: "red"}
	case actualBalance.LessThan(TightThreshold):
		return Status{Code: StatusTight, Color: "yellow"}
	default:
		return Status{Code: StatusHealthy, Color: "green"}
	}
}

// =============================================================================
// INPUTS AND SUMMARY
// =============================================================================

// Actuals are the recorded sums of an event.
type Actuals struct {
	ParticipantPayments decimal.Decimal
	OtherIncome         decimal.Decimal
	SettledExpenses     decimal.Decimal
	TotalExpenses       decimal.Decimal
}

// Validate rejects negative sums and settled expenses above the total.
func (a Actuals) Validate() error {
	for _, f := range []struct {
		name string
		v    decimal.Decimal
	}{
		{"participant_payments", a.ParticipantPayments},
		{"other_income", a.OtherIncome},
		{"settled_expenses", a.SettledExpenses},
		{"total_expenses", a.TotalExpenses},
	} {
		if err := pricing.ValidateAmount(f.name, f.v); err != nil {
			return err
		}
	}
	if a.SettledExpenses.GreaterThan(a.TotalExpenses) {
		return &pricing.InputError{
			Field:  "settled_expenses",
			Value:  a.SettledExpenses.String(),
			Reason: "exceeds total expenses " + a.TotalExpenses.String(),
		}
	}
	return nil
}

// Category is the total of one income type or expense category.
type Category struct {
	Name  string
	Total decimal.Decimal
	Count int
}

// Summary is the reconciliation of one event. All amounts are rounded to
// cents.
type Summary struct {
	EventID pricing.EventID

	// Expected (Soll)
	ExpectedParticipantIncome decimal.Decimal
	ExpectedSubsidies         decimal.Decimal
	ExpectedIncome            decimal.Decimal
	NonSubsidyDiscount        decimal.Decimal
	TotalBasePrice            decimal.Decimal
	ParticipantCount          int

	// Actual (Ist)
	ParticipantPayments decimal.Decimal
	OtherIncome         decimal.Decimal
	SettledExpenses     decimal.Decimal
	TotalExpenses       decimal.Decimal

	ExpectedBalance   decimal.Decimal
	ActualBalance     decimal.Decimal
	BalanceDifference decimal.Decimal

	OutstandingParticipantIncome decimal.Decimal
	OutstandingOtherIncome       decimal.Decimal
	OutstandingExpenses          decimal.Decimal

	Status Status

	// ExpenseCategories is empty unless filled by CashStatus.
	ExpenseCategories []Category
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// Reconcile combines cohort totals with recorded sums. It is a pure
// function: the same inputs always yield the same summary.
func Reconcile(eventID pricing.EventID, totals pricing.Totals, actuals Actuals) (Summary, error) {
	if err := actuals.Validate(); err != nil {
		return Summary{}, err
	}

	payments := pricing.RoundTotal(actuals.ParticipantPayments)
	other := pricing.RoundTotal(actuals.OtherIncome)
	settled := pricing.RoundTotal(actuals.SettledExpenses)
	expenses := pricing.RoundTotal(actuals.TotalExpenses)

	s := Summary{
		EventID:                   eventID,
		ExpectedParticipantIncome: totals.ExpectedParticipantIncome,
		ExpectedSubsidies:         totals.ExpectedSubsidies,
		ExpectedIncome:            totals.ExpectedIncome,
		NonSubsidyDiscount:        totals.NonSubsidyDiscount,
		TotalBasePrice:            totals.BasePrice,
		ParticipantCount:          totals.ParticipantCount,

		ParticipantPayments: payments,
		OtherIncome:         other,
		SettledExpenses:     settled,
		TotalExpenses:       expenses,
	}

	s.ExpectedBalance = totals.ExpectedIncome.Sub(expenses)
	s.ActualBalance = payments.Add(other).Sub(settled)
	s.BalanceDifference = s.ExpectedBalance.Sub(s.ActualBalance)

	s.OutstandingParticipantIncome = totals.ExpectedParticipantIncome.Sub(payments)
	s.OutstandingOtherIncome = totals.ExpectedSubsidies.Sub(other)
	s.OutstandingExpenses = expenses.Sub(settled)

	s.Status = Classify(s.ActualBalance)
	return s, nil
}

// CashStatus prices the event and reconciles it against the ledger, all
// within one read snapshot.
func CashStatus(ctx context.Context, s pricing.Store, eventID pricing.EventID) (Summary, error) {
	var summary Summary
	err := pricing.View(ctx, s, func(s pricing.Store) error {
		cohort, err := pricing.LoadCohort(ctx, s, eventID, pricing.ParticipantFilter{})
		if err != nil {
			return err
		}

		actuals, err := LoadActuals(ctx, s, eventID)
		if err != nil {
			return err
		}

		summary, err = Reconcile(eventID, cohort.Totals, actuals)
		if err != nil {
			return err
		}

		expenses, err := s.ListExpenses(ctx, eventID)
		if err != nil {
			return fmt.Errorf("failed to list expenses for event %s: %w", eventID, err)
		}
		summary.ExpenseCategories = ExpenseCategories(expenses)
		return nil
	})
	return summary, err
}

// LoadActuals reads the recorded sums of an event.
func LoadActuals(ctx context.Context, s pricing.LedgerReader, eventID pricing.EventID) (Actuals, error) {
	var a Actuals
	var err error
	if a.ParticipantPayments, err = s.SumPayments(ctx, eventID); err != nil {
		return Actuals{}, fmt.Errorf("failed to sum payments for event %s: %w", eventID, err)
	}
	if a.OtherIncome, err = s.SumIncomes(ctx, eventID); err != nil {
		return Actuals{}, fmt.Errorf("failed to sum incomes for event %s: %w", eventID, err)
	}
	if a.SettledExpenses, err = s.SumExpenses(ctx, eventID, true); err != nil {
		return Actuals{}, fmt.Errorf("failed to sum settled expenses for event %s: %w", eventID, err)
	}
	if a.TotalExpenses, err = s.SumExpenses(ctx, eventID, false); err != nil {
		return Actuals{}, fmt.Errorf("failed to sum expenses for event %s: %w", eventID, err)
	}
	return a, nil
}

// =============================================================================
// EXPENSE CATEGORIES
// =============================================================================

// UncategorizedExpense is the category of expenses without one.
const UncategorizedExpense = "other"

// ExpenseCategories groups expenses by category, largest total first.
func ExpenseCategories(expenses []pricing.Expense) []Category {
	byName := make(map[string]*Category)
	for _, e := range expenses {
		name := strings.TrimSpace(e.Category)
		if name == "" {
			name = UncategorizedExpense
		}
		c, ok := byName[name]
		if !ok {
			c = &Category{Name: name, Total: decimal.Zero}
			byName[name] = c
		}
		c.Total = c.Total.Add(e.Amount)
		c.Count++
	}

	result := make([]Category, 0, len(byName))
	for _, c := range byName {
		c.Total = pricing.RoundTotal(c.Total)
		result = append(result, *c)
	}
	sortCategories(result)
	return result
}

func sortCategories(cats []Category) {
	sort.Slice(cats, func(i, j int) bool {
		if !cats[i].Total.Equal(cats[j].Total) {
			return cats[i].Total.GreaterThan(cats[j].Total)
		}
		return cats[i].Name < cats[j].Name
	})
}
