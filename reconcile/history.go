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
// TRANSACTION HISTORY - Payments, incomes and expenses as one ledger
// =============================================================================

type TransactionType string

const (
	TxPayment TransactionType = "payment"
	TxIncome  TransactionType = "income"
	TxExpense TransactionType = "expense"
)

// ParseTransactionType accepts "", payment, income and expense.
func ParseTransactionType(s string) (TransactionType, error) {
	switch t := TransactionType(strings.ToLower(strings.TrimSpace(s))); t {
	case "", TxPayment, TxIncome, TxExpense:
		return t, nil
	default:
		return "", &pricing.InputError{Field: "type", Value: s, Reason: "expected payment, income or expense"}
	}
}

// Transaction is one signed money movement. Amount is positive for money in
// and negative for money out.
type Transaction struct {
	ID     string
	Type   TransactionType
	Date   pricing.Date
	Amount decimal.Decimal

	// Category holds the payment method or the expense category.
	Category      string
	Reference     string
	Description   string
	ParticipantID pricing.ParticipantID
	Participant   string
	Family        string

	// RunningBalance is the balance after this transaction in date order.
	RunningBalance decimal.Decimal
}

func (t Transaction) IsIncome() bool { return t.Type != TxExpense }

// HistoryFilter narrows the history. Zero value = everything.
type HistoryFilter struct {
	From  pricing.Date
	Until pricing.Date
	Type  TransactionType

	// Bounds on the recorded (unsigned) amount.
	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal

	// Search matches reference, description, participant and family name,
	// ignoring case.
	Search string
}

// Validate rejects an inverted date range or amount range.
func (f HistoryFilter) Validate() error {
	if !f.From.IsZero() && !f.Until.IsZero() && f.Until.Before(f.From) {
		return &pricing.InputError{Field: "date_to", Value: f.Until.String(), Reason: "before date_from"}
	}
	if f.MinAmount != nil && f.MaxAmount != nil && f.MaxAmount.LessThan(*f.MinAmount) {
		return &pricing.InputError{Field: "max_amount", Value: f.MaxAmount.String(), Reason: "below min_amount"}
	}
	if _, err := ParseTransactionType(string(f.Type)); err != nil {
		return err
	}
	return nil
}

func (f HistoryFilter) includes(t TransactionType) bool {
	return f.Type == "" || f.Type == t
}

func (f HistoryFilter) matches(date pricing.Date, amount decimal.Decimal) bool {
	if !f.From.IsZero() && date.Before(f.From) {
		return false
	}
	if !f.Until.IsZero() && date.After(f.Until) {
		return false
	}
	if f.MinAmount != nil && amount.LessThan(*f.MinAmount) {
		return false
	}
	if f.MaxAmount != nil && amount.GreaterThan(*f.MaxAmount) {
		return false
	}
	return true
}

func (f HistoryFilter) matchesSearch(t Transaction) bool {
	if f.Search == "" {
		return true
	}
	needle := strings.ToLower(f.Search)
	for _, field := range []string{t.Reference, t.Description, t.Participant, t.Family} {
		if field != "" && strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

// History is the filtered transaction list of an event with its totals.
type History struct {
	EventID pricing.EventID

	// Transactions are newest first.
	Transactions []Transaction

	TotalIncome   decimal.Decimal
	TotalExpenses decimal.Decimal
	Net           decimal.Decimal

	// IncomeCategories group money in by transaction type; ExpenseCategories
	// group money out by expense category. Largest total first.
	IncomeCategories  []Category
	ExpenseCategories []Category
}

// Chronological returns the transactions oldest first.
func (h History) Chronological() []Transaction {
	out := make([]Transaction, len(h.Transactions))
	for i, t := range h.Transactions {
		out[len(out)-1-i] = t
	}
	return out
}

// =============================================================================
// BUILDING THE HISTORY
// =============================================================================

var typeOrder = map[TransactionType]int{TxPayment: 0, TxIncome: 1, TxExpense: 2}

// BuildHistory filters, orders and totals the transactions. The running
// balance accumulates in date order over the filtered set only.
func BuildHistory(eventID pricing.EventID, txs []Transaction, filter HistoryFilter) (History, error) {
	if err := filter.Validate(); err != nil {
		return History{}, err
	}

	var kept []Transaction
	for _, t := range txs {
		if !filter.includes(t.Type) || !filter.matches(t.Date, t.Amount.Abs()) || !filter.matchesSearch(t) {
			continue
		}
		kept = append(kept, t)
	}

	// Oldest first to accumulate the running balance.
	sort.SliceStable(kept, func(i, j int) bool {
		if !kept[i].Date.Equal(kept[j].Date) {
			return kept[i].Date.Before(kept[j].Date)
		}
		if typeOrder[kept[i].Type] != typeOrder[kept[j].Type] {
			return typeOrder[kept[i].Type] < typeOrder[kept[j].Type]
		}
		return kept[i].ID < kept[j].ID
	})

	h := History{EventID: eventID}
	income, expenses, balance := decimal.Zero, decimal.Zero, decimal.Zero
	incomeCats := make(map[string]*Category)
	expenseCats := make(map[string]*Category)

	for i := range kept {
		t := &kept[i]
		balance = balance.Add(t.Amount)
		t.RunningBalance = pricing.RoundTotal(balance)

		if t.IsIncome() {
			income = income.Add(t.Amount)
			addToCategory(incomeCats, string(t.Type), t.Amount)
		} else {
			expenses = expenses.Add(t.Amount.Abs())
			name := t.Category
			if name == "" {
				name = UncategorizedExpense
			}
			addToCategory(expenseCats, name, t.Amount.Abs())
		}
	}

	h.Transactions = make([]Transaction, len(kept))
	for i, t := range kept {
		h.Transactions[len(kept)-1-i] = t
	}

	h.TotalIncome = pricing.RoundTotal(income)
	h.TotalExpenses = pricing.RoundTotal(expenses)
	h.Net = h.TotalIncome.Sub(h.TotalExpenses)
	h.IncomeCategories = flattenCategories(incomeCats)
	h.ExpenseCategories = flattenCategories(expenseCats)
	return h, nil
}

func addToCategory(cats map[string]*Category, name string, amount decimal.Decimal) {
	c, ok := cats[name]
	if !ok {
		c = &Category{Name: name, Total: decimal.Zero}
		cats[name] = c
	}
	c.Total = c.Total.Add(amount)
	c.Count++
}

func flattenCategories(cats map[string]*Category) []Category {
	result := make([]Category, 0, len(cats))
	for _, c := range cats {
		c.Total = pricing.RoundTotal(c.Total)
		result = append(result, *c)
	}
	sortCategories(result)
	return result
}

// LoadHistory reads the ledger of an event and builds its history.
func LoadHistory(ctx context.Context, s pricing.Store, eventID pricing.EventID, filter HistoryFilter) (History, error) {
	if err := filter.Validate(); err != nil {
		return History{}, err
	}

	var txs []Transaction
	err := pricing.View(ctx, s, func(s pricing.Store) error {
		var err error
		txs, err = loadTransactions(ctx, s, eventID, filter)
		return err
	})
	if err != nil {
		return History{}, err
	}
	return BuildHistory(eventID, txs, filter)
}

func loadTransactions(ctx context.Context, s pricing.Store, eventID pricing.EventID, filter HistoryFilter) ([]Transaction, error) {
	var txs []Transaction

	if filter.includes(TxPayment) {
		payments, err := s.ListPayments(ctx, eventID)
		if err != nil {
			return nil, fmt.Errorf("failed to list payments for event %s: %w", eventID, err)
		}
		families, err := s.ListFamilies(ctx, eventID)
		if err != nil {
			return nil, fmt.Errorf("failed to list families for event %s: %w", eventID, err)
		}
		familyNames := make(map[pricing.FamilyID]string, len(families))
		for _, f := range families {
			familyNames[f.ID] = f.Name
		}
		participantNames := make(map[pricing.ParticipantID]string)

		for _, p := range payments {
			name, ok := participantNames[p.ParticipantID]
			if !ok && p.ParticipantID != "" {
				participant, err := s.GetParticipant(ctx, p.ParticipantID)
				if err != nil {
					return nil, fmt.Errorf("failed to load participant %s: %w", p.ParticipantID, err)
				}
				if participant != nil {
					name = participant.FullName()
				}
				participantNames[p.ParticipantID] = name
			}
			txs = append(txs, Transaction{
				ID:            p.ID,
				Type:          TxPayment,
				Date:          p.Date,
				Amount:        p.Amount,
				Category:      p.Method,
				Reference:     p.Reference,
				Description:   p.Notes,
				ParticipantID: p.ParticipantID,
				Participant:   name,
				Family:        familyNames[p.FamilyID],
			})
		}
	}

	if filter.includes(TxIncome) {
		incomes, err := s.ListIncomes(ctx, eventID)
		if err != nil {
			return nil, fmt.Errorf("failed to list incomes for event %s: %w", eventID, err)
		}
		for _, i := range incomes {
			txs = append(txs, Transaction{
				ID:          i.ID,
				Type:        TxIncome,
				Date:        i.Date,
				Amount:      i.Amount,
				Reference:   i.Name,
				Description: i.Description,
			})
		}
	}

	if filter.includes(TxExpense) {
		expenses, err := s.ListExpenses(ctx, eventID)
		if err != nil {
			return nil, fmt.Errorf("failed to list expenses for event %s: %w", eventID, err)
		}
		for _, e := range expenses {
			txs = append(txs, Transaction{
				ID:          e.ID,
				Type:        TxExpense,
				Date:        e.Date,
				Amount:      e.Amount.Neg(),
				Category:    e.Category,
				Reference:   e.Title,
				Description: e.Description,
			})
		}
	}

	return txs, nil
}
