package report

import (
	"fmt"
	"strconv"

	"github.com/warp/event-pricing/pricing"
	"github.com/warp/event-pricing/reconcile"
)

// =============================================================================
// SUBSIDY LISTS
// =============================================================================

var subsidyColumns = []string{"name", "birth_date", "age", "base_price", "subsidy"}

// RoleSubsidyTable lists the participants of one subsidized role with the
// group totals as footer.
func RoleSubsidyTable(g pricing.RoleSubsidyGroup) Table {
	name := g.DisplayName
	if name == "" {
		name = g.RoleName
	}
	t := Table{
		Title:   fmt.Sprintf("Role subsidy: %s (%s%%)", name, g.DiscountPercent.String()),
		Columns: subsidyColumns,
		Rows:    make([][]string, 0, len(g.Lines)),
	}
	for _, l := range g.Lines {
		t.Rows = append(t.Rows, []string{
			l.Name, l.BirthDate.String(), strconv.Itoa(l.Age), money(l.BasePrice), money(l.SubsidyAmount),
		})
	}
	t.Footer = []string{"Total", "", "", money(g.TotalBasePrice), money(g.TotalSubsidy)}
	return t
}

// FamilySubsidyTable lists the children with a family discount. A nil
// group gives an empty table with zero totals.
func FamilySubsidyTable(g *pricing.FamilySubsidyGroup) Table {
	t := Table{
		Title:   "Family discount",
		Columns: []string{"name", "birth_date", "age", "family", "child_position", "base_price", "subsidy"},
		Rows:    [][]string{},
	}
	if g == nil {
		t.Footer = []string{"Total", "", "", "", "", "0.00", "0.00"}
		return t
	}
	for _, l := range g.Lines {
		t.Rows = append(t.Rows, []string{
			l.Name, l.BirthDate.String(), strconv.Itoa(l.Age), l.FamilyName,
			strconv.Itoa(l.ChildPosition), money(l.BasePrice), money(l.SubsidyAmount),
		})
	}
	t.Footer = []string{"Total", "", "", "", "", money(g.TotalBasePrice), money(g.TotalSubsidy)}
	return t
}

// =============================================================================
// TRANSACTION HISTORY
// =============================================================================

// HistoryTable writes the history oldest first, so the balance column reads
// top to bottom.
func HistoryTable(h reconcile.History) Table {
	t := Table{
		Title: fmt.Sprintf("Transaction history %s", h.EventID),
		Columns: []string{
			"date", "type", "amount", "income", "expense", "balance",
			"category_method", "reference", "description", "participant", "family",
		},
		Rows: make([][]string, 0, len(h.Transactions)),
	}

	for _, tx := range h.Chronological() {
		in, out := "0.00", "0.00"
		if tx.IsIncome() {
			in = money(tx.Amount)
		} else {
			out = money(tx.Amount.Abs())
		}
		t.Rows = append(t.Rows, []string{
			tx.Date.String(), string(tx.Type), money(tx.Amount), in, out, money(tx.RunningBalance),
			tx.Category, tx.Reference, tx.Description, tx.Participant, tx.Family,
		})
	}
	t.Footer = []string{"Total", "", money(h.Net), money(h.TotalIncome), money(h.TotalExpenses), "", "", "", "", "", ""}
	return t
}
