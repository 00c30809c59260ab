// Package store provides in-memory pricing.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/event-pricing/pricing"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	events       map[pricing.EventID]pricing.Event
	rulesets     []pricing.Ruleset
	roles        []pricing.Role
	families     []pricing.Family
	participants []pricing.Participant
	payments     []pricing.Payment
	incomes      []pricing.Income
	expenses     []pricing.Expense
}

func NewMemory() *Memory {
	return &Memory{events: make(map[pricing.EventID]pricing.Event)}
}

// Compile-time check
var _ pricing.SnapshotStore = (*Memory)(nil)

// =============================================================================
// WRITES
// =============================================================================

func (m *Memory) AddEvent(e pricing.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[e.ID] = e
}

func (m *Memory) AddRuleset(rs pricing.Ruleset) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rulesets = append(m.rulesets, rs)
}

func (m *Memory) AddRole(r pricing.Role) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roles = append(m.roles, r)
}

func (m *Memory) AddFamily(f pricing.Family) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.families = append(m.families, f)
}

func (m *Memory) AddParticipant(p pricing.Participant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.participants = append(m.participants, p)
}

func (m *Memory) AddPayment(p pricing.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments = append(m.payments, p)
}

func (m *Memory) AddIncome(i pricing.Income) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incomes = append(m.incomes, i)
}

func (m *Memory) AddExpense(e pricing.Expense) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expenses = append(m.expenses, e)
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// ReadSnapshot holds the read lock for the duration of fn, so no write can
// interleave with the reads fn performs.
func (m *Memory) ReadSnapshot(_ context.Context, fn func(pricing.Store) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(&memoryView{m: m})
}

// =============================================================================
// READS (locking wrappers around memoryView)
// =============================================================================

func (m *Memory) GetEvent(ctx context.Context, id pricing.EventID) (*pricing.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (&memoryView{m: m}).GetEvent(ctx, id)
}

func (m *Memory) ListRulesets(ctx context.Context, eventID pricing.EventID) ([]pricing.Ruleset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (&memoryView{m: m}).ListRulesets(ctx, eventID)
}

func (m *Memory) ListRoles(ctx context.Context, eventID pricing.EventID) ([]pricing.Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (&memoryView{m: m}).ListRoles(ctx, eventID)
}

func (m *Memory) ListFamilies(ctx context.Context, eventID pricing.EventID) ([]pricing.Family, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (&memoryView{m: m}).ListFamilies(ctx, eventID)
}

func (m *Memory) GetParticipant(ctx context.Context, id pricing.ParticipantID) (*pricing.Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (&memoryView{m: m}).GetParticipant(ctx, id)
}

func (m *Memory) ListActiveParticipants(ctx context.Context, eventID pricing.EventID, filter pricing.ParticipantFilter) ([]pricing.Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (&memoryView{m: m}).ListActiveParticipants(ctx, eventID, filter)
}

func (m *Memory) ListFamilyMembers(ctx context.Context, familyID pricing.FamilyID, eventID pricing.EventID) ([]pricing.Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (&memoryView{m: m}).ListFamilyMembers(ctx, familyID, eventID)
}

func (m *Memory) SumPayments(ctx context.Context, eventID pricing.EventID) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (&memoryView{m: m}).SumPayments(ctx, eventID)
}

func (m *Memory) SumIncomes(ctx context.Context, eventID pricing.EventID) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (&memoryView{m: m}).SumIncomes(ctx, eventID)
}

func (m *Memory) SumExpenses(ctx context.Context, eventID pricing.EventID, settledOnly bool) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (&memoryView{m: m}).SumExpenses(ctx, eventID, settledOnly)
}

func (m *Memory) ListPayments(ctx context.Context, eventID pricing.EventID) ([]pricing.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (&memoryView{m: m}).ListPayments(ctx, eventID)
}

func (m *Memory) ListIncomes(ctx context.Context, eventID pricing.EventID) ([]pricing.Income, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (&memoryView{m: m}).ListIncomes(ctx, eventID)
}

func (m *Memory) ListExpenses(ctx context.Context, eventID pricing.EventID) ([]pricing.Expense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (&memoryView{m: m}).ListExpenses(ctx, eventID)
}

// =============================================================================
// MEMORY VIEW - Lock-free reads; callers hold the lock
// =============================================================================

type memoryView struct {
	m *Memory
}

func (v *memoryView) GetEvent(_ context.Context, id pricing.EventID) (*pricing.Event, error) {
	e, ok := v.m.events[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (v *memoryView) ListRulesets(_ context.Context, eventID pricing.EventID) ([]pricing.Ruleset, error) {
	var result []pricing.Ruleset
	for _, rs := range v.m.rulesets {
		if rs.EventID == eventID {
			result = append(result, rs)
		}
	}
	return result, nil
}

func (v *memoryView) ListRoles(_ context.Context, eventID pricing.EventID) ([]pricing.Role, error) {
	var result []pricing.Role
	for _, r := range v.m.roles {
		if r.EventID == eventID {
			result = append(result, r)
		}
	}
	return result, nil
}

func (v *memoryView) ListFamilies(_ context.Context, eventID pricing.EventID) ([]pricing.Family, error) {
	var result []pricing.Family
	for _, f := range v.m.families {
		if f.EventID == eventID {
			result = append(result, f)
		}
	}
	return result, nil
}

func (v *memoryView) GetParticipant(_ context.Context, id pricing.ParticipantID) (*pricing.Participant, error) {
	for _, p := range v.m.participants {
		if p.ID == id {
			p := p
			return &p, nil
		}
	}
	return nil, nil
}

func (v *memoryView) ListActiveParticipants(_ context.Context, eventID pricing.EventID, filter pricing.ParticipantFilter) ([]pricing.Participant, error) {
	var result []pricing.Participant
	for _, p := range v.m.participants {
		if p.EventID == eventID && p.IsActive && filter.Matches(p) {
			result = append(result, p)
		}
	}
	return result, nil
}

func (v *memoryView) ListFamilyMembers(_ context.Context, familyID pricing.FamilyID, eventID pricing.EventID) ([]pricing.Participant, error) {
	var result []pricing.Participant
	for _, p := range v.m.participants {
		if p.EventID == eventID && p.FamilyID == familyID && p.IsActive {
			result = append(result, p)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].BirthDate.Before(result[j].BirthDate)
	})
	return result, nil
}

func (v *memoryView) SumPayments(_ context.Context, eventID pricing.EventID) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, p := range v.m.payments {
		if p.EventID == eventID {
			total = total.Add(p.Amount)
		}
	}
	return total, nil
}

func (v *memoryView) SumIncomes(_ context.Context, eventID pricing.EventID) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, i := range v.m.incomes {
		if i.EventID == eventID {
			total = total.Add(i.Amount)
		}
	}
	return total, nil
}

func (v *memoryView) SumExpenses(_ context.Context, eventID pricing.EventID, settledOnly bool) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, e := range v.m.expenses {
		if e.EventID != eventID || (settledOnly && !e.IsSettled) {
			continue
		}
		total = total.Add(e.Amount)
	}
	return total, nil
}

func (v *memoryView) ListPayments(_ context.Context, eventID pricing.EventID) ([]pricing.Payment, error) {
	var result []pricing.Payment
	for _, p := range v.m.payments {
		if p.EventID == eventID {
			result = append(result, p)
		}
	}
	return result, nil
}

func (v *memoryView) ListIncomes(_ context.Context, eventID pricing.EventID) ([]pricing.Income, error) {
	var result []pricing.Income
	for _, i := range v.m.incomes {
		if i.EventID == eventID {
			result = append(result, i)
		}
	}
	return result, nil
}

func (v *memoryView) ListExpenses(_ context.Context, eventID pricing.EventID) ([]pricing.Expense, error) {
	var result []pricing.Expense
	for _, e := range v.m.expenses {
		if e.EventID == eventID {
			result = append(result, e)
		}
	}
	return result, nil
}
