/*
store.go - Read interfaces between the engine and persistence

PURPOSE:
  The engine is a pure function of stored records. It never persists a
  computed price and never mutates a record, so the interfaces here are
  read-only. Writes (seeding events, recording payments) belong to the
  concrete stores.

KEY INTERFACES:
  Reader:        Events, rulesets, roles, families, participants
  LedgerReader:  Payments, incomes, expenses and their sums
  Store:         Both of the above
  SnapshotStore: Store with a consistent read snapshot per invocation

SNAPSHOTS:
  One engine invocation performs several reads (event, ruleset, roles,
  participants, family members, sums). If a writer slips in between two
  of them the totals can disagree with each other. View() runs the whole
  invocation inside SnapshotStore.ReadSnapshot when the store offers it.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite, one read-only SQL transaction per snapshot
  - pricing/store/memory.go: In-memory for tests and fixtures
*/
package pricing

import (
	"context"

	"github.com/shopspring/decimal"
)

// ParticipantFilter narrows ListActiveParticipants. Zero value = no filter.
type ParticipantFilter struct {
	RoleID          RoleID
	FamilyID        FamilyID
	WithoutOverride bool
}

// Matches reports whether p passes the filter. Activity and event are
// checked by the caller.
func (f ParticipantFilter) Matches(p Participant) bool {
	if f.RoleID != "" && p.RoleID != f.RoleID {
		return false
	}
	if f.FamilyID != "" && p.FamilyID != f.FamilyID {
		return false
	}
	if f.WithoutOverride && p.HasOverride() {
		return false
	}
	return true
}

// Reader provides the records the pricing engine consumes.
// Get* methods return (nil, nil) when the record does not exist.
type Reader interface {
	GetEvent(ctx context.Context, id EventID) (*Event, error)

	// ListRulesets returns every ruleset of the event, active or not.
	ListRulesets(ctx context.Context, eventID EventID) ([]Ruleset, error)

	ListRoles(ctx context.Context, eventID EventID) ([]Role, error)
	ListFamilies(ctx context.Context, eventID EventID) ([]Family, error)

	GetParticipant(ctx context.Context, id ParticipantID) (*Participant, error)

	// ListActiveParticipants returns active participants of the event in a
	// stable order.
	ListActiveParticipants(ctx context.Context, eventID EventID, filter ParticipantFilter) ([]Participant, error)

	// ListFamilyMembers returns the active participants of the family at
	// the event. Order is not significant.
	ListFamilyMembers(ctx context.Context, familyID FamilyID, eventID EventID) ([]Participant, error)
}

// LedgerReader provides recorded money movements.
type LedgerReader interface {
	SumPayments(ctx context.Context, eventID EventID) (decimal.Decimal, error)
	SumIncomes(ctx context.Context, eventID EventID) (decimal.Decimal, error)
	SumExpenses(ctx context.Context, eventID EventID, settledOnly bool) (decimal.Decimal, error)

	ListPayments(ctx context.Context, eventID EventID) ([]Payment, error)
	ListIncomes(ctx context.Context, eventID EventID) ([]Income, error)
	ListExpenses(ctx context.Context, eventID EventID) ([]Expense, error)
}

// Store combines both read interfaces.
type Store interface {
	Reader
	LedgerReader
}

// SnapshotStore can run a function against a consistent read snapshot.
type SnapshotStore interface {
	Store

	// ReadSnapshot executes fn with a Store view that does not observe
	// writes committed after the snapshot started.
	ReadSnapshot(ctx context.Context, fn func(Store) error) error
}

// View runs fn against a snapshot of s when s supports it, otherwise
// directly against s.
func View(ctx context.Context, s Store, fn func(Store) error) error {
	if ss, ok := s.(SnapshotStore); ok {
		return ss.ReadSnapshot(ctx, fn)
	}
	return fn(s)
}
