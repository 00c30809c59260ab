/*
Package pricing provides the participant pricing and subsidy engine.

PURPOSE:
  Prices the participants of a multi-day event according to the event's
  ruleset: an age-bracketed base price, an optional role discount and an
  optional family (sibling) discount. The same per-participant computation
  feeds every total the system reports, so the summary view, the subsidy
  overview and the exports always agree to the cent.

KEY CONCEPTS IN THIS FILE (types.go):
  - Event: Date range of the event; its start date is the age reference date
  - Ruleset: Versioned, date-scoped pricing configuration for one event
  - Participant: A person attending the event, optionally in a family/role
  - Payment/Income/Expense: Recorded money movements (read-only inputs)

DESIGN PRINCIPLES:
  1. Read-only: The engine never writes to any record it reads
  2. Precision: All money uses decimal.Decimal, rounded only at totals
  3. Single path: Every aggregate is built from Pricer.Price results
  4. Degrade, don't fail: Missing configuration yields zero totals

SEE ALSO:
  - participant.go: Per-participant pricing (the single source of truth)
  - cohort.go: Totals over the active participants of an event
  - subsidy.go: Subsidy overview built from the same cohort
  - store.go: Read interfaces consumed by the engine
*/
package pricing

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EventID string
type RulesetID string
type ParticipantID string
type FamilyID string
type RoleID string

// =============================================================================
// EVENT
// =============================================================================

// Event is a multi-day event. StartDate is the reference date for every
// age computation and for ruleset validity.
type Event struct {
	ID        EventID
	Name      string
	StartDate Date
	EndDate   Date
}

// =============================================================================
// RULESET - Date-scoped pricing configuration
// =============================================================================

// Ruleset is the strict in-memory form of a pricing configuration.
// Build it with factory.RulesetFactory so that defaults are applied and
// role keys are normalized.
type Ruleset struct {
	ID         RulesetID
	EventID    EventID
	Name       string
	ValidFrom  Date
	ValidUntil Date
	IsActive   bool

	// AgeGroups are non-overlapping and sorted by MinAge.
	AgeGroups []AgeGroup

	// RoleDiscounts is keyed by lower-cased role name.
	RoleDiscounts map[string]RoleDiscountRule

	FamilyDiscount FamilyDiscountRule
}

// AgeGroup maps the inclusive age range [MinAge, MaxAge] to a base price.
type AgeGroup struct {
	MinAge    int
	MaxAge    int
	BasePrice decimal.Decimal
}

// RoleDiscountRule is the discount attached to a role name.
type RoleDiscountRule struct {
	DiscountPercent decimal.Decimal

	// SubsidyEligible discounts are reimbursed by an external funder.
	// Non-eligible discounts are absorbed by the group.
	SubsidyEligible bool
}

// FamilyDiscountRule configures the per-child sibling discount.
type FamilyDiscountRule struct {
	Enabled bool
	Tiers   []FamilyDiscountTier
}

// FamilyDiscountTier grants Percent to children whose age is in
// [MinAge, MaxAge] and whose child position is in [MinPosition, MaxPosition].
// MaxPosition 0 means "and every later child".
type FamilyDiscountTier struct {
	MinAge      int
	MaxAge      int
	MinPosition int
	MaxPosition int
	Percent     decimal.Decimal
}

// =============================================================================
// PARTICIPANTS
// =============================================================================

type Role struct {
	ID          RoleID
	EventID     EventID
	Name        string
	DisplayName string
	IsActive    bool
}

type Family struct {
	ID      FamilyID
	EventID EventID
	Name    string
}

type Participant struct {
	ID        ParticipantID
	EventID   EventID
	FirstName string
	LastName  string
	BirthDate Date
	IsActive  bool

	// Empty when the participant has no family / no role.
	FamilyID FamilyID
	RoleID   RoleID

	// ManualPriceOverride is a human-set final price. When set, no
	// automatic discount is computed for the participant.
	ManualPriceOverride *decimal.Decimal
}

// FullName returns "First Last".
func (p Participant) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	default:
		return p.FirstName + " " + p.LastName
	}
}

func (p Participant) HasOverride() bool { return p.ManualPriceOverride != nil }

// =============================================================================
// MONEY MOVEMENTS - Recorded cash flows (Ist values)
// =============================================================================

type Payment struct {
	ID            string
	EventID       EventID
	ParticipantID ParticipantID
	FamilyID      FamilyID
	Amount        decimal.Decimal
	Date          Date
	Method        string
	Reference     string
	Notes         string
}

type Income struct {
	ID          string
	EventID     EventID
	Name        string
	Description string
	Amount      decimal.Decimal
	Date        Date
}

type Expense struct {
	ID          string
	EventID     EventID
	Title       string
	Description string
	Category    string
	Amount      decimal.Decimal
	Date        Date
	IsSettled   bool
}
