package pricing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
)

// =============================================================================
// COHORT - Priced active participants of one event
// =============================================================================

// Totals are the canonical cohort totals, rounded to cents.
type Totals struct {
	ParticipantCount int

	// BasePrice sums every base price, ignoring overrides and discounts.
	BasePrice decimal.Decimal

	// NonSubsidyDiscount sums role discounts the group absorbs.
	NonSubsidyDiscount decimal.Decimal

	// ExpectedSubsidies sums subsidy-eligible role discounts and family
	// discounts of participants without an override.
	ExpectedSubsidies decimal.Decimal

	// ExpectedIncome = BasePrice - NonSubsidyDiscount.
	ExpectedIncome decimal.Decimal

	// ExpectedParticipantIncome sums final prices (overrides included).
	ExpectedParticipantIncome decimal.Decimal
}

// Cohort holds the per-participant results the totals were built from.
// Event and Ruleset are nil when not configured.
type Cohort struct {
	EventID  EventID
	Event    *Event
	Ruleset  *Ruleset
	Roles    []Role
	Families []Family
	Results  []PricingResult
	Totals   Totals
}

// Summarize builds the totals from pricing results. Sums are exact and
// rounded once at the end.
func Summarize(results []PricingResult) Totals {
	base, nonSubsidy, subsidies, final := decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
	for _, r := range results {
		base = base.Add(r.BasePrice)
		nonSubsidy = nonSubsidy.Add(r.NonSubsidyDiscount())
		subsidies = subsidies.Add(r.SubsidyAmount())
		final = final.Add(r.FinalPrice)
	}

	t := Totals{
		ParticipantCount:          len(results),
		BasePrice:                 RoundTotal(base),
		NonSubsidyDiscount:        RoundTotal(nonSubsidy),
		ExpectedSubsidies:         RoundTotal(subsidies),
		ExpectedParticipantIncome: RoundTotal(final),
	}
	t.ExpectedIncome = t.BasePrice.Sub(t.NonSubsidyDiscount)
	return t
}

// LoadCohort prices every active participant of the event that passes the
// filter. A missing event or ruleset is not an error: the cohort then has
// zero totals.
func LoadCohort(ctx context.Context, s Store, eventID EventID, filter ParticipantFilter) (*Cohort, error) {
	var cohort *Cohort
	err := View(ctx, s, func(s Store) error {
		c, err := loadCohort(ctx, s, eventID, filter)
		cohort = c
		return err
	})
	if err != nil {
		return nil, err
	}
	return cohort, nil
}

func loadCohort(ctx context.Context, r Reader, eventID EventID, filter ParticipantFilter) (*Cohort, error) {
	cohort := &Cohort{EventID: eventID, Totals: Summarize(nil)}

	pricer, err := LoadPricer(ctx, r, eventID)
	if err != nil {
		return nil, err
	}
	if pricer == nil {
		slog.Warn("event not found, reporting zero totals", "event_id", eventID)
		return cohort, nil
	}
	event := pricer.Event()
	cohort.Event = &event
	cohort.Ruleset = pricer.Ruleset()
	if cohort.Ruleset == nil {
		slog.Warn("no active ruleset for event", "event_id", eventID, "start_date", event.StartDate)
	}

	for _, role := range pricer.roles {
		cohort.Roles = append(cohort.Roles, role)
	}
	sortRoles(cohort.Roles)

	cohort.Families, err = r.ListFamilies(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list families for event %s: %w", eventID, err)
	}

	participants, err := r.ListActiveParticipants(ctx, eventID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants for event %s: %w", eventID, err)
	}

	// Family members are read once per family within this invocation.
	members := make(map[FamilyID][]Participant)
	for _, p := range participants {
		if p.FamilyID == "" {
			continue
		}
		if _, ok := members[p.FamilyID]; ok {
			continue
		}
		list, err := r.ListFamilyMembers(ctx, p.FamilyID, eventID)
		if err != nil {
			return nil, fmt.Errorf("failed to list family %s: %w", p.FamilyID, err)
		}
		members[p.FamilyID] = list
	}

	cohort.Results = make([]PricingResult, 0, len(participants))
	for _, p := range participants {
		result, err := pricer.Price(p, members[p.FamilyID])
		if err != nil {
			return nil, fmt.Errorf("participant %s: %w", p.ID, err)
		}
		cohort.Results = append(cohort.Results, result)
	}

	cohort.Totals = Summarize(cohort.Results)
	return cohort, nil
}

// Family returns the family record by ID.
func (c *Cohort) Family(id FamilyID) (Family, bool) {
	for _, f := range c.Families {
		if f.ID == id {
			return f, true
		}
	}
	return Family{}, false
}

// Role returns the role record by ID.
func (c *Cohort) Role(id RoleID) (Role, bool) {
	for _, r := range c.Roles {
		if r.ID == id {
			return r, true
		}
	}
	return Role{}, false
}
