package pricing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PRICING RESULT - Output for one participant
// =============================================================================

// RoleDiscount is an applied role discount.
type RoleDiscount struct {
	RoleID          RoleID
	RoleName        string
	Percent         decimal.Decimal
	Amount          decimal.Decimal
	SubsidyEligible bool
}

// FamilyDiscount is an applied family discount.
type FamilyDiscount struct {
	FamilyID      FamilyID
	ChildPosition int
	Percent       decimal.Decimal
	Amount        decimal.Decimal
}

// PricingResult is the price breakdown of one participant. Amounts are
// unrounded; round only when presenting a total.
type PricingResult struct {
	ParticipantID ParticipantID
	EventID       EventID
	Name          string
	BirthDate     Date
	Age           int
	RoleID        RoleID
	FamilyID      FamilyID

	BasePrice decimal.Decimal

	// nil when no discount of that kind applies.
	Role   *RoleDiscount
	Family *FamilyDiscount

	ManualOverride *decimal.Decimal

	// FinalPrice is what the participant is charged.
	FinalPrice decimal.Decimal
}

func (r PricingResult) HasOverride() bool { return r.ManualOverride != nil }

func (r PricingResult) RoleDiscountAmount() decimal.Decimal {
	if r.Role == nil {
		return decimal.Zero
	}
	return r.Role.Amount
}

func (r PricingResult) FamilyDiscountAmount() decimal.Decimal {
	if r.Family == nil {
		return decimal.Zero
	}
	return r.Family.Amount
}

// SubsidyAmount is the part of the discounts an external funder reimburses:
// a subsidy-eligible role discount plus the family discount.
func (r PricingResult) SubsidyAmount() decimal.Decimal {
	total := r.FamilyDiscountAmount()
	if r.Role != nil && r.Role.SubsidyEligible {
		total = total.Add(r.Role.Amount)
	}
	return total
}

// NonSubsidyDiscount is the role discount the group absorbs itself.
func (r PricingResult) NonSubsidyDiscount() decimal.Decimal {
	if r.Role != nil && !r.Role.SubsidyEligible {
		return r.Role.Amount
	}
	return decimal.Zero
}

// SubsidyEligible reports whether any part of the price is subsidized.
func (r PricingResult) SubsidyEligible() bool {
	return r.SubsidyAmount().IsPositive()
}

// =============================================================================
// PRICER - The only place prices and discounts are computed
// =============================================================================

// Pricer prices participants of one event. It is immutable and safe for
// concurrent use.
type Pricer struct {
	event   Event
	ruleset *Ruleset
	roles   map[RoleID]Role
}

// NewPricer creates a pricer. A nil ruleset prices every participant at
// zero (overrides excepted).
func NewPricer(event Event, ruleset *Ruleset, roles []Role) *Pricer {
	byID := make(map[RoleID]Role, len(roles))
	for _, r := range roles {
		byID[r.ID] = r
	}
	return &Pricer{event: event, ruleset: ruleset, roles: byID}
}

func (p *Pricer) Event() Event      { return p.event }
func (p *Pricer) Ruleset() *Ruleset { return p.ruleset }

// Role returns the role record by ID.
func (p *Pricer) Role(id RoleID) (Role, bool) {
	r, ok := p.roles[id]
	return r, ok
}

// Price computes the breakdown of one participant. family holds the
// participant's family members at the event (ignored when the participant
// has no family).
//
// final = override, if set
// final = base - role discount - family discount, otherwise
//
// Both discounts are percentages of the same base price.
func (p *Pricer) Price(participant Participant, family []Participant) (PricingResult, error) {
	if participant.BirthDate.IsZero() {
		return PricingResult{}, &InputError{Field: "birth_date", Value: string(participant.ID), Reason: "missing"}
	}
	if participant.ManualPriceOverride != nil {
		if err := ValidateAmount("manual_price_override", *participant.ManualPriceOverride); err != nil {
			return PricingResult{}, err
		}
	}

	age := Age(participant.BirthDate, p.event.StartDate)
	result := PricingResult{
		ParticipantID:  participant.ID,
		EventID:        participant.EventID,
		Name:           participant.FullName(),
		BirthDate:      participant.BirthDate,
		Age:            age,
		RoleID:         participant.RoleID,
		FamilyID:       participant.FamilyID,
		BasePrice:      decimal.Zero,
		ManualOverride: participant.ManualPriceOverride,
	}

	if p.ruleset != nil {
		result.BasePrice = BasePrice(age, p.ruleset.AgeGroups)
	}

	if participant.HasOverride() {
		result.FinalPrice = *participant.ManualPriceOverride
		return result, nil
	}

	if p.ruleset != nil {
		result.Role = p.roleDiscount(participant, result.BasePrice)
		result.Family = p.familyDiscount(participant, age, result.BasePrice, family)
	}

	result.FinalPrice = result.BasePrice.
		Sub(result.RoleDiscountAmount()).
		Sub(result.FamilyDiscountAmount())
	return result, nil
}

func (p *Pricer) roleDiscount(participant Participant, base decimal.Decimal) *RoleDiscount {
	if participant.RoleID == "" {
		return nil
	}
	role, ok := p.roles[participant.RoleID]
	if !ok || !role.IsActive {
		return nil
	}
	rule, ok := p.ruleset.RoleDiscountRule(role.Name)
	if !ok {
		return nil
	}
	return &RoleDiscount{
		RoleID:          role.ID,
		RoleName:        role.Name,
		Percent:         rule.DiscountPercent,
		Amount:          PercentOf(base, rule.DiscountPercent),
		SubsidyEligible: rule.SubsidyEligible,
	}
}

func (p *Pricer) familyDiscount(participant Participant, age int, base decimal.Decimal, family []Participant) *FamilyDiscount {
	if participant.FamilyID == "" || !participant.IsActive {
		return nil
	}
	if !p.ruleset.FamilyDiscount.Enabled || age >= FamilyDiscountMaxAge {
		return nil
	}

	var members []Participant
	for _, m := range family {
		if m.IsActive && m.FamilyID == participant.FamilyID && m.EventID == participant.EventID {
			members = append(members, m)
		}
	}
	position, ok := ChildPositions(members)[participant.ID]
	if !ok {
		position = 1
	}

	pct := p.ruleset.FamilyDiscount.PercentFor(age, position)
	if pct.IsZero() {
		return nil
	}
	return &FamilyDiscount{
		FamilyID:      participant.FamilyID,
		ChildPosition: position,
		Percent:       pct,
		Amount:        PercentOf(base, pct),
	}
}

// =============================================================================
// LOADING
// =============================================================================

// LoadPricer reads the event, its applicable ruleset and its roles. A
// missing event yields (nil, nil).
func LoadPricer(ctx context.Context, r Reader, eventID EventID) (*Pricer, error) {
	event, err := r.GetEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to load event %s: %w", eventID, err)
	}
	if event == nil {
		return nil, nil
	}

	ruleset, err := ActiveRuleset(ctx, r, *event)
	if err != nil {
		return nil, err
	}

	roles, err := r.ListRoles(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles for event %s: %w", eventID, err)
	}

	return NewPricer(*event, ruleset, roles), nil
}

// PriceParticipant prices a single participant of the event.
func PriceParticipant(ctx context.Context, s Store, eventID EventID, participantID ParticipantID) (*PricingResult, error) {
	var result *PricingResult
	err := View(ctx, s, func(s Store) error {
		participant, err := s.GetParticipant(ctx, participantID)
		if err != nil {
			return fmt.Errorf("failed to load participant %s: %w", participantID, err)
		}
		if participant == nil || participant.EventID != eventID {
			return ErrParticipantNotFound
		}

		pricer, err := LoadPricer(ctx, s, eventID)
		if err != nil {
			return err
		}
		if pricer == nil {
			return ErrEventNotFound
		}

		var family []Participant
		if participant.FamilyID != "" {
			family, err = s.ListFamilyMembers(ctx, participant.FamilyID, eventID)
			if err != nil {
				return fmt.Errorf("failed to list family %s: %w", participant.FamilyID, err)
			}
		}

		priced, err := pricer.Price(*participant, family)
		if err != nil {
			return err
		}
		result = &priced
		return nil
	})
	return result, err
}
