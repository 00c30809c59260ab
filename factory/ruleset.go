/*
Package factory provides JSON to Go ruleset conversion.

PURPOSE:
  Converts JSON ruleset documents into strict pricing.Ruleset values. The
  organizers author rulesets by hand (admin UI, files, database column), so
  every optional field gets an explicit default here and every structural
  defect is rejected once, at load time, instead of being probed at each
  use site.

JSON SCHEMA:
  {
    "id": "rs-2024",
    "event_id": "camp-2024",
    "name": "Summer camp 2024",
    "valid_from": "2024-01-01",
    "valid_until": "2024-12-31",
    "is_active": true,
    "age_groups": [
      {"min_age": 0,  "max_age": 5,  "base_price": 0},
      {"min_age": 6,  "max_age": 17, "base_price": 180},
      {"min_age": 18, "max_age": 99, "base_price": 240}
    ],
    "role_discounts": {
      "Leader":  {"discount_percent": 50},
      "Kitchen": {"discount_percent": 100, "subsidy_eligible": false}
    },
    "family_discount": {
      "enabled": true,
      "tiers": [
        {"min_age": 0, "max_age": 17, "min_position": 2, "max_position": 2, "discount_percent": 10},
        {"min_age": 0, "max_age": 17, "min_position": 3, "discount_percent": 20}
      ]
    }
  }

DEFAULTS:
  - is_active:        true
  - discount_percent: 0
  - subsidy_eligible: true
  - max_position:     0 (open ended)

COMPACT FAMILY FORM:
  "family_discount": {"enabled": true, "first_child_percent": 0,
                      "second_child_percent": 10, "third_plus_child_percent": 20}
  expands to one tier per position over ages 0-17. It cannot be mixed with
  "tiers".

USAGE:
  f := NewRulesetFactory()
  rs, err := f.ParseRuleset(jsonString)
  if errors.Is(err, pricing.ErrInvalidInput) { ... }

SEE ALSO:
  - pricing/types.go: Ruleset type definition
  - store/sqlite/sqlite.go: Stores the document in rulesets.config_json
*/
package factory

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/event-pricing/pricing"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RulesetJSON is the JSON representation of a ruleset.
type RulesetJSON struct {
	ID             string                      `json:"id"`
	EventID        string                      `json:"event_id"`
	Name           string                      `json:"name"`
	ValidFrom      string                      `json:"valid_from"`
	ValidUntil     string                      `json:"valid_until"`
	IsActive       *bool                       `json:"is_active,omitempty"` // Default true
	AgeGroups      []AgeGroupJSON              `json:"age_groups"`
	RoleDiscounts  map[string]RoleDiscountJSON `json:"role_discounts,omitempty"`
	FamilyDiscount *FamilyDiscountJSON         `json:"family_discount,omitempty"`
}

// AgeGroupJSON represents one age bracket.
type AgeGroupJSON struct {
	MinAge    int             `json:"min_age"`
	MaxAge    int             `json:"max_age"`
	BasePrice decimal.Decimal `json:"base_price"`
}

// RoleDiscountJSON represents the discount of one role.
type RoleDiscountJSON struct {
	DiscountPercent *decimal.Decimal `json:"discount_percent,omitempty"`
	SubsidyEligible *bool            `json:"subsidy_eligible,omitempty"` // Default true
}

// FamilyDiscountJSON represents the sibling discount block.
type FamilyDiscountJSON struct {
	Enabled bool             `json:"enabled"`
	Tiers   []FamilyTierJSON `json:"tiers,omitempty"`

	// Compact form
	FirstChildPercent     *decimal.Decimal `json:"first_child_percent,omitempty"`
	SecondChildPercent    *decimal.Decimal `json:"second_child_percent,omitempty"`
	ThirdPlusChildPercent *decimal.Decimal `json:"third_plus_child_percent,omitempty"`
}

// FamilyTierJSON represents one family discount tier.
type FamilyTierJSON struct {
	MinAge          int             `json:"min_age"`
	MaxAge          int             `json:"max_age"`
	MinPosition     int             `json:"min_position"`
	MaxPosition     int             `json:"max_position,omitempty"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
}

func (fj FamilyDiscountJSON) isCompact() bool {
	return fj.FirstChildPercent != nil || fj.SecondChildPercent != nil || fj.ThirdPlusChildPercent != nil
}

// =============================================================================
// RULESET FACTORY
// =============================================================================

// RulesetFactory converts JSON rulesets to pricing.Ruleset.
type RulesetFactory struct{}

// NewRulesetFactory creates a new ruleset factory.
func NewRulesetFactory() *RulesetFactory {
	return &RulesetFactory{}
}

// ParseRuleset parses a JSON document into a validated Ruleset.
func (f *RulesetFactory) ParseRuleset(jsonStr string) (*pricing.Ruleset, error) {
	var rj RulesetJSON
	if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return nil, &pricing.InputError{Field: "ruleset", Reason: fmt.Sprintf("malformed JSON: %v", err)}
	}
	return f.FromJSON(rj)
}

// FromJSON converts RulesetJSON to pricing.Ruleset, applying defaults and
// validating the result.
func (f *RulesetFactory) FromJSON(rj RulesetJSON) (*pricing.Ruleset, error) {
	if strings.TrimSpace(rj.EventID) == "" {
		return nil, &pricing.InputError{Field: "event_id", Reason: "required"}
	}

	validFrom, err := parseDate("valid_from", rj.ValidFrom)
	if err != nil {
		return nil, err
	}
	validUntil, err := parseDate("valid_until", rj.ValidUntil)
	if err != nil {
		return nil, err
	}
	if validUntil.Before(validFrom) {
		return nil, &pricing.InputError{Field: "valid_until", Value: rj.ValidUntil, Reason: "before valid_from"}
	}

	rs := &pricing.Ruleset{
		ID:         pricing.RulesetID(rj.ID),
		EventID:    pricing.EventID(rj.EventID),
		Name:       rj.Name,
		ValidFrom:  validFrom,
		ValidUntil: validUntil,
		IsActive:   true,
	}
	if rj.IsActive != nil {
		rs.IsActive = *rj.IsActive
	}

	if rs.AgeGroups, err = parseAgeGroups(rj.AgeGroups); err != nil {
		return nil, err
	}
	if rs.RoleDiscounts, err = parseRoleDiscounts(rj.RoleDiscounts); err != nil {
		return nil, err
	}
	if rj.FamilyDiscount != nil {
		if rs.FamilyDiscount, err = parseFamilyDiscount(*rj.FamilyDiscount); err != nil {
			return nil, err
		}
	}

	return rs, nil
}

// ToJSON converts a Ruleset to RulesetJSON. Family tiers are always written
// in the explicit form.
func (f *RulesetFactory) ToJSON(rs *pricing.Ruleset) RulesetJSON {
	active := rs.IsActive
	rj := RulesetJSON{
		ID:         string(rs.ID),
		EventID:    string(rs.EventID),
		Name:       rs.Name,
		ValidFrom:  rs.ValidFrom.String(),
		ValidUntil: rs.ValidUntil.String(),
		IsActive:   &active,
	}

	for _, g := range rs.AgeGroups {
		rj.AgeGroups = append(rj.AgeGroups, AgeGroupJSON{MinAge: g.MinAge, MaxAge: g.MaxAge, BasePrice: g.BasePrice})
	}

	if len(rs.RoleDiscounts) > 0 {
		rj.RoleDiscounts = make(map[string]RoleDiscountJSON, len(rs.RoleDiscounts))
		for name, rule := range rs.RoleDiscounts {
			pct := rule.DiscountPercent
			eligible := rule.SubsidyEligible
			rj.RoleDiscounts[name] = RoleDiscountJSON{DiscountPercent: &pct, SubsidyEligible: &eligible}
		}
	}

	if rs.FamilyDiscount.Enabled || len(rs.FamilyDiscount.Tiers) > 0 {
		fj := &FamilyDiscountJSON{Enabled: rs.FamilyDiscount.Enabled}
		for _, t := range rs.FamilyDiscount.Tiers {
			fj.Tiers = append(fj.Tiers, FamilyTierJSON{
				MinAge:          t.MinAge,
				MaxAge:          t.MaxAge,
				MinPosition:     t.MinPosition,
				MaxPosition:     t.MaxPosition,
				DiscountPercent: t.Percent,
			})
		}
		rj.FamilyDiscount = fj
	}

	return rj
}

// MarshalRuleset renders a Ruleset as a JSON document ParseRuleset accepts.
func (f *RulesetFactory) MarshalRuleset(rs *pricing.Ruleset) (string, error) {
	data, err := json.Marshal(f.ToJSON(rs))
	if err != nil {
		return "", fmt.Errorf("failed to marshal ruleset %s: %w", rs.ID, err)
	}
	return string(data), nil
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

var hundred = decimal.NewFromInt(100)

func parseDate(field, s string) (pricing.Date, error) {
	if s == "" {
		return pricing.Date{}, &pricing.InputError{Field: field, Reason: "required"}
	}
	d, err := pricing.ParseDate(s)
	if err != nil {
		return pricing.Date{}, &pricing.InputError{Field: field, Value: s, Reason: "expected YYYY-MM-DD"}
	}
	return d, nil
}

func parsePercent(field string, d decimal.Decimal) error {
	if d.IsNegative() || d.GreaterThan(hundred) {
		return &pricing.InputError{Field: field, Value: d.String(), Reason: "must be between 0 and 100"}
	}
	return nil
}

func parseAgeGroups(groups []AgeGroupJSON) ([]pricing.AgeGroup, error) {
	result := make([]pricing.AgeGroup, 0, len(groups))
	for i, g := range groups {
		field := fmt.Sprintf("age_groups[%d]", i)
		if g.MinAge < 0 || g.MaxAge < g.MinAge {
			return nil, &pricing.InputError{Field: field, Value: fmt.Sprintf("%d-%d", g.MinAge, g.MaxAge), Reason: "invalid age range"}
		}
		if err := pricing.ValidateAmount(field+".base_price", g.BasePrice); err != nil {
			return nil, err
		}
		result = append(result, pricing.AgeGroup{MinAge: g.MinAge, MaxAge: g.MaxAge, BasePrice: g.BasePrice})
	}

	sort.SliceStable(result, func(i, j int) bool { return result[i].MinAge < result[j].MinAge })
	for i := 1; i < len(result); i++ {
		if result[i].MinAge <= result[i-1].MaxAge {
			return nil, &pricing.InputError{
				Field:  "age_groups",
				Value:  fmt.Sprintf("%d-%d", result[i].MinAge, result[i].MaxAge),
				Reason: fmt.Sprintf("overlaps %d-%d", result[i-1].MinAge, result[i-1].MaxAge),
			}
		}
	}
	return result, nil
}

func parseRoleDiscounts(roles map[string]RoleDiscountJSON) (map[string]pricing.RoleDiscountRule, error) {
	result := make(map[string]pricing.RoleDiscountRule, len(roles))
	for name, rj := range roles {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			return nil, &pricing.InputError{Field: "role_discounts", Reason: "empty role name"}
		}
		if _, dup := result[key]; dup {
			return nil, &pricing.InputError{Field: "role_discounts", Value: name, Reason: "duplicate role name (names are case-insensitive)"}
		}

		rule := pricing.RoleDiscountRule{DiscountPercent: decimal.Zero, SubsidyEligible: true}
		if rj.DiscountPercent != nil {
			if err := parsePercent("role_discounts."+name, *rj.DiscountPercent); err != nil {
				return nil, err
			}
			rule.DiscountPercent = *rj.DiscountPercent
		}
		if rj.SubsidyEligible != nil {
			rule.SubsidyEligible = *rj.SubsidyEligible
		}
		result[key] = rule
	}
	return result, nil
}

func parseFamilyDiscount(fj FamilyDiscountJSON) (pricing.FamilyDiscountRule, error) {
	rule := pricing.FamilyDiscountRule{Enabled: fj.Enabled}

	if fj.isCompact() {
		if len(fj.Tiers) > 0 {
			return rule, &pricing.InputError{Field: "family_discount", Reason: "use either tiers or the *_child_percent fields"}
		}
		rule.Tiers = compactTiers(fj)
		for _, t := range rule.Tiers {
			if err := parsePercent("family_discount", t.Percent); err != nil {
				return rule, err
			}
		}
		return rule, nil
	}

	for i, tj := range fj.Tiers {
		field := fmt.Sprintf("family_discount.tiers[%d]", i)
		if tj.MinAge < 0 || tj.MaxAge < tj.MinAge {
			return rule, &pricing.InputError{Field: field, Value: fmt.Sprintf("%d-%d", tj.MinAge, tj.MaxAge), Reason: "invalid age range"}
		}
		if tj.MinPosition < 1 {
			return rule, &pricing.InputError{Field: field + ".min_position", Value: fmt.Sprint(tj.MinPosition), Reason: "must be at least 1"}
		}
		if tj.MaxPosition != 0 && tj.MaxPosition < tj.MinPosition {
			return rule, &pricing.InputError{Field: field + ".max_position", Value: fmt.Sprint(tj.MaxPosition), Reason: "below min_position"}
		}
		if err := parsePercent(field+".discount_percent", tj.DiscountPercent); err != nil {
			return rule, err
		}
		rule.Tiers = append(rule.Tiers, pricing.FamilyDiscountTier{
			MinAge:      tj.MinAge,
			MaxAge:      tj.MaxAge,
			MinPosition: tj.MinPosition,
			MaxPosition: tj.MaxPosition,
			Percent:     tj.DiscountPercent,
		})
	}
	return rule, nil
}

func compactTiers(fj FamilyDiscountJSON) []pricing.FamilyDiscountTier {
	maxAge := pricing.FamilyDiscountMaxAge - 1
	pct := func(p *decimal.Decimal) decimal.Decimal {
		if p == nil {
			return decimal.Zero
		}
		return *p
	}
	return []pricing.FamilyDiscountTier{
		{MinAge: 0, MaxAge: maxAge, MinPosition: 1, MaxPosition: 1, Percent: pct(fj.FirstChildPercent)},
		{MinAge: 0, MaxAge: maxAge, MinPosition: 2, MaxPosition: 2, Percent: pct(fj.SecondChildPercent)},
		{MinAge: 0, MaxAge: maxAge, MinPosition: 3, MaxPosition: 0, Percent: pct(fj.ThirdPlusChildPercent)},
	}
}
