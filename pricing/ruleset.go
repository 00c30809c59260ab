package pricing

import (
	"context"
	"fmt"
	"sort"
)

// =============================================================================
// RULESET RESOLUTION
// =============================================================================

// AppliesOn reports whether the ruleset is active and valid on the date.
// Both bounds are inclusive.
func (rs Ruleset) AppliesOn(d Date) bool {
	return rs.IsActive && rs.ValidFrom.BeforeOrEqual(d) && d.BeforeOrEqual(rs.ValidUntil)
}

// ResolveRuleset picks the ruleset of the event that is active and valid on
// the event start date. Returns nil when none applies ("no pricing
// configured"). If the data violates the one-ruleset invariant, the ruleset
// with the latest ValidFrom wins, ties broken by ID, so the choice is
// deterministic.
func ResolveRuleset(event Event, rulesets []Ruleset) *Ruleset {
	var candidates []Ruleset
	for _, rs := range rulesets {
		if rs.EventID != "" && rs.EventID != event.ID {
			continue
		}
		if rs.AppliesOn(event.StartDate) {
			candidates = append(candidates, rs)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if !candidates[i].ValidFrom.Equal(candidates[j].ValidFrom) {
			return candidates[i].ValidFrom.After(candidates[j].ValidFrom)
		}
		return candidates[i].ID < candidates[j].ID
	})
	rs := candidates[0]
	return &rs
}

// ActiveRuleset loads the event's rulesets and resolves the applicable one.
// Returns (nil, nil) when the event has no applicable ruleset.
func ActiveRuleset(ctx context.Context, r Reader, event Event) (*Ruleset, error) {
	rulesets, err := r.ListRulesets(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rulesets for event %s: %w", event.ID, err)
	}
	return ResolveRuleset(event, rulesets), nil
}
