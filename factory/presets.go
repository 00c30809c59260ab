package factory

import "encoding/json"

// =============================================================================
// PRESET RULESETS - JSON documents for common event types
// =============================================================================
//
// These return JSON strings for ParseRuleset. Used by demo scenarios, the
// CLI and tests.
//
// Usage:
//   jsonStr := factory.SummerCampJSON("rs-2024", "camp-2024", "2024-01-01", "2024-12-31")
//   rs, err := factory.NewRulesetFactory().ParseRuleset(jsonStr)

// SummerCampJSON returns a youth camp ruleset: free under 6, a reduced
// youth price, a subsidized leader discount, a non-subsidized kitchen
// discount and a sibling discount for the second and later children.
func SummerCampJSON(id, eventID, validFrom, validUntil string) string {
	rj := map[string]interface{}{
		"id":          id,
		"event_id":    eventID,
		"name":        "Summer camp",
		"valid_from":  validFrom,
		"valid_until": validUntil,
		"is_active":   true,
		"age_groups": []map[string]interface{}{
			{"min_age": 0, "max_age": 5, "base_price": 0},
			{"min_age": 6, "max_age": 17, "base_price": 180},
			{"min_age": 18, "max_age": 99, "base_price": 240},
		},
		"role_discounts": map[string]interface{}{
			"leader":  map[string]interface{}{"discount_percent": 50},
			"kitchen": map[string]interface{}{"discount_percent": 100, "subsidy_eligible": false},
			"helper":  map[string]interface{}{"discount_percent": 25},
		},
		"family_discount": map[string]interface{}{
			"enabled":                  true,
			"first_child_percent":      0,
			"second_child_percent":     10,
			"third_plus_child_percent": 20,
		},
	}
	b, _ := json.MarshalIndent(rj, "", "  ")
	return string(b)
}

// FlatFeeJSON returns a ruleset with one price for everyone and no
// discounts.
func FlatFeeJSON(id, eventID, validFrom, validUntil string, price float64) string {
	rj := map[string]interface{}{
		"id":          id,
		"event_id":    eventID,
		"name":        "Flat fee",
		"valid_from":  validFrom,
		"valid_until": validUntil,
		"age_groups": []map[string]interface{}{
			{"min_age": 0, "max_age": 120, "base_price": price},
		},
	}
	b, _ := json.MarshalIndent(rj, "", "  ")
	return string(b)
}
