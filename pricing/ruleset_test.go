package pricing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/event-pricing/pricing"
)

func TestResolveRuleset(t *testing.T) {
	event := pricing.Event{
		ID:        "camp",
		StartDate: pricing.NewDate(2024, time.July, 20),
		EndDate:   pricing.NewDate(2024, time.July, 27),
	}
	window := func(id string, from, until pricing.Date, active bool) pricing.Ruleset {
		return pricing.Ruleset{ID: pricing.RulesetID(id), EventID: "camp", ValidFrom: from, ValidUntil: until, IsActive: active}
	}

	t.Run("picks the active ruleset valid on the start date", func(t *testing.T) {
		rs := pricing.ResolveRuleset(event, []pricing.Ruleset{
			window("old", pricing.NewDate(2023, 1, 1), pricing.NewDate(2023, 12, 31), true),
			window("current", pricing.NewDate(2024, 1, 1), pricing.NewDate(2024, 12, 31), true),
		})
		require.NotNil(t, rs)
		assert.Equal(t, pricing.RulesetID("current"), rs.ID)
	})

	t.Run("bounds are inclusive", func(t *testing.T) {
		rs := pricing.ResolveRuleset(event, []pricing.Ruleset{
			window("edge", pricing.NewDate(2024, time.July, 20), pricing.NewDate(2024, time.July, 20), true),
		})
		require.NotNil(t, rs)
		assert.Equal(t, pricing.RulesetID("edge"), rs.ID)
	})

	t.Run("inactive ruleset is ignored", func(t *testing.T) {
		rs := pricing.ResolveRuleset(event, []pricing.Ruleset{
			window("draft", pricing.NewDate(2024, 1, 1), pricing.NewDate(2024, 12, 31), false),
		})
		assert.Nil(t, rs)
	})

	t.Run("other event is ignored", func(t *testing.T) {
		other := window("foreign", pricing.NewDate(2024, 1, 1), pricing.NewDate(2024, 12, 31), true)
		other.EventID = "retreat"
		assert.Nil(t, pricing.ResolveRuleset(event, []pricing.Ruleset{other}))
	})

	t.Run("overlap resolves to the latest valid_from", func(t *testing.T) {
		rs := pricing.ResolveRuleset(event, []pricing.Ruleset{
			window("a", pricing.NewDate(2024, 1, 1), pricing.NewDate(2024, 12, 31), true),
			window("b", pricing.NewDate(2024, 6, 1), pricing.NewDate(2024, 12, 31), true),
		})
		require.NotNil(t, rs)
		assert.Equal(t, pricing.RulesetID("b"), rs.ID)
	})
}
