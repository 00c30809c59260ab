/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Provides pre-built scenarios that populate the database with realistic
  data for demos and end-to-end tests. Each scenario creates an event, its
  ruleset, roles, families, participants and a cash ledger.

AVAILABLE SCENARIOS:
  summer-camp:     Youth camp with role and sibling discounts, an override,
                   a grant and a tight cash position
  weekend-retreat: Flat fee, no discounts, critical cash position
  no-ruleset:      Event without a ruleset (zero prices, overrides only)

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create the event
 3. Store the ruleset document via the factory presets
 4. Create roles, families and participants
 5. Record payments, incomes and expenses

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "summer-camp"}

NOTE:
  Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Engine endpoints to inspect the loaded data
  - factory/presets.go: Ruleset JSON presets
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/event-pricing/factory"
	"github.com/warp/event-pricing/pricing"
	"github.com/warp/event-pricing/store/sqlite"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	load func(ctx context.Context, s *sqlite.Store) error
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "summer-camp",
			Name:        "Summer Camp",
			Description: "Leaders, kitchen and helpers with role discounts, two families with sibling discounts, one manual price",
		},
		load: loadSummerCampScenario,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "weekend-retreat",
			Name:        "Weekend Retreat",
			Description: "Flat fee for everyone, expenses already exceed income",
		},
		load: loadWeekendRetreatScenario,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "no-ruleset",
			Name:        "Event Without Ruleset",
			Description: "No pricing configured yet: prices are zero except manual prices",
		},
		load: loadNoRulesetScenario,
	},
}

func findScenario(id string) (scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return scenario{}, false
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = s.ScenarioDTO
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	s, _ := findScenario(current)
	writeJSON(w, http.StatusOK, s.ScenarioDTO)
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	s, ok := findScenario(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	if err := h.LoadScenarioByID(r.Context(), s.ID); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": s.ID})
}

// LoadScenarioByID resets the store and loads a scenario. Also used by the
// CLI and tests.
func (h *Handler) LoadScenarioByID(ctx context.Context, id string) error {
	s, ok := findScenario(id)
	if !ok {
		return &pricing.InputError{Field: "scenario_id", Value: id, Reason: "unknown scenario"}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset database: %w", err)
	}
	h.currentScenario = ""

	if err := s.load(ctx, h.Store); err != nil {
		return err
	}
	h.currentScenario = s.ID

	slog.Info("scenario loaded", "scenario", s.ID)
	return nil
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// seed collects the first write error so loaders read as a plain list.
type seed struct {
	ctx   context.Context
	store *sqlite.Store
	err   error
}

func (s *seed) do(fn func() error) {
	if s.err == nil {
		s.err = fn()
	}
}

func (s *seed) event(id, name string, start, end pricing.Date) {
	s.do(func() error {
		return s.store.SaveEvent(s.ctx, &pricing.Event{ID: pricing.EventID(id), Name: name, StartDate: start, EndDate: end})
	})
}

func (s *seed) ruleset(doc string) {
	s.do(func() error {
		_, err := s.store.SaveRulesetJSON(s.ctx, doc)
		return err
	})
}

func (s *seed) role(eventID, id, name, display string) {
	s.do(func() error {
		return s.store.SaveRole(s.ctx, &pricing.Role{
			ID: pricing.RoleID(id), EventID: pricing.EventID(eventID), Name: name, DisplayName: display, IsActive: true,
		})
	})
}

func (s *seed) family(eventID, id, name string) {
	s.do(func() error {
		return s.store.SaveFamily(s.ctx, &pricing.Family{ID: pricing.FamilyID(id), EventID: pricing.EventID(eventID), Name: name})
	})
}

func (s *seed) participant(p pricing.Participant) {
	s.do(func() error { return s.store.SaveParticipant(s.ctx, &p) })
}

func (s *seed) payment(p pricing.Payment) {
	s.do(func() error { return s.store.SavePayment(s.ctx, &p) })
}

func (s *seed) income(i pricing.Income) {
	s.do(func() error { return s.store.SaveIncome(s.ctx, &i) })
}

func (s *seed) expense(e pricing.Expense) {
	s.do(func() error { return s.store.SaveExpense(s.ctx, &e) })
}

func date(year int, month time.Month, day int) pricing.Date {
	return pricing.NewDate(year, month, day)
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func person(eventID, id, first, last string, born pricing.Date) pricing.Participant {
	return pricing.Participant{
		ID:        pricing.ParticipantID(id),
		EventID:   pricing.EventID(eventID),
		FirstName: first,
		LastName:  last,
		BirthDate: born,
		IsActive:  true,
	}
}

// loadSummerCampScenario seeds a camp starting 2025-07-20 with the summer
// camp preset. Expected totals: base 1860, subsidies 354, non-subsidy
// discount 240, expected income 1620, participant income 1176. Actual
// balance 40.30 (tight).
func loadSummerCampScenario(ctx context.Context, store *sqlite.Store) error {
	const ev = "summer-camp-2025"
	s := &seed{ctx: ctx, store: store}

	s.event(ev, "Summer Camp 2025", date(2025, time.July, 20), date(2025, time.July, 27))
	s.ruleset(factory.SummerCampJSON("rs-summer-camp-2025", ev, "2025-01-01", "2025-12-31"))

	s.role(ev, "role-leader", "Leader", "Group leader")
	s.role(ev, "role-kitchen", "Kitchen", "Kitchen team")
	s.role(ev, "role-helper", "Helper", "Camp helper")

	s.family(ev, "fam-berg", "Berg")
	s.family(ev, "fam-lund", "Lund")

	withRole := func(p pricing.Participant, role string) pricing.Participant {
		p.RoleID = pricing.RoleID(role)
		return p
	}
	inFamily := func(p pricing.Participant, family string) pricing.Participant {
		p.FamilyID = pricing.FamilyID(family)
		return p
	}

	// Staff
	s.participant(withRole(person(ev, "p-maria", "Maria", "Berg", date(1985, time.March, 12)), "role-leader"))
	s.participant(withRole(person(ev, "p-jonas", "Jonas", "Hansen", date(1998, time.August, 1)), "role-leader"))
	s.participant(withRole(person(ev, "p-eva", "Eva", "Lund", date(1970, time.January, 15)), "role-kitchen"))
	s.participant(withRole(person(ev, "p-tom", "Tom", "Fischer", date(2006, time.May, 5)), "role-helper"))

	// Siblings: positions 1, 2, 3 (0%, 10%, 20%)
	s.participant(inFamily(person(ev, "p-lena", "Lena", "Berg", date(2011, time.April, 2)), "fam-berg"))
	s.participant(inFamily(person(ev, "p-paul", "Paul", "Berg", date(2013, time.September, 10)), "fam-berg"))
	s.participant(inFamily(person(ev, "p-mia", "Mia", "Berg", date(2016, time.June, 30)), "fam-berg"))

	// Second child under 6: 10% of a zero base price
	s.participant(inFamily(person(ev, "p-noah", "Noah", "Lund", date(2014, time.February, 14)), "fam-lund"))
	s.participant(inFamily(person(ev, "p-ella", "Ella", "Lund", date(2021, time.March, 3)), "fam-lund"))

	sophie := person(ev, "p-sophie", "Sophie", "Wagner", date(2012, time.November, 11))
	manual := amount("90")
	sophie.ManualPriceOverride = &manual
	s.participant(sophie)

	leon := person(ev, "p-leon", "Leon", "Wolf", date(2010, time.January, 20))
	leon.IsActive = false
	s.participant(leon)

	// Ledger
	s.payment(pricing.Payment{ID: "pay-maria", EventID: ev, ParticipantID: "p-maria", Amount: amount("120"), Date: date(2025, time.May, 2), Method: "transfer", Reference: "SC25-001"})
	s.payment(pricing.Payment{ID: "pay-jonas", EventID: ev, ParticipantID: "p-jonas", Amount: amount("120"), Date: date(2025, time.May, 5), Method: "transfer", Reference: "SC25-002"})
	s.payment(pricing.Payment{ID: "pay-tom", EventID: ev, ParticipantID: "p-tom", Amount: amount("100"), Date: date(2025, time.June, 1), Method: "cash", Notes: "first instalment"})
	s.payment(pricing.Payment{ID: "pay-berg", EventID: ev, ParticipantID: "p-lena", FamilyID: "fam-berg", Amount: amount("486"), Date: date(2025, time.June, 3), Method: "transfer", Reference: "SC25-BERG"})
	s.payment(pricing.Payment{ID: "pay-noah", EventID: ev, ParticipantID: "p-noah", FamilyID: "fam-lund", Amount: amount("180"), Date: date(2025, time.June, 10), Method: "transfer", Reference: "SC25-LUND"})
	s.payment(pricing.Payment{ID: "pay-sophie", EventID: ev, ParticipantID: "p-sophie", Amount: amount("90"), Date: date(2025, time.June, 12), Method: "cash"})

	s.income(pricing.Income{ID: "inc-grant", EventID: ev, Name: "Youth council grant", Description: "Leader and sibling subsidies, first tranche", Amount: amount("200"), Date: date(2025, time.June, 20)})

	s.expense(pricing.Expense{ID: "exp-site", EventID: ev, Title: "Campsite rent", Category: "accommodation", Amount: amount("800"), Date: date(2025, time.April, 15), IsSettled: true})
	s.expense(pricing.Expense{ID: "exp-food", EventID: ev, Title: "Groceries", Category: "food", Amount: amount("420.50"), Date: date(2025, time.July, 18), IsSettled: true})
	s.expense(pricing.Expense{ID: "exp-bus", EventID: ev, Title: "Coach hire", Category: "travel", Amount: amount("310"), Date: date(2025, time.July, 19)})
	s.expense(pricing.Expense{ID: "exp-aid", EventID: ev, Title: "First aid kit", Amount: amount("35.20"), Date: date(2025, time.July, 19), IsSettled: true})

	return s.err
}

// loadWeekendRetreatScenario seeds a flat fee retreat whose settled
// expenses exceed the payments received (actual balance -230, critical).
func loadWeekendRetreatScenario(ctx context.Context, store *sqlite.Store) error {
	const ev = "weekend-retreat-2025"
	s := &seed{ctx: ctx, store: store}

	s.event(ev, "Weekend Retreat", date(2025, time.October, 3), date(2025, time.October, 5))
	s.ruleset(factory.FlatFeeJSON("rs-retreat-2025", ev, "2025-09-01", "2025-10-31", 85))

	s.participant(person(ev, "r-anna", "Anna", "Schmidt", date(1990, time.June, 1)))
	s.participant(person(ev, "r-ben", "Ben", "Koch", date(1988, time.February, 29)))
	s.participant(person(ev, "r-clara", "Clara", "Neumann", date(2001, time.December, 24)))
	s.participant(person(ev, "r-david", "David", "Braun", date(2009, time.March, 3)))

	s.payment(pricing.Payment{ID: "pay-anna", EventID: ev, ParticipantID: "r-anna", Amount: amount("85"), Date: date(2025, time.September, 10), Method: "transfer"})
	s.payment(pricing.Payment{ID: "pay-ben", EventID: ev, ParticipantID: "r-ben", Amount: amount("85"), Date: date(2025, time.September, 12), Method: "transfer"})

	s.expense(pricing.Expense{ID: "exp-house", EventID: ev, Title: "Guest house deposit", Category: "accommodation", Amount: amount("400"), Date: date(2025, time.September, 1), IsSettled: true})

	return s.err
}

// loadNoRulesetScenario seeds an event before its pricing is configured.
func loadNoRulesetScenario(ctx context.Context, store *sqlite.Store) error {
	const ev = "planning-2026"
	s := &seed{ctx: ctx, store: store}

	s.event(ev, "Planning Weekend 2026", date(2026, time.March, 13), date(2026, time.March, 15))

	s.participant(person(ev, "n-lisa", "Lisa", "Hoffmann", date(1995, time.July, 7)))
	guest := person(ev, "n-max", "Max", "Richter", date(1993, time.May, 19))
	fixed := amount("50")
	guest.ManualPriceOverride = &fixed
	s.participant(guest)

	return s.err
}
