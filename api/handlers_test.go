/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Cash status, subsidies and participant prices over the summer camp scenario
- Subsidy and history exports (CSV, JSON)
- History filters and their validation
- Ruleset upload and error mapping (400 / 404)
- Prometheus metrics endpoint
*/
package api

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/event-pricing/factory"
)

const campURL = "/api/events/summer-camp-2025"

func setupTestServer(t *testing.T) (*Handler, http.Handler) {
	h := setupTestHandler(t)
	require.NoError(t, h.LoadScenarioByID(context.Background(), "summer-camp"))
	return h, NewRouter(h, nil)
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

// =============================================================================
// CASH STATUS
// =============================================================================

func TestGetCashStatus(t *testing.T) {
	// GIVEN: The summer camp scenario
	_, router := setupTestServer(t)

	// WHEN: Requesting the cash status
	rec := doRequest(t, router, http.MethodGet, campURL+"/cash-status", "")

	// THEN: Money is serialized as decimal strings
	require.Equal(t, http.StatusOK, rec.Code)
	var dto map[string]any
	decodeJSON(t, rec, &dto)

	assert.Equal(t, "1620", dto["total_expected_income"])
	assert.Equal(t, "1176", dto["expected_income_participants"])
	assert.Equal(t, "354", dto["total_expected_subsidies"])
	assert.Equal(t, "40.3", dto["actual_balance"])
	assert.Equal(t, map[string]any{"code": "tight", "color": "yellow"}, dto["status"])

	categories := dto["expense_categories"].([]any)
	require.Len(t, categories, 4)
	assert.Equal(t, "accommodation", categories[0].(map[string]any)["name"])
}

func TestGetCashStatus_UnknownEventIsZero(t *testing.T) {
	_, router := setupTestServer(t)

	rec := doRequest(t, router, http.MethodGet, "/api/events/nope/cash-status", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var dto CashStatusDTO
	decodeJSON(t, rec, &dto)
	assert.True(t, dto.ExpectedIncome.IsZero())
	assert.Equal(t, 0, dto.ParticipantCount)
}

// =============================================================================
// SUBSIDIES
// =============================================================================

func TestGetSubsidies(t *testing.T) {
	_, router := setupTestServer(t)

	rec := doRequest(t, router, http.MethodGet, campURL+"/subsidies", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var dto SubsidyOverviewDTO
	decodeJSON(t, rec, &dto)

	assert.Equal(t, "rs-summer-camp-2025", dto.RulesetID)
	assert.Equal(t, "354", dto.GrandTotal.String())
	require.Len(t, dto.Roles, 2)
	assert.Equal(t, "Camp helper", dto.Roles[0].DisplayName)
	require.NotNil(t, dto.Family)
	assert.Equal(t, "Mia Berg", dto.Family.Participants[0].Name)
	assert.Equal(t, 3, dto.Family.Participants[0].ChildPosition)
	assert.Equal(t, "Berg", dto.Family.Participants[0].FamilyName)
}

func TestExportSubsidies_RoleCSV(t *testing.T) {
	// GIVEN: The leader role group
	_, router := setupTestServer(t)

	// WHEN: Exporting it as CSV
	rec := doRequest(t, router, http.MethodGet, campURL+"/subsidies/export?type=role&role_id=role-leader", "")

	// THEN: A semicolon CSV with BOM, two lines and a totals row
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "subsidies_leader_summer-camp-2025.csv")

	body := rec.Body.Bytes()
	require.True(t, bytes.HasPrefix(body, []byte{0xEF, 0xBB, 0xBF}))
	r := csv.NewReader(bytes.NewReader(body[3:]))
	r.Comma = ';'
	records, err := r.ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 4)
	assert.Equal(t, []string{"name", "birth_date", "age", "base_price", "subsidy"}, records[0])
	assert.Equal(t, []string{"Total", "", "", "480.00", "240.00"}, records[3])
}

func TestExportSubsidies_FamilyJSON(t *testing.T) {
	_, router := setupTestServer(t)

	rec := doRequest(t, router, http.MethodGet, campURL+"/subsidies/export?type=family&format=json", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var table struct {
		Rows   [][]string `json:"rows"`
		Footer []string   `json:"footer"`
	}
	decodeJSON(t, rec, &table)
	assert.Len(t, table.Rows, 2)
	assert.Equal(t, "54.00", table.Footer[len(table.Footer)-1])
}

func TestExportSubsidies_Errors(t *testing.T) {
	_, router := setupTestServer(t)

	tests := []struct {
		name   string
		query  string
		status int
	}{
		{"missing role id", "?type=role", http.StatusBadRequest},
		{"unknown role", "?type=role&role_id=role-ghost", http.StatusNotFound},
		{"role without subsidy", "?type=role&role_id=role-kitchen", http.StatusNotFound},
		{"unknown type", "?type=everyone", http.StatusBadRequest},
		{"unknown format", "?type=family&format=xlsx", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodGet, campURL+"/subsidies/export"+tt.query, "")
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())

			var resp ErrorResponse
			decodeJSON(t, rec, &resp)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

// =============================================================================
// HISTORY
// =============================================================================

func TestGetHistory_Filters(t *testing.T) {
	_, router := setupTestServer(t)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"all", "", []string{"exp-bus", "exp-aid", "exp-food", "inc-grant", "pay-sophie", "pay-noah", "pay-berg", "pay-tom", "pay-jonas", "pay-maria", "exp-site"}},
		{"expenses in july", "?type=expense&date_from=2025-07-01&date_to=2025-07-31", []string{"exp-bus", "exp-aid", "exp-food"}},
		{"amount range", "?min_amount=300&max_amount=500", []string{"exp-bus", "exp-food", "pay-berg"}},
		{"search family", "?search=lund", []string{"pay-noah"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodGet, campURL+"/history"+tt.query, "")
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var dto HistoryDTO
			decodeJSON(t, rec, &dto)
			var ids []string
			for _, tx := range dto.Transactions {
				ids = append(ids, tx.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestGetHistory_RunningBalanceAndTotals(t *testing.T) {
	_, router := setupTestServer(t)

	rec := doRequest(t, router, http.MethodGet, campURL+"/history", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var dto HistoryDTO
	decodeJSON(t, rec, &dto)

	assert.Equal(t, "1296", dto.TotalIncome.String())
	assert.Equal(t, "1565.7", dto.TotalExpenses.String())
	assert.Equal(t, "-269.7", dto.Net.String())
	assert.Equal(t, "-269.7", dto.Transactions[0].RunningBalance.String(), "newest carries the final balance")
	assert.Equal(t, "-800", dto.Transactions[len(dto.Transactions)-1].RunningBalance.String())
}

func TestGetHistory_InvalidFilters(t *testing.T) {
	_, router := setupTestServer(t)

	for _, q := range []string{
		"?date_from=01.07.2025",
		"?date_from=2025-07-31&date_to=2025-07-01",
		"?type=refund",
		"?min_amount=abc",
		"?min_amount=50&max_amount=10",
	} {
		rec := doRequest(t, router, http.MethodGet, campURL+"/history"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestExportHistory_CSV(t *testing.T) {
	_, router := setupTestServer(t)

	rec := doRequest(t, router, http.MethodGet, campURL+"/history/export?type=payment", "")
	require.Equal(t, http.StatusOK, rec.Code)

	r := csv.NewReader(bytes.NewReader(rec.Body.Bytes()[3:]))
	r.Comma = ';'
	records, err := r.ReadAll()
	require.NoError(t, err)

	// header + 6 payments + totals
	require.Len(t, records, 8)
	assert.Equal(t, "2025-05-02", records[1][0], "oldest first")
	assert.Equal(t, "Maria Berg", records[1][9])
	assert.Equal(t, "1096.00", records[6][5])
}

// =============================================================================
// PARTICIPANT PRICING
// =============================================================================

func TestListParticipantPrices(t *testing.T) {
	_, router := setupTestServer(t)

	rec := doRequest(t, router, http.MethodGet, campURL+"/participants/prices?family_id=fam-berg", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var dto ParticipantPricesDTO
	decodeJSON(t, rec, &dto)
	require.Len(t, dto.Participants, 3)
	assert.Equal(t, "540", dto.TotalBasePrice.String())
	assert.Equal(t, "54", dto.ExpectedSubsidies.String())
	assert.Equal(t, "486", dto.ExpectedParticipantIncome.String())

	rec = doRequest(t, router, http.MethodGet, campURL+"/participants/prices?without_override=maybe", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetParticipantPrice(t *testing.T) {
	_, router := setupTestServer(t)

	rec := doRequest(t, router, http.MethodGet, campURL+"/participants/p-mia/price", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var dto PricingResultDTO
	decodeJSON(t, rec, &dto)
	assert.Equal(t, 9, dto.Age)
	assert.Equal(t, "180", dto.BasePrice.String())
	assert.Equal(t, "36", dto.FamilyDiscount.String())
	assert.Equal(t, 3, dto.ChildPosition)
	assert.Equal(t, "144", dto.FinalPrice.String())
	assert.True(t, dto.SubsidyEligible)

	rec = doRequest(t, router, http.MethodGet, campURL+"/participants/p-ghost/price", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// RULESETS
// =============================================================================

func TestCreateRuleset(t *testing.T) {
	_, router := setupTestServer(t)

	// GIVEN: A flat fee ruleset valid only in July, replacing nothing
	doc := factory.FlatFeeJSON("rs-july", "summer-camp-2025", "2025-07-01", "2025-07-31", 99)

	// WHEN: It is uploaded
	rec := doRequest(t, router, http.MethodPost, "/api/rulesets", doc)

	// THEN: It is stored and listed
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var dto RulesetDTO
	decodeJSON(t, rec, &dto)
	assert.Equal(t, "rs-july", dto.ID)
	assert.Equal(t, "2025-07-31", dto.Config.ValidUntil)

	rec = doRequest(t, router, http.MethodGet, campURL+"/rulesets", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []RulesetDTO
	decodeJSON(t, rec, &list)
	assert.Len(t, list, 2)
}

func TestCreateRuleset_Invalid(t *testing.T) {
	_, router := setupTestServer(t)

	tests := map[string]string{
		"malformed":     `{"event_id": `,
		"unknown event": factory.FlatFeeJSON("rs-x", "ghost", "2025-01-01", "2025-12-31", 10),
		"bad percent": `{"event_id": "summer-camp-2025", "valid_from": "2025-01-01", "valid_until": "2025-12-31",
			"role_discounts": {"leader": {"discount_percent": 150}}}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodPost, "/api/rulesets", doc)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

// =============================================================================
// EVENTS, SCENARIOS, METRICS
// =============================================================================

func TestListEventsAndScenarios(t *testing.T) {
	_, router := setupTestServer(t)

	rec := doRequest(t, router, http.MethodGet, "/api/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var events []EventDTO
	decodeJSON(t, rec, &events)
	require.Len(t, events, 1)
	assert.Equal(t, "2025-07-20", events[0].StartDate)

	rec = doRequest(t, router, http.MethodGet, "/api/scenarios/current", "")
	var current ScenarioDTO
	decodeJSON(t, rec, &current)
	assert.Equal(t, "summer-camp", current.ID)

	rec = doRequest(t, router, http.MethodPost, "/api/scenarios/load", `{"scenario_id": "no-ruleset"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/api/scenarios/load", `{"scenario_id": "nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	_, router := setupTestServer(t)

	doRequest(t, router, http.MethodGet, campURL+"/cash-status", "")
	rec := doRequest(t, router, http.MethodGet, "/metrics", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `event_pricing_computations_total{kind="cash_status",outcome="ok"} 1`)
	assert.Contains(t, body, `event_pricing_actual_balance{event_id="summer-camp-2025",status="tight"} 40.3`)
	assert.Contains(t, body, `route="/api/events/{eventID}/cash-status"`)
}
