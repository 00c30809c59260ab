/*
handlers.go - HTTP API handlers for the event pricing engine

PURPOSE:
  Exposes the pricing and reconciliation engines via REST API. Handles
  HTTP request/response and JSON serialization, and delegates every number
  to the engines. No handler computes a price or a total itself.

ENDPOINTS:
  Events:
    GET    /api/events                                         List events
    GET    /api/events/{eventID}/rulesets                      List rulesets

  Cash status:
    GET    /api/events/{eventID}/cash-status                   Expected vs actual

  Subsidies:
    GET    /api/events/{eventID}/subsidies                     Subsidy overview
    GET    /api/events/{eventID}/subsidies/export              ?type=role|family&role_id=&format=csv|json

  History:
    GET    /api/events/{eventID}/history                       ?date_from=&date_to=&type=&min_amount=&max_amount=&search=
    GET    /api/events/{eventID}/history/export                Same filters + format

  Pricing:
    GET    /api/events/{eventID}/participants/prices           ?role_id=&family_id=&without_override=true
    GET    /api/events/{eventID}/participants/{participantID}/price

  Rulesets:
    POST   /api/rulesets                                       Store a ruleset document

ERROR HANDLING:
  Errors are returned as JSON {"error", "details"} with:
  - 400: Invalid input (pricing.ErrInvalidInput)
  - 404: Record not found (pricing.IsNotFound)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/warp/event-pricing/factory"
	"github.com/warp/event-pricing/pricing"
	"github.com/warp/event-pricing/reconcile"
	"github.com/warp/event-pricing/report"
	"github.com/warp/event-pricing/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    *sqlite.Store
	Rulesets *factory.RulesetFactory
	Metrics  *Metrics

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store) *Handler {
	return &Handler{
		Store:    store,
		Rulesets: factory.NewRulesetFactory(),
		Metrics:  NewMetrics(),
	}
}

func eventIDParam(r *http.Request) pricing.EventID {
	return pricing.EventID(chi.URLParam(r, "eventID"))
}

// =============================================================================
// EVENTS
// =============================================================================

// ListEvents returns all events, most recent first.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.Store.ListEvents(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list events", err)
		return
	}

	dtos := make([]EventDTO, len(events))
	for i, e := range events {
		dtos[i] = toEventDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListRulesets returns every ruleset of an event, active or not.
func (h *Handler) ListRulesets(w http.ResponseWriter, r *http.Request) {
	rulesets, err := h.Store.ListRulesets(r.Context(), eventIDParam(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rulesets", err)
		return
	}

	dtos := make([]RulesetDTO, len(rulesets))
	for i := range rulesets {
		dtos[i] = RulesetDTO{ID: string(rulesets[i].ID), Config: h.Rulesets.ToJSON(&rulesets[i])}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateRuleset validates and stores a ruleset document. The body is the
// ruleset JSON itself.
func (h *Handler) CreateRuleset(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body", err)
		return
	}

	rs, err := h.Store.SaveRulesetJSON(r.Context(), string(body))
	if err != nil {
		handleError(w, "Failed to save ruleset", err)
		return
	}

	slog.Info("ruleset stored", "ruleset_id", rs.ID, "event_id", rs.EventID, "active", rs.IsActive)
	writeJSON(w, http.StatusCreated, RulesetDTO{ID: string(rs.ID), Config: h.Rulesets.ToJSON(rs)})
}

// =============================================================================
// CASH STATUS
// =============================================================================

// GetCashStatus returns the expected-vs-actual reconciliation of an event.
func (h *Handler) GetCashStatus(w http.ResponseWriter, r *http.Request) {
	eventID := eventIDParam(r)

	summary, err := reconcile.CashStatus(r.Context(), h.Store, eventID)
	h.Metrics.observeComputation("cash_status", err)
	if err != nil {
		handleError(w, "Failed to compute cash status", err)
		return
	}

	balance, _ := summary.ActualBalance.Float64()
	h.Metrics.setActualBalance(string(eventID), string(summary.Status.Code), balance)
	writeJSON(w, http.StatusOK, toCashStatusDTO(summary))
}

// =============================================================================
// SUBSIDIES
// =============================================================================

// GetSubsidies returns the subsidy overview of an event.
func (h *Handler) GetSubsidies(w http.ResponseWriter, r *http.Request) {
	cohort, overview, err := pricing.LoadSubsidies(r.Context(), h.Store, eventIDParam(r))
	h.Metrics.observeComputation("subsidies", err)
	if err != nil {
		handleError(w, "Failed to compute subsidies", err)
		return
	}
	writeJSON(w, http.StatusOK, toSubsidyOverviewDTO(cohort, overview))
}

// ExportSubsidies writes one subsidy list (a role group or the family
// group) as a file.
func (h *Handler) ExportSubsidies(w http.ResponseWriter, r *http.Request) {
	eventID := eventIDParam(r)
	q := r.URL.Query()

	writer, err := report.WriterFor(q.Get("format"))
	if err != nil {
		handleError(w, "Unsupported export format", err)
		return
	}

	var table report.Table
	var prefix string
	switch kind := q.Get("type"); kind {
	case "role":
		roleID := pricing.RoleID(q.Get("role_id"))
		if roleID == "" {
			handleError(w, "Missing role", &pricing.InputError{Field: "role_id", Reason: "required for type=role"})
			return
		}
		_, overview, err := pricing.LoadSubsidies(r.Context(), h.Store, eventID)
		h.Metrics.observeComputation("subsidies", err)
		if err != nil {
			handleError(w, "Failed to compute subsidies", err)
			return
		}
		group, err := overview.RoleGroup(roleID)
		if err != nil {
			handleError(w, "Role has no subsidy list", fmt.Errorf("role %s: %w", roleID, err))
			return
		}
		table = report.RoleSubsidyTable(group)
		prefix = "subsidies_" + strings.ToLower(group.RoleName)
	case "family":
		_, overview, err := pricing.LoadSubsidies(r.Context(), h.Store, eventID)
		h.Metrics.observeComputation("subsidies", err)
		if err != nil {
			handleError(w, "Failed to compute subsidies", err)
			return
		}
		table = report.FamilySubsidyTable(overview.Family)
		prefix = "subsidies_family"
	default:
		handleError(w, "Unknown subsidy type", &pricing.InputError{Field: "type", Value: kind, Reason: "expected role or family"})
		return
	}

	writeFile(w, writer, report.Filename(prefix, eventID, writer), table)
}

// =============================================================================
// TRANSACTION HISTORY
// =============================================================================

// GetHistory returns the filtered transaction history, newest first.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	filter, err := parseHistoryFilter(r)
	if err != nil {
		handleError(w, "Invalid filter", err)
		return
	}

	history, err := reconcile.LoadHistory(r.Context(), h.Store, eventIDParam(r), filter)
	h.Metrics.observeComputation("history", err)
	if err != nil {
		handleError(w, "Failed to load history", err)
		return
	}
	writeJSON(w, http.StatusOK, toHistoryDTO(history))
}

// ExportHistory writes the filtered history oldest first as a file.
func (h *Handler) ExportHistory(w http.ResponseWriter, r *http.Request) {
	eventID := eventIDParam(r)

	writer, err := report.WriterFor(r.URL.Query().Get("format"))
	if err != nil {
		handleError(w, "Unsupported export format", err)
		return
	}
	filter, err := parseHistoryFilter(r)
	if err != nil {
		handleError(w, "Invalid filter", err)
		return
	}

	history, err := reconcile.LoadHistory(r.Context(), h.Store, eventID, filter)
	h.Metrics.observeComputation("history", err)
	if err != nil {
		handleError(w, "Failed to load history", err)
		return
	}

	slog.Info("history exported", "event_id", eventID, "transactions", len(history.Transactions), "format", writer.Extension())
	writeFile(w, writer, report.Filename("history", eventID, writer), report.HistoryTable(history))
}

func parseHistoryFilter(r *http.Request) (reconcile.HistoryFilter, error) {
	q := r.URL.Query()
	var f reconcile.HistoryFilter
	var err error

	if f.From, err = parseDateParam(q.Get("date_from"), "date_from"); err != nil {
		return f, err
	}
	if f.Until, err = parseDateParam(q.Get("date_to"), "date_to"); err != nil {
		return f, err
	}
	if f.Type, err = reconcile.ParseTransactionType(q.Get("type")); err != nil {
		return f, err
	}
	if f.MinAmount, err = parseAmountParam(q.Get("min_amount"), "min_amount"); err != nil {
		return f, err
	}
	if f.MaxAmount, err = parseAmountParam(q.Get("max_amount"), "max_amount"); err != nil {
		return f, err
	}
	f.Search = strings.TrimSpace(q.Get("search"))
	return f, f.Validate()
}

func parseDateParam(s, field string) (pricing.Date, error) {
	if s == "" {
		return pricing.Date{}, nil
	}
	d, err := pricing.ParseDate(s)
	if err != nil {
		return pricing.Date{}, &pricing.InputError{Field: field, Value: s, Reason: "expected YYYY-MM-DD"}
	}
	return d, nil
}

func parseAmountParam(s, field string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, &pricing.InputError{Field: field, Value: s, Reason: "not a number"}
	}
	return &d, nil
}

// =============================================================================
// PARTICIPANT PRICING
// =============================================================================

// ListParticipantPrices prices the active participants that pass the
// filter and returns their breakdowns with the cohort totals.
func (h *Handler) ListParticipantPrices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := pricing.ParticipantFilter{
		RoleID:   pricing.RoleID(q.Get("role_id")),
		FamilyID: pricing.FamilyID(q.Get("family_id")),
	}
	if v := q.Get("without_override"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			handleError(w, "Invalid filter", &pricing.InputError{Field: "without_override", Value: v, Reason: "expected true or false"})
			return
		}
		filter.WithoutOverride = b
	}

	cohort, err := pricing.LoadCohort(r.Context(), h.Store, eventIDParam(r), filter)
	h.Metrics.observeComputation("cohort", err)
	if err != nil {
		handleError(w, "Failed to price participants", err)
		return
	}

	dto := ParticipantPricesDTO{
		EventID:                   string(cohort.EventID),
		Participants:              make([]PricingResultDTO, len(cohort.Results)),
		TotalBasePrice:            cohort.Totals.BasePrice,
		ExpectedIncome:            cohort.Totals.ExpectedIncome,
		ExpectedParticipantIncome: cohort.Totals.ExpectedParticipantIncome,
		ExpectedSubsidies:         cohort.Totals.ExpectedSubsidies,
	}
	for i, res := range cohort.Results {
		dto.Participants[i] = toPricingResultDTO(res)
	}
	writeJSON(w, http.StatusOK, dto)
}

// GetParticipantPrice returns the price breakdown of one participant.
func (h *Handler) GetParticipantPrice(w http.ResponseWriter, r *http.Request) {
	participantID := pricing.ParticipantID(chi.URLParam(r, "participantID"))

	result, err := pricing.PriceParticipant(r.Context(), h.Store, eventIDParam(r), participantID)
	h.Metrics.observeComputation("participant", err)
	if err != nil {
		handleError(w, "Failed to price participant", err)
		return
	}
	writeJSON(w, http.StatusOK, toPricingResultDTO(*result))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	if status >= http.StatusInternalServerError {
		slog.Error(message, "error", err)
	}
	writeJSON(w, status, resp)
}

// handleError maps engine errors to HTTP status codes.
func handleError(w http.ResponseWriter, message string, err error) {
	switch {
	case pricing.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	case pricing.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeFile(w http.ResponseWriter, writer report.Writer, filename string, table report.Table) {
	w.Header().Set("Content-Type", writer.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := writer.Write(w, table); err != nil {
		slog.Error("export failed", "file", filename, "error", err)
	}
}
