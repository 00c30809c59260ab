/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine records from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Amounts are decimal.Decimal, which marshals as a JSON string ("12.50").
  Clients never see binary floating point.

TYPES:
  Events:         EventDTO
  Cash status:    CashStatusDTO, CategoryDTO, StatusDTO
  Subsidies:      SubsidyOverviewDTO, RoleSubsidyDTO, FamilySubsidyDTO, SubsidyLineDTO
  Pricing:        PricingResultDTO, ParticipantPricesDTO
  History:        HistoryDTO, TransactionDTO
  Rulesets:       RulesetDTO (wraps factory.RulesetJSON)
  Scenarios:      ScenarioDTO, LoadScenarioRequest

SEE ALSO:
  - handlers.go: Uses these types
  - factory/ruleset.go: RulesetJSON type
*/
package api

import (
	"github.com/shopspring/decimal"
	"github.com/warp/event-pricing/factory"
	"github.com/warp/event-pricing/pricing"
	"github.com/warp/event-pricing/reconcile"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// EventDTO represents an event in API responses.
type EventDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// StatusDTO is the qualitative cash position.
type StatusDTO struct {
	Code  string `json:"code"`
	Color string `json:"color"`
}

// CategoryDTO is one category total.
type CategoryDTO struct {
	Name  string          `json:"name"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

// CashStatusDTO is the expected-vs-actual reconciliation of an event.
type CashStatusDTO struct {
	EventID          string `json:"event_id"`
	ParticipantCount int    `json:"participant_count"`

	TotalBasePrice            decimal.Decimal `json:"total_base_price"`
	ExpectedIncome            decimal.Decimal `json:"total_expected_income"`
	ExpectedParticipantIncome decimal.Decimal `json:"expected_income_participants"`
	ExpectedSubsidies         decimal.Decimal `json:"total_expected_subsidies"`
	NonSubsidyDiscount        decimal.Decimal `json:"non_subsidy_discount"`

	ParticipantPayments decimal.Decimal `json:"participant_payments"`
	OtherIncome         decimal.Decimal `json:"other_income"`
	SettledExpenses     decimal.Decimal `json:"settled_expenses"`
	TotalExpenses       decimal.Decimal `json:"total_expenses"`

	ExpectedBalance   decimal.Decimal `json:"expected_balance"`
	ActualBalance     decimal.Decimal `json:"actual_balance"`
	BalanceDifference decimal.Decimal `json:"balance_difference"`

	OutstandingParticipantIncome decimal.Decimal `json:"outstanding_participant_income"`
	OutstandingOtherIncome       decimal.Decimal `json:"outstanding_other_income"`
	OutstandingExpenses          decimal.Decimal `json:"outstanding_expenses"`

	Status            StatusDTO     `json:"status"`
	ExpenseCategories []CategoryDTO `json:"expense_categories"`
}

// SubsidyLineDTO is one participant in a subsidy list.
type SubsidyLineDTO struct {
	ParticipantID string          `json:"participant_id"`
	Name          string          `json:"name"`
	BirthDate     string          `json:"birth_date"`
	Age           int             `json:"age"`
	FamilyName    string          `json:"family_name,omitempty"`
	ChildPosition int             `json:"child_position,omitempty"`
	BasePrice     decimal.Decimal `json:"base_price"`
	SubsidyAmount decimal.Decimal `json:"subsidy_amount"`
}

// RoleSubsidyDTO is the subsidy list of one role.
type RoleSubsidyDTO struct {
	RoleID          string           `json:"role_id"`
	RoleName        string           `json:"role_name"`
	DisplayName     string           `json:"display_name,omitempty"`
	DiscountPercent decimal.Decimal  `json:"discount_percent"`
	Participants    []SubsidyLineDTO `json:"participants"`
	TotalBasePrice  decimal.Decimal  `json:"total_base_price"`
	TotalSubsidy    decimal.Decimal  `json:"total_subsidy"`
}

// FamilySubsidyDTO is the family discount list.
type FamilySubsidyDTO struct {
	Participants   []SubsidyLineDTO `json:"participants"`
	TotalBasePrice decimal.Decimal  `json:"total_base_price"`
	TotalSubsidy   decimal.Decimal  `json:"total_subsidy"`
}

// SubsidyOverviewDTO groups every expected subsidy of an event.
type SubsidyOverviewDTO struct {
	EventID    string            `json:"event_id"`
	RulesetID  string            `json:"ruleset_id,omitempty"`
	Roles      []RoleSubsidyDTO  `json:"roles"`
	Family     *FamilySubsidyDTO `json:"family,omitempty"`
	GrandTotal decimal.Decimal   `json:"grand_total"`
}

// PricingResultDTO is the price breakdown of one participant.
type PricingResultDTO struct {
	ParticipantID string `json:"participant_id"`
	Name          string `json:"name"`
	Age           int    `json:"age"`

	BasePrice        decimal.Decimal  `json:"base_price"`
	RoleDiscount     decimal.Decimal  `json:"role_discount"`
	RoleDiscountRole string           `json:"role_discount_role,omitempty"`
	FamilyDiscount   decimal.Decimal  `json:"family_discount"`
	ChildPosition    int              `json:"child_position,omitempty"`
	SubsidyAmount    decimal.Decimal  `json:"subsidy_amount"`
	SubsidyEligible  bool             `json:"subsidy_eligible"`
	ManualOverride   *decimal.Decimal `json:"manual_price_override,omitempty"`
	FinalPrice       decimal.Decimal  `json:"final_price"`
}

// ParticipantPricesDTO lists the priced participants with the cohort totals.
type ParticipantPricesDTO struct {
	EventID      string             `json:"event_id"`
	Participants []PricingResultDTO `json:"participants"`

	TotalBasePrice            decimal.Decimal `json:"total_base_price"`
	ExpectedIncome            decimal.Decimal `json:"total_expected_income"`
	ExpectedParticipantIncome decimal.Decimal `json:"expected_income_participants"`
	ExpectedSubsidies         decimal.Decimal `json:"total_expected_subsidies"`
}

// TransactionDTO is one entry in the transaction history.
type TransactionDTO struct {
	ID             string          `json:"id"`
	Type           string          `json:"type"`
	Date           string          `json:"date"`
	Amount         decimal.Decimal `json:"amount"`
	IsIncome       bool            `json:"is_income"`
	Category       string          `json:"category,omitempty"`
	Reference      string          `json:"reference,omitempty"`
	Description    string          `json:"description,omitempty"`
	ParticipantID  string          `json:"participant_id,omitempty"`
	Participant    string          `json:"participant_name,omitempty"`
	Family         string          `json:"family_name,omitempty"`
	RunningBalance decimal.Decimal `json:"running_balance"`
}

// HistoryDTO is the filtered transaction history.
type HistoryDTO struct {
	EventID           string           `json:"event_id"`
	Transactions      []TransactionDTO `json:"transactions"`
	TotalIncome       decimal.Decimal  `json:"total_income"`
	TotalExpenses     decimal.Decimal  `json:"total_expenses"`
	Net               decimal.Decimal  `json:"net"`
	IncomeCategories  []CategoryDTO    `json:"income_categories"`
	ExpenseCategories []CategoryDTO    `json:"expense_categories"`
}

// RulesetDTO represents a stored ruleset.
type RulesetDTO struct {
	ID     string              `json:"id"`
	Config factory.RulesetJSON `json:"config"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects the scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toEventDTO(e pricing.Event) EventDTO {
	return EventDTO{
		ID:        string(e.ID),
		Name:      e.Name,
		StartDate: e.StartDate.String(),
		EndDate:   e.EndDate.String(),
	}
}

func toCategoryDTOs(cats []reconcile.Category) []CategoryDTO {
	dtos := make([]CategoryDTO, len(cats))
	for i, c := range cats {
		dtos[i] = CategoryDTO{Name: c.Name, Total: c.Total, Count: c.Count}
	}
	return dtos
}

func toCashStatusDTO(s reconcile.Summary) CashStatusDTO {
	return CashStatusDTO{
		EventID:                      string(s.EventID),
		ParticipantCount:             s.ParticipantCount,
		TotalBasePrice:               s.TotalBasePrice,
		ExpectedIncome:               s.ExpectedIncome,
		ExpectedParticipantIncome:    s.ExpectedParticipantIncome,
		ExpectedSubsidies:            s.ExpectedSubsidies,
		NonSubsidyDiscount:           s.NonSubsidyDiscount,
		ParticipantPayments:          s.ParticipantPayments,
		OtherIncome:                  s.OtherIncome,
		SettledExpenses:              s.SettledExpenses,
		TotalExpenses:                s.TotalExpenses,
		ExpectedBalance:              s.ExpectedBalance,
		ActualBalance:                s.ActualBalance,
		BalanceDifference:            s.BalanceDifference,
		OutstandingParticipantIncome: s.OutstandingParticipantIncome,
		OutstandingOtherIncome:       s.OutstandingOtherIncome,
		OutstandingExpenses:          s.OutstandingExpenses,
		Status:                       StatusDTO{Code: string(s.Status.Code), Color: s.Status.Color},
		ExpenseCategories:            toCategoryDTOs(s.ExpenseCategories),
	}
}

func toSubsidyLineDTOs(lines []pricing.SubsidyLine) []SubsidyLineDTO {
	dtos := make([]SubsidyLineDTO, len(lines))
	for i, l := range lines {
		dtos[i] = SubsidyLineDTO{
			ParticipantID: string(l.ParticipantID),
			Name:          l.Name,
			BirthDate:     l.BirthDate.String(),
			Age:           l.Age,
			FamilyName:    l.FamilyName,
			ChildPosition: l.ChildPosition,
			BasePrice:     pricing.RoundTotal(l.BasePrice),
			SubsidyAmount: pricing.RoundTotal(l.SubsidyAmount),
		}
	}
	return dtos
}

func toSubsidyOverviewDTO(c *pricing.Cohort, o pricing.SubsidyOverview) SubsidyOverviewDTO {
	dto := SubsidyOverviewDTO{
		EventID:    string(o.EventID),
		Roles:      make([]RoleSubsidyDTO, len(o.Roles)),
		GrandTotal: o.GrandTotal,
	}
	if c.Ruleset != nil {
		dto.RulesetID = string(c.Ruleset.ID)
	}
	for i, g := range o.Roles {
		dto.Roles[i] = RoleSubsidyDTO{
			RoleID:          string(g.RoleID),
			RoleName:        g.RoleName,
			DisplayName:     g.DisplayName,
			DiscountPercent: g.DiscountPercent,
			Participants:    toSubsidyLineDTOs(g.Lines),
			TotalBasePrice:  g.TotalBasePrice,
			TotalSubsidy:    g.TotalSubsidy,
		}
	}
	if o.Family != nil {
		dto.Family = &FamilySubsidyDTO{
			Participants:   toSubsidyLineDTOs(o.Family.Lines),
			TotalBasePrice: o.Family.TotalBasePrice,
			TotalSubsidy:   o.Family.TotalSubsidy,
		}
	}
	return dto
}

func toPricingResultDTO(r pricing.PricingResult) PricingResultDTO {
	dto := PricingResultDTO{
		ParticipantID:   string(r.ParticipantID),
		Name:            r.Name,
		Age:             r.Age,
		BasePrice:       pricing.RoundTotal(r.BasePrice),
		RoleDiscount:    pricing.RoundTotal(r.RoleDiscountAmount()),
		FamilyDiscount:  pricing.RoundTotal(r.FamilyDiscountAmount()),
		SubsidyAmount:   pricing.RoundTotal(r.SubsidyAmount()),
		SubsidyEligible: r.SubsidyEligible(),
		ManualOverride:  r.ManualOverride,
		FinalPrice:      pricing.RoundTotal(r.FinalPrice),
	}
	if r.Role != nil {
		dto.RoleDiscountRole = r.Role.RoleName
	}
	if r.Family != nil {
		dto.ChildPosition = r.Family.ChildPosition
	}
	return dto
}

func toHistoryDTO(h reconcile.History) HistoryDTO {
	dto := HistoryDTO{
		EventID:           string(h.EventID),
		Transactions:      make([]TransactionDTO, len(h.Transactions)),
		TotalIncome:       h.TotalIncome,
		TotalExpenses:     h.TotalExpenses,
		Net:               h.Net,
		IncomeCategories:  toCategoryDTOs(h.IncomeCategories),
		ExpenseCategories: toCategoryDTOs(h.ExpenseCategories),
	}
	for i, t := range h.Transactions {
		dto.Transactions[i] = TransactionDTO{
			ID:             t.ID,
			Type:           string(t.Type),
			Date:           t.Date.String(),
			Amount:         t.Amount,
			IsIncome:       t.IsIncome(),
			Category:       t.Category,
			Reference:      t.Reference,
			Description:    t.Description,
			ParticipantID:  string(t.ParticipantID),
			Participant:    t.Participant,
			Family:         t.Family,
			RunningBalance: t.RunningBalance,
		}
	}
	return dto
}
