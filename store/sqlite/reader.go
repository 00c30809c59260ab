package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/event-pricing/factory"
	"github.com/warp/event-pricing/pricing"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// reader implements pricing.Store over a queryer. It takes no locks; the
// Store or the snapshot transaction around it provides isolation.
type reader struct {
	q        queryer
	rulesets *factory.RulesetFactory
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// =============================================================================
// EVENTS AND RULESETS
// =============================================================================

func (r *reader) GetEvent(ctx context.Context, id pricing.EventID) (*pricing.Event, error) {
	row := r.q.QueryRowContext(ctx, "SELECT id, name, start_date, end_date FROM events WHERE id = ?", id)
	e, err := scanEvent(row)
	if isNoRows(err) {
		return nil, nil
	}
	return e, err
}

func scanEvent(row rowScanner) (*pricing.Event, error) {
	var (
		e          pricing.Event
		start, end string
	)
	if err := row.Scan(&e.ID, &e.Name, &start, &end); err != nil {
		if isNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan event: %w", err)
	}
	var err error
	if e.StartDate, err = pricing.ParseDate(start); err != nil {
		return nil, fmt.Errorf("event %s: %w", e.ID, err)
	}
	if e.EndDate, err = pricing.ParseDate(end); err != nil {
		return nil, fmt.Errorf("event %s: %w", e.ID, err)
	}
	return &e, nil
}

func (r *reader) ListRulesets(ctx context.Context, eventID pricing.EventID) ([]pricing.Ruleset, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT id, config_json FROM rulesets WHERE event_id = ? ORDER BY valid_from, id",
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query rulesets: %w", err)
	}
	defer rows.Close()

	var rulesets []pricing.Ruleset
	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, fmt.Errorf("failed to scan ruleset: %w", err)
		}
		rs, err := r.rulesets.ParseRuleset(doc)
		if err != nil {
			return nil, fmt.Errorf("stored ruleset %s: %w", id, err)
		}
		rs.ID = pricing.RulesetID(id)
		rulesets = append(rulesets, *rs)
	}
	return rulesets, rows.Err()
}

// =============================================================================
// ROLES, FAMILIES, PARTICIPANTS
// =============================================================================

func (r *reader) ListRoles(ctx context.Context, eventID pricing.EventID) ([]pricing.Role, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT id, event_id, name, display_name, is_active FROM roles WHERE event_id = ? ORDER BY name, id",
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}
	defer rows.Close()

	var roles []pricing.Role
	for rows.Next() {
		var (
			role        pricing.Role
			displayName sql.NullString
		)
		if err := rows.Scan(&role.ID, &role.EventID, &role.Name, &displayName, &role.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		role.DisplayName = displayName.String
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (r *reader) ListFamilies(ctx context.Context, eventID pricing.EventID) ([]pricing.Family, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT id, event_id, name FROM families WHERE event_id = ? ORDER BY name, id",
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query families: %w", err)
	}
	defer rows.Close()

	var families []pricing.Family
	for rows.Next() {
		var f pricing.Family
		if err := rows.Scan(&f.ID, &f.EventID, &f.Name); err != nil {
			return nil, fmt.Errorf("failed to scan family: %w", err)
		}
		families = append(families, f)
	}
	return families, rows.Err()
}

const participantColumns = `id, event_id, first_name, last_name, birth_date, is_active, family_id, role_id, manual_price_override`

func (r *reader) GetParticipant(ctx context.Context, id pricing.ParticipantID) (*pricing.Participant, error) {
	row := r.q.QueryRowContext(ctx, "SELECT "+participantColumns+" FROM participants WHERE id = ?", id)
	p, err := scanParticipant(row)
	if isNoRows(err) {
		return nil, nil
	}
	return p, err
}

func (r *reader) ListActiveParticipants(ctx context.Context, eventID pricing.EventID, filter pricing.ParticipantFilter) ([]pricing.Participant, error) {
	where := []string{"event_id = ?", "is_active = TRUE"}
	args := []any{eventID}
	if filter.RoleID != "" {
		where = append(where, "role_id = ?")
		args = append(args, filter.RoleID)
	}
	if filter.FamilyID != "" {
		where = append(where, "family_id = ?")
		args = append(args, filter.FamilyID)
	}
	if filter.WithoutOverride {
		where = append(where, "manual_price_override IS NULL")
	}

	query := "SELECT " + participantColumns + " FROM participants WHERE " +
		strings.Join(where, " AND ") + " ORDER BY last_name, first_name, id"
	return r.queryParticipants(ctx, query, args...)
}

func (r *reader) ListFamilyMembers(ctx context.Context, familyID pricing.FamilyID, eventID pricing.EventID) ([]pricing.Participant, error) {
	query := "SELECT " + participantColumns + ` FROM participants
		WHERE family_id = ? AND event_id = ? AND is_active = TRUE
		ORDER BY birth_date, id`
	return r.queryParticipants(ctx, query, familyID, eventID)
}

func (r *reader) queryParticipants(ctx context.Context, query string, args ...any) ([]pricing.Participant, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants: %w", err)
	}
	defer rows.Close()

	var participants []pricing.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		participants = append(participants, *p)
	}
	return participants, rows.Err()
}

func scanParticipant(row rowScanner) (*pricing.Participant, error) {
	var (
		p                pricing.Participant
		birthDate        string
		familyID, roleID sql.NullString
		override         sql.NullString
	)
	err := row.Scan(&p.ID, &p.EventID, &p.FirstName, &p.LastName, &birthDate, &p.IsActive, &familyID, &roleID, &override)
	if err != nil {
		if isNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan participant: %w", err)
	}

	if p.BirthDate, err = pricing.ParseDate(birthDate); err != nil {
		return nil, fmt.Errorf("participant %s: %w", p.ID, err)
	}
	p.FamilyID = pricing.FamilyID(familyID.String)
	p.RoleID = pricing.RoleID(roleID.String)
	if override.Valid {
		d, err := decimal.NewFromString(override.String)
		if err != nil {
			return nil, &pricing.InputError{Field: "manual_price_override", Value: override.String, Reason: "not a number"}
		}
		p.ManualPriceOverride = &d
	}
	return &p, nil
}

// =============================================================================
// LEDGER
// =============================================================================

func (r *reader) sumAmounts(ctx context.Context, query string, args ...any) (decimal.Decimal, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query amounts: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan amount: %w", err)
		}
		d, err := parseAmount(s)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(d)
	}
	return total, rows.Err()
}

func (r *reader) SumPayments(ctx context.Context, eventID pricing.EventID) (decimal.Decimal, error) {
	return r.sumAmounts(ctx, "SELECT amount FROM payments WHERE event_id = ?", eventID)
}

func (r *reader) SumIncomes(ctx context.Context, eventID pricing.EventID) (decimal.Decimal, error) {
	return r.sumAmounts(ctx, "SELECT amount FROM incomes WHERE event_id = ?", eventID)
}

func (r *reader) SumExpenses(ctx context.Context, eventID pricing.EventID, settledOnly bool) (decimal.Decimal, error) {
	if settledOnly {
		return r.sumAmounts(ctx, "SELECT amount FROM expenses WHERE event_id = ? AND is_settled = TRUE", eventID)
	}
	return r.sumAmounts(ctx, "SELECT amount FROM expenses WHERE event_id = ?", eventID)
}

func (r *reader) ListPayments(ctx context.Context, eventID pricing.EventID) ([]pricing.Payment, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, event_id, participant_id, family_id, amount, payment_date, method, reference, notes
		FROM payments WHERE event_id = ?
		ORDER BY payment_date, id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []pricing.Payment
	for rows.Next() {
		var (
			p                        pricing.Payment
			participantID, familyID  sql.NullString
			method, reference, notes sql.NullString
			amount, date             string
		)
		if err := rows.Scan(&p.ID, &p.EventID, &participantID, &familyID, &amount, &date, &method, &reference, &notes); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		if p.Amount, err = parseAmount(amount); err != nil {
			return nil, err
		}
		if p.Date, err = pricing.ParseDate(date); err != nil {
			return nil, fmt.Errorf("payment %s: %w", p.ID, err)
		}
		p.ParticipantID = pricing.ParticipantID(participantID.String)
		p.FamilyID = pricing.FamilyID(familyID.String)
		p.Method = method.String
		p.Reference = reference.String
		p.Notes = notes.String
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *reader) ListIncomes(ctx context.Context, eventID pricing.EventID) ([]pricing.Income, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, event_id, name, description, amount, income_date
		FROM incomes WHERE event_id = ?
		ORDER BY income_date, id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query incomes: %w", err)
	}
	defer rows.Close()

	var incomes []pricing.Income
	for rows.Next() {
		var (
			i            pricing.Income
			description  sql.NullString
			amount, date string
		)
		if err := rows.Scan(&i.ID, &i.EventID, &i.Name, &description, &amount, &date); err != nil {
			return nil, fmt.Errorf("failed to scan income: %w", err)
		}
		if i.Amount, err = parseAmount(amount); err != nil {
			return nil, err
		}
		if i.Date, err = pricing.ParseDate(date); err != nil {
			return nil, fmt.Errorf("income %s: %w", i.ID, err)
		}
		i.Description = description.String
		incomes = append(incomes, i)
	}
	return incomes, rows.Err()
}

func (r *reader) ListExpenses(ctx context.Context, eventID pricing.EventID) ([]pricing.Expense, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, event_id, title, description, category, amount, expense_date, is_settled
		FROM expenses WHERE event_id = ?
		ORDER BY expense_date, id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer rows.Close()

	var expenses []pricing.Expense
	for rows.Next() {
		var (
			e                     pricing.Expense
			description, category sql.NullString
			amount, date          string
		)
		if err := rows.Scan(&e.ID, &e.EventID, &e.Title, &description, &category, &amount, &date, &e.IsSettled); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		if e.Amount, err = parseAmount(amount); err != nil {
			return nil, err
		}
		if e.Date, err = pricing.ParseDate(date); err != nil {
			return nil, fmt.Errorf("expense %s: %w", e.ID, err)
		}
		e.Description = description.String
		e.Category = category.String
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("stored amount %q: %w", s, err)
	}
	return d, nil
}
