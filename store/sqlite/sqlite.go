/*
Package sqlite provides a SQLite-backed implementation of the pricing store
interfaces.

PURPOSE:
  Persists events, rulesets, roles, families, participants and the cash
  ledger (payments, incomes, expenses), and serves them to the pricing and
  reconciliation engines through pricing.SnapshotStore.

INTERFACES IMPLEMENTED:
  pricing.Reader:        Events, rulesets, roles, families, participants
  pricing.LedgerReader:  Payments, incomes, expenses and their sums
  pricing.SnapshotStore: One read-only SQL transaction per engine invocation

READ-ONLY ENGINE:
  The engines never write. The Save* methods exist to seed data (demo
  scenarios, CLI, tests, ruleset upload) and validate input on the way in:
  negative money amounts are rejected with pricing.ErrInvalidInput.

MONEY:
  Amounts are stored as TEXT decimal strings and summed in Go with
  shopspring/decimal, never with SQL SUM() over floating point.

KEY TABLES:
  events:       Event date ranges
  rulesets:     Ruleset documents (config_json) plus queryable columns
  roles:        Role records (name matched against ruleset role keys)
  families:     Sibling groups
  participants: People attending an event
  payments:     Participant payments
  incomes:      Other income (grants, donations)
  expenses:     Expenses, settled or open

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - A read transaction sees a stable snapshot
  - Single writer at a time

USAGE:
  store, err := sqlite.New("./data/pricing.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  cohort, err := pricing.LoadCohort(ctx, store, eventID, pricing.ParticipantFilter{})

SEE ALSO:
  - pricing/store.go: Interface definitions
  - pricing/store/memory.go: In-memory implementation for testing
  - factory/ruleset.go: Ruleset document format
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/event-pricing/factory"
	"github.com/warp/event-pricing/pricing"
)

// Store implements the pricing store interfaces using SQLite.
type Store struct {
	db       *sql.DB
	mu       sync.RWMutex
	rulesets *factory.RulesetFactory
}

// Compile-time check
var _ pricing.SnapshotStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection would open its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, rulesets: factory.NewRulesetFactory()}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Rulesets: config_json is the source of truth, the other columns
	-- mirror it for listing and filtering
	CREATE TABLE IF NOT EXISTS rulesets (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		valid_from TEXT NOT NULL,
		valid_until TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		config_json TEXT NOT NULL,
		version INTEGER DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rulesets_event_validity
		ON rulesets(event_id, is_active, valid_from, valid_until);

	CREATE TABLE IF NOT EXISTS roles (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		display_name TEXT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE INDEX IF NOT EXISTS idx_roles_event ON roles(event_id);

	CREATE TABLE IF NOT EXISTS families (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		name TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_families_event ON families(event_id);

	CREATE TABLE IF NOT EXISTS participants (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		birth_date TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		family_id TEXT REFERENCES families(id) ON DELETE SET NULL,
		role_id TEXT REFERENCES roles(id) ON DELETE SET NULL,
		manual_price_override TEXT,
		created_at TEXT NOT NULL
	);

	-- Hot path: active cohort of an event
	CREATE INDEX IF NOT EXISTS idx_participants_event_active
		ON participants(event_id, is_active);
	CREATE INDEX IF NOT EXISTS idx_participants_family
		ON participants(family_id, event_id) WHERE family_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		participant_id TEXT,
		family_id TEXT,
		amount TEXT NOT NULL,
		payment_date TEXT NOT NULL,
		method TEXT,
		reference TEXT,
		notes TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_event ON payments(event_id, payment_date);

	CREATE TABLE IF NOT EXISTS incomes (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		description TEXT,
		amount TEXT NOT NULL,
		income_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_incomes_event ON incomes(event_id, income_date);

	CREATE TABLE IF NOT EXISTS expenses (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		description TEXT,
		category TEXT,
		amount TEXT NOT NULL,
		expense_date TEXT NOT NULL,
		is_settled BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_expenses_event ON expenses(event_id, expense_date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SNAPSHOT READS (pricing.SnapshotStore interface)
// =============================================================================

// ReadSnapshot executes fn within a read-only database transaction, so all
// reads of one engine invocation observe the same data.
func (s *Store) ReadSnapshot(ctx context.Context, fn func(pricing.Store) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("failed to begin read snapshot: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&reader{q: sqlTx, rulesets: s.rulesets}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// =============================================================================
// READS (pricing.Store interface)
// =============================================================================

func (s *Store) read() *reader {
	return &reader{q: s.db, rulesets: s.rulesets}
}

func (s *Store) GetEvent(ctx context.Context, id pricing.EventID) (*pricing.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetEvent(ctx, id)
}

func (s *Store) ListRulesets(ctx context.Context, eventID pricing.EventID) ([]pricing.Ruleset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListRulesets(ctx, eventID)
}

func (s *Store) ListRoles(ctx context.Context, eventID pricing.EventID) ([]pricing.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListRoles(ctx, eventID)
}

func (s *Store) ListFamilies(ctx context.Context, eventID pricing.EventID) ([]pricing.Family, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListFamilies(ctx, eventID)
}

func (s *Store) GetParticipant(ctx context.Context, id pricing.ParticipantID) (*pricing.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetParticipant(ctx, id)
}

func (s *Store) ListActiveParticipants(ctx context.Context, eventID pricing.EventID, filter pricing.ParticipantFilter) ([]pricing.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListActiveParticipants(ctx, eventID, filter)
}

func (s *Store) ListFamilyMembers(ctx context.Context, familyID pricing.FamilyID, eventID pricing.EventID) ([]pricing.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListFamilyMembers(ctx, familyID, eventID)
}

func (s *Store) SumPayments(ctx context.Context, eventID pricing.EventID) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().SumPayments(ctx, eventID)
}

func (s *Store) SumIncomes(ctx context.Context, eventID pricing.EventID) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().SumIncomes(ctx, eventID)
}

func (s *Store) SumExpenses(ctx context.Context, eventID pricing.EventID, settledOnly bool) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().SumExpenses(ctx, eventID, settledOnly)
}

func (s *Store) ListPayments(ctx context.Context, eventID pricing.EventID) ([]pricing.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListPayments(ctx, eventID)
}

func (s *Store) ListIncomes(ctx context.Context, eventID pricing.EventID) ([]pricing.Income, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListIncomes(ctx, eventID)
}

func (s *Store) ListExpenses(ctx context.Context, eventID pricing.EventID) ([]pricing.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListExpenses(ctx, eventID)
}

// ListEvents returns all events, most recent first.
func (s *Store) ListEvents(ctx context.Context) ([]pricing.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, start_date, end_date FROM events ORDER BY start_date DESC, id",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []pricing.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// =============================================================================
// WRITES - Seeding and data entry
// =============================================================================

// SaveEvent saves an event. An empty ID is replaced by a new UUID.
func (s *Store) SaveEvent(ctx context.Context, e *pricing.Event) error {
	if e.StartDate.IsZero() || e.EndDate.IsZero() {
		return &pricing.InputError{Field: "event", Value: string(e.ID), Reason: "start and end date are required"}
	}
	if e.EndDate.Before(e.StartDate) {
		return &pricing.InputError{Field: "end_date", Value: e.EndDate.String(), Reason: "before start_date"}
	}
	if e.ID == "" {
		e.ID = pricing.EventID(uuid.NewString())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO events (id, name, start_date, end_date, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			start_date = excluded.start_date,
			end_date = excluded.end_date
	`
	_, err := s.db.ExecContext(ctx, query, e.ID, e.Name, e.StartDate.String(), e.EndDate.String(), now())
	if err != nil {
		return fmt.Errorf("failed to save event %s: %w", e.ID, err)
	}
	return nil
}

// SaveRuleset stores a validated ruleset as its JSON document. An empty ID
// is replaced by a new UUID. Saving an existing ID bumps its version.
func (s *Store) SaveRuleset(ctx context.Context, rs *pricing.Ruleset) error {
	if rs.ID == "" {
		rs.ID = pricing.RulesetID(uuid.NewString())
	}
	doc, err := s.rulesets.MarshalRuleset(rs)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO rulesets (id, event_id, name, valid_from, valid_until, is_active, config_json, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			event_id = excluded.event_id,
			name = excluded.name,
			valid_from = excluded.valid_from,
			valid_until = excluded.valid_until,
			is_active = excluded.is_active,
			config_json = excluded.config_json,
			version = rulesets.version + 1,
			updated_at = excluded.updated_at
	`
	ts := now()
	_, err = s.db.ExecContext(ctx, query,
		rs.ID, rs.EventID, rs.Name, rs.ValidFrom.String(), rs.ValidUntil.String(),
		rs.IsActive, doc, ts, ts,
	)
	if err != nil {
		return wrapWriteError("ruleset", string(rs.ID), err)
	}
	return nil
}

// SaveRulesetJSON parses, validates and stores a ruleset document.
func (s *Store) SaveRulesetJSON(ctx context.Context, doc string) (*pricing.Ruleset, error) {
	rs, err := s.rulesets.ParseRuleset(doc)
	if err != nil {
		return nil, err
	}
	if err := s.SaveRuleset(ctx, rs); err != nil {
		return nil, err
	}
	return rs, nil
}

// SaveRole saves a role. An empty ID is replaced by a new UUID.
func (s *Store) SaveRole(ctx context.Context, r *pricing.Role) error {
	if strings.TrimSpace(r.Name) == "" {
		return &pricing.InputError{Field: "role.name", Reason: "required"}
	}
	if r.ID == "" {
		r.ID = pricing.RoleID(uuid.NewString())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO roles (id, event_id, name, display_name, is_active)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			display_name = excluded.display_name,
			is_active = excluded.is_active
	`
	_, err := s.db.ExecContext(ctx, query, r.ID, r.EventID, r.Name, nullString(r.DisplayName), r.IsActive)
	return wrapWriteError("role", string(r.ID), err)
}

// SaveFamily saves a family. An empty ID is replaced by a new UUID.
func (s *Store) SaveFamily(ctx context.Context, f *pricing.Family) error {
	if f.ID == "" {
		f.ID = pricing.FamilyID(uuid.NewString())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO families (id, event_id, name)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`
	_, err := s.db.ExecContext(ctx, query, f.ID, f.EventID, f.Name)
	return wrapWriteError("family", string(f.ID), err)
}

// SaveParticipant saves a participant. An empty ID is replaced by a new UUID.
func (s *Store) SaveParticipant(ctx context.Context, p *pricing.Participant) error {
	if p.BirthDate.IsZero() {
		return &pricing.InputError{Field: "birth_date", Value: string(p.ID), Reason: "required"}
	}
	var override sql.NullString
	if p.ManualPriceOverride != nil {
		if err := pricing.ValidateAmount("manual_price_override", *p.ManualPriceOverride); err != nil {
			return err
		}
		override = sql.NullString{String: p.ManualPriceOverride.String(), Valid: true}
	}
	if p.ID == "" {
		p.ID = pricing.ParticipantID(uuid.NewString())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO participants
		(id, event_id, first_name, last_name, birth_date, is_active, family_id, role_id, manual_price_override, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			birth_date = excluded.birth_date,
			is_active = excluded.is_active,
			family_id = excluded.family_id,
			role_id = excluded.role_id,
			manual_price_override = excluded.manual_price_override
	`
	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.EventID, p.FirstName, p.LastName, p.BirthDate.String(), p.IsActive,
		nullString(string(p.FamilyID)), nullString(string(p.RoleID)), override, now(),
	)
	return wrapWriteError("participant", string(p.ID), err)
}

// SavePayment records a payment. An empty ID is replaced by a new UUID.
func (s *Store) SavePayment(ctx context.Context, p *pricing.Payment) error {
	if err := pricing.ValidateAmount("amount", p.Amount); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO payments
		(id, event_id, participant_id, family_id, amount, payment_date, method, reference, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.EventID, nullString(string(p.ParticipantID)), nullString(string(p.FamilyID)),
		p.Amount.String(), p.Date.String(), nullString(p.Method), nullString(p.Reference), nullString(p.Notes), now(),
	)
	return wrapWriteError("payment", p.ID, err)
}

// SaveIncome records other income. An empty ID is replaced by a new UUID.
func (s *Store) SaveIncome(ctx context.Context, i *pricing.Income) error {
	if err := pricing.ValidateAmount("amount", i.Amount); err != nil {
		return err
	}
	if i.ID == "" {
		i.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO incomes (id, event_id, name, description, amount, income_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		i.ID, i.EventID, i.Name, nullString(i.Description), i.Amount.String(), i.Date.String(), now(),
	)
	return wrapWriteError("income", i.ID, err)
}

// SaveExpense records an expense. An empty ID is replaced by a new UUID.
func (s *Store) SaveExpense(ctx context.Context, e *pricing.Expense) error {
	if err := pricing.ValidateAmount("amount", e.Amount); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO expenses (id, event_id, title, description, category, amount, expense_date, is_settled, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET is_settled = excluded.is_settled
	`
	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.EventID, e.Title, nullString(e.Description), nullString(e.Category),
		e.Amount.String(), e.Date.String(), e.IsSettled, now(),
	)
	return wrapWriteError("expense", e.ID, err)
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Children first so foreign keys never block a delete.
	tables := []string{"payments", "incomes", "expenses", "participants", "roles", "families", "rulesets", "events"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func wrapWriteError(kind, id string, err error) error {
	if err == nil {
		return nil
	}
	if isForeignKeyError(err) {
		return &pricing.InputError{Field: kind, Value: id, Reason: "references an unknown event, family or role"}
	}
	return fmt.Errorf("failed to save %s %s: %w", kind, id, err)
}

func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
