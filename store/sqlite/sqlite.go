/*
Package sqlite provides the SQLite-backed implementation of the booking
storage interfaces.

PURPOSE:
  Implements booking.Store using database/sql + mattn/go-sqlite3. In
  production the same patterns apply to PostgreSQL - only minor SQL
  dialect differences and the locking strategy change.

INTERFACES IMPLEMENTED:
  booking.InventoryStore: rate cards, rooms, adjustments, addons, vouchers
  booking.BookingStore:   reservation transaction, transitions, sweeps
  booking.GuestStore:     guest aggregates

KEY TABLES:
  accommodation_types:  rate cards (soft-deleted via is_active)
  rooms:                physical units; active rooms define inventory
  rate_adjustments:     seasonal overrides with explicit priority
  addons, vouchers:     optional lines and discount codes
  guests:               per-tenant identity keyed by email
  bookings:             one room per row, half-open [check_in, check_out)
  booking_addons:       persisted addon lines
  booking_groups:       parent rows for multi-room reservations
  booking_status_logs:  append-only audit (no UPDATE, no DELETE)

INVARIANT-ENFORCING INDEXES:
  - UNIQUE(tenant_id, reference) on bookings and booking_groups
  - UNIQUE(tenant_id, code) on vouchers
  - UNIQUE(tenant_id, email) on guests

CONCURRENCY:
  A sync.Mutex serializes writers; reservation and transition code runs
  its SELECTs and INSERTs inside one sql.Tx under that lock, so two
  concurrent reservations can never both observe "no overlap" for the
  same room. The DSN also requests immediate transactions, which covers
  multi-process access to the same file. With PostgreSQL the mutex would
  be replaced by SELECT ... FOR UPDATE on the room rows.

WAL MODE:
  Opened with WAL so availability reads don't block behind writers.

MONEY AND DATES:
  Money is stored as decimal strings, calendar days as YYYY-MM-DD text,
  timestamps as RFC3339. All arithmetic happens in Go on decimal.Decimal.

USAGE:
  store, err := sqlite.New("./data/bookings.db")   // ":memory:" for tests
  defer store.Close()

SEE ALSO:
  - booking/store.go: interface definitions and the Reserve contract
  - reservation.go: the atomic reservation transaction
  - status.go: transitions + audit
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/booking-engine/booking"
)

// Store implements booking.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// compile-time interface check
var _ booking.Store = (*Store)(nil)

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// NewWithDB wraps an existing database handle without migrating. Used by
// unit tests that substitute a mock connection.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tenants (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Rate cards. Soft-deleted: bookings keep referencing inactive types.
	CREATE TABLE IF NOT EXISTS accommodation_types (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		name TEXT NOT NULL,
		base_rate_weekday TEXT NOT NULL,
		base_rate_weekend TEXT NOT NULL,
		base_pax INTEGER NOT NULL,
		max_pax INTEGER NOT NULL,
		additional_pax_fee TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_types_tenant
		ON accommodation_types(tenant_id, is_active);

	CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		type_id TEXT NOT NULL,
		name TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_rooms_tenant_type
		ON rooms(tenant_id, type_id, is_active);

	CREATE TABLE IF NOT EXISTS rate_adjustments (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		name TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		adjustment_type TEXT NOT NULL,
		adjustment_value TEXT NOT NULL,
		applies_to TEXT,
		priority INTEGER NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_adjustments_tenant_dates
		ON rate_adjustments(tenant_id, is_active, start_date, end_date);

	CREATE TABLE IF NOT EXISTS addons (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		name TEXT NOT NULL,
		price TEXT NOT NULL,
		pricing_model TEXT NOT NULL,
		applies_to TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_addons_tenant
		ON addons(tenant_id, is_active);

	CREATE TABLE IF NOT EXISTS vouchers (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		code TEXT NOT NULL,
		discount_type TEXT NOT NULL,
		discount_value TEXT NOT NULL,
		max_discount TEXT,
		min_booking_amount TEXT,
		valid_from TEXT,
		valid_until TEXT,
		usage_limit INTEGER,
		times_used INTEGER NOT NULL DEFAULT 0,
		applies_to TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_vouchers_tenant_code
		ON vouchers(tenant_id, code);

	CREATE TABLE IF NOT EXISTS guests (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		email TEXT NOT NULL,
		name TEXT NOT NULL,
		phone TEXT,
		total_bookings INTEGER NOT NULL DEFAULT 0,
		total_spent TEXT NOT NULL DEFAULT '0',
		first_visit TEXT NOT NULL,
		last_visit TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_guests_tenant_email
		ON guests(tenant_id, email);

	CREATE TABLE IF NOT EXISTS booking_groups (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		reference TEXT NOT NULL,
		guest_name TEXT NOT NULL,
		guest_email TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_groups_tenant_reference
		ON booking_groups(tenant_id, reference);

	CREATE TABLE IF NOT EXISTS bookings (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		reference TEXT NOT NULL,
		group_id TEXT,
		room_id TEXT NOT NULL,
		type_id TEXT NOT NULL,
		booking_type TEXT NOT NULL,
		check_in TEXT NOT NULL,
		check_out TEXT NOT NULL,
		guest_name TEXT NOT NULL,
		guest_email TEXT NOT NULL,
		guest_phone TEXT,
		adults INTEGER NOT NULL,
		children INTEGER NOT NULL DEFAULT 0,
		base_amount TEXT NOT NULL,
		pax_surcharge TEXT NOT NULL,
		addons_amount TEXT NOT NULL,
		discount_amount TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		voucher_code TEXT,
		status TEXT NOT NULL,
		payment_status TEXT NOT NULL,
		source TEXT NOT NULL,
		payment_method TEXT,
		payment_reference TEXT,
		cancelled_at TEXT,
		cancellation_reason TEXT,
		checked_in_at TEXT,
		checked_out_at TEXT,
		paid_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_tenant_reference
		ON bookings(tenant_id, reference);
	-- Hot path: the overlap re-check inside the reservation transaction.
	CREATE INDEX IF NOT EXISTS idx_bookings_room_dates
		ON bookings(room_id, status, check_in, check_out);
	CREATE INDEX IF NOT EXISTS idx_bookings_tenant_status
		ON bookings(tenant_id, status);
	CREATE INDEX IF NOT EXISTS idx_bookings_group
		ON bookings(group_id) WHERE group_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS booking_addons (
		id TEXT PRIMARY KEY,
		booking_id TEXT NOT NULL,
		addon_id TEXT NOT NULL,
		name TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price TEXT NOT NULL,
		line_total TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_booking_addons_booking
		ON booking_addons(booking_id);

	-- Append-only audit. Never updated, never deleted.
	CREATE TABLE IF NOT EXISTS booking_status_logs (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		booking_id TEXT NOT NULL,
		field_changed TEXT NOT NULL,
		old_value TEXT NOT NULL,
		new_value TEXT NOT NULL,
		changed_by TEXT NOT NULL,
		change_source TEXT NOT NULL,
		notes TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_status_logs_booking
		ON booking_status_logs(booking_id, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ACCOMMODATION TYPES
// =============================================================================

// SaveAccommodationType inserts or updates a rate card.
func (s *Store) SaveAccommodationType(ctx context.Context, at *booking.AccommodationType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	query := `
		INSERT INTO accommodation_types
		(id, tenant_id, name, base_rate_weekday, base_rate_weekend, base_pax,
		 max_pax, additional_pax_fee, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			base_rate_weekday = excluded.base_rate_weekday,
			base_rate_weekend = excluded.base_rate_weekend,
			base_pax = excluded.base_pax,
			max_pax = excluded.max_pax,
			additional_pax_fee = excluded.additional_pax_fee,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		at.ID, at.TenantID, at.Name,
		at.BaseRateWeekday.String(), at.BaseRateWeekend.String(),
		at.BasePax, at.MaxPax, at.AdditionalPaxFee.String(),
		boolToInt(at.IsActive), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save accommodation type: %w", err)
	}
	return nil
}

// GetAccommodationType returns an active rate card for the tenant.
func (s *Store) GetAccommodationType(ctx context.Context, tenant booking.TenantID, id booking.AccommodationTypeID) (*booking.AccommodationType, error) {
	query := `
		SELECT id, tenant_id, name, base_rate_weekday, base_rate_weekend,
		       base_pax, max_pax, additional_pax_fee, is_active, created_at, updated_at
		FROM accommodation_types
		WHERE id = ? AND tenant_id = ? AND is_active = 1
	`
	row := s.db.QueryRowContext(ctx, query, id, tenant)
	at, err := scanAccommodationType(row)
	if err == sql.ErrNoRows {
		return nil, booking.ErrTypeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get accommodation type: %w", err)
	}
	return at, nil
}

// ListAccommodationTypes returns all active rate cards for the tenant.
func (s *Store) ListAccommodationTypes(ctx context.Context, tenant booking.TenantID) ([]booking.AccommodationType, error) {
	query := `
		SELECT id, tenant_id, name, base_rate_weekday, base_rate_weekend,
		       base_pax, max_pax, additional_pax_fee, is_active, created_at, updated_at
		FROM accommodation_types
		WHERE tenant_id = ? AND is_active = 1
		ORDER BY name
	`
	rows, err := s.db.QueryContext(ctx, query, tenant)
	if err != nil {
		return nil, fmt.Errorf("failed to list accommodation types: %w", err)
	}
	defer rows.Close()

	var types []booking.AccommodationType
	for rows.Next() {
		at, err := scanAccommodationType(rows)
		if err != nil {
			return nil, err
		}
		types = append(types, *at)
	}
	return types, rows.Err()
}

// =============================================================================
// ROOMS
// =============================================================================

// SaveRoom inserts or updates a room.
func (s *Store) SaveRoom(ctx context.Context, r *booking.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO rooms (id, tenant_id, type_id, name, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type_id = excluded.type_id,
			name = excluded.name,
			is_active = excluded.is_active
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.TenantID, r.TypeID, r.Name, boolToInt(r.IsActive),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save room: %w", err)
	}
	return nil
}

// ListActiveRooms returns active rooms, optionally scoped to one type.
func (s *Store) ListActiveRooms(ctx context.Context, tenant booking.TenantID, typeID booking.AccommodationTypeID) ([]booking.Room, error) {
	query := `
		SELECT id, tenant_id, type_id, name, is_active, created_at
		FROM rooms
		WHERE tenant_id = ? AND is_active = 1
	`
	args := []any{tenant}
	if typeID != "" {
		query += " AND type_id = ?"
		args = append(args, typeID)
	}
	query += " ORDER BY name"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer rows.Close()

	var roomsOut []booking.Room
	for rows.Next() {
		var r booking.Room
		var active int
		var createdAt string
		if err := rows.Scan(&r.ID, &r.TenantID, &r.TypeID, &r.Name, &active, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		r.IsActive = active != 0
		r.CreatedAt = parseTime(createdAt)
		roomsOut = append(roomsOut, r)
	}
	return roomsOut, rows.Err()
}

// =============================================================================
// RATE ADJUSTMENTS
// =============================================================================

// SaveRateAdjustment inserts or updates a seasonal adjustment.
func (s *Store) SaveRateAdjustment(ctx context.Context, ra *booking.RateAdjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	appliesJSON, _ := json.Marshal(ra.AppliesTo)
	createdAt := ra.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	query := `
		INSERT INTO rate_adjustments
		(id, tenant_id, name, start_date, end_date, adjustment_type,
		 adjustment_value, applies_to, priority, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			adjustment_type = excluded.adjustment_type,
			adjustment_value = excluded.adjustment_value,
			applies_to = excluded.applies_to,
			priority = excluded.priority,
			is_active = excluded.is_active
	`
	_, err := s.db.ExecContext(ctx, query,
		ra.ID, ra.TenantID, ra.Name,
		ra.StartDate.String(), ra.EndDate.String(),
		ra.Type, ra.Value.String(), string(appliesJSON),
		ra.Priority, boolToInt(ra.IsActive),
		createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save rate adjustment: %w", err)
	}
	return nil
}

// ListActiveAdjustments returns the tenant's active adjustments.
func (s *Store) ListActiveAdjustments(ctx context.Context, tenant booking.TenantID) ([]booking.RateAdjustment, error) {
	query := `
		SELECT id, tenant_id, name, start_date, end_date, adjustment_type,
		       adjustment_value, applies_to, priority, is_active, created_at
		FROM rate_adjustments
		WHERE tenant_id = ? AND is_active = 1
	`
	rows, err := s.db.QueryContext(ctx, query, tenant)
	if err != nil {
		return nil, fmt.Errorf("failed to list rate adjustments: %w", err)
	}
	defer rows.Close()

	var adjustments []booking.RateAdjustment
	for rows.Next() {
		var ra booking.RateAdjustment
		var startDate, endDate, value, createdAt string
		var appliesJSON sql.NullString
		var active int
		if err := rows.Scan(&ra.ID, &ra.TenantID, &ra.Name, &startDate, &endDate,
			&ra.Type, &value, &appliesJSON, &ra.Priority, &active, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan rate adjustment: %w", err)
		}
		ra.StartDate, _ = booking.ParseDate(startDate)
		ra.EndDate, _ = booking.ParseDate(endDate)
		ra.Value = mustDecimal(value)
		ra.IsActive = active != 0
		ra.CreatedAt = parseTime(createdAt)
		if appliesJSON.Valid && appliesJSON.String != "" {
			json.Unmarshal([]byte(appliesJSON.String), &ra.AppliesTo)
		}
		adjustments = append(adjustments, ra)
	}
	return adjustments, rows.Err()
}

// =============================================================================
// ADDONS
// =============================================================================

// SaveAddon inserts or updates an addon.
func (s *Store) SaveAddon(ctx context.Context, a *booking.Addon) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO addons (id, tenant_id, name, price, pricing_model, applies_to, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			price = excluded.price,
			pricing_model = excluded.pricing_model,
			applies_to = excluded.applies_to,
			is_active = excluded.is_active
	`
	_, err := s.db.ExecContext(ctx, query,
		a.ID, a.TenantID, a.Name, a.Price.String(),
		a.PricingModel.String(), a.AppliesTo, boolToInt(a.IsActive),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save addon: %w", err)
	}
	return nil
}

// GetAddons returns the active addons among the requested IDs. A missing
// or inactive ID is simply absent from the result; callers decide whether
// that is an error.
func (s *Store) GetAddons(ctx context.Context, tenant booking.TenantID, ids []string) ([]booking.Addon, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := fmt.Sprintf(`
		SELECT id, tenant_id, name, price, pricing_model, applies_to, is_active, created_at
		FROM addons
		WHERE tenant_id = ? AND is_active = 1 AND id IN (%s)
	`, placeholders)

	args := make([]any, 0, len(ids)+1)
	args = append(args, tenant)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get addons: %w", err)
	}
	defer rows.Close()

	var addons []booking.Addon
	for rows.Next() {
		var a booking.Addon
		var price, model, createdAt string
		var active int
		if err := rows.Scan(&a.ID, &a.TenantID, &a.Name, &price, &model,
			&a.AppliesTo, &active, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan addon: %w", err)
		}
		a.Price = mustDecimal(price)
		a.PricingModel, _ = booking.ParsePricingModel(model)
		a.IsActive = active != 0
		a.CreatedAt = parseTime(createdAt)
		addons = append(addons, a)
	}
	return addons, rows.Err()
}

// =============================================================================
// VOUCHERS
// =============================================================================

// SaveVoucher inserts or updates a voucher.
func (s *Store) SaveVoucher(ctx context.Context, v *booking.Voucher) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO vouchers
		(id, tenant_id, code, discount_type, discount_value, max_discount,
		 min_booking_amount, valid_from, valid_until, usage_limit, times_used,
		 applies_to, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			discount_type = excluded.discount_type,
			discount_value = excluded.discount_value,
			max_discount = excluded.max_discount,
			min_booking_amount = excluded.min_booking_amount,
			valid_from = excluded.valid_from,
			valid_until = excluded.valid_until,
			usage_limit = excluded.usage_limit,
			applies_to = excluded.applies_to,
			is_active = excluded.is_active
	`
	_, err := s.db.ExecContext(ctx, query,
		v.ID, v.TenantID, v.Code, v.DiscountType, v.DiscountValue.String(),
		nullDecimal(v.MaxDiscount), nullDecimal(v.MinBookingAmount),
		nullDate(v.ValidFrom), nullDate(v.ValidUntil),
		nullInt(v.UsageLimit), v.TimesUsed,
		v.AppliesTo, boolToInt(v.IsActive),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &booking.ValidationError{Field: "code", Message: "voucher code already exists"}
		}
		return fmt.Errorf("failed to save voucher: %w", err)
	}
	return nil
}

// GetVoucherByCode returns the voucher regardless of active flag; the
// validator decides what an inactive voucher means. A missing code
// returns (nil, nil).
func (s *Store) GetVoucherByCode(ctx context.Context, tenant booking.TenantID, code string) (*booking.Voucher, error) {
	return getVoucherByCode(ctx, s.db, tenant, code)
}

// querier abstracts *sql.DB and *sql.Tx so reads can run inside the
// reservation transaction.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func getVoucherByCode(ctx context.Context, db querier, tenant booking.TenantID, code string) (*booking.Voucher, error) {
	query := `
		SELECT id, tenant_id, code, discount_type, discount_value, max_discount,
		       min_booking_amount, valid_from, valid_until, usage_limit,
		       times_used, applies_to, is_active, created_at
		FROM vouchers
		WHERE tenant_id = ? AND code = ?
	`
	var v booking.Voucher
	var value, createdAt string
	var maxDiscount, minAmount, validFrom, validUntil sql.NullString
	var usageLimit sql.NullInt64
	var active int

	err := db.QueryRowContext(ctx, query, tenant, code).Scan(
		&v.ID, &v.TenantID, &v.Code, &v.DiscountType, &value,
		&maxDiscount, &minAmount, &validFrom, &validUntil,
		&usageLimit, &v.TimesUsed, &v.AppliesTo, &active, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get voucher: %w", err)
	}

	v.DiscountValue = mustDecimal(value)
	v.IsActive = active != 0
	v.CreatedAt = parseTime(createdAt)
	if maxDiscount.Valid {
		d := mustDecimal(maxDiscount.String)
		v.MaxDiscount = &d
	}
	if minAmount.Valid {
		d := mustDecimal(minAmount.String)
		v.MinBookingAmount = &d
	}
	if validFrom.Valid {
		d, _ := booking.ParseDate(validFrom.String)
		v.ValidFrom = &d
	}
	if validUntil.Valid {
		d, _ := booking.ParseDate(validUntil.String)
		v.ValidUntil = &d
	}
	if usageLimit.Valid {
		n := int(usageLimit.Int64)
		v.UsageLimit = &n
	}
	return &v, nil
}

// =============================================================================
// GUESTS
// =============================================================================

// GetGuestByEmail returns the tenant's guest record for an email address.
// A missing guest returns (nil, nil).
func (s *Store) GetGuestByEmail(ctx context.Context, tenant booking.TenantID, email string) (*booking.Guest, error) {
	query := `
		SELECT id, tenant_id, email, name, phone, total_bookings, total_spent,
		       first_visit, last_visit
		FROM guests
		WHERE tenant_id = ? AND email = ?
	`
	var g booking.Guest
	var phone sql.NullString
	var spent, firstVisit, lastVisit string

	err := s.db.QueryRowContext(ctx, query, tenant, email).Scan(
		&g.ID, &g.TenantID, &g.Email, &g.Name, &phone,
		&g.TotalBookings, &spent, &firstVisit, &lastVisit,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get guest: %w", err)
	}
	g.Phone = phone.String
	g.TotalSpent = mustDecimal(spent)
	g.FirstVisit = parseTime(firstVisit)
	g.LastVisit = parseTime(lastVisit)
	return &g, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func nullDate(d *booking.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func parseTimePtr(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccommodationType(row rowScanner) (*booking.AccommodationType, error) {
	var at booking.AccommodationType
	var weekday, weekend, paxFee, createdAt, updatedAt string
	var active int
	err := row.Scan(&at.ID, &at.TenantID, &at.Name, &weekday, &weekend,
		&at.BasePax, &at.MaxPax, &paxFee, &active, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	at.BaseRateWeekday = mustDecimal(weekday)
	at.BaseRateWeekend = mustDecimal(weekend)
	at.AdditionalPaxFee = mustDecimal(paxFee)
	at.IsActive = active != 0
	at.CreatedAt = parseTime(createdAt)
	at.UpdatedAt = parseTime(updatedAt)
	return &at, nil
}
