/*
Package booking contains the core domain model of the resort booking and
pricing engine.

PURPOSE:
  This package holds the entities, enums, and pure algorithms: calendar
  arithmetic, availability classification, nightly price calculation,
  voucher validation, and the booking status state machine. It has no
  knowledge of SQL or HTTP; persistence lives in store/sqlite and the API
  surface in api.

KEY CONCEPTS IN THIS FILE (types.go):
  - Tenant scoping: every entity carries a TenantID; stores must filter
    every read and write by it.
  - Money: all money fields are decimal.Decimal to avoid floating-point
    drift in rate math.
  - Closed enums: pricing models, adjustment types, statuses, and
    applicability are typed constants, not free-form strings.

DESIGN PRINCIPLES:
  1. Pure core: pricing/availability/voucher logic are side-effect free
     functions of their inputs.
  2. Append-only audit: BookingStatusLog rows are never updated or deleted.
  3. Soft deletion: rate cards and inventory are deactivated via IsActive,
     never removed (bookings reference them).

SEE ALSO:
  - calendar.go: Date and interval arithmetic
  - pricing.go: the nightly price calculator
  - voucher.go: the voucher rule chain
  - availability.go: occupancy classification
  - status.go: status/payment state machines
  - store.go: persistence interfaces
*/
package booking

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type TenantID string
type AccommodationTypeID string
type RoomID string
type BookingID string
type GroupID string

// =============================================================================
// BOOKING TYPE & APPLICABILITY
// =============================================================================

// BookingType distinguishes overnight stays from day tours. Vouchers and
// addons can be restricted to either.
type BookingType string

const (
	BookingOvernight BookingType = "overnight"
	BookingDayTour   BookingType = "day_tour"
)

// Applicability restricts a voucher or addon to a booking type.
type Applicability string

const (
	AppliesOvernight Applicability = "overnight"
	AppliesDayTour   Applicability = "day_tour"
	AppliesBoth      Applicability = "both"
)

// Matches reports whether the applicability admits the given booking type.
func (a Applicability) Matches(bt BookingType) bool {
	return a == AppliesBoth || string(a) == string(bt)
}

// =============================================================================
// INVENTORY - Rate cards and rooms
// =============================================================================

// AccommodationType is the rate card for a class of bookable units.
type AccommodationType struct {
	ID               AccommodationTypeID
	TenantID         TenantID
	Name             string
	BaseRateWeekday  decimal.Decimal
	BaseRateWeekend  decimal.Decimal
	BasePax          int // occupants included in the base rate
	MaxPax           int // BasePax <= MaxPax
	AdditionalPaxFee decimal.Decimal // per extra occupant per night
	IsActive         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Room is one physical bookable unit. The set of active rooms of a type
// defines that type's total inventory.
type Room struct {
	ID        RoomID
	TenantID  TenantID
	TypeID    AccommodationTypeID
	Name      string
	IsActive  bool
	CreatedAt time.Time
}

// =============================================================================
// RATE ADJUSTMENTS - Seasonal overrides
// =============================================================================

type AdjustmentType string

const (
	// AdjustmentPercentageDiscount subtracts rate * value/100 from the night.
	AdjustmentPercentageDiscount AdjustmentType = "percentage_discount"
	// AdjustmentFixedOverride replaces the night's rate with value.
	AdjustmentFixedOverride AdjustmentType = "fixed_override"
)

// RateAdjustment is a named, inclusive date-range override of nightly rates.
// AppliesTo lists the accommodation types it covers; empty means all types.
//
// Several active adjustments may cover the same night. Selection is total
// and deterministic: highest Priority wins, then the narrowest date span,
// then the most recently created, then the lowest ID.
type RateAdjustment struct {
	ID        string
	TenantID  TenantID
	Name      string
	StartDate Date // inclusive
	EndDate   Date // inclusive, >= StartDate
	Type      AdjustmentType
	Value     decimal.Decimal
	AppliesTo []AccommodationTypeID
	Priority  int
	IsActive  bool
	CreatedAt time.Time
}

// Covers reports whether the adjustment applies to the given night and type.
func (ra *RateAdjustment) Covers(night Date, typeID AccommodationTypeID) bool {
	if !ra.IsActive || !WithinInclusive(night, ra.StartDate, ra.EndDate) {
		return false
	}
	if len(ra.AppliesTo) == 0 {
		return true
	}
	for _, id := range ra.AppliesTo {
		if id == typeID {
			return true
		}
	}
	return false
}

// =============================================================================
// ADDONS - Optional line items
// =============================================================================

// PricingModel is a closed variant describing how an addon quantity scales.
type PricingModel int

const (
	PerBooking PricingModel = iota
	PerPerson
)

// QuantityFor maps the variant to the effective quantity for a booking.
// per_person addons multiply the requested quantity by the pax count.
func (m PricingModel) QuantityFor(requested, totalPax int) int {
	switch m {
	case PerPerson:
		return requested * totalPax
	default:
		return requested
	}
}

func (m PricingModel) String() string {
	if m == PerPerson {
		return "per_person"
	}
	return "per_booking"
}

// ParsePricingModel converts a stored string to the variant.
func ParsePricingModel(s string) (PricingModel, error) {
	switch s {
	case "per_booking":
		return PerBooking, nil
	case "per_person":
		return PerPerson, nil
	default:
		return PerBooking, &ValidationError{Field: "pricing_model", Message: "unknown pricing model: " + s}
	}
}

// Addon is an optional priced extra.
type Addon struct {
	ID           string
	TenantID     TenantID
	Name         string
	Price        decimal.Decimal
	PricingModel PricingModel
	AppliesTo    Applicability
	IsActive     bool
	CreatedAt    time.Time
}

// AddonSelection pairs an addon with the quantity the guest asked for.
type AddonSelection struct {
	Addon    Addon
	Quantity int
}

// =============================================================================
// VOUCHERS
// =============================================================================

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Voucher is a discount code. Code is unique per tenant. TimesUsed is
// incremented only by a successful reservation, never by validation.
type Voucher struct {
	ID               string
	TenantID         TenantID
	Code             string
	DiscountType     DiscountType
	DiscountValue    decimal.Decimal
	MaxDiscount      *decimal.Decimal // cap, percentage type only
	MinBookingAmount *decimal.Decimal
	ValidFrom        *Date
	ValidUntil       *Date
	UsageLimit       *int
	TimesUsed        int
	AppliesTo        Applicability
	IsActive         bool
	CreatedAt        time.Time
}

// =============================================================================
// GUESTS
// =============================================================================

// Guest is a per-tenant identity keyed by email. Aggregates are maintained
// by the reservation transaction and never decremented.
type Guest struct {
	ID            string
	TenantID      TenantID
	Email         string
	Name          string
	Phone         string
	TotalBookings int
	TotalSpent    decimal.Decimal
	FirstVisit    time.Time
	LastVisit     time.Time
}

// GuestDetails is the contact information submitted with a reservation.
type GuestDetails struct {
	Name  string
	Email string
	Phone string
}

// =============================================================================
// BOOKINGS
// =============================================================================

type BookingSource string

const (
	SourceOnline BookingSource = "online"
	SourceManual BookingSource = "manual"
)

// Booking reserves one room for [CheckIn, CheckOut). For a given room, no
// two bookings outside the terminal-excluded statuses may overlap.
type Booking struct {
	ID        BookingID
	TenantID  TenantID
	Reference string
	GroupID   GroupID // empty unless part of a group booking

	RoomID RoomID
	TypeID AccommodationTypeID

	BookingType BookingType
	CheckIn     Date
	CheckOut    Date

	GuestName  string
	GuestEmail string
	GuestPhone string
	Adults     int
	Children   int

	BaseAmount     decimal.Decimal
	PaxSurcharge   decimal.Decimal
	AddonsAmount   decimal.Decimal
	DiscountAmount decimal.Decimal
	TotalAmount    decimal.Decimal
	VoucherCode    string

	Status        BookingStatus
	PaymentStatus PaymentStatus
	Source        BookingSource

	PaymentMethod    string
	PaymentReference string

	CancelledAt        *time.Time
	CancellationReason string
	CheckedInAt        *time.Time
	CheckedOutAt       *time.Time
	PaidAt             *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// BookingAddon is a persisted addon line on a booking.
type BookingAddon struct {
	ID        string
	BookingID BookingID
	AddonID   string
	Name      string
	Quantity  int // effective quantity after pricing-model expansion
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// BookingGroup aggregates bookings created together: one guest, several
// rooms, one shared reference. TotalAmount equals the sum of the child
// bookings' TotalAmount.
type BookingGroup struct {
	ID          GroupID
	TenantID    TenantID
	Reference   string
	GuestName   string
	GuestEmail  string
	TotalAmount decimal.Decimal
	CreatedAt   time.Time
}

// =============================================================================
// AUDIT
// =============================================================================

// BookingStatusLog is an immutable audit row recording one field change.
type BookingStatusLog struct {
	ID           string
	TenantID     TenantID
	BookingID    BookingID
	FieldChanged string // "status" or "payment_status"
	OldValue     string
	NewValue     string
	ChangedBy    string
	ChangeSource string // "admin" or "system"
	Notes        string
	CreatedAt    time.Time
}
