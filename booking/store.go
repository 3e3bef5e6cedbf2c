/*
store.go - Persistence interfaces

PURPOSE:
  Defines what the engine needs from a backing store. The API layer depends
  on these interfaces; store/sqlite implements them. Every method is
  tenant-scoped: an ID from the wrong tenant behaves like a missing row.

THE RESERVATION CONTRACT:
  Reserve is the one operation requiring true mutual exclusion. It must be
  a single indivisible transaction: availability re-check, reference
  generation, guest upsert, booking + addon inserts, voucher redemption,
  and the group row all commit together or not at all. Implementations
  must guarantee that two concurrent Reserve calls for overlapping
  intervals on the same room cannot both succeed.

SEE ALSO:
  - store/sqlite: the SQLite implementation
*/
package booking

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RESERVATION INPUT/OUTPUT
// =============================================================================

// RoomReservation is one room's slice of a reservation: the room and its
// server-computed quote. Voucher discounts are allocated across rooms by
// Reserve itself.
type RoomReservation struct {
	RoomID   RoomID
	TypeID   AccommodationTypeID
	Adults   int
	Children int
	Quote    *Quote
}

// ReservationInput is everything Reserve needs. Quotes and discounts are
// computed server-side by the caller; Reserve re-checks the race-sensitive
// facts (room ownership/activity, overlap, voucher eligibility) under the
// transaction.
type ReservationInput struct {
	TenantID    TenantID
	BookingType BookingType
	CheckIn     Date
	CheckOut    Date
	Guest       GuestDetails
	Rooms       []RoomReservation
	VoucherCode string // empty = no voucher
	Source      BookingSource
	Today       Date // voucher validity is evaluated against this date
}

// ReservationResult reports a committed reservation.
type ReservationResult struct {
	BookingIDs []BookingID
	References []string
	GroupID    GroupID // set for group bookings
	GroupRef   string  // set for group bookings
	Discount   decimal.Decimal
	Total      decimal.Decimal
}

// =============================================================================
// STORE INTERFACES
// =============================================================================

// InventoryStore reads and writes rate cards, rooms, adjustments, addons,
// and vouchers.
type InventoryStore interface {
	SaveAccommodationType(ctx context.Context, at *AccommodationType) error
	GetAccommodationType(ctx context.Context, tenant TenantID, id AccommodationTypeID) (*AccommodationType, error)
	ListAccommodationTypes(ctx context.Context, tenant TenantID) ([]AccommodationType, error)

	SaveRoom(ctx context.Context, r *Room) error
	ListActiveRooms(ctx context.Context, tenant TenantID, typeID AccommodationTypeID) ([]Room, error)

	SaveRateAdjustment(ctx context.Context, ra *RateAdjustment) error
	ListActiveAdjustments(ctx context.Context, tenant TenantID) ([]RateAdjustment, error)

	SaveAddon(ctx context.Context, a *Addon) error
	GetAddons(ctx context.Context, tenant TenantID, ids []string) ([]Addon, error)

	SaveVoucher(ctx context.Context, v *Voucher) error
	GetVoucherByCode(ctx context.Context, tenant TenantID, code string) (*Voucher, error)
}

// BookingStore reads bookings and executes the reservation transaction and
// status transitions.
type BookingStore interface {
	// Reserve runs the atomic reservation transaction.
	Reserve(ctx context.Context, in ReservationInput) (*ReservationResult, error)

	GetBooking(ctx context.Context, tenant TenantID, id BookingID) (*Booking, error)
	GetBookingByReference(ctx context.Context, tenant TenantID, reference string) (*Booking, error)
	ListBookings(ctx context.Context, tenant TenantID) ([]Booking, error)
	ListBookingAddons(ctx context.Context, id BookingID) ([]BookingAddon, error)
	GetGroup(ctx context.Context, tenant TenantID, id GroupID) (*BookingGroup, error)

	// ListOverlapping returns non-terminal bookings on the given rooms whose
	// interval overlaps [start, end). Empty roomIDs means all rooms of the
	// tenant. Advisory only; Reserve re-checks under its transaction.
	ListOverlapping(ctx context.Context, tenant TenantID, roomIDs []RoomID, start, end Date) ([]Booking, error)

	// ApplyStatusChange performs a status or payment transition, writing the
	// derived timestamps and the audit row in one transaction.
	ApplyStatusChange(ctx context.Context, tenant TenantID, id BookingID, change StatusChange) (*Booking, error)

	ListStatusLogs(ctx context.Context, tenant TenantID, id BookingID) ([]BookingStatusLog, error)

	// ExpirePending transitions pending bookings created before cutoff to
	// expired. MarkNoShows transitions confirmed bookings whose check-in
	// date is before today to no_show. Both return how many bookings moved.
	ExpirePending(ctx context.Context, cutoff time.Time) (int, error)
	MarkNoShows(ctx context.Context, today Date) (int, error)
}

// GuestStore reads guest aggregates (written by Reserve).
type GuestStore interface {
	GetGuestByEmail(ctx context.Context, tenant TenantID, email string) (*Guest, error)
}

// Store is the full persistence surface the API needs.
type Store interface {
	InventoryStore
	BookingStore
	GuestStore
}
