/*
errors.go - Error taxonomy for the booking engine

PURPOSE:
  One place for every error the engine can produce, grouped by how the API
  layer must report them:

    ValidationError  -> 400, field-level detail
    not-found        -> 404
    ConflictError    -> 409, machine-readable code
    anything else    -> 500, generic message (full detail in logs)

  Only the reservation transaction and the voucher validator may produce
  conflicts. Everything else either succeeds or raises validation/not-found.

USAGE:
  if booking.IsConflict(err) { ... 409 ... }
  var verr *booking.ValidationError
  if errors.As(err, &verr) { ... 400 with verr.Field ... }

SEE ALSO:
  - voucher.go: VoucherError (a conflict with one of six codes)
  - store/sqlite/reservation.go: produces ErrRoomUnavailable
  - api/handlers.go: maps this taxonomy to HTTP statuses
*/
package booking

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrRoomUnavailable is returned when the reservation transaction finds
	// an overlapping non-terminal booking on a requested room.
	ErrRoomUnavailable = errors.New("room unavailable for the requested dates")

	// ErrTenantMismatch is returned when a referenced entity does not belong
	// to the requesting tenant. Reported as not-found to avoid leaking
	// other tenants' data.
	ErrTenantMismatch = errors.New("entity does not belong to tenant")

	// ErrTypeNotFound is returned for an unknown or inactive rate card.
	ErrTypeNotFound = errors.New("accommodation type not found")

	// ErrRoomNotFound is returned for an unknown or inactive room.
	ErrRoomNotFound = errors.New("room not found")

	// ErrBookingNotFound is returned for an unknown booking.
	ErrBookingNotFound = errors.New("booking not found")

	// ErrGroupNotFound is returned for an unknown booking group.
	ErrGroupNotFound = errors.New("booking group not found")

	// ErrInvalidDateRange is returned when check-out is not after check-in
	// or a report range is inverted.
	ErrInvalidDateRange = errors.New("invalid date range")

	// ErrSpanTooLong is returned when an availability query exceeds the
	// 90-day bound.
	ErrSpanTooLong = errors.New("date span exceeds 90 days")

	// ErrReferenceExhausted is returned if reference generation keeps
	// colliding. Practically unreachable; indicates a broken generator.
	ErrReferenceExhausted = errors.New("could not generate unique reference")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ValidationError reports malformed input, caught before any transaction.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ConflictError reports a booking conflict detected inside the reservation
// transaction. Code is machine-readable (e.g. ROOM_UNAVAILABLE).
type ConflictError struct {
	Code    string
	Message string
	RoomID  RoomID
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ConflictError) Unwrap() error { return ErrRoomUnavailable }

// TransitionError reports an illegal status or payment transition.
type TransitionError struct {
	Field string
	From  string
	To    string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal %s transition: %s -> %s", e.Field, e.From, e.To)
}

// =============================================================================
// CLASSIFICATION HELPERS
// =============================================================================

// IsValidation reports whether the error is due to invalid client input.
func IsValidation(err error) bool {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return true
	}
	var terr *TransitionError
	if errors.As(err, &terr) {
		return true
	}
	return errors.Is(err, ErrInvalidDateRange) || errors.Is(err, ErrSpanTooLong)
}

// IsNotFound reports whether the error indicates a missing tenant-scoped
// entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTypeNotFound) ||
		errors.Is(err, ErrRoomNotFound) ||
		errors.Is(err, ErrBookingNotFound) ||
		errors.Is(err, ErrGroupNotFound) ||
		errors.Is(err, ErrTenantMismatch)
}

// IsConflict reports whether the error is a booking or voucher conflict.
func IsConflict(err error) bool {
	if errors.Is(err, ErrRoomUnavailable) {
		return true
	}
	var verr *VoucherError
	return errors.As(err, &verr)
}
