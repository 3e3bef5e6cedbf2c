/*
status.go - Booking status and payment state machines

PURPOSE:
  Governs every post-creation mutation of a booking. A booking is created
  as pending/unpaid by the reservation transaction; afterwards it only
  changes through these transitions, each of which appends an immutable
  BookingStatusLog row in the same store transaction.

STATUS GRAPH:
  pending    -> confirmed, cancelled, expired
  confirmed  -> checked_in, cancelled, no_show
  checked_in -> checked_out
  checked_out, cancelled, expired, no_show are terminal.

  expired and no_show are reached by the scheduler's sweeps, not by guests
  or admins directly (they still flow through the same transition code so
  the audit trail is complete).

PAYMENT:
  payment_status is the single authoritative payment indicator. The status
  enum deliberately has no "paid" value; a dual representation invites the
  two fields disagreeing.

  unpaid  -> partial, paid
  partial -> paid
  paid    -> refunded
  refunded is terminal.

SEE ALSO:
  - store/sqlite/status.go: applies transitions + audit atomically
  - api/scheduler.go: expiry and no-show sweeps
*/
package booking

// =============================================================================
// BOOKING STATUS
// =============================================================================

type BookingStatus string

const (
	StatusPending    BookingStatus = "pending"
	StatusConfirmed  BookingStatus = "confirmed"
	StatusCheckedIn  BookingStatus = "checked_in"
	StatusCheckedOut BookingStatus = "checked_out"
	StatusCancelled  BookingStatus = "cancelled"
	StatusExpired    BookingStatus = "expired"
	StatusNoShow     BookingStatus = "no_show"
)

var statusTransitions = map[BookingStatus][]BookingStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled, StatusExpired},
	StatusConfirmed: {StatusCheckedIn, StatusCancelled, StatusNoShow},
	StatusCheckedIn: {StatusCheckedOut},
}

// CanTransitionTo reports whether the status transition is legal.
func (s BookingStatus) CanTransitionTo(to BookingStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further status transitions are possible.
func (s BookingStatus) Terminal() bool {
	return len(statusTransitions[s]) == 0
}

// ConsumesInventory reports whether a booking in this status blocks its
// room. Cancelled, expired, and no-show bookings release inventory.
func (s BookingStatus) ConsumesInventory() bool {
	switch s {
	case StatusCancelled, StatusExpired, StatusNoShow:
		return false
	default:
		return true
	}
}

// ParseBookingStatus validates a stored or submitted status string.
func ParseBookingStatus(s string) (BookingStatus, error) {
	switch BookingStatus(s) {
	case StatusPending, StatusConfirmed, StatusCheckedIn, StatusCheckedOut,
		StatusCancelled, StatusExpired, StatusNoShow:
		return BookingStatus(s), nil
	}
	return "", &ValidationError{Field: "status", Message: "unknown status: " + s}
}

// =============================================================================
// PAYMENT STATUS
// =============================================================================

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPartial  PaymentStatus = "partial"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentUnpaid:  {PaymentPartial, PaymentPaid},
	PaymentPartial: {PaymentPaid},
	PaymentPaid:    {PaymentRefunded},
}

// CanTransitionTo reports whether the payment transition is legal.
func (p PaymentStatus) CanTransitionTo(to PaymentStatus) bool {
	for _, allowed := range paymentTransitions[p] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ParsePaymentStatus validates a stored or submitted payment status string.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch PaymentStatus(s) {
	case PaymentUnpaid, PaymentPartial, PaymentPaid, PaymentRefunded:
		return PaymentStatus(s), nil
	}
	return "", &ValidationError{Field: "payment_status", Message: "unknown payment status: " + s}
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// ChangeSource records who drove a transition.
type ChangeSource string

const (
	SourceAdmin  ChangeSource = "admin"
	SourceSystem ChangeSource = "system"
)

// StatusChange describes one requested transition. Field is either
// "status" or "payment_status".
type StatusChange struct {
	Field            string
	NewValue         string
	ChangedBy        string
	Source           ChangeSource
	Notes            string
	Reason           string // cancellation reason, when cancelling
	PaymentMethod    string // payment transitions only
	PaymentReference string // payment transitions only
}

const (
	FieldStatus        = "status"
	FieldPaymentStatus = "payment_status"
)
