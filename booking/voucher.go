/*
voucher.go - Voucher validation and discount computation

PURPOSE:
  A stateless rule chain that accepts or rejects a voucher code against a
  booking, and computes a bounded discount. Evaluated in a fixed order,
  short-circuiting on the first failure, each rule with its own error code:

    1. exists + active            -> INVALID_CODE
    2. valid_from <= today        -> NOT_YET_ACTIVE
    3. valid_until >= today       -> EXPIRED
    4. times_used < usage_limit   -> LIMIT_REACHED
    5. applies_to matches         -> WRONG_TYPE
    6. amount >= min_booking      -> MIN_AMOUNT

  Validation never increments times_used. Only a committed reservation
  redeems the voucher, so abandoned checkouts cost nothing.

DISCOUNT:
  percentage: amount * value/100, capped at max_discount when set.
  fixed:      value.
  Either way the final discount never exceeds the booking amount, and is
  rounded to 2 decimal places.

SEE ALSO:
  - store/sqlite/reservation.go: re-validates and redeems inside the
    reservation transaction
*/
package booking

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// VOUCHER ERRORS
// =============================================================================

// VoucherErrorCode identifies which rule rejected the code.
type VoucherErrorCode string

const (
	VoucherInvalidCode  VoucherErrorCode = "INVALID_CODE"
	VoucherNotYetActive VoucherErrorCode = "NOT_YET_ACTIVE"
	VoucherExpired      VoucherErrorCode = "EXPIRED"
	VoucherLimitReached VoucherErrorCode = "LIMIT_REACHED"
	VoucherWrongType    VoucherErrorCode = "WRONG_TYPE"
	VoucherMinAmount    VoucherErrorCode = "MIN_AMOUNT"
)

// VoucherError is a rejection from the rule chain. Classified as a
// conflict by the API layer.
type VoucherError struct {
	Code VoucherErrorCode
}

func (e *VoucherError) Error() string {
	switch e.Code {
	case VoucherInvalidCode:
		return "voucher code is invalid"
	case VoucherNotYetActive:
		return "voucher is not yet active"
	case VoucherExpired:
		return "voucher has expired"
	case VoucherLimitReached:
		return "voucher usage limit reached"
	case VoucherWrongType:
		return "voucher does not apply to this booking type"
	case VoucherMinAmount:
		return "booking amount below voucher minimum"
	default:
		return string(e.Code)
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidateVoucher runs the rule chain. v may be nil (unknown code). today
// is passed in rather than read from the clock so the reservation
// transaction and tests evaluate against a fixed date.
func ValidateVoucher(v *Voucher, today Date, bookingType BookingType, bookingAmount decimal.Decimal) error {
	if v == nil || !v.IsActive {
		return &VoucherError{Code: VoucherInvalidCode}
	}
	if v.ValidFrom != nil && today.Before(*v.ValidFrom) {
		return &VoucherError{Code: VoucherNotYetActive}
	}
	if v.ValidUntil != nil && today.After(*v.ValidUntil) {
		return &VoucherError{Code: VoucherExpired}
	}
	if v.UsageLimit != nil && v.TimesUsed >= *v.UsageLimit {
		return &VoucherError{Code: VoucherLimitReached}
	}
	if !v.AppliesTo.Matches(bookingType) {
		return &VoucherError{Code: VoucherWrongType}
	}
	if v.MinBookingAmount != nil && bookingAmount.LessThan(*v.MinBookingAmount) {
		return &VoucherError{Code: VoucherMinAmount}
	}
	return nil
}

// VoucherDiscount computes the bounded discount for a valid voucher.
func VoucherDiscount(v *Voucher, bookingAmount decimal.Decimal) decimal.Decimal {
	var raw decimal.Decimal
	switch v.DiscountType {
	case DiscountPercentage:
		raw = bookingAmount.Mul(v.DiscountValue).Div(oneHundred)
		if v.MaxDiscount != nil && raw.GreaterThan(*v.MaxDiscount) {
			raw = *v.MaxDiscount
		}
	case DiscountFixed:
		raw = v.DiscountValue
	}
	if raw.GreaterThan(bookingAmount) {
		raw = bookingAmount
	}
	if raw.IsNegative() {
		raw = decimal.Zero
	}
	return raw.Round(2)
}
