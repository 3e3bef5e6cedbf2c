package booking_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/booking-engine/booking"
)

func dec(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func activeVoucher() *booking.Voucher {
	return &booking.Voucher{
		ID:            "v-1",
		TenantID:      "tenant-1",
		Code:          "SUMMER20",
		DiscountType:  booking.DiscountPercentage,
		DiscountValue: dec(20),
		AppliesTo:     booking.AppliesBoth,
		IsActive:      true,
	}
}

func assertVoucherCode(t *testing.T, err error, want booking.VoucherErrorCode) {
	t.Helper()
	var verr *booking.VoucherError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, want, verr.Code)
	assert.True(t, booking.IsConflict(err), "voucher rejections are conflicts")
}

// =============================================================================
// RULE CHAIN
// =============================================================================

func TestValidateVoucher_RuleChain(t *testing.T) {
	today := booking.NewDate(2025, time.June, 15)

	t.Run("unknown code", func(t *testing.T) {
		err := booking.ValidateVoucher(nil, today, booking.BookingOvernight, dec(4000))
		assertVoucherCode(t, err, booking.VoucherInvalidCode)
	})

	t.Run("inactive code", func(t *testing.T) {
		v := activeVoucher()
		v.IsActive = false
		err := booking.ValidateVoucher(v, today, booking.BookingOvernight, dec(4000))
		assertVoucherCode(t, err, booking.VoucherInvalidCode)
	})

	t.Run("not yet active", func(t *testing.T) {
		v := activeVoucher()
		from := booking.NewDate(2025, time.July, 1)
		v.ValidFrom = &from
		err := booking.ValidateVoucher(v, today, booking.BookingOvernight, dec(4000))
		assertVoucherCode(t, err, booking.VoucherNotYetActive)
	})

	t.Run("expired", func(t *testing.T) {
		v := activeVoucher()
		until := booking.NewDate(2025, time.May, 31)
		v.ValidUntil = &until
		err := booking.ValidateVoucher(v, today, booking.BookingOvernight, dec(4000))
		assertVoucherCode(t, err, booking.VoucherExpired)
	})

	t.Run("valid on boundary dates", func(t *testing.T) {
		v := activeVoucher()
		from := today
		until := today
		v.ValidFrom = &from
		v.ValidUntil = &until
		assert.NoError(t, booking.ValidateVoucher(v, today, booking.BookingOvernight, dec(4000)))
	})

	t.Run("usage limit reached", func(t *testing.T) {
		v := activeVoucher()
		limit := 100
		v.UsageLimit = &limit
		v.TimesUsed = 100
		err := booking.ValidateVoucher(v, today, booking.BookingOvernight, dec(4000))
		assertVoucherCode(t, err, booking.VoucherLimitReached)
	})

	t.Run("wrong booking type", func(t *testing.T) {
		v := activeVoucher()
		v.AppliesTo = booking.AppliesDayTour
		err := booking.ValidateVoucher(v, today, booking.BookingOvernight, dec(4000))
		assertVoucherCode(t, err, booking.VoucherWrongType)
	})

	t.Run("below minimum amount", func(t *testing.T) {
		v := activeVoucher()
		min := dec(5000)
		v.MinBookingAmount = &min
		err := booking.ValidateVoucher(v, today, booking.BookingOvernight, dec(4000))
		assertVoucherCode(t, err, booking.VoucherMinAmount)
	})

	t.Run("all rules pass", func(t *testing.T) {
		assert.NoError(t, booking.ValidateVoucher(activeVoucher(), today, booking.BookingOvernight, dec(4000)))
	})
}

func TestValidateVoucher_ShortCircuitOrder(t *testing.T) {
	// GIVEN: a voucher that is both expired and over its usage limit
	// THEN:  the date rule fires first (fixed evaluation order)
	v := activeVoucher()
	until := booking.NewDate(2025, time.January, 1)
	v.ValidUntil = &until
	limit := 1
	v.UsageLimit = &limit
	v.TimesUsed = 5

	err := booking.ValidateVoucher(v, booking.NewDate(2025, time.June, 15), booking.BookingOvernight, dec(4000))
	assertVoucherCode(t, err, booking.VoucherExpired)
}

// =============================================================================
// DISCOUNT COMPUTATION
// =============================================================================

func TestVoucherDiscount_PercentageCappedAtMax(t *testing.T) {
	// GIVEN: 20% voucher with max_discount 500 on a 4000 booking
	// THEN:  raw 800 is capped to 500
	v := activeVoucher()
	max := dec(500)
	v.MaxDiscount = &max

	got := booking.VoucherDiscount(v, dec(4000))
	assert.Equal(t, "500", got.String())
}

func TestVoucherDiscount_PercentageUncapped(t *testing.T) {
	got := booking.VoucherDiscount(activeVoucher(), dec(4000))
	assert.Equal(t, "800", got.String())
}

func TestVoucherDiscount_FixedClampedToBookingAmount(t *testing.T) {
	v := activeVoucher()
	v.DiscountType = booking.DiscountFixed
	v.DiscountValue = dec(1000)

	assert.Equal(t, "1000", booking.VoucherDiscount(v, dec(4000)).String())
	assert.Equal(t, "600", booking.VoucherDiscount(v, dec(600)).String(), "never exceeds the booking amount")
}

func TestVoucherDiscount_RoundedToCentavos(t *testing.T) {
	v := activeVoucher()
	v.DiscountValue = decimal.NewFromFloat(12.5)

	// 12.5% of 1333 = 166.625 -> 166.63
	got := booking.VoucherDiscount(v, dec(1333))
	assert.Equal(t, "166.63", got.String())
}
