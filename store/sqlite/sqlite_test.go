package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const testTenant = booking.TenantID("tenant-1")

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedType(t *testing.T, store *sqlite.Store, id string) *booking.AccommodationType {
	t.Helper()
	at := &booking.AccommodationType{
		ID:               booking.AccommodationTypeID(id),
		TenantID:         testTenant,
		Name:             "Family Room " + id,
		BaseRateWeekday:  decimal.NewFromInt(3000),
		BaseRateWeekend:  decimal.NewFromInt(3500),
		BasePax:          2,
		MaxPax:           4,
		AdditionalPaxFee: decimal.NewFromInt(500),
		IsActive:         true,
	}
	require.NoError(t, store.SaveAccommodationType(context.Background(), at))
	return at
}

func seedRoom(t *testing.T, store *sqlite.Store, id, typeID string) {
	t.Helper()
	require.NoError(t, store.SaveRoom(context.Background(), &booking.Room{
		ID:       booking.RoomID(id),
		TenantID: testTenant,
		TypeID:   booking.AccommodationTypeID(typeID),
		Name:     "Room " + id,
		IsActive: true,
	}))
}

func quoteFor(t *testing.T, at *booking.AccommodationType, checkIn, checkOut booking.Date, adults, children int) *booking.Quote {
	t.Helper()
	q, err := booking.ComputeQuote(booking.QuoteInput{
		Type:     at,
		CheckIn:  checkIn,
		CheckOut: checkOut,
		Adults:   adults,
		Children: children,
	})
	require.NoError(t, err)
	return q
}

func reservation(at *booking.AccommodationType, roomID string, checkIn, checkOut booking.Date, q *booking.Quote, email string) booking.ReservationInput {
	return booking.ReservationInput{
		TenantID:    testTenant,
		BookingType: booking.BookingOvernight,
		CheckIn:     checkIn,
		CheckOut:    checkOut,
		Guest:       booking.GuestDetails{Name: "Maria Santos", Email: email, Phone: "+63-917-555-0101"},
		Rooms: []booking.RoomReservation{{
			RoomID:   booking.RoomID(roomID),
			TypeID:   at.ID,
			Adults:   2,
			Children: 0,
			Quote:    q,
		}},
		Source: booking.SourceOnline,
		Today:  booking.Today(),
	}
}

// =============================================================================
// INVENTORY
// =============================================================================

func TestAccommodationType_SaveAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedType(t, store, "type-1")

	at, err := store.GetAccommodationType(ctx, testTenant, "type-1")
	require.NoError(t, err)
	assert.Equal(t, "3000", at.BaseRateWeekday.String())
	assert.Equal(t, "3500", at.BaseRateWeekend.String())
	assert.Equal(t, 2, at.BasePax)
	assert.Equal(t, 4, at.MaxPax)
}

func TestAccommodationType_InactiveBehavesLikeMissing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	at := seedType(t, store, "type-1")

	at.IsActive = false
	require.NoError(t, store.SaveAccommodationType(ctx, at))

	_, err := store.GetAccommodationType(ctx, testTenant, "type-1")
	assert.ErrorIs(t, err, booking.ErrTypeNotFound)
}

func TestAccommodationType_TenantScoped(t *testing.T) {
	store := newTestStore(t)
	seedType(t, store, "type-1")

	_, err := store.GetAccommodationType(context.Background(), "other-tenant", "type-1")
	assert.ErrorIs(t, err, booking.ErrTypeNotFound)
}

func TestListActiveRooms_FiltersInactiveAndType(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedType(t, store, "type-1")
	seedType(t, store, "type-2")
	seedRoom(t, store, "room-1", "type-1")
	seedRoom(t, store, "room-2", "type-1")
	seedRoom(t, store, "room-3", "type-2")

	require.NoError(t, store.SaveRoom(ctx, &booking.Room{
		ID: "room-2", TenantID: testTenant, TypeID: "type-1", Name: "Room room-2", IsActive: false,
	}))

	rooms, err := store.ListActiveRooms(ctx, testTenant, "type-1")
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, booking.RoomID("room-1"), rooms[0].ID)

	all, err := store.ListActiveRooms(ctx, testTenant, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRateAdjustment_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ra := &booking.RateAdjustment{
		ID:        "adj-1",
		TenantID:  testTenant,
		Name:      "Summer Promo",
		StartDate: booking.NewDate(2025, time.June, 1),
		EndDate:   booking.NewDate(2025, time.June, 30),
		Type:      booking.AdjustmentPercentageDiscount,
		Value:     decimal.NewFromInt(10),
		AppliesTo: []booking.AccommodationTypeID{"type-1", "type-2"},
		Priority:  3,
		IsActive:  true,
	}
	require.NoError(t, store.SaveRateAdjustment(ctx, ra))

	list, err := store.ListActiveAdjustments(ctx, testTenant)
	require.NoError(t, err)
	require.Len(t, list, 1)
	got := list[0]
	assert.Equal(t, "Summer Promo", got.Name)
	assert.Equal(t, "2025-06-01", got.StartDate.String())
	assert.Equal(t, 3, got.Priority)
	assert.Equal(t, []booking.AccommodationTypeID{"type-1", "type-2"}, got.AppliesTo)
}

// =============================================================================
// VOUCHERS
// =============================================================================

func TestVoucher_CodeUniquePerTenant(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	v := &booking.Voucher{
		ID: "v-1", TenantID: testTenant, Code: "SUMMER20",
		DiscountType: booking.DiscountPercentage, DiscountValue: decimal.NewFromInt(20),
		AppliesTo: booking.AppliesBoth, IsActive: true,
	}
	require.NoError(t, store.SaveVoucher(ctx, v))

	dup := *v
	dup.ID = "v-2"
	err := store.SaveVoucher(ctx, &dup)
	assert.True(t, booking.IsValidation(err), "duplicate code in the same tenant must be rejected")

	// Same code under another tenant is fine.
	other := *v
	other.ID = "v-3"
	other.TenantID = "other-tenant"
	assert.NoError(t, store.SaveVoucher(ctx, &other))
}

func TestGetVoucherByCode_MissingReturnsNil(t *testing.T) {
	store := newTestStore(t)
	v, err := store.GetVoucherByCode(context.Background(), testTenant, "NOPE")
	require.NoError(t, err)
	assert.Nil(t, v)
}

// =============================================================================
// GUESTS
// =============================================================================

func TestGetGuestByEmail_MissingReturnsNil(t *testing.T) {
	store := newTestStore(t)
	g, err := store.GetGuestByEmail(context.Background(), testTenant, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, g)
}

func TestGuestAggregates_AccumulateAcrossReservations(t *testing.T) {
	// GIVEN: two reservations by the same email on different rooms
	// THEN:  one guest row with total_bookings=2 and summed total_spent
	store := newTestStore(t)
	ctx := context.Background()
	at := seedType(t, store, "type-1")
	seedRoom(t, store, "room-1", "type-1")
	seedRoom(t, store, "room-2", "type-1")

	checkIn := booking.NewDate(2025, time.March, 3)
	checkOut := booking.NewDate(2025, time.March, 5)
	q := quoteFor(t, at, checkIn, checkOut, 2, 0)

	_, err := store.Reserve(ctx, reservation(at, "room-1", checkIn, checkOut, q, "maria@example.com"))
	require.NoError(t, err)
	_, err = store.Reserve(ctx, reservation(at, "room-2", checkIn, checkOut, q, "maria@example.com"))
	require.NoError(t, err)

	g, err := store.GetGuestByEmail(ctx, testTenant, "maria@example.com")
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Equal(t, 2, g.TotalBookings)
	assert.Equal(t, q.GrandTotal.Add(q.GrandTotal).String(), g.TotalSpent.String())
	assert.False(t, g.FirstVisit.IsZero())
	assert.False(t, g.LastVisit.Before(g.FirstVisit))
}
