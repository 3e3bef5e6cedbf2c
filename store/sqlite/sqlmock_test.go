package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/store/sqlite"
)

// These tests substitute a mock connection to exercise failure paths the
// real driver won't produce on demand.

func TestGetBooking_QueryFailurePropagates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	store := sqlite.NewWithDB(db)
	t.Cleanup(func() { store.Close() })

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("disk I/O error"))

	_, err = store.GetBooking(context.Background(), "tenant-1", "b-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.False(t, booking.IsNotFound(err), "an infrastructure failure is not a 404")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserve_BeginFailureReturnsInternalError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	store := sqlite.NewWithDB(db)
	t.Cleanup(func() { store.Close() })

	mock.ExpectBegin().WillReturnError(errors.New("database is locked"))

	at := &booking.AccommodationType{ID: "type-1", TenantID: "tenant-1",
		BasePax: 2, MaxPax: 4}
	checkIn := booking.NewDate(2025, time.March, 3)
	checkOut := booking.NewDate(2025, time.March, 5)
	q, err := booking.ComputeQuote(booking.QuoteInput{
		Type: at, CheckIn: checkIn, CheckOut: checkOut, Adults: 2,
	})
	require.NoError(t, err)

	_, err = store.Reserve(context.Background(), booking.ReservationInput{
		TenantID:    "tenant-1",
		BookingType: booking.BookingOvernight,
		CheckIn:     checkIn,
		CheckOut:    checkOut,
		Guest:       booking.GuestDetails{Name: "Maria", Email: "maria@example.com"},
		Rooms: []booking.RoomReservation{{
			RoomID: "room-1", TypeID: "type-1", Adults: 2, Quote: q,
		}},
		Today: booking.Today(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to begin reservation transaction")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExpirePending_ScanFailurePropagates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	store := sqlite.NewWithDB(db)
	t.Cleanup(func() { store.Close() })

	mock.ExpectQuery("SELECT id, tenant_id FROM bookings").
		WillReturnError(errors.New("connection reset"))

	_, err = store.ExpirePending(context.Background(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to query sweep candidates")

	assert.NoError(t, mock.ExpectationsWereMet())
}
