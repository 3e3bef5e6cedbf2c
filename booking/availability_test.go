package booking_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/booking-engine/booking"
)

func stay(room string, status booking.BookingStatus, checkIn, checkOut booking.Date) booking.Booking {
	return booking.Booking{
		ID:       booking.BookingID("b-" + room),
		TenantID: "tenant-1",
		RoomID:   booking.RoomID(room),
		Status:   status,
		CheckIn:  checkIn,
		CheckOut: checkOut,
	}
}

// =============================================================================
// OCCUPANCY CLASSIFICATION
// =============================================================================

func TestComputeOccupancy_LimitedThreshold(t *testing.T) {
	// GIVEN: 5 rooms with 3 overlapping bookings on a day
	// THEN:  available=2 <= ceil(5*0.3)=2 -> limited
	day := booking.NewDate(2025, time.March, 10)
	bookings := []booking.Booking{
		stay("room-1", booking.StatusConfirmed, day, day.AddDays(2)),
		stay("room-2", booking.StatusPending, day.AddDays(-1), day.AddDays(1)),
		stay("room-3", booking.StatusCheckedIn, day, day.AddDays(1)),
	}

	report, err := booking.ComputeOccupancy(5, bookings, day, day)
	require.NoError(t, err)

	occ := report[day]
	assert.Equal(t, 5, occ.TotalRooms)
	assert.Equal(t, 3, occ.BookedRooms)
	assert.Equal(t, booking.OccupancyLimited, occ.Status)
}

func TestComputeOccupancy_FullAndAvailable(t *testing.T) {
	day := booking.NewDate(2025, time.March, 10)

	t.Run("full when every room is booked", func(t *testing.T) {
		bookings := []booking.Booking{
			stay("room-1", booking.StatusConfirmed, day, day.AddDays(1)),
			stay("room-2", booking.StatusConfirmed, day, day.AddDays(1)),
		}
		report, err := booking.ComputeOccupancy(2, bookings, day, day)
		require.NoError(t, err)
		assert.Equal(t, booking.OccupancyFull, report[day].Status)
	})

	t.Run("available with plenty of rooms left", func(t *testing.T) {
		bookings := []booking.Booking{
			stay("room-1", booking.StatusConfirmed, day, day.AddDays(1)),
		}
		report, err := booking.ComputeOccupancy(10, bookings, day, day)
		require.NoError(t, err)
		// 9 available > ceil(10*0.3)=3
		assert.Equal(t, booking.OccupancyAvailable, report[day].Status)
	})

	t.Run("limited boundary at ten rooms", func(t *testing.T) {
		var bookings []booking.Booking
		for i := 0; i < 7; i++ {
			bookings = append(bookings, stay(string(rune('a'+i)), booking.StatusConfirmed, day, day.AddDays(1)))
		}
		report, err := booking.ComputeOccupancy(10, bookings, day, day)
		require.NoError(t, err)
		// 3 available == ceil(10*0.3)=3 -> limited
		assert.Equal(t, booking.OccupancyLimited, report[day].Status)
	})

	t.Run("zero rooms is always full", func(t *testing.T) {
		report, err := booking.ComputeOccupancy(0, nil, day, day)
		require.NoError(t, err)
		assert.Equal(t, booking.OccupancyFull, report[day].Status)
	})
}

func TestComputeOccupancy_TerminalBookingsReleaseInventory(t *testing.T) {
	day := booking.NewDate(2025, time.March, 10)
	bookings := []booking.Booking{
		stay("room-1", booking.StatusCancelled, day, day.AddDays(1)),
		stay("room-2", booking.StatusExpired, day, day.AddDays(1)),
		stay("room-3", booking.StatusNoShow, day, day.AddDays(1)),
		stay("room-4", booking.StatusConfirmed, day, day.AddDays(1)),
	}

	report, err := booking.ComputeOccupancy(4, bookings, day, day)
	require.NoError(t, err)
	assert.Equal(t, 1, report[day].BookedRooms)
}

func TestComputeOccupancy_CheckoutDayNotBooked(t *testing.T) {
	// GIVEN: a stay March 10 -> March 12
	// THEN:  March 12 shows the room free
	checkIn := booking.NewDate(2025, time.March, 10)
	checkOut := booking.NewDate(2025, time.March, 12)
	bookings := []booking.Booking{stay("room-1", booking.StatusConfirmed, checkIn, checkOut)}

	report, err := booking.ComputeOccupancy(1, bookings, checkIn, checkOut)
	require.NoError(t, err)

	assert.Equal(t, 1, report[checkIn].BookedRooms)
	assert.Equal(t, 1, report[checkIn.AddDays(1)].BookedRooms)
	assert.Equal(t, 0, report[checkOut].BookedRooms)
}

// =============================================================================
// RANGE BOUNDS
// =============================================================================

func TestComputeOccupancy_RangeBounds(t *testing.T) {
	start := booking.NewDate(2025, time.March, 1)

	t.Run("inverted range rejected", func(t *testing.T) {
		_, err := booking.ComputeOccupancy(5, nil, start, start.AddDays(-1))
		assert.ErrorIs(t, err, booking.ErrInvalidDateRange)
	})

	t.Run("90 days allowed, 91 rejected", func(t *testing.T) {
		_, err := booking.ComputeOccupancy(5, nil, start, start.AddDays(89))
		assert.NoError(t, err)

		_, err = booking.ComputeOccupancy(5, nil, start, start.AddDays(90))
		assert.ErrorIs(t, err, booking.ErrSpanTooLong)
	})

	t.Run("single day report", func(t *testing.T) {
		report, err := booking.ComputeOccupancy(5, nil, start, start)
		require.NoError(t, err)
		assert.Len(t, report, 1)
	})
}
