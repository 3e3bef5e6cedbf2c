/*
availability.go - Per-day occupancy classification

PURPOSE:
  Turns a room count and a set of bookings into a day-by-day occupancy
  report: total rooms, booked rooms, and a status. This is an advisory,
  point-in-time snapshot - read-only, no locking - and it can be stale the
  moment it returns. The authoritative, race-free check happens inside the
  reservation transaction.

CLASSIFICATION (per day):
  available == 0                     -> full
  available <= ceil(total * 0.3)     -> limited
  otherwise                          -> available

  Terminal-excluded bookings (cancelled, expired, no_show) do not consume
  inventory; callers must filter them out before calling (the store query
  does this), and ComputeOccupancy filters again defensively.

BOUNDS:
  The report range is an inclusive day range capped at 90 days.

SEE ALSO:
  - store/sqlite/reservation.go: the in-transaction overlap check
  - calendar.go: Occupies, DaysInclusive
*/
package booking

// MaxAvailabilityDays bounds the cost of an occupancy report.
const MaxAvailabilityDays = 90

// limitedNumerator/limitedDenominator encode the 30% "limited" threshold.
const (
	limitedNumerator   = 3
	limitedDenominator = 10
)

// OccupancyStatus classifies a day's remaining inventory.
type OccupancyStatus string

const (
	OccupancyFull      OccupancyStatus = "full"
	OccupancyLimited   OccupancyStatus = "limited"
	OccupancyAvailable OccupancyStatus = "available"
)

// DayOccupancy is the report entry for one calendar day.
type DayOccupancy struct {
	TotalRooms  int
	BookedRooms int
	Status      OccupancyStatus
}

// ComputeOccupancy builds the date -> occupancy map for the inclusive range
// [start, end]. bookings should be the non-terminal bookings on the rooms
// in scope whose intervals overlap the range.
func ComputeOccupancy(totalRooms int, bookings []Booking, start, end Date) (map[Date]DayOccupancy, error) {
	if end.Before(start) {
		return nil, ErrInvalidDateRange
	}
	if start.DaysUntil(end)+1 > MaxAvailabilityDays {
		return nil, ErrSpanTooLong
	}

	report := make(map[Date]DayOccupancy, start.DaysUntil(end)+1)
	for _, day := range DaysInclusive(start, end) {
		booked := 0
		for _, b := range bookings {
			if b.Status.ConsumesInventory() && Occupies(day, b.CheckIn, b.CheckOut) {
				booked++
			}
		}
		report[day] = DayOccupancy{
			TotalRooms:  totalRooms,
			BookedRooms: booked,
			Status:      classifyOccupancy(totalRooms, booked),
		}
	}
	return report, nil
}

func classifyOccupancy(total, booked int) OccupancyStatus {
	available := total - booked
	if available <= 0 {
		return OccupancyFull
	}
	// ceil(total * 0.3) without floating point
	limitedAt := (total*limitedNumerator + limitedDenominator - 1) / limitedDenominator
	if available <= limitedAt {
		return OccupancyLimited
	}
	return OccupancyAvailable
}
