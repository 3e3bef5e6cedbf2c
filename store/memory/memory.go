/*
Package memory provides an in-memory booking.Store for tests and local
development.

PURPOSE:
  Same contract as store/sqlite, no database: one RWMutex over plain maps.
  Reserve and ApplyStatusChange run entirely under the write lock, so the
  atomicity guarantees hold here too (all-or-nothing is achieved by
  staging writes and applying them only after every check passes).

  Not a cache and not persistent. The HTTP handler tests use it to
  exercise the API without SQLite.

SEE ALSO:
  - booking/store.go: the interfaces implemented here
  - store/sqlite: the production implementation
*/
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/booking-engine/booking"
)

type tenantKey struct {
	tenant booking.TenantID
	id     string
}

// Store is the in-memory implementation of booking.Store.
type Store struct {
	mu sync.RWMutex

	types       map[tenantKey]booking.AccommodationType
	rooms       map[tenantKey]booking.Room
	adjustments map[tenantKey]booking.RateAdjustment
	addons      map[tenantKey]booking.Addon
	vouchers    map[tenantKey]booking.Voucher // keyed by code
	guests      map[tenantKey]booking.Guest   // keyed by email
	bookings    map[booking.BookingID]booking.Booking
	groups      map[booking.GroupID]booking.BookingGroup
	addonLines  map[booking.BookingID][]booking.BookingAddon
	logs        map[booking.BookingID][]booking.BookingStatusLog
}

var _ booking.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		types:       make(map[tenantKey]booking.AccommodationType),
		rooms:       make(map[tenantKey]booking.Room),
		adjustments: make(map[tenantKey]booking.RateAdjustment),
		addons:      make(map[tenantKey]booking.Addon),
		vouchers:    make(map[tenantKey]booking.Voucher),
		guests:      make(map[tenantKey]booking.Guest),
		bookings:    make(map[booking.BookingID]booking.Booking),
		groups:      make(map[booking.GroupID]booking.BookingGroup),
		addonLines:  make(map[booking.BookingID][]booking.BookingAddon),
		logs:        make(map[booking.BookingID][]booking.BookingStatusLog),
	}
}

// =============================================================================
// INVENTORY
// =============================================================================

func (m *Store) SaveAccommodationType(_ context.Context, at *booking.AccommodationType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.types[tenantKey{at.TenantID, string(at.ID)}] = *at
	return nil
}

func (m *Store) GetAccommodationType(_ context.Context, tenant booking.TenantID, id booking.AccommodationTypeID) (*booking.AccommodationType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	at, ok := m.types[tenantKey{tenant, string(id)}]
	if !ok || !at.IsActive {
		return nil, booking.ErrTypeNotFound
	}
	out := at
	return &out, nil
}

func (m *Store) ListAccommodationTypes(_ context.Context, tenant booking.TenantID) ([]booking.AccommodationType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []booking.AccommodationType
	for k, at := range m.types {
		if k.tenant == tenant && at.IsActive {
			out = append(out, at)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Store) SaveRoom(_ context.Context, r *booking.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[tenantKey{r.TenantID, string(r.ID)}] = *r
	return nil
}

func (m *Store) ListActiveRooms(_ context.Context, tenant booking.TenantID, typeID booking.AccommodationTypeID) ([]booking.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []booking.Room
	for k, r := range m.rooms {
		if k.tenant != tenant || !r.IsActive {
			continue
		}
		if typeID != "" && r.TypeID != typeID {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Store) SaveRateAdjustment(_ context.Context, ra *booking.RateAdjustment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adjustments[tenantKey{ra.TenantID, ra.ID}] = *ra
	return nil
}

func (m *Store) ListActiveAdjustments(_ context.Context, tenant booking.TenantID) ([]booking.RateAdjustment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []booking.RateAdjustment
	for k, ra := range m.adjustments {
		if k.tenant == tenant && ra.IsActive {
			out = append(out, ra)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Store) SaveAddon(_ context.Context, a *booking.Addon) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addons[tenantKey{a.TenantID, a.ID}] = *a
	return nil
}

func (m *Store) GetAddons(_ context.Context, tenant booking.TenantID, ids []string) ([]booking.Addon, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []booking.Addon
	for _, id := range ids {
		if a, ok := m.addons[tenantKey{tenant, id}]; ok && a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *Store) SaveVoucher(_ context.Context, v *booking.Voucher) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vouchers[tenantKey{v.TenantID, v.Code}] = *v
	return nil
}

// GetVoucherByCode returns (nil, nil) for an unknown code, matching the
// SQLite store; the validator turns that into INVALID_CODE.
func (m *Store) GetVoucherByCode(_ context.Context, tenant booking.TenantID, code string) (*booking.Voucher, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vouchers[tenantKey{tenant, code}]
	if !ok {
		return nil, nil
	}
	out := v
	return &out, nil
}

// =============================================================================
// GUESTS
// =============================================================================

func (m *Store) GetGuestByEmail(_ context.Context, tenant booking.TenantID, email string) (*booking.Guest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.guests[tenantKey{tenant, email}]
	if !ok {
		return nil, nil
	}
	out := g
	return &out, nil
}

// =============================================================================
// RESERVATION
// =============================================================================

// Reserve mirrors the SQLite transaction: every check runs under the write
// lock, and nothing is stored until all checks pass.
func (m *Store) Reserve(_ context.Context, in booking.ReservationInput) (*booking.ReservationResult, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rr := range in.Rooms {
		room, ok := m.rooms[tenantKey{in.TenantID, string(rr.RoomID)}]
		if !ok || !room.IsActive {
			return nil, booking.ErrRoomNotFound
		}
		for _, b := range m.bookings {
			if b.TenantID == in.TenantID && b.RoomID == rr.RoomID &&
				b.Status.ConsumesInventory() &&
				booking.Overlaps(in.CheckIn, in.CheckOut, b.CheckIn, b.CheckOut) {
				return nil, &booking.ConflictError{
					Code:    "ROOM_UNAVAILABLE",
					Message: "room already booked for the requested dates",
					RoomID:  rr.RoomID,
				}
			}
		}
	}

	combined := decimal.Zero
	for _, rr := range in.Rooms {
		combined = combined.Add(rr.Quote.GrandTotal)
	}

	var totalDiscount decimal.Decimal
	var voucherKey tenantKey
	var redeem bool
	if in.VoucherCode != "" {
		voucherKey = tenantKey{in.TenantID, in.VoucherCode}
		v, ok := m.vouchers[voucherKey]
		var vp *booking.Voucher
		if ok {
			vp = &v
		}
		if err := booking.ValidateVoucher(vp, in.Today, in.BookingType, combined); err != nil {
			return nil, err
		}
		totalDiscount = booking.VoucherDiscount(vp, combined)
		redeem = true
	}

	discounts := allocateDiscount(totalDiscount, in.Rooms)
	grandTotal := combined.Sub(totalDiscount)
	now := time.Now().UTC()

	result := &booking.ReservationResult{Discount: totalDiscount, Total: grandTotal}

	var groupID booking.GroupID
	if len(in.Rooms) > 1 {
		groupID = booking.GroupID(booking.NewID())
		groupRef := booking.NewReference(booking.GroupReferencePrefix)
		m.groups[groupID] = booking.BookingGroup{
			ID:          groupID,
			TenantID:    in.TenantID,
			Reference:   groupRef,
			GuestName:   in.Guest.Name,
			GuestEmail:  in.Guest.Email,
			TotalAmount: grandTotal,
			CreatedAt:   now,
		}
		result.GroupID = groupID
		result.GroupRef = groupRef
	}

	for i, rr := range in.Rooms {
		id := booking.BookingID(booking.NewID())
		ref := booking.NewReference(booking.BookingReferencePrefix)
		total := rr.Quote.GrandTotal.Sub(discounts[i])

		m.bookings[id] = booking.Booking{
			ID:             id,
			TenantID:       in.TenantID,
			Reference:      ref,
			GroupID:        groupID,
			RoomID:         rr.RoomID,
			TypeID:         rr.TypeID,
			BookingType:    in.BookingType,
			CheckIn:        in.CheckIn,
			CheckOut:       in.CheckOut,
			GuestName:      in.Guest.Name,
			GuestEmail:     in.Guest.Email,
			GuestPhone:     in.Guest.Phone,
			Adults:         rr.Adults,
			Children:       rr.Children,
			BaseAmount:     rr.Quote.TotalBaseRate,
			PaxSurcharge:   rr.Quote.TotalPaxSurcharge,
			AddonsAmount:   rr.Quote.AddonsAmount,
			DiscountAmount: discounts[i],
			TotalAmount:    total,
			VoucherCode:    in.VoucherCode,
			Status:         booking.StatusPending,
			PaymentStatus:  booking.PaymentUnpaid,
			Source:         in.Source,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		for _, line := range rr.Quote.AddonLines {
			m.addonLines[id] = append(m.addonLines[id], booking.BookingAddon{
				ID:        booking.NewID(),
				BookingID: id,
				AddonID:   line.AddonID,
				Name:      line.Name,
				Quantity:  line.Quantity,
				UnitPrice: line.UnitPrice,
				LineTotal: line.LineTotal,
			})
		}
		result.BookingIDs = append(result.BookingIDs, id)
		result.References = append(result.References, ref)
	}

	if redeem {
		v := m.vouchers[voucherKey]
		v.TimesUsed++
		m.vouchers[voucherKey] = v
	}

	guestKey := tenantKey{in.TenantID, in.Guest.Email}
	if g, ok := m.guests[guestKey]; ok {
		g.Name = in.Guest.Name
		g.Phone = in.Guest.Phone
		g.TotalBookings++
		g.TotalSpent = g.TotalSpent.Add(grandTotal)
		g.LastVisit = now
		m.guests[guestKey] = g
	} else {
		m.guests[guestKey] = booking.Guest{
			ID:            booking.NewID(),
			TenantID:      in.TenantID,
			Email:         in.Guest.Email,
			Name:          in.Guest.Name,
			Phone:         in.Guest.Phone,
			TotalBookings: 1,
			TotalSpent:    grandTotal,
			FirstVisit:    now,
			LastVisit:     now,
		}
	}

	return result, nil
}

func validateInput(in booking.ReservationInput) error {
	if !in.CheckIn.Before(in.CheckOut) {
		return booking.ErrInvalidDateRange
	}
	if len(in.Rooms) == 0 {
		return &booking.ValidationError{Field: "rooms", Message: "at least one room is required"}
	}
	if in.Guest.Email == "" {
		return &booking.ValidationError{Field: "guest_email", Message: "guest email is required"}
	}
	if in.Guest.Name == "" {
		return &booking.ValidationError{Field: "guest_name", Message: "guest name is required"}
	}
	seen := make(map[booking.RoomID]bool, len(in.Rooms))
	for _, rr := range in.Rooms {
		if rr.Quote == nil {
			return &booking.ValidationError{Field: "rooms", Message: "room entry is missing its computed quote"}
		}
		if seen[rr.RoomID] {
			return &booking.ValidationError{Field: "rooms", Message: "duplicate room in reservation"}
		}
		seen[rr.RoomID] = true
	}
	return nil
}

func allocateDiscount(total decimal.Decimal, rooms []booking.RoomReservation) []decimal.Decimal {
	shares := make([]decimal.Decimal, len(rooms))
	if total.IsZero() || len(rooms) == 0 {
		return shares
	}
	if len(rooms) == 1 {
		shares[0] = total
		return shares
	}
	combined := decimal.Zero
	for _, rr := range rooms {
		combined = combined.Add(rr.Quote.GrandTotal)
	}
	if combined.IsZero() {
		shares[len(shares)-1] = total
		return shares
	}
	allocated := decimal.Zero
	for i := 0; i < len(rooms)-1; i++ {
		share := total.Mul(rooms[i].Quote.GrandTotal).Div(combined).Round(2)
		shares[i] = share
		allocated = allocated.Add(share)
	}
	shares[len(shares)-1] = total.Sub(allocated)
	return shares
}

// =============================================================================
// BOOKING QUERIES
// =============================================================================

func (m *Store) GetBooking(_ context.Context, tenant booking.TenantID, id booking.BookingID) (*booking.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[id]
	if !ok || b.TenantID != tenant {
		return nil, booking.ErrBookingNotFound
	}
	out := b
	return &out, nil
}

func (m *Store) GetBookingByReference(_ context.Context, tenant booking.TenantID, reference string) (*booking.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.bookings {
		if b.TenantID == tenant && b.Reference == reference {
			out := b
			return &out, nil
		}
	}
	return nil, booking.ErrBookingNotFound
}

func (m *Store) ListBookings(_ context.Context, tenant booking.TenantID) ([]booking.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []booking.Booking
	for _, b := range m.bookings {
		if b.TenantID == tenant {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Store) ListBookingAddons(_ context.Context, id booking.BookingID) ([]booking.BookingAddon, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]booking.BookingAddon(nil), m.addonLines[id]...), nil
}

func (m *Store) GetGroup(_ context.Context, tenant booking.TenantID, id booking.GroupID) (*booking.BookingGroup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.groups[id]
	if !ok || g.TenantID != tenant {
		return nil, booking.ErrGroupNotFound
	}
	out := g
	return &out, nil
}

func (m *Store) ListOverlapping(_ context.Context, tenant booking.TenantID, roomIDs []booking.RoomID, start, end booking.Date) ([]booking.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inScope := func(id booking.RoomID) bool {
		if len(roomIDs) == 0 {
			return true
		}
		for _, r := range roomIDs {
			if r == id {
				return true
			}
		}
		return false
	}
	var out []booking.Booking
	for _, b := range m.bookings {
		if b.TenantID == tenant && b.Status.ConsumesInventory() && inScope(b.RoomID) &&
			booking.Overlaps(start, end, b.CheckIn, b.CheckOut) {
			out = append(out, b)
		}
	}
	return out, nil
}

// =============================================================================
// TRANSITIONS & SWEEPS
// =============================================================================

func (m *Store) ApplyStatusChange(_ context.Context, tenant booking.TenantID, id booking.BookingID, change booking.StatusChange) (*booking.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyLocked(tenant, id, change)
}

func (m *Store) applyLocked(tenant booking.TenantID, id booking.BookingID, change booking.StatusChange) (*booking.Booking, error) {
	b, ok := m.bookings[id]
	if !ok || b.TenantID != tenant {
		return nil, booking.ErrBookingNotFound
	}

	now := time.Now().UTC()
	var oldValue string

	switch change.Field {
	case booking.FieldStatus:
		to, err := booking.ParseBookingStatus(change.NewValue)
		if err != nil {
			return nil, err
		}
		if !b.Status.CanTransitionTo(to) {
			return nil, &booking.TransitionError{Field: change.Field, From: string(b.Status), To: string(to)}
		}
		oldValue = string(b.Status)
		b.Status = to
		switch to {
		case booking.StatusCancelled:
			b.CancelledAt = &now
			b.CancellationReason = change.Reason
		case booking.StatusCheckedIn:
			b.CheckedInAt = &now
		case booking.StatusCheckedOut:
			b.CheckedOutAt = &now
		}

	case booking.FieldPaymentStatus:
		to, err := booking.ParsePaymentStatus(change.NewValue)
		if err != nil {
			return nil, err
		}
		if !b.PaymentStatus.CanTransitionTo(to) {
			return nil, &booking.TransitionError{Field: change.Field, From: string(b.PaymentStatus), To: string(to)}
		}
		oldValue = string(b.PaymentStatus)
		b.PaymentStatus = to
		if change.PaymentMethod != "" {
			b.PaymentMethod = change.PaymentMethod
		}
		if change.PaymentReference != "" {
			b.PaymentReference = change.PaymentReference
		}
		if to == booking.PaymentPaid {
			b.PaidAt = &now
		}

	default:
		return nil, &booking.ValidationError{Field: "field", Message: "unknown transition field: " + change.Field}
	}

	b.UpdatedAt = now
	m.bookings[id] = b
	m.logs[id] = append(m.logs[id], booking.BookingStatusLog{
		ID:           booking.NewID(),
		TenantID:     tenant,
		BookingID:    id,
		FieldChanged: change.Field,
		OldValue:     oldValue,
		NewValue:     change.NewValue,
		ChangedBy:    change.ChangedBy,
		ChangeSource: string(change.Source),
		Notes:        change.Notes,
		CreatedAt:    now,
	})

	out := b
	return &out, nil
}

func (m *Store) ListStatusLogs(_ context.Context, tenant booking.TenantID, id booking.BookingID) ([]booking.BookingStatusLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []booking.BookingStatusLog
	for _, l := range m.logs[id] {
		if l.TenantID == tenant {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *Store) ExpirePending(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	moved := 0
	for id, b := range m.bookings {
		if b.Status == booking.StatusPending && b.CreatedAt.Before(cutoff) {
			if _, err := m.applyLocked(b.TenantID, id, systemChange(booking.StatusExpired, "pending booking expired before payment")); err == nil {
				moved++
			}
		}
	}
	return moved, nil
}

func (m *Store) MarkNoShows(_ context.Context, today booking.Date) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	moved := 0
	for id, b := range m.bookings {
		if b.Status == booking.StatusConfirmed && b.CheckIn.Before(today) {
			if _, err := m.applyLocked(b.TenantID, id, systemChange(booking.StatusNoShow, "guest did not arrive by check-in date")); err == nil {
				moved++
			}
		}
	}
	return moved, nil
}

func systemChange(to booking.BookingStatus, note string) booking.StatusChange {
	return booking.StatusChange{
		Field:     booking.FieldStatus,
		NewValue:  string(to),
		ChangedBy: "scheduler",
		Source:    booking.SourceSystem,
		Notes:     note,
	}
}
