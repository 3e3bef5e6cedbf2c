/*
reservation.go - The atomic reservation transaction

PURPOSE:
  Reserve is the one place in the engine that needs true mutual exclusion.
  Everything race-sensitive happens inside a single sql.Tx under the
  store's writer lock:

    1. each room re-validated: belongs to tenant, is active
    2. overlap re-check against non-terminal bookings (the availability
       endpoint is only advisory)
    3. tenant-unique reference generation (retried on collision)
    4. guest upsert: total_bookings, total_spent, first/last visit
    5. booking + addon line inserts (status=pending, payment=unpaid)
    6. voucher re-validation and redemption (times_used++)
    7. group parent row for multi-room reservations
    8. commit - or roll back with zero rows visible

  A detected overlap aborts with a ConflictError, distinct from
  validation errors (caught before the transaction opens) and internal
  failures.

DISCOUNT ALLOCATION:
  The voucher is validated against the combined amount of all rooms; the
  resulting discount is allocated across bookings proportionally to their
  pre-discount totals, with the rounding remainder on the last booking,
  so the group invariant (group total == sum of child totals) holds
  exactly.

SEE ALSO:
  - booking/store.go: the Reserve contract
  - booking/voucher.go: the rule chain re-run in step 6
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/booking-engine/booking"
)

const referenceAttempts = 5

// Reserve runs the atomic reservation transaction.
func (s *Store) Reserve(ctx context.Context, in booking.ReservationInput) (*booking.ReservationResult, error) {
	if err := validateReservationInput(in); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin reservation transaction: %w", err)
	}
	defer tx.Rollback()

	// Step 1+2: per-room ownership and overlap re-checks.
	for _, rr := range in.Rooms {
		if err := s.checkRoom(ctx, tx, in, rr); err != nil {
			return nil, err
		}
	}

	// Combined pre-discount amount across all rooms.
	combined := decimal.Zero
	for _, rr := range in.Rooms {
		combined = combined.Add(rr.Quote.GrandTotal)
	}

	// Step 6 (validation half): the voucher must still pass at this
	// instant; a voucher that ran out since the preview is a conflict.
	var totalDiscount decimal.Decimal
	var voucher *booking.Voucher
	if in.VoucherCode != "" {
		voucher, err = getVoucherByCode(ctx, tx, in.TenantID, in.VoucherCode)
		if err != nil {
			return nil, err
		}
		if verr := booking.ValidateVoucher(voucher, in.Today, in.BookingType, combined); verr != nil {
			return nil, verr
		}
		totalDiscount = booking.VoucherDiscount(voucher, combined)
	}

	discounts := allocateDiscount(totalDiscount, in.Rooms)

	grandTotal := combined.Sub(totalDiscount)

	// Step 4: guest upsert.
	if err := s.upsertGuest(ctx, tx, in, grandTotal); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	result := &booking.ReservationResult{
		Discount: totalDiscount,
		Total:    grandTotal,
	}

	// Step 7 (first half): the parent row exists before its children.
	var groupID booking.GroupID
	if len(in.Rooms) > 1 {
		groupID = booking.GroupID(booking.NewID())
		groupRef, err := s.uniqueReference(ctx, tx, in.TenantID, "booking_groups", booking.GroupReferencePrefix)
		if err != nil {
			return nil, err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO booking_groups (id, tenant_id, reference, guest_name, guest_email, total_amount, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			groupID, in.TenantID, groupRef, in.Guest.Name, in.Guest.Email,
			grandTotal.String(), now.Format(time.RFC3339),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert booking group: %w", err)
		}
		result.GroupID = groupID
		result.GroupRef = groupRef
	}

	// Step 3+5: bookings and addon lines.
	for i, rr := range in.Rooms {
		ref, err := s.uniqueReference(ctx, tx, in.TenantID, "bookings", booking.BookingReferencePrefix)
		if err != nil {
			return nil, err
		}

		id := booking.BookingID(booking.NewID())
		total := rr.Quote.GrandTotal.Sub(discounts[i])

		_, err = tx.ExecContext(ctx, `
			INSERT INTO bookings
			(id, tenant_id, reference, group_id, room_id, type_id, booking_type,
			 check_in, check_out, guest_name, guest_email, guest_phone,
			 adults, children, base_amount, pax_surcharge, addons_amount,
			 discount_amount, total_amount, voucher_code, status, payment_status,
			 source, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, in.TenantID, ref, nullString(string(groupID)),
			rr.RoomID, rr.TypeID, in.BookingType,
			in.CheckIn.String(), in.CheckOut.String(),
			in.Guest.Name, in.Guest.Email, nullString(in.Guest.Phone),
			rr.Adults, rr.Children,
			rr.Quote.TotalBaseRate.String(), rr.Quote.TotalPaxSurcharge.String(),
			rr.Quote.AddonsAmount.String(), discounts[i].String(), total.String(),
			nullString(in.VoucherCode),
			booking.StatusPending, booking.PaymentUnpaid, in.Source,
			now.Format(time.RFC3339), now.Format(time.RFC3339),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert booking: %w", err)
		}

		for _, line := range rr.Quote.AddonLines {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO booking_addons (id, booking_id, addon_id, name, quantity, unit_price, line_total)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				booking.NewID(), id, line.AddonID, line.Name,
				line.Quantity, line.UnitPrice.String(), line.LineTotal.String(),
			)
			if err != nil {
				return nil, fmt.Errorf("failed to insert booking addon: %w", err)
			}
		}

		result.BookingIDs = append(result.BookingIDs, id)
		result.References = append(result.References, ref)
	}

	// Step 6 (redemption half). The guard on times_used means a voucher
	// racing to its limit fails here rather than over-redeeming.
	if voucher != nil {
		res, err := tx.ExecContext(ctx, `
			UPDATE vouchers SET times_used = times_used + 1
			WHERE id = ? AND (usage_limit IS NULL OR times_used < usage_limit)`,
			voucher.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to redeem voucher: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to redeem voucher: %w", err)
		}
		if affected == 0 {
			return nil, &booking.VoucherError{Code: booking.VoucherLimitReached}
		}
	}

	// Step 8: commit.
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit reservation: %w", err)
	}
	return result, nil
}

// validateReservationInput rejects malformed input before the transaction
// opens.
func validateReservationInput(in booking.ReservationInput) error {
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

// checkRoom re-validates one room under the transaction: tenant ownership,
// active flag, and no overlapping non-terminal booking.
func (s *Store) checkRoom(ctx context.Context, tx *sql.Tx, in booking.ReservationInput, rr booking.RoomReservation) error {
	var active int
	err := tx.QueryRowContext(ctx,
		"SELECT is_active FROM rooms WHERE id = ? AND tenant_id = ?",
		rr.RoomID, in.TenantID,
	).Scan(&active)
	if err == sql.ErrNoRows {
		return booking.ErrRoomNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check room: %w", err)
	}
	if active == 0 {
		return booking.ErrRoomNotFound
	}

	var overlapping int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM bookings
		WHERE room_id = ? AND tenant_id = ?
		  AND status NOT IN (?, ?, ?)
		  AND check_in < ? AND ? < check_out`,
		rr.RoomID, in.TenantID,
		booking.StatusCancelled, booking.StatusExpired, booking.StatusNoShow,
		in.CheckOut.String(), in.CheckIn.String(),
	).Scan(&overlapping)
	if err != nil {
		return fmt.Errorf("failed to check overlap: %w", err)
	}
	if overlapping > 0 {
		return &booking.ConflictError{
			Code:    "ROOM_UNAVAILABLE",
			Message: "room already booked for the requested dates",
			RoomID:  rr.RoomID,
		}
	}
	return nil
}

// uniqueReference generates a reference and verifies it is unused within
// the tenant. The unique index is the backstop; this check under the
// writer lock makes collisions a retry instead of a failed insert.
func (s *Store) uniqueReference(ctx context.Context, tx *sql.Tx, tenant booking.TenantID, table, prefix string) (string, error) {
	for attempt := 0; attempt < referenceAttempts; attempt++ {
		ref := booking.NewReference(prefix)
		var count int
		err := tx.QueryRowContext(ctx,
			fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE tenant_id = ? AND reference = ?", table),
			tenant, ref,
		).Scan(&count)
		if err != nil {
			return "", fmt.Errorf("failed to check reference: %w", err)
		}
		if count == 0 {
			return ref, nil
		}
	}
	return "", booking.ErrReferenceExhausted
}

// upsertGuest maintains the per-tenant guest aggregates. total_spent is
// decimal text, so the addition happens in Go inside the transaction.
func (s *Store) upsertGuest(ctx context.Context, tx *sql.Tx, in booking.ReservationInput, spent decimal.Decimal) error {
	now := time.Now().UTC().Format(time.RFC3339)

	var id, prevSpent string
	var prevBookings int
	err := tx.QueryRowContext(ctx,
		"SELECT id, total_spent, total_bookings FROM guests WHERE tenant_id = ? AND email = ?",
		in.TenantID, in.Guest.Email,
	).Scan(&id, &prevSpent, &prevBookings)

	switch {
	case err == sql.ErrNoRows:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO guests (id, tenant_id, email, name, phone, total_bookings, total_spent, first_visit, last_visit)
			VALUES (?, ?, ?, ?, ?, 1, ?, ?, ?)`,
			booking.NewID(), in.TenantID, in.Guest.Email, in.Guest.Name,
			nullString(in.Guest.Phone), spent.String(), now, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert guest: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to look up guest: %w", err)
	default:
		newSpent := mustDecimal(prevSpent).Add(spent)
		_, err = tx.ExecContext(ctx, `
			UPDATE guests
			SET name = ?, phone = ?, total_bookings = ?, total_spent = ?, last_visit = ?
			WHERE id = ?`,
			in.Guest.Name, nullString(in.Guest.Phone),
			prevBookings+1, newSpent.String(), now, id,
		)
		if err != nil {
			return fmt.Errorf("failed to update guest: %w", err)
		}
	}
	return nil
}

// allocateDiscount splits the voucher discount across rooms proportionally
// to their pre-discount totals. The remainder lands on the last room so
// the shares always sum to the exact discount.
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

const bookingColumns = `
	id, tenant_id, reference, group_id, room_id, type_id, booking_type,
	check_in, check_out, guest_name, guest_email, guest_phone, adults, children,
	base_amount, pax_surcharge, addons_amount, discount_amount, total_amount,
	voucher_code, status, payment_status, source, payment_method, payment_reference,
	cancelled_at, cancellation_reason, checked_in_at, checked_out_at, paid_at,
	created_at, updated_at`

// GetBooking returns a booking by internal ID.
func (s *Store) GetBooking(ctx context.Context, tenant booking.TenantID, id booking.BookingID) (*booking.Booking, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT"+bookingColumns+" FROM bookings WHERE id = ? AND tenant_id = ?",
		id, tenant)
	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, booking.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

// GetBookingByReference returns a booking by its guest-facing reference.
func (s *Store) GetBookingByReference(ctx context.Context, tenant booking.TenantID, reference string) (*booking.Booking, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT"+bookingColumns+" FROM bookings WHERE reference = ? AND tenant_id = ?",
		reference, tenant)
	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, booking.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

// ListBookings returns all bookings for a tenant, newest first.
func (s *Store) ListBookings(ctx context.Context, tenant booking.TenantID) ([]booking.Booking, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT"+bookingColumns+" FROM bookings WHERE tenant_id = ? ORDER BY created_at DESC",
		tenant)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []booking.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

// ListBookingAddons returns the persisted addon lines of a booking.
func (s *Store) ListBookingAddons(ctx context.Context, id booking.BookingID) ([]booking.BookingAddon, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, booking_id, addon_id, name, quantity, unit_price, line_total
		FROM booking_addons WHERE booking_id = ?`,
		id)
	if err != nil {
		return nil, fmt.Errorf("failed to list booking addons: %w", err)
	}
	defer rows.Close()

	var lines []booking.BookingAddon
	for rows.Next() {
		var ba booking.BookingAddon
		var unitPrice, lineTotal string
		if err := rows.Scan(&ba.ID, &ba.BookingID, &ba.AddonID, &ba.Name,
			&ba.Quantity, &unitPrice, &lineTotal); err != nil {
			return nil, fmt.Errorf("failed to scan booking addon: %w", err)
		}
		ba.UnitPrice = mustDecimal(unitPrice)
		ba.LineTotal = mustDecimal(lineTotal)
		lines = append(lines, ba)
	}
	return lines, rows.Err()
}

// GetGroup returns a booking group by ID.
func (s *Store) GetGroup(ctx context.Context, tenant booking.TenantID, id booking.GroupID) (*booking.BookingGroup, error) {
	var g booking.BookingGroup
	var total, createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, reference, guest_name, guest_email, total_amount, created_at
		FROM booking_groups WHERE id = ? AND tenant_id = ?`,
		id, tenant,
	).Scan(&g.ID, &g.TenantID, &g.Reference, &g.GuestName, &g.GuestEmail, &total, &createdAt)
	if err == sql.ErrNoRows {
		return nil, booking.ErrGroupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking group: %w", err)
	}
	g.TotalAmount = mustDecimal(total)
	g.CreatedAt = parseTime(createdAt)
	return &g, nil
}

// ListOverlapping returns non-terminal bookings on the given rooms whose
// interval overlaps [start, end). Empty roomIDs means all rooms of the
// tenant.
func (s *Store) ListOverlapping(ctx context.Context, tenant booking.TenantID, roomIDs []booking.RoomID, start, end booking.Date) ([]booking.Booking, error) {
	query := "SELECT" + bookingColumns + ` FROM bookings
		WHERE tenant_id = ?
		  AND status NOT IN (?, ?, ?)
		  AND check_in < ? AND ? < check_out`
	args := []any{
		tenant,
		booking.StatusCancelled, booking.StatusExpired, booking.StatusNoShow,
		end.String(), start.String(),
	}
	if len(roomIDs) > 0 {
		query += " AND room_id IN (" + placeholders(len(roomIDs)) + ")"
		for _, id := range roomIDs {
			args = append(args, id)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list overlapping bookings: %w", err)
	}
	defer rows.Close()

	var bookings []booking.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	ps := make([]byte, 0, n*2-1)
	for i := 0; i < n; i++ {
		if i > 0 {
			ps = append(ps, ',')
		}
		ps = append(ps, '?')
	}
	return string(ps)
}

func scanBooking(row rowScanner) (*booking.Booking, error) {
	var b booking.Booking
	var groupID, guestPhone, voucherCode, paymentMethod, paymentRef sql.NullString
	var cancelledAt, cancelReason, checkedInAt, checkedOutAt, paidAt sql.NullString
	var checkIn, checkOut string
	var baseAmount, paxSurcharge, addonsAmount, discountAmount, totalAmount string
	var createdAt, updatedAt string

	err := row.Scan(
		&b.ID, &b.TenantID, &b.Reference, &groupID, &b.RoomID, &b.TypeID, &b.BookingType,
		&checkIn, &checkOut, &b.GuestName, &b.GuestEmail, &guestPhone, &b.Adults, &b.Children,
		&baseAmount, &paxSurcharge, &addonsAmount, &discountAmount, &totalAmount,
		&voucherCode, &b.Status, &b.PaymentStatus, &b.Source, &paymentMethod, &paymentRef,
		&cancelledAt, &cancelReason, &checkedInAt, &checkedOutAt, &paidAt,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.GroupID = booking.GroupID(groupID.String)
	b.GuestPhone = guestPhone.String
	b.VoucherCode = voucherCode.String
	b.PaymentMethod = paymentMethod.String
	b.PaymentReference = paymentRef.String
	b.CancellationReason = cancelReason.String
	b.CheckIn, _ = booking.ParseDate(checkIn)
	b.CheckOut, _ = booking.ParseDate(checkOut)
	b.BaseAmount = mustDecimal(baseAmount)
	b.PaxSurcharge = mustDecimal(paxSurcharge)
	b.AddonsAmount = mustDecimal(addonsAmount)
	b.DiscountAmount = mustDecimal(discountAmount)
	b.TotalAmount = mustDecimal(totalAmount)
	b.CancelledAt = parseTimePtr(cancelledAt)
	b.CheckedInAt = parseTimePtr(checkedInAt)
	b.CheckedOutAt = parseTimePtr(checkedOutAt)
	b.PaidAt = parseTimePtr(paidAt)
	b.CreatedAt = parseTime(createdAt)
	b.UpdatedAt = parseTime(updatedAt)
	return &b, nil
}
