/*
status.go - Status/payment transitions and the audit trail

PURPOSE:
  Applies one transition at a time: the field update, its derived
  timestamps, and the append-only audit row commit in the same sql.Tx, so
  the booking's state and its history can never diverge.

  The scheduler's sweeps (ExpirePending, MarkNoShows) run through the same
  transition helper with change_source=system, one transaction per
  booking - a sweep that trips over one bad row still moves the rest.

SEE ALSO:
  - booking/status.go: the legal transition graphs
  - api/scheduler.go: who calls the sweeps
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/warp/booking-engine/booking"
)

// ApplyStatusChange performs a status or payment transition with its audit
// row, atomically.
func (s *Store) ApplyStatusChange(ctx context.Context, tenant booking.TenantID, id booking.BookingID, change booking.StatusChange) (*booking.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transition: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		"SELECT"+bookingColumns+" FROM bookings WHERE id = ? AND tenant_id = ?",
		id, tenant)
	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, booking.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load booking: %w", err)
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
			return nil, &booking.TransitionError{
				Field: booking.FieldStatus,
				From:  string(b.Status),
				To:    string(to),
			}
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
			return nil, &booking.TransitionError{
				Field: booking.FieldPaymentStatus,
				From:  string(b.PaymentStatus),
				To:    string(to),
			}
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
	_, err = tx.ExecContext(ctx, `
		UPDATE bookings SET
			status = ?, payment_status = ?,
			payment_method = ?, payment_reference = ?,
			cancelled_at = ?, cancellation_reason = ?,
			checked_in_at = ?, checked_out_at = ?, paid_at = ?,
			updated_at = ?
		WHERE id = ?`,
		b.Status, b.PaymentStatus,
		nullString(b.PaymentMethod), nullString(b.PaymentReference),
		nullTime(b.CancelledAt), nullString(b.CancellationReason),
		nullTime(b.CheckedInAt), nullTime(b.CheckedOutAt), nullTime(b.PaidAt),
		now.Format(time.RFC3339), b.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update booking: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO booking_status_logs
		(id, tenant_id, booking_id, field_changed, old_value, new_value,
		 changed_by, change_source, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		booking.NewID(), tenant, b.ID, change.Field, oldValue, change.NewValue,
		change.ChangedBy, change.Source, nullString(change.Notes),
		now.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to append audit row: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transition: %w", err)
	}
	return b, nil
}

// ListStatusLogs returns a booking's audit trail, oldest first.
func (s *Store) ListStatusLogs(ctx context.Context, tenant booking.TenantID, id booking.BookingID) ([]booking.BookingStatusLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, booking_id, field_changed, old_value, new_value,
		       changed_by, change_source, notes, created_at
		FROM booking_status_logs
		WHERE tenant_id = ? AND booking_id = ?
		ORDER BY created_at ASC, id ASC`,
		tenant, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list status logs: %w", err)
	}
	defer rows.Close()

	var logs []booking.BookingStatusLog
	for rows.Next() {
		var l booking.BookingStatusLog
		var notes sql.NullString
		var createdAt string
		if err := rows.Scan(&l.ID, &l.TenantID, &l.BookingID, &l.FieldChanged,
			&l.OldValue, &l.NewValue, &l.ChangedBy, &l.ChangeSource, &notes, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan status log: %w", err)
		}
		l.Notes = notes.String
		l.CreatedAt = parseTime(createdAt)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// =============================================================================
// SCHEDULED SWEEPS
// =============================================================================

// ExpirePending transitions pending bookings created before cutoff to
// expired. Returns how many bookings moved.
func (s *Store) ExpirePending(ctx context.Context, cutoff time.Time) (int, error) {
	return s.sweep(ctx, `
		SELECT id, tenant_id FROM bookings
		WHERE status = ? AND created_at < ?`,
		[]any{booking.StatusPending, cutoff.UTC().Format(time.RFC3339)},
		booking.StatusExpired, "pending booking expired before payment",
	)
}

// MarkNoShows transitions confirmed bookings whose check-in date has
// passed without a check-in to no_show.
func (s *Store) MarkNoShows(ctx context.Context, today booking.Date) (int, error) {
	return s.sweep(ctx, `
		SELECT id, tenant_id FROM bookings
		WHERE status = ? AND check_in < ?`,
		[]any{booking.StatusConfirmed, today.String()},
		booking.StatusNoShow, "guest did not arrive by check-in date",
	)
}

func (s *Store) sweep(ctx context.Context, query string, args []any, to booking.BookingStatus, note string) (int, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to query sweep candidates: %w", err)
	}

	type candidate struct {
		id     booking.BookingID
		tenant booking.TenantID
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.id, &c.tenant); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan sweep candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	moved := 0
	for _, c := range candidates {
		_, err := s.ApplyStatusChange(ctx, c.tenant, c.id, booking.StatusChange{
			Field:     booking.FieldStatus,
			NewValue:  string(to),
			ChangedBy: "scheduler",
			Source:    booking.SourceSystem,
			Notes:     note,
		})
		if err != nil {
			// The candidate may have transitioned between the scan and the
			// update; skip it rather than abort the sweep.
			continue
		}
		moved++
	}
	return moved, nil
}
