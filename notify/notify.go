/*
Package notify sends guest-facing booking notifications.

PURPOSE:
  Fire-and-forget email on booking creation, confirmation, and
  cancellation. Failures are logged and swallowed: a notification must
  never fail or roll back the state change that triggered it.

IMPLEMENTATIONS:
  LogNotifier:      logs the would-be email; default for development
  SendGridNotifier: real delivery via the SendGrid API (sendgrid.go)

SEE ALSO:
  - api/handlers.go, api/scheduler.go: call sites (always in a goroutine)
*/
package notify

import (
	"context"

	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/logger"
)

// Notifier delivers guest notifications. Implementations must be safe for
// concurrent use.
type Notifier interface {
	BookingCreated(ctx context.Context, b *booking.Booking)
	BookingConfirmed(ctx context.Context, b *booking.Booking)
	BookingCancelled(ctx context.Context, b *booking.Booking)
}

// LogNotifier writes notifications to the log instead of sending them.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier { return &LogNotifier{} }

func (n *LogNotifier) BookingCreated(ctx context.Context, b *booking.Booking) {
	logger.Info("notification: booking created",
		"reference", b.Reference, "email", b.GuestEmail)
}

func (n *LogNotifier) BookingConfirmed(ctx context.Context, b *booking.Booking) {
	logger.Info("notification: booking confirmed",
		"reference", b.Reference, "email", b.GuestEmail)
}

func (n *LogNotifier) BookingCancelled(ctx context.Context, b *booking.Booking) {
	logger.Info("notification: booking cancelled",
		"reference", b.Reference, "email", b.GuestEmail)
}
