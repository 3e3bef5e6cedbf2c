/*
sendgrid.go - SendGrid-backed notifier

PURPOSE:
  Real email delivery. Each notification builds a short plain-text +
  HTML message and sends it through the SendGrid API. Errors are logged,
  never returned: the caller has already committed the state change.
*/
package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/logger"
)

// SendGridNotifier sends guest emails through SendGrid.
type SendGridNotifier struct {
	apiKey    string
	fromEmail string
	fromName  string
}

func NewSendGridNotifier(apiKey, fromEmail, fromName string) *SendGridNotifier {
	return &SendGridNotifier{apiKey: apiKey, fromEmail: fromEmail, fromName: fromName}
}

func (n *SendGridNotifier) BookingCreated(ctx context.Context, b *booking.Booking) {
	subject := fmt.Sprintf("Booking received - %s", b.Reference)
	body := fmt.Sprintf(
		"Hi %s,\n\nWe received your booking %s for %s to %s. "+
			"Total: %s. We'll confirm it shortly.\n",
		b.GuestName, b.Reference, b.CheckIn, b.CheckOut, b.TotalAmount.StringFixed(2))
	n.send(b, subject, body)
}

func (n *SendGridNotifier) BookingConfirmed(ctx context.Context, b *booking.Booking) {
	subject := fmt.Sprintf("Booking confirmed - %s", b.Reference)
	body := fmt.Sprintf(
		"Hi %s,\n\nYour booking %s is confirmed. Check-in %s, check-out %s.\n",
		b.GuestName, b.Reference, b.CheckIn, b.CheckOut)
	n.send(b, subject, body)
}

func (n *SendGridNotifier) BookingCancelled(ctx context.Context, b *booking.Booking) {
	subject := fmt.Sprintf("Booking cancelled - %s", b.Reference)
	body := fmt.Sprintf(
		"Hi %s,\n\nYour booking %s has been cancelled.\n",
		b.GuestName, b.Reference)
	n.send(b, subject, body)
}

func (n *SendGridNotifier) send(b *booking.Booking, subject, plainText string) {
	from := mail.NewEmail(n.fromName, n.fromEmail)
	to := mail.NewEmail(b.GuestName, b.GuestEmail)
	htmlContent := "<p>" + plainText + "</p>"
	message := mail.NewSingleEmail(from, subject, to, plainText, htmlContent)

	client := sendgrid.NewSendClient(n.apiKey)
	response, err := client.Send(message)
	if err != nil {
		logger.Error("failed to send notification",
			"reference", b.Reference, "error", err)
		return
	}
	if response.StatusCode >= 400 {
		logger.Error("sendgrid rejected notification",
			"reference", b.Reference, "status", response.StatusCode, "body", response.Body)
	}
}
