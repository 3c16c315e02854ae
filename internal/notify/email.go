package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/reefline/divetrips/internal/domain"
)

// mailClient is the part of *sendgrid.Client used here.
type mailClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// EmailSender delivers notifications by email through SendGrid. Divers
// without an address on file are skipped silently.
type EmailSender struct {
	client   mailClient
	from     *mail.Email
	contacts ContactLookup
	logger   *slog.Logger
}

// NewEmailSender returns an EmailSender that sends from fromAddress.
func NewEmailSender(apiKey, fromAddress string, contacts ContactLookup, logger *slog.Logger) (*EmailSender, error) {
	if apiKey == "" || fromAddress == "" {
		return nil, errors.New("notify.NewEmailSender: api key and from address are required")
	}
	return newEmailSender(sendgrid.NewSendClient(apiKey), fromAddress, contacts, logger), nil
}

func newEmailSender(client mailClient, fromAddress string, contacts ContactLookup, logger *slog.Logger) *EmailSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmailSender{
		client:   client,
		from:     mail.NewEmail("Reefline Dive Trips", fromAddress),
		contacts: contacts,
		logger:   logger,
	}
}

// Send implements Sender.
func (e *EmailSender) Send(ctx context.Context, n domain.Notification) error {
	contact, err := e.contacts.GetContact(ctx, n.DiverID)
	if err != nil {
		return fmt.Errorf("notify.EmailSender.Send: %w", err)
	}
	if contact.Email == "" {
		e.logger.DebugContext(ctx, "email notification skipped, no address", "diver_id", n.DiverID)
		return nil
	}

	to := mail.NewEmail(contact.Name, contact.Email)
	body := Text(n)
	msg := mail.NewSingleEmail(e.from, Subject(n), to, body, "")

	resp, err := e.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("notify.EmailSender.Send: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("notify.EmailSender.Send: sendgrid returned status %d", resp.StatusCode)
	}
	return nil
}

// Subject is the email subject line for n.
func Subject(n domain.Notification) string {
	switch n.Kind {
	case domain.NotificationWaitlistSpotAvailable:
		return "A seat opened up: " + n.TripTitle
	case domain.NotificationBookingCancelled:
		return "Booking cancelled: " + n.TripTitle
	case domain.NotificationTripCancelled:
		return "Trip cancelled: " + n.TripTitle
	}
	return "Update: " + n.TripTitle
}
