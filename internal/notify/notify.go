// Package notify delivers diver notifications. Delivery is best-effort:
// the Dispatcher sends in the background and only logs failures, so a
// broken channel never blocks or reverses a booking change.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/reefline/divetrips/internal/domain"
)

// Sender delivers one notification over one channel.
type Sender interface {
	Send(ctx context.Context, n domain.Notification) error
}

// LogSender writes notifications to the log. It is the fallback channel
// when no real transport is configured.
type LogSender struct {
	Logger *slog.Logger
}

// Send implements Sender.
func (s LogSender) Send(ctx context.Context, n domain.Notification) error {
	l := s.Logger
	if l == nil {
		l = slog.Default()
	}
	l.InfoContext(ctx, "notification",
		"kind", n.Kind, "diver_id", n.DiverID, "trip_id", n.TripID, "text", Text(n))
	return nil
}

// Multi sends to every Sender and joins their errors.
type Multi []Sender

// Send implements Sender.
func (m Multi) Send(ctx context.Context, n domain.Notification) error {
	var errs []error
	for _, s := range m {
		if err := s.Send(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DefaultSendTimeout bounds a single background send.
const DefaultSendTimeout = 10 * time.Second

// Dispatcher sends notifications asynchronously. A send outlives the request
// that triggered it but is bounded by its own timeout.
type Dispatcher struct {
	sender  Sender
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewDispatcher returns a Dispatcher over sender. A timeout of zero or less
// uses DefaultSendTimeout.
func NewDispatcher(sender Sender, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{sender: sender, timeout: timeout, logger: logger}
}

// Notify starts delivery of n and returns immediately.
func (d *Dispatcher) Notify(ctx context.Context, n domain.Notification) {
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.ErrorContext(ctx, "notification panicked", "kind", n.Kind, "panic", fmt.Sprint(r))
			}
		}()

		sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()
		if err := d.sender.Send(sendCtx, n); err != nil {
			d.logger.WarnContext(ctx, "notification failed",
				"kind", n.Kind, "diver_id", n.DiverID, "trip_id", n.TripID, "error", err)
		}
	}()
}

// Wait blocks until every started send has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Text renders the human-readable message for n.
func Text(n domain.Notification) string {
	switch n.Kind {
	case domain.NotificationWaitlistSpotAvailable:
		msg := fmt.Sprintf("A seat opened up on %q.", n.TripTitle)
		if n.ExpiresAt != nil {
			msg += fmt.Sprintf(" Book before %s UTC to claim it.", n.ExpiresAt.UTC().Format("02 Jan 2006 15:04"))
		}
		return msg
	case domain.NotificationBookingCancelled:
		return fmt.Sprintf("Your booking on %q was cancelled.%s", n.TripTitle, refundText(n.RefundAmount))
	case domain.NotificationTripCancelled:
		return fmt.Sprintf("The trip %q was cancelled by the dive center.%s", n.TripTitle, refundText(n.RefundAmount))
	}
	return fmt.Sprintf("Update on %q.", n.TripTitle)
}

func refundText(amount *float64) string {
	if amount == nil || *amount <= 0 {
		return ""
	}
	return fmt.Sprintf(" A refund of %.2f SAR is on its way.", *amount)
}
