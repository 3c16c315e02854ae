// Package service contains the booking core of the dive trip API.
// Services validate inputs, enforce business rules, and orchestrate repo calls.
// No SQL lives here; services depend on repo interfaces, not implementations.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/reefline/divetrips/internal/domain"
)

// Notifier hands notifications off for delivery. Implementations must not
// block the caller on delivery and must not report delivery failures.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n domain.Notification)

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, n domain.Notification) { f(ctx, n) }

type discardNotifier struct{}

func (discardNotifier) Notify(context.Context, domain.Notification) {}

// options are the settings shared by every service constructor.
type options struct {
	now    func() time.Time
	logger *slog.Logger
}

// Option customises a service.
type Option func(*options)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the logger. slog.Default is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{
		now:    func() time.Time { return time.Now().UTC() },
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
