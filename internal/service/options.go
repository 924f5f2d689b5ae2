// Package service holds the business rules of the trust and access layer:
// moderation decisions, activity promotion and account operations.
package service

import (
	"fmt"
	"time"

	"townsquare/internal/featureflags"
	"townsquare/internal/keylock"
	"townsquare/internal/notifications"
)

type options struct {
	now      func() time.Time
	locks    *keylock.Locker
	notifier *notifications.Notifier
	flags    *featureflags.Manager
}

// Option customizes a service constructor.
type Option func(*options)

// WithClock replaces time.Now. Tests use it to step across suspension windows.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLocks shares a per-key locker between services. Services that mutate
// the same user rows must share one.
func WithLocks(l *keylock.Locker) Option {
	return func(o *options) { o.locks = l }
}

// WithNotifier publishes account events after commits.
func WithNotifier(n *notifications.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithFlags supplies runtime feature flags.
func WithFlags(f *featureflags.Manager) Option {
	return func(o *options) { o.flags = f }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.locks == nil {
		o.locks = keylock.New()
	}
	return o
}

func userLockKey(id string) string { return "user:" + id }

func reportLockKey(id uint) string { return fmt.Sprintf("report:%d", id) }
