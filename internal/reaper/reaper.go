// Package reaper removes expired channel subscriptions on a fixed interval.
package reaper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"forward_bot/internal/registry"
)

// Notifier reports removals to the admin set.
type Notifier interface {
	Broadcast(ctx context.Context, text string)
}

// Reaper periodically sweeps expired subscriptions out of the registry.
type Reaper struct {
	reg      *registry.Registry
	notifier Notifier
	log      *slog.Logger
	tick     time.Duration
	now      func() time.Time
}

// New creates a Reaper with the default one-hour sweep interval.
func New(reg *registry.Registry, notifier Notifier, log *slog.Logger) *Reaper {
	return &Reaper{
		reg:      reg,
		notifier: notifier,
		log:      log,
		tick:     1 * time.Hour,
		now:      time.Now,
	}
}

// SetTickInterval overrides the default 1-hour sweep interval.
func (r *Reaper) SetTickInterval(d time.Duration) {
	r.tick = d
}

// SetClock overrides the clock, for deterministic expiry tests.
func (r *Reaper) SetClock(now func() time.Time) {
	r.now = now
}

// Run drives Sweep on the configured interval, blocking until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Sweep(ctx, r.now()); err != nil {
				r.log.Error("sweep expired channels", "error", err)
			}
		}
	}
}

// Sweep removes every subscription expired at now and broadcasts one
// notification per removed channel. Removal is final: a notification failure
// does not roll it back, and nothing is retried.
func (r *Reaper) Sweep(ctx context.Context, now time.Time) error {
	removed, err := r.reg.RemoveExpired(ctx, now)
	if err != nil {
		return err
	}
	for _, ch := range removed {
		r.log.Info("expired channel removed", "channel_id", ch.ChannelID)
		r.notifier.Broadcast(ctx, fmt.Sprintf("Channel %d removed: subscription expired.", ch.ChannelID))
	}
	return nil
}
