// Package registry owns the lifecycle of destination channel subscriptions.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"forward_bot/internal/model"
	"forward_bot/internal/storage"
)

// ErrDuplicate is returned when subscribing a channel that is already subscribed.
var ErrDuplicate = errors.New("channel is already subscribed")

// Registry manages destination channel subscriptions on top of Storage.
// All mutations are serialized through a single mutex so the periodic reaper
// and the forwarding path cannot race on removal.
type Registry struct {
	store storage.Storage
	now   func() time.Time

	mu sync.Mutex
}

// New creates a Registry using the wall clock.
func New(store storage.Storage) *Registry {
	return &Registry{store: store, now: time.Now}
}

// SetClock overrides the clock, for deterministic expiry tests.
func (r *Registry) SetClock(now func() time.Time) {
	r.now = now
}

// Add subscribes a destination channel for the given number of days.
// Returns ErrDuplicate if the channel is already subscribed.
func (r *Registry) Add(ctx context.Context, channelID int64, days int) (*model.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := &model.Channel{
		ChannelID: channelID,
		ExpiresAt: r.now().UTC().Add(time.Duration(days) * 24 * time.Hour),
	}
	if err := r.store.CreateChannel(ctx, ch); err != nil {
		if errors.Is(err, storage.ErrChannelExists) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("create channel: %w", err)
	}
	return ch, nil
}

// Remove unsubscribes a channel and cascades its filter deletion.
// Reports whether a subscription was actually removed, which lets callers
// notify at most once when two paths race on the same channel.
func (r *Registry) Remove(ctx context.Context, channelID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed, err := r.store.DeleteChannel(ctx, channelID)
	if err != nil {
		return false, fmt.Errorf("delete channel: %w", err)
	}
	return removed, nil
}

// RemoveExpired deletes every subscription that lapsed before now and returns
// the removed channels for notification. Calling it again immediately returns
// nothing: a channel removed by a concurrent call is never reported twice.
func (r *Registry) RemoveExpired(ctx context.Context, now time.Time) ([]model.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed, err := r.store.DeleteExpiredChannels(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("delete expired channels: %w", err)
	}
	return removed, nil
}

// ListActive returns all subscriptions still valid at now. Read-only: an
// expired row is left in place for the reaper or the forwarding path to remove.
func (r *Registry) ListActive(ctx context.Context, now time.Time) ([]model.Channel, error) {
	channels, err := r.store.ListActiveChannels(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list active channels: %w", err)
	}
	return channels, nil
}

// List returns every subscription, expired ones included. The forwarding path
// snapshots with this and checks expiry per destination, so a lapsed channel
// is removed on the next post instead of waiting for the hourly sweep.
func (r *Registry) List(ctx context.Context) ([]model.Channel, error) {
	channels, err := r.store.ListChannels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	return channels, nil
}
