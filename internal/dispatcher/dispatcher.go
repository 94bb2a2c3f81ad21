// Package dispatcher evaluates inbound posts and forwards them to matching channels.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"forward_bot/internal/filter"
	"forward_bot/internal/registry"
	"forward_bot/internal/storage"
)

// ActionForward is the analytics action recorded for each successful forward.
const ActionForward = "forward_message"

const dateLayout = "2006-01-02"

// Post is an inbound message from a monitored source channel.
type Post struct {
	ChatID     int64
	FromUserID int64
	MessageID  int
	Text       string
	Caption    string
}

// Transport forwards a message to a destination channel.
type Transport interface {
	Forward(fromChatID int64, messageID int, toChatID int64) error
}

// Notifier reports failures and expirations to the admin set.
type Notifier interface {
	Broadcast(ctx context.Context, text string)
}

// Dispatcher runs the per-post forwarding pass.
type Dispatcher struct {
	store     storage.Storage
	reg       *registry.Registry
	transport Transport
	notifier  Notifier
	log       *slog.Logger
	now       func() time.Time
	isSpam    func(userID int64) bool
}

// New creates a Dispatcher with the wall clock and the stub spam check,
// which flags nothing.
func New(store storage.Storage, reg *registry.Registry, transport Transport, notifier Notifier, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:     store,
		reg:       reg,
		transport: transport,
		notifier:  notifier,
		log:       log,
		now:       time.Now,
		isSpam:    func(int64) bool { return false },
	}
}

// SetClock overrides the clock, for deterministic expiry tests.
func (d *Dispatcher) SetClock(now func() time.Time) {
	d.now = now
}

// SetSpamCheck overrides the spam predicate.
func (d *Dispatcher) SetSpamCheck(isSpam func(userID int64) bool) {
	d.isSpam = isSpam
}

// HandlePost evaluates one post against every active destination channel and
// forwards it where a filter matches. Posts from unmonitored chats and from
// spam-flagged users are dropped silently. Transport failures are logged,
// reported to admins, and do not affect the remaining destinations; storage
// failures abort the whole pass.
func (d *Dispatcher) HandlePost(ctx context.Context, post Post) error {
	isSource, err := d.store.IsSourceFeed(ctx, post.ChatID)
	if err != nil {
		return fmt.Errorf("check source feed: %w", err)
	}
	if !isSource {
		return nil
	}

	if post.FromUserID != 0 && d.isSpam(post.FromUserID) {
		d.log.Warn("spam detected", "user_id", post.FromUserID)
		return nil
	}

	text := post.Text
	if text == "" {
		text = post.Caption
	}

	channels, err := d.reg.List(ctx)
	if err != nil {
		return err
	}

	for _, ch := range channels {
		// Lazy expiry: remove lapsed subscriptions at forward time
		// instead of waiting for the hourly sweep.
		if ch.Expired(d.now()) {
			removed, err := d.reg.Remove(ctx, ch.ChannelID)
			if err != nil {
				return fmt.Errorf("remove expired channel %d: %w", ch.ChannelID, err)
			}
			if removed {
				d.notifier.Broadcast(ctx, fmt.Sprintf("Channel %d removed: subscription expired.", ch.ChannelID))
			}
			continue
		}

		rules, err := d.store.ListFilters(ctx, ch.ChannelID)
		if err != nil {
			return fmt.Errorf("list filters for channel %d: %w", ch.ChannelID, err)
		}
		if !filter.Matches(text, rules) {
			continue
		}

		if err := d.transport.Forward(post.ChatID, post.MessageID, ch.ChannelID); err != nil {
			d.log.Error("forward message", "channel_id", ch.ChannelID, "error", err)
			d.notifier.Broadcast(ctx, fmt.Sprintf("Failed to forward message to channel %d: %v", ch.ChannelID, err))
			continue
		}

		d.log.Info("message forwarded", "channel_id", ch.ChannelID)
		if err := d.store.IncrementAction(ctx, d.now().UTC().Format(dateLayout), ActionForward); err != nil {
			d.log.Error("increment analytics", "action", ActionForward, "error", err)
		}
	}
	return nil
}
