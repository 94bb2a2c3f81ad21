// Package notify implements best-effort admin broadcasts.
package notify

import (
	"context"
	"log/slog"

	"forward_bot/internal/storage"
)

// Sender is the interface for delivering a message to a single user.
type Sender interface {
	Notify(userID int64, text string) error
}

// Notifier broadcasts messages to every registered admin.
type Notifier struct {
	store  storage.Storage
	sender Sender
	log    *slog.Logger
}

// New creates a Notifier.
func New(store storage.Storage, sender Sender, log *slog.Logger) *Notifier {
	return &Notifier{store: store, sender: sender, log: log}
}

// Broadcast sends text to every admin. Delivery is best-effort: a failure for
// one admin is logged and does not stop delivery to the others, and no failure
// is ever reported back to the caller.
func (n *Notifier) Broadcast(ctx context.Context, text string) {
	admins, err := n.store.ListAdmins(ctx)
	if err != nil {
		n.log.Error("list admins", "error", err)
		return
	}
	for _, a := range admins {
		if err := n.sender.Notify(a.UserID, text); err != nil {
			n.log.Error("notify admin", "user_id", a.UserID, "error", err)
		}
	}
}
