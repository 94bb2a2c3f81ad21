// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"forward_bot/internal/model"
)

// ErrChannelExists is returned when creating a channel that is already subscribed.
var ErrChannelExists = errors.New("channel already exists")

// Storage is the interface for all persistence operations.
type Storage interface {
	CreateChannel(ctx context.Context, ch *model.Channel) error
	GetChannel(ctx context.Context, channelID int64) (*model.Channel, error)
	ListChannels(ctx context.Context) ([]model.Channel, error)
	ListActiveChannels(ctx context.Context, now time.Time) ([]model.Channel, error)
	DeleteChannel(ctx context.Context, channelID int64) (bool, error)
	DeleteExpiredChannels(ctx context.Context, now time.Time) ([]model.Channel, error)

	CreateFilter(ctx context.Context, f *model.Filter) error
	GetFilter(ctx context.Context, id int64) (*model.Filter, error)
	ListFilters(ctx context.Context, channelID int64) ([]model.Filter, error)
	ListAllFilters(ctx context.Context) ([]model.Filter, error)
	DeleteFilter(ctx context.Context, id int64) (bool, error)

	UpsertAdmin(ctx context.Context, a model.Admin) error
	GetAdmin(ctx context.Context, userID int64) (*model.Admin, error)
	ListAdmins(ctx context.Context) ([]model.Admin, error)

	AddSourceFeed(ctx context.Context, channelID int64) error
	RemoveSourceFeed(ctx context.Context, channelID int64) (bool, error)
	ListSourceFeeds(ctx context.Context) ([]int64, error)
	IsSourceFeed(ctx context.Context, channelID int64) (bool, error)

	SetSpamSettings(ctx context.Context, s model.SpamSettings) error
	GetSpamSettings(ctx context.Context) (*model.SpamSettings, error)

	IncrementAction(ctx context.Context, date, action string) error
	ListRecentActions(ctx context.Context, limit int) ([]model.ActionCount, error)

	Close() error
}
