package bot

import (
	"context"
	"errors"
	"fmt"

	"forward_bot/internal/filter"
	"forward_bot/internal/model"
	"forward_bot/internal/registry"
)

func (b *Bot) handleStart(ctx context.Context, chatID int64) {
	b.reply(chatID, `Welcome to the forwarding bot!

Posts from monitored source channels are forwarded to subscribed
channels whose filters match.

Quick start:
1. /add_source <channel_id> - monitor a source channel
2. /add_channel <channel_id> <days> - subscribe a destination
3. /add_filter <channel_id> tag promo - add a filter

Use /help for the full command reference.`)
	b.logAction(ctx, "start")
}

func (b *Bot) handleHelp(ctx context.Context, chatID int64) {
	b.reply(chatID, `Channel management:
/add_channel <channel_id> <days> - subscribe a destination channel
/remove_channel <channel_id> - unsubscribe a channel
/list_channels - show subscribed channels

Filter management:
/add_filter <channel_id> <kind> <value> - add a filter (kind: tag, word, phrase, combination)
/remove_filter <filter_id> - remove a filter
/list_filters - show all filters

Admins:
/set_admin <user_id> <role> - set an admin (super admin only)
/list_admins - show admins

Source channels (super admin only to modify):
/add_source <channel_id> - monitor a source channel
/remove_source <channel_id> - stop monitoring
/list_sources - show monitored channels

Settings:
/set_spam <max_messages> <window_seconds> - spam thresholds (super admin only)
/spam_settings - show spam thresholds
/analytics - show usage counters`)
	b.logAction(ctx, "help")
}

func (b *Bot) handleAddChannel(ctx context.Context, chatID int64, args string) {
	channelID, days, err := ParseAddChannelArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	ch, err := b.reg.Add(ctx, channelID, days)
	if errors.Is(err, registry.ErrDuplicate) {
		b.reply(chatID, fmt.Sprintf("Channel %d is already subscribed. Remove it first to change the subscription.", channelID))
		return
	}
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Failed to add channel: %v", err))
		return
	}

	b.log.Info("channel added", "channel_id", channelID, "days", days)
	b.reply(chatID, fmt.Sprintf("Channel %d subscribed until %s.", channelID, ch.ExpiresAt.Format("2006-01-02 15:04 UTC")))
	b.logAction(ctx, "add_channel")
}

func (b *Bot) handleRemoveChannel(ctx context.Context, chatID int64, args string) {
	channelID, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /remove_channel <channel_id>")
		return
	}

	removed, err := b.reg.Remove(ctx, channelID)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Failed to remove channel: %v", err))
		return
	}
	if !removed {
		b.reply(chatID, fmt.Sprintf("Channel %d is not subscribed.", channelID))
		return
	}

	b.log.Info("channel removed", "channel_id", channelID)
	b.reply(chatID, fmt.Sprintf("Channel %d removed.", channelID))
	b.logAction(ctx, "remove_channel")
}

func (b *Bot) handleListChannels(ctx context.Context, chatID int64) {
	channels, err := b.store.ListChannels(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatChannelList(channels))
	b.logAction(ctx, "list_channels")
}

func (b *Bot) handleAddFilter(ctx context.Context, chatID int64, args string) {
	parsed, err := ParseFilterArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	if !filter.ValidKind(parsed.Kind) {
		b.reply(chatID, fmt.Sprintf("Unknown filter kind %q. Use: tag, word, phrase, combination.", parsed.Kind))
		return
	}

	if _, err := b.store.GetChannel(ctx, parsed.ChannelID); err != nil {
		b.reply(chatID, fmt.Sprintf("Channel %d is not subscribed.", parsed.ChannelID))
		return
	}

	f := &model.Filter{
		ChannelID: parsed.ChannelID,
		Kind:      parsed.Kind,
		Value:     parsed.Value,
	}
	if err := b.store.CreateFilter(ctx, f); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	b.log.Info("filter added", "filter_id", f.ID, "channel_id", f.ChannelID, "kind", f.Kind)
	b.reply(chatID, fmt.Sprintf("Filter F%d (%s %q) added to channel %d.", f.ID, f.Kind, f.Value, f.ChannelID))
	b.logAction(ctx, "add_filter")
}

func (b *Bot) handleRemoveFilter(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /remove_filter <filter_id>")
		return
	}

	removed, err := b.store.DeleteFilter(ctx, id)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	if !removed {
		b.reply(chatID, fmt.Sprintf("Filter F%d not found.", id))
		return
	}

	b.log.Info("filter removed", "filter_id", id)
	b.reply(chatID, fmt.Sprintf("Filter F%d removed.", id))
	b.logAction(ctx, "remove_filter")
}

func (b *Bot) handleListFilters(ctx context.Context, chatID int64) {
	filters, err := b.store.ListAllFilters(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatFilterList(filters))
	b.logAction(ctx, "list_filters")
}

func (b *Bot) handleSetAdmin(ctx context.Context, chatID int64, args string) {
	userID, role, err := ParseSetAdminArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	if userID == b.cfg.SuperAdminID {
		b.reply(chatID, "The super admin cannot be changed.")
		return
	}

	if err := b.store.UpsertAdmin(ctx, model.Admin{UserID: userID, Role: role}); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	b.log.Info("admin set", "user_id", userID, "role", role)
	b.reply(chatID, fmt.Sprintf("Admin %d set with role %s.", userID, role))
	b.logAction(ctx, "set_admin")
}

func (b *Bot) handleListAdmins(ctx context.Context, chatID int64) {
	admins, err := b.store.ListAdmins(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatAdminList(admins))
	b.logAction(ctx, "list_admins")
}

func (b *Bot) handleAddSource(ctx context.Context, chatID int64, args string) {
	channelID, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /add_source <channel_id>")
		return
	}

	if err := b.store.AddSourceFeed(ctx, channelID); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	b.log.Info("source channel added", "channel_id", channelID)
	b.reply(chatID, fmt.Sprintf("Source channel %d added.", channelID))
	b.logAction(ctx, "add_source")
}

func (b *Bot) handleRemoveSource(ctx context.Context, chatID int64, args string) {
	channelID, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /remove_source <channel_id>")
		return
	}

	removed, err := b.store.RemoveSourceFeed(ctx, channelID)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	if !removed {
		b.reply(chatID, fmt.Sprintf("Channel %d is not a source channel.", channelID))
		return
	}

	b.log.Info("source channel removed", "channel_id", channelID)
	b.reply(chatID, fmt.Sprintf("Source channel %d removed.", channelID))
	b.logAction(ctx, "remove_source")
}

func (b *Bot) handleListSources(ctx context.Context, chatID int64) {
	ids, err := b.store.ListSourceFeeds(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatSourceList(ids))
	b.logAction(ctx, "list_sources")
}

func (b *Bot) handleSetSpam(ctx context.Context, chatID int64, args string) {
	settings, err := ParseSpamArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	if err := b.store.SetSpamSettings(ctx, settings); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	b.reply(chatID, fmt.Sprintf("Spam protection set: %d messages per %d seconds.", settings.MaxMessages, settings.WindowSeconds))
	b.logAction(ctx, "set_spam")
}

func (b *Bot) handleSpamSettings(ctx context.Context, chatID int64) {
	settings, err := b.store.GetSpamSettings(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	if settings == nil {
		b.reply(chatID, "Spam protection is not configured.")
		return
	}
	b.reply(chatID, fmt.Sprintf("Spam protection: %d messages per %d seconds.", settings.MaxMessages, settings.WindowSeconds))
	b.logAction(ctx, "spam_settings")
}

func (b *Bot) handleAnalytics(ctx context.Context, chatID int64) {
	counts, err := b.store.ListRecentActions(ctx, 30)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatAnalytics(counts))
	b.logAction(ctx, "analytics")
}
