package bot

import (
	"fmt"
	"strings"

	"forward_bot/internal/model"
)

// FormatChannelList formats the subscribed channels for display.
func FormatChannelList(channels []model.Channel) string {
	if len(channels) == 0 {
		return "No subscribed channels. Use /add_channel <channel_id> <days> to add one."
	}
	var b strings.Builder
	b.WriteString("Subscribed channels:\n")
	for _, ch := range channels {
		fmt.Fprintf(&b, "%d: until %s\n", ch.ChannelID, ch.ExpiresAt.Format("2006-01-02 15:04 UTC"))
	}
	return b.String()
}

// FormatFilterList formats all filter rules grouped by channel.
func FormatFilterList(filters []model.Filter) string {
	if len(filters) == 0 {
		return "No filters. Use /add_filter <channel_id> <kind> <value> to add one."
	}
	var b strings.Builder
	b.WriteString("Filters:\n")
	var lastChannel int64
	for _, f := range filters {
		if f.ChannelID != lastChannel {
			fmt.Fprintf(&b, "\nChannel %d:\n", f.ChannelID)
			lastChannel = f.ChannelID
		}
		fmt.Fprintf(&b, "  F%d: %s %q\n", f.ID, f.Kind, f.Value)
	}
	return b.String()
}

// FormatAdminList formats the admin set for display.
func FormatAdminList(admins []model.Admin) string {
	if len(admins) == 0 {
		return "No admins registered."
	}
	var b strings.Builder
	b.WriteString("Admins:\n")
	for _, a := range admins {
		fmt.Fprintf(&b, "%d: %s\n", a.UserID, a.Role)
	}
	return b.String()
}

// FormatSourceList formats the monitored source channels for display.
func FormatSourceList(ids []int64) string {
	if len(ids) == 0 {
		return "No source channels. Use /add_source <channel_id> to add one."
	}
	var b strings.Builder
	b.WriteString("Source channels:\n")
	for _, id := range ids {
		fmt.Fprintf(&b, "%d\n", id)
	}
	return b.String()
}

// FormatAnalytics formats recent usage counters as a text table.
func FormatAnalytics(counts []model.ActionCount) string {
	if len(counts) == 0 {
		return "No usage data yet."
	}
	var b strings.Builder
	b.WriteString("Usage (most recent first):\n")
	var lastDate string
	for _, c := range counts {
		if c.Date != lastDate {
			fmt.Fprintf(&b, "\n%s:\n", c.Date)
			lastDate = c.Date
		}
		fmt.Fprintf(&b, "  %s: %d\n", c.Action, c.Count)
	}
	return b.String()
}
