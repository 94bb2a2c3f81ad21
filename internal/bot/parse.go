package bot

import (
	"fmt"
	"strconv"
	"strings"

	"forward_bot/internal/model"
)

// FilterArgs holds the parsed arguments of /add_filter.
type FilterArgs struct {
	ChannelID int64
	Kind      model.FilterKind
	Value     string
}

// ParseFilterArgs parses "/add_filter <channel_id> <kind> <value...>".
func ParseFilterArgs(args string) (FilterArgs, error) {
	parts := strings.Fields(args)
	if len(parts) < 3 {
		return FilterArgs{}, fmt.Errorf("usage: /add_filter <channel_id> <kind> <value>")
	}

	channelID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return FilterArgs{}, fmt.Errorf("invalid channel ID %q", parts[0])
	}

	return FilterArgs{
		ChannelID: channelID,
		Kind:      model.FilterKind(parts[1]),
		Value:     strings.Join(parts[2:], " "),
	}, nil
}

// ParseAddChannelArgs parses "/add_channel <channel_id> <days>".
func ParseAddChannelArgs(args string) (int64, int, error) {
	parts := strings.Fields(args)
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("usage: /add_channel <channel_id> <days>")
	}
	channelID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid channel ID %q", parts[0])
	}
	days, err := strconv.Atoi(parts[1])
	if err != nil || days < 1 {
		return 0, 0, fmt.Errorf("days must be a positive number")
	}
	return channelID, days, nil
}

// ParseIDArg extracts a numeric ID from a command argument string.
func ParseIDArg(args string) (int64, error) {
	s := strings.TrimSpace(args)
	if s == "" {
		return 0, fmt.Errorf("ID is required")
	}
	id, err := strconv.ParseInt(strings.Fields(s)[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid ID %q", s)
	}
	return id, nil
}

// ParseSetAdminArgs parses "/set_admin <user_id> <role>".
func ParseSetAdminArgs(args string) (int64, string, error) {
	parts := strings.Fields(args)
	if len(parts) < 2 {
		return 0, "", fmt.Errorf("usage: /set_admin <user_id> <role>")
	}
	userID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid user ID %q", parts[0])
	}
	return userID, parts[1], nil
}

// ParseSpamArgs parses "/set_spam <max_messages> <window_seconds>".
func ParseSpamArgs(args string) (model.SpamSettings, error) {
	parts := strings.Fields(args)
	if len(parts) < 2 {
		return model.SpamSettings{}, fmt.Errorf("usage: /set_spam <max_messages> <window_seconds>")
	}
	maxMsgs, err := strconv.Atoi(parts[0])
	if err != nil || maxMsgs < 1 {
		return model.SpamSettings{}, fmt.Errorf("max_messages must be a positive number")
	}
	window, err := strconv.Atoi(parts[1])
	if err != nil || window < 1 {
		return model.SpamSettings{}, fmt.Errorf("window_seconds must be a positive number")
	}
	return model.SpamSettings{MaxMessages: maxMsgs, WindowSeconds: window}, nil
}
