// Package model defines the domain types used across the application.
package model

import "time"

// Channel represents a destination channel subscription with an expiry.
type Channel struct {
	ID        int64
	ChannelID int64
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the subscription has lapsed at the given time.
func (c Channel) Expired(now time.Time) bool {
	return c.ExpiresAt.Before(now)
}

// FilterKind defines the type of filter rule.
type FilterKind string

// Supported filter kinds.
const (
	KindTag         FilterKind = "tag"
	KindWord        FilterKind = "word"
	KindPhrase      FilterKind = "phrase"
	KindCombination FilterKind = "combination"
)

// Filter represents a single forwarding rule attached to a destination channel.
// Rules for one channel combine with OR: any match triggers a forward.
type Filter struct {
	ID        int64
	ChannelID int64
	Kind      FilterKind
	Value     string
	CreatedAt time.Time
}

// Admin roles.
const (
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
)

// Admin represents a bot operator who receives notifications and may run commands.
type Admin struct {
	UserID int64
	Role   string
}

// SourceFeed is a monitored origin channel whose posts are forwarding candidates.
type SourceFeed struct {
	ChannelID int64
}

// SpamSettings holds the rate-limit thresholds for the spam check.
// Detection itself is not implemented; the settings are stored for operators.
type SpamSettings struct {
	MaxMessages   int
	WindowSeconds int
}

// ActionCount is a per-day usage counter for a single action.
type ActionCount struct {
	Date   string
	Action string
	Count  int
}
