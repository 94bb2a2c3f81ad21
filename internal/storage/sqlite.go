package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"forward_bot/internal/model"
	"forward_bot/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=OFF"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("disable foreign keys: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// CreateChannel inserts a new destination channel and populates its ID and CreatedAt.
// Returns ErrChannelExists if the channel ID is already subscribed.
func (s *SQLite) CreateChannel(ctx context.Context, ch *model.Channel) error {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO channels (channel_id, expires_at, created_at) VALUES (?, ?, ?)`,
		ch.ChannelID, ch.ExpiresAt.UTC().Format(timeLayout), now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrChannelExists
		}
		return fmt.Errorf("insert channel: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	ch.ID = id
	ch.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// GetChannel returns a destination channel by its Telegram channel ID.
func (s *SQLite) GetChannel(ctx context.Context, channelID int64) (*model.Channel, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, channel_id, expires_at, created_at FROM channels WHERE channel_id = ?`, channelID,
	)
	return scanChannel(row)
}

// ListChannels returns all destination channels, including expired ones.
func (s *SQLite) ListChannels(ctx context.Context) ([]model.Channel, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, channel_id, expires_at, created_at FROM channels ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query channels: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanChannels(rows)
}

// ListActiveChannels returns all channels whose subscription has not lapsed at now.
func (s *SQLite) ListActiveChannels(ctx context.Context, now time.Time) ([]model.Channel, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, channel_id, expires_at, created_at FROM channels WHERE expires_at >= ? ORDER BY id`,
		now.UTC().Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("query active channels: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanChannels(rows)
}

// DeleteChannel removes a channel and its filters, reporting whether a channel existed.
func (s *SQLite) DeleteChannel(ctx context.Context, channelID int64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM filters WHERE channel_id = ?`, channelID); err != nil {
		return false, fmt.Errorf("delete filters: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM channels WHERE channel_id = ?`, channelID)
	if err != nil {
		return false, fmt.Errorf("delete channel: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return n > 0, nil
}

// DeleteExpiredChannels removes every channel whose subscription lapsed before now,
// cascading filter deletion, and returns the removed channels. The select and
// delete happen in one transaction, so a concurrent call cannot see or return
// the same channel twice.
func (s *SQLite) DeleteExpiredChannels(ctx context.Context, now time.Time) ([]model.Channel, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	cutoff := now.UTC().Format(timeLayout)
	rows, err := tx.QueryContext(ctx,
		`SELECT id, channel_id, expires_at, created_at FROM channels WHERE expires_at < ? ORDER BY id`,
		cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("query expired channels: %w", err)
	}
	expired, err := scanChannels(rows)
	_ = rows.Close()
	if err != nil {
		return nil, err
	}
	if len(expired) == 0 {
		return nil, tx.Commit()
	}

	for _, ch := range expired {
		if _, err := tx.ExecContext(ctx, `DELETE FROM filters WHERE channel_id = ?`, ch.ChannelID); err != nil {
			return nil, fmt.Errorf("delete filters: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM channels WHERE expires_at < ?`, cutoff); err != nil {
		return nil, fmt.Errorf("delete channels: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return expired, nil
}

// CreateFilter inserts a new filter and populates its ID and CreatedAt.
func (s *SQLite) CreateFilter(ctx context.Context, f *model.Filter) error {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO filters (channel_id, kind, value, created_at) VALUES (?, ?, ?, ?)`,
		f.ChannelID, string(f.Kind), f.Value, now,
	)
	if err != nil {
		return fmt.Errorf("insert filter: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	f.ID = id
	f.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// GetFilter returns a single filter by its ID.
func (s *SQLite) GetFilter(ctx context.Context, id int64) (*model.Filter, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, channel_id, kind, value, created_at FROM filters WHERE id = ?`, id,
	)
	f, err := scanFilter(row)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// ListFilters returns all filters for the given channel in insertion order.
func (s *SQLite) ListFilters(ctx context.Context, channelID int64) ([]model.Filter, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, channel_id, kind, value, created_at FROM filters WHERE channel_id = ? ORDER BY id`,
		channelID,
	)
	if err != nil {
		return nil, fmt.Errorf("query filters: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanFilters(rows)
}

// ListAllFilters returns every filter across all channels.
func (s *SQLite) ListAllFilters(ctx context.Context) ([]model.Filter, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, channel_id, kind, value, created_at FROM filters ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query filters: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanFilters(rows)
}

// DeleteFilter removes a filter by its ID, reporting whether it existed.
func (s *SQLite) DeleteFilter(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM filters WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete filter: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// UpsertAdmin inserts or replaces an admin row.
func (s *SQLite) UpsertAdmin(ctx context.Context, a model.Admin) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO admins (user_id, role) VALUES (?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET role = excluded.role`,
		a.UserID, a.Role,
	)
	if err != nil {
		return fmt.Errorf("upsert admin: %w", err)
	}
	return nil
}

// GetAdmin returns an admin by user ID, or sql.ErrNoRows if absent.
func (s *SQLite) GetAdmin(ctx context.Context, userID int64) (*model.Admin, error) {
	var a model.Admin
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, role FROM admins WHERE user_id = ?`, userID,
	).Scan(&a.UserID, &a.Role)
	if err != nil {
		return nil, fmt.Errorf("scan admin: %w", err)
	}
	return &a, nil
}

// ListAdmins returns all admins.
func (s *SQLite) ListAdmins(ctx context.Context) ([]model.Admin, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, role FROM admins ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("query admins: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var admins []model.Admin
	for rows.Next() {
		var a model.Admin
		if err := rows.Scan(&a.UserID, &a.Role); err != nil {
			return nil, fmt.Errorf("scan admin: %w", err)
		}
		admins = append(admins, a)
	}
	return admins, rows.Err()
}

// AddSourceFeed registers a monitored source channel. Adding an existing one is a no-op.
func (s *SQLite) AddSourceFeed(ctx context.Context, channelID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO source_feeds (channel_id) VALUES (?)`, channelID,
	)
	if err != nil {
		return fmt.Errorf("insert source feed: %w", err)
	}
	return nil
}

// RemoveSourceFeed unregisters a source channel, reporting whether it existed.
func (s *SQLite) RemoveSourceFeed(ctx context.Context, channelID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM source_feeds WHERE channel_id = ?`, channelID)
	if err != nil {
		return false, fmt.Errorf("delete source feed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ListSourceFeeds returns the IDs of all monitored source channels.
func (s *SQLite) ListSourceFeeds(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT channel_id FROM source_feeds ORDER BY channel_id`)
	if err != nil {
		return nil, fmt.Errorf("query source feeds: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan source feed: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// IsSourceFeed reports whether the given channel is a monitored source.
func (s *SQLite) IsSourceFeed(ctx context.Context, channelID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM source_feeds WHERE channel_id = ?`, channelID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check source feed: %w", err)
	}
	return count > 0, nil
}

// SetSpamSettings stores the spam thresholds, replacing any previous values.
func (s *SQLite) SetSpamSettings(ctx context.Context, sp model.SpamSettings) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO spam_settings (id, max_messages, window_seconds) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET max_messages = excluded.max_messages, window_seconds = excluded.window_seconds`,
		sp.MaxMessages, sp.WindowSeconds,
	)
	if err != nil {
		return fmt.Errorf("set spam settings: %w", err)
	}
	return nil
}

// GetSpamSettings returns the stored spam thresholds, or nil if none are set.
func (s *SQLite) GetSpamSettings(ctx context.Context) (*model.SpamSettings, error) {
	var sp model.SpamSettings
	err := s.db.QueryRowContext(ctx,
		`SELECT max_messages, window_seconds FROM spam_settings WHERE id = 1`,
	).Scan(&sp.MaxMessages, &sp.WindowSeconds)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan spam settings: %w", err)
	}
	return &sp, nil
}

// IncrementAction bumps the usage counter for (date, action), creating it if absent.
func (s *SQLite) IncrementAction(ctx context.Context, date, action string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analytics (date, action, count) VALUES (?, ?, 1)
		 ON CONFLICT(date, action) DO UPDATE SET count = count + 1`,
		date, action,
	)
	if err != nil {
		return fmt.Errorf("increment action: %w", err)
	}
	return nil
}

// ListRecentActions returns up to limit counters, most recent dates first.
func (s *SQLite) ListRecentActions(ctx context.Context, limit int) ([]model.ActionCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, action, count FROM analytics ORDER BY date DESC, action LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query analytics: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var counts []model.ActionCount
	for rows.Next() {
		var c model.ActionCount
		if err := rows.Scan(&c.Date, &c.Action, &c.Count); err != nil {
			return nil, fmt.Errorf("scan analytics: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanChannel(row scannable) (*model.Channel, error) {
	var ch model.Channel
	var expires, created string
	err := row.Scan(&ch.ID, &ch.ChannelID, &expires, &created)
	if err != nil {
		return nil, fmt.Errorf("scan channel: %w", err)
	}
	ch.ExpiresAt, _ = time.Parse(timeLayout, expires)
	ch.CreatedAt, _ = time.Parse(timeLayout, created)
	return &ch, nil
}

func scanChannels(rows *sql.Rows) ([]model.Channel, error) {
	var channels []model.Channel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, *ch)
	}
	return channels, rows.Err()
}

func scanFilter(row scannable) (model.Filter, error) {
	var f model.Filter
	var kindStr, createdStr string
	err := row.Scan(&f.ID, &f.ChannelID, &kindStr, &f.Value, &createdStr)
	if err != nil {
		return f, fmt.Errorf("scan filter: %w", err)
	}
	f.Kind = model.FilterKind(kindStr)
	f.CreatedAt, _ = time.Parse(timeLayout, createdStr)
	return f, nil
}

func scanFilters(rows *sql.Rows) ([]model.Filter, error) {
	var filters []model.Filter
	for rows.Next() {
		f, err := scanFilter(rows)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	return filters, rows.Err()
}
