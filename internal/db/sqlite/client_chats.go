package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iamwavecut/ngguard/internal/db"
)

const settingsColumns = `id, authorized, authorized_by, language, flood_enabled, flood_limit, flood_window,
	mute_duration, link_block_enabled, media_limit, captcha_enabled, captcha_mode, captcha_timeout,
	min_account_age_days, require_profile_photo, max_warns, raid_join_limit, raid_time_span, log_chat_id`

func (c *sqliteClient) GetSettings(ctx context.Context, chatID int64) (*db.Settings, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	res := &db.Settings{}
	err := c.db.GetContext(ctx, res, "SELECT "+settingsColumns+" FROM chats WHERE id = ?", chatID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get settings for chat %d: %w", chatID, err)
	}
	return res, nil
}

func (c *sqliteClient) SetSettings(ctx context.Context, settings *db.Settings) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `
		INSERT INTO chats (` + settingsColumns + `)
		VALUES (:id, :authorized, :authorized_by, :language, :flood_enabled, :flood_limit, :flood_window,
			:mute_duration, :link_block_enabled, :media_limit, :captcha_enabled, :captcha_mode, :captcha_timeout,
			:min_account_age_days, :require_profile_photo, :max_warns, :raid_join_limit, :raid_time_span, :log_chat_id)
		ON CONFLICT(id) DO UPDATE SET
		authorized = excluded.authorized,
		authorized_by = excluded.authorized_by,
		language = excluded.language,
		flood_enabled = excluded.flood_enabled,
		flood_limit = excluded.flood_limit,
		flood_window = excluded.flood_window,
		mute_duration = excluded.mute_duration,
		link_block_enabled = excluded.link_block_enabled,
		media_limit = excluded.media_limit,
		captcha_enabled = excluded.captcha_enabled,
		captcha_mode = excluded.captcha_mode,
		captcha_timeout = excluded.captcha_timeout,
		min_account_age_days = excluded.min_account_age_days,
		require_profile_photo = excluded.require_profile_photo,
		max_warns = excluded.max_warns,
		raid_join_limit = excluded.raid_join_limit,
		raid_time_span = excluded.raid_time_span,
		log_chat_id = excluded.log_chat_id
	`
	if _, err := c.db.NamedExecContext(ctx, query, settings); err != nil {
		return fmt.Errorf("failed to set settings for chat %d: %w", settings.ID, err)
	}
	return nil
}

func (c *sqliteClient) ListAuthorizedChats(ctx context.Context) ([]*db.Settings, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var res []*db.Settings
	if err := c.db.SelectContext(ctx, &res, "SELECT "+settingsColumns+" FROM chats WHERE authorized = 1"); err != nil {
		return nil, fmt.Errorf("failed to list authorized chats: %w", err)
	}
	return res, nil
}
