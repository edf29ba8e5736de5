package sqlite

import (
	"context"
	"fmt"

	"github.com/iamwavecut/ngguard/internal/db"
)

func (c *sqliteClient) AddTrusted(ctx context.Context, admin *db.TrustedAdmin) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `
		INSERT INTO trusted_admins (chat_id, user_id, added_by, added_at)
		VALUES (:chat_id, :user_id, :added_by, :added_at)
		ON CONFLICT(chat_id, user_id) DO UPDATE SET
		added_by = excluded.added_by,
		added_at = excluded.added_at
	`
	if _, err := c.db.NamedExecContext(ctx, query, admin); err != nil {
		return fmt.Errorf("failed to add trusted admin: %w", err)
	}
	return nil
}

func (c *sqliteClient) RemoveTrusted(ctx context.Context, chatID, userID int64) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, err := c.db.ExecContext(ctx, `DELETE FROM trusted_admins WHERE chat_id = ? AND user_id = ?`, chatID, userID); err != nil {
		return fmt.Errorf("failed to remove trusted admin: %w", err)
	}
	return nil
}

func (c *sqliteClient) IsTrusted(ctx context.Context, chatID, userID int64) (bool, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var count int
	err := c.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM trusted_admins WHERE chat_id = ? AND user_id = ?`, chatID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to check trusted admin: %w", err)
	}
	return count > 0, nil
}

func (c *sqliteClient) ListTrusted(ctx context.Context, chatID int64) ([]int64, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var userIDs []int64
	if err := c.db.SelectContext(ctx, &userIDs, `SELECT user_id FROM trusted_admins WHERE chat_id = ? ORDER BY added_at`, chatID); err != nil {
		return nil, fmt.Errorf("failed to list trusted admins: %w", err)
	}
	return userIDs, nil
}
