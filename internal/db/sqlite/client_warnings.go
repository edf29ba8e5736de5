package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

func (c *sqliteClient) GetWarnings(ctx context.Context, chatID, userID int64) (int, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var count int
	err := c.db.GetContext(ctx, &count, `SELECT count FROM warnings WHERE chat_id = ? AND user_id = ?`, chatID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get warnings: %w", err)
	}
	return count, nil
}

func (c *sqliteClient) SetWarnings(ctx context.Context, chatID, userID int64, count int) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `
		INSERT INTO warnings (chat_id, user_id, count, updated_at)
		VALUES (?, ?, ?, datetime('now'))
		ON CONFLICT(chat_id, user_id) DO UPDATE SET
		count = excluded.count,
		updated_at = excluded.updated_at
	`
	if _, err := c.db.ExecContext(ctx, query, chatID, userID, count); err != nil {
		return fmt.Errorf("failed to set warnings: %w", err)
	}
	return nil
}

func (c *sqliteClient) DeleteWarnings(ctx context.Context, chatID, userID int64) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, err := c.db.ExecContext(ctx, `DELETE FROM warnings WHERE chat_id = ? AND user_id = ?`, chatID, userID); err != nil {
		return fmt.Errorf("failed to delete warnings: %w", err)
	}
	return nil
}
