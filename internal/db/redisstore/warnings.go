package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const warningsPrefix = "ngguard/warnings/"

// WarningStore keeps warning counters in one hash per chat.
type WarningStore struct {
	Client *redis.Client
}

func NewWarningStore(ctx context.Context, redisURL string) (*WarningStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &WarningStore{Client: rdb}, nil
}

func chatKey(chatID int64) string {
	return warningsPrefix + strconv.FormatInt(chatID, 10)
}

func (s *WarningStore) GetWarnings(ctx context.Context, chatID, userID int64) (int, error) {
	c, err := s.Client.HGet(ctx, chatKey(chatID), strconv.FormatInt(userID, 10)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	} else if err != nil {
		return 0, fmt.Errorf("failed to get warnings: %w", err)
	}
	return c, nil
}

func (s *WarningStore) SetWarnings(ctx context.Context, chatID, userID int64, count int) error {
	if err := s.Client.HSet(ctx, chatKey(chatID), strconv.FormatInt(userID, 10), count).Err(); err != nil {
		return fmt.Errorf("failed to set warnings: %w", err)
	}
	return nil
}

func (s *WarningStore) DeleteWarnings(ctx context.Context, chatID, userID int64) error {
	if err := s.Client.HDel(ctx, chatKey(chatID), strconv.FormatInt(userID, 10)).Err(); err != nil {
		return fmt.Errorf("failed to delete warnings: %w", err)
	}
	return nil
}

func (s *WarningStore) Close() error {
	return s.Client.Close()
}
