package db

import (
	"context"
)

type Client interface {
	Close() error

	GetSettings(ctx context.Context, chatID int64) (*Settings, error)
	SetSettings(ctx context.Context, settings *Settings) error
	ListAuthorizedChats(ctx context.Context) ([]*Settings, error)

	GetWarnings(ctx context.Context, chatID, userID int64) (int, error)
	SetWarnings(ctx context.Context, chatID, userID int64, count int) error
	DeleteWarnings(ctx context.Context, chatID, userID int64) error

	AddTrusted(ctx context.Context, admin *TrustedAdmin) error
	RemoveTrusted(ctx context.Context, chatID, userID int64) error
	IsTrusted(ctx context.Context, chatID, userID int64) (bool, error)
	ListTrusted(ctx context.Context, chatID int64) ([]int64, error)

	GetKV(ctx context.Context, key string) (string, error)
	SetKV(ctx context.Context, key string, value string) error
}
