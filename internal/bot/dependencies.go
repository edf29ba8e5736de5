package bot

import (
	"context"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/iamwavecut/ngguard/internal/event"
)

// Handler processes one update. Returning proceed=false stops the chain.
type Handler interface {
	Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (proceed bool, err error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, e event.Event) error
}

type OffsetStore interface {
	GetKV(ctx context.Context, key string) (string, error)
	SetKV(ctx context.Context, key string, value string) error
}

type UpdatesSource interface {
	GetUpdates(config api.UpdateConfig) ([]api.Update, error)
}

type Processor interface {
	Process(ctx context.Context, u *api.Update) error
}
