package reg

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/iamwavecut/ngguard/internal/db"
)

type SettingsStore interface {
	GetSettings(ctx context.Context, chatID int64) (*db.Settings, error)
	SetSettings(ctx context.Context, settings *db.Settings) error
	ListAuthorizedChats(ctx context.Context) ([]*db.Settings, error)
}

// Registry caches chat settings in front of the durable store. A cached nil
// marks a chat known to have no settings.
type Registry struct {
	store SettingsStore
	chats *xsync.MapOf[int64, *db.Settings]
}

func New(store SettingsStore) *Registry {
	return &Registry{
		store: store,
		chats: xsync.NewMapOf[int64, *db.Settings](),
	}
}

// Warm preloads every authorized chat and returns how many were loaded.
func (r *Registry) Warm(ctx context.Context) (int, error) {
	list, err := r.store.ListAuthorizedChats(ctx)
	if err != nil {
		return 0, err
	}
	for _, s := range list {
		r.chats.Store(s.ID, s)
	}
	return len(list), nil
}

// Get returns a private copy of the chat settings, or nil for an unknown chat.
func (r *Registry) Get(ctx context.Context, chatID int64) (*db.Settings, error) {
	if s, ok := r.chats.Load(chatID); ok {
		return s.Clone(), nil
	}
	s, err := r.store.GetSettings(ctx, chatID)
	if err != nil {
		return nil, err
	}
	r.chats.Store(chatID, s)
	return s.Clone(), nil
}

// Put persists settings and replaces the cached copy.
func (r *Registry) Put(ctx context.Context, settings *db.Settings) error {
	if err := r.store.SetSettings(ctx, settings); err != nil {
		return err
	}
	r.chats.Store(settings.ID, settings.Clone())
	return nil
}

func (r *Registry) Forget(chatID int64) {
	r.chats.Delete(chatID)
}

// Authorized lists the cached chats under management.
func (r *Registry) Authorized() []int64 {
	var ids []int64
	r.chats.Range(func(id int64, s *db.Settings) bool {
		if s != nil && s.Authorized {
			ids = append(ids, id)
		}
		return true
	})
	return ids
}
