package reg

import (
	"context"
	"sync"
	"testing"

	"github.com/iamwavecut/ngguard/internal/db"
)

type memorySettings struct {
	mu    sync.Mutex
	chats map[int64]*db.Settings
	gets  int
}

func (m *memorySettings) GetSettings(_ context.Context, chatID int64) (*db.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if s, ok := m.chats[chatID]; ok {
		return s.Clone(), nil
	}
	return nil, nil
}

func (m *memorySettings) SetSettings(_ context.Context, settings *db.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chats[settings.ID] = settings.Clone()
	return nil
}

func (m *memorySettings) ListAuthorizedChats(_ context.Context) ([]*db.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []*db.Settings
	for _, s := range m.chats {
		if s.Authorized {
			res = append(res, s.Clone())
		}
	}
	return res, nil
}

func TestRegistryCachesMissesAndCopies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := &memorySettings{chats: map[int64]*db.Settings{}}
	r := New(store)

	for i := 0; i < 3; i++ {
		s, err := r.Get(ctx, -1)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if s != nil {
			t.Fatalf("expected nil settings, got %#v", s)
		}
	}
	if store.gets != 1 {
		t.Fatalf("expected a single store lookup, got %d", store.gets)
	}

	settings := db.DefaultSettings(-1)
	settings.Authorized = true
	if err := r.Put(ctx, settings); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := r.Get(ctx, -1)
	if err != nil || got == nil || !got.Authorized {
		t.Fatalf("expected authorized settings, got %#v err=%v", got, err)
	}
	got.FloodLimit = 100
	again, _ := r.Get(ctx, -1)
	if again.FloodLimit == 100 {
		t.Fatalf("registry leaked its cached copy")
	}
}

func TestRegistryWarm(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	authorized := db.DefaultSettings(-10)
	authorized.Authorized = true
	store := &memorySettings{chats: map[int64]*db.Settings{
		-10: authorized,
		-20: db.DefaultSettings(-20),
	}}
	r := New(store)

	n, err := r.Warm(ctx)
	if err != nil {
		t.Fatalf("warm: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one authorized chat, got %d", n)
	}
	ids := r.Authorized()
	if len(ids) != 1 || ids[0] != -10 {
		t.Fatalf("unexpected authorized ids: %v", ids)
	}
	if _, err := r.Get(ctx, -10); err != nil {
		t.Fatalf("get: %v", err)
	}
	if store.gets != 0 {
		t.Fatalf("warmed chat must not hit the store, got %d lookups", store.gets)
	}
}
