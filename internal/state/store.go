package state

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// Key addresses per-member state. Chat-level state uses UserID 0.
type Key struct {
	ChatID int64
	UserID int64
}

func ChatKey(chatID int64) Key {
	return Key{ChatID: chatID}
}

// Store is a concurrent map of volatile records keyed by (chat, user).
// Update runs its function atomically for the key; the function must not block.
type Store[V any] struct {
	m *xsync.MapOf[Key, V]
}

func NewStore[V any]() *Store[V] {
	return &Store[V]{m: xsync.NewMapOf[Key, V]()}
}

func (s *Store[V]) Get(key Key) (V, bool) {
	return s.m.Load(key)
}

func (s *Store[V]) Set(key Key, value V) {
	s.m.Store(key, value)
}

func (s *Store[V]) Delete(key Key) {
	s.m.Delete(key)
}

// Take removes the record and returns what was stored.
func (s *Store[V]) Take(key Key) (V, bool) {
	return s.m.LoadAndDelete(key)
}

// Update replaces the record with fn's result, or removes it when keep is false.
// It returns the stored value and whether the key is present afterwards.
func (s *Store[V]) Update(key Key, fn func(current V, exists bool) (next V, keep bool)) (V, bool) {
	return s.m.Compute(key, func(old V, loaded bool) (V, bool) {
		next, keep := fn(old, loaded)
		return next, !keep
	})
}

func (s *Store[V]) Range(fn func(key Key, value V) bool) {
	s.m.Range(fn)
}

func (s *Store[V]) Size() int {
	return s.m.Size()
}
