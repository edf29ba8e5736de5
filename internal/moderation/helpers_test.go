package moderation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/iamwavecut/ngguard/internal/db"
	ngerrors "github.com/iamwavecut/ngguard/internal/errors"
)

type fakeTransport struct {
	mu       sync.Mutex
	calls    []string
	nextID   int
	statuses map[int64]MemberStatus
	denyBan  bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{nextID: 100, statuses: map[int64]MemberStatus{}}
}

func (f *fakeTransport) record(format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeTransport) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeTransport) Count(call string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeTransport) Restrict(_ context.Context, chatID, userID int64, perms Permissions, _ time.Time) error {
	mode := "none"
	if perms == FullPermissions {
		mode = "full"
	}
	f.record("restrict:%d:%d:%s", chatID, userID, mode)
	return nil
}

func (f *fakeTransport) Ban(_ context.Context, chatID, userID int64) error {
	f.record("ban:%d:%d", chatID, userID)
	if f.denyBan {
		return fmt.Errorf("not enough rights: %w", ngerrors.ErrTransportDenied)
	}
	return nil
}

func (f *fakeTransport) Unban(_ context.Context, chatID, userID int64) error {
	f.record("unban:%d:%d", chatID, userID)
	return nil
}

func (f *fakeTransport) DeleteMessage(_ context.Context, chatID int64, messageID int) error {
	f.record("delete:%d:%d", chatID, messageID)
	return nil
}

func (f *fakeTransport) PinMessage(_ context.Context, chatID int64, messageID int) error {
	f.record("pin:%d:%d", chatID, messageID)
	return nil
}

func (f *fakeTransport) Send(_ context.Context, chatID int64, _ string, _ *Markup) (int, error) {
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.mu.Unlock()
	f.record("send:%d:%d", chatID, id)
	return id, nil
}

func (f *fakeTransport) MemberStatus(_ context.Context, _ int64, userID int64) (MemberStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if status, ok := f.statuses[userID]; ok {
		return status, nil
	}
	return StatusMember, nil
}

func (f *fakeTransport) Leave(_ context.Context, chatID int64) error {
	f.record("leave:%d", chatID)
	return nil
}

type fakeTask struct {
	at        time.Time
	fn        func(ctx context.Context)
	cancelled bool
	fired     bool
	s         *fakeScheduler
}

func (t *fakeTask) Cancel() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.fired || t.cancelled {
		return false
	}
	t.cancelled = true
	return true
}

type fakeScheduler struct {
	mu    sync.Mutex
	tasks []*fakeTask
}

func (s *fakeScheduler) Schedule(at time.Time, fn func(ctx context.Context)) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTask{at: at, fn: fn, s: s}
	s.tasks = append(s.tasks, t)
	return t
}

// fireDue runs every live task scheduled at or before now.
func (s *fakeScheduler) fireDue(now time.Time) int {
	s.mu.Lock()
	var due []*fakeTask
	for _, t := range s.tasks {
		if !t.fired && !t.cancelled && !t.at.After(now) {
			t.fired = true
			due = append(due, t)
		}
	}
	s.mu.Unlock()
	for _, t := range due {
		t.fn(context.Background())
	}
	return len(due)
}

func (s *fakeScheduler) live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if !t.fired && !t.cancelled {
			n++
		}
	}
	return n
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

type memoryStore struct {
	mu sync.Mutex
	// getDelay widens the window between reading and writing settings
	getDelay time.Duration
	settings map[int64]*db.Settings
	warnings map[[2]int64]int
	trusted  map[[2]int64]bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		settings: map[int64]*db.Settings{},
		warnings: map[[2]int64]int{},
		trusted:  map[[2]int64]bool{},
	}
}

func (m *memoryStore) Get(_ context.Context, chatID int64) (*db.Settings, error) {
	if m.getDelay > 0 {
		time.Sleep(m.getDelay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings[chatID].Clone(), nil
}

func (m *memoryStore) Put(_ context.Context, s *db.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[s.ID] = s.Clone()
	return nil
}

func (m *memoryStore) Forget(chatID int64) {}

func (m *memoryStore) GetWarnings(_ context.Context, chatID, userID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.warnings[[2]int64{chatID, userID}], nil
}

func (m *memoryStore) SetWarnings(_ context.Context, chatID, userID int64, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnings[[2]int64{chatID, userID}] = count
	return nil
}

func (m *memoryStore) DeleteWarnings(_ context.Context, chatID, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.warnings, [2]int64{chatID, userID})
	return nil
}

func (m *memoryStore) hasWarnings(chatID, userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.warnings[[2]int64{chatID, userID}]
	return ok
}

func (m *memoryStore) IsTrusted(_ context.Context, chatID, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trusted[[2]int64{chatID, userID}], nil
}

func (m *memoryStore) AddTrusted(_ context.Context, admin *db.TrustedAdmin) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trusted[[2]int64{admin.ChatID, admin.UserID}] = true
	return nil
}

func (m *memoryStore) RemoveTrusted(_ context.Context, chatID, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.trusted, [2]int64{chatID, userID})
	return nil
}

func (m *memoryStore) ListTrusted(_ context.Context, chatID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	for k := range m.trusted {
		if k[0] == chatID {
			ids = append(ids, k[1])
		}
	}
	return ids, nil
}

type testEnv struct {
	service   *Service
	transport *fakeTransport
	scheduler *fakeScheduler
	clock     *fakeClock
	store     *memoryStore
}

const testChat int64 = -100123

func newTestEnv(configure func(s *db.Settings)) *testEnv {
	env := &testEnv{
		transport: newFakeTransport(),
		scheduler: &fakeScheduler{},
		clock:     &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		store:     newMemoryStore(),
	}
	settings := db.DefaultSettings(testChat)
	settings.Authorized = true
	if configure != nil {
		configure(settings)
	}
	env.store.settings[testChat] = settings
	env.service = NewService(Dependencies{
		Transport: env.transport,
		Settings:  env.store,
		Trusted:   env.store,
		Warnings:  env.store,
		Scheduler: env.scheduler,
		Now:       env.clock.Now,
	})
	return env
}
