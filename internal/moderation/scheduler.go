package moderation

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/ngguard/internal/infra"
)

// Handle cancels a scheduled task. Cancel reports whether the task was stopped before it ran.
type Handle interface {
	Cancel() bool
}

type Scheduler interface {
	Schedule(at time.Time, task func(ctx context.Context)) Handle
}

// TimerScheduler runs tasks on their own goroutines at a deadline, independent of
// the caller's lifetime. Pending tasks are dropped on Stop.
type TimerScheduler struct {
	runMutex sync.Mutex
	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	timers   map[uint64]*time.Timer
	seq      uint64
	wg       sync.WaitGroup
	stopped  bool
}

type timerHandle struct {
	s  *TimerScheduler
	id uint64
}

func NewTimerScheduler() *TimerScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &TimerScheduler{
		ctx:    ctx,
		cancel: cancel,
		timers: make(map[uint64]*time.Timer),
	}
}

func (s *TimerScheduler) getLogEntry() *log.Entry {
	return log.WithField("component", "scheduler")
}

func (s *TimerScheduler) Schedule(at time.Time, task func(ctx context.Context)) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	id := s.seq
	h := &timerHandle{s: s, id: id}
	if s.stopped {
		return h
	}

	s.wg.Add(1)
	s.timers[id] = time.AfterFunc(time.Until(at), func() {
		defer s.wg.Done()
		if !s.release(id) {
			return
		}
		defer infra.Recover(s.getLogEntry().WithField("task", id), nil)
		task(s.ctx)
	})
	return h
}

// release forgets the timer and reports whether it was still registered.
func (s *TimerScheduler) release(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.timers[id]; !ok {
		return false
	}
	delete(s.timers, id)
	return true
}

func (h *timerHandle) Cancel() bool {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	t, ok := h.s.timers[h.id]
	if !ok {
		return false
	}
	delete(h.s.timers, h.id)
	if t.Stop() {
		h.s.wg.Done()
	}
	return true
}

func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *TimerScheduler) Start(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	return nil
}

func (s *TimerScheduler) Stop(ctx context.Context) error {
	s.runMutex.Lock()
	defer s.runMutex.Unlock()

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	dropped := 0
	for id, t := range s.timers {
		if t.Stop() {
			s.wg.Done()
			dropped++
		}
		delete(s.timers, id)
	}
	s.mu.Unlock()
	s.cancel()

	if dropped > 0 {
		s.getLogEntry().WithField("count", dropped).Info("dropped pending tasks")
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
