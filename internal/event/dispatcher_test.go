package event

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	ngerrors "github.com/iamwavecut/ngguard/internal/errors"
)

type recordingObserver struct {
	mu    sync.Mutex
	kinds []string
	errs  []error
}

func (o *recordingObserver) ObserveEvent(kind string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.kinds = append(o.kinds, kind)
	o.errs = append(o.errs, err)
}

func startDispatcher(t *testing.T, workers, queue int, observer Observer) *Dispatcher {
	t.Helper()
	d := NewDispatcher(workers, queue, observer)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = d.Stop(ctx)
	})
	return d
}

func TestDispatcherKeepsPerKeyOrder(t *testing.T) {
	t.Parallel()

	d := startDispatcher(t, 4, 16, nil)
	const perKey = 200
	var mu sync.Mutex
	seen := map[int64][]int{}
	var wg sync.WaitGroup
	wg.Add(perKey * 3)

	for i := 0; i < perKey; i++ {
		for user := int64(1); user <= 3; user++ {
			i, user := i, user
			err := d.Dispatch(context.Background(), Event{Kind: "test", ChatID: -1, UserID: user, Run: func(context.Context) error {
				defer wg.Done()
				mu.Lock()
				seen[user] = append(seen[user], i)
				mu.Unlock()
				return nil
			}})
			if err != nil {
				t.Fatalf("dispatch: %v", err)
			}
		}
	}
	wg.Wait()

	for user, order := range seen {
		for i, v := range order {
			if v != i {
				t.Fatalf("user %d: event %d ran at position %d", user, v, i)
			}
		}
	}
}

func TestDispatcherSerializesSameKey(t *testing.T) {
	t.Parallel()

	d := startDispatcher(t, 8, 64, nil)
	var running, overlaps atomic.Int32
	var wg sync.WaitGroup
	wg.Add(50)
	for i := 0; i < 50; i++ {
		_ = d.Dispatch(context.Background(), Event{Kind: "test", ChatID: 5, UserID: 5, Run: func(context.Context) error {
			defer wg.Done()
			if running.Add(1) > 1 {
				overlaps.Add(1)
			}
			time.Sleep(time.Millisecond)
			running.Add(-1)
			return nil
		}})
	}
	wg.Wait()
	if overlaps.Load() != 0 {
		t.Fatalf("same key ran concurrently %d times", overlaps.Load())
	}
}

func TestDispatcherRecoversPanics(t *testing.T) {
	t.Parallel()

	observer := &recordingObserver{}
	d := startDispatcher(t, 1, 4, observer)
	done := make(chan struct{})

	_ = d.Dispatch(context.Background(), Event{Kind: "boom", Run: func(context.Context) error { panic("boom") }})
	_ = d.Dispatch(context.Background(), Event{Kind: "stale", Run: func(context.Context) error {
		return ngerrors.ErrStaleState
	}})
	_ = d.Dispatch(context.Background(), Event{Kind: "after", Run: func(context.Context) error {
		close(done)
		return nil
	}})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("worker died after panic")
	}

	time.Sleep(10 * time.Millisecond)
	observer.mu.Lock()
	defer observer.mu.Unlock()
	if len(observer.kinds) != 3 || observer.kinds[0] != "boom" {
		t.Fatalf("unexpected observed kinds %v", observer.kinds)
	}
	if observer.errs[0] == nil || !errors.Is(observer.errs[1], ngerrors.ErrStaleState) || observer.errs[2] != nil {
		t.Fatalf("unexpected observed errors %v", observer.errs)
	}
}

func TestDispatcherRejectsWhenStopped(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(2, 2, nil)
	if err := d.Dispatch(context.Background(), Event{Kind: "early"}); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped before start, got %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := d.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := d.Dispatch(context.Background(), Event{Kind: "late"}); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped after stop, got %v", err)
	}
}

func TestDispatchHonorsCallerContext(t *testing.T) {
	t.Parallel()

	d := startDispatcher(t, 1, 1, nil)
	release := make(chan struct{})
	defer close(release)
	running := make(chan struct{}, 2)
	block := Event{Kind: "block", Run: func(context.Context) error {
		running <- struct{}{}
		<-release
		return nil
	}}
	_ = d.Dispatch(context.Background(), block)
	<-running
	// one event runs, one sits in the queue, the third must wait
	_ = d.Dispatch(context.Background(), block)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := d.Dispatch(ctx, Event{Kind: "late"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}
