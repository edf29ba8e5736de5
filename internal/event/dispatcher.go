package event

import (
	"context"
	"hash/maphash"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	ngerrors "github.com/iamwavecut/ngguard/internal/errors"
	"github.com/iamwavecut/ngguard/internal/infra"
)

var ErrStopped = errors.New("dispatcher is not running")

// Event is one unit of work bound to a (chat, user) key. Events with the same
// key run one at a time in submission order.
type Event struct {
	Kind   string
	ChatID int64
	UserID int64
	Run    func(ctx context.Context) error
}

// Observer receives the outcome of every processed event.
type Observer interface {
	ObserveEvent(kind string, took time.Duration, err error)
}

type Dispatcher struct {
	shards   []chan Event
	observer Observer
	tracer   trace.Tracer
	seed     maphash.Seed

	runMutex sync.Mutex
	started  bool
	runCtx   context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewDispatcher(workers, queueSize int, observer Observer) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	d := &Dispatcher{
		shards:   make([]chan Event, workers),
		observer: observer,
		tracer:   otel.Tracer("github.com/iamwavecut/ngguard/internal/event"),
		seed:     maphash.MakeSeed(),
	}
	for i := range d.shards {
		d.shards[i] = make(chan Event, queueSize)
	}
	return d
}

func (d *Dispatcher) getLogEntry() *log.Entry {
	return log.WithField("component", "dispatcher")
}

func (d *Dispatcher) Start(ctx context.Context) error {
	d.runMutex.Lock()
	defer d.runMutex.Unlock()
	if d.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	d.runCtx = runCtx
	d.cancel = cancel
	for i, shard := range d.shards {
		d.wg.Add(1)
		go d.work(runCtx, i, shard)
	}
	d.started = true
	return nil
}

func (d *Dispatcher) Stop(ctx context.Context) error {
	d.runMutex.Lock()
	if !d.started {
		d.runMutex.Unlock()
		return nil
	}
	d.started = false
	cancel := d.cancel
	d.runMutex.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.wg.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
	}

	dropped := 0
	for _, shard := range d.shards {
		dropped += drain(shard)
	}
	if dropped > 0 {
		d.getLogEntry().WithField("count", dropped).Warn("dropped queued events on stop")
	}
	return nil
}

func drain(ch chan Event) int {
	n := 0
	for {
		select {
		case <-ch:
			n++
		default:
			return n
		}
	}
}

// Dispatch queues e on its key's shard, blocking while the shard is full.
func (d *Dispatcher) Dispatch(ctx context.Context, e Event) error {
	d.runMutex.Lock()
	started, runCtx := d.started, d.runCtx
	d.runMutex.Unlock()
	if !started {
		return ErrStopped
	}

	select {
	case d.shards[d.shardOf(e.ChatID, e.UserID)] <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-runCtx.Done():
		return ErrStopped
	}
}

func (d *Dispatcher) shardOf(chatID, userID int64) int {
	var h maphash.Hash
	h.SetSeed(d.seed)
	var buf [16]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(uint64(chatID) >> (8 * i))
		buf[8+i] = byte(uint64(userID) >> (8 * i))
	}
	_, _ = h.Write(buf[:])
	return int(h.Sum64() % uint64(len(d.shards)))
}

func (d *Dispatcher) work(ctx context.Context, id int, shard chan Event) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-shard:
			d.process(ctx, id, e)
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, shard int, e Event) {
	entry := d.getLogEntry().WithFields(log.Fields{
		"kind":  e.Kind,
		"chat":  e.ChatID,
		"user":  e.UserID,
		"shard": shard,
	})

	ctx, span := d.tracer.Start(ctx, "event."+e.Kind, trace.WithAttributes(
		attribute.Int64("chat.id", e.ChatID),
		attribute.Int64("user.id", e.UserID),
	))
	defer span.End()

	start := time.Now()
	var err error
	func() {
		defer infra.Recover(entry, func(r any) {
			err = errors.Errorf("panic: %v", r)
		})
		if e.Run != nil {
			err = e.Run(ctx)
		}
	}()

	if d.observer != nil {
		d.observer.ObserveEvent(e.Kind, time.Since(start), err)
	}
	if err == nil {
		return
	}
	span.RecordError(err)

	switch {
	case errors.Is(err, ngerrors.ErrConfigurationMissing):
		entry.Trace("chat is not managed, event dropped")
	case errors.Is(err, ngerrors.ErrStaleState):
		entry.WithField("error", err.Error()).Debug("stale event")
	case errors.Is(err, ngerrors.ErrTransportDenied):
		entry.WithField("error", err.Error()).Warn("action denied by platform")
	case errors.Is(err, context.Canceled):
		entry.Debug("event cancelled")
	default:
		span.SetStatus(codes.Error, err.Error())
		entry.WithField("error", err.Error()).Error("event failed")
	}
}
