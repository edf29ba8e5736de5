package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

type Component interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type named struct {
	name string
	Component
}

// Runtime starts components in registration order and stops the started ones
// in reverse. Stop is safe to call more than once.
type Runtime struct {
	mu         sync.Mutex
	components []named
	started    []named
}

func NewRuntime() *Runtime {
	return &Runtime{}
}

func (r *Runtime) getLogEntry() *log.Entry {
	return log.WithField("component", "runtime")
}

func (r *Runtime) Register(name string, component Component) {
	if component == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.components = append(r.components, named{name: name, Component: component})
}

func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.components {
		if err := c.Start(ctx); err != nil {
			_ = r.stopStarted(ctx)
			return fmt.Errorf("start %s: %w", c.name, err)
		}
		r.getLogEntry().WithField("name", c.name).Debug("component started")
		r.started = append(r.started, c)
	}
	return nil
}

func (r *Runtime) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopStarted(ctx)
}

func (r *Runtime) stopStarted(ctx context.Context) error {
	var stopErr error
	for i := len(r.started) - 1; i >= 0; i-- {
		c := r.started[i]
		if err := c.Stop(ctx); err != nil {
			r.getLogEntry().WithFields(log.Fields{"name": c.name, "error": err.Error()}).Warn("component stop failed")
			stopErr = errors.Join(stopErr, fmt.Errorf("stop %s: %w", c.name, err))
			continue
		}
		r.getLogEntry().WithField("name", c.name).Debug("component stopped")
	}
	r.started = nil
	return stopErr
}
