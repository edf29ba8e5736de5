package observability

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const readHeaderTimeout = 5 * time.Second

// HealthCheck reports whether the process can serve traffic.
type HealthCheck func(ctx context.Context) error

// Server exposes /metrics and /healthz. It is a lifecycle component.
type Server struct {
	addr    string
	handler http.Handler

	runMutex sync.Mutex
	srv      *http.Server
	listener net.Listener
	wg       sync.WaitGroup
}

func NewServer(addr string, metrics *Metrics, health HealthCheck) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			if err := health(r.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		_, _ = w.Write([]byte("ok"))
	})
	return &Server{addr: addr, handler: mux}
}

func (s *Server) getLogEntry() *log.Entry {
	return log.WithField("component", "metrics_server")
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	s.runMutex.Lock()
	defer s.runMutex.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) Start(ctx context.Context) error {
	s.runMutex.Lock()
	defer s.runMutex.Unlock()
	if s.srv != nil {
		return nil
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return errors.Wrapf(err, "listen %s", s.addr)
	}
	s.listener = listener
	s.srv = &http.Server{Handler: s.handler, ReadHeaderTimeout: readHeaderTimeout}

	srv := s.srv
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.getLogEntry().WithField("error", err.Error()).Error("metrics server failed")
		}
	}()
	s.getLogEntry().WithField("addr", listener.Addr().String()).Info("metrics server listening")
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.runMutex.Lock()
	srv := s.srv
	s.srv = nil
	s.runMutex.Unlock()
	if srv == nil {
		return nil
	}

	err := srv.Shutdown(ctx)
	s.wg.Wait()
	return err
}
