// Package server runs the development server: it builds the site, serves the
// output directory, rebuilds on source changes and tells browsers to reload.
package server

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-co-op/gocron/v2"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/sitesmith/internal/build"
	"git.home.luguber.info/inful/sitesmith/internal/config"
	"git.home.luguber.info/inful/sitesmith/internal/foundation/errors"
	"git.home.luguber.info/inful/sitesmith/internal/logfields"
	"git.home.luguber.info/inful/sitesmith/internal/metrics"
)

const shutdownTimeout = 5 * time.Second

// Builder runs one site build.
type Builder interface {
	Run(ctx context.Context) (*build.Report, error)
}

// Server is the development server.
type Server struct {
	cfg      *config.Config
	builder  Builder
	logger   *slog.Logger
	gatherer prom.Gatherer
	hub      *Hub

	mu     sync.Mutex
	last   *build.Report
	builds chan struct{}
}

// New returns a server that rebuilds with b.
func New(cfg *config.Config, b Builder) *Server {
	return &Server{
		cfg:     cfg,
		builder: b,
		logger:  slog.Default(),
		hub:     NewHub(),
		builds:  make(chan struct{}, 1),
	}
}

// WithLogger sets the logger.
func (s *Server) WithLogger(l *slog.Logger) *Server {
	if l != nil {
		s.logger = l
	}
	return s
}

// WithGatherer exposes g at /metrics.
func (s *Server) WithGatherer(g prom.Gatherer) *Server {
	s.gatherer = g
	return s
}

// Hub returns the live-reload hub.
func (s *Server) Hub() *Hub { return s.hub }

// LastReport returns the report of the most recent finished build.
func (s *Server) LastReport() *build.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger))

	if s.cfg.Server.LiveReload {
		r.Handle(liveReloadPath, s.hub)
		r.Get(liveReloadScript, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
			w.Header().Set("Cache-Control", "no-cache")
			_, _ = w.Write([]byte(Script))
		})
	}
	if s.gatherer != nil {
		r.Handle("/metrics", metrics.HTTPHandler(s.gatherer))
	}

	var files http.Handler = http.FileServer(http.Dir(s.cfg.OutputDir()))
	if s.cfg.Server.LiveReload {
		files = injectLiveReload(files)
	}
	r.Handle("/*", noCache(files))
	return r
}

func noCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// Run listens on the configured address and serves until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Server.Addr())
	if err != nil {
		return errors.WrapError(err, errors.CategoryRuntime, "failed to listen").
			WithContext("addr", s.cfg.Server.Addr()).Fatal().Build()
	}
	return s.Serve(ctx, ln)
}

// Serve performs an initial build, then serves on ln, watching the input
// tree until ctx is canceled. A failed initial build is logged, not fatal,
// so it can be fixed while the server runs.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.rebuild(ctx)

	w, err := newWatcher(s.cfg.InputDir(), []string{s.cfg.OutputDir()}, s.logger)
	if err != nil {
		_ = ln.Close()
		return err
	}
	deb := newDebouncer(s.cfg.Watch.DebounceDuration(), s.request)
	defer deb.stop()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		w.run(ctx, deb.trigger)
	}()
	go func() {
		defer wg.Done()
		s.rebuildWorker(ctx)
	}()

	if interval := s.cfg.Watch.PollDuration(); interval > 0 {
		sched, err := s.schedulePoll(w, interval, deb.trigger)
		if err != nil {
			cancel()
			wg.Wait()
			_ = ln.Close()
			return err
		}
		defer func() { _ = sched.Shutdown() }()
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Serving site", logfields.URL("http://"+ln.Addr().String()), logfields.Path(s.cfg.OutputDir()))
		errCh <- srv.Serve(ln)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !stderrors.Is(err, http.ErrServerClosed) {
			serveErr = errors.WrapError(err, errors.CategoryRuntime, "server failed").Build()
		}
	}

	s.logger.Info("Shutting down server")
	s.hub.Shutdown()
	cancel()
	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = errors.WrapError(err, errors.CategoryRuntime, "server shutdown failed").Build()
	}
	wg.Wait()
	return serveErr
}

// schedulePoll rebuilds when the tree fingerprint changes between polls.
func (s *Server) schedulePoll(w *watcher, interval time.Duration, onChange func()) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryRuntime, "failed to create poll scheduler").Build()
	}
	last := w.fingerprint()
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if fp := w.fingerprint(); fp != last {
				last = fp
				s.logger.Debug("poll detected changes")
				onChange()
			}
		}),
		gocron.WithName("source-poll"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, errors.WrapError(err, errors.CategoryRuntime, "failed to schedule source poll").Build()
	}
	sched.Start()
	s.logger.Info("Polling for changes", slog.Duration("interval", interval))
	return sched, nil
}

// request asks the worker for a rebuild; requests made while one is queued
// collapse into it.
func (s *Server) request() {
	select {
	case s.builds <- struct{}{}:
	default:
	}
}

// rebuildWorker runs rebuilds one at a time. The one-slot request channel
// lets a change during a build schedule exactly one more.
func (s *Server) rebuildWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.builds:
			s.rebuild(ctx)
		}
	}
}

// rebuild runs one build and, unless it was canceled, broadcasts its ID.
// Partially failed builds still reload so fixed pages show up; the builder
// logs the failures.
func (s *Server) rebuild(ctx context.Context) {
	report, err := s.builder.Run(ctx)
	if ctx.Err() != nil || report == nil {
		return
	}
	s.mu.Lock()
	s.last = report
	s.mu.Unlock()
	if err != nil {
		return
	}
	s.hub.Broadcast(report.BuildID)
}
