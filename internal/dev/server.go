package dev

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/langyo/React-frontback-scaffold/internal/bridge"
	"github.com/langyo/React-frontback-scaffold/internal/build"
	"github.com/langyo/React-frontback-scaffold/internal/config"
	"github.com/langyo/React-frontback-scaffold/internal/errors"
	"github.com/langyo/React-frontback-scaffold/internal/sandbox"
	"github.com/langyo/React-frontback-scaffold/internal/vfs"
)

// ServerOptions configures the development server.
type ServerOptions struct {
	// Config is the project configuration.
	Config *config.Config

	// Compiler overrides the esbuild compiler.
	Compiler build.Compiler

	// Publisher mirrors successful artifacts. Optional.
	Publisher build.Publisher

	// Registry receives the server metrics. A private registry is used when nil.
	Registry *prometheus.Registry

	// Overlay overrides the real-disk overlay.
	Overlay *vfs.Overlay

	// OnBuildStart is called when a build starts.
	OnBuildStart func()

	// OnBuildComplete is called when a build completes.
	OnBuildComplete func(report *build.Report)
}

// Server is the development server.
type Server struct {
	config    *config.Config
	options   ServerOptions
	overlay   *vfs.Overlay
	bridge    *bridge.Bridge
	sandbox   *sandbox.Executor
	pipeline  *build.Pipeline
	watcher   *Watcher
	debouncer *Debouncer
	sockets   *SocketServer
	metrics   *metrics
	registry  *prometheus.Registry
	appProxy  *httputil.ReverseProxy
	logger    *slog.Logger

	mu         sync.Mutex
	running    bool
	cancel     context.CancelFunc
	done       chan struct{}
	httpServer *http.Server
	addr       net.Addr
	ready      chan struct{}
	readyOnce  sync.Once
}

// NewServer wires every dev server component for options.Config.
func NewServer(options ServerOptions) (*Server, error) {
	cfg := options.Config

	registry := options.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	mcfg := defaultMetricsConfig()
	mcfg.Registry = registry
	m := newMetrics(mcfg)

	overlay := options.Overlay
	if overlay == nil {
		overlay = vfs.New()
	}

	b := bridge.New()
	exec := sandbox.New(b, overlay, sandbox.Options{
		Root:            cfg.Root,
		InstallTimeout:  cfg.Sandbox.InstallTimeout,
		DrainTimeout:    cfg.Sandbox.DrainTimeout,
		OnCallbackError: func(error) { m.callbackErrors.Inc() },
	})

	s := &Server{
		config:   cfg,
		options:  options,
		overlay:  overlay,
		bridge:   b,
		sandbox:  exec,
		sockets:  NewSocketServer(b, m, cfg.Dev.MaxMessageSize),
		metrics:  m,
		registry: registry,
		logger:   slog.Default().With("component", "dev"),
		ready:    make(chan struct{}),
	}

	pipeline, err := build.NewPipeline(cfg, overlay, build.Options{
		Compiler:        options.Compiler,
		Sandbox:         exec,
		Publisher:       options.Publisher,
		OnBuildStart:    options.OnBuildStart,
		OnBuildComplete: s.buildComplete,
	})
	if err != nil {
		return nil, err
	}
	s.pipeline = pipeline

	watcher, err := NewWatcher(WatcherConfig{
		Paths:  CollectWatchPaths(cfg),
		Ignore: append(append([]string{}, DefaultIgnore...), cfg.Dev.Ignore...),
	})
	if err != nil {
		return nil, err
	}
	watcher.OnChange(func(c Change) {
		m.watchEvents.Inc()
		s.debouncer.Notify(c)
	})
	s.watcher = watcher

	s.debouncer = NewDebouncer(DebouncerConfig{
		Delay:        cfg.Dev.Debounce,
		BuildOnStart: true,
	}, s.runBuild)

	if cfg.Dev.Proxy != "" {
		target, err := url.Parse(cfg.Dev.Proxy)
		if err != nil || target.Scheme == "" || target.Host == "" {
			return nil, errors.New("E120").WithDetail("dev.proxy must be an absolute URL: " + cfg.Dev.Proxy)
		}
		s.appProxy = httputil.NewSingleHostReverseProxy(target)
	}

	return s, nil
}

// Pipeline returns the build pipeline.
func (s *Server) Pipeline() *build.Pipeline {
	return s.pipeline
}

// Bridge returns the message bridge.
func (s *Server) Bridge() *bridge.Bridge {
	return s.bridge
}

// Sandbox returns the server logic executor.
func (s *Server) Sandbox() *sandbox.Executor {
	return s.sandbox
}

// Handler returns the HTTP handler serving every dev server route.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/", s.handleIndex)
	r.Get("/entry", s.handleEntry)
	r.Get("/ws", s.sockets.HandleWebSocket)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	r.NotFound(s.handleFallback)
	r.MethodNotAllowed(s.handleFallback)

	return r
}

// Start runs the initial build, the watcher and the HTTP listener until ctx
// is done or Stop is called. It returns once every build has finished and
// the sandbox is closed. Ready is closed on every path, including a failed
// listen.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.running = true
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	defer func() {
		cancel()
		s.markStopped()
		close(done)
	}()
	defer s.markReady()

	if err := s.pipeline.CheckEntries(); err != nil {
		s.logger.Warn("entry missing, builds will fail until it exists", "error", err)
	}

	ln, err := net.Listen("tcp", s.config.DevAddress())
	if err != nil {
		return errors.New("E122").WithDetail(s.config.DevAddress()).Wrap(err)
	}

	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = httpServer
	s.addr = ln.Addr()
	s.mu.Unlock()
	s.markReady()

	s.logger.Info("server running", "url", s.config.DevURL(), "mode", s.config.Mode)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.watcher.Start(gctx); err != nil {
			s.logger.Error("file watcher stopped", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		return s.debouncer.Run(gctx)
	})
	g.Go(func() error {
		if err := httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.shutdown(httpServer)
		return nil
	})

	err = g.Wait()

	// The debouncer has returned, so no build can install after this.
	s.sandbox.Close()
	return err
}

// Ready is closed once Start has bound the listener or failed to.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Stop stops the development server and waits for Start to return.
func (s *Server) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Server) shutdown(httpServer *http.Server) {
	s.watcher.Stop()
	s.sockets.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctx)
}

func (s *Server) markReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

func (s *Server) markStopped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
}

func (s *Server) runBuild(ctx context.Context) {
	// Errors are logged by the pipeline and kept in the report.
	_, _ = s.pipeline.Run(ctx)
}

func (s *Server) buildComplete(report *build.Report) {
	s.metrics.observeBuild(report)
	if s.options.OnBuildComplete != nil {
		s.options.OnBuildComplete(report)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		s.sockets.HandleWebSocket(w, r)
		return
	}

	debug := r.URL.Query().Get("debug") == "1"
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte(shellHTML(debug)))
}

func (s *Server) handleEntry(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")

	data, ok := s.pipeline.Artifact(build.TargetClient)
	if !ok {
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("// build in progress\n"))
		return
	}

	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

type healthBuild struct {
	Cycle      int             `json:"cycle"`
	OK         bool            `json:"ok"`
	Error      json.RawMessage `json:"error,omitempty"`
	SandboxErr json.RawMessage `json:"sandboxError,omitempty"`
	DurationMS int64           `json:"durationMs"`
}

type healthStatus struct {
	Status     string       `json:"status"`
	Mode       string       `json:"mode"`
	Sandbox    string       `json:"sandbox"`
	Generation int          `json:"generation,omitempty"`
	Connected  bool         `json:"connected"`
	Build      *healthBuild `json:"build,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := healthStatus{
		Status:    "ok",
		Mode:      s.config.Mode,
		Sandbox:   string(s.sandbox.State()),
		Connected: s.bridge.HasSender(),
	}
	if live := s.sandbox.Live(); live != nil {
		status.Generation = live.Generation()
	}
	if report := s.pipeline.LastReport(); report != nil {
		hb := &healthBuild{
			Cycle:      report.Cycle,
			OK:         report.OK(),
			DurationMS: report.Duration.Milliseconds(),
		}
		if report.Err != nil {
			hb.Error = json.RawMessage(errors.FromError(report.Err, "E140").FormatJSON())
		}
		if report.SandboxErr != nil {
			hb.SandboxErr = json.RawMessage(errors.FromError(report.SandboxErr, "E301").FormatJSON())
		}
		status.Build = hb
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(status)
}

// handleFallback passes requests the dev server does not own to the
// configured upstream.
func (s *Server) handleFallback(w http.ResponseWriter, r *http.Request) {
	if s.appProxy == nil {
		http.NotFound(w, r)
		return
	}
	s.appProxy.ServeHTTP(w, r)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"ip", r.RemoteAddr,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).Round(time.Microsecond),
		)
	})
}

const erudaSnippet = `<script src="https://cdn.jsdelivr.net/npm/eruda"></script>
<script>eruda.init();</script>
`

func shellHTML(debug bool) string {
	extra := ""
	if debug {
		extra = erudaSnippet
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Pneumatic</title>
%s</head>
<body>
<div id="root"></div>
<script src="/entry"></script>
</body>
</html>
`, extra)
}
