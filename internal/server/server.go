package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"bulkgofer/internal/balancer"
	"bulkgofer/internal/batcher"
	"bulkgofer/internal/cache"
	"bulkgofer/internal/config"
	"bulkgofer/internal/metrics"
	"bulkgofer/internal/proxy"
	"bulkgofer/internal/upstream"
	"bulkgofer/internal/ws"
)

// MetricsNamespace prefixes every exported metric
const MetricsNamespace = "bulkgofer"

// Server represents the main server
type Server struct {
	cfg        *config.Config
	router     *proxy.Router
	dispatcher *batcher.Dispatcher
	cache      cache.Cache
	collector  *metrics.Collector
	executor   *proxy.Executor
	reloadMu   sync.Mutex

	httpServer    *http.Server
	wsServer      *http.Server
	metricsServer *http.Server
	logger        zerolog.Logger
}

// New creates a new Server
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	router := proxy.NewRouter()
	collector := metrics.NewCollector(MetricsNamespace)

	responseCache, err := cache.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}

	var policy *cache.Policy
	if cfg.IsCacheEnabled() {
		policy = cache.NewPolicy(cfg.Cache.DisabledPaths)
		if len(cfg.Cache.DisabledPaths) > 0 {
			logger.Info().
				Strs("disabledPaths", cfg.Cache.DisabledPaths).
				Msg("cache disabled for specific paths")
		}
	} else {
		logger.Info().Msg("cache disabled")
	}

	dispatcher := batcher.NewDispatcher(router, batcher.Options{
		Interval:    cfg.GetFlushIntervalDuration(),
		Concurrency: cfg.DispatchConcurrency,
		Logger:      logger,
		Recorder:    collector,
	})
	collector.RegisterQueueDepth(MetricsNamespace, dispatcher.Pending)

	// callers wait at most one request timeout plus the time it takes to be flushed
	var waitTimeout time.Duration
	if cfg.RequestTimeout > 0 {
		waitTimeout = cfg.GetRequestTimeoutDuration() + 2*cfg.GetFlushIntervalDuration()
	}

	executor := proxy.NewExecutor(dispatcher, proxy.ExecutorConfig{
		Cache:       responseCache,
		Policy:      policy,
		Recorder:    collector,
		WaitTimeout: waitTimeout,
		Logger:      logger,
	})

	logger.Info().
		Dur("flushInterval", cfg.GetFlushIntervalDuration()).
		Int("concurrency", cfg.DispatchConcurrency).
		Msg("dispatcher configured")

	return &Server{
		cfg:        cfg,
		router:     router,
		dispatcher: dispatcher,
		cache:      responseCache,
		collector:  collector,
		executor:   executor,
		logger:     logger,
	}, nil
}

// AddGroup adds an upstream group to the server
func (s *Server) AddGroup(groupCfg config.GroupConfig) {
	pool := upstream.NewPool(groupCfg, s.cfg, s.logger)
	pool.SetSelector(balancer.New(groupCfg.Balancer, pool))

	s.router.AddPool(pool)
	s.logger.Info().
		Str("group", groupCfg.Name).
		Str("balancer", groupCfg.Balancer).
		Int("upstreams", len(groupCfg.Upstreams)).
		Msg("added group")
}

// Start starts the server
func (s *Server) Start() error {
	// Start all pools (status monitors)
	s.router.StartAll()
	s.dispatcher.Start()

	httpHandler := proxy.NewHandler(s.router, s.executor, s.cfg.MaxBodySize, s.logger)
	wsHandler := ws.NewHandler(s.router, s.executor, s.logger)

	httpAddr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.HTTPPort)
	wsAddr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.WSPort)

	s.httpServer = &http.Server{
		Addr:         httpAddr,
		Handler:      httpHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	s.listen("HTTP", s.httpServer)

	s.wsServer = &http.Server{
		Addr:        wsAddr,
		Handler:     wsHandler,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}
	s.listen("WebSocket", s.wsServer)

	if s.cfg.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", s.collector.Handler())
		s.metricsServer = &http.Server{
			Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		s.listen("metrics", s.metricsServer)
	}

	// Log available endpoints
	for _, name := range s.router.Groups() {
		s.logger.Info().
			Str("group", name).
			Str("http", fmt.Sprintf("http://%s/%s", httpAddr, name)).
			Str("ws", fmt.Sprintf("ws://%s/%s", wsAddr, name)).
			Msg("endpoint available")
	}

	return nil
}

func (s *Server) listen(name string, srv *http.Server) {
	go func() {
		s.logger.Info().
			Str("addr", srv.Addr).
			Msgf("starting %s server", name)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msgf("%s server error", name)
		}
	}()
}

// Stop gracefully stops the server.
// Listeners close first so no new payloads arrive, then the dispatcher
// flushes what is still queued before the upstreams go away.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("shutting down server...")

	var errs []error
	for name, srv := range map[string]*http.Server{
		"HTTP":      s.httpServer,
		"WebSocket": s.wsServer,
		"metrics":   s.metricsServer,
	} {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s server shutdown error: %w", name, err))
		}
	}

	s.dispatcher.Close(ctx)

	// Stop all pools (status monitors and idle connections)
	s.router.StopAll()

	if s.cache != nil {
		s.cache.Close()
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}

	s.logger.Info().Msg("server stopped")
	return nil
}

// Reload applies the settings of a changed config file that can take effect
// without a restart: log level and flush interval. Other changes are logged
// and wait for the next restart.
func (s *Server) Reload(cfg *config.Config) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	if cfg.LogLevel != s.cfg.LogLevel {
		if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
			zerolog.SetGlobalLevel(level)
			s.logger.Info().Str("logLevel", cfg.LogLevel).Msg("log level changed")
		}
	}

	s.dispatcher.SetInterval(cfg.GetFlushIntervalDuration())

	if cfg.HTTPPort != s.cfg.HTTPPort || cfg.WSPort != s.cfg.WSPort || len(cfg.Groups) != len(s.cfg.Groups) {
		s.logger.Warn().Msg("listener and group changes take effect after restart")
	}

	s.cfg.LogLevel = cfg.LogLevel
	s.cfg.FlushInterval = cfg.FlushInterval
}

// GetRouter returns the router
func (s *Server) GetRouter() *proxy.Router {
	return s.router
}

// GetDispatcher returns the dispatcher
func (s *Server) GetDispatcher() *batcher.Dispatcher {
	return s.dispatcher
}
