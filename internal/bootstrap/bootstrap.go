package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arluqh/pregnancy-food-checker/internal/core/providers/vlllm"
	"github.com/arluqh/pregnancy-food-checker/internal/domain/eventbus"
	"github.com/arluqh/pregnancy-food-checker/internal/domain/gatekeeper"
	domainimage "github.com/arluqh/pregnancy-food-checker/internal/domain/image"
	"github.com/arluqh/pregnancy-food-checker/internal/domain/ratelimit"
	platformconfig "github.com/arluqh/pregnancy-food-checker/internal/platform/config"
	platformerrors "github.com/arluqh/pregnancy-food-checker/internal/platform/errors"
	platformlogging "github.com/arluqh/pregnancy-food-checker/internal/platform/logging"
	platformobservability "github.com/arluqh/pregnancy-food-checker/internal/platform/observability"
	httptransport "github.com/arluqh/pregnancy-food-checker/internal/transport/http"
	httpanalyze "github.com/arluqh/pregnancy-food-checker/internal/transport/http/analyze"
	httpdocs "github.com/arluqh/pregnancy-food-checker/internal/transport/http/docs"
	httpwebapi "github.com/arluqh/pregnancy-food-checker/internal/transport/http/webapi"
	"github.com/arluqh/pregnancy-food-checker/internal/utils"
)

const (
	eventWorkers   = 2
	eventQueueSize = 256
	eventFlushWait = 2 * time.Second
)

// Options controls where configuration is read from.
type Options struct {
	ConfigPath string
	DotEnv     bool
	// LookupEnv overrides os.LookupEnv, mainly for tests.
	LookupEnv func(string) (string, bool)
}

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

type appState struct {
	options               Options
	config                *platformconfig.Config
	configPath            string
	logProvider           *platformlogging.Logger
	logger                *utils.Logger
	slogger               *slog.Logger
	observabilityShutdown platformobservability.ShutdownFunc
	metrics               *platformobservability.Metrics
	bus                   *eventbus.AsyncEventBus
	limiter               ratelimit.Limiter
	validator             *domainimage.Validator
	provider              *vlllm.Provider
}

// Run starts the service and blocks until ctx is cancelled or a signal arrives.
func Run(ctx context.Context, opts Options) error {
	state := &appState{options: opts}

	steps := InitGraph()
	if err := executeInitSteps(ctx, steps, state); err != nil {
		state.close()
		return err
	}

	config := state.config
	logger := state.logger
	if config == nil || logger == nil {
		state.close()
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"bootstrap state validation",
			"config/logger not initialised",
		)
	}
	defer state.close()

	logBootstrapGraph(steps, logger)

	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	signalCtx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(rootCtx)

	if _, err := startHTTPServer(state, group, groupCtx); err != nil {
		cancel()
		return fmt.Errorf("start http server: %w", err)
	}

	return waitForShutdown(signalCtx, cancel, logger, group, config.Server.ShutdownTimeout)
}

// close releases everything the init steps created, in reverse order.
func (s *appState) close() {
	logger := s.logger
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.limiter != nil {
		if err := s.limiter.Close(shutdownCtx); err != nil {
			logger.WarnTag("RateLimit", "limiter did not close cleanly: %v", err)
		}
	}
	if s.bus != nil {
		if !s.bus.Flush(eventFlushWait) {
			logger.WarnTag("Events", "event queue not drained before shutdown")
		}
		s.bus.Stop()
	}
	if s.observabilityShutdown != nil {
		if err := s.observabilityShutdown(shutdownCtx); err != nil {
			logger.WarnTag("Bootstrap", "observability did not shut down cleanly: %v", err)
		}
	}
	if s.logProvider != nil {
		if utils.DefaultLogger == s.logger {
			utils.DefaultLogger = nil
		}
		_ = s.logProvider.Close()
	}
}

func logBootstrapGraph(steps []initStep, logger *utils.Logger) {
	if logger == nil {
		return
	}
	logger.InfoTag("Bootstrap", "initialisation graph")
	for _, step := range steps {
		deps := "-"
		if len(step.DependsOn) > 0 {
			deps = strings.Join(step.DependsOn, ", ")
		}
		logger.InfoTag("Bootstrap", "%s (%s) <- %s", step.ID, step.Title, deps)
	}
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"execute init steps",
			"nil bootstrap state",
		)
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(
					platformerrors.KindBootstrap,
					step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep),
				)
			}
		}
		if step.Execute == nil {
			return platformerrors.New(
				platformerrors.KindBootstrap,
				step.ID,
				"missing execute function",
			)
		}
		if err := step.Execute(ctx, state); err != nil {
			var typed *platformerrors.Error
			if errors.As(err, &typed) {
				return err
			}

			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init-provider",
			Title:     "Initialise logging provider",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initLoggingStep,
		},
		{
			ID:        "observability:setup-hooks",
			Title:     "Setup observability hooks",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   setupObservabilityStep,
		},
		{
			ID:        "events:init-bus",
			Title:     "Start event bus",
			DependsOn: []string{"observability:setup-hooks"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initEventBusStep,
		},
		{
			ID:        "ratelimit:init-limiter",
			Title:     "Initialise rate limiter",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindStorage,
			Execute:   initLimiterStep,
		},
		{
			ID:        "image:init-validator",
			Title:     "Initialise payload validator",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initValidatorStep,
		},
		{
			ID:        "inference:init-provider",
			Title:     "Initialise inference provider",
			DependsOn: []string{"observability:setup-hooks"},
			Kind:      platformerrors.KindInference,
			Execute:   initInferenceStep,
		},
	}
}

func loadConfigStep(_ context.Context, state *appState) error {
	loader := platformconfig.NewLoader().
		WithDotEnv(state.options.DotEnv).
		WithPath(state.options.ConfigPath)
	if state.options.LookupEnv != nil {
		loader = loader.WithEnv(state.options.LookupEnv)
	}

	res, err := loader.Load()
	if err != nil {
		return err
	}
	state.config = res.Config
	state.configPath = res.Path
	if state.configPath == "" {
		state.configPath = "defaults"
	}
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	if state.config == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"logging:init-provider",
			"config not loaded",
		)
	}

	logProvider, err := platformlogging.New(platformlogging.Config{
		Level:    state.config.Log.Level,
		Dir:      state.config.Log.Dir,
		Filename: state.config.Log.File,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "logging:init-provider", "failed to initialize logging provider", err)
	}

	state.logProvider = logProvider
	state.logger = logProvider.Legacy()
	state.slogger = logProvider.Slog()
	utils.DefaultLogger = state.logger

	state.logger.InfoTag("Bootstrap", "logging ready [%s] config=%s", state.config.Log.Level, state.configPath)
	return nil
}

func setupObservabilityStep(ctx context.Context, state *appState) error {
	if state.logger == nil || state.config == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"observability:setup-hooks",
			"config/logger not initialised",
		)
	}

	cfg := platformobservability.Config{
		Enabled:     true,
		SpanLogging: strings.EqualFold(state.config.Log.Level, "debug"),
	}

	shutdown, err := platformobservability.Setup(ctx, cfg, state.slogger)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "observability:setup-hooks", "failed to setup observability hooks", err)
	}
	state.observabilityShutdown = shutdown
	state.metrics = platformobservability.NewMetrics()
	return nil
}

func initEventBusStep(_ context.Context, state *appState) error {
	bus := eventbus.NewAsyncEventBus(eventWorkers, eventQueueSize, state.logger)
	handler := eventbus.NewRecordingHandler(state.metrics, state.logger)
	if err := handler.Register(bus); err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "events:init-bus", "failed to subscribe event handlers", err)
	}
	bus.Start()
	state.bus = bus
	return nil
}

func initLimiterStep(_ context.Context, state *appState) error {
	rl := state.config.RateLimit
	cfg := ratelimit.Config{
		Driver:      rl.Driver,
		MaxRequests: rl.MaxRequests,
		Window:      rl.Window,
	}
	if strings.EqualFold(rl.Driver, ratelimit.DriverRedis) {
		cfg.Redis = &ratelimit.RedisConfig{
			Addr:     rl.Redis.Addr,
			Username: rl.Redis.Username,
			Password: rl.Redis.Password,
			DB:       rl.Redis.DB,
			Prefix:   rl.Redis.Prefix,
		}
	}

	limiter, err := ratelimit.New(cfg)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "ratelimit:init-limiter", "failed to create rate limiter", err)
	}
	state.limiter = limiter
	state.logger.InfoTag("RateLimit", "driver=%s max_requests=%d window=%s",
		strings.ToLower(cfg.Driver), cfg.MaxRequests, cfg.Window)
	return nil
}

func initValidatorStep(_ context.Context, state *appState) error {
	sec := state.config.Security
	opts := domainimage.Options{
		MaxSize:        sec.MaxImageSize,
		AllowedFormats: sec.AllowedFormats,
	}
	if sec.DeepScan {
		opts.Inspector = domainimage.NewInspector(domainimage.InspectorConfig{
			MaxFileSize:    int64(sec.MaxImageSize),
			MaxWidth:       sec.MaxWidth,
			MaxHeight:      sec.MaxHeight,
			MaxPixels:      sec.MaxPixels,
			AllowedFormats: sec.AllowedFormats,
		}, state.logger)
	}
	state.validator = domainimage.NewValidator(opts, state.logger)
	return nil
}

func initInferenceStep(_ context.Context, state *appState) error {
	inf := state.config.Inference
	state.provider = vlllm.NewProvider(vlllm.Config{
		BaseURL:     inf.BaseURL,
		Model:       inf.Model,
		APIKey:      inf.APIKey,
		Attempts:    inf.Attempts,
		BaseDelay:   inf.BaseDelay,
		Timeout:     inf.Timeout,
		Temperature: inf.Temperature,
		MaxTokens:   inf.MaxTokens,
	}, state.logger, vlllm.WithObserver(state.metrics))

	if !state.provider.Configured() {
		state.logger.WarnTag("Inference", "GEMINI_API_KEY not set, /api/analyze will answer 500")
	}
	return nil
}

// buildRouter assembles the gin engine with every service mounted.
func buildRouter(ctx context.Context, state *appState) (*httptransport.Router, error) {
	config := state.config
	logger := state.logger

	router, err := httptransport.Build(httptransport.Options{
		Config:  config,
		Logger:  logger,
		Metrics: state.metrics,
	})
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "http:build-router", "failed to build router", err)
	}

	analyzeService, err := httpanalyze.NewService(httpanalyze.Options{
		Gatekeeper:   gatekeeper.New(config.Security.BotPatterns, config.Security.Strict),
		Limiter:      state.limiter,
		Validator:    state.validator,
		Inferer:      state.provider,
		Publisher:    state.bus,
		MaxRequests:  config.RateLimit.MaxRequests,
		Window:       config.RateLimit.Window,
		MaxBodyBytes: config.Server.MaxBodyBytes,
	}, logger)
	if err != nil {
		return nil, err
	}
	webapiService, err := httpwebapi.NewService(config, logger)
	if err != nil {
		return nil, err
	}

	if err := analyzeService.Register(ctx, router.API); err != nil {
		return nil, err
	}
	if err := webapiService.Register(ctx, router.API); err != nil {
		return nil, err
	}
	if config.Web.Docs {
		httpdocs.Register(ctx, router.Engine, logger)
	}

	return router, nil
}

func startHTTPServer(state *appState, g *errgroup.Group, groupCtx context.Context) (*http.Server, error) {
	config := state.config
	logger := state.logger

	router, err := buildRouter(groupCtx, state)
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(config.Server.IP, strconv.Itoa(config.Server.Port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownTimeout := config.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "http:listen", "failed to listen on "+addr, err)
	}

	g.Go(func() error {
		logger.InfoTag("HTTP", "server listening on http://%s", listener.Addr())
		if config.Web.Docs {
			logger.InfoTag("HTTP", "API reference at http://%s/docs", listener.Addr())
		}

		go func() {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.ErrorTag("HTTP", "server shutdown failed: %v", err)
			} else {
				logger.InfoTag("HTTP", "server stopped gracefully")
			}
		}()

		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorTag("HTTP", "server failed: %v", err)
			return err
		}
		return nil
	})

	return httpServer, nil
}

func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	logger *utils.Logger,
	g *errgroup.Group,
	timeout time.Duration,
) error {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case <-ctx.Done():
		logger.InfoTag("Bootstrap", "shutdown requested: %v", context.Cause(ctx))
	case err := <-done:
		// A server goroutine failed before any signal.
		cancel()
		return err
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			logger.ErrorTag("Bootstrap", "error during shutdown: %v", err)
			return err
		}
		logger.InfoTag("Bootstrap", "all services stopped")
	case <-time.After(timeout):
		logger.ErrorTag("Bootstrap", "shutdown timed out after %s", timeout)
		return errors.New("shutdown timed out")
	}
	return nil
}
