package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tuannvm/mcp-creative-agent/internal/agent"
	"github.com/tuannvm/mcp-creative-agent/internal/app"
	"github.com/tuannvm/mcp-creative-agent/internal/common/logging"
	"github.com/tuannvm/mcp-creative-agent/internal/config"
	"github.com/tuannvm/mcp-creative-agent/internal/llm"
	"github.com/tuannvm/mcp-creative-agent/internal/mcp"
	"github.com/tuannvm/mcp-creative-agent/internal/monitoring"
	"github.com/tuannvm/mcp-creative-agent/internal/observability"
)

const (
	defaultMCPInitTimeout  = 30 * time.Second
	defaultReconnectWait   = time.Second
	defaultShutdownTimeout = 10 * time.Second
)

// runtime is everything a frontend needs, built once per process
type runtime struct {
	cfg    *config.Config
	logger *logging.Logger
	tools  *mcp.MultiClient
	agent  *agent.Agent
	close  func()
}

func setupLogging() *logging.Logger {
	level := logging.LevelInfo
	if debug {
		level = logging.LevelDebug
	}
	return logging.New("creative-agent", level)
}

// setup loads configuration and connects everything. The returned runtime
// must be closed.
func setup(ctx context.Context, logger *logging.Logger) (*runtime, error) {
	cfg, err := config.LoadConfig(configFile, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if !debug && cfg.Monitoring.LoggingLevel != "" {
		logger.SetMinLevel(logging.ParseLevel(cfg.Monitoring.LoggingLevel))
	}
	monitoring.RegisterMetrics()

	shutdownTracing, err := observability.Setup(ctx, cfg.Observability, logger)
	if err != nil {
		logger.WarnKV("Tracing disabled", "error", err)
	}
	tracer := observability.NewTracingHandler(&cfg.Observability, logger)

	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	closers = append(closers, func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.WarnKV("Failed to flush traces", "error", err)
		}
	})

	registry, err := llm.NewProviderRegistry(cfg, logger)
	if err != nil {
		closeAll()
		return nil, err
	}
	generator, err := llm.NewGeneratorFromConfig(registry, cfg, tracer, logger)
	if err != nil {
		closeAll()
		return nil, err
	}

	tools := mcp.NewMultiClient(cfg.MCPServers,
		mcp.WithLogger(logger),
		mcp.WithDialer(mcp.DefaultDialer(mcp.DialOptions{
			Retry: mcp.RetryOptions{
				MaxAttempts: cfg.Retry.MCPReconnectAttempts,
				Backoff:     config.Duration(cfg.Retry.MCPReconnectBackoff, defaultReconnectWait),
			},
			Logger: logger,
		})),
	)
	connectCtx, cancel := context.WithTimeout(ctx, config.Duration(cfg.Timeouts.MCPInitTimeout, defaultMCPInitTimeout))
	err = tools.ConnectAll(connectCtx)
	cancel()
	if err != nil {
		monitoring.RecordConnectFailure(monitoring.TriggerStartup)
		closeAll()
		return nil, err
	}
	closers = append(closers, func() {
		if err := tools.CloseAll(); err != nil {
			logger.WarnKV("Error closing tool servers", "error", err)
		}
	})

	store, err := agent.NewStore(ctx, cfg.Memory)
	if err != nil {
		closeAll()
		return nil, err
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		closers = append(closers, func() { _ = closer.Close() })
	}

	a := agent.New(generator, tools,
		agent.WithMaxSteps(cfg.Agent.MaxSteps),
		agent.WithMemory(cfg.Agent.IsMemoryEnabled()),
		agent.WithStore(store),
		agent.WithHistoryLimit(cfg.Agent.HistoryLimit),
		agent.WithTimeouts(
			config.Duration(cfg.Timeouts.LLMCallTimeout, agent.DefaultLLMTimeout),
			config.Duration(cfg.Timeouts.ToolCallTimeout, agent.DefaultToolTimeout),
		),
		agent.WithTracer(tracer),
		agent.WithLogger(logger),
	)
	logger.InfoKV("Agent ready", "provider", registry.PrimaryName(), "tools", len(tools.ListTools()),
		"max_steps", a.MaxSteps(), "memory", a.MemoryEnabled())

	return &runtime{cfg: cfg, logger: logger, tools: tools, agent: a, close: closeAll}, nil
}

// reloadTools re-reads the tool registry and swaps in fresh connections
func (rt *runtime) reloadTools(ctx context.Context, trigger app.ReloadTrigger) error {
	cfg, err := config.LoadConfig(configFile, rt.logger)
	if err != nil {
		return err
	}
	reloadCtx, cancel := context.WithTimeout(ctx, config.Duration(cfg.Timeouts.MCPInitTimeout, defaultMCPInitTimeout))
	defer cancel()
	rt.logger.InfoKV("Reloading tool servers", "trigger", trigger.Type, "servers", len(cfg.MCPServers))
	return rt.tools.Reload(reloadCtx, cfg.MCPServers)
}

// serveMetrics exposes /metrics on the monitoring port until ctx ends
func serveMetrics(ctx context.Context, cfg *config.Config, logger *logging.Logger) {
	if !cfg.Monitoring.Enabled {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Monitoring.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.InfoKV("Serving metrics", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorKV("Metrics server failed", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
