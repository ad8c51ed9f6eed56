// Package app runs the agent process and reconnects its tool servers on demand
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/tuannvm/mcp-creative-agent/internal/common/logging"
	"github.com/tuannvm/mcp-creative-agent/internal/config"
	"github.com/tuannvm/mcp-creative-agent/internal/monitoring"
)

const (
	minReloadInterval      = 10 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	initialBackoffDelay    = 5 * time.Second
	maxBackoffDelay        = 5 * time.Minute
	backoffMultiplier      = 2
)

// Trigger types
const (
	TriggerSignal   = monitoring.TriggerSignal
	TriggerPeriodic = monitoring.TriggerPeriodic
	TriggerShutdown = "shutdown"
)

// ReloadTrigger represents the type of trigger that caused a reload
type ReloadTrigger struct {
	Type   string
	Signal os.Signal
}

// AppFunc runs the application until ctx is cancelled
type AppFunc func(ctx context.Context) error

// ReloadFunc reconnects the tool servers without stopping the application
type ReloadFunc func(ctx context.Context, trigger ReloadTrigger) error

type loopOptions struct {
	interval        time.Duration
	shutdownTimeout time.Duration
	reloadSignals   <-chan os.Signal
	shutdownSignals <-chan os.Signal
}

// RunWithReload runs appFunc until it returns, ctx is cancelled, or a
// shutdown signal arrives. A reload signal (SIGHUP or SIGUSR1 on unix) and
// the periodic interval call reloadFunc while the application keeps serving.
func RunWithReload(ctx context.Context, logger *logging.Logger, cfg *config.Config, appFunc AppFunc, reloadFunc ReloadFunc) error {
	logger = logger.WithName("lifecycle")
	reloadChan, shutdownChan, stop := platformSignals.subscribe()
	defer stop()

	return runLoop(ctx, logger, loopOptions{
		interval:        reloadInterval(cfg.Reload, logger),
		shutdownTimeout: config.Duration(cfg.Timeouts.ShutdownTimeout, defaultShutdownTimeout),
		reloadSignals:   reloadChan,
		shutdownSignals: shutdownChan,
	}, appFunc, reloadFunc)
}

func runLoop(ctx context.Context, logger *logging.Logger, opts loopOptions, appFunc AppFunc, reloadFunc ReloadFunc) error {
	appCtx, appCancel := context.WithCancel(ctx)
	defer appCancel()

	appDone := make(chan error, 1)
	go func() {
		appDone <- appFunc(appCtx)
	}()

	var timerC <-chan time.Time
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	if opts.interval > 0 {
		logger.InfoKV("Periodic reload enabled", "interval", opts.interval)
		timer = time.NewTimer(opts.interval)
		timerC = timer.C
	}

	backoff := initialBackoffDelay
	for {
		var trigger ReloadTrigger
		select {
		case err := <-appDone:
			logger.InfoKV("Application completed", "error", err)
			return err
		case <-ctx.Done():
			return shutdown(logger, appCancel, appDone, opts.shutdownTimeout, ReloadTrigger{Type: TriggerShutdown})
		case sig := <-opts.shutdownSignals:
			return shutdown(logger, appCancel, appDone, opts.shutdownTimeout, ReloadTrigger{Type: TriggerShutdown, Signal: sig})
		case sig := <-opts.reloadSignals:
			logger.InfoKV("Reload signal received", "signal", sig)
			trigger = ReloadTrigger{Type: TriggerSignal, Signal: sig}
		case <-timerC:
			logger.Info("Periodic reload triggered")
			trigger = ReloadTrigger{Type: TriggerPeriodic}
		}

		if reloadFunc == nil {
			continue
		}

		start := time.Now()
		next := opts.interval
		if err := reloadFunc(appCtx, trigger); err != nil {
			monitoring.RecordConnectFailure(trigger.Type)
			monitoring.UpdateBackoffDelay(backoff)
			logger.ErrorKV("Reload failed, keeping current tool servers", "trigger", trigger.Type, "error", err, "retry_in", backoff)
			next = backoff
			backoff = min(backoff*backoffMultiplier, maxBackoffDelay)
		} else {
			monitoring.RecordReload(trigger.Type, time.Since(start))
			monitoring.UpdateBackoffDelay(0)
			logger.InfoKV("Reload completed", "trigger", trigger.Type, "duration", time.Since(start))
			backoff = initialBackoffDelay
		}

		switch {
		case next <= 0 && timer != nil:
			timer.Stop()
			timerC = nil
		case next > 0 && timer == nil:
			timer = time.NewTimer(next)
			timerC = timer.C
		case next > 0:
			resetTimer(timer, next)
			timerC = timer.C
		}
	}
}

// shutdown cancels the application and waits up to timeout for it to return
func shutdown(logger *logging.Logger, cancel context.CancelFunc, appDone <-chan error, timeout time.Duration, trigger ReloadTrigger) error {
	logger.InfoKV("Shutdown triggered, gracefully stopping...", "signal", trigger.Signal)
	cancel()

	select {
	case err := <-appDone:
		logger.Info("Application shutdown completed")
		return err
	case <-time.After(timeout):
		logger.WarnKV("Application shutdown timed out", "timeout", timeout)
		return fmt.Errorf("application did not stop within %s", timeout)
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

// validateReloadInterval ensures the reload interval is valid and not too short
func validateReloadInterval(interval string) error {
	duration, err := time.ParseDuration(interval)
	if err != nil {
		return fmt.Errorf("invalid duration format: %w", err)
	}

	if duration < minReloadInterval {
		return fmt.Errorf("reload interval %s is below minimum of %s", duration, minReloadInterval)
	}

	return nil
}

// reloadInterval returns 0 when periodic reload is disabled or misconfigured
func reloadInterval(cfg config.ReloadConfig, logger *logging.Logger) time.Duration {
	if !cfg.Enabled {
		logger.Debug("Periodic reload disabled")
		return 0
	}
	if err := validateReloadInterval(cfg.Interval); err != nil {
		logger.ErrorKV("Invalid reload configuration, periodic reload disabled", "error", err)
		return 0
	}
	d, _ := time.ParseDuration(cfg.Interval)
	return d
}
