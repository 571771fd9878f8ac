package app

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/sentinel/internal/config"
	"github.com/alanyoungcy/sentinel/internal/feed"
	"github.com/alanyoungcy/sentinel/internal/monitor"
	"github.com/alanyoungcy/sentinel/internal/risk"
	"github.com/alanyoungcy/sentinel/internal/scheduler"
	"github.com/alanyoungcy/sentinel/internal/service"
)

// Singleton jobs coordinate across replicas through these lock keys.
const (
	lockKeyRiskCheck    = "jobs:risk_check"
	lockKeyAlertArchive = "jobs:alert_archive"
)

// MonitorMode runs only the funding-rate spread monitor. No database is
// wired; the monitor observes and logs.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	sched := a.newScheduler(ctx, deps)
	if err := sched.Register(a.spreadMonitorJob(deps)); err != nil {
		return err
	}
	return a.runScheduler(ctx, sched, nil)
}

// RiskMode runs position refresh and risk evaluation against the position
// store, plus alert archival when object storage is wired.
func (a *App) RiskMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting risk mode")

	sched := a.newScheduler(ctx, deps)
	if err := a.registerRiskJobs(sched, deps); err != nil {
		return err
	}
	return a.runScheduler(ctx, sched, a.tickerFeed(deps))
}

// FullMode runs everything: the websocket feed, position refresh, risk
// evaluation, the spread monitor, and alert archival.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	sched := a.newScheduler(ctx, deps)
	if err := a.registerRiskJobs(sched, deps); err != nil {
		return err
	}
	if err := sched.Register(a.spreadMonitorJob(deps)); err != nil {
		return err
	}
	return a.runScheduler(ctx, sched, a.tickerFeed(deps))
}

// newScheduler builds the scheduler with job failures escalated through the
// notifier.
func (a *App) newScheduler(ctx context.Context, deps *Dependencies) *scheduler.Scheduler {
	return scheduler.New(a.logger, func(ctx context.Context, job string, attempts int, err error) {
		if nErr := deps.Notifier.NotifyJobFailure(ctx, job, attempts, err); nErr != nil {
			a.logger.Warn("job failure notification failed",
				slog.String("job", job),
				slog.String("error", nErr.Error()),
			)
		}
	})
}

// registerRiskJobs wires the jobs that need the position store.
func (a *App) registerRiskJobs(sched *scheduler.Scheduler, deps *Dependencies) error {
	positionSvc := service.NewPositionService(deps.PositionStore, deps.PriceCache, deps.Registry, a.logger)
	engine := risk.NewEngine(risk.Config{
		StopLossPct:         a.cfg.Risk.StopLossPct,
		TakeProfitPct:       a.cfg.Risk.TakeProfitPct,
		DrawdownWarnPct:     a.cfg.Risk.DrawdownWarnPct,
		DrawdownCriticalPct: a.cfg.Risk.DrawdownCriticalPct,
		MaxPositions:        a.cfg.Risk.MaxPositions,
		MaxExposure:         a.cfg.Risk.MaxExposure,
	}, a.logger)
	riskSvc := service.NewRiskService(deps.PositionStore, engine, deps.AlertStore, deps.Notifier, a.logger)

	lockTTL := a.cfg.Lock.TTL.Duration

	if err := sched.Register(jobFromConfig("position_refresh", a.cfg.Jobs.PositionRefresh,
		scheduler.SingleFlight(positionSvc.RefreshMarks, a.logger),
	)); err != nil {
		return err
	}

	if err := sched.Register(jobFromConfig("risk_check", a.cfg.Jobs.RiskCheck,
		scheduler.WithLock(deps.LockManager, lockKeyRiskCheck, lockTTL, riskSvc.RunCheck, a.logger),
	)); err != nil {
		return err
	}

	if deps.Archiver != nil {
		if err := sched.Register(jobFromConfig("alert_archive", a.cfg.Jobs.AlertArchive,
			scheduler.WithLock(deps.LockManager, lockKeyAlertArchive, lockTTL, deps.Archiver.Run, a.logger),
		)); err != nil {
			return err
		}
	}

	return nil
}

// spreadMonitorJob builds the funding-rate spread monitor job. Every replica
// may run it; the per-venue rate limit is shared through Redis.
func (a *App) spreadMonitorJob(deps *Dependencies) scheduler.Job {
	symbols := make([]monitor.TrackedSymbol, 0, len(a.cfg.Monitor.Symbols))
	for _, s := range a.cfg.Monitor.Symbols {
		symbols = append(symbols, monitor.TrackedSymbol{Symbol: s.Symbol, Enabled: s.Enabled})
	}

	mon := monitor.NewSpreadMonitor(deps.Registry, deps.RateLimiter, monitor.Config{
		Symbols:         symbols,
		SpreadThreshold: a.cfg.Monitor.SpreadThreshold,
		MaxConcurrency:  a.cfg.Monitor.MaxConcurrency,
		RateLimit:       a.cfg.Monitor.RateLimit,
		RateWindow:      a.cfg.Monitor.RateWindow.Duration,
	}, a.logger)

	return jobFromConfig("spread_monitor", a.cfg.Jobs.SpreadMonitor, mon.RunPass)
}

// tickerFeed builds the websocket feed runner, or nil when disabled.
func (a *App) tickerFeed(deps *Dependencies) func(context.Context) error {
	if !a.cfg.Feed.Enabled {
		return nil
	}
	f := feed.NewTickerFeed(feed.Config{
		URL:            a.cfg.Feed.URL,
		Symbols:        a.cfg.Feed.Symbols,
		InitialBackoff: a.cfg.Feed.InitialBackoff.Duration,
		MaxBackoff:     a.cfg.Feed.MaxBackoff.Duration,
		ReadTimeout:    a.cfg.Feed.ReadTimeout.Duration,
	}, deps.PriceCache, a.logger)
	return f.Run
}

// runScheduler starts the scheduler (and optional feed goroutine) and blocks
// until the context is cancelled, then drains in-flight firings.
func (a *App) runScheduler(ctx context.Context, sched *scheduler.Scheduler, extra func(context.Context) error) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := sched.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		sched.Stop()
		sched.Wait()
		return ctx.Err()
	})

	if extra != nil {
		g.Go(func() error {
			return extra(ctx)
		})
	}

	return g.Wait()
}

func jobFromConfig(name string, jc config.JobConfig, h scheduler.Handler) scheduler.Job {
	return scheduler.Job{
		Name:           name,
		Interval:       jc.Interval.Duration,
		Enabled:        jc.Enabled,
		RunImmediately: jc.RunImmediately,
		MaxRetries:     jc.MaxRetries,
		RetryDelay:     jc.RetryDelay.Duration,
		Handler:        h,
	}
}
