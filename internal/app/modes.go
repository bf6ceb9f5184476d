package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/veyselaydin/gamehouse/internal/policy"
	"github.com/veyselaydin/gamehouse/internal/render"
	"github.com/veyselaydin/gamehouse/internal/server"
	"github.com/veyselaydin/gamehouse/internal/server/handler"
	"github.com/veyselaydin/gamehouse/internal/server/ws"
	"github.com/veyselaydin/gamehouse/internal/service"
)

// API-wide per-IP rate limit applied when the redis limiter is wired.
const (
	apiRateLimit       = 120
	apiRateLimitWindow = time.Second
)

// services bundles the wagering services built on top of the wired
// dependencies. All modes share the same construction.
type services struct {
	bet     *service.BetService
	settler *service.SettlementService
	rounds  *service.RoundService
	match   *service.MatchService
	clock   *service.RoundClock
}

// buildServices constructs the full service layer from the wired dependencies
// and the game configuration.
func (a *App) buildServices(deps *Dependencies) *services {
	// Separate sources: the renderer rolls inside the clock goroutine while
	// the match service rolls under its own lock.
	gridRNG := rand.New(rand.NewSource(time.Now().UnixNano()))
	diceRNG := rand.New(rand.NewSource(time.Now().UnixNano() + 1))

	decider := service.NewOutcomeDecider(policy.DefaultBiasCycle, a.logger)
	settler := service.NewSettlementService(deps.Store, deps.SignalBus, a.logger, policy.DefaultHouseCutSchedule)

	clock := service.NewRoundClock(
		deps.Store,
		decider,
		settler,
		deps.RoundCache,
		deps.LockManager,
		deps.SignalBus,
		render.New(gridRNG),
		policy.DefaultBiasCycle,
		a.logger,
		service.ClockConfig{
			BettingDuration:  a.cfg.Game.BettingDuration.Duration,
			DecisionDuration: a.cfg.Game.DecisionDuration.Duration,
			ResultDuration:   a.cfg.Game.ResultDuration.Duration,
			Multiplier:       a.cfg.Game.PayoutMultiplier,
			LockTTL:          a.cfg.Game.ClockLockTTL.Duration,
		},
	)

	return &services{
		bet:     service.NewBetService(deps.Store, deps.SignalBus, a.logger, a.cfg.Game.MinStake, a.cfg.Game.PayoutMultiplier),
		settler: settler,
		rounds:  service.NewRoundService(deps.Store, deps.RoundCache, a.logger),
		match: service.NewMatchService(
			deps.Store,
			settler,
			deps.SignalBus,
			a.logger,
			a.cfg.Queue.MinStake,
			a.cfg.Queue.StakeTolerance,
			a.cfg.Queue.EntryTTL.Duration,
			diceRNG,
		),
		clock: clock,
	}
}

// startServer registers the API server and its WebSocket hub on the group.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs *services) {
	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		err := hub.Run(ctx)
		if err != nil && ctx.Err() != nil {
			return nil
		}
		return err
	})

	srv := server.NewServer(
		server.Config{
			Port:            a.cfg.Server.Port,
			CORSOrigins:     a.cfg.Server.CORSOrigins,
			AdminToken:      a.cfg.Server.AdminToken,
			RateLimit:       apiRateLimit,
			RateLimitWindow: apiRateLimitWindow,
		},
		server.Handlers{
			Health:   handler.NewHealthHandler(a.logger),
			Rounds:   handler.NewRoundHandler(svcs.rounds, a.logger),
			Wagers:   handler.NewWagerHandler(svcs.bet, a.logger),
			Queue:    handler.NewQueueHandler(svcs.match, a.logger),
			Accounts: handler.NewAccountHandler(svcs.rounds, a.logger),
			Admin:    handler.NewAdminHandler(svcs.rounds, svcs.settler, a.logger),
		},
		hub,
		deps.RateLimiter,
		a.logger,
	)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// startArchiver registers the periodic cold-storage pass on the group.
func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Archiver == nil {
		return
	}

	interval := a.cfg.Archive.Interval.Duration
	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if err := a.runArchivePass(ctx, deps); err != nil {
					a.logger.ErrorContext(ctx, "archive pass failed",
						slog.String("error", err.Error()),
					)
				}
			}
		}
	})
}

// runArchivePass moves everything older than the retention cutoff to cold
// storage.
func (a *App) runArchivePass(ctx context.Context, deps *Dependencies) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.Archive.RetentionDays)

	rounds, err := deps.Archiver.ArchiveRounds(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archive rounds: %w", err)
	}
	entries, err := deps.Archiver.ArchiveLedger(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archive ledger: %w", err)
	}
	snaps, err := deps.Archiver.ArchiveSnapshots(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archive snapshots: %w", err)
	}

	a.logger.InfoContext(ctx, "archive pass complete",
		slog.Time("cutoff", cutoff),
		slog.Int64("rounds", rounds),
		slog.Int64("ledger_entries", entries),
		slog.Int64("snapshots", snaps),
	)
	return nil
}

// FullMode runs the round clock, the API server and, when enabled, the
// archiver in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(deps)

	g.Go(func() error {
		err := svcs.clock.Run(ctx)
		if err != nil && ctx.Err() != nil {
			return nil
		}
		return err
	})

	if a.cfg.Server.Enabled {
		a.startServer(ctx, g, deps, svcs)
	}
	a.startArchiver(ctx, g, deps)

	return g.Wait()
}

// ServerMode runs only the API server; the round clock is expected to run in
// a separate clock-mode process holding the lobby lock.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(deps)

	a.startServer(ctx, g, deps, svcs)
	a.startArchiver(ctx, g, deps)

	return g.Wait()
}

// ClockMode runs only the round clock.
func (a *App) ClockMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting clock mode")

	svcs := a.buildServices(deps)

	err := svcs.clock.Run(ctx)
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// ArchiveMode runs a single archive pass and exits. Intended for cron-style
// invocation.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")

	if deps.Archiver == nil {
		return fmt.Errorf("app: archive mode requires object storage")
	}
	return a.runArchivePass(ctx, deps)
}
