package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/veyselaydin/gamehouse/internal/domain"
	"github.com/veyselaydin/gamehouse/internal/policy"
	"github.com/veyselaydin/gamehouse/internal/render"
)

// ChannelRounds carries phase transition events on the signal bus.
const ChannelRounds = "gamehouse:rounds"

// clockLockKey is the distributed lock held for the whole clock run so a
// single process advances the lobby.
const clockLockKey = "gamehouse:clock"

// PhaseEvent is published on every lobby phase transition.
type PhaseEvent struct {
	RoundID     string            `json:"round_id"`
	Number      int64             `json:"number"`
	Phase       domain.RoundPhase `json:"phase"`
	DecidedSide domain.Side       `json:"decided_side,omitempty"`
	Grid        []string          `json:"grid,omitempty"`
}

// ClockConfig holds the lobby timing parameters.
type ClockConfig struct {
	BettingDuration  time.Duration
	DecisionDuration time.Duration
	ResultDuration   time.Duration
	Multiplier       float64
	LockTTL          time.Duration
}

// RoundClock drives the shared lobby: one round at a time through
// betting, decision and result, settling on the transition into decision.
// A single clock runs per process; Run refuses a second concurrent call.
type RoundClock struct {
	store    domain.Store
	decider  *OutcomeDecider
	settler  *SettlementService
	cache    domain.RoundCache
	locks    domain.LockManager
	bus      domain.SignalBus
	renderer *render.Renderer
	cycle    policy.BiasCycle
	logger   *slog.Logger
	cfg      ClockConfig

	running atomic.Bool

	current  domain.Round
	deadline time.Time
}

// NewRoundClock creates a RoundClock with all required dependencies.
func NewRoundClock(
	store domain.Store,
	decider *OutcomeDecider,
	settler *SettlementService,
	cache domain.RoundCache,
	locks domain.LockManager,
	bus domain.SignalBus,
	renderer *render.Renderer,
	cycle policy.BiasCycle,
	logger *slog.Logger,
	cfg ClockConfig,
) *RoundClock {
	return &RoundClock{
		store:    store,
		decider:  decider,
		settler:  settler,
		cache:    cache,
		locks:    locks,
		bus:      bus,
		renderer: renderer,
		cycle:    cycle,
		logger:   logger,
		cfg:      cfg,
	}
}

// Run drives the lobby until ctx is cancelled. It holds the clock lock for
// the whole run and ticks once per second. A tick that fails or panics is
// healed by forcing a fresh betting phase instead of killing the loop.
func (c *RoundClock) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return fmt.Errorf("clock: %w", domain.ErrClockRunning)
	}
	defer c.running.Store(false)

	unlock, err := c.locks.Acquire(ctx, clockLockKey, c.cfg.LockTTL)
	if err != nil {
		return fmt.Errorf("clock: acquire lock: %w", err)
	}
	defer unlock()

	if err := c.resume(ctx); err != nil {
		return fmt.Errorf("clock: resume: %w", err)
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.safeTick(ctx); err != nil {
				c.logger.ErrorContext(ctx, "clock: tick failed, forcing betting phase",
					slog.String("error", err.Error()),
				)
				if healErr := c.heal(ctx); healErr != nil {
					c.logger.ErrorContext(ctx, "clock: heal failed",
						slog.String("error", healErr.Error()),
					)
				}
			}
		}
	}
}

// Running reports whether the clock loop is active.
func (c *RoundClock) Running() bool { return c.running.Load() }

// resume picks up the active round left by a previous run, or starts the
// first round. A resumed round restarts its current phase with the full
// phase duration.
func (c *RoundClock) resume(ctx context.Context) error {
	round, err := c.store.Rounds().GetActive(ctx, domain.VariantPooled)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.startRound(ctx)
		}
		return fmt.Errorf("clock: load active round: %w", err)
	}
	c.current = round
	c.deadline = time.Now().Add(c.phaseDuration(round.Phase))
	return nil
}

func (c *RoundClock) phaseDuration(p domain.RoundPhase) time.Duration {
	switch p {
	case domain.PhaseDecision:
		return c.cfg.DecisionDuration
	case domain.PhaseResult:
		return c.cfg.ResultDuration
	default:
		return c.cfg.BettingDuration
	}
}

func (c *RoundClock) safeTick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("clock: tick panic: %v", r)
		}
	}()
	return c.tick(ctx)
}

func (c *RoundClock) tick(ctx context.Context) error {
	now := time.Now()
	if now.Before(c.deadline) {
		return c.refreshSnapshot(ctx, now)
	}

	switch c.current.Phase {
	case domain.PhaseBetting:
		if err := c.enterDecision(ctx); err != nil {
			return err
		}
	case domain.PhaseDecision:
		if err := c.enterResult(ctx); err != nil {
			return err
		}
	case domain.PhaseResult:
		if err := c.completeAndStartNext(ctx); err != nil {
			return err
		}
	default:
		return c.startRound(ctx)
	}
	return c.refreshSnapshot(ctx, time.Now())
}

// enterDecision closes betting, decides the outcome and settles. The phase
// flip commits in the same transaction as the settlement, so no wager can
// land on a round that is already paid out.
func (c *RoundClock) enterDecision(ctx context.Context) error {
	var (
		round   domain.Round
		summary domain.SettlementSummary
	)
	err := c.store.InTx(ctx, func(ctx context.Context, st domain.Store) error {
		var err error
		round, err = st.Rounds().GetByIDForUpdate(ctx, c.current.ID)
		if err != nil {
			return fmt.Errorf("clock: reload round: %w", err)
		}

		decided := c.decider.Decide(round)
		round.Phase = domain.PhaseDecision
		summary, err = c.settler.settleInTx(ctx, st, &round, decided)
		if err != nil {
			return fmt.Errorf("clock: settle round %q: %w", round.ID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.current = round
	c.deadline = time.Now().Add(c.cfg.DecisionDuration)

	c.settler.publish(ctx, summary)
	grid := c.renderer.Render(round.DecidedSide == domain.SideWin)
	c.publishPhase(ctx, PhaseEvent{
		RoundID:     round.ID,
		Number:      round.Number,
		Phase:       round.Phase,
		DecidedSide: round.DecidedSide,
		Grid:        grid.Flatten(),
	})
	return nil
}

func (c *RoundClock) enterResult(ctx context.Context) error {
	c.current.Phase = domain.PhaseResult
	if err := c.store.Rounds().Update(ctx, c.current); err != nil {
		return fmt.Errorf("clock: update phase: %w", err)
	}
	c.deadline = time.Now().Add(c.cfg.ResultDuration)
	c.publishPhase(ctx, PhaseEvent{
		RoundID:     c.current.ID,
		Number:      c.current.Number,
		Phase:       c.current.Phase,
		DecidedSide: c.current.DecidedSide,
	})
	return nil
}

func (c *RoundClock) completeAndStartNext(ctx context.Context) error {
	now := time.Now().UTC()
	c.current.Phase = domain.PhaseCompleted
	c.current.CompletedAt = &now
	if err := c.store.Rounds().Update(ctx, c.current); err != nil {
		return fmt.Errorf("clock: complete round: %w", err)
	}
	return c.startRound(ctx)
}

// startRound opens the next betting window. The round number carries on
// from the last round ever created so the bias cycle position survives
// restarts.
func (c *RoundClock) startRound(ctx context.Context) error {
	last, err := c.store.Rounds().LastNumber(ctx)
	if err != nil {
		return fmt.Errorf("clock: last round number: %w", err)
	}
	number := last + 1

	round := domain.Round{
		ID:      uuid.NewString(),
		Number:  number,
		Variant: domain.VariantPooled,
		Phase:   domain.PhaseBetting,
		Cycle:   c.cycle.Position(number),
		Sides: [2]domain.SideConfig{
			{Side: domain.SideWin, Label: "Win"},
			{Side: domain.SideLoss, Label: "Loss"},
		},
		Multiplier: c.cfg.Multiplier,
		StartedAt:  time.Now().UTC(),
	}
	if err := c.store.Rounds().Create(ctx, round); err != nil {
		return fmt.Errorf("clock: create round: %w", err)
	}

	c.current = round
	c.deadline = time.Now().Add(c.cfg.BettingDuration)

	c.logger.InfoContext(ctx, "clock: round started",
		slog.Int64("number", round.Number),
		slog.Int("cycle", round.Cycle),
	)
	c.publishPhase(ctx, PhaseEvent{
		RoundID: round.ID,
		Number:  round.Number,
		Phase:   round.Phase,
	})
	return nil
}

// heal abandons the current phase and opens a fresh betting round so the
// lobby never stalls on a failed tick.
func (c *RoundClock) heal(ctx context.Context) error {
	if c.current.ID != "" && !c.current.Phase.Terminal() {
		restarted := false
		err := c.store.InTx(ctx, func(ctx context.Context, st domain.Store) error {
			round, err := st.Rounds().GetByIDForUpdate(ctx, c.current.ID)
			if err != nil || round.DecidedSide != "" {
				return nil
			}
			// Undecided round restarts its betting window in place.
			round.Phase = domain.PhaseBetting
			if err := st.Rounds().Update(ctx, round); err != nil {
				return err
			}
			c.current = round
			restarted = true
			return nil
		})
		if err == nil && restarted {
			c.deadline = time.Now().Add(c.cfg.BettingDuration)
			return nil
		}
	}
	return c.startRound(ctx)
}

func (c *RoundClock) refreshSnapshot(ctx context.Context, now time.Time) error {
	if c.cache == nil {
		return nil
	}
	left := int(c.deadline.Sub(now).Seconds())
	if left < 0 {
		left = 0
	}
	r, err := c.store.Rounds().GetByID(ctx, c.current.ID)
	if err != nil {
		return fmt.Errorf("clock: reload round for snapshot: %w", err)
	}
	c.current = r

	snap := domain.RoundSnapshot{
		RoundID:     r.ID,
		Number:      r.Number,
		Variant:     r.Variant,
		Phase:       r.Phase,
		TimeLeft:    left,
		Cycle:       r.Cycle,
		Multiplier:  r.Multiplier,
		DecidedSide: r.DecidedSide,
		Totals: map[domain.Side]float64{
			r.Sides[0].Side: r.Sides[0].TotalStaked,
			r.Sides[1].Side: r.Sides[1].TotalStaked,
		},
		WagerCount: r.Sides[0].WagerCount + r.Sides[1].WagerCount,
	}
	if err := c.cache.SetSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("clock: cache snapshot: %w", err)
	}
	return nil
}

func (c *RoundClock) publishPhase(ctx context.Context, ev PhaseEvent) {
	if c.bus == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := c.bus.Publish(ctx, ChannelRounds, payload); err != nil {
		c.logger.WarnContext(ctx, "clock: publish failed",
			slog.String("error", err.Error()),
		)
	}
}
