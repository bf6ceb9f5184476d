package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/veyselaydin/gamehouse/internal/domain"
)

// SideStats aggregates one side of a round for the admin view.
type SideStats struct {
	Side        domain.Side `json:"side"`
	Label       string      `json:"label"`
	TotalStaked float64     `json:"total_staked"`
	WagerCount  int         `json:"wager_count"`
	// HouseResultIfWins is the house profit if this side is decided:
	// everything staked minus what winners would be paid before the
	// progressive cut.
	HouseResultIfWins float64 `json:"house_result_if_wins"`
}

// RoundStats is the per-round aggregate view.
type RoundStats struct {
	RoundID     string            `json:"round_id"`
	Number      int64             `json:"number"`
	Phase       domain.RoundPhase `json:"phase"`
	Cycle       int               `json:"cycle"`
	TotalStaked float64           `json:"total_staked"`
	WagerCount  int               `json:"wager_count"`
	Sides       []SideStats       `json:"sides"`
}

// RoundService serves round state reads and the administrator decision
// surface. The live snapshot comes from the cache when present; the store
// is the fallback and the source of truth.
type RoundService struct {
	store  domain.Store
	cache  domain.RoundCache
	logger *slog.Logger
}

// NewRoundService creates a RoundService with all required dependencies.
func NewRoundService(store domain.Store, cache domain.RoundCache, logger *slog.Logger) *RoundService {
	return &RoundService{store: store, cache: cache, logger: logger}
}

// ActiveSnapshot returns the lobby snapshot served to clients. A cache miss
// falls through to the store with a zero time-left.
func (s *RoundService) ActiveSnapshot(ctx context.Context) (domain.RoundSnapshot, error) {
	if s.cache != nil {
		snap, err := s.cache.GetSnapshot(ctx)
		if err == nil {
			return snap, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "round_service: snapshot cache read failed",
				slog.String("error", err.Error()),
			)
		}
	}

	r, err := s.store.Rounds().GetActive(ctx, domain.VariantPooled)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.RoundSnapshot{}, fmt.Errorf("round_service: no active round: %w", domain.ErrRoundNotFound)
		}
		return domain.RoundSnapshot{}, fmt.Errorf("round_service: load active round: %w", err)
	}
	return domain.RoundSnapshot{
		RoundID:     r.ID,
		Number:      r.Number,
		Variant:     r.Variant,
		Phase:       r.Phase,
		Cycle:       r.Cycle,
		Multiplier:  r.Multiplier,
		DecidedSide: r.DecidedSide,
		Totals: map[domain.Side]float64{
			r.Sides[0].Side: r.Sides[0].TotalStaked,
			r.Sides[1].Side: r.Sides[1].TotalStaked,
		},
		WagerCount: r.Sides[0].WagerCount + r.Sides[1].WagerCount,
	}, nil
}

// GetRound returns one round by ID.
func (s *RoundService) GetRound(ctx context.Context, roundID string) (domain.Round, error) {
	r, err := s.store.Rounds().GetByID(ctx, roundID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Round{}, fmt.Errorf("round_service: round %q: %w", roundID, domain.ErrRoundNotFound)
		}
		return domain.Round{}, fmt.Errorf("round_service: load round %q: %w", roundID, err)
	}
	return r, nil
}

// Stats computes the admin aggregate for a round, including the house
// result each side would produce if decided.
func (s *RoundService) Stats(ctx context.Context, roundID string) (RoundStats, error) {
	r, err := s.GetRound(ctx, roundID)
	if err != nil {
		return RoundStats{}, err
	}
	wagers, err := s.store.Wagers().ListByRound(ctx, roundID)
	if err != nil {
		return RoundStats{}, fmt.Errorf("round_service: list wagers: %w", err)
	}

	payoutIfWins := map[domain.Side]float64{}
	for _, w := range wagers {
		if w.Status == domain.WagerStatusPending {
			payoutIfWins[w.Side] += w.PotentialPayout
		}
	}

	stats := RoundStats{
		RoundID:     r.ID,
		Number:      r.Number,
		Phase:       r.Phase,
		Cycle:       r.Cycle,
		TotalStaked: r.TotalStaked,
	}
	for _, sc := range r.Sides {
		stats.WagerCount += sc.WagerCount
		stats.Sides = append(stats.Sides, SideStats{
			Side:              sc.Side,
			Label:             sc.Label,
			TotalStaked:       sc.TotalStaked,
			WagerCount:        sc.WagerCount,
			HouseResultIfWins: domain.Round2(r.TotalStaked - payoutIfWins[sc.Side]),
		})
	}
	return stats, nil
}

// SubmitAdminDecision records an outcome override to be honoured when the
// round is decided. Overrides are never accepted for duels or for rounds
// already settled.
func (s *RoundService) SubmitAdminDecision(ctx context.Context, adminID, roundID string, side domain.Side) error {
	err := s.store.InTx(ctx, func(ctx context.Context, st domain.Store) error {
		r, err := st.Rounds().GetByIDForUpdate(ctx, roundID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("round_service: round %q: %w", roundID, domain.ErrRoundNotFound)
			}
			return fmt.Errorf("round_service: load round %q: %w", roundID, err)
		}
		if r.Variant == domain.VariantHeadToHead {
			return fmt.Errorf("round_service: override on duel %q: %w", roundID, domain.ErrOverrideForbidden)
		}
		if r.DecidedSide != "" || r.Phase.Terminal() {
			return fmt.Errorf("round_service: round %q: %w", roundID, domain.ErrAlreadySettled)
		}
		if r.SideByName(side) == nil {
			return fmt.Errorf("round_service: side %q on round %q: %w", side, roundID, domain.ErrInvalidSide)
		}
		r.Override = side
		r.OverrideBy = adminID
		if err := st.Rounds().Update(ctx, r); err != nil {
			return fmt.Errorf("round_service: save override: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "round_service: override recorded",
		slog.String("round_id", roundID),
		slog.String("side", string(side)),
		slog.String("admin_id", adminID),
	)
	return nil
}

// BalanceHistory returns a user's balance snapshot trail, newest first.
func (s *RoundService) BalanceHistory(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.BalanceSnapshot, error) {
	snaps, err := s.store.Snapshots().ListByUser(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("round_service: list snapshots for %q: %w", userID, err)
	}
	return snaps, nil
}
