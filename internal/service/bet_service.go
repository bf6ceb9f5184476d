package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/veyselaydin/gamehouse/internal/domain"
)

// ChannelWagers carries wager placement events on the signal bus.
const ChannelWagers = "gamehouse:wagers"

// BetService validates and records wagers. All balance movement happens in
// one store transaction per call.
type BetService struct {
	store      domain.Store
	bus        domain.SignalBus
	logger     *slog.Logger
	minStake   float64
	multiplier float64
}

// NewBetService creates a BetService with all required dependencies.
func NewBetService(
	store domain.Store,
	bus domain.SignalBus,
	logger *slog.Logger,
	minStake, multiplier float64,
) *BetService {
	return &BetService{
		store:      store,
		bus:        bus,
		logger:     logger,
		minStake:   minStake,
		multiplier: multiplier,
	}
}

// PlaceWager reserves the stake and books a wager on one side of the active
// round. A user holds at most one open wager per round: placing again
// refunds the previous one and books the new choice atomically.
func (s *BetService) PlaceWager(ctx context.Context, userID, roundID string, side domain.Side, stake float64) (domain.WagerReceipt, error) {
	if stake <= 0 || stake < s.minStake {
		return domain.WagerReceipt{}, fmt.Errorf("bet_service: stake %.2f below minimum %.2f: %w", stake, s.minStake, domain.ErrInvalidStake)
	}

	var receipt domain.WagerReceipt
	err := s.store.InTx(ctx, func(ctx context.Context, st domain.Store) error {
		round, err := st.Rounds().GetByIDForUpdate(ctx, roundID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("bet_service: round %q: %w", roundID, domain.ErrRoundNotFound)
			}
			return fmt.Errorf("bet_service: load round %q: %w", roundID, err)
		}
		if !round.AcceptsWagers() {
			return fmt.Errorf("bet_service: round %q in phase %s: %w", roundID, round.Phase, domain.ErrInvalidPhase)
		}
		// A settled round takes no further wagers regardless of phase.
		if round.DecidedSide != "" {
			return fmt.Errorf("bet_service: round %q already decided: %w", roundID, domain.ErrInvalidPhase)
		}
		sideCfg := round.SideByName(side)
		if sideCfg == nil {
			return fmt.Errorf("bet_service: side %q on round %q: %w", side, roundID, domain.ErrInvalidSide)
		}
		if round.Variant == domain.VariantHeadToHead && round.SeatByUser(userID) >= 0 {
			return fmt.Errorf("bet_service: user %q seated in round %q: %w", userID, roundID, domain.ErrSelfWagerForbidden)
		}

		acc, err := st.Accounts().GetByIDForUpdate(ctx, userID)
		if err != nil {
			return fmt.Errorf("bet_service: load account %q: %w", userID, err)
		}

		// Re-choice: release the previous open wager first so its stake is
		// available for the new one.
		var refunded float64
		prev, err := st.Wagers().GetPending(ctx, roundID, userID)
		switch {
		case err == nil:
			if _, err := postMovement(ctx, st, &acc, prev.Stake,
				domain.EntryKindRefund, domain.SnapshotKindRefund,
				roundID, prev.ID, "wager replaced"); err != nil {
				return err
			}
			now := time.Now().UTC()
			prev.Status = domain.WagerStatusRefunded
			prev.SettledAt = &now
			if err := st.Wagers().Update(ctx, prev); err != nil {
				return fmt.Errorf("bet_service: refund wager %q: %w", prev.ID, err)
			}
			if old := round.SideByName(prev.Side); old != nil {
				old.TotalStaked = domain.Round2(old.TotalStaked - prev.Stake)
				old.WagerCount--
			}
			round.TotalStaked = domain.Round2(round.TotalStaked - prev.Stake)
			refunded = prev.Stake
		case errors.Is(err, domain.ErrNotFound):
			// First wager on this round.
		default:
			return fmt.Errorf("bet_service: lookup open wager: %w", err)
		}

		if acc.Balance < stake {
			return fmt.Errorf("bet_service: balance %.2f, stake %.2f: %w", acc.Balance, stake, domain.ErrInsufficientBalance)
		}

		wagerID := uuid.NewString()
		before := acc.Balance
		entryID, err := postMovement(ctx, st, &acc, -stake,
			domain.EntryKindStake, domain.SnapshotKindStake,
			roundID, wagerID, "wager placed")
		if err != nil {
			return err
		}

		w := domain.Wager{
			ID:              wagerID,
			UserID:          userID,
			RoundID:         roundID,
			Side:            side,
			Stake:           stake,
			PotentialPayout: domain.Round2(stake * s.multiplier),
			Status:          domain.WagerStatusPending,
			BalanceBefore:   before,
			BalanceAfter:    acc.Balance,
			StakeEntryID:    entryID,
			PlacedAt:        time.Now().UTC(),
		}
		if err := st.Wagers().Create(ctx, w); err != nil {
			return fmt.Errorf("bet_service: create wager: %w", err)
		}

		sideCfg.TotalStaked = domain.Round2(sideCfg.TotalStaked + stake)
		sideCfg.WagerCount++
		round.TotalStaked = domain.Round2(round.TotalStaked + stake)
		if err := st.Rounds().Update(ctx, round); err != nil {
			return fmt.Errorf("bet_service: update round totals: %w", err)
		}

		receipt = domain.WagerReceipt{
			WagerID:         wagerID,
			RoundID:         roundID,
			Side:            side,
			Stake:           stake,
			PotentialPayout: w.PotentialPayout,
			Refunded:        refunded,
			Balance:         acc.Balance,
		}
		return nil
	})
	if err != nil {
		return domain.WagerReceipt{}, err
	}

	s.publish(ctx, receipt)
	s.logger.InfoContext(ctx, "bet_service: wager placed",
		slog.String("user_id", userID),
		slog.String("round_id", roundID),
		slog.String("side", string(side)),
		slog.Float64("stake", stake),
	)
	return receipt, nil
}

// ListUserWagers returns a user's wager history, newest first.
func (s *BetService) ListUserWagers(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Wager, error) {
	ws, err := s.store.Wagers().ListByUser(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("bet_service: list wagers for %q: %w", userID, err)
	}
	return ws, nil
}

func (s *BetService) publish(ctx context.Context, receipt domain.WagerReceipt) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(receipt)
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, ChannelWagers, payload); err != nil {
		s.logger.WarnContext(ctx, "bet_service: publish failed",
			slog.String("error", err.Error()),
		)
	}
}
