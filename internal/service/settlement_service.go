package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/veyselaydin/gamehouse/internal/domain"
	"github.com/veyselaydin/gamehouse/internal/policy"
)

// ChannelSettlements carries settlement summaries on the signal bus.
const ChannelSettlements = "gamehouse:settlements"

// SettlementService pays out a decided round in one transactional pass and
// supports reversing and re-settling a round whose outcome was changed.
type SettlementService struct {
	store  domain.Store
	bus    domain.SignalBus
	logger *slog.Logger
	cuts   policy.HouseCutSchedule
}

// NewSettlementService creates a SettlementService with all required
// dependencies.
func NewSettlementService(
	store domain.Store,
	bus domain.SignalBus,
	logger *slog.Logger,
	cuts policy.HouseCutSchedule,
) *SettlementService {
	return &SettlementService{
		store:  store,
		bus:    bus,
		logger: logger,
		cuts:   cuts,
	}
}

// Settle pays out every open wager of the round against the decided side,
// credits seat payouts for duels, and books the house result. Settling an
// already settled round fails with ErrAlreadySettled.
func (s *SettlementService) Settle(ctx context.Context, roundID string, decided domain.Side) (domain.SettlementSummary, error) {
	var summary domain.SettlementSummary
	err := s.store.InTx(ctx, func(ctx context.Context, st domain.Store) error {
		round, err := st.Rounds().GetByIDForUpdate(ctx, roundID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("settlement: round %q: %w", roundID, domain.ErrRoundNotFound)
			}
			return fmt.Errorf("settlement: load round %q: %w", roundID, err)
		}
		if round.DecidedSide != "" {
			return fmt.Errorf("settlement: round %q: %w", roundID, domain.ErrAlreadySettled)
		}
		if round.SideByName(decided) == nil {
			return fmt.Errorf("settlement: side %q on round %q: %w", decided, roundID, domain.ErrInvalidSide)
		}

		summary, err = s.settleInTx(ctx, st, &round, decided)
		return err
	})
	if err != nil {
		return domain.SettlementSummary{}, err
	}

	s.publish(ctx, summary)
	s.logger.InfoContext(ctx, "settlement: round settled",
		slog.String("round_id", summary.RoundID),
		slog.String("decided_side", string(summary.DecidedSide)),
		slog.Int("wagers", summary.WagersSettled),
		slog.Float64("total_payout", summary.TotalPayout),
		slog.Float64("house_profit", summary.HouseProfit),
	)
	return summary, nil
}

// ChangeOutcome moves a settled round to a different winning side: every
// settled wager is reversed (payouts debited, their ledger entries
// cancelled), a duel's seat payout is debited back, and the round is
// re-settled against the new side. A duel still in its action phase cannot
// be overridden. Repeating the call with the already decided side is a
// no-op.
func (s *SettlementService) ChangeOutcome(ctx context.Context, roundID string, newSide domain.Side, adminID string) (domain.SettlementSummary, error) {
	var summary domain.SettlementSummary
	err := s.store.InTx(ctx, func(ctx context.Context, st domain.Store) error {
		round, err := st.Rounds().GetByIDForUpdate(ctx, roundID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("settlement: round %q: %w", roundID, domain.ErrRoundNotFound)
			}
			return fmt.Errorf("settlement: load round %q: %w", roundID, err)
		}
		if round.Variant == domain.VariantHeadToHead && round.Phase == domain.PhaseAction {
			return fmt.Errorf("settlement: outcome change on open duel %q: %w", roundID, domain.ErrOverrideForbidden)
		}
		if round.DecidedSide == "" {
			return fmt.Errorf("settlement: round %q not settled yet: %w", roundID, domain.ErrInvalidPhase)
		}
		if round.SideByName(newSide) == nil {
			return fmt.Errorf("settlement: side %q on round %q: %w", newSide, roundID, domain.ErrInvalidSide)
		}
		if round.DecidedSide == newSide {
			summary = domain.SettlementSummary{RoundID: roundID, DecidedSide: newSide}
			return nil
		}

		reversed, err := s.reverseInTx(ctx, st, &round)
		if err != nil {
			return err
		}
		round.Override = newSide
		round.OverrideBy = adminID

		summary, err = s.settleInTx(ctx, st, &round, newSide)
		if err != nil {
			return err
		}
		summary.Reversed = reversed
		return nil
	})
	if err != nil {
		return domain.SettlementSummary{}, err
	}

	s.publish(ctx, summary)
	s.logger.InfoContext(ctx, "settlement: outcome changed",
		slog.String("round_id", roundID),
		slog.String("new_side", string(summary.DecidedSide)),
		slog.String("admin_id", adminID),
		slog.Float64("reversed", summary.Reversed),
	)
	return summary, nil
}

// settleInTx runs the single settlement pass. A wager whose owner account
// is missing is skipped and logged, never fatal for the round.
func (s *SettlementService) settleInTx(ctx context.Context, st domain.Store, round *domain.Round, decided domain.Side) (domain.SettlementSummary, error) {
	now := time.Now().UTC()
	summary := domain.SettlementSummary{RoundID: round.ID, DecidedSide: decided}

	wagers, err := st.Wagers().ListByRound(ctx, round.ID)
	if err != nil {
		return summary, fmt.Errorf("settlement: list wagers: %w", err)
	}

	var wagerStaked, wagerPaid float64
	for _, w := range wagers {
		if w.Status != domain.WagerStatusPending {
			continue
		}
		acc, err := st.Accounts().GetByIDForUpdate(ctx, w.UserID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				s.logger.WarnContext(ctx, "settlement: account missing, wager skipped",
					slog.String("wager_id", w.ID),
					slog.String("user_id", w.UserID),
				)
				continue
			}
			return summary, fmt.Errorf("settlement: load account %q: %w", w.UserID, err)
		}

		wagerStaked += w.Stake
		if w.Side == decided {
			paid, _ := s.cuts.Split(w.PotentialPayout, w.Stake, acc.WinStreak)
			paid = domain.Round2(paid)
			acc.WinStreak++
			entryID, err := postMovement(ctx, st, &acc, paid,
				domain.EntryKindPayout, domain.SnapshotKindPayout,
				round.ID, w.ID, "wager won")
			if err != nil {
				return summary, err
			}
			w.Status = domain.WagerStatusWon
			w.Payout = paid
			w.PayoutEntryID = entryID
			w.BalanceAfter = acc.Balance
			wagerPaid += paid
			summary.WagersWon++
		} else {
			acc.WinStreak = 0
			if err := st.Accounts().Update(ctx, acc); err != nil {
				return summary, fmt.Errorf("settlement: reset streak for %q: %w", acc.ID, err)
			}
			w.Status = domain.WagerStatusLost
			w.Payout = 0
			summary.WagersLost++
		}
		w.SettledAt = &now
		if err := st.Wagers().Update(ctx, w); err != nil {
			return summary, fmt.Errorf("settlement: update wager %q: %w", w.ID, err)
		}
		summary.WagersSettled++
	}

	totalPaid := wagerPaid
	houseProfit := domain.Round2(wagerStaked - wagerPaid)

	if round.Variant == domain.VariantHeadToHead {
		seatPaid, seatHouse, err := s.paySeatsInTx(ctx, st, round, decided)
		if err != nil {
			return summary, err
		}
		totalPaid += seatPaid
		houseProfit = domain.Round2(houseProfit + seatHouse)
	}

	if err := postHouseProfit(ctx, st, houseProfit, round.ID, "round result"); err != nil {
		return summary, err
	}

	round.DecidedSide = decided
	round.TotalPayout = domain.Round2(totalPaid)
	round.HouseProfit = houseProfit
	round.ClosedAt = &now
	if round.Variant == domain.VariantHeadToHead {
		round.Phase = domain.PhaseCompleted
		round.CompletedAt = &now
	}
	if err := st.Rounds().Update(ctx, *round); err != nil {
		return summary, fmt.Errorf("settlement: update round %q: %w", round.ID, err)
	}

	summary.TotalPayout = round.TotalPayout
	summary.HouseProfit = houseProfit
	return summary, nil
}

// paySeatsInTx credits the winning seat of a duel. The winner receives
// twice their own stake, never more than the combined pot; the remainder
// stays with the house.
func (s *SettlementService) paySeatsInTx(ctx context.Context, st domain.Store, round *domain.Round, decided domain.Side) (paid, house float64, err error) {
	winnerIdx := 0
	if decided == domain.SideSeat2 {
		winnerIdx = 1
	}
	seat := round.Seats[winnerIdx]

	payout := seatPayout(round, decided)

	acc, err := st.Accounts().GetByIDForUpdate(ctx, seat.UserID)
	if err != nil {
		return 0, 0, fmt.Errorf("settlement: load seat account %q: %w", seat.UserID, err)
	}
	if _, err := postMovement(ctx, st, &acc, payout,
		domain.EntryKindPayout, domain.SnapshotKindPayout,
		round.ID, "", "duel won"); err != nil {
		return 0, 0, err
	}
	return payout, domain.Round2(round.Pot() - payout), nil
}

// seatPayout is the amount the winning seat of a duel receives: twice its
// own stake, capped at the combined pot.
func seatPayout(round *domain.Round, decided domain.Side) float64 {
	winnerIdx := 0
	if decided == domain.SideSeat2 {
		winnerIdx = 1
	}
	payout := domain.Round2(round.Seats[winnerIdx].Stake * 2)
	if pot := domain.Round2(round.Pot()); payout > pot {
		payout = pot
	}
	return payout
}

// reverseInTx undoes a settled round: winner payouts are debited back,
// their payout entries cancelled, every settled wager reset to pending,
// a duel's seat payout debited back, and the previously booked house result
// reversed.
func (s *SettlementService) reverseInTx(ctx context.Context, st domain.Store, round *domain.Round) (float64, error) {
	wagers, err := st.Wagers().ListByRound(ctx, round.ID)
	if err != nil {
		return 0, fmt.Errorf("settlement: list wagers for reversal: %w", err)
	}

	var reversed float64
	for _, w := range wagers {
		switch w.Status {
		case domain.WagerStatusWon:
			acc, err := st.Accounts().GetByIDForUpdate(ctx, w.UserID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					s.logger.WarnContext(ctx, "settlement: account missing, reversal skipped",
						slog.String("wager_id", w.ID),
						slog.String("user_id", w.UserID),
					)
					continue
				}
				return 0, fmt.Errorf("settlement: load account %q: %w", w.UserID, err)
			}
			if acc.WinStreak > 0 {
				acc.WinStreak--
			}
			if _, err := postMovement(ctx, st, &acc, -w.Payout,
				domain.EntryKindRefund, domain.SnapshotKindReverse,
				round.ID, w.ID, "outcome changed"); err != nil {
				return 0, err
			}
			if err := st.Ledger().UpdateStatus(ctx, w.PayoutEntryID, domain.EntryStatusCancelled); err != nil {
				return 0, fmt.Errorf("settlement: cancel payout entry %q: %w", w.PayoutEntryID, err)
			}
			reversed = domain.Round2(reversed + w.Payout)
		case domain.WagerStatusLost:
			// Reset only; nothing was paid.
		default:
			continue
		}
		w.Status = domain.WagerStatusPending
		w.Payout = 0
		w.PayoutEntryID = ""
		w.SettledAt = nil
		if err := st.Wagers().Update(ctx, w); err != nil {
			return 0, fmt.Errorf("settlement: reset wager %q: %w", w.ID, err)
		}
	}

	if round.Variant == domain.VariantHeadToHead && round.DecidedSide != "" {
		paid, err := s.reverseSeatInTx(ctx, st, round)
		if err != nil {
			return 0, err
		}
		reversed = domain.Round2(reversed + paid)
	}

	if err := postHouseProfit(ctx, st, -round.HouseProfit, round.ID, "outcome change reversal"); err != nil {
		return 0, err
	}

	round.DecidedSide = ""
	round.TotalPayout = 0
	round.HouseProfit = 0
	round.ClosedAt = nil
	return reversed, nil
}

// reverseSeatInTx debits the winning seat's payout back and cancels the
// payout entry it was credited through.
func (s *SettlementService) reverseSeatInTx(ctx context.Context, st domain.Store, round *domain.Round) (float64, error) {
	winnerIdx := 0
	if round.DecidedSide == domain.SideSeat2 {
		winnerIdx = 1
	}
	seat := round.Seats[winnerIdx]
	payout := seatPayout(round, round.DecidedSide)

	acc, err := st.Accounts().GetByIDForUpdate(ctx, seat.UserID)
	if err != nil {
		return 0, fmt.Errorf("settlement: load seat account %q: %w", seat.UserID, err)
	}
	if _, err := postMovement(ctx, st, &acc, -payout,
		domain.EntryKindRefund, domain.SnapshotKindReverse,
		round.ID, "", "outcome changed"); err != nil {
		return 0, err
	}

	entries, err := st.Ledger().ListByRound(ctx, round.ID)
	if err != nil {
		return 0, fmt.Errorf("settlement: list ledger for reversal: %w", err)
	}
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.Kind == domain.EntryKindPayout && e.UserID == seat.UserID &&
			e.WagerID == "" && e.Status == domain.EntryStatusCompleted {
			if err := st.Ledger().UpdateStatus(ctx, e.ID, domain.EntryStatusCancelled); err != nil {
				return 0, fmt.Errorf("settlement: cancel seat payout entry %q: %w", e.ID, err)
			}
			break
		}
	}
	return payout, nil
}

func (s *SettlementService) publish(ctx context.Context, summary domain.SettlementSummary) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, ChannelSettlements, payload); err != nil {
		s.logger.WarnContext(ctx, "settlement: publish failed",
			slog.String("error", err.Error()),
		)
	}
}
