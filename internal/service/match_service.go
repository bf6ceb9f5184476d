package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veyselaydin/gamehouse/internal/domain"
)

// ChannelMatches carries matchmaking and duel events on the signal bus.
const ChannelMatches = "gamehouse:matches"

// JoinResult reports the state of a queue join: either a waiting entry or
// an immediately created duel.
type JoinResult struct {
	Entry   domain.QueueEntry `json:"entry"`
	Matched bool              `json:"matched"`
	RoundID string            `json:"round_id,omitempty"`
}

// RollResult reports one dice roll and, when both players have rolled, how
// the attempt resolved.
type RollResult struct {
	RoundID      string                    `json:"round_id"`
	Roll         int                       `json:"roll"`
	OpponentRoll *int                      `json:"opponent_roll,omitempty"`
	Tie          bool                      `json:"tie"`
	Decided      domain.Side               `json:"decided,omitempty"`
	Summary      *domain.SettlementSummary `json:"summary,omitempty"`
}

// MatchService runs the head-to-head queue and the duels it produces.
// Queue expiry is lazy: every operation retires stale entries it touches
// before doing its own work.
type MatchService struct {
	store     domain.Store
	settler   *SettlementService
	bus       domain.SignalBus
	logger    *slog.Logger
	minStake  float64
	tolerance float64
	ttl       time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewMatchService creates a MatchService with all required dependencies.
func NewMatchService(
	store domain.Store,
	settler *SettlementService,
	bus domain.SignalBus,
	logger *slog.Logger,
	minStake, tolerance float64,
	ttl time.Duration,
	rng *rand.Rand,
) *MatchService {
	return &MatchService{
		store:     store,
		settler:   settler,
		bus:       bus,
		logger:    logger,
		minStake:  minStake,
		tolerance: tolerance,
		ttl:       ttl,
		rng:       rng,
	}
}

// Join reserves the stake and enters the queue, matching immediately with
// the first waiting player whose stake falls within tolerance. Joining
// again while already waiting returns the existing entry unchanged.
func (s *MatchService) Join(ctx context.Context, userID, name string, stake float64) (JoinResult, error) {
	if stake <= 0 || stake < s.minStake {
		return JoinResult{}, fmt.Errorf("match: stake %.2f below minimum %.2f: %w", stake, s.minStake, domain.ErrInvalidStake)
	}

	var result JoinResult
	err := s.store.InTx(ctx, func(ctx context.Context, st domain.Store) error {
		now := time.Now().UTC()
		waiting, err := s.sweepExpired(ctx, st, now)
		if err != nil {
			return err
		}

		for _, e := range waiting {
			if e.UserID == userID {
				result = JoinResult{Entry: e}
				return nil
			}
		}

		acc, err := st.Accounts().GetByIDForUpdate(ctx, userID)
		if err != nil {
			return fmt.Errorf("match: load account %q: %w", userID, err)
		}
		if acc.Balance < stake {
			return fmt.Errorf("match: balance %.2f, stake %.2f: %w", acc.Balance, stake, domain.ErrInsufficientBalance)
		}

		entry := domain.QueueEntry{
			ID:        uuid.NewString(),
			UserID:    userID,
			Name:      name,
			Stake:     stake,
			Status:    domain.QueueStatusWaiting,
			CreatedAt: now,
			ExpiresAt: now.Add(s.ttl),
		}
		if _, err := postMovement(ctx, st, &acc, -stake,
			domain.EntryKindStake, domain.SnapshotKindStake,
			"", entry.ID, "queue join"); err != nil {
			return err
		}
		if err := st.Queue().Create(ctx, entry); err != nil {
			return fmt.Errorf("match: create queue entry: %w", err)
		}

		for _, opp := range waiting {
			if opp.UserID == userID || !domain.StakeCompatible(opp.Stake, stake, s.tolerance) {
				continue
			}
			round, err := s.createDuel(ctx, st, opp, entry)
			if err != nil {
				return err
			}
			result = JoinResult{Entry: entry, Matched: true, RoundID: round.ID}
			result.Entry.Status = domain.QueueStatusMatched
			result.Entry.RoundID = round.ID
			return nil
		}

		result = JoinResult{Entry: entry}
		return nil
	})
	if err != nil {
		return JoinResult{}, err
	}

	if result.Matched {
		s.publish(ctx, map[string]any{"event": "matched", "round_id": result.RoundID})
		s.logger.InfoContext(ctx, "match: duel created",
			slog.String("round_id", result.RoundID),
			slog.String("user_id", userID),
		)
	}
	return result, nil
}

// Leave retires the caller's waiting entry and refunds the reserved stake.
func (s *MatchService) Leave(ctx context.Context, userID string) error {
	return s.store.InTx(ctx, func(ctx context.Context, st domain.Store) error {
		entry, err := st.Queue().GetWaiting(ctx, userID)
		if err != nil {
			return fmt.Errorf("match: waiting entry for %q: %w", userID, err)
		}
		return s.retire(ctx, st, entry, "queue leave")
	})
}

// Status resolves the caller's queue state. A matched entry whose duel is
// still open is reported first, so the player who was waiting when the
// opponent's join made the match learns the round from their next poll. An
// elapsed deadline, waiting or matched, retires the entry, returns the
// stakes and surfaces as ErrQueueEntryExpired.
func (s *MatchService) Status(ctx context.Context, userID string) (domain.QueueEntry, error) {
	var entry domain.QueueEntry
	err := s.store.InTx(ctx, func(ctx context.Context, st domain.Store) error {
		now := time.Now().UTC()

		matched, err := st.Queue().GetMatched(ctx, userID)
		switch {
		case err == nil:
			round, rerr := st.Rounds().GetByIDForUpdate(ctx, matched.RoundID)
			if rerr != nil && !errors.Is(rerr, domain.ErrNotFound) {
				return fmt.Errorf("match: load duel %q: %w", matched.RoundID, rerr)
			}
			if rerr == nil && !round.Phase.Terminal() {
				if matched.Expired(now) {
					if err := s.cancelDuel(ctx, st, round); err != nil {
						return err
					}
					entry = matched
					entry.Status = domain.QueueStatusExpired
					return fmt.Errorf("match: duel %q abandoned: %w", round.ID, domain.ErrQueueEntryExpired)
				}
				entry = matched
				return nil
			}
			// Duel finished or gone; fall through to the waiting lookup.
		case !errors.Is(err, domain.ErrNotFound):
			return fmt.Errorf("match: matched entry for %q: %w", userID, err)
		}

		entry, err = st.Queue().GetWaiting(ctx, userID)
		if err != nil {
			return fmt.Errorf("match: waiting entry for %q: %w", userID, err)
		}
		if entry.Expired(now) {
			if err := s.retire(ctx, st, entry, "queue expired"); err != nil {
				return err
			}
			entry.Status = domain.QueueStatusExpired
			return fmt.Errorf("match: entry %q: %w", entry.ID, domain.ErrQueueEntryExpired)
		}
		return nil
	})
	return entry, err
}

// Roll rolls the caller's die in their open duel. When both seats have
// rolled, equal rolls clear the attempt and the duel stays open; otherwise
// the higher roll wins and the duel settles in the same transaction, so a
// decided duel is never left unpaid.
func (s *MatchService) Roll(ctx context.Context, userID string) (RollResult, error) {
	var (
		result  RollResult
		summary domain.SettlementSummary
	)
	err := s.store.InTx(ctx, func(ctx context.Context, st domain.Store) error {
		open, err := st.Rounds().GetOpenDuel(ctx, userID)
		if err != nil {
			return fmt.Errorf("match: open duel for %q: %w", userID, err)
		}
		round, err := st.Rounds().GetByIDForUpdate(ctx, open.ID)
		if err != nil {
			return fmt.Errorf("match: lock duel %q: %w", open.ID, err)
		}
		if round.Phase != domain.PhaseAction {
			return fmt.Errorf("match: duel %q in phase %s: %w", round.ID, round.Phase, domain.ErrInvalidPhase)
		}
		idx := round.SeatByUser(userID)
		if idx < 0 {
			return fmt.Errorf("match: user %q not seated in %q: %w", userID, round.ID, domain.ErrNotFound)
		}

		now := time.Now().UTC()
		if entry, err := st.Queue().GetMatched(ctx, userID); err == nil {
			if entry.RoundID == round.ID && entry.Expired(now) {
				if err := s.cancelDuel(ctx, st, round); err != nil {
					return err
				}
				return fmt.Errorf("match: duel %q abandoned: %w", round.ID, domain.ErrQueueEntryExpired)
			}
		} else if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("match: matched entry for %q: %w", userID, err)
		}

		if round.Seats[idx].Roll != nil {
			return fmt.Errorf("match: seat already rolled in %q: %w", round.ID, domain.ErrInvalidPhase)
		}

		roll := s.rollDie()
		round.Seats[idx].Roll = &roll
		result = RollResult{RoundID: round.ID, Roll: roll}

		var decided domain.Side
		other := round.Seats[1-idx].Roll
		if other != nil {
			result.OpponentRoll = other
			switch {
			case *other == roll:
				// Tie clears both rolls; the attempt restarts.
				round.Seats[0].Roll = nil
				round.Seats[1].Roll = nil
				result.Tie = true
			case roll > *other:
				decided = sideForSeat(idx)
				round.DiceResult = &roll
			default:
				decided = sideForSeat(1 - idx)
				round.DiceResult = other
			}
		}
		if err := st.Rounds().Update(ctx, round); err != nil {
			return fmt.Errorf("match: update duel %q: %w", round.ID, err)
		}

		if decided != "" {
			summary, err = s.settler.settleInTx(ctx, st, &round, decided)
			if err != nil {
				return fmt.Errorf("match: settle duel %q: %w", round.ID, err)
			}
			result.Decided = decided
			result.Summary = &summary
		}
		return nil
	})
	if err != nil {
		return RollResult{}, err
	}

	if result.Decided != "" {
		s.settler.publish(ctx, summary)
		s.publish(ctx, map[string]any{"event": "duel_settled", "round_id": result.RoundID, "side": result.Decided})
	}
	return result, nil
}

// sweepExpired retires every stale waiting entry and returns the live ones.
func (s *MatchService) sweepExpired(ctx context.Context, st domain.Store, now time.Time) ([]domain.QueueEntry, error) {
	waiting, err := st.Queue().ListWaiting(ctx)
	if err != nil {
		return nil, fmt.Errorf("match: list waiting: %w", err)
	}
	live := waiting[:0]
	for _, e := range waiting {
		if e.Expired(now) {
			if err := s.retire(ctx, st, e, "queue expired"); err != nil {
				return nil, err
			}
			continue
		}
		live = append(live, e)
	}
	return live, nil
}

// retire refunds an entry's reserved stake and marks it expired.
func (s *MatchService) retire(ctx context.Context, st domain.Store, entry domain.QueueEntry, reason string) error {
	acc, err := st.Accounts().GetByIDForUpdate(ctx, entry.UserID)
	if err != nil {
		return fmt.Errorf("match: load account %q: %w", entry.UserID, err)
	}
	if _, err := postMovement(ctx, st, &acc, entry.Stake,
		domain.EntryKindRefund, domain.SnapshotKindRefund,
		"", entry.ID, reason); err != nil {
		return err
	}
	entry.Status = domain.QueueStatusExpired
	if err := st.Queue().Update(ctx, entry); err != nil {
		return fmt.Errorf("match: retire entry %q: %w", entry.ID, err)
	}
	return nil
}

// createDuel seats two matched players in random order and opens the round
// directly in its action phase.
func (s *MatchService) createDuel(ctx context.Context, st domain.Store, a, b domain.QueueEntry) (domain.Round, error) {
	s.mu.Lock()
	swap := s.rng.Intn(2) == 1
	s.mu.Unlock()
	if swap {
		a, b = b, a
	}

	last, err := st.Rounds().LastNumber(ctx)
	if err != nil {
		return domain.Round{}, fmt.Errorf("match: last round number: %w", err)
	}

	round := domain.Round{
		ID:      uuid.NewString(),
		Number:  last + 1,
		Variant: domain.VariantHeadToHead,
		Phase:   domain.PhaseAction,
		Sides: [2]domain.SideConfig{
			{Side: domain.SideSeat1, Label: a.Name},
			{Side: domain.SideSeat2, Label: b.Name},
		},
		Seats: [2]domain.Seat{
			{UserID: a.UserID, Name: a.Name, Stake: a.Stake},
			{UserID: b.UserID, Name: b.Name, Stake: b.Stake},
		},
		Multiplier: 2.0,
		StartedAt:  time.Now().UTC(),
	}
	if err := st.Rounds().Create(ctx, round); err != nil {
		return domain.Round{}, fmt.Errorf("match: create duel: %w", err)
	}

	// The matched entries carry the action deadline: a duel nobody plays is
	// cancelled and refunded once the deadline passes.
	deadline := round.StartedAt.Add(s.ttl)
	for _, e := range []domain.QueueEntry{a, b} {
		e.Status = domain.QueueStatusMatched
		e.RoundID = round.ID
		e.ExpiresAt = deadline
		if err := st.Queue().Update(ctx, e); err != nil {
			return domain.Round{}, fmt.Errorf("match: mark entry matched %q: %w", e.ID, err)
		}
	}
	return round, nil
}

// cancelDuel refunds both seats and any pending spectator wagers, retires
// the matched queue entries and closes the round as cancelled.
func (s *MatchService) cancelDuel(ctx context.Context, st domain.Store, round domain.Round) error {
	now := time.Now().UTC()

	for _, seat := range round.Seats {
		acc, err := st.Accounts().GetByIDForUpdate(ctx, seat.UserID)
		if err != nil {
			return fmt.Errorf("match: load seat account %q: %w", seat.UserID, err)
		}
		if _, err := postMovement(ctx, st, &acc, seat.Stake,
			domain.EntryKindRefund, domain.SnapshotKindRefund,
			round.ID, "", "duel abandoned"); err != nil {
			return err
		}
		entry, err := st.Queue().GetMatched(ctx, seat.UserID)
		switch {
		case err == nil && entry.RoundID == round.ID:
			entry.Status = domain.QueueStatusExpired
			if err := st.Queue().Update(ctx, entry); err != nil {
				return fmt.Errorf("match: retire entry %q: %w", entry.ID, err)
			}
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			return fmt.Errorf("match: matched entry for %q: %w", seat.UserID, err)
		}
	}

	wagers, err := st.Wagers().ListByRound(ctx, round.ID)
	if err != nil {
		return fmt.Errorf("match: list duel wagers: %w", err)
	}
	for _, w := range wagers {
		if w.Status != domain.WagerStatusPending {
			continue
		}
		acc, err := st.Accounts().GetByIDForUpdate(ctx, w.UserID)
		if err != nil {
			return fmt.Errorf("match: load account %q: %w", w.UserID, err)
		}
		if _, err := postMovement(ctx, st, &acc, w.Stake,
			domain.EntryKindRefund, domain.SnapshotKindRefund,
			round.ID, w.ID, "duel abandoned"); err != nil {
			return err
		}
		w.Status = domain.WagerStatusRefunded
		w.SettledAt = &now
		if err := st.Wagers().Update(ctx, w); err != nil {
			return fmt.Errorf("match: refund wager %q: %w", w.ID, err)
		}
	}

	round.Phase = domain.PhaseCancelled
	round.CompletedAt = &now
	if err := st.Rounds().Update(ctx, round); err != nil {
		return fmt.Errorf("match: cancel duel %q: %w", round.ID, err)
	}

	s.logger.InfoContext(ctx, "match: duel abandoned",
		slog.String("round_id", round.ID),
	)
	return nil
}

func (s *MatchService) rollDie() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(6) + 1
}

func sideForSeat(idx int) domain.Side {
	if idx == 1 {
		return domain.SideSeat2
	}
	return domain.SideSeat1
}

func (s *MatchService) publish(ctx context.Context, ev map[string]any) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, ChannelMatches, payload); err != nil {
		s.logger.WarnContext(ctx, "match: publish failed",
			slog.String("error", err.Error()),
		)
	}
}
