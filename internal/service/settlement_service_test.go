package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veyselaydin/gamehouse/internal/domain"
	"github.com/veyselaydin/gamehouse/internal/policy"
)

type settleFixture struct {
	store   *memStore
	bets    *BetService
	settler *SettlementService
}

func newSettleFixture(t *testing.T, cuts policy.HouseCutSchedule) settleFixture {
	t.Helper()
	store := newMemStore()
	return settleFixture{
		store:   store,
		bets:    NewBetService(store, nil, testLogger(), 1.0, 2.0),
		settler: NewSettlementService(store, nil, testLogger(), cuts),
	}
}

func TestSettlePooledRound(t *testing.T) {
	ctx := context.Background()
	f := newSettleFixture(t, policy.DefaultHouseCutSchedule)
	f.store.addAccount("alice", 500, 0)
	f.store.addAccount("bob", 500, 0)
	require.NoError(t, f.store.Rounds().Create(ctx, pooledRound(1, 1, domain.PhaseBetting)))

	_, err := f.bets.PlaceWager(ctx, "alice", "round-1", domain.SideWin, 100)
	require.NoError(t, err)
	_, err = f.bets.PlaceWager(ctx, "bob", "round-1", domain.SideLoss, 100)
	require.NoError(t, err)

	summary, err := f.settler.Settle(ctx, "round-1", domain.SideWin)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.WagersSettled)
	assert.Equal(t, 1, summary.WagersWon)
	assert.Equal(t, 1, summary.WagersLost)
	// First consecutive win: 75% of the 100 profit stays with the house.
	assert.InDelta(t, 125, summary.TotalPayout, 1e-9)
	assert.InDelta(t, 75, summary.HouseProfit, 1e-9)

	alice, _ := f.store.Accounts().GetByID(ctx, "alice")
	assert.InDelta(t, 525, alice.Balance, 1e-9)
	assert.Equal(t, 1, alice.WinStreak)

	bob, _ := f.store.Accounts().GetByID(ctx, "bob")
	assert.InDelta(t, 400, bob.Balance, 1e-9)
	assert.Zero(t, bob.WinStreak)

	house, _ := f.store.House().Get(ctx)
	assert.InDelta(t, 75, house.Balance, 1e-9)
	assert.InDelta(t, 75, house.TotalProfit, 1e-9)

	round, _ := f.store.Rounds().GetByID(ctx, "round-1")
	assert.Equal(t, domain.SideWin, round.DecidedSide)
	assert.InDelta(t, 125, round.TotalPayout, 1e-9)
	assert.InDelta(t, 75, round.HouseProfit, 1e-9)
	require.NotNil(t, round.ClosedAt)
}

func TestSettleProgressiveCutReleases(t *testing.T) {
	ctx := context.Background()
	f := newSettleFixture(t, policy.DefaultHouseCutSchedule)
	// Third consecutive win before this round: schedule step 0.00.
	f.store.addAccount("alice", 500, 3)
	require.NoError(t, f.store.Rounds().Create(ctx, pooledRound(1, 1, domain.PhaseBetting)))

	_, err := f.bets.PlaceWager(ctx, "alice", "round-1", domain.SideWin, 100)
	require.NoError(t, err)

	summary, err := f.settler.Settle(ctx, "round-1", domain.SideWin)
	require.NoError(t, err)
	assert.InDelta(t, 200, summary.TotalPayout, 1e-9)

	alice, _ := f.store.Accounts().GetByID(ctx, "alice")
	assert.InDelta(t, 600, alice.Balance, 1e-9)
	assert.Equal(t, 4, alice.WinStreak)
}

func TestSettleTwiceFails(t *testing.T) {
	ctx := context.Background()
	f := newSettleFixture(t, policy.ZeroHouseCutSchedule)
	f.store.addAccount("alice", 500, 0)
	require.NoError(t, f.store.Rounds().Create(ctx, pooledRound(1, 1, domain.PhaseBetting)))
	_, err := f.bets.PlaceWager(ctx, "alice", "round-1", domain.SideWin, 100)
	require.NoError(t, err)

	_, err = f.settler.Settle(ctx, "round-1", domain.SideWin)
	require.NoError(t, err)

	_, err = f.settler.Settle(ctx, "round-1", domain.SideWin)
	assert.ErrorIs(t, err, domain.ErrAlreadySettled)
}

// First-cycle round with a crowded favourite: the minority side is decided
// and the lone contrarian doubles up.
func TestMinorityDecisionEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newSettleFixture(t, policy.ZeroHouseCutSchedule)
	for _, u := range []string{"u1", "u2", "u3", "dave"} {
		f.store.addAccount(u, 500, 0)
	}
	require.NoError(t, f.store.Rounds().Create(ctx, pooledRound(1, 1, domain.PhaseBetting)))

	for _, u := range []string{"u1", "u2", "u3"} {
		_, err := f.bets.PlaceWager(ctx, u, "round-1", domain.SideWin, 100)
		require.NoError(t, err)
	}
	_, err := f.bets.PlaceWager(ctx, "dave", "round-1", domain.SideLoss, 50)
	require.NoError(t, err)

	round, err := f.store.Rounds().GetByID(ctx, "round-1")
	require.NoError(t, err)
	decided := decider().Decide(round)
	assert.Equal(t, domain.SideLoss, decided)

	summary, err := f.settler.Settle(ctx, "round-1", decided)
	require.NoError(t, err)
	assert.InDelta(t, 100, summary.TotalPayout, 1e-9)
	assert.InDelta(t, 250, summary.HouseProfit, 1e-9)

	dave, _ := f.store.Accounts().GetByID(ctx, "dave")
	assert.InDelta(t, 550, dave.Balance, 1e-9)
}

func TestSettleSkipsMissingAccount(t *testing.T) {
	ctx := context.Background()
	f := newSettleFixture(t, policy.ZeroHouseCutSchedule)
	f.store.addAccount("alice", 500, 0)
	require.NoError(t, f.store.Rounds().Create(ctx, pooledRound(1, 1, domain.PhaseBetting)))
	_, err := f.bets.PlaceWager(ctx, "alice", "round-1", domain.SideWin, 100)
	require.NoError(t, err)

	// Orphan wager whose account no longer exists.
	ghost := domain.Wager{
		ID: "ghost", UserID: "gone", RoundID: "round-1",
		Side: domain.SideWin, Stake: 40, PotentialPayout: 80,
		Status: domain.WagerStatusPending, PlacedAt: time.Now().UTC(),
	}
	require.NoError(t, f.store.Wagers().Create(ctx, ghost))

	summary, err := f.settler.Settle(ctx, "round-1", domain.SideWin)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.WagersSettled)

	w, _ := f.store.Wagers().GetByID(ctx, "ghost")
	assert.Equal(t, domain.WagerStatusPending, w.Status)
}

func TestChangeOutcome(t *testing.T) {
	ctx := context.Background()
	f := newSettleFixture(t, policy.ZeroHouseCutSchedule)
	f.store.addAccount("alice", 500, 0)
	f.store.addAccount("bob", 500, 0)
	require.NoError(t, f.store.Rounds().Create(ctx, pooledRound(1, 1, domain.PhaseBetting)))

	aliceBet, err := f.bets.PlaceWager(ctx, "alice", "round-1", domain.SideWin, 100)
	require.NoError(t, err)
	_, err = f.bets.PlaceWager(ctx, "bob", "round-1", domain.SideLoss, 100)
	require.NoError(t, err)

	_, err = f.settler.Settle(ctx, "round-1", domain.SideWin)
	require.NoError(t, err)

	summary, err := f.settler.ChangeOutcome(ctx, "round-1", domain.SideLoss, "admin")
	require.NoError(t, err)
	assert.Equal(t, domain.SideLoss, summary.DecidedSide)
	assert.InDelta(t, 200, summary.Reversed, 1e-9)
	assert.Equal(t, 2, summary.WagersSettled)

	alice, _ := f.store.Accounts().GetByID(ctx, "alice")
	assert.InDelta(t, 400, alice.Balance, 1e-9)
	assert.Zero(t, alice.WinStreak)

	bob, _ := f.store.Accounts().GetByID(ctx, "bob")
	assert.InDelta(t, 600, bob.Balance, 1e-9)
	assert.Equal(t, 1, bob.WinStreak)

	// The original payout entry is cancelled, not rewritten.
	oldWager, err := f.store.Wagers().GetByID(ctx, aliceBet.WagerID)
	require.NoError(t, err)
	assert.Equal(t, domain.WagerStatusLost, oldWager.Status)
	entries, err := f.store.Ledger().ListByUser(ctx, "alice", domain.ListOpts{})
	require.NoError(t, err)
	var cancelled int
	for _, e := range entries {
		if e.Status == domain.EntryStatusCancelled {
			cancelled++
		}
	}
	assert.Equal(t, 1, cancelled)

	round, _ := f.store.Rounds().GetByID(ctx, "round-1")
	assert.Equal(t, domain.SideLoss, round.DecidedSide)
}

func TestChangeOutcomeIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newSettleFixture(t, policy.ZeroHouseCutSchedule)
	f.store.addAccount("alice", 500, 0)
	require.NoError(t, f.store.Rounds().Create(ctx, pooledRound(1, 1, domain.PhaseBetting)))
	_, err := f.bets.PlaceWager(ctx, "alice", "round-1", domain.SideWin, 100)
	require.NoError(t, err)
	_, err = f.settler.Settle(ctx, "round-1", domain.SideWin)
	require.NoError(t, err)

	before, _ := f.store.Accounts().GetByID(ctx, "alice")

	summary, err := f.settler.ChangeOutcome(ctx, "round-1", domain.SideWin, "admin")
	require.NoError(t, err)
	assert.Zero(t, summary.Reversed)
	assert.Zero(t, summary.WagersSettled)

	after, _ := f.store.Accounts().GetByID(ctx, "alice")
	assert.Equal(t, before.Balance, after.Balance)
	assert.Equal(t, before.WinStreak, after.WinStreak)
}

func TestChangeOutcomeRequiresSettledRound(t *testing.T) {
	ctx := context.Background()
	f := newSettleFixture(t, policy.ZeroHouseCutSchedule)
	require.NoError(t, f.store.Rounds().Create(ctx, pooledRound(1, 1, domain.PhaseBetting)))

	_, err := f.settler.ChangeOutcome(ctx, "round-1", domain.SideLoss, "admin")
	assert.ErrorIs(t, err, domain.ErrInvalidPhase)
}

func TestSettleDuelPayoutCappedAtPot(t *testing.T) {
	ctx := context.Background()
	f := newSettleFixture(t, policy.ZeroHouseCutSchedule)
	f.store.addAccount("p1", 400, 0) // stakes already reserved by the queue
	f.store.addAccount("p2", 420, 0)

	duel := domain.Round{
		ID:      "duel-1",
		Number:  3,
		Variant: domain.VariantHeadToHead,
		Phase:   domain.PhaseAction,
		Sides: [2]domain.SideConfig{
			{Side: domain.SideSeat1, Label: "p1"},
			{Side: domain.SideSeat2, Label: "p2"},
		},
		Seats: [2]domain.Seat{
			{UserID: "p1", Name: "p1", Stake: 100},
			{UserID: "p2", Name: "p2", Stake: 80},
		},
		Multiplier: 2.0,
		StartedAt:  time.Now().UTC(),
	}
	require.NoError(t, f.store.Rounds().Create(ctx, duel))

	summary, err := f.settler.Settle(ctx, "duel-1", domain.SideSeat1)
	require.NoError(t, err)
	// 2x the winner's 100 stake would exceed the 180 pot.
	assert.InDelta(t, 180, summary.TotalPayout, 1e-9)
	assert.Zero(t, summary.HouseProfit)

	p1, _ := f.store.Accounts().GetByID(ctx, "p1")
	assert.InDelta(t, 580, p1.Balance, 1e-9)

	round, _ := f.store.Rounds().GetByID(ctx, "duel-1")
	assert.Equal(t, domain.PhaseCompleted, round.Phase)
	require.NotNil(t, round.CompletedAt)
}

func TestSettleDuelHouseKeepsRemainder(t *testing.T) {
	ctx := context.Background()
	f := newSettleFixture(t, policy.ZeroHouseCutSchedule)
	f.store.addAccount("p1", 400, 0)
	f.store.addAccount("p2", 420, 0)

	duel := domain.Round{
		ID:      "duel-1",
		Number:  3,
		Variant: domain.VariantHeadToHead,
		Phase:   domain.PhaseAction,
		Sides: [2]domain.SideConfig{
			{Side: domain.SideSeat1, Label: "p1"},
			{Side: domain.SideSeat2, Label: "p2"},
		},
		Seats: [2]domain.Seat{
			{UserID: "p1", Name: "p1", Stake: 100},
			{UserID: "p2", Name: "p2", Stake: 80},
		},
		Multiplier: 2.0,
		StartedAt:  time.Now().UTC(),
	}
	require.NoError(t, f.store.Rounds().Create(ctx, duel))

	summary, err := f.settler.Settle(ctx, "duel-1", domain.SideSeat2)
	require.NoError(t, err)
	// Winner takes 2x80; the 20 left in the pot goes to the house.
	assert.InDelta(t, 160, summary.TotalPayout, 1e-9)
	assert.InDelta(t, 20, summary.HouseProfit, 1e-9)

	house, _ := f.store.House().Get(ctx)
	assert.InDelta(t, 20, house.Balance, 1e-9)
}

func TestChangeOutcomeForbiddenForOpenDuel(t *testing.T) {
	ctx := context.Background()
	f := newSettleFixture(t, policy.ZeroHouseCutSchedule)
	duel := domain.Round{
		ID:      "duel-1",
		Variant: domain.VariantHeadToHead,
		Phase:   domain.PhaseAction,
		Sides: [2]domain.SideConfig{
			{Side: domain.SideSeat1}, {Side: domain.SideSeat2},
		},
	}
	require.NoError(t, f.store.Rounds().Create(ctx, duel))

	_, err := f.settler.ChangeOutcome(ctx, "duel-1", domain.SideSeat2, "admin")
	assert.ErrorIs(t, err, domain.ErrOverrideForbidden)
}

func TestChangeOutcomeOnSettledDuel(t *testing.T) {
	ctx := context.Background()
	f := newSettleFixture(t, policy.ZeroHouseCutSchedule)
	f.store.addAccount("p1", 400, 0) // stakes already reserved by the queue
	f.store.addAccount("p2", 400, 0)

	duel := domain.Round{
		ID:      "duel-1",
		Number:  3,
		Variant: domain.VariantHeadToHead,
		Phase:   domain.PhaseAction,
		Sides: [2]domain.SideConfig{
			{Side: domain.SideSeat1, Label: "p1"},
			{Side: domain.SideSeat2, Label: "p2"},
		},
		Seats: [2]domain.Seat{
			{UserID: "p1", Name: "p1", Stake: 100},
			{UserID: "p2", Name: "p2", Stake: 100},
		},
		Multiplier: 2.0,
		StartedAt:  time.Now().UTC(),
	}
	require.NoError(t, f.store.Rounds().Create(ctx, duel))

	_, err := f.settler.Settle(ctx, "duel-1", domain.SideSeat1)
	require.NoError(t, err)
	p1, _ := f.store.Accounts().GetByID(ctx, "p1")
	require.InDelta(t, 600, p1.Balance, 1e-9)

	summary, err := f.settler.ChangeOutcome(ctx, "duel-1", domain.SideSeat2, "admin")
	require.NoError(t, err)
	assert.Equal(t, domain.SideSeat2, summary.DecidedSide)
	assert.InDelta(t, 200, summary.Reversed, 1e-9)

	// The pot moves from the first winner to the new one in full.
	p1, _ = f.store.Accounts().GetByID(ctx, "p1")
	p2, _ := f.store.Accounts().GetByID(ctx, "p2")
	assert.InDelta(t, 400, p1.Balance, 1e-9)
	assert.InDelta(t, 600, p2.Balance, 1e-9)

	house, _ := f.store.House().Get(ctx)
	assert.Zero(t, house.Balance)

	round, _ := f.store.Rounds().GetByID(ctx, "duel-1")
	assert.Equal(t, domain.SideSeat2, round.DecidedSide)
	assert.Equal(t, domain.PhaseCompleted, round.Phase)

	// The reversed seat payout entry is cancelled, not rewritten.
	entries, err := f.store.Ledger().ListByUser(ctx, "p1", domain.ListOpts{})
	require.NoError(t, err)
	var cancelled int
	for _, e := range entries {
		if e.Status == domain.EntryStatusCancelled {
			cancelled++
		}
	}
	assert.Equal(t, 1, cancelled)
}
