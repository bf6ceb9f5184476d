package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veyselaydin/gamehouse/internal/domain"
)

func TestActiveSnapshotPrefersCache(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	cache := &memCache{}
	svc := NewRoundService(store, cache, testLogger())

	require.NoError(t, cache.SetSnapshot(ctx, domain.RoundSnapshot{RoundID: "cached", TimeLeft: 7}))

	snap, err := svc.ActiveSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cached", snap.RoundID)
	assert.Equal(t, 7, snap.TimeLeft)
}

func TestActiveSnapshotFallsBackToStore(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := NewRoundService(store, &memCache{}, testLogger())

	_, err := svc.ActiveSnapshot(ctx)
	assert.ErrorIs(t, err, domain.ErrRoundNotFound)

	require.NoError(t, store.Rounds().Create(ctx, pooledRound(3, 3, domain.PhaseBetting)))
	snap, err := svc.ActiveSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "round-1", snap.RoundID)
	assert.Equal(t, int64(3), snap.Number)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.addAccount("alice", 500, 0)
	store.addAccount("bob", 500, 0)
	svc := NewRoundService(store, nil, testLogger())
	bets := NewBetService(store, nil, testLogger(), 1.0, 2.0)

	require.NoError(t, store.Rounds().Create(ctx, pooledRound(1, 1, domain.PhaseBetting)))
	_, err := bets.PlaceWager(ctx, "alice", "round-1", domain.SideWin, 100)
	require.NoError(t, err)
	_, err = bets.PlaceWager(ctx, "bob", "round-1", domain.SideLoss, 50)
	require.NoError(t, err)

	stats, err := svc.Stats(ctx, "round-1")
	require.NoError(t, err)
	assert.Equal(t, 150.0, stats.TotalStaked)
	assert.Equal(t, 2, stats.WagerCount)
	require.Len(t, stats.Sides, 2)
	// If the win side is decided the house pays 200 of the 150 staked.
	assert.InDelta(t, -50, stats.Sides[0].HouseResultIfWins, 1e-9)
	// If the loss side is decided the house keeps 150 minus the 100 payout.
	assert.InDelta(t, 50, stats.Sides[1].HouseResultIfWins, 1e-9)
}

func TestSubmitAdminDecision(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := NewRoundService(store, nil, testLogger())

	require.NoError(t, store.Rounds().Create(ctx, pooledRound(1, 1, domain.PhaseBetting)))
	require.NoError(t, svc.SubmitAdminDecision(ctx, "admin", "round-1", domain.SideLoss))

	round, err := store.Rounds().GetByID(ctx, "round-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SideLoss, round.Override)
	assert.Equal(t, "admin", round.OverrideBy)

	// The decider honours the recorded override.
	assert.Equal(t, domain.SideLoss, decider().Decide(round))
}

func TestSubmitAdminDecisionRejections(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := NewRoundService(store, nil, testLogger())

	err := svc.SubmitAdminDecision(ctx, "admin", "missing", domain.SideWin)
	assert.ErrorIs(t, err, domain.ErrRoundNotFound)

	require.NoError(t, store.Rounds().Create(ctx, pooledRound(1, 1, domain.PhaseBetting)))
	err = svc.SubmitAdminDecision(ctx, "admin", "round-1", domain.Side("draw"))
	assert.ErrorIs(t, err, domain.ErrInvalidSide)

	duel := domain.Round{
		ID:      "duel-1",
		Variant: domain.VariantHeadToHead,
		Phase:   domain.PhaseAction,
		Sides: [2]domain.SideConfig{
			{Side: domain.SideSeat1}, {Side: domain.SideSeat2},
		},
	}
	require.NoError(t, store.Rounds().Create(ctx, duel))
	err = svc.SubmitAdminDecision(ctx, "admin", "duel-1", domain.SideSeat1)
	assert.ErrorIs(t, err, domain.ErrOverrideForbidden)

	settled := pooledRound(2, 2, domain.PhaseCompleted)
	settled.ID = "round-2"
	settled.DecidedSide = domain.SideWin
	require.NoError(t, store.Rounds().Create(ctx, settled))
	err = svc.SubmitAdminDecision(ctx, "admin", "round-2", domain.SideLoss)
	assert.ErrorIs(t, err, domain.ErrAlreadySettled)
}
