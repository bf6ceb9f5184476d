package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBiasCyclePosition(t *testing.T) {
	c := DefaultBiasCycle
	require.Equal(t, 5, c.Len())

	assert.Equal(t, 1, c.Position(1))
	assert.Equal(t, 5, c.Position(5))
	assert.Equal(t, 1, c.Position(6))
	assert.Equal(t, 3, c.Position(13))
	assert.Equal(t, 1, c.Position(0), "invalid numbers clamp to the cycle start")
}

func TestBiasCycleAt(t *testing.T) {
	c := DefaultBiasCycle
	for pos := 1; pos <= 4; pos++ {
		assert.Equal(t, PreferMinority, c.At(pos), "position %d", pos)
	}
	assert.Equal(t, PreferMajority, c.At(5))
	assert.Equal(t, PreferMinority, c.At(0))
	assert.Equal(t, PreferMinority, c.At(6))
}

func TestHouseCutRate(t *testing.T) {
	s := DefaultHouseCutSchedule

	assert.Equal(t, 0.75, s.Rate(0))
	assert.Equal(t, 0.50, s.Rate(1))
	assert.Equal(t, 0.25, s.Rate(2))
	assert.Equal(t, 0.00, s.Rate(3))
	// Schedule wraps: the fifth consecutive win pays like the first.
	assert.Equal(t, 0.75, s.Rate(4))
	assert.Equal(t, 0.75, s.Rate(-1))
}

func TestHouseCutSplit(t *testing.T) {
	s := DefaultHouseCutSchedule

	// 100 staked at 2x: 100 profit, first win keeps 75 for the house.
	paid, cut := s.Split(200, 100, 0)
	assert.InDelta(t, 125, paid, 1e-9)
	assert.InDelta(t, 75, cut, 1e-9)

	// Fourth consecutive win releases the full profit.
	paid, cut = s.Split(200, 100, 3)
	assert.InDelta(t, 200, paid, 1e-9)
	assert.Zero(t, cut)

	// No profit, no cut.
	paid, cut = s.Split(100, 100, 0)
	assert.InDelta(t, 100, paid, 1e-9)
	assert.Zero(t, cut)
}

func TestZeroSchedule(t *testing.T) {
	paid, cut := ZeroHouseCutSchedule.Split(200, 100, 0)
	assert.InDelta(t, 200, paid, 1e-9)
	assert.Zero(t, cut)
}
