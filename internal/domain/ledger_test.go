package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRound2(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{100, 100},
		{1.234, 1.23},
		{1.239, 1.24},
		{-1.239, -1.24},
		{0.125, 0.13},
		{-0.125, -0.13},
		{19.999, 20},
	}
	for _, c := range cases {
		assert.InDelta(t, c.want, Round2(c.in), 1e-9, "Round2(%v)", c.in)
	}
}

func TestPercentOf(t *testing.T) {
	assert.InDelta(t, -20, PercentOf(-100, 500), 1e-9)
	assert.InDelta(t, 25, PercentOf(100, 400), 1e-9)
	assert.Zero(t, PercentOf(50, 0), "first credit has no base to compare against")
}
