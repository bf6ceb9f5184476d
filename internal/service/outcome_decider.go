package service

import (
	"log/slog"

	"github.com/veyselaydin/gamehouse/internal/domain"
	"github.com/veyselaydin/gamehouse/internal/policy"
)

// OutcomeDecider picks the winning side of a pooled round. An administrator
// override always wins; otherwise the bias cycle decides between the
// crowd's majority and minority side.
type OutcomeDecider struct {
	cycle  policy.BiasCycle
	logger *slog.Logger
}

// NewOutcomeDecider creates an OutcomeDecider over the given bias cycle.
func NewOutcomeDecider(cycle policy.BiasCycle, logger *slog.Logger) *OutcomeDecider {
	return &OutcomeDecider{cycle: cycle, logger: logger}
}

// Decide returns the winning side for the round. Equal staked totals
// resolve to the round's first side before any bias applies.
func (d *OutcomeDecider) Decide(r domain.Round) domain.Side {
	if r.Override != "" {
		d.logger.Info("decider: override applied",
			slog.String("round_id", r.ID),
			slog.String("side", string(r.Override)),
			slog.String("set_by", r.OverrideBy),
		)
		return r.Override
	}

	if r.Sides[0].TotalStaked == r.Sides[1].TotalStaked {
		return r.Sides[0].Side
	}

	majority := r.MajoritySide()
	if d.cycle.At(r.Cycle) == policy.PreferMajority {
		return majority
	}
	return r.OtherSide(majority)
}
