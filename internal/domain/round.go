package domain

import (
	"time"
)

// RoundVariant distinguishes the shared lobby game from a private duel.
type RoundVariant string

const (
	// VariantPooled is the lobby game: many spectators bet on one of two
	// sides of a timed round.
	VariantPooled RoundVariant = "pooled"
	// VariantHeadToHead is a private match between two queued players.
	VariantHeadToHead RoundVariant = "head_to_head"
)

// RoundPhase tracks where a round is in its lifecycle.
type RoundPhase string

const (
	// PhaseBetting accepts wagers (pooled rounds only).
	PhaseBetting RoundPhase = "betting"
	// PhaseDecision is the window in which the outcome is decided and
	// settled; wagers are closed.
	PhaseDecision RoundPhase = "decision"
	// PhaseAction is the head-to-head player-action window: both seats may
	// roll, and spectators may still bet on the match.
	PhaseAction RoundPhase = "action"
	// PhaseResult displays a settled pooled round before the next one starts.
	PhaseResult RoundPhase = "result"
	// PhaseCompleted is terminal.
	PhaseCompleted RoundPhase = "completed"
	// PhaseCancelled is terminal; stakes have been refunded.
	PhaseCancelled RoundPhase = "cancelled"
)

// Terminal reports whether the phase allows no further mutation except an
// explicit outcome change.
func (p RoundPhase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseCancelled
}

// Side names one of the two mutually exclusive outcomes of a round.
type Side string

const (
	// SideWin and SideLoss are the pooled lobby sides.
	SideWin  Side = "win"
	SideLoss Side = "loss"
	// SideSeat1 and SideSeat2 back the respective seat of a duel.
	SideSeat1 Side = "seat1"
	SideSeat2 Side = "seat2"
)

// DiceRange bounds the roll a head-to-head side is associated with. It is
// cosmetic for pooled rounds and unset there.
type DiceRange struct {
	Min int
	Max int
}

// SideConfig describes one bettable side of a round together with its
// running aggregates. Totals only ever grow while the round accepts wagers.
type SideConfig struct {
	Side        Side
	Label       string
	Range       *DiceRange
	TotalStaked float64
	WagerCount  int
}

// Seat is one of the two players of a head-to-head round. Roll is nil until
// the player has acted this attempt; a tie clears both rolls.
type Seat struct {
	UserID string
	Name   string
	Stake  float64
	Roll   *int
}

// Round is one timed instance of a wagering game. It is created by the round
// clock (pooled) or by matchmaking (head-to-head), never deleted, and only
// ever transitioned forward except through an explicit outcome change.
type Round struct {
	ID          string
	Number      int64
	Variant     RoundVariant
	Phase       RoundPhase
	Cycle       int // 1-based position in the bias cycle
	Sides       [2]SideConfig
	Seats       [2]Seat // head-to-head only
	Multiplier  float64
	DecidedSide Side // empty until decided
	DiceResult  *int // winning roll, head-to-head
	// Override carries an administrator decision to be honoured at
	// decision time. OverrideBy records who set it.
	Override   Side
	OverrideBy string

	TotalStaked float64
	TotalPayout float64
	HouseProfit float64

	StartedAt   time.Time
	ClosedAt    *time.Time
	CompletedAt *time.Time
}

// SideByName returns the side config matching s, or nil.
func (r *Round) SideByName(s Side) *SideConfig {
	for i := range r.Sides {
		if r.Sides[i].Side == s {
			return &r.Sides[i]
		}
	}
	return nil
}

// OtherSide returns the opposing side of s. It assumes s is one of the
// round's two sides.
func (r *Round) OtherSide(s Side) Side {
	if r.Sides[0].Side == s {
		return r.Sides[1].Side
	}
	return r.Sides[0].Side
}

// MajoritySide returns the side with the larger staked total. Equal totals
// resolve to the round's first side.
func (r *Round) MajoritySide() Side {
	if r.Sides[1].TotalStaked > r.Sides[0].TotalStaked {
		return r.Sides[1].Side
	}
	return r.Sides[0].Side
}

// SeatByUser returns the seat index for userID, or -1 when the user is not a
// player of this round.
func (r *Round) SeatByUser(userID string) int {
	for i := range r.Seats {
		if r.Seats[i].UserID != "" && r.Seats[i].UserID == userID {
			return i
		}
	}
	return -1
}

// Pot is the combined seat stake of a head-to-head round.
func (r *Round) Pot() float64 {
	return r.Seats[0].Stake + r.Seats[1].Stake
}

// AcceptsWagers reports whether the round currently takes new side bets.
// Pooled rounds accept during betting; duels accept while the players are
// still rolling.
func (r *Round) AcceptsWagers() bool {
	switch r.Variant {
	case VariantPooled:
		return r.Phase == PhaseBetting
	case VariantHeadToHead:
		return r.Phase == PhaseAction
	}
	return false
}

// RoundSnapshot is the read model served to clients each tick.
type RoundSnapshot struct {
	RoundID     string       `json:"round_id"`
	Number      int64        `json:"number"`
	Variant     RoundVariant `json:"variant"`
	Phase       RoundPhase   `json:"phase"`
	TimeLeft    int          `json:"time_left"`
	Cycle       int          `json:"cycle"`
	Multiplier  float64      `json:"multiplier"`
	DecidedSide Side         `json:"decided_side,omitempty"`
	Totals      map[Side]float64 `json:"totals"`
	WagerCount  int          `json:"wager_count"`
	Seats       []SeatView   `json:"seats,omitempty"`
}

// SeatView is the spectator-visible part of a seat.
type SeatView struct {
	Name   string  `json:"name"`
	Stake  float64 `json:"stake"`
	Rolled bool    `json:"rolled"`
	Roll   *int    `json:"roll,omitempty"`
}
