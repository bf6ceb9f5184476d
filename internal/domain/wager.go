package domain

import "time"

// WagerStatus tracks the wager lifecycle. A wager leaves Pending exactly
// once, except during an explicit outcome change which resets it to Pending
// before re-settling.
type WagerStatus string

const (
	WagerStatusPending  WagerStatus = "pending"
	WagerStatusWon      WagerStatus = "won"
	WagerStatusLost     WagerStatus = "lost"
	WagerStatusRefunded WagerStatus = "refunded"
)

// Wager is a single user's stake on a side of a round. The stake is
// reserved (deducted from balance) at placement; Payout is written by
// settlement only.
type Wager struct {
	ID      string
	UserID  string
	RoundID string
	Side    Side
	Stake   float64
	// PotentialPayout is stake × multiplier at placement time, before any
	// house cut.
	PotentialPayout float64
	Payout          float64
	Status          WagerStatus
	BalanceBefore   float64
	BalanceAfter    float64
	// StakeEntryID and PayoutEntryID reference the ledger entries backing
	// the reservation and the settlement credit.
	StakeEntryID  string
	PayoutEntryID string
	PlacedAt      time.Time
	SettledAt     *time.Time
}

// WagerReceipt is returned to the caller after a successful placement.
type WagerReceipt struct {
	WagerID         string  `json:"wager_id"`
	RoundID         string  `json:"round_id"`
	Side            Side    `json:"side"`
	Stake           float64 `json:"stake"`
	PotentialPayout float64 `json:"potential_payout"`
	// Refunded is the stake returned from a replaced wager when the caller
	// re-chose within the same round; zero otherwise.
	Refunded float64 `json:"refunded,omitempty"`
	Balance  float64 `json:"balance"`
}

// SettlementSummary reports the financial result of settling (or
// re-settling) one round.
type SettlementSummary struct {
	RoundID      string  `json:"round_id"`
	DecidedSide  Side    `json:"decided_side"`
	WagersSettled int    `json:"wagers_settled"`
	WagersWon    int     `json:"wagers_won"`
	WagersLost   int     `json:"wagers_lost"`
	TotalPayout  float64 `json:"total_payout"`
	HouseProfit  float64 `json:"house_profit"`
	// Reversed is the sum debited back from winners during an outcome
	// change; zero on first settlement.
	Reversed float64 `json:"reversed,omitempty"`
}
