package domain

import (
	"math"
	"time"
)

// EntryKind classifies a ledger entry.
type EntryKind string

const (
	EntryKindStake       EntryKind = "stake"
	EntryKindPayout      EntryKind = "payout"
	EntryKindRefund      EntryKind = "refund"
	EntryKindHouseProfit EntryKind = "house_profit"
)

// EntryStatus is the lifecycle of a ledger entry. Entries are append-only:
// a reversal marks the original cancelled and is itself recorded through the
// balance movement it causes, never by editing amounts.
type EntryStatus string

const (
	EntryStatusCompleted EntryStatus = "completed"
	EntryStatusCancelled EntryStatus = "cancelled"
)

// LedgerEntry is an immutable financial record backing a balance change.
// UserID is empty for house-wallet entries.
type LedgerEntry struct {
	ID          string
	UserID      string
	Kind        EntryKind
	Amount      float64
	Status      EntryStatus
	Description string
	RoundID     string
	WagerID     string
	CreatedAt   time.Time
}

// SnapshotKind classifies a balance snapshot.
type SnapshotKind string

const (
	SnapshotKindStake   SnapshotKind = "stake"
	SnapshotKindPayout  SnapshotKind = "payout"
	SnapshotKindRefund  SnapshotKind = "refund"
	SnapshotKindReverse SnapshotKind = "reverse"
)

// BalanceSnapshot records one balance-affecting event with its signed delta
// and the percentage change relative to the previous balance. One snapshot
// exists per event; the trail is append-only.
type BalanceSnapshot struct {
	ID              string
	UserID          string
	PreviousBalance float64
	NewBalance      float64
	Change          float64
	PercentChange   float64
	Kind            SnapshotKind
	RoundID         string
	WagerID         string
	Description     string
	CreatedAt       time.Time
}

// PercentOf returns the percentage that change represents of base, rounded
// to two decimals. A zero base yields zero, matching how the trail treats a
// first credit.
func PercentOf(change, base float64) float64 {
	if base <= 0 {
		return 0
	}
	return Round2(change / base * 100)
}

// Round2 rounds to two decimal places, the resolution every monetary field
// is stored at. Halves round away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
