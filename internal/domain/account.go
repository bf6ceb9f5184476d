package domain

import "time"

// Account is a user's wallet. Balance only moves through ledger-backed
// operations; WinStreak counts consecutive settled wins and resets to zero
// on any loss.
type Account struct {
	ID        string
	Name      string
	Balance   float64
	WinStreak int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HouseWallet is the singleton profit account of the operator. TotalProfit
// is the lifetime sum of house_profit ledger entries.
type HouseWallet struct {
	ID          string
	Balance     float64
	TotalProfit float64
	UpdatedAt   time.Time
}
