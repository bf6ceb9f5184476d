package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// AccountStore persists user wallets.
type AccountStore interface {
	Create(ctx context.Context, acc Account) error
	GetByID(ctx context.Context, id string) (Account, error)
	// GetByIDForUpdate reads the account with its row locked for the rest of
	// the transaction. Every balance mutation must read through it so
	// concurrent movements on the same account serialize.
	GetByIDForUpdate(ctx context.Context, id string) (Account, error)
	// Update writes balance and win streak. The caller is expected to hold a
	// transaction spanning the ledger writes that justify the change.
	Update(ctx context.Context, acc Account) error
	Count(ctx context.Context) (int64, error)
}

// HouseWalletStore persists the singleton operator wallet.
type HouseWalletStore interface {
	Get(ctx context.Context) (HouseWallet, error)
	// Apply adds balanceDelta to the balance and profitDelta to the lifetime
	// profit counter. Deltas may be negative during an outcome reversal.
	Apply(ctx context.Context, balanceDelta, profitDelta float64) error
}

// RoundStore persists rounds.
type RoundStore interface {
	Create(ctx context.Context, r Round) error
	Update(ctx context.Context, r Round) error
	GetByID(ctx context.Context, id string) (Round, error)
	// GetByIDForUpdate reads the round with its row locked for the rest of
	// the transaction. Placement and settlement both rewrite the row and must
	// read through it.
	GetByIDForUpdate(ctx context.Context, id string) (Round, error)
	// GetActive returns the newest non-terminal round of the variant.
	GetActive(ctx context.Context, variant RoundVariant) (Round, error)
	// GetOpenDuel returns the non-terminal head-to-head round the user is
	// seated in, or ErrNotFound.
	GetOpenDuel(ctx context.Context, userID string) (Round, error)
	LastNumber(ctx context.Context) (int64, error)
	ListCompletedBefore(ctx context.Context, before time.Time, limit int) ([]Round, error)
	DeleteBatch(ctx context.Context, ids []string) error
}

// WagerStore persists wagers.
type WagerStore interface {
	Create(ctx context.Context, w Wager) error
	Update(ctx context.Context, w Wager) error
	GetByID(ctx context.Context, id string) (Wager, error)
	// GetPending returns the user's open wager on the round, or ErrNotFound.
	GetPending(ctx context.Context, roundID, userID string) (Wager, error)
	ListByRound(ctx context.Context, roundID string) ([]Wager, error)
	ListByUser(ctx context.Context, userID string, opts ListOpts) ([]Wager, error)
}

// LedgerStore persists append-only financial entries.
type LedgerStore interface {
	Create(ctx context.Context, e LedgerEntry) error
	UpdateStatus(ctx context.Context, id string, status EntryStatus) error
	GetByID(ctx context.Context, id string) (LedgerEntry, error)
	ListByRound(ctx context.Context, roundID string) ([]LedgerEntry, error)
	ListByUser(ctx context.Context, userID string, opts ListOpts) ([]LedgerEntry, error)
	ListBefore(ctx context.Context, before time.Time, limit int) ([]LedgerEntry, error)
	DeleteBatch(ctx context.Context, ids []string) error
}

// SnapshotStore persists the balance change trail.
type SnapshotStore interface {
	Create(ctx context.Context, s BalanceSnapshot) error
	ListByUser(ctx context.Context, userID string, opts ListOpts) ([]BalanceSnapshot, error)
	ListBefore(ctx context.Context, before time.Time, limit int) ([]BalanceSnapshot, error)
	DeleteBatch(ctx context.Context, ids []string) error
}

// QueueStore persists matchmaking entries.
type QueueStore interface {
	Create(ctx context.Context, e QueueEntry) error
	Update(ctx context.Context, e QueueEntry) error
	GetByID(ctx context.Context, id string) (QueueEntry, error)
	// GetWaiting returns the user's waiting entry, or ErrNotFound.
	GetWaiting(ctx context.Context, userID string) (QueueEntry, error)
	// GetMatched returns the user's most recent matched entry, or ErrNotFound.
	GetMatched(ctx context.Context, userID string) (QueueEntry, error)
	ListWaiting(ctx context.Context) ([]QueueEntry, error)
}

// Store aggregates all persistence and provides the transactional unit of
// work. InTx runs fn against stores bound to one transaction; fn returning
// an error rolls everything back.
type Store interface {
	Accounts() AccountStore
	House() HouseWalletStore
	Rounds() RoundStore
	Wagers() WagerStore
	Ledger() LedgerStore
	Snapshots() SnapshotStore
	Queue() QueueStore
	InTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error
}
