package domain

import "time"

// QueueStatus tracks a matchmaking entry's lifecycle.
type QueueStatus string

const (
	QueueStatusWaiting QueueStatus = "waiting"
	QueueStatusMatched QueueStatus = "matched"
	QueueStatusExpired QueueStatus = "expired"
)

// QueueEntry is a player waiting for a head-to-head opponent. The stake is
// reserved on join and returned on leave or expiry. Expiry is resolved
// lazily: any read that sees ExpiresAt in the past retires the entry first.
type QueueEntry struct {
	ID        string
	UserID    string
	Name      string
	Stake     float64
	Status    QueueStatus
	RoundID   string // set when matched
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the entry's deadline has elapsed at now. For a
// waiting entry that is the queue TTL; for a matched entry it is the duel
// action deadline set when the match was made.
func (e QueueEntry) Expired(now time.Time) bool {
	return e.Status != QueueStatusExpired && now.After(e.ExpiresAt)
}

// StakeCompatible reports whether two stakes fall within tolerance of each
// other. tolerance is a fraction: 0.20 accepts a stake within ±20% of the
// candidate's.
func StakeCompatible(a, b, tolerance float64) bool {
	lo, hi := a*(1-tolerance), a*(1+tolerance)
	return b >= lo && b <= hi
}
