package policy

// HouseCutSchedule is the progressive cut the house takes from the profit
// portion of a winning pooled wager, keyed by the winner's consecutive win
// count before this round. The stake itself always returns in full.
type HouseCutSchedule []float64

// DefaultHouseCutSchedule starts heavy and releases the full profit on
// every fourth consecutive win.
var DefaultHouseCutSchedule = HouseCutSchedule{0.75, 0.50, 0.25, 0.00}

// ZeroHouseCutSchedule disables the cut entirely.
var ZeroHouseCutSchedule = HouseCutSchedule{0.00}

// Rate returns the cut fraction for a winner with consecutiveWins settled
// wins before the current one.
func (s HouseCutSchedule) Rate(consecutiveWins int) float64 {
	if len(s) == 0 {
		return 0
	}
	if consecutiveWins < 0 {
		consecutiveWins = 0
	}
	return s[consecutiveWins%len(s)]
}

// Split divides a gross payout into the amount paid to the winner and the
// amount kept by the house. stake is the reserved portion of payout that
// the cut never touches; only the profit above it is taxed.
func (s HouseCutSchedule) Split(payout, stake float64, consecutiveWins int) (paid, houseCut float64) {
	profit := payout - stake
	if profit <= 0 {
		return payout, 0
	}
	houseCut = profit * s.Rate(consecutiveWins)
	return payout - houseCut, houseCut
}
