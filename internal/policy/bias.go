// Package policy holds the named decision tables of the engine: the outcome
// bias cycle and the progressive house-cut schedule. The tables are data,
// not behavior; services apply them.
package policy

// Preference is what the bias table asks of a round's outcome relative to
// the staked totals.
type Preference int

const (
	// PreferMinority picks the side with the smaller staked total.
	PreferMinority Preference = iota
	// PreferMajority picks the side with the larger staked total.
	PreferMajority
)

// BiasCycle is the repeating per-round outcome preference. Position 1 is
// the first round after a cycle wrap; only the final position favors the
// crowd.
type BiasCycle []Preference

// DefaultBiasCycle is the production 5-round cycle.
var DefaultBiasCycle = BiasCycle{
	PreferMinority, // 1
	PreferMinority, // 2
	PreferMinority, // 3
	PreferMinority, // 4
	PreferMajority, // 5
}

// Len returns the cycle length.
func (c BiasCycle) Len() int { return len(c) }

// At returns the preference for the 1-based cycle position. Positions
// outside the table clamp to minority.
func (c BiasCycle) At(pos int) Preference {
	if pos < 1 || pos > len(c) {
		return PreferMinority
	}
	return c[pos-1]
}

// Position maps a 1-based round number onto its 1-based cycle position.
func (c BiasCycle) Position(roundNumber int64) int {
	if len(c) == 0 || roundNumber < 1 {
		return 1
	}
	return int((roundNumber-1)%int64(len(c))) + 1
}
