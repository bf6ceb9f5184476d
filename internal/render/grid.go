// Package render produces the cosmetic reel grid shown for each settled
// lobby round. The grid carries no financial authority; it is generated
// from the settled outcome so the display always agrees with the payout.
package render

import "math/rand"

// Grid dimensions of the lobby reel display.
const (
	Columns = 6
	Rows    = 5
)

// Symbols available on the reels, cheapest first.
var Symbols = []string{
	"banana", "grape", "melon", "plum", "apple",
	"candy_blue", "candy_green", "candy_purple", "candy_red",
}

// WinClusterMin is the smallest cluster size that reads as a win on screen.
// Losing grids keep every symbol strictly below LossSymbolMax occurrences.
const (
	WinClusterMin = 12
	LossSymbolMax = 8
)

// Grid is a column-major reel layout.
type Grid [Columns][Rows]string

// Flatten returns the grid row by row for serialization.
func (g Grid) Flatten() []string {
	out := make([]string, 0, Columns*Rows)
	for row := 0; row < Rows; row++ {
		for col := 0; col < Columns; col++ {
			out = append(out, g[col][row])
		}
	}
	return out
}

// Renderer builds grids from a caller-supplied randomness source so tests
// can seed it.
type Renderer struct {
	rng *rand.Rand
}

func New(rng *rand.Rand) *Renderer {
	return &Renderer{rng: rng}
}

// Render produces a grid consistent with the outcome: a winning grid
// contains a cluster of at least WinClusterMin identical symbols, a losing
// grid holds every symbol below LossSymbolMax occurrences.
func (r *Renderer) Render(won bool) Grid {
	if won {
		return r.winGrid()
	}
	return r.lossGrid()
}

func (r *Renderer) winGrid() Grid {
	var g Grid
	winner := Symbols[r.rng.Intn(len(Symbols))]
	clusterSize := WinClusterMin + r.rng.Intn(Columns*Rows/2-WinClusterMin+1)

	// Scatter the winning symbol over random cells first, then fill the
	// rest without letting any filler symbol reach a payable count.
	cells := r.rng.Perm(Columns * Rows)
	for _, idx := range cells[:clusterSize] {
		g[idx%Columns][idx/Columns] = winner
	}
	counts := map[string]int{}
	for _, idx := range cells[clusterSize:] {
		g[idx%Columns][idx/Columns] = r.pickCapped(counts, winner)
	}
	return g
}

func (r *Renderer) lossGrid() Grid {
	var g Grid
	counts := map[string]int{}
	for col := 0; col < Columns; col++ {
		for row := 0; row < Rows; row++ {
			g[col][row] = r.pickCapped(counts, "")
		}
	}
	return g
}

// pickCapped draws a symbol that is not excluded and has not reached the
// loss cap yet. The symbol set is large enough that a capped draw always
// exists for a full grid.
func (r *Renderer) pickCapped(counts map[string]int, exclude string) string {
	for {
		s := Symbols[r.rng.Intn(len(Symbols))]
		if s == exclude || counts[s] >= LossSymbolMax-1 {
			continue
		}
		counts[s]++
		return s
	}
}
