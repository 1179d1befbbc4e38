package tarot

import (
	"fmt"
	"math/rand/v2"
)

// RNG abstracts the random source so draws are reproducible in tests.
type RNG interface {
	// Intn returns a non-negative int in [0, n).
	Intn(n int) int
}

// NewRNG returns the production source backed by math/rand/v2.
func NewRNG() RNG {
	return globalRNG{}
}

type globalRNG struct{}

func (globalRNG) Intn(n int) int { return rand.IntN(n) }

// SeededRNG wraps a *rand.Rand, e.g. rand.New(rand.NewPCG(seed, seq)).
type SeededRNG struct{ R *rand.Rand }

func (s SeededRNG) Intn(n int) int { return s.R.IntN(n) }

// Draw samples layout.Count distinct cards. The first Count positions of a
// Fisher-Yates shuffle over the deck are taken in sample order, then each card
// gets an independent orientation from rng.Intn(2).
func Draw(layout Layout, rng RNG) ([]DrawnCard, error) {
	n := layout.Count
	if n < 1 || n > DeckSize {
		return nil, fmt.Errorf("tarot: layout %q count %d outside 1..%d", layout.ID, n, DeckSize)
	}

	var idx [DeckSize]int
	for i := range idx {
		idx[i] = i
	}
	for i := 0; i < n; i++ {
		j := i + rng.Intn(DeckSize-i)
		idx[i], idx[j] = idx[j], idx[i]
	}

	cards := make([]DrawnCard, n)
	for i := range cards {
		o := Upright
		if rng.Intn(2) == 1 {
			o = Reversed
		}
		cards[i] = DrawnCard{Index: idx[i], Orientation: o}
	}
	return cards, nil
}
