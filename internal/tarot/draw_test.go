package tarot

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

// scriptedRNG replays a fixed sequence, reduced modulo n.
type scriptedRNG struct {
	values []int
	idx    int
}

func (r *scriptedRNG) Intn(n int) int {
	v := r.values[r.idx%len(r.values)] % n
	r.idx++
	return v
}

func TestDrawCountAndDistinctForEveryLayout(t *testing.T) {
	for _, layout := range Layouts() {
		for seed := uint64(0); seed < 200; seed++ {
			rng := SeededRNG{R: rand.New(rand.NewPCG(seed, 0x5eed))}
			cards, err := Draw(layout, rng)
			require.NoError(t, err)
			require.Len(t, cards, layout.Count, layout.ID)

			seen := make(map[int]bool, len(cards))
			for _, c := range cards {
				require.GreaterOrEqual(t, c.Index, 0)
				require.Less(t, c.Index, DeckSize)
				require.False(t, seen[c.Index], "duplicate %d in %s seed %d", c.Index, layout.ID, seed)
				seen[c.Index] = true
				require.Contains(t, []Orientation{Upright, Reversed}, c.Orientation)
			}
		}
	}
}

func TestDrawIsReproducibleForSeed(t *testing.T) {
	layout, err := LayoutByID("celtic_cross")
	require.NoError(t, err)

	a, err := Draw(layout, SeededRNG{R: rand.New(rand.NewPCG(7, 11))})
	require.NoError(t, err)
	b, err := Draw(layout, SeededRNG{R: rand.New(rand.NewPCG(7, 11))})
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestDrawConsumesSwapsThenOrientations(t *testing.T) {
	layout, err := LayoutByID("three_card")
	require.NoError(t, err)

	// Three swaps of zero keep the deck head, then reversed, upright, reversed.
	rng := &scriptedRNG{values: []int{0, 0, 0, 1, 0, 1}}
	cards, err := Draw(layout, rng)
	require.NoError(t, err)
	require.Equal(t, []DrawnCard{
		{Index: 0, Orientation: Reversed},
		{Index: 1, Orientation: Upright},
		{Index: 2, Orientation: Reversed},
	}, cards)
	require.Equal(t, 6, rng.idx)
}

func TestOneCardDrawsOne(t *testing.T) {
	layout, err := LayoutByID("one_card")
	require.NoError(t, err)
	cards, err := Draw(layout, NewRNG())
	require.NoError(t, err)
	require.Len(t, cards, 1)
}

func TestDrawRejectsBadCount(t *testing.T) {
	_, err := Draw(Layout{ID: "empty"}, NewRNG())
	require.Error(t, err)
	_, err = Draw(Layout{ID: "huge", Count: DeckSize + 1}, NewRNG())
	require.Error(t, err)
}

func TestLayoutTable(t *testing.T) {
	counts := map[string]int{}
	for _, l := range Layouts() {
		counts[l.ID] = l.Count
		require.NotEmpty(t, l.Name)
		require.NotEmpty(t, l.Mystic)
	}
	require.Equal(t, map[string]int{
		"celtic_cross":        10,
		"three_card":          3,
		"one_card":            1,
		"past_present_future": 3,
		"relationship":        7,
	}, counts)

	_, err := LayoutByID("nope")
	require.ErrorIs(t, err, ErrUnknownLayout)
}

func TestDeckNames(t *testing.T) {
	require.Equal(t, "The Fool", CardName(0))
	require.Equal(t, "The World", CardName(21))
	require.Equal(t, "Ace of Wands", CardName(22))
	require.Equal(t, "King of Cups", CardName(49))
	require.Equal(t, "King of Pentacles", CardName(77))
	require.Empty(t, CardName(78))
	require.Equal(t, "Death (reversed)", DrawnCard{Index: 13, Orientation: Reversed}.Label())
}
