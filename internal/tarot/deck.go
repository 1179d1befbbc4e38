// Package tarot holds the fixed 78-card deck, the spread layouts, the random draw
// and composition of drawn cards into images.
package tarot

import "fmt"

// DeckSize is the number of cards in the deck.
const DeckSize = 78

// Orientation of a drawn card.
type Orientation string

const (
	Upright  Orientation = "upright"
	Reversed Orientation = "reversed"
)

// DrawnCard is one sampled card. Index is in [0, DeckSize).
type DrawnCard struct {
	Index       int         `json:"index"`
	Orientation Orientation `json:"orientation"`
}

// Name returns the card's canonical English name.
func (c DrawnCard) Name() string {
	return CardName(c.Index)
}

// Label formats the card as "Name (orientation)".
func (c DrawnCard) Label() string {
	return fmt.Sprintf("%s (%s)", c.Name(), c.Orientation)
}

// CardName returns the name for index, or "" when out of range.
func CardName(index int) string {
	if index < 0 || index >= DeckSize {
		return ""
	}
	return deck[index]
}

var deck = buildDeck()

func buildDeck() [DeckSize]string {
	var d [DeckSize]string
	major := [...]string{
		"The Fool", "The Magician", "The High Priestess", "The Empress", "The Emperor",
		"The Hierophant", "The Lovers", "The Chariot", "Strength", "The Hermit",
		"Wheel of Fortune", "Justice", "The Hanged Man", "Death", "Temperance",
		"The Devil", "The Tower", "The Star", "The Moon", "The Sun", "Judgement", "The World",
	}
	ranks := [...]string{
		"Ace", "Two", "Three", "Four", "Five", "Six", "Seven", "Eight", "Nine", "Ten",
		"Page", "Knight", "Queen", "King",
	}
	suits := [...]string{"Wands", "Cups", "Swords", "Pentacles"}

	n := copy(d[:], major[:])
	for _, suit := range suits {
		for _, rank := range ranks {
			d[n] = rank + " of " + suit
			n++
		}
	}
	return d
}
