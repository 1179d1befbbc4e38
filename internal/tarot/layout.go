package tarot

import "errors"

// ErrUnknownLayout is returned for layout ids outside the fixed table.
var ErrUnknownLayout = errors.New("tarot: unknown layout")

// Layout is a named spread with a fixed card count. Mystic is shown to users,
// Name is what the interpretation model sees.
type Layout struct {
	ID     string
	Name   string
	Mystic string
	Count  int
}

var layouts = []Layout{
	{ID: "celtic_cross", Name: "Celtic Cross", Mystic: "رازهای نهفته", Count: 10},
	{ID: "three_card", Name: "Three Card Spread", Mystic: "مسیر سرنوشت", Count: 3},
	{ID: "one_card", Name: "One Card Draw", Mystic: "آینه روح", Count: 1},
	{ID: "past_present_future", Name: "Past Present Future", Mystic: "چرخه تقدیر", Count: 3},
	{ID: "relationship", Name: "Relationship Spread", Mystic: "هماهنگی ستارگان", Count: 7},
}

// Layouts returns the table in display order.
func Layouts() []Layout {
	return append([]Layout(nil), layouts...)
}

// LayoutByID looks a layout up by id.
func LayoutByID(id string) (Layout, error) {
	for _, l := range layouts {
		if l.ID == id {
			return l, nil
		}
	}
	return Layout{}, ErrUnknownLayout
}
