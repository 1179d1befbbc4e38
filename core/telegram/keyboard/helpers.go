// Package keyboard builds reply and inline markups.
package keyboard

import tele "gopkg.in/telebot.v4"

// InlineBtn is one inline button. Unique becomes the callback key and Data its payload.
type InlineBtn struct {
	Text   string
	Unique string
	Data   string
}

// Menu builds a persistent, resized reply keyboard. Empty labels are dropped
// and so are rows left empty.
func Menu(rows ...[]string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{ResizeKeyboard: true, IsPersistent: true}
	var out []tele.Row
	for _, row := range rows {
		var btns []tele.Btn
		for _, label := range row {
			if label == "" {
				continue
			}
			btns = append(btns, markup.Text(label))
		}
		if len(btns) > 0 {
			out = append(out, markup.Row(btns...))
		}
	}
	if len(out) == 0 {
		return nil
	}
	markup.Reply(out...)
	return markup
}

// Grid lays buttons out left to right, perRow per row. perRow < 1 means one per row.
func Grid(btns []InlineBtn, perRow int) *tele.ReplyMarkup {
	if len(btns) == 0 {
		return nil
	}
	if perRow < 1 {
		perRow = 1
	}
	markup := &tele.ReplyMarkup{}
	var inline [][]tele.InlineButton
	for start := 0; start < len(btns); start += perRow {
		end := min(start+perRow, len(btns))
		row := make([]tele.InlineButton, 0, end-start)
		for _, b := range btns[start:end] {
			row = append(row, *markup.Data(b.Text, b.Unique, b.Data).Inline())
		}
		inline = append(inline, row)
	}
	markup.InlineKeyboard = inline
	return markup
}

// Columns picks a row width for n choices: twelve or more (the month picker)
// go three across, one or two share a row, anything else stacks.
func Columns(n int) int {
	switch {
	case n >= 12:
		return 3
	case n <= 2:
		return max(n, 1)
	default:
		return 1
	}
}
