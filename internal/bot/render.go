package bot

import (
	"bytes"
	"strings"

	tghelpers "github.com/m3rciful/dreambot/core/telegram/helpers"
	"github.com/m3rciful/dreambot/core/telegram/keyboard"
	"github.com/m3rciful/dreambot/internal/session"

	tele "gopkg.in/telebot.v4"
)

// albumLimit is Telegram's sendMediaGroup maximum.
const albumLimit = 10

// send delivers replies as one ordered job.
func (b *Bot) send(c tele.Context, replies []session.Reply) error {
	var steps []func(tele.Context) error
	for _, r := range replies {
		steps = append(steps, b.render(r)...)
	}
	if len(steps) == 0 {
		return nil
	}
	return tghelpers.SendSequence(c, "send.replies", steps...)
}

func (b *Bot) render(r session.Reply) []func(tele.Context) error {
	var steps []func(tele.Context) error
	for _, album := range b.albums(r) {
		steps = append(steps, func(c tele.Context) error { return c.SendAlbum(album.photos()) })
	}
	text := strings.TrimSpace(b.cat.Text(r))
	if text == "" {
		return steps
	}
	opts := &tele.SendOptions{ReplyMarkup: b.markup(r)}
	return append(steps, func(c tele.Context) error { return c.Send(text, opts) })
}

type albumItem struct {
	data    []byte
	caption string
}

// album is one media group. Photos are built per attempt: a reader drained by
// a failed upload would send empty files on retry.
type album []albumItem

func (a album) photos() tele.Album {
	out := make(tele.Album, 0, len(a))
	for _, it := range a {
		out = append(out, &tele.Photo{
			File:    tele.FromReader(bytes.NewReader(it.data)),
			Caption: it.caption,
		})
	}
	return out
}

func (b *Bot) albums(r session.Reply) []album {
	if len(r.Album) == 0 {
		return nil
	}
	var out []album
	var cur album
	for i, img := range r.Album {
		caption := img.Caption
		if i < len(r.Cards) {
			caption = b.cat.Caption(r.Cards[i])
		}
		cur = append(cur, albumItem{data: img.Data, caption: caption})
		if len(cur) == albumLimit {
			out = append(out, cur)
			cur = nil
		}
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

// markup picks inline options first, then the main menu keyboard.
func (b *Bot) markup(r session.Reply) *tele.ReplyMarkup {
	if len(r.Options) > 0 {
		btns := make([]keyboard.InlineBtn, 0, len(r.Options))
		for _, choice := range r.Options {
			ns, value := session.SplitChoice(choice)
			btns = append(btns, keyboard.InlineBtn{Text: b.cat.Label(choice), Unique: ns, Data: value})
		}
		return keyboard.Grid(btns, keyboard.Columns(len(btns)))
	}
	if r.Menu {
		return keyboard.Menu(b.cat.MenuRows()...)
	}
	return nil
}
