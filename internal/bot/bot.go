// Package bot adapts Telegram updates to session events and renders the
// resulting replies.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/m3rciful/dreambot/core/logger"
	tg "github.com/m3rciful/dreambot/core/telegram"
	"github.com/m3rciful/dreambot/core/telegram/callbacks"
	"github.com/m3rciful/dreambot/core/telegram/commands"
	tghelpers "github.com/m3rciful/dreambot/core/telegram/helpers"
	"github.com/m3rciful/dreambot/internal/locale"
	"github.com/m3rciful/dreambot/internal/session"

	tele "gopkg.in/telebot.v4"
)

// Conversation is the session engine behind the bot.
type Conversation interface {
	Handle(ctx context.Context, userID int64, ev session.Event) ([]session.Reply, error)
}

// Bot turns updates into session events. It satisfies router.Conversation.
type Bot struct {
	conv     Conversation
	cat      *locale.Catalog
	download Downloader
}

type Option func(*Bot)

// WithDownloader replaces the Telegram file download, mainly for tests.
func WithDownloader(d Downloader) Option { return func(b *Bot) { b.download = d } }

func New(conv Conversation, cat *locale.Catalog, opts ...Option) *Bot {
	b := &Bot{conv: conv, cat: cat, download: telegramDownload}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Register adds the user commands and one callback per choice namespace.
func (b *Bot) Register(reg *tg.Registry) error {
	nav := map[string]string{
		"/start": session.NavStart,
		"/menu":  session.NavHome,
		"/help":  session.NavHelp,
		"/reset": session.NavReset,
	}
	var errs []error
	for cmd, choice := range nav {
		errs = append(errs, reg.RegisterCommand(cmd, commands.Command{
			Handler:     b.choice(choice),
			Description: b.cat.Command(cmd),
		}))
	}
	for _, ns := range []string{"flow", "nav", "gender", "month", "layout"} {
		errs = append(errs, reg.RegisterCallback(ns, b.Callback))
	}
	return errors.Join(errs...)
}

func (b *Bot) choice(choice string) tele.HandlerFunc {
	return func(c tele.Context) error {
		return b.dispatch(c, session.ButtonEvent{Choice: choice})
	}
}

// HandleText maps main-menu keyboard labels to choices; anything else is free text.
func (b *Bot) HandleText(c tele.Context) error {
	text := c.Text()
	if choice, ok := b.cat.MenuChoice(text); ok {
		return b.dispatch(c, session.ButtonEvent{Choice: choice})
	}
	return b.dispatch(c, session.TextEvent{Text: text})
}

// Callback handles inline buttons. The key is the choice namespace and the payload its value.
func (b *Bot) Callback(c tele.Context) error {
	key, payload := callbacks.Parse(c.Callback())
	if key == "" {
		return nil
	}
	return b.dispatch(c, session.ButtonEvent{Choice: key + ":" + payload})
}

func (b *Bot) HandleVoice(c tele.Context) error {
	audio, err := b.voice(c)
	if err != nil {
		logger.Warn(tghelpers.BuildContext(c), logger.CompTG, "media.download_failed",
			slog.String("kind", "voice"),
			slog.String("err", err.Error()),
		)
		return b.send(c, []session.Reply{{Prompt: session.PromptTryAgain}})
	}
	return b.dispatch(c, session.VoiceEvent{Audio: audio})
}

func (b *Bot) HandlePhoto(c tele.Context) error {
	img, err := b.photo(c)
	if err != nil {
		logger.Warn(tghelpers.BuildContext(c), logger.CompTG, "media.download_failed",
			slog.String("kind", "photo"),
			slog.String("err", err.Error()),
		)
		return b.send(c, []session.Reply{{Prompt: session.PromptTryAgain}})
	}
	return b.dispatch(c, session.PhotoEvent{Image: img})
}

func (b *Bot) dispatch(c tele.Context, ev session.Event) error {
	user := c.Sender()
	if user == nil {
		return nil
	}
	ctx := withTeleContext(tghelpers.BuildContext(c), c)
	replies, err := b.conv.Handle(ctx, user.ID, ev)
	if err != nil {
		_ = b.send(c, []session.Reply{{Prompt: session.PromptTryAgain}})
		return err
	}
	return b.send(c, replies)
}

type teleContextKey struct{}

func withTeleContext(ctx context.Context, c tele.Context) context.Context {
	return context.WithValue(ctx, teleContextKey{}, c)
}

// Progress returns the session progress callback: a typing action followed by
// the working message, sent before the gateway call starts.
func Progress(cat *locale.Catalog) session.ProgressFunc {
	return func(ctx context.Context, _ int64, r session.Reply) {
		c, ok := ctx.Value(teleContextKey{}).(tele.Context)
		if !ok {
			return
		}
		tghelpers.Notify(c, tele.Typing)
		if text := strings.TrimSpace(cat.Text(r)); text != "" {
			_ = tghelpers.SendText(c, text)
		}
	}
}

// HandleOther treats unsupported content, such as a non-image document, as
// empty input so the current prompt is repeated.
func (b *Bot) HandleOther(c tele.Context) error {
	return b.dispatch(c, session.TextEvent{})
}
