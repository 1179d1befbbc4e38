package router

import (
	"log/slog"
	"time"

	"github.com/m3rciful/dreambot/core/logger"
	tg "github.com/m3rciful/dreambot/core/telegram"
	"github.com/m3rciful/dreambot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/dreambot/core/telegram/helpers"
	"github.com/m3rciful/dreambot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises callback routing.
type CallbackOptions struct {
	// NotFound overrides the registry fallback for unknown keys.
	NotFound tele.HandlerFunc
	// ClearStale removes the inline keyboard from a message whose button key
	// is no longer registered, so it cannot be pressed again.
	ClearStale bool
}

// CallbackRoute answers every callback query up front, then routes it by key.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		cb := c.Callback()
		if cb == nil {
			return nil
		}
		start := time.Now()
		key, _ := callbacks.Parse(cb)
		name := "callback." + normalizeHandlerName(key)

		// Telegram keeps the button spinner until the query is answered.
		_ = c.Respond()

		if h, ok := reg.GetCallback(key); ok {
			return handleWithSummary(c, name, start, func() error { return h(c) },
				slog.String("cb_key", key))
		}

		fallback := opts.NotFound
		if fallback == nil {
			fallback = reg.CallbackNotFound()
		}
		return handleWithSummary(c, name, start, func() error {
			if opts.ClearStale {
				clearKeyboard(c, cb)
			}
			if fallback == nil {
				return nil
			}
			return fallback(c)
		}, slog.String("cb_key", key), slog.String("reason", "not_found"))
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}

func clearKeyboard(c tele.Context, cb *tele.Callback) {
	if cb.Message == nil || c.Bot() == nil {
		return
	}
	if _, err := c.Bot().EditReplyMarkup(cb.Message, nil); err != nil {
		logger.Debug(tghelpers.BuildContext(c), logger.CompTG, "callback.clear_failed",
			slog.String("err", err.Error()),
		)
	}
}
