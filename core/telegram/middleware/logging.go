package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/dreambot/core/logger"
	"github.com/m3rciful/dreambot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/dreambot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// seenUpdates remembers recently logged update ids. Routes wrap their handlers
// in LoggerMiddleware on top of the global chain, so one update can pass twice.
type seenUpdates struct {
	mu    sync.Mutex
	ids   map[int]time.Time
	ttl   time.Duration
	sweep time.Time
}

var receipts = &seenUpdates{ids: make(map[int]time.Time), ttl: 10 * time.Second}

// first reports whether id is new, recording it. Expired ids are dropped at
// most once per ttl.
func (s *seenUpdates) first(id int, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.Sub(s.sweep) > s.ttl {
		for k, ts := range s.ids {
			if now.Sub(ts) > s.ttl {
				delete(s.ids, k)
			}
		}
		s.sweep = now
	}
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = now
	return true
}

// LoggerMiddleware builds the update's logging context and logs one
// update.received line per update at debug level.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.NewContext(c)
		upd := c.Update()
		if logger.ShouldSampleDebug() && receipts.first(upd.ID, time.Now()) {
			logger.LogEvent(ctx, logger.Component(logger.CompTG), slog.LevelDebug, "update.received",
				receiptAttrs(c, upd)...)
		}
		return next(c)
	}
}

func receiptAttrs(c tele.Context, upd tele.Update) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("status", "ok"),
		slog.String("kind", UpdateKind(upd)),
	}
	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
	}
	if user := c.Sender(); user != nil {
		if user.Username != "" {
			attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
		}
		if user.LanguageCode != "" {
			attrs = append(attrs, slog.String("lang", user.LanguageCode))
		}
	}
	switch {
	case upd.Callback != nil:
		key, payload := callbacks.Parse(upd.Callback)
		attrs = append(attrs,
			slog.String("cb_key", logger.SanitizeLimit(key, 128)),
			slog.String("payload", logger.SanitizeLimit(payload, 256)),
		)
	case upd.Message != nil:
		if t := c.Text(); t != "" {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(t, 256)))
		}
		if v := upd.Message.Voice; v != nil {
			attrs = append(attrs, slog.Int("voice_seconds", v.Duration))
		}
	}
	return attrs
}
