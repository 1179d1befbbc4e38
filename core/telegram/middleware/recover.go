package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/m3rciful/dreambot/core/logger"
	tghelpers "github.com/m3rciful/dreambot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// stackLimit caps the logged stack; the top frames are the useful ones.
const stackLimit = 4096

// RecoverMiddleware turns a handler panic into a logged error so one bad
// update cannot stop the poller. The update counts as handled.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			logger.Error(tghelpers.BuildContext(c), logger.CompTG, "tg.panic",
				slog.String("kind", UpdateKind(c.Update())),
				slog.String("err", fmt.Sprint(r)),
				slog.String("stack", logger.SanitizeLimit(string(debug.Stack()), stackLimit)),
			)
			err = nil
		}()
		return next(c)
	}
}
