package middleware

import (
	"log/slog"

	"github.com/m3rciful/dreambot/core/logger"
	tghelpers "github.com/m3rciful/dreambot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// AdminOptions configures AdminOnlyMiddleware.
type AdminOptions struct {
	AdminID  int64
	OnReject tele.HandlerFunc
}

// AdminOnlyMiddleware lets through only the configured admin. With no admin
// configured nobody passes. Rejections are logged and otherwise silent unless
// OnReject is set, so the command looks unknown to everyone else.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if reason := adminReject(opts.AdminID, c.Sender()); reason != "" {
				logger.Warn(tghelpers.BuildContext(c), logger.CompTG, "tg.admin.reject",
					slog.String("reason", reason),
				)
				if opts.OnReject != nil {
					return opts.OnReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}

func adminReject(adminID int64, sender *tele.User) string {
	switch {
	case adminID == 0:
		return "no_admin"
	case sender == nil:
		return "no_sender"
	case sender.ID != adminID:
		return "not_admin"
	}
	return ""
}
