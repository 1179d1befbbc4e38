package router

import (
	"context"
	"log/slog"
	"time"

	"github.com/m3rciful/dreambot/core/logger"
	tg "github.com/m3rciful/dreambot/core/telegram"
	"github.com/m3rciful/dreambot/core/telegram/commands"
	"github.com/m3rciful/dreambot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures the admin gate in front of AdminOnly commands.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes returns one route per command name and alias.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}

	var routes []tg.Route
	cmds := reg.Commands()
	for key, def := range cmds {
		h := middleware.RecoverMiddleware(middleware.LoggerMiddleware(commandHandler(key, def, opts)))
		routes = append(routes, tg.Route{Endpoint: key, Handler: h})
		for _, alias := range def.Aliases {
			// Aliases the registry refused stay unrouted.
			if canonical, _, ok := reg.LookupCommand(alias); ok && canonical == key {
				routes = append(routes, tg.Route{Endpoint: commands.Normalize(alias), Handler: h})
			}
		}
	}

	logger.Info(context.Background(), logger.CompTG, "tg.wire",
		slog.Int("commands", len(cmds)),
		slog.Int("routes", len(routes)),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return routes
}

// commandHandler runs def behind the admin gate when it is AdminOnly and logs
// a handler summary under the canonical name.
func commandHandler(key string, def commands.Command, opts CommandRouteOptions) tele.HandlerFunc {
	name := normalizeHandlerName(key)
	h := func(c tele.Context) error {
		return handleWithSummary(c, name, time.Now(), func() error { return def.Handler(c) })
	}
	if def.AdminOnly {
		h = middleware.AdminOnlyMiddleware(middleware.AdminOptions{
			AdminID:  opts.AdminID,
			OnReject: opts.OnAdminReject,
		})(h)
	}
	return h
}
