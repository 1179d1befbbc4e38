package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/m3rciful/dreambot/core/logger"
	"github.com/m3rciful/dreambot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

// Registry maps command names and callback keys to handlers. It is safe for
// concurrent use, though everything is normally registered before the bot starts.
type Registry struct {
	mu               sync.RWMutex
	commands         map[string]commands.Command
	aliases          map[string]string
	callbacks        map[string]tele.HandlerFunc
	callbackNotFound tele.HandlerFunc
}

func NewRegistry() *Registry {
	return &Registry{
		commands:         make(map[string]commands.Command),
		aliases:          make(map[string]string),
		callbacks:        make(map[string]tele.HandlerFunc),
		callbackNotFound: func(tele.Context) error { return nil },
	}
}

// RegisterCommand adds a command under its normalized name. Names and aliases
// must be unique across the registry.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) error {
	key := commands.Normalize(name)
	if key == "" {
		return fmt.Errorf("register command %q: empty name", name)
	}
	if err := cmd.Validate(); err != nil {
		return fmt.Errorf("register command %s: %w", key, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.taken(key) {
		return fmt.Errorf("register command %s: duplicate", key)
	}
	aliases := make([]string, 0, len(cmd.Aliases))
	for _, a := range cmd.Aliases {
		alias := commands.Normalize(a)
		if alias == "" || alias == key {
			continue
		}
		if r.taken(alias) {
			return fmt.Errorf("register command %s: alias %s already in use", key, alias)
		}
		aliases = append(aliases, alias)
	}
	r.commands[key] = cmd
	for _, alias := range aliases {
		r.aliases[alias] = key
	}
	logger.Debug(context.Background(), logger.CompTG, "register.command",
		slog.String("name", key),
		slog.Bool("admin_only", cmd.AdminOnly),
		slog.Int("aliases", len(aliases)),
	)
	return nil
}

func (r *Registry) taken(name string) bool {
	_, cmd := r.commands[name]
	_, alias := r.aliases[name]
	return cmd || alias
}

// LookupCommand resolves a name or alias to the canonical command.
func (r *Registry) LookupCommand(name string) (string, commands.Command, bool) {
	key := commands.Normalize(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if canonical, ok := r.aliases[key]; ok {
		key = canonical
	}
	cmd, ok := r.commands[key]
	if !ok {
		return "", commands.Command{}, false
	}
	return key, cmd, true
}

// Commands returns a copy of the command table keyed by canonical name.
func (r *Registry) Commands() map[string]commands.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.commands)
}

// ListCommands returns the commands sorted by name. With listedOnly, hidden and
// admin-only commands are left out.
func (r *Registry) ListCommands(listedOnly bool) []tele.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []tele.Command
	for _, name := range slices.Sorted(maps.Keys(r.commands)) {
		cmd := r.commands[name]
		if listedOnly && !cmd.Listed() {
			continue
		}
		out = append(out, tele.Command{Text: name, Description: cmd.Description})
	}
	return out
}

// RegisterCallback binds a callback key (the button's unique name) to a handler.
func (r *Registry) RegisterCallback(key string, handler tele.HandlerFunc) error {
	if key == "" || handler == nil {
		return fmt.Errorf("register callback %q: key and handler are required", key)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.callbacks[key]; exists {
		return fmt.Errorf("register callback %q: duplicate", key)
	}
	r.callbacks[key] = handler
	return nil
}

func (r *Registry) GetCallback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// ListCallbacks returns the sorted callback keys.
func (r *Registry) ListCallbacks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.callbacks))
}

// SetCallbackNotFound replaces the handler for buttons with an unknown key,
// typically left over from an older keyboard.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.callbackNotFound = h
	r.mu.Unlock()
}

func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.callbackNotFound
}

// InitBotCommands publishes the listed commands as the Telegram command menu.
func InitBotCommands(ctx context.Context, bot *tele.Bot, reg *Registry) {
	list := reg.ListCommands(true)
	if err := bot.SetCommands(list); err != nil {
		logger.Error(ctx, logger.CompTG, "register.commands.set_failed",
			slog.Int("count", len(list)),
			slog.String("err", err.Error()),
		)
		return
	}
	logger.Info(ctx, logger.CompTG, "register.commands.set", slog.Int("count", len(list)))
}
