// Package commands describes slash commands and their names.
package commands

import (
	"errors"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Command is one slash command. Description doubles as its Telegram menu text.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	AdminOnly   bool
	Hidden      bool
	Aliases     []string
}

// Listed reports whether the command belongs in the public command menu.
func (c Command) Listed() bool { return !c.Hidden && !c.AdminOnly }

// Validate rejects commands Telegram would not accept.
func (c Command) Validate() error {
	if c.Handler == nil {
		return errors.New("command has no handler")
	}
	if strings.TrimSpace(c.Description) == "" {
		return errors.New("command has no description")
	}
	return nil
}

// Normalize turns "start", "/Start" or "/start@dreambot" into "/start".
// The first word of a message is enough; arguments are dropped.
func Normalize(name string) string {
	name, _, _ = strings.Cut(strings.TrimSpace(name), " ")
	name, _, _ = strings.Cut(name, "@")
	name = strings.ToLower(strings.TrimPrefix(name, "/"))
	if name == "" {
		return ""
	}
	return "/" + name
}
