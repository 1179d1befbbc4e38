package helpers

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/dreambot/core/logger"
	"github.com/m3rciful/dreambot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by helper functions.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

// Dispatcher returns the wired sender, or nil.
func Dispatcher() *sender.Dispatcher {
	return globalDispatcher.Load()
}

// Enqueue runs fn on the dispatcher, or inline when none is wired or the queue
// cannot take it.
func Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	disp := Dispatcher()
	if disp == nil {
		return run()
	}
	if err := disp.Enqueue(ctx, action, endpoint, run); err != nil {
		if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
			logger.Warn(ctx, "tg.sender", "queue.fallback",
				slog.String("action", action),
				slog.String("endpoint", endpoint),
				slog.String("err", err.Error()),
			)
			return run()
		}
		return err
	}
	return nil
}

// SendText sends raw text (no parse mode) to the current recipient.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	var sendOpts *tele.SendOptions
	if len(opts) > 0 {
		sendOpts = opts[0]
	}
	CountersOf(c).Queued.Add(1)
	return Enqueue(BuildContext(c), "send.text", "sendMessage", func() error {
		if sendOpts != nil {
			return c.Send(text, sendOpts)
		}
		return c.Send(text)
	})
}

// SendSequence sends several messages as one job so they arrive in order.
func SendSequence(c tele.Context, action string, steps ...func(tele.Context) error) error {
	CountersOf(c).Queued.Add(int32(len(steps)))
	return Enqueue(BuildContext(c), action, "sequence", func() error {
		for _, step := range steps {
			if err := step(c); err != nil {
				return err
			}
		}
		return nil
	})
}

// Notify sends a chat action such as tele.Typing. Failures are only logged.
func Notify(c tele.Context, action tele.ChatAction) {
	if err := c.Notify(action); err != nil {
		logger.Debug(BuildContext(c), logger.CompTG, "notify.fail",
			slog.String("action", string(action)),
			slog.String("err", err.Error()),
		)
	}
}

// BotSender is the part of *tele.Bot used to reach chats outside an update.
type BotSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// SendTo delivers text to an arbitrary chat outside an update, e.g. an admin channel.
func SendTo(ctx context.Context, bot BotSender, chatID int64, text string, opts ...interface{}) error {
	if bot == nil || chatID == 0 {
		return errors.New("helpers: bot and chat id are required")
	}
	return Enqueue(ctx, "send.to", "sendMessage", func() error {
		_, err := bot.Send(tele.ChatID(chatID), text, opts...)
		return err
	})
}
