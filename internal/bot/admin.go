package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync/atomic"

	"github.com/m3rciful/dreambot/core/telegram/format"
	tghelpers "github.com/m3rciful/dreambot/core/telegram/helpers"
	"github.com/m3rciful/dreambot/internal/feedback"

	tele "gopkg.in/telebot.v4"
)

var errNotAttached = errors.New("bot: admin notifier has no bot attached")

// AdminNotifier forwards feedback to the admin chat. The bot is attached once
// it exists, so the notifier can be built before the transport starts.
type AdminNotifier struct {
	chatID int64
	bot    atomic.Pointer[tghelpers.BotSender]
}

func NewAdminNotifier(chatID int64) *AdminNotifier {
	return &AdminNotifier{chatID: chatID}
}

func (n *AdminNotifier) Attach(b tghelpers.BotSender) {
	n.bot.Store(&b)
}

// Notify implements feedback.Notifier.
func (n *AdminNotifier) Notify(ctx context.Context, e feedback.Entry) error {
	if n.chatID == 0 {
		return nil
	}
	b := n.bot.Load()
	if b == nil {
		return errNotAttached
	}
	text, err := adminMessage(e)
	if err != nil {
		return err
	}
	return tghelpers.SendTo(ctx, *b, n.chatID, text, tele.ModeMarkdownV2)
}

func adminMessage(e feedback.Entry) (string, error) {
	lines := []string{
		"*Feedback*",
		fmt.Sprintf("user: %d", e.UserID),
		"flow: " + string(e.Flow),
		"reading: " + e.ReadingID,
		"",
		e.Text,
	}
	var sb strings.Builder
	for i, l := range lines {
		if i > 0 {
			sb.WriteByte('\n')
			esc, err := format.EscapeMarkdown(l, format.MarkdownV2)
			if err != nil {
				return "", err
			}
			l = esc
		}
		sb.WriteString(l)
	}
	return sb.String(), nil
}

// StatsFunc returns a JSON-encodable snapshot.
type StatsFunc func(ctx context.Context) (any, error)

// StatsCommand replies with the snapshot as preformatted JSON.
func StatsCommand(stats StatsFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		snap, err := stats(tghelpers.BuildContext(c))
		if err != nil {
			return err
		}
		raw, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return err
		}
		return tghelpers.SendText(c, "<pre>"+html.EscapeString(string(raw))+"</pre>", &tele.SendOptions{ParseMode: tele.ModeHTML})
	}
}
