package helpers

import (
	"context"
	"errors"
	"testing"

	tele "gopkg.in/telebot.v4"
)

type recordingBot struct {
	to   tele.Recipient
	text any
	err  error
}

func (b *recordingBot) Send(to tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	b.to, b.text = to, what
	return &tele.Message{}, b.err
}

func TestSendToRunsInlineWithoutDispatcher(t *testing.T) {
	SetDispatcher(nil)
	bot := &recordingBot{}
	if err := SendTo(context.Background(), bot, -100500, "hello"); err != nil {
		t.Fatalf("SendTo: %v", err)
	}
	if bot.to.Recipient() != "-100500" || bot.text != "hello" {
		t.Fatalf("sent %v to %v", bot.text, bot.to.Recipient())
	}

	bot.err = errors.New("forbidden")
	if err := SendTo(context.Background(), bot, 1, "x"); err == nil {
		t.Fatal("expected inline send error")
	}
}

func TestSendToValidates(t *testing.T) {
	if err := SendTo(context.Background(), &recordingBot{}, 0, "x"); err == nil {
		t.Fatal("expected error for empty chat id")
	}
}
