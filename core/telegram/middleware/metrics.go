package middleware

import (
	tghelpers "github.com/m3rciful/dreambot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// countingContext records delivered messages on the update's counters.
type countingContext struct {
	tele.Context
	n *tghelpers.Counters
}

func (m countingContext) record(err error, items int, opts []interface{}) error {
	if err != nil {
		return err
	}
	m.n.Sent.Add(int32(items))
	if carriesMarkup(opts) {
		m.n.Keyboard.Store(true)
	}
	return nil
}

func carriesMarkup(opts []interface{}) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

func (m countingContext) Send(what interface{}, opts ...interface{}) error {
	return m.record(m.Context.Send(what, opts...), 1, opts)
}

func (m countingContext) Reply(what interface{}, opts ...interface{}) error {
	return m.record(m.Context.Reply(what, opts...), 1, opts)
}

// SendAlbum counts each album item as a message.
func (m countingContext) SendAlbum(a tele.Album, opts ...interface{}) error {
	return m.record(m.Context.SendAlbum(a, opts...), len(a), opts)
}

// MessageMetricsMiddleware attaches fresh counters and hands downstream
// handlers a context that updates them on every successful send.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		return next(countingContext{Context: c, n: tghelpers.CountersOf(c)})
	}
}

// GetCounters reports queued and delivered messages so far and whether any
// carried a keyboard.
func GetCounters(c tele.Context) (queued, sent int, keyboard bool) {
	n := tghelpers.CountersOf(c)
	return int(n.Queued.Load()), int(n.Sent.Load()), n.Keyboard.Load()
}
