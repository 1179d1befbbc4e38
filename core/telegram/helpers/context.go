package helpers

import (
	"context"
	"sync/atomic"

	"github.com/m3rciful/dreambot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// Keys of the per-update values kept in tele.Context.
const (
	ctxKey      = "dreambot.ctx"
	ridKey      = "dreambot.rid"
	countersKey = "dreambot.counters"
)

// UpdateIDs returns the update, user and chat ids of c; missing parts are zero.
func UpdateIDs(c tele.Context) (updateID int, userID, chatID int64) {
	updateID = c.Update().ID
	if u := c.Sender(); u != nil {
		userID = u.ID
	}
	if ch := c.Chat(); ch != nil {
		chatID = ch.ID
	}
	return updateID, userID, chatID
}

// NewContext builds the logging context for c from scratch, caches it on c
// and returns it. The request id is reused when one was already assigned.
func NewContext(c tele.Context) context.Context {
	updateID, userID, chatID := UpdateIDs(c)
	rid := RID(c)
	if rid == "" {
		rid = logger.BuildRID(updateID, chatID, userID)
		c.Set(ridKey, rid)
	}
	ctx := logger.WithRID(context.Background(), rid)
	ctx = logger.WithUpdateMeta(ctx, updateID, userID, chatID)
	ctx = logger.WithLogger(ctx, logger.Component(logger.CompTG))
	c.Set(ctxKey, ctx)
	return ctx
}

// BuildContext returns the cached logging context of c, building it on first use.
func BuildContext(c tele.Context) context.Context {
	if ctx, ok := c.Get(ctxKey).(context.Context); ok && ctx != nil {
		return ctx
	}
	return NewContext(c)
}

// RID returns the request id assigned to the update, if any.
func RID(c tele.Context) string {
	rid, _ := c.Get(ridKey).(string)
	return rid
}

// WithHandler tags the cached context with the handler name.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" {
		return ctx
	}
	ctx = logger.WithHandler(ctx, handler)
	c.Set(ctxKey, ctx)
	return ctx
}

// Counters tracks outgoing traffic for one update. Sends run on dispatcher
// workers, so the fields are atomic.
type Counters struct {
	Queued   atomic.Int32
	Sent     atomic.Int32
	Keyboard atomic.Bool
}

// CountersOf returns the counters attached to c, attaching new ones if needed.
func CountersOf(c tele.Context) *Counters {
	if n, ok := c.Get(countersKey).(*Counters); ok && n != nil {
		return n
	}
	n := &Counters{}
	c.Set(countersKey, n)
	return n
}
