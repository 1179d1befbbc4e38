// Package feedback records what users say after a reading and fans it out to
// the admin chat and an optional journal.
package feedback

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/dreambot/core/logger"
	"github.com/m3rciful/dreambot/internal/reading"
)

// Entry is one piece of feedback. Record fills ID and CreatedAt.
type Entry struct {
	ID        string
	UserID    int64
	Flow      reading.Flow
	ReadingID string
	Text      string
	CreatedAt time.Time
}

// Notifier forwards feedback to a human, e.g. the admin chat.
type Notifier interface {
	Notify(ctx context.Context, e Entry) error
}

// Journal persists feedback.
type Journal interface {
	Save(ctx context.Context, e Entry) error
}

// Collector delivers entries to its sinks. Sink failures are logged and swallowed.
type Collector struct {
	notifier Notifier
	journal  Journal
	now      func() time.Time
	newID    func() string

	recorded atomic.Uint64
	failed   atomic.Uint64
}

type Option func(*Collector)

func WithNotifier(n Notifier) Option { return func(c *Collector) { c.notifier = n } }
func WithJournal(j Journal) Option   { return func(c *Collector) { c.journal = j } }
func WithClock(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}
func WithIDs(newID func() string) Option {
	return func(c *Collector) { c.newID = newID }
}

func NewCollector(opts ...Option) *Collector {
	c := &Collector{now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Record stamps e and hands it to every configured sink.
func (c *Collector) Record(ctx context.Context, e Entry) Entry {
	e.ID = c.newID()
	e.CreatedAt = c.now().UTC()
	e.Text = strings.TrimSpace(e.Text)
	c.recorded.Add(1)

	if c.notifier != nil {
		c.deliver(ctx, e, "notifier", c.notifier.Notify)
	}
	if c.journal != nil {
		c.deliver(ctx, e, "journal", c.journal.Save)
	}
	logger.Info(ctx, logger.CompFeedback, "feedback.recorded",
		slog.String("flow", string(e.Flow)),
		slog.String("reading_id", e.ReadingID),
		slog.Int("bytes", len(e.Text)),
	)
	return e
}

func (c *Collector) deliver(ctx context.Context, e Entry, sink string, fn func(context.Context, Entry) error) {
	if err := fn(ctx, e); err != nil {
		c.failed.Add(1)
		logger.Warn(ctx, logger.CompFeedback, "feedback.sink",
			slog.String("status", "fail"),
			slog.String("op", sink),
			slog.String("err", logger.SanitizeLimit(err.Error(), 300)),
		)
	}
}

// Stats reports totals since start.
type Stats struct {
	Recorded    uint64 `json:"recorded"`
	SinkFailure uint64 `json:"sink_failures"`
}

func (c *Collector) Stats() Stats {
	return Stats{Recorded: c.recorded.Load(), SinkFailure: c.failed.Load()}
}
