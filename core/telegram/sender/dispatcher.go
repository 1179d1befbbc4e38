// Package sender delivers outbound Telegram calls off the update goroutine,
// in order per chat, with bounded retries.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/dreambot/core/logger"
	"github.com/m3rciful/dreambot/core/telegram/netutil"
)

var (
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull means the chat's lane is saturated; the job was not accepted.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

const component = "tg.sender"

// Options controls the dispatcher. Zero values select defaults.
type Options struct {
	// QueueSize is the total buffer, split evenly across workers.
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent on one job, retries included.
	MaxDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.QueueSize < o.Workers {
		o.QueueSize = 64 * o.Workers
	}
	o.MaxRetries = max(o.MaxRetries, 0)
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 30 * time.Second
	}
	return o
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

// Dispatcher runs jobs on a fixed set of workers. Each worker owns a lane and
// every job for a chat lands on the same lane, so one chat's messages go out
// in the order they were enqueued while different chats proceed in parallel.
type Dispatcher struct {
	opts  Options
	lanes []chan job
	next  atomic.Uint64
	stop  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup

	sent    atomic.Uint64
	retried atomic.Uint64
	failed  atomic.Uint64
}

// Stats is a snapshot of dispatcher counters.
type Stats struct {
	Queued  int    `json:"queued"`
	Sent    uint64 `json:"sent"`
	Retried uint64 `json:"retried"`
	Failed  uint64 `json:"failed"`
}

func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{
		opts:  opts,
		lanes: make([]chan job, opts.Workers),
		stop:  make(chan struct{}),
	}
	perLane := opts.QueueSize / opts.Workers
	d.wg.Add(opts.Workers)
	for i := range d.lanes {
		d.lanes[i] = make(chan job, perLane)
		go d.work(d.lanes[i])
	}
	return d
}

// Enqueue schedules run on the lane of the chat found in ctx. Jobs without a
// chat are spread round robin. run may be called again on transient errors.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-d.stop:
		return ErrQueueClosed
	default:
	}
	select {
	case d.lane(logger.ChatIDFrom(ctx)) <- job{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (d *Dispatcher) lane(chatID int64) chan job {
	n := uint64(len(d.lanes))
	if chatID == 0 {
		return d.lanes[d.next.Add(1)%n]
	}
	if chatID < 0 {
		chatID = -chatID
	}
	return d.lanes[uint64(chatID)%n]
}

func (d *Dispatcher) Stats() Stats {
	queued := 0
	for _, l := range d.lanes {
		queued += len(l)
	}
	return Stats{
		Queued:  queued,
		Sent:    d.sent.Load(),
		Retried: d.retried.Load(),
		Failed:  d.failed.Load(),
	}
}

// Close refuses new jobs, drains the lanes and waits for the workers.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		close(d.stop)
		for _, l := range d.lanes {
			close(l)
		}
		d.wg.Wait()
	})
}

func (d *Dispatcher) work(lane <-chan job) {
	defer d.wg.Done()
	for j := range lane {
		d.deliver(j)
	}
}

// deliver runs j until it succeeds, fails permanently, runs out of retries or
// exceeds MaxDuration. Flood errors wait as long as Telegram asks.
func (d *Dispatcher) deliver(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := d.opts.MaxRetries + 1
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = j.run(); err == nil {
			d.sent.Add(1)
			logger.Debug(j.ctx, component, "send.success",
				append(jobAttrs(j), slog.Int("attempt", attempt), elapsed(start))...)
			return
		}
		if !netutil.ShouldRetry(err) || attempt == attempts {
			break
		}
		delay := d.opts.RetryBackoff * time.Duration(attempt)
		if wait, ok := netutil.RetryAfter(err); ok {
			delay = wait
		}
		if !sleep(ctx, delay) {
			err = errors.Join(err, ctx.Err())
			break
		}
		d.retried.Add(1)
		logger.Debug(j.ctx, component, "send.retry",
			append(jobAttrs(j), slog.Int("attempt", attempt), slog.Duration("delay", delay))...)
	}

	d.failed.Add(1)
	logger.Error(j.ctx, component, "send.fail", append(jobAttrs(j),
		slog.String("err", redact(err)),
		slog.String("err_kind", classify(err)),
		elapsed(start),
	)...)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// jobAttrs carries the action; rid and chat/user ids come from the job context.
func jobAttrs(j job) []slog.Attr {
	attrs := []slog.Attr{slog.String("action", j.action)}
	if j.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.endpoint))
	}
	return attrs
}

func elapsed(start time.Time) slog.Attr {
	return slog.Duration("duration", logger.RoundMS(time.Since(start)))
}
