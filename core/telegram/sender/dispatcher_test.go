package sender

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m3rciful/dreambot/core/logger"

	tele "gopkg.in/telebot.v4"
)

func TestDispatcherRetriesTransientErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})

	var calls atomic.Int32
	done := make(chan struct{})
	err := d.Enqueue(context.Background(), "send.text", "sendMessage", func() error {
		if calls.Add(1) < 3 {
			return &net.OpError{Op: "dial", Err: errors.New("connection refused")}
		}
		close(done)
		return nil
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not succeed")
	}
	d.Close()

	st := d.Stats()
	if st.Sent != 1 || st.Retried != 2 || st.Failed != 0 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestDispatcherCountsPermanentFailures(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 3, RetryBackoff: time.Millisecond})
	var calls atomic.Int32
	_ = d.Enqueue(context.Background(), "send.text", "sendMessage", func() error {
		calls.Add(1)
		return errors.New("telegram: chat not found (400)")
	})
	d.Close()

	if calls.Load() != 1 {
		t.Fatalf("permanent error retried: %d calls", calls.Load())
	}
	if st := d.Stats(); st.Failed != 1 || st.Sent != 0 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestDispatcherKeepsChatOrder(t *testing.T) {
	d := NewDispatcher(Options{Workers: 4, QueueSize: 400})
	ctx := logger.WithUpdateMeta(context.Background(), 1, 42, 42)

	var mu sync.Mutex
	var got []int
	for i := 0; i < 50; i++ {
		if err := d.Enqueue(ctx, "send.text", "sendMessage", func() error {
			// Early jobs are slower; a shared pool would reorder them.
			time.Sleep(time.Duration(50-i) * 10 * time.Microsecond)
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			return nil
		}); err != nil {
			t.Fatal(err)
		}
	}
	d.Close()

	for i, v := range got {
		if v != i {
			t.Fatalf("job %d ran at position %d: %v", v, i, got)
		}
	}
	if len(got) != 50 {
		t.Fatalf("ran %d jobs", len(got))
	}
}

func TestEnqueueAfterClose(t *testing.T) {
	d := NewDispatcher(Options{})
	d.Close()
	err := d.Enqueue(context.Background(), "a", "b", func() error { return nil })
	if !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("err = %v, want ErrQueueClosed", err)
	}
}

func TestClassifyAndRedact(t *testing.T) {
	cases := map[string]error{
		"timeout":  context.DeadlineExceeded,
		"http_5xx": errors.New("telegram: Bad Gateway (502)"),
		"http_4xx": tele.ErrBlockedByUser,
		"flood":    tele.FloodError{RetryAfter: 5},
		"dial":     &net.OpError{Op: "dial", Err: errors.New("refused")},
		"unknown":  errors.New("boom"),
	}
	for want, err := range cases {
		if got := classify(err); got != want {
			t.Errorf("classify(%v) = %q, want %q", err, got, want)
		}
	}
	msg := redact(errors.New(`Post "https://api.telegram.org/bot123:AA-bb_c/sendMessage": EOF`))
	if want := `Post "https://api.telegram.org/bot<redacted>/sendMessage": EOF`; msg != want {
		t.Errorf("redact = %q", msg)
	}
}
