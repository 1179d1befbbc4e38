package gateway

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/m3rciful/dreambot/core/logger"
)

// maxGrace caps how long an overrun call gets to exit after cancellation.
const maxGrace = 2 * time.Second

// WithTimeout bounds every call on g by d. A call that overruns fails with a
// KindTimeout *Error. Transcription overruns still match ErrTranscription.
//
// Providers must honour ctx. The overrun call is cancelled and awaited for a
// short grace before the error is returned, so the caller's next call does not
// overlap it. A call still running after the grace is abandoned and logged.
func WithTimeout(g Gateway, d time.Duration) Gateway {
	if d <= 0 {
		return g
	}
	return &timeoutGateway{next: g, d: d, grace: min(d, maxGrace)}
}

type timeoutGateway struct {
	next  Gateway
	d     time.Duration
	grace time.Duration
}

type result struct {
	text string
	err  error
}

func (t *timeoutGateway) run(ctx context.Context, op string, call func(context.Context) (string, error)) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		text, err := call(ctx)
		done <- result{text, err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", t.timeoutErr(op, r.err)
		}
		return r.text, r.err
	case <-ctx.Done():
		cancel()
		t.await(ctx, op, done)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", t.timeoutErr(op, ctx.Err())
		}
		return "", Classify(op, ctx.Err())
	}
}

// await gives a cancelled call the grace period to return.
func (t *timeoutGateway) await(ctx context.Context, op string, done <-chan result) {
	timer := time.NewTimer(t.grace)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		logger.Warn(ctx, logger.CompGateway, "gateway.call_abandoned",
			slog.String("op", op),
			slog.Duration("grace", t.grace),
		)
	}
}

func (t *timeoutGateway) timeoutErr(op string, cause error) error {
	err := &Error{Kind: KindTimeout, Op: op, Err: cause}
	if op == OpTranscribe {
		return errors.Join(ErrTranscription, err)
	}
	return err
}

func (t *timeoutGateway) Transcribe(ctx context.Context, audio Audio) (string, error) {
	return t.run(ctx, OpTranscribe, func(ctx context.Context) (string, error) {
		return t.next.Transcribe(ctx, audio)
	})
}

func (t *timeoutGateway) CompleteText(ctx context.Context, prompt string) (string, error) {
	return t.run(ctx, OpComplete, func(ctx context.Context) (string, error) {
		return t.next.CompleteText(ctx, prompt)
	})
}

func (t *timeoutGateway) AnalyzeImage(ctx context.Context, image Image, prompt string) (string, error) {
	return t.run(ctx, OpAnalyze, func(ctx context.Context) (string, error) {
		return t.next.AnalyzeImage(ctx, image, prompt)
	})
}
