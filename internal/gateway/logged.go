package gateway

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/m3rciful/dreambot/core/logger"
)

// WithLogging records one gateway event per call with its duration and outcome.
func WithLogging(g Gateway, provider string) Gateway {
	return &loggedGateway{next: g, provider: provider}
}

type loggedGateway struct {
	next     Gateway
	provider string
}

func (l *loggedGateway) log(ctx context.Context, op string, start time.Time, size int, err error) {
	attrs := []slog.Attr{
		slog.String("op", op),
		slog.String("provider", l.provider),
		slog.Duration("duration", logger.Took(start)),
		slog.Int("bytes", size),
	}
	if err == nil {
		logger.Info(ctx, logger.CompGateway, "gateway.call", append(attrs, slog.String("status", "ok"))...)
		return
	}
	code := "GATEWAY_FAIL"
	var coder interface{ Code() string }
	switch {
	case errors.As(err, &coder):
		code = coder.Code()
	case errors.Is(err, ErrTranscription):
		code = "GATEWAY_TRANSCRIPTION"
	}
	logger.Warn(ctx, logger.CompGateway, "gateway.call", append(attrs,
		slog.String("status", "fail"),
		slog.String("err_code", code),
		slog.String("err", logger.SanitizeLimit(err.Error(), 300)),
	)...)
}

func (l *loggedGateway) Transcribe(ctx context.Context, audio Audio) (string, error) {
	start := time.Now()
	text, err := l.next.Transcribe(ctx, audio)
	l.log(ctx, OpTranscribe, start, len(audio.Data), err)
	return text, err
}

func (l *loggedGateway) CompleteText(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	text, err := l.next.CompleteText(ctx, prompt)
	l.log(ctx, OpComplete, start, len(prompt), err)
	return text, err
}

func (l *loggedGateway) AnalyzeImage(ctx context.Context, image Image, prompt string) (string, error) {
	start := time.Now()
	text, err := l.next.AnalyzeImage(ctx, image, prompt)
	l.log(ctx, OpAnalyze, start, len(image.Data), err)
	return text, err
}
