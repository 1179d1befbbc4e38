package logger

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode"
)

type ctxKey int

const (
	keyFields ctxKey = iota
	keyLogger
)

// fields are the correlation values the handler copies into every record.
type fields struct {
	rid       string
	updateID  int
	userID    int64
	chatID    int64
	handler   string
	flow      string
	stage     string
	readingID string
}

func fieldsFrom(ctx context.Context) fields {
	if ctx == nil {
		return fields{}
	}
	f, _ := ctx.Value(keyFields).(fields)
	return f
}

func withFields(ctx context.Context, mutate func(*fields)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	f := fieldsFrom(ctx)
	mutate(&f)
	return context.WithValue(ctx, keyFields, f)
}

// WithLogger stores log in ctx for propagation across layers.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if log == nil {
		return ctx
	}
	return context.WithValue(ctx, keyLogger, log)
}

// FromContext returns the logger stored in ctx or the global one.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(keyLogger).(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return L
}

// WithRID attaches the request correlation id.
func WithRID(ctx context.Context, rid string) context.Context {
	return withFields(ctx, func(f *fields) { f.rid = rid })
}

// WithUpdateMeta attaches Telegram update identifiers.
func WithUpdateMeta(ctx context.Context, updateID int, userID, chatID int64) context.Context {
	return withFields(ctx, func(f *fields) {
		f.updateID, f.userID, f.chatID = updateID, userID, chatID
	})
}

// WithHandler names the handler serving the update.
func WithHandler(ctx context.Context, handler string) context.Context {
	if handler == "" {
		if ctx == nil {
			return context.Background()
		}
		return ctx
	}
	return withFields(ctx, func(f *fields) { f.handler = handler })
}

// WithSession attaches the conversation flow and stage.
func WithSession(ctx context.Context, flow, stage string) context.Context {
	return withFields(ctx, func(f *fields) { f.flow, f.stage = flow, stage })
}

// WithReadingID attaches the id of the reading being produced.
func WithReadingID(ctx context.Context, id string) context.Context {
	return withFields(ctx, func(f *fields) { f.readingID = id })
}

// ChatIDFrom returns the chat of the update being handled, or 0.
func ChatIDFrom(ctx context.Context) int64 { return fieldsFrom(ctx).chatID }

// merge copies context fields into rec without overriding explicit attrs.
func (f fields) merge(rec map[string]any) {
	put := func(k string, v any, zero bool) {
		if zero {
			return
		}
		if _, ok := rec[k]; !ok {
			rec[k] = v
		}
	}
	put("rid", f.rid, f.rid == "")
	put("update_id", f.updateID, f.updateID == 0)
	put("user_id", f.userID, f.userID == 0)
	put("chat_id", f.chatID, f.chatID == 0)
	put("handler", f.handler, f.handler == "")
	put("flow", f.flow, f.flow == "")
	put("stage", f.stage, f.stage == "")
	put("reading_id", f.readingID, f.readingID == "")
}

// Sanitize drops control and format runes except tab and newline.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || unicode.Is(unicode.Cf, r) {
			return -1
		}
		return r
	}, s)
}

// SanitizeLimit sanitizes s and truncates it to max runes.
func SanitizeLimit(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(Sanitize(s))
	if len(r) <= max {
		return string(r)
	}
	return string(r[:max])
}

// BuildRID formats a correlation id as updateID:chatID:userID.
func BuildRID(updateID int, chatID, userID int64) string {
	return fmt.Sprintf("%d:%d:%d", updateID, chatID, userID)
}

// CompactRID rewrites a three-part numeric rid as dot-joined base36 segments.
// Anything else is returned trimmed but otherwise unchanged.
func CompactRID(rid string) string {
	rid = strings.TrimSpace(rid)
	parts := strings.Split(rid, ":")
	if len(parts) != 3 {
		return rid
	}
	for i, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return rid
		}
		parts[i] = strconv.FormatInt(n, 36)
	}
	return strings.Join(parts, ".")
}

// RoundMS rounds d to whole milliseconds; negatives become zero.
func RoundMS(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d.Round(time.Millisecond)
}

// Took is RoundMS(time.Since(start)).
func Took(start time.Time) time.Duration {
	return RoundMS(time.Since(start))
}

// SummarizeStrings joins at most limit values and reports truncation.
func SummarizeStrings(values []string, limit int) (string, bool) {
	if limit <= 0 {
		return "", len(values) > 0
	}
	if len(values) <= limit {
		return strings.Join(values, ", "), false
	}
	return strings.Join(values[:limit], ", "), true
}
