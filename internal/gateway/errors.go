package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrGateway is matched by every *Error.
	ErrGateway = errors.New("gateway: external call failed")
	// ErrTranscription marks unusable audio or an empty transcript.
	ErrTranscription = errors.New("gateway: transcription failed")
	// ErrInvalidSubject marks an image the model judged not to be what was asked for.
	ErrInvalidSubject = errors.New("gateway: invalid subject")

	errNotConfigured = errors.New("provider not configured")
)

// Kind classifies a failed call.
type Kind string

const (
	KindQuota     Kind = "quota"
	KindTimeout   Kind = "timeout"
	KindMalformed Kind = "malformed"
	KindUpstream  Kind = "upstream"
)

// Operation names used in Error.Op.
const (
	OpTranscribe = "transcribe"
	OpComplete   = "complete_text"
	OpAnalyze    = "analyze_image"
)

// Error is a classified failure of one gateway call.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("gateway: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("gateway: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrGateway }

// Code is picked up by handler summaries.
func (e *Error) Code() string {
	return "GATEWAY_" + strings.ToUpper(string(e.Kind))
}

// KindOf returns the Kind of err, or "" when err is not a gateway error.
func KindOf(err error) Kind {
	var gErr *Error
	if errors.As(err, &gErr) {
		return gErr.Kind
	}
	return ""
}

// Classify wraps err as an *Error for op, inferring the kind from context
// deadlines. Errors that already are *Error or ErrTranscription pass through.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var gErr *Error
	if errors.As(err, &gErr) || errors.Is(err, ErrTranscription) {
		return err
	}
	kind := KindUpstream
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindForStatus maps an HTTP status from a provider to a Kind.
func KindForStatus(code int) Kind {
	switch {
	case code == http.StatusTooManyRequests || code == http.StatusPaymentRequired:
		return KindQuota
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return KindTimeout
	default:
		return KindUpstream
	}
}
