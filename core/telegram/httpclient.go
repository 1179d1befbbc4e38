package telegram

import (
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/dreambot/core/telegram/netutil"
)

// HTTPClientOptions tunes the client used for Bot API calls. Zero values
// select the defaults below.
type HTTPClientOptions struct {
	// LongPoll is the getUpdates window; header and overall timeouts are
	// stretched past it.
	LongPoll    time.Duration
	DialRetries int
	Backoff     time.Duration
}

const (
	dialTimeout     = 5 * time.Second
	tlsTimeout      = 5 * time.Second
	idleConnTimeout = 30 * time.Second
	keepAlive       = 30 * time.Second
	headerTimeout   = 5 * time.Second
	longPollSlack   = 10 * time.Second
)

// clientTimeout leaves room for uploading a tarot album or downloading a voice note.
const clientTimeout = 60 * time.Second

// BuildHTTPClient returns a client for Telegram. Requests that never got past
// the dial are retried here with linear backoff. Other failures go back to the
// caller, since the request may already have reached Telegram.
func BuildHTTPClient(opts HTTPClientOptions) *http.Client {
	header, overall := headerTimeout, clientTimeout
	if opts.LongPoll > 0 {
		header = max(header, opts.LongPoll+longPollSlack)
		overall = max(overall, opts.LongPoll+longPollSlack)
	}
	if opts.DialRetries <= 0 {
		opts.DialRetries = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: keepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   tlsTimeout,
		ResponseHeaderTimeout: header,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{
		Timeout:   overall,
		Transport: &dialRetryTransport{base: transport, retries: opts.DialRetries, backoff: opts.Backoff},
	}
}

type dialRetryTransport struct {
	base    http.RoundTripper
	retries int
	backoff time.Duration
}

func (t *dialRetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	for attempt := 1; attempt <= t.retries && err != nil && netutil.IsDialError(err); attempt++ {
		next := req.Clone(req.Context())
		if req.Body != nil {
			if req.GetBody == nil {
				return nil, err
			}
			body, bodyErr := req.GetBody()
			if bodyErr != nil {
				return nil, bodyErr
			}
			next.Body = body
		}

		timer := time.NewTimer(t.backoff * time.Duration(attempt))
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
		resp, err = t.base.RoundTrip(next)
	}
	return resp, err
}
