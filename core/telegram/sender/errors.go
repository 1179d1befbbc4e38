package sender

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"regexp"
	"strconv"

	"github.com/m3rciful/dreambot/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

var (
	tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)
	// telebot reports unmapped API errors as "telegram: <description> (<code>)".
	codeRe = regexp.MustCompile(`\((\d{3})\)\s*$`)
)

// classify buckets a send error for logs: flood, timeout, dial, dns, tls,
// http_4xx, http_5xx or unknown.
func classify(err error) string {
	if err == nil {
		return ""
	}
	if _, ok := netutil.RetryAfter(err); ok {
		return "flood"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if code := apiCode(err); code >= 500 {
		return "http_5xx"
	} else if code >= 400 {
		return "http_4xx"
	}

	var dnsErr *net.DNSError
	var netErr net.Error
	var alert tls.AlertError
	switch {
	case errors.As(err, &dnsErr) && !dnsErr.IsTimeout:
		return "dns"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case netutil.IsDialError(err):
		return "dial"
	case errors.As(err, &alert):
		return "tls"
	}
	return "unknown"
}

func apiCode(err error) int {
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var groupErr tele.GroupError
	if errors.As(err, &groupErr) {
		return 400
	}
	if m := codeRe.FindStringSubmatch(err.Error()); m != nil {
		code, _ := strconv.Atoi(m[1])
		return code
	}
	return 0
}

// redact strips bot tokens that net/http embeds in request URLs.
func redact(err error) string {
	if err == nil {
		return ""
	}
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}
