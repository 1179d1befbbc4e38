package telegram

import (
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/dreambot/core/config"

	tele "gopkg.in/telebot.v4"
)

// defaultLongPoll applies when telegram.longpoll_timeout_seconds is 0.
const defaultLongPoll = 10 * time.Second

// BuildPoller returns the webhook or long poller selected by cfg.
func BuildPoller(cfg *coreconfig.Config) (tele.Poller, error) {
	if cfg == nil {
		return nil, errors.New("telegram: nil config")
	}
	if !strings.EqualFold(strings.TrimSpace(cfg.Telegram.RunMode), coreconfig.RunModeWebhook) {
		return &tele.LongPoller{Timeout: longPollTimeout(cfg.Telegram.LongPollTimeoutSeconds)}, nil
	}

	wh := cfg.Webhook
	if !strings.HasPrefix(wh.URL, "https://") {
		return nil, errors.New("telegram: webhook url must be https")
	}
	if wh.Port <= 0 {
		return nil, errors.New("telegram: webhook port is required")
	}
	return &tele.Webhook{
		Listen:      net.JoinHostPort(wh.Listen, strconv.Itoa(wh.Port)),
		SecretToken: wh.SecretToken,
		Endpoint:    &tele.WebhookEndpoint{PublicURL: wh.URL},
	}, nil
}

func longPollTimeout(seconds int) time.Duration {
	if seconds <= 0 {
		return defaultLongPoll
	}
	return time.Duration(seconds) * time.Second
}
