// Package alert sends best-effort operator notifications for terminal
// cycle failures over Telegram. Alerts are rate limited and never fail
// or block a posting cycle.
package alert

import (
	"errors"
	"fmt"

	tele "gopkg.in/telebot.v4"
	"golang.org/x/time/rate"

	logx "chirpd/pkg/logx"
)

type Config struct {
	Token  string
	ChatID int64
	// RatePerMin caps outgoing alerts; excess alerts are dropped.
	// Zero means 2.
	RatePerMin int

	// Offline skips the Telegram handshake (tests).
	Offline bool
}

type Notifier struct {
	bot     *tele.Bot
	chat    tele.ChatID
	limiter *rate.Limiter
	log     logx.Logger
}

func New(cfg Config, log logx.Logger) (*Notifier, error) {
	if cfg.Token == "" || cfg.ChatID == 0 {
		return nil, errors.New("alert: token and chat_id are required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	b, err := tele.NewBot(tele.Settings{
		Token:       cfg.Token,
		Offline:     cfg.Offline,
		Synchronous: true,
	})
	if err != nil {
		return nil, fmt.Errorf("alert: telegram bot: %w", err)
	}

	rpm := cfg.RatePerMin
	if rpm <= 0 {
		rpm = 2
	}
	return &Notifier{
		bot:     b,
		chat:    tele.ChatID(cfg.ChatID),
		limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm),
		log:     log,
	}, nil
}

// Notify sends one alert message. Rate-limited overflow is dropped; send
// errors are logged and swallowed.
func (n *Notifier) Notify(text string) {
	if n == nil {
		return
	}
	if !n.limiter.Allow() {
		n.log.Debug("alert dropped by rate limit")
		return
	}
	if _, err := n.bot.Send(n.chat, text, tele.NoPreview); err != nil {
		n.log.Warn("alert send failed", logx.Err(err))
	}
}
