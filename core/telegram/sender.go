package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/m3rciful/csbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// ErrNotConnected is returned when a send is attempted before the bot is up.
var ErrNotConnected = errors.New("telegram: bot not connected")

var tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)

// Sender adapts tele.Bot to the support router's outbound contract. It is
// bound to the bot instance by RunTelegram once the connection is built, so
// the router can be constructed first.
type Sender struct {
	bot atomic.Pointer[tele.Bot]
}

// NewSender returns an unbound Sender.
func NewSender() *Sender {
	return &Sender{}
}

// Bind attaches the live bot instance.
func (s *Sender) Bind(bot *tele.Bot) {
	s.bot.Store(bot)
}

// SendMessage delivers plain text to the chat identified by recipient.
// Sends are synchronous and never retried; callers decide what a failure
// means.
func (s *Sender) SendMessage(ctx context.Context, recipient, text string) error {
	bot := s.bot.Load()
	if bot == nil {
		return ErrNotConnected
	}

	id, err := strconv.ParseInt(recipient, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid recipient %q: %w", recipient, err)
	}

	start := time.Now()
	_, err = bot.Send(tele.ChatID(id), text)
	if err != nil {
		return fmt.Errorf("telegram: send to %s: %s", recipient, sanitizeErrorMessage(err))
	}

	logger.Debug(ctx, "tg.sender", "send.success",
		slog.String("user_id", recipient),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

// sanitizeErrorMessage prevents accidental leakage of bot tokens in logs.
func sanitizeErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if msg == "" {
		return ""
	}
	return tokenRe.ReplaceAllString(msg, "bot<redacted>")
}
