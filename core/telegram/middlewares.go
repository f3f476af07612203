package telegram

import (
	"time"

	coreconfig "github.com/m3rciful/csbot/core/config"
	"github.com/m3rciful/csbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// DefaultMiddlewares returns the standard middleware chain: panic recovery,
// optional per-user rate limiting, and per-update receipt logging.
func DefaultMiddlewares(cfg *coreconfig.Config, onLimited tele.HandlerFunc) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
	}

	if cfg != nil && cfg.RateLimit.IntervalMS > 0 {
		var exempt int64
		if cfg.RateLimit.ExemptOperator {
			exempt = cfg.Support.OperatorID
		}
		mws = append(mws, Middleware{
			Name: "rate_limit",
			Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
				Interval:  time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond,
				ExemptID:  exempt,
				OnLimited: onLimited,
			}),
		})
	}

	mws = append(mws, Middleware{Name: "logger", Use: middleware.LoggerMiddleware})
	return mws
}
