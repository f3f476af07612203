package telegram

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/csbot/core/config"
	"github.com/m3rciful/csbot/core/logger"
	"github.com/m3rciful/csbot/core/support"
	"github.com/m3rciful/csbot/core/support/audit"
	"github.com/m3rciful/csbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/csbot/core/telegram/helpers"
	"github.com/m3rciful/csbot/core/telegram/keyboard"
	"github.com/m3rciful/csbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

const contactCSCallback = "contact_cs"

// SupportOptions wires the support router and its operator tooling into the
// Telegram surface.
type SupportOptions struct {
	Config *coreconfig.Config
	Router *support.Router
	// History backs the operator /history command. Optional: without it the
	// command reports that history is unavailable.
	History audit.Reader
}

// BindSupport registers the CS handoff commands and callbacks on the registry.
func BindSupport(reg *Registry, opts SupportOptions) {
	cfg := opts.Config
	router := opts.Router

	reg.RegisterCommand("/start", commands.Command{
		Description: "Tampilkan menu utama",
		Aliases:     []string{"menu"},
		Handler:     menuHandler(cfg),
	})
	reg.RegisterCommand("/cs", commands.Command{
		Description: "Hubungi customer service",
		Handler: func(c tele.Context) error {
			ctx := tghelpers.WithHandler(c, "cs")
			router.StartChat(ctx, tghelpers.Address(c))
			return nil
		},
	})
	reg.RegisterCommand("/history", commands.Command{
		Description:  "Riwayat interaksi CS per user",
		OperatorOnly: true,
		Handler:      historyHandler(opts.History),
	})

	_ = reg.RegisterCallback(contactCSCallback, func(c tele.Context) error {
		ctx := tghelpers.WithHandler(c, "contact_cs")
		_ = c.Respond(&tele.CallbackResponse{})
		router.StartChat(ctx, tghelpers.Address(c))
		return nil
	})
}

// SupportRoutes converts the registry contents plus the text and callback
// entry points into bot routes for RunTelegram.
func SupportRoutes(reg *Registry, opts SupportOptions) []Route {
	routes := make([]Route, 0, len(reg.Commands())+2)

	operatorMW := middleware.OperatorOnlyMiddleware(middleware.OperatorOptions{
		OperatorID: opts.Config.Support.OperatorID,
	})

	for name, cmd := range reg.Commands() {
		handler := wrapHandler(strings.TrimPrefix(name, "/"), cmd.Handler)
		if cmd.OperatorOnly {
			handler = operatorMW(handler)
		}
		routes = append(routes, Route{Endpoint: name, Handler: handler})
		for _, alias := range cmd.Aliases {
			if !strings.HasPrefix(alias, "/") {
				alias = "/" + alias
			}
			routes = append(routes, Route{Endpoint: alias, Handler: handler})
		}
	}

	routes = append(routes,
		Route{Endpoint: tele.OnText, Handler: wrapHandler("text", textHandler(opts.Router))},
		Route{Endpoint: tele.OnCallback, Handler: wrapHandler("callback", callbackHandler(reg))},
	)
	return routes
}

// textHandler feeds every non-command text update into the support router.
// Messages the router does not claim go to its application fallback.
func textHandler(router *support.Router) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		msg := support.Inbound{
			From:   tghelpers.Address(c),
			FromMe: fromMe(c),
			Text:   c.Text(),
		}
		return router.HandleInbound(ctx, msg)
	}
}

func callbackHandler(reg *Registry) tele.HandlerFunc {
	return func(c tele.Context) error {
		cb := c.Callback()
		if cb == nil {
			return nil
		}
		unique, _ := parseCallback(cb.Data)
		if h, ok := reg.GetCallback(unique); ok {
			return h(c)
		}
		return reg.CallbackNotFound()(c)
	}
}

func menuHandler(cfg *coreconfig.Config) tele.HandlerFunc {
	return func(c tele.Context) error {
		tghelpers.WithHandler(c, "menu")
		markup := keyboard.InlineButtons([]keyboard.InlineBtn{
			{Text: "💬 Hubungi CS", Unique: contactCSCallback},
		})
		return tghelpers.SendWithKeyboard(c, cfg.Support.MenuText, markup)
	}
}

func historyHandler(history audit.Reader) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.WithHandler(c, "history")
		if history == nil {
			return tghelpers.SendText(c, "Riwayat interaksi tidak tersedia.")
		}

		userID := strings.TrimSpace(c.Message().Payload)
		if userID == "" {
			return tghelpers.SendText(c, "Gunakan: /history <user_id>")
		}

		items, err := history.RecentByUser(ctx, userID, 10)
		if err != nil {
			logger.ErrorWithContext(ctx, err, "tg.bridge", "historyHandler",
				slog.String("user_id", userID),
			)
			return tghelpers.SendText(c, "Gagal memuat riwayat interaksi.")
		}
		if len(items) == 0 {
			return tghelpers.SendText(c, fmt.Sprintf("Tidak ada riwayat interaksi untuk %s.", userID))
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Riwayat interaksi %s:\n", userID)
		for _, it := range items {
			fmt.Fprintf(&b, "%s  %s  %s\n",
				it.OccurredAt.Format("2006-01-02 15:04"),
				it.Type,
				logger.SanitizeLimit(it.Message, 120),
			)
		}
		return tghelpers.SendText(c, b.String())
	}
}

// fromMe reports whether the update echoes our own outbound traffic.
func fromMe(c tele.Context) bool {
	sender := c.Sender()
	return sender != nil && sender.IsBot
}

// parseCallback splits a raw callback payload of the form "\f<unique>|<data>".
func parseCallback(data string) (unique, payload string) {
	data = strings.TrimPrefix(data, "\f")
	if idx := strings.IndexByte(data, '|'); idx >= 0 {
		return data[:idx], data[idx+1:]
	}
	return data, ""
}

// wrapHandler emits one summary line per handler invocation.
func wrapHandler(name string, h tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.WithHandler(c, name)
		start := time.Now()
		err := h(c)

		attrs := []slog.Attr{
			slog.String("handler", name),
			slog.String("status", logger.Status(err)),
			slog.Duration("duration", logger.Took(start)),
		}
		if err != nil {
			attrs = append(attrs, slog.String("err", err.Error()))
		}
		logger.LogEvent(ctx, logger.Component("tg"), slog.LevelInfo, "handler.done", attrs...)
		return err
	}
}
