package logger

import (
	"context"
	"log/slog"
)

// The helpers below emit the fixed event shapes the support router relies on:
// state_change, cs_interaction, and error-with-context lines.

// StateChange records a session state transition for a user.
func StateChange(ctx context.Context, userID, oldState, newState string) {
	LogEvent(ctx, SES, slog.LevelInfo, "state_change",
		slog.String("user_id", userID),
		slog.String("old_state", oldState),
		slog.String("new_state", newState),
	)
}

// CSInteraction records a message crossing the user/operator boundary.
func CSInteraction(ctx context.Context, interactionType, userID, csID, message string) {
	LogEvent(ctx, SUP, slog.LevelInfo, "cs_interaction",
		slog.String("interaction_type", interactionType),
		slog.String("user_id", userID),
		slog.String("cs_id", csID),
		slog.String("message", SanitizeLimit(message, 256)),
	)
}

// ErrorWithContext records a swallowed failure with its originating service and method.
func ErrorWithContext(ctx context.Context, err error, service, method string, attrs ...slog.Attr) {
	if err == nil {
		return
	}
	all := append([]slog.Attr{
		slog.String("service", service),
		slog.String("method", method),
		slog.String("err", SanitizeLimit(err.Error(), 256)),
	}, attrs...)
	LogEvent(ctx, Component(service), slog.LevelError, "error", all...)
}
