package logger

import "strings"

const (
	// LevelDebug represents the debug severity level name.
	LevelDebug = "DEBUG"
	// LevelInfo represents the info severity level name.
	LevelInfo = "INFO"
	// LevelWarn represents the warning severity level name.
	LevelWarn = "WARN"
	// LevelError represents the error severity level name.
	LevelError = "ERROR"
)

var allowedLevels = map[string]string{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
}

var allowedStatus = map[string]string{
	"ok":        "ok",
	"fail":      "fail",
	"skip":      "skip",
	"cancelled": "cancelled",
}

var allowedInteraction = map[string]string{
	"cs_to_user":   "cs_to_user",
	"user_to_cs":   "user_to_cs",
	"chat_request": "chat_request",
	"chat_accept":  "chat_accept",
	"chat_close":   "chat_close",
	"cs_timeout":   "cs_timeout",
}

func normalizeLevel(level string) string {
	if level == "" {
		return LevelInfo
	}
	if mapped, ok := allowedLevels[strings.ToLower(level)]; ok {
		return mapped
	}
	return strings.ToUpper(level)
}

func normalizeStatus(status string) (string, bool) {
	status = strings.ToLower(strings.TrimSpace(status))
	if status == "" {
		return "", false
	}
	if mapped, ok := allowedStatus[status]; ok {
		return mapped, true
	}
	return status, false
}

func normalizeInteraction(kind string) (string, bool) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind == "" {
		return "", false
	}
	val, ok := allowedInteraction[kind]
	return val, ok
}

var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"ts_unix_nano",
	"update_id",
	"chat_id",
	"user_id",
	"cs_id",
	"interaction_type",
	"old_state",
	"new_state",
	"state",
	"handler",
	"operation",
	"service",
	"method",
	"mode",
	"listen",
	"public_url",
	"db",
	"host",
	"port",
	"duration_ms",
	"timeout_ms",
	"message",
	"err",
	"err_code",
	"cause",
}
