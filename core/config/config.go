package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds transport settings shared by all run modes.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// SupportConfig describes the customer-service handoff behaviour: the single
// operator identity, the response timeout, and the fixed notice texts.
type SupportConfig struct {
	OperatorID int64 `yaml:"operator_id" envconfig:"CS_OPERATOR_ID"`
	// ResponseTimeoutSeconds bounds how long a user stays in waiting_cs
	// before being demoted back to the main menu.
	ResponseTimeoutSeconds int `yaml:"response_timeout_seconds" envconfig:"CS_RESPONSE_TIMEOUT_SECONDS"`

	WaitNotice    string `yaml:"wait_notice"`
	TimeoutNotice string `yaml:"timeout_notice"`
	// RequestNotice is sent to the operator; %s is replaced with the user id.
	RequestNotice string `yaml:"request_notice"`
	UsageError    string `yaml:"usage_error"`
	MenuText      string `yaml:"menu_text"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	KeysOrder string `yaml:"keys_order"`
	Dir       string `yaml:"dir"`
	BotFile   string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
}

const (
	// RunModeWebhook selects webhook mode for transport updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for transport updates.
	RunModeLongpoll = "longpoll"
)

// Default notice texts, preserved from the original deployment.
const (
	DefaultWaitNotice    = "Mohon tunggu, Anda akan segera terhubung dengan customer service kami."
	DefaultTimeoutNotice = "Maaf, customer service kami sedang sibuk. Silakan coba beberapa saat lagi."
	DefaultRequestNotice = "⚡ Ada permintaan chat baru dari %s"
	DefaultUsageError    = `Format pesan salah. Gunakan format: "User: <user_id>; Reply: <pesan>"`
	DefaultMenuText      = "Halo! Ketik /cs untuk terhubung dengan customer service kami."

	// DefaultResponseTimeout is applied when no timeout is configured.
	DefaultResponseTimeout = 5 * time.Minute
)

// RateLimitConfig holds settings for per-user rate limiting of inbound updates.
type RateLimitConfig struct {
	IntervalMS int `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	// ExemptOperator skips rate limiting for the CS operator so replies
	// are never dropped.
	ExemptOperator bool `yaml:"exempt_operator" envconfig:"RATE_LIMIT_EXEMPT_OPERATOR"`
}

// Config aggregates the configuration that belongs to the reusable core.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Support   SupportConfig   `yaml:"support"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ResponseTimeout returns the configured CS response timeout as a duration.
func (c *SupportConfig) ResponseTimeout() time.Duration {
	if c.ResponseTimeoutSeconds <= 0 {
		return DefaultResponseTimeout
	}
	return time.Duration(c.ResponseTimeoutSeconds) * time.Second
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}
	if cfg.Support.OperatorID == 0 {
		return fmt.Errorf("support.operator_id is required")
	}
	if cfg.Support.ResponseTimeoutSeconds < 0 {
		return fmt.Errorf("support.response_timeout_seconds must be >= 0")
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeLongpoll
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	if strings.TrimSpace(cfg.Support.WaitNotice) == "" {
		cfg.Support.WaitNotice = DefaultWaitNotice
	}
	if strings.TrimSpace(cfg.Support.TimeoutNotice) == "" {
		cfg.Support.TimeoutNotice = DefaultTimeoutNotice
	}
	if strings.TrimSpace(cfg.Support.RequestNotice) == "" {
		cfg.Support.RequestNotice = DefaultRequestNotice
	}
	if strings.TrimSpace(cfg.Support.UsageError) == "" {
		cfg.Support.UsageError = DefaultUsageError
	}
	if strings.TrimSpace(cfg.Support.MenuText) == "" {
		cfg.Support.MenuText = DefaultMenuText
	}
	if !strings.Contains(cfg.Support.RequestNotice, "%s") {
		return fmt.Errorf("support.request_notice must contain a %%s placeholder for the user id")
	}

	return nil
}
