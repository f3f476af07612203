package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{Token: "123:abc"},
		Support:  SupportConfig{OperatorID: 999},
	}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := validConfig()
	if err := Normalize(cfg); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run mode = %s, want %s", cfg.Telegram.RunMode, RunModeLongpoll)
	}
	if cfg.Support.WaitNotice != DefaultWaitNotice {
		t.Fatalf("wait notice = %q, want default", cfg.Support.WaitNotice)
	}
	if cfg.Support.TimeoutNotice != DefaultTimeoutNotice {
		t.Fatalf("timeout notice = %q, want default", cfg.Support.TimeoutNotice)
	}
	if cfg.Support.UsageError != DefaultUsageError {
		t.Fatalf("usage error = %q, want default", cfg.Support.UsageError)
	}
	if got := cfg.Support.ResponseTimeout(); got != DefaultResponseTimeout {
		t.Fatalf("response timeout = %v, want %v", got, DefaultResponseTimeout)
	}
}

func TestNormalizeRequiresToken(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.Token = ""
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for missing token")
	}
}

func TestNormalizeRequiresOperator(t *testing.T) {
	cfg := validConfig()
	cfg.Support.OperatorID = 0
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for missing operator id")
	}
}

func TestNormalizeRunModeAliasAndValidation(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.RunMode = "Polling"
	if err := Normalize(cfg); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run mode = %s, want %s", cfg.Telegram.RunMode, RunModeLongpoll)
	}

	cfg = validConfig()
	cfg.Telegram.RunMode = "carrier-pigeon"
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for unknown run mode")
	}
}

func TestNormalizeWebhookRequiresEndpoint(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.RunMode = RunModeWebhook
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for webhook mode without url")
	}

	cfg = validConfig()
	cfg.Telegram.RunMode = RunModeWebhook
	cfg.Webhook = WebhookConfig{URL: "https://bot.example.com/hook", Listen: "0.0.0.0", Port: 8443}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
}

func TestNormalizeRequestNoticePlaceholder(t *testing.T) {
	cfg := validConfig()
	cfg.Support.RequestNotice = "new chat request"
	err := Normalize(cfg)
	if err == nil {
		t.Fatal("expected error for request notice without placeholder")
	}
	if !strings.Contains(err.Error(), "request_notice") {
		t.Fatalf("err = %v, want mention of request_notice", err)
	}
}

func TestResponseTimeoutFromSeconds(t *testing.T) {
	cfg := SupportConfig{ResponseTimeoutSeconds: 90}
	if got := cfg.ResponseTimeout(); got != 90*time.Second {
		t.Fatalf("response timeout = %v, want 90s", got)
	}
}
