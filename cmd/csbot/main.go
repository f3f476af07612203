// csbot runs the customer-service handoff bot: it routes messages between
// end users and the single human CS operator over Telegram.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/jmoiron/sqlx"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/m3rciful/csbot/core/bootstrap"
	corecmd "github.com/m3rciful/csbot/core/cmd"
	coreconfig "github.com/m3rciful/csbot/core/config"
	coredatabase "github.com/m3rciful/csbot/core/database"
	"github.com/m3rciful/csbot/core/support"
	"github.com/m3rciful/csbot/core/support/audit"
	"github.com/m3rciful/csbot/core/support/session"
	coretelegram "github.com/m3rciful/csbot/core/telegram"
)

// appConfig extends the core configuration with the audit database section.
type appConfig struct {
	Core     coreconfig.Config   `yaml:",inline"`
	Database coredatabase.Config `yaml:"database"`
}

func (c *appConfig) CoreConfig() *coreconfig.Config {
	return &c.Core
}

func loadConfig(path string) (corecmd.ConfigCarrier, error) {
	var cfg appConfig

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
	if err := coreconfig.Normalize(&cfg.Core); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type app struct {
	cfg    *appConfig
	db     *sqlx.DB
	sender *coretelegram.Sender
	router *support.Router
	audit  *coredatabase.InteractionStore
}

func bootstrapApp(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg, ok := carrier.(*appConfig)
	if !ok {
		return nil, fmt.Errorf("unexpected config type %T", carrier)
	}

	result, err := bootstrap.Run(bootstrap.Options{
		Config:   &cfg.Core,
		Database: cfg.Database,
	})
	if err != nil {
		return nil, err
	}

	sender := coretelegram.NewSender()
	store := session.NewMemoryStore()

	var (
		interactions *coredatabase.InteractionStore
		recorder     audit.Recorder
	)
	if result.DB != nil {
		interactions = coredatabase.NewInteractionStore(result.DB)
		recorder = interactions
	}

	// Messages that are not CS traffic land here: show the main menu.
	menuText := cfg.Core.Support.MenuText
	fallback := func(ctx context.Context, msg support.Inbound) error {
		return sender.SendMessage(ctx, msg.From, menuText)
	}

	router := support.NewRouter(support.Options{
		OperatorID:      strconv.FormatInt(cfg.Core.Support.OperatorID, 10),
		ResponseTimeout: cfg.Core.Support.ResponseTimeout(),
		WaitNotice:      cfg.Core.Support.WaitNotice,
		TimeoutNotice:   cfg.Core.Support.TimeoutNotice,
		RequestNotice:   cfg.Core.Support.RequestNotice,
		UsageError:      cfg.Core.Support.UsageError,
	}, store, sender, fallback, recorder)

	return &app{
		cfg:    cfg,
		db:     result.DB,
		sender: sender,
		router: router,
		audit:  interactions,
	}, nil
}

func (a *app) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()

	supportOpts := coretelegram.SupportOptions{
		Config: &a.cfg.Core,
		Router: a.router,
	}
	if a.audit != nil {
		supportOpts.History = a.audit
	}

	coretelegram.BindSupport(reg, supportOpts)

	return coretelegram.RunOptions{
		Config:      &a.cfg.Core,
		Registry:    reg,
		Sender:      a.sender,
		Middlewares: coretelegram.DefaultMiddlewares(&a.cfg.Core, nil),
		Routes:      coretelegram.SupportRoutes(reg, supportOpts),
		OnStop: func(ctx context.Context, rt coretelegram.Runtime) error {
			if a.db != nil {
				return a.db.Close()
			}
			return nil
		},
	}, nil
}

func main() {
	err := corecmd.Run(corecmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig:        loadConfig,
		Bootstrap:         bootstrapApp,
	})
	if err != nil {
		log.Fatalf("csbot: %v", err)
	}
}
