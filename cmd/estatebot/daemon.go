package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"estatebot/internal/agent"
	"estatebot/internal/bus"
	"estatebot/internal/channel"
	"estatebot/internal/config"
	"estatebot/internal/domain"
	"estatebot/internal/intent"
	"estatebot/internal/match"
	"estatebot/internal/media"
	"estatebot/internal/parse"
	"estatebot/internal/pipeline"
	"estatebot/internal/provider"
	"estatebot/internal/store"

	"github.com/spf13/cobra"
)

// bot holds everything the serve and chat commands wire together.
type bot struct {
	cfg        *config.Config
	bus        *bus.InMemoryBus
	store      *store.SQLiteStore
	dispatcher *agent.Dispatcher
}

func (b *bot) close() {
	b.bus.Close()
	if err := b.store.Close(); err != nil {
		logger.Warn("store close failed", "err", err)
	}
}

func buildBot(cfg *config.Config) (*bot, error) {
	setLogLevel(cfg.General.LogLevel)

	if err := os.MkdirAll(config.ExpandPath(cfg.General.DataDir), 0o755); err != nil {
		return nil, err
	}

	messageBus := bus.New(100, logger)

	recordStore, err := store.NewSQLiteStore(cfg.Store.DBPath, logger)
	if err != nil {
		return nil, err
	}

	prov := provider.NewOpenAI(provider.OpenAIConfig{
		APIKey:  cfg.Provider.APIKey,
		APIBase: cfg.Provider.APIBase,
		Model:   cfg.Provider.Model,
		Logger:  logger,
	})

	engine, err := buildEngine(cfg.Matching)
	if err != nil {
		return nil, err
	}

	fetcher := media.NewHTTPFetcher(media.FetcherConfig{
		Username: cfg.Channels.WhatsApp.AccountSID,
		Password: cfg.Channels.WhatsApp.AuthToken,
	})
	photos := media.NewDiskStore(cfg.Media.PhotosDir)

	pipelines := pipeline.New(pipeline.Deps{
		Parser:   parse.New(prov, cfg.Provider.Model, logger),
		Store:    recordStore,
		Fetcher:  fetcher,
		Photos:   photos,
		Engine:   engine,
		Provider: prov,
		Model:    cfg.Provider.Model,
		Logger:   logger,
	})

	classifier := intent.NewClassifier(prov, cfg.Provider.Model, logger)
	orchestrator := agent.NewOrchestrator(classifier, pipelines, logger)

	dispatcher := agent.NewDispatcher(agent.DispatcherConfig{
		Orchestrator: orchestrator,
		Bus:          messageBus,
		Store:        recordStore,
		Logger:       logger,
		Concurrency:  cfg.General.MaxConcurrentMessages,
	})

	return &bot{
		cfg:        cfg,
		bus:        messageBus,
		store:      recordStore,
		dispatcher: dispatcher,
	}, nil
}

func buildEngine(mc config.MatchingConfig) (*match.Engine, error) {
	engineCfg := match.DefaultConfig()
	if mc.GoodMatchThreshold > 0 {
		engineCfg.GoodMatchThreshold = mc.GoodMatchThreshold
	}
	if mc.PriceOverageTolerance > 0 {
		engineCfg.PriceOverageTolerance = mc.PriceOverageTolerance
	}
	if mc.TopMatches > 0 {
		engineCfg.TopMatches = mc.TopMatches
	}
	if mc.RegionsFile != "" {
		regions, err := match.LoadRegions(mc.RegionsFile)
		if err != nil {
			return nil, fmt.Errorf("load regions: %w", err)
		}
		engineCfg.Regions = regions
	}
	return match.NewEngine(engineCfg), nil
}

func setLogLevel(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := buildBot(cfg)
	if err != nil {
		return err
	}
	defer b.close()

	go b.dispatcher.Run(ctx)

	channels := enabledChannels(cfg)
	if len(channels) == 0 {
		return fmt.Errorf("no channels enabled, nothing to serve")
	}

	errCh := make(chan error, len(channels))
	for _, ch := range channels {
		go func(c domain.Channel) {
			logger.Info("starting channel", "name", c.Name())
			errCh <- c.Start(ctx, b.bus)
		}(ch)
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("channel failed: %w", err)
		}
		return nil
	}
}

func enabledChannels(cfg *config.Config) []domain.Channel {
	var channels []domain.Channel
	if cfg.Channels.WhatsApp.Enabled {
		channels = append(channels, channel.NewWhatsApp(channel.WhatsAppChannelConfig{
			Config:       cfg.Channels.WhatsApp,
			Logger:       logger,
			ServeMetrics: cfg.Metrics.Enabled,
		}))
	}
	if cfg.Channels.Telegram.Enabled {
		channels = append(channels, channel.NewTelegram(channel.TelegramChannelConfig{
			Token:     cfg.Channels.Telegram.Token,
			AllowFrom: cfg.Channels.Telegram.AllowFrom,
			Logger:    logger,
		}))
	}
	if cfg.Channels.CLI.Enabled {
		channels = append(channels, channel.NewCLI(channel.CLIChannelConfig{Logger: logger}))
	}
	return channels
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg := loadConfigOrDefaults()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := buildBot(cfg)
	if err != nil {
		return err
	}
	defer b.close()

	go b.dispatcher.Run(ctx)

	cliCh := channel.NewCLI(channel.CLIChannelConfig{Logger: logger})
	return cliCh.Start(ctx, b.bus)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Info("config", "path", cfgPath, "loaded", false)
		cfg = config.Defaults()
		cfg.ExpandPaths()
	} else {
		logger.Info("config", "path", cfgPath, "loaded", true)
	}

	ctx := context.Background()
	prov := provider.NewOpenAI(provider.OpenAIConfig{
		APIKey:  cfg.Provider.APIKey,
		APIBase: cfg.Provider.APIBase,
		Model:   cfg.Provider.Model,
		Logger:  logger,
	})
	if err := prov.Healthy(ctx); err != nil {
		logger.Info("provider", "name", prov.Name(), "healthy", false, "err", err)
	} else {
		logger.Info("provider", "name", prov.Name(), "healthy", true)
	}

	recordStore, err := store.NewSQLiteStore(cfg.Store.DBPath, logger)
	if err != nil {
		logger.Info("store", "path", cfg.Store.DBPath, "ok", false, "err", err)
		return nil
	}
	defer recordStore.Close()
	logger.Info("store", "path", cfg.Store.DBPath, "ok", true)
	return nil
}
