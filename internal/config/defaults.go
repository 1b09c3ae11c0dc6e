package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			DataDir:               "~/.estatebot",
			LogLevel:              "info",
			MaxConcurrentMessages: 3,
		},
		Provider: ProviderConfig{
			APIBase: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
		},
		Channels: ChannelsConfig{
			WhatsApp: WhatsAppConfig{
				Enabled:     false,
				WebhookPath: "/webhook",
				Host:        "0.0.0.0",
				Port:        8080,
			},
			Telegram: TelegramConfig{
				Enabled: false,
			},
			CLI: CLIConfig{
				Enabled: true,
			},
		},
		Store: StoreConfig{
			DBPath: "~/.estatebot/estatebot.db",
		},
		Media: MediaConfig{
			PhotosDir: "~/.estatebot/photos",
		},
		Matching: MatchingConfig{
			GoodMatchThreshold:    65,
			PriceOverageTolerance: 0.10,
			TopMatches:            3,
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Endpoint: "/metrics",
		},
	}
}
