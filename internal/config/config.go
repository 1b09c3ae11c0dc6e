// Package config loads, validates, and saves the bot's JSON configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the root configuration.
type Config struct {
	General  GeneralConfig  `json:"general"`
	Provider ProviderConfig `json:"provider"`
	Channels ChannelsConfig `json:"channels"`
	Store    StoreConfig    `json:"store"`
	Media    MediaConfig    `json:"media"`
	Matching MatchingConfig `json:"matching"`
	Metrics  MetricsConfig  `json:"metrics"`
}

type GeneralConfig struct {
	DataDir               string `json:"dataDir"`
	LogLevel              string `json:"logLevel"`
	MaxConcurrentMessages int    `json:"maxConcurrentMessages"`
}

type ProviderConfig struct {
	APIBase string `json:"apiBase,omitempty"`
	APIKey  string `json:"apiKey,omitempty"`
	Model   string `json:"model,omitempty"`
}

type ChannelsConfig struct {
	WhatsApp WhatsAppConfig `json:"whatsapp"`
	Telegram TelegramConfig `json:"telegram"`
	CLI      CLIConfig      `json:"cli"`
}

// WhatsAppConfig is the Twilio WhatsApp transport: an inbound webhook plus
// outbound sends through the Twilio REST API.
type WhatsAppConfig struct {
	Enabled     bool   `json:"enabled"`
	AccountSID  string `json:"accountSid,omitempty"`
	AuthToken   string `json:"authToken,omitempty"`
	FromNumber  string `json:"fromNumber,omitempty"` // e.g. "whatsapp:+14155238886"
	WebhookPath string `json:"webhookPath,omitempty"`
	Host        string `json:"host,omitempty"`
	Port        int    `json:"port,omitempty"`
}

type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token,omitempty"`
	AllowFrom []string `json:"allowFrom,omitempty"`
}

type CLIConfig struct {
	Enabled bool `json:"enabled"`
}

type StoreConfig struct {
	DBPath string `json:"dbPath"`
}

type MediaConfig struct {
	PhotosDir string `json:"photosDir"`
}

// MatchingConfig tunes the scoring engine. Zero values fall back to the
// engine defaults in Load.
type MatchingConfig struct {
	GoodMatchThreshold    int     `json:"goodMatchThreshold"`
	PriceOverageTolerance float64 `json:"priceOverageTolerance"`
	TopMatches            int     `json:"topMatches"`
	RegionsFile           string  `json:"regionsFile,omitempty"`
}

type MetricsConfig struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint,omitempty"`
}

// DefaultConfigDir returns the default config directory (~/.estatebot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".estatebot"
	}
	return filepath.Join(home, ".estatebot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	// A .env next to the working directory feeds ${VAR} expansion below.
	_ = godotenv.Load()

	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.ExpandPaths()

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has usable values.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.General.MaxConcurrentMessages < 1 || cfg.General.MaxConcurrentMessages > 100 {
		errs = append(errs, "general.maxConcurrentMessages must be between 1 and 100")
	}
	if cfg.Channels.WhatsApp.Port < 0 || cfg.Channels.WhatsApp.Port > 65535 {
		errs = append(errs, "channels.whatsapp.port must be between 0 and 65535")
	}
	if cfg.Channels.WhatsApp.Enabled {
		if cfg.Channels.WhatsApp.AccountSID == "" || cfg.Channels.WhatsApp.AuthToken == "" {
			errs = append(errs, "channels.whatsapp: accountSid and authToken are required when enabled")
		}
		if cfg.Channels.WhatsApp.FromNumber == "" {
			errs = append(errs, "channels.whatsapp: fromNumber is required when enabled")
		}
	}
	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token == "" {
		errs = append(errs, "channels.telegram: token is required when enabled")
	}
	if cfg.Store.DBPath == "" {
		errs = append(errs, "store.dbPath must not be empty")
	}
	if cfg.Matching.GoodMatchThreshold < 0 || cfg.Matching.GoodMatchThreshold > 100 {
		errs = append(errs, "matching.goodMatchThreshold must be between 0 and 100")
	}
	if cfg.Matching.PriceOverageTolerance < 0 || cfg.Matching.PriceOverageTolerance > 1 {
		errs = append(errs, "matching.priceOverageTolerance must be between 0 and 1")
	}
	if cfg.Matching.TopMatches < 1 {
		errs = append(errs, "matching.topMatches must be >= 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPaths resolves every path field in place. Load applies it after
// parsing; callers that start from Defaults() without a config file must
// apply it themselves before touching the filesystem.
func (c *Config) ExpandPaths() {
	c.General.DataDir = ExpandPath(c.General.DataDir)
	c.Store.DBPath = ExpandPath(c.Store.DBPath)
	c.Media.PhotosDir = ExpandPath(c.Media.PhotosDir)
	c.Matching.RegionsFile = ExpandPath(c.Matching.RegionsFile)
}

// ExpandPath resolves a leading ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
