package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultsValidate(t *testing.T) {
	if err := Validate(Defaults()); err != nil {
		t.Fatalf("Defaults fail validation: %v", err)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := Defaults()
	cfg.General.LogLevel = "debug"
	cfg.Matching.GoodMatchThreshold = 70
	cfg.Channels.Telegram.Enabled = true
	cfg.Channels.Telegram.Token = "tok"

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.General.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", loaded.General.LogLevel)
	}
	if loaded.Matching.GoodMatchThreshold != 70 {
		t.Errorf("GoodMatchThreshold = %d", loaded.Matching.GoodMatchThreshold)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("Load succeeded for missing file")
	}
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("ESTATEBOT_TEST_KEY", "secret-key")

	path := filepath.Join(t.TempDir(), "config.json")
	raw := `{"provider": {"apiKey": "${ESTATEBOT_TEST_KEY}"}}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider.APIKey != "secret-key" {
		t.Errorf("APIKey = %q, want expanded env value", cfg.Provider.APIKey)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("EB_SET", "value")
	os.Unsetenv("EB_UNSET")

	tests := []struct {
		in   string
		want string
	}{
		{"${EB_SET}", "value"},
		{"${EB_UNSET:-fallback}", "fallback"},
		{"${EB_SET:-fallback}", "value"},
		{"${EB_UNSET}", "${EB_UNSET}"}, // unset without default stays literal
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := ExpandEnvVars(tt.in); got != tt.want {
			t.Errorf("ExpandEnvVars(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		frag   string
	}{
		{"concurrency", func(c *Config) { c.General.MaxConcurrentMessages = 0 }, "maxConcurrentMessages"},
		{"whatsapp creds", func(c *Config) { c.Channels.WhatsApp.Enabled = true }, "accountSid"},
		{"telegram token", func(c *Config) { c.Channels.Telegram.Enabled = true }, "token"},
		{"threshold", func(c *Config) { c.Matching.GoodMatchThreshold = 150 }, "goodMatchThreshold"},
		{"tolerance", func(c *Config) { c.Matching.PriceOverageTolerance = 2 }, "priceOverageTolerance"},
		{"db path", func(c *Config) { c.Store.DBPath = "" }, "dbPath"},
	}
	for _, tt := range tests {
		cfg := Defaults()
		tt.mutate(cfg)
		err := Validate(cfg)
		if err == nil {
			t.Errorf("%s: Validate accepted invalid config", tt.name)
			continue
		}
		if !strings.Contains(err.Error(), tt.frag) {
			t.Errorf("%s: error %q does not mention %q", tt.name, err, tt.frag)
		}
	}
}

func TestExpandPathsOnDefaults(t *testing.T) {
	// Commands that fall back to Defaults() must not open "~/..." literally.
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}

	cfg := Defaults()
	cfg.ExpandPaths()

	for name, path := range map[string]string{
		"dataDir":   cfg.General.DataDir,
		"dbPath":    cfg.Store.DBPath,
		"photosDir": cfg.Media.PhotosDir,
	} {
		if strings.HasPrefix(path, "~") {
			t.Errorf("%s = %q, tilde not expanded", name, path)
		}
		if !strings.HasPrefix(path, home) {
			t.Errorf("%s = %q, want under %q", name, path, home)
		}
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	if got := ExpandPath("~/x/y"); got != filepath.Join(home, "x/y") {
		t.Errorf("ExpandPath = %q", got)
	}
	if got := ExpandPath("/abs/path"); got != "/abs/path" {
		t.Errorf("ExpandPath left absolute path alone: %q", got)
	}
}
