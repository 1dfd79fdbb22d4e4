package config

import (
	"github.com/spf13/pflag"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func defaults(t *testing.T) *Config {
	t.Helper()
	cfg, err := FromEnvironment()
	if err != nil {
		t.Fatalf("FromEnvironment: %v", err)
	}
	return cfg
}

func TestFromEnvironment_Defaults(t *testing.T) {
	cfg := defaults(t)
	if cfg.Port != 5000 {
		t.Errorf("expected port 5000, got %d", cfg.Port)
	}
	if cfg.Mode != ReplyModeAsync {
		t.Errorf("expected async mode, got %s", cfg.Mode)
	}
	if cfg.Audio.SampleRate != 44100 || cfg.Audio.Channels != 2 {
		t.Errorf("unexpected audio defaults %+v", cfg.Audio)
	}
	if cfg.Audio.FFmpegTimeout != 30*time.Second {
		t.Errorf("unexpected ffmpeg timeout %s", cfg.Audio.FFmpegTimeout)
	}
	if cfg.Graph.TokenCache != "token_cache.json" {
		t.Errorf("unexpected token cache %s", cfg.Graph.TokenCache)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestFromEnvironment_ReadsVariables(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("REPLY_MODE", "sync")
	t.Setenv("TWILIO_SID", "AC123")
	t.Setenv("FFMPEG_TIMEOUT", "5s")
	t.Setenv("MS_DEVICE_FLOW", "false")

	cfg := defaults(t)
	if cfg.Port != 8080 || cfg.Mode != ReplyModeSync {
		t.Errorf("unexpected %d %s", cfg.Port, cfg.Mode)
	}
	if cfg.Twilio.AccountSid != "AC123" {
		t.Errorf("unexpected sid %q", cfg.Twilio.AccountSid)
	}
	if cfg.Audio.FFmpegTimeout != 5*time.Second {
		t.Errorf("unexpected timeout %s", cfg.Audio.FFmpegTimeout)
	}
	if cfg.Graph.DeviceFlow {
		t.Error("device flow should be disabled")
	}
}

func TestFromEnvironment_BadValue(t *testing.T) {
	t.Setenv("PORT", "not-a-number")
	if _, err := FromEnvironment(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("NOTION_DATABASE_ID=db-from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	// godotenv never overrides, make sure the variable is unset afterwards
	t.Setenv("NOTION_DATABASE_ID", "")
	os.Unsetenv("NOTION_DATABASE_ID")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Notion.DatabaseID != "db-from-file" {
		t.Errorf("expected value from .env, got %q", cfg.Notion.DatabaseID)
	}
}

func TestLoad_MissingEnvFileIsNotFatal(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Fatalf("missing .env should only warn: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port zero", func(c *Config) { c.Port = 0 }},
		{"port too high", func(c *Config) { c.Port = 70000 }},
		{"unknown mode", func(c *Config) { c.Mode = "later" }},
		{"no workers", func(c *Config) { c.Workers.Count = 0 }},
		{"no queue", func(c *Config) { c.Workers.QueueSize = 0 }},
		{"no job timeout", func(c *Config) { c.Workers.JobTimeout = 0 }},
		{"no shutdown timeout", func(c *Config) { c.ShutdownTimeout = 0 }},
		{"no ffmpeg timeout", func(c *Config) { c.Audio.FFmpegTimeout = 0 }},
		{"bad channels", func(c *Config) { c.Audio.Channels = 0 }},
		{"bad limit", func(c *Config) { c.VendorResultLimit = 0 }},
		{"signature without url", func(c *Config) { c.Twilio.ValidateSignature = true }},
		{"bad send rate", func(c *Config) { c.Twilio.SendRatePerSecond = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults(t)
			tt.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestFlags_Apply(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags := RegisterFlags(fs)
	if err := fs.Parse([]string{"--port", "9000", "-m", "sync", "--log", "debug"}); err != nil {
		t.Fatal(err)
	}

	cfg := defaults(t)
	flags.Apply(cfg)
	if cfg.Port != 9000 || cfg.Mode != ReplyModeSync || cfg.LogLevel != "debug" {
		t.Errorf("flags not applied: %d %s %s", cfg.Port, cfg.Mode, cfg.LogLevel)
	}
	if flags.EnvFile != ".env" {
		t.Errorf("unexpected env file default %q", flags.EnvFile)
	}
}

func TestMissing(t *testing.T) {
	cfg := defaults(t)
	cfg.OpenAI.APIKey = "sk-test"
	for _, name := range cfg.Missing() {
		if name == "OPENAI_API_KEY" {
			t.Error("configured key reported as missing")
		}
	}
}
