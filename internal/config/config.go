package config

import (
	"fmt"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"strings"
	"time"
)

type ReplyMode string

const (
	ReplyModeSync  ReplyMode = "sync"
	ReplyModeAsync ReplyMode = "async"
)

// Config is everything the butler reads from the environment.
// Credentials are optional, a route that needs a missing one fails at request time with an AuthError.
type Config struct {
	Port     int       `env:"PORT" envDefault:"5000"`
	LogLevel string    `env:"LOG_LEVEL" envDefault:"info"`
	Mode     ReplyMode `env:"REPLY_MODE" envDefault:"async"`

	// ShutdownTimeout bounds both the HTTP server shutdown and the async reply drain.
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	Twilio  TwilioConfig
	OpenAI  OpenAIConfig
	Graph   GraphConfig
	Notion  NotionConfig
	Audio   AudioConfig
	Workers WorkerConfig

	// VendorResultLimit is the $top / page_size sent to Graph and Notion.
	VendorResultLimit int `env:"VENDOR_RESULT_LIMIT" envDefault:"5"`
}

type TwilioConfig struct {
	AccountSid string `env:"TWILIO_SID"`
	AuthToken  string `env:"TWILIO_AUTH"`

	// ValidateSignature checks X-Twilio-Signature against PublicBaseURL + request path.
	ValidateSignature bool    `env:"TWILIO_VALIDATE_SIGNATURE" envDefault:"false"`
	PublicBaseURL     string  `env:"PUBLIC_BASE_URL"`
	SendRatePerSecond float64 `env:"TWILIO_SEND_RATE" envDefault:"1"`
	APIBaseURL        string  `env:"TWILIO_API_BASE_URL"`
}

type OpenAIConfig struct {
	APIKey             string `env:"OPENAI_API_KEY"`
	BaseURL            string `env:"OPENAI_BASE_URL"`
	ChatModel          string `env:"OPENAI_CHAT_MODEL" envDefault:"gpt-4o-mini"`
	TranscriptionModel string `env:"OPENAI_TRANSCRIPTION_MODEL" envDefault:"whisper-1"`
	Language           string `env:"TRANSCRIPTION_LANGUAGE"`
}

type GraphConfig struct {
	ClientID     string `env:"MS_CLIENT_ID"`
	ClientSecret string `env:"MS_CLIENT_SECRET"`
	TenantID     string `env:"MS_TENANT_ID"`
	Authority    string `env:"MS_AUTHORITY" envDefault:"https://login.microsoftonline.com"`
	BaseURL      string `env:"MS_GRAPH_BASE_URL" envDefault:"https://graph.microsoft.com/v1.0"`
	TokenCache   string `env:"MS_TOKEN_CACHE" envDefault:"token_cache.json"`

	// DeviceFlow allows the webhook to start an interactive device-code login when the cache is empty.
	DeviceFlow bool `env:"MS_DEVICE_FLOW" envDefault:"true"`
}

type NotionConfig struct {
	Token      string `env:"NOTION_TOKEN"`
	DatabaseID string `env:"NOTION_DATABASE_ID"`
	BaseURL    string `env:"NOTION_BASE_URL" envDefault:"https://api.notion.com/v1"`
}

type AudioConfig struct {
	FFmpegPath    string        `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	FFmpegTimeout time.Duration `env:"FFMPEG_TIMEOUT" envDefault:"30s"`
	SampleRate    int           `env:"AUDIO_SAMPLE_RATE" envDefault:"44100"`
	Channels      int           `env:"AUDIO_CHANNELS" envDefault:"2"`
}

type WorkerConfig struct {
	Count           int           `env:"ASYNC_WORKERS" envDefault:"4"`
	QueueSize       int           `env:"ASYNC_QUEUE_SIZE" envDefault:"64"`
	JobTimeout      time.Duration `env:"JOB_TIMEOUT" envDefault:"5m"`
	PlaceholderText string        `env:"PLACEHOLDER_TEXT" envDefault:"⏳ Einen Moment, ich kümmere mich darum ..."`
}

// Load reads the optional .env file and then the process environment.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			log.Warn().Str("env_file", envFile).Msg("Cannot load .env file")
		}
	}
	return FromEnvironment()
}

func FromEnvironment() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "cannot parse environment")
	}
	return cfg, nil
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Port < 1 || cfg.Port > 65535 {
		errs = append(errs, "PORT must be between 1 and 65535")
	}
	switch cfg.Mode {
	case ReplyModeSync, ReplyModeAsync:
	default:
		errs = append(errs, fmt.Sprintf("REPLY_MODE must be one of: %s, %s", ReplyModeSync, ReplyModeAsync))
	}
	if cfg.Workers.Count < 1 {
		errs = append(errs, "ASYNC_WORKERS must be >= 1")
	}
	if cfg.Workers.QueueSize < 1 {
		errs = append(errs, "ASYNC_QUEUE_SIZE must be >= 1")
	}
	if cfg.Workers.JobTimeout <= 0 {
		errs = append(errs, "JOB_TIMEOUT must be positive")
	}
	if cfg.ShutdownTimeout <= 0 {
		errs = append(errs, "SHUTDOWN_TIMEOUT must be positive")
	}
	if cfg.Audio.FFmpegTimeout <= 0 {
		errs = append(errs, "FFMPEG_TIMEOUT must be positive")
	}
	if cfg.Audio.SampleRate <= 0 || cfg.Audio.Channels <= 0 {
		errs = append(errs, "AUDIO_SAMPLE_RATE and AUDIO_CHANNELS must be positive")
	}
	if cfg.VendorResultLimit < 1 {
		errs = append(errs, "VENDOR_RESULT_LIMIT must be >= 1")
	}
	if cfg.Twilio.ValidateSignature && cfg.Twilio.PublicBaseURL == "" {
		errs = append(errs, "PUBLIC_BASE_URL is required when TWILIO_VALIDATE_SIGNATURE is on")
	}
	if cfg.Twilio.SendRatePerSecond <= 0 {
		errs = append(errs, "TWILIO_SEND_RATE must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Missing lists the recognized credentials that are not set, for a startup hint only.
func (c *Config) Missing() []string {
	var missing []string
	check := func(name, value string) {
		if value == "" {
			missing = append(missing, name)
		}
	}
	check("TWILIO_SID", c.Twilio.AccountSid)
	check("TWILIO_AUTH", c.Twilio.AuthToken)
	check("OPENAI_API_KEY", c.OpenAI.APIKey)
	check("MS_CLIENT_ID", c.Graph.ClientID)
	check("MS_TENANT_ID", c.Graph.TenantID)
	check("NOTION_TOKEN", c.Notion.Token)
	check("NOTION_DATABASE_ID", c.Notion.DatabaseID)
	return missing
}
