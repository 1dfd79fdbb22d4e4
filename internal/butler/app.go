// Package butler answers WhatsApp messages received through the Twilio webhook.
//
// Voice notes are transcribed first, the text is then routed by keyword to
// Microsoft Graph, Notion or a chat completion. In async mode the webhook only
// acknowledges and the real reply is sent through the Twilio Messages API.
package butler

import (
	"context"
	"github.com/petrzlen/butler-golang/internal/config"
	"github.com/petrzlen/butler-golang/internal/health"
	"github.com/petrzlen/butler-golang/internal/router"
	"github.com/petrzlen/butler-golang/pkg/agent"
	"github.com/petrzlen/butler-golang/pkg/audio_utils"
	"github.com/petrzlen/butler-golang/pkg/audioio"
	"github.com/petrzlen/butler-golang/pkg/graph"
	"github.com/petrzlen/butler-golang/pkg/notion"
	"github.com/petrzlen/butler-golang/pkg/transcriber"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
	"github.com/spf13/afero"
	"net/http"
	"time"
)

const WebhookPath = "/webhook"

type App struct {
	cfg        *config.Config
	webhook    *Webhook
	health     *health.Handler
	dispatcher Dispatcher

	// async is nil in sync mode.
	async *AsyncDispatcher
}

// NewApp wires every component from cfg. fs holds the per-request audio temp dirs and the Graph token cache.
func NewApp(cfg *config.Config, fs afero.Fs) (*App, error) {
	httpClient := &http.Client{Timeout: 30 * time.Second}

	openaiConfig := openai.DefaultConfig(cfg.OpenAI.APIKey)
	if cfg.OpenAI.BaseURL != "" {
		openaiConfig.BaseURL = cfg.OpenAI.BaseURL
	}
	openaiClient := openai.NewClientWithConfig(openaiConfig)

	ffmpeg := audio_utils.NewFFmpegConverter(cfg.Audio.FFmpegPath, cfg.Audio.SampleRate, cfg.Audio.Channels, cfg.Audio.FFmpegTimeout)
	pipeline := transcriber.NewPipeline(
		fs,
		"",
		audioio.NewTwilioMediaDownloader(httpClient, cfg.Twilio.AccountSid, cfg.Twilio.AuthToken),
		audio_utils.NewPCMConverter(fs, cfg.Audio.SampleRate, cfg.Audio.Channels, ffmpeg),
		transcriber.NewOpenAIWhisper(openaiClient, cfg.OpenAI.TranscriptionModel, cfg.OpenAI.Language),
	)

	r := router.NewDefault(router.Deps{
		Tokens: GraphTokens(cfg, fs, httpClient),
		Graph:  graph.NewClient(httpClient, cfg.Graph.BaseURL),
		Notes:  notion.NewClient(httpClient, cfg.Notion.BaseURL, cfg.Notion.Token, cfg.Notion.DatabaseID),
		Agent:  agent.NewOpenAIChatAgent(openaiClient, cfg.OpenAI.ChatModel),
		Limit:  cfg.VendorResultLimit,
	})
	processor := NewProcessor(pipeline, r)

	app := &App{cfg: cfg}
	switch cfg.Mode {
	case config.ReplyModeSync:
		app.dispatcher = NewSyncDispatcher(processor)
	case config.ReplyModeAsync:
		sender, err := audioio.NewTwilioSender(cfg.Twilio.AccountSid, cfg.Twilio.AuthToken, cfg.Twilio.SendRatePerSecond, cfg.Twilio.APIBaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "cannot create twilio sender")
		}
		app.async = NewAsyncDispatcher(processor, sender, AsyncConfig{
			Workers:     cfg.Workers.Count,
			QueueSize:   cfg.Workers.QueueSize,
			JobTimeout:  cfg.Workers.JobTimeout,
			Placeholder: cfg.Workers.PlaceholderText,

			DrainTimeout: cfg.ShutdownTimeout,
		})
		app.dispatcher = app.async
	default:
		return nil, errors.Errorf("unknown reply mode %q", cfg.Mode)
	}

	app.webhook = NewWebhook(app.dispatcher)
	if cfg.Twilio.ValidateSignature {
		app.webhook.WithSignatureValidation(cfg.Twilio.AuthToken, cfg.Twilio.PublicBaseURL)
	}

	app.health = health.New(
		health.Checker{Name: "ffmpeg", Check: ffmpeg.Available},
		health.Checker{Name: "openai", Check: func(context.Context) error {
			if cfg.OpenAI.APIKey == "" {
				return errors.New("OPENAI_API_KEY not set")
			}
			return nil
		}},
	)

	log.Info().Str("mode", string(cfg.Mode)).Int("vendor_limit", cfg.VendorResultLimit).Bool("validate_signature", cfg.Twilio.ValidateSignature).Msg("butler wired")
	return app, nil
}

// GraphTokens prefers client credentials when a secret is configured and falls back to the cached device login.
func GraphTokens(cfg *config.Config, fs afero.Fs, httpClient *http.Client) graph.TokenProvider {
	g := cfg.Graph
	cache := graph.NewTokenCache(fs, g.TokenCache)
	deviceCode := graph.NewDeviceCode(g.Authority, g.TenantID, g.ClientID, cache, httpClient, g.DeviceFlow)
	if g.ClientSecret == "" {
		return deviceCode
	}
	return graph.NewChain(
		graph.NewClientCredentials(g.Authority, g.TenantID, g.ClientID, g.ClientSecret, httpClient),
		deviceCode,
	)
}

func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(WebhookPath, a.webhook)
	a.health.Register(mux)
	return mux
}

// Run blocks until ctx is done, in async mode it also drains the reply queue.
func (a *App) Run(ctx context.Context) error {
	if a.async == nil {
		<-ctx.Done()
		return nil
	}
	return a.async.Run(ctx)
}
