package main

import (
	"context"
	"fmt"
	"github.com/petrzlen/butler-golang/internal/butler"
	"github.com/petrzlen/butler-golang/internal/config"
	"github.com/petrzlen/butler-golang/internal/networking"
	"github.com/petrzlen/butler-golang/internal/utils"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

func main() {
	flags := config.RegisterFlags(pflag.CommandLine)
	pflag.Parse()

	cfg, err := config.Load(flags.EnvFile)
	utils.Ftl(err)
	flags.Apply(cfg)
	utils.SetupZerolog(cfg.LogLevel)
	utils.Ftl(config.Validate(cfg))
	if missing := cfg.Missing(); len(missing) > 0 {
		log.Warn().Str("missing", strings.Join(missing, ",")).Msg("some credentials are not set, the routes using them will answer with an error")
	}

	app, err := butler.NewApp(cfg, afero.NewOsFs())
	utils.Ftl(err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := networking.NewServer(fmt.Sprintf(":%d", cfg.Port), app.Handler())
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return networking.ListenAndServe(egCtx, srv, cfg.ShutdownTimeout)
	})
	eg.Go(func() error {
		return app.Run(egCtx)
	})

	log.Info().Int("port", cfg.Port).Str("webhook", butler.WebhookPath).Str("mode", string(cfg.Mode)).Msg("butler listening")
	utils.Ftl(eg.Wait())
	log.Info().Msg("butler stopped")
}
