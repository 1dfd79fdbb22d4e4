// graph_login runs the Microsoft device-code login once and stores the token
// in MS_TOKEN_CACHE, so the webhook can work without an interactive login.
package main

import (
	"context"
	"fmt"
	"github.com/petrzlen/butler-golang/internal/config"
	"github.com/petrzlen/butler-golang/internal/utils"
	"github.com/petrzlen/butler-golang/pkg/graph"
	"github.com/petrzlen/butler-golang/pkg/notion"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"golang.org/x/oauth2"
	"net/http"
	"os"
	"os/signal"
	"time"
)

func main() {
	envFile := pflag.StringP("env", "e", ".env", "Env file path")
	listNotion := pflag.Bool("notion", false, "Also list the Notion databases shared with the integration")
	pflag.Parse()

	cfg, err := config.Load(*envFile)
	utils.Ftl(err)
	utils.SetupZerolog(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	httpClient := &http.Client{Timeout: 30 * time.Second}

	cache := graph.NewTokenCache(afero.NewOsFs(), cfg.Graph.TokenCache)
	deviceCode := graph.NewDeviceCode(cfg.Graph.Authority, cfg.Graph.TenantID, cfg.Graph.ClientID, cache, httpClient, true)
	deviceCode.Prompt = func(resp *oauth2.DeviceAuthResponse) {
		fmt.Printf("Open %s and enter the code %s\n", resp.VerificationURI, resp.UserCode)
	}

	tok, err := deviceCode.Login(ctx)
	utils.Ftl(err)
	log.Info().Str("cache", cache.Path()).Time("expiry", tok.Expiry).Msg("token stored")

	name, err := graph.NewClient(httpClient, cfg.Graph.BaseURL).Me(ctx, tok.AccessToken)
	utils.Ftl(err)
	fmt.Printf("Logged in as %s\n", name)

	if !*listNotion {
		return
	}
	databases, err := notion.NewClient(httpClient, cfg.Notion.BaseURL, cfg.Notion.Token, cfg.Notion.DatabaseID).Databases(ctx)
	if err != nil {
		utils.ErrLog(err, "cannot list Notion databases")
		return
	}
	for _, db := range databases {
		fmt.Printf("%s\t%s\n", db.ID, db.Title)
	}
}
