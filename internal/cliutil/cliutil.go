// Package cliutil holds the flags and setup shared by the command line tools.
package cliutil

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/carlmjohnson/versioninfo"
	"github.com/urfave/cli/v2"

	"srtools/internal/config"
	"srtools/internal/logger"
	"srtools/internal/reddit"
)

// Flags are accepted by every tool.
var Flags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Usage:   "path to YAML configuration file",
		EnvVars: []string{"SRTOOLS_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "site",
		Aliases: []string{"S"},
		Usage:   "site section of the configuration to use",
		EnvVars: []string{"REDDIT_SITE"},
	},
	&cli.StringFlag{
		Name:    "client-id",
		Aliases: []string{"i"},
		Usage:   "OAuth client id of the script app",
		EnvVars: []string{"REDDIT_CLIENT_ID"},
	},
	&cli.StringFlag{
		Name:    "client-secret",
		Aliases: []string{"k"},
		Usage:   "OAuth client secret of the script app",
		EnvVars: []string{"REDDIT_CLIENT_SECRET"},
	},
	&cli.StringFlag{
		Name:    "user",
		Aliases: []string{"u"},
		Usage:   "reddit username",
		EnvVars: []string{"REDDIT_USERNAME"},
	},
	&cli.StringFlag{
		Name:    "password",
		Aliases: []string{"p"},
		Usage:   "reddit password",
		EnvVars: []string{"REDDIT_PASSWORD"},
	},
	&cli.StringFlag{
		Name:    "token",
		Usage:   "use a pre-issued bearer token instead of the password grant",
		EnvVars: []string{"REDDIT_TOKEN"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "increase logging verbosity, repeat for debug output",
		Count:   new(int),
	},
}

// Version is the version string shown by --version.
func Version() string {
	return versioninfo.Short()
}

// Env is the configured runtime of one command invocation.
type Env struct {
	Config *config.Config
	Site   config.SiteConfig
	Logger *logger.Logger
	Client *reddit.Client
}

// Setup loads the configuration, applies flag overrides and builds the API
// client. The client is logged in so credential problems surface before
// any other work.
func Setup(cctx *cli.Context) (*Env, error) {
	cfg, err := config.LoadOrDefault(cctx.String("config"))
	if err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if n := cctx.Count("verbose"); n > 0 {
		level = logger.LevelFromVerbosity(n)
	}

	log := logger.NewLogger(level)

	name := cmp.Or(cctx.String("site"), cfg.DefaultSite)

	site, err := cfg.Site(name)
	if err != nil {
		return nil, err
	}

	override(&site.ClientID, cctx.String("client-id"))
	override(&site.ClientSecret, cctx.String("client-secret"))
	override(&site.Username, cctx.String("user"))
	override(&site.Password, cctx.String("password"))

	if site.UserAgent == config.DefaultUserAgent {
		site.UserAgent = "srtools/" + Version()
	}

	var opts []reddit.Option
	if token := cctx.String("token"); token != "" {
		opts = append(opts, reddit.WithToken(token))
	} else if err := site.ValidateCredentials(); err != nil {
		return nil, fmt.Errorf("site %s: %w", name, err)
	}

	client := reddit.NewClient(site, cfg.Retry, log, opts...)

	if err := client.Login(cctx.Context); err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	log.Debug("logged in", "site", name, "user", site.Username)

	return &Env{Config: cfg, Site: site, Logger: log, Client: client}, nil
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
