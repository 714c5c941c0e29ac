// Package app wires the entrypoint together and runs its startup sequence:
// server config, downloader credential, update, authentication, launch.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/auth"
	"github.com/dmitrijs2005/sessionkeeper/internal/config"
	"github.com/dmitrijs2005/sessionkeeper/internal/credentials"
	"github.com/dmitrijs2005/sessionkeeper/internal/launcher"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/dmitrijs2005/sessionkeeper/internal/netx"
	"github.com/dmitrijs2005/sessionkeeper/internal/notify"
	"github.com/dmitrijs2005/sessionkeeper/internal/oauth"
	"github.com/dmitrijs2005/sessionkeeper/internal/serverconfig"
	"github.com/dmitrijs2005/sessionkeeper/internal/session"
	"github.com/dmitrijs2005/sessionkeeper/internal/updater"
)

// NotifyGrace bounds the wait for outstanding notifications before launch.
const NotifyGrace = 5 * time.Second

const userAgent = "sessionkeeper/1"

type authRunner interface {
	EnsureDownloader(ctx context.Context) error
	Run(ctx context.Context) (auth.AuthState, error)
}

type updateRunner interface {
	Update(ctx context.Context) error
}

type serverRunner interface {
	Run(ctx context.Context, extraEnv []string) (int, error)
}

type App struct {
	config *config.Config
	logger logging.Logger

	prepare  func(ctx context.Context) error
	auth     authRunner
	updater  updateRunner
	launcher serverRunner
	notifier *notify.Async
}

// NewApp builds every component from cfg. Console output (device codes,
// downloader and server streams) goes to console.
func NewApp(ctx context.Context, cfg *config.Config, logger logging.Logger, console io.Writer) (*App, error) {
	logger = logging.Or(logger)
	if console == nil {
		console = os.Stdout
	}

	httpClient := netx.NewClient(netx.Options{
		Timeout:    cfg.HTTPTimeout,
		MaxRetries: uint64(cfg.HTTPRetries),
		Backoff:    cfg.HTTPBackoff,
		UserAgent:  userAgent,
	})

	store, err := newStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var async *notify.Async
	var notifier notify.Notifier
	if cfg.WebhookURL != "" {
		wh, err := notify.NewWebhook(cfg.WebhookURL, cfg.WebhookUsername, httpClient)
		if err != nil {
			return nil, err
		}
		async = notify.NewAsync(wh, logger)
		notifier = async
	}

	deps := auth.Deps{Store: store, Logger: logger}
	if cfg.AuthMode == config.AuthAuthenticated {
		oc, err := oauth.NewClient(oauth.Config{BaseURL: cfg.OAuthURL, ClientID: cfg.ClientID, Service: cfg.Service}, httpClient)
		if err != nil {
			return nil, err
		}
		ex, err := session.NewExchanger(session.Config{
			AccountURL:     cfg.AccountURL,
			SessionURL:     cfg.SessionURL,
			CredentialPath: cfg.ServerCredentialPath,
		}, httpClient, store, nil, logger)
		if err != nil {
			return nil, err
		}
		device, err := auth.NewDeviceAuthorizer(auth.DeviceOptions{
			Client:    oc,
			Exchanger: ex,
			Console:   console,
			Notifier:  notifier,
			Logger:    logger,
		})
		if err != nil {
			return nil, err
		}
		deps.Refresher, deps.Exchanger, deps.Device = oc, ex, device
	} else if oc, err := oauth.NewClient(oauth.Config{BaseURL: cfg.OAuthURL, ClientID: cfg.ClientID, Service: cfg.Service}, httpClient); err == nil {
		// the downloader credential still needs refreshing in open mode
		deps.Refresher = oc
	} else {
		logger.Warn(ctx, "oauth client unavailable, an expired downloader credential cannot be refreshed", "error", err)
	}

	orch := auth.NewOrchestrator(auth.Config{
		Mode:                     auth.Mode(cfg.AuthMode),
		SessionToken:             cfg.SessionToken,
		IdentityToken:            cfg.IdentityToken,
		ServerCredentialPath:     cfg.ServerCredentialPath,
		DownloaderCredentialPath: cfg.DownloaderCredentialPath,
		Interactive:              auth.Interactive(os.Stdin),
		NotifierConfigured:       notifier != nil,
	}, deps)

	up := updater.New(updater.Options{
		Mode:                 updater.Mode(cfg.UpdateMode),
		Command:              cfg.DownloaderCmd,
		ServerDir:            cfg.ServerDir,
		ServerJar:            cfg.ServerJar,
		CacheDir:             cfg.CacheDir(),
		DownloaderCredential: cfg.DownloaderCredentialPath,
		Runner:               updater.ExecRunner{Stdout: console, Stderr: os.Stderr},
		Logger:               logger,
	})

	ln := launcher.New(launcher.Options{
		JavaBin:    cfg.JavaBin,
		MinMemory:  cfg.MinMemory,
		MaxMemory:  cfg.MaxMemory,
		JVMArgs:    cfg.JVMArgs,
		ServerJar:  cfg.ServerJar,
		ServerArgs: cfg.ServerArgs,
		Dir:        cfg.ServerDir,
		Stdout:     console,
		Logger:     logger,
	})

	settings := serverconfig.Settings{
		ServerName: cfg.ServerName,
		Password:   cfg.ServerPassword,
		MaxPlayers: cfg.MaxPlayers,
		ViewRadius: cfg.ViewDistance,
	}

	return &App{
		config: cfg,
		logger: logger,
		prepare: func(ctx context.Context) error {
			return serverconfig.Ensure(ctx, cfg.ServerConfigPath, settings, logger)
		},
		auth:     orch,
		updater:  up,
		launcher: ln,
		notifier: async,
	}, nil
}

func newStore(ctx context.Context, cfg *config.Config, logger logging.Logger) (credentials.Store, error) {
	router := &credentials.Router{File: credentials.NewFileStore(logger)}
	if cfg.S3Configured() {
		s3, err := credentials.NewS3Store(ctx, credentials.S3Options{
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return nil, err
		}
		router.S3 = s3
	}
	return router, nil
}

// Run performs the startup sequence and then runs the server until it
// exits. The returned code is the server's; err is set when startup failed
// before the server could be launched.
func (app *App) Run(ctx context.Context) (int, error) {
	app.logger.Info(ctx, "starting entrypoint", "auth_mode", app.config.AuthMode, "update_mode", app.config.UpdateMode)

	if err := app.prepare(ctx); err != nil {
		return 1, fmt.Errorf("prepare server config: %w", err)
	}
	if err := app.auth.EnsureDownloader(ctx); err != nil {
		return 1, fmt.Errorf("downloader credential: %w", err)
	}
	if err := app.updater.Update(ctx); err != nil {
		return 1, fmt.Errorf("update: %w", err)
	}

	state, err := app.auth.Run(ctx)
	if err != nil {
		return 1, err
	}
	app.logger.Info(ctx, "authentication finished", "source", state.Source.String(), "authenticated", state.Authenticated())

	app.flushNotifications(ctx)

	if err := ctx.Err(); err != nil {
		return 1, err
	}
	return app.launcher.Run(ctx, state.Env())
}

func (app *App) flushNotifications(ctx context.Context) {
	if app.notifier == nil {
		return
	}
	waitCtx, cancel := context.WithTimeout(ctx, NotifyGrace)
	defer cancel()
	if !app.notifier.Wait(waitCtx) {
		app.logger.Warn(ctx, "notifications still pending, starting the server anyway")
	}
}
