// Package auth decides how the game server gets its session: tokens handed
// in through the environment, a cached session, a refresh followed by a new
// session, or an operator-approved device authorization. Every failure on
// this path degrades to an unauthenticated start; only cancellation stops it.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/credentials"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/dmitrijs2005/sessionkeeper/internal/timex"
	"golang.org/x/oauth2"
)

// Mode selects whether the server authenticates against the game network.
type Mode string

const (
	ModeAuthenticated Mode = "authenticated"
	ModeOpen          Mode = "open"
)

// Config is the explicit input of one orchestrator run.
type Config struct {
	Mode Mode

	// SessionToken and IdentityToken pre-supply a session. Both must be
	// set for them to be used.
	SessionToken  string
	IdentityToken string

	ServerCredentialPath     string
	DownloaderCredentialPath string

	// Interactive is true when an operator watches the console.
	Interactive bool
	// NotifierConfigured is true when a notification channel exists.
	NotifierConfigured bool
}

// TokenRefresher runs refresh-token grants.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// Authorizer runs a full device authorization.
type Authorizer interface {
	Authorize(ctx context.Context) (*credentials.ServerCredential, error)
}

type Deps struct {
	Store     credentials.Store
	Refresher TokenRefresher
	Exchanger SessionExchanger
	Device    Authorizer
	Clock     timex.Clock
	Logger    logging.Logger
}

type Orchestrator struct {
	cfg    Config
	deps   Deps
	clock  timex.Clock
	logger logging.Logger
}

func NewOrchestrator(cfg Config, deps Deps) *Orchestrator {
	return &Orchestrator{
		cfg:    cfg,
		deps:   deps,
		clock:  timex.Or(deps.Clock),
		logger: logging.Or(deps.Logger).With("component", "auth"),
	}
}

// Run picks the first usable session source. The returned error is non-nil
// only when ctx was cancelled.
func (o *Orchestrator) Run(ctx context.Context) (AuthState, error) {
	if o.cfg.Mode != ModeAuthenticated {
		o.logger.Info(ctx, "auth mode is not authenticated, starting without a game session", "mode", string(o.cfg.Mode))
		return AuthState{Source: SourceNone}, nil
	}

	if st, ok := o.fromEnv(ctx); ok {
		return st, nil
	}

	cached, err := credentials.LoadServer(ctx, o.deps.Store, o.cfg.ServerCredentialPath)
	switch {
	case credentials.IsNotExist(err):
		o.logger.Info(ctx, "no stored game session", "path", o.cfg.ServerCredentialPath)
	case err != nil:
		o.logger.Warn(ctx, "stored game session is unreadable, authenticating again", "path", o.cfg.ServerCredentialPath, "error", err)
	}
	if cached.SessionValid(o.clock.Now()) {
		o.logger.Info(ctx, "using stored game session", "profile", cached.ProfileUsername,
			"expires_at", cached.SessionExpiresAt.Time().UTC().Format(time.RFC3339))
		return stateFrom(SourceCache, cached), nil
	}

	if cached != nil && cached.RefreshToken != "" {
		cred, err := o.refresh(ctx, cached.RefreshToken)
		if err == nil {
			return stateFrom(SourceRefresh, cred), nil
		}
		if ctx.Err() != nil {
			return AuthState{}, ctx.Err()
		}
		o.logger.Warn(ctx, "stored session could not be renewed", "error", err)
	}

	if o.cfg.Interactive || o.cfg.NotifierConfigured {
		if o.deps.Device == nil {
			o.logger.Warn(ctx, "device authorization is not available")
			return o.degraded(ctx), nil
		}
		cred, err := o.deps.Device.Authorize(ctx)
		if err == nil {
			o.logger.Info(ctx, "device authorization complete", "profile", cred.ProfileUsername)
			return stateFrom(SourceDeviceFlow, cred), nil
		}
		if ctx.Err() != nil {
			return AuthState{}, ctx.Err()
		}
		o.logger.Warn(ctx, "device authorization did not complete, starting without a game session", "error", err)
		o.logger.Warn(ctx, "players cannot join until the server is authenticated; run '/auth login device' in the server console or restart the container")
		return AuthState{Source: SourceNone}, nil
	}

	return o.degraded(ctx), nil
}

func (o *Orchestrator) fromEnv(ctx context.Context) (AuthState, bool) {
	st, it := o.cfg.SessionToken, o.cfg.IdentityToken
	if st == "" && it == "" {
		return AuthState{}, false
	}
	if st == "" || it == "" {
		o.logger.Warn(ctx, fmt.Sprintf("only one of %s and %s is set, ignoring both", common.SessionTokenEnv, common.IdentityTokenEnv))
		return AuthState{}, false
	}

	state := AuthState{Source: SourceEnv, SessionToken: st, IdentityToken: it}
	if exp, ok := tokenExpiry(it); ok {
		state.ExpiresAt = exp
		if !exp.After(o.clock.Now()) {
			o.logger.Warn(ctx, "supplied identity token has already expired, using it anyway", "expired_at", exp.UTC().Format(time.RFC3339))
		}
	}
	o.logger.Info(ctx, "using session tokens from the environment")
	return state, true
}

func (o *Orchestrator) refresh(ctx context.Context, refreshToken string) (*credentials.ServerCredential, error) {
	if o.deps.Refresher == nil || o.deps.Exchanger == nil {
		return nil, errors.New("token refresh is not configured")
	}

	tok, err := o.deps.Refresher.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	cred, err := o.deps.Exchanger.Exchange(ctx, tok.AccessToken, tok.RefreshToken)
	if err != nil {
		return nil, err
	}
	o.logger.Info(ctx, "game session renewed", "profile", cred.ProfileUsername)
	return cred, nil
}

func (o *Orchestrator) degraded(ctx context.Context) AuthState {
	o.logger.Warn(ctx, "no game session and nobody to approve a device code: this container is headless and has no notification webhook")
	o.logger.Warn(ctx, fmt.Sprintf("to authenticate: set %s and %s, mount a server credential at %s, configure a webhook, or run '/auth login device' in the server console",
		common.SessionTokenEnv, common.IdentityTokenEnv, o.cfg.ServerCredentialPath))
	return AuthState{Source: SourceNone}
}

func stateFrom(src Source, c *credentials.ServerCredential) AuthState {
	return AuthState{
		Source:          src,
		SessionToken:    c.SessionToken,
		IdentityToken:   c.IdentityToken,
		ProfileUUID:     c.ProfileUUID,
		ProfileUsername: c.ProfileUsername,
		ExpiresAt:       c.SessionExpiresAt.Time(),
	}
}

// EnsureDownloader refreshes the downloader credential in place when it is
// inside the refresh buffer. A missing document is left for the downloader's
// own first-run authorization. Failures are returned: without a working
// downloader credential no server files can be fetched.
func (o *Orchestrator) EnsureDownloader(ctx context.Context) error {
	path := o.cfg.DownloaderCredentialPath
	if path == "" {
		return nil
	}

	cred, err := credentials.LoadDownloader(ctx, o.deps.Store, path)
	if err != nil {
		if credentials.IsNotExist(err) {
			o.logger.Info(ctx, "no downloader credential yet, the downloader will ask for authorization", "path", path)
		} else {
			o.logger.Warn(ctx, "downloader credential is unreadable, leaving it to the downloader", "path", path, "error", err)
		}
		return nil
	}
	if !cred.Expired(o.clock.Now()) {
		o.logger.Debug(ctx, "downloader credential still valid", "expires_at", cred.ExpiresAt.Time().UTC().Format(time.RFC3339))
		return nil
	}
	if cred.RefreshToken == "" {
		return common.NewAuthError(common.ErrRefreshFailed,
			fmt.Sprintf("downloader credential at %s has expired and has no refresh token; delete it and authorize the downloader again", path))
	}
	if o.deps.Refresher == nil {
		return common.NewAuthError(common.ErrRefreshFailed,
			fmt.Sprintf("downloader credential at %s has expired and token refresh is not configured; set OAUTH_URL and OAUTH_CLIENT_ID", path))
	}

	tok, err := o.deps.Refresher.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		return err
	}

	cred.AccessToken = tok.AccessToken
	cred.RefreshToken = tok.RefreshToken
	cred.ExpiresAt = credentials.At(tok.Expiry)
	if err := credentials.SaveDownloader(ctx, o.deps.Store, path, cred); err != nil {
		return fmt.Errorf("save refreshed downloader credential: %w", err)
	}

	o.logger.Info(ctx, "downloader credential refreshed", "expires_at", tok.Expiry.UTC().Format(time.RFC3339))
	return nil
}
