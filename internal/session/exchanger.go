// Package session turns an OAuth access token into a game session: it picks
// the account's first game profile, asks the session service for session
// and identity tokens, and persists the resulting server credential.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/credentials"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/dmitrijs2005/sessionkeeper/internal/netx"
	"github.com/dmitrijs2005/sessionkeeper/internal/timex"
	"github.com/google/uuid"
)

const (
	ProfilesPath   = "/my-account/get-profiles"
	NewSessionPath = "/game-session/new"

	fallbackLifetime = time.Hour
)

type Config struct {
	AccountURL     string
	SessionURL     string
	CredentialPath string
}

type Exchanger struct {
	cfg    Config
	http   *netx.Client
	store  credentials.Store
	clock  timex.Clock
	logger logging.Logger
}

func NewExchanger(cfg Config, httpClient *netx.Client, store credentials.Store, clock timex.Clock, logger logging.Logger) (*Exchanger, error) {
	cfg.AccountURL = strings.TrimRight(cfg.AccountURL, "/")
	cfg.SessionURL = strings.TrimRight(cfg.SessionURL, "/")
	if cfg.AccountURL == "" || cfg.SessionURL == "" {
		return nil, fmt.Errorf("%w: account and session urls are required", common.ErrConfig)
	}
	if cfg.CredentialPath == "" {
		return nil, fmt.Errorf("%w: server credential path is required", common.ErrConfig)
	}
	if store == nil {
		return nil, fmt.Errorf("credential store was nil")
	}
	if httpClient == nil {
		httpClient = netx.NewClient(netx.Options{})
	}

	return &Exchanger{
		cfg:    cfg,
		http:   httpClient,
		store:  store,
		clock:  timex.Or(clock),
		logger: logging.Or(logger),
	}, nil
}

// Profile is one game profile on the account.
type Profile struct {
	UUID     string `json:"uuid"`
	Username string `json:"username"`
}

type profilesResponse struct {
	Profiles []Profile `json:"profiles"`
}

type sessionRequest struct {
	UUID string `json:"uuid"`
}

type sessionResponse struct {
	SessionToken  string `json:"sessionToken"`
	IdentityToken string `json:"identityToken"`
	ExpiresAt     any    `json:"expiresAt"`
}

// Exchange fetches the first profile for accessToken, creates a game session
// for it, and saves the complete credential. A failed save is logged and the
// credential is still returned so the current run can use it.
func (e *Exchanger) Exchange(ctx context.Context, accessToken, refreshToken string) (*credentials.ServerCredential, error) {
	profile, err := e.firstProfile(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	resp, err := e.http.PostJSON(ctx, e.cfg.SessionURL+NewSessionPath, accessToken, sessionRequest{UUID: profile.UUID})
	if err != nil {
		return nil, &common.AuthError{Kind: common.ErrSessionCreateFailed, Err: err}
	}

	var sr sessionResponse
	if jsonErr := json.Unmarshal(resp.Body, &sr); jsonErr != nil || !resp.OK() || sr.SessionToken == "" || sr.IdentityToken == "" {
		return nil, common.NewAuthError(common.ErrSessionCreateFailed, netx.ProviderMessage(resp))
	}

	now := e.clock.Now()
	expiresAt, ok := ParseExpiry(sr.ExpiresAt)
	if !ok {
		e.logger.Warn(ctx, "session expiry unreadable, assuming one hour", "expires_at", fmt.Sprint(sr.ExpiresAt))
		expiresAt = now.Add(fallbackLifetime)
	}

	cred := &credentials.ServerCredential{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		SessionToken:     sr.SessionToken,
		IdentityToken:    sr.IdentityToken,
		ProfileUUID:      profile.UUID,
		ProfileUsername:  profile.Username,
		SessionExpiresAt: credentials.At(expiresAt),
	}

	if err := credentials.SaveServer(ctx, e.store, e.cfg.CredentialPath, cred); err != nil {
		e.logger.Warn(ctx, "game session obtained but could not be saved; it will not survive a restart",
			"path", e.cfg.CredentialPath, "error", err)
	} else {
		e.logger.Info(ctx, "game session saved", "profile", profile.Username, "profile_uuid", logging.Redact(profile.UUID), "expires_at", expiresAt.UTC().Format(time.RFC3339))
	}

	return cred, nil
}

func (e *Exchanger) firstProfile(ctx context.Context, accessToken string) (Profile, error) {
	resp, err := e.http.GetJSON(ctx, e.cfg.AccountURL+ProfilesPath, accessToken)
	if err != nil {
		return Profile{}, &common.AuthError{Kind: common.ErrNoProfile, Err: err}
	}

	var pr profilesResponse
	if jsonErr := json.Unmarshal(resp.Body, &pr); jsonErr != nil || !resp.OK() || len(pr.Profiles) == 0 {
		return Profile{}, common.NewAuthError(common.ErrNoProfile, netx.ProviderMessage(resp))
	}

	p := pr.Profiles[0]
	if id, err := uuid.Parse(p.UUID); err == nil {
		p.UUID = id.String()
	}
	if len(pr.Profiles) > 1 {
		e.logger.Info(ctx, "account has several profiles, using the first", "profile", p.Username, "count", len(pr.Profiles))
	}

	return p, nil
}

var expiryLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseExpiry reads the session service's expiresAt: an ISO-8601 timestamp,
// or a unix time in seconds or milliseconds.
func ParseExpiry(v any) (time.Time, bool) {
	switch x := v.(type) {
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range expiryLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return fromUnix(n)
		}
	case float64:
		return fromUnix(int64(x))
	}
	return time.Time{}, false
}

func fromUnix(n int64) (time.Time, bool) {
	if n <= 0 {
		return time.Time{}, false
	}
	if n > 1e12 {
		return time.UnixMilli(n), true
	}
	return time.Unix(n, 0), true
}
