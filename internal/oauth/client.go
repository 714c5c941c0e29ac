// Package oauth talks to the account OAuth provider: refresh-token grants,
// device authorization requests, and device-code token polls.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/netx"
	"github.com/dmitrijs2005/sessionkeeper/internal/timex"
	"golang.org/x/oauth2"
)

const (
	DeviceAuthPath = "/oauth2/device/auth"
	TokenPath      = "/oauth2/token"

	DeviceCodeGrantType = "urn:ietf:params:oauth:grant-type:device_code"

	defaultTokenLifetime  = 3600 * time.Second
	defaultPollInterval   = 5 * time.Second
	defaultDeviceLifetime = 900 * time.Second
)

// Config describes the OAuth client. Service names the auth:<service> scope.
type Config struct {
	BaseURL  string
	ClientID string
	Service  string
	Clock    timex.Clock
}

type Client struct {
	oauth *oauth2.Config
	http  *netx.Client
	clock timex.Clock
}

func NewClient(cfg Config, httpClient *netx.Client) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("%w: oauth base url is required", common.ErrConfig)
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: oauth client id is required", common.ErrConfig)
	}
	if cfg.Service == "" {
		return nil, fmt.Errorf("%w: oauth service scope is required", common.ErrConfig)
	}
	if httpClient == nil {
		httpClient = netx.NewClient(netx.Options{})
	}

	return &Client{
		oauth: &oauth2.Config{
			ClientID: cfg.ClientID,
			Scopes:   []string{"openid", "offline", "auth:" + cfg.Service},
			Endpoint: oauth2.Endpoint{
				DeviceAuthURL: base + DeviceAuthPath,
				TokenURL:      base + TokenPath,
				AuthStyle:     oauth2.AuthStyleInParams,
			},
		},
		http:  httpClient,
		clock: timex.Or(cfg.Clock),
	}, nil
}

// Scope is the space-separated scope sent with device authorization.
func (c *Client) Scope() string {
	return strings.Join(c.oauth.Scopes, " ")
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        any    `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (r *tokenResponse) token(now time.Time) *oauth2.Token {
	lifetime := defaultTokenLifetime
	if s := seconds(r.ExpiresIn); s > 0 {
		lifetime = time.Duration(s) * time.Second
	}
	return &oauth2.Token{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
		Expiry:       now.Add(lifetime),
	}
}

// Refresh exchanges refreshToken for a new access token. When the provider
// does not rotate the refresh token, the input is carried forward.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, common.NewAuthError(common.ErrRefreshFailed, "no refresh token")
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", c.oauth.ClientID)
	form.Set("refresh_token", refreshToken)

	resp, err := c.http.PostForm(ctx, c.oauth.Endpoint.TokenURL, form)
	if err != nil {
		return nil, &common.AuthError{Kind: common.ErrRefreshFailed, Err: err}
	}

	var tr tokenResponse
	if jsonErr := json.Unmarshal(resp.Body, &tr); jsonErr != nil || !resp.OK() || tr.AccessToken == "" {
		return nil, common.NewAuthError(common.ErrRefreshFailed, netx.ProviderMessage(resp))
	}

	tok := tr.token(c.clock.Now())
	if tok.RefreshToken == "" {
		tok.RefreshToken = refreshToken
	}
	return tok, nil
}

type deviceResponse struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete"`
	Interval                any    `json:"interval"`
	ExpiresIn               any    `json:"expires_in"`
}

// RequestDeviceCode starts a device authorization grant. Expiry is computed
// from the client clock; Interval is in seconds.
func (c *Client) RequestDeviceCode(ctx context.Context) (*oauth2.DeviceAuthResponse, error) {
	form := url.Values{}
	form.Set("client_id", c.oauth.ClientID)
	form.Set("scope", c.Scope())

	resp, err := c.http.PostForm(ctx, c.oauth.Endpoint.DeviceAuthURL, form)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, &common.AuthError{Kind: common.ErrDeviceFlowExpired, Message: "device authorization request failed", Err: err}
	}

	var dr deviceResponse
	if jsonErr := json.Unmarshal(resp.Body, &dr); jsonErr != nil || !resp.OK() {
		return nil, common.NewAuthError(common.ErrDeviceFlowExpired, netx.ProviderMessage(resp))
	}
	if dr.DeviceCode == "" || dr.UserCode == "" {
		return nil, common.NewAuthError(common.ErrDeviceFlowExpired, "provider returned no device or user code")
	}

	interval := seconds(dr.Interval)
	if interval <= 0 {
		interval = int64(defaultPollInterval / time.Second)
	}
	lifetime := defaultDeviceLifetime
	if s := seconds(dr.ExpiresIn); s > 0 {
		lifetime = time.Duration(s) * time.Second
	}

	return &oauth2.DeviceAuthResponse{
		DeviceCode:              dr.DeviceCode,
		UserCode:                dr.UserCode,
		VerificationURI:         dr.VerificationURI,
		VerificationURIComplete: dr.VerificationURIComplete,
		Expiry:                  c.clock.Now().Add(lifetime),
		Interval:                interval,
	}, nil
}

// PollStatus is the provider's answer to one device-code token poll.
type PollStatus int

const (
	PollPending PollStatus = iota
	PollSlowDown
	PollAuthorized
	PollDenied
)

func (s PollStatus) String() string {
	switch s {
	case PollPending:
		return "authorization_pending"
	case PollSlowDown:
		return "slow_down"
	case PollAuthorized:
		return "authorized"
	case PollDenied:
		return "denied"
	}
	return "unknown"
}

// PollResult carries the token on PollAuthorized and the provider's error
// text on PollDenied.
type PollResult struct {
	Status  PollStatus
	Token   *oauth2.Token
	Message string
}

// PollDeviceToken makes a single device-code token request.
func (c *Client) PollDeviceToken(ctx context.Context, deviceCode string) (PollResult, error) {
	form := url.Values{}
	form.Set("grant_type", DeviceCodeGrantType)
	form.Set("client_id", c.oauth.ClientID)
	form.Set("device_code", deviceCode)

	resp, err := c.http.PostForm(ctx, c.oauth.Endpoint.TokenURL, form)
	if err != nil {
		return PollResult{}, err
	}

	var tr tokenResponse
	if err := json.Unmarshal(resp.Body, &tr); err != nil {
		return PollResult{Status: PollDenied, Message: netx.ProviderMessage(resp)}, nil
	}

	switch tr.Error {
	case "authorization_pending":
		return PollResult{Status: PollPending}, nil
	case "slow_down":
		return PollResult{Status: PollSlowDown}, nil
	case "":
		if tr.AccessToken != "" {
			return PollResult{Status: PollAuthorized, Token: tr.token(c.clock.Now())}, nil
		}
		return PollResult{Status: PollDenied, Message: "provider returned no access token"}, nil
	}

	msg := tr.ErrorDescription
	if msg == "" {
		msg = tr.Error
	}
	return PollResult{Status: PollDenied, Message: msg}, nil
}

// seconds reads a provider duration that may arrive as a number or string.
func seconds(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0
		}
		return parsed
	}
	return 0
}
