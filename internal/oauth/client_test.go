package oauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/netx"
	"github.com/dmitrijs2005/sessionkeeper/internal/timex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *timex.FakeClock) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	clock := timex.NewFakeClock(epoch)
	c, err := NewClient(Config{BaseURL: srv.URL, ClientID: "game-server", Service: "game", Clock: clock},
		netx.NewClient(netx.Options{HTTPClient: srv.Client()}))
	require.NoError(t, err)
	return c, clock
}

func TestNewClient_Validates(t *testing.T) {
	_, err := NewClient(Config{ClientID: "c", Service: "s"}, nil)
	require.ErrorIs(t, err, common.ErrConfig)

	_, err = NewClient(Config{BaseURL: "http://x", Service: "s"}, nil)
	require.ErrorIs(t, err, common.ErrConfig)

	_, err = NewClient(Config{BaseURL: "http://x", ClientID: "c"}, nil)
	require.ErrorIs(t, err, common.ErrConfig)

	c, err := NewClient(Config{BaseURL: "http://x/", ClientID: "c", Service: "game"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "openid offline auth:game", c.Scope())
}

func TestRefresh_Success(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, TokenPath, r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "game-server", r.Form.Get("client_id"))
		assert.Equal(t, "r1", r.Form.Get("refresh_token"))
		_, _ = w.Write([]byte(`{"access_token":"a2","refresh_token":"r2","expires_in":1800}`))
	})

	tok, err := c.Refresh(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "a2", tok.AccessToken)
	assert.Equal(t, "r2", tok.RefreshToken)
	assert.Equal(t, epoch.Add(30*time.Minute), tok.Expiry)
}

func TestRefresh_NotRotatedCarriesRefreshTokenForward(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"a2"}`))
	})

	tok, err := c.Refresh(context.Background(), "keep-me")
	require.NoError(t, err)
	assert.Equal(t, "keep-me", tok.RefreshToken)
	assert.Equal(t, epoch.Add(time.Hour), tok.Expiry, "expires_in defaults to 3600")
}

func TestRefresh_StringExpiresIn(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"a2","expires_in":"60"}`))
	})

	tok, err := c.Refresh(context.Background(), "r")
	require.NoError(t, err)
	assert.Equal(t, epoch.Add(time.Minute), tok.Expiry)
}

func TestRefresh_MissingAccessTokenFails(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"rejected grant", http.StatusBadRequest, `{"error":"invalid_grant","error_description":"refresh token revoked"}`, "refresh token revoked"},
		{"200 with error", http.StatusOK, `{"error":"invalid_grant"}`, "invalid_grant"},
		{"non json", http.StatusOK, `oops`, "200 OK"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.Refresh(context.Background(), "r")
			require.ErrorIs(t, err, common.ErrRefreshFailed)

			var ae *common.AuthError
			require.True(t, errors.As(err, &ae))
			assert.Equal(t, tt.message, ae.Message)
		})
	}
}

func TestRefresh_EmptyInput(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := c.Refresh(context.Background(), "")
	require.ErrorIs(t, err, common.ErrRefreshFailed)
}

func TestRequestDeviceCode_Defaults(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DeviceAuthPath, r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "openid offline auth:game", r.Form.Get("scope"))
		assert.Equal(t, "game-server", r.Form.Get("client_id"))
		_, _ = w.Write([]byte(`{"device_code":"dc","user_code":"ABCD-EFGH","verification_uri":"https://x/device","verification_uri_complete":"https://x/device?user_code=ABCD-EFGH"}`))
	})

	da, err := c.RequestDeviceCode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "dc", da.DeviceCode)
	assert.Equal(t, "ABCD-EFGH", da.UserCode)
	assert.Equal(t, int64(5), da.Interval)
	assert.Equal(t, epoch.Add(900*time.Second), da.Expiry)
}

func TestRequestDeviceCode_ExplicitTiming(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"device_code":"dc","user_code":"U","interval":2,"expires_in":"120"}`))
	})

	da, err := c.RequestDeviceCode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), da.Interval)
	assert.Equal(t, epoch.Add(2*time.Minute), da.Expiry)
}

func TestRequestDeviceCode_MissingCodesExpiresImmediately(t *testing.T) {
	for _, body := range []string{`{"user_code":"U"}`, `{"device_code":"D"}`, `{}`} {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		})

		_, err := c.RequestDeviceCode(context.Background())
		require.ErrorIs(t, err, common.ErrDeviceFlowExpired, body)
	}
}

func TestRequestDeviceCode_ProviderError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
	})

	_, err := c.RequestDeviceCode(context.Background())
	require.ErrorIs(t, err, common.ErrDeviceFlowExpired)
	assert.Contains(t, err.Error(), "invalid_client")
}

func TestPollDeviceToken_Interpretation(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    PollStatus
		message string
	}{
		{"pending", http.StatusBadRequest, `{"error":"authorization_pending"}`, PollPending, ""},
		{"slow down", http.StatusBadRequest, `{"error":"slow_down"}`, PollSlowDown, ""},
		{"authorized", http.StatusOK, `{"access_token":"a","refresh_token":"r"}`, PollAuthorized, ""},
		{"denied with description", http.StatusBadRequest, `{"error":"access_denied","error_description":"user said no"}`, PollDenied, "user said no"},
		{"expired token code", http.StatusBadRequest, `{"error":"expired_token"}`, PollDenied, "expired_token"},
		{"no token no error", http.StatusOK, `{}`, PollDenied, "provider returned no access token"},
		{"non json", http.StatusBadGateway, `<html>`, PollDenied, "502 Bad Gateway"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				require.NoError(t, r.ParseForm())
				assert.Equal(t, DeviceCodeGrantType, r.Form.Get("grant_type"))
				assert.Equal(t, "dc", r.Form.Get("device_code"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			res, err := c.PollDeviceToken(context.Background(), "dc")
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Status, res.Status.String())
			assert.Equal(t, tt.message, res.Message)
			if tt.want == PollAuthorized {
				require.NotNil(t, res.Token)
				assert.Equal(t, "a", res.Token.AccessToken)
				assert.Equal(t, "r", res.Token.RefreshToken)
			}
		})
	}
}
