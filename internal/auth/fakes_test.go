package auth

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/credentials"
	"github.com/dmitrijs2005/sessionkeeper/internal/oauth"
	"golang.org/x/oauth2"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type scriptedDevice struct {
	dar     *oauth2.DeviceAuthResponse
	reqErr  error
	results []oauth.PollResult
	pollErr error

	requests int
	polls    int
}

func (s *scriptedDevice) RequestDeviceCode(context.Context) (*oauth2.DeviceAuthResponse, error) {
	s.requests++
	if s.reqErr != nil {
		return nil, s.reqErr
	}
	return s.dar, nil
}

func (s *scriptedDevice) PollDeviceToken(_ context.Context, deviceCode string) (oauth.PollResult, error) {
	i := s.polls
	s.polls++
	if s.pollErr != nil {
		return oauth.PollResult{}, s.pollErr
	}
	if i < len(s.results) {
		return s.results[i], nil
	}
	return oauth.PollResult{Status: oauth.PollPending}, nil
}

type fakeExchanger struct {
	cred *credentials.ServerCredential
	err  error

	calls   int
	access  string
	refresh string
}

func (f *fakeExchanger) Exchange(_ context.Context, accessToken, refreshToken string) (*credentials.ServerCredential, error) {
	f.calls++
	f.access, f.refresh = accessToken, refreshToken
	if f.err != nil {
		return nil, f.err
	}
	return f.cred, nil
}

type fakeRefresher struct {
	token *oauth2.Token
	err   error
	calls int
	got   string
}

func (f *fakeRefresher) Refresh(_ context.Context, refreshToken string) (*oauth2.Token, error) {
	f.calls++
	f.got = refreshToken
	if f.err != nil {
		return nil, f.err
	}
	return f.token, nil
}

type fakeAuthorizer struct {
	cred  *credentials.ServerCredential
	err   error
	calls int
}

func (f *fakeAuthorizer) Authorize(context.Context) (*credentials.ServerCredential, error) {
	f.calls++
	return f.cred, f.err
}

// countingStore records every access before delegating.
type countingStore struct {
	next credentials.Store

	mu    sync.Mutex
	loads int
	saves int
}

func (c *countingStore) Load(ctx context.Context, path string, v any) error {
	c.mu.Lock()
	c.loads++
	c.mu.Unlock()
	return c.next.Load(ctx, path, v)
}

func (c *countingStore) Save(ctx context.Context, path string, v any) error {
	c.mu.Lock()
	c.saves++
	c.mu.Unlock()
	return c.next.Save(ctx, path, v)
}

func sessionCred() *credentials.ServerCredential {
	return &credentials.ServerCredential{
		AccessToken:      "access",
		RefreshToken:     "refresh",
		SessionToken:     "session",
		IdentityToken:    "identity",
		ProfileUUID:      "5b0a4a6e-0a44-4a58-9c52-2d5f0e5b7c11",
		ProfileUsername:  "builder",
		SessionExpiresAt: credentials.At(epoch.Add(time.Hour)),
	}
}
