package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/credentials"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/dmitrijs2005/sessionkeeper/internal/notify"
	"github.com/dmitrijs2005/sessionkeeper/internal/oauth"
	"github.com/dmitrijs2005/sessionkeeper/internal/timex"
	"golang.org/x/oauth2"
)

// SlowDownStep is added to the poll interval on every slow_down answer.
const SlowDownStep = 5 * time.Second

// DeviceState is a step of the device authorization flow.
type DeviceState int

const (
	DeviceRequesting DeviceState = iota
	DeviceDisplaying
	DevicePolling
	DeviceAuthorized
	DeviceExpired
	DeviceDenied
)

func (s DeviceState) String() string {
	switch s {
	case DeviceRequesting:
		return "requesting"
	case DeviceDisplaying:
		return "displaying"
	case DevicePolling:
		return "polling"
	case DeviceAuthorized:
		return "authorized"
	case DeviceExpired:
		return "expired"
	case DeviceDenied:
		return "denied"
	}
	return "unknown"
}

// DeviceClient is the provider side of the device grant.
type DeviceClient interface {
	RequestDeviceCode(ctx context.Context) (*oauth2.DeviceAuthResponse, error)
	PollDeviceToken(ctx context.Context, deviceCode string) (oauth.PollResult, error)
}

// SessionExchanger turns OAuth tokens into a saved game session.
type SessionExchanger interface {
	Exchange(ctx context.Context, accessToken, refreshToken string) (*credentials.ServerCredential, error)
}

type DeviceOptions struct {
	Client    DeviceClient
	Exchanger SessionExchanger
	// Console receives the code and verification links. Nil discards.
	Console io.Writer
	// Notifier is nil when no notification channel is configured.
	Notifier notify.Notifier
	Clock    timex.Clock
	Logger   logging.Logger
	// Observe, if set, is called on every state change.
	Observe func(DeviceState)
}

// DeviceAuthorizer runs one device authorization grant to completion and
// exchanges the result for a game session.
type DeviceAuthorizer struct {
	client    DeviceClient
	exchanger SessionExchanger
	console   io.Writer
	notifier  notify.Notifier
	clock     timex.Clock
	logger    logging.Logger
	observe   func(DeviceState)
}

func NewDeviceAuthorizer(opts DeviceOptions) (*DeviceAuthorizer, error) {
	if opts.Client == nil || opts.Exchanger == nil {
		return nil, errors.New("device authorizer needs an oauth client and a session exchanger")
	}
	console := opts.Console
	if console == nil {
		console = io.Discard
	}
	observe := opts.Observe
	if observe == nil {
		observe = func(DeviceState) {}
	}

	return &DeviceAuthorizer{
		client:    opts.Client,
		exchanger: opts.Exchanger,
		console:   console,
		notifier:  opts.Notifier,
		clock:     timex.Or(opts.Clock),
		logger:    logging.Or(opts.Logger),
		observe:   observe,
	}, nil
}

// Authorize requests a device code, shows it, and polls until the operator
// approves, the provider refuses, or the code expires. Cancelling ctx stops
// polling and returns ctx.Err().
func (d *DeviceAuthorizer) Authorize(ctx context.Context) (*credentials.ServerCredential, error) {
	d.observe(DeviceRequesting)
	dar, err := d.client.RequestDeviceCode(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		d.observe(DeviceExpired)
		return nil, err
	}

	d.observe(DeviceDisplaying)
	d.display(ctx, dar)

	d.observe(DevicePolling)
	token, err := d.poll(ctx, dar)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case errors.Is(err, common.ErrDeviceFlowExpired):
			d.observe(DeviceExpired)
		default:
			d.observe(DeviceDenied)
		}
		return nil, err
	}

	d.observe(DeviceAuthorized)
	cred, err := d.exchanger.Exchange(ctx, token.AccessToken, token.RefreshToken)
	if err != nil {
		d.send(ctx, notify.Message{
			Title:       "Server authentication failed",
			Description: fmt.Sprintf("The sign-in was approved but no game session could be created: %v", err),
			Color:       notify.ColorFailure,
		})
		return nil, err
	}

	d.send(ctx, notify.Message{
		Title:       "Server authenticated",
		Description: fmt.Sprintf("Game session ready for profile %s.", cred.ProfileUsername),
		Color:       notify.ColorSuccess,
	})
	return cred, nil
}

func (d *DeviceAuthorizer) poll(ctx context.Context, dar *oauth2.DeviceAuthResponse) (*oauth2.Token, error) {
	poller := &timex.Poller{
		Clock:    d.clock,
		Interval: time.Duration(dar.Interval) * time.Second,
		Deadline: dar.Expiry,
	}

	var token *oauth2.Token
	err := poller.Poll(ctx, func(ctx context.Context) (bool, error) {
		res, err := d.client.PollDeviceToken(ctx, dar.DeviceCode)
		if err != nil {
			return false, err
		}

		switch res.Status {
		case oauth.PollPending:
			return false, nil
		case oauth.PollSlowDown:
			poller.Slow(SlowDownStep)
			d.logger.Debug(ctx, "provider asked to slow down", "interval", poller.Interval.String())
			return false, nil
		case oauth.PollAuthorized:
			token = res.Token
			return true, nil
		}
		return false, common.NewAuthError(common.ErrDeviceFlowDenied, res.Message)
	})

	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, timex.ErrDeadline):
		return nil, common.NewAuthError(common.ErrDeviceFlowExpired, "the code was not approved in time")
	case errors.Is(err, common.ErrDeviceFlowDenied), ctx.Err() != nil:
		return nil, err
	}
	return nil, &common.AuthError{Kind: common.ErrDeviceFlowDenied, Message: "token poll failed", Err: err}
}

func (d *DeviceAuthorizer) display(ctx context.Context, dar *oauth2.DeviceAuthResponse) {
	ttl := dar.Expiry.Sub(d.clock.Now()).Round(time.Second)

	fmt.Fprintln(d.console, "==================================================================")
	fmt.Fprintln(d.console, "Server authentication required")
	fmt.Fprintf(d.console, "  Visit:       %s\n", dar.VerificationURI)
	fmt.Fprintf(d.console, "  Enter code:  %s\n", dar.UserCode)
	if dar.VerificationURIComplete != "" {
		fmt.Fprintf(d.console, "  Or open:     %s\n", dar.VerificationURIComplete)
	}
	fmt.Fprintf(d.console, "  Expires in:  %s\n", ttl)
	fmt.Fprintln(d.console, "==================================================================")

	link := dar.VerificationURIComplete
	if link == "" {
		link = dar.VerificationURI
	}
	d.send(ctx, notify.Message{
		Title: "Server authentication required",
		Description: fmt.Sprintf("Open %s and enter code **%s**. The code expires in %s.",
			dar.VerificationURI, dar.UserCode, ttl),
		Color: notify.ColorInfo,
		URL:   link,
	})
}

func (d *DeviceAuthorizer) send(ctx context.Context, msg notify.Message) {
	if d.notifier == nil {
		return
	}
	if err := d.notifier.Notify(ctx, msg); err != nil {
		d.logger.Warn(ctx, "notification not delivered", "title", msg.Title, "error", err)
	}
}
