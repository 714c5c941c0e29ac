// Package common defines shared constants and sentinel errors used across
// the entrypoint packages. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// ErrConfig marks invalid required input. Fatal at startup.
	ErrConfig = errors.New("invalid configuration")

	// ErrCredentialUnavailable is returned by credential loads when the
	// document is missing or cannot be parsed. Always recoverable.
	ErrCredentialUnavailable = errors.New("credential unavailable")

	// ErrNotification wraps webhook delivery failures. Never fatal.
	ErrNotification = errors.New("notification failed")

	// Auth error kinds. An *AuthError matches its kind with errors.Is.
	ErrRefreshFailed       = errors.New("token refresh failed")
	ErrNoProfile           = errors.New("no game profile on account")
	ErrSessionCreateFailed = errors.New("game session creation failed")
	ErrDeviceFlowDenied    = errors.New("device authorization denied")
	ErrDeviceFlowExpired   = errors.New("device authorization expired")
)
