package common

// Default environment variable names that pre-supply a game session.
const (
	SessionTokenEnv  = "SESSION_TOKEN"
	IdentityTokenEnv = "IDENTITY_TOKEN"
	ProfileUUIDEnv   = "OWNER_UUID"
)

// RequestIDHeader is attached to every outbound provider call.
const RequestIDHeader = "X-Request-Id"
