package auth

import (
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
)

// Source tells where the exported session came from.
type Source int

const (
	SourceNone Source = iota
	SourceEnv
	SourceCache
	SourceRefresh
	SourceDeviceFlow
)

func (s Source) String() string {
	switch s {
	case SourceNone:
		return "none"
	case SourceEnv:
		return "env"
	case SourceCache:
		return "cache"
	case SourceRefresh:
		return "refresh"
	case SourceDeviceFlow:
		return "device"
	}
	return "unknown"
}

// AuthState is the outcome of one orchestrator run. A SourceNone state
// carries no tokens and the server starts unauthenticated.
type AuthState struct {
	Source          Source
	SessionToken    string
	IdentityToken   string
	ProfileUUID     string
	ProfileUsername string
	// ExpiresAt is zero when unknown.
	ExpiresAt time.Time
}

// Authenticated reports whether both session tokens are present.
func (s AuthState) Authenticated() bool {
	return s.SessionToken != "" && s.IdentityToken != ""
}

// Env renders the state as KEY=value pairs for the game process.
func (s AuthState) Env() []string {
	if !s.Authenticated() {
		return nil
	}
	env := []string{
		common.SessionTokenEnv + "=" + s.SessionToken,
		common.IdentityTokenEnv + "=" + s.IdentityToken,
	}
	if s.ProfileUUID != "" {
		env = append(env, common.ProfileUUIDEnv+"="+s.ProfileUUID)
	}
	return env
}
