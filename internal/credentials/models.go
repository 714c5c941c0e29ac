// Package credentials persists the two credential documents the entrypoint
// shares with its collaborators: the downloader credential and the server
// (game session) credential.
package credentials

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"time"
)

// RefreshBuffer is how long before expiry a credential is already treated
// as expired, so renewal happens before anything uses a dying token.
const RefreshBuffer = 300 * time.Second

// EpochSeconds is a unix timestamp that never fails to decode: anything
// other than a non-negative integer (as a number or a numeric string)
// becomes 0, which reads as already expired.
type EpochSeconds int64

var digits = regexp.MustCompile(`^[0-9]+$`)

func (e *EpochSeconds) UnmarshalJSON(b []byte) error {
	*e = 0

	raw := string(bytes.TrimSpace(b))
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}
	if !digits.MatchString(raw) {
		return nil
	}

	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	*e = EpochSeconds(n)
	return nil
}

// Time converts to time.Time.
func (e EpochSeconds) Time() time.Time {
	return time.Unix(int64(e), 0)
}

// At builds an EpochSeconds from t.
func At(t time.Time) EpochSeconds {
	if t.Unix() < 0 {
		return 0
	}
	return EpochSeconds(t.Unix())
}

// fresh reports exp > now + RefreshBuffer.
func fresh(exp EpochSeconds, now time.Time) bool {
	return int64(exp) > now.Add(RefreshBuffer).Unix()
}

// ServerCredential is the identity the game server presents to the game
// network. It is always replaced as a whole.
type ServerCredential struct {
	AccessToken      string       `json:"access_token"`
	RefreshToken     string       `json:"refresh_token"`
	SessionToken     string       `json:"session_token"`
	IdentityToken    string       `json:"identity_token"`
	ProfileUUID      string       `json:"profile_uuid"`
	ProfileUsername  string       `json:"profile_username"`
	SessionExpiresAt EpochSeconds `json:"session_expires_at"`
}

// SessionValid reports whether the session outlives the refresh buffer and
// carries both game tokens.
func (c *ServerCredential) SessionValid(now time.Time) bool {
	if c == nil || c.SessionToken == "" || c.IdentityToken == "" {
		return false
	}
	return fresh(c.SessionExpiresAt, now)
}

// DownloaderCredential belongs to the downloader; it is only refreshed here.
// Fields this package does not know about are kept as they were.
type DownloaderCredential struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresAt    EpochSeconds `json:"expires_at"`
	Branch       string       `json:"branch"`

	extra map[string]json.RawMessage
}

// Expired reports whether the access token is inside the refresh buffer.
func (c *DownloaderCredential) Expired(now time.Time) bool {
	return c == nil || c.AccessToken == "" || !fresh(c.ExpiresAt, now)
}

type downloaderFields DownloaderCredential

var downloaderKeys = []string{"access_token", "refresh_token", "expires_at", "branch"}

func (c *DownloaderCredential) UnmarshalJSON(b []byte) error {
	var known downloaderFields
	if err := json.Unmarshal(b, &known); err != nil {
		return err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return err
	}
	for _, k := range downloaderKeys {
		delete(all, k)
	}

	*c = DownloaderCredential(known)
	if len(all) > 0 {
		c.extra = all
	}
	return nil
}

func (c DownloaderCredential) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(downloaderFields(c))
	if err != nil {
		return nil, err
	}
	if len(c.extra) == 0 {
		return known, nil
	}

	merged := make(map[string]json.RawMessage, len(c.extra)+len(downloaderKeys))
	for k, v := range c.extra {
		merged[k] = v
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(known, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}
