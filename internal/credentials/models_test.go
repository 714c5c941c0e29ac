package credentials

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Unix(1_800_000_000, 0)

func TestEpochSeconds_MalformedDecodesToZero(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want EpochSeconds
	}{
		{"integer", `1800000000`, 1800000000},
		{"numeric string", `"1800000000"`, 1800000000},
		{"zero", `0`, 0},
		{"negative", `-5`, 0},
		{"float", `1.5e9`, 0},
		{"decimal string", `"12.5"`, 0},
		{"garbage string", `"tomorrow"`, 0},
		{"empty string", `""`, 0},
		{"null", `null`, 0},
		{"bool", `true`, 0},
		{"object", `{"at":1}`, 0},
		{"array", `[1]`, 0},
		{"overflow", `99999999999999999999999`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c ServerCredential
			doc := `{"session_token":"s","identity_token":"i","session_expires_at":` + tt.in + `}`
			require.NoError(t, json.Unmarshal([]byte(doc), &c))
			assert.Equal(t, tt.want, c.SessionExpiresAt)
			if tt.want == 0 {
				assert.False(t, c.SessionValid(now), "malformed expiry must read as expired")
			}
		})
	}
}

func TestServerCredential_SessionValidBoundary(t *testing.T) {
	c := &ServerCredential{SessionToken: "s", IdentityToken: "i"}

	c.SessionExpiresAt = At(now.Add(301 * time.Second))
	assert.True(t, c.SessionValid(now), "now+301 is valid")

	c.SessionExpiresAt = At(now.Add(300 * time.Second))
	assert.False(t, c.SessionValid(now), "now+300 sits on the buffer")

	c.SessionExpiresAt = At(now.Add(299 * time.Second))
	assert.False(t, c.SessionValid(now), "now+299 needs refresh")
}

func TestServerCredential_SessionValidNeedsTokens(t *testing.T) {
	exp := At(now.Add(time.Hour))

	assert.False(t, (*ServerCredential)(nil).SessionValid(now))
	assert.False(t, (&ServerCredential{IdentityToken: "i", SessionExpiresAt: exp}).SessionValid(now))
	assert.False(t, (&ServerCredential{SessionToken: "s", SessionExpiresAt: exp}).SessionValid(now))
}

func TestDownloaderCredential_Expired(t *testing.T) {
	c := &DownloaderCredential{AccessToken: "a", ExpiresAt: At(now.Add(time.Hour))}
	assert.False(t, c.Expired(now))

	c.ExpiresAt = At(now.Add(299 * time.Second))
	assert.True(t, c.Expired(now))

	c.ExpiresAt = 0
	assert.True(t, c.Expired(now))
}

func TestDownloaderCredential_KeepsUnknownFields(t *testing.T) {
	in := `{"access_token":"a","refresh_token":"r","expires_at":"garbage","branch":"release","account":{"id":7}}`

	var c DownloaderCredential
	require.NoError(t, json.Unmarshal([]byte(in), &c))
	assert.Equal(t, "release", c.Branch)
	assert.Equal(t, EpochSeconds(0), c.ExpiresAt)

	c.AccessToken = "a2"
	c.ExpiresAt = 42

	out, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{"access_token":"a2","refresh_token":"r","expires_at":42,"branch":"release","account":{"id":7}}`, string(out))
}

func TestAt_ClampsNegative(t *testing.T) {
	assert.Equal(t, EpochSeconds(0), At(time.Unix(-10, 0)))
	assert.Equal(t, now, At(now).Time())
}
