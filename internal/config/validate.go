package config

import (
	"fmt"
	"net/url"
	"regexp"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
)

var memoryPattern = regexp.MustCompile(`^[0-9]+[KkMmGg]?$`)

// Validate checks every setting and reports the first problem as a single
// line naming the variable to fix. The error matches common.ErrConfig.
func (c *Config) Validate() error {
	c.AuthMode = strings.ToLower(strings.TrimSpace(c.AuthMode))
	c.UpdateMode = strings.ToLower(strings.TrimSpace(c.UpdateMode))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))

	if !slices.Contains([]string{AuthAuthenticated, AuthOpen}, c.AuthMode) {
		return invalid("AUTH_MODE must be %q or %q, got %q", AuthAuthenticated, AuthOpen, c.AuthMode)
	}
	if !slices.Contains([]string{UpdateAlways, UpdateMissing, UpdateNever}, c.UpdateMode) {
		return invalid("UPDATE_MODE must be one of always, missing, never; got %q", c.UpdateMode)
	}
	if c.UpdateMode != UpdateNever && strings.TrimSpace(c.DownloaderCmd) == "" {
		return invalid("DOWNLOADER_CMD is required unless UPDATE_MODE=never")
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.LogLevel) {
		return invalid("LOG_LEVEL must be debug, info, warn or error; got %q", c.LogLevel)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return invalid("LOG_FORMAT must be text or json; got %q", c.LogFormat)
	}

	if !memoryPattern.MatchString(c.MinMemory) {
		return invalid("MIN_MEMORY must be a number with an optional K, M or G suffix, got %q", c.MinMemory)
	}
	if !memoryPattern.MatchString(c.MaxMemory) {
		return invalid("MAX_MEMORY must be a number with an optional K, M or G suffix, got %q", c.MaxMemory)
	}
	minBytes, err := MemoryBytes(c.MinMemory)
	if err != nil {
		return invalid("MIN_MEMORY %q: %v", c.MinMemory, err)
	}
	maxBytes, err := MemoryBytes(c.MaxMemory)
	if err != nil {
		return invalid("MAX_MEMORY %q: %v", c.MaxMemory, err)
	}
	if minBytes > maxBytes {
		return invalid("MIN_MEMORY (%s) exceeds MAX_MEMORY (%s)", c.MinMemory, c.MaxMemory)
	}

	if c.HTTPTimeout <= 0 {
		return invalid("HTTP_TIMEOUT must be positive")
	}
	if c.HTTPRetries < 0 {
		return invalid("HTTP_RETRIES cannot be negative")
	}
	if c.MaxPlayers < 0 || c.ViewDistance < 0 {
		return invalid("MAX_PLAYERS and VIEW_DISTANCE cannot be negative")
	}

	for _, p := range []struct{ name, value string }{
		{"SERVER_CREDENTIALS", c.ServerCredentialPath},
		{"DOWNLOADER_CREDENTIALS", c.DownloaderCredentialPath},
		{"SERVER_CONFIG", c.ServerConfigPath},
		{"SERVER_JAR", c.ServerJar},
	} {
		if strings.TrimSpace(p.value) == "" {
			return invalid("%s must not be empty", p.name)
		}
	}

	if c.AuthMode == AuthAuthenticated {
		for _, u := range []struct{ name, value string }{
			{"OAUTH_URL", c.OAuthURL},
			{"ACCOUNT_URL", c.AccountURL},
			{"SESSION_URL", c.SessionURL},
		} {
			if err := checkURL(u.name, u.value); err != nil {
				return err
			}
		}
		if c.ClientID == "" || c.Service == "" {
			return invalid("OAUTH_CLIENT_ID and OAUTH_SERVICE are required when AUTH_MODE=authenticated")
		}
	}
	if c.WebhookURL != "" {
		if err := checkURL("WEBHOOK_URL", c.WebhookURL); err != nil {
			return err
		}
	}
	return nil
}

func checkURL(name, value string) error {
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid("%s must be an http(s) url, got %q", name, value)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", common.ErrConfig, fmt.Sprintf(format, args...))
}

// MemoryBytes converts a JVM memory size such as 512M or 4G to bytes.
// Sizes that do not fit in an int64 are an error.
func MemoryBytes(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	mult := int64(1)
	switch s[len(s)-1] {
	case 'k', 'K':
		mult = 1 << 10
	case 'm', 'M':
		mult = 1 << 20
	case 'g', 'G':
		mult = 1 << 30
	}
	n, err := strconv.ParseInt(strings.TrimRight(s, "kKmMgG"), 10, 64)
	if err != nil {
		return 0, err
	}
	if n > math.MaxInt64/mult {
		return 0, fmt.Errorf("%s is out of range", s)
	}
	return n * mult, nil
}

// S3Configured reports whether either credential document lives in S3.
func (c *Config) S3Configured() bool {
	return strings.HasPrefix(c.ServerCredentialPath, "s3://") || strings.HasPrefix(c.DownloaderCredentialPath, "s3://")
}
