package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/joho/godotenv"
)

const (
	EnvFileVar     = "ENV_FILE"
	defaultEnvFile = "/data/.env"
)

// withDotEnv layers a .env file beneath the process environment. ENV_FILE
// names the file; a missing default file is fine, a missing named one is not.
func withDotEnv(getenv Getenv) (Getenv, error) {
	path, named := getenv(EnvFileVar)
	if !named || path == "" {
		path = defaultEnvFile
	}

	values, err := godotenv.Read(path)
	if err != nil {
		if !named && errors.Is(err, fs.ErrNotExist) {
			return getenv, nil
		}
		return nil, fmt.Errorf("%w: read env file %s: %v", common.ErrConfig, path, err)
	}

	return func(key string) (string, bool) {
		if v, ok := getenv(key); ok {
			return v, true
		}
		v, ok := values[key]
		return v, ok
	}, nil
}

var stringVars = []struct {
	name string
	dst  func(*Config) *string
}{
	{"DATA_DIR", func(c *Config) *string { return &c.DataDir }},
	{"SERVER_DIR", func(c *Config) *string { return &c.ServerDir }},
	{"SERVER_CREDENTIALS", func(c *Config) *string { return &c.ServerCredentialPath }},
	{"DOWNLOADER_CREDENTIALS", func(c *Config) *string { return &c.DownloaderCredentialPath }},
	{"SERVER_CONFIG", func(c *Config) *string { return &c.ServerConfigPath }},
	{"AUTH_MODE", func(c *Config) *string { return &c.AuthMode }},
	{"OAUTH_URL", func(c *Config) *string { return &c.OAuthURL }},
	{"ACCOUNT_URL", func(c *Config) *string { return &c.AccountURL }},
	{"SESSION_URL", func(c *Config) *string { return &c.SessionURL }},
	{"OAUTH_CLIENT_ID", func(c *Config) *string { return &c.ClientID }},
	{"OAUTH_SERVICE", func(c *Config) *string { return &c.Service }},
	{"WEBHOOK_URL", func(c *Config) *string { return &c.WebhookURL }},
	{"WEBHOOK_USERNAME", func(c *Config) *string { return &c.WebhookUsername }},
	{"UPDATE_MODE", func(c *Config) *string { return &c.UpdateMode }},
	{"DOWNLOADER_CMD", func(c *Config) *string { return &c.DownloaderCmd }},
	{"SERVER_JAR", func(c *Config) *string { return &c.ServerJar }},
	{"JAVA_BIN", func(c *Config) *string { return &c.JavaBin }},
	{"MIN_MEMORY", func(c *Config) *string { return &c.MinMemory }},
	{"MAX_MEMORY", func(c *Config) *string { return &c.MaxMemory }},
	{"JVM_ARGS", func(c *Config) *string { return &c.JVMArgs }},
	{"SERVER_ARGS", func(c *Config) *string { return &c.ServerArgs }},
	{"SERVER_NAME", func(c *Config) *string { return &c.ServerName }},
	{"SERVER_PASSWORD", func(c *Config) *string { return &c.ServerPassword }},
	{"LOG_LEVEL", func(c *Config) *string { return &c.LogLevel }},
	{"LOG_FORMAT", func(c *Config) *string { return &c.LogFormat }},
	{"S3_ENDPOINT", func(c *Config) *string { return &c.S3Endpoint }},
	{"S3_REGION", func(c *Config) *string { return &c.S3Region }},
	{"S3_ACCESS_KEY", func(c *Config) *string { return &c.S3AccessKey }},
	{"S3_SECRET_KEY", func(c *Config) *string { return &c.S3SecretKey }},
}

var intVars = []struct {
	name string
	dst  func(*Config) *int
}{
	{"HTTP_RETRIES", func(c *Config) *int { return &c.HTTPRetries }},
	{"MAX_PLAYERS", func(c *Config) *int { return &c.MaxPlayers }},
	{"VIEW_DISTANCE", func(c *Config) *int { return &c.ViewDistance }},
}

var durationVars = []struct {
	name string
	dst  func(*Config) *time.Duration
}{
	{"HTTP_TIMEOUT", func(c *Config) *time.Duration { return &c.HTTPTimeout }},
	{"HTTP_BACKOFF", func(c *Config) *time.Duration { return &c.HTTPBackoff }},
}

// parseEnv overlays cfg with environment variables. Empty values are
// treated as unset. The session token variables are read by the names
// configured so far.
func parseEnv(cfg *Config, getenv Getenv) error {
	lookup := func(name string) (string, bool) {
		v, ok := getenv(name)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	for _, sv := range stringVars {
		if v, ok := lookup(sv.name); ok {
			*sv.dst(cfg) = v
		}
	}

	for _, iv := range intVars {
		v, ok := lookup(iv.name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s must be a whole number, got %q", common.ErrConfig, iv.name, v)
		}
		*iv.dst(cfg) = n
	}

	for _, dv := range durationVars {
		v, ok := lookup(dv.name)
		if !ok {
			continue
		}
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s must be a duration like 15s, got %q", common.ErrConfig, dv.name, v)
		}
		*dv.dst(cfg) = d
	}

	if v, ok := lookup(cfg.SessionTokenVar); ok {
		cfg.SessionToken = v
	}
	if v, ok := lookup(cfg.IdentityTokenVar); ok {
		cfg.IdentityToken = v
	}
	return nil
}

// parseDuration accepts Go durations and bare seconds.
func parseDuration(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}
