package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
)

const (
	AuthAuthenticated = "authenticated"
	AuthOpen          = "open"

	UpdateAlways  = "always"
	UpdateMissing = "missing"
	UpdateNever   = "never"
)

// Config holds every setting of the entrypoint.
//
// Paths may be s3://bucket/key for the two credential documents; all other
// paths are local.
type Config struct {
	DataDir                  string
	ServerDir                string
	ServerCredentialPath     string
	DownloaderCredentialPath string
	ServerConfigPath         string

	AuthMode string
	// SessionTokenVar and IdentityTokenVar name the variables that may
	// pre-supply a session; SessionToken and IdentityToken hold their values.
	SessionTokenVar  string
	IdentityTokenVar string
	SessionToken     string
	IdentityToken    string

	OAuthURL   string
	AccountURL string
	SessionURL string
	ClientID   string
	Service    string

	WebhookURL      string
	WebhookUsername string

	HTTPTimeout time.Duration
	HTTPRetries int
	HTTPBackoff time.Duration

	UpdateMode    string
	DownloaderCmd string
	ServerJar     string

	JavaBin    string
	MinMemory  string
	MaxMemory  string
	JVMArgs    string
	ServerArgs string

	ServerName     string
	ServerPassword string
	MaxPlayers     int
	ViewDistance   int

	LogLevel  string
	LogFormat string

	S3Endpoint  string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
}

// LoadDefaults populates c with the container layout defaults.
func (c *Config) LoadDefaults() {
	c.DataDir = "/data"
	c.ServerDir = "/data/server"
	c.ServerCredentialPath = "/data/.auth/server.json"
	c.DownloaderCredentialPath = "/data/.auth/downloader.json"
	c.ServerConfigPath = "/data/server/config.json"

	c.AuthMode = AuthAuthenticated
	c.SessionTokenVar = common.SessionTokenEnv
	c.IdentityTokenVar = common.IdentityTokenEnv

	c.OAuthURL = "https://oauth.accounts.hytale.com"
	c.AccountURL = "https://account-data.hytale.com"
	c.SessionURL = "https://sessions.hytale.com"
	c.ClientID = "hytale-server"
	c.Service = "server"

	c.WebhookUsername = "Game Server"

	c.HTTPTimeout = 15 * time.Second
	c.HTTPRetries = 2
	c.HTTPBackoff = 500 * time.Millisecond

	c.UpdateMode = UpdateMissing
	c.DownloaderCmd = "hytale-downloader"
	c.ServerJar = "/data/server/Server/HytaleServer.jar"

	c.JavaBin = "java"
	c.MinMemory = "1G"
	c.MaxMemory = "4G"

	c.LogLevel = "info"
	c.LogFormat = "text"

	c.S3Region = "us-east-1"
}

// Getenv looks up one environment variable.
type Getenv func(key string) (string, bool)

// Load builds a Config from defaults, the config file named by -c/-config,
// the .env file, the environment, and finally args. Later sources win.
// The result is validated; every failure matches common.ErrConfig.
func Load(args []string, getenv Getenv) (*Config, error) {
	if getenv == nil {
		getenv = func(string) (string, bool) { return "", false }
	}

	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseFile(cfg, args); err != nil {
		return nil, err
	}

	env, err := withDotEnv(getenv)
	if err != nil {
		return nil, err
	}
	if err := parseEnv(cfg, env); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig loads from the process arguments and environment.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:], os.LookupEnv)
}

// CacheDir is where the downloader keeps partial downloads.
func (c *Config) CacheDir() string {
	return filepath.Join(c.DataDir, ".cache")
}
