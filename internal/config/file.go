package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/flagx"
	"github.com/dmitrijs2005/sessionkeeper/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the DTO for JSON and YAML config files. Pointer fields tell
// "absent" apart from zero so a file only overrides what it names.
type FileConfig struct {
	DataDir                  *string `json:"data_dir" yaml:"data_dir"`
	ServerDir                *string `json:"server_dir" yaml:"server_dir"`
	ServerCredentialPath     *string `json:"server_credentials" yaml:"server_credentials"`
	DownloaderCredentialPath *string `json:"downloader_credentials" yaml:"downloader_credentials"`
	ServerConfigPath         *string `json:"server_config" yaml:"server_config"`

	AuthMode         *string `json:"auth_mode" yaml:"auth_mode"`
	SessionTokenVar  *string `json:"session_token_env" yaml:"session_token_env"`
	IdentityTokenVar *string `json:"identity_token_env" yaml:"identity_token_env"`

	OAuthURL   *string `json:"oauth_url" yaml:"oauth_url"`
	AccountURL *string `json:"account_url" yaml:"account_url"`
	SessionURL *string `json:"session_url" yaml:"session_url"`
	ClientID   *string `json:"client_id" yaml:"client_id"`
	Service    *string `json:"service" yaml:"service"`

	WebhookURL      *string `json:"webhook_url" yaml:"webhook_url"`
	WebhookUsername *string `json:"webhook_username" yaml:"webhook_username"`

	HTTPTimeout *timex.Duration `json:"http_timeout" yaml:"http_timeout"`
	HTTPRetries *int            `json:"http_retries" yaml:"http_retries"`
	HTTPBackoff *timex.Duration `json:"http_backoff" yaml:"http_backoff"`

	UpdateMode    *string `json:"update_mode" yaml:"update_mode"`
	DownloaderCmd *string `json:"downloader_cmd" yaml:"downloader_cmd"`
	ServerJar     *string `json:"server_jar" yaml:"server_jar"`

	JavaBin    *string `json:"java_bin" yaml:"java_bin"`
	MinMemory  *string `json:"min_memory" yaml:"min_memory"`
	MaxMemory  *string `json:"max_memory" yaml:"max_memory"`
	JVMArgs    *string `json:"jvm_args" yaml:"jvm_args"`
	ServerArgs *string `json:"server_args" yaml:"server_args"`

	ServerName     *string `json:"server_name" yaml:"server_name"`
	ServerPassword *string `json:"server_password" yaml:"server_password"`
	MaxPlayers     *int    `json:"max_players" yaml:"max_players"`
	ViewDistance   *int    `json:"view_distance" yaml:"view_distance"`

	LogLevel  *string `json:"log_level" yaml:"log_level"`
	LogFormat *string `json:"log_format" yaml:"log_format"`

	S3Endpoint *string `json:"s3_endpoint" yaml:"s3_endpoint"`
	S3Region   *string `json:"s3_region" yaml:"s3_region"`
}

// parseFile overlays cfg with the file given by -c or -config, if any. The
// format follows the extension: .yaml and .yml are YAML, anything else JSON.
func parseFile(cfg *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read config file: %v", common.ErrConfig, err)
	}

	var fc FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return fmt.Errorf("%w: parse %s: %v", common.ErrConfig, path, err)
	}

	fc.apply(cfg)
	return nil
}

func (fc *FileConfig) apply(cfg *Config) {
	setString(&cfg.DataDir, fc.DataDir)
	setString(&cfg.ServerDir, fc.ServerDir)
	setString(&cfg.ServerCredentialPath, fc.ServerCredentialPath)
	setString(&cfg.DownloaderCredentialPath, fc.DownloaderCredentialPath)
	setString(&cfg.ServerConfigPath, fc.ServerConfigPath)

	setString(&cfg.AuthMode, fc.AuthMode)
	setString(&cfg.SessionTokenVar, fc.SessionTokenVar)
	setString(&cfg.IdentityTokenVar, fc.IdentityTokenVar)

	setString(&cfg.OAuthURL, fc.OAuthURL)
	setString(&cfg.AccountURL, fc.AccountURL)
	setString(&cfg.SessionURL, fc.SessionURL)
	setString(&cfg.ClientID, fc.ClientID)
	setString(&cfg.Service, fc.Service)

	setString(&cfg.WebhookURL, fc.WebhookURL)
	setString(&cfg.WebhookUsername, fc.WebhookUsername)

	if fc.HTTPTimeout != nil {
		cfg.HTTPTimeout = fc.HTTPTimeout.Duration
	}
	if fc.HTTPRetries != nil {
		cfg.HTTPRetries = *fc.HTTPRetries
	}
	if fc.HTTPBackoff != nil {
		cfg.HTTPBackoff = fc.HTTPBackoff.Duration
	}

	setString(&cfg.UpdateMode, fc.UpdateMode)
	setString(&cfg.DownloaderCmd, fc.DownloaderCmd)
	setString(&cfg.ServerJar, fc.ServerJar)

	setString(&cfg.JavaBin, fc.JavaBin)
	setString(&cfg.MinMemory, fc.MinMemory)
	setString(&cfg.MaxMemory, fc.MaxMemory)
	setString(&cfg.JVMArgs, fc.JVMArgs)
	setString(&cfg.ServerArgs, fc.ServerArgs)

	setString(&cfg.ServerName, fc.ServerName)
	setString(&cfg.ServerPassword, fc.ServerPassword)
	if fc.MaxPlayers != nil {
		cfg.MaxPlayers = *fc.MaxPlayers
	}
	if fc.ViewDistance != nil {
		cfg.ViewDistance = *fc.ViewDistance
	}

	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.LogFormat, fc.LogFormat)

	setString(&cfg.S3Endpoint, fc.S3Endpoint)
	setString(&cfg.S3Region, fc.S3Region)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
