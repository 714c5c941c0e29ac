// Package config loads the entrypoint configuration.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON or YAML file selected with -c or -config.
//  3. A .env file: ENV_FILE, or /data/.env when present.
//  4. Process environment variables, which win over the .env file.
//  5. Command-line flags -m, -u, -w, -l, -j.
//
// # Environment
//
//	AUTH_MODE            authenticated | open
//	UPDATE_MODE          always | missing | never
//	SESSION_TOKEN        pre-supplied session token (name set by session_token_env)
//	IDENTITY_TOKEN       pre-supplied identity token (name set by identity_token_env)
//	WEBHOOK_URL          notification webhook
//	MIN_MEMORY/MAX_MEMORY  JVM heap, e.g. 2G
//	HTTP_TIMEOUT         e.g. 15s, or bare seconds
//	SERVER_CREDENTIALS   path or s3://bucket/key
//
// See env.go for the full list.
//
// # File schema
//
// Durations use timex.Duration, so "15s" and integer nanoseconds both work:
//
//	{
//	  "auth_mode": "authenticated",
//	  "update_mode": "missing",
//	  "http_timeout": "15s",
//	  "server_credentials": "/data/.auth/server.json"
//	}
//
// Load validates the result; every error matches common.ErrConfig and reads
// as a single line naming the setting to fix.
package config
