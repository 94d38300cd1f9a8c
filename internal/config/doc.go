// Package config handles configuration loading for fanpost.
//
// # Overview
//
// Settings come from three sources, later ones overriding earlier ones:
//
//  1. An optional config file (YAML, or TOML when the name ends in .toml)
//  2. A .env file in the working directory, if present
//  3. The process environment
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from FANPOST_CONFIG environment variable
//  2. ~/.config/fanpost/config.yaml
//
// Without a file, the environment alone must supply the required settings.
//
// # Environment Variables
//
// The bot reads the variable names older deployments already use:
//
//	TOKEN=123456:ABC...          # bot token
//	ADMIN_ID=123456789           # operator user id
//	CHANNELS=@mychannel,-100123  # comma separated
//
// Extras: FANPOST_SUBSCRIBE_URL, FANPOST_STORAGE_DRIVER, FANPOST_STORAGE_PATH,
// FANPOST_LOG_LEVEL, FANPOST_LOG_FORMAT and FANPOST_METRICS_ADDR (which also
// enables the metrics endpoint).
//
// File values may reference variables as ${VAR_NAME}.
//
// # Configuration Sections
//
//	telegram:
//	  token: "${TOKEN}"
//	  operator_id: 123456789
//	  channels: ["@mychannel", "-1001234567890"]
//	  subscribe_url: "https://t.me/mychannel"  # default: first @handle
//	  request_timeout: "10s"
//	  poll_timeout: 60
//	storage:
//	  driver: "json"   # json, sqlite
//	  path: "posts.json"
//	console:
//	  recent_limit: 10
//	  fanout_limit: 8
//	  dedupe_ttl: "5m"
//	logging:
//	  level: "info"    # debug, info, warn, error
//	  format: "text"   # text, json
//	metrics:
//	  enabled: false
//	  addr: "127.0.0.1:9090"
//	  path: "/metrics"
//
// # Validation
//
// Load() rejects a missing token or operator id, an empty channel list,
// channel entries that are neither an @handle nor a numeric chat id, unknown
// storage drivers and negative limits.
package config
