// Package config loads runtime configuration for jetprompt.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional config file selected via -c, -config or --config. Files
//     ending in .yaml or .yml are decoded as YAML, anything else as JSON.
//  3. Environment: a .env file in the working directory is loaded first
//     (existing variables win), then JETPROMPT_* variables are read.
//  4. Command-line flags, which override everything else.
//
// Supported flags (short and long forms)
//
//	-d, --data-dir string       directory for the local database and token
//	-s, --storage string        sqlite | postgres
//	-n, --dsn string            storage DSN (default <data-dir>/jetprompt.db)
//	-r, --remote string         drive | s3 | none
//	-l, --listen string         address of the local HTTP API
//	-i, --sync-interval int     auto-sync interval in seconds, 0 disables
//	-t, --timeout int           HTTP client timeout in seconds
//	-v, --log-level string      debug | info | warn | error
//
// # File schema
//
// Durations use timex.Duration, so they may be strings like "30s" or
// integer nanoseconds:
//
//	storage: sqlite
//	remote: drive
//	http_timeout: 30s
//	auto_sync_interval: 5m
//	drive:
//	  client_id: 123.apps.googleusercontent.com
//	  client_secret: xyz
//
// Environment variables use the JETPROMPT_ prefix and the flat key names
// listed in envKeys, e.g. JETPROMPT_S3_BUCKET or JETPROMPT_LOG_LEVEL.
package config
