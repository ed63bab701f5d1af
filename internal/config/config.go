// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"time"
)

// StructuredConfig is the top-level configuration container for the
// go-firesync binaries. It aggregates all sub-configurations and is
// populated by merging values from environment variables, command-line flags,
// and an optional JSON file.
//
// Struct tags:
//   - envPrefix: prefix applied to all nested env tag lookups (caarlos0/env).
//   - env: direct environment variable name for scalar fields.
type StructuredConfig struct {
	// App holds process-level settings.
	App App `envPrefix:"APP_"`

	// Adapter holds the remote store endpoint and the transport settings.
	Adapter Adapter `envPrefix:"ADAPTER_"`

	// Storage selects the backend of the local entry stores.
	Storage Storage `envPrefix:"STORAGE_"`

	// Workers holds the settings of the background reconciliation loop and
	// of the live subscription.
	Workers Workers `envPrefix:"WORKERS_"`

	// Server holds the settings of the local emulator.
	Server Server `envPrefix:"SERVER_"`

	// Chat holds the settings of the sample chat client.
	Chat Chat `envPrefix:"CHAT_"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// When non-empty, the file is parsed and merged on top of the values
	// already loaded from environment variables and flags.
	// Populated via the CONFIG environment variable or the -c / -config flag.
	JSONFilePath string `env:"CONFIG"`
}

// App holds process-level settings.
type App struct {
	// Version is reported by the binaries on startup.
	// Env: APP_VERSION
	Version string `env:"VERSION"`

	// LogFile is the file the TUI client writes its logs to.
	// Env: APP_LOG_FILE
	LogFile string `env:"LOG_FILE"`
}

// Adapter holds the remote store endpoint and the transport settings.
type Adapter struct {
	// BaseURL is the root of the remote tree, e.g.
	// "https://project.firebaseio.com/".
	// Env: ADAPTER_BASE_URL
	BaseURL string `env:"BASE_URL"`

	// AuthToken is appended to every request as the auth parameter.
	// Env: ADAPTER_AUTH_TOKEN
	AuthToken string `env:"AUTH_TOKEN"`

	// AsAccessToken sends AuthToken as an OAuth access_token instead.
	// Env: ADAPTER_AS_ACCESS_TOKEN
	AsAccessToken bool `env:"AS_ACCESS_TOKEN"`

	// RequestTimeout bounds a single non-streaming request (e.g. "30s").
	// Env: ADAPTER_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`

	// RequestsPerSecond limits outbound requests; zero disables the limit.
	// Env: ADAPTER_REQUESTS_PER_SECOND
	RequestsPerSecond float64 `env:"REQUESTS_PER_SECOND"`

	// Burst is the limiter bucket size.
	// Env: ADAPTER_BURST
	Burst int `env:"BURST"`
}

// Storage selects the backend of the local entry stores.
type Storage struct {
	// Backend is one of "memory", "file" or "sqlite".
	// Env: STORAGE_BACKEND
	Backend string `env:"BACKEND"`

	// Dir is the directory holding one store file per collection.
	// Env: STORAGE_DIR
	Dir string `env:"DIR"`

	// FilenameModifier is appended to every store file name, which lets
	// several users of one machine keep separate offline copies.
	// Env: STORAGE_FILENAME_MODIFIER
	FilenameModifier string `env:"FILENAME_MODIFIER"`
}

// Workers holds the settings of the background reconciliation loop and of
// the live subscription.
type Workers struct {
	// SyncInterval is the pause between two reconciliation passes.
	// Env: WORKERS_SYNC_INTERVAL
	SyncInterval time.Duration `env:"SYNC_INTERVAL"`

	// StreamRetryDelay is the pause before a dropped stream reconnects.
	// Env: WORKERS_STREAM_RETRY_DELAY
	StreamRetryDelay time.Duration `env:"STREAM_RETRY_DELAY"`

	// InitialPull is one of "none", "missing_only", "everything".
	// Env: WORKERS_INITIAL_PULL
	InitialPull string `env:"INITIAL_PULL"`

	// Streaming is one of "none", "latest_only", "everything".
	// Env: WORKERS_STREAMING
	Streaming string `env:"STREAMING"`

	// DisablePush keeps local writes local.
	// Env: WORKERS_DISABLE_PUSH
	DisablePush bool `env:"DISABLE_PUSH"`
}

// Server holds the settings of the local emulator.
type Server struct {
	// Address is the TCP address the emulator listens on, "host:port".
	// Env: SERVER_ADDRESS
	Address string `env:"ADDRESS"`

	// AuthToken, when set, is required on every request.
	// Env: SERVER_AUTH_TOKEN
	AuthToken string `env:"AUTH_TOKEN"`

	// KeepAlive is the interval between keep-alive events on open streams.
	// Env: SERVER_KEEP_ALIVE
	KeepAlive time.Duration `env:"KEEP_ALIVE"`
}

// Chat holds the settings of the sample chat client.
type Chat struct {
	// Collection is the remote path the messages are stored under.
	// Env: CHAT_COLLECTION
	Collection string `env:"COLLECTION"`

	// Author signs every message sent from this client.
	// Env: CHAT_AUTHOR
	Author string `env:"AUTHOR"`
}

// GetStructuredConfig loads, merges, and validates the application
// configuration from all available sources in the following priority order
// (last source wins for non-zero fields):
//  1. Environment variables
//  2. Command-line flags
//  3. JSON file (path resolved from sources 1 and 2)
func GetStructuredConfig(args []string) (*StructuredConfig, error) {
	return newConfigBuilder().
		withEnv().
		withFlags(args).
		withJSON().
		build()
}
