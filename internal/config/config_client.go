package config

import (
	"fmt"
	"time"

	"github.com/MKhiriev/go-firesync/models"
)

const (
	defaultRequestTimeout   = 30 * time.Second
	defaultSyncInterval     = 10 * time.Second
	defaultStreamRetryDelay = 2 * time.Second
	defaultStorageBackend   = StorageBackendFile
	defaultChatCollection   = "messages"
)

// Storage backends understood by the store factory.
const (
	StorageBackendMemory = "memory"
	StorageBackendFile   = "file"
	StorageBackendSQLite = "sqlite"
)

// ClientApp holds client-side process settings.
type ClientApp struct {
	Version string
	LogFile string
}

// ClientAdapter holds the settings of the transport to the remote store.
type ClientAdapter struct {
	// BaseURL is the root of the remote tree.
	BaseURL string
	// AuthToken is sent with every request when non-empty.
	AuthToken string
	// AsAccessToken sends AuthToken as access_token instead of auth.
	AsAccessToken bool
	// RequestTimeout is the default timeout for outbound requests.
	RequestTimeout time.Duration
	// RequestsPerSecond limits outbound requests; zero disables the limit.
	RequestsPerSecond float64
	// Burst is the limiter bucket size.
	Burst int
}

// ClientStorage selects the local entry store backend.
type ClientStorage struct {
	Backend          string
	Dir              string
	FilenameModifier string
}

// ClientWorkers holds the synchronization settings.
type ClientWorkers struct {
	// SyncInterval defines how often the reconciliation loop runs.
	SyncInterval time.Duration
	// StreamRetryDelay is the pause before a dropped stream reconnects.
	StreamRetryDelay time.Duration
	InitialPull      models.InitialPullStrategy
	Streaming        models.StreamingOptions
	PushChanges      bool
}

// ClientChat holds the sample chat settings.
type ClientChat struct {
	Collection string
	Author     string
}

// ClientConfig is the top-level client configuration assembled from
// [StructuredConfig].
type ClientConfig struct {
	App     ClientApp
	Adapter ClientAdapter
	Storage ClientStorage
	Workers ClientWorkers
	Chat    ClientChat
}

// GetClientConfig builds and validates a client-specific config view from the
// merged structured configuration.
//
// It loads the base config via [GetStructuredConfig], maps only the fields
// relevant to the client runtime, fills defaults and validates the resulting
// [ClientConfig].
func GetClientConfig(args []string) (*ClientConfig, error) {
	cfg, err := GetStructuredConfig(args)
	if err != nil {
		return nil, fmt.Errorf("error get structured config: %w", err)
	}

	return newClientConfig(cfg)
}

func newClientConfig(cfg *StructuredConfig) (*ClientConfig, error) {
	initialPull, err := models.ParseInitialPullStrategy(cfg.Workers.InitialPull)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidWorkerConfigs, err)
	}
	streaming, err := models.ParseStreamingOptions(cfg.Workers.Streaming)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidWorkerConfigs, err)
	}

	clientCfg := &ClientConfig{
		App: ClientApp{
			Version: cfg.App.Version,
			LogFile: cfg.App.LogFile,
		},
		Adapter: ClientAdapter{
			BaseURL:           cfg.Adapter.BaseURL,
			AuthToken:         cfg.Adapter.AuthToken,
			AsAccessToken:     cfg.Adapter.AsAccessToken,
			RequestTimeout:    withDefault(cfg.Adapter.RequestTimeout, defaultRequestTimeout),
			RequestsPerSecond: cfg.Adapter.RequestsPerSecond,
			Burst:             max(cfg.Adapter.Burst, 1),
		},
		Storage: ClientStorage{
			Backend:          withDefault(cfg.Storage.Backend, defaultStorageBackend),
			Dir:              withDefault(cfg.Storage.Dir, "."),
			FilenameModifier: cfg.Storage.FilenameModifier,
		},
		Workers: ClientWorkers{
			SyncInterval:     withDefault(cfg.Workers.SyncInterval, defaultSyncInterval),
			StreamRetryDelay: withDefault(cfg.Workers.StreamRetryDelay, defaultStreamRetryDelay),
			InitialPull:      initialPull,
			Streaming:        streaming,
			PushChanges:      !cfg.Workers.DisablePush,
		},
		Chat: ClientChat{
			Collection: withDefault(cfg.Chat.Collection, defaultChatCollection),
			Author:     cfg.Chat.Author,
		},
	}

	return clientCfg, clientCfg.validate()
}

func withDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
