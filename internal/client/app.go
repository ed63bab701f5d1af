package client

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/MKhiriev/go-firesync/internal/adapter"
	"github.com/MKhiriev/go-firesync/internal/config"
	"github.com/MKhiriev/go-firesync/internal/logger"
	"github.com/MKhiriev/go-firesync/internal/service"
	"github.com/MKhiriev/go-firesync/internal/store"
	"github.com/MKhiriev/go-firesync/internal/stream"
	"github.com/MKhiriev/go-firesync/internal/tui"
	"github.com/MKhiriev/go-firesync/models"
)

// maxStreamRetryDelay caps the reconnect backoff of the chat stream.
const maxStreamRetryDelay = 30 * time.Second

// UI is the interactive front end driven by App.
type UI interface {
	Run(ctx context.Context) error
}

// App owns the synchronized chat collection and the UI on top of it.
type App struct {
	chat   *service.RealtimeDatabase[models.Message]
	ui     UI
	logger *logger.Logger
}

// NewApp opens the local store of the chat collection and builds the UI.
func NewApp(cfg *config.ClientConfig, buildInfo models.AppBuildInfo, log *logger.Logger) (*App, error) {
	root, err := adapter.NewQueryFromConfig(cfg.Adapter)
	if err != nil {
		return nil, fmt.Errorf("build root query: %w", err)
	}

	chat, err := service.NewRealtimeDatabase[models.Message](
		root.Child(cfg.Chat.Collection),
		adapter.NewHTTPTransport(cfg.Adapter, log),
		store.NewFactory(cfg.Storage, log),
		optionsFromConfig(cfg),
		log,
	)
	if err != nil {
		return nil, fmt.Errorf("open chat collection: %w", err)
	}

	ui, err := tui.New(chat, cfg.Chat.Author, buildInfo, log)
	if err != nil {
		_ = chat.Close()
		return nil, fmt.Errorf("create ui: %w", err)
	}

	return newApp(chat, ui, log), nil
}

func newApp(chat *service.RealtimeDatabase[models.Message], ui UI, log *logger.Logger) *App {
	return &App{chat: chat, ui: ui, logger: log}
}

func optionsFromConfig(cfg *config.ClientConfig) service.Options {
	return service.Options{
		InitialPull:      cfg.Workers.InitialPull,
		Streaming:        cfg.Workers.Streaming,
		PushChanges:      cfg.Workers.PushChanges,
		SyncPeriod:       cfg.Workers.SyncInterval,
		StreamRetryDelay: cfg.Workers.StreamRetryDelay,
		StreamBackoff:    stream.ExponentialBackoff(cfg.Workers.StreamRetryDelay, maxStreamRetryDelay, 0),
		FilenameModifier: cfg.Storage.FilenameModifier + "-" + cfg.Chat.Collection,
	}
}

// Run keeps the collection synchronized while the UI is open. The local
// store is closed on return.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	defer func() {
		if err := a.chat.Close(); err != nil {
			a.logger.Err(err).Str("func", "App.Run").Msg("close chat collection")
		}
	}()

	a.chat.Start(ctx)
	defer a.chat.Stop()

	err := a.ui.Run(ctx)
	if errors.Is(err, tui.ErrUserQuit) {
		a.logger.Info().Msg("user quit")
		return nil
	}
	return err
}
