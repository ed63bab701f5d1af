package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/go-firesync/internal/config"
	"github.com/MKhiriev/go-firesync/internal/emulator"
	"github.com/MKhiriev/go-firesync/internal/logger"
	"github.com/MKhiriev/go-firesync/internal/service"
	"github.com/MKhiriev/go-firesync/internal/tui"
	"github.com/MKhiriev/go-firesync/models"
)

// uiFunc adapts a function to UI.
type uiFunc func(ctx context.Context) error

func (f uiFunc) Run(ctx context.Context) error { return f(ctx) }

func testConfig(baseURL string) *config.ClientConfig {
	return &config.ClientConfig{
		Adapter: config.ClientAdapter{
			BaseURL:        baseURL,
			RequestTimeout: 5 * time.Second,
		},
		Storage: config.ClientStorage{Backend: config.StorageBackendMemory},
		Workers: config.ClientWorkers{
			SyncInterval:     20 * time.Millisecond,
			StreamRetryDelay: 50 * time.Millisecond,
			InitialPull:      models.PullNone,
			Streaming:        models.StreamNone,
			PushChanges:      true,
		},
		Chat: config.ClientChat{Collection: "messages", Author: "alice"},
	}
}

func newTestApp(t *testing.T, cfg *config.ClientConfig, ui UI) *App {
	t.Helper()

	full, err := NewApp(cfg, models.NewAppBuildInfo("", "", ""), logger.Nop())
	require.NoError(t, err)
	return newApp(full.chat, ui, logger.Nop())
}

func TestNewApp_RequiresAuthor(t *testing.T) {
	cfg := testConfig("http://localhost:9000")
	cfg.Chat.Author = ""

	_, err := NewApp(cfg, models.NewAppBuildInfo("", "", ""), logger.Nop())

	assert.ErrorIs(t, err, tui.ErrAuthorNotSet)
}

func TestNewApp_InvalidBaseURL(t *testing.T) {
	_, err := NewApp(testConfig("://nope"), models.NewAppBuildInfo("", "", ""), logger.Nop())

	assert.Error(t, err)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := testConfig("http://localhost:9000")
	cfg.Storage.FilenameModifier = "dev"

	opts := optionsFromConfig(cfg)

	assert.Equal(t, models.PullNone, opts.InitialPull)
	assert.Equal(t, models.StreamNone, opts.Streaming)
	assert.True(t, opts.PushChanges)
	assert.Equal(t, 20*time.Millisecond, opts.SyncPeriod)
	assert.Equal(t, "dev-messages", opts.FilenameModifier)

	// первая пауза: StreamRetryDelay ±30%
	require.NotNil(t, opts.StreamBackoff)
	delay, stop := opts.StreamBackoff().Next()
	assert.False(t, stop)
	assert.InDelta(t, float64(50*time.Millisecond), float64(delay), float64(15*time.Millisecond))
}

func TestApp_Run_UserQuitIsNotError(t *testing.T) {
	app := newTestApp(t, testConfig("http://localhost:9000"), uiFunc(func(context.Context) error {
		return tui.ErrUserQuit
	}))

	require.NoError(t, app.Run())

	_, err := app.chat.Entries(context.Background())
	assert.ErrorIs(t, err, service.ErrDatabaseClosed)
}

func TestApp_Run_ReturnsUIError(t *testing.T) {
	boom := errors.New("boom")
	app := newTestApp(t, testConfig("http://localhost:9000"), uiFunc(func(context.Context) error {
		return boom
	}))

	assert.ErrorIs(t, app.Run(), boom)
}

func TestApp_Run_PushesWritesInBackground(t *testing.T) {
	tree := emulator.NewTree()
	srv := httptest.NewServer(emulator.NewHandler(tree, "", 0, logger.Nop()).Init())
	t.Cleanup(srv.Close)

	var app *App
	app = newTestApp(t, testConfig(srv.URL), uiFunc(func(ctx context.Context) error {
		if err := app.chat.Put(ctx, "k1", models.Message{Author: "alice", Content: "hi", Timestamp: 1}); err != nil {
			return err
		}
		// ждём, пока фоновый цикл отправит запись
		if !assert.Eventually(t, func() bool {
			return tree.Get("/messages/k1") != nil
		}, 5*time.Second, 10*time.Millisecond) {
			return errors.New("write was not pushed")
		}
		return tui.ErrUserQuit
	}))

	require.NoError(t, app.Run())
	assert.Equal(t, map[string]any{"author": "alice", "content": "hi", "timestamp": 1.0}, tree.Get("/messages/k1"))
}
