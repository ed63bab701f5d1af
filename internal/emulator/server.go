package emulator

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/MKhiriev/go-firesync/internal/config"
	"github.com/MKhiriev/go-firesync/internal/logger"
)

const shutdownTimeout = 5 * time.Second

// Emulator is the HTTP server of the emulated remote store.
type Emulator struct {
	tree    *Tree
	handler *Handler
	server  *http.Server
	logger  *logger.Logger
}

func New(cfg config.EmulatorConfig, log *logger.Logger) *Emulator {
	tree := NewTree()
	h := NewHandler(tree, cfg.AuthToken, cfg.KeepAlive, log)

	return &Emulator{
		tree:    tree,
		handler: h,
		server: &http.Server{
			Addr:              cfg.Address,
			Handler:           h.Init(),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: log,
	}
}

func (e *Emulator) Tree() *Tree {
	return e.tree
}

func (e *Emulator) Handler() *Handler {
	return e.handler
}

// Run serves until ctx is cancelled or the process receives SIGTERM,
// SIGINT or SIGQUIT, then shuts down gracefully.
func (e *Emulator) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		e.logger.Info().Str("address", e.server.Addr).Msg("launching emulator")
		errCh <- e.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// streams never finish on their own
	e.handler.CancelStreams()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	e.logger.Info().Msg("emulator shut down gracefully")
	return nil
}
