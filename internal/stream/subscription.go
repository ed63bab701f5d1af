// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	sse "github.com/tmaxmax/go-sse"

	"github.com/MKhiriev/go-firesync/internal/adapter"
	"github.com/MKhiriev/go-firesync/internal/logger"
	"github.com/MKhiriev/go-firesync/models"
)

const (
	eventPut         = "put"
	eventPatch       = "patch"
	eventKeepAlive   = "keep-alive"
	eventCancel      = "cancel"
	eventAuthRevoked = "auth_revoked"

	eventBufferSize     = 64
	defaultRetryDelay   = 2 * time.Second
	frameSummaryMaxSize = 256
)

// Merger applies a stream fragment at path and reports the changed
// top-level elements.
type Merger[T any] interface {
	PushData(path, data string) ([]models.Event[T], error)
}

// Options tune a Subscription. Zero values select the defaults.
type Options struct {
	// ElementRoot is the key of the element the query points at when the
	// subscription watches a single element instead of a collection. Paths
	// of incoming frames are prefixed with it.
	ElementRoot string

	// ErrorHandler decides whether to reconnect after a failure; defaults to
	// ContinueOnError.
	ErrorHandler ErrorHandler

	// Backoff builds the reconnection delays of an outage; defaults to a
	// fixed 2s delay without a retry limit.
	Backoff BackoffFactory
}

type frame struct {
	Path string          `json:"path"`
	Data json.RawMessage `json:"data"`
}

// Subscription is a running event stream. It is safe for concurrent use.
type Subscription[T any] struct {
	transport   adapter.Transport
	query       *adapter.Query
	merger      Merger[T]
	elementRoot string
	handler     ErrorHandler
	newBackoff  BackoffFactory

	events chan models.Event[T]
	cancel context.CancelFunc
	done   chan struct{}

	stateMu sync.Mutex
	state   State
	err     error

	logger *logger.Logger
}

// Subscribe opens the stream for q and starts reading it in the background
// until ctx is cancelled, Close is called or the subscription terminates.
func Subscribe[T any](
	ctx context.Context,
	transport adapter.Transport,
	q *adapter.Query,
	merger Merger[T],
	opts Options,
	log *logger.Logger,
) *Subscription[T] {
	if opts.ErrorHandler == nil {
		opts.ErrorHandler = ContinueOnError
	}
	if opts.Backoff == nil {
		opts.Backoff = ConstantBackoff(defaultRetryDelay, 0)
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription[T]{
		transport:   transport,
		query:       q,
		merger:      merger,
		elementRoot: normalizeRoot(opts.ElementRoot),
		handler:     opts.ErrorHandler,
		newBackoff:  opts.Backoff,
		events:      make(chan models.Event[T], eventBufferSize),
		cancel:      cancel,
		done:        make(chan struct{}),
		state:       StateConnecting,
		logger:      log,
	}

	go s.run(ctx)
	return s
}

// Events delivers merged changes. The channel is closed once the
// subscription terminates.
func (s *Subscription[T]) Events() <-chan models.Event[T] {
	return s.events
}

// Done is closed once the subscription terminates.
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}

// Err returns the error that terminated the subscription; nil while it runs
// and after Close.
func (s *Subscription[T]) Err() error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.err
}

func (s *Subscription[T]) State() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// Close aborts the read in progress, prevents reconnection and waits for
// the reader goroutine to exit.
func (s *Subscription[T]) Close() {
	s.cancel()
	<-s.done
}

func (s *Subscription[T]) transitionTo(newState State) error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	if err := s.state.validateTransitionTo(newState); err != nil {
		return err
	}

	s.state = newState
	s.logger.Debug().
		Str("func", "Subscription.transitionTo").
		Str("path", s.query.Path()).
		Stringer("state", newState).
		Msg("stream state transitioned")
	return nil
}

func (s *Subscription[T]) terminate(err error) {
	if stateErr := s.transitionTo(StateTerminated); stateErr != nil {
		s.logger.Err(stateErr).Str("func", "Subscription.terminate").Msg("BUG: failed to terminate stream")
	}

	s.stateMu.Lock()
	s.err = err
	s.stateMu.Unlock()
}

func (s *Subscription[T]) run(ctx context.Context) {
	defer close(s.done)
	defer close(s.events)

	var backoff retry.Backoff
	for {
		streamed, err := s.connect(ctx)
		if ctx.Err() != nil {
			s.terminate(nil)
			return
		}
		if streamed || backoff == nil {
			backoff = s.newBackoff()
		}

		if errors.Is(err, ErrCancelled) {
			s.logger.Warn().
				Str("func", "Subscription.run").
				Str("path", s.query.Path()).
				Msg("stream cancelled by server")
			s.terminate(err)
			return
		}

		var delay time.Duration
		if errors.Is(err, errAuthRevoked) {
			s.invalidateToken()
		} else {
			if s.handler(err) == Abort {
				s.terminate(err)
				return
			}

			var stop bool
			if delay, stop = backoff.Next(); stop {
				s.terminate(err)
				return
			}
		}

		if stateErr := s.transitionTo(StateReconnecting); stateErr != nil {
			s.terminate(stateErr)
			return
		}
		s.logger.Warn().
			Err(err).
			Str("func", "Subscription.run").
			Str("path", s.query.Path()).
			Dur("delay", delay).
			Msg("stream interrupted, reconnecting")

		select {
		case <-ctx.Done():
			s.terminate(nil)
			return
		case <-time.After(delay):
		}

		if stateErr := s.transitionTo(StateConnecting); stateErr != nil {
			s.terminate(stateErr)
			return
		}
	}
}

// connect opens the stream and reads it until it fails. streamed reports
// whether the connection was established.
func (s *Subscription[T]) connect(ctx context.Context) (streamed bool, err error) {
	body, err := s.transport.Stream(ctx, s.query)
	if err != nil {
		return false, err
	}
	defer body.Close()

	// unblock the read on Close
	stop := context.AfterFunc(ctx, func() { body.Close() })
	defer stop()

	if err = s.transitionTo(StateStreaming); err != nil {
		return false, err
	}
	return true, s.read(ctx, body)
}

func (s *Subscription[T]) read(ctx context.Context, body io.Reader) error {
	for ev, err := range sse.Read(body, nil) {
		if err != nil {
			return fmt.Errorf("read stream: %w", err)
		}
		if err = s.process(ctx, ev.Type, ev.Data); err != nil {
			return err
		}
	}
	return ErrStreamEnded
}

func (s *Subscription[T]) process(ctx context.Context, event, data string) error {
	switch event {
	case eventPut, eventPatch:
		var f frame
		if err := json.Unmarshal([]byte(data), &f); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrMalformedFrame, summarize(data), err)
		}
		if f.Path == "" {
			return fmt.Errorf("%w: missing path: %s", ErrMalformedFrame, summarize(data))
		}

		payload := rawPayload(f.Data)
		if f.Path == "/" && s.elementRoot != "" && models.IsNullData(payload) {
			return s.emit(ctx, models.EmptyEvent[T](models.SourceOnlineStream))
		}

		events, err := s.merger.PushData(joinPath(s.elementRoot, f.Path), payload)
		if err != nil {
			return fmt.Errorf("merge %s frame at %q: %w", event, f.Path, err)
		}
		for _, ev := range events {
			ev.Source = models.SourceOnlineStream
			if err = s.emit(ctx, ev); err != nil {
				return err
			}
		}
		return nil
	case eventCancel:
		return fmt.Errorf("%w: %s", ErrCancelled, data)
	case eventAuthRevoked:
		return errAuthRevoked
	case eventKeepAlive:
		return nil
	default:
		// unnamed events and events this client does not know
		return nil
	}
}

func (s *Subscription[T]) emit(ctx context.Context, ev models.Event[T]) error {
	select {
	case s.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Subscription[T]) invalidateToken() {
	if inv, ok := s.query.Tokens().(interface{ Invalidate() }); ok {
		inv.Invalidate()
	}
}

// rawPayload returns string literals unquoted; the merger assigns scalars
// as they are.
func rawPayload(data json.RawMessage) string {
	if len(data) == 0 {
		return "null"
	}

	var str string
	if data[0] == '"' && json.Unmarshal(data, &str) == nil {
		return str
	}
	return string(data)
}

func normalizeRoot(root string) string {
	root = strings.Trim(root, "/")
	if root == "" {
		return ""
	}
	return "/" + root
}

func joinPath(root, path string) string {
	switch {
	case root == "":
		return path
	case path == "/":
		return root
	default:
		return root + "/" + strings.TrimLeft(path, "/")
	}
}

func summarize(data string) string {
	if len(data) > frameSummaryMaxSize {
		return data[:frameSummaryMaxSize] + "..."
	}
	return data
}
