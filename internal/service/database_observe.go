// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"sync"

	"github.com/MKhiriev/go-firesync/models"
)

// Observation is one subscriber of a RealtimeDatabase. Events are delivered
// in publication order and never dropped: a slow reader only grows the
// queue of its own observation.
type Observation[T any] struct {
	events chan models.Event[T]
	wake   chan struct{}
	stop   chan struct{}
	done   chan struct{}

	mu     sync.Mutex
	queue  []models.Event[T]
	ending bool
	err    error

	closeOnce sync.Once
	acquired  bool
	release   func(*Observation[T])
}

func newObservation[T any](release func(*Observation[T])) *Observation[T] {
	o := &Observation[T]{
		events:  make(chan models.Event[T]),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		release: release,
	}
	go o.pump()
	return o
}

// Events delivers the changes. The channel is closed after Close, after
// the database is closed or after the live stream failed for good.
func (o *Observation[T]) Events() <-chan models.Event[T] {
	return o.events
}

// Err returns the error that ended the observation, if any. It is set once
// Events is closed.
func (o *Observation[T]) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

// Close stops the delivery and releases the background machinery held by
// this observation.
func (o *Observation[T]) Close() {
	o.closeOnce.Do(func() {
		close(o.stop)
		<-o.done
		o.release(o)
	})
}

// push queues events. It never blocks.
func (o *Observation[T]) push(events ...models.Event[T]) {
	if len(events) == 0 {
		return
	}
	o.mu.Lock()
	if o.ending {
		o.mu.Unlock()
		return
	}
	o.queue = append(o.queue, events...)
	o.mu.Unlock()
	o.signal()
}

// end delivers the queued events and then closes Events with err.
func (o *Observation[T]) end(err error) {
	o.mu.Lock()
	if !o.ending {
		o.ending = true
		o.err = err
	}
	o.mu.Unlock()
	o.signal()
}

func (o *Observation[T]) signal() {
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

func (o *Observation[T]) pump() {
	defer close(o.done)
	defer close(o.events)

	for {
		o.mu.Lock()
		if len(o.queue) == 0 {
			ending := o.ending
			o.mu.Unlock()
			if ending {
				return
			}
			select {
			case <-o.wake:
				continue
			case <-o.stop:
				return
			}
		}
		ev := o.queue[0]
		o.queue[0] = models.Event[T]{}
		o.queue = o.queue[1:]
		o.mu.Unlock()

		select {
		case o.events <- ev:
		case <-o.stop:
			return
		}
	}
}

// Observe subscribes to the changes of the collection. The first events
// replay every resident element with SourceOffline; local writes, the
// initial pull and the live stream follow in order. The background
// machinery runs while at least one observation is open.
func (db *RealtimeDatabase[T]) Observe() *Observation[T] {
	o := newObservation(db.unsubscribe)
	if db.closed.Load() {
		o.end(ErrDatabaseClosed)
		return o
	}

	db.emitMu.Lock()
	replay, err := db.residentEvents()
	if err != nil {
		db.emitMu.Unlock()
		o.end(err)
		return o
	}
	o.push(replay...)
	db.subscribers[o] = struct{}{}
	db.emitMu.Unlock()

	if o.acquired = db.acquire(); !o.acquired {
		db.emitMu.Lock()
		delete(db.subscribers, o)
		db.emitMu.Unlock()
		o.end(ErrDatabaseClosed)
	}
	return o
}

func (db *RealtimeDatabase[T]) unsubscribe(o *Observation[T]) {
	db.emitMu.Lock()
	delete(db.subscribers, o)
	db.emitMu.Unlock()

	if o.acquired {
		db.release()
	}
}

// residentEvents lists the stored elements that hold a value. Callers hold
// emitMu.
func (db *RealtimeDatabase[T]) residentEvents() ([]models.Event[T], error) {
	all, err := db.store.All(context.Background())
	if err != nil {
		return nil, err
	}

	events := make([]models.Event[T], 0, len(all))
	for i := range all {
		e := &all[i]
		if e.IsPartial || !e.HasData() {
			continue
		}
		v, err := models.Decode[T](e)
		if err != nil {
			return nil, err
		}
		events = append(events, models.Event[T]{
			Key:    e.Key,
			Object: v,
			Kind:   models.InsertOrUpdate,
			Source: models.SourceOffline,
		})
	}
	return events, nil
}

// publishLocked hands events to every subscriber. Callers hold emitMu.
func (db *RealtimeDatabase[T]) publishLocked(events ...models.Event[T]) {
	for o := range db.subscribers {
		o.push(events...)
	}
}

// endSubscribers ends every observation with err.
func (db *RealtimeDatabase[T]) endSubscribers(err error) {
	db.emitMu.Lock()
	defer db.emitMu.Unlock()

	for o := range db.subscribers {
		o.end(err)
		delete(db.subscribers, o)
	}
}
