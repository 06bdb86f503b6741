// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ErrBusClosed is returned when operating on a closed bus.
var ErrBusClosed = errors.New("event bus is closed")

// ErrSubscriptionNotFound is returned when unsubscribing with invalid ID.
var ErrSubscriptionNotFound = errors.New("subscription not found")

const (
	eventVersion       = "1"
	defaultAsyncBuffer = 256
)

// BusConfig configures the bus.
type BusConfig struct {
	HistorySize int // Events kept for History (default 4096)
	AsyncBuffer int // Default buffer for SubscribeAsync
}

// Bus is the in-process event bus. Publish assigns every event a sequence
// number and delivers it to synchronous subscribers in registration order
// before the next event is published, so observers see the same order as
// History. Synchronous handlers must not publish.
type Bus struct {
	cfg     BusConfig
	history *History

	publishMu sync.Mutex // serializes sequencing and sync delivery
	seq       atomic.Uint64

	mu     sync.RWMutex
	subs   []*subscription
	runID  string
	closed atomic.Bool
	wg     sync.WaitGroup
}

type subscription struct {
	id      SubscriptionID
	pattern Pattern
	handler EventHandler
	ch      chan Event // nil for synchronous subscribers
	stop    chan struct{}
}

// NewBus creates a bus.
func NewBus(cfg BusConfig) *Bus {
	if cfg.AsyncBuffer <= 0 {
		cfg.AsyncBuffer = defaultAsyncBuffer
	}
	return &Bus{cfg: cfg, history: NewHistory(cfg.HistorySize)}
}

// SetRunID sets the run ID stamped on events that don't carry one.
func (b *Bus) SetRunID(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.runID = runID
}

// Publish records event and delivers it to every matching subscriber.
func (b *Bus) Publish(ctx context.Context, event Event) error {
	if b.closed.Load() {
		return ErrBusClosed
	}

	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	b.mu.RLock()
	runID := b.runID
	subs := append([]*subscription(nil), b.subs...)
	b.mu.RUnlock()

	event.Seq = b.seq.Add(1)
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Version == "" {
		event.Version = eventVersion
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.RunID == "" {
		event.RunID = runID
	}

	b.history.Add(event)

	for _, sub := range subs {
		if !sub.pattern.Match(event.Type) {
			continue
		}
		if sub.ch == nil {
			deliver(ctx, sub.handler, event)
			continue
		}
		select {
		case sub.ch <- event:
		default:
			log.Printf("EventBus: dropped %s #%d, async subscriber buffer full", event.Type, event.Seq)
		}
	}
	return nil
}

func deliver(ctx context.Context, handler EventHandler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("EventBus: handler panic for %s: %v", event.Type, r)
		}
	}()
	if err := handler(ctx, event); err != nil {
		log.Printf("EventBus: handler for %s: %v", event.Type, err)
	}
}

// Subscribe registers a synchronous handler for events matching pattern.
func (b *Bus) Subscribe(pattern string, handler EventHandler) (SubscriptionID, error) {
	return b.add(pattern, handler, 0)
}

// SubscribeAsync registers a handler that runs on its own goroutine fed by
// a buffer of bufferSize events. Events are dropped while the buffer is full.
func (b *Bus) SubscribeAsync(pattern string, handler EventHandler, bufferSize int) (SubscriptionID, error) {
	if bufferSize <= 0 {
		bufferSize = b.cfg.AsyncBuffer
	}
	return b.add(pattern, handler, bufferSize)
}

func (b *Bus) add(raw string, handler EventHandler, buffer int) (SubscriptionID, error) {
	if b.closed.Load() {
		return "", ErrBusClosed
	}
	pattern, err := ParsePattern(raw)
	if err != nil {
		return "", err
	}

	sub := &subscription{
		id:      SubscriptionID(uuid.NewString()),
		pattern: pattern,
		handler: handler,
	}
	if buffer > 0 {
		sub.ch = make(chan Event, buffer)
		sub.stop = make(chan struct{})
		b.wg.Add(1)
		go b.drain(sub)
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()
	return sub.id, nil
}

func (b *Bus) drain(sub *subscription) {
	defer b.wg.Done()
	for {
		select {
		case <-sub.stop:
			return
		case event := <-sub.ch:
			deliver(context.Background(), sub.handler, event)
		}
	}
}

// Unsubscribe removes a subscription.
func (b *Bus) Unsubscribe(id SubscriptionID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subs {
		if sub.id != id {
			continue
		}
		b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
		if sub.stop != nil {
			close(sub.stop)
		}
		return nil
	}
	return ErrSubscriptionNotFound
}

// History retrieves past events matching filter.
func (b *Bus) History(filter EventFilter) ([]Event, error) {
	return b.history.Query(filter)
}

// LastSeq returns the sequence number of the latest published event.
func (b *Bus) LastSeq() uint64 {
	return b.seq.Load()
}

// Close stops async subscribers and waits for them to return.
func (b *Bus) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	b.mu.Lock()
	for _, sub := range b.subs {
		if sub.stop != nil {
			close(sub.stop)
		}
	}
	b.subs = nil
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}
