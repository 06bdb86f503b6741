// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package events provides the in-process event bus between app monitors,
// the orchestrator and their observers.
package events

import (
	"context"
	"time"
)

// Event represents an immutable event record.
type Event struct {
	ID        string                 `json:"id" yaml:"id"`
	Seq       uint64                 `json:"seq" yaml:"seq"`
	Version   string                 `json:"version" yaml:"version"`
	Type      string                 `json:"type" yaml:"type"`
	Timestamp time.Time              `json:"timestamp" yaml:"timestamp"`
	RunID     string                 `json:"run_id" yaml:"run_id"`
	App       string                 `json:"app,omitempty" yaml:"app,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty" yaml:"payload,omitempty"`
}

// EventHandler processes received events.
type EventHandler func(ctx context.Context, event Event) error

// SubscriptionID uniquely identifies a subscription.
type SubscriptionID string

// EventFilter for querying event history.
type EventFilter struct {
	Types    []string  // Event type patterns
	AfterSeq uint64    // Only events published after this sequence number
	RunID    string    // Filter by run
	App      string    // Filter by tracked app
	Since    time.Time // Events after this time
	Until    time.Time // Events before this time
	Limit    int       // Maximum events to return, newest kept
}

// Publisher emits events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// EventBus is the pub/sub surface shared by the run's observers.
type EventBus interface {
	Publisher

	// Subscribe registers a synchronous handler for events matching pattern.
	Subscribe(pattern string, handler EventHandler) (SubscriptionID, error)

	// SubscribeAsync registers an async handler with buffered channel.
	SubscribeAsync(pattern string, handler EventHandler, bufferSize int) (SubscriptionID, error)

	// Unsubscribe removes a subscription.
	Unsubscribe(id SubscriptionID) error

	// History retrieves past events matching filter.
	History(filter EventFilter) ([]Event, error)

	// LastSeq returns the sequence number of the latest event.
	LastSeq() uint64

	// SetRunID sets the run ID stamped on events that don't carry one.
	SetRunID(runID string)

	// Close shuts down the event bus gracefully.
	Close() error
}

// Event types
const (
	// Per-app events
	EventAppPending    = "app.pending"
	EventAppInstalling = "app.installing"
	EventAppSucceeded  = "app.succeeded"
	EventAppFailed     = "app.failed"

	// Run events
	EventRunStarted       = "run.started"
	EventRunCountMismatch = "run.count_mismatch"
	EventRunFailed        = "run.failed"
	EventRunCompleted     = "run.completed"
	EventRunIncomplete    = "run.incomplete"
)

// Payload keys
const (
	PayloadApps     = "apps"     // []string, run.started
	PayloadTotal    = "total"    // int, run.started
	PayloadValid    = "valid"    // int, run.count_mismatch
	PayloadExpected = "expected" // int, run.count_mismatch
	PayloadAttempt  = "attempt"  // int, app.*
	PayloadResumed  = "resumed"  // bool, app.succeeded from a prior run's marker
	PayloadFailed   = "failed"   // []string, run.failed
	PayloadReason   = "reason"   // string, run.failed when the run was aborted
)
