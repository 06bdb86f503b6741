// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package markers stores the presence flags that survive process restarts:
// the run lock, the done flag, the debug flag and per-app outcomes.
package markers

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

// Key names a marker.
type Key string

// Process-wide markers.
const (
	KeyLock  Key = "onboard.lock"
	KeyDone  Key = "onboard.done"
	KeyDebug Key = "onboard.debug"
)

// Per-app outcome suffixes.
const (
	SuffixSuccess = ".success"
	SuffixFail    = ".fail"
)

// ErrInvalidKey is returned for empty keys or keys that are not a single path element.
var ErrInvalidKey = errors.New("invalid marker key")

// AppSuccess returns the success marker for an app.
func AppSuccess(app string) Key {
	return Key(sanitize(app) + SuffixSuccess)
}

// AppFail returns the failure marker for an app.
func AppFail(app string) Key {
	return Key(sanitize(app) + SuffixFail)
}

// AppName recovers the app name from a per-app marker key.
// The result is the sanitized form used on disk.
func AppName(k Key) string {
	s := string(k)
	s = strings.TrimSuffix(s, SuffixSuccess)
	return strings.TrimSuffix(s, SuffixFail)
}

// Store is a key-presence store. Touch and Remove are idempotent.
type Store interface {
	// Exists reports whether the marker is present.
	Exists(k Key) (bool, error)

	// Touch creates the marker if absent. Created is false if it already existed.
	Touch(k Key) (created bool, err error)

	// Remove deletes the marker. Removing an absent marker is not an error.
	Remove(k Key) error

	// List returns present markers whose key ends with suffix, sorted.
	List(suffix string) ([]Key, error)
}

func sanitize(name string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", "\x00", "")
	return strings.TrimSpace(r.Replace(name))
}

func validate(k Key) error {
	s := string(k)
	if s == "" || s == "." || s == ".." || strings.ContainsAny(s, "/\\\x00") {
		return ErrInvalidKey
	}
	return nil
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu   sync.Mutex
	keys map[Key]bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[Key]bool)}
}

func (s *MemoryStore) Exists(k Key) (bool, error) {
	if err := validate(k); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys[k], nil
}

func (s *MemoryStore) Touch(k Key) (bool, error) {
	if err := validate(k); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keys[k] {
		return false, nil
	}
	s.keys[k] = true
	return true, nil
}

func (s *MemoryStore) Remove(k Key) error {
	if err := validate(k); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, k)
	return nil
}

func (s *MemoryStore) List(suffix string) ([]Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Key
	for k := range s.keys {
		if strings.HasSuffix(string(k), suffix) {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
