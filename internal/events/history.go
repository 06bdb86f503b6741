// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"sync"
)

const defaultHistorySize = 4096

// History keeps the most recent events of a run in publish order.
type History struct {
	mu   sync.RWMutex
	ring []Event
	next int  // slot for the next event
	full bool // ring has wrapped at least once
}

// NewHistory creates a history holding at most size events.
func NewHistory(size int) *History {
	if size <= 0 {
		size = defaultHistorySize
	}
	return &History{ring: make([]Event, size)}
}

// Add stores event, evicting the oldest one when full.
func (h *History) Add(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.ring[h.next] = event
	h.next++
	if h.next == len(h.ring) {
		h.next = 0
		h.full = true
	}
}

// Len returns the number of stored events.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.full {
		return len(h.ring)
	}
	return h.next
}

// Query returns stored events matching filter, oldest first. When
// filter.Limit is set the newest matches are kept.
func (h *History) Query(filter EventFilter) ([]Event, error) {
	types := make([]Pattern, 0, len(filter.Types))
	for _, raw := range filter.Types {
		p, err := ParsePattern(raw)
		if err != nil {
			return nil, err
		}
		types = append(types, p)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	var result []Event
	h.each(func(e Event) {
		if matchesFilter(e, filter, types) {
			result = append(result, e)
		}
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[len(result)-filter.Limit:]
	}
	return result, nil
}

// each visits events oldest first. Caller holds h.mu.
func (h *History) each(fn func(Event)) {
	if h.full {
		for _, e := range h.ring[h.next:] {
			fn(e)
		}
	}
	for _, e := range h.ring[:h.next] {
		fn(e)
	}
}

func matchesFilter(e Event, filter EventFilter, types []Pattern) bool {
	if len(types) > 0 {
		matched := false
		for _, p := range types {
			if p.Match(e.Type) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if filter.AfterSeq > 0 && e.Seq <= filter.AfterSeq {
		return false
	}
	if filter.RunID != "" && e.RunID != filter.RunID {
		return false
	}
	if filter.App != "" && e.App != filter.App {
		return false
	}
	if !filter.Since.IsZero() && e.Timestamp.Before(filter.Since) {
		return false
	}
	if !filter.Until.IsZero() && e.Timestamp.After(filter.Until) {
		return false
	}
	return true
}
