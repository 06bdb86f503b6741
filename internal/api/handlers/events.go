// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wingedpig/onboard/internal/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// EventHandler serves run event history and the live event stream.
type EventHandler struct {
	bus events.EventBus
}

// NewEventHandler creates a new event handler.
func NewEventHandler(bus events.EventBus) *EventHandler {
	return &EventHandler{bus: bus}
}

// History returns past events. Query parameters: type (repeatable,
// wildcards allowed), after (sequence number), run, app, limit, since and
// until (RFC 3339).
func (h *EventHandler) History(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := events.EventFilter{
		Types: query["type"],
		RunID: query.Get("run"),
		App:   query.Get("app"),
	}

	after, err := parseSeq(query.Get("after"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "after must be a sequence number")
		return
	}
	filter.AfterSeq = after

	if limitStr := query.Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n < 0 {
			WriteError(w, http.StatusBadRequest, ErrBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}

	if filter.Since, err = parseTime(query.Get("since")); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "since: "+err.Error())
		return
	}
	if filter.Until, err = parseTime(query.Get("until")); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "until: "+err.Error())
		return
	}

	eventList, err := h.bus.History(filter)
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, err.Error())
		return
	}
	if eventList == nil {
		eventList = []events.Event{}
	}

	WriteJSON(w, http.StatusOK, eventList)
}

func parseSeq(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseUint(s, 10, 64)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

// WebSocket streams events matching the optional pattern query parameter.
// With after=N, stored events newer than N are replayed first so a client
// can reconnect without gaps.
func (h *EventHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	pattern := query.Get("pattern")
	if pattern == "" {
		pattern = "*"
	}
	after, err := parseSeq(query.Get("after"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "after must be a sequence number")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	eventCh := make(chan events.Event, 100)
	done := make(chan struct{})

	subID, err := h.bus.SubscribeAsync(pattern, func(_ context.Context, event events.Event) error {
		select {
		case eventCh <- event:
		case <-done:
		default:
			// Drop if buffer full
		}
		return nil
	}, 100)
	if err != nil {
		conn.WriteJSON(map[string]string{"error": err.Error()})
		return
	}
	defer h.bus.Unsubscribe(subID)

	last := after
	if query.Has("after") {
		backlog, err := h.bus.History(events.EventFilter{Types: []string{pattern}, AfterSeq: after})
		if err != nil {
			conn.WriteJSON(map[string]string{"error": err.Error()})
			return
		}
		for _, event := range backlog {
			if err := conn.WriteJSON(event); err != nil {
				return
			}
			last = event.Seq
		}
	}

	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	pingTicker := time.NewTicker(54 * time.Second)
	defer pingTicker.Stop()

	// Read goroutine (for close detection)
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event := <-eventCh:
			if event.Seq <= last {
				continue
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
			last = event.Seq
		case <-pingTicker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
