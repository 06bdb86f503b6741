// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"net/http"

	"github.com/wingedpig/onboard/internal/markers"
	"github.com/wingedpig/onboard/internal/monitor"
)

// Snapshotter reports the current run status.
type Snapshotter interface {
	Snapshot() monitor.RunStatus
}

// StatusHandler serves the run status and the marker state.
type StatusHandler struct {
	tracker Snapshotter
	store   markers.Store
}

// NewStatusHandler creates a status handler. Either argument may be nil.
func NewStatusHandler(tracker Snapshotter, store markers.Store) *StatusHandler {
	return &StatusHandler{tracker: tracker, store: store}
}

// Status returns the per-app snapshot of the current run.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h.tracker == nil {
		WriteJSON(w, http.StatusOK, monitor.RunStatus{Apps: []monitor.AppStatus{}})
		return
	}
	WriteJSON(w, http.StatusOK, h.tracker.Snapshot())
}

// Markers returns which markers are present.
func (h *StatusHandler) Markers(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		WriteJSON(w, http.StatusOK, markers.Summary{})
		return
	}
	sum, err := markers.Summarize(h.store)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, sum)
}
