// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package api serves a read-only local view of the run: per-app status,
// markers, event history and a live event stream.
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wingedpig/onboard/internal/api/handlers"
	"github.com/wingedpig/onboard/internal/api/middleware"
	"github.com/wingedpig/onboard/internal/events"
	"github.com/wingedpig/onboard/internal/markers"
)

// Dependencies holds all dependencies for API handlers.
type Dependencies struct {
	EventBus events.EventBus
	Tracker  handlers.Snapshotter
	Store    markers.Store

	AllowRemote bool // Serve non-loopback clients
	Verbose     bool // Log every request, not only failures
}

const apiPrefix = "/api/v1"

// NewRouter creates a new API router.
func NewRouter(deps Dependencies) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.Logging(deps.Verbose))
	r.Use(middleware.Recovery)
	if !deps.AllowRemote {
		r.Use(middleware.LocalOnly)
	}

	r.NotFoundHandler = http.HandlerFunc(handlers.NotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(handlers.MethodNotAllowed)

	statusHandler := handlers.NewStatusHandler(deps.Tracker, deps.Store)
	r.HandleFunc(apiPrefix+"/status", statusHandler.Status).Methods("GET")
	r.HandleFunc(apiPrefix+"/markers", statusHandler.Markers).Methods("GET")

	if deps.EventBus != nil {
		eventHandler := handlers.NewEventHandler(deps.EventBus)
		r.HandleFunc(apiPrefix+"/events", eventHandler.History).Methods("GET")
		r.HandleFunc(apiPrefix+"/events/ws", eventHandler.WebSocket).Methods("GET")
	}

	return r
}

// Server represents the API server.
type Server struct {
	router   *mux.Router
	listen   string
	server   *http.Server
	listener net.Listener
}

// NewServer creates a server that will listen on addr (host:port).
func NewServer(addr string, deps Dependencies) *Server {
	return &Server{
		router: NewRouter(deps),
		listen: addr,
	}
}

// Router returns the underlying router.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.listen, err)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("API server listening on http://%s", ln.Addr())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("API server error: %v", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	log.Println("Shutting down API server...")

	shutdownCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}

	return s.server.Shutdown(shutdownCtx)
}
