// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package middleware holds the HTTP wrappers applied to every status API
// route.
package middleware

import (
	"bufio"
	"log"
	"net"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/wingedpig/onboard/internal/api/handlers"
)

// statusRecorder captures the status code and body size of a response.
type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	n, err := rec.ResponseWriter.Write(b)
	rec.size += n
	return n, err
}

// Hijack lets the event stream upgrade to a WebSocket through the recorder.
func (rec *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := rec.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

// Logging logs failed requests. When verbose is set every request is
// logged, including WebSocket sessions once they close.
func Logging(verbose bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			if verbose || rec.status >= http.StatusBadRequest {
				log.Printf("API: %s %s %d %dB %s", r.Method, r.URL.Path, rec.status, rec.size, time.Since(start))
			}
		})
	}
}

// LocalOnly rejects requests that do not come from a loopback address.
func LocalOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		ip := net.ParseIP(host)
		if ip == nil || !ip.IsLoopback() {
			handlers.WriteError(w, http.StatusForbidden, handlers.ErrForbidden, "status API is only available locally")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Recovery turns a handler panic into a 500 response.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("API: panic recovered: %v\n%s", err, debug.Stack())
				handlers.WriteError(w, http.StatusInternalServerError, handlers.ErrInternalError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
