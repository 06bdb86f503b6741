// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/wingedpig/onboard/internal/config"
)

const (
	defaultMaxLines = 200000
	maxLineSize     = 1024 * 1024 // 1MB max line size
)

type indexedLine struct {
	at   time.Time
	text string
}

// FileSource queries a local append-only log file. Lines are indexed
// incrementally; truncation or rotation resets the index.
//
// Without Start, every query re-reads whatever was appended since the
// previous query. After Start, a filesystem watcher marks the index dirty
// and queries only re-read when something changed.
type FileSource struct {
	sourceBase
	path     string
	ts       *TimestampParser
	maxLines int

	now func() time.Time

	mu       sync.RWMutex
	lines    []indexedLine
	offset   int64
	info     os.FileInfo
	lastTime time.Time
	timed    bool // A timestamp has parsed since the last reset
	warned   bool

	watching atomic.Bool
	dirty    atomic.Bool
	watcher  *fsnotify.Watcher
	wg       sync.WaitGroup
}

// NewFileSource creates a new file-based log source.
func NewFileSource(cfg config.LogSourceConfig) (*FileSource, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("file source requires path")
	}
	ts, err := NewTimestampParser(cfg.TimestampPattern, cfg.TimestampLayout)
	if err != nil {
		return nil, err
	}
	maxLines := cfg.MaxLines
	if maxLines <= 0 {
		maxLines = defaultMaxLines
	}
	s := &FileSource{
		path:     filepath.Clean(cfg.Path),
		ts:       ts,
		maxLines: maxLines,
		now:      time.Now,
	}
	s.dirty.Store(true)
	return s, nil
}

// Name returns the source name.
func (s *FileSource) Name() string {
	return fmt.Sprintf("file:%s", s.path)
}

// Start watches the log's directory so queries skip re-reading an
// unchanged file. The watcher stops when ctx is done or Stop is called.
func (s *FileSource) Start(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	// Watch the directory so rotation (rename + create) is seen.
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(s.path), err)
	}

	s.watcher = w
	s.dirty.Store(true)
	s.watching.Store(true)

	s.wg.Add(1)
	go s.processEvents(ctx)
	return nil
}

// Stop stops the watcher. Queries fall back to reading on every call.
func (s *FileSource) Stop() error {
	if s.watcher == nil {
		return nil
	}
	s.watching.Store(false)
	err := s.watcher.Close()
	s.wg.Wait()
	return err
}

func (s *FileSource) processEvents(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			s.watching.Store(false)
			s.watcher.Close()
			return

		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) == s.path {
				s.dirty.Store(true)
			}

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			// Overflow may drop events; fall back to a full re-read check.
			log.Printf("Logs: watcher error on %s: %v", s.path, err)
			s.dirty.Store(true)
		}
	}
}

// Query reports whether a line at or after since matches p.
func (s *FileSource) Query(ctx context.Context, p Pattern, since time.Time) (bool, error) {
	s.countQuery()

	if !s.watching.Load() || s.dirty.Swap(false) {
		if err := s.refresh(); err != nil {
			s.dirty.Store(true)
			s.setError(err)
			return false, err
		}
		s.setConnected()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	start := 0
	if !since.IsZero() {
		start = sort.Search(len(s.lines), func(i int) bool {
			return !s.lines[i].at.Before(since)
		})
	}

	for i := start; i < len(s.lines); i++ {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return false, err
			}
		}
		if p.Match(s.lines[i].text) {
			return true, nil
		}
	}
	return false, nil
}

// refresh indexes lines appended since the last read.
func (s *FileSource) refresh() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat log: %w", err)
	}

	if s.info != nil && (!os.SameFile(s.info, info) || info.Size() < s.offset) {
		log.Printf("Logs: %s was rotated or truncated, re-indexing", s.path)
		s.lines = nil
		s.offset = 0
		s.lastTime = time.Time{}
		s.timed = false
	}
	s.info = info

	if info.Size() == s.offset {
		return nil
	}
	if _, err := f.Seek(s.offset, io.SeekStart); err != nil {
		return fmt.Errorf("seek log: %w", err)
	}

	readAt := s.now()
	reader := bufio.NewReaderSize(f, 64*1024)
	added := 0
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				// Partial trailing line is picked up on the next refresh.
				break
			}
			return fmt.Errorf("read log: %w", err)
		}
		s.offset += int64(len(line))

		line = strings.TrimRight(line, "\r\n")
		if len(line) > maxLineSize {
			line = line[:maxLineSize]
		}
		s.stamp(line, readAt)
		s.lines = append(s.lines, indexedLine{at: s.lastTime, text: line})
		added++
	}

	if added > 0 && !s.timed && !s.warned {
		s.warned = true
		log.Printf("Logs: no line in %s matches the timestamp pattern, using read time for untimed lines", s.path)
	}

	if over := len(s.lines) - s.maxLines; over > 0 {
		s.lines = append([]indexedLine(nil), s.lines[over:]...)
	}
	s.addLines(added)
	return nil
}

// stamp advances lastTime for line. Untimed lines and out-of-order
// timestamps inherit the latest time seen, keeping the index sorted.
// Until a timestamp parses, untimed lines carry the time they were read;
// the first timestamp then re-stamps those leading lines.
func (s *FileSource) stamp(line string, readAt time.Time) {
	t, ok := s.ts.Parse(line)
	switch {
	case ok && !s.timed:
		s.timed = true
		s.lastTime = t
		for i := range s.lines {
			s.lines[i].at = t
		}
	case ok:
		if t.After(s.lastTime) {
			s.lastTime = t
		}
	case !s.timed && readAt.After(s.lastTime):
		s.lastTime = readAt
	}
}
