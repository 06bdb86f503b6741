// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package markers

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileStore keeps markers as empty files in a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create marker directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the marker directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Path returns the file path for a marker.
func (s *FileStore) Path(k Key) string {
	return filepath.Join(s.dir, string(k))
}

func (s *FileStore) Exists(k Key) (bool, error) {
	if err := validate(k); err != nil {
		return false, err
	}
	_, err := os.Stat(s.Path(k))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat marker %s: %w", k, err)
}

func (s *FileStore) Touch(k Key) (bool, error) {
	if err := validate(k); err != nil {
		return false, err
	}
	f, err := os.OpenFile(s.Path(k), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("create marker %s: %w", k, err)
	}
	if err := f.Close(); err != nil {
		return true, fmt.Errorf("close marker %s: %w", k, err)
	}
	return true, nil
}

func (s *FileStore) Remove(k Key) error {
	if err := validate(k); err != nil {
		return err
	}
	if err := os.Remove(s.Path(k)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove marker %s: %w", k, err)
	}
	return nil
}

func (s *FileStore) List(suffix string) ([]Key, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read marker directory: %w", err)
	}

	var out []Key
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		out = append(out, Key(e.Name()))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
