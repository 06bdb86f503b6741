// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package markers

// Summary is the set of markers present in a store.
type Summary struct {
	Done      bool     `json:"done" yaml:"done"`
	Locked    bool     `json:"locked" yaml:"locked"`
	Debug     bool     `json:"debug" yaml:"debug"`
	Succeeded []string `json:"succeeded,omitempty" yaml:"succeeded,omitempty"`
	Failed    []string `json:"failed,omitempty" yaml:"failed,omitempty"`
}

// Summarize reads every marker in s.
func Summarize(s Store) (Summary, error) {
	var sum Summary
	var err error
	if sum.Done, err = s.Exists(KeyDone); err != nil {
		return sum, err
	}
	if sum.Locked, err = s.Exists(KeyLock); err != nil {
		return sum, err
	}
	if sum.Debug, err = s.Exists(KeyDebug); err != nil {
		return sum, err
	}
	if sum.Succeeded, err = appNames(s, SuffixSuccess); err != nil {
		return sum, err
	}
	sum.Failed, err = appNames(s, SuffixFail)
	return sum, err
}

// Reset removes the done and lock markers and every per-app outcome so the
// flow runs again from scratch. The debug marker is left alone.
func Reset(s Store) (removed []Key, err error) {
	keys := []Key{KeyDone, KeyLock}
	for _, suffix := range []string{SuffixSuccess, SuffixFail} {
		found, err := s.List(suffix)
		if err != nil {
			return removed, err
		}
		keys = append(keys, found...)
	}

	for _, k := range keys {
		ok, err := s.Exists(k)
		if err != nil {
			return removed, err
		}
		if !ok {
			continue
		}
		if err := s.Remove(k); err != nil {
			return removed, err
		}
		removed = append(removed, k)
	}
	return removed, nil
}

func appNames(s Store, suffix string) ([]string, error) {
	keys, err := s.List(suffix)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, AppName(k))
	}
	return names, nil
}
