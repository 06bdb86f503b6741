// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"fmt"
	"strings"
)

// Pattern selects event types. A pattern is one or more alternatives
// separated by "|". Each alternative is "*", an exact type, a prefix
// wildcard such as "app.*" or a suffix wildcard such as "*.failed".
type Pattern struct {
	raw  string
	alts []alternative
}

type alternative struct {
	prefix string // "app." for "app.*"
	suffix string // ".failed" for "*.failed"
	exact  string
	any    bool
}

// ParsePattern validates raw and returns the compiled pattern.
func ParsePattern(raw string) (Pattern, error) {
	p := Pattern{raw: raw}
	if strings.TrimSpace(raw) == "" {
		return p, fmt.Errorf("empty pattern")
	}
	for _, part := range strings.Split(raw, "|") {
		part = strings.TrimSpace(part)
		alt, err := parseAlternative(part)
		if err != nil {
			return p, fmt.Errorf("pattern %q: %w", raw, err)
		}
		p.alts = append(p.alts, alt)
	}
	return p, nil
}

func parseAlternative(s string) (alternative, error) {
	switch {
	case s == "":
		return alternative{}, fmt.Errorf("empty alternative")
	case s == "*":
		return alternative{any: true}, nil
	case strings.HasSuffix(s, ".*") && !strings.Contains(s[:len(s)-2], "*"):
		return alternative{prefix: s[:len(s)-1]}, nil
	case strings.HasPrefix(s, "*.") && !strings.Contains(s[2:], "*"):
		return alternative{suffix: s[1:]}, nil
	case strings.Contains(s, "*"):
		return alternative{}, fmt.Errorf("wildcard only allowed as a whole segment at either end: %s", s)
	}
	return alternative{exact: s}, nil
}

// Match reports whether eventType is selected by any alternative.
func (p Pattern) Match(eventType string) bool {
	if eventType == "" {
		return false
	}
	for _, a := range p.alts {
		switch {
		case a.any:
			return true
		case a.prefix != "":
			if strings.HasPrefix(eventType, a.prefix) {
				return true
			}
		case a.suffix != "":
			if strings.HasSuffix(eventType, a.suffix) {
				return true
			}
		case a.exact == eventType:
			return true
		}
	}
	return false
}

func (p Pattern) String() string {
	return p.raw
}

// MatchType reports whether eventType is selected by raw. Malformed
// patterns select nothing.
func MatchType(raw, eventType string) bool {
	p, err := ParsePattern(raw)
	if err != nil {
		return false
	}
	return p.Match(eventType)
}
