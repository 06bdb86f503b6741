// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package logs

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/wingedpig/onboard/internal/config"
)

// Pattern matches a single log line.
type Pattern interface {
	Match(line string) bool
	String() string
}

type literalPattern string

func (p literalPattern) Match(line string) bool { return strings.Contains(line, string(p)) }
func (p literalPattern) String() string         { return string(p) }

type regexPattern struct {
	re *regexp.Regexp
}

func (p regexPattern) Match(line string) bool { return p.re.MatchString(line) }
func (p regexPattern) String() string         { return p.re.String() }

// Compile builds a pattern for the given match mode ("literal" or "regex").
func Compile(mode, raw string) (Pattern, error) {
	if raw == "" {
		return nil, fmt.Errorf("empty pattern")
	}
	switch mode {
	case "", config.MatchLiteral:
		return literalPattern(raw), nil
	case config.MatchRegex:
		re, err := regexp.Compile(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", raw, err)
		}
		return regexPattern{re: re}, nil
	default:
		return nil, fmt.Errorf("unknown match mode: %s", mode)
	}
}

// CompileAll compiles every pattern, failing on the first bad one.
func CompileAll(mode string, raws []string) ([]Pattern, error) {
	out := make([]Pattern, 0, len(raws))
	for _, raw := range raws {
		p, err := Compile(mode, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
