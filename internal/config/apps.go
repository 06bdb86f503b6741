// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Mode combines per-pattern hits into a single decision.
type Mode string

const (
	ModeAny Mode = "any"
	ModeAll Mode = "all"
)

// ParseMode parses "any" or "all" (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeAny:
		return ModeAny, nil
	case ModeAll:
		return ModeAll, nil
	default:
		return "", fmt.Errorf("invalid mode %q, must be one of: any, all", s)
	}
}

// TrackedApp is one application whose installation is awaited.
type TrackedApp struct {
	Name            string
	StartMode       Mode
	StartPatterns   []string
	SuccessMode     Mode
	SuccessPatterns []string
}

// AppRow is one parsed row of the tracked-app table.
type AppRow struct {
	Line   int
	App    TrackedApp
	Valid  bool
	Reason string // Why the row was skipped (empty when valid)
}

const appColumns = 5

// LoadAppsFile reads the tracked-app table from path.
func LoadAppsFile(path string) ([]AppRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open apps file: %w", err)
	}
	defer f.Close()
	return LoadApps(f)
}

// LoadApps parses the tracked-app table.
// Columns: name, startMode, startPatterns, successMode, successPatterns.
// Each physical line is one row, parsed as CSV on its own, so a malformed
// row (for example an unclosed quote) never spills into the rows after it.
// Comment rows (#) and blank rows are skipped silently. Rows with a
// missing or malformed field are returned with Valid=false and logged;
// they never abort the batch.
func LoadApps(r io.Reader) ([]AppRow, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxAppsLine)

	var rows []AppRow
	seen := make(map[string]bool)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(text)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		record, err := splitAppLine(text)
		var row AppRow
		switch {
		case err != nil:
			row = AppRow{Reason: "malformed quoting: " + err.Error()}
		case isBlankRecord(record):
			continue
		default:
			row = parseAppRow(record)
		}
		row.Line = line

		if row.Valid {
			if seen[row.App.Name] {
				row.Valid = false
				row.Reason = fmt.Sprintf("duplicate app name '%s'", row.App.Name)
			} else {
				seen[row.App.Name] = true
			}
		}
		if !row.Valid {
			log.Printf("Config: skipping apps row %d: %s", row.Line, row.Reason)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read apps table: %w", err)
	}

	return rows, nil
}

const maxAppsLine = 1024 * 1024

// splitAppLine parses one table line as a CSV record. A stray quote inside
// an unquoted field is kept literally; an unterminated quoted field is an
// error.
func splitAppLine(text string) ([]string, error) {
	record, err := readRecord(text, false)
	if errors.Is(err, csv.ErrBareQuote) {
		return readRecord(text, true)
	}
	return record, err
}

func readRecord(text string, lazy bool) ([]string, error) {
	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = lazy
	reader.TrimLeadingSpace = true
	record, err := reader.Read()
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return nil, perr.Err
		}
		return nil, err
	}
	return record, nil
}

// ValidApps returns the apps of all valid rows, in table order.
func ValidApps(rows []AppRow) []TrackedApp {
	apps := make([]TrackedApp, 0, len(rows))
	for _, row := range rows {
		if row.Valid {
			apps = append(apps, row.App)
		}
	}
	return apps
}

func parseAppRow(record []string) AppRow {
	fields := make([]string, appColumns)
	copy(fields, record)
	fields[0] = strings.TrimSpace(fields[0])

	row := AppRow{
		App: TrackedApp{
			Name:            fields[0],
			StartPatterns:   SplitPatterns(fields[2]),
			SuccessPatterns: SplitPatterns(fields[4]),
		},
	}

	if len(record) > appColumns {
		row.Reason = fmt.Sprintf("expected %d columns, got %d", appColumns, len(record))
		return row
	}

	names := []string{"name", "start mode", "start patterns", "success mode", "success patterns"}
	for i, f := range fields {
		if strings.TrimSpace(f) == "" {
			row.Reason = names[i] + " is empty"
			return row
		}
	}
	if len(row.App.StartPatterns) == 0 {
		row.Reason = "start patterns is empty"
		return row
	}
	if hasEmptyPattern(row.App.StartPatterns) {
		row.Reason = "start patterns contains an empty entry"
		return row
	}
	if len(row.App.SuccessPatterns) == 0 {
		row.Reason = "success patterns is empty"
		return row
	}
	if hasEmptyPattern(row.App.SuccessPatterns) {
		row.Reason = "success patterns contains an empty entry"
		return row
	}

	var err error
	if row.App.StartMode, err = ParseMode(fields[1]); err != nil {
		row.Reason = "start mode: " + err.Error()
		return row
	}
	if row.App.SuccessMode, err = ParseMode(fields[3]); err != nil {
		row.Reason = "success mode: " + err.Error()
		return row
	}

	row.Valid = true
	return row
}

// SplitPatterns splits a ';'-delimited pattern list. Empty tokens at
// either end are stripped; the remaining tokens are returned verbatim,
// including any empty ones in the middle, which callers reject.
func SplitPatterns(s string) []string {
	tokens := strings.Split(s, ";")
	first, last := 0, len(tokens)
	for first < last && isEmptyPattern(tokens[first]) {
		first++
	}
	for last > first && isEmptyPattern(tokens[last-1]) {
		last--
	}
	if first == last {
		return nil
	}
	return tokens[first:last]
}

func isEmptyPattern(p string) bool {
	return strings.TrimSpace(p) == ""
}

func hasEmptyPattern(patterns []string) bool {
	for _, p := range patterns {
		if isEmptyPattern(p) {
			return true
		}
	}
	return false
}

func isBlankRecord(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
