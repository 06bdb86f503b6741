// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ReportFile is the report's name inside the state directory.
const ReportFile = "report.yaml"

// Report is the persisted record of the last run.
type Report struct {
	Version string  `yaml:"version"`
	Outcome Outcome `yaml:"outcome"`
}

const reportVersion = "1"

// WriteReport writes out to path atomically.
func WriteReport(path string, out Outcome) error {
	data, err := yaml.Marshal(Report{Version: reportVersion, Outcome: out})
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// ReadReport loads a report written by WriteReport.
func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}
	return &r, nil
}
