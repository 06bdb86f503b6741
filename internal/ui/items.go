// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package ui

import (
	"fmt"
	"os"

	"github.com/hjson/hjson-go/v4"
)

// CountItems returns the number of list items in the renderer's item file.
// The file is JSON or HJSON with a top-level "listitem" array.
func CountItems(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read items file: %w", err)
	}

	var doc map[string]interface{}
	if err := hjson.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("parse items file: %w", err)
	}

	raw, ok := doc["listitem"]
	if !ok {
		return 0, fmt.Errorf("items file %s has no listitem array", path)
	}
	items, ok := raw.([]interface{})
	if !ok {
		return 0, fmt.Errorf("items file %s: listitem is not an array", path)
	}
	return len(items), nil
}
