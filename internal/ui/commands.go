// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package ui drives the external dialog renderer: it turns run events into
// line commands appended to the renderer's command file and manages the
// renderer process.
package ui

import (
	"fmt"
	"strings"
)

// Command is one line of the renderer command protocol.
type Command string

// Item statuses understood by the renderer.
const (
	StatusWait    = "wait"
	StatusSuccess = "success"
	StatusFail    = "fail"
)

// ItemStatus sets the status and caption of a list item.
func ItemStatus(title, status, caption string) Command {
	return Command(fmt.Sprintf("listitem: title: %s, status: %s, statustext: %s",
		field(title), status, field(caption)))
}

// InfoBox replaces the info banner text.
func InfoBox(text string) Command {
	return Command("infobox: " + clean(text))
}

// EnableButton enables the primary action.
func EnableButton() Command {
	return "button1: enable"
}

// ProgressTotal sets the progress bar maximum.
func ProgressTotal(n int) Command {
	return Command(fmt.Sprintf("progress: total=%d", n))
}

// ProgressIncrement advances the progress bar by one step.
func ProgressIncrement() Command {
	return "progress: increment"
}

// ProgressComplete fills the progress bar.
func ProgressComplete() Command {
	return "progress: complete"
}

// ProgressText sets the caption under the progress bar.
func ProgressText(text string) Command {
	return Command("progresstext: " + clean(text))
}

// clean keeps a value on one line so each command stays self-contained.
func clean(s string) string {
	s = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
	return strings.TrimSpace(s)
}

// fieldReplacer strips the separators of the key: value, key: value form.
var fieldReplacer = strings.NewReplacer(",", "", ": ", " - ")

// field cleans a value embedded in a multi-field command.
func field(s string) string {
	return strings.TrimSpace(fieldReplacer.Replace(clean(s)))
}
