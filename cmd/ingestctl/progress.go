// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// ProgressConfig controls whether a progress bar is rendered at all: JSON
// output mode and non-interactive terminals both suppress it.
type ProgressConfig struct {
	Enabled bool
}

// NewProgressConfig decides whether progress output is appropriate for the
// current terminal and flag set.
func NewProgressConfig(globals GlobalFlags) ProgressConfig {
	if globals.JSON || globals.Quiet {
		return ProgressConfig{Enabled: false}
	}
	return ProgressConfig{Enabled: isatty.IsTerminal(os.Stderr.Fd())}
}

// NewProgressBar builds a bar for one ingestion phase, or nil when progress
// output is disabled.
func NewProgressBar(cfg ProgressConfig, total int64, description string) *progressbar.ProgressBar {
	if !cfg.Enabled {
		return nil
	}
	return progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

// InitColors sets fatih/color's global NoColor switch, matching the
// --no-color flag and the NO_COLOR environment convention.
func InitColors(noColor bool) {
	color.NoColor = noColor
}
