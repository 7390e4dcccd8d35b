// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"
)

func runInit(args []string, globals GlobalFlags) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	force := fs.Bool("force", false, "Overwrite an existing configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	path := defaultConfigDir + string(os.PathSeparator) + defaultConfigFile
	if _, err := os.Stat(path); err == nil && !*force {
		return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
	}

	if err := WriteDefaultFileConfig(""); err != nil {
		return err
	}
	if !globals.Quiet {
		fmt.Printf("Wrote %s\n", path)
	}
	return nil
}
