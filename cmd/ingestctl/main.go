// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package main implements the ingestctl CLI for running and inspecting
// repository-to-vector-database ingestion.
//
// Usage:
//
//	ingestctl init                 Create .ingestctl/project.yaml configuration
//	ingestctl ingest [repo...]      Run ingestion over one or more repositories
//	ingestctl [--json] status      Show checkpoint/progress status
//	ingestctl search <query>       Run a similarity search against a collection
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// GlobalFlags holds flags shared across every subcommand.
type GlobalFlags struct {
	JSON    bool
	NoColor bool
	Verbose int
	Quiet   bool
}

func main() {
	var (
		showVersion = flag.BoolP("version", "V", false, "Show version and exit")
		configPath  = flag.StringP("config", "c", "", "Path to .ingestctl/project.yaml")
		jsonOutput  = flag.Bool("json", false, "Output in JSON format")
		noColor     = flag.Bool("no-color", false, "Disable color output")
		verbose     = flag.CountP("verbose", "v", "Increase verbosity (-v for info, -vv for debug)")
		quiet       = flag.BoolP("quiet", "q", false, "Suppress non-essential output")
	)

	flag.SetInterspersed(false)
	flag.Usage = printUsage

	flag.Parse()

	if *showVersion {
		fmt.Printf("ingestctl version %s\ncommit: %s\nbuilt: %s\n", version, commit, date)
		os.Exit(0)
	}

	if os.Getenv("NO_COLOR") != "" {
		*noColor = true
	}
	if *quiet && *verbose > 0 {
		fmt.Fprintln(os.Stderr, "Error: cannot use --quiet and --verbose together")
		os.Exit(1)
	}
	if *jsonOutput {
		*quiet = true
	}

	globals := GlobalFlags{JSON: *jsonOutput, NoColor: *noColor, Verbose: *verbose, Quiet: *quiet}
	InitColors(globals.NoColor)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command := args[0]
	cmdArgs := args[1:]

	var err error
	switch command {
	case "init":
		err = runInit(cmdArgs, globals)
	case "ingest":
		err = runIngest(cmdArgs, *configPath, globals)
	case "status":
		err = runStatus(cmdArgs, *configPath, globals)
	case "search":
		err = runSearch(cmdArgs, *configPath, globals)
	case "watch":
		err = runWatch(cmdArgs, *configPath, globals)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		flag.Usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `ingestctl - repository-to-vector-database ingestion

Usage:
  ingestctl <command> [options]

Commands:
  init      Create .ingestctl/project.yaml configuration
  ingest    Run ingestion over one or more repositories
  status    Show checkpoint/progress status
  search    Run a similarity search against a stored collection
  watch     Watch repos_base_dir and trigger full re-ingestion on change

Global Options:
  --json          Output in JSON format
  --no-color      Disable color output (respects NO_COLOR env var)
  -v, --verbose   Increase verbosity (-v for info, -vv for debug)
  -q, --quiet     Suppress non-essential output
  -c, --config    Path to .ingestctl/project.yaml
  -V, --version   Show version and exit

Environment Variables:
  VECTOR_BACKEND        managed|local
  QDRANT_URL            Qdrant gRPC endpoint for the managed backend
  QDRANT_API_KEY        Qdrant API key
  SURREALDB_URL         SurrealDB HTTP endpoint for the local backend
  SURREALDB_NS          SurrealDB namespace
  SURREALDB_DB          SurrealDB database
  SURREALDB_USER        SurrealDB user
  SURREALDB_PASS        SurrealDB password
  EMBEDDING_BASE_URL    OpenAI-compatible embedding endpoint base URL
  OPENAI_API_KEY        Embedding API key

For detailed command help: ingestctl <command> --help

`)
}
