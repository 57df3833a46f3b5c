// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Command piper is the thin CLI front-end for the shared-memory audio
// transport: create backing files, inspect them, and feed/drain PCM
// frames through them, per spec.md §6. It is a deliberately thin
// collaborator — all hard engineering lives in the library packages;
// this file only does argument parsing and dispatch, in the style of
// cmd/sdb's per-subcommand flag.FlagSet dispatch.
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "create":
		runCreate(args)
	case "info":
		runInfo(args)
	case "feed":
		runFeed(args)
	case "drain":
		runDrain(args)
	case "unclog":
		runUnclog(args)
	case "-h", "-help", "--help", "help":
		usage()
		os.Exit(0)
	default:
		exitf(1, "unknown command %q", cmd)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: piper <command> [arguments]

commands:
  create <path> <format> <channels> <rate> <period_ms> <buffer> <capacity>
  info   <path> [-yaml]
  feed   <path> [-v] [-trace <file>]
  drain  <path> [-v] [-trace <file>]
  unclog <path>`)
}

// exitf prints a formatted error to stderr prefixed with "piper: " and
// exits with code, matching cmd/sdb's exitf helper.
func exitf(code int, format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "piper: "+format+"\n", args...)
	os.Exit(code)
}
