// Copyright (c) 2025 Abdallah Elabd
// SPDX-License-Identifier: MIT

// args.go - command line parsing for the bioterm client.
package cli

import (
	"fmt"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command is the CLI command to execute.
type Command int

const (
	// CmdConsole starts the terminal UI (default).
	CmdConsole Command = iota
	// CmdPlain starts the line-mode REPL.
	CmdPlain
	// CmdHash prints a bcrypt hash for the admin passcode.
	CmdHash
	// CmdConfigPath prints the resolved config file location.
	CmdConfigPath
	// CmdVersion prints version information.
	CmdVersion
	// CmdHelp prints usage.
	CmdHelp
)

// Args holds parsed CLI arguments.
type Args struct {
	Command Command

	// Global flags
	ConfigPath string
	SyncURL    string
	Offline    bool
	Plain      bool

	// hash argument
	Passcode string
}

const usageText = `bioterm - Abdallah Elabd's portfolio terminal

A terminal rendition of the site: commands reveal bio content, chat talks
to the owner through the sync service.

Usage:
  bioterm                  Start the console (default)
  bioterm plain            Line-mode console (no alternate screen)
  bioterm hash <passcode>  Print a bcrypt hash for config security.passcode_hash
  bioterm config path      Print the config file location
  bioterm version          Print version
  bioterm help             Show this help

Flags:
  --config PATH    Use an explicit config file
  --sync-url URL   Override the sync service URL
  --offline        In-memory store only, nothing leaves the machine
  --plain          Same as the plain command

Commands inside the console: hello, experience, skills, cv, chat, admin.`

// Usage returns the help text.
func Usage() string { return usageText }

// Parse interprets os.Args[1:].
func Parse(argv []string) (Args, error) {
	args := Args{Command: CmdConsole}

	var positional []string
	for i := 0; i < len(argv); i++ {
		a := argv[i]
		switch {
		case a == "--offline":
			args.Offline = true
		case a == "--plain":
			args.Plain = true
		case a == "--config":
			if i+1 >= len(argv) {
				return args, fmt.Errorf("--config requires a path")
			}
			i++
			args.ConfigPath = argv[i]
		case strings.HasPrefix(a, "--config="):
			args.ConfigPath = strings.TrimPrefix(a, "--config=")
		case a == "--sync-url":
			if i+1 >= len(argv) {
				return args, fmt.Errorf("--sync-url requires a URL")
			}
			i++
			args.SyncURL = argv[i]
		case strings.HasPrefix(a, "--sync-url="):
			args.SyncURL = strings.TrimPrefix(a, "--sync-url=")
		case a == "-h" || a == "--help":
			args.Command = CmdHelp
			return args, nil
		case strings.HasPrefix(a, "-"):
			return args, fmt.Errorf("unknown flag %q", a)
		default:
			positional = append(positional, a)
		}
	}

	if len(positional) > 0 {
		switch positional[0] {
		case "plain":
			args.Command = CmdPlain
		case "hash":
			if len(positional) < 2 {
				return args, fmt.Errorf("hash requires a passcode argument")
			}
			args.Command = CmdHash
			args.Passcode = positional[1]
		case "config":
			if len(positional) < 2 || positional[1] != "path" {
				return args, fmt.Errorf("unknown config subcommand, try: config path")
			}
			args.Command = CmdConfigPath
		case "version":
			args.Command = CmdVersion
		case "help":
			args.Command = CmdHelp
		default:
			return args, fmt.Errorf("unknown command %q", positional[0])
		}
	}

	if args.Plain && args.Command == CmdConsole {
		args.Command = CmdPlain
	}
	return args, nil
}
