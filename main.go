// bioterm - a terminal portfolio with a built-in visitor chat.
//
// Copyright (c) 2025 Abdallah Elabd
// SPDX-License-Identifier: MIT
package main

import (
	"fmt"
	"os"

	"github.com/abdallahelabd/bioterm/internal/cli"
)

// Version information (set at build time)
var (
	Version   = "1.0.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	args, err := cli.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	os.Exit(cli.Run(args))
}
