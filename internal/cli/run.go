// Copyright (c) 2025 Abdallah Elabd
// SPDX-License-Identifier: MIT

// run.go - wires config, identity, store and session together and launches
// the chosen front end.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/abdallahelabd/bioterm/internal/chat"
	"github.com/abdallahelabd/bioterm/internal/config"
	"github.com/abdallahelabd/bioterm/internal/identity"
	"github.com/abdallahelabd/bioterm/internal/notify"
	"github.com/abdallahelabd/bioterm/internal/store"
	"github.com/abdallahelabd/bioterm/internal/ui/console"
	"github.com/abdallahelabd/bioterm/internal/upload"
)

// Run executes the parsed command and returns a process exit code.
func Run(args Args) int {
	switch args.Command {
	case CmdHelp:
		fmt.Println(Usage())
		return 0

	case CmdVersion:
		fmt.Printf("bioterm %s (%s, built %s)\n", Version, GitCommit, BuildDate)
		return 0

	case CmdHash:
		hash, err := bcrypt.GenerateFromPassword([]byte(args.Passcode), bcrypt.DefaultCost)
		if err != nil {
			fmt.Fprintf(os.Stderr, "bioterm: %v\n", err)
			return 1
		}
		fmt.Println(string(hash))
		return 0

	case CmdConfigPath:
		path, err := config.DefaultPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "bioterm: %v\n", err)
			return 1
		}
		fmt.Println(path)
		return 0
	}

	if err := runClient(args); err != nil {
		fmt.Fprintf(os.Stderr, "bioterm: %v\n", err)
		return 1
	}
	return 0
}

// runClient builds the full client stack and runs the console or the plain
// REPL until exit.
func runClient(args Args) error {
	path := args.ConfigPath
	if path == "" {
		if p, err := config.DefaultPath(); err == nil {
			path = p
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if args.SyncURL != "" {
		cfg.Sync.URL = args.SyncURL
	}
	if args.Offline {
		cfg.Sync.Offline = true
	}
	config.SetGlobal(cfg)

	// Live-reload keeps long-running consoles in sync with config edits.
	if path != "" {
		if stop, err := config.Watch(path, nil); err == nil {
			defer stop()
		}
	}

	idStore, err := identity.NewFileStore()
	if err != nil {
		return err
	}
	id, err := identity.NewResolver(idStore, cfg.Security)
	if err != nil {
		return err
	}

	var st store.Store
	if cfg.Sync.Offline {
		st = store.NewMemory()
	} else {
		st = store.NewRemote(cfg.Sync.URL, cfg.Security.Passcode)
	}
	defer st.Close()

	var notifier *notify.Notifier
	if cfg.Notify.Enabled {
		notifier = notify.New(cfg.Notify)
	}

	session, err := chat.NewSession(context.Background(), st, id, notifier)
	if err != nil {
		return err
	}
	defer session.Close()

	up := upload.New(st, cfg.Upload)

	// Piped or redirected output cannot host the full-screen console.
	interactive := term.IsTerminal(int(os.Stdout.Fd()))
	if args.Command == CmdPlain || cfg.UI.Plain || !interactive {
		return runPlain(cfg, session, id, up)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	m := console.New(cfg, session, id, up)
	prog := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := prog.Run(); err != nil {
		return fmt.Errorf("console failed: %w", err)
	}
	return nil
}
