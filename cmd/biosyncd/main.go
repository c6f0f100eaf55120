// biosyncd - the message sync daemon behind the bioterm chat.
//
// Copyright (c) 2025 Abdallah Elabd
// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/abdallahelabd/bioterm/internal/config"
	"github.com/abdallahelabd/bioterm/internal/server"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath = flag.String("config", "", "path to config.toml (default ~/.bioterm/config.toml)")
		envPath    = flag.String("env", ".env", "path to a .env file with secrets")
		jsonLogs   = flag.Bool("json-logs", false, "emit JSON logs instead of text")
	)
	flag.Parse()

	// Secrets like BIOTERM_PASSCODE_HASH come from the environment; a local
	// .env file is a convenience for development. Missing file is fine.
	if err := godotenv.Load(*envPath); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error loading %s: %v\n", *envPath, err)
		return 1
	}

	var handler slog.Handler
	if *jsonLogs {
		handler = slog.NewJSONHandler(os.Stderr, nil)
	} else {
		handler = slog.NewTextHandler(os.Stderr, nil)
	}
	slog.SetDefault(slog.New(handler))

	path := *configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			slog.Error("failed to resolve config path", "error", err)
			return 1
		}
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		slog.Error("failed to load config", "path", path, "error", err)
		return 1
	}
	config.SetGlobal(cfg)

	dbPath := cfg.Server.DBPath
	if dbPath == "" {
		dir, err := config.Dir()
		if err != nil {
			slog.Error("failed to resolve state directory", "error", err)
			return 1
		}
		dbPath = filepath.Join(dir, "messages.db")
	}
	storage, err := server.OpenStorage(dbPath)
	if err != nil {
		slog.Error("failed to open storage", "path", dbPath, "error", err)
		return 1
	}
	defer storage.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg.Server, cfg.Security, storage)
	if err := srv.ListenAndServe(ctx); err != nil {
		slog.Error("server exited", "error", err)
		return 1
	}
	slog.Info("shutdown complete")
	return 0
}
