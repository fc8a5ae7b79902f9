// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/danielhkuo/classpoll/app"
	"github.com/danielhkuo/classpoll/cliparse"
)

func main() {
	var err error

	// A .env file is optional
	if err = godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("startup failed", "error", err)
		os.Exit(1)
	}

	// Create server
	server := &http.Server{
		Handler: a.Handler(),
		Addr:    ":" + strconv.Itoa(cfg.Port),
	}
	// Ends open WebSocket and SSE streams so Shutdown can drain them
	server.RegisterOnShutdown(a.Hub.Close)

	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		slog.Error("failed to listen", "error", err)
		a.Close()
		os.Exit(1)
	}

	// Start server
	slog.Info("Listening",
		"port", cfg.Port,
		"prefix", cfg.APIPrefix,
		"window", cfg.QuestionWindow.String(),
	)
	// Returns after Ctrl-C once in-flight requests have finished
	if err := app.Serve(ctx, server, ln); err != nil {
		slog.Error("Server closed", "error", err)
	} else {
		slog.Info("Server closed")
	}

	if err := a.Close(); err != nil {
		slog.Error("shutdown failed", "error", err)
	}
}
