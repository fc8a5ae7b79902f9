// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/danielhkuo/classpoll/broadcast"
	"github.com/danielhkuo/classpoll/cliparse"
	"github.com/danielhkuo/classpoll/db"
	"github.com/danielhkuo/classpoll/event"
	"github.com/danielhkuo/classpoll/lifecycle"
	"github.com/danielhkuo/classpoll/middleware"
	"github.com/danielhkuo/classpoll/router"
)

// ShutdownTimeout bounds how long Serve waits for in-flight requests.
const ShutdownTimeout = 10 * time.Second

// App owns every long-lived component of the server.
type App struct {
	Store   db.Store
	Hub     *broadcast.Hub
	Mirror  *event.Publisher
	Manager *lifecycle.Manager
	Sweeper *lifecycle.Sweeper

	cfg         cliparse.Config
	stopSweeper context.CancelFunc
	sweeperDone chan struct{}
}

// New connects the store, starts the event mirror when configured and runs
// the expiry sweeper in the background until Close.
func New(ctx context.Context, cfg cliparse.Config) (*App, error) {
	store, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.DatabaseType, err)
	}
	slog.Info("database ready", "type", cfg.DatabaseType)

	mirror, err := event.NewPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange)
	if err != nil {
		store.Close()
		return nil, err
	}

	hub := broadcast.NewHub()
	if mirror.Enabled() {
		hub.AddSink(mirror)
	}

	manager := lifecycle.NewManager(store, hub, cfg)
	sweeper := lifecycle.NewSweeper(manager, cfg.SweepInterval)

	sweepCtx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		sweeper.Run(sweepCtx)
	}()

	return &App{
		Store:       store,
		Hub:         hub,
		Mirror:      mirror,
		Manager:     manager,
		Sweeper:     sweeper,
		cfg:         cfg,
		stopSweeper: stop,
		sweeperDone: done,
	}, nil
}

// Handler returns the full HTTP surface with CORS applied.
func (a *App) Handler() http.Handler {
	mux := router.NewRouter(a.Manager, a.Hub, a.cfg)
	return middleware.CORS(a.cfg.CORSOrigins)(mux)
}

// Close stops the sweeper, disconnects live clients and releases the mirror
// and the store.
func (a *App) Close() error {
	a.stopSweeper()
	<-a.sweeperDone

	a.Hub.Close()

	return errors.Join(a.Mirror.Close(), a.Store.Close())
}

// Serve runs server on ln until ctx is done, then shuts it down and returns
// only once in-flight requests have drained or ShutdownTimeout has passed.
func Serve(ctx context.Context, server *http.Server, ln net.Listener) error {
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	err := server.Shutdown(shutdownCtx)
	if err != nil {
		server.Close()
	}
	if serr := <-serveErr; serr != nil && !errors.Is(serr, http.ErrServerClosed) {
		return errors.Join(err, serr)
	}
	return err
}
