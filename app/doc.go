// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package app assembles the server from its configuration.

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	server := http.Server{Handler: a.Handler(), Addr: ":3318"}

New opens the store selected by cfg.DatabaseType, creates the broadcast
hub, attaches the RabbitMQ mirror when RABBITMQ_URI is set and starts the
expiry sweeper. Close shuts these down in reverse order.
*/
package app
