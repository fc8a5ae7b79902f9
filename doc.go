// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the ClassPoll API server.

ClassPoll runs live multiple-choice questions in a classroom. A teacher asks
a question in a poll, students have a short window to answer once each, and
everyone connected sees the tally change as answers arrive.

# Starting the Server

With no configuration the server uses a local SQLite file:

	go run .

Or with flags:

	go run . -p 3318 -t postgres -d "postgres://..."

A .env file in the working directory is loaded first when present.

# Configuration

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite, postgres or mongo (default: sqlite)
  - DATABASE_URL (-d): DSN, or file path for SQLite (default: classpoll.db)
  - MONGO_DB (-mongo-db): MongoDB database name (default: classpoll)
  - QUESTION_WINDOW (-window): Answer window (default: 60s)
  - SWEEP_INTERVAL (-sweep): Expiry sweep period (default: 10s)
  - CORS_ORIGIN (-origins): Comma-separated allowed origins
  - API_PREFIX (-prefix): REST prefix (default: /api)
  - RABBITMQ_URI (-amqp): Mirror events to RabbitMQ when set
  - RABBITMQ_EXCHANGE (-exchange): Topic exchange (default: classpoll.events)

# Architecture

  - app: Component assembly and shutdown
  - router: Route definitions using Go 1.22+ routing
  - handlers: HTTP, WebSocket and SSE handlers
  - lifecycle: Question lifecycle rules and the expiry sweeper
  - tally: Pure vote counting
  - broadcast: In-process fan-out of live events
  - event: RabbitMQ mirror of live events
  - db: SQL and MongoDB stores
  - middleware: CORS, logging, JSON and validation helpers
  - metrics: Prometheus collectors
  - models: Request/response and domain types
  - cliparse: Configuration parsing

See package documentation for each component.
*/
package main
