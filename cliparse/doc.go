// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

# Config Fields

  - Port: Server listen port (default: 3318)
  - DatabaseType: sqlite, postgres or mongo (default: sqlite)
  - DatabaseURL: DSN or file path; defaults to classpoll.db for sqlite
  - MongoDatabase: Database name when DatabaseType is mongo (default: classpoll)
  - QuestionWindow: How long a question accepts answers (default: 60s)
  - SweepInterval: How often overdue questions are expired (default: 10s)
  - CORSOrigins: Allowed browser origins (default: http://localhost:5173)
  - APIPrefix: Prefix for REST routes (default: /api)
  - RabbitMQURL: Optional broker URI; events are mirrored when set
  - RabbitMQExchange: Fanout exchange for mirrored events (default: classpoll.events)

# CLI Flags and Environment Variables

Flags fall back to environment variables:

	PORT              → -p
	DATABASE_TYPE     → -t
	DATABASE_URL      → -d
	MONGO_DB          → -mongo-db
	QUESTION_WINDOW   → -window
	SWEEP_INTERVAL    → -sweep
	CORS_ORIGIN       → -origins
	API_PREFIX        → -prefix
	RABBITMQ_URI      → -amqp
	RABBITMQ_EXCHANGE → -exchange

CLI flags take precedence over environment variables. main loads a .env file
before calling ParseFlags, so values there behave like environment variables.

# Validation

ParseFlags returns an error when:

  - PORT is not a number or is out of range
  - the database type is unknown
  - DATABASE_URL is missing for postgres or mongo
  - a duration is malformed or not positive
*/
package cliparse
