package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Supported database types
const (
	DatabaseSQLite   = "sqlite"
	DatabasePostgres = "postgres"
	DatabaseMongo    = "mongo"
)

const (
	DefaultPort           = 3318
	DefaultSQLitePath     = "classpoll.db"
	DefaultMongoDatabase  = "classpoll"
	DefaultQuestionWindow = 60 * time.Second
	DefaultSweepInterval  = 10 * time.Second
	DefaultCORSOrigin     = "http://localhost:5173"
	DefaultAPIPrefix      = "/api"
	DefaultExchange       = "classpoll.events"
)

type Config struct {
	Port          int
	DatabaseType  string
	DatabaseURL   string
	MongoDatabase string

	QuestionWindow time.Duration
	SweepInterval  time.Duration

	CORSOrigins []string
	APIPrefix   string

	RabbitMQURL      string
	RabbitMQExchange string
}

// ParseFlags reads flags, falls back to environment variables and fills in
// defaults. CLI flags take precedence.
func ParseFlags(args []string) (Config, error) {
	var cfg Config
	var window, sweep, origins string

	fs := flag.NewFlagSet("classpoll", flag.ContinueOnError)

	// Network config
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.APIPrefix, "prefix", "", "REST route prefix")
	fs.StringVar(&origins, "origins", "", "Comma-separated allowed CORS origins")

	// Storage
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite, postgres or mongo)")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.MongoDatabase, "mongo-db", "", "MongoDB database name")

	// Question lifecycle
	fs.StringVar(&window, "window", "", "Answer window per question (e.g. 60s)")
	fs.StringVar(&sweep, "sweep", "", "Expiry sweep interval (e.g. 10s)")

	// Event mirror
	fs.StringVar(&cfg.RabbitMQURL, "amqp", "", "RabbitMQ URI for event mirroring (optional)")
	fs.StringVar(&cfg.RabbitMQExchange, "exchange", "", "RabbitMQ exchange name")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		} else {
			cfg.Port = DefaultPort
		}
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("port %d out of range", cfg.Port)
	}

	cfg.DatabaseType = firstNonEmpty(cfg.DatabaseType, os.Getenv("DATABASE_TYPE"), DatabaseSQLite)
	switch cfg.DatabaseType {
	case DatabaseSQLite, DatabasePostgres, DatabaseMongo:
	default:
		return Config{}, fmt.Errorf("unsupported database type %q (use sqlite, postgres or mongo)", cfg.DatabaseType)
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		if cfg.DatabaseType != DatabaseSQLite {
			return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
		}
		cfg.DatabaseURL = DefaultSQLitePath
	}
	cfg.MongoDatabase = firstNonEmpty(cfg.MongoDatabase, os.Getenv("MONGO_DB"), DefaultMongoDatabase)

	var err error
	cfg.QuestionWindow, err = parseDuration("QUESTION_WINDOW", firstNonEmpty(window, os.Getenv("QUESTION_WINDOW")), DefaultQuestionWindow)
	if err != nil {
		return Config{}, err
	}
	cfg.SweepInterval, err = parseDuration("SWEEP_INTERVAL", firstNonEmpty(sweep, os.Getenv("SWEEP_INTERVAL")), DefaultSweepInterval)
	if err != nil {
		return Config{}, err
	}

	cfg.CORSOrigins = splitList(firstNonEmpty(origins, os.Getenv("CORS_ORIGIN"), DefaultCORSOrigin))

	cfg.APIPrefix = firstNonEmpty(cfg.APIPrefix, os.Getenv("API_PREFIX"), DefaultAPIPrefix)
	cfg.APIPrefix = "/" + strings.Trim(cfg.APIPrefix, "/")
	if cfg.APIPrefix == "/" {
		cfg.APIPrefix = ""
	}

	cfg.RabbitMQURL = firstNonEmpty(cfg.RabbitMQURL, os.Getenv("RABBITMQ_URI"))
	cfg.RabbitMQExchange = firstNonEmpty(cfg.RabbitMQExchange, os.Getenv("RABBITMQ_EXCHANGE"), DefaultExchange)

	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseDuration(name, value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", name)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
