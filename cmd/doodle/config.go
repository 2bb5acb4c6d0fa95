package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/CatchTheTornado/agent-doodle/engine"
	"github.com/CatchTheTornado/agent-doodle/logging"
	"github.com/CatchTheTornado/agent-doodle/session"
	"github.com/CatchTheTornado/agent-doodle/session/redis"
	"github.com/CatchTheTornado/agent-doodle/session/sqlite"
)

// config holds settings shared by the subcommands. Flags default to the
// DOODLE_* environment variables.
type config struct {
	Store          string
	LogLevel       string
	LogFormat      string
	Timeout        time.Duration
	JudgeModel     string
	MaxInvocations int
	MaxIterations  int
	FailUnconverge bool
}

func configFromEnv() config {
	return config{
		Store:          env("DOODLE_STORE", "memory"),
		LogLevel:       env("DOODLE_LOG_LEVEL", "warn"),
		LogFormat:      env("DOODLE_LOG_FORMAT", "text"),
		Timeout:        envDuration("DOODLE_TIMEOUT", 10*time.Minute),
		JudgeModel:     env("DOODLE_JUDGE_MODEL", "gpt-4o-mini"),
		MaxInvocations: envInt("DOODLE_MAX_INVOCATIONS", engine.DefaultConfig.MaxInvocations),
		MaxIterations:  envInt("DOODLE_MAX_ITERATIONS", engine.DefaultConfig.DefaultMaxIterations),
		FailUnconverge: env("DOODLE_FAIL_ON_NON_CONVERGENCE", "") == "true",
	}
}

func env(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return fallback
}

func (c config) engineConfig() engine.Config {
	cfg := engine.DefaultConfig
	cfg.MaxInvocations = c.MaxInvocations
	cfg.DefaultMaxIterations = c.MaxIterations
	cfg.FailOnNonConvergence = c.FailUnconverge
	return cfg
}

func (c config) logger(w io.Writer) (logging.Logger, error) {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    c.LogFormat,
		Output:    w,
		Component: "doodle",
	}), nil
}

// openStore opens the run store named by dsn: "memory",
// "sqlite:<path>" or a redis:// URL. The returned close function is never
// nil.
func openStore(dsn string) (session.Store, func() error, error) {
	noop := func() error { return nil }
	switch {
	case dsn == "" || dsn == "memory":
		return session.NewInMemoryStore(), noop, nil

	case strings.HasPrefix(dsn, "sqlite:"):
		s, err := sqlite.Open(strings.TrimPrefix(dsn, "sqlite:"))
		if err != nil {
			return nil, noop, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, s.Close, nil

	case strings.HasPrefix(dsn, "redis://"), strings.HasPrefix(dsn, "rediss://"):
		opts, err := goredis.ParseURL(dsn)
		if err != nil {
			return nil, noop, fmt.Errorf("parse redis url: %w", err)
		}
		client := goredis.NewClient(opts)
		return redis.New(client, ""), client.Close, nil
	}
	return nil, noop, fmt.Errorf("unknown store %q", dsn)
}
