package main

import (
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"kanban-board/events"
)

type config struct {
	connStr       string
	usersTable    string
	eventsQueue   string
	redisConn     string
	cacheTTL      time.Duration
	signOutTTL    time.Duration
	saveTimeout   time.Duration
	events        events.Config
	auth0Domain   string
	auth0Audience string
	listenAddr    string
	debug         bool
	jsonLogs      bool
}

func loadConfig() (config, error) {
	var (
		cfg config
		err error
	)
	cfg.connStr = os.Getenv("STORAGE_CONNECTION_STRING")
	if cfg.connStr == "" {
		return cfg, fmt.Errorf("missing storage config")
	}
	cfg.usersTable = envString("USERS_TABLE", "users")
	cfg.eventsQueue = envString("SESSION_EVENTS_QUEUE", "session-events")

	cfg.redisConn = os.Getenv("REDIS_CONNECTION_STRING")
	if cfg.redisConn == "" {
		return cfg, fmt.Errorf("missing redis config")
	}
	if cfg.cacheTTL, err = envDur("DOCUMENT_CACHE_TTL", 10*time.Minute); err != nil {
		return cfg, err
	}
	if cfg.signOutTTL, err = envDur("SIGNOUT_TTL", 24*time.Hour); err != nil {
		return cfg, err
	}
	if cfg.saveTimeout, err = envDur("SAVE_TIMEOUT", 30*time.Second); err != nil {
		return cfg, err
	}

	if cfg.events.Workers, err = envInt("EVENT_WORKERS", 4); err != nil {
		return cfg, err
	}
	if cfg.events.Buffer, err = envInt("EVENT_BUFFER", 256); err != nil {
		return cfg, err
	}
	if cfg.events.EnqueueTimeout, err = envDur("EVENT_TIMEOUT", 30*time.Second); err != nil {
		return cfg, err
	}
	if cfg.events.HandoffTimeout, err = envDur("EVENT_HANDOFF_TIMEOUT", 15*time.Millisecond); err != nil {
		return cfg, err
	}

	cfg.auth0Domain = os.Getenv("AUTH0_DOMAIN")
	cfg.auth0Audience = os.Getenv("AUTH0_AUDIENCE")

	cfg.listenAddr = ":" + envString("FUNCTIONS_CUSTOMHANDLER_PORT", "8080")
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil {
		cfg.debug = dbg
	}
	cfg.jsonLogs = strings.EqualFold(os.Getenv("LOG_FORMAT"), "json")
	return cfg, nil
}

func (c config) configureLogger(logger *log.Logger) {
	if c.debug {
		logger.SetLevel(log.DebugLevel)
	}
	if c.jsonLogs {
		logger.SetFormatter(&log.JSONFormatter{})
	}
}

func envString(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func envInt(name string, def int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be greater than zero", name)
	}
	return n, nil
}

func envDur(name string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", name)
	}
	return d, nil
}

// redisOptions accepts a redis:// URL or the Azure style
// "host:port,password=...,ssl=true" connection string.
func redisOptions(conn string) *redis.Options {
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts := &redis.Options{Addr: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(kv[1], "true") {
				opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
			}
		}
	}
	return opts
}
