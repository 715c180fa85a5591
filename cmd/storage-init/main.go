package main

import (
	"context"
	"os"
	"strconv"

	log "github.com/sirupsen/logrus"

	"kanban-board/storage"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	log.Info("storage init starting")

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	if connStr == "" {
		log.Fatal("missing STORAGE_CONNECTION_STRING")
	}

	ctx := context.Background()

	if err := storage.EnsureTables(ctx, connStr, []string{
		envOr("USERS_TABLE", "users"),
	}); err != nil {
		log.Fatalf("create tables: %v", err)
	}

	if err := storage.EnsureQueues(ctx, connStr, []string{
		envOr("SESSION_EVENTS_QUEUE", "session-events"),
	}); err != nil {
		log.Fatalf("create queues: %v", err)
	}

	log.Info("storage init complete")
}

func envOr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}
