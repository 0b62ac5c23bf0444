package main

import (
	"chatroulette/backend/internal/config"
	"chatroulette/backend/internal/log"
	"chatroulette/backend/internal/storage"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log.Init(log.Config{Level: cfg.Log.Level, Pretty: true, ServiceName: "chatroulette-admin"})
	logger := log.L()

	if len(os.Args) < 2 {
		fmt.Println("Usage: admin <debug|end-session|purge-waiting> [args]")
		os.Exit(1)
	}

	db, err := storage.Open(cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	storageSvc := storage.NewStorageService(db)
	ctx := log.WithLogger(context.Background(), logger)

	switch os.Args[1] {
	case "debug":
		if err := dumpState(ctx, storageSvc); err != nil {
			logger.Fatal().Err(err).Msg("error reading state")
		}
	case "end-session":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin end-session <session_id>")
			os.Exit(1)
		}
		sessionID := os.Args[2]
		ended, err := storageSvc.EndSession(ctx, sessionID)
		if err != nil {
			logger.Fatal().Err(err).Str(log.FieldSessionID, sessionID).Msg("error ending session")
		}
		if !ended {
			fmt.Printf("Session %s is not active.\n", sessionID)
			return
		}
		fmt.Printf("Session %s has been ended.\n", sessionID)
	case "purge-waiting":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin purge-waiting <duration, e.g. 10m>")
			os.Exit(1)
		}
		age, err := time.ParseDuration(os.Args[2])
		if err != nil || age < 0 {
			fmt.Println("Invalid duration. Use Go duration syntax such as 30s or 10m.")
			os.Exit(1)
		}
		n, err := storageSvc.PurgeWaitingBefore(ctx, time.Now().Add(-age))
		if err != nil {
			logger.Fatal().Err(err).Msg("error purging waiting queue")
		}
		fmt.Printf("Removed %d waiting entries older than %s.\n", n, age)
	default:
		fmt.Println("Unknown command")
		os.Exit(1)
	}
}

func dumpState(ctx context.Context, s storage.Storage) error {
	waiting, err := s.GetWaitingEntries(ctx)
	if err != nil {
		return err
	}
	sessions, err := s.GetActiveSessions(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]interface{}{
		"waiting":  waiting,
		"sessions": sessions,
	})
}
