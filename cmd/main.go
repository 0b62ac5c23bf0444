package main

import (
	"chatroulette/backend/internal/api/handler"
	"chatroulette/backend/internal/auth"
	"chatroulette/backend/internal/chathub"
	"chatroulette/backend/internal/config"
	"chatroulette/backend/internal/localization"
	"chatroulette/backend/internal/log"
	"chatroulette/backend/internal/negotiator"
	"chatroulette/backend/internal/storage"
	"chatroulette/backend/internal/telegram"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		l := log.L()
		l.Warn().Msg("no .env file loaded")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log.Init(log.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, ServiceName: "chatroulette"})
	logger := log.L()

	if err := config.Validate(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.WithLogger(ctx, logger)

	if err := run(ctx, cfg); err != nil {
		logger.Fatal().Err(err).Msg("server stopped with error")
	}
	logger.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	l := log.Ctx(ctx)

	db, err := storage.Open(cfg.Database)
	if err != nil {
		return err
	}
	if err := storage.Migrate(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	l.Info().Str("driver", cfg.Database.Driver).Msg("database ready")

	var rdb *redis.Client
	if cfg.Redis.Enabled() {
		rdb, err = storage.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		l.Info().Str("address", cfg.Redis.Address).Msg("redis connected")
	}

	store := storage.NewStorageService(db)
	hub := chathub.NewManagerService()

	chat, err := chathub.NewService(chathub.Options{
		Store:            store,
		SignalStore:      signalStore(cfg, store, rdb),
		Locker:           locker(cfg, rdb),
		Notifier:         notifier(cfg, hub, db, rdb),
		MaxMessageLength: cfg.Messaging.MaxLength,
	})
	if err != nil {
		return err
	}

	limiter := handler.NewRateLimiter(rate.Limit(cfg.RateLimit.RPS), cfg.RateLimit.Burst, 2*time.Minute)
	defer limiter.Stop()

	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	h := handler.NewHandler(chat, hub,
		auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL),
		negotiator.ICEServers(cfg.WebRTC),
	)
	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler.NewRouter(h, handler.RouterOptions{Env: cfg.Env, Logger: log.L(), Limiter: limiter}),
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(ctx)
		return nil
	})

	switch cfg.Notify.Driver {
	case "redis":
		g.Go(func() error { return chathub.ListenRedis(ctx, rdb, hub) })
	case "postgres":
		g.Go(func() error { return chathub.ListenPostgres(ctx, cfg.Database.DSN, hub) })
	}

	g.Go(func() error {
		chat.Matcher.RunSweeper(ctx, cfg.Matching.SweepInterval, cfg.Matching.WaitingTTL)
		return nil
	})

	if cfg.Telegram.Token != "" {
		localizer, err := localization.New()
		if err != nil {
			return err
		}
		bot, err := telegram.NewBotService(cfg.Telegram.Token, chat, hub, localizer)
		if err != nil {
			return err
		}
		g.Go(func() error { return bot.Run(ctx) })
	} else {
		l.Info().Msg("telegram bridge disabled")
	}

	g.Go(func() error {
		l.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func locker(cfg *config.Config, rdb *redis.Client) storage.Locker {
	if cfg.Matching.Lock == "redis" {
		return storage.NewRedisLocker(rdb, "lock:matching", cfg.Matching.LockTTL)
	}
	return storage.NewLocalLocker()
}

func signalStore(cfg *config.Config, store *storage.Service, rdb *redis.Client) storage.SignalStore {
	if cfg.Signaling.Store == "redis" {
		return storage.NewRedisSignalStore(rdb, cfg.Signaling.TTL, cfg.Signaling.MaxPerRecipient)
	}
	return store
}

func notifier(cfg *config.Config, hub *chathub.ManagerService, db *gorm.DB, rdb *redis.Client) chathub.Notifier {
	switch cfg.Notify.Driver {
	case "none":
		return chathub.NopNotifier{}
	case "redis":
		return chathub.NewRedisNotifier(rdb)
	case "postgres":
		return chathub.NewPostgresNotifier(db)
	default:
		return hub
	}
}
