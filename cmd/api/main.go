package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zenpa1/budget-tracker/internal/cache"
	"github.com/zenpa1/budget-tracker/internal/config"
	"github.com/zenpa1/budget-tracker/internal/database"
	"github.com/zenpa1/budget-tracker/internal/feed"
	"github.com/zenpa1/budget-tracker/internal/lock"
	"github.com/zenpa1/budget-tracker/internal/logger"
	"github.com/zenpa1/budget-tracker/internal/middleware"
	"github.com/zenpa1/budget-tracker/internal/server"
	"github.com/zenpa1/budget-tracker/internal/services"
	"github.com/zenpa1/budget-tracker/internal/session"
	"github.com/zenpa1/budget-tracker/internal/store"
	"github.com/zenpa1/budget-tracker/internal/validator"

	_ "github.com/zenpa1/budget-tracker/internal/docs" // Import swagger docs
)

// @title           Budget Tracker API
// @version         1.0
// @description     Event budgets, expense logging, overrun review and anonymous HR feedback.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

const shutdownTimeout = 10 * time.Second

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbManager, err := database.NewManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Warnw("Failed to close database", "error", err)
		}
	}()
	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	changes, rdb, err := openFeed(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open change feed: %w", err)
	}
	defer func() {
		if err := changes.Close(); err != nil {
			log.Warnw("Failed to close change feed", "error", err)
		}
	}()

	locker, err := openLocker(cfg, rdb)
	if err != nil {
		return fmt.Errorf("failed to create locker: %w", err)
	}

	st := store.NewGormStore(dbManager.DB(), changes)
	c := cache.New()
	sess := session.New(st, changes, c, session.Options{RetryBase: cfg.SyncRetryBase, RetryMax: cfg.SyncRetryMax})
	if err := sess.Init(ctx); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer sess.Dispose()

	validator.Register()

	userService := services.NewUserService(st)
	if cfg.SeedDemoUsers {
		if err := userService.SeedDemoUsers(ctx); err != nil {
			return fmt.Errorf("failed to seed demo users: %w", err)
		}
	}

	router := server.NewRouter(server.Deps{
		Tokens:        middleware.NewJWT(cfg.JWTSecret, cfg.JWTExpirationDur),
		Session:       sess,
		CORSOrigins:   cfg.CORSAllowedOrigins,
		Users:         userService,
		Budgets:       services.NewBudgetService(st, c, locker),
		Expenses:      services.NewExpenseService(st, c, locker),
		Anomalies:     services.NewAnomalyService(st, c),
		Feedback:      services.NewFeedbackService(st, c, locker),
		Notifications: services.NewNotificationService(st, c),
		Dashboard:     services.NewDashboardService(c),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting budget tracker server on port %s", cfg.Port)
		log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openFeed connects the change feed named by cfg.FeedDriver. The Redis
// client is returned when one was opened so the locker can share it.
func openFeed(ctx context.Context, cfg *config.Config) (feed.Feed, *redis.Client, error) {
	switch cfg.FeedDriver {
	case "memory", "":
		return feed.NewMemory(0), nil, nil
	case "redis":
		r, err := feed.NewRedis(ctx, cfg.RedisURL, cfg.RedisChannelPrefix)
		if err != nil {
			return nil, nil, err
		}
		return r, r.Client(), nil
	case "amqp":
		a, err := feed.NewAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return nil, nil, err
		}
		return a, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown feed driver %q", cfg.FeedDriver)
}

// openLocker builds the budget locker. A Redis locker reuses the feed's
// client when there is one.
func openLocker(cfg *config.Config, rdb *redis.Client) (lock.Locker, error) {
	switch cfg.LockDriver {
	case "local", "":
		return lock.NewLocal(), nil
	case "redis":
		if rdb == nil {
			opts, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				return nil, fmt.Errorf("parse redis url: %w", err)
			}
			rdb = redis.NewClient(opts)
		}
		return lock.NewRedis(rdb, cfg.RedisChannelPrefix, cfg.LockTTL), nil
	}
	return nil, fmt.Errorf("unknown lock driver %q", cfg.LockDriver)
}
