package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/username/capitolwatch/backend/src/config"
	"github.com/username/capitolwatch/backend/src/database"
	"github.com/username/capitolwatch/backend/src/handlers"
	"github.com/username/capitolwatch/backend/src/logger"
	"github.com/username/capitolwatch/backend/src/metrics"
	"github.com/username/capitolwatch/backend/src/publisher"
	"github.com/username/capitolwatch/backend/src/scheduler"
	"github.com/username/capitolwatch/backend/src/security"
	"github.com/username/capitolwatch/backend/src/services"
	"golang.org/x/time/rate"
)

var Version = "dev"

func rateLimitMiddleware(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				logger.L.Warn("Rate limit exceeded", "path", r.URL.Path)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "capitolwatch",
		Short:         "Collects congressional members, committees and stock trades into one store",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.LoadConfig()
			logger.InitLogger(config.Cfg.LogLevel)
		},
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(collectCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		logger.L.Error("Command failed", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openStore() (*sql.DB, error) {
	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	db, err := database.Open(config.Cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	if err := database.RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// newCollectionService wires the service to the configured lock, publisher
// and metrics. The returned func closes what it opened.
func newCollectionService(db *sql.DB) (services.CollectionService, func(), error) {
	var closers []func() error
	cleanup := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.L.Warn("Failed to close resource", "error", err)
			}
		}
	}

	var lock services.RunLock = services.NewSQLiteRunLock(db)
	if config.Cfg.RedisAddr != "" {
		redisLock := services.NewRedisRunLock(config.Cfg.RedisAddr, config.Cfg.RedisPassword, config.Cfg.RedisDB)
		closers = append(closers, redisLock.Close)
		lock = redisLock
		logger.L.Info("Using Redis run lock", "addr", config.Cfg.RedisAddr)
	}

	var pub services.SummaryPublisher
	if config.Cfg.AMQPURL != "" {
		rp, err := publisher.Dial(config.Cfg.AMQPURL, config.Cfg.AMQPExchange, config.Cfg.AMQPRoutingKey)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, rp.Close)
		pub = rp
		logger.L.Info("Publishing run summaries", "exchange", config.Cfg.AMQPExchange, "routingKey", config.Cfg.AMQPRoutingKey)
	}

	recorder, err := metrics.New(nil)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("create metrics recorder: %w", err)
	}

	svc := services.NewCollectionService(db, services.Options{
		Sources:   config.Cfg.Sources,
		Lock:      lock,
		LockTTL:   config.Cfg.RunLockTTL,
		Publisher: pub,
		Metrics:   recorder,
		Defaults:  services.DefaultRunConfig(),
	})
	return svc, cleanup, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the admin API and run scheduled collections",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(config.Cfg.JWTSecret) < 32 {
				return errors.New("JWT_SECRET must be set to at least 32 characters")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			db, err := openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			svc, cleanup, err := newCollectionService(db)
			if err != nil {
				return err
			}
			defer cleanup()

			if config.Cfg.ScheduleEnabled {
				sched, err := scheduler.New(svc, config.Cfg.CollectionSchedule)
				if err != nil {
					return err
				}
				sched.Start(ctx)
				defer sched.Stop()
			}

			limiter := rate.NewLimiter(rate.Limit(config.Cfg.APIRequestsPerSec), config.Cfg.APIRequestBurst)
			authService := security.NewAuthService(config.Cfg.JWTSecret)
			router := handlers.NewRouter(
				handlers.NewCollectionHandler(ctx, svc),
				authService,
				config.Cfg.AdminSubjects,
				rateLimitMiddleware(limiter),
			)

			serverAddr := ":" + config.Cfg.Port
			server := &http.Server{
				Addr:         serverAddr,
				Handler:      router,
				ReadTimeout:  15 * time.Second,
				WriteTimeout: config.Cfg.ServerWriteTimeout,
				IdleTimeout:  60 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.L.Info("Server starting", "address", serverAddr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return fmt.Errorf("server failed: %w", err)
			case <-ctx.Done():
			}

			logger.L.Info("Shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}
}

func collectCmd() *cobra.Command {
	var (
		only          []string
		failOnPartial bool
	)
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Run one collection now and print its summary",
		Long: `Run one collection over the configured sources.

Examples:
  capitolwatch collect
  capitolwatch collect --source senate-watcher --source house-clerk`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			db, err := openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			svc, cleanup, err := newCollectionService(db)
			if err != nil {
				return err
			}
			defer cleanup()

			summary, err := svc.RunCollection(ctx, services.RunConfig{Trigger: "cli", Sources: only})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(summary); err != nil {
				return fmt.Errorf("write summary: %w", err)
			}
			if failOnPartial && summary.Status != services.RunCompleted {
				return fmt.Errorf("collection run %s finished %s", summary.RunID, summary.Status)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&only, "source", "s", nil, "Collect only the named source (repeatable)")
	cmd.Flags().BoolVar(&failOnPartial, "fail-on-partial", false, "Exit non-zero unless every source succeeded")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore()
			if err != nil {
				return err
			}
			defer db.Close()
			logger.L.Info("Migrations applied", "path", config.Cfg.DatabasePath)
			return nil
		},
	}
}
