// Package main initializes and starts the GophTasks HTTP server, setting up
// configuration, logging, the database, repositories, services, sessions,
// handlers and metrics.
//
// Usage:
//
//	server [flags]           run the server
//	server [flags] init-db   apply migrations and exit
package main

import (
	"cmp"
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/atinyakov/GophTasks/internal/config"
	"github.com/atinyakov/GophTasks/internal/credentials"
	"github.com/atinyakov/GophTasks/internal/db"
	"github.com/atinyakov/GophTasks/internal/logger"
	"github.com/atinyakov/GophTasks/internal/middleware"
	"github.com/atinyakov/GophTasks/internal/repository"
	"github.com/atinyakov/GophTasks/internal/server/handler/http"
	"github.com/atinyakov/GophTasks/internal/service"
	"github.com/atinyakov/GophTasks/internal/session"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse command-line, config file and environment configuration.
	options, args := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel, options.AppEnv); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	if err := options.Validate(); err != nil {
		zapLogger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Open the database and bring the schema up to date.
	conn, err := openDatabase(ctx, options, zapLogger)
	if err != nil {
		zapLogger.Fatal("cannot init database", zap.Error(err))
	}
	defer conn.Close()

	if len(args) > 0 {
		switch args[0] {
		case "init-db":
			fmt.Println("Initialized the database.")
			return
		default:
			zapLogger.Fatal("unknown command", zap.String("command", args[0]))
		}
	}

	// Initialize repositories.
	userRepo := repository.NewUserRepository(conn)
	taskRepo := repository.NewTaskRepository(conn)

	// Initialize business-logic services.
	userService := service.NewUserService(userRepo, credentials.NewStore(options.BcryptCost))
	taskService := service.NewTaskService(taskRepo)

	// Session cookies are signed with SECRET_KEY.
	secret, err := sessionSecret(options, zapLogger)
	if err != nil {
		zapLogger.Fatal("cannot create session secret", zap.Error(err))
	}
	store := session.NewCookieStore(secret, session.Options{
		MaxAge: options.SessionMaxAge,
		Secure: options.SecureCookies,
	})
	sessions := session.NewManager(store, userService)

	// Metrics live on a private registry served at /metrics.
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Create HTTP handlers.
	views, err := http.NewRenderer()
	if err != nil {
		zapLogger.Fatal("cannot parse templates", zap.Error(err))
	}
	pages := &http.Pages{Views: views, Sessions: sessions, Log: zapLogger}
	validate := http.NewValidator()

	authHandler := &http.AuthHandler{Pages: pages, AuthService: userService, Validate: validate}
	taskHandler := &http.TaskHandler{Pages: pages, TaskService: taskService, Validate: validate}
	apiHandler := &http.APIHandler{TaskService: taskService, Log: zapLogger}
	opsHandler := &http.OpsHandler{DB: conn, Gatherer: reg, Log: zapLogger}

	// Build the router with middleware and routes.
	router := http.NewRouter(
		authHandler,
		taskHandler,
		apiHandler,
		opsHandler,
		sessions,
		middleware.NewMetrics(reg),
		zapLogger,
	)

	server := &nethttp.Server{
		Addr:              options.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zapLogger.Error("graceful shutdown failed", zap.Error(err))
		}
	}()

	zapLogger.Info("starting HTTP server",
		zap.String("addr", options.Addr),
		zap.String("env", options.AppEnv),
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		zapLogger.Fatal("failed to start HTTP server", zap.Error(err))
	}
	zapLogger.Info("server stopped")
}

// openDatabase connects to PostgreSQL when a DSN is configured and to the
// SQLite file otherwise, then applies pending migrations.
func openDatabase(ctx context.Context, options *config.Options, log *zap.Logger) (*sql.DB, error) {
	var (
		conn    *sql.DB
		dialect db.Dialect
		err     error
	)
	if options.UsesPostgres() {
		conn, err = db.InitPostgres(options.DatabaseDSN)
		dialect = db.Postgres
	} else {
		conn, err = db.InitSQLite(options.DatabaseFile)
		dialect = db.SQLite
	}
	if err != nil {
		return nil, err
	}

	applied, err := db.Migrate(ctx, conn, dialect)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	log.Info("database ready", zap.String("dialect", string(dialect)), zap.Int("migrations_applied", applied))
	return conn, nil
}

// sessionSecret returns SECRET_KEY, or a random key in development. A random
// key invalidates every session on restart.
func sessionSecret(options *config.Options, log *zap.Logger) ([]byte, error) {
	if options.SecretKey != "" {
		return []byte(options.SecretKey), nil
	}
	log.Warn("SECRET_KEY is not set, using an ephemeral key")
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}
