// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/olegiv/otask-go/internal/auth"
	"github.com/olegiv/otask-go/internal/cache"
	"github.com/olegiv/otask-go/internal/config"
	"github.com/olegiv/otask-go/internal/handler/api"
	"github.com/olegiv/otask-go/internal/logging"
	"github.com/olegiv/otask-go/internal/middleware"
	"github.com/olegiv/otask-go/internal/policy"
	"github.com/olegiv/otask-go/internal/render"
	"github.com/olegiv/otask-go/internal/scheduler"
	"github.com/olegiv/otask-go/internal/service"
	"github.com/olegiv/otask-go/internal/store"
	"github.com/olegiv/otask-go/internal/util"
	"github.com/olegiv/otask-go/internal/version"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

const (
	requestTimeout     = 30 * time.Second
	rateLimitPruneTick = 10 * time.Minute
)

func main() {
	// Parse CLI flags
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "oTask - role-scoped task management API\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OTASK_JWT_SECRET        Token signing key (required, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OTASK_DB_PATH           SQLite database path (default: ./data/otask.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OTASK_SERVER_PORT       Server port (default: 5000)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OTASK_ENV               Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OTASK_TOKEN_TTL         Token lifetime (default: 168h)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OTASK_REDIS_URL         Redis URL for the token revocation list (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OTASK_CORS_ORIGIN       Allowed CORS origins, comma-separated (default: *)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OTASK_ROLE_SELF_SERVICE Let users choose their own role (default: true)\n")
	}

	flag.Parse()

	// Handle -h/-help flag
	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	versionInfo := version.Info{
		Version:   appVersion,
		GitCommit: appGitCommit,
		BuildTime: appBuildTime,
	}

	// Handle -v/-version flag
	if *showVersion {
		_, _ = fmt.Println(versionInfo.String())
		os.Exit(0)
	}

	if err := run(versionInfo); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run(versionInfo version.Info) error {
	// Load .env file if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logLevel := cfg.SlogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	// Ensure data directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	slog.Info("initializing database", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}(db)

	slog.Info("running database migrations")
	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database ready")

	// Upgrade logger to also write WARN and ERROR logs to the event log
	logger = slog.New(logging.NewEventLogHandler(
		slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}), db))
	slog.SetDefault(logger)
	slog.Info("event log integration enabled", "min_level", "warn")

	hasher, err := auth.NewHasher(cfg.PasswordAlgorithm, cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("creating password hasher: %w", err)
	}

	ctx := context.Background()
	if cfg.DoSeed {
		email := util.NormalizeEmail(cfg.SeedAdminEmail)
		if _, err := store.SeedAdmin(ctx, db, hasher, email, cfg.SeedAdminPassword); err != nil {
			return fmt.Errorf("seeding admin: %w", err)
		}
	}

	// Revocation list backend
	cacheConfig := cache.DefaultConfig()
	cacheConfig.Type = string(cache.BackendMemory)
	if cfg.UseRedisCache() {
		cacheConfig.Type = string(cache.BackendRedis)
		cacheConfig.RedisURL = cfg.RedisURL
	}
	cacheConfig.Prefix = cfg.CachePrefix
	cacheConfig.DefaultTTL = cfg.TokenTTL
	cacheResult, err := cache.NewWithInfo(cacheConfig)
	if err != nil {
		return fmt.Errorf("initializing cache: %w", err)
	}
	defer func() { _ = cacheResult.Cache.Close() }()
	switch {
	case cacheResult.IsFallback:
		slog.Warn("revocation cache initialized", "backend", "memory", "note", "Redis unavailable, using fallback")
	case cacheResult.BackendType == cache.BackendRedis:
		slog.Info("revocation cache initialized", "backend", "redis", "url", cache.SanitizeRedisURL(cfg.RedisURL))
	default:
		slog.Info("revocation cache initialized", "backend", "memory")
	}

	// Services
	pol := policy.New(cfg.RoleSelfService)
	tokens := auth.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.TokenTTL, cfg.TokenIssuer)
	eventService := service.NewEventService(db, pol)
	identityService := service.NewIdentityService(db, hasher, tokens, auth.NewRevocationList(cacheResult.Cache), pol, eventService)
	taskService := service.NewTaskService(db, pol, eventService)

	// Scheduler
	sched := scheduler.New(db, eventService, scheduler.Options{EventRetention: cfg.EventRetention()}, logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()

	// Rate limiting
	globalRateLimiter := middleware.NewGlobalRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	loginProtection := middleware.NewLoginProtection(middleware.DefaultLoginProtectionConfig())
	defer loginProtection.Close()

	pruneStop := make(chan struct{})
	defer close(pruneStop)
	go func() {
		ticker := time.NewTicker(rateLimitPruneTick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				globalRateLimiter.Prune()
			case <-pruneStop:
				return
			}
		}
	}()

	apiHandler := api.NewHandler(api.Deps{
		DB:              db,
		Identity:        identityService,
		Tasks:           taskService,
		Events:          eventService,
		Jobs:            service.NewJobService(sched.Registry(), pol, eventService),
		Markdown:        render.NewMarkdown(),
		LoginProtection: loginProtection,
		Version:         versionInfo,
	})

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment())))
	r.Use(middleware.CORS(cfg.CORSOrigin))
	r.Use(middleware.ClientInfo)
	r.Use(middleware.Timeout(requestTimeout))

	r.Route("/api", func(r chi.Router) {
		r.Use(globalRateLimiter.Middleware())
		apiHandler.Routes(r)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		api.WriteError(w, http.StatusNotFound, "not_found", "Route not found", nil)
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB max header size
	}

	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env, "version", versionInfo.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
