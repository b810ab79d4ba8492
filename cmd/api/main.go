// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the SKPD portal HTTP API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables (.env honoured in development).
//  3. Initialize error reporting.
//  4. Connect to PostgreSQL (pgxpool) and run migrations.
//  5. Connect to Redis.
//  6. Wire the auth core, tenant resolution and login-attempt administration.
//  7. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/taibuivan/skpdportal/internal/api"
	"github.com/taibuivan/skpdportal/internal/platform/config"
	"github.com/taibuivan/skpdportal/internal/platform/constants"
	"github.com/taibuivan/skpdportal/internal/platform/mailer"
	"github.com/taibuivan/skpdportal/internal/platform/migration"
	"github.com/taibuivan/skpdportal/internal/platform/observability"
	pgstore "github.com/taibuivan/skpdportal/internal/platform/postgres"
	redisstore "github.com/taibuivan/skpdportal/internal/platform/redis"
	"github.com/taibuivan/skpdportal/internal/platform/sec"
	"github.com/taibuivan/skpdportal/internal/tenant"
	"github.com/taibuivan/skpdportal/internal/users/auth"
	"github.com/taibuivan/skpdportal/internal/users/loginattempt"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	log := newLogger(slog.LevelInfo)
	slog.SetDefault(log)

	log.Info("service_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	// A missing .env file is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("dotenv_load_failed", slog.Any("error", err))
	}

	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		log = newLogger(slog.LevelDebug)
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.Bool("otp_login_required", cfg.OtpLoginRequired),
		slog.Bool("mail_enabled", cfg.MailEnabled()),
	)

	// ── 3. Error reporting ────────────────────────────────────────────────
	must(log, observability.Init(cfg.SentryDSN, cfg.Environment), "initialize sentry")
	defer observability.Flush()

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 4. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing_postgres_pool")
		pool.Close()
	}()

	must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

	// ── 5. Redis ──────────────────────────────────────────────────────────
	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	must(log, err, "connect to redis")
	defer func() {
		log.Info("closing_redis_client")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis_close_failed", slog.Any("error", cerr))
		}
	}()

	// ── 6. Auth core ──────────────────────────────────────────────────────
	tokenService := sec.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience)

	verifier, err := auth.NewVerifier(cfg.BcryptCost)
	must(log, err, "prepare credential verifier")

	accounts := auth.NewAccountRepository(pool)
	permissions := auth.NewPermissionRepository(pool)

	tokens := auth.NewTokenIssuer(
		tokenService,
		auth.NewRefreshTokenRepository(pool),
		accounts,
		permissions,
		auth.TokenIssuerConfig{AccessTokenTTL: cfg.AccessTokenTTL, RefreshTokenTTL: cfg.RefreshTokenTTL},
		nil,
	)

	// A nil mailer keeps OTP issuance working but logs every undeliverable code.
	var otpMailer auth.OtpMailer
	if cfg.MailEnabled() {
		otpMailer = mailer.New(mailer.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
			Secure:   cfg.SMTPSecure,
			Timeout:  cfg.MailSendTimeout,
		}, log)
	} else {
		log.Warn("mailer_disabled", slog.String("reason", "SMTP_HOST not set"))
	}

	// Audit rows are written off the request path and drained on shutdown.
	auditDispatcher := auth.NewAuditDispatcher(auth.NewAuditSink(pool), cfg.AuditBufferSize)

	authService := auth.NewService(auth.Dependencies{
		Throttle:    auth.NewThrottle(auth.NewAttemptRepository(pool), nil),
		Accounts:    accounts,
		Verifier:    verifier,
		Otp:         auth.NewOtpChallenge(auth.NewOtpRepository(pool), nil),
		Mailer:      otpMailer,
		Permissions: permissions,
		Tokens:      tokens,
		Audit:       auditDispatcher,
	}, auth.ServiceConfig{
		OtpLoginRequired: cfg.OtpLoginRequired,
		MailSendTimeout:  cfg.MailSendTimeout,
	}, nil)

	// ── 7. Tenant resolution & administration ─────────────────────────────
	resolver := tenant.NewResolver(tenant.NewLookup(pool), tenant.NewRedisCache(rdb), cfg.TenantCacheTTL)

	attemptService := loginattempt.NewService(
		loginattempt.NewRepository(pool),
		loginattempt.NewAuditWriter(pool),
		nil,
	)

	// ── 8. Health handlers (wired with real dependency checkers) ──────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func(ctx context.Context) error {
			return pgstore.Ping(ctx, pool)
		},
		CheckCache: func(ctx context.Context) error {
			return redisstore.Ping(ctx, rdb)
		},
	}, log)

	// ── 9. HTTP Server ────────────────────────────────────────────────────
	// The server context stops background middleware workers on shutdown.
	serverCtx, serverCancel := context.WithCancel(context.Background())
	defer serverCancel()

	server := api.NewServer(serverCtx, cfg, log, tokenService, api.Handlers{
		Liveness:      liveness,
		Readiness:     readiness,
		Auth:          auth.NewHandler(authService, !cfg.IsDevelopment()),
		LoginAttempts: loginattempt.NewHandler(attemptService),
		Tenant:        resolver.Middleware,
	})

	// ── 10. Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown_signal_received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server_startup_failed", slog.Any("error", err))
	}

	shutdownTimeout := constants.ShutdownTimeout
	log.Info("server_shutting_down", slog.Duration("timeout", shutdownTimeout))

	shutdownErr := server.Shutdown(shutdownTimeout)

	auditDispatcher.Close()
	log.Info("audit_dispatcher_closed", slog.Uint64("dropped", auditDispatcher.Dropped()))

	if shutdownErr != nil {
		log.Error("server_shutdown_failed", slog.Any("error", shutdownErr))
		terminate()
	}

	log.Info("server_stopped")
}

// newLogger builds the JSON logger tagged with the application name.
func newLogger(level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With(slog.String(constants.FieldApp, constants.AppName))
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup_failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		terminate()
	}
}

// Swapped out by tests.
var (
	flush = observability.Flush
	exit  = os.Exit
)

// terminate drains buffered Sentry events before exiting, since os.Exit
// skips the deferred Flush in main.
func terminate() {
	flush()
	exit(1)
}
