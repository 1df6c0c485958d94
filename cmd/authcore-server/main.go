// Command authcore-server exposes the authcore engine over HTTP.
//
// Configuration comes from an optional .env file, an optional YAML file
// (-config) and AUTHCORE_* environment variables. Nested keys use an
// underscore, so jwt.secret is AUTHCORE_JWT_SECRET.
//
// Endpoints:
//
//	POST /auth/register   {"email","name","password"}
//	POST /auth/login      {"email","password"}
//	POST /auth/refresh    {"refresh_token"}
//	POST /auth/logout     {"refresh_token"}
//	GET  /auth/me         bearer access token
//	GET  /users/{userID}  owner or admin
//	GET  /admin/ping      admin only
//	GET  /metrics         Prometheus exposition
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/permission"
	"github.com/MrEthical07/authcore/store/memory"
	"github.com/MrEthical07/authcore/store/postgres"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	var (
		configFile = flag.String("config", "", "optional YAML config file")
		envFile    = flag.String("env", ".env", "optional .env file")
	)
	flag.Parse()

	cfg, err := loadConfig(*configFile, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	logger := newLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("server exited")
		os.Exit(1)
	}
}

// userStore is satisfied by both bundled stores.
type userStore interface {
	authcore.CredentialStore
	SetRole(ctx context.Context, userID string, role permission.RoleID) error
}

func run(ctx context.Context, cfg serverConfig, logger zerolog.Logger) error {
	users, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	builder := authcore.New().
		WithConfig(cfg.engineConfig()).
		WithCredentialStore(users).
		WithLogger(logger)

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		builder = builder.WithRedis(rdb)
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("using redis")
	}
	if cfg.Audit.Enabled {
		builder = builder.WithAuditSink(newAuditSink(logger))
	}

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	if err := seedAdmin(ctx, engine, users, cfg.Admin); err != nil {
		return err
	}

	trusted, err := cfg.HTTP.trustedProxies()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           newRouter(engine, users, logger, trusted),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.HTTP.Addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg serverConfig, logger zerolog.Logger) (userStore, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Warn().Msg("database_url not set; using in-memory credential store")
		return memory.New(nil), func() {}, nil
	}

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	db, err := postgres.Open(openCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := postgres.Migrate(openCtx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Info().Msg("using postgres credential store")
	return postgres.New(db), func() { _ = db.Close() }, nil
}

// seedAdmin registers the configured admin account if needed and grants it
// the admin role.
func seedAdmin(ctx context.Context, engine *authcore.Engine, users userStore, admin adminConfig) error {
	if admin.Email == "" {
		return nil
	}

	var userID string
	res, err := engine.Register(ctx, authcore.RegisterRequest{Email: admin.Email, Name: "admin", Password: admin.Password})
	switch {
	case err == nil:
		userID = res.Identity.UserID
		if logoutErr := engine.LogoutAll(ctx, userID); logoutErr != nil && !errors.Is(logoutErr, authcore.ErrRevocationUnavailable) {
			return fmt.Errorf("seed admin: %w", logoutErr)
		}
	case errors.Is(err, authcore.ErrDuplicateEmail):
		c, findErr := users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(admin.Email)))
		if findErr != nil {
			return fmt.Errorf("seed admin: %w", findErr)
		}
		userID = c.UserID
	default:
		return fmt.Errorf("seed admin: %w", err)
	}

	return users.SetRole(ctx, userID, permission.RoleAdmin)
}

func newLogger(cfg logConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

// newAuditSink logs audit events through the server logger. The sink tags its
// lines with component=audit itself.
func newAuditSink(logger zerolog.Logger) authcore.AuditSink {
	return authcore.NewZerologSink(logger)
}
