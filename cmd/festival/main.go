package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/festival-programs/internal/application"
	"github.com/example/festival-programs/internal/config"
	httptransport "github.com/example/festival-programs/internal/http"
	"github.com/example/festival-programs/internal/logging"
	"github.com/example/festival-programs/internal/persistence/sqlite"
	"github.com/example/festival-programs/internal/persistence/sqlite/migration"
	"github.com/example/festival-programs/internal/token"
)

// memoryBlacklistSize bounds the in-process revoked token cache.
const memoryBlacklistSize = 10000

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fallback := slog.New(slog.NewJSONHandler(os.Stderr, nil))
		fallback.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, syncLogs, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		fallback := slog.New(slog.NewJSONHandler(os.Stderr, nil))
		fallback.Error("failed to build logger", "error", err)
		os.Exit(1)
	}
	defer func() { _ = syncLogs() }()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("festival API stopped", "error", err)
		_ = syncLogs()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	app, err := newApp(ctx, cfg, logger, application.NewArgon2Hasher())
	if err != nil {
		return err
	}
	defer app.Close()

	go token.RunPurger(ctx, app.purger, cfg.TokenPurgeInterval, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("festival API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// app is the fully wired service. Close releases storage and the optional
// Redis connection.
type app struct {
	handler http.Handler
	purger  token.Purger
	closers []func() error
	logger  *slog.Logger
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("failed to release resource", "error", err)
		}
	}
	a.closers = nil
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger, hasher application.PasswordHasher) (_ *app, err error) {
	a := &app{logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	storage, err := sqlite.OpenWithConfig(migration.DefaultSQLiteConfig(cfg.SQLiteDSN), logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a.closers = append(a.closers, storage.Close)

	if err := storage.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	now := time.Now
	stored := token.NewStoreBlacklist(storage.RevokedTokens, now)
	blacklist := token.Layered{token.NewMemoryBlacklist(memoryBlacklistSize, cfg.TokenTTL, now)}
	if cfg.RedisAddr != "" {
		client, err := token.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		blacklist = append(blacklist, token.NewRedisBlacklist(client, now))
		logger.Info("shared token blacklist enabled", "redis_addr", cfg.RedisAddr)
	}
	blacklist = append(blacklist, stored)
	a.purger = stored

	issuer, err := token.NewJWTIssuer(token.Config{
		Secret: cfg.TokenSecret,
		Issuer: cfg.TokenIssuer,
		TTL:    cfg.TokenTTL,
	}, blacklist)
	if err != nil {
		return nil, err
	}

	users := newUserStore(storage.Users)
	programs := newProgramStore(storage.Programs)
	screenings := newScreeningStore(storage.Screenings)

	auditService := application.NewAuditServiceWithLogger(newAuditStore(storage.Audit), now, logger)
	integrity := application.NewSessionIntegrityWithLogger(users, auditService, now, logger).WithTransactor(storage)
	userService := application.NewUserServiceWithLogger(users, hasher, integrity, auditService, now, logger)
	authService := application.NewAuthServiceWithLogger(users, hasher, issuer, integrity, auditService, now, logger)
	programService := application.NewProgramServiceWithLogger(programs, screenings, users, auditService, now, logger).WithTransactor(storage)
	screeningService := application.NewScreeningServiceWithLogger(screenings, programs, auditService, now, logger)

	if cfg.SeedAdmin() {
		created, err := userService.SeedAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword)
		if err != nil {
			return nil, fmt.Errorf("seed administrator: %w", err)
		}
		if created {
			logger.Info("seeded administrator", "username", cfg.AdminUsername)
		}
	}

	a.handler = httptransport.NewRouter(httptransport.RouterConfig{
		Auth:       httptransport.NewAuthHandler(authService, userService, logger),
		Users:      httptransport.NewUserHandler(userService, logger),
		Programs:   httptransport.NewProgramHandler(programService, logger),
		Screenings: httptransport.NewScreeningHandler(screeningService, logger),
		Audit:      httptransport.NewAuditHandler(auditService, logger),
		Tokens:     authService,
		Health:     storage,
		Logger:     logger,
	})
	return a, nil
}
