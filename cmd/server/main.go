package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	specpkg "github.com/fieldops/crewroster/api"
	"github.com/fieldops/crewroster/internal/access"
	"github.com/fieldops/crewroster/internal/api"
	"github.com/fieldops/crewroster/internal/auth"
	"github.com/fieldops/crewroster/internal/config"
	"github.com/fieldops/crewroster/internal/membership"
	"github.com/fieldops/crewroster/internal/notify"
	"github.com/fieldops/crewroster/internal/store"
	"github.com/fieldops/crewroster/internal/store/memory"
	"github.com/fieldops/crewroster/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel)

	ctx := context.Background()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	authService := auth.NewService(st.Profiles(), cfg.BcryptCost)
	sessions := auth.NewSessions(cfg.SessionSecret, cfg.SessionTTL)

	if cfg.BootstrapAdminEmail != "" {
		rawKey, err := authService.BootstrapSuperAdmin(ctx, cfg.BootstrapAdminEmail)
		if err != nil {
			slog.Error("failed to bootstrap super admin", "error", err)
			os.Exit(1)
		}
		if rawKey != "" {
			// Printed once so the operator can copy it; never logged.
			fmt.Fprintf(os.Stderr, "super admin API key for %s: %s\n", cfg.BootstrapAdminEmail, rawKey)
			slog.Info("super admin bootstrapped", "email", cfg.BootstrapAdminEmail)
		}
	}

	svc := membership.NewService(st,
		membership.WithTTL(cfg.InvitationTTL),
		membership.WithDispatcher(newDispatcher(cfg)),
		membership.WithTokenIssuer(sessions),
		membership.WithNotifyTimeout(cfg.NotifyTimeout),
	)

	router := api.NewRouter(api.RouterDeps{
		Store:       st,
		Version:     cfg.Version,
		OpenAPISpec: specpkg.OpenAPISpec,
		Auth:        authService,
		Sessions:    sessions,
		Membership:  svc,
		Actions:     access.NewTable(access.DefaultActions, cfg.AllowUnmapped()),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting crewroster server", "port", cfg.Port, "version", cfg.Version, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutting down server", "signal", sig.String())
	case err := <-serverErr:
		slog.Error("server error", "error", err)
		closeStore()
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		closeStore()
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// openStore returns the configured store and a function releasing it.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	if cfg.StoreDriver == config.DriverMemory {
		slog.Warn("using in-memory store; data is lost on restart")
		return memory.New(), func() {}, nil
	}

	pg, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}
	return pg, pg.Close, nil
}

func newDispatcher(cfg *config.Config) notify.Dispatcher {
	if cfg.NotifyURL == "" {
		slog.Warn("NOTIFY_URL not set; invitation e-mails will not be sent")
		return notify.NoopDispatcher{}
	}
	return notify.NewHTTPDispatcher(cfg.NotifyURL, notify.WithTimeout(cfg.NotifyTimeout))
}
