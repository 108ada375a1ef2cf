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

	"github.com/prometheus/client_golang/prometheus"

	"github.com/trustvault/backend/internal/accounting"
	"github.com/trustvault/backend/internal/auth"
	"github.com/trustvault/backend/internal/config"
	"github.com/trustvault/backend/internal/engine"
	"github.com/trustvault/backend/internal/invite"
	"github.com/trustvault/backend/internal/ledger"
	"github.com/trustvault/backend/internal/oracle"
	"github.com/trustvault/backend/internal/server"
	"github.com/trustvault/backend/internal/storage/sqlite"
	"github.com/trustvault/backend/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.SetupWithLevel(logging.ParseLevel(cfg.LogLevel))

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "error", err, "path", cfg.DBPath)
		os.Exit(1)
	}
	defer store.Close()

	groups := ledger.New(store)
	quotes := oracle.NewOffline()
	eng := engine.New(store, groups, quotes)
	invites := invite.New(store, groups)
	money := accounting.New(store, groups, quotes)
	tokens := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
	authenticator := auth.NewPasswordAuthenticator(store)

	registry := prometheus.NewRegistry()
	router := server.NewRouter(server.Deps{
		Store:         store,
		Groups:        groups,
		Engine:        eng,
		Invites:       invites,
		Accounting:    money,
		Oracle:        quotes,
		Authenticator: authenticator,
		Tokens:        tokens,
		Metrics:       registry,
	})

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: router,
	}

	go func() {
		slog.Info("Server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Shutdown failed", "error", err)
	}
}
