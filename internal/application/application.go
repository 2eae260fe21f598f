// Package application wires configuration, storage, the conversion service
// and the HTTP server together. Both the server binary and the CLI's serve
// command start from here.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/sqlscript/internal/config"
	"github.com/JonMunkholm/sqlscript/internal/core"
	"github.com/JonMunkholm/sqlscript/internal/source"
	"github.com/JonMunkholm/sqlscript/internal/storage/filestore"
	"github.com/JonMunkholm/sqlscript/internal/storage/pgstore"
	"github.com/JonMunkholm/sqlscript/internal/storage/sqlitestore"
	"github.com/JonMunkholm/sqlscript/internal/web"
)

// Store backends, in order of preference.
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendFiles    = "files"
)

// Backend reports which store OpenStore will pick for cfg.
func Backend(cfg *config.Config) string {
	switch {
	case cfg.Database.Enabled():
		return BackendPostgres
	case cfg.Script.SQLitePath != "":
		return BackendSQLite
	default:
		return BackendFiles
	}
}

// OpenStore opens the script store selected by cfg. The returned close
// function releases pools and handles and is never nil.
func OpenStore(ctx context.Context, cfg *config.Config) (core.ScriptStore, func(), error) {
	switch Backend(cfg) {
	case BackendPostgres:
		return openPostgres(ctx, &cfg.Database)

	case BackendSQLite:
		store, err := sqlitestore.Open(ctx, cfg.Script.SQLitePath)
		if err != nil {
			return nil, func() {}, err
		}
		slog.Info("script store ready", "backend", BackendSQLite, "path", cfg.Script.SQLitePath)
		return store, func() { store.Close() }, nil

	default:
		store, err := filestore.New(cfg.Script.Dir)
		if err != nil {
			return nil, func() {}, err
		}
		slog.Info("script store ready", "backend", BackendFiles, "dir", store.Dir())
		return store, func() {}, nil
	}
}

func openPostgres(ctx context.Context, cfg *config.DatabaseConfig) (core.ScriptStore, func(), error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, func() {}, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, func() {}, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, func() {}, fmt.Errorf("ping database: %w", err)
	}

	store := pgstore.New(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, func() {}, err
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("script store ready", "backend", BackendPostgres, "database", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("script store ready", "backend", BackendPostgres)
	}
	return store, pool.Close, nil
}

// NewService builds the conversion service for cfg on top of store.
func NewService(store core.ScriptStore, cfg *config.Config) *core.Service {
	loader := source.Loader(source.Options{FloatNumbers: cfg.Convert.FloatNumbers})
	limiter := core.NewLimiter(cfg.Convert.MaxConcurrent, cfg.Convert.MaxWaitTime)

	return core.NewService(store, loader, limiter, core.ServiceConfig{
		BatchSize:    cfg.Convert.BatchSize,
		PreviewLimit: cfg.Convert.PreviewLimit,
		DefaultMode:  cfg.Convert.Mode(),
	})
}

// Serve runs the web server until ctx is cancelled, then drains in-flight
// conversions and shuts down within Server.ShutdownTimeout.
func Serve(ctx context.Context, cfg *config.Config) error {
	store, closeStore, err := OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	service := NewService(store, cfg)
	server := web.NewServer(service, cfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if status := service.LimiterStatus(); status.Active > 0 {
		slog.Info("waiting for conversions to complete", "active", status.Active)
		if err := service.WaitForConversions(shutdownCtx); err != nil {
			slog.Warn("conversions did not complete in time", "error", err)
		} else {
			slog.Info("all conversions completed")
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("server stopped")
	return nil
}
