package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/p-n-ai/pai-courses/internal/auth"
	"github.com/p-n-ai/pai-courses/internal/catalog"
	"github.com/p-n-ai/pai-courses/internal/notify"
	"github.com/p-n-ai/pai-courses/internal/platform/cache"
	"github.com/p-n-ai/pai-courses/internal/platform/config"
	"github.com/p-n-ai/pai-courses/internal/platform/database"
	"github.com/p-n-ai/pai-courses/internal/progress"
	"github.com/p-n-ai/pai-courses/internal/server"
	"github.com/p-n-ai/pai-courses/internal/session"
)

const sweepInterval = time.Minute

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(os.Stdout, cfg.Log))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	app, err := setup(ctx, cfg)
	if err != nil {
		slog.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer app.close()

	go app.sessions.Run(ctx, sweepInterval)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      app.server.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "store", cfg.Store.Backend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// app holds the wired components and the resources to release on exit.
type app struct {
	server   *server.Server
	sessions *session.Manager
	closers  []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func setup(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}

	cat, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}

	checks := map[string]server.HealthChecker{}
	var repo progress.Repository
	var db *database.DB

	switch cfg.Store.Backend {
	case config.BackendPostgres:
		if cfg.Database.Migrate {
			if err := database.Migrate(cfg.Database.URL); err != nil {
				return nil, err
			}
		}
		db, err = database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		checks["database"] = db

		pg, err := progress.NewPostgresRepository(db.Pool, cfg.Store.Timeout)
		if err != nil {
			a.close()
			return nil, err
		}
		repo = pg

	case config.BackendRedis:
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() {
			if err := c.Close(); err != nil {
				slog.Warn("closing cache", "error", err)
			}
		})
		checks["cache"] = c

		rr, err := progress.NewRedisRepository(c.Client, cfg.Store.Timeout)
		if err != nil {
			a.close()
			return nil, err
		}
		repo = rr

	default:
		slog.Warn("using in-memory progress store, progress is lost on restart")
		repo = progress.NewMemoryRepository()
	}

	hub := notify.NewHub(0)
	gw := notify.NewGateway(notify.NewMessages(cfg.Notify.Language))
	gw.Register("log", notify.LogChannel{})
	gw.Register("stream", hub)
	if cfg.Notify.Persist && db != nil {
		gw.Register("events", notify.NewPostgresEventLog(db.Pool))
	}

	a.sessions = session.NewManager(session.ManagerConfig{
		Catalog:     cat,
		Repository:  repo,
		Notifier:    gw,
		CallTimeout: cfg.Store.Timeout,
	})
	a.server = server.New(server.Config{
		Sessions: a.sessions,
		Verifier: auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.AllowDevHeader),
		Hub:      hub,
		Checks:   checks,
	})
	if cfg.Auth.AllowDevHeader {
		slog.Warn("development auth enabled", "header", auth.DevHeader)
	}
	return a, nil
}

func loadCatalog(dir string) (*catalog.Catalog, error) {
	if dir == "" {
		return catalog.Builtin()
	}
	return catalog.LoadDir(dir)
}

// newLogger builds the process logger from TRACKER_LOG_LEVEL and TRACKER_LOG_FORMAT.
func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
