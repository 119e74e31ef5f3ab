package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "github.com/lib/pq"

	"passage/internal/authn"
	"passage/internal/idle"
	"passage/internal/platform/config"
	"passage/internal/platform/httpserver"
	"passage/internal/platform/logger"
	"passage/internal/platform/metrics"
	platformredis "passage/internal/platform/redis"
	"passage/internal/session/service"
	"passage/internal/session/store"
	memstore "passage/internal/session/store/memory"
	redisstore "passage/internal/session/store/redis"
	httptransport "passage/internal/transport/http"
	"passage/pkg/platform/audit"
	auditmem "passage/pkg/platform/audit/store/memory"
	auditpg "passage/pkg/platform/audit/store/postgres"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Session logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	tokens, watcher, closeStore := buildTokenStore(ctx, cfg, log)
	defer closeStore()

	auditStore, closeAudit := buildAuditStore(ctx, cfg, log)
	defer closeAudit()

	issuer := authn.NewIssuer(cfg.JWTSigningKey, cfg.TokenTTL)
	directory := authn.NewDirectory(issuer)
	seedDemoUsers(directory, log)

	m := metrics.New()
	sessions := service.New(tokens, directory,
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithAudit(auditStore),
	)

	monitor := idle.New(tokens, idle.Config{
		IdleTimeout: cfg.IdleTimeout,
		WarnBefore:  cfg.WarnBefore,
		OnWarn: func(remaining time.Duration) {
			log.Info("session idle warning", "remaining", remaining.String())
		},
		OnLogout: func() {
			log.Info("session ended by idle timeout")
			sessions.Expire(context.Background(), "idle")
		},
	}, idle.WithWatcher(watcher), idle.WithLogger(log))
	defer monitor.Stop()

	// A restart with a live persisted session must resume the idle countdown,
	// not wait for the next login.
	if err := sessions.Hydrate(ctx); err != nil {
		log.Warn("session hydration failed", "error", err)
	}
	if sessions.Current().Authenticated() {
		log.Info("restored persisted session, arming idle monitor")
		monitor.Start(ctx)
	}

	handler := httptransport.NewHandler(sessions, monitor, log, httptransport.WithAudit(auditStore))
	router := httptransport.NewRouter(handler)

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting passage", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}

// buildTokenStore prefers Redis so several instances share one session and
// one idle countdown; without Redis the in-memory store serves a single
// instance.
func buildTokenStore(ctx context.Context, cfg config.Server, log *slog.Logger) (store.TokenStore, store.Watcher, func()) {
	client, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Warn("redis unavailable, falling back to in-memory session store", "error", err)
	}
	if client == nil {
		s := memstore.New()
		return s, s, func() {}
	}

	log.Info("using redis session store")
	s := redisstore.New(client.Client, redisstore.WithTTL(cfg.TokenTTL))
	return s, s, func() { _ = client.Close() }
}

func buildAuditStore(ctx context.Context, cfg config.Server, log *slog.Logger) (audit.Store, func()) {
	if cfg.DatabaseURL == "" {
		return auditmem.NewInMemoryStore(), func() {}
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Warn("postgres unavailable, falling back to in-memory audit store", "error", err)
		return auditmem.NewInMemoryStore(), func() {}
	}

	pg := auditpg.New(db)
	if err := pg.Migrate(ctx); err != nil {
		log.Warn("audit migration failed, falling back to in-memory audit store", "error", err)
		_ = db.Close()
		return auditmem.NewInMemoryStore(), func() {}
	}

	log.Info("using postgres audit store")
	return pg, func() { _ = db.Close() }
}

// seedDemoUsers provisions one account per role for local development.
func seedDemoUsers(directory *authn.Directory, log *slog.Logger) {
	users := []struct{ username, email, password, role string }{
		{"admin", "admin@example.edu", "admin-dev-password", "admin"},
		{"teacher", "teacher@example.edu", "teacher-dev-password", "teacher"},
		{"student", "student@example.edu", "student-dev-password", "student"},
	}
	for _, u := range users {
		if err := directory.Register(u.username, u.email, u.password, u.role); err != nil {
			log.Warn("seed user failed", "username", u.username, "error", err)
		}
	}
}
