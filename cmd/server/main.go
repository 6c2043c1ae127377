package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iairu/react-springboot-docker-boilerplate/internal/api"
	"github.com/iairu/react-springboot-docker-boilerplate/internal/config"
	"github.com/iairu/react-springboot-docker-boilerplate/internal/diagnostics"
	"github.com/iairu/react-springboot-docker-boilerplate/internal/store"
)

// userStore is implemented by both database backends.
type userStore interface {
	api.UserStore
	diagnostics.UserStore
	diagnostics.Database
	Migrate(ctx context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx := context.Background()

	var users userStore

	switch cfg.DBDriver {
	// ── PostgreSQL ────────────────────────────────────────────
	case config.DriverPostgres:
		pgCfg, err := pgxpool.ParseConfig(cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("postgres config: %v", err)
		}
		pgCfg.MaxConns = cfg.PGMaxConns

		pgPool, err := pgxpool.NewWithConfig(ctx, pgCfg)
		if err != nil {
			log.Fatalf("postgres connect: %v", err)
		}
		defer pgPool.Close()
		users = store.NewPostgresStore(pgPool)

	// ── SQLite ───────────────────────────────────────────────
	case config.DriverSQLite:
		db, err := store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("sqlite open: %v", err)
		}
		defer db.Close()
		users = store.NewSQLiteStore(db, cfg.SQLitePath)
	}

	// ── Diagnostics ──────────────────────────────────────────
	diag := diagnostics.NewService(users, users, cfg.HealthTimeout)

	// An unreachable database must not stop the server; the migration is
	// retried once a health check gets through.
	if err := users.Migrate(ctx); err != nil {
		log.Printf("migrate: %v (retrying after next healthy check)", err)
		diag.RetryMigration(users)
	}
	if cfg.RunDiagnostics {
		diag.Run(ctx)
	}

	// ── Router ───────────────────────────────────────────────
	handler := api.NewHandler(users, diag)
	r := api.NewRouter(handler, cfg.CORSOrigins)

	// ── Server ───────────────────────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		log.Printf("Backend listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	shutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	srv.Shutdown(shutCtx)
}
