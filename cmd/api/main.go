package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"notebox/api/internal/app"
	"notebox/api/internal/config"
	"notebox/api/internal/search"
	"notebox/api/internal/session"
	"notebox/api/internal/storage"
	"notebox/api/internal/store"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	dataStore := store.NewPostgresStore(db)

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, search.NewPgFTS(dataStore))
	if meiliClient != nil {
		go func() {
			n, err := searchService.ReindexAllFromPG(ctx)
			if err != nil {
				log.Printf("WARNING: initial reindex failed: %v", err)
				return
			}
			log.Printf("search: reindexed %d notes", n)
		}()
	}

	var sessions app.SessionStore
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for session storage")
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisStore.Close()
		sessions = redisStore
	} else {
		log.Printf("Using PostgreSQL for session storage")
		sessions = session.NewPostgresStore(dataStore)
		go sweepSessions(ctx, dataStore)
	}

	files, err := storage.NewService(storage.Config{
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
		Region:    cfg.S3Region,
		UseSSL:    cfg.S3UseSSL,
	})
	if err != nil {
		log.Fatalf("storage setup failed: %v", err)
	}
	if files.Enabled() {
		if err := files.EnsureBucket(ctx); err != nil {
			log.Printf("WARNING: bucket check failed (uploads may fail): %v", err)
		}
	}

	service := app.New(cfg, dataStore, sessions, searchService, files)
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Notebox API listening on %s (max depth %d)", cfg.Addr, cfg.MaxDepth)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// sweepSessions drops expired Postgres sessions once an hour. Redis expires
// its keys on its own.
func sweepSessions(ctx context.Context, pg *store.PostgresStore) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		n, err := pg.DeleteExpiredSessions(ctx)
		if err != nil {
			log.Printf("session sweep failed: %v", err)
			continue
		}
		if n > 0 {
			log.Printf("session sweep removed %d expired sessions", n)
		}
	}
}
