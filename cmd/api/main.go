package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"mercata.dev/internal/auth"
	"mercata.dev/internal/httpapi"
	"mercata.dev/internal/obs"
)

var version = "0.1.0"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("MERCATA_COMMIT"))

	dsn := os.Getenv("MERCATA_PG_DSN")
	if dsn == "" {
		log.Fatal("MERCATA_PG_DSN is required")
	}
	store, err := auth.Open(dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}

	codec, err := auth.NewCodec(
		mustEnv("MERCATA_ACCESS_SECRET"),
		mustEnv("MERCATA_REFRESH_SECRET"),
		auth.WithAccessTTL(envDuration("MERCATA_ACCESS_TTL", 5*time.Minute)),
		auth.WithRefreshTTL(envDuration("MERCATA_REFRESH_TTL", 7*24*time.Hour)),
	)
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}

	svc, err := auth.NewService(store, codec,
		auth.WithResetTTL(envDuration("MERCATA_RESET_TTL", 20*time.Minute)),
	)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	if email := os.Getenv("MERCATA_ADMIN_EMAIL"); email != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := auth.Seed(ctx, store, email, mustEnv("MERCATA_ADMIN_PASSWORD")); err != nil {
			log.Fatalf("seed: %v", err)
		}
		cancel()
	}

	registry := auth.NewRegistry(store)
	api := httpapi.New(svc, registry, httpapi.ReadyProbe{DB: store.DB()}, version)

	srv := &http.Server{
		Addr:              ":" + envString("MERCATA_PORT", "8080"),
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting mercata-auth %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = store.Close()
	log.Println("Stopped")
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("%s is required", key)
	}
	return v
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	log.Fatalf("%s: cannot parse %q as a duration", key, raw)
	return 0
}
