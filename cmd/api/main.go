package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"gatekit.org/internal/audit"
	"gatekit.org/internal/auth"
	"gatekit.org/internal/httpapi"
	"gatekit.org/internal/obs"
	"gatekit.org/internal/stream"
)

var (
	version = "0.3.1"
	commit  = "none"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	// A missing signing secret is a fatal startup condition: the token codec
	// is useless without it.
	codec, err := auth.NewCodec(os.Getenv("GATEKIT_AUTH_SECRET"), issuerFromEnv())
	if err != nil {
		log.Fatalf("auth codec: %v", err)
	}

	dsn := os.Getenv("GATEKIT_PG_DSN")
	if dsn == "" {
		log.Fatal("missing GATEKIT_PG_DSN")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	store := auth.NewPGStore(db)
	hub := stream.NewHub()
	sink := audit.NewLog(hub)

	svc, err := auth.NewService(codec, store, store,
		auth.WithAuditSink(sink),
		auth.WithTokenTTL(tokenTTLFromEnv()),
		auth.WithDecisionObserver(obs.ObserveAuthDecision),
	)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}
	admin, err := auth.NewAdminService(store, sink)
	if err != nil {
		log.Fatalf("admin service: %v", err)
	}

	bootCtx, cancelBoot := context.WithTimeout(context.Background(), 10*time.Second)
	if err := admin.EnsureBuiltins(bootCtx); err != nil {
		log.Fatalf("ensure builtin permissions: %v", err)
	}
	cancelBoot()

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, svc, admin, hub)

	addr := os.Getenv("GATEKIT_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting gatekit-api %s on %s", version, srv.Addr)

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
	_ = db.Close()
	log.Println("Stopped")
}

func issuerFromEnv() string {
	if issuer := os.Getenv("GATEKIT_AUTH_ISSUER"); issuer != "" {
		return issuer
	}
	return "gatekit"
}

func tokenTTLFromEnv() time.Duration {
	raw := os.Getenv("GATEKIT_TOKEN_TTL")
	if raw == "" {
		return 0 // service default applies
	}
	ttl, err := time.ParseDuration(raw)
	if err != nil {
		log.Fatalf("parse GATEKIT_TOKEN_TTL: %v", err)
	}
	return ttl
}
