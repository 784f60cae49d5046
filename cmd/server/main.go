package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"viatransfer/auth-service/internal/audit"
	auditrepo "viatransfer/auth-service/internal/audit/repository"
	"viatransfer/auth-service/internal/auth"
	"viatransfer/auth-service/internal/config"
	"viatransfer/auth-service/internal/db"
	"viatransfer/auth-service/internal/security"
	"viatransfer/auth-service/internal/server"
	sessionrepo "viatransfer/auth-service/internal/session/repository"
	sessionservice "viatransfer/auth-service/internal/session/service"
	"viatransfer/auth-service/internal/telemetry/otel"
	"viatransfer/auth-service/internal/telemetry/producer"
	userrepo "viatransfer/auth-service/internal/user/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	// A missing signing key must stop the process here; a default key would
	// be an authentication bypass.
	if err := cfg.ValidateSigningKeys(); err != nil {
		log.Fatalf("config: %v", err)
	}
	privateKey, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		log.Fatalf("config: JWT_PRIVATE_KEY: %v", err)
	}
	publicKey, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("config: JWT_PUBLIC_KEY: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, "viatransfer-auth", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()

	pool, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	kafkaProducer, err := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.SecurityEventsTopic)
	if err != nil {
		log.Fatalf("kafka: %v", err)
	}
	if kafkaProducer != nil {
		defer kafkaProducer.Close()
	}

	sessions := sessionrepo.NewPostgresRepository(pool)
	subjects := userrepo.NewPostgresRepository(pool)
	events := auditrepo.NewPostgresRepository(pool)

	var auditLogger audit.Logger
	if kafkaProducer != nil {
		auditLogger = audit.NewLogger(events, kafkaProducer, nil)
	} else {
		auditLogger = audit.NewLogger(events, nil, nil)
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	tokens := security.NewTokenProvider(privateKey, publicKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())

	authSvc := auth.NewService(sessions, subjects, hasher, tokens, auditLogger, cfg.RefreshTTL())
	sessionSvc := sessionservice.NewService(sessions, auditLogger)

	go sessionSvc.RunPurgeLoop(ctx, cfg.PurgeInterval(), cfg.PurgeRetention())

	handler := server.New(authSvc, sessionSvc, tokens, pool, server.Options{
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		AllowedOrigins: cfg.CORSOrigins(),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down HTTP server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	cancel()
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("telemetry shutdown: %v", err)
	}
	log.Println("HTTP server stopped")
}
