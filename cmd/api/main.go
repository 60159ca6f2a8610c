// Package main wires the ledger, round scheduler, event bus, and HTTP
// surface together and runs the roulette engine as a single process.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	_ "github.com/joho/godotenv/autoload"

	"github.com/rouletteengine/core/internal/cache"
	"github.com/rouletteengine/core/internal/config"
	"github.com/rouletteengine/core/internal/database"
	"github.com/rouletteengine/core/internal/ledger"
	"github.com/rouletteengine/core/internal/round"
	"github.com/rouletteengine/core/internal/server"
	"github.com/rouletteengine/core/internal/stream"
)

func main() {
	cfg := config.Load()

	// ── storage ──────────────────────────────────────────────────────────
	db := database.New()
	if db == nil {
		log.Fatal("[API] database unavailable, refusing to start")
	}

	cacheSvc := cache.New()

	var redisClient *redis.Client
	if cacheSvc != nil {
		redisClient = cacheSvc.GetClient()
	}

	ledgerSvc := ledger.New(db.Pool(), redisClient, cfg.InitialBalance)
	auditStore := database.NewAuditStore(db.Pool())

	// ── round engine ─────────────────────────────────────────────────────
	hub := stream.NewHub(cfg.SubscriberQueueDepth)

	schedulerCfg := round.Config{
		BettingDuration:    cfg.BettingDuration,
		SpinningDuration:   cfg.SpinningDuration,
		ResultsDuration:    cfg.ResultsDuration,
		MinStake:           cfg.MinStake,
		MaxStake:           cfg.MaxStake,
		DefaultClientSeed:  cfg.DefaultClientSeed,
		BetRequestDeadline: cfg.BetRequestDeadline,
	}
	scheduler := round.NewScheduler(schedulerCfg, ledgerSvc, hub, round.LogAlerter{}, auditStore)
	scheduler.Start()

	// ── HTTP surface ─────────────────────────────────────────────────────
	app := server.New(db, cacheSvc, scheduler, hub, nil, auditStore)
	app.RegisterFiberRoutes()

	addr := fmt.Sprintf(":%s", getEnv("PORT", "8080"))

	go func() {
		log.Printf("[API] listening on %s", addr)
		if err := app.Listen(addr); err != nil {
			log.Printf("[API] server stopped: %v", err)
		}
	}()

	// ── graceful shutdown ────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Println("[API] shutdown signal received, draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("[API] http shutdown error: %v", err)
	}

	// Stop blocks until the in-flight round reaches ENDED so no bet is left
	// mid-settlement.
	scheduler.Stop()

	if cacheSvc != nil {
		if err := cacheSvc.Close(); err != nil {
			log.Printf("[API] cache shutdown error: %v", err)
		}
	}
	if err := db.Close(); err != nil {
		log.Printf("[API] database shutdown error: %v", err)
	}

	log.Println("[API] stopped cleanly")
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
