// Package database wraps the Postgres connection pool backing the ledger's
// transaction log and the round audit table.
package database

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"
)

// Service exposes the pool plus health/lifecycle operations, mirroring the
// shape of internal/cache.Service so both ambient dependencies look the same
// to the server's health endpoint.
type Service interface {
	Pool() *pgxpool.Pool
	Health() map[string]string
	Close() error
}

type service struct {
	pool *pgxpool.Pool
}

var (
	database = getEnv("BLUEPRINT_DB_DATABASE", "rouletteengine")
	password = getEnv("BLUEPRINT_DB_PASSWORD", "postgres")
	username = getEnv("BLUEPRINT_DB_USERNAME", "postgres")
	host     = getEnv("BLUEPRINT_DB_HOST", "localhost")
	port     = getEnv("BLUEPRINT_DB_PORT", "5432")
	schema   = getEnv("BLUEPRINT_DB_SCHEMA", "public")

	dbInstance *service
)

// New returns the process-wide database Service, lazily establishing the
// pool on first call.
func New() Service {
	if dbInstance != nil {
		return dbInstance
	}

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		username, password, host, port, database, schema)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		log.Printf("[DB] Failed to create pool: %v", err)
		return nil
	}

	if err := pool.Ping(ctx); err != nil {
		log.Printf("[DB] Ping failed: %v", err)
	}

	dbInstance = &service{pool: pool}
	return dbInstance
}

func (s *service) Pool() *pgxpool.Pool {
	return s.pool
}

// Health reports pool statistics in the same key shape the Redis cache
// service uses, so /health can render both uniformly.
func (s *service) Health() map[string]string {
	stats := make(map[string]string)

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := s.pool.Ping(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	poolStats := s.pool.Stat()
	stats["status"] = "up"
	stats["message"] = "It's healthy"
	stats["open_connections"] = fmt.Sprintf("%d", poolStats.TotalConns())
	stats["idle_connections"] = fmt.Sprintf("%d", poolStats.IdleConns())
	stats["acquired_connections"] = fmt.Sprintf("%d", poolStats.AcquiredConns())

	return stats
}

func (s *service) Close() error {
	log.Printf("[DB] Disconnected from database: %s", database)
	s.pool.Close()
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
