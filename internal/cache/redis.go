package cache

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	_ "github.com/joho/godotenv/autoload"
)

type Service interface {
	GetClient() *redis.Client
	Health() map[string]string
	Close() error
}

type service struct {
	client *redis.Client
}

var (
	redisAddr     = getEnv("REDIS_URL", "localhost:6379")
	redisPassword = getEnv("REDIS_PASSWORD", "")
	redisDB       = getEnvAsInt("REDIS_DB", 0)
	cacheInstance *service
)

func New() Service {
	if cacheInstance != nil {
		return cacheInstance
	}

	client := redis.NewClient(&redis.Options{
		Addr:         redisAddr,
		Password:     redisPassword,
		DB:           redisDB,
		PoolSize:     100,
		MinIdleConns: 10,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		log.Printf("[CACHE] Redis connection failed: %v", err)
		log.Println("[CACHE] Running without Redis cache")
		return nil
	}

	log.Println("[CACHE] Redis connected successfully")

	cacheInstance = &service{
		client: client,
	}

	return cacheInstance
}

func (s *service) GetClient() *redis.Client {
	return s.client
}

func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	_, err := s.client.Ping(ctx).Result()
	if err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("redis down: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "Redis is healthy"

	poolStats := s.client.PoolStats()
	stats["hits"] = strconv.FormatUint(uint64(poolStats.Hits), 10)
	stats["misses"] = strconv.FormatUint(uint64(poolStats.Misses), 10)
	stats["timeouts"] = strconv.FormatUint(uint64(poolStats.Timeouts), 10)
	stats["total_conns"] = strconv.FormatUint(uint64(poolStats.TotalConns), 10)
	stats["idle_conns"] = strconv.FormatUint(uint64(poolStats.IdleConns), 10)
	stats["stale_conns"] = strconv.FormatUint(uint64(poolStats.StaleConns), 10)

	return stats
}

func (s *service) Close() error {
	log.Println("[CACHE] Disconnecting from Redis")
	return s.client.Close()
}

const (
	balanceKeyPrefix = "roulette:balance:"
	roundLockKey     = "roulette:lock:round"
	presenceKeyFmt   = "roulette:presence:round:%d"
)

// MirrorBalance refreshes the fast-read balance cache after a ledger
// commit. It is best-effort: a miss here only costs an extra Postgres read
// on the next GetBalance, never correctness, since Postgres stays the
// source of truth.
func MirrorBalance(ctx context.Context, client *redis.Client, player string, balance int64) {
	if client == nil {
		return
	}
	if err := client.Set(ctx, balanceKeyPrefix+player, balance, time.Hour).Err(); err != nil {
		log.Printf("[CACHE] failed to mirror balance for %s: %v", player, err)
	}
}

// CachedBalance reads the fast-path mirror, returning ok=false on a cache
// miss so the caller falls back to Postgres.
func CachedBalance(ctx context.Context, client *redis.Client, player string) (balance int64, ok bool) {
	if client == nil {
		return 0, false
	}
	val, err := client.Get(ctx, balanceKeyPrefix+player).Int64()
	if err != nil {
		return 0, false
	}
	return val, true
}

// AcquireRoundLock prevents two scheduler instances from both believing
// they own round advancement, using SET NX with a lease TTL. It is advisory:
// a single-process deployment works fine without ever calling it.
func AcquireRoundLock(ctx context.Context, client *redis.Client, owner string, lease time.Duration) (bool, error) {
	if client == nil {
		return true, nil
	}
	return client.SetNX(ctx, roundLockKey, owner, lease).Result()
}

// ReleaseRoundLock drops the round lock if still held by owner.
func ReleaseRoundLock(ctx context.Context, client *redis.Client, owner string) {
	if client == nil {
		return
	}
	val, err := client.Get(ctx, roundLockKey).Result()
	if err != nil || val != owner {
		return
	}
	client.Del(ctx, roundLockKey)
}

// MarkSubscriberPresent records that a player has an open stream on the
// given round, for presence/metrics purposes; it expires on its own so a
// dropped connection doesn't leak state.
func MarkSubscriberPresent(ctx context.Context, client *redis.Client, roundNumber int64, player string) {
	if client == nil {
		return
	}
	key := fmt.Sprintf(presenceKeyFmt, roundNumber)
	client.SAdd(ctx, key, player)
	client.Expire(ctx, key, 10*time.Minute)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
