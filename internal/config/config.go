// Package config centralizes the closed set of environment-driven settings
// shared by the ledger, round scheduler, and HTTP server.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every tunable named in the round engine's external contract.
type Config struct {
	BettingDuration       time.Duration
	SpinningDuration      time.Duration
	ResultsDuration       time.Duration
	MinStake              int64
	MaxStake              int64
	InitialBalance        int64
	SubscriberQueueDepth  int
	BetRequestDeadline    time.Duration
	DefaultClientSeed     string

	DBHost     string
	DBPort     string
	DBDatabase string
	DBUsername string
	DBPassword string
	DBSchema   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Load reads configuration from the environment, falling back to the
// documented defaults where a variable is unset.
func Load() Config {
	return Config{
		BettingDuration:      time.Duration(getEnvAsInt("BETTING_DURATION_SECONDS", 15)) * time.Second,
		SpinningDuration:     time.Duration(getEnvAsInt("SPINNING_DURATION_SECONDS", 5)) * time.Second,
		ResultsDuration:      time.Duration(getEnvAsInt("RESULTS_DURATION_SECONDS", 3)) * time.Second,
		MinStake:             int64(getEnvAsInt("MIN_STAKE", 10)),
		MaxStake:             int64(getEnvAsInt("MAX_STAKE", 10000)),
		InitialBalance:       int64(getEnvAsInt("INITIAL_BALANCE", 5000)),
		SubscriberQueueDepth: getEnvAsInt("SUBSCRIBER_QUEUE_DEPTH", 64),
		BetRequestDeadline:   time.Duration(getEnvAsInt("BET_REQUEST_DEADLINE_SECONDS", 5)) * time.Second,
		DefaultClientSeed:    getEnv("DEFAULT_CLIENT_SEED", "roulette-public-seed"),

		DBHost:     getEnv("BLUEPRINT_DB_HOST", "localhost"),
		DBPort:     getEnv("BLUEPRINT_DB_PORT", "5432"),
		DBDatabase: getEnv("BLUEPRINT_DB_DATABASE", "rouletteengine"),
		DBUsername: getEnv("BLUEPRINT_DB_USERNAME", "postgres"),
		DBPassword: getEnv("BLUEPRINT_DB_PASSWORD", "postgres"),
		DBSchema:   getEnv("BLUEPRINT_DB_SCHEMA", "public"),

		RedisAddr:     getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
	}
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
