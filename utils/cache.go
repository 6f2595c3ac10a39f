package utils

import (
	"context"
	"log"
	"time"

	"tablebook/config"

	"github.com/go-redis/redis/v8"
)

var (
	// LedgerClient backs the capacity ledger and idempotency keys.
	LedgerClient *redis.Client
	// SessionClient backs chat sessions and their locks.
	SessionClient *redis.Client
)

func newRedisClient(db int, name string) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect to Redis (%s): %v", name, err)
	}
	return client
}

// InitRedis connects every Redis client the service uses.
func InitRedis() {
	LedgerClient = newRedisClient(config.AppConfig.RedisLedgerDB, "Ledger")
	SessionClient = newRedisClient(config.AppConfig.RedisSessionDB, "Session")
}

func GetLedgerClient() *redis.Client {
	if LedgerClient == nil {
		LedgerClient = newRedisClient(config.AppConfig.RedisLedgerDB, "Ledger")
	}
	return LedgerClient
}

func GetSessionClient() *redis.Client {
	if SessionClient == nil {
		SessionClient = newRedisClient(config.AppConfig.RedisSessionDB, "Session")
	}
	return SessionClient
}
