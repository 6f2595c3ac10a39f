package utils

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// HealthStatus represents current status of external services.
type HealthStatus struct {
	Healthy    bool            `json:"healthy"`
	Components map[string]bool `json:"components"`
	CheckedAt  time.Time       `json:"checkedAt"`
}

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

func RedisHealthCheck(client *redis.Client) HealthCheck {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

func MongoHealthCheck(client *mongo.Client) HealthCheck {
	return func(ctx context.Context) error {
		return client.Ping(ctx, nil)
	}
}

// HealthMonitor runs registered checks and keeps the latest snapshot in memory.
type HealthMonitor struct {
	clock  Clock
	logger *zap.Logger

	mu      sync.RWMutex
	checks  map[string]HealthCheck
	current HealthStatus
}

func NewHealthMonitor(clock Clock, logger *zap.Logger) *HealthMonitor {
	return &HealthMonitor{
		clock:  clock,
		logger: logger,
		checks: make(map[string]HealthCheck),
	}
}

// Register adds a named check. Registering the same name again replaces it.
func (m *HealthMonitor) Register(name string, check HealthCheck) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = check
}

// Check runs every check once and stores the result.
func (m *HealthMonitor) Check(ctx context.Context) HealthStatus {
	m.mu.RLock()
	names := make([]string, 0, len(m.checks))
	for name := range m.checks {
		names = append(names, name)
	}
	checks := make(map[string]HealthCheck, len(m.checks))
	for k, v := range m.checks {
		checks[k] = v
	}
	m.mu.RUnlock()
	sort.Strings(names)

	status := HealthStatus{Healthy: true, Components: make(map[string]bool, len(names))}
	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := checks[name](checkCtx)
		cancel()
		status.Components[name] = err == nil
		if err != nil {
			status.Healthy = false
			m.logger.Warn("Health check failed", zap.String("component", name), zap.Error(err))
		}
	}
	status.CheckedAt = m.clock.Now()

	m.mu.Lock()
	m.current = status
	m.mu.Unlock()
	return status
}

// Status returns latest stored health snapshot.
func (m *HealthMonitor) Status() HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Start performs periodic health checks until ctx is done.
func (m *HealthMonitor) Start(ctx context.Context, interval time.Duration) {
	m.Check(ctx)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Check(ctx)
			}
		}
	}()
}
