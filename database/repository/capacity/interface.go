package capacityRepo

import (
	"context"
	"errors"
	"time"

	"tablebook/models"

	"github.com/go-redis/redis/v8"
)

var (
	// ErrCapacityExceeded means the reservation would push reserved past total.
	ErrCapacityExceeded = errors.New("capacity exceeded")
	// ErrBelowReserved means a new total would be lower than the seats already held.
	ErrBelowReserved = errors.New("total below reserved count")
)

type CapacityRepository interface {
	// Get reads entries for the given slots in one round trip. Missing entries
	// report the default total and nothing reserved.
	Get(ctx context.Context, slots []models.Slot) ([]models.CapacityEntry, error)
	// Reserve atomically adds party seats or returns ErrCapacityExceeded untouched.
	Reserve(ctx context.Context, slot models.Slot, party int, ttl time.Duration) (models.CapacityEntry, error)
	// Release atomically removes party seats. floored is true when the count
	// would have gone negative and was clamped to zero.
	Release(ctx context.Context, slot models.Slot, party int, ttl time.Duration) (entry models.CapacityEntry, floored bool, err error)
	// SetTotal changes the slot capacity, refusing to drop below reserved.
	SetTotal(ctx context.Context, slot models.Slot, total int, ttl time.Duration) (models.CapacityEntry, error)
}

type redisCapacityRepo struct {
	client       *redis.Client
	defaultTotal int
}

// NewRedisCapacityRepo builds the ledger store. defaultTotal applies to slots
// that have never been written.
func NewRedisCapacityRepo(client *redis.Client, defaultTotal int) CapacityRepository {
	return &redisCapacityRepo{client: client, defaultTotal: defaultTotal}
}

func capacityKey(slot models.Slot) string {
	return "capacity:" + slot.Date + ":" + slot.StartTime
}
