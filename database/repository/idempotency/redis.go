package idempotencyRepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "idem:booking:"

var (
	// ErrInFlight means another request holding the same key has not finished.
	ErrInFlight = errors.New("request with this key is in flight")
	// ErrKeyReused means the key was first used for a different request body.
	ErrKeyReused = errors.New("idempotency key reused with a different request")
)

type record struct {
	Fingerprint string `json:"fingerprint"`
	BookingID   string `json:"bookingId,omitempty"`
}

// Store remembers which booking a client request key produced.
type Store interface {
	// Claim reserves key for a new request. When the key already completed it
	// returns the booking id it produced and claimed=false.
	Claim(ctx context.Context, key, fingerprint string) (bookingID string, claimed bool, err error)
	Complete(ctx context.Context, key, fingerprint, bookingID string) error
	// Abandon drops a claim whose request failed so the client may retry.
	Abandon(ctx context.Context, key string) error
}

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) Store {
	return &redisStore{client: client, ttl: ttl}
}

func (s *redisStore) Claim(ctx context.Context, key, fingerprint string) (string, bool, error) {
	pending, err := json.Marshal(record{Fingerprint: fingerprint})
	if err != nil {
		return "", false, err
	}
	ok, err := s.client.SetNX(ctx, keyPrefix+key, pending, s.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("claim idempotency key: %w", err)
	}
	if ok {
		return "", true, nil
	}

	raw, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		// Expired between the two calls; the caller may simply retry.
		return "", false, ErrInFlight
	}
	if err != nil {
		return "", false, fmt.Errorf("read idempotency key: %w", err)
	}
	var existing record
	if err := json.Unmarshal(raw, &existing); err != nil {
		return "", false, fmt.Errorf("decode idempotency key: %w", err)
	}
	if existing.Fingerprint != fingerprint {
		return "", false, ErrKeyReused
	}
	if existing.BookingID == "" {
		return "", false, ErrInFlight
	}
	return existing.BookingID, false, nil
}

func (s *redisStore) Complete(ctx context.Context, key, fingerprint, bookingID string) error {
	done, err := json.Marshal(record{Fingerprint: fingerprint, BookingID: bookingID})
	if err != nil {
		return err
	}
	return s.client.Set(ctx, keyPrefix+key, done, s.ttl).Err()
}

func (s *redisStore) Abandon(ctx context.Context, key string) error {
	return s.client.Del(ctx, keyPrefix+key).Err()
}
