package ai

import (
	"context"
	"errors"
	"time"

	"tablebook/utils"

	"github.com/go-redis/redis/v8"
)

const lockPrefix = "chat:lock:"

var ErrLockTimeout = errors.New("chat session is busy")

var unlockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// SessionLock serializes chat turns on one session across instances.
type SessionLock struct {
	client *redis.Client
	ids    utils.IDGenerator
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
}

func NewSessionLock(client *redis.Client, ids utils.IDGenerator, ttl, wait time.Duration) *SessionLock {
	return &SessionLock{client: client, ids: ids, ttl: ttl, wait: wait, retry: 25 * time.Millisecond}
}

// Acquire blocks until the lock for id is held, the wait elapses or ctx ends.
// The returned func releases the lock only if this holder still owns it.
func (l *SessionLock) Acquire(ctx context.Context, id string) (func(), error) {
	token, err := l.ids.NewToken()
	if err != nil {
		return nil, err
	}
	key := lockPrefix + id
	deadline := time.NewTimer(l.wait)
	defer deadline.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				unlockScript.Run(context.Background(), l.client, []string{key}, token)
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, ErrLockTimeout
		case <-time.After(l.retry):
		}
	}
}
