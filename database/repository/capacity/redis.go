package capacityRepo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"tablebook/models"

	"github.com/go-redis/redis/v8"
)

// Each script reads the hash, decides, and writes in one step. Redis runs
// scripts one at a time, so every reservation on a key is serialized.

var reserveScript = redis.NewScript(`
local total = tonumber(ARGV[2])
local t = redis.call('HGET', KEYS[1], 'total')
if t then total = tonumber(t) end
local reserved = 0
local r = redis.call('HGET', KEYS[1], 'reserved')
if r then reserved = tonumber(r) end
local party = tonumber(ARGV[1])
if reserved + party > total then
  return {0, total, reserved}
end
reserved = reserved + party
redis.call('HSET', KEYS[1], 'total', total, 'reserved', reserved)
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return {1, total, reserved}
`)

var releaseScript = redis.NewScript(`
local total = tonumber(ARGV[2])
local t = redis.call('HGET', KEYS[1], 'total')
if t then total = tonumber(t) end
local reserved = 0
local r = redis.call('HGET', KEYS[1], 'reserved')
if r then reserved = tonumber(r) end
local floored = 0
reserved = reserved - tonumber(ARGV[1])
if reserved < 0 then
  reserved = 0
  floored = 1
end
redis.call('HSET', KEYS[1], 'total', total, 'reserved', reserved)
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return {floored, total, reserved}
`)

var setTotalScript = redis.NewScript(`
local current = tonumber(ARGV[2])
local t = redis.call('HGET', KEYS[1], 'total')
if t then current = tonumber(t) end
local reserved = 0
local r = redis.call('HGET', KEYS[1], 'reserved')
if r then reserved = tonumber(r) end
local total = tonumber(ARGV[1])
if total < reserved then
  return {0, current, reserved}
end
redis.call('HSET', KEYS[1], 'total', total, 'reserved', reserved)
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return {1, total, reserved}
`)

func ttlMillis(ttl time.Duration) int64 {
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl.Milliseconds()
}

// scriptResult unpacks the {flag, total, reserved} triple every script returns.
func scriptResult(raw interface{}) (flag bool, total, reserved int, err error) {
	vals, ok := raw.([]interface{})
	if !ok || len(vals) != 3 {
		return false, 0, 0, fmt.Errorf("unexpected script result %v", raw)
	}
	nums := make([]int64, 3)
	for i, v := range vals {
		n, ok := v.(int64)
		if !ok {
			return false, 0, 0, fmt.Errorf("unexpected script value %v", v)
		}
		nums[i] = n
	}
	return nums[0] == 1, int(nums[1]), int(nums[2]), nil
}

func (r *redisCapacityRepo) Reserve(ctx context.Context, slot models.Slot, party int, ttl time.Duration) (models.CapacityEntry, error) {
	raw, err := reserveScript.Run(ctx, r.client, []string{capacityKey(slot)}, party, r.defaultTotal, ttlMillis(ttl)).Result()
	if err != nil {
		return models.CapacityEntry{}, fmt.Errorf("reserve %s: %w", slot.Key(), err)
	}
	ok, total, reserved, err := scriptResult(raw)
	if err != nil {
		return models.CapacityEntry{}, err
	}
	entry := models.CapacityEntry{Slot: slot, TotalCapacity: total, ReservedCount: reserved}
	if !ok {
		return entry, ErrCapacityExceeded
	}
	return entry, nil
}

func (r *redisCapacityRepo) Release(ctx context.Context, slot models.Slot, party int, ttl time.Duration) (models.CapacityEntry, bool, error) {
	raw, err := releaseScript.Run(ctx, r.client, []string{capacityKey(slot)}, party, r.defaultTotal, ttlMillis(ttl)).Result()
	if err != nil {
		return models.CapacityEntry{}, false, fmt.Errorf("release %s: %w", slot.Key(), err)
	}
	floored, total, reserved, err := scriptResult(raw)
	if err != nil {
		return models.CapacityEntry{}, false, err
	}
	return models.CapacityEntry{Slot: slot, TotalCapacity: total, ReservedCount: reserved}, floored, nil
}

func (r *redisCapacityRepo) SetTotal(ctx context.Context, slot models.Slot, total int, ttl time.Duration) (models.CapacityEntry, error) {
	raw, err := setTotalScript.Run(ctx, r.client, []string{capacityKey(slot)}, total, r.defaultTotal, ttlMillis(ttl)).Result()
	if err != nil {
		return models.CapacityEntry{}, fmt.Errorf("set capacity %s: %w", slot.Key(), err)
	}
	ok, current, reserved, err := scriptResult(raw)
	if err != nil {
		return models.CapacityEntry{}, err
	}
	entry := models.CapacityEntry{Slot: slot, TotalCapacity: current, ReservedCount: reserved}
	if !ok {
		return entry, ErrBelowReserved
	}
	return entry, nil
}

func (r *redisCapacityRepo) Get(ctx context.Context, slots []models.Slot) ([]models.CapacityEntry, error) {
	if len(slots) == 0 {
		return nil, nil
	}
	pipe := r.client.Pipeline()
	cmds := make([]*redis.SliceCmd, len(slots))
	for i, slot := range slots {
		cmds[i] = pipe.HMGet(ctx, capacityKey(slot), "total", "reserved")
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("read capacity: %w", err)
	}

	entries := make([]models.CapacityEntry, len(slots))
	for i, slot := range slots {
		vals, err := cmds[i].Result()
		if err != nil {
			return nil, fmt.Errorf("read capacity %s: %w", slot.Key(), err)
		}
		entry := models.CapacityEntry{Slot: slot, TotalCapacity: r.defaultTotal}
		if n, ok := parseField(vals[0]); ok {
			entry.TotalCapacity = n
		}
		if n, ok := parseField(vals[1]); ok {
			entry.ReservedCount = n
		}
		entries[i] = entry
	}
	return entries, nil
}

func parseField(v interface{}) (int, bool) {
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
