package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"tablebook/models"
	"tablebook/utils"

	"github.com/go-redis/redis/v8"
)

const sessionPrefix = "chat:session:"

var ErrSessionNotFound = errors.New("chat session not found")

// appendScript pushes one message, trims the history to ARGV[2] entries and
// slides every session key forward. Returns -1 when the session is gone.
var appendScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
redis.call('RPUSH', KEYS[2], ARGV[1])
redis.call('LTRIM', KEYS[2], -tonumber(ARGV[2]), -1)
redis.call('HSET', KEYS[1], 'expiresAt', ARGV[4])
for i = 1, #KEYS do
	if redis.call('EXISTS', KEYS[i]) == 1 then
		redis.call('PEXPIRE', KEYS[i], ARGV[3])
	end
end
return redis.call('LLEN', KEYS[2])
`)

type SessionStore interface {
	GetOrCreate(ctx context.Context, id string) (*models.ChatSession, bool, error)
	AppendMessage(ctx context.Context, id string, role models.ChatRole, content string) error
	Clear(ctx context.Context, id string) error
	SetSelection(ctx context.Context, id string, sel models.SlotSelection) error
	GetSelection(ctx context.Context, id string) (*models.SlotSelection, error)
}

// RedisSessionStore keeps chat sessions under chat:session:{id} with a
// sliding idle expiry.
type RedisSessionStore struct {
	client       *redis.Client
	clock        utils.Clock
	ids          utils.IDGenerator
	idle         time.Duration
	historyLimit int
}

func NewRedisSessionStore(client *redis.Client, clock utils.Clock, ids utils.IDGenerator, idle time.Duration, historyLimit int) *RedisSessionStore {
	return &RedisSessionStore{client: client, clock: clock, ids: ids, idle: idle, historyLimit: historyLimit}
}

func metaKey(id string) string { return sessionPrefix + id }
func messagesKey(id string) string { return sessionPrefix + id + ":messages" }
func selectionKey(id string) string { return sessionPrefix + id + ":selection" }

func sessionKeys(id string) []string {
	return []string{metaKey(id), messagesKey(id), selectionKey(id)}
}

// GetOrCreate returns the live session for id, sliding its expiry. An empty,
// unknown or expired id yields a fresh session; created reports which.
func (s *RedisSessionStore) GetOrCreate(ctx context.Context, id string) (*models.ChatSession, bool, error) {
	now := s.clock.Now()
	if id != "" {
		session, err := s.load(ctx, id, now)
		if err != nil {
			return nil, false, err
		}
		if session != nil {
			return session, false, nil
		}
	}

	token, err := s.ids.NewToken()
	if err != nil {
		return nil, false, fmt.Errorf("session token: %w", err)
	}
	session := &models.ChatSession{
		ID:        token,
		Messages:  []models.ChatMessage{},
		CreatedAt: now,
		ExpiresAt: now.Add(s.idle),
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, metaKey(token),
		"createdAt", strconv.FormatInt(now.UnixMilli(), 10),
		"expiresAt", strconv.FormatInt(session.ExpiresAt.UnixMilli(), 10))
	pipe.PExpire(ctx, metaKey(token), s.idle)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, false, fmt.Errorf("create session: %w", err)
	}
	return session, true, nil
}

// load returns nil for a session that is absent or past its expiry.
func (s *RedisSessionStore) load(ctx context.Context, id string, now time.Time) (*models.ChatSession, error) {
	meta, err := s.client.HGetAll(ctx, metaKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if len(meta) == 0 {
		return nil, nil
	}
	expiresAt := parseMillis(meta["expiresAt"])
	if !now.Before(expiresAt) {
		s.client.Del(ctx, sessionKeys(id)...)
		return nil, nil
	}

	session := &models.ChatSession{
		ID:        id,
		CreatedAt: parseMillis(meta["createdAt"]),
		ExpiresAt: now.Add(s.idle),
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, metaKey(id), "expiresAt", strconv.FormatInt(session.ExpiresAt.UnixMilli(), 10))
	for _, key := range sessionKeys(id) {
		pipe.PExpire(ctx, key, s.idle)
	}
	rawMessages := pipe.LRange(ctx, messagesKey(id), 0, -1)
	rawSelection := pipe.Get(ctx, selectionKey(id))
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("refresh session: %w", err)
	}

	session.Messages = make([]models.ChatMessage, 0, len(rawMessages.Val()))
	for _, raw := range rawMessages.Val() {
		var msg models.ChatMessage
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		session.Messages = append(session.Messages, msg)
	}
	if raw := rawSelection.Val(); raw != "" {
		var sel models.SlotSelection
		if err := json.Unmarshal([]byte(raw), &sel); err != nil {
			return nil, fmt.Errorf("decode selection: %w", err)
		}
		session.Selection = &sel
	}
	return session, nil
}

func parseMillis(raw string) time.Time {
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func (s *RedisSessionStore) AppendMessage(ctx context.Context, id string, role models.ChatRole, content string) error {
	now := s.clock.Now()
	payload, err := json.Marshal(models.ChatMessage{Role: role, Content: content, Timestamp: now})
	if err != nil {
		return err
	}
	n, err := appendScript.Run(ctx, s.client, sessionKeys(id),
		string(payload), s.historyLimit, s.idle.Milliseconds(), now.Add(s.idle).UnixMilli()).Int()
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	if n < 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *RedisSessionStore) Clear(ctx context.Context, id string) error {
	return s.client.Del(ctx, sessionKeys(id)...).Err()
}

func (s *RedisSessionStore) SetSelection(ctx context.Context, id string, sel models.SlotSelection) error {
	exists, err := s.client.Exists(ctx, metaKey(id)).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return ErrSessionNotFound
	}
	b, err := json.Marshal(sel)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, selectionKey(id), b, s.idle).Err()
}

// GetSelection returns nil, nil when the session or its selection is gone.
func (s *RedisSessionStore) GetSelection(ctx context.Context, id string) (*models.SlotSelection, error) {
	if id == "" {
		return nil, nil
	}
	raw, err := s.client.Get(ctx, selectionKey(id)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sel models.SlotSelection
	if err := json.Unmarshal([]byte(raw), &sel); err != nil {
		return nil, err
	}
	return &sel, nil
}
