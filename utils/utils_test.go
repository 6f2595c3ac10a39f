package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"tablebook/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStaffTokenRoundTrip(t *testing.T) {
	config.AppConfig.JWTSecret = "test-secret"
	t.Cleanup(func() { config.AppConfig.JWTSecret = "" })

	token, err := GenerateStaffToken("host-1", time.Hour)
	require.NoError(t, err)

	sub, err := ValidateStaffToken(token)
	require.NoError(t, err)
	assert.Equal(t, "host-1", sub)
}

func TestStaffTokenRejectsOtherRoles(t *testing.T) {
	config.AppConfig.JWTSecret = "test-secret"
	t.Cleanup(func() { config.AppConfig.JWTSecret = "" })

	claims := jwt.MapClaims{"sub": "guest", "role": "guest", "exp": time.Now().Add(time.Hour).Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = ValidateStaffToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestStaffTokenRejectsExpired(t *testing.T) {
	config.AppConfig.JWTSecret = "test-secret"
	t.Cleanup(func() { config.AppConfig.JWTSecret = "" })

	token, err := GenerateStaffToken("host-1", -time.Minute)
	require.NoError(t, err)

	_, err = ValidateStaffToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestStaffTokenRequiresSecret(t *testing.T) {
	config.AppConfig.JWTSecret = ""

	_, err := GenerateStaffToken("host-1", time.Hour)
	assert.Error(t, err)
}

func TestRandomIDs(t *testing.T) {
	ids := RandomIDs{}

	a, b := ids.NewID(), ids.NewID()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)

	tok, err := ids.NewToken()
	require.NoError(t, err)
	assert.Len(t, tok, 43)
	other, err := ids.NewToken()
	require.NoError(t, err)
	assert.NotEqual(t, tok, other)
}

func TestHealthMonitor(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	monitor := NewHealthMonitor(&FixedClock{T: now}, zap.NewNop())
	monitor.Register("redis", RedisHealthCheck(client))
	monitor.Register("nats", func(context.Context) error { return nil })

	status := monitor.Check(context.Background())
	assert.True(t, status.Healthy)
	assert.Equal(t, map[string]bool{"redis": true, "nats": true}, status.Components)
	assert.Equal(t, now, status.CheckedAt)

	mr.Close()
	monitor.Register("nats", func(context.Context) error { return errors.New("down") })
	status = monitor.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.False(t, status.Components["redis"])
	assert.False(t, status.Components["nats"])
	assert.Equal(t, status, monitor.Status())
}
