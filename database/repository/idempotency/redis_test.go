package idempotencyRepo

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/suite"
)

type RedisStoreTestSuite struct {
	suite.Suite
	mr     *miniredis.Miniredis
	client *redis.Client
	store  Store
	ctx    context.Context
}

func (s *RedisStoreTestSuite) SetupTest() {
	mr, err := miniredis.Run()
	s.Require().NoError(err)
	s.mr = mr
	s.client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s.store = NewRedisStore(s.client, 24*time.Hour)
	s.ctx = context.Background()
}

func (s *RedisStoreTestSuite) TearDownTest() {
	s.client.Close()
	s.mr.Close()
}

func TestRedisStoreTestSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreTestSuite))
}

func (s *RedisStoreTestSuite) TestClaimCompleteReplay() {
	id, claimed, err := s.store.Claim(s.ctx, "req-1", "fp")
	s.Require().NoError(err)
	s.True(claimed)
	s.Empty(id)

	_, _, err = s.store.Claim(s.ctx, "req-1", "fp")
	s.ErrorIs(err, ErrInFlight)

	s.Require().NoError(s.store.Complete(s.ctx, "req-1", "fp", "booking-1"))

	id, claimed, err = s.store.Claim(s.ctx, "req-1", "fp")
	s.Require().NoError(err)
	s.False(claimed)
	s.Equal("booking-1", id)
	s.Equal(24*time.Hour, s.mr.TTL(keyPrefix+"req-1"))
}

func (s *RedisStoreTestSuite) TestKeyReusedForDifferentRequest() {
	_, _, err := s.store.Claim(s.ctx, "req-1", "fp-a")
	s.Require().NoError(err)

	_, _, err = s.store.Claim(s.ctx, "req-1", "fp-b")
	s.ErrorIs(err, ErrKeyReused)
}

func (s *RedisStoreTestSuite) TestAbandonAllowsRetry() {
	_, _, err := s.store.Claim(s.ctx, "req-1", "fp")
	s.Require().NoError(err)
	s.Require().NoError(s.store.Abandon(s.ctx, "req-1"))

	_, claimed, err := s.store.Claim(s.ctx, "req-1", "fp")
	s.Require().NoError(err)
	s.True(claimed)
}

func (s *RedisStoreTestSuite) TestClaimExpires() {
	_, _, err := s.store.Claim(s.ctx, "req-1", "fp")
	s.Require().NoError(err)

	s.mr.FastForward(25 * time.Hour)

	_, claimed, err := s.store.Claim(s.ctx, "req-1", "fp")
	s.Require().NoError(err)
	s.True(claimed)
}
