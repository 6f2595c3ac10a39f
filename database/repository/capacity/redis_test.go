package capacityRepo

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"tablebook/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/suite"
)

type RedisCapacityRepoTestSuite struct {
	suite.Suite
	mr     *miniredis.Miniredis
	client *redis.Client
	repo   CapacityRepository
	ctx    context.Context
	slot   models.Slot
}

func (s *RedisCapacityRepoTestSuite) SetupTest() {
	mr, err := miniredis.Run()
	s.Require().NoError(err)
	s.mr = mr

	s.client = redis.NewClient(&redis.Options{
		Addr: s.mr.Addr(),
	})
	s.repo = NewRedisCapacityRepo(s.client, 20)
	s.ctx = context.Background()
	s.slot = models.Slot{Date: "2025-07-01", StartTime: "19:00", Period: models.PeriodDinner}
}

func (s *RedisCapacityRepoTestSuite) TearDownTest() {
	s.client.Close()
	s.mr.Close()
}

func TestRedisCapacityRepoTestSuite(t *testing.T) {
	suite.Run(t, new(RedisCapacityRepoTestSuite))
}

func (s *RedisCapacityRepoTestSuite) TestGetDefaultsUnwrittenSlots() {
	other := models.Slot{Date: "2025-07-01", StartTime: "19:30", Period: models.PeriodDinner}
	_, err := s.repo.Reserve(s.ctx, other, 4, time.Hour)
	s.Require().NoError(err)

	entries, err := s.repo.Get(s.ctx, []models.Slot{s.slot, other})
	s.Require().NoError(err)
	s.Require().Len(entries, 2)

	s.Equal(20, entries[0].TotalCapacity)
	s.Equal(0, entries[0].ReservedCount)
	s.Equal(20, entries[1].TotalCapacity)
	s.Equal(4, entries[1].ReservedCount)
	s.Equal(16, entries[1].Remaining())
}

func (s *RedisCapacityRepoTestSuite) TestReserveUntilFull() {
	entry, err := s.repo.Reserve(s.ctx, s.slot, 12, time.Hour)
	s.Require().NoError(err)
	s.Equal(12, entry.ReservedCount)

	entry, err = s.repo.Reserve(s.ctx, s.slot, 8, time.Hour)
	s.Require().NoError(err)
	s.Equal(20, entry.ReservedCount)
	s.Equal(0, entry.Remaining())

	entry, err = s.repo.Reserve(s.ctx, s.slot, 1, time.Hour)
	s.ErrorIs(err, ErrCapacityExceeded)
	s.Equal(20, entry.ReservedCount)

	s.Equal("20", s.mr.HGet(capacityKey(s.slot), "reserved"))
}

func (s *RedisCapacityRepoTestSuite) TestReserveRejectionLeavesEntryUnchanged() {
	_, err := s.repo.Reserve(s.ctx, s.slot, 15, time.Hour)
	s.Require().NoError(err)

	_, err = s.repo.Reserve(s.ctx, s.slot, 6, time.Hour)
	s.ErrorIs(err, ErrCapacityExceeded)

	entries, err := s.repo.Get(s.ctx, []models.Slot{s.slot})
	s.Require().NoError(err)
	s.Equal(15, entries[0].ReservedCount)
}

func (s *RedisCapacityRepoTestSuite) TestReleaseRestoresSeats() {
	_, err := s.repo.Reserve(s.ctx, s.slot, 6, time.Hour)
	s.Require().NoError(err)

	entry, floored, err := s.repo.Release(s.ctx, s.slot, 6, time.Hour)
	s.Require().NoError(err)
	s.False(floored)
	s.Equal(0, entry.ReservedCount)
	s.Equal(20, entry.TotalCapacity)
}

func (s *RedisCapacityRepoTestSuite) TestReleaseFloorsAtZero() {
	_, err := s.repo.Reserve(s.ctx, s.slot, 2, time.Hour)
	s.Require().NoError(err)

	entry, floored, err := s.repo.Release(s.ctx, s.slot, 5, time.Hour)
	s.Require().NoError(err)
	s.True(floored)
	s.Equal(0, entry.ReservedCount)
}

func (s *RedisCapacityRepoTestSuite) TestSetTotal() {
	_, err := s.repo.Reserve(s.ctx, s.slot, 10, time.Hour)
	s.Require().NoError(err)

	entry, err := s.repo.SetTotal(s.ctx, s.slot, 8, time.Hour)
	s.ErrorIs(err, ErrBelowReserved)
	s.Equal(20, entry.TotalCapacity)

	entry, err = s.repo.SetTotal(s.ctx, s.slot, 12, time.Hour)
	s.Require().NoError(err)
	s.Equal(12, entry.TotalCapacity)
	s.Equal(10, entry.ReservedCount)

	_, err = s.repo.Reserve(s.ctx, s.slot, 3, time.Hour)
	s.ErrorIs(err, ErrCapacityExceeded)
}

func (s *RedisCapacityRepoTestSuite) TestEntriesExpire() {
	_, err := s.repo.Reserve(s.ctx, s.slot, 2, 36*time.Hour)
	s.Require().NoError(err)
	s.Equal(36*time.Hour, s.mr.TTL(capacityKey(s.slot)))

	s.mr.FastForward(37 * time.Hour)
	s.False(s.mr.Exists(capacityKey(s.slot)))
}

func (s *RedisCapacityRepoTestSuite) TestConcurrentReservationsNeverExceedTotal() {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 40; i++ {
		party := rand.Intn(4) + 1
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.repo.Reserve(s.ctx, s.slot, party, time.Hour); err == nil {
				mu.Lock()
				accepted += party
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	entries, err := s.repo.Get(s.ctx, []models.Slot{s.slot})
	s.Require().NoError(err)
	s.LessOrEqual(entries[0].ReservedCount, 20)
	s.Equal(accepted, entries[0].ReservedCount)
}
