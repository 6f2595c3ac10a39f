package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	capacityRepo "tablebook/database/repository/capacity"
	"tablebook/models"
	"tablebook/utils"
)

var testNow = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func testSlotConfig() SlotConfig {
	return SlotConfig{
		IntervalMinutes: 30,
		Lunch:           PeriodWindow{Open: "12:00", Close: "14:30"},
		Dinner:          PeriodWindow{Open: "18:00", Close: "21:30"},
		Location:        time.UTC,
	}
}

func mustSlotGenerator(clock utils.Clock) *SlotGenerator {
	g, err := NewSlotGenerator(testSlotConfig(), clock)
	if err != nil {
		panic(err)
	}
	return g
}

// seqIDs hands out predictable ids.
type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (s *seqIDs) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("id-%03d", s.n)
}

func (s *seqIDs) NewToken() (string, error) {
	return s.NewID(), nil
}

// flakyCapacity fails the next Release when failRelease is set.
type flakyCapacity struct {
	capacityRepo.CapacityRepository
	failRelease bool
}

func (f *flakyCapacity) Release(ctx context.Context, slot models.Slot, party int, ttl time.Duration) (models.CapacityEntry, bool, error) {
	if f.failRelease {
		f.failRelease = false
		return models.CapacityEntry{}, false, errors.New("redis: connection reset")
	}
	return f.CapacityRepository.Release(ctx, slot, party, ttl)
}
