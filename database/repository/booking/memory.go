package bookingRepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"tablebook/database/repository"
	"tablebook/models"
)

type memoryBookingRepo struct {
	mu       sync.RWMutex
	bookings map[string]models.Booking
}

// NewMemoryBookingRepo keeps bookings in process memory. Used for local runs and tests.
func NewMemoryBookingRepo() BookingRepository {
	return &memoryBookingRepo{bookings: make(map[string]models.Booking)}
}

func (r *memoryBookingRepo) EnsureIndexes(context.Context) error { return nil }

func cloneBooking(b models.Booking) models.Booking {
	if b.Slot != nil {
		slot := *b.Slot
		b.Slot = &slot
	}
	if b.CancelledAt != nil {
		at := *b.CancelledAt
		b.CancelledAt = &at
	}
	return b
}

func (r *memoryBookingRepo) Create(_ context.Context, booking *models.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bookings[booking.ID]; exists {
		return repository.ErrDuplicate
	}
	r.bookings[booking.ID] = cloneBooking(*booking)
	return nil
}

func (r *memoryBookingRepo) GetByID(_ context.Context, id string) (*models.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := cloneBooking(b)
	return &out, nil
}

func (r *memoryBookingRepo) Transition(_ context.Context, id string, from, to models.BookingState, at time.Time) (*models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if b.State != from {
		return nil, repository.ErrStateConflict
	}
	b.State = to
	b.UpdatedAt = at
	if to == models.BookingCancelled {
		b.CancelledAt = &at
	} else {
		b.CancelledAt = nil
	}
	r.bookings[id] = b
	out := cloneBooking(b)
	return &out, nil
}

func (r *memoryBookingRepo) ListByDate(_ context.Context, date string) ([]models.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []models.Booking{}
	for _, b := range r.bookings {
		if b.Slot != nil && b.Slot.Date == date {
			out = append(out, cloneBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Slot.StartTime != out[j].Slot.StartTime {
			return out[i].Slot.StartTime < out[j].Slot.StartTime
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
