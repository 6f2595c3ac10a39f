package groupRepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"tablebook/database/repository"
	"tablebook/models"
)

type memoryGroupRepo struct {
	mu       sync.RWMutex
	requests map[string]models.GroupBookingRequest
}

func NewMemoryGroupRepo() GroupRequestRepository {
	return &memoryGroupRepo{requests: make(map[string]models.GroupBookingRequest)}
}

func (r *memoryGroupRepo) EnsureIndexes(context.Context) error { return nil }

func cloneRequest(req models.GroupBookingRequest) models.GroupBookingRequest {
	req.CandidateDates = append([]string(nil), req.CandidateDates...)
	if req.ChosenSlot != nil {
		slot := *req.ChosenSlot
		req.ChosenSlot = &slot
	}
	return req
}

func (r *memoryGroupRepo) Create(_ context.Context, req *models.GroupBookingRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.requests[req.ID]; exists {
		return repository.ErrDuplicate
	}
	r.requests[req.ID] = cloneRequest(*req)
	return nil
}

func (r *memoryGroupRepo) GetByID(_ context.Context, id string) (*models.GroupBookingRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	req, ok := r.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := cloneRequest(req)
	return &out, nil
}

func (r *memoryGroupRepo) filter(keep func(models.GroupBookingRequest) bool) []models.GroupBookingRequest {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []models.GroupBookingRequest{}
	for _, req := range r.requests {
		if keep(req) {
			out = append(out, cloneRequest(req))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *memoryGroupRepo) List(_ context.Context, state models.GroupRequestState) ([]models.GroupBookingRequest, error) {
	return r.filter(func(req models.GroupBookingRequest) bool {
		return state == "" || req.State == state
	}), nil
}

func (r *memoryGroupRepo) ListStale(_ context.Context, date string) ([]models.GroupBookingRequest, error) {
	return r.filter(func(req models.GroupBookingRequest) bool {
		return req.State == models.GroupPendingReview && req.LastCandidateDate < date
	}), nil
}

func (r *memoryGroupRepo) transition(id string, apply func(*models.GroupBookingRequest)) (*models.GroupBookingRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if req.State != models.GroupPendingReview {
		return nil, repository.ErrStateConflict
	}
	apply(&req)
	r.requests[id] = req
	out := cloneRequest(req)
	return &out, nil
}

func (r *memoryGroupRepo) MarkResolved(_ context.Context, id, bookingID string, slot models.Slot, at time.Time) (*models.GroupBookingRequest, error) {
	return r.transition(id, func(req *models.GroupBookingRequest) {
		req.State = models.GroupResolved
		req.BookingID = bookingID
		req.ChosenSlot = &slot
		req.UpdatedAt = at
	})
}

func (r *memoryGroupRepo) MarkRejected(_ context.Context, id, reason string, at time.Time) (*models.GroupBookingRequest, error) {
	return r.transition(id, func(req *models.GroupBookingRequest) {
		req.State = models.GroupRejected
		req.RejectionReason = reason
		req.UpdatedAt = at
	})
}
