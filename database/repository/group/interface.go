package groupRepo

import (
	"context"
	"time"

	"tablebook/models"
)

type GroupRequestRepository interface {
	Create(ctx context.Context, req *models.GroupBookingRequest) error
	GetByID(ctx context.Context, id string) (*models.GroupBookingRequest, error)
	// List returns requests oldest first. An empty state lists everything.
	List(ctx context.Context, state models.GroupRequestState) ([]models.GroupBookingRequest, error)
	// ListStale returns pending requests whose last candidate date is before date.
	ListStale(ctx context.Context, date string) ([]models.GroupBookingRequest, error)
	// MarkResolved and MarkRejected only apply to pending_review requests.
	MarkResolved(ctx context.Context, id, bookingID string, slot models.Slot, at time.Time) (*models.GroupBookingRequest, error)
	MarkRejected(ctx context.Context, id, reason string, at time.Time) (*models.GroupBookingRequest, error)
	EnsureIndexes(ctx context.Context) error
}
