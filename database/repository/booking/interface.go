package bookingRepo

import (
	"context"
	"time"

	"tablebook/models"
)

//go:generate mockgen -package=mocks -destination=mocks/mock_repository.go tablebook/database/repository/booking BookingRepository
type BookingRepository interface {
	Create(ctx context.Context, booking *models.Booking) error
	GetByID(ctx context.Context, id string) (*models.Booking, error)
	// Transition moves a booking from one state to another only if it is
	// still in from. It returns the updated booking.
	Transition(ctx context.Context, id string, from, to models.BookingState, at time.Time) (*models.Booking, error)
	ListByDate(ctx context.Context, date string) ([]models.Booking, error)
	EnsureIndexes(ctx context.Context) error
}
