package booking

import (
	"context"

	"tablebook/models"
)

// BookingService creates and tracks individual bookings.
type BookingService interface {
	CreateBooking(ctx context.Context, in CreateBookingInput) (*models.Booking, error)
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	CancelBooking(ctx context.Context, id string) (*models.Booking, error)
	ListBookings(ctx context.Context, date string) ([]models.Booking, error)
}

// GroupWorkflow records large-party requests and lets staff settle them.
type GroupWorkflow interface {
	SubmitGroupRequest(ctx context.Context, in SubmitGroupInput) (*models.GroupBookingRequest, error)
	GetGroupRequest(ctx context.Context, id string) (*models.GroupBookingRequest, error)
	ListGroupRequests(ctx context.Context, state models.GroupRequestState) ([]models.GroupBookingRequest, error)
	Resolve(ctx context.Context, id, date, startTime string) (*models.Booking, error)
	Reject(ctx context.Context, id, reason string) (*models.GroupBookingRequest, error)
	ExpireStale(ctx context.Context) (int, error)
}

// SessionSelections exposes the slot a chat session has narrowed down to.
type SessionSelections interface {
	GetSelection(ctx context.Context, sessionID string) (*models.SlotSelection, error)
}

type CreateBookingInput struct {
	Name            string
	Email           string
	Phone           string
	Date            string
	Time            string
	PartySize       int
	SpecialRequests string
	// SessionID links the booking to a chat session. Missing date, time or
	// party size are taken from that session's selection.
	SessionID string
	// IdempotencyKey makes retries of the same request return the same booking.
	IdempotencyKey string
	Source         models.BookingSource
}

type SubmitGroupInput struct {
	OrganizerName       string
	OrganizerEmail      string
	OrganizerPhone      string
	EventType           string
	PartySize           int
	CandidateDates      []string
	Period              string
	DietaryRequirements string
	SpecialRequests     string
}
