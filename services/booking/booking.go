package booking

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"tablebook/database/repository"
	bookingRepo "tablebook/database/repository/booking"
	idempotencyRepo "tablebook/database/repository/idempotency"
	"tablebook/models"
	"tablebook/services/events"
	"tablebook/utils"

	"go.uber.org/zap"
)

// DefaultBookingService implements BookingService.
type DefaultBookingService struct {
	Ledger       *CapacityLedger
	Repo         bookingRepo.BookingRepository
	Idempotency  idempotencyRepo.Store // optional
	Sessions     SessionSelections     // optional
	Publisher    events.Publisher
	Clock        utils.Clock
	IDs          utils.IDGenerator
	Logger       *zap.Logger
	MaxPartySize int
}

func validateContact(name, email string, fieldPrefix string) error {
	if strings.TrimSpace(name) == "" {
		return invalid(ErrInvalidInput, fieldPrefix+"name", "name is required")
	}
	if strings.TrimSpace(email) == "" {
		return invalid(ErrInvalidInput, fieldPrefix+"email", "email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return invalid(ErrInvalidInput, fieldPrefix+"email", "email %q is not valid", email)
	}
	return nil
}

// fillFromSession completes date, time and party size from the chat selection.
func (s *DefaultBookingService) fillFromSession(ctx context.Context, in *CreateBookingInput) error {
	if in.SessionID == "" || s.Sessions == nil {
		return nil
	}
	if in.Date != "" && in.Time != "" && in.PartySize > 0 {
		return nil
	}
	sel, err := s.Sessions.GetSelection(ctx, in.SessionID)
	if err != nil {
		return fmt.Errorf("load session selection: %w", err)
	}
	if sel.Empty() {
		return nil
	}
	if in.Date == "" {
		in.Date = sel.Date
	}
	if in.Time == "" {
		in.Time = sel.Time
	}
	if in.PartySize == 0 {
		in.PartySize = sel.PartySize
	}
	if in.Source == "" {
		in.Source = models.SourceChat
	}
	return nil
}

func fingerprint(in CreateBookingInput, slot models.Slot) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d|%s|%s", slot.Date, slot.StartTime, in.PartySize,
		strings.ToLower(strings.TrimSpace(in.Email)), strings.TrimSpace(in.Name))
	return hex.EncodeToString(h.Sum(nil))
}

// CreateBooking reserves seats and records a confirmed booking. Nothing is
// created when the slot cannot hold the party.
func (s *DefaultBookingService) CreateBooking(ctx context.Context, in CreateBookingInput) (*models.Booking, error) {
	if err := s.fillFromSession(ctx, &in); err != nil {
		return nil, err
	}
	if err := validateContact(in.Name, in.Email, ""); err != nil {
		return nil, err
	}
	if in.PartySize < 1 {
		return nil, invalid(ErrInvalidInput, "guests", "guests must be at least 1")
	}
	if in.Date == "" {
		return nil, invalid(ErrInvalidDate, "date", "date is required")
	}
	if in.Time == "" {
		return nil, invalid(ErrInvalidSlot, "time", "time is required")
	}
	slot, err := s.Ledger.Slots.ResolveSlot(in.Date, in.Time)
	if err != nil {
		return nil, err
	}
	if err := s.Ledger.checkHorizon(slot.Date); err != nil {
		return nil, err
	}
	if in.PartySize > s.MaxPartySize {
		return nil, &BookingError{
			Code:    CodeRequiresGroupWorkflow,
			Field:   "guests",
			Message: fmt.Sprintf("parties above %d guests go through a group request", s.MaxPartySize),
		}
	}

	claimed := false
	if in.IdempotencyKey != "" && s.Idempotency != nil {
		fp := fingerprint(in, slot)
		existingID, ok, err := s.Idempotency.Claim(ctx, in.IdempotencyKey, fp)
		switch {
		case errors.Is(err, idempotencyRepo.ErrInFlight), errors.Is(err, idempotencyRepo.ErrKeyReused):
			return nil, &BookingError{Code: CodeDuplicateRequest, Field: "requestId", Message: err.Error(), Err: err}
		case err != nil:
			return nil, err
		case !ok:
			s.Logger.Info("Replayed booking request", zap.String("requestId", in.IdempotencyKey), zap.String("bookingID", existingID))
			return s.GetBooking(ctx, existingID)
		}
		claimed = true
	}

	booking, err := s.reserveAndPersist(ctx, in, slot)
	if err != nil {
		if claimed {
			if abandonErr := s.Idempotency.Abandon(ctx, in.IdempotencyKey); abandonErr != nil {
				s.Logger.Warn("Failed to drop idempotency claim", zap.String("requestId", in.IdempotencyKey), zap.Error(abandonErr))
			}
		}
		return nil, err
	}
	if claimed {
		if err := s.Idempotency.Complete(ctx, in.IdempotencyKey, fingerprint(in, slot), booking.ID); err != nil {
			s.Logger.Warn("Failed to record idempotency result", zap.String("requestId", in.IdempotencyKey), zap.Error(err))
		}
	}

	events.Emit(ctx, s.Publisher, s.Logger, events.BookingEvent(events.TopicBookingConfirmed, booking, s.Clock.Now()))
	s.Logger.Info("Booking confirmed",
		zap.String("bookingID", booking.ID),
		zap.String("slot", slot.Key()),
		zap.Int("guests", booking.PartySize),
	)
	return booking, nil
}

func (s *DefaultBookingService) reserveAndPersist(ctx context.Context, in CreateBookingInput, slot models.Slot) (*models.Booking, error) {
	if _, err := s.Ledger.Reserve(ctx, slot, in.PartySize); err != nil {
		var be *BookingError
		if errors.As(err, &be) && be.Code == CodeSlotFull {
			return nil, &BookingError{Code: CodeUnavailable, Field: "time", Message: be.Message, Err: err}
		}
		return nil, err
	}

	now := s.Clock.Now()
	source := in.Source
	if source == "" {
		source = models.SourceWeb
	}
	booking := &models.Booking{
		ID:              s.IDs.NewID(),
		Kind:            models.BookingIndividual,
		Slot:            &slot,
		PartySize:       in.PartySize,
		Contact:         models.Contact{Name: strings.TrimSpace(in.Name), Email: strings.TrimSpace(in.Email), Phone: strings.TrimSpace(in.Phone)},
		SpecialRequests: strings.TrimSpace(in.SpecialRequests),
		State:           models.BookingPending,
		SessionID:       in.SessionID,
		Source:          source,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := booking.Confirm(now); err != nil {
		return nil, err
	}
	if err := s.Repo.Create(ctx, booking); err != nil {
		s.compensate(ctx, slot, in.PartySize, err)
		return nil, fmt.Errorf("persist booking: %w", err)
	}
	return booking, nil
}

// compensate gives back seats reserved for a booking that was never stored.
func (s *DefaultBookingService) compensate(ctx context.Context, slot models.Slot, party int, cause error) {
	s.Logger.Error("Booking not stored, releasing seats", zap.String("slot", slot.Key()), zap.Error(cause))
	if _, err := s.Ledger.Release(ctx, slot, party); err != nil {
		s.Logger.Error("Compensating release failed", zap.String("slot", slot.Key()), zap.Error(err))
	}
}

func (s *DefaultBookingService) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	b, err := s.Repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrBookingNotFound
	}
	return b, err
}

// CancelBooking moves a confirmed booking to cancelled and frees its seats.
// If the seats cannot be freed the booking is put back to confirmed so the
// caller can retry. Bookings for past dates are cancelled without touching
// the ledger.
func (s *DefaultBookingService) CancelBooking(ctx context.Context, id string) (*models.Booking, error) {
	current, err := s.Repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	now := s.Clock.Now()
	if err := current.Cancel(now); err != nil {
		return nil, &BookingError{Code: CodeInvalidTransition, Message: "only confirmed bookings can be cancelled", Err: err}
	}

	b, err := s.Repo.Transition(ctx, id, models.BookingConfirmed, models.BookingCancelled, now)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, ErrBookingNotFound
	case errors.Is(err, repository.ErrStateConflict):
		return nil, &BookingError{Code: CodeInvalidTransition, Message: "only confirmed bookings can be cancelled"}
	case err != nil:
		return nil, err
	}

	if s.Ledger.Lapsed(*b.Slot) {
		s.Logger.Debug("Cancelled past booking, ledger untouched", zap.String("bookingID", b.ID), zap.String("slot", b.Slot.Key()))
	} else if _, err := s.Ledger.Release(ctx, *b.Slot, b.PartySize); err != nil {
		s.Logger.Error("Release after cancel failed", zap.String("bookingID", b.ID), zap.Error(err))
		if errors.Is(err, ErrInvariantViolation) {
			return b, err
		}
		if _, rbErr := s.Repo.Transition(ctx, id, models.BookingCancelled, models.BookingConfirmed, now); rbErr != nil {
			s.Logger.Error("Failed to restore booking after release error", zap.String("bookingID", b.ID), zap.Error(rbErr))
			return b, errors.Join(err, rbErr)
		}
		return nil, fmt.Errorf("release seats for %s: %w", b.ID, err)
	}
	events.Emit(ctx, s.Publisher, s.Logger, events.BookingEvent(events.TopicBookingCancelled, b, s.Clock.Now()))
	s.Logger.Info("Booking cancelled", zap.String("bookingID", b.ID), zap.String("slot", b.Slot.Key()))
	return b, nil
}

// ListBookings returns the bookings of a day for staff, including past days.
func (s *DefaultBookingService) ListBookings(ctx context.Context, date string) ([]models.Booking, error) {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return nil, invalid(ErrInvalidDate, "date", "date must be YYYY-MM-DD, got %q", date)
	}
	return s.Repo.ListByDate(ctx, date)
}
