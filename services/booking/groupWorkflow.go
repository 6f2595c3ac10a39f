package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"tablebook/database/repository"
	bookingRepo "tablebook/database/repository/booking"
	groupRepo "tablebook/database/repository/group"
	"tablebook/models"
	"tablebook/services/events"
	"tablebook/utils"

	"go.uber.org/zap"
)

const staleRejectionReason = "candidate dates elapsed"

// groupPeriodAliases maps the time-of-day names used by the group form onto service periods.
var groupPeriodAliases = map[string]models.Period{
	"lunch":     models.PeriodLunch,
	"afternoon": models.PeriodLunch,
	"dinner":    models.PeriodDinner,
	"evening":   models.PeriodDinner,
}

func ParseGroupPeriod(raw string) (models.Period, bool) {
	p, ok := groupPeriodAliases[strings.ToLower(strings.TrimSpace(raw))]
	return p, ok
}

// DefaultGroupWorkflow implements GroupWorkflow. Submitting never touches the
// ledger; Resolve reserves through the same CapacityLedger as individual bookings.
type DefaultGroupWorkflow struct {
	Ledger    *CapacityLedger
	Requests  groupRepo.GroupRequestRepository
	Bookings  bookingRepo.BookingRepository
	Publisher events.Publisher
	Clock     utils.Clock
	IDs       utils.IDGenerator
	Logger    *zap.Logger
	Threshold int
}

func groupInvalid(field, format string, args ...interface{}) error {
	return invalid(ErrInvalidGroupRequest, field, format, args...)
}

func (w *DefaultGroupWorkflow) validateDates(raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, groupInvalid("candidateDates", "at least one candidate date is required")
	}
	seen := make(map[string]struct{}, len(raw))
	dates := make([]string, 0, len(raw))
	for i, d := range raw {
		d = strings.TrimSpace(d)
		field := fmt.Sprintf("candidateDates[%d]", i)
		if _, err := w.Ledger.Slots.ParseDate(d); err != nil {
			return nil, groupInvalid(field, "%q is not a valid upcoming date", d)
		}
		if err := w.Ledger.checkHorizon(d); err != nil {
			return nil, groupInvalid(field, "%s is beyond the booking horizon", d)
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates, nil
}

func validEventType(eventType string) bool {
	for _, t := range models.EventTypes {
		if t == eventType {
			return true
		}
	}
	return false
}

func (w *DefaultGroupWorkflow) SubmitGroupRequest(ctx context.Context, in SubmitGroupInput) (*models.GroupBookingRequest, error) {
	if strings.TrimSpace(in.OrganizerName) == "" {
		return nil, groupInvalid("organizerName", "organizer name is required")
	}
	if err := validateContact(in.OrganizerName, in.OrganizerEmail, ""); err != nil {
		return nil, groupInvalid("organizerEmail", "a valid organizer email is required")
	}
	if in.PartySize < w.Threshold {
		return nil, groupInvalid("partySize", "group requests need at least %d guests, got %d", w.Threshold, in.PartySize)
	}
	period, ok := ParseGroupPeriod(in.Period)
	if !ok {
		return nil, groupInvalid("period", "preferred period must be lunch or dinner, got %q", in.Period)
	}
	eventType := strings.ToLower(strings.TrimSpace(in.EventType))
	if eventType != "" && !validEventType(eventType) {
		return nil, groupInvalid("eventType", "unknown event type %q", in.EventType)
	}
	dates, err := w.validateDates(in.CandidateDates)
	if err != nil {
		return nil, err
	}

	now := w.Clock.Now()
	req := &models.GroupBookingRequest{
		ID: w.IDs.NewID(),
		Organizer: models.Contact{
			Name:  strings.TrimSpace(in.OrganizerName),
			Email: strings.TrimSpace(in.OrganizerEmail),
			Phone: strings.TrimSpace(in.OrganizerPhone),
		},
		EventType:           eventType,
		CandidateDates:      dates,
		PreferredPeriod:     period,
		PartySize:           in.PartySize,
		DietaryRequirements: strings.TrimSpace(in.DietaryRequirements),
		SpecialRequests:     strings.TrimSpace(in.SpecialRequests),
		State:               models.GroupPendingReview,
		LastCandidateDate:   dates[len(dates)-1],
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := w.Requests.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("store group request: %w", err)
	}

	events.Emit(ctx, w.Publisher, w.Logger, events.GroupEvent(events.TopicGroupSubmitted, req, now))
	w.Logger.Info("Group request submitted",
		zap.String("requestID", req.ID),
		zap.Int("guests", req.PartySize),
		zap.Strings("dates", req.CandidateDates),
	)
	return req, nil
}

func (w *DefaultGroupWorkflow) GetGroupRequest(ctx context.Context, id string) (*models.GroupBookingRequest, error) {
	req, err := w.Requests.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrGroupRequestNotFound
	}
	return req, err
}

func (w *DefaultGroupWorkflow) ListGroupRequests(ctx context.Context, state models.GroupRequestState) ([]models.GroupBookingRequest, error) {
	return w.Requests.List(ctx, state)
}

func terminalError(req *models.GroupBookingRequest) error {
	return &BookingError{
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("group request is already %s", req.State),
	}
}

// Resolve turns a pending request into a confirmed group booking at one of its
// candidate dates. Seats are reserved first; if the request cannot be marked
// resolved afterwards the booking is cancelled and the seats released.
func (w *DefaultGroupWorkflow) Resolve(ctx context.Context, id, date, startTime string) (*models.Booking, error) {
	req, err := w.GetGroupRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Terminal() {
		return nil, terminalError(req)
	}
	if !req.HasCandidate(date) {
		return nil, invalid(ErrInvalidInput, "date", "%s is not one of the candidate dates", date)
	}
	slot, err := w.Ledger.Slots.ResolveSlot(date, startTime)
	if err != nil {
		return nil, err
	}
	if slot.Period != req.PreferredPeriod {
		return nil, invalid(ErrInvalidSlot, "time", "%s is not a %s slot", slot.StartTime, req.PreferredPeriod)
	}

	if _, err := w.Ledger.Reserve(ctx, slot, req.PartySize); err != nil {
		var be *BookingError
		if errors.As(err, &be) && be.Code == CodeSlotFull {
			return nil, &BookingError{Code: CodeUnavailable, Field: "time", Message: be.Message, Err: err}
		}
		return nil, err
	}

	now := w.Clock.Now()
	booking := &models.Booking{
		ID:              w.IDs.NewID(),
		Kind:            models.BookingGroup,
		Slot:            &slot,
		PartySize:       req.PartySize,
		Contact:         req.Organizer,
		SpecialRequests: strings.TrimSpace(strings.Join([]string{req.DietaryRequirements, req.SpecialRequests}, "\n")),
		State:           models.BookingPending,
		GroupRequestID:  req.ID,
		Source:          models.SourceStaff,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := booking.Confirm(now); err != nil {
		return nil, err
	}
	if err := w.Bookings.Create(ctx, booking); err != nil {
		w.release(ctx, slot, req.PartySize)
		return nil, fmt.Errorf("persist group booking: %w", err)
	}

	resolved, err := w.Requests.MarkResolved(ctx, req.ID, booking.ID, slot, now)
	if err != nil {
		// Someone else settled the request first.
		if _, cancelErr := w.Bookings.Transition(ctx, booking.ID, models.BookingConfirmed, models.BookingCancelled, now); cancelErr != nil {
			w.Logger.Error("Failed to cancel orphaned group booking", zap.String("bookingID", booking.ID), zap.Error(cancelErr))
		}
		w.release(ctx, slot, req.PartySize)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrGroupRequestNotFound
		case errors.Is(err, repository.ErrStateConflict):
			return nil, &BookingError{Code: CodeInvalidTransition, Message: "group request was settled concurrently"}
		}
		return nil, err
	}

	events.Emit(ctx, w.Publisher, w.Logger, events.BookingEvent(events.TopicBookingConfirmed, booking, now))
	events.Emit(ctx, w.Publisher, w.Logger, events.GroupEvent(events.TopicGroupResolved, resolved, now))
	w.Logger.Info("Group request resolved",
		zap.String("requestID", req.ID),
		zap.String("bookingID", booking.ID),
		zap.String("slot", slot.Key()),
	)
	return booking, nil
}

func (w *DefaultGroupWorkflow) release(ctx context.Context, slot models.Slot, party int) {
	if _, err := w.Ledger.Release(ctx, slot, party); err != nil {
		w.Logger.Error("Compensating release failed", zap.String("slot", slot.Key()), zap.Error(err))
	}
}

func (w *DefaultGroupWorkflow) Reject(ctx context.Context, id, reason string) (*models.GroupBookingRequest, error) {
	rejected, err := w.Requests.MarkRejected(ctx, id, strings.TrimSpace(reason), w.Clock.Now())
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, ErrGroupRequestNotFound
	case errors.Is(err, repository.ErrStateConflict):
		current, getErr := w.GetGroupRequest(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, terminalError(current)
	case err != nil:
		return nil, err
	}

	events.Emit(ctx, w.Publisher, w.Logger, events.GroupEvent(events.TopicGroupRejected, rejected, w.Clock.Now()))
	w.Logger.Info("Group request rejected", zap.String("requestID", id), zap.String("reason", rejected.RejectionReason))
	return rejected, nil
}

// ExpireStale rejects pending requests whose candidate dates have all passed.
func (w *DefaultGroupWorkflow) ExpireStale(ctx context.Context) (int, error) {
	today := w.Ledger.Slots.Today().Format(dateLayout)
	stale, err := w.Requests.ListStale(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("list stale group requests: %w", err)
	}

	expired := 0
	for _, req := range stale {
		rejected, err := w.Requests.MarkRejected(ctx, req.ID, staleRejectionReason, w.Clock.Now())
		if errors.Is(err, repository.ErrStateConflict) {
			continue
		}
		if err != nil {
			return expired, fmt.Errorf("expire group request %s: %w", req.ID, err)
		}
		expired++
		events.Emit(ctx, w.Publisher, w.Logger, events.GroupEvent(events.TopicGroupRejected, rejected, w.Clock.Now()))
	}
	if expired > 0 {
		w.Logger.Info("Expired stale group requests", zap.Int("count", expired))
	}
	return expired, nil
}
