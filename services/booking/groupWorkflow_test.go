package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	bookingRepo "tablebook/database/repository/booking"
	capacityRepo "tablebook/database/repository/capacity"
	groupRepo "tablebook/database/repository/group"
	"tablebook/models"
	eventMocks "tablebook/services/events/mocks"
	"tablebook/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

type GroupWorkflowTestSuite struct {
	suite.Suite
	mr       *miniredis.Miniredis
	client   *redis.Client
	clock    *utils.FixedClock
	ledger   *CapacityLedger
	bookings *DefaultBookingService
	workflow *DefaultGroupWorkflow
	ctx      context.Context
}

func (s *GroupWorkflowTestSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	publisher := eventMocks.NewMockPublisher(ctrl)
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	mr, err := miniredis.Run()
	s.Require().NoError(err)
	s.mr = mr
	s.client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s.clock = &utils.FixedClock{T: testNow}

	s.ledger = NewCapacityLedger(mustSlotGenerator(s.clock), capacityRepo.NewRedisCapacityRepo(s.client, 50), 90, zap.NewNop())
	ids := &seqIDs{}
	bookingStore := bookingRepo.NewMemoryBookingRepo()
	s.bookings = &DefaultBookingService{
		Ledger:       s.ledger,
		Repo:         bookingStore,
		Publisher:    publisher,
		Clock:        s.clock,
		IDs:          ids,
		Logger:       zap.NewNop(),
		MaxPartySize: 8,
	}
	s.workflow = &DefaultGroupWorkflow{
		Ledger:    s.ledger,
		Requests:  groupRepo.NewMemoryGroupRepo(),
		Bookings:  bookingStore,
		Publisher: publisher,
		Clock:     s.clock,
		IDs:       ids,
		Logger:    zap.NewNop(),
		Threshold: 9,
	}
	s.ctx = context.Background()
}

func (s *GroupWorkflowTestSuite) TearDownTest() {
	s.client.Close()
	s.mr.Close()
}

func TestGroupWorkflowTestSuite(t *testing.T) {
	suite.Run(t, new(GroupWorkflowTestSuite))
}

func (s *GroupWorkflowTestSuite) submitInput() SubmitGroupInput {
	return SubmitGroupInput{
		OrganizerName:       "Grace Hopper",
		OrganizerEmail:      "grace@example.com",
		EventType:           "Birthday",
		PartySize:           15,
		CandidateDates:      []string{"2025-06-14", "2025-06-12", "2025-06-14"},
		Period:              "dinner",
		DietaryRequirements: "two vegan guests",
	}
}

func (s *GroupWorkflowTestSuite) seatsLeft(date, start string) int {
	_, left, err := s.ledger.CheckParty(s.ctx, date, start, 1)
	s.Require().NoError(err)
	return left
}

func (s *GroupWorkflowTestSuite) TestFifteenGuestScenario() {
	_, err := s.bookings.CreateBooking(s.ctx, CreateBookingInput{
		Name: "Grace Hopper", Email: "grace@example.com", Date: "2025-06-12", Time: "19:00", PartySize: 15,
	})
	s.ErrorIs(err, ErrRequiresGroupWorkflow)

	req, err := s.workflow.SubmitGroupRequest(s.ctx, s.submitInput())
	s.Require().NoError(err)
	s.Equal(models.GroupPendingReview, req.State)
	s.Equal([]string{"2025-06-12", "2025-06-14"}, req.CandidateDates)
	s.Equal("2025-06-14", req.LastCandidateDate)
	s.Equal("birthday", req.EventType)
	s.Equal(50, s.seatsLeft("2025-06-12", "19:00"))
	s.Equal(50, s.seatsLeft("2025-06-14", "19:00"))

	booking, err := s.workflow.Resolve(s.ctx, req.ID, "2025-06-12", "19:00")
	s.Require().NoError(err)
	s.Equal(models.BookingGroup, booking.Kind)
	s.Equal(models.BookingConfirmed, booking.State)
	s.Equal(req.ID, booking.GroupRequestID)
	s.Equal(15, booking.PartySize)
	s.Equal(35, s.seatsLeft("2025-06-12", "19:00"))

	stored, err := s.workflow.GetGroupRequest(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(models.GroupResolved, stored.State)
	s.Equal(booking.ID, stored.BookingID)

	_, err = s.workflow.Resolve(s.ctx, req.ID, "2025-06-14", "19:00")
	s.ErrorIs(err, ErrInvalidTransition)
	_, err = s.workflow.Reject(s.ctx, req.ID, "changed my mind")
	s.ErrorIs(err, ErrInvalidTransition)
	s.Equal(35, s.seatsLeft("2025-06-12", "19:00"))
}

func (s *GroupWorkflowTestSuite) TestSubmitValidation() {
	cases := []struct {
		name  string
		mod   func(*SubmitGroupInput)
		field string
	}{
		{"small party", func(in *SubmitGroupInput) { in.PartySize = 6 }, "partySize"},
		{"no dates", func(in *SubmitGroupInput) { in.CandidateDates = nil }, "candidateDates"},
		{"bad date", func(in *SubmitGroupInput) { in.CandidateDates = []string{"2025-06-12", "next friday"} }, "candidateDates[1]"},
		{"past date", func(in *SubmitGroupInput) { in.CandidateDates = []string{"2025-05-12"} }, "candidateDates[0]"},
		{"far date", func(in *SubmitGroupInput) { in.CandidateDates = []string{"2026-01-12"} }, "candidateDates[0]"},
		{"unknown period", func(in *SubmitGroupInput) { in.Period = "brunch" }, "period"},
		{"no organizer", func(in *SubmitGroupInput) { in.OrganizerName = "" }, "organizerName"},
		{"bad email", func(in *SubmitGroupInput) { in.OrganizerEmail = "grace" }, "organizerEmail"},
		{"unknown event", func(in *SubmitGroupInput) { in.EventType = "rave" }, "eventType"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			in := s.submitInput()
			tc.mod(&in)
			_, err := s.workflow.SubmitGroupRequest(s.ctx, in)
			s.ErrorIs(err, ErrInvalidGroupRequest)
			var be *BookingError
			s.Require().True(errors.As(err, &be))
			s.Equal(tc.field, be.Field)
		})
	}

	all, err := s.workflow.ListGroupRequests(s.ctx, "")
	s.Require().NoError(err)
	s.Empty(all)
}

func (s *GroupWorkflowTestSuite) TestPeriodAliases() {
	in := s.submitInput()
	in.Period = "evening"
	req, err := s.workflow.SubmitGroupRequest(s.ctx, in)
	s.Require().NoError(err)
	s.Equal(models.PeriodDinner, req.PreferredPeriod)

	in.Period = "afternoon"
	req, err = s.workflow.SubmitGroupRequest(s.ctx, in)
	s.Require().NoError(err)
	s.Equal(models.PeriodLunch, req.PreferredPeriod)
}

func (s *GroupWorkflowTestSuite) TestResolveChecksChoice() {
	req, err := s.workflow.SubmitGroupRequest(s.ctx, s.submitInput())
	s.Require().NoError(err)

	_, err = s.workflow.Resolve(s.ctx, req.ID, "2025-06-13", "19:00")
	s.ErrorIs(err, ErrInvalidInput)

	_, err = s.workflow.Resolve(s.ctx, req.ID, "2025-06-12", "12:30")
	s.ErrorIs(err, ErrInvalidSlot)

	_, err = s.workflow.Resolve(s.ctx, "missing", "2025-06-12", "19:00")
	s.ErrorIs(err, ErrGroupRequestNotFound)

	stored, err := s.workflow.GetGroupRequest(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(models.GroupPendingReview, stored.State)
}

func (s *GroupWorkflowTestSuite) TestResolveIntoFullSlotKeepsRequestPending() {
	req, err := s.workflow.SubmitGroupRequest(s.ctx, s.submitInput())
	s.Require().NoError(err)
	_, err = s.ledger.SetCapacity(s.ctx, "2025-06-12", "19:00", 10)
	s.Require().NoError(err)

	_, err = s.workflow.Resolve(s.ctx, req.ID, "2025-06-12", "19:00")
	s.ErrorIs(err, ErrUnavailable)
	s.Equal(10, s.seatsLeft("2025-06-12", "19:00"))

	stored, err := s.workflow.GetGroupRequest(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(models.GroupPendingReview, stored.State)

	// Another candidate still works.
	_, err = s.workflow.Resolve(s.ctx, req.ID, "2025-06-14", "20:30")
	s.Require().NoError(err)
}

func (s *GroupWorkflowTestSuite) TestReject() {
	req, err := s.workflow.SubmitGroupRequest(s.ctx, s.submitInput())
	s.Require().NoError(err)

	rejected, err := s.workflow.Reject(s.ctx, req.ID, "private event that night")
	s.Require().NoError(err)
	s.Equal(models.GroupRejected, rejected.State)
	s.Equal("private event that night", rejected.RejectionReason)

	_, err = s.workflow.Resolve(s.ctx, req.ID, "2025-06-12", "19:00")
	s.ErrorIs(err, ErrInvalidTransition)
	_, err = s.workflow.Reject(s.ctx, "missing", "")
	s.ErrorIs(err, ErrGroupRequestNotFound)
}

func (s *GroupWorkflowTestSuite) TestExpireStale() {
	req, err := s.workflow.SubmitGroupRequest(s.ctx, s.submitInput())
	s.Require().NoError(err)
	later := s.submitInput()
	later.CandidateDates = []string{"2025-06-12", "2025-07-01"}
	keep, err := s.workflow.SubmitGroupRequest(s.ctx, later)
	s.Require().NoError(err)

	n, err := s.workflow.ExpireStale(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, n)

	s.clock.Advance(14 * 24 * time.Hour) // 2025-06-15

	n, err = s.workflow.ExpireStale(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n)

	expired, err := s.workflow.GetGroupRequest(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(models.GroupRejected, expired.State)
	s.Equal(staleRejectionReason, expired.RejectionReason)

	pending, err := s.workflow.ListGroupRequests(s.ctx, models.GroupPendingReview)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(keep.ID, pending[0].ID)
}

// interleavedRequests runs beforeMark once, just ahead of the first MarkResolved.
type interleavedRequests struct {
	groupRepo.GroupRequestRepository
	beforeMark func()
}

func (r *interleavedRequests) MarkResolved(ctx context.Context, id, bookingID string, slot models.Slot, at time.Time) (*models.GroupBookingRequest, error) {
	if hook := r.beforeMark; hook != nil {
		r.beforeMark = nil
		hook()
	}
	return r.GroupRequestRepository.MarkResolved(ctx, id, bookingID, slot, at)
}

func (s *GroupWorkflowTestSuite) TestResolveLosingRaceCancelsOrphanBooking() {
	req, err := s.workflow.SubmitGroupRequest(s.ctx, s.submitInput())
	s.Require().NoError(err)

	var winner *models.Booking
	requests := &interleavedRequests{GroupRequestRepository: s.workflow.Requests}
	requests.beforeMark = func() {
		b, err := s.workflow.Resolve(s.ctx, req.ID, "2025-06-12", "19:00")
		s.Require().NoError(err)
		winner = b
	}
	s.workflow.Requests = requests

	_, err = s.workflow.Resolve(s.ctx, req.ID, "2025-06-12", "19:00")
	s.ErrorIs(err, ErrInvalidTransition)
	s.Require().NotNil(winner)
	s.Equal(35, s.seatsLeft("2025-06-12", "19:00"))

	list, err := s.bookings.ListBookings(s.ctx, "2025-06-12")
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	for _, b := range list {
		if b.ID == winner.ID {
			s.Equal(models.BookingConfirmed, b.State)
		} else {
			s.Equal(models.BookingCancelled, b.State)
		}
	}

	stored, err := s.workflow.GetGroupRequest(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(models.GroupResolved, stored.State)
	s.Equal(winner.ID, stored.BookingID)
}

func (s *GroupWorkflowTestSuite) TestConcurrentResolveBooksOnce() {
	req, err := s.workflow.SubmitGroupRequest(s.ctx, s.submitInput())
	s.Require().NoError(err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.workflow.Resolve(s.ctx, req.ID, "2025-06-12", "19:00")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		s.ErrorIs(err, ErrInvalidTransition)
	}
	s.Equal(1, succeeded)
	s.Equal(35, s.seatsLeft("2025-06-12", "19:00"))

	list, err := s.bookings.ListBookings(s.ctx, "2025-06-12")
	s.Require().NoError(err)
	confirmed := 0
	for _, b := range list {
		if b.State == models.BookingConfirmed {
			confirmed++
		}
	}
	s.Equal(1, confirmed)
}
