package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"tablebook/models"
	"tablebook/services/events"
	"tablebook/services/events/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestEmitPublishesEncodedEvent(t *testing.T) {
	ctrl := gomock.NewController(t)
	pub := mocks.NewMockPublisher(ctrl)
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	booking := &models.Booking{
		ID:        "b-1",
		Slot:      &models.Slot{Date: "2025-06-10", StartTime: "19:00", Period: models.PeriodDinner},
		PartySize: 4,
		State:     models.BookingConfirmed,
	}

	pub.EXPECT().
		Publish(gomock.Any(), events.TopicBookingConfirmed, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, msg []byte) error {
			var ev events.Event
			require.NoError(t, json.Unmarshal(msg, &ev))
			assert.Equal(t, "b-1", ev.BookingID)
			assert.Equal(t, "confirmed", ev.State)
			assert.Equal(t, "19:00", ev.Slot.StartTime)
			assert.True(t, at.Equal(ev.OccurredAt))
			return nil
		})

	events.Emit(context.Background(), pub, zap.NewNop(), events.BookingEvent(events.TopicBookingConfirmed, booking, at))
}

func TestEmitLogsPublishFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	pub := mocks.NewMockPublisher(ctrl)
	core, logs := observer.New(zap.WarnLevel)

	pub.EXPECT().Publish(gomock.Any(), events.TopicGroupRejected, gomock.Any()).Return(errors.New("broker down"))

	req := &models.GroupBookingRequest{ID: "g-1", PartySize: 12, State: models.GroupRejected}
	events.Emit(context.Background(), pub, zap.New(core), events.GroupEvent(events.TopicGroupRejected, req, time.Now()))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Failed to publish event", logs.All()[0].Message)
}
