package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tablebook/models"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	TopicBookingConfirmed = "reservations.booking.confirmed"
	TopicBookingCancelled = "reservations.booking.cancelled"
	TopicGroupSubmitted   = "reservations.group.submitted"
	TopicGroupResolved    = "reservations.group.resolved"
	TopicGroupRejected    = "reservations.group.rejected"
)

//go:generate mockgen -package=mocks -destination=mocks/mock_publisher.go tablebook/services/events Publisher
type Publisher interface {
	Publish(ctx context.Context, topic string, msg []byte) error
	Close() error
}

// Event is the payload published for every booking lifecycle change.
type Event struct {
	Topic          string       `json:"topic"`
	BookingID      string       `json:"bookingId,omitempty"`
	GroupRequestID string       `json:"groupRequestId,omitempty"`
	Slot           *models.Slot `json:"slot,omitempty"`
	PartySize      int          `json:"partySize"`
	State          string       `json:"state"`
	OccurredAt     time.Time    `json:"occurredAt"`
}

func BookingEvent(topic string, b *models.Booking, at time.Time) Event {
	return Event{
		Topic:          topic,
		BookingID:      b.ID,
		GroupRequestID: b.GroupRequestID,
		Slot:           b.Slot,
		PartySize:      b.PartySize,
		State:          string(b.State),
		OccurredAt:     at,
	}
}

func GroupEvent(topic string, r *models.GroupBookingRequest, at time.Time) Event {
	return Event{
		Topic:          topic,
		BookingID:      r.BookingID,
		GroupRequestID: r.ID,
		Slot:           r.ChosenSlot,
		PartySize:      r.PartySize,
		State:          string(r.State),
		OccurredAt:     at,
	}
}

// Emit publishes ev and only logs failures. The booking state is already
// committed when events go out, so a broker outage must not fail the request.
func Emit(ctx context.Context, pub Publisher, logger *zap.Logger, ev Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		logger.Error("Failed to encode event", zap.String("topic", ev.Topic), zap.Error(err))
		return
	}
	if err := pub.Publish(ctx, ev.Topic, msg); err != nil {
		logger.Warn("Failed to publish event", zap.String("topic", ev.Topic), zap.Error(err))
	}
}

type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("tablebook"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: conn}, nil
}

func (p *NATSPublisher) Publish(_ context.Context, topic string, msg []byte) error {
	return p.conn.Publish(topic, msg)
}

// Healthy reports whether the connection is currently usable.
func (p *NATSPublisher) Healthy(context.Context) error {
	if !p.conn.IsConnected() {
		return fmt.Errorf("nats status %s", p.conn.Status())
	}
	return nil
}

func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

// NoopPublisher drops every event. Used when NATS_URL is not set.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, []byte) error { return nil }
func (NoopPublisher) Close() error { return nil }
