package models

import (
	"errors"
	"time"
)

type BookingKind string

const (
	BookingIndividual BookingKind = "individual"
	BookingGroup      BookingKind = "group"
)

type BookingState string

const (
	BookingPending   BookingState = "pending"
	BookingConfirmed BookingState = "confirmed"
	BookingCancelled BookingState = "cancelled"
)

// BookingSource records which surface created the booking.
type BookingSource string

const (
	SourceWeb   BookingSource = "web"
	SourceChat  BookingSource = "chat"
	SourceStaff BookingSource = "staff"
)

// ErrIllegalTransition is returned when a lifecycle move is not allowed from the current state.
var ErrIllegalTransition = errors.New("illegal state transition")

type Contact struct {
	Name  string `bson:"name" json:"name"`
	Email string `bson:"email" json:"email"`
	Phone string `bson:"phone,omitempty" json:"phone,omitempty"`
}

// Booking is a confirmed claim on seats of one slot.
type Booking struct {
	ID              string        `bson:"id" json:"id"`
	Kind            BookingKind   `bson:"kind" json:"kind"`
	Slot            *Slot         `bson:"slot" json:"slot"`
	PartySize       int           `bson:"partySize" json:"guests"`
	Contact         Contact       `bson:"contact" json:"contact"`
	SpecialRequests string        `bson:"specialRequests,omitempty" json:"specialRequests,omitempty"`
	State           BookingState  `bson:"state" json:"status"`
	GroupRequestID  string        `bson:"groupRequestId,omitempty" json:"groupRequestId,omitempty"` // set only for group bookings
	SessionID       string        `bson:"sessionId,omitempty" json:"-"`                             // chat session that produced the booking
	Source          BookingSource `bson:"source" json:"source"`
	CreatedAt       time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time     `bson:"updatedAt" json:"updatedAt"`
	CancelledAt     *time.Time    `bson:"cancelledAt,omitempty" json:"cancelledAt,omitempty"`
}

// Confirm moves a pending booking to confirmed.
func (b *Booking) Confirm(now time.Time) error {
	if b.State != BookingPending {
		return ErrIllegalTransition
	}
	b.State = BookingConfirmed
	b.UpdatedAt = now
	return nil
}

// Cancel moves a confirmed booking to cancelled. Cancelled is terminal.
func (b *Booking) Cancel(now time.Time) error {
	if b.State != BookingConfirmed {
		return ErrIllegalTransition
	}
	b.State = BookingCancelled
	b.UpdatedAt = now
	b.CancelledAt = &now
	return nil
}
