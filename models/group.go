package models

import "time"

type GroupRequestState string

const (
	GroupPendingReview GroupRequestState = "pending_review"
	GroupResolved      GroupRequestState = "resolved"
	GroupRejected      GroupRequestState = "rejected"
)

// ParseGroupRequestState accepts the wire names of the request states.
func ParseGroupRequestState(raw string) (GroupRequestState, bool) {
	switch s := GroupRequestState(raw); s {
	case GroupPendingReview, GroupResolved, GroupRejected:
		return s, true
	}
	return "", false
}

// EventTypes are the occasions a group request may declare.
var EventTypes = []string{"dinner", "birthday", "wedding", "corporate", "cultural"}

// GroupBookingRequest records intent for a large party. It never holds capacity
// until staff resolve it into a Booking.
type GroupBookingRequest struct {
	ID                  string            `bson:"id" json:"id"`
	Organizer           Contact           `bson:"organizer" json:"organizer"`
	EventType           string            `bson:"eventType,omitempty" json:"eventType,omitempty"`
	CandidateDates      []string          `bson:"candidateDates" json:"preferredDates"` // sorted, unique
	PreferredPeriod     Period            `bson:"preferredPeriod" json:"timeSlot"`
	PartySize           int               `bson:"partySize" json:"guestCount"`
	DietaryRequirements string            `bson:"dietaryRequirements,omitempty" json:"dietaryRequirements,omitempty"`
	SpecialRequests     string            `bson:"specialRequests,omitempty" json:"specialRequests,omitempty"`
	State               GroupRequestState `bson:"state" json:"status"`
	BookingID           string            `bson:"bookingId,omitempty" json:"bookingId,omitempty"`
	ChosenSlot          *Slot             `bson:"chosenSlot,omitempty" json:"chosenSlot,omitempty"`
	RejectionReason     string            `bson:"rejectionReason,omitempty" json:"rejectionReason,omitempty"`
	LastCandidateDate   string            `bson:"lastCandidateDate" json:"-"`
	CreatedAt           time.Time         `bson:"createdAt" json:"createdAt"`
	UpdatedAt           time.Time         `bson:"updatedAt" json:"updatedAt"`
}

// Terminal reports whether the request can no longer change.
func (r *GroupBookingRequest) Terminal() bool {
	return r.State == GroupResolved || r.State == GroupRejected
}

// HasCandidate reports whether date is one of the organizer's candidate dates.
func (r *GroupBookingRequest) HasCandidate(date string) bool {
	for _, d := range r.CandidateDates {
		if d == date {
			return true
		}
	}
	return false
}
