package models

import (
	"fmt"
	"strings"
)

// Period is a named service window within a day.
type Period string

const (
	PeriodLunch  Period = "lunch"
	PeriodDinner Period = "dinner"
)

// Periods lists every service period in serving order.
var Periods = []Period{PeriodLunch, PeriodDinner}

// ParsePeriod normalizes a period name. Only lunch and dinner are accepted.
func ParsePeriod(raw string) (Period, error) {
	switch Period(strings.ToLower(strings.TrimSpace(raw))) {
	case PeriodLunch:
		return PeriodLunch, nil
	case PeriodDinner:
		return PeriodDinner, nil
	}
	return "", fmt.Errorf("unknown period %q", raw)
}

// Slot is one bookable start time. Date is "YYYY-MM-DD", StartTime is "HH:MM".
type Slot struct {
	Date      string `bson:"date" json:"date"`
	StartTime string `bson:"startTime" json:"time"`
	Period    Period `bson:"period" json:"period"`
}

// Key identifies the slot within the ledger.
func (s Slot) Key() string {
	return s.Date + ":" + s.StartTime
}

// CapacityEntry is the ledger row for a single slot.
type CapacityEntry struct {
	Slot          Slot `json:"slot"`
	TotalCapacity int  `json:"totalCapacity"`
	ReservedCount int  `json:"reservedCount"`
}

// Remaining returns the seats still free, never negative.
func (e CapacityEntry) Remaining() int {
	if left := e.TotalCapacity - e.ReservedCount; left > 0 {
		return left
	}
	return 0
}

// SlotAvailability is the read-only view returned to clients.
type SlotAvailability struct {
	Slot      Slot   `json:"-"`
	Time      string `json:"time"`
	Available bool   `json:"available"`
	SeatsLeft int    `json:"seatsLeft"`
}
