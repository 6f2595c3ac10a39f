package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	capacityRepo "tablebook/database/repository/capacity"
	"tablebook/models"

	"go.uber.org/zap"
)

// CapacityLedger owns the per-slot seat counts. Reserve and Release are atomic
// per slot in the store, reads never block writers.
type CapacityLedger struct {
	Slots       *SlotGenerator
	Repo        capacityRepo.CapacityRepository
	HorizonDays int
	Logger      *zap.Logger
}

func NewCapacityLedger(slots *SlotGenerator, repo capacityRepo.CapacityRepository, horizonDays int, logger *zap.Logger) *CapacityLedger {
	return &CapacityLedger{Slots: slots, Repo: repo, HorizonDays: horizonDays, Logger: logger}
}

// checkHorizon rejects dates past today + HorizonDays.
func (l *CapacityLedger) checkHorizon(date string) error {
	d, err := l.Slots.ParseDate(date)
	if err != nil {
		return err
	}
	last := l.Slots.Today().AddDate(0, 0, l.HorizonDays)
	if d.After(last) {
		return &BookingError{
			Code:    CodeOutOfHorizon,
			Field:   "date",
			Message: fmt.Sprintf("bookings open %d days ahead, last bookable date is %s", l.HorizonDays, last.Format(dateLayout)),
		}
	}
	return nil
}

// entryTTL keeps a ledger entry until one day after its date ends.
func (l *CapacityLedger) entryTTL(date string) time.Duration {
	d, err := time.ParseInLocation(dateLayout, date, l.Slots.Location())
	if err != nil {
		return 48 * time.Hour
	}
	return d.AddDate(0, 0, 2).Sub(l.Slots.clock.Now())
}

// GetAvailability reports every slot of the period with its remaining seats.
func (l *CapacityLedger) GetAvailability(ctx context.Context, date string, period models.Period) ([]models.SlotAvailability, error) {
	slots, err := l.Slots.GenerateSlots(date, period)
	if err != nil {
		return nil, err
	}
	if err := l.checkHorizon(date); err != nil {
		return nil, err
	}
	entries, err := l.Repo.Get(ctx, slots)
	if err != nil {
		return nil, fmt.Errorf("read availability: %w", err)
	}

	out := make([]models.SlotAvailability, len(entries))
	for i, e := range entries {
		left := e.Remaining()
		out[i] = models.SlotAvailability{
			Slot:      e.Slot,
			Time:      e.Slot.StartTime,
			Available: left > 0,
			SeatsLeft: left,
		}
	}
	return out, nil
}

// Reserve claims partySize seats or fails with ErrSlotFull leaving the entry unchanged.
func (l *CapacityLedger) Reserve(ctx context.Context, slot models.Slot, partySize int) (models.CapacityEntry, error) {
	if partySize < 1 {
		return models.CapacityEntry{}, invalid(ErrInvalidInput, "guests", "party size must be at least 1")
	}
	if err := l.checkHorizon(slot.Date); err != nil {
		return models.CapacityEntry{}, err
	}
	entry, err := l.Repo.Reserve(ctx, slot, partySize, l.entryTTL(slot.Date))
	if errors.Is(err, capacityRepo.ErrCapacityExceeded) {
		return entry, &BookingError{
			Code:    CodeSlotFull,
			Message: fmt.Sprintf("%d seats left at %s %s, %d requested", entry.Remaining(), slot.Date, slot.StartTime, partySize),
		}
	}
	if err != nil {
		return models.CapacityEntry{}, err
	}
	l.Logger.Debug("Seats reserved",
		zap.String("slot", slot.Key()),
		zap.Int("party", partySize),
		zap.Int("reserved", entry.ReservedCount),
		zap.Int("total", entry.TotalCapacity),
	)
	return entry, nil
}

// Release returns seats to the slot. Releasing more than is reserved clamps at
// zero and reports ErrInvariantViolation.
func (l *CapacityLedger) Release(ctx context.Context, slot models.Slot, partySize int) (models.CapacityEntry, error) {
	if partySize < 1 {
		return models.CapacityEntry{}, invalid(ErrInvalidInput, "guests", "party size must be at least 1, got %d", partySize)
	}
	entry, floored, err := l.Repo.Release(ctx, slot, partySize, l.entryTTL(slot.Date))
	if err != nil {
		return models.CapacityEntry{}, err
	}
	if floored {
		l.Logger.Error("Capacity release went below zero",
			zap.String("slot", slot.Key()),
			zap.Int("party", partySize),
		)
		return entry, ErrInvariantViolation
	}
	return entry, nil
}

// Lapsed reports whether the slot's date is already behind the restaurant's
// today. Entries for such dates may have expired from the store.
func (l *CapacityLedger) Lapsed(slot models.Slot) bool {
	d, err := time.ParseInLocation(dateLayout, slot.Date, l.Slots.Location())
	if err != nil {
		return false
	}
	return d.Before(l.Slots.Today())
}

// SetCapacity changes a slot's total. It cannot drop below what is already reserved.
func (l *CapacityLedger) SetCapacity(ctx context.Context, date, startTime string, total int) (models.CapacityEntry, error) {
	if total < 1 {
		return models.CapacityEntry{}, invalid(ErrInvalidInput, "totalCapacity", "capacity must be positive")
	}
	slot, err := l.Slots.ResolveSlot(date, startTime)
	if err != nil {
		return models.CapacityEntry{}, err
	}
	if err := l.checkHorizon(date); err != nil {
		return models.CapacityEntry{}, err
	}
	entry, err := l.Repo.SetTotal(ctx, slot, total, l.entryTTL(date))
	if errors.Is(err, capacityRepo.ErrBelowReserved) {
		return entry, invalid(ErrInvalidInput, "totalCapacity", "%d seats are already reserved", entry.ReservedCount)
	}
	if err != nil {
		return models.CapacityEntry{}, err
	}
	l.Logger.Info("Slot capacity changed", zap.String("slot", slot.Key()), zap.Int("total", total))
	return entry, nil
}

// CheckParty answers whether a party of guests still fits at date and time.
func (l *CapacityLedger) CheckParty(ctx context.Context, date, startTime string, guests int) (bool, int, error) {
	if guests < 1 {
		return false, 0, invalid(ErrInvalidInput, "guests", "guests must be at least 1")
	}
	slot, err := l.Slots.ResolveSlot(date, startTime)
	if err != nil {
		return false, 0, err
	}
	if err := l.checkHorizon(date); err != nil {
		return false, 0, err
	}
	entries, err := l.Repo.Get(ctx, []models.Slot{slot})
	if err != nil {
		return false, 0, fmt.Errorf("read availability: %w", err)
	}
	left := entries[0].Remaining()
	return guests <= left, left, nil
}
