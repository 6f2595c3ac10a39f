package booking

import (
	"fmt"
	"strings"
	"time"

	"tablebook/models"
	"tablebook/utils"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// PeriodWindow is a service window as "HH:MM" bounds, open inclusive and
// close exclusive.
type PeriodWindow struct {
	Open  string
	Close string
}

type SlotConfig struct {
	IntervalMinutes int
	Lunch           PeriodWindow
	Dinner          PeriodWindow
	Location        *time.Location
}

type window struct {
	open, close int // minutes from midnight
}

// SlotGenerator turns a date and period into the ordered list of bookable start times.
type SlotGenerator struct {
	windows  map[models.Period]window
	interval int
	loc      *time.Location
	clock    utils.Clock
}

func minutesOf(hhmm string) (int, error) {
	t, err := time.Parse(timeLayout, hhmm)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

func NewSlotGenerator(cfg SlotConfig, clock utils.Clock) (*SlotGenerator, error) {
	if cfg.IntervalMinutes <= 0 {
		return nil, fmt.Errorf("slot interval must be positive")
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	g := &SlotGenerator{
		windows:  make(map[models.Period]window, 2),
		interval: cfg.IntervalMinutes,
		loc:      loc,
		clock:    clock,
	}
	for period, pw := range map[models.Period]PeriodWindow{models.PeriodLunch: cfg.Lunch, models.PeriodDinner: cfg.Dinner} {
		open, err := minutesOf(pw.Open)
		if err != nil {
			return nil, fmt.Errorf("%s open: %w", period, err)
		}
		closing, err := minutesOf(pw.Close)
		if err != nil {
			return nil, fmt.Errorf("%s close: %w", period, err)
		}
		if closing <= open {
			return nil, fmt.Errorf("%s window is empty", period)
		}
		g.windows[period] = window{open: open, close: closing}
	}
	return g, nil
}

// Location is the restaurant time zone used for "today".
func (g *SlotGenerator) Location() *time.Location {
	return g.loc
}

// Today returns the current restaurant-local date.
func (g *SlotGenerator) Today() time.Time {
	now := g.clock.Now().In(g.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, g.loc)
}

// ParseDate validates a "YYYY-MM-DD" date that is not in the past.
func (g *SlotGenerator) ParseDate(date string) (time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, date, g.loc)
	if err != nil {
		return time.Time{}, invalid(ErrInvalidDate, "date", "date must be YYYY-MM-DD, got %q", date)
	}
	if d.Before(g.Today()) {
		return time.Time{}, invalid(ErrInvalidDate, "date", "date %s is in the past", date)
	}
	return d, nil
}

// GenerateSlots lists the slots of a period on a date, earliest first.
func (g *SlotGenerator) GenerateSlots(date string, period models.Period) ([]models.Slot, error) {
	w, ok := g.windows[period]
	if !ok {
		return nil, invalid(ErrInvalidPeriod, "period", "period must be lunch or dinner, got %q", period)
	}
	if _, err := g.ParseDate(date); err != nil {
		return nil, err
	}

	slots := make([]models.Slot, 0, (w.close-w.open)/g.interval+1)
	for m := w.open; m < w.close; m += g.interval {
		slots = append(slots, models.Slot{
			Date:      date,
			StartTime: fmt.Sprintf("%02d:%02d", m/60, m%60),
			Period:    period,
		})
	}
	return slots, nil
}

// ResolveSlot finds the generated slot starting at startTime on date, in any period.
func (g *SlotGenerator) ResolveSlot(date, startTime string) (models.Slot, error) {
	normalized, err := NormalizeTime(startTime)
	if err != nil {
		return models.Slot{}, invalid(ErrInvalidSlot, "time", "time must be HH:MM, got %q", startTime)
	}
	for _, period := range models.Periods {
		slots, err := g.GenerateSlots(date, period)
		if err != nil {
			return models.Slot{}, err
		}
		for _, s := range slots {
			if s.StartTime == normalized {
				return s, nil
			}
		}
	}
	return models.Slot{}, invalid(ErrInvalidSlot, "time", "no slot starts at %s on %s", normalized, date)
}

var clockLayouts = []string{"15:04", "3:04pm", "3pm"}

// NormalizeTime accepts "19:00", "7:00pm" or "7 pm" and returns "HH:MM".
func NormalizeTime(raw string) (string, error) {
	cleaned := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(raw), " ", ""))
	cleaned = strings.ReplaceAll(cleaned, ".", "")
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, cleaned); err == nil {
			return t.Format(timeLayout), nil
		}
	}
	return "", fmt.Errorf("unrecognized time %q", raw)
}
