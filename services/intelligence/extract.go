package ai

import (
	"regexp"
	"strconv"
	"strings"

	"tablebook/models"
	"tablebook/services/booking"
)

var (
	datePattern  = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
	clockPattern = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*([ap]\.?m)\b\.?`)
	hourPattern  = regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)\b`)
	partyPattern = regexp.MustCompile(`(?i)\b(?:party of|table for|for)\s+(\d{1,3})\b|\b(\d{1,3})\s*(?:people|persons|guests|pax|of us)\b`)
)

// ExtractSelection pulls a date, a time and a party size out of free text.
// Anything it cannot read is left zero.
func ExtractSelection(message string) models.SlotSelection {
	var sel models.SlotSelection
	if m := datePattern.FindStringSubmatch(message); m != nil {
		sel.Date = m[1]
	}
	// Drop the date so its digits are not read as a time.
	rest := datePattern.ReplaceAllString(message, " ")

	if m := clockPattern.FindStringSubmatch(rest); m != nil {
		raw := m[1]
		if m[2] != "" {
			raw += ":" + m[2]
		}
		raw += strings.ReplaceAll(m[3], ".", "")
		if t, err := booking.NormalizeTime(raw); err == nil {
			sel.Time = t
		}
	} else if m := hourPattern.FindString(rest); m != "" {
		if t, err := booking.NormalizeTime(m); err == nil {
			sel.Time = t
		}
	}

	rest = clockPattern.ReplaceAllString(rest, " ")
	rest = hourPattern.ReplaceAllString(rest, " ")
	if m := partyPattern.FindStringSubmatch(rest); m != nil {
		digits := m[1]
		if digits == "" {
			digits = m[2]
		}
		if n, err := strconv.Atoi(digits); err == nil && n > 0 {
			sel.PartySize = n
		}
	}
	return sel
}
