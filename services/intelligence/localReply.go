package ai

import (
	"context"
	"fmt"
	"strings"

	"tablebook/models"
)

// LocalReplyGenerator answers with canned keyword replies when no model key
// is configured.
type LocalReplyGenerator struct {
	MaxPartySize int
}

func (l LocalReplyGenerator) GenerateReply(_ context.Context, _ []models.ChatMessage, message string) (string, error) {
	sel := ExtractSelection(message)
	text := strings.ToLower(message)

	switch {
	case sel.PartySize > l.MaxPartySize:
		return fmt.Sprintf("For parties over %d guests please send a group reservation request and our team will confirm a date.", l.MaxPartySize), nil
	case !sel.Empty():
		return describeSelection(sel), nil
	case strings.Contains(text, "book") || strings.Contains(text, "reserv") || strings.Contains(text, "table"):
		return "Happy to help with a table. Which date, time and how many guests?", nil
	case strings.Contains(text, "hour") || strings.Contains(text, "open"):
		return "We serve lunch from midday and dinner in the evening. Ask me about a specific date to see open times.", nil
	case strings.Contains(text, "cancel"):
		return "You can cancel from the link in your confirmation, or tell our staff your booking reference.", nil
	default:
		return "How can I help with your visit today?", nil
	}
}

func describeSelection(sel models.SlotSelection) string {
	var parts []string
	if sel.PartySize > 0 {
		parts = append(parts, fmt.Sprintf("%d guests", sel.PartySize))
	}
	if sel.Date != "" {
		parts = append(parts, "on "+sel.Date)
	}
	if sel.Time != "" {
		parts = append(parts, "at "+sel.Time)
	}
	return fmt.Sprintf("Noted: %s. Confirm with the reservation form when you're ready.", strings.Join(parts, " "))
}
