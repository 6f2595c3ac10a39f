package ai

import (
	"context"

	"tablebook/models"
)

// ReplyGenerator produces the assistant's next message. Replies may carry
// markup; ChatService enforces the allow-list before storing them.
//
//go:generate mockgen -package=mocks -destination=mocks/mock_reply.go tablebook/services/intelligence ReplyGenerator
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, history []models.ChatMessage, message string) (string, error)
}

type ChatService interface {
	Converse(ctx context.Context, sessionID, message string) (reply string, id string, err error)
	EndSession(ctx context.Context, sessionID string) error
}

const systemPrompt = `You are the reservation assistant of a restaurant that serves lunch and dinner.
Help guests pick a date, a time and a party size, and answer questions about the restaurant.
You cannot confirm bookings yourself: guests confirm a table with the reservation form.
Parties larger than %d guests go through the group reservation request form.
Format replies as short plain text. You may use only these HTML elements: %s.
Links may only use http, https, mailto or tel.`
