package models

import "time"

type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

type ChatMessage struct {
	Role      ChatRole  `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// SlotSelection is the slot a chat conversation has narrowed down to, if any.
type SlotSelection struct {
	Date      string `json:"date,omitempty"`
	Time      string `json:"time,omitempty"`
	PartySize int    `json:"partySize,omitempty"`
}

// Empty reports whether nothing has been selected yet.
func (s *SlotSelection) Empty() bool {
	return s == nil || (s.Date == "" && s.Time == "" && s.PartySize == 0)
}

// Merge overlays the non-zero fields of next onto s.
func (s SlotSelection) Merge(next SlotSelection) SlotSelection {
	if next.Date != "" {
		s.Date = next.Date
	}
	if next.Time != "" {
		s.Time = next.Time
	}
	if next.PartySize > 0 {
		s.PartySize = next.PartySize
	}
	return s
}

// ChatSession is a conversation continuity record keyed by an opaque token.
type ChatSession struct {
	ID        string         `json:"id"`
	Messages  []ChatMessage  `json:"messages"`
	Selection *SlotSelection `json:"selection,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	ExpiresAt time.Time      `json:"expiresAt"`
}
