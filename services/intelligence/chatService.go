package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tablebook/models"

	"go.uber.org/zap"
)

var ErrEmptyMessage = errors.New("message is required")

const fallbackReply = "Sorry, I can't answer right now. You can still book with the reservation form."

type Locker interface {
	Acquire(ctx context.Context, id string) (func(), error)
}

type DefaultChatService struct {
	Sessions SessionStore
	Lock     Locker
	Replies  ReplyGenerator
	Markup   *MarkupFilter
	Logger   *zap.Logger
}

func NewChatService(sessions SessionStore, lock Locker, replies ReplyGenerator, logger *zap.Logger) *DefaultChatService {
	return &DefaultChatService{
		Sessions: sessions,
		Lock:     lock,
		Replies:  replies,
		Markup:   NewMarkupFilter(),
		Logger:   logger,
	}
}

// Converse runs one chat turn. An unknown or expired sessionID silently
// starts a new session; the id to use next time is returned.
func (s *DefaultChatService) Converse(ctx context.Context, sessionID, message string) (string, string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", "", ErrEmptyMessage
	}

	// A freshly minted id is unknown to anyone else, so only a supplied id
	// needs the turn lock.
	if sessionID != "" {
		release, err := s.Lock.Acquire(ctx, sessionID)
		if err != nil {
			return "", "", fmt.Errorf("lock session: %w", err)
		}
		defer release()
	}

	session, created, err := s.Sessions.GetOrCreate(ctx, sessionID)
	if err != nil {
		return "", "", err
	}
	if created && sessionID != "" {
		s.Logger.Debug("Chat session replaced", zap.String("sessionId", session.ID))
	}

	if sel := ExtractSelection(message); !sel.Empty() {
		var current models.SlotSelection
		if session.Selection != nil {
			current = *session.Selection
		}
		if err := s.Sessions.SetSelection(ctx, session.ID, current.Merge(sel)); err != nil {
			return "", "", fmt.Errorf("save selection: %w", err)
		}
	}

	reply, err := s.Replies.GenerateReply(ctx, session.Messages, message)
	if err != nil {
		s.Logger.Warn("Reply generation failed", zap.String("sessionId", session.ID), zap.Error(err))
		reply = fallbackReply
	}
	cleaned, violated := s.Markup.Clean(reply)
	if violated {
		s.Logger.Warn("Reply markup outside allow-list was sanitized", zap.String("sessionId", session.ID))
	}

	if err := s.Sessions.AppendMessage(ctx, session.ID, models.RoleUser, message); err != nil {
		return "", "", err
	}
	if err := s.Sessions.AppendMessage(ctx, session.ID, models.RoleAssistant, cleaned); err != nil {
		return "", "", err
	}
	return cleaned, session.ID, nil
}

func (s *DefaultChatService) EndSession(ctx context.Context, sessionID string) error {
	return s.Sessions.Clear(ctx, sessionID)
}
