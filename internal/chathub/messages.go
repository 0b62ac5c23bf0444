package chathub

import (
	"chatroulette/backend/internal/metrics"
	"chatroulette/backend/internal/models"
	"chatroulette/backend/internal/storage"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultMaxMessageLength applies when the service is built with a non-positive limit.
const DefaultMaxMessageLength = 4096

// MessagingService is the append-only chat log of a session.
type MessagingService struct {
	sessions  *SessionManager
	store     storage.Storage
	notifier  Notifier
	maxLength int
}

func NewMessagingService(sessions *SessionManager, store storage.Storage, notifier Notifier, maxLength int) *MessagingService {
	if maxLength <= 0 {
		maxLength = DefaultMaxMessageLength
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &MessagingService{sessions: sessions, store: store, notifier: notifier, maxLength: maxLength}
}

// Send appends a message authored by callerID. Content is stored trimmed.
func (s *MessagingService) Send(ctx context.Context, callerID, sessionID, content string) (*models.Message, error) {
	access, err := s.sessions.Authorize(ctx, callerID, sessionID)
	if err != nil {
		return nil, err
	}
	if !access.Granted() {
		return nil, access.Reason
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > s.maxLength {
		return nil, ErrContentTooLong
	}

	msg := &models.Message{SessionID: sessionID, AuthorID: callerID, Content: content}
	if err := s.store.SaveMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}
	metrics.MessagesSent.Inc()

	notifyAll(ctx, s.notifier, models.Event{
		Type:      models.EventMessage,
		UserID:    access.Session.PartnerOf(callerID),
		SessionID: sessionID,
		Message:   msg,
	})
	return msg, nil
}

// List returns the session log oldest first. A caller without access gets an
// empty list rather than an error.
func (s *MessagingService) List(ctx context.Context, callerID, sessionID string) ([]models.Message, error) {
	access, err := s.sessions.Authorize(ctx, callerID, sessionID)
	if err != nil {
		return nil, err
	}
	if !access.Granted() {
		return []models.Message{}, nil
	}

	history, err := s.store.GetChatHistory(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	return history, nil
}
