package chathub

import (
	"chatroulette/backend/internal/models"
	"chatroulette/backend/internal/storage"
	"context"
	"errors"
	"fmt"
)

// Service bundles the chat components over one record store.
type Service struct {
	Sessions *SessionManager
	Matcher  *MatcherService
	Messages *MessagingService
	Signals  *SignalRelay

	store storage.Storage
}

type Options struct {
	Store            storage.Storage
	SignalStore      storage.SignalStore
	Locker           storage.Locker
	Notifier         Notifier
	MaxMessageLength int
}

// NewService wires the components. SignalStore defaults to Store when it
// implements storage.SignalStore.
func NewService(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.New("chathub: record store is required")
	}
	signals := opts.SignalStore
	if signals == nil {
		s, ok := opts.Store.(storage.SignalStore)
		if !ok {
			return nil, errors.New("chathub: signal store is required")
		}
		signals = s
	}

	sessions := NewSessionManager(opts.Store)
	return &Service{
		Sessions: sessions,
		Matcher:  NewMatcherService(opts.Store, opts.Locker, opts.Notifier),
		Messages: NewMessagingService(sessions, opts.Store, opts.Notifier, opts.MaxMessageLength),
		Signals:  NewSignalRelay(sessions, signals, opts.Notifier),
		store:    opts.Store,
	}, nil
}

// DebugState is a diagnostic snapshot of every waiting entry and active
// session. It only requires an authenticated caller.
func (s *Service) DebugState(ctx context.Context, callerID string) (*models.DebugState, error) {
	if callerID == "" {
		return nil, ErrUnauthenticated
	}

	waiting, err := s.store.GetWaitingEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load waiting entries: %w", err)
	}
	active, err := s.store.GetActiveSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active sessions: %w", err)
	}
	if waiting == nil {
		waiting = []models.WaitingEntry{}
	}
	if active == nil {
		active = []models.ChatSession{}
	}
	return &models.DebugState{CallerID: callerID, Waiting: waiting, ActiveSessions: active}, nil
}
