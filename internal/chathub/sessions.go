package chathub

import (
	"chatroulette/backend/internal/log"
	"chatroulette/backend/internal/models"
	"chatroulette/backend/internal/storage"
	"context"
	"fmt"
)

// Access is the outcome of a session authorization check.
// Reason is nil when access is granted and wraps ErrForbidden otherwise.
type Access struct {
	Session *models.ChatSession
	Reason  error
}

func (a Access) Granted() bool {
	return a.Reason == nil
}

// SessionManager owns session lookups and the participant check shared by
// messaging and signaling.
type SessionManager struct {
	store storage.Storage
}

func NewSessionManager(store storage.Storage) *SessionManager {
	return &SessionManager{store: store}
}

// CurrentSession returns the caller's active session or nil.
func (m *SessionManager) CurrentSession(ctx context.Context, callerID string) (*models.ChatSession, error) {
	if callerID == "" {
		return nil, ErrUnauthenticated
	}

	sessions, err := m.store.GetActiveSessionsForUser(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load active sessions: %w", err)
	}
	if len(sessions) == 0 {
		return nil, nil
	}
	if len(sessions) > 1 {
		l := log.Ctx(ctx)
		l.Warn().Str(log.FieldUserID, callerID).Int("count", len(sessions)).
			Msg("user has more than one active session, returning the newest")
	}
	return &sessions[0], nil
}

// Authorize checks that callerID may act on sessionID. The returned error is
// reserved for authentication and store failures; a denial is reported
// through Access.Reason.
func (m *SessionManager) Authorize(ctx context.Context, callerID, sessionID string) (Access, error) {
	if callerID == "" {
		return Access{}, ErrUnauthenticated
	}

	session, err := m.store.GetSessionByID(ctx, sessionID)
	if err != nil {
		return Access{}, fmt.Errorf("failed to load session: %w", err)
	}

	switch {
	case session == nil:
		return Access{Reason: ErrSessionNotFound}, nil
	case !session.Active:
		return Access{Session: session, Reason: ErrSessionEnded}, nil
	case !session.HasParticipant(callerID):
		return Access{Session: session, Reason: ErrNotParticipant}, nil
	}
	return Access{Session: session}, nil
}
