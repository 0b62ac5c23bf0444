package chathub

import (
	"chatroulette/backend/internal/log"
	"chatroulette/backend/internal/metrics"
	"chatroulette/backend/internal/models"
	"context"
)

// Notifier pushes realtime events to connected users.
type Notifier interface {
	Notify(ctx context.Context, ev models.Event) error
}

// NopNotifier discards every event.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, models.Event) error { return nil }

// notifyAll delivers events after the mutation has been committed.
// Failures are logged and never reach the caller.
func notifyAll(ctx context.Context, n Notifier, events ...models.Event) {
	if n == nil {
		return
	}
	for _, ev := range events {
		if ev.UserID == "" {
			continue
		}
		if err := n.Notify(ctx, ev); err != nil {
			metrics.EventsDropped.Inc()
			l := log.Ctx(ctx)
			l.Warn().Err(err).
				Str(log.FieldEvent, ev.Type).
				Str(log.FieldUserID, ev.UserID).
				Str(log.FieldSessionID, ev.SessionID).
				Msg("failed to deliver realtime event")
		}
	}
}

func sessionEvent(typ, userID string, session *models.ChatSession) models.Event {
	return models.Event{Type: typ, UserID: userID, SessionID: session.ID, Session: session}
}
