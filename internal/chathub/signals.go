package chathub

import (
	"chatroulette/backend/internal/metrics"
	"chatroulette/backend/internal/models"
	"chatroulette/backend/internal/storage"
	"context"
	"fmt"
)

// SignalRelay stores WebRTC negotiation payloads per recipient. Polling never
// consumes: every poll replays the full history addressed to the caller.
type SignalRelay struct {
	sessions *SessionManager
	store    storage.SignalStore
	notifier Notifier
}

func NewSignalRelay(sessions *SessionManager, store storage.SignalStore, notifier Notifier) *SignalRelay {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &SignalRelay{sessions: sessions, store: store, notifier: notifier}
}

// Send relays payload to toUserID, which must be the caller's partner in a
// video session. The payload is stored as received.
func (r *SignalRelay) Send(ctx context.Context, callerID, sessionID, toUserID string, typ models.SignalType, payload string) (*models.SignalingMessage, error) {
	access, err := r.sessions.Authorize(ctx, callerID, sessionID)
	if err != nil {
		return nil, err
	}
	if !access.Granted() {
		return nil, access.Reason
	}
	if !access.Session.HasVideo {
		return nil, ErrVideoDisabled
	}
	if toUserID == "" || toUserID != access.Session.PartnerOf(callerID) {
		return nil, ErrBadRecipient
	}
	if !typ.Valid() {
		return nil, ErrInvalidSignalType
	}

	sig := &models.SignalingMessage{
		SessionID:  sessionID,
		FromUserID: callerID,
		ToUserID:   toUserID,
		Type:       typ,
		Payload:    payload,
	}
	if err := r.store.SaveSignal(ctx, sig); err != nil {
		return nil, fmt.Errorf("failed to save signal: %w", err)
	}
	metrics.SignalsSent.WithLabelValues(string(typ)).Inc()

	notifyAll(ctx, r.notifier, models.Event{
		Type:      models.EventSignal,
		UserID:    toUserID,
		SessionID: sessionID,
		Signal:    sig,
	})
	return sig, nil
}

// Poll returns every signal addressed to the caller in insertion order, or an
// empty list when the caller has no access or the session has no video.
func (r *SignalRelay) Poll(ctx context.Context, callerID, sessionID string) ([]models.SignalingMessage, error) {
	access, err := r.sessions.Authorize(ctx, callerID, sessionID)
	if err != nil {
		return nil, err
	}
	if !access.Granted() || !access.Session.HasVideo {
		return []models.SignalingMessage{}, nil
	}

	signals, err := r.store.GetSignalsFor(ctx, sessionID, callerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load signals: %w", err)
	}
	return signals, nil
}
