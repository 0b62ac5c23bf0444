package chathub

import (
	"chatroulette/backend/internal/log"
	"chatroulette/backend/internal/metrics"
	"chatroulette/backend/internal/models"
	"chatroulette/backend/internal/storage"
	"context"
	"fmt"
	"strconv"
	"time"
)

// JoinResult is either a fresh session or a queued marker.
type JoinResult struct {
	Session *models.ChatSession `json:"session,omitempty"`
	Queued  bool                `json:"queued"`
}

// MatcherService pairs waiting users. There is no background matching loop:
// a joiner either takes a compatible waiter at that instant or becomes one.
type MatcherService struct {
	store    storage.Storage
	locker   storage.Locker
	notifier Notifier
}

func NewMatcherService(store storage.Storage, locker storage.Locker, notifier Notifier) *MatcherService {
	if locker == nil {
		locker = storage.NewLocalLocker()
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &MatcherService{store: store, locker: locker, notifier: notifier}
}

// Join ends the caller's active session, clears their stale waiting entry and
// then either matches them with the oldest compatible waiter or queues them.
func (m *MatcherService) Join(ctx context.Context, userID string, wantsVideo bool) (JoinResult, error) {
	if userID == "" {
		return JoinResult{}, ErrUnauthenticated
	}

	unlock, err := m.locker.Lock(ctx)
	if err != nil {
		return JoinResult{}, err
	}
	defer unlock()

	var (
		result JoinResult
		ended  []models.ChatSession
	)
	err = m.store.Transaction(ctx, func(tx storage.Storage) error {
		result, ended = JoinResult{}, nil

		active, err := tx.GetActiveSessionsForUser(ctx, userID)
		if err != nil {
			return err
		}
		for _, s := range active {
			ok, err := tx.EndSession(ctx, s.ID)
			if err != nil {
				return err
			}
			if ok {
				s.Active = false
				ended = append(ended, s)
			}
		}

		if _, err := tx.RemoveFromWaitingQueue(ctx, userID); err != nil {
			return err
		}

		entries, err := tx.GetWaitingEntries(ctx)
		if err != nil {
			return err
		}
		for i := range entries {
			candidate := entries[i]
			if !candidate.Accepts(userID, wantsVideo) {
				continue
			}
			removed, err := tx.RemoveWaitingEntry(ctx, candidate.ID)
			if err != nil {
				return err
			}
			if !removed {
				continue
			}

			session := &models.ChatSession{
				UserA:    candidate.UserID,
				UserB:    userID,
				Active:   true,
				HasVideo: wantsVideo && candidate.WantsVideo,
			}
			if err := tx.SaveSession(ctx, session); err != nil {
				return err
			}
			result.Session = session
			return nil
		}

		result.Queued = true
		return tx.AddToWaitingQueue(ctx, &models.WaitingEntry{
			UserID:     userID,
			JoinedAt:   time.Now(),
			WantsVideo: wantsVideo,
		})
	})
	if err != nil {
		return JoinResult{}, fmt.Errorf("failed to join queue: %w", err)
	}

	l := log.Ctx(ctx)
	events := make([]models.Event, 0, len(ended)+2)
	for i := range ended {
		metrics.SessionsEnded.WithLabelValues("rejoin").Inc()
		events = append(events, sessionEvent(models.EventSessionEnded, ended[i].PartnerOf(userID), &ended[i]))
	}

	if s := result.Session; s != nil {
		metrics.QueueJoins.WithLabelValues("matched").Inc()
		metrics.Matches.WithLabelValues(strconv.FormatBool(s.HasVideo)).Inc()
		l.Info().
			Str(log.FieldSessionID, s.ID).
			Str(log.FieldUserID, userID).
			Str(log.FieldPartnerID, s.UserA).
			Bool("video", s.HasVideo).
			Msg("match found")
		events = append(events,
			sessionEvent(models.EventMatchFound, s.UserA, s),
			sessionEvent(models.EventMatchFound, s.UserB, s),
		)
	} else {
		metrics.QueueJoins.WithLabelValues("queued").Inc()
		l.Debug().Str(log.FieldUserID, userID).Bool("video", wantsVideo).Msg("user queued")
	}

	notifyAll(ctx, m.notifier, events...)
	return result, nil
}

// Leave ends sessionID when the caller takes part in it and always purges the
// caller's waiting entry. Unknown, foreign and already ended sessions are ignored.
func (m *MatcherService) Leave(ctx context.Context, userID, sessionID string) error {
	if userID == "" {
		return ErrUnauthenticated
	}

	var ended *models.ChatSession
	err := m.store.Transaction(ctx, func(tx storage.Storage) error {
		ended = nil

		if sessionID != "" {
			session, err := tx.GetSessionByID(ctx, sessionID)
			if err != nil {
				return err
			}
			if session != nil && session.HasParticipant(userID) {
				ok, err := tx.EndSession(ctx, session.ID)
				if err != nil {
					return err
				}
				if ok {
					session.Active = false
					ended = session
				}
			}
		}

		_, err := tx.RemoveFromWaitingQueue(ctx, userID)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to leave chat: %w", err)
	}

	if ended != nil {
		metrics.SessionsEnded.WithLabelValues("leave").Inc()
		l := log.Ctx(ctx)
		l.Info().Str(log.FieldSessionID, ended.ID).Str(log.FieldUserID, userID).Msg("session ended")
		notifyAll(ctx, m.notifier, sessionEvent(models.EventSessionEnded, ended.PartnerOf(userID), ended))
	}
	return nil
}

func (m *MatcherService) IsWaiting(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, ErrUnauthenticated
	}
	waiting, err := m.store.IsUserWaiting(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to check waiting state: %w", err)
	}
	return waiting, nil
}

// PurgeStale removes waiting entries older than olderThan.
func (m *MatcherService) PurgeStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	unlock, err := m.locker.Lock(ctx)
	if err != nil {
		return 0, err
	}
	defer unlock()

	n, err := m.store.PurgeWaitingBefore(ctx, time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to purge waiting entries: %w", err)
	}
	metrics.WaitingPurged.Add(float64(n))
	return n, nil
}

// RunSweeper purges stale waiting entries every interval until ctx is done.
// A non-positive ttl disables the sweeper.
func (m *MatcherService) RunSweeper(ctx context.Context, interval, ttl time.Duration) {
	if ttl <= 0 || interval <= 0 {
		return
	}

	l := log.Ctx(ctx)
	l.Info().Dur("interval", interval).Dur("ttl", ttl).Msg("waiting entry sweeper started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := m.PurgeStale(ctx, ttl)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				l.Error().Err(err).Msg("sweeper run failed")
				continue
			}
			if n > 0 {
				l.Info().Int64("purged", n).Msg("stale waiting entries removed")
			}
		}
	}
}
