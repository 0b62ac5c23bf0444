package storage

import (
	"chatroulette/backend/internal/log"
	"chatroulette/backend/internal/models"
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Storage is the record store behind matchmaking, sessions and messages.
// Every method is atomic on its own; Transaction groups several into one unit.
type Storage interface {
	Transaction(ctx context.Context, fn func(tx Storage) error) error

	AddToWaitingQueue(ctx context.Context, entry *models.WaitingEntry) error
	RemoveFromWaitingQueue(ctx context.Context, userID string) (int64, error)
	RemoveWaitingEntry(ctx context.Context, entryID uint) (bool, error)
	GetWaitingEntries(ctx context.Context) ([]models.WaitingEntry, error)
	IsUserWaiting(ctx context.Context, userID string) (bool, error)
	PurgeWaitingBefore(ctx context.Context, cutoff time.Time) (int64, error)

	SaveSession(ctx context.Context, session *models.ChatSession) error
	GetSessionByID(ctx context.Context, sessionID string) (*models.ChatSession, error)
	GetActiveSessionsForUser(ctx context.Context, userID string) ([]models.ChatSession, error)
	GetActiveSessions(ctx context.Context) ([]models.ChatSession, error)
	EndSession(ctx context.Context, sessionID string) (bool, error)

	SaveMessage(ctx context.Context, msg *models.Message) error
	GetChatHistory(ctx context.Context, sessionID string) ([]models.Message, error)
}

// SignalStore keeps per-recipient signaling queues. Reads never consume.
type SignalStore interface {
	SaveSignal(ctx context.Context, sig *models.SignalingMessage) error
	GetSignalsFor(ctx context.Context, sessionID, toUserID string) ([]models.SignalingMessage, error)
}

// Service implements Storage and SignalStore on top of gorm.
type Service struct {
	DB *gorm.DB
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

func (s *Service) db(ctx context.Context) *gorm.DB {
	return s.DB.WithContext(ctx)
}

// Transaction runs fn against a Storage bound to a single database transaction.
func (s *Service) Transaction(ctx context.Context, fn func(tx Storage) error) error {
	return s.db(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Service{DB: tx})
	})
}

// AddToWaitingQueue inserts a waiting entry. The unique index on user_id
// rejects a second entry for the same user.
func (s *Service) AddToWaitingQueue(ctx context.Context, entry *models.WaitingEntry) error {
	if entry.JoinedAt.IsZero() {
		entry.JoinedAt = time.Now()
	}
	return s.db(ctx).Create(entry).Error
}

// RemoveFromWaitingQueue deletes every waiting entry of userID.
func (s *Service) RemoveFromWaitingQueue(ctx context.Context, userID string) (int64, error) {
	res := s.db(ctx).Where("user_id = ?", userID).Delete(&models.WaitingEntry{})
	return res.RowsAffected, res.Error
}

// RemoveWaitingEntry deletes one entry by ID and reports whether this call
// removed it. A false result means somebody else got there first.
func (s *Service) RemoveWaitingEntry(ctx context.Context, entryID uint) (bool, error) {
	res := s.db(ctx).Where("id = ?", entryID).Delete(&models.WaitingEntry{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// GetWaitingEntries returns the queue oldest first.
func (s *Service) GetWaitingEntries(ctx context.Context) ([]models.WaitingEntry, error) {
	var entries []models.WaitingEntry
	if err := s.db(ctx).Order("joined_at asc, id asc").Find(&entries).Error; err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to load waiting entries")
		return nil, err
	}
	return entries, nil
}

func (s *Service) IsUserWaiting(ctx context.Context, userID string) (bool, error) {
	var count int64
	err := s.db(ctx).Model(&models.WaitingEntry{}).Where("user_id = ?", userID).Count(&count).Error
	return count > 0, err
}

// PurgeWaitingBefore removes entries that joined before cutoff.
func (s *Service) PurgeWaitingBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db(ctx).Where("joined_at < ?", cutoff).Delete(&models.WaitingEntry{})
	return res.RowsAffected, res.Error
}

// SaveSession inserts a new session.
func (s *Service) SaveSession(ctx context.Context, session *models.ChatSession) error {
	return s.db(ctx).Create(session).Error
}

// GetSessionByID returns nil without an error when the session does not exist.
func (s *Service) GetSessionByID(ctx context.Context, sessionID string) (*models.ChatSession, error) {
	var session models.ChatSession
	err := s.db(ctx).Where("id = ?", sessionID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldSessionID, sessionID).Msg("failed to get session")
		return nil, err
	}
	return &session, nil
}

// GetActiveSessionsForUser returns the user's active sessions, newest first.
// There is normally at most one.
func (s *Service) GetActiveSessionsForUser(ctx context.Context, userID string) ([]models.ChatSession, error) {
	var sessions []models.ChatSession
	err := s.db(ctx).
		Where("active = ?", true).
		Where("user_a = ? OR user_b = ?", userID, userID).
		Order("started_at desc").
		Find(&sessions).Error
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldUserID, userID).Msg("failed to find active sessions")
		return nil, err
	}
	return sessions, nil
}

func (s *Service) GetActiveSessions(ctx context.Context) ([]models.ChatSession, error) {
	var sessions []models.ChatSession
	if err := s.db(ctx).Where("active = ?", true).Order("started_at asc").Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

// EndSession flips an active session to ended and stamps EndedAt.
// It reports false when the session was missing or already ended.
func (s *Service) EndSession(ctx context.Context, sessionID string) (bool, error) {
	res := s.db(ctx).Model(&models.ChatSession{}).
		Where("id = ? AND active = ?", sessionID, true).
		Updates(map[string]interface{}{
			"active":   false,
			"ended_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SaveMessage appends a message; msg.ID and msg.CreatedAt are filled in by gorm.
func (s *Service) SaveMessage(ctx context.Context, msg *models.Message) error {
	if err := s.db(ctx).Create(msg).Error; err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldSessionID, msg.SessionID).Msg("failed to save message")
		return err
	}
	return nil
}

// GetChatHistory returns the session log in creation order.
func (s *Service) GetChatHistory(ctx context.Context, sessionID string) ([]models.Message, error) {
	history := []models.Message{}
	if err := s.db(ctx).Where("session_id = ?", sessionID).Order("created_at asc, id asc").Find(&history).Error; err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldSessionID, sessionID).Msg("failed to get chat history")
		return nil, err
	}
	return history, nil
}

// SaveSignal appends a signaling message to the recipient's queue.
func (s *Service) SaveSignal(ctx context.Context, sig *models.SignalingMessage) error {
	return s.db(ctx).Create(sig).Error
}

// GetSignalsFor returns every signal addressed to toUserID in the session, in insertion order.
func (s *Service) GetSignalsFor(ctx context.Context, sessionID, toUserID string) ([]models.SignalingMessage, error) {
	signals := []models.SignalingMessage{}
	err := s.db(ctx).
		Where("session_id = ? AND to_user_id = ?", sessionID, toUserID).
		Order("id asc").
		Find(&signals).Error
	if err != nil {
		return nil, err
	}
	return signals, nil
}
