package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChatSession represents a 1-on-1 pairing between two users.
// UserA is always the user who was already waiting when the match happened and
// is the designated initiator of the WebRTC negotiation; UserB is the joiner.
type ChatSession struct {
	// ID is the unique identifier for the session (UUID).
	ID string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	// UserA is the pre-existing waiting user.
	UserA string `gorm:"type:varchar(128);not null;index:idx_session_user_a" json:"user_a"`
	// UserB is the user whose join produced the match.
	UserB string `gorm:"type:varchar(128);not null;index:idx_session_user_b" json:"user_b"`
	// Active flips from true to false exactly once and never back.
	Active bool `gorm:"not null;index" json:"active"`
	// HasVideo is true only when both parties asked for video.
	HasVideo bool `gorm:"not null" json:"has_video"`
	// StartedAt is the timestamp when the session was created.
	StartedAt time.Time `gorm:"not null" json:"started_at"`
	// EndedAt is set when the session is closed.
	EndedAt *time.Time `json:"ended_at,omitempty"`
}

// BeforeCreate assigns a UUID when the caller did not set one.
func (s *ChatSession) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now()
	}
	return
}

// HasParticipant reports whether userID is UserA or UserB.
func (s *ChatSession) HasParticipant(userID string) bool {
	return userID != "" && (s.UserA == userID || s.UserB == userID)
}

// PartnerOf returns the other participant, or "" when userID is not part of the session.
func (s *ChatSession) PartnerOf(userID string) string {
	switch userID {
	case "":
		return ""
	case s.UserA:
		return s.UserB
	case s.UserB:
		return s.UserA
	}
	return ""
}

// IsInitiator reports whether userID must send the WebRTC offer.
func (s *ChatSession) IsInitiator(userID string) bool {
	return userID != "" && s.UserA == userID
}
