package models

import "time"

// WaitingEntry marks a user who is currently looking for a partner.
// The unique index on UserID keeps at most one entry per user.
type WaitingEntry struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     string    `gorm:"type:varchar(128);not null;uniqueIndex" json:"user_id"`
	JoinedAt   time.Time `gorm:"not null;index:idx_waiting_joined_at" json:"joined_at"`
	WantsVideo bool      `gorm:"not null" json:"wants_video"`
}

// Accepts reports whether the entry can be paired with a joiner.
// A joiner asking for video only pairs with waiters that also want video.
func (w *WaitingEntry) Accepts(userID string, wantsVideo bool) bool {
	if w.UserID == userID {
		return false
	}
	return !wantsVideo || w.WantsVideo
}
