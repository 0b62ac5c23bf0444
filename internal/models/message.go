package models

import "time"

// Message is a chat line appended to a session. Messages are immutable and
// outlive the session they belong to; access is re-checked on every read.
type Message struct {
	// ID also breaks ties between messages created within the same clock tick.
	ID uint `gorm:"primaryKey" json:"id"`
	// SessionID is the session the message was sent in.
	SessionID string `gorm:"type:varchar(64);not null;index:idx_message_session" json:"session_id"`
	// AuthorID is the identity of the sender.
	AuthorID string `gorm:"type:varchar(128);not null" json:"author_id"`
	// Content is the text body.
	Content string `gorm:"type:text;not null" json:"content"`
	// CreatedAt orders the session log.
	CreatedAt time.Time `gorm:"index:idx_message_session" json:"created_at"`
}
