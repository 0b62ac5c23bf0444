package models

import "time"

// SignalType is the kind of WebRTC negotiation payload being relayed.
type SignalType string

const (
	SignalOffer        SignalType = "offer"
	SignalAnswer       SignalType = "answer"
	SignalICECandidate SignalType = "ice-candidate"
)

// Valid reports whether t is one of the relayed signal kinds.
func (t SignalType) Valid() bool {
	switch t {
	case SignalOffer, SignalAnswer, SignalICECandidate:
		return true
	}
	return false
}

// SignalingMessage is an opaque negotiation payload addressed to one participant.
// The payload is stored and returned exactly as received.
type SignalingMessage struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	SessionID  string     `gorm:"type:varchar(64);not null;index:idx_signal_recipient" json:"session_id"`
	FromUserID string     `gorm:"type:varchar(128);not null" json:"from_user_id"`
	ToUserID   string     `gorm:"type:varchar(128);not null;index:idx_signal_recipient" json:"to_user_id"`
	Type       SignalType `gorm:"type:varchar(32);not null" json:"type"`
	Payload    string     `gorm:"type:text;not null" json:"payload"`
	CreatedAt  time.Time  `json:"created_at"`
}
