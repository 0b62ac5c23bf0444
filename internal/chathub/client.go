package chathub

import "chatroulette/backend/internal/models"

// Client is a realtime connection of one user (WebSocket, Telegram).
type Client interface {
	// GetUserID returns the identity the client was authenticated as.
	GetUserID() string
	// GetSendChannel returns the channel the hub delivers events on.
	GetSendChannel() chan<- models.Event
	// Run starts the client's pumps.
	Run()
	// Close releases the client. The hub calls it exactly once.
	Close()
}
