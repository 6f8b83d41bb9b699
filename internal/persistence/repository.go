package persistence

import "bitunix-trend-bot-go/internal/models"

// StateRepository defines the interface for state persistence.
// It abstracts the underlying storage mechanism (file, BadgerDB, in-memory)
// from the rest of the application.
type StateRepository interface {
	// SaveState atomically saves the entire bot state. Open trades and the
	// realized PnL are always written together; a crash mid-save must never
	// leave a snapshot pairing one with a stale version of the other.
	SaveState(state *models.BotState) error

	// LoadState loads the bot state from storage.
	// If no state has been persisted yet, it returns (nil, nil).
	LoadState() (*models.BotState, error)

	// Close gracefully closes the underlying storage.
	Close() error
}
