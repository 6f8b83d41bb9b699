package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"bitunix-trend-bot-go/internal/models"
)

// fileRepository persists the bot state as a single JSON document. Saves
// write a complete new file next to the target and rename it over the old
// one, so a crash mid-write leaves the previous snapshot intact.
type fileRepository struct {
	path string
}

// NewFileRepository creates a repository backed by the JSON file at path.
// Parent directories are created on demand.
func NewFileRepository(path string) (StateRepository, error) {
	if path == "" {
		return nil, fmt.Errorf("state file path must not be empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}
	return &fileRepository{path: path}, nil
}

func (r *fileRepository) SaveState(state *models.BotState) error {
	snapshot := state.Clone()
	snapshot.LastUpdated = time.Now()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	// Write-then-rename keeps the replace atomic on the same filesystem.
	tmp, err := os.CreateTemp(filepath.Dir(r.path), filepath.Base(r.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

func (r *fileRepository) LoadState() (*models.BotState, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			// A missing state file is the normal first-run case.
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	if len(data) == 0 {
		return nil, nil
	}

	var state models.BotState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	if state.OpenTrades == nil {
		state.OpenTrades = make([]models.Trade, 0)
	}
	return &state, nil
}

func (r *fileRepository) Close() error {
	return nil
}
