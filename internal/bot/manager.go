package bot

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Manager supervises a set of engines, one goroutine each. It owns the
// registry only; each engine owns its own lifecycle.
type Manager struct {
	logger *zap.SugaredLogger

	mu   sync.Mutex
	bots map[string]*handle
	wg   sync.WaitGroup
}

type handle struct {
	engine *Engine
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates an empty registry.
func NewManager(logger *zap.SugaredLogger) *Manager {
	return &Manager{
		logger: logger,
		bots:   make(map[string]*handle),
	}
}

// StartBot registers the engine and launches its run loop. Starting the
// same bot id twice is rejected.
func (m *Manager) StartBot(ctx context.Context, eng *Engine) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := eng.cfg.BotID
	if _, exists := m.bots[id]; exists {
		return fmt.Errorf("bot %s is already running", id)
	}

	runCtx, cancel := context.WithCancel(ctx)
	h := &handle{engine: eng, cancel: cancel, done: make(chan struct{})}
	m.bots[id] = h

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(h.done)
		if err := eng.Run(runCtx); err != nil {
			m.logger.Errorf("bot %s failed: %v", id, err)
		}
		m.mu.Lock()
		delete(m.bots, id)
		m.mu.Unlock()
	}()

	m.logger.Infof("bot %s started", id)
	return nil
}

// StopBot cancels one bot and waits for its run loop to finish shutting
// down positions.
func (m *Manager) StopBot(id string) error {
	m.mu.Lock()
	h, ok := m.bots[id]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("bot %s is not running", id)
	}

	h.cancel()
	<-h.done
	m.logger.Infof("bot %s stopped", id)
	return nil
}

// StopAll cancels every running bot and blocks until all have stopped.
func (m *Manager) StopAll() {
	m.mu.Lock()
	for _, h := range m.bots {
		h.cancel()
	}
	m.mu.Unlock()
	m.wg.Wait()
}

// Running lists the ids of the currently registered bots.
func (m *Manager) Running() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.bots))
	for id := range m.bots {
		ids = append(ids, id)
	}
	return ids
}
