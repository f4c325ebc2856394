// internal/store/memory.go
//
// In-memory session store: each session id owns one *game.Game.
// Replaces the process-wide singleton board with a board per session.
//
// Characteristics:
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - Unknown ids get a fresh board from the factory on GetOrCreate.
//   - State is lost when the process restarts.

package store

import (
	"context"
	"errors"
	"sync"

	"github.com/robalobadob/cantstop/internal/game"
)

// ErrNotFound is returned by Get for unknown session ids.
var ErrNotFound = errors.New("store: session not found")

// Factory builds a fresh board for a session id.
type Factory func(id string) *game.Game

// Store defines the persistence interface for session boards.
type Store interface {
	// Get retrieves a board by session id.
	// Returns ErrNotFound if there is none.
	Get(ctx context.Context, id string) (*game.Game, error)

	// GetOrCreate returns the session's board, creating it if needed.
	GetOrCreate(ctx context.Context, id string) (*game.Game, error)

	// Renew replaces the session's board with a fresh one.
	Renew(ctx context.Context, id string) (*game.Game, error)

	// Len reports the number of live sessions.
	Len() int
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu      sync.RWMutex          // guards games
	games   map[string]*game.Game // keyed by Game.ID
	newGame Factory
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore(newGame Factory) Store {
	return &memory{games: make(map[string]*game.Game), newGame: newGame}
}

func (m *memory) Get(ctx context.Context, id string) (*game.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if g, ok := m.games[id]; ok {
		return g, nil
	}
	return nil, ErrNotFound
}

func (m *memory) GetOrCreate(ctx context.Context, id string) (*game.Game, error) {
	if g, err := m.Get(ctx, id); err == nil {
		return g, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	// another request may have created it between the two locks
	if g, ok := m.games[id]; ok {
		return g, nil
	}
	g := m.newGame(id)
	m.games[id] = g
	return g, nil
}

func (m *memory) Renew(ctx context.Context, id string) (*game.Game, error) {
	g := m.newGame(id)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games[id] = g
	return g, nil
}

func (m *memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.games)
}
