package agent

import (
	"sort"
	"sync"

	"github.com/robalobadob/cantstop/internal/game"
)

// Entry is one learned value, keyed by state key and move.
type Entry struct {
	State string
	Move  game.Move
	Value float64
}

type qkey struct {
	state string
	move  game.Move
}

// QTable maps (state, move) to a learned value. Unseen pairs read as 0.
type QTable struct {
	mu     sync.RWMutex
	values map[qkey]float64
}

// NewQTable returns an empty table.
func NewQTable() *QTable {
	return &QTable{values: make(map[qkey]float64)}
}

// Get returns the value for (state, move), or 0 if unseen.
func (t *QTable) Get(state string, m game.Move) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.values[qkey{state, m}]
}

// Set stores the value for (state, move).
func (t *QTable) Set(state string, m game.Move, v float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.values[qkey{state, m}] = v
}

// Len reports the number of stored pairs.
func (t *QTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.values)
}

// Entries returns every stored value, sorted by state then move.
func (t *QTable) Entries() []Entry {
	t.mu.RLock()
	out := make([]Entry, 0, len(t.values))
	for k, v := range t.values {
		out = append(out, Entry{State: k.state, Move: k.move, Value: v})
	}
	t.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].State != out[j].State {
			return out[i].State < out[j].State
		}
		if out[i].Move[0] != out[j].Move[0] {
			return out[i].Move[0] < out[j].Move[0]
		}
		return out[i].Move[1] < out[j].Move[1]
	})
	return out
}

// Load merges entries into the table, overwriting existing pairs.
func (t *QTable) Load(entries []Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range entries {
		t.values[qkey{e.State, e.Move}] = e.Value
	}
}
