// internal/dice/dice.go
//
// Die roller used by the game engine.
// Responsibilities:
//   - Roll `count` dice with `sides` faces from a seeded math/rand source.
//   - Keep the source safe for concurrent use (one mutex per roller).
//
// Notes:
//   - A Roller is deterministic for a given seed; see seed.go for how
//     seeds are produced.
package dice

import (
	"errors"
	"math/rand"
	"sync"
)

// ErrInvalidDiceSpec is returned when count or sides is not positive.
var ErrInvalidDiceSpec = errors.New("dice: count and sides must be positive")

// Roller produces die faces from a seeded source.
type Roller struct {
	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

// NewRoller returns a Roller seeded with seed.
func NewRoller(seed int64) *Roller {
	return &Roller{rng: rand.New(rand.NewSource(seed))}
}

// Roll returns count independent uniform values in [1, sides].
func (r *Roller) Roll(count, sides int) ([]int, error) {
	if count <= 0 || sides <= 0 {
		return nil, ErrInvalidDiceSpec
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, count)
	for i := range out {
		out[i] = r.rng.Intn(sides) + 1
	}
	return out, nil
}
