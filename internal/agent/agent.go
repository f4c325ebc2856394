// Package agent is a tabular Q-learning policy for Can't Stop.
//
// The agent picks among the three candidate moves of a roll with an
// epsilon-greedy rule over a (state, move) value table. Its update is a
// one-step temporal-difference rule whose next-state estimate is taken over
// the moves of a fresh dice roll rather than the roll actually seen next.
// That makes it a stochastic approximation, not a standard Q-learning
// update, and nothing here promises convergence.
package agent

import (
	"errors"
	"sync"

	"golang.org/x/exp/rand"

	"github.com/robalobadob/cantstop/internal/game"
)

const (
	DefaultAlpha      = 0.1
	DefaultGamma      = 0.9
	DefaultEpsilon    = 0.1
	DefaultTurnLength = 3
	DefaultMaxSteps   = 500

	winReward = 1.0
)

// ErrNoMoves is returned when there is nothing to choose from.
var ErrNoMoves = errors.New("agent: no candidate moves")

type Option func(a *Agent)

// WithAlpha sets the learning rate.
func WithAlpha(alpha float64) Option {
	return func(a *Agent) {
		a.alpha = alpha
	}
}

// WithGamma sets the discount factor.
func WithGamma(gamma float64) Option {
	return func(a *Agent) {
		a.gamma = gamma
	}
}

// WithEpsilon sets the exploration probability.
func WithEpsilon(epsilon float64) Option {
	return func(a *Agent) {
		a.epsilon = epsilon
	}
}

// WithSeed seeds the exploration source. Zero keeps the default seed.
func WithSeed(seed uint64) Option {
	return func(a *Agent) {
		if seed != 0 {
			a.rng = rand.New(rand.NewSource(seed))
		}
	}
}

// WithTurnLength sets how many advances a training turn takes before it is
// finalized.
func WithTurnLength(n int) Option {
	return func(a *Agent) {
		a.turnLength = n
	}
}

// WithMaxSteps caps the number of moves in a training episode.
func WithMaxSteps(n int) Option {
	return func(a *Agent) {
		a.maxSteps = n
	}
}

// WithTable shares an existing value table.
func WithTable(t *QTable) Option {
	return func(a *Agent) {
		a.table = t
	}
}

// Agent is an epsilon-greedy Q-learning policy. It is safe for concurrent use.
type Agent struct {
	alpha      float64
	gamma      float64
	epsilon    float64
	turnLength int
	maxSteps   int
	table      *QTable

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

// New builds an agent with the default hyper-parameters, then applies options.
func New(options ...Option) *Agent {
	a := &Agent{
		alpha:      DefaultAlpha,
		gamma:      DefaultGamma,
		epsilon:    DefaultEpsilon,
		turnLength: DefaultTurnLength,
		maxSteps:   DefaultMaxSteps,
		table:      NewQTable(),
		rng:        rand.New(rand.NewSource(1)),
	}
	for _, option := range options {
		option(a)
	}
	if a.turnLength <= 0 {
		a.turnLength = DefaultTurnLength
	}
	if a.maxSteps <= 0 {
		a.maxSteps = DefaultMaxSteps
	}
	return a
}

// Table exposes the agent's value table.
func (a *Agent) Table() *QTable { return a.table }

// ChooseAction picks one of moves for state: a uniformly random move with
// probability epsilon, otherwise the first move with the highest value.
func (a *Agent) ChooseAction(state game.State, moves []game.Move) (game.Move, error) {
	if len(moves) == 0 {
		return game.Move{}, ErrNoMoves
	}
	if explore, i := a.explore(len(moves)); explore {
		return moves[i], nil
	}
	key := state.Key()
	best, bestQ := 0, a.table.Get(key, moves[0])
	for i := 1; i < len(moves); i++ {
		if q := a.table.Get(key, moves[i]); q > bestQ {
			best, bestQ = i, q
		}
	}
	return moves[best], nil
}

func (a *Agent) explore(n int) (bool, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.rng.Float64() < a.epsilon {
		return true, a.rng.Intn(n)
	}
	return false, 0
}

// Update applies Q(s,a) += alpha * (reward + gamma*maxNext - Q(s,a)).
//
// maxNext is the best value of next over the moves of a fresh roll of g's
// dice (0 when nothing is known), not over the roll that actually follows.
func (a *Agent) Update(g *game.Game, state game.State, action game.Move, reward float64, next game.State) float64 {
	key, nextKey := state.Key(), next.Key()
	old := a.table.Get(key, action)
	maxNext := 0.0
	for i, m := range game.PossibleMoves(g.RollDice()) {
		if q := a.table.Get(nextKey, m); i == 0 || q > maxNext {
			maxNext = q
		}
	}
	v := old + a.alpha*(reward+a.gamma*maxNext-old)
	a.table.Set(key, action, v)
	return v
}

// Step is the record of one agent move.
type Step struct {
	Dice   []int       `json:"dice_roll"`
	Moves  []game.Move `json:"moves"`
	Move   game.Move   `json:"move"`
	Status game.Status `json:"status"`
}

// PlayTurn plays one move on g: roll, choose, submit, learn.
// A win is rewarded with 1 and any other accepted move with 0; an invalid
// move resets the turn and teaches nothing.
func (a *Agent) PlayTurn(g *game.Game) (Step, error) {
	state := g.State()
	roll := g.RollDice()
	moves := game.PossibleMoves(roll)
	action, err := a.ChooseAction(state, moves)
	if err != nil {
		return Step{}, err
	}
	status := g.Submit(action)
	switch status {
	case game.StatusWin:
		a.Update(g, state, action, winReward, g.State())
	case game.StatusContinue:
		a.Update(g, state, action, 0, g.State())
	}
	return Step{Dice: roll, Moves: moves, Move: action, Status: status}, nil
}
