// internal/game/engine.go
//
// Core game engine for a single Can't Stop board.
// Responsibilities:
//   - Roll four dice and enumerate the three ways of pairing them.
//   - Validate moves (both columns must exist) and apply them.
//   - Track turn-scoped active columns vs. finished columns.
//   - End turns by finalizing (bank) or resetting (bust).
//   - Detect the win (three finished columns).
//
// Notes:
//   - Validity and applicability are two separate gates: IsMoveValid only
//     checks that the columns exist; ApplyMove silently skips a column that
//     cannot join the active set this turn. Submit runs both in order.
//   - Progress is applied at move time, so finalizing never changes it.
package game

import (
	"sort"

	"github.com/robalobadob/cantstop/internal/dice"
)

const (
	MinColumn  = 2
	MaxColumn  = 12
	MaxActive  = 3 // concurrently active columns per turn
	WinColumns = 3 // finished columns needed to win
	DiceCount  = 4
	DieSides   = 6
)

// maxPosition is the ceiling of each column: 13 at 7, falling off by two
// per step to 3 at both ends.
var maxPosition = map[int]int{
	2: 3, 3: 5, 4: 7, 5: 9, 6: 11, 7: 13, 8: 11, 9: 9, 10: 7, 11: 5, 12: 3,
}

// pairings are the three ways to split four dice into two pairs.
var pairings = [3][4]int{
	{0, 1, 2, 3},
	{0, 2, 1, 3},
	{0, 3, 1, 2},
}

// New constructs a fresh board with every column at zero.
func New(id string, roller *dice.Roller) *Game {
	g := &Game{
		ID:       id,
		roller:   roller,
		progress: make(map[int]int, len(maxPosition)),
		finished: make(map[int]struct{}),
		banked:   make(map[int]struct{}),
	}
	for c := MinColumn; c <= MaxColumn; c++ {
		g.progress[c] = 0
	}
	return g
}

// Columns lists the board's column keys in ascending order.
func Columns() []int {
	out := make([]int, 0, MaxColumn-MinColumn+1)
	for c := MinColumn; c <= MaxColumn; c++ {
		out = append(out, c)
	}
	return out
}

// MaxPosition returns the ceiling of column c, or 0 if c is not a column.
func MaxPosition(c int) int { return maxPosition[c] }

// PossibleMoves returns the three column-sum pairs for a roll of four dice,
// in fixed order: (d0+d1, d2+d3), (d0+d2, d1+d3), (d0+d3, d1+d2).
// Duplicates are kept. Any other number of dice yields nil.
func PossibleMoves(roll []int) []Move {
	if len(roll) != DiceCount {
		return nil
	}
	moves := make([]Move, 0, len(pairings))
	for _, p := range pairings {
		moves = append(moves, Move{roll[p[0]] + roll[p[1]], roll[p[2]] + roll[p[3]]})
	}
	return moves
}

// RollDice returns four independent values in [1,6]. Board state is untouched.
func (g *Game) RollDice() []int {
	// DiceCount and DieSides are positive, so Roll cannot fail.
	roll, _ := g.roller.Roll(DiceCount, DieSides)
	return roll
}

// IsMoveValid reports whether both columns of m exist on the board.
// It does not look at the active count or finished columns.
func (g *Game) IsMoveValid(m Move) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.isValid(m)
}

// ApplyMove advances each column of m in turn.
//
// A column advances if it is already active or there is room for another
// active column. Otherwise, or if it is finished or not on the board, it is
// skipped: that is a legal outcome (the column just can't move this turn),
// not an error.
func (g *Game) ApplyMove(m Move) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.apply(m)
}

// FinalizeTurn records the active columns as banked and clears the active set.
func (g *Game) FinalizeTurn() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, c := range g.active {
		g.banked[c] = struct{}{}
	}
	g.active = g.active[:0]
}

// ResetTurn busts the turn: every active column drops one step (not below
// zero) and the active set is cleared.
func (g *Game) ResetTurn() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reset()
}

// CheckWin reports whether at least WinColumns columns are finished.
func (g *Game) CheckWin() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.won()
}

// Submit is the full move step: validate, then apply and check for a win,
// or reset the turn if the move is invalid.
func (g *Game) Submit(m Move) Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.isValid(m) {
		g.reset()
		return StatusInvalid
	}
	g.apply(m)
	if g.won() {
		return StatusWin
	}
	return StatusContinue
}

// State returns the sorted (column, progress) pairs and sorted active columns.
func (g *Game) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	cols := make([]ColumnProgress, 0, len(g.progress))
	for _, c := range Columns() {
		cols = append(cols, ColumnProgress{Column: c, Progress: g.progress[c]})
	}
	return State{Columns: cols, Active: sortedCopy(g.active)}
}

// Snapshot returns the whole board, including finished and banked columns.
func (g *Game) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	cols := make([]ColumnView, 0, len(g.progress))
	for _, c := range Columns() {
		cols = append(cols, ColumnView{Column: c, Progress: g.progress[c], Max: MaxPosition(c)})
	}
	return Snapshot{
		ID:       g.ID,
		Columns:  cols,
		Active:   sortedCopy(g.active),
		Finished: sortedKeys(g.finished),
		Banked:   sortedKeys(g.banked),
		Won:      g.won(),
	}
}

// ----------------------------- unlocked helpers -----------------------------

func (g *Game) isValid(m Move) bool {
	for _, c := range m {
		if _, ok := maxPosition[c]; !ok {
			return false
		}
	}
	return true
}

func (g *Game) apply(m Move) {
	for _, c := range m {
		ceiling, ok := maxPosition[c]
		if !ok {
			continue
		}
		if _, done := g.finished[c]; done {
			continue
		}
		isActive := g.isActive(c)
		if !isActive && len(g.active) >= MaxActive {
			continue
		}
		if !isActive {
			g.active = append(g.active, c)
		}
		g.progress[c]++
		if g.progress[c] >= ceiling {
			g.progress[c] = ceiling
			g.finished[c] = struct{}{}
			g.removeActive(c)
		}
	}
}

func (g *Game) reset() {
	for _, c := range g.active {
		if g.progress[c] > 0 {
			g.progress[c]--
		}
	}
	g.active = g.active[:0]
}

func (g *Game) won() bool { return len(g.finished) >= WinColumns }

func (g *Game) isActive(c int) bool {
	for _, a := range g.active {
		if a == c {
			return true
		}
	}
	return false
}

func (g *Game) removeActive(c int) {
	for i, a := range g.active {
		if a == c {
			g.active = append(g.active[:i], g.active[i+1:]...)
			return
		}
	}
}

func sortedCopy(in []int) []int {
	out := append([]int{}, in...)
	sort.Ints(out)
	return out
}

func sortedKeys(m map[int]struct{}) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
