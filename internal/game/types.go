// internal/game/types.go
//
// Core type definitions for the Can't Stop game engine.
// Defines:
//   - Move: a pair of column keys produced by pairing four dice.
//   - Status: outcome of submitting a move ("win" / "continue" / "invalid").
//   - State: canonical, order-independent view used as a policy key.
//   - Snapshot: full read model for clients.
//   - Game: the board for a single session.

package game

import (
	"strconv"
	"strings"
	"sync"

	"github.com/robalobadob/cantstop/internal/dice"
)

// Move is a pair of column keys. It marshals as a two-element JSON array.
type Move [2]int

// Status is the result of submitting a move.
type Status string

const (
	StatusWin      Status = "win"
	StatusContinue Status = "continue"
	StatusInvalid  Status = "invalid"
)

// ColumnProgress is one (column, progress) pair of a State.
type ColumnProgress struct {
	Column   int `json:"column"`
	Progress int `json:"progress"`
}

// State is the canonical snapshot used to key learned values.
// It does not carry the finished set: two boards that differ only in which
// columns are finished map to the same State.
type State struct {
	Columns []ColumnProgress `json:"columns"` // sorted by column
	Active  []int            `json:"active"`  // sorted
}

// Key renders the state as a stable string, e.g. "2:0,3:1,...|7,9".
func (s State) Key() string {
	var b strings.Builder
	for i, c := range s.Columns {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(c.Column))
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(c.Progress))
	}
	b.WriteByte('|')
	for i, c := range s.Active {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(c))
	}
	return b.String()
}

// ColumnView is a column as reported by Snapshot.
type ColumnView struct {
	Column   int `json:"column"`
	Progress int `json:"progress"`
	Max      int `json:"max"`
}

// Snapshot is the full board as seen by clients.
type Snapshot struct {
	ID       string       `json:"id"`
	Columns  []ColumnView `json:"columns"`
	Active   []int        `json:"active"`
	Finished []int        `json:"finished"`
	Banked   []int        `json:"banked"`
	Won      bool         `json:"won"`
}

// Game holds the board of a single session.
//
// Every column is in exactly one of three sets: inactive, active (this turn,
// at most MaxActive) or finished (terminal). All exported methods are safe
// for concurrent use; each one is atomic with respect to the others.
type Game struct {
	ID string // session the board belongs to

	mu       sync.Mutex
	roller   *dice.Roller
	progress map[int]int      // column -> banked advancement
	active   []int            // insertion order, no duplicates
	finished map[int]struct{} // reached max position
	banked   map[int]struct{} // columns ever carried through a finalized turn
}
