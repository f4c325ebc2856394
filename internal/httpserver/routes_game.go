// internal/httpserver/routes_game.go
//
// HTTP routes that drive a session's board.
//   - GET  /roll_dice   → four dice plus the three candidate moves
//   - POST /make_move   → validate, then apply (win/continue) or bust (invalid)
//   - POST /end_turn    → finalize the turn
//   - POST /reset_turn  → bust the turn on purpose
//   - GET  /state       → full board snapshot
//   - POST /game/new    → start the session over on a fresh board; a caller
//                         without a session is given a new one
//
// An invalid move is a normal outcome ("invalid"), not an HTTP error.
// Malformed bodies are rejected with 400 before the engine is touched.

package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/robalobadob/cantstop/internal/game"
)

func (s *Server) mountGame(r chi.Router) {
	r.Get("/roll_dice", s.handleRollDice)
	r.Post("/make_move", s.handleMakeMove)
	r.Post("/end_turn", s.handleEndTurn)
	r.Post("/reset_turn", s.handleResetTurn)
	r.Get("/state", s.handleState)
	r.Post("/game/new", s.handleNewGame)
}

// board resolves the request's session and its board, writing a 500 on failure.
func (s *Server) board(w http.ResponseWriter, r *http.Request) (*game.Game, bool) {
	id := s.sessionID(w, r)
	g, err := s.store.GetOrCreate(r.Context(), id)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("session", id).Msg("load board")
		writeError(w, http.StatusInternalServerError, "store_failed")
		return nil, false
	}
	return g, true
}

// rollRes is returned by /roll_dice.
type rollRes struct {
	DiceRoll []int       `json:"dice_roll"`
	Moves    []game.Move `json:"moves"`
}

func (s *Server) handleRollDice(w http.ResponseWriter, r *http.Request) {
	g, ok := s.board(w, r)
	if !ok {
		return
	}
	roll := g.RollDice()
	writeJSON(w, http.StatusOK, rollRes{DiceRoll: roll, Moves: game.PossibleMoves(roll)})
}

// moveReq is the payload of /make_move. Move is a slice so that a wrong
// number of columns can be told apart from a zero column.
type moveReq struct {
	Move []int `json:"move"`
}

type statusRes struct {
	Status string `json:"status"`
}

func (s *Server) handleMakeMove(w http.ResponseWriter, r *http.Request) {
	var req moveReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	if len(req.Move) != 2 {
		writeError(w, http.StatusBadRequest, "bad_move")
		return
	}
	g, ok := s.board(w, r)
	if !ok {
		return
	}
	move := game.Move{req.Move[0], req.Move[1]}
	status := g.Submit(move)
	hlog.FromRequest(r).Info().
		Str("session", g.ID).
		Ints("move", req.Move).
		Str("status", string(status)).
		Msg("move submitted")
	writeJSON(w, http.StatusOK, statusRes{Status: string(status)})
}

func (s *Server) handleEndTurn(w http.ResponseWriter, r *http.Request) {
	g, ok := s.board(w, r)
	if !ok {
		return
	}
	g.FinalizeTurn()
	writeJSON(w, http.StatusOK, statusRes{Status: "turn ended"})
}

func (s *Server) handleResetTurn(w http.ResponseWriter, r *http.Request) {
	g, ok := s.board(w, r)
	if !ok {
		return
	}
	g.ResetTurn()
	writeJSON(w, http.StatusOK, statusRes{Status: "turn reset"})
}

// stateRes is returned by /state: the board plus the policy key it maps to.
type stateRes struct {
	game.Snapshot
	StateKey string `json:"state_key"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	g, ok := s.board(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, stateRes{Snapshot: g.Snapshot(), StateKey: g.State().Key()})
}

func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	id := s.sessionID(w, r)
	if id == DefaultSession {
		id = s.mintSession(w)
	}
	if _, err := s.store.Renew(r.Context(), id); err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("session", id).Msg("renew board")
		writeError(w, http.StatusInternalServerError, "store_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"sessionId": id})
}
