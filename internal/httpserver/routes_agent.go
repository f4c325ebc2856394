// internal/httpserver/routes_agent.go
//
// HTTP routes for the learning agent, mounted under /agent:
//   - POST /agent/play       → the agent makes one move on the session's board
//   - POST /agent/train      → self-play on throwaway boards
//   - POST /agent/checkpoint → persist the value table
//
// The agent (and its value table) is shared by every session.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/robalobadob/cantstop/internal/agent"
)

const (
	defaultEpisodes = 100
	maxEpisodes     = 10000
)

func (s *Server) mountAgent(r chi.Router) {
	r.Route("/agent", func(r chi.Router) {
		r.Post("/play", s.handleAgentPlay)
		r.Post("/train", s.handleAgentTrain)
		r.Post("/checkpoint", s.handleCheckpoint)
	})
}

func (s *Server) handleAgentPlay(w http.ResponseWriter, r *http.Request) {
	g, ok := s.board(w, r)
	if !ok {
		return
	}
	step, err := s.agent.PlayTurn(g)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("session", g.ID).Msg("agent play")
		writeError(w, http.StatusInternalServerError, "agent_failed")
		return
	}
	writeJSON(w, http.StatusOK, step)
}

type trainReq struct {
	Episodes int `json:"episodes"`
}

type trainRes struct {
	agent.TrainResult
	Partial bool `json:"partial,omitempty"`
}

// handleAgentTrain runs self-play within its own budget, which ends before
// the request timeout so the reply is still ours to write. If the budget
// runs out first, the episodes already played are kept and reported with
// "partial": true.
func (s *Server) handleAgentTrain(w http.ResponseWriter, r *http.Request) {
	req := trainReq{Episodes: defaultEpisodes}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_json")
			return
		}
	}
	if req.Episodes < 1 || req.Episodes > maxEpisodes {
		writeError(w, http.StatusBadRequest, "bad_episodes")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.trainBudget)
	defer cancel()
	res, err := s.agent.Train(ctx, req.Episodes)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		hlog.FromRequest(r).Error().Err(err).Msg("agent train")
		writeError(w, http.StatusInternalServerError, "train_failed")
		return
	}
	if err != nil {
		hlog.FromRequest(r).Info().Int("episodes", res.Episodes).Msg("training cut short")
	}
	writeJSON(w, http.StatusOK, trainRes{TrainResult: res, Partial: err != nil})
}

func (s *Server) handleCheckpoint(w http.ResponseWriter, r *http.Request) {
	if s.ckpt == nil {
		writeError(w, http.StatusServiceUnavailable, "checkpoints_disabled")
		return
	}
	n, err := s.ckpt.Checkpoint(r.Context(), s.agent.Table())
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("checkpoint")
		writeError(w, http.StatusInternalServerError, "checkpoint_failed")
		return
	}
	hlog.FromRequest(r).Info().Int("entries", n).Msg("checkpoint saved")
	writeJSON(w, http.StatusOK, map[string]int{"saved": n})
}
