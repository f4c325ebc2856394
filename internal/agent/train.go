package agent

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/cantstop/internal/dice"
	"github.com/robalobadob/cantstop/internal/game"
)

// TrainResult summarises a self-play run.
type TrainResult struct {
	Episodes int `json:"episodes"`
	Wins     int `json:"wins"`
	Steps    int `json:"steps"`
	Entries  int `json:"entries"`
}

// Train plays episodes of self-play on fresh boards.
//
// Each episode plays moves until the board is won or maxSteps moves have
// been made, finalizing the turn after every turnLength accepted moves.
// It stops early when ctx is done and returns what was completed so far
// together with ctx.Err().
func (a *Agent) Train(ctx context.Context, episodes int) (TrainResult, error) {
	var res TrainResult
	start := time.Now()
	log.Info().Int("episodes", episodes).Msg("starting self-play")

	for i := 0; i < episodes; i++ {
		if err := ctx.Err(); err != nil {
			res.Entries = a.table.Len()
			return res, err
		}
		g := game.New("train-"+strconv.Itoa(i), dice.NewRoller(a.nextSeed()))
		steps, won, err := a.playEpisode(ctx, g)
		res.Steps += steps
		if err != nil {
			res.Entries = a.table.Len()
			return res, err
		}
		res.Episodes++
		if won {
			res.Wins++
		}
		log.Debug().Int("episode", i+1).Int("steps", steps).Bool("won", won).Msg("episode done")
	}

	res.Entries = a.table.Len()
	log.Info().
		Int("episodes", res.Episodes).
		Int("wins", res.Wins).
		Int("steps", res.Steps).
		Int("entries", res.Entries).
		Dur("took", time.Since(start)).
		Msg("completed self-play")
	return res, nil
}

func (a *Agent) playEpisode(ctx context.Context, g *game.Game) (steps int, won bool, err error) {
	advances := 0
	for steps < a.maxSteps {
		if err := ctx.Err(); err != nil {
			return steps, false, err
		}
		step, err := a.PlayTurn(g)
		if err != nil {
			return steps, false, err
		}
		steps++
		switch step.Status {
		case game.StatusWin:
			return steps, true, nil
		case game.StatusContinue:
			advances++
			if advances%a.turnLength == 0 {
				g.FinalizeTurn()
			}
		}
	}
	return steps, false, nil
}

func (a *Agent) nextSeed() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rng.Int63()
}
