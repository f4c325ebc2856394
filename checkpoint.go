package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/cantstop/internal/agent"
)

type checkpointer interface {
	Checkpoint(ctx context.Context, t *agent.QTable) (int, error)
}

// runCheckpointer saves the table every interval until ctx is done.
// A failed save is logged and retried on the next tick.
func runCheckpointer(ctx context.Context, cp checkpointer, t *agent.QTable, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			saveCheckpoint(ctx, cp, t)
		}
	}
}

func saveCheckpoint(ctx context.Context, cp checkpointer, t *agent.QTable) {
	n, err := cp.Checkpoint(ctx, t)
	if err != nil {
		log.Error().Err(err).Msg("q-table checkpoint failed")
		return
	}
	log.Debug().Int("entries", n).Msg("q-table checkpoint saved")
}
