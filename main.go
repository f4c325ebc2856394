package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/cantstop/internal/agent"
	"github.com/robalobadob/cantstop/internal/config"
	"github.com/robalobadob/cantstop/internal/dice"
	"github.com/robalobadob/cantstop/internal/game"
	"github.com/robalobadob/cantstop/internal/httpserver"
	"github.com/robalobadob/cantstop/internal/qstore"
	"github.com/robalobadob/cantstop/internal/storage"
	"github.com/robalobadob/cantstop/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogging(cfg)

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open database")
	}
	defer db.Close()
	if err := storage.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	qs := qstore.NewStore(db)
	ag := agent.New(
		agent.WithAlpha(cfg.Agent.Alpha),
		agent.WithGamma(cfg.Agent.Gamma),
		agent.WithEpsilon(cfg.Agent.Epsilon),
		agent.WithSeed(agentSeed(cfg.Agent.Seed)),
	)
	if n, err := qs.Restore(ctx, ag.Table()); err != nil {
		log.Warn().Err(err).Msg("could not restore q-table, starting empty")
	} else {
		log.Info().Int("entries", n).Msg("restored q-table")
	}

	mem := store.NewMemoryStore(boardFactory(cfg.DiceSalt))
	srv := httpserver.New(mem, ag, qs, httpserver.Options{
		ClientOrigin:   cfg.ClientOrigin,
		SessionCookie:  cfg.SessionCookie,
		RequestTimeout: cfg.RequestTimeout,
	})

	if cfg.CheckpointInterval > 0 {
		go runCheckpointer(ctx, qs, ag.Table(), cfg.CheckpointInterval)
	}

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("shutdown")
		}
	}()

	log.Info().Str("port", cfg.Port).Msg("starting cantstop server")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server exited")
	}

	finalCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	saveCheckpoint(finalCtx, qs, ag.Table())
	log.Info().Msg("bye")
}

func setupLogging(cfg config.Config) {
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// boardFactory builds session boards. With a salt every session's dice are
// derived from the salt and the session id; without one they are random.
func boardFactory(salt string) store.Factory {
	return func(id string) *game.Game {
		if salt != "" {
			return game.New(id, dice.NewRoller(dice.SeedFor(salt, id)))
		}
		seed, err := dice.NewSeed()
		if err != nil {
			log.Warn().Err(err).Msg("crypto seed unavailable, using clock")
			seed = time.Now().UnixNano()
		}
		return game.New(id, dice.NewRoller(seed))
	}
}

func agentSeed(configured uint64) uint64 {
	if configured != 0 {
		return configured
	}
	seed, err := dice.NewSeed()
	if err != nil {
		return uint64(time.Now().UnixNano())
	}
	return uint64(seed)
}
